package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	keyServer      = "server"
	keySessionFile = "session_file"
)

// loadSettings reads ~/.taskctl.yaml (or --config) and TASKCTL_* env.
func loadSettings(v *viper.Viper, configFile string) error {
	home, _ := os.UserHomeDir()

	v.SetDefault(keyServer, "http://localhost:8080")
	v.SetDefault(keySessionFile, filepath.Join(home, ".taskctl-session.json"))

	v.SetEnvPrefix("TASKCTL")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".taskctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (configFile == "" && os.IsNotExist(err)) {
			return nil
		}
		return err
	}
	return nil
}

// savedSession survives between invocations.
type savedSession struct {
	Server string `json:"server"`
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func readSession(path string) (*savedSession, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s savedSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func writeSession(path string, s savedSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func removeSession(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
