package config

import (
	"errors"
	"fmt"
	"time"

	"taskboard/pkg/config"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server    config.ServerConfig    `yaml:"server"`
	Storage   config.StorageConfig   `yaml:"storage"`
	DB        config.DBConfig        `yaml:"db"`
	Redis     config.RedisConfig     `yaml:"redis"`
	Session   config.SessionConfig   `yaml:"session"`
	MQ        config.MQConfig        `yaml:"mq"`
	Scheduler config.SchedulerConfig `yaml:"scheduler"`
	OTel      config.OTelConfig      `yaml:"otel"`
}

// Load reads config/base.yaml plus the CONFIG_ENV overlay, then applies
// environment overrides and defaults.
func Load(configDir string) (*Config, error) {
	var cfg Config
	if err := config.LoadLayered(config.GetConfigEnv(), configDir, &cfg); err != nil {
		return nil, err
	}

	// environment wins over files
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideStorageFromEnv(&cfg.Storage)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideSessionFromEnv(&cfg.Session)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideOTelFromEnv(&cfg.OTel)

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverFile
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.SQLiteDSN == "" {
		c.Storage.SQLiteDSN = "data/taskboard.db"
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 7 * 24 * time.Hour
	}
	if c.OTel.ServiceName == "" {
		c.OTel.ServiceName = "taskboard-api"
	}
	if c.Scheduler.SessionSweepInterval == 0 {
		c.Scheduler.SessionSweepInterval = 10 * time.Minute
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Session.Secret == "" {
		return errors.New("session secret is required (session.secret or SESSION_SECRET)")
	}
	if c.MQ.Outbox && c.Storage.Driver != DriverPostgres {
		return errors.New("mq.outbox requires the postgres storage driver")
	}
	if c.Session.TTL < 0 {
		return errors.New("session ttl must be positive")
	}
	return nil
}
