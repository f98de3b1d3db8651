package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskboard/internal/client"
	"taskboard/internal/model"
)

type app struct {
	v          *viper.Viper
	out        io.Writer
	configFile string

	api   *client.Client
	store *client.Store
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "taskctl - command line client for taskboard",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (default ~/.taskctl.yaml)")
	rootCmd.PersistentFlags().String("server", "", "taskboard server url")
	_ = a.v.BindPFlag(keyServer, rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(a.signupCmd())
	rootCmd.AddCommand(a.loginCmd())
	rootCmd.AddCommand(a.logoutCmd())
	rootCmd.AddCommand(a.whoamiCmd())
	rootCmd.AddCommand(a.listCmd())
	rootCmd.AddCommand(a.addCmd())
	rootCmd.AddCommand(a.doneCmd())
	rootCmd.AddCommand(a.importantCmd())
	rootCmd.AddCommand(a.rmCmd())
	rootCmd.AddCommand(a.statsCmd())

	return rootCmd
}

func (a *app) init() error {
	if err := loadSettings(a.v, a.configFile); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	server := a.v.GetString(keyServer)
	api, err := client.New(server)
	if err != nil {
		return err
	}
	a.api = api
	a.store = client.NewStore(api)

	saved, err := readSession(a.sessionFile())
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if saved != nil && saved.Server == server {
		api.SetSession(saved.Token, saved.UserID)
	}
	return nil
}

func (a *app) sessionFile() string {
	return a.v.GetString(keySessionFile)
}

func (a *app) saveSession() error {
	token, userID := a.api.Session()
	if token == "" {
		return removeSession(a.sessionFile())
	}
	return writeSession(a.sessionFile(), savedSession{
		Server: a.v.GetString(keyServer),
		Token:  token,
		UserID: userID,
	})
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 30*time.Second)
}

func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

func (a *app) printTask(t *model.Task) {
	mark := " "
	if t.Important {
		mark = "*"
	}
	fmt.Fprintf(a.out, "%4d %s %-12s %s  %s\n",
		t.ID, mark, t.Status, t.Date.Format("2006-01-02"), t.Title)
	if notes := strings.TrimSpace(t.Notes); notes != "" {
		fmt.Fprintf(a.out, "       %s\n", notes)
	}
}
