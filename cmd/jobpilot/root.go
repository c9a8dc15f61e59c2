package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"jobpilot/internal/app"
	"jobpilot/internal/config"
	"jobpilot/internal/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const appName = "jobpilot"

var (
	cfgFile string
	userID  string

	rootCmd = &cobra.Command{
		Use:           appName,
		Short:         "jobpilot discovers job postings, scores them against your CV and drives applications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("config", "JOBPILOT_CONFIG"); err != nil {
		log.Fatalf("binding JOBPILOT_CONFIG environment variable: %v", err)
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a YAML config file (default is $JOBPILOT_CONFIG, then environment only)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "act as this user id (default is app.default_user_id, then the default email's user)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func newLogger() (*zap.Logger, error) {
	lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}
	return lg, nil
}

func loadConfig() (config.Config, error) {
	path := cfgFile
	if path == "" {
		path = viper.GetString("config")
	}
	return config.Load(path)
}

// session is what a command body gets: a ready container and the acting user.
type session struct {
	c      *app.Container
	userID uuid.UUID
}

// withSession builds the container, resolves the acting user and runs fn.
// The container is closed when fn returns.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lg, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := app.NewContainer(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			lg.Warn("closing container", zap.Error(err))
		}
	}()

	id, err := c.ResolveUser(ctx, userID)
	if err != nil {
		return err
	}
	lg.Debug("acting user resolved", zap.String("user_id", id.String()))
	return fn(ctx, session{c: c, userID: id})
}

func printJSON(cmd *cobra.Command, v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
	return err
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
