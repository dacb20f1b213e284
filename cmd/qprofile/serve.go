package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/qprofile/config"
	"github.com/kbukum/qprofile/internal/app"
)

// ServeOptions holds the serve command flags.
type ServeOptions struct {
	ConfigFile string
	EnvFile    string
	Port       int
}

// NewServeCommand creates the serve command.
func NewServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the dashboard, the user API and the /events stream.

Configuration is read from --config (default ./cmd/qprofile/config.yml), then
the .env file, then the environment. ADMIN_PASSWORD and SECRET_KEY set the
session credentials.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServeConfig(opts)
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "path to config.yml")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", "", "path to a .env file")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (overrides config)")
	return cmd
}

func loadServeConfig(opts *ServeOptions) (*app.Config, error) {
	cfg := &app.Config{}
	err := config.LoadConfig(configName, cfg,
		config.WithConfigFile(opts.ConfigFile),
		config.WithEnvFile(opts.EnvFile),
	)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	return cfg, nil
}
