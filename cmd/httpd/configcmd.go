package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/httpd/pkg/config"
)

// newConfigCmd prints the effective configuration after every layer has
// been applied. Secrets are masked.
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(redact(*cfg))
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

const masked = "********"

func redact(cfg config.Config) config.Config {
	if cfg.Auth.Token != "" {
		cfg.Auth.Token = masked
	}
	if cfg.Auth.JWT.Secret != "" {
		cfg.Auth.JWT.Secret = masked
	}
	if cfg.Storage.Postgres.DSN != "" {
		cfg.Storage.Postgres.DSN = masked
	}
	return cfg
}
