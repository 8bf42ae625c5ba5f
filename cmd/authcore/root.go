// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/logging"
	"github.com/authcore/authcore/internal/xdg"
)

const serviceName = "authcore"

// NewRootCmd creates the root command for the AuthCore CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(
		NewMigrateCmd(),
		NewUserCmd(),
		NewSweepCmd(),
		NewWorkerCmd(),
	)
}

func newRootCmd(subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "AuthCore - credential and token lifecycle service",
		Long: `AuthCore manages password credentials, signed access and refresh
tokens, and password reset flows backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file path (default: $XDG_CONFIG_HOME/authcore/config.yaml)")
	flags.String("database-url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json or text)")

	cmd.AddCommand(subcommands...)
	return cmd
}

// loadConfig resolves configuration for cmd from its flags, the --config
// file (default: $XDG_CONFIG_HOME/authcore/config.yaml when present) and the
// process environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err //nolint:wrapcheck // flag is registered on the root command
	}
	if path == "" {
		path, err = xdg.DefaultConfigFile(os.LookupEnv)
		if err != nil {
			return config.Config{}, oops.Code("CONFIG_LOAD_FAILED").With("operation", "find default config").Wrap(err)
		}
	}
	return config.Load(cmd.Flags(), path, os.LookupEnv)
}

// newLogger builds the process logger and installs it as the default.
func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	return logging.SetDefault(serviceName, version, cfg.Log.Format, level), nil
}
