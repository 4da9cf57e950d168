// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/wardenmc/warden/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the warden CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warden",
		Short: "Warden - authentication and session guard for game servers",
		Long: `Warden guards a game server's front door: it quarantines arriving
players in a restricted sandbox until they register or log in, verifies
credentials against PostgreSQL, and resumes recent sessions.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentPreRun = func(*cobra.Command, []string) {
		if configFile == "" {
			configFile = xdg.DefaultConfigFile()
		}
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewShutdownCmd())

	return cmd
}
