// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/wardenmc/warden/internal/control"
)

// NewShutdownCmd creates the shutdown subcommand.
func NewShutdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Gracefully stop the running warden process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := control.SocketPath()
			if err != nil {
				return err
			}
			if err := control.NewClient(path).Shutdown(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Shutdown initiated")
			return nil
		},
	}
}
