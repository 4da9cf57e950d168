// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/wardenmc/warden/internal/control"
)

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of the running warden process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := control.SocketPath()
			if err != nil {
				return err
			}

			status, err := control.NewClient(path).Status(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Printf("Running:     %v\n", status.Running)
			cmd.Printf("Ready:       %v\n", status.Ready)
			cmd.Printf("PID:         %d\n", status.PID)
			cmd.Printf("Uptime:      %ds\n", status.UptimeSeconds)
			cmd.Printf("Quarantined: %d\n", status.Quarantined)
			return nil
		},
	}
}
