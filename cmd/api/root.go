package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "task-backend",
		Short: "Multi-user task manager API with live updates",
		Long: `A task manager backend: authenticated REST endpoints for tasks and a
websocket channel that pushes every task change to connected clients.

Configuration is read from the environment (and a .env file when present).`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newWatchCmd())
	return root
}
