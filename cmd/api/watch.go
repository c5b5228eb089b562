package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tomlord1122/task-backend/internal/logger"
	"github.com/Tomlord1122/task-backend/internal/realtime"
	"github.com/Tomlord1122/task-backend/internal/service"
	"github.com/Tomlord1122/task-backend/internal/taskclient"
)

type watchOptions struct {
	url      string
	email    string
	password string
	token    string
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live task notifications from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.token == "" && (opts.email == "" || opts.password == "") {
				return errors.New("either --token or both --email and --password are required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&opts.email, "email", "", "Account email")
	cmd.Flags().StringVar(&opts.password, "password", "", "Account password")
	cmd.Flags().StringVar(&opts.token, "token", "", "Bearer token (skips login)")
	return cmd
}

func runWatch(ctx context.Context, opts watchOptions, out io.Writer) error {
	log, err := logger.New(false, "warn")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := taskclient.New(opts.url, taskclient.WithToken(opts.token), taskclient.WithLogger(log))
	if err != nil {
		return err
	}
	if opts.token == "" {
		user, err := client.Login(ctx, service.LoginRequest{Email: opts.email, Password: opts.password})
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Fprintf(out, "logged in as %s <%s>\n", user.Name, user.Email)
	}

	tasks, err := client.List(ctx, taskclient.ListOptions{})
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	fmt.Fprintf(out, "%d task(s)\n", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(out, "  [%s] %s\n", t.Status, t.Title)
	}

	return client.Subscribe(ctx, func(ev realtime.Event) {
		fmt.Fprintf(out, "%s: %s (%d cached)\n", ev.Data.Title, ev.Data.Message, len(client.Cache().Snapshot().Tasks))
	})
}
