package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/userportal/internal/config"
	"github.com/information-sharing-networks/userportal/internal/environment"
	"github.com/information-sharing-networks/userportal/internal/mockapi"
	"github.com/information-sharing-networks/userportal/internal/ui"
	"github.com/information-sharing-networks/userportal/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface",
		Long: `Run the web interface on HOST:PORT.

Sessions are kept in memory unless SESSION_STORE is set (use redis when running more than one instance).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, environment.RuntimeBrowser, config.StoreMemory)
			if err != nil {
				return err
			}
			defer a.close()

			a.logger.Info("Starting UI server",
				slog.String("version", version.Get().Version),
				slog.String("environment", a.cfg.AppEnv),
				slog.String("session_store", a.cfg.SessionStore),
			)

			server, err := ui.NewServer(a.cfg, a.api, a.store, a.logger)
			if err != nil {
				return err
			}

			if err := server.Start(cmd.Context()); err != nil {
				a.logger.Error("UI server error", slog.String("error", err.Error()))
				return err
			}

			a.logger.Info("UI server shutdown complete")
			return nil
		},
	}
}

func newMockAPICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mock-api",
		Short: "Run an in-memory user backend for local development",
		Long: `Run an in-memory implementation of the user backend on MOCK_API_PORT (default 8080),
the address the portal uses by default in development. Data is lost when the process exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, environment.RuntimeHeadless, config.StoreMemory)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cfg.ValidateMockAPI(); err != nil {
				return err
			}

			server, err := mockapi.NewServer(mockapi.OptionsFromConfig(a.cfg), a.logger)
			if err != nil {
				return err
			}
			return server.Start(cmd.Context())
		},
	}
}
