package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/userportal/internal/apiclient"
	"github.com/information-sharing-networks/userportal/internal/config"
	"github.com/information-sharing-networks/userportal/internal/environment"
	"github.com/information-sharing-networks/userportal/internal/logger"
	"github.com/information-sharing-networks/userportal/internal/session"
	"github.com/information-sharing-networks/userportal/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	quiet bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "userportal",
		Short: "User portal web interface and command line client",
		Long: `userportal serves the user portal web interface and provides the same
login, registration, user list and profile flows from the command line.

The backend is chosen from API_URL, or PROD_API_URL when the web interface
runs with APP_ENV=production, and otherwise defaults to http://localhost:8080.`,
		SilenceUsage: true,
	}
	cmd.Version = version.Get().String()

	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not write log output")

	cmd.AddCommand(
		newServeCmd(opts),
		newMockAPICmd(opts),
		newLoginCmd(opts),
		newRegisterCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newUsersCmd(opts),
	)
	return cmd
}

// app holds what a command needs once the configuration is loaded
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	api      *apiclient.Client
	store    session.Store
	sessions *session.Manager
	close    func()
}

// newApp loads the configuration, resolves the backend url for the runtime and opens the session store.
// Callers must call close when done.
func newApp(ctx context.Context, opts *rootOptions, runtime environment.Runtime, defaultStore string) (*app, error) {
	cfg, err := config.NewConfig(defaultStore)
	if err != nil {
		return nil, err
	}

	log := logger.Discard()
	if !opts.quiet {
		log = logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.AppEnv)
	}
	slog.SetDefault(log)

	baseURL := environment.ResolveBaseURL(cfg.EnvironmentSettings(), runtime, log)

	api := apiclient.New(baseURL,
		apiclient.WithLogger(log),
		apiclient.WithDefaultHeader("User-Agent", "userportal/"+version.Get().Version),
	)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   log,
		api:      api,
		store:    store,
		sessions: session.NewManager(api, store, log),
		close:    closeStore,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case config.StoreFile:
		return session.NewFileStore(cfg.SessionFile), func() {}, nil
	case config.StoreRedis:
		store, err := session.NewRedisStoreFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.StoreMemory:
		return session.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store %q", cfg.SessionStore)
	}
}
