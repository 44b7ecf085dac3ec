package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shopopti/extension-gateway/internal/actions"
	"github.com/shopopti/extension-gateway/internal/config"
	"github.com/shopopti/extension-gateway/internal/gateway"
	"github.com/shopopti/extension-gateway/internal/httpapi"
	"github.com/shopopti/extension-gateway/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	ConfigPath string
	DBPath     string
	Listen     string
}

// NewServeCommand creates the serve command.
func NewServeCommand(root *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "database path (overrides config)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.DBPath != "" {
		cfg.DatabasePath = opts.DBPath
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}

	minVersion, err := gateway.ParseVersion(cfg.Gateway.MinExtensionVersion)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse minExtensionVersion", err)
	}
	latestVersion, err := gateway.ParseVersion(cfg.Gateway.LatestExtensionVersion)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse latestExtensionVersion", err)
	}

	log := slog.Default()

	st, err := store.Open(cfg.DatabasePath,
		store.WithReplayTTL(cfg.Replay.TTL.Std()),
		store.WithIdempotencyTTL(cfg.Idempotency.TTL.Std()),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	var replay gateway.ReplayGuard = st
	if cfg.Replay.Backend == "memory" {
		replay = gateway.NewMemoryReplayGuard(cfg.Replay.MaxEntries, cfg.Replay.TTL.Std())
	}

	var ai actions.AIClient
	if cfg.AI.Endpoint != "" && cfg.AI.APIKey != "" {
		ai = actions.NewHTTPAIClient(cfg.AI.Endpoint, cfg.AI.APIKey, cfg.AI.Model)
	} else {
		log.Warn("AI endpoint not configured; AI actions will fail")
	}

	budgets := make(map[string]actions.Budget, len(cfg.Actions))
	for name, b := range cfg.Actions {
		budgets[name] = actions.Budget{Limit: b.Limit, Window: b.Window.Std()}
	}

	svc, err := actions.New(actions.Config{
		Store:         st,
		AI:            ai,
		TokenTTL:      cfg.Auth.TokenTTL.Std(),
		MinVersion:    minVersion,
		LatestVersion: latestVersion,
		Budgets:       budgets,
		Logger:        log,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "build action service", err)
	}

	registry := gateway.NewRegistry()
	if err := svc.Register(registry); err != nil {
		return WrapExitError(ExitCommandError, "register actions", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	limiter := gateway.NewRateLimiter(nil)

	gw, err := gateway.New(gateway.Config{
		Registry:            registry,
		Auth:                st,
		Replay:              replay,
		Idempotency:         st,
		Limiter:             limiter,
		Events:              st,
		MinVersion:          minVersion,
		LatestVersion:       latestVersion,
		AllowedExtensionIDs: cfg.Gateway.AllowedExtensionIDs,
		WaitTimeout:         cfg.Idempotency.WaitTimeout.Std(),
		Logger:              log,
		Metrics:             gateway.NewMetrics(promReg),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "build gateway", err)
	}

	api := httpapi.NewServer(httpapi.Config{
		Gateway:        gw,
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
		Registry:       promReg,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("gateway listening", "addr", cfg.Listen, "db", cfg.DatabasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Periodic maintenance: expired storage rows and stale limiter buckets.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Sweep.Interval.Std())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if removed, err := st.Sweep(ctx); err != nil {
					log.Error("store sweep failed", "error", err)
				} else if removed > 0 {
					log.Debug("store sweep", "removed", removed)
				}
				limiter.Sweep(registry.MaxWindow())
			}
		}
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	return nil
}
