package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"unlockstudio/internal/adapter/repo"
	"unlockstudio/internal/domain"
	"unlockstudio/internal/generator"
	"unlockstudio/internal/http/handlers"
	httpapi "unlockstudio/internal/http/httpapi"
	"unlockstudio/internal/infra"
	"unlockstudio/internal/infra/geoip"
	"unlockstudio/internal/paypal"
	"unlockstudio/internal/proxy"
	"unlockstudio/internal/storage"
	"unlockstudio/internal/widget"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var migrateOnStart bool

	root := &cobra.Command{
		Use:           "unlockstudio",
		Short:         "Generator widgets with a pay-per-image unlock gate",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// Optional .env
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), migrateOnStart)
		},
	}
	root.SetOut(out)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), migrateOnStart)
		},
	}
	root.PersistentFlags().BoolVar(&migrateOnStart, "migrate", false, "create the unlock ledger schema before serving")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create the unlock ledger schema for the configured driver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), cmd.OutOrStdout())
		},
	}

	root.AddCommand(serve, migrate)
	return root
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// openLedger builds the unlock ledger for cfg.LedgerDriver. The returned
// close func releases its connections.
func openLedger(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.UnlockLedger, func(), error) {
	switch cfg.LedgerDriver {
	case infra.LedgerPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		runner := infra.NewSQLRunner(pool, infra.Component(logger, "ledger"))
		return repo.NewUnlockLedgerPG(runner), pool.Close, nil
	case infra.LedgerSQLite:
		db, err := infra.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo.NewUnlockLedgerSQLite(db), func() { _ = db.Close() }, nil
	default:
		return repo.NewMemoryUnlockLedger(), func() {}, nil
	}
}

func runMigrate(ctx context.Context, out io.Writer) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ledger, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	m, ok := ledger.(migrator)
	if !ok {
		fmt.Fprintf(out, "ledger driver %q keeps no schema\n", cfg.LedgerDriver)
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s ledger: %w", cfg.LedgerDriver, err)
	}
	fmt.Fprintf(out, "%s ledger schema is up to date\n", cfg.LedgerDriver)
	return nil
}

func newProxyCache(ctx context.Context, cfg *infra.Config, logger infra.Logger) (proxy.Cache, func(), error) {
	if cfg.RedisAddr != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("proxy cache: redis")
		return proxy.NewRedisCache(rdb, ""), func() { _ = rdb.Close() }, nil
	}
	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("path", store.BasePath()).Msg("proxy cache: filesystem")
	return proxy.NewFileCache(store, cfg.ProxyCacheTTL), func() {}, nil
}

func runServe(parent context.Context, migrateOnStart bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ledger, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()
	if m, ok := ledger.(migrator); ok && (migrateOnStart || cfg.LedgerDriver == infra.LedgerSQLite) {
		if err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate ledger: %w", err)
		}
	}

	cache, closeCache, err := newProxyCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	var lookup func(ip string) (string, error)
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
		if c, ok := resolver.(io.Closer); ok {
			defer c.Close()
		}
	}

	gen, err := generator.NewClient(generator.Options{BaseURL: cfg.GenerationAPIURL, Timeout: cfg.GenerationTimeout, Logger: &logger})
	if err != nil {
		return err
	}
	payments, err := paypal.NewClient(paypal.Options{BaseURL: cfg.PayPalAPIURL, Logger: &logger})
	if err != nil {
		return err
	}
	fetcher, err := proxy.NewClient(cfg.ProxyBaseURL, nil)
	if err != nil {
		return err
	}
	proxyHandler := proxy.NewHandler(proxy.Options{
		Guard: proxy.NewGuard(proxy.GuardOptions{
			Hosts:        cfg.ImageSourceAllowlist,
			AllowPrivate: cfg.ProxyAllowPrivate,
		}),
		Cache:    cache,
		MaxBytes: cfg.ProxyMaxBytes,
		MaxAge:   cfg.ProxyCacheTTL,
		Logger:   &logger,
	})

	registry := widget.NewRegistry(widget.Options{
		Generator:     gen,
		Payments:      payments,
		Fetcher:       fetcher,
		Ledger:        ledger,
		Price:         domain.Price{Cents: cfg.UnlockPriceCents, Currency: cfg.UnlockCurrency},
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        &logger,
	})
	go registry.RunSweeper(ctx, time.Minute, cfg.WidgetIdleTimeout)

	router := httpapi.NewRouter(handlers.NewApp(registry, &logger), httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		RateLimitPerMin: cfg.RateLimitPerMin,
		JWTSecret:       cfg.JWTSecret,
		CountryLookup:   lookup,
		Proxy:           proxyHandler,
	})
	logger.Info().Str("ledger", cfg.LedgerDriver).Str("port", cfg.Port).Msg("starting API")
	return infra.NewHTTPServer(cfg, router, logger).Run(ctx)
}
