package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"quant-engine/internal/api"
	"quant-engine/internal/engine"
	"quant-engine/internal/events"
	"quant-engine/internal/monitor"
	"quant-engine/internal/order"
	"quant-engine/internal/reconciliation"
	"quant-engine/internal/settings"
	"quant-engine/pkg/config"
	futusdt "quant-engine/pkg/exchanges/binance/futures_usdt"
	exchange "quant-engine/pkg/exchanges/common"
	"quant-engine/pkg/logger"
)

func main() {
	issueToken := flag.String("issue-token", "", "print an admin JWT for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 72*time.Hour, "lifetime of an issued admin JWT")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		if cfg.AdminJWTSecret == "" {
			fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET is not set")
			os.Exit(1)
		}
		token, err := api.GenerateToken(*issueToken, cfg.AdminJWTSecret, *tokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Development: cfg.LogDev})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("engine exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := settings.Load(cfg.SettingsFile)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	s := store.Snapshot()
	if !cfg.HasCredentials() {
		log.Warn("binance credentials missing; signed endpoints will fail")
	}
	log.Info("settings loaded",
		zap.String("file", cfg.SettingsFile),
		zap.Bool("simulation_mode", s.SimulationMode),
		zap.Bool("dry_run", s.DryRun))

	// Exchange clients: one per network, chosen per call by SIMULATION_MODE.
	mainnet := futusdt.NewClient(futusdt.Config{APIKey: cfg.BinanceAPIKey, APISecret: cfg.BinanceAPISecret}, log)
	testnet := futusdt.NewClient(futusdt.Config{APIKey: cfg.BinanceAPIKey, APISecret: cfg.BinanceAPISecret, Testnet: true}, log)
	exchange.NewTimeSync(mainnet.SyncTime, 30*time.Minute, log.Named("timesync.mainnet")).Start(ctx)
	exchange.NewTimeSync(testnet.SyncTime, 30*time.Minute, log.Named("timesync.testnet")).Start(ctx)

	clients := engine.NewClients(store, mainnet, testnet, func(live exchange.Client) *order.DryRunClient {
		return order.NewDryRunClient(live, func() float64 { return store.Snapshot().TradeFeeRate }, log)
	})

	bus := events.NewBus()
	metrics := monitor.NewMetrics(prometheus.DefaultRegisterer)
	executor := order.NewExecutor(clients, bus, metrics, store, log)

	eng := engine.NewImpl(engine.Config{
		Client:   clients,
		Settings: store,
		Bus:      bus,
		Metrics:  metrics,
		Log:      log,
		DryRun:   clients.DryRun,
		Executor: executor,
	})

	(&monitor.Monitor{Bus: bus, Sink: monitor.LogSink{Log: log.Named("alerts")}, Log: log}).Start(ctx)

	var recon *reconciliation.Service
	if cfg.ReconcileInterval > 0 {
		recon = reconciliation.NewService(executor, cfg.ReconcileInterval, log)
		recon.Start(ctx)
	}

	if cfg.CycleInterval > 0 {
		engine.NewScheduler(eng, cfg.CycleInterval, log).Start(ctx)
	} else {
		log.Info("scheduler disabled; cycles run only via the control surface")
	}
	if cfg.AutoStart {
		eng.Start()
	}

	server := api.NewServer(eng, api.Options{
		Bus:       bus,
		Metrics:   metrics,
		Gatherer:  prometheus.DefaultGatherer,
		Recon:     recon,
		Log:       log,
		JWTSecret: cfg.AdminJWTSecret,
	})
	server.SweepLimiters(ctx, 5*time.Minute)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("admin api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	}

	eng.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := eng.WaitIdle(shutdownCtx); err != nil {
		log.Error("strategy cycle still running at exit", zap.Error(err))
	}
	return nil
}
