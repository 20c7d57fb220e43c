package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"duostake/config"
	"duostake/native/staking"
	"duostake/observability"
	"duostake/observability/logging"
	"duostake/services/stakingd/server"
	"duostake/storage"
)

func main() {
	configPath := flag.String("config", "stakingd.toml", "path to the daemon configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("stakingd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.Setup("stakingd", cfg.Environment, cfg.LogFile)

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	state, err := storage.NewGormState(db)
	if err != nil {
		return err
	}
	vault, err := storage.NewLedgerVault(db)
	if err != nil {
		return err
	}

	params := server.NewParamStore(staking.Params{
		ApyBps:         cfg.Staking.ApyBps,
		LockPeriod:     cfg.Staking.LockPeriodSeconds,
		RewardInterval: cfg.Staking.RewardIntervalSeconds,
	}, cfg.Staking.Paused)

	var oracle *staking.ManualOracle
	var ratio staking.RatioStrategy
	switch cfg.Staking.RatioMode {
	case config.RatioModeOracle:
		oracle = staking.NewManualOracle()
		ratio, err = staking.NewOracleRatio(oracle, cfg.Staking.OracleMaxAgeSeconds)
	default:
		wad, perr := cfg.Staking.Ratio()
		if perr != nil {
			return perr
		}
		ratio, err = staking.NewFixedRatio(wad)
	}
	if err != nil {
		return fmt.Errorf("build ratio strategy: %w", err)
	}

	engine := staking.NewEngine()
	engine.SetState(state)
	engine.SetVault(vault)
	engine.SetParamSource(params)
	engine.SetRatioStrategy(ratio)
	engine.SetPauses(params)
	engine.SetEmitter(observability.LogEmitter{Logger: log})

	srv, err := server.New(server.Options{
		Engine:            engine,
		Vault:             vault,
		Params:            params,
		Logger:            log,
		AdminTokens:       cfg.AdminTokens,
		Oracle:            oracle,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("stakingd listening",
			slog.String("address", cfg.ListenAddress),
			slog.String("database", cfg.DatabasePath),
			slog.String("ratioMode", cfg.Staking.RatioMode),
		)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case serveErr := <-errCh:
		return fmt.Errorf("http server: %w", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("stakingd stopped")
	return nil
}
