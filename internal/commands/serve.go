package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riskbook-dev/riskbook/internal/accounts"
	"github.com/riskbook-dev/riskbook/internal/audit"
	"github.com/riskbook-dev/riskbook/internal/cache"
	"github.com/riskbook-dev/riskbook/internal/config"
	"github.com/riskbook-dev/riskbook/internal/httpapi"
	"github.com/riskbook-dev/riskbook/internal/importer"
	"github.com/riskbook-dev/riskbook/internal/journal"
	"github.com/riskbook-dev/riskbook/internal/store"
	"github.com/riskbook-dev/riskbook/internal/stream"
)

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the riskbook HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.FileName, "path to riskbook.yaml")

	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is not set; run 'riskbook init' or set RISKBOOK_AUTH_SECRET")
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	mc, err := cache.New(1<<26 /* ~64MB */, cfg.MetricsTTL)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer mc.Close()

	rec := audit.NewRecorder(st, logger)
	hub := stream.NewHub(logger, cfg.CORSOrigin)
	go hub.Run(ctx)

	s := httpapi.NewServer(cfg, httpapi.Deps{
		Store:    st,
		Accounts: accounts.NewService(st, rec, loc),
		Journal:  journal.NewService(st),
		Importer: importer.NewService(st, rec, nil),
		Cache:    mc,
		Hub:      hub,
		Logger:   logger,
	})

	server := &http.Server{Addr: cfg.Listen, Handler: s.R}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.Listen))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sig:
	}

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShut()
	if err := server.Shutdown(ctxShut); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
