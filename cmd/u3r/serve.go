package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"u3relay/internal/api"
	"u3relay/internal/config"
	"u3relay/internal/session"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signalContext()
	defer stop()

	s, err := session.Connect(ctx, cfg.Config, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &api.Server{
		ChainID:      s.ChainID().Uint64(),
		Logger:       logger,
		RelayTimeout: cfg.ReceiptTimeout + cfg.ShutdownTimeout,
	}
	if r := s.Relayer(); r != nil && r.Address() != (common.Address{}) {
		srv.Submitter = r
	} else {
		logger.Warn("no relayer key configured; /v1/relay is disabled")
	}
	if cfg.Persist {
		srv.Ledger = s.Ledger()
	}

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.NewRouter(srv),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", zap.String("listen", cfg.Listen), zap.Bool("relay", srv.Submitter != nil))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
