package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"u3relay/internal/config"
	"u3relay/internal/model"
	"u3relay/internal/session"
	"u3relay/internal/storage"
)

func runRelay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	in, _ := cmd.Flags().GetString("in")
	id, _ := cmd.Flags().GetString("id")
	pending, _ := cmd.Flags().GetBool("pending")
	limit, _ := cmd.Flags().GetInt("limit")
	if in == "" {
		in = cfg.Out
	}
	if !pending && id == "" {
		return fmt.Errorf("either --id or --pending is required")
	}

	ctx, stop := signalContext()
	defer stop()

	s, err := session.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	var records []model.AuthorizationRecord
	if pending {
		records, err = s.Pending(ctx, limit)
		if errors.Is(err, session.ErrNoStore) {
			return fmt.Errorf("--pending requires pg-dsn")
		}
		if err != nil {
			return fmt.Errorf("load pending: %w", err)
		}
	} else {
		if in == "" {
			return fmt.Errorf("--in or out path is required")
		}
		rec, err := storage.NewJsonlStorage(in).FindAuthorization(id)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	logger.Info("relaying authorizations", zap.Int("count", len(records)))
	var errs []error
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		result, err := s.Relay(ctx, rec)
		if err != nil {
			logger.Error("relay failed", zap.String("id", rec.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", rec.ID, err))
			continue
		}
		if err := printJSON(result); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
