package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"u3relay/internal/codec"
	"u3relay/internal/model"
	"u3relay/internal/storage"
)

type verifyLine struct {
	ID        string `json:"id"`
	Signer    string `json:"signer"`
	Recovered string `json:"recovered,omitempty"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

func runVerify(cmd *cobra.Command, _ []string) error {
	in, _ := cmd.Flags().GetString("in")
	id, _ := cmd.Flags().GetString("id")
	level, _ := cmd.Flags().GetString("log-level")

	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	records, err := storage.ReadAuthorizations(in)
	if err != nil {
		return fmt.Errorf("read authorizations: %w", err)
	}

	var checked, failed int
	for _, rec := range records {
		if id != "" && rec.ID != id {
			continue
		}
		checked++
		line := verifyLine{ID: rec.ID, Signer: rec.Signer}

		recovered, err := recoverRecord(rec)
		if recovered != (common.Address{}) {
			line.Recovered = recovered.Hex()
		}
		switch {
		case err != nil:
			line.Error = err.Error()
		case !strings.EqualFold(line.Recovered, rec.Signer):
			line.Error = codec.ErrSignerMismatch.Error()
		default:
			line.Valid = true
		}
		if !line.Valid {
			failed++
			logger.Warn("authorization failed verification", zap.String("id", rec.ID), zap.String("reason", line.Error))
		}
		if err := printJSON(line); err != nil {
			return err
		}
	}

	if id != "" && checked == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	logger.Info("verification complete", zap.Int("checked", checked), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d authorizations failed verification", failed, checked)
	}
	return nil
}

func recoverRecord(rec model.AuthorizationRecord) (common.Address, error) {
	signed, err := codec.FromRecord(rec)
	if err != nil {
		return common.Address{}, err
	}
	return signed.Recover()
}
