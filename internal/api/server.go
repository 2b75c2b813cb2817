// Package api exposes authorization verification and relaying over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"u3relay/internal/codec"
	"u3relay/internal/model"
	"u3relay/internal/storage"
	"u3relay/internal/wire"
)

// Submitter relays a verified authorization. *relayer.Relayer satisfies it.
type Submitter interface {
	Submit(ctx context.Context, signed codec.SignedPayload, expected common.Address) (model.RelayResult, error)
}

// Server handles the HTTP intake. Submitter and Ledger are optional.
type Server struct {
	ChainID   uint64
	Submitter Submitter
	Ledger    storage.Ledger
	Logger    *zap.Logger
	// RelayTimeout bounds one relay request, receipt wait included.
	RelayTimeout time.Duration

	now func() time.Time
}

type authorizationRequest struct {
	Variant      string `json:"variant" binding:"required"`
	NonceBinding string `json:"nonce_binding"`
	Payload      string `json:"payload" binding:"required"`
	Hash         string `json:"hash"`
	// Signature is the flat 65-byte form; V, R and S are used when it is empty.
	Signature string `json:"signature"`
	V         uint8  `json:"v"`
	R         string `json:"r"`
	S         string `json:"s"`
	// Signer, when set, must equal the recovered address.
	Signer string `json:"signer"`
}

type relayResponse struct {
	Authorization model.AuthorizationRecord `json:"authorization"`
	Result        model.RelayResult         `json:"result"`
}

// NewRouter builds the gin engine.
func NewRouter(s *Server) *gin.Engine {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.RelayTimeout <= 0 {
		s.RelayTimeout = 3 * time.Minute
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"chain_id": s.ChainID,
			"relay":    s.Submitter != nil,
		})
	})

	v1 := r.Group("/v1")
	v1.POST("/verify", s.handleVerify)
	v1.POST("/relay", s.handleRelay)
	return r
}

func (s *Server) handleVerify(c *gin.Context) {
	record, _, ok := s.bindAuthorization(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleRelay(c *gin.Context) {
	if s.Submitter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "relaying is not configured"})
		return
	}
	record, signed, ok := s.bindAuthorization(c)
	if !ok {
		return
	}
	record.ID = uuid.NewString()

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.RelayTimeout)
	defer cancel()

	if s.Ledger != nil {
		if err := s.Ledger.UpsertAuthorizations(ctx, []model.AuthorizationRecord{record}); err != nil {
			s.Logger.Error("store authorization failed", zap.String("id", record.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store authorization failed"})
			return
		}
	}

	signer := common.HexToAddress(record.Signer)
	result, err := s.Submitter.Submit(ctx, signed, signer)
	if err != nil {
		s.Logger.Warn("relay failed", zap.String("id", record.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "authorization_id": record.ID})
		return
	}
	result.AuthorizationID = record.ID

	if s.Ledger != nil {
		if err := s.Ledger.SaveRelayResult(ctx, result); err != nil {
			s.Logger.Error("store relay result failed", zap.String("id", record.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, relayResponse{Authorization: record, Result: result})
}

// bindAuthorization decodes and verifies the posted authorization, writing the error response
// itself when it fails.
func (s *Server) bindAuthorization(c *gin.Context) (model.AuthorizationRecord, codec.SignedPayload, bool) {
	var req authorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return model.AuthorizationRecord{}, codec.SignedPayload{}, false
	}

	signed, err := req.signedPayload()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return model.AuthorizationRecord{}, codec.SignedPayload{}, false
	}

	signer, err := signed.Recover()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return model.AuthorizationRecord{}, codec.SignedPayload{}, false
	}
	if req.Signer != "" {
		expected, err := wire.ParseAddress(req.Signer)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return model.AuthorizationRecord{}, codec.SignedPayload{}, false
		}
		if expected != signer {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":     codec.ErrSignerMismatch.Error(),
				"recovered": signer.Hex(),
				"expected":  expected.Hex(),
			})
			return model.AuthorizationRecord{}, codec.SignedPayload{}, false
		}
	}

	if signed.Hash == (common.Hash{}) {
		signed.Hash, err = signed.SigningHash()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return model.AuthorizationRecord{}, codec.SignedPayload{}, false
		}
	}
	record, err := signed.Record("", s.ChainID, signer, s.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return model.AuthorizationRecord{}, codec.SignedPayload{}, false
	}
	return record, signed, true
}

func (r authorizationRequest) signedPayload() (codec.SignedPayload, error) {
	binding := r.NonceBinding
	if binding == "" {
		binding = codec.NonceEmbedded.String()
	}
	rec := model.AuthorizationRecord{
		Variant:      r.Variant,
		NonceBinding: binding,
		Payload:      r.Payload,
		Hash:         r.Hash,
		V:            r.V,
		R:            r.R,
		S:            r.S,
	}
	if r.Signature != "" {
		sig, err := codec.ParseSignatureHex(r.Signature)
		if err != nil {
			return codec.SignedPayload{}, err
		}
		rec.V, rec.R, rec.S = sig.V, sig.R.Hex(), sig.S.Hex()
	}
	return codec.FromRecord(rec)
}

func statusFor(err error) int {
	if errors.Is(err, codec.ErrHashMismatch) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
