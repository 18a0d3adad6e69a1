package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/config"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/submissions"
)

/*
Server exposes the verifying service over HTTP.

Submission Flow:
  POST /submissions:
    - Request: { data, signature, signerAddress, signedMessage }
    - Verifies signature, trust list membership, message format and freshness
    - Response: { success, message, data: { submissionId, signerAddress, timestamp } }
    - 200 when accepted, 400 with success=false otherwise

  GET /submissions[?signer=0x...]:
    - Returns the ledger in acceptance order, optionally for one signer

  DELETE /submissions:
    - Clears the ledger (admin)

  POST /typed-data/verify:
    - Request: { domain, types, value, signature, expectedAddress }
    - Response: VerificationResult; typed data is not recorded

Trust List:
  GET /trusted                  list trusted addresses
  POST /trusted {address}       add an address (admin)
  DELETE /trusted?address=0x..  remove an address (admin)

Ledger Digest:
  GET /ledger/root              merkle root over the ledger in order
  GET /ledger/proof?index=N     inclusion proof for record N

Operations:
  GET /health, GET /metrics

Admin routes require "Authorization: Bearer <admin token>" and are
refused with 403 when the server has no admin token.

Every route is rate limited per client IP. X-Forwarded-For and X-Real-IP
are honoured only from configured trusted proxies.
*/

const (
	maxRequestBodyBytes = 1 << 20
	readHeaderTimeout   = 10 * time.Second
)

// Server handles HTTP requests for the submission verifier
type Server struct {
	logger     *zap.Logger
	service    *submissions.Service
	httpServer *http.Server
	limiter    *IPRateLimiter
	proxies    *trustedProxies
	adminToken string
}

// NewServer creates a new server instance
func NewServer(service *submissions.Service, cfg *config.ServerConfig, logger *zap.Logger) (*Server, error) {
	proxies, err := newTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:     logger,
		service:    service,
		limiter:    NewIPRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		proxies:    proxies,
		adminToken: cfg.AdminToken,
	}
	if s.adminToken == "" {
		logger.Sugar().Warnw("No admin token configured, trust list and ledger mutations are disabled")
	}

	mux := http.NewServeMux()

	// Submission endpoints
	mux.HandleFunc("/submissions", s.handleSubmissions)
	mux.HandleFunc("/typed-data/verify", s.handleTypedDataVerify)

	// Trust list endpoint
	mux.HandleFunc("/trusted", s.handleTrusted)

	// Ledger digest endpoints
	mux.HandleFunc("/ledger/root", s.handleLedgerRoot)
	mux.HandleFunc("/ledger/proof", s.handleLedgerProof)

	// Operational endpoints
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	handler := instrumentMiddleware(mux,
		rateLimitMiddleware(s.limiter, s.proxies,
			bodySizeLimitMiddleware(maxRequestBodyBytes, mux),
		),
	)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
