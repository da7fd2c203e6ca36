package security

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/ratelimit"
)

// Reason identifies why a request was rejected.
type Reason string

// Rejection reasons produced by Verify.
const (
	ReasonInvalidDomain    Reason = "invalid domain"
	ReasonRateLimited      Reason = "rate limit exceeded"
	ReasonMissingHeaders   Reason = "missing authentication headers"
	ReasonInvalidTimestamp Reason = "invalid timestamp format"
	ReasonInvalidSignature Reason = "invalid API signature"
	ReasonInternal         Reason = "authentication error"
)

// Result is the outcome of request verification.
type Result struct {
	OK     bool
	Reason Reason
	// Remaining carries the caller's remaining rate-limit quota when
	// Reason is ReasonRateLimited.
	Remaining int
}

// Request carries the fields of an inbound call that verification
// inspects.
type Request struct {
	Method          string
	Path            string
	TimestampHeader string
	SignatureHeader string
	Host            string
	ClientID        string
}

// Authenticator verifies that inbound requests were signed by a holder
// of the shared secret within the validity window, checks the caller's
// host against the allow-list, and applies per-client rate limiting.
type Authenticator struct {
	secret       string
	window       time.Duration
	allowedHosts []string
	production   bool
	limiter      ratelimit.Window

	now func() time.Time
}

// Config holds authenticator configuration.
type Config struct {
	Secret string
	// ValidityWindow bounds |now - timestamp| for accepted signatures.
	ValidityWindow time.Duration
	AllowedHosts   []string
	// Production turns on domain checking and makes the auth headers
	// mandatory. When false, requests without auth headers pass: this is
	// a deliberate development-mode escape hatch, set it explicitly.
	Production bool
}

// NewAuthenticator creates an authenticator backed by the given rate
// limit window.
func NewAuthenticator(cfg Config, limiter ratelimit.Window) *Authenticator {
	window := cfg.ValidityWindow
	if window <= 0 {
		window = 300 * time.Second
	}
	return &Authenticator{
		secret:       cfg.Secret,
		window:       window,
		allowedHosts: cfg.AllowedHosts,
		production:   cfg.Production,
		limiter:      limiter,
		now:          time.Now,
	}
}

// Verify checks a request and returns whether it may proceed. Checks run
// in order and short-circuit on the first failure: domain allow-list
// (production only), rate limit, header presence (requests without auth
// headers are let through outside production), timestamp parsing, and
// finally signature verification with replay-window enforcement. Any
// internal failure rejects the request rather than letting it through.
func (a *Authenticator) Verify(ctx context.Context, req Request) Result {
	if a.production && !MatchHost(a.allowedHosts, req.Host) {
		a.logRejection(req, ReasonInvalidDomain)
		return Result{Reason: ReasonInvalidDomain}
	}

	if !a.limiter.Allow(ctx, req.ClientID) {
		remaining := a.limiter.Remaining(ctx, req.ClientID)
		logger.WithFields(logrus.Fields{
			"client":    req.ClientID,
			"method":    req.Method,
			"path":      req.Path,
			"remaining": remaining,
		}).Warn("Rate limit exceeded")
		return Result{Reason: ReasonRateLimited, Remaining: remaining}
	}

	if req.TimestampHeader == "" || req.SignatureHeader == "" {
		if a.production {
			a.logRejection(req, ReasonMissingHeaders)
			return Result{Reason: ReasonMissingHeaders}
		}
		logger.WithField("client", req.ClientID).Debug("Request without authentication in development mode")
		return Result{OK: true}
	}

	// An unset secret cannot verify anything; fail closed rather than
	// accept signatures minted against an empty key.
	if a.secret == "" {
		a.logRejection(req, ReasonInternal)
		return Result{Reason: ReasonInternal}
	}

	timestamp, err := strconv.ParseInt(req.TimestampHeader, 10, 64)
	if err != nil {
		a.logRejection(req, ReasonInvalidTimestamp)
		return Result{Reason: ReasonInvalidTimestamp}
	}

	if !VerifySignature(a.secret, req.Method, req.Path, timestamp, req.SignatureHeader, a.window, a.now()) {
		a.logRejection(req, ReasonInvalidSignature)
		return Result{Reason: ReasonInvalidSignature}
	}

	logger.WithFields(logrus.Fields{
		"client": req.ClientID,
		"method": req.Method,
		"path":   req.Path,
	}).Debug("Authenticated request")
	return Result{OK: true}
}

// Remaining returns the caller's remaining rate-limit quota.
func (a *Authenticator) Remaining(ctx context.Context, clientID string) int {
	return a.limiter.Remaining(ctx, clientID)
}

// Production reports whether the authenticator runs with production
// enforcement. Callers use it to decide whether a rejection blocks the
// request or is only logged.
func (a *Authenticator) Production() bool {
	return a.production
}

func (a *Authenticator) logRejection(req Request, reason Reason) {
	logger.WithFields(logrus.Fields{
		"client": req.ClientID,
		"method": req.Method,
		"path":   req.Path,
		"host":   req.Host,
		"reason": string(reason),
	}).Warn("Rejected API request")
}
