package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/netadmind/netadmind/internal/shared"
)

// AuditRecorder is the slice of the audit log the auth flow needs.
type AuditRecorder interface {
	RecordAuth(ctx context.Context, username, ip, status string, details map[string]any)
}

// FailureCounter receives failed-login signals, typically Prometheus backed.
type FailureCounter interface {
	LoginFailure()
}

// TokenPair is the login and refresh response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Service wraps the login and refresh flows.
type Service struct {
	verifier *CredentialVerifier
	codec    *TokenCodec
	throttle *Throttle
	audit    AuditRecorder
	metrics  FailureCounter
	logger   *slog.Logger
}

// NewService constructs an auth Service. audit and metrics may be nil.
func NewService(verifier *CredentialVerifier, codec *TokenCodec, throttle *Throttle, audit AuditRecorder, metrics FailureCounter, logger *slog.Logger) *Service {
	return &Service{
		verifier: verifier,
		codec:    codec,
		throttle: throttle,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}
}

// Login verifies credentials, derives the role from the directory groups and
// mints a fresh access/refresh pair.
func (s *Service) Login(ctx context.Context, username, password, ip string) (TokenPair, error) {
	if !s.throttle.Allow(ctx, username, ip) {
		s.logger.Warn("login throttled", slog.String("username", username), slog.String("ip", ip))
		return TokenPair{}, shared.ErrRateLimited
	}

	principal, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		s.throttle.RecordFailure(ctx, username, ip)
		if s.metrics != nil {
			s.metrics.LoginFailure()
		}
		s.recordAuth(ctx, username, ip, "failure", nil)
		return TokenPair{}, err
	}
	s.throttle.Reset(ctx, username, ip)

	identity := Identity{
		Username:    principal.Username,
		Role:        ResolveRole(principal.Groups),
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
	}
	pair, err := s.mintPair(identity)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger.Info("user logged in", slog.String("username", username), slog.String("role", string(identity.Role)))
	s.recordAuth(ctx, username, ip, "success", map[string]any{"role": string(identity.Role)})
	return pair, nil
}

// Refresh mints a new token pair from a live refresh token. Role, email and
// display name are re-derived from the directory rather than copied from any
// previous token, so a directory role change takes effect here. The old
// refresh token stays valid until its own expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	principal, err := s.verifier.Lookup(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, shared.ErrDirectoryUnavailable) {
			return TokenPair{}, err
		}
		s.logger.Warn("refresh subject no longer resolvable", slog.String("username", claims.Subject))
		return TokenPair{}, shared.ErrInvalidToken
	}

	identity := Identity{
		Username:    principal.Username,
		Role:        ResolveRole(principal.Groups),
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
	}
	return s.mintPair(identity)
}

func (s *Service) mintPair(id Identity) (TokenPair, error) {
	access, err := s.codec.MintAccess(id)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.MintRefresh(id.Username)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.codec.AccessTTL().Seconds()),
	}, nil
}

func (s *Service) recordAuth(ctx context.Context, username, ip, status string, details map[string]any) {
	if s.audit != nil {
		s.audit.RecordAuth(ctx, username, ip, status, details)
	}
}
