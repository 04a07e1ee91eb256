package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/netadmind/netadmind/internal/shared"
)

// TokenKind discriminates access tokens from refresh tokens. A consumer
// expecting one kind must reject the other.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims is the payload carried inside a signed token. Refresh tokens carry
// only the subject and kind.
type Claims struct {
	Role        Role      `json:"role,omitempty"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"cn,omitempty"`
	Kind        TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenCodec mints and verifies HS256-signed tokens with a single shared
// secret fixed at process start.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenCodec constructs a codec.
func NewTokenCodec(secret string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: signing secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("auth: token TTLs must be positive")
	}
	return &TokenCodec{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration {
	return c.accessTTL
}

// MintAccess signs a new access token for the identity.
func (c *TokenCodec) MintAccess(id Identity) (string, error) {
	return c.mint(Claims{
		Role:        id.Role,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		Kind:        KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(c.accessTTL)),
		},
	})
}

// MintRefresh signs a new refresh token carrying only the subject.
func (c *TokenCodec) MintRefresh(username string) (string, error) {
	return c.mint(Claims{
		Kind: KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(c.refreshTTL)),
		},
	})
}

func (c *TokenCodec) mint(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string, enforcing signature, strict
// UTC expiry and the expected kind. Every failure collapses into
// shared.ErrInvalidToken so callers cannot distinguish the cause.
func (c *TokenCodec) Verify(tokenString string, expected TokenKind) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return time.Now().UTC() }),
	)
	if err != nil {
		return Claims{}, shared.ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, shared.ErrInvalidToken
	}
	if claims.Subject == "" || claims.Kind != expected {
		return Claims{}, shared.ErrInvalidToken
	}
	return *claims, nil
}
