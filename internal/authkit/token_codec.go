package authkit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tyemirov/ticketauth/pkg/sessionvalidator"
)

// Clock provides the current time.
type Clock = sessionvalidator.Clock

// TokenKind distinguishes short-lived access tokens from long-lived refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = sessionvalidator.KindAccess
	TokenKindRefresh TokenKind = sessionvalidator.KindRefresh
)

// Claims are the decoded contents of an issued token.
type Claims = sessionvalidator.Claims

// Token is an issued, immutable bearer token.
type Token struct {
	Value     string
	Kind      TokenKind
	SubjectID string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var errEmptySubject = errors.New("subject must be non-empty")

// TokenCodec mints tokens and decodes them through a sessionvalidator.Validator.
type TokenCodec struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      Clock
	validator  *sessionvalidator.Validator
}

// NewTokenCodec constructs a codec from the server configuration.
func NewTokenCodec(configuration ServerConfig, clock Clock) (*TokenCodec, error) {
	if configuration.AccessTTL <= 0 || configuration.RefreshTTL <= 0 {
		return nil, fmt.Errorf("jwt.codec.new: token ttl must be greater than zero")
	}
	if configuration.RefreshTTL <= configuration.AccessTTL {
		return nil, fmt.Errorf("jwt.codec.new: refresh ttl must exceed access ttl")
	}
	if clock == nil {
		clock = sessionvalidator.SystemClock()
	}
	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: configuration.JWTSigningKey,
		Issuer:     configuration.JWTIssuer,
		Clock:      clock,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt.codec.new: %w", err)
	}
	return &TokenCodec{
		signingKey: configuration.JWTSigningKey,
		issuer:     configuration.JWTIssuer,
		accessTTL:  configuration.AccessTTL,
		refreshTTL: configuration.RefreshTTL,
		clock:      clock,
		validator:  validator,
	}, nil
}

// IssueAccessToken mints a short-lived access token.
func (codec *TokenCodec) IssueAccessToken(subjectID string, role Role) (Token, error) {
	return codec.mint(subjectID, role, TokenKindAccess, codec.accessTTL)
}

// IssueRefreshToken mints a long-lived refresh token.
func (codec *TokenCodec) IssueRefreshToken(subjectID string, role Role) (Token, error) {
	return codec.mint(subjectID, role, TokenKindRefresh, codec.refreshTTL)
}

func (codec *TokenCodec) mint(subjectID string, role Role, kind TokenKind, ttl time.Duration) (Token, error) {
	if strings.TrimSpace(subjectID) == "" {
		return Token{}, fmt.Errorf("jwt.mint.failure: %w", errEmptySubject)
	}
	issuedAt := codec.clock.Now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(role),
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    codec.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(codec.signingKey)
	if err != nil {
		return Token{}, fmt.Errorf("jwt.mint.failure: %w", err)
	}
	return Token{
		Value:     signed,
		Kind:      kind,
		SubjectID: subjectID,
		Role:      role,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate verifies integrity and expiry. It has no side effects.
func (codec *TokenCodec) Validate(tokenString string) (*Claims, error) {
	claims, err := codec.validator.ValidateToken(tokenString)
	if err != nil {
		return nil, normalizeTokenError(err)
	}
	return claims, nil
}

// ExpiresAt returns the expiry instant of a token whose signature verifies, expired or not.
func (codec *TokenCodec) ExpiresAt(tokenString string) (time.Time, error) {
	claims, err := codec.decode(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	return claims.GetExpiresAtTime(), nil
}

// SubjectOf returns the subject identifier of a token.
func (codec *TokenCodec) SubjectOf(tokenString string) (string, error) {
	claims, err := codec.decode(tokenString)
	if err != nil {
		return "", err
	}
	return claims.GetSubjectID(), nil
}

// RoleOf returns the role of a token.
func (codec *TokenCodec) RoleOf(tokenString string) (Role, error) {
	claims, err := codec.decode(tokenString)
	if err != nil {
		return "", err
	}
	role, ok := ParseRole(claims.GetRole())
	if !ok {
		return "", fmt.Errorf("jwt.codec.role: %w", ErrTokenMalformed)
	}
	return role, nil
}

// RemainingLifetime returns how long the token stays acceptable; zero or negative once expired.
func (codec *TokenCodec) RemainingLifetime(tokenString string) (time.Duration, error) {
	_, remaining, err := codec.Inspect(tokenString)
	return remaining, err
}

// Inspect decodes a token whose signature verifies, expired or not, and returns its claims
// together with the remaining lifetime.
func (codec *TokenCodec) Inspect(tokenString string) (*Claims, time.Duration, error) {
	claims, err := codec.decode(tokenString)
	if err != nil {
		return nil, 0, err
	}
	return claims, claims.GetExpiresAtTime().Sub(codec.clock.Now()), nil
}

func (codec *TokenCodec) decode(tokenString string) (*Claims, error) {
	claims, err := codec.validator.DecodeToken(tokenString)
	if err != nil {
		return nil, normalizeTokenError(err)
	}
	return claims, nil
}

// An empty token decodes as malformed rather than leaking the validator's missing-token sentinel.
func normalizeTokenError(err error) error {
	if errors.Is(err, sessionvalidator.ErrMissingToken) {
		return fmt.Errorf("jwt.codec: %w", ErrTokenMalformed)
	}
	return fmt.Errorf("jwt.codec: %w", err)
}
