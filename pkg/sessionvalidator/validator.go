package sessionvalidator

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return systemClock{}
}

// Config configures the Validator.
type Config struct {
	SigningKey []byte
	Issuer     string
	Clock      Clock
}

// DefaultContextKey is used by GinMiddleware when no explicit key is provided.
const DefaultContextKey = "auth_claims"

// Token kinds carried in the "kind" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

const bearerPrefix = "Bearer "

// Sentinel errors exposed by the validator.
var (
	ErrMissingSigningKey = errors.New("session.validator.missing_signing_key")
	ErrMissingIssuer     = errors.New("session.validator.missing_issuer")
	ErrMissingToken      = errors.New("session.validator.missing_token")
	ErrTokenMalformed    = errors.New("session.validator.malformed")
	ErrTokenExpired      = errors.New("session.validator.expired")
	ErrTokenBadSignature = errors.New("session.validator.bad_signature")
)

// Validator verifies bearer tokens minted with a shared HS256 key.
type Validator struct {
	signingKey []byte
	issuer     string
	clock      Clock
}

// Claims represent the payload embedded inside issued tokens.
type Claims struct {
	Role string `json:"role"`
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// GetSubjectID returns the subject identifier.
func (claims *Claims) GetSubjectID() string {
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// GetRole returns the role carried by the token.
func (claims *Claims) GetRole() string {
	if claims == nil {
		return ""
	}
	return claims.Role
}

// GetIssuedAtTime returns the issuance timestamp.
func (claims *Claims) GetIssuedAtTime() time.Time {
	if claims == nil || claims.IssuedAt == nil {
		return time.Time{}
	}
	return claims.IssuedAt.Time
}

// GetExpiresAtTime returns the expiry timestamp.
func (claims *Claims) GetExpiresAtTime() time.Time {
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// New constructs a Validator after validating the supplied configuration.
func New(configuration Config) (*Validator, error) {
	if len(configuration.SigningKey) == 0 {
		return nil, fmt.Errorf("session.validator.new: %w", ErrMissingSigningKey)
	}
	if strings.TrimSpace(configuration.Issuer) == "" {
		return nil, fmt.Errorf("session.validator.new: %w", ErrMissingIssuer)
	}
	clock := configuration.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Validator{
		signingKey: configuration.SigningKey,
		issuer:     configuration.Issuer,
		clock:      clock,
	}, nil
}

// ValidateToken verifies signature, issuer, and expiry and returns the parsed claims.
func (validator *Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := validator.parse(tokenString, true)
	if err != nil {
		return nil, fmt.Errorf("session.validator.validate_token: %w", err)
	}
	return claims, nil
}

// DecodeToken verifies the signature but accepts tokens past their expiry.
// Accessors use it to read the lifetime of tokens that may already be stale.
func (validator *Validator) DecodeToken(tokenString string) (*Claims, error) {
	claims, err := validator.parse(tokenString, false)
	if err != nil {
		return nil, fmt.Errorf("session.validator.decode_token: %w", err)
	}
	return claims, nil
}

func (validator *Validator) parse(tokenString string, validateClaims bool) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingToken
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time {
			return validator.clock.Now()
		}),
	}
	if validateClaims {
		options = append(options, jwt.WithExpirationRequired(), jwt.WithIssuer(validator.issuer))
	} else {
		options = append(options, jwt.WithoutClaimsValidation())
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &Claims{}, func(parsed *jwt.Token) (interface{}, error) {
		return validator.signingKey, nil
	}, options...)
	if parseErr != nil {
		return nil, classify(parseErr)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return nil, ErrTokenMalformed
	}
	claims, ok := parsedToken.Claims.(*Claims)
	if !ok || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}
	if !validateClaims && claims.Issuer != validator.issuer {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func classify(parseErr error) error {
	switch {
	case errors.Is(parseErr, jwt.ErrTokenSignatureInvalid), errors.Is(parseErr, jwt.ErrTokenUnverifiable):
		return ErrTokenBadSignature
	case errors.Is(parseErr, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(headerValue string) (string, bool) {
	if len(headerValue) < len(bearerPrefix) || !strings.EqualFold(headerValue[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(headerValue[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// ValidateRequest reads the bearer token from the request and validates it.
func (validator *Validator) ValidateRequest(request *http.Request) (*Claims, error) {
	if request == nil {
		return nil, fmt.Errorf("session.validator.validate_request: %w", ErrMissingToken)
	}
	token, ok := BearerToken(request.Header.Get("Authorization"))
	if !ok {
		return nil, fmt.Errorf("session.validator.validate_request: %w", ErrMissingToken)
	}
	return validator.ValidateToken(token)
}

// GinMiddleware returns a Gin middleware that validates access tokens and injects claims.
// It consults no revocation state.
func (validator *Validator) GinMiddleware(contextKey string) gin.HandlerFunc {
	if strings.TrimSpace(contextKey) == "" {
		contextKey = DefaultContextKey
	}
	return func(contextGin *gin.Context) {
		claims, err := validator.ValidateRequest(contextGin.Request)
		if err != nil || claims.Kind != KindAccess {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Set(contextKey, claims)
		contextGin.Next()
	}
}
