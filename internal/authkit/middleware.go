package authkit

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/ticketauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

// RequestAuthenticator inspects bearer tokens once per request and attaches a principal.
// It makes no allow/deny decision for requests that carry no token; route policies do that.
type RequestAuthenticator struct {
	configuration ServerConfig
	codec         *TokenCodec
	revocations   RevocationStore
	logger        *zap.Logger
	metrics       MetricsRecorder
}

// NewRequestAuthenticator constructs the gate.
func NewRequestAuthenticator(configuration ServerConfig, codec *TokenCodec, revocations RevocationStore, logger *zap.Logger, metrics MetricsRecorder) *RequestAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &RequestAuthenticator{
		configuration: configuration,
		codec:         codec,
		revocations:   revocations,
		logger:        logger,
		metrics:       metrics,
	}
}

// Middleware returns the gin handler implementing the gate.
func (authenticator *RequestAuthenticator) Middleware() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		if authenticator.configuration.IsPublicPath(contextGin.Request.URL.Path) {
			contextGin.Next()
			return
		}
		token, present := sessionvalidator.BearerToken(contextGin.GetHeader("Authorization"))
		if !present {
			contextGin.Next()
			return
		}

		claims, validateErr := authenticator.codec.Validate(token)
		if validateErr != nil {
			authenticator.reject(contextGin, http.StatusUnauthorized, validateErr.Error(), "auth.gate.invalid_token")
			return
		}
		if TokenKind(claims.Kind) != TokenKindAccess {
			authenticator.reject(contextGin, http.StatusUnauthorized, ErrTokenWrongKind.Error(), "auth.gate.wrong_kind")
			return
		}

		storeCtx := contextGin.Request.Context()
		if authenticator.configuration.StoreTimeout > 0 {
			var cancel context.CancelFunc
			storeCtx, cancel = context.WithTimeout(storeCtx, authenticator.configuration.StoreTimeout)
			defer cancel()
		}
		blacklisted, lookupErr := authenticator.revocations.IsBlacklisted(storeCtx, token)
		if lookupErr != nil {
			authenticator.metrics.Increment(EventGateStoreFailure)
			authenticator.logger.Error("revocation lookup failed",
				zap.String("code", "auth.gate.store_unavailable"),
				zap.Error(lookupErr))
			contextGin.Header("Content-Type", "text/plain; charset=utf-8")
			contextGin.String(http.StatusServiceUnavailable, ErrStoreUnavailable.Error())
			contextGin.Abort()
			return
		}
		if blacklisted {
			authenticator.reject(contextGin, http.StatusUnauthorized, "token revoked", "auth.gate.blacklisted")
			return
		}

		role, ok := ParseRole(claims.Role)
		if !ok {
			authenticator.reject(contextGin, http.StatusUnauthorized, ErrTokenMalformed.Error(), "auth.gate.unknown_role")
			return
		}
		principal := Principal{SubjectID: claims.Subject, Role: role}
		contextGin.Set(PrincipalContextKey, principal)
		contextGin.Request = contextGin.Request.WithContext(ContextWithPrincipal(contextGin.Request.Context(), principal))
		contextGin.Next()
	}
}

func (authenticator *RequestAuthenticator) reject(contextGin *gin.Context, status int, message string, code string) {
	authenticator.metrics.Increment(EventGateRejected)
	authenticator.logger.Debug("request rejected",
		zap.String("code", code),
		zap.String("path", contextGin.Request.URL.Path))
	contextGin.String(status, message)
	contextGin.Abort()
}

// RequirePrincipal aborts with 401 unless the authenticator attached a principal.
func RequirePrincipal() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		if _, ok := PrincipalFromGin(contextGin); !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Next()
	}
}

// RequireRole aborts with 401 without a principal and 403 when its role is not allowed.
func RequireRole(allowed ...Role) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		principal, ok := PrincipalFromGin(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if !slices.Contains(allowed, principal.Role) {
			contextGin.AbortWithStatus(http.StatusForbidden)
			return
		}
		contextGin.Next()
	}
}
