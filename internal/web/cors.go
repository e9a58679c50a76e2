package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const wildcardOrigin = "*"

var (
	errNoAllowedOrigins = errors.New("cors.no_allowed_origins")
	errMixedWildcard    = errors.New("cors.wildcard_with_explicit_origins")
	errInvalidOrigin    = errors.New("cors.invalid_origin")
)

// ConfigureCORS lets browser clients on other origins call the auth routes and the protected API.
// Tokens travel in the Authorization header, never in cookies, so the policy carries no
// credentials and a lone "*" opens the API to every origin.
func ConfigureCORS(logger *zap.Logger, allowedOrigins []string) (gin.HandlerFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Type", "WWW-Authenticate"},
		MaxAge:        12 * time.Hour,
	}

	origins, err := collectOrigins(logger, allowedOrigins)
	if err != nil {
		return nil, err
	}
	if len(origins) == 1 && origins[0] == wildcardOrigin {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config), nil
}

func collectOrigins(logger *zap.Logger, allowed []string) ([]string, error) {
	seen := make(map[string]struct{}, len(allowed))
	origins := make([]string, 0, len(allowed))
	wildcard := false
	for _, raw := range allowed {
		trimmed := strings.TrimSpace(raw)
		switch trimmed {
		case "":
			continue
		case wildcardOrigin:
			wildcard = true
			continue
		}
		origin, insecure, err := normalizeOrigin(trimmed)
		if err != nil {
			return nil, err
		}
		if _, duplicate := seen[origin]; duplicate {
			continue
		}
		if insecure {
			logger.Warn("plain http cors origin configured",
				zap.String("code", "cors.origin.insecure"),
				zap.String("origin", origin))
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}

	switch {
	case wildcard && len(origins) > 0:
		return nil, errMixedWildcard
	case wildcard:
		return []string{wildcardOrigin}, nil
	case len(origins) == 0:
		return nil, errNoAllowedOrigins
	}
	return origins, nil
}

// normalizeOrigin reduces an origin to scheme://host[:port] and reports plain http outside localhost.
func normalizeOrigin(raw string) (string, bool, error) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false, fmt.Errorf("%w: %s", errInvalidOrigin, raw)
	}
	if (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" {
		return "", false, fmt.Errorf("%w: %s is not a bare origin", errInvalidOrigin, raw)
	}
	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "https":
		return scheme + "://" + strings.ToLower(parsed.Host), false, nil
	case "http":
		hostname := parsed.Hostname()
		local := hostname == "localhost" || hostname == "127.0.0.1"
		return scheme + "://" + strings.ToLower(parsed.Host), !local, nil
	default:
		return "", false, fmt.Errorf("%w: %s uses unsupported scheme", errInvalidOrigin, raw)
	}
}
