package authkit

import (
	"strings"
	"time"
)

// DefaultPublicPathPrefixes bypass the request authenticator.
var DefaultPublicPathPrefixes = []string{
	"/swagger-ui",
	"/v3/api-docs",
	"/swagger-resources",
	"/docs",
	"/auth",
}

// ServerConfig configures token issuance, TTLs, and the authenticator gate.
type ServerConfig struct {
	JWTSigningKey      []byte
	JWTIssuer          string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	StoreTimeout       time.Duration
	PublicPathPrefixes []string
}

// IsPublicPath reports whether the path skips bearer token inspection. A prefix matches whole
// path segments only, so "/auth" covers "/auth" and "/auth/login" but not "/authors".
func (configuration ServerConfig) IsPublicPath(path string) bool {
	for _, prefix := range configuration.PublicPathPrefixes {
		prefix = strings.TrimSuffix(prefix, "/")
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
