package authkit

import (
	"context"
	"time"
)

// CredentialRecord is the persisted identity consumed by the session service.
type CredentialRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Role         Role
}

// CredentialStore persists and retrieves credential records.
type CredentialStore interface {
	// FindByEmail returns ErrCredentialNotFound when no record matches.
	FindByEmail(ctx context.Context, email string) (CredentialRecord, error)
	// FindByID returns ErrCredentialNotFound when no record matches.
	FindByID(ctx context.Context, id string) (CredentialRecord, error)
	// Save assigns an ID and returns ErrEmailTaken on a duplicate email.
	Save(ctx context.Context, record CredentialRecord) (CredentialRecord, error)
}

// PasswordHasher hashes and verifies plaintext passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, hash string) bool
}

// RevocationStore tracks the per-subject refresh whitelist and the global token blacklist.
// Every method is a single-key operation; backend failures wrap ErrStoreUnavailable.
type RevocationStore interface {
	// Whitelist overwrites any prior refresh token recorded for the subject.
	Whitelist(ctx context.Context, subjectID string, refreshToken string, ttl time.Duration) error
	// IsRefreshValid reports whether refreshToken is the subject's current whitelisted token.
	IsRefreshValid(ctx context.Context, subjectID string, refreshToken string) (bool, error)
	// Blacklist marks the token revoked until ttl elapses. A non-positive ttl writes nothing.
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	// IsBlacklisted reports whether the token has been revoked and the record has not lapsed.
	IsBlacklisted(ctx context.Context, token string) (bool, error)
	// ForgetRefresh deletes the subject's whitelist entry; absent entries are not an error.
	ForgetRefresh(ctx context.Context, subjectID string) error
}

const (
	whitelistKeyPrefix = "whitelist:"
	blacklistKeyPrefix = "blacklist:"
)
