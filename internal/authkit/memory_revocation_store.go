package authkit

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

// MemoryRevocationStore is an in-process RevocationStore intended for tests and single-node dev runs.
type MemoryRevocationStore struct {
	mutex   sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	Value     string
	ExpiresAt time.Time
}

// NewMemoryRevocationStore creates an empty in-memory store.
func NewMemoryRevocationStore(clock Clock) *MemoryRevocationStore {
	now := time.Now
	if clock != nil {
		now = clock.Now
	}
	return &MemoryRevocationStore{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

// Whitelist records refreshToken as the subject's single live refresh token.
func (store *MemoryRevocationStore) Whitelist(ctx context.Context, subjectID string, refreshToken string, ttl time.Duration) error {
	store.set(whitelistKeyPrefix+subjectID, tokenDigest(refreshToken), ttl)
	return nil
}

// IsRefreshValid compares the presented token against the subject's whitelist entry.
func (store *MemoryRevocationStore) IsRefreshValid(ctx context.Context, subjectID string, refreshToken string) (bool, error) {
	stored, ok := store.get(whitelistKeyPrefix + subjectID)
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(tokenDigest(refreshToken))) == 1, nil
}

// Blacklist marks the token revoked for ttl.
func (store *MemoryRevocationStore) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	store.set(blacklistKeyPrefix+tokenDigest(token), "revoked", ttl)
	return nil
}

// IsBlacklisted reports whether a live blacklist entry exists for the token.
func (store *MemoryRevocationStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	_, ok := store.get(blacklistKeyPrefix + tokenDigest(token))
	return ok, nil
}

// ForgetRefresh deletes the subject's whitelist entry.
func (store *MemoryRevocationStore) ForgetRefresh(ctx context.Context, subjectID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.entries, whitelistKeyPrefix+subjectID)
	return nil
}

func (store *MemoryRevocationStore) set(key string, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.purgeExpiredLocked()
	store.entries[key] = memoryEntry{Value: value, ExpiresAt: store.now().Add(ttl)}
}

func (store *MemoryRevocationStore) get(key string) (string, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entry, ok := store.entries[key]
	if !ok {
		return "", false
	}
	if !store.now().Before(entry.ExpiresAt) {
		delete(store.entries, key)
		return "", false
	}
	return entry.Value, true
}

func (store *MemoryRevocationStore) purgeExpiredLocked() {
	if len(store.entries) == 0 {
		return
	}
	now := store.now()
	for key, entry := range store.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(store.entries, key)
		}
	}
}
