package authkit

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	blacklistMarker     = "revoked"
	defaultRedisTimeout = 2 * time.Second
)

// RedisOptions configures the Redis connection backing the revocation store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// NewRedisClient dials Redis and verifies connectivity with PING.
func NewRedisClient(ctx context.Context, options RedisOptions) (*redis.Client, error) {
	if strings.TrimSpace(options.Addr) == "" {
		return nil, fmt.Errorf("revocation_store.redis.open: %w", errors.New("empty address"))
	}
	if options.Timeout <= 0 {
		options.Timeout = defaultRedisTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:         options.Addr,
		Password:     options.Password,
		DB:           options.DB,
		DialTimeout:  options.Timeout,
		ReadTimeout:  options.Timeout,
		WriteTimeout: options.Timeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, options.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("revocation_store.redis.ping: %w: %v", ErrStoreUnavailable, err)
	}
	return client, nil
}

// RedisRevocationStore keeps whitelist and blacklist entries as TTL'd Redis strings.
type RedisRevocationStore struct {
	client    redis.UniversalClient
	keyPrefix string
	timeout   time.Duration
}

// NewRedisRevocationStore wraps a Redis client. keyPrefix namespaces every key; timeout bounds each call.
func NewRedisRevocationStore(client redis.UniversalClient, keyPrefix string, timeout time.Duration) *RedisRevocationStore {
	return &RedisRevocationStore{
		client:    client,
		keyPrefix: keyPrefix,
		timeout:   timeout,
	}
}

func (store *RedisRevocationStore) whitelistKey(subjectID string) string {
	return store.keyPrefix + whitelistKeyPrefix + subjectID
}

func (store *RedisRevocationStore) blacklistKey(token string) string {
	return store.keyPrefix + blacklistKeyPrefix + tokenDigest(token)
}

func (store *RedisRevocationStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if store.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, store.timeout)
}

// Whitelist upserts the subject's refresh token digest with the given TTL.
func (store *RedisRevocationStore) Whitelist(ctx context.Context, subjectID string, refreshToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	callCtx, cancel := store.bounded(ctx)
	defer cancel()
	if err := store.client.Set(callCtx, store.whitelistKey(subjectID), tokenDigest(refreshToken), ttl).Err(); err != nil {
		return fmt.Errorf("revocation_store.whitelist: %w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsRefreshValid compares the stored digest with the presented token.
func (store *RedisRevocationStore) IsRefreshValid(ctx context.Context, subjectID string, refreshToken string) (bool, error) {
	callCtx, cancel := store.bounded(ctx)
	defer cancel()
	stored, err := store.client.Get(callCtx, store.whitelistKey(subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("revocation_store.is_refresh_valid: %w: %v", ErrStoreUnavailable, err)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(tokenDigest(refreshToken))) == 1, nil
}

// Blacklist marks the token revoked for ttl.
func (store *RedisRevocationStore) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	callCtx, cancel := store.bounded(ctx)
	defer cancel()
	if err := store.client.Set(callCtx, store.blacklistKey(token), blacklistMarker, ttl).Err(); err != nil {
		return fmt.Errorf("revocation_store.blacklist: %w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsBlacklisted checks for the token's blacklist key.
func (store *RedisRevocationStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	callCtx, cancel := store.bounded(ctx)
	defer cancel()
	count, err := store.client.Exists(callCtx, store.blacklistKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation_store.is_blacklisted: %w: %v", ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

// ForgetRefresh deletes the subject's whitelist key.
func (store *RedisRevocationStore) ForgetRefresh(ctx context.Context, subjectID string) error {
	callCtx, cancel := store.bounded(ctx)
	defer cancel()
	if err := store.client.Del(callCtx, store.whitelistKey(subjectID)).Err(); err != nil {
		return fmt.Errorf("revocation_store.forget_refresh: %w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
