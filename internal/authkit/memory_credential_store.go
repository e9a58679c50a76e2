package authkit

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// MemoryCredentialStore is a map-backed CredentialStore used for demo and local runs.
type MemoryCredentialStore struct {
	mutex      sync.Mutex
	byID       map[string]CredentialRecord
	byEmail    map[string]string
	sequenceID uint64
}

// NewMemoryCredentialStore constructs an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:    make(map[string]CredentialRecord),
		byEmail: make(map[string]string),
	}
}

// FindByEmail looks up a record by normalized email.
func (store *MemoryCredentialStore) FindByEmail(ctx context.Context, email string) (CredentialRecord, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	id, ok := store.byEmail[normalizeEmail(email)]
	if !ok {
		return CredentialRecord{}, ErrCredentialNotFound
	}
	return store.byID[id], nil
}

// FindByID looks up a record by its assigned identifier.
func (store *MemoryCredentialStore) FindByID(ctx context.Context, id string) (CredentialRecord, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.byID[id]
	if !ok {
		return CredentialRecord{}, ErrCredentialNotFound
	}
	return record, nil
}

// Save inserts a new record, rejecting duplicate emails.
func (store *MemoryCredentialStore) Save(ctx context.Context, record CredentialRecord) (CredentialRecord, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	email := normalizeEmail(record.Email)
	if _, exists := store.byEmail[email]; exists {
		return CredentialRecord{}, ErrEmailTaken
	}
	store.sequenceID++
	record.ID = strconv.FormatUint(store.sequenceID, 10)
	record.Email = email
	store.byID[record.ID] = record
	store.byEmail[email] = record.ID
	return record, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
