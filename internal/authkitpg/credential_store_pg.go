package authkitpg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/ticketauth/internal/authkit"
)

const uniqueViolationCode = "23505"

// PostgresCredentialStore persists credential records in PostgreSQL through a pgx pool.
type PostgresCredentialStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCredentialStore constructs a Postgres store.
func NewPostgresCredentialStore(pool *pgxpool.Pool) *PostgresCredentialStore {
	return &PostgresCredentialStore{pool: pool}
}

// FindByEmail loads the record with the given email.
func (store *PostgresCredentialStore) FindByEmail(ctx context.Context, email string) (authkit.CredentialRecord, error) {
	row := store.pool.QueryRow(ctx, `
SELECT id, email, password_hash, name, phone, role
FROM users
WHERE email = $1
`, normalizeEmail(email))
	return scanRecord("find_by_email", row)
}

// FindByID loads the record with the given identifier.
func (store *PostgresCredentialStore) FindByID(ctx context.Context, id string) (authkit.CredentialRecord, error) {
	numericID, parseErr := strconv.ParseInt(id, 10, 64)
	if parseErr != nil {
		return authkit.CredentialRecord{}, fmt.Errorf("credential_store.find_by_id.pgx: %w", authkit.ErrCredentialNotFound)
	}
	row := store.pool.QueryRow(ctx, `
SELECT id, email, password_hash, name, phone, role
FROM users
WHERE id = $1
`, numericID)
	return scanRecord("find_by_id", row)
}

// Save inserts a new record and returns it with the assigned identifier.
func (store *PostgresCredentialStore) Save(ctx context.Context, record authkit.CredentialRecord) (authkit.CredentialRecord, error) {
	record.Email = normalizeEmail(record.Email)
	var assignedID int64
	err := store.pool.QueryRow(ctx, `
INSERT INTO users (email, password_hash, name, phone, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING id
`, record.Email, record.PasswordHash, record.Name, record.Phone, string(record.Role)).Scan(&assignedID)
	if err != nil {
		if isUniqueViolation(err) {
			return authkit.CredentialRecord{}, fmt.Errorf("credential_store.save.pgx: %w", authkit.ErrEmailTaken)
		}
		return authkit.CredentialRecord{}, fmt.Errorf("credential_store.save.pgx: %w: %v", authkit.ErrStoreUnavailable, err)
	}
	record.ID = strconv.FormatInt(assignedID, 10)
	return record, nil
}

func scanRecord(operation string, row pgx.Row) (authkit.CredentialRecord, error) {
	var (
		id     int64
		record authkit.CredentialRecord
		role   string
	)
	if err := row.Scan(&id, &record.Email, &record.PasswordHash, &record.Name, &record.Phone, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authkit.CredentialRecord{}, fmt.Errorf("credential_store.%s.pgx: %w", operation, authkit.ErrCredentialNotFound)
		}
		return authkit.CredentialRecord{}, fmt.Errorf("credential_store.%s.pgx: %w: %v", operation, authkit.ErrStoreUnavailable, err)
	}
	record.ID = strconv.FormatInt(id, 10)
	record.Role = authkit.Role(role)
	return record, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
