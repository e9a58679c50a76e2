package authkit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("credential_store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("credential_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("credential_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("credential_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("credential_store.unsupported_no_scheme")
)

// DatabaseCredentialStore persists credential records using GORM.
type DatabaseCredentialStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseCredentialStore) Driver() string {
	return store.driverLabel
}

type credentialRow struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Name         string    `gorm:"column:name;not null"`
	Phone        string    `gorm:"column:phone;not null;default:''"`
	Role         string    `gorm:"column:role;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (credentialRow) TableName() string {
	return "users"
}

func (row credentialRow) record() CredentialRecord {
	return CredentialRecord{
		ID:           strconv.FormatUint(row.ID, 10),
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Name:         row.Name,
		Phone:        row.Phone,
		Role:         Role(row.Role),
	}
}

// NewDatabaseCredentialStore constructs a GORM-backed store and migrates the users table.
func NewDatabaseCredentialStore(ctx context.Context, databaseURL string) (*DatabaseCredentialStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("credential_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if openErr != nil {
		return nil, fmt.Errorf("credential_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&credentialRow{}); migrateErr != nil {
		return nil, fmt.Errorf("credential_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseCredentialStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// FindByEmail loads the record with the given email.
func (store *DatabaseCredentialStore) FindByEmail(ctx context.Context, email string) (CredentialRecord, error) {
	var row credentialRow
	err := store.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&row).Error
	if err != nil {
		return CredentialRecord{}, store.lookupError("find_by_email", err)
	}
	return row.record(), nil
}

// FindByID loads the record with the given identifier.
func (store *DatabaseCredentialStore) FindByID(ctx context.Context, id string) (CredentialRecord, error) {
	numericID, parseErr := strconv.ParseUint(id, 10, 64)
	if parseErr != nil {
		return CredentialRecord{}, fmt.Errorf("credential_store.find_by_id.%s: %w", store.driverLabel, ErrCredentialNotFound)
	}
	var row credentialRow
	err := store.db.WithContext(ctx).Where("id = ?", numericID).Take(&row).Error
	if err != nil {
		return CredentialRecord{}, store.lookupError("find_by_id", err)
	}
	return row.record(), nil
}

// Save inserts a new record.
func (store *DatabaseCredentialStore) Save(ctx context.Context, record CredentialRecord) (CredentialRecord, error) {
	row := credentialRow{
		Email:        normalizeEmail(record.Email),
		PasswordHash: record.PasswordHash,
		Name:         record.Name,
		Phone:        record.Phone,
		Role:         string(record.Role),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueConstraintError(err) {
			return CredentialRecord{}, fmt.Errorf("credential_store.save.%s: %w", store.driverLabel, ErrEmailTaken)
		}
		return CredentialRecord{}, fmt.Errorf("credential_store.save.%s: %w: %v", store.driverLabel, ErrStoreUnavailable, err)
	}
	return row.record(), nil
}

func (store *DatabaseCredentialStore) lookupError(operation string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("credential_store.%s.%s: %w", operation, store.driverLabel, ErrCredentialNotFound)
	}
	return fmt.Errorf("credential_store.%s.%s: %w: %v", operation, store.driverLabel, ErrStoreUnavailable, err)
}

// Some drivers surface constraint violations without a translated sentinel.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "duplicate key") || strings.Contains(message, "unique constraint")
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("credential_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("credential_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("credential_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("credential_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
