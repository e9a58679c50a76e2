package authkit

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest plaintext bcrypt accepts.
const MaxPasswordBytes = 72

var (
	errEmptyPassword   = errors.New("password.empty")
	errPasswordTooLong = errors.New("password.too_long")
)

// BcryptHasher implements PasswordHasher with golang.org/x/crypto/bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher validates the cost and returns a hasher. Zero selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password.cost: %d outside [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash returns the bcrypt encoding of plaintext. Empty and over-long inputs wrap ErrInvalidSignup.
func (hasher *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("password.hash: %w: %w", ErrInvalidSignup, errEmptyPassword)
	}
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("password.hash: %w: %w", ErrInvalidSignup, errPasswordTooLong)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), hasher.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("password.hash: %w: %w", ErrInvalidSignup, err)
		}
		return "", fmt.Errorf("password.hash: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash.
func (hasher *BcryptHasher) Verify(plaintext string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
