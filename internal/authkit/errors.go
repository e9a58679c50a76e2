package authkit

import (
	"errors"

	"github.com/tyemirov/ticketauth/pkg/sessionvalidator"
)

var (
	// ErrEmailTaken indicates a credential record already exists for the email.
	ErrEmailTaken = errors.New("session.email_taken")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("session.invalid_credentials")
	// ErrInvalidSignup indicates a signup request without an email or password.
	ErrInvalidSignup = errors.New("session.invalid_signup")
	// ErrCredentialNotFound indicates no credential record matched the lookup.
	ErrCredentialNotFound = errors.New("credential_store.not_found")
	// ErrStoreUnavailable indicates the revocation or credential backend could not answer in time.
	ErrStoreUnavailable = errors.New("store.unavailable")

	// ErrTokenMalformed indicates the token could not be decoded.
	ErrTokenMalformed = sessionvalidator.ErrTokenMalformed
	// ErrTokenExpired indicates the token is past its expiry instant.
	ErrTokenExpired = sessionvalidator.ErrTokenExpired
	// ErrTokenBadSignature indicates the token failed its integrity check.
	ErrTokenBadSignature = sessionvalidator.ErrTokenBadSignature
	// ErrTokenWrongKind indicates a refresh token was presented where an access token is required, or vice versa.
	ErrTokenWrongKind = errors.New("token.wrong_kind")
)
