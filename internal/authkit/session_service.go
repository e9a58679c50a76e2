package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SignupRequest carries the fields of a new credential record.
type SignupRequest struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  Token
	RefreshToken Token
}

// RefreshReason explains a refresh outcome. Callers see only Renewed; the reason is for logs.
type RefreshReason string

const (
	RefreshRenewed        RefreshReason = "renewed"
	RefreshTokenInvalid   RefreshReason = "token_invalid"
	RefreshWrongKind      RefreshReason = "wrong_kind"
	RefreshNotWhitelisted RefreshReason = "not_whitelisted"
)

// RefreshOutcome is the non-error result of a refresh attempt.
type RefreshOutcome struct {
	Renewed     bool
	AccessToken Token
	Reason      RefreshReason
}

// SessionServiceDependencies wires the collaborators of a SessionService.
type SessionServiceDependencies struct {
	Codec       *TokenCodec
	Revocations RevocationStore
	Credentials CredentialStore
	Passwords   PasswordHasher
	Logger      *zap.Logger
	Metrics     MetricsRecorder
	// StoreTimeout bounds every credential and revocation store call. Zero leaves calls unbounded.
	StoreTimeout time.Duration
}

// SessionService runs signup, login, logout, and refresh.
// It holds no per-request state; revocation truth lives in the RevocationStore.
type SessionService struct {
	codec        *TokenCodec
	revocations  RevocationStore
	credentials  CredentialStore
	passwords    PasswordHasher
	logger       *zap.Logger
	metrics      MetricsRecorder
	storeTimeout time.Duration
}

// NewSessionService validates dependencies and constructs the service.
func NewSessionService(dependencies SessionServiceDependencies) (*SessionService, error) {
	if dependencies.Codec == nil {
		return nil, errors.New("session.new: token codec is required")
	}
	if dependencies.Revocations == nil {
		return nil, errors.New("session.new: revocation store is required")
	}
	if dependencies.Credentials == nil {
		return nil, errors.New("session.new: credential store is required")
	}
	if dependencies.Passwords == nil {
		return nil, errors.New("session.new: password hasher is required")
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var metrics MetricsRecorder = noopMetrics{}
	if dependencies.Metrics != nil {
		metrics = dependencies.Metrics
	}
	return &SessionService{
		codec:        dependencies.Codec,
		revocations:  dependencies.Revocations,
		credentials:  dependencies.Credentials,
		passwords:    dependencies.Passwords,
		logger:       logger,
		metrics:      metrics,
		storeTimeout: dependencies.StoreTimeout,
	}, nil
}

// Codec exposes the token codec shared with the request authenticator.
func (service *SessionService) Codec() *TokenCodec {
	return service.codec
}

// bounded gives a single store call its own deadline.
func (service *SessionService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if service.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, service.storeTimeout)
}

func (service *SessionService) findByEmail(ctx context.Context, email string) (CredentialRecord, error) {
	findCtx, cancel := service.bounded(ctx)
	defer cancel()
	return service.credentials.FindByEmail(findCtx, email)
}

// Signup creates a credential record with the default role. No token is issued.
func (service *SessionService) Signup(ctx context.Context, request SignupRequest) (CredentialRecord, error) {
	email := normalizeEmail(request.Email)
	if email == "" || request.Password == "" {
		return CredentialRecord{}, fmt.Errorf("session.signup: %w", ErrInvalidSignup)
	}
	_, findErr := service.findByEmail(ctx, email)
	switch {
	case findErr == nil:
		service.metrics.Increment(EventSignupEmailTaken)
		return CredentialRecord{}, fmt.Errorf("session.signup: %w", ErrEmailTaken)
	case !errors.Is(findErr, ErrCredentialNotFound):
		return CredentialRecord{}, fmt.Errorf("session.signup: %w", findErr)
	}

	passwordHash, hashErr := service.passwords.Hash(request.Password)
	if hashErr != nil {
		return CredentialRecord{}, fmt.Errorf("session.signup: %w", hashErr)
	}
	saveCtx, cancelSave := service.bounded(ctx)
	defer cancelSave()
	saved, saveErr := service.credentials.Save(saveCtx, CredentialRecord{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(request.Name),
		Phone:        strings.TrimSpace(request.Phone),
		Role:         DefaultRole,
	})
	if saveErr != nil {
		if errors.Is(saveErr, ErrEmailTaken) {
			service.metrics.Increment(EventSignupEmailTaken)
		}
		return CredentialRecord{}, fmt.Errorf("session.signup: %w", saveErr)
	}
	service.metrics.Increment(EventSignupSuccess)
	service.logger.Info("signup",
		zap.String("code", "auth.signup.success"),
		zap.String("subject_id", saved.ID))
	return saved, nil
}

// Login verifies credentials, issues both tokens, and whitelists the refresh token.
// Unknown email and wrong password both surface as ErrInvalidCredentials.
func (service *SessionService) Login(ctx context.Context, email string, password string) (TokenPair, error) {
	record, findErr := service.findByEmail(ctx, email)
	if findErr != nil {
		if errors.Is(findErr, ErrCredentialNotFound) {
			service.metrics.Increment(EventLoginFailure)
			service.logger.Info("login rejected", zap.String("code", "auth.login.unknown_email"))
			return TokenPair{}, fmt.Errorf("session.login: %w", ErrInvalidCredentials)
		}
		return TokenPair{}, fmt.Errorf("session.login: %w", findErr)
	}
	if !service.passwords.Verify(password, record.PasswordHash) {
		service.metrics.Increment(EventLoginFailure)
		service.logger.Info("login rejected",
			zap.String("code", "auth.login.password_mismatch"),
			zap.String("subject_id", record.ID))
		return TokenPair{}, fmt.Errorf("session.login: %w", ErrInvalidCredentials)
	}

	role := record.Role
	if _, ok := ParseRole(string(role)); !ok {
		role = DefaultRole
	}
	accessToken, accessErr := service.codec.IssueAccessToken(record.ID, role)
	if accessErr != nil {
		return TokenPair{}, fmt.Errorf("session.login: %w", accessErr)
	}
	refreshToken, refreshErr := service.codec.IssueRefreshToken(record.ID, role)
	if refreshErr != nil {
		return TokenPair{}, fmt.Errorf("session.login: %w", refreshErr)
	}

	remaining, lifetimeErr := service.codec.RemainingLifetime(refreshToken.Value)
	if lifetimeErr != nil {
		return TokenPair{}, fmt.Errorf("session.login: %w", lifetimeErr)
	}
	whitelistCtx, cancelWhitelist := service.bounded(ctx)
	defer cancelWhitelist()
	if whitelistErr := service.revocations.Whitelist(whitelistCtx, record.ID, refreshToken.Value, remaining); whitelistErr != nil {
		return TokenPair{}, fmt.Errorf("session.login: %w", whitelistErr)
	}

	service.metrics.Increment(EventLoginSuccess)
	service.logger.Info("login",
		zap.String("code", "auth.login.success"),
		zap.String("subject_id", record.ID))
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Logout blacklists exactly the presented token for its remaining lifetime and clears the
// subject's whitelist entry. Undecodable or expired tokens are accepted silently; only store
// failures are returned.
func (service *SessionService) Logout(ctx context.Context, token string) error {
	claims, remaining, decodeErr := service.codec.Inspect(token)
	if decodeErr != nil {
		service.logger.Info("logout with undecodable token",
			zap.String("code", "auth.logout.undecodable"),
			zap.Error(decodeErr))
		return nil
	}
	subjectID := claims.GetSubjectID()

	blacklistCtx, cancelBlacklist := service.bounded(ctx)
	defer cancelBlacklist()
	if blacklistErr := service.revocations.Blacklist(blacklistCtx, token, remaining); blacklistErr != nil {
		return fmt.Errorf("session.logout: %w", blacklistErr)
	}
	forgetCtx, cancelForget := service.bounded(ctx)
	defer cancelForget()
	if forgetErr := service.revocations.ForgetRefresh(forgetCtx, subjectID); forgetErr != nil {
		return fmt.Errorf("session.logout: %w", forgetErr)
	}
	service.metrics.Increment(EventLogout)
	service.logger.Info("logout",
		zap.String("code", "auth.logout.success"),
		zap.String("subject_id", subjectID))
	return nil
}

// Refresh issues a new access token when refreshToken verifies and is still the subject's
// whitelisted token. The refresh token itself is never rotated. Any validity failure yields a
// not-renewed outcome rather than an error; only store failures are returned as errors.
func (service *SessionService) Refresh(ctx context.Context, refreshToken string) (RefreshOutcome, error) {
	claims, validateErr := service.codec.Validate(refreshToken)
	if validateErr != nil {
		return service.notRenewed(RefreshTokenInvalid, "", validateErr), nil
	}
	if TokenKind(claims.Kind) != TokenKindRefresh {
		return service.notRenewed(RefreshWrongKind, claims.Subject, nil), nil
	}

	storeCtx, cancel := service.bounded(ctx)
	defer cancel()

	valid, lookupErr := service.revocations.IsRefreshValid(storeCtx, claims.Subject, refreshToken)
	if lookupErr != nil {
		return RefreshOutcome{}, fmt.Errorf("session.refresh: %w", lookupErr)
	}
	if !valid {
		return service.notRenewed(RefreshNotWhitelisted, claims.Subject, nil), nil
	}

	role, ok := ParseRole(claims.Role)
	if !ok {
		return service.notRenewed(RefreshTokenInvalid, claims.Subject, ErrTokenMalformed), nil
	}
	accessToken, issueErr := service.codec.IssueAccessToken(claims.Subject, role)
	if issueErr != nil {
		return RefreshOutcome{}, fmt.Errorf("session.refresh: %w", issueErr)
	}
	service.metrics.Increment(EventRefreshRenewed)
	return RefreshOutcome{Renewed: true, AccessToken: accessToken, Reason: RefreshRenewed}, nil
}

func (service *SessionService) notRenewed(reason RefreshReason, subjectID string, cause error) RefreshOutcome {
	service.metrics.Increment(EventRefreshNotRenewable)
	fields := []zap.Field{
		zap.String("code", "auth.refresh.not_renewable"),
		zap.String("reason", string(reason)),
	}
	if subjectID != "" {
		fields = append(fields, zap.String("subject_id", subjectID))
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	service.logger.Info("refresh declined", fields...)
	return RefreshOutcome{Renewed: false, Reason: reason}
}
