package authkit

import (
	"errors"
	"testing"
	"time"
)

type controllableClock struct {
	current time.Time
}

func (clock *controllableClock) Now() time.Time {
	return clock.current
}

func (clock *controllableClock) Advance(duration time.Duration) {
	clock.current = clock.current.Add(duration)
}

func newTestServerConfig() ServerConfig {
	return ServerConfig{
		JWTSigningKey:      []byte("test-signing-key"),
		JWTIssuer:          "ticketauth-test",
		AccessTTL:          15 * time.Minute,
		RefreshTTL:         24 * time.Hour,
		StoreTimeout:       time.Second,
		PublicPathPrefixes: DefaultPublicPathPrefixes,
	}
}

func newTestCodec(t *testing.T, clock Clock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(newTestServerConfig(), clock)
	if err != nil {
		t.Fatalf("failed to build codec: %v", err)
	}
	return codec
}

func TestNewTokenCodecRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{name: "zero access ttl", mutate: func(c *ServerConfig) { c.AccessTTL = 0 }},
		{name: "refresh not longer than access", mutate: func(c *ServerConfig) { c.RefreshTTL = c.AccessTTL }},
		{name: "missing key", mutate: func(c *ServerConfig) { c.JWTSigningKey = nil }},
		{name: "missing issuer", mutate: func(c *ServerConfig) { c.JWTIssuer = "" }},
	}
	for _, testCase := range testCases {
		configuration := newTestServerConfig()
		testCase.mutate(&configuration)
		if _, err := NewTokenCodec(configuration, nil); err == nil {
			t.Fatalf("%s: expected error", testCase.name)
		}
	}
}

func TestIssueAccessTokenRejectsEmptySubject(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, &controllableClock{current: time.Unix(1700000000, 0)})
	_, err := codec.IssueAccessToken("", RoleUser)
	if err == nil {
		t.Fatalf("expected error when subject is empty")
	}
	expected := "jwt.mint.failure: subject must be non-empty"
	if err.Error() != expected {
		t.Fatalf("expected error %q, got %q", expected, err.Error())
	}
}

func TestIssuedTokensRoundTrip(t *testing.T) {
	t.Parallel()

	reference := time.Unix(1700000000, 0).UTC()
	codec := newTestCodec(t, &controllableClock{current: reference})

	for _, role := range []Role{RoleUser, RoleAdmin} {
		access, err := codec.IssueAccessToken("7", role)
		if err != nil {
			t.Fatalf("issue access: %v", err)
		}
		if access.Kind != TokenKindAccess || !access.IssuedAt.Equal(reference) || !access.ExpiresAt.Equal(reference.Add(15*time.Minute)) {
			t.Fatalf("unexpected access token: %#v", access)
		}
		claims, validateErr := codec.Validate(access.Value)
		if validateErr != nil {
			t.Fatalf("validate access: %v", validateErr)
		}
		if claims.Subject != "7" || claims.Role != string(role) || claims.Kind != string(TokenKindAccess) {
			t.Fatalf("unexpected claims: %#v", claims)
		}

		refresh, err := codec.IssueRefreshToken("7", role)
		if err != nil {
			t.Fatalf("issue refresh: %v", err)
		}
		if refresh.Kind != TokenKindRefresh || !refresh.ExpiresAt.Equal(reference.Add(24*time.Hour)) {
			t.Fatalf("unexpected refresh token: %#v", refresh)
		}
		if refresh.Value == access.Value {
			t.Fatalf("expected distinct token strings")
		}
	}
}

func TestTokensMintedInSameInstantDiffer(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, &controllableClock{current: time.Unix(1700000000, 0)})
	first, _ := codec.IssueRefreshToken("7", RoleUser)
	second, _ := codec.IssueRefreshToken("7", RoleUser)
	if first.Value == second.Value {
		t.Fatalf("expected unique tokens for identical claims")
	}
}

func TestValidateReportsExpiry(t *testing.T) {
	t.Parallel()

	clock := &controllableClock{current: time.Unix(1700000000, 0)}
	codec := newTestCodec(t, clock)
	access, err := codec.IssueAccessToken("7", RoleUser)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	clock.Advance(15 * time.Minute)
	_, validateErr := codec.Validate(access.Value)
	if !errors.Is(validateErr, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at the expiry instant, got %v", validateErr)
	}
}

func TestValidateClassifiesFailures(t *testing.T) {
	t.Parallel()

	clock := &controllableClock{current: time.Unix(1700000000, 0)}
	codec := newTestCodec(t, clock)
	otherConfig := newTestServerConfig()
	otherConfig.JWTSigningKey = []byte("another-key")
	otherCodec, err := NewTokenCodec(otherConfig, clock)
	if err != nil {
		t.Fatalf("build other codec: %v", err)
	}
	forged, _ := otherCodec.IssueAccessToken("7", RoleAdmin)

	testCases := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrTokenMalformed},
		{name: "garbage", token: "a.b.c", want: ErrTokenMalformed},
		{name: "foreign key", token: forged.Value, want: ErrTokenBadSignature},
	}
	for _, testCase := range testCases {
		if _, validateErr := codec.Validate(testCase.token); !errors.Is(validateErr, testCase.want) {
			t.Fatalf("%s: expected %v, got %v", testCase.name, testCase.want, validateErr)
		}
	}
}

func TestAccessorsDecodeExpiredTokens(t *testing.T) {
	t.Parallel()

	clock := &controllableClock{current: time.Unix(1700000000, 0)}
	codec := newTestCodec(t, clock)
	refresh, _ := codec.IssueRefreshToken("99", RoleAdmin)

	clock.Advance(48 * time.Hour)

	expiresAt, err := codec.ExpiresAt(refresh.Value)
	if err != nil || !expiresAt.Equal(refresh.ExpiresAt) {
		t.Fatalf("unexpected expiry %v (%v)", expiresAt, err)
	}
	subjectID, err := codec.SubjectOf(refresh.Value)
	if err != nil || subjectID != "99" {
		t.Fatalf("unexpected subject %q (%v)", subjectID, err)
	}
	role, err := codec.RoleOf(refresh.Value)
	if err != nil || role != RoleAdmin {
		t.Fatalf("unexpected role %q (%v)", role, err)
	}
	remaining, err := codec.RemainingLifetime(refresh.Value)
	if err != nil || remaining != -24*time.Hour {
		t.Fatalf("unexpected remaining lifetime %v (%v)", remaining, err)
	}

	claims, inspected, err := codec.Inspect(refresh.Value)
	if err != nil || claims.Subject != "99" || inspected != remaining {
		t.Fatalf("unexpected inspection %v %v (%v)", claims, inspected, err)
	}

	if _, malformedErr := codec.SubjectOf("not-a-token"); !errors.Is(malformedErr, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", malformedErr)
	}
}
