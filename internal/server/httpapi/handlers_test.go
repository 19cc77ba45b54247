package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/jobtrack/internal/logging"
	"github.com/dmitrijs2005/jobtrack/internal/server/auth"
	"github.com/dmitrijs2005/jobtrack/internal/server/oauth"
	"github.com/dmitrijs2005/jobtrack/internal/server/repositories/users"
	"github.com/dmitrijs2005/jobtrack/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeProvider struct {
	profile     oauth.Profile
	exchangeErr error
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code string) (string, error) {
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return "at-" + code, nil
}

func (f *fakeProvider) FetchProfile(context.Context, string) (oauth.Profile, error) {
	return f.profile, nil
}

type testEnv struct {
	handler  http.Handler
	codec    *auth.TokenCodec
	provider *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	codec := auth.NewTokenCodec(auth.TokenConfig{
		Secret:     []byte("http-test-secret"),
		SessionTTL: time.Hour,
		ResetTTL:   15 * time.Minute,
	})
	provider := &fakeProvider{profile: oauth.Profile{ID: "g-1", Email: "g@example.com", VerifiedEmail: true, Name: "G User"}}
	svc := services.NewAuthService(services.AuthDeps{
		Users:    users.NewMemoryRepository(),
		Hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:   codec,
		Provider: provider,
	})

	s := NewServer("127.0.0.1:0", svc, codec, logging.Nop(), time.Second)
	return &testEnv{handler: s.Handler(), codec: codec, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func (e *testEnv) signup(t *testing.T, email, password string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Ann", "email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["access_token"].(string)
}

func TestSignup_CreatedWithoutHash(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "secret1",
	}, "")

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ann@example.com", body["email"])
	assert.Equal(t, "user", body["role"])
	assert.NotEmpty(t, body["id"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestSignup_DuplicateEmail(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "ann@example.com", "secret1")

	rec := e.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Other", "email": "ann@example.com", "password": "secret2",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already in use", decode(t, rec)["error"])
}

func TestSignup_ValidationFields(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"email": "not-an-email", "password": "123",
	}, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields, ok := decode(t, rec)["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestSignup_MalformedBody(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "ann@example.com", "secret1")

	wrong := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ann@example.com", "password": "nope",
	}, "")
	unknown := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ghost@example.com", "password": "nope",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "Invalid credentials", decode(t, wrong)["error"])
}

func TestProtectedRoutes_RequireBearer(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/api/auth/profile", "/api/auth/me"} {
		rec := e.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = e.do(t, http.MethodGet, path, nil, "garbage")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "Invalid or expired token", decode(t, rec)["error"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutes_RejectResetToken(t *testing.T) {
	e := newTestEnv(t)
	reset, err := e.codec.IssueReset("u-1", "ann@example.com")
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/api/auth/me", nil, reset)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token purpose", decode(t, rec)["error"])
}

func TestMe_ReturnsStoredUser(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "ann@example.com", "secret1")
	token := e.login(t, "ann@example.com", "secret1")

	rec := e.do(t, http.MethodGet, "/api/auth/me", nil, token)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "you are authenticated", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "ann@example.com", user["email"])
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@example.com"}, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found with that email", decode(t, rec)["error"])
}

func TestResetPassword_SessionTokenRejected(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "ann@example.com", "secret1")
	session := e.login(t, "ann@example.com", "secret1")

	rec := e.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": session, "newPassword": "secret2",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token purpose", decode(t, rec)["error"])
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "ann@example.com", "secret1")
	token := e.login(t, "ann@example.com", "secret1")

	rec := e.do(t, http.MethodPost, "/api/auth/change-password", map[string]string{
		"currentPassword": "wrong", "newPassword": "secret2",
	}, token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Current password is incorrect", decode(t, rec)["error"])
}

func TestGoogleRedirect_SetsStateCookie(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/auth/google", nil, "")

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.Len(t, state, 32)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, stateCookie, cookies[0].Name)
	assert.Equal(t, state, cookies[0].Value)
}

func (e *testEnv) callback(t *testing.T, query string, state string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback"+query, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: state})
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestGoogleCallback(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.callback(t, "?code=abc&state=s1", "s1")

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		token := body["token"].(string)
		claims, err := e.codec.VerifySession(token)
		require.NoError(t, err)
		assert.Equal(t, "g@example.com", claims.Email)
		assert.Equal(t, "g@example.com", body["user"].(map[string]any)["email"])
	})

	t.Run("missing code", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.callback(t, "?state=s1", "s1")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, oauthFailMessage, body["error"])
		assert.Equal(t, "no authorization code received", body["details"])
	})

	t.Run("exchange failure", func(t *testing.T) {
		e := newTestEnv(t)
		e.provider.exchangeErr = errors.New("invalid_grant")

		rec := e.callback(t, "?code=bad&state=s1", "s1")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "invalid_grant", decode(t, rec)["details"])
	})

	t.Run("state mismatch", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.callback(t, "?code=abc&state=x", "y")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "state mismatch", decode(t, rec)["details"])
	})

	t.Run("no state cookie", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.callback(t, "?code=abc&state=x", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "missing oauth state", decode(t, rec)["details"])
	})
}

// The state issued by the redirect is accepted by the callback.
func TestGoogleRedirectThenCallback(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/auth/google", nil, "")
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	rec = e.callback(t, "?code=abc&state="+url.QueryEscape(state), rec.Result().Cookies()[0].Value)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// Walks a whole account lifecycle through the HTTP surface.
func TestPasswordLifecycle(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "ann@example.com", "secret1")

	rec := e.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ann@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Reset token generated successfully", body["message"])
	reset := body["token"].(string)

	rec = e.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": reset, "newPassword": "secret2",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password has been reset successfully", decode(t, rec)["message"])

	rec = e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ann@example.com", "password": "secret1",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	session := e.login(t, "ann@example.com", "secret2")

	rec = e.do(t, http.MethodPost, "/api/auth/change-password", map[string]string{
		"currentPassword": "secret2", "newPassword": "secret3",
	}, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password changed successfully", decode(t, rec)["message"])

	e.login(t, "ann@example.com", "secret3")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	codec := auth.NewTokenCodec(auth.TokenConfig{Secret: []byte("k"), SessionTTL: time.Hour})
	svc := services.NewAuthService(services.AuthDeps{
		Users:  users.NewMemoryRepository(),
		Hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens: codec,
	})
	s := NewServer("127.0.0.1:0", svc, codec, logging.Nop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_BadAddress(t *testing.T) {
	codec := auth.NewTokenCodec(auth.TokenConfig{Secret: []byte("k"), SessionTTL: time.Hour})
	svc := services.NewAuthService(services.AuthDeps{
		Users:  users.NewMemoryRepository(),
		Hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens: codec,
	})
	s := NewServer("bad::addr", svc, codec, logging.Nop(), time.Second)

	err := s.Run(context.Background())
	assert.Error(t, err)
}
