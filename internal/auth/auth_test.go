package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinylink-dev/tinylink/internal/user"
)

type stubDirectory struct {
	known map[string]bool
}

func (d *stubDirectory) GetByID(ctx context.Context, userID string) (*user.User, bool) {
	if !d.known[userID] {
		return nil, false
	}
	return &user.User{ID: userID}, true
}

const testCookieName = "tinylink_session_test"

var testSigningKey = []byte("0123456789abcdef")

func newTestAuth(knownUsers ...string) *Auth {
	known := map[string]bool{}
	for _, userID := range knownUsers {
		known[userID] = true
	}
	return New(&stubDirectory{known: known}, testCookieName, testSigningKey, time.Hour)
}

func currentUserEchoHandler(observed *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*observed = CurrentUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func sessionCookie(t *testing.T, theAuth *Auth, userID string) *http.Cookie {
	t.Helper()
	recorder := httptest.NewRecorder()
	require.NoError(t, theAuth.EstablishSession(recorder, userID))
	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestEstablishSessionSetsHardenedCookie(t *testing.T) {
	theAuth := newTestAuth("u1")

	cookie := sessionCookie(t, theAuth, "u1")
	assert.Equal(t, testCookieName, cookie.Name)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.False(t, cookie.Expires.IsZero())
}

func TestAuthenticateRoundTrip(t *testing.T) {
	theAuth := newTestAuth("u1")
	cookie := sessionCookie(t, theAuth, "u1")

	var observed string
	handler := theAuth.Authenticate(currentUserEchoHandler(&observed))

	request := httptest.NewRequest(http.MethodGet, "/urls", nil)
	request.AddCookie(cookie)
	handler.ServeHTTP(httptest.NewRecorder(), request)

	assert.Equal(t, "u1", observed)
}

func TestAuthenticateViaAuthorizationHeader(t *testing.T) {
	theAuth := newTestAuth("u1")
	cookie := sessionCookie(t, theAuth, "u1")

	var observed string
	handler := theAuth.Authenticate(currentUserEchoHandler(&observed))

	request := httptest.NewRequest(http.MethodGet, "/urls", nil)
	request.Header.Set("Authorization", cookie.Value)
	handler.ServeHTTP(httptest.NewRecorder(), request)

	assert.Equal(t, "u1", observed)
}

func TestAuthenticateAnonymousWithoutToken(t *testing.T) {
	theAuth := newTestAuth("u1")

	var observed string
	handler := theAuth.Authenticate(currentUserEchoHandler(&observed))

	observed = "sentinel"
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/u/abc123", nil))

	assert.Empty(t, observed)
}

func TestAuthenticateRejectsTamperedToken(t *testing.T) {
	theAuth := newTestAuth("u1")
	cookie := sessionCookie(t, theAuth, "u1")
	cookie.Value += "tampered"

	var observed string
	handler := theAuth.Authenticate(currentUserEchoHandler(&observed))

	request := httptest.NewRequest(http.MethodGet, "/urls", nil)
	request.AddCookie(cookie)
	handler.ServeHTTP(httptest.NewRecorder(), request)

	assert.Empty(t, observed)
}

func TestAuthenticateRejectsTokenSignedWithOtherKey(t *testing.T) {
	theAuth := newTestAuth("u1")
	otherAuth := New(&stubDirectory{known: map[string]bool{"u1": true}}, testCookieName, []byte("another-signing-key"), time.Hour)
	cookie := sessionCookie(t, otherAuth, "u1")

	var observed string
	handler := theAuth.Authenticate(currentUserEchoHandler(&observed))

	request := httptest.NewRequest(http.MethodGet, "/urls", nil)
	request.AddCookie(cookie)
	handler.ServeHTTP(httptest.NewRecorder(), request)

	assert.Empty(t, observed)
}

func TestAuthenticateRejectsUnknownUser(t *testing.T) {
	theAuth := newTestAuth("u1")
	cookie := sessionCookie(t, theAuth, "ghost")

	var observed string
	handler := theAuth.Authenticate(currentUserEchoHandler(&observed))

	request := httptest.NewRequest(http.MethodGet, "/urls", nil)
	request.AddCookie(cookie)
	handler.ServeHTTP(httptest.NewRecorder(), request)

	assert.Empty(t, observed)
}

func TestClearSession(t *testing.T) {
	theAuth := newTestAuth("u1")

	recorder := httptest.NewRecorder()
	theAuth.ClearSession(recorder)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
