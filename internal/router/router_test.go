package router

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tinylink-dev/tinylink/internal/auth"
	"github.com/tinylink-dev/tinylink/internal/hasher"
	"github.com/tinylink-dev/tinylink/internal/ipchecker"
	"github.com/tinylink-dev/tinylink/internal/links"
	"github.com/tinylink-dev/tinylink/internal/logger"
	"github.com/tinylink-dev/tinylink/internal/mockstore"
	"github.com/tinylink-dev/tinylink/internal/models"
	"github.com/tinylink-dev/tinylink/internal/service"
	"github.com/tinylink-dev/tinylink/internal/shortcode"
	"github.com/tinylink-dev/tinylink/internal/user"
	"github.com/tinylink-dev/tinylink/internal/users"
)

const (
	testCookieName    = "tinylink_session"
	testSigningSecret = "dGVzdC1zaWduaW5nLXNlY3JldA=="
	testTrustedSubnet = "192.168.1.0/24"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	directory := users.New(hasher.New(bcrypt.MinCost))
	store := links.New(shortcode.New(shortcode.DefaultLength), links.DefaultMaxTries)
	svc := service.New(directory, store, "http://localhost:8080")

	signingKey, err := base64.URLEncoding.DecodeString(testSigningSecret)
	require.NoError(t, err)
	theAuth := auth.New(directory, testCookieName, signingKey, time.Hour)

	checker, err := ipchecker.New(testTrustedSubnet)
	require.NoError(t, err)

	srv := httptest.NewServer(New(svc, theAuth, checker))
	t.Cleanup(srv.Close)

	return srv
}

// registerUser creates an account through the API and returns the session
// token from the Authorization response header.
func registerUser(t *testing.T, srv *httptest.Server, email, password string) string {
	t.Helper()

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.RegisterRequest{Email: email, Password: password}).
		Post(srv.URL + "/register")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	token := resp.Header().Get("Authorization")
	require.NotEmpty(t, token)

	return token
}

func shortenURL(t *testing.T, srv *httptest.Server, token, longURL string) models.URLRecordResponse {
	t.Helper()

	var record models.URLRecordResponse
	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", token).
		SetBody(models.ShortenRequest{URL: longURL}).
		SetResult(&record).
		Post(srv.URL + "/urls")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	return record
}

func TestRegisterLoginLogout(t *testing.T) {
	srv := newTestServer(t)

	token := registerUser(t, srv, "a@b.com", "pw1")
	assert.NotEmpty(t, token)

	var loggedIn models.UserResponse
	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.LoginRequest{Email: "a@b.com", Password: "pw1"}).
		SetResult(&loggedIn).
		Post(srv.URL + "/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "a@b.com", loggedIn.Email)

	foundSessionCookie := false
	for _, cookie := range resp.Cookies() {
		if cookie.Name == testCookieName && cookie.Value != "" {
			foundSessionCookie = true
		}
	}
	assert.True(t, foundSessionCookie)

	resp, err = resty.New().R().Post(srv.URL + "/logout")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)

	testCases := []struct {
		name string
		body string
	}{
		{"empty_body", ``},
		{"empty_json", `{}`},
		{"missing_password", `{"email":"a@b.com"}`},
		{"missing_email", `{"password":"pw1"}`},
		{"malformed_email", `{"email":"not-an-email","password":"pw1"}`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp, err := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetBody(testCase.body).
				Post(srv.URL + "/register")
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)

	registerUser(t, srv, "a@b.com", "pw1")

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.RegisterRequest{Email: "a@b.com", Password: "another-password"}).
		Post(srv.URL + "/register")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestLoginBadCredentials(t *testing.T) {
	srv := newTestServer(t)

	registerUser(t, srv, "a@b.com", "pw1")

	for _, body := range []models.LoginRequest{
		{Email: "a@b.com", Password: "wrong"},
		{Email: "nobody@b.com", Password: "pw1"},
	} {
		resp, err := resty.New().R().
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post(srv.URL + "/login")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	}
}

func TestShortenAndShow(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "a@b.com", "pw1")

	record := shortenURL(t, srv, token, "http://x.com")
	assert.Len(t, record.ShortCode, shortcode.DefaultLength)
	assert.Equal(t, "http://x.com", record.OriginalURL)
	assert.Equal(t, fmt.Sprintf("http://localhost:8080/u/%s", record.ShortCode), record.ShortURL)

	var shown models.URLRecordResponse
	resp, err := resty.New().R().
		SetHeader("Authorization", token).
		SetResult(&shown).
		Get(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, record.ShortCode, shown.ShortCode)
	assert.Equal(t, int64(0), shown.VisitCount)
}

func TestShortenRequiresSession(t *testing.T) {
	srv := newTestServer(t)

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.ShortenRequest{URL: "http://x.com"}).
		Post(srv.URL + "/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

func TestListOwnedUrls(t *testing.T) {
	srv := newTestServer(t)
	tokenU1 := registerUser(t, srv, "a@b.com", "pw1")
	tokenU2 := registerUser(t, srv, "c@d.com", "pw2")

	shortenURL(t, srv, tokenU1, "http://one.example")
	shortenURL(t, srv, tokenU1, "http://two.example")
	shortenURL(t, srv, tokenU2, "http://three.example")

	var listing models.UserURLs
	resp, err := resty.New().R().
		SetHeader("Authorization", tokenU1).
		SetResult(&listing).
		Get(srv.URL + "/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, listing, 2)

	resp, err = resty.New().R().Get(srv.URL + "/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

// u2 attempts to take over u1's record; the record must stay untouched.
func TestUpdateByNonOwnerForbidden(t *testing.T) {
	srv := newTestServer(t)
	tokenU1 := registerUser(t, srv, "a@b.com", "pw1")
	tokenU2 := registerUser(t, srv, "c@d.com", "pw2")

	record := shortenURL(t, srv, tokenU1, "http://x.com")

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", tokenU2).
		SetBody(models.UpdateURLRequest{URL: "http://evil.com"}).
		Put(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	var shown models.URLRecordResponse
	resp, err = resty.New().R().
		SetHeader("Authorization", tokenU1).
		SetResult(&shown).
		Get(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "http://x.com", shown.OriginalURL)
}

func TestUpdateByOwner(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "a@b.com", "pw1")
	record := shortenURL(t, srv, token, "http://x.com")

	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			target := fmt.Sprintf("http://updated.example/%s", method)

			var updated models.URLRecordResponse
			req := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetHeader("Authorization", token).
				SetBody(models.UpdateURLRequest{URL: target}).
				SetResult(&updated)
			req.Method = method
			req.URL = srv.URL + "/urls/" + record.ShortCode

			resp, err := req.Send()
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode())
			assert.Equal(t, target, updated.OriginalURL)
		})
	}
}

func TestUpdateAuthorizationSequence(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "a@b.com", "pw1")
	record := shortenURL(t, srv, token, "http://x.com")

	// Unknown resource wins over the missing session.
	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.UpdateURLRequest{URL: "http://y.com"}).
		Put(srv.URL + "/urls/unknown")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	// Existing resource without a session is unauthorized.
	resp, err = resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.UpdateURLRequest{URL: "http://y.com"}).
		Put(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

func TestDeleteUrl(t *testing.T) {
	srv := newTestServer(t)
	tokenU1 := registerUser(t, srv, "a@b.com", "pw1")
	tokenU2 := registerUser(t, srv, "c@d.com", "pw2")
	record := shortenURL(t, srv, tokenU1, "http://x.com")

	resp, err := resty.New().R().
		SetHeader("Authorization", tokenU2).
		Delete(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = resty.New().R().
		SetHeader("Authorization", tokenU1).
		Delete(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	resp, err = resty.New().R().
		SetHeader("Authorization", tokenU1).
		Get(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func TestDeleteViaMethodOverride(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "a@b.com", "pw1")
	record := shortenURL(t, srv, token, "http://x.com")

	resp, err := resty.New().R().
		SetHeader("Authorization", token).
		Post(srv.URL + "/urls/" + record.ShortCode + "/delete")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
}

func TestAnonymousRedirectRecordsVisit(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "a@b.com", "pw1")
	record := shortenURL(t, srv, token, "http://x.com")

	client := resty.New().SetRedirectPolicy(resty.NoRedirectPolicy())
	resp, err := client.R().Get(srv.URL + "/u/" + record.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode())
	assert.Equal(t, "http://x.com", resp.Header().Get("Location"))

	var shown models.URLRecordResponse
	showResp, err := resty.New().R().
		SetHeader("Authorization", token).
		SetResult(&shown).
		Get(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, showResp.StatusCode())
	assert.Equal(t, int64(1), shown.VisitCount)
	require.Len(t, shown.VisitLog, 1)
	assert.Empty(t, shown.VisitLog[0].VisitorUserID)
}

func TestIdentifiedRepeatVisitsDeduplicatedInLog(t *testing.T) {
	srv := newTestServer(t)
	tokenU1 := registerUser(t, srv, "a@b.com", "pw1")
	tokenU2 := registerUser(t, srv, "c@d.com", "pw2")
	record := shortenURL(t, srv, tokenU1, "http://x.com")

	client := resty.New().SetRedirectPolicy(resty.NoRedirectPolicy())
	for i := 0; i < 2; i++ {
		resp, err := client.R().
			SetHeader("Authorization", tokenU2).
			Get(srv.URL + "/u/" + record.ShortCode)
		require.NoError(t, err)
		require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode())
	}

	var shown models.URLRecordResponse
	showResp, err := resty.New().R().
		SetHeader("Authorization", tokenU1).
		SetResult(&shown).
		Get(srv.URL + "/urls/" + record.ShortCode)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, showResp.StatusCode())
	assert.Equal(t, int64(2), shown.VisitCount)
	assert.Len(t, shown.VisitLog, 1)
}

func TestRedirectUnknownCode(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv, "a@b.com", "pw1")

	client := resty.New().SetRedirectPolicy(resty.NoRedirectPolicy())
	resp, err := client.R().Get(srv.URL + "/u/unknown")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func TestUrlsJSONDump(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "a@b.com", "pw1")
	record := shortenURL(t, srv, token, "http://x.com")

	var dump map[string]models.URLRecordResponse
	resp, err := resty.New().R().
		SetResult(&dump).
		Get(srv.URL + "/urls.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	require.Contains(t, dump, record.ShortCode)
	assert.Equal(t, "http://x.com", dump[record.ShortCode].OriginalURL)
}

func TestInternalStats(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "a@b.com", "pw1")
	shortenURL(t, srv, token, "http://x.com")

	var stats models.InternalStatsResponse
	resp, err := resty.New().R().
		SetHeader("X-Real-IP", "192.168.1.10").
		SetResult(&stats).
		Get(srv.URL + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, int64(1), stats.URLs)
	assert.Equal(t, int64(1), stats.Users)

	resp, err = resty.New().R().
		SetHeader("X-Real-IP", "10.0.0.1").
		Get(srv.URL + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func gzipBytes(t *testing.T, input []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(input)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func TestShortenWithGzippedRequestBody(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "a@b.com", "pw1")

	body, err := json.Marshal(models.ShortenRequest{URL: "http://x.com"})
	require.NoError(t, err)

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetHeader("Authorization", token).
		SetBody(gzipBytes(t, body)).
		Post(srv.URL + "/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode())
}

func TestShortenCodespaceExhausted(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	directoryMock := &mockstore.DirectoryMock{}
	linkMock := &mockstore.LinkStoreMock{}

	u1 := &user.User{ID: "u1", Email: "a@b.com"}
	directoryMock.On("Create", mock.Anything, "a@b.com", "pw1").Return(u1, nil)
	directoryMock.On("GetByID", mock.Anything, "u1").Return(u1, true)
	linkMock.On("Create", mock.Anything, "u1", "http://x.com").Return(nil, models.ErrCodespaceExhausted)

	svc := service.New(directoryMock, linkMock, "http://localhost:8080")

	signingKey, err := base64.URLEncoding.DecodeString(testSigningSecret)
	require.NoError(t, err)
	theAuth := auth.New(directoryMock, testCookieName, signingKey, time.Hour)

	checker, err := ipchecker.New("")
	require.NoError(t, err)

	srv := httptest.NewServer(New(svc, theAuth, checker))
	defer srv.Close()

	token := registerUser(t, srv, "a@b.com", "pw1")

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", token).
		SetBody(models.ShortenRequest{URL: "http://x.com"}).
		Post(srv.URL + "/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())

	linkMock.AssertExpectations(t)
}
