// Package auth manages browser sessions. A session is a signed JWT stored
// in an HttpOnly cookie (or sent in the Authorization header) carrying the
// authenticated user's ID. The rest of the application never touches the
// token encoding and only sees a current-user ID in the request context.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/tinylink-dev/tinylink/internal/user"
)

type userDirectory interface {
	GetByID(ctx context.Context, userID string) (*user.User, bool)
}

// Auth issues, clears and verifies session tokens.
type Auth struct {
	users      userDirectory
	cookieName string
	signingKey []byte
	sessionTTL time.Duration
}

// Claims are the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key holding the authenticated user's ID.
// An empty string means the request is anonymous.
const UserIDKey ContextKey = "userID"

// New creates an Auth handler. Sessions expire after sessionTTL.
func New(users userDirectory, cookieName string, signingKey []byte, sessionTTL time.Duration) *Auth {
	return &Auth{
		users:      users,
		cookieName: cookieName,
		signingKey: signingKey,
		sessionTTL: sessionTTL,
	}
}

// CurrentUserID returns the authenticated user's ID from the request
// context, or an empty string for an anonymous request.
func CurrentUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// Authenticate is an HTTP middleware resolving the session token into a
// user ID stored in the request context. Requests without a valid token,
// or with a token for a user the directory no longer knows, pass through
// as anonymous; rejecting them is a per-route decision.
func (a *Auth) Authenticate(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		userID := a.userIDFromAuthorizationHeaderOrCookie(request)
		if userID != "" {
			if _, found := a.users.GetByID(request.Context(), userID); !found {
				userID = ""
			}
		}

		ctx := context.WithValue(request.Context(), UserIDKey, userID)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// EstablishSession signs a fresh session token for userID and sets it as
// both the session cookie and the Authorization response header.
func (a *Auth) EstablishSession(response http.ResponseWriter, userID string) error {
	now := time.Now()
	tokenString, err := a.buildJWTString(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.sessionTTL)),
		},
		UserID: userID,
	})
	if err != nil {
		return err
	}

	response.Header().Set("Authorization", tokenString)
	http.SetCookie(response, &http.Cookie{
		Name:     a.cookieName,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  now.Add(a.sessionTTL),
	})

	return nil
}

// ClearSession invalidates the session cookie.
func (a *Auth) ClearSession(response http.ResponseWriter) {
	http.SetCookie(response, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (a *Auth) tokenStringFromAuthorizationHeaderOrCookie(request *http.Request) string {
	tokenString := request.Header.Get("Authorization")
	if tokenString != "" {
		return tokenString
	}
	cookie, err := request.Cookie(a.cookieName)
	if err == nil {
		tokenString = cookie.Value
	}

	return tokenString
}

func (a *Auth) userIDFromAuthorizationHeaderOrCookie(request *http.Request) string {
	tokenString := a.tokenStringFromAuthorizationHeaderOrCookie(request)
	if tokenString == "" {
		return ""
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingKey, nil
		},
	)
	if err != nil || !token.Valid {
		return ""
	}

	return claims.UserID
}

func (a *Auth) buildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
