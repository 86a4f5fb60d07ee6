// Package router wires the HTTP surface: session handling, short URL
// CRUD, the public redirect and the JSON dump.
package router

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tinylink-dev/tinylink/internal/auth"
	"github.com/tinylink-dev/tinylink/internal/gziphttp"
	"github.com/tinylink-dev/tinylink/internal/ipchecker"
	"github.com/tinylink-dev/tinylink/internal/logger"
	"github.com/tinylink-dev/tinylink/internal/models"
	"github.com/tinylink-dev/tinylink/internal/service"
)

// Router holds the handler dependencies. One method per (verb, resource)
// pair; every handler translates service errors to HTTP statuses at this
// boundary and nowhere else.
type Router struct {
	svc       *service.Service
	auth      *auth.Auth
	ipChecker *ipchecker.IPChecker
	validate  *validator.Validate
}

// New builds the chi mux with the full middleware chain and route table.
func New(svc *service.Service, theAuth *auth.Auth, ipChecker *ipchecker.IPChecker) http.Handler {
	rt := &Router{
		svc:       svc,
		auth:      theAuth,
		ipChecker: ipChecker,
		validate:  validator.New(),
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gziphttp.DecompressRequest,
		gziphttp.CompressResponse,
		theAuth.Authenticate,
	)

	router.Post(`/register`, rt.PostRegister)
	router.Post(`/login`, rt.PostLogin)
	router.Post(`/logout`, rt.PostLogout)

	router.Get(`/urls`, rt.GetUrls)
	router.Post(`/urls`, rt.PostUrls)
	router.Get(`/urls.json`, rt.GetUrlsJSON)
	router.Get(`/urls/{short}`, rt.GetUrl)
	router.Put(`/urls/{short}`, rt.UpdateUrl)
	router.Patch(`/urls/{short}`, rt.UpdateUrl)
	router.Delete(`/urls/{short}`, rt.DeleteUrl)

	// Method-override forms kept for plain HTML clients.
	router.Post(`/urls/{short}`, rt.UpdateUrl)
	router.Post(`/urls/{short}/delete`, rt.DeleteUrl)

	router.Get(`/u/{short}`, rt.GetRedirectToFullURL)

	router.Get(`/api/internal/stats`, rt.GetInternalStats)

	return router
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrDuplicateEmail):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrBadCredentials),
		errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	}

	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(response http.ResponseWriter, statusCode int, value interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(statusCode)
	if err := json.NewEncoder(response).Encode(value); err != nil {
		logger.Log.Debugln("Error encoding the response body: ", zap.Error(err))
	}
}

func (rt *Router) writeError(response http.ResponseWriter, err error) {
	statusCode := statusFromError(err)
	if statusCode == http.StatusInternalServerError {
		logger.Log.Debugln("Unexpected handler error: ", zap.Error(err))
		writeJSON(response, statusCode, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(response, statusCode, errorResponse{Error: err.Error()})
}

func (rt *Router) decodeAndValidate(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return models.ErrValidation
	}
	if err := rt.validate.Struct(target); err != nil {
		return models.ErrValidation
	}

	return nil
}

// PostRegister creates an account and establishes a session for it.
func (rt *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	var registerRequest models.RegisterRequest
	if err := rt.decodeAndValidate(request, &registerRequest); err != nil {
		rt.writeError(response, err)
		return
	}

	usr, err := rt.svc.Register(request.Context(), registerRequest.Email, registerRequest.Password)
	if err != nil {
		rt.writeError(response, err)
		return
	}

	if err := rt.auth.EstablishSession(response, usr.ID); err != nil {
		rt.writeError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.UserResponse{ID: usr.ID, Email: usr.Email})
}

// PostLogin authenticates the credentials and establishes a session.
func (rt *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	var loginRequest models.LoginRequest
	if err := rt.decodeAndValidate(request, &loginRequest); err != nil {
		rt.writeError(response, err)
		return
	}

	usr, err := rt.svc.Login(request.Context(), loginRequest.Email, loginRequest.Password)
	if err != nil {
		rt.writeError(response, err)
		return
	}

	if err := rt.auth.EstablishSession(response, usr.ID); err != nil {
		rt.writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.UserResponse{ID: usr.ID, Email: usr.Email})
}

// PostLogout clears the session cookie. It succeeds for anonymous
// requests as well.
func (rt *Router) PostLogout(response http.ResponseWriter, request *http.Request) {
	rt.auth.ClearSession(response)
	response.WriteHeader(http.StatusNoContent)
}

// GetUrls lists the records owned by the session user.
func (rt *Router) GetUrls(response http.ResponseWriter, request *http.Request) {
	listing, err := rt.svc.ListUserURLs(request.Context(), auth.CurrentUserID(request.Context()))
	if err != nil {
		rt.writeError(response, err)
		return
	}
	if listing == nil {
		listing = models.UserURLs{}
	}

	writeJSON(response, http.StatusOK, listing)
}

// PostUrls creates a new short URL owned by the session user.
func (rt *Router) PostUrls(response http.ResponseWriter, request *http.Request) {
	var shortenRequest models.ShortenRequest
	if err := rt.decodeAndValidate(request, &shortenRequest); err != nil {
		rt.writeError(response, err)
		return
	}

	record, err := rt.svc.Shorten(request.Context(), auth.CurrentUserID(request.Context()), shortenRequest.URL)
	if err != nil {
		rt.writeError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, record)
}

// GetUrl shows a single owned record, visit log included.
func (rt *Router) GetUrl(response http.ResponseWriter, request *http.Request) {
	record, err := rt.svc.GetRecord(
		request.Context(),
		auth.CurrentUserID(request.Context()),
		chi.URLParam(request, "short"),
	)
	if err != nil {
		rt.writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, record)
}

// UpdateUrl replaces the target URL of an owned record and returns the
// edited record.
func (rt *Router) UpdateUrl(response http.ResponseWriter, request *http.Request) {
	var updateRequest models.UpdateURLRequest
	if err := rt.decodeAndValidate(request, &updateRequest); err != nil {
		rt.writeError(response, err)
		return
	}

	currentUserID := auth.CurrentUserID(request.Context())
	shortCode := chi.URLParam(request, "short")

	if err := rt.svc.UpdateURL(request.Context(), currentUserID, shortCode, updateRequest.URL); err != nil {
		rt.writeError(response, err)
		return
	}

	record, err := rt.svc.GetRecord(request.Context(), currentUserID, shortCode)
	if err != nil {
		rt.writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, record)
}

// DeleteUrl removes an owned record.
func (rt *Router) DeleteUrl(response http.ResponseWriter, request *http.Request) {
	err := rt.svc.DeleteURL(
		request.Context(),
		auth.CurrentUserID(request.Context()),
		chi.URLParam(request, "short"),
	)
	if err != nil {
		rt.writeError(response, err)
		return
	}

	response.WriteHeader(http.StatusNoContent)
}

// GetRedirectToFullURL resolves a short code, records the visit and
// redirects. No authentication required; a session user is recorded as
// the visitor identity.
func (rt *Router) GetRedirectToFullURL(response http.ResponseWriter, request *http.Request) {
	target, err := rt.svc.Resolve(
		request.Context(),
		chi.URLParam(request, "short"),
		auth.CurrentUserID(request.Context()),
	)
	if err != nil {
		rt.writeError(response, err)
		return
	}

	http.Redirect(response, request, target, http.StatusTemporaryRedirect)
}

// GetUrlsJSON dumps the full record store keyed by short code.
func (rt *Router) GetUrlsJSON(response http.ResponseWriter, request *http.Request) {
	writeJSON(response, http.StatusOK, rt.svc.DumpAll(request.Context()))
}

// GetInternalStats returns record and user totals to callers inside the
// trusted subnet.
func (rt *Router) GetInternalStats(response http.ResponseWriter, request *http.Request) {
	if !rt.ipChecker.Enabled() {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	clientIP, err := rt.ipChecker.ClientIP(request)
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.ipChecker.ClientIP()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !rt.ipChecker.Check(clientIP) {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	writeJSON(response, http.StatusOK, rt.svc.InternalStats(request.Context()))
}
