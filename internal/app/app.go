// Package app assembles and runs the service: configuration, logging,
// the in-memory stores, session handling and the HTTP router, with
// graceful shutdown on termination signals.
package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinylink-dev/tinylink/internal/auth"
	"github.com/tinylink-dev/tinylink/internal/config"
	"github.com/tinylink-dev/tinylink/internal/hasher"
	"github.com/tinylink-dev/tinylink/internal/ipchecker"
	"github.com/tinylink-dev/tinylink/internal/links"
	"github.com/tinylink-dev/tinylink/internal/logger"
	"github.com/tinylink-dev/tinylink/internal/router"
	"github.com/tinylink-dev/tinylink/internal/service"
	"github.com/tinylink-dev/tinylink/internal/shortcode"
	"github.com/tinylink-dev/tinylink/internal/users"
)

// App bundles the configuration and the fully wired HTTP handler.
// All state is in-memory and lives for the process lifetime only.
type App struct {
	cfg         *config.Config
	httpHandler http.Handler
}

// New initializes a new App:
//   - loads configuration
//   - initializes the logger
//   - creates the identity directory and the URL record store
//   - wires session handling and the router
func New() (*App, error) {
	app := &App{}

	var err error
	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	if err := logger.Init(app.cfg.LogLevel); err != nil {
		return nil, err
	}

	signingKey, err := base64.URLEncoding.DecodeString(app.cfg.AuthCookieSigningSecretKey)
	if err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/New(): error while `base64.URLEncoding.DecodeString()` calling: %w", err)
	}

	directory := users.New(hasher.New(app.cfg.BcryptCost))
	store := links.New(
		shortcode.New(app.cfg.ShortCodeLength),
		app.cfg.ShortCodeMaxTries,
	)

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(
		service.New(directory, store, app.cfg.ShortURLBase),
		auth.New(directory, app.cfg.AuthCookieName, signingKey, app.cfg.SessionTTL),
		checker,
	)

	return app, nil
}

// Run starts the HTTP server and blocks until a termination signal
// arrives or the server fails.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return nil

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}
