// Package httpapi exposes the auth use cases as a JSON REST API on echo.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/jobtrack/internal/logging"
	"github.com/dmitrijs2005/jobtrack/internal/server/auth"
	"github.com/dmitrijs2005/jobtrack/internal/server/models"
	"github.com/dmitrijs2005/jobtrack/internal/server/services"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// AuthService is the subset of services.AuthService the handlers call.
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	ForgotPassword(ctx context.Context, email string) (*services.ForgotPasswordResult, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error
	OAuthLoginURL(state string) (string, error)
	OAuthLogin(ctx context.Context, code string) (*services.OAuthLoginResult, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
}

// SessionVerifier validates bearer tokens.
type SessionVerifier interface {
	VerifySession(token string) (*auth.Claims, error)
}

type Server struct {
	address         string
	echo            *echo.Echo
	auth            AuthService
	sessions        SessionVerifier
	logger          logging.Logger
	shutdownTimeout time.Duration
}

func NewServer(address string, svc AuthService, sessions SessionVerifier, l logging.Logger, shutdownTimeout time.Duration) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		address:         address,
		echo:            e,
		auth:            svc,
		sessions:        sessions,
		logger:          l.With("module", "http_server"),
		shutdownTimeout: shutdownTimeout,
	}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(s.requestLogger())
	e.Use(echomw.CORS())

	s.routes()
	return s
}

// Handler returns the router; tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.echo.Listener = listen

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)

	api := s.echo.Group("/api")
	g := api.Group("/auth")

	g.POST("/signup", s.signup)
	g.POST("/login", s.login)
	g.POST("/forgot-password", s.forgotPassword)
	g.POST("/reset-password", s.resetPassword)
	g.GET("/google", s.googleRedirect)
	g.GET("/google/callback", s.googleCallback)

	g.POST("/change-password", s.changePassword, s.requireSession)
	g.GET("/profile", s.profile, s.requireSession)
	g.GET("/me", s.profile, s.requireSession)
}
