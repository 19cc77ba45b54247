package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/jobtrack/internal/server/auth"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const claimsKey = "auth_claims"

// requireSession admits requests carrying a valid session token in the
// Authorization header and stores its claims on the context.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "missing authorization header"})
		}
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid authorization header"})
		}

		claims, err := s.sessions.VerifySession(parts[1])
		if err != nil {
			return s.writeError(c, err, nil)
		}

		c.Set(claimsKey, claims)
		return next(c)
	}
}

// GetClaims returns the session claims set by requireSession, or nil.
func GetClaims(c echo.Context) *auth.Claims {
	if cl, ok := c.Get(claimsKey).(*auth.Claims); ok {
		return cl
	}
	return nil
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			s.logger.Info(c.Request().Context(), "request",
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			)
			return nil
		},
	})
}
