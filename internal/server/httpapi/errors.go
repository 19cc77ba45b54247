package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/jobtrack/internal/common"
	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// errorStatus maps a domain error to its HTTP status and default message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "Validation failed"
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusBadRequest, "Email already in use"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, common.ErrInvalidTokenPurpose):
		return http.StatusUnauthorized, "Invalid token purpose"
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, common.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// writeError renders err. messages replaces the default message for
// specific sentinels, so one endpoint can say "Current password is
// incorrect" where another says "Invalid credentials".
func (s *Server) writeError(c echo.Context, err error, messages map[error]string) error {
	status, msg := errorStatus(err)
	for target, m := range messages {
		if errors.Is(err, target) {
			msg = m
			break
		}
	}

	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
	}

	body := errorBody{Error: msg}
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	return c.JSON(status, body)
}
