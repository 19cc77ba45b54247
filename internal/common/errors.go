// Package common defines shared sentinel errors and small helpers used across
// the jobtrack auth service. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Credential errors.
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrValidation         = errors.New("validation error")

	// Token errors. ErrInvalidToken and ErrTokenExpired both match
	// ErrInvalidOrExpiredToken.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidToken          = fmt.Errorf("%w: invalid token", ErrInvalidOrExpiredToken)
	ErrTokenExpired          = fmt.Errorf("%w: token expired", ErrInvalidOrExpiredToken)
	ErrInvalidTokenPurpose   = errors.New("invalid token purpose")

	// Third-party identity errors.
	ErrMissingCode      = errors.New("no authorization code received")
	ErrProviderExchange = errors.New("provider code exchange failed")
	ErrProviderProfile  = errors.New("provider profile fetch failed")
	ErrOAuthFailed      = errors.New("oauth authentication failed")
)

// ValidationError reports per-field input problems. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add records a problem for field. Only the first message per field is kept.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// ErrOrNil returns e when at least one field was recorded.
func (e *ValidationError) ErrOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
