package services

import "github.com/dmitrijs2005/jobtrack/internal/common"

// OAuthFailedError wraps any failure of the third-party sign-in flow after
// a code was supplied. It matches common.ErrOAuthFailed and the cause.
type OAuthFailedError struct {
	Err error
}

func (e *OAuthFailedError) Error() string {
	return common.ErrOAuthFailed.Error() + ": " + e.Err.Error()
}

func (e *OAuthFailedError) Unwrap() []error {
	return []error{common.ErrOAuthFailed, e.Err}
}

// Details describes the upstream failure for the caller.
func (e *OAuthFailedError) Details() string {
	return e.Err.Error()
}
