package services

import (
	"context"

	"github.com/dmitrijs2005/jobtrack/internal/logging"
	"github.com/dmitrijs2005/jobtrack/internal/server/auth"
	"github.com/dmitrijs2005/jobtrack/internal/server/oauth"
	"github.com/dmitrijs2005/jobtrack/internal/server/repositories/users"
	"github.com/dmitrijs2005/jobtrack/internal/server/resetledger"
)

// Tokens issues and verifies session and reset tokens.
type Tokens interface {
	IssueSession(userID, email string) (string, error)
	IssueReset(userID, email string) (string, error)
	VerifyReset(token string) (*auth.Claims, error)
}

// IdentityProvider is the third-party sign-in backend (Google in production).
type IdentityProvider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (oauth.Profile, error)
}

// ResetMailer delivers reset links out of band.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to string, link string) error
}

// AuthDeps lists the collaborators of AuthService. Users, Hasher and Tokens
// are required. Provider is required only for OAuthLogin. Ledger and Mailer
// are optional: without a Ledger reset tokens may be replayed until they
// expire, without a Mailer ForgotPassword returns the token to the caller.
type AuthDeps struct {
	Users users.Repository
	// Tx runs lookup-then-write sequences atomically. Defaults to running
	// directly against Users.
	Tx       users.TxRunner
	Hasher   auth.Hasher
	Tokens   Tokens
	Provider IdentityProvider
	Ledger   resetledger.Ledger
	Mailer   ResetMailer
	// ResetLinkBase is the page that accepts ?token=..., e.g. https://app/reset-password.
	ResetLinkBase string
	Logger        logging.Logger
}
