// Package services contains server-side business logic. This file implements
// AuthService, which owns the credential lifecycle: signup, login, password
// reset and change, and sign-in through a third-party identity provider.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/jobtrack/internal/common"
	"github.com/dmitrijs2005/jobtrack/internal/logging"
	"github.com/dmitrijs2005/jobtrack/internal/server/auth"
	"github.com/dmitrijs2005/jobtrack/internal/server/models"
	"github.com/dmitrijs2005/jobtrack/internal/server/oauth"
	"github.com/dmitrijs2005/jobtrack/internal/server/repositories/users"
	"github.com/dmitrijs2005/jobtrack/internal/server/resetledger"
)

// SignupInput carries the fields accepted by Signup.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// ForgotPasswordResult is returned by ForgotPassword. Token is empty when
// the link was emailed instead.
type ForgotPasswordResult struct {
	Token     string
	Delivered bool
}

// OAuthLoginResult bundles the session token with the local identity and
// the provider profile it was matched on.
type OAuthLoginResult struct {
	Token   string
	User    *models.User
	Profile oauth.Profile
}

// AuthService runs the authentication use cases. Each call is an
// independent transaction against the users store; the service keeps no
// per-user state between calls.
type AuthService struct {
	users         users.Repository
	tx            users.TxRunner
	hasher        auth.Hasher
	tokens        Tokens
	provider      IdentityProvider
	ledger        resetledger.Ledger
	mailer        ResetMailer
	resetLinkBase string
	logger        logging.Logger
}

// NewAuthService wires an AuthService. It panics when a required
// collaborator is missing, since that is a programming error.
func NewAuthService(d AuthDeps) *AuthService {
	if d.Users == nil {
		panic("services: AuthDeps.Users is required")
	}
	if d.Hasher == nil {
		panic("services: AuthDeps.Hasher is required")
	}
	if d.Tokens == nil {
		panic("services: AuthDeps.Tokens is required")
	}

	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	tx := d.Tx
	if tx == nil {
		tx = users.NewDirectRunner(d.Users)
	}

	return &AuthService{
		users:         d.Users,
		tx:            tx,
		hasher:        d.Hasher,
		tokens:        d.Tokens,
		provider:      d.Provider,
		ledger:        d.Ledger,
		mailer:        d.Mailer,
		resetLinkBase: d.ResetLinkBase,
		logger:        logger.With("module", "auth_service"),
	}
}

// Signup creates a password-backed identity with the default role.
// A taken email yields common.ErrDuplicateEmail.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	var v common.ValidationError
	checkRequired(&v, "name", in.Name)
	checkEmail(&v, in.Email)
	checkPassword(&v, "password", in.Password)
	if err := v.ErrOrNil(); err != nil {
		return nil, err
	}

	_, err := s.users.GetByEmail(ctx, in.Email)
	if err == nil {
		return nil, common.ErrDuplicateEmail
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// the store's unique index still decides a race between two signups
	u, err := s.users.Create(ctx, &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info(ctx, "user signed up", "user_id", u.ID)
	return u, nil
}

// Login returns a session token. Unknown email and wrong password are
// both reported as common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	var v common.ValidationError
	checkRequired(&v, "email", email)
	checkRequired(&v, "password", password)
	if err := v.ErrOrNil(); err != nil {
		return "", err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		s.logger.Warn(ctx, "stored password hash is unreadable", "user_id", u.ID, "error", err)
		return "", common.ErrInvalidCredentials
	}
	if !ok {
		return "", common.ErrInvalidCredentials
	}

	token, err := s.tokens.IssueSession(u.ID, u.Email)
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}
	return token, nil
}

// ForgotPassword issues a reset token for email. Nothing is mutated.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	token, err := s.tokens.IssueReset(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("issue reset token: %w", err)
	}

	if s.mailer == nil {
		return &ForgotPasswordResult{Token: token}, nil
	}

	if err := s.mailer.SendPasswordReset(ctx, u.Email, s.resetLink(token)); err != nil {
		s.logger.Error(ctx, "reset email not sent", "user_id", u.ID, "error", err)
		return nil, fmt.Errorf("send reset email: %w", err)
	}
	s.logger.Info(ctx, "reset email sent", "user_id", u.ID)
	return &ForgotPasswordResult{Delivered: true}, nil
}

// ResetPassword sets a new password for the identity named by a reset
// token. Signature and expiry are checked before purpose, then the account
// is looked up again by the token's email. With a ledger the token is spent
// inside the write and given back if the write does not commit.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.VerifyReset(token)
	if err != nil {
		return err
	}

	var v common.ValidationError
	checkPassword(&v, "newPassword", newPassword)
	if err := v.ErrOrNil(); err != nil {
		return err
	}
	if s.ledger != nil && claims.ID == "" {
		return common.ErrInvalidToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var userID string
	consumed := false
	err = s.tx.InTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := lookupUser(ctx, repo, claims.Email)
		if err != nil {
			return err
		}
		userID = u.ID

		if s.ledger != nil {
			first, err := s.ledger.Consume(ctx, claims.ID, claims.ExpiresAt.Time)
			if err != nil {
				return fmt.Errorf("consume reset token: %w", err)
			}
			if !first {
				return common.ErrInvalidOrExpiredToken
			}
			consumed = true
		}

		return updatePasswordHash(ctx, repo, u.ID, hash)
	})
	if err != nil {
		if consumed {
			if rerr := s.ledger.Release(ctx, claims.ID); rerr != nil {
				s.logger.Error(ctx, "reset token not released", "error", rerr)
			}
		}
		return err
	}

	s.logger.Info(ctx, "password reset", "user_id", userID)
	return nil
}

// ChangePassword replaces the password of the authenticated identity after
// checking currentPassword. On any failure the stored hash is unchanged.
func (s *AuthService) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	var v common.ValidationError
	checkRequired(&v, "currentPassword", currentPassword)
	checkPassword(&v, "newPassword", newPassword)
	if err := v.ErrOrNil(); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var userID string
	err = s.tx.InTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := lookupUser(ctx, repo, email)
		if err != nil {
			return err
		}
		userID = u.ID

		ok, err := s.hasher.Verify(currentPassword, u.PasswordHash)
		if err != nil || !ok {
			return common.ErrInvalidCredentials
		}

		return updatePasswordHash(ctx, repo, u.ID, hash)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// OAuthLoginURL is where the browser is sent to start third-party sign-in.
func (s *AuthService) OAuthLoginURL(state string) (string, error) {
	if s.provider == nil {
		return "", &OAuthFailedError{Err: errors.New("identity provider not configured")}
	}
	return s.provider.AuthCodeURL(state), nil
}

// OAuthLogin completes third-party sign-in: it exchanges code, loads the
// provider profile and signs in the identity with that email, creating it
// (without a local password) on first use.
func (s *AuthService) OAuthLogin(ctx context.Context, code string) (*OAuthLoginResult, error) {
	if code == "" {
		return nil, common.ErrMissingCode
	}
	if s.provider == nil {
		return nil, &OAuthFailedError{Err: errors.New("identity provider not configured")}
	}

	accessToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		s.logger.Warn(ctx, "oauth code exchange failed", "error", err)
		return nil, &OAuthFailedError{Err: err}
	}

	profile, err := s.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		s.logger.Warn(ctx, "oauth profile fetch failed", "error", err)
		return nil, &OAuthFailedError{Err: err}
	}

	if !profile.VerifiedEmail {
		s.logger.Warn(ctx, "oauth profile email not verified")
		return nil, &OAuthFailedError{Err: &oauth.ProviderError{
			Kind:        common.ErrProviderProfile,
			Description: "email not verified",
		}}
	}

	u, err := s.findOrCreateOAuthUser(ctx, profile)
	if err != nil {
		return nil, &OAuthFailedError{Err: err}
	}

	token, err := s.tokens.IssueSession(u.ID, u.Email)
	if err != nil {
		return nil, &OAuthFailedError{Err: fmt.Errorf("issue session: %w", err)}
	}

	return &OAuthLoginResult{Token: token, User: u, Profile: profile}, nil
}

// Profile returns the identity behind a verified session.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

func lookupUser(ctx context.Context, repo users.Repository, email string) (*models.User, error) {
	u, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

func updatePasswordHash(ctx context.Context, repo users.Repository, userID, hash string) error {
	if err := repo.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// findOrCreateOAuthUser signs in the identity with the provider's email,
// creating it without a local password on first use.
func (s *AuthService) findOrCreateOAuthUser(ctx context.Context, p oauth.Profile) (*models.User, error) {
	var (
		u           *models.User
		provisioned bool
	)
	err := s.tx.InTx(ctx, func(ctx context.Context, repo users.Repository) error {
		found, err := repo.GetByEmail(ctx, p.Email)
		if err == nil {
			u = found
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("lookup user: %w", err)
		}

		created, err := repo.Create(ctx, &models.User{
			Name:  p.Name,
			Email: p.Email,
			Role:  models.RoleUser,
		})
		if err != nil {
			return err
		}
		u, provisioned = created, true
		return nil
	})
	if errors.Is(err, common.ErrDuplicateEmail) {
		// a concurrent first sign-in created it
		return s.users.GetByEmail(ctx, p.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("find or create user: %w", err)
	}

	if provisioned {
		s.logger.Info(ctx, "user provisioned from provider", "user_id", u.ID)
	}
	return u, nil
}

func (s *AuthService) resetLink(token string) string {
	return s.resetLinkBase + "?token=" + url.QueryEscape(token)
}
