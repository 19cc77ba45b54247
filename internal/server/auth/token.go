// Package auth signs and verifies the service's JWTs and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/jobtrack/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	PurposeSession       = "session"
	PurposeResetPassword = "reset-password"
)

// Claims is the token payload. The identity ID lives in the registered
// "sub" claim for every purpose.
type Claims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	Secret     []byte
	SessionTTL time.Duration
	ResetTTL   time.Duration
	Issuer     string
}

// TokenCodec issues and verifies HS256 tokens with a single shared secret.
type TokenCodec struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	issuer     string
	now        func() time.Time
}

func NewTokenCodec(cfg TokenConfig) *TokenCodec {
	return &TokenCodec{
		secret:     cfg.Secret,
		sessionTTL: cfg.SessionTTL,
		resetTTL:   cfg.ResetTTL,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}
}

// ResetTTL is the lifetime given to reset tokens.
func (c *TokenCodec) ResetTTL() time.Duration { return c.resetTTL }

// Issue signs claims with an expiry of expiresAt. IssuedAt and Issuer are
// filled in by the codec.
func (c *TokenCodec) Issue(claims Claims, expiresAt time.Time) (string, error) {
	claims.IssuedAt = jwt.NewNumericDate(c.now())
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	if c.issuer != "" {
		claims.Issuer = c.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Verify checks signature, structure and expiry. It does not look at the
// purpose. Expired tokens yield common.ErrTokenExpired, anything else
// common.ErrInvalidToken; both match common.ErrInvalidOrExpiredToken.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

func (c *TokenCodec) IssueSession(userID, email string) (string, error) {
	return c.Issue(Claims{
		Email:            email,
		Purpose:          PurposeSession,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, c.now().Add(c.sessionTTL))
}

// VerifySession accepts only session-purpose tokens.
func (c *TokenCodec) VerifySession(tokenString string) (*Claims, error) {
	return c.verifyPurpose(tokenString, PurposeSession)
}

// IssueReset mints a reset-password token with a fresh jti.
func (c *TokenCodec) IssueReset(userID, email string) (string, error) {
	return c.Issue(Claims{
		Email:   email,
		Purpose: PurposeResetPassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
			ID:      uuid.NewString(),
		},
	}, c.now().Add(c.resetTTL))
}

// VerifyReset accepts only reset-password tokens. The purpose gate runs after
// signature and expiry, so a well-signed session token is reported as
// common.ErrInvalidTokenPurpose rather than invalid.
func (c *TokenCodec) VerifyReset(tokenString string) (*Claims, error) {
	return c.verifyPurpose(tokenString, PurposeResetPassword)
}

func (c *TokenCodec) verifyPurpose(tokenString, purpose string) (*Claims, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, common.ErrInvalidTokenPurpose
	}
	return claims, nil
}
