// Package users persists identity records. Implementations must enforce
// email uniqueness themselves; callers rely on ErrDuplicateEmail from Create
// even when two signups race past their own existence check.
package users

import (
	"context"

	"github.com/dmitrijs2005/jobtrack/internal/server/models"
)

// Repository is the credential store used by the auth service.
//
// Lookups return common.ErrorNotFound for missing rows. Create returns
// common.ErrDuplicateEmail when the email is taken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}
