// Package users declares the identity store contract and its PostgreSQL
// implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophpress/internal/server/models"
)

// Repository persists user accounts. Lookups return common.ErrNotFound when
// no row matches; Create and Update return common.ErrAlreadyExists when the
// email is taken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByServiceOrEmail returns the user bound to provider/serviceID, or
	// failing that the user with the given email.
	FindByServiceOrEmail(ctx context.Context, provider, serviceID, email string) (*models.User, error)
	List(ctx context.Context, params models.ListParams) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
}
