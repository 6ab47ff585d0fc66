// Package articles declares the resource store contract for articles and its
// PostgreSQL implementation.
package articles

import (
	"context"

	"github.com/dmitrijs2005/gophpress/internal/server/models"
)

// Repository persists articles. Reads load the author when it still exists;
// lookups return common.ErrNotFound when no row matches.
type Repository interface {
	Create(ctx context.Context, article *models.Article) (*models.Article, error)
	GetByID(ctx context.Context, id string) (*models.Article, error)
	List(ctx context.Context, params models.ListParams) ([]*models.Article, error)
	// Update writes title and content. AuthorID is never changed.
	Update(ctx context.Context, article *models.Article) (*models.Article, error)
	Delete(ctx context.Context, id string) error
}
