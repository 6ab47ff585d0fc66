package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/dbx"
	"github.com/dmitrijs2005/gophpress/internal/server/models"
)

// selectArticles joins the author so views can be rendered without a second
// round trip. Columns of u are NULL for deleted authors.
const selectArticles = `
	SELECT a.id, a.author_id, a.title, a.content, a.created_at, a.updated_at,
		u.id, u.email, u.name, u.picture, u.role, u.created_at
	FROM articles a
	LEFT JOIN users u ON u.id = a.author_id`

var sortColumns = map[string]string{
	"createdAt": "a.created_at",
	"updatedAt": "a.updated_at",
	"title":     "a.title",
}

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	a := &models.Article{}
	var (
		authorID, email, name, picture, role sql.NullString
		authorCreated                        sql.NullTime
	)
	if err := row.Scan(
		&a.ID, &a.AuthorID, &a.Title, &a.Content, &a.CreatedAt, &a.UpdatedAt,
		&authorID, &email, &name, &picture, &role, &authorCreated,
	); err != nil {
		return nil, err
	}
	if authorID.Valid {
		a.Author = &models.User{
			ID:        authorID.String,
			Email:     email.String,
			Name:      name.String,
			Picture:   picture.String,
			Role:      models.Role(role.String),
			CreatedAt: authorCreated.Time,
		}
	}
	return a, nil
}

// Create inserts article and fills the generated id and timestamps. The
// returned article has no Author loaded.
func (r *PostgresRepository) Create(ctx context.Context, article *models.Article) (*models.Article, error) {
	query := `
		INSERT INTO articles (author_id, title, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, article.AuthorID, article.Title, article.Content).
		Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return article, nil
}

// GetByID returns the article with its author, if the author still exists.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx, selectArticles+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// List returns one page of articles whose title contains params.Search.
func (r *PostgresRepository) List(ctx context.Context, params models.ListParams) ([]*models.Article, error) {
	orderBy, err := dbx.OrderBy(sortColumns, "a.id", params.SortField, params.SortDesc, "a.created_at DESC, a.id DESC")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	query := selectArticles + `
		WHERE ($1 = '' OR a.title ILIKE '%' || $1 || '%')
		` + orderBy + `
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, params.Search, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Update writes title and content and refreshes UpdatedAt.
func (r *PostgresRepository) Update(ctx context.Context, article *models.Article) (*models.Article, error) {
	query := `
		UPDATE articles
		SET title = $2, content = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	var updated time.Time
	err := r.db.QueryRowContext(ctx, query, article.ID, article.Title, article.Content).Scan(&updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	article.UpdatedAt = updated
	return article, nil
}

// Delete removes the article with the given id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
