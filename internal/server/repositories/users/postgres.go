package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/dbx"
	"github.com/dmitrijs2005/gophpress/internal/server/models"
	"github.com/goccy/go-json"
)

const userColumns = `id, email, password_hash, name, picture, role, services, created_at, updated_at`

// sortColumns maps public sort fields onto columns.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"email":     "email",
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

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var role string
	var services []byte
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Picture, &role, &services, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	if len(services) > 0 {
		if err := json.Unmarshal(services, &u.Services); err != nil {
			return nil, fmt.Errorf("decode services: %w", err)
		}
	}
	return u, nil
}

func encodeServices(s map[string]string) ([]byte, error) {
	if s == nil {
		s = map[string]string{}
	}
	return json.Marshal(s)
}

func mapWriteError(err error) error {
	if dbx.IsUniqueViolation(err) {
		return common.ErrAlreadyExists
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// Create inserts user and fills the generated id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	services, err := encodeServices(user.Services)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (email, password_hash, name, picture, role, services)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Name, user.Picture, string(user.Role), services,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return user, nil
}

// GetByID returns the user with the given id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns the user with the given, already normalized, email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByServiceOrEmail prefers a service binding over an email match.
func (r *PostgresRepository) FindByServiceOrEmail(ctx context.Context, provider, serviceID, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE services ->> $1 = $2 OR email = $3
		ORDER BY (services ->> $1 = $2) DESC NULLS LAST
		LIMIT 1`
	return r.getOne(ctx, query, provider, serviceID, email)
}

// List returns one page of users whose name contains params.Search.
func (r *PostgresRepository) List(ctx context.Context, params models.ListParams) ([]*models.User, error) {
	orderBy, err := dbx.OrderBy(sortColumns, "id", params.SortField, params.SortDesc, "created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	query := `SELECT ` + userColumns + ` FROM users
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		` + orderBy + `
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, params.Search, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Update overwrites the mutable columns of user and refreshes UpdatedAt.
func (r *PostgresRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	services, err := encodeServices(user.Services)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE users
		SET email = $2, password_hash = $3, name = $4, picture = $5, role = $6, services = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name, user.Picture, string(user.Role), services,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, mapWriteError(err)
	}
	return user, nil
}

// Delete removes the user with the given id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
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
