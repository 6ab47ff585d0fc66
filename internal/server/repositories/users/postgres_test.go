package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "email", "password_hash", "name", "picture", "role", "services", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^\s*INSERT\s+INTO\s+users\s*\(email,\s*password_hash,\s*name,\s*picture,\s*role,\s*services\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`
	mock.ExpectQuery(q).
		WithArgs("a@a.com", "hash", "a", "pic", "user", []byte(`{"google":"g-1"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("u-1", now, now))

	u := &models.User{Email: "a@a.com", PasswordHash: "hash", Name: "a", Picture: "pic", Role: models.RoleUser, Services: map[string]string{"google": "g-1"}}
	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, now, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_NilServicesStoredAsEmptyObject(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("a@a.com", "hash", "", "", "user", []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("u-1", now, now))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@a.com", PasswordHash: "hash", Role: models.RoleUser})
	require.NoError(t, err)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.User{Email: "a@a.com", Role: models.RoleUser})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@a.com"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-1", "a@a.com", "hash", "a", "pic", "admin", []byte(`{"github":"42"}`), now, now))

	got, err := repo.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "a@a.com", got.Email)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, map[string]string{"github": "42"}, got.Services)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByEmail_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email\s*=\s*\$1`).
		WithArgs("a@a.com").
		WillReturnError(errors.New("db err"))

	_, err := repo.GetByEmail(context.Background(), "a@a.com")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByServiceOrEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)WHERE\s+services\s*->>\s*\$1\s*=\s*\$2\s+OR\s+email\s*=\s*\$3.*LIMIT\s+1`).
		WithArgs("google", "g-1", "a@a.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-1", "a@a.com", "hash", "a", "pic", "user", []byte(`{}`), now, now))

	got, err := repo.FindByServiceOrEmail(context.Background(), "google", "g-1", "a@a.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
}

func TestList_PageAndSort(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+users.*ILIKE.*ORDER\s+BY\s+name\s+DESC,\s*id\s+DESC\s+LIMIT\s+\$2\s+OFFSET\s+\$3`).
		WithArgs("al", 10, 20).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-1", "alice@a.com", "h", "alice", "p", "user", []byte(`{}`), now, now).
			AddRow("u-2", "alan@a.com", "h", "alan", "p", "user", nil, now, now))

	got, err := repo.List(context.Background(), models.ListParams{Search: "al", Limit: 10, Offset: 20, SortField: "name", SortDesc: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u-2", got[1].ID)
	assert.Nil(t, got[1].Services)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC`).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	got, err := repo.List(context.Background(), models.ListParams{Limit: 30})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestList_UnknownSortField(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	_, err := repo.List(context.Background(), models.ListParams{Limit: 30, SortField: "password_hash"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUpdate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^\s*UPDATE\s+users\s+SET\s+email\s*=\s*\$2.*WHERE\s+id\s*=\s*\$1\s+RETURNING\s+updated_at\s*$`).
		WithArgs("u-1", "a@a.com", "hash", "new", "pic", "user", []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	u := &models.User{ID: "u-1", Email: "a@a.com", PasswordHash: "hash", Name: "new", Picture: "pic", Role: models.RoleUser}
	got, err := repo.Update(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, now, got.UpdatedAt)
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+users`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), &models.User{ID: "ghost"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+users`).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Update(context.Background(), &models.User{ID: "u-1"})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectExec(q).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("u-2").WillReturnError(errors.New("db err"))

	require.NoError(t, repo.Delete(context.Background(), "u-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "ghost"), common.ErrNotFound)
	assert.Error(t, repo.Delete(context.Background(), "u-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}
