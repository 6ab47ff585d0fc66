package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/dbx"
	"github.com/dmitrijs2005/gophpress/internal/logging"
	"github.com/dmitrijs2005/gophpress/internal/server/config"
	"github.com/dmitrijs2005/gophpress/internal/server/models"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/articles"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophpress/internal/server/storage"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// --- in-memory repositories ---

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*models.User

	updates   int
	updateErr error
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.Services != nil {
		c.Services = make(map[string]string, len(u.Services))
		for k, v := range u.Services {
			c.Services[k] = v
		}
	}
	return &c
}

func (m *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.byID {
		if other.Email == u.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = cloneUser(u)
	return u, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memUsers) FindByServiceOrEmail(_ context.Context, provider, serviceID, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Services[provider] == serviceID {
			return cloneUser(u), nil
		}
	}
	for _, u := range m.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memUsers) List(_ context.Context, p models.ListParams) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.User{}
	for _, u := range m.byID {
		if p.Search == "" || strings.Contains(u.Name, p.Search) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memUsers) Update(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if _, ok := m.byID[u.ID]; !ok {
		return nil, common.ErrNotFound
	}
	m.updates++
	u.UpdatedAt = time.Now()
	m.byID[u.ID] = cloneUser(u)
	return u, nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memArticles struct {
	mu    sync.Mutex
	byID  map[string]*models.Article
	users *memUsers
}

func (m *memArticles) withAuthor(a *models.Article) *models.Article {
	c := *a
	c.Author = nil
	if u, err := m.users.GetByID(context.Background(), a.AuthorID); err == nil {
		c.Author = u
	}
	return &c
}

func (m *memArticles) Create(_ context.Context, a *models.Article) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	c := *a
	m.byID[a.ID] = &c
	return a, nil
}

func (m *memArticles) GetByID(_ context.Context, id string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return m.withAuthor(a), nil
}

func (m *memArticles) List(_ context.Context, p models.ListParams) ([]*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Article{}
	for _, a := range m.byID {
		out = append(out, m.withAuthor(a))
	}
	return out, nil
}

func (m *memArticles) Update(_ context.Context, a *models.Article) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[a.ID]
	if !ok {
		return nil, common.ErrNotFound
	}
	stored.Title, stored.Content, stored.UpdatedAt = a.Title, a.Content, time.Now()
	a.UpdatedAt = stored.UpdatedAt
	return a, nil
}

func (m *memArticles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memRefresh struct {
	mu      sync.Mutex
	byToken map[string]*models.RefreshToken

	createErr error
	deleteErr error
}

func (m *memRefresh) Create(_ context.Context, userID, token string, validity time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.byToken[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (m *memRefresh) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.byToken[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *rt
	return &c, nil
}

func (m *memRefresh) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.byToken, token)
	return nil
}

func (m *memRefresh) DeleteByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, rt := range m.byToken {
		if rt.UserID == userID {
			delete(m.byToken, k)
		}
	}
	return nil
}

func (m *memRefresh) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, rt := range m.byToken {
		if rt.Expires.Before(now) {
			delete(m.byToken, k)
			n++
		}
	}
	return n, nil
}

type memManager struct {
	users    *memUsers
	articles *memArticles
	refresh  *memRefresh
}

func newMemManager() *memManager {
	u := &memUsers{byID: map[string]*models.User{}}
	return &memManager{
		users:    u,
		articles: &memArticles{byID: map[string]*models.Article{}, users: u},
		refresh:  &memRefresh{byToken: map[string]*models.RefreshToken{}},
	}
}

func (m *memManager) RunMigrations(context.Context, *sql.DB) error         { return nil }
func (m *memManager) Users(dbx.DBTX) users.Repository                     { return m.users }
func (m *memManager) Articles(dbx.DBTX) articles.Repository               { return m.articles }
func (m *memManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository     { return m.refresh }

// --- pictures ---

type fakePictures struct {
	err error
}

func (f *fakePictures) PresignPictureUpload(_ context.Context, userID string) (*storage.Upload, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := "pictures/" + userID + "/k"
	return &storage.Upload{Key: key, UploadURL: "http://s3/signed/" + key, PublicURL: "http://s3/pictures/" + key, ExpiresAt: time.Now().Add(time.Minute)}, nil
}

// --- wiring ---

type fixture struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	rm       *memManager
	pictures *fakePictures
	users    *UserService
	articles *ArticleService
	auth     *AuthService
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		MasterKey:                    "m",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		BcryptCost:                   bcrypt.MinCost,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := testConfig()
	rm := newMemManager()
	pics := &fakePictures{}
	logger := logging.Nop()

	us := NewUserService(db, rm, cfg, pics, logger)
	as, err := NewAuthService(db, rm, cfg, us, logger)
	if err != nil {
		t.Fatalf("NewAuthService error: %v", err)
	}

	return &fixture{
		db:       db,
		mock:     mock,
		rm:       rm,
		pictures: pics,
		users:    us,
		articles: NewArticleService(db, rm, logger),
		auth:     as,
	}
}

func (f *fixture) createUser(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), CreateUserInput{Email: email, Password: "123456", Role: string(role)})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}
