package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/logging"
	"github.com/dmitrijs2005/gophpress/internal/server/authz"
	"github.com/dmitrijs2005/gophpress/internal/server/config"
	"github.com/dmitrijs2005/gophpress/internal/server/models"
	"github.com/dmitrijs2005/gophpress/internal/server/services"
	"github.com/dmitrijs2005/gophpress/internal/server/storage"
	"github.com/goccy/go-json"
)

var (
	alice = &models.User{ID: "11111111-1111-1111-1111-111111111111", Email: "alice@a.com", Name: "alice", Role: models.RoleUser, PasswordHash: "h"}
	admin = &models.User{ID: "22222222-2222-2222-2222-222222222222", Email: "admin@a.com", Name: "admin", Role: models.RoleAdmin}
)

// fakeAuth knows two tokens and one password.
type fakeAuth struct {
	AuthService
	refreshErr error
	lastProfile services.ServiceProfile
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	switch token {
	case "alice-token":
		return alice, nil
	case "admin-token":
		return admin, nil
	}
	return nil, common.ErrInvalidToken
}

func (f *fakeAuth) VerifyCredentials(_ context.Context, email, password string) (*models.User, error) {
	if email == alice.Email && password == "123456" {
		return alice, nil
	}
	return nil, common.ErrInvalidCredentials
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*services.TokenPair, *models.User, error) {
	u, err := f.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	return &services.TokenPair{AccessToken: "alice-token", RefreshToken: "r1"}, u, nil
}

func (f *fakeAuth) RefreshToken(_ context.Context, token string) (*services.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &services.TokenPair{AccessToken: "alice-token", RefreshToken: token + "-next"}, nil
}

func (f *fakeAuth) LoginWithService(_ context.Context, p services.ServiceProfile) (*services.TokenPair, *models.User, error) {
	f.lastProfile = p
	return &services.TokenPair{AccessToken: "alice-token", RefreshToken: "r2"}, alice, nil
}

// fakeUsers records the caller and returns canned results.
type fakeUsers struct {
	UserService
	caller authz.Caller
	id     string
	err    error
	list   []*models.User
}

func (f *fakeUsers) List(_ context.Context, c authz.Caller, _ services.ListQuery) ([]*models.User, error) {
	f.caller = c
	return f.list, f.err
}

func (f *fakeUsers) Get(_ context.Context, c authz.Caller, id string) (*models.User, error) {
	f.caller, f.id = c, id
	if f.err != nil {
		return nil, f.err
	}
	return alice, nil
}

func (f *fakeUsers) Me(_ context.Context, c authz.Caller) (*models.User, error) {
	f.caller = c
	if c.IsAnonymous() {
		return nil, common.ErrUnauthenticated
	}
	return alice, nil
}

func (f *fakeUsers) Create(_ context.Context, in services.CreateUserInput) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: "33333333-3333-3333-3333-333333333333", Email: in.Email, Name: in.Name, CreatedAt: time.Now()}, nil
}

func (f *fakeUsers) Update(_ context.Context, c authz.Caller, id string, in services.UpdateUserInput) (*models.User, error) {
	f.caller, f.id = c, id
	if f.err != nil {
		return nil, f.err
	}
	u := *alice
	if in.Name != nil {
		u.Name = *in.Name
	}
	return &u, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, c authz.Caller, id string, _ services.PasswordInput) (*models.User, error) {
	f.caller, f.id = c, id
	if f.err != nil {
		return nil, f.err
	}
	return alice, nil
}

func (f *fakeUsers) Delete(_ context.Context, c authz.Caller, id string) error {
	f.caller, f.id = c, id
	return f.err
}

func (f *fakeUsers) PresignPicture(_ context.Context, c authz.Caller, id string) (*storage.Upload, error) {
	f.caller, f.id = c, id
	if f.err != nil {
		return nil, f.err
	}
	return &storage.Upload{Key: "pictures/x", UploadURL: "http://s3/up", PublicURL: "http://s3/pub"}, nil
}

type fakeArticles struct {
	ArticleService
	caller authz.Caller
	err    error
}

func (f *fakeArticles) Create(_ context.Context, c authz.Caller, in services.ArticleInput) (*models.Article, error) {
	f.caller = c
	if f.err != nil {
		return nil, f.err
	}
	a := &models.Article{ID: "a1", AuthorID: c.ID, Author: alice}
	if in.Title != nil {
		a.Title = *in.Title
	}
	return a, nil
}

func (f *fakeArticles) List(_ context.Context, c authz.Caller, _ services.ListQuery) ([]*models.Article, error) {
	f.caller = c
	if f.err != nil {
		return nil, f.err
	}
	return []*models.Article{{ID: "a1", AuthorID: alice.ID, Author: alice}, {ID: "a2", AuthorID: "gone"}}, nil
}

func (f *fakeArticles) Get(_ context.Context, c authz.Caller, id string) (*models.Article, error) {
	f.caller = c
	if f.err != nil {
		return nil, f.err
	}
	return &models.Article{ID: id, AuthorID: alice.ID, Author: alice}, nil
}

func (f *fakeArticles) Update(_ context.Context, c authz.Caller, id string, _ services.ArticleInput) (*models.Article, error) {
	f.caller = c
	if f.err != nil {
		return nil, f.err
	}
	return &models.Article{ID: id, AuthorID: alice.ID}, nil
}

func (f *fakeArticles) Delete(_ context.Context, c authz.Caller, _ string) error {
	f.caller = c
	return f.err
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

// --- wiring ---

type testServer struct {
	srv      *RESTServer
	handler  http.Handler
	users    *fakeUsers
	articles *fakeArticles
	auth     *fakeAuth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.MasterKey = "master"
	cfg.RateLimitRequests = 0

	ts := &testServer{users: &fakeUsers{}, articles: &fakeArticles{}, auth: &fakeAuth{}}
	ts.srv = NewRESTServer(cfg, logging.Nop(), ts.users, ts.articles, ts.auth, fakePinger{})
	ts.handler = ts.srv.Router()
	return ts
}

func (ts *testServer) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		r.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r)
	return rec
}

func bearer(token string) []string { return []string{"Authorization", "Bearer " + token} }

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}
