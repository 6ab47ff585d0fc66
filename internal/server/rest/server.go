// Package rest exposes the services over HTTP using the chi router.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophpress/internal/logging"
	"github.com/dmitrijs2005/gophpress/internal/server/authz"
	"github.com/dmitrijs2005/gophpress/internal/server/config"
	"github.com/dmitrijs2005/gophpress/internal/server/models"
	"github.com/dmitrijs2005/gophpress/internal/server/services"
	"github.com/dmitrijs2005/gophpress/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

// UserService is the account API the handlers depend on.
type UserService interface {
	List(ctx context.Context, caller authz.Caller, q services.ListQuery) ([]*models.User, error)
	Get(ctx context.Context, caller authz.Caller, id string) (*models.User, error)
	Me(ctx context.Context, caller authz.Caller) (*models.User, error)
	Create(ctx context.Context, in services.CreateUserInput) (*models.User, error)
	Update(ctx context.Context, caller authz.Caller, id string, in services.UpdateUserInput) (*models.User, error)
	UpdatePassword(ctx context.Context, caller authz.Caller, id string, in services.PasswordInput) (*models.User, error)
	Delete(ctx context.Context, caller authz.Caller, id string) error
	PresignPicture(ctx context.Context, caller authz.Caller, id string) (*storage.Upload, error)
}

// ArticleService is the article API the handlers depend on.
type ArticleService interface {
	Create(ctx context.Context, caller authz.Caller, in services.ArticleInput) (*models.Article, error)
	List(ctx context.Context, caller authz.Caller, q services.ListQuery) ([]*models.Article, error)
	Get(ctx context.Context, caller authz.Caller, id string) (*models.Article, error)
	Update(ctx context.Context, caller authz.Caller, id string, in services.ArticleInput) (*models.Article, error)
	Delete(ctx context.Context, caller authz.Caller, id string) error
}

// AuthService establishes identities for requests.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*services.TokenPair, *models.User, error)
	VerifyCredentials(ctx context.Context, email, password string) (*models.User, error)
	LoginWithService(ctx context.Context, p services.ServiceProfile) (*services.TokenPair, *models.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// Pinger reports database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RESTServer serves the public API.
type RESTServer struct {
	config   *config.Config
	logger   logging.Logger
	users    UserService
	articles ArticleService
	auth     AuthService
	db       Pinger
}

// NewRESTServer wires the handlers. db may be nil, in which case /healthz
// does not check the database.
func NewRESTServer(cfg *config.Config, l logging.Logger, us UserService, as ArticleService, auth AuthService, db Pinger) *RESTServer {
	return &RESTServer{
		config:   cfg,
		logger:   l.With("module", "rest_server"),
		users:    us,
		articles: as,
		auth:     auth,
		db:       db,
	}
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *RESTServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.EndpointAddrHTTP,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
