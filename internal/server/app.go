// Package server initializes and runs the gophpress API server.
// It opens the database, applies migrations, wires services to the REST
// layer, runs background maintenance and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophpress/internal/dbx"
	"github.com/dmitrijs2005/gophpress/internal/logging"
	"github.com/dmitrijs2005/gophpress/internal/server/config"
	"github.com/dmitrijs2005/gophpress/internal/server/metrics"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophpress/internal/server/rest"
	"github.com/dmitrijs2005/gophpress/internal/server/services"
	"github.com/dmitrijs2005/gophpress/internal/server/storage"
)

// purgeInterval is how often expired refresh tokens are deleted.
const purgeInterval = time.Hour

type tokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	userService    *services.UserService
	articleService *services.ArticleService
	authService    *services.AuthService
}

// NewApp connects to the database, migrates it and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := dbx.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	us := services.NewUserService(db, rm, c, storage.NewS3Storage(c), logger)
	as, err := services.NewAuthService(db, rm, c, us, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		userService:    us,
		articleService: services.NewArticleService(db, rm, logger),
		authService:    as,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startRESTServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewRESTServer(app.config, app.logger, app.userService, app.articleService, app.authService, app.db)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// runPurgeLoop deletes expired refresh tokens every interval until ctx ends.
func runPurgeLoop(ctx context.Context, p tokenPurger, interval time.Duration, logger logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpiredTokens(ctx)
			if err != nil {
				logger.Error(ctx, "purge expired refresh tokens", "error", err)
				continue
			}
			metrics.RecordPurge(n)
			if n > 0 {
				logger.Info(ctx, "purged expired refresh tokens", "count", n)
			}
		}
	}
}

// Run serves until a termination signal arrives, then waits for the server
// and background jobs to stop and closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startRESTServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		runPurgeLoop(ctx, app.authService, purgeInterval, app.logger)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
