package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/logging"
	"github.com/dmitrijs2005/gophpress/internal/server/authz"
	"github.com/dmitrijs2005/gophpress/internal/server/models"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/articles"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophpress/internal/server/validation"
)

var articleSortFields = []string{"createdAt", "updatedAt", "title"}

// ArticleInput is the body accepted on create and update. Nil fields are left
// untouched on update and empty on create. The author is never taken from
// the body.
type ArticleInput struct {
	Title   *string `json:"title" validate:"omitempty,max=512"`
	Content *string `json:"content" validate:"omitempty,max=1048576"`
}

// ArticleService manages articles.
type ArticleService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

// NewArticleService constructs an ArticleService.
func NewArticleService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *ArticleService {
	return &ArticleService{db: db, repomanager: m, logger: logger.With("module", "articles")}
}

// Create stores a new article owned by the caller.
func (s *ArticleService) Create(ctx context.Context, caller authz.Caller, in ArticleInput) (*models.Article, error) {
	if err := authz.CreateArticle(caller); err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}

	a := &models.Article{AuthorID: caller.ID}
	apply(a, in)

	created, err := s.repomanager.Articles(s.db).Create(ctx, a)
	if err != nil {
		return nil, err
	}

	// Load the author so the view is complete.
	if author, err := s.repomanager.Users(s.db).GetByID(ctx, caller.ID); err == nil {
		created.Author = author
	}
	s.logger.Info(ctx, "article created", "article_id", created.ID, "author_id", created.AuthorID)
	return created, nil
}

// List returns a page of articles. Public.
func (s *ArticleService) List(ctx context.Context, caller authz.Caller, q ListQuery) ([]*models.Article, error) {
	if err := authz.ReadArticle(caller); err != nil {
		return nil, err
	}
	params, err := q.Params(articleSortFields...)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Articles(s.db).List(ctx, params)
}

// Get returns one article. Public.
func (s *ArticleService) Get(ctx context.Context, caller authz.Caller, id string) (*models.Article, error) {
	if err := authz.ReadArticle(caller); err != nil {
		return nil, err
	}
	return s.load(ctx, s.repomanager.Articles(s.db), id)
}

// Update changes title and content. The article must exist before ownership
// is checked: its author or an admin may update.
func (s *ArticleService) Update(ctx context.Context, caller authz.Caller, id string, in ArticleInput) (*models.Article, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}

	repo := s.repomanager.Articles(s.db)
	a, err := s.load(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if err := authz.ModifyArticle(caller, a.AuthorID); err != nil {
		return nil, err
	}

	apply(a, in)
	return repo.Update(ctx, a)
}

// Delete removes an article. Its author or an admin may delete.
func (s *ArticleService) Delete(ctx context.Context, caller authz.Caller, id string) error {
	repo := s.repomanager.Articles(s.db)
	a, err := s.load(ctx, repo, id)
	if err != nil {
		return err
	}
	if err := authz.ModifyArticle(caller, a.AuthorID); err != nil {
		return err
	}
	if err := repo.Delete(ctx, a.ID); err != nil {
		return err
	}
	s.logger.Info(ctx, "article deleted", "article_id", a.ID, "by", caller.ID)
	return nil
}

func (s *ArticleService) load(ctx context.Context, repo articles.Repository, id string) (*models.Article, error) {
	if !validID(id) {
		return nil, common.ErrNotFound
	}
	return repo.GetByID(ctx, id)
}

func apply(a *models.Article, in ArticleInput) {
	if in.Title != nil {
		a.Title = *in.Title
	}
	if in.Content != nil {
		a.Content = *in.Content
	}
}
