// Package views projects models into their public JSON representations.
// Projections never include password hashes or external service bindings.
package views

import (
	"time"

	"github.com/dmitrijs2005/gophpress/internal/server/models"
)

// UserView is the public shape of a user. Email and CreatedAt are present
// only in the full view.
type UserView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Picture   string     `json:"picture,omitempty"`
	Email     string     `json:"email,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// ArticleView is the public shape of an article.
type ArticleView struct {
	ID        string    `json:"id"`
	Author    UserView  `json:"author"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User projects u. The full view adds email and createdAt.
func User(u *models.User, full bool) UserView {
	v := UserView{ID: u.ID, Name: u.Name, Picture: u.Picture}
	if full {
		created := u.CreatedAt
		v.Email = u.Email
		v.CreatedAt = &created
	}
	return v
}

// Users projects a list of users with the same detail level.
func Users(us []*models.User, full bool) []UserView {
	out := make([]UserView, 0, len(us))
	for _, u := range us {
		out = append(out, User(u, full))
	}
	return out
}

// Article projects a. full selects the detail level of the author and is
// where any owner-only article fields belong. When the author was not loaded
// the author collapses to its id.
func Article(a *models.Article, full bool) ArticleView {
	return ArticleView{
		ID:        a.ID,
		Author:    author(a, full),
		Title:     a.Title,
		Content:   a.Content,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// Articles projects a list of articles with the same detail level.
func Articles(as []*models.Article, full bool) []ArticleView {
	out := make([]ArticleView, 0, len(as))
	for _, a := range as {
		out = append(out, Article(a, full))
	}
	return out
}

func author(a *models.Article, full bool) UserView {
	if a.Author == nil {
		return UserView{ID: a.AuthorID}
	}
	return User(a.Author, full)
}
