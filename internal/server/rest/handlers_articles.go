package rest

import (
	"net/http"

	"github.com/dmitrijs2005/gophpress/internal/server/services"
	"github.com/dmitrijs2005/gophpress/internal/server/views"
	"github.com/go-chi/chi/v5"
)

func (s *RESTServer) createArticle(w http.ResponseWriter, r *http.Request) {
	var in services.ArticleInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.articles.Create(r.Context(), callerFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, views.Article(a, true))
}

func (s *RESTServer) listArticles(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.articles.List(r.Context(), callerFrom(r.Context()), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views.Articles(list, false))
}

func (s *RESTServer) showArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.articles.Get(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views.Article(a, false))
}

func (s *RESTServer) updateArticle(w http.ResponseWriter, r *http.Request) {
	var in services.ArticleInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.articles.Update(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views.Article(a, true))
}

func (s *RESTServer) deleteArticle(w http.ResponseWriter, r *http.Request) {
	if err := s.articles.Delete(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
