package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/server/authz"
	"github.com/dmitrijs2005/gophpress/internal/server/services"
	"github.com/dmitrijs2005/gophpress/internal/server/validation"
	"github.com/dmitrijs2005/gophpress/internal/server/views"
	"github.com/go-chi/chi/v5"
)

var (
	denyUserData     = denial{Message: "You can't change other user's data"}
	denyUserPassword = denial{Param: "password", Message: "You can't change other user's password"}
)

type pictureUploadResponse struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"publicUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *RESTServer) listUsers(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	users, err := s.users.List(r.Context(), callerFrom(r.Context()), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views.Users(users, false))
}

func (s *RESTServer) showMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Me(r.Context(), callerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views.User(u, true))
}

func (s *RESTServer) showUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views.User(u, false))
}

func (s *RESTServer) createUser(w http.ResponseWriter, r *http.Request) {
	if err := authz.CheckMasterKey(bearerToken(r), s.config.MasterKey); err != nil {
		s.masterKeyDenied(w, r)
		return
	}

	var in services.CreateUserInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, views.User(u, true))
}

func (s *RESTServer) updateUser(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateUserInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.Update(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err, denyUserData)
		return
	}
	writeJSON(w, http.StatusOK, views.User(u, true))
}

// updatePassword authenticates with basic credentials of the account owner.
func (s *RESTServer) updatePassword(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		s.writeError(w, r, common.ErrUnauthenticated)
		return
	}
	user, err := s.auth.VerifyCredentials(r.Context(), email, password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var in services.PasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.UpdatePassword(r.Context(), authz.CallerOf(user), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err, denyUserPassword)
		return
	}
	writeJSON(w, http.StatusOK, views.User(u, true))
}

func (s *RESTServer) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Delete(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *RESTServer) presignPicture(w http.ResponseWriter, r *http.Request) {
	upload, err := s.users.PresignPicture(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, denyUserData)
		return
	}
	writeJSON(w, http.StatusCreated, pictureUploadResponse{
		Key:       upload.Key,
		UploadURL: upload.UploadURL,
		PublicURL: upload.PublicURL,
		ExpiresAt: upload.ExpiresAt,
	})
}

// parseListQuery reads q, page, limit and sort. Range checks happen in the
// service.
func parseListQuery(r *http.Request) (services.ListQuery, error) {
	q := services.NewListQuery()
	values := r.URL.Query()

	q.Q = values.Get("q")
	if v := values.Get("sort"); v != "" {
		q.Sort = v
	}
	if v := values.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, validation.Invalid("page", "page must be a number")
		}
		q.Page = n
	}
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, validation.Invalid("limit", "limit must be a number")
		}
		q.Limit = n
	}
	return q, nil
}
