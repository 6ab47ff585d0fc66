package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/server/authz"
	"github.com/dmitrijs2005/gophpress/internal/server/models"
	"github.com/dmitrijs2005/gophpress/internal/server/services"
	"github.com/dmitrijs2005/gophpress/internal/server/validation"
	"github.com/dmitrijs2005/gophpress/internal/server/views"
	"github.com/go-chi/chi/v5"
)

type loginResponse struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	User         *views.UserView `json:"user,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func newLoginResponse(pair *services.TokenPair, u *models.User) loginResponse {
	resp := loginResponse{Token: pair.AccessToken, RefreshToken: pair.RefreshToken}
	if u != nil {
		v := views.User(u, true)
		resp.User = &v
	}
	return resp
}

// login exchanges basic credentials for a token pair.
func (s *RESTServer) login(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		s.writeError(w, r, common.ErrUnauthenticated)
		return
	}
	pair, u, err := s.auth.Login(r.Context(), email, password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "Logged in", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, newLoginResponse(pair, u))
}

func (s *RESTServer) refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&in); err != nil {
		s.writeError(w, r, err)
		return
	}
	pair, err := s.auth.RefreshToken(r.Context(), in.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLoginResponse(pair, nil))
}

// loginWithService accepts a profile vouched for by a trusted party holding
// the master key, upserts the user and logs them in.
func (s *RESTServer) loginWithService(w http.ResponseWriter, r *http.Request) {
	if err := authz.CheckMasterKey(bearerToken(r), s.config.MasterKey); err != nil {
		s.masterKeyDenied(w, r)
		return
	}

	var p services.ServiceProfile
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	p.Provider = chi.URLParam(r, "provider")

	pair, u, err := s.auth.LoginWithService(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLoginResponse(pair, u))
}

func (s *RESTServer) health(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Error(ctx, "health check", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
