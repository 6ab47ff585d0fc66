package rest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/logging"
	"github.com/dmitrijs2005/gophpress/internal/server/authz"
	"github.com/dmitrijs2005/gophpress/internal/server/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basic(email, password string) []string {
	return []string{"Authorization", "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{name: "header", header: "Bearer abc", want: "abc"},
		{name: "header case-insensitive", header: "bearer abc", want: "abc"},
		{name: "query", query: "?access_token=xyz", want: "xyz"},
		{name: "header wins", header: "Bearer abc", query: "?access_token=xyz", want: "abc"},
		{name: "basic is ignored", header: "Basic Zm9vOmJhcg==", want: ""},
		{name: "none", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/users"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, bearerToken(r))
		})
	}
}

func TestSession_ResolvesCaller(t *testing.T) {
	ts := newTestServer(t)

	ts.do(http.MethodGet, "/users", "", bearer("admin-token")...)
	assert.Equal(t, authz.CallerOf(admin), ts.users.caller)

	ts.do(http.MethodGet, "/users?access_token=alice-token", "")
	assert.Equal(t, authz.CallerOf(alice), ts.users.caller)

	ts.do(http.MethodGet, "/users", "", bearer("garbage")...)
	assert.Equal(t, authz.Anonymous, ts.users.caller, "invalid tokens continue as anonymous")
}

func TestWriteError(t *testing.T) {
	s := NewRESTServer(nil, logging.Nop(), nil, nil, nil, nil)

	tests := []struct {
		name   string
		err    error
		d      []denial
		status int
		want   errorBody
	}{
		{"validation", validation.Invalid("email", "email is required"), nil, http.StatusBadRequest, errorBody{Param: "email", Message: "email is required"}},
		{"wrapped validation", fmt.Errorf("%w: unknown sort field", common.ErrValidation), nil, http.StatusBadRequest, errorBody{Message: "invalid request"}},
		{"not found", common.ErrNotFound, nil, http.StatusNotFound, errorBody{Message: "not found"}},
		{"conflict", common.ErrAlreadyExists, nil, http.StatusConflict, errorBody{Param: "email", Message: "email already registered"}},
		{"unauthenticated", common.ErrUnauthenticated, nil, http.StatusUnauthorized, errorBody{Message: "authentication required"}},
		{"forbidden is 401", common.ErrForbidden, nil, http.StatusUnauthorized, errorBody{Message: "access denied"}},
		{"forbidden with message", common.ErrForbidden, []denial{denyUserPassword}, http.StatusUnauthorized, errorBody{Param: "password", Message: "You can't change other user's password"}},
		{"override ignored for unauthenticated", common.ErrUnauthenticated, []denial{denyUserData}, http.StatusUnauthorized, errorBody{Message: "authentication required"}},
		{"invalid credentials", common.ErrInvalidCredentials, nil, http.StatusUnauthorized, errorBody{Message: "invalid credentials"}},
		{"expired refresh", common.ErrRefreshTokenExpired, nil, http.StatusUnauthorized, errorBody{Message: "token expired"}},
		{"internal", errors.New("db error: boom"), nil, http.StatusInternalServerError, errorBody{Message: "internal error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, tt.d...)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, decodeBody[errorBody](t, rec))
		})
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.srv.db = fakePinger{err: errors.New("down")}
	rec = httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodGet, "/articles", "")

	rec := ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gophpress_http_requests_total{method="GET",route="/articles`)
}
