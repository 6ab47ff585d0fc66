package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/server/authz"
	"github.com/dmitrijs2005/gophpress/internal/server/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const callerKey ctxKey = "caller"

// callerFrom returns the caller resolved by session, or Anonymous.
func callerFrom(ctx context.Context) authz.Caller {
	if c, ok := ctx.Value(callerKey).(authz.Caller); ok {
		return c
	}
	return authz.Anonymous
}

// bearerToken returns the token from "Authorization: Bearer" or, failing
// that, the access_token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get(common.AccessTokenParamName)
}

// session resolves the request's user token into a caller. Requests without
// a valid token continue as anonymous; each handler's policy decides whether
// that is enough. The same slot carries the master key on master routes, so
// an unparsable token is not an error here.
func (s *RESTServer) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := authz.Anonymous

		if token := bearerToken(r); token != "" {
			user, err := s.auth.Authenticate(r.Context(), token)
			if err == nil {
				caller = authz.CallerOf(user)
			} else {
				s.logger.Debug(r.Context(), "token not resolved", "error", err, "request_id", chimiddleware.GetReqID(r.Context()))
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))
	})
}

// requestLogger logs one line per request.
func (s *RESTServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

// prometheusMetrics records request counts and latency by route pattern.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, route, status, time.Since(start))
	})
}
