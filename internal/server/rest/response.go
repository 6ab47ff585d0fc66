package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophpress/internal/common"
	"github.com/dmitrijs2005/gophpress/internal/server/metrics"
	"github.com/dmitrijs2005/gophpress/internal/server/validation"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

const maxBodyBytes = 2 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Valid   bool   `json:"valid"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// denial overrides the body of an authorization failure.
type denial struct {
	Param   string
	Message string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return validation.Invalid("body", "request body must be valid JSON")
	}
	return nil
}

// denialKind labels authentication and authorization failures, or returns ""
// for other errors.
func denialKind(err error) string {
	switch {
	case errors.Is(err, common.ErrForbidden):
		return "forbidden"
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrTokenExpired), errors.Is(err, common.ErrRefreshTokenExpired):
		return "token_expired"
	case errors.Is(err, common.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, common.ErrUnauthenticated):
		return "unauthenticated"
	}
	return ""
}

// writeError maps err to a status and body. Forbidden shares 401 with the
// other denials; d, when given, replaces the forbidden message.
func (s *RESTServer) writeError(w http.ResponseWriter, r *http.Request, err error, d ...denial) {
	ctx := r.Context()
	reqID := chimiddleware.GetReqID(ctx)

	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Param: verr.Param, Message: verr.Message})
		return

	case errors.Is(err, common.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid request"})
		return

	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Message: "not found"})
		return

	case errors.Is(err, common.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody{Param: "email", Message: "email already registered"})
		return
	}

	if kind := denialKind(err); kind != "" {
		metrics.RecordDenial(kind)
		s.logger.Warn(ctx, "request denied", "kind", kind, "method", r.Method, "path", r.URL.Path, "caller", callerFrom(ctx).ID, "request_id", reqID)

		body := errorBody{Message: denialMessage(kind)}
		if kind == "forbidden" && len(d) > 0 {
			body = errorBody{Param: d[0].Param, Message: d[0].Message}
		}
		writeJSON(w, http.StatusUnauthorized, body)
		return
	}

	s.logger.Error(ctx, "request failed", "method", r.Method, "path", r.URL.Path, "error", err, "request_id", reqID)
	writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal error"})
}

func denialMessage(kind string) string {
	switch kind {
	case "forbidden":
		return "access denied"
	case "invalid_credentials":
		return "invalid credentials"
	case "token_expired":
		return "token expired"
	case "invalid_token":
		return "invalid token"
	}
	return "authentication required"
}

// masterKeyDenied answers a request without a valid master key.
func (s *RESTServer) masterKeyDenied(w http.ResponseWriter, r *http.Request) {
	metrics.RecordDenial("master_key")
	s.logger.Warn(r.Context(), "request denied", "kind", "master_key", "method", r.Method, "path", r.URL.Path, "request_id", chimiddleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusUnauthorized, errorBody{Message: "master key required"})
}
