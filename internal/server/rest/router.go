package rest

import (
	"net/http"

	"github.com/dmitrijs2005/gophpress/internal/server/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// Router builds the full handler tree with its middleware chain.
func (s *RESTServer) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         86400,
	}))
	r.Use(chimiddleware.Compress(5))
	if s.config.RateLimitRequests > 0 {
		r.Use(httprate.LimitByIP(s.config.RateLimitRequests, s.config.RateLimitWindow))
	}
	r.Use(prometheusMetrics)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/", s.login)
		r.Post("/refresh", s.refresh)
		r.Post("/services/{provider}", s.loginWithService)
	})

	r.Route("/users", func(r chi.Router) {
		// Password changes authenticate with basic credentials, not a session.
		r.Put("/{id}/password", s.updatePassword)

		r.Group(func(r chi.Router) {
			r.Use(s.session)
			r.Get("/", s.listUsers)
			r.Post("/", s.createUser)
			r.Get("/me", s.showMe)
			r.Get("/{id}", s.showUser)
			r.Put("/{id}", s.updateUser)
			r.Delete("/{id}", s.deleteUser)
			r.Post("/{id}/picture", s.presignPicture)
		})
	})

	r.Route("/articles", func(r chi.Router) {
		r.Use(s.session)
		r.Get("/", s.listArticles)
		r.Post("/", s.createArticle)
		r.Get("/{id}", s.showArticle)
		r.Put("/{id}", s.updateArticle)
		r.Delete("/{id}", s.deleteArticle)
	})

	return r
}
