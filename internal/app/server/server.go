// Package server assembles the chi router of the registry.
package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atinyakov/go-user-registry/internal/app/handler"
	"github.com/atinyakov/go-user-registry/internal/app/service"
	"github.com/atinyakov/go-user-registry/internal/middleware"
)

// Options tune the router.
type Options struct {
	// CORSOrigins lists allowed browser origins. Empty allows any.
	CORSOrigins []string
	// TrustedSubnet guards the internal routes.
	TrustedSubnet string
	// UploadDir, when set, is served under /uploads/.
	UploadDir string
}

func Init(s service.UserServiceIface, logger *zap.Logger, opts Options) *chi.Mux {
	post := handler.NewPost(s, logger)
	put := handler.NewPut(s, logger)
	get := handler.NewGet(s, logger)
	del := handler.NewDelete(s, logger)

	r := chi.NewRouter()
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)
	r.Use(middleware.WithGzipRequest)
	r.Use(middleware.WithGzipResponse)

	r.Get("/ping", get.Ping)

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", post.Signup)
		r.Post("/login", post.Login)
		r.Post("/logout", post.Logout)

		r.Get("/users", get.Users)
		r.Put("/users/{id}", put.Update)
		r.Delete("/users/{id}", del.Delete)

		r.With(middleware.WithSubnet(opts.TrustedSubnet, logger)).Get("/internal/stats", get.Stats)
	})

	if opts.UploadDir != "" {
		r.Get("/uploads/*", uploads(opts.UploadDir))
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Route not found", http.StatusNotFound)
	})

	return r
}

// uploads serves stored profile images. Directory listings are not exposed.
func uploads(dir string) http.HandlerFunc {
	files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))

	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		if name == "" || strings.HasSuffix(name, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}
}
