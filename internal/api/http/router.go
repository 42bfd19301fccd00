package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/blobrelay/blobfs/internal/auth/middleware"
	"github.com/blobrelay/blobfs/internal/blob"
	"github.com/blobrelay/blobfs/internal/config"
)

// NewRouter wires the public download surface and the JWT-protected
// management surface. Downloads carry no request timeout so large objects
// can stream out; the management group gets the usual 30s.
func NewRouter(cfg config.Config, svc *blob.Service, authSvc *auth.AuthService) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	dl := &DownloadHandler{Svc: svc, Now: time.Now}
	r.Get("/blob/filesystem/{identifier}", dl.Signed)
	r.Get("/blob/{token}", dl.Token)

	r.Get("/healthz", HealthHandler(svc))

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(30 * time.Second))
		pr.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		pr.Post("/auth/login", auth.LoginHandler(authSvc, cfg.AdminUser, cfg.AdminPassHash))

		fh := &FilesHandler{Svc: svc}
		pr.Group(func(mr chi.Router) {
			mr.Use(auth.JWTMiddleware(authSvc))
			mr.Route("/buckets/{bucketID}", func(br chi.Router) {
				br.Put("/objects/{objectID}", fh.Save)
				br.Get("/objects", fh.List)
				br.Get("/objects/{objectID}/link", fh.Link)
				br.Delete("/objects/{objectID}", fh.Remove)
				br.Get("/stats", fh.Stats)
			})
		})
	})

	return r
}

// HealthHandler reports degraded storage or database as 503, never a crash.
func HealthHandler(svc *blob.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Health(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
