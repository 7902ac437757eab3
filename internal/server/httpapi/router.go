// Package httpapi is the JSON-over-HTTP transport of AuthKeeper, mounted
// under /api.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
)

type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

type UserService interface {
	List(ctx context.Context) ([]models.PublicUser, error)
	Get(ctx context.Context, id string) (*models.PublicUser, error)
	Update(ctx context.Context, id string, in services.UpdateUserInput) (*models.PublicUser, error)
	Delete(ctx context.Context, id string) error
}

type UploadService interface {
	UploadPhoto(ctx context.Context, f services.FileUpload) (*services.UploadResult, error)
	DeleteFile(ctx context.Context, fileURL string) error
	PresignPhotoURL(ctx context.Context, key string) (string, error)
}

// API holds the handlers. Build it with NewAPI and mount Router().
type API struct {
	auth    AuthService
	users   UserService
	uploads UploadService
	logger  logging.Logger
}

func NewAPI(as AuthService, us UserService, up UploadService, l logging.Logger) *API {
	return &API{auth: as, users: us, uploads: up, logger: l.With("module", "http_api")}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(chimid.Recoverer)
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.Post("/refresh", a.refresh)
			r.With(a.requireBearer).Post("/logout", a.logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(a.requireBearer)
			r.Get("/", a.listUsers)
			r.Get("/profile", a.profile)
			r.Get("/{id}", a.getUser)
			r.Patch("/{id}", a.updateUser)
			r.Delete("/{id}", a.deleteUser)
		})

		r.Route("/upload", func(r chi.Router) {
			r.Use(a.requireBearer)
			r.Post("/photo", a.uploadPhoto)
			r.Delete("/photo", a.deletePhoto)
			r.Get("/photo/url", a.presignPhoto)
		})
	})

	return r
}
