package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"luxgen/internal/http/handlers"
	"luxgen/internal/infra"
	"luxgen/internal/middleware"
)

// Options bundles router dependencies.
type Options struct {
	App            *handlers.App
	Logger         infra.Logger
	JWTSecret      string
	RateLimit      int
	RateCounter    middleware.Counter
	AllowedOrigins []string
}

// NewRouter assembles the chi router. The generate and status routes sit
// behind bearer auth and the per-(ip, route) rate limit.
func NewRouter(opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/v1/healthz", opts.App.Health)

	limit := opts.RateLimit
	if limit <= 0 {
		limit = 20
	}
	counter := opts.RateCounter
	if counter == nil {
		counter = middleware.NewMemCounter()
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.Use(middleware.RateLimit(counter, limit, time.Minute))

		r.Post("/generate", opts.App.GenerateSubmit)
		r.Get("/generate", opts.App.GenerateStatus)
		r.Get("/fal-status", opts.App.FalStatus)
		r.Get("/luma-status", opts.App.LumaStatus)
		r.Get("/credits", opts.App.Credits)
		r.Get("/generations", opts.App.Generations)
	})

	return r
}
