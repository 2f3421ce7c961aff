package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"swipeshop/internal/http/handlers"
	"swipeshop/internal/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	// RateLimit requests per RateWindow on the AI-backed routes.
	RateLimit  int
	RateWindow time.Duration
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID(opts.Logger),
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
		middleware.Logger(opts.Logger),
	)

	// One budget across every AI-backed route.
	limited := middleware.NewRateLimiter(opts.RateLimit, opts.RateWindow).Handler

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/stats", app.StatsSummary)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/v1/catalog", app.GetCatalog)

	if app.Store != nil {
		files := http.StripPrefix("/static/", http.FileServer(http.Dir(app.Store.BasePath())))
		r.Handle("/static/*", files)
	}

	r.Route("/v1/uploads", func(r chi.Router) {
		r.Post("/", app.CreateUploadSlot)
		r.Put("/{token}", app.PutUpload)
	})

	r.With(limited).Post("/v1/generate", app.Generate)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Delete("/", app.DeleteSession)
			r.Post("/reset", app.ResetSession)
			r.Post("/start", app.StartProject)
			r.Put("/purpose", app.SelectPurpose)
			r.Post("/images", app.AddImages)
			r.Delete("/images/{index}", app.RemoveImage)
			r.Put("/description", app.SetDescription)
			r.Put("/style", app.SelectStyle)
			r.Post("/advance", app.Advance)
			r.Post("/goto", app.GoTo)
			r.With(limited).Post("/generate", app.GenerateForSession)

			r.Post("/pool", app.AddCustomBlock)
			r.Post("/pool/{cardID}/decide", app.Decide)
			r.Post("/pool/{cardID}/toggle", app.Toggle)
			r.Delete("/cards/{cardID}", app.DeleteCard)

			r.Put("/kept/order", app.Reorder)
			r.Post("/kept/{cardID}/move", app.MoveKept)
			r.Patch("/kept/{cardID}", app.UpdateText)
			r.Delete("/kept/{cardID}", app.RemoveKept)
			r.With(limited).Post("/kept/{cardID}/refine", app.Refine)

			r.Post("/export", app.Export)
			r.Get("/exports", app.ListExports)
			r.Get("/exports/archive", app.ExportArchive)
		})
	})

	return r
}
