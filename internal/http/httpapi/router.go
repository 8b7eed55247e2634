package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"unlockstudio/internal/http/handlers"
	"unlockstudio/internal/infra"
	"unlockstudio/internal/middleware"
	"unlockstudio/internal/proxy"
)

// Options carries the cross-cutting settings of the router.
type Options struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	JWTSecret       string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	// Proxy serves the same-origin image proxy. Nil leaves it unmounted.
	Proxy http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
		middleware.OptionalAuth(opts.JWTSecret),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/me", app.Me)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	if opts.Proxy != nil {
		r.Method(http.MethodGet, proxy.Path, opts.Proxy)
		r.Method(http.MethodHead, proxy.Path, opts.Proxy)
	}

	// Paid and upstream-bound actions share one per-IP budget.
	limited := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Route("/v1/widgets", func(r chi.Router) {
		r.With(limited).Post("/", app.CreateWidget)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetWidget)
			r.Delete("/", app.DeleteWidget)
			r.Get("/view", app.ViewWidget)
			r.With(limited).Post("/generate", app.Generate)
			r.Post("/notice/dismiss", app.DismissNotice)
			r.Post("/slider", app.Slider)
			r.Get("/archive", app.Archive)
			r.Get("/unlocks", app.Unlocks)

			r.Get("/payment/success", app.PaymentSuccess)
			r.Post("/payment/success", app.PaymentSuccess)
			r.Get("/payment/cancel", app.PaymentCancel)
			r.Post("/payment/cancel", app.PaymentCancel)

			r.Route("/artifacts/{index}", func(r chi.Router) {
				r.With(limited).Post("/unlock", app.Unlock)
				r.Get("/download", app.Download)
				r.Get("/preview", app.Preview)
			})
		})
	})

	return r
}
