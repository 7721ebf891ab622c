package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/http/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/http/catalog"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/http/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/http/render"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/metrics"
)

type Options struct {
	CORSOrigins []string
	DevMode     bool
	Timeout     time.Duration
	Metrics     *metrics.Metrics
	// Ping reports database health for /healthz.
	Ping func(ctx context.Context) error
}

// PINLimiter caps PIN verification attempts per client IP and account.
func PINLimiter(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, func(r *http.Request) (string, error) {
			return chi.URLParam(r, "id"), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			render.JSON(w, http.StatusTooManyRequests, render.ErrorResponse{
				Error: "too many pin attempts", Code: "rate_limited",
			})
		}),
	)
}

func New(
	accountsV1 *account.Handler,
	productsV1 *catalog.Handler,
	ordersV1 *checkout.Handler,
	opts Options,
) http.Handler {
	router := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		IsDevelopment:      opts.DevMode,
	})

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(secureMiddleware.Handler)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", render.IdempotencyHeader},
		ExposedHeaders: []string{"Content-Disposition", "Retry-After"},
		MaxAge:         300,
	}))

	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware)
	}

	if opts.Timeout > 0 {
		router.Use(middleware.Timeout(opts.Timeout))
	}

	if opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ping != nil {
			if err := opts.Ping(r.Context()); err != nil {
				slog.Error("health check failed", "error", err)
				render.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})

				return
			}
		}

		render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/scan", accountsV1.ScanRoutes)

		r.Route("/accounts", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			accountsV1.Routes(r)
			r.Get("/{id}/orders", ordersV1.ListForAccount)
		})

		r.Route("/products", productsV1.Routes)

		r.Route("/checkout", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			ordersV1.CheckoutRoutes(r)
		})

		r.Route("/orders", ordersV1.Routes)
	})

	return router
}
