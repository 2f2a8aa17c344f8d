package http

import (
	"net/http"
	"strings"

	"github.com/IgorGrieder/linkstats/internal/config"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/collector"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/telemetry"
	"github.com/IgorGrieder/linkstats/internal/processing/links"
	"github.com/IgorGrieder/linkstats/internal/transport/http/middleware"
	"github.com/IgorGrieder/linkstats/internal/transport/http/web"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

var spanNames = map[string]string{
	"GET /health":                   "health",
	"GET /metrics":                  "metrics",
	"POST /shorturls":               "links.create",
	"GET /shorturls/{shortcode}":    "links.stats",
	"GET /shorturls/{shortcode}/qr": "links.qr",
	"GET /{shortcode}":              "links.redirect",
	"POST /log":                     "log.forward",
	"GET /{$}":                      "ui.form",
	"POST /ui/shorten":              "ui.shorten",
	"GET /ui/stats":                 "ui.stats",
}

// Dependencies are the collaborators the HTTP layer dispatches to.
type Dependencies struct {
	Links     *links.Service
	LogSender LogSender
	// Reporter may be nil.
	Reporter *collector.Reporter
}

type RouterOptions struct {
	EnableCORS    bool
	EnableLogging bool
	EnableMetrics bool
	EnableUI      bool
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		EnableCORS:    true,
		EnableLogging: true,
		EnableMetrics: true,
		EnableUI:      true,
	}
}

func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	return NewRouterWithOptions(cfg, deps, DefaultRouterOptions())
}

func NewRouterWithOptions(cfg *config.Config, deps Dependencies, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	healthHandler := NewHealthHandler(cfg.App.Version)
	linksHandler := NewLinksHandler(cfg, deps.Links, deps.Reporter)
	logHandler := NewLogHandler(deps.LogSender)

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", healthHandler.Metrics())

	mux.HandleFunc("POST /shorturls", linksHandler.Create)
	mux.HandleFunc("GET /shorturls/{shortcode}", linksHandler.Stats)
	mux.HandleFunc("GET /shorturls/{shortcode}/qr", linksHandler.QRCode)
	mux.HandleFunc("POST /log", logHandler.Forward)
	mux.HandleFunc("GET /{shortcode}", linksHandler.Redirect)

	if opts.EnableUI {
		ui := web.NewHandler(deps.Links, cfg.Shortener.BaseURL)
		mux.HandleFunc("GET /{$}", ui.Form)
		mux.HandleFunc("POST /ui/shorten", ui.Shorten)
		mux.HandleFunc("GET /ui/stats", ui.Stats)
	}

	middlewares := []func(http.Handler) http.Handler{}
	if opts.EnableMetrics {
		middlewares = append(middlewares, middleware.MetricsMiddleware)
	}
	if opts.EnableLogging {
		middlewares = append(middlewares, middleware.LoggingMiddleware)
	}
	if opts.EnableCORS {
		middlewares = append(middlewares, middleware.CORS(cfg.Server.AllowedOrigins))
	}
	middlewares = append(middlewares, middleware.RecoveryMiddleware)

	// The mux fills in r.Pattern, so the span is renamed once routing is done.
	routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if name, ok := spanNames[r.Pattern]; ok {
			trace.SpanFromContext(r.Context()).SetName(name)
		}
	})

	innerHandler := middleware.Chain(routed, middlewares...)

	otelOptions := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			path := strings.TrimSpace(r.URL.Path)
			if path == "" {
				path = "/"
			}
			return r.Method + " " + path
		}),
	}

	if telemetry.TracerProvider != nil {
		otelOptions = append(otelOptions, otelhttp.WithTracerProvider(telemetry.TracerProvider))
	}

	return otelhttp.NewHandler(innerHandler, cfg.App.Name, otelOptions...)
}
