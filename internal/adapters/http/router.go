package httpadapter

import (
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mmembroidery/tryon-studio/internal/core/ports"
)

// PageCopy is pre-rendered, already sanitised editorial HTML.
type PageCopy struct {
	Hero    template.HTML
	About   template.HTML
	Contact template.HTML
}

type RouterConfig struct {
	PublicDir        string
	CookieSecure     bool
	UploadMaxBytes   int64
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

// Metrics instruments the router and serves the scrape endpoint.
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Router struct {
	studio    ports.Studio
	catalog   ports.Catalog
	copy      PageCopy
	cfg       RouterConfig
	metrics   Metrics
	templates *template.Template
	// traffic holds one rate limiter set and one in-flight gate for all guarded routes.
	traffic func(http.Handler) http.Handler
}

type RouterOption func(*Router)

func WithMetrics(m Metrics) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

func NewRouter(studio ports.Studio, catalog ports.Catalog, pageCopy PageCopy, cfg RouterConfig, opts ...RouterOption) (*Router, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = 10 << 20
	}
	if cfg.BackpressureWait <= 0 {
		cfg.BackpressureWait = 250 * time.Millisecond
	}
	rt := &Router{
		studio:    studio,
		catalog:   catalog,
		copy:      pageCopy,
		cfg:       cfg,
		templates: templates,
	}
	rt.traffic = trafficControl(cfg)
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)
	if rt.cfg.PublicDir != "" {
		for _, dir := range []string{"lovable-uploads", "assets"} {
			prefix := "/" + dir + "/"
			r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(filepath.Join(rt.cfg.PublicDir, dir)))))
		}
	}

	r.Group(func(r chi.Router) {
		r.Use(rt.sessionMiddleware)
		r.Get("/", rt.home)

		r.Group(func(r chi.Router) {
			r.Use(rt.traffic)
			r.Post("/photo", rt.uploadPhoto)
			r.Post("/design", rt.selectDesign)
			r.Post("/custom-order/design-file", rt.uploadCustomDesignFile)
			r.Post("/custom-order/fields", rt.updateCustomOrder)
			r.Post("/custom-order", rt.submitCustomOrder)
			r.Post("/preview", rt.generatePreview)
			r.Post("/features/{feature}", rt.comingSoon)
		})
	})
	return r
}

func trafficControl(cfg RouterConfig) func(http.Handler) http.Handler {
	limit := rateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)
	gate := backpressureMiddleware(cfg.MaxInFlight, cfg.BackpressureWait)
	return func(next http.Handler) http.Handler {
		return limit(gate(next))
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
