// Package http serves the kakeibo web UI: server-rendered pages over the
// credential store and the current user's ledger.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"kakeibo/internal/app"
	applog "kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/middleware/security"
	"kakeibo/internal/middleware/trace"
	appweb "kakeibo/web"
)

const (
	readyTimeout   = 5 * time.Second
	staticMaxAge   = 3600
	msgRateLimited = "リクエストが多すぎます。しばらくしてから再度お試しください"
)

type Config struct {
	Addr               string
	RateLimitPerMinute int
	Logger             *applog.Logger
	// Ready reports whether the backing store is reachable; nil means always.
	Ready func(ctx context.Context) error
	// TrustedProxies are CIDRs whose forwarding headers are honoured.
	TrustedProxies []string
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	app       *app.App
	templates *template.Template
	logger    *applog.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	ready     func(ctx context.Context) error
	now       func() time.Time
	startedAt time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, templates and middleware, returning a
// ready-to-run server.
func NewServer(cfg Config, a *app.App) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ready := cfg.Ready
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector()
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		app:       a,
		templates: t,
		logger:    logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Methods:           []string{http.MethodPost},
		}),
		detector:  detector,
		tracer:    trace.NewMiddleware(logger, detector.ClientIP),
		ready:     ready,
		now:       now,
		startedAt: now(),
	}

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("/static/", security.StaticAssetMiddleware(staticMaxAge)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.Handle("/", security.NoStore(http.HandlerFunc(s.handleIndex)))
	mux.Handle("/login", security.NoStore(http.HandlerFunc(s.handleLogin)))
	mux.Handle("/register", security.NoStore(http.HandlerFunc(s.handleRegister)))
	mux.Handle("/logout", security.NoStore(http.HandlerFunc(s.handleLogout)))
	mux.Handle("/transactions", security.NoStore(http.HandlerFunc(s.handleAddTransaction)))
	mux.Handle("/transactions/delete", security.NoStore(http.HandlerFunc(s.handleDeleteTransaction)))

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ClientIP, []string{http.MethodPost}, s.onRateLimited)(handler)
	handler = detector.Handler(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Handler(handler)
	handler = s.tracer.Handler(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, msgRateLimited).Write(w)
}

// Shutdown stops background goroutines and gracefully shuts down the
// HTTP server. Only the first call has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
