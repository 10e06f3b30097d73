package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"carlog/internal/app"
	applog "carlog/internal/log"
	appmetrics "carlog/internal/metrics"
	"carlog/internal/middleware/ratelimit"
	"carlog/internal/middleware/security"
	"carlog/internal/middleware/trace"
	appweb "carlog/web"
)

// Options carries the optional collaborators of a Server.
type Options struct {
	Metrics   *appmetrics.Metrics
	Logger    *applog.Logger
	RateLimit ratelimit.Config
	// Ready is consulted by /readyz in addition to the last load error.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	state     *app.State
	templates *template.Template
	metrics   *appmetrics.Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *applog.Logger
	ready     func(ctx context.Context) error
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, state *app.State, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	rl := opts.RateLimit
	if rl.RequestsPerMinute <= 0 {
		rl = ratelimit.DefaultConfig()
	}

	s := &Server{
		state:    state,
		metrics:  opts.Metrics,
		limiter:  ratelimit.NewLimiter(rl),
		detector: security.NewDetector(),
		logger:   logger,
		ready:    opts.Ready,
		now:      time.Now,
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /api/fuel", s.handleFuel)
	mux.HandleFunc("GET /api/spending", s.handleSpending)
	mux.HandleFunc("GET /api/records", s.handleListRecords)
	mux.HandleFunc("POST /api/records", s.handleCreateRecord)
	mux.HandleFunc("POST /api/records/edit", s.handleEditRecords)
	mux.HandleFunc("POST /api/reload", s.handleReload)

	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, s.metrics.HTTPRequest)
	var h http.Handler = tracer.Middleware(mux)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.detector.Middleware(h)
	h = applog.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	s.metrics.HTTPRequest("ratelimited", http.StatusTooManyRequests)
	if wantsHTML(r) {
		ErrorHTML(http.StatusTooManyRequests, "Too many requests, try again shortly").Write(w)
		return
	}
	ErrorJSON(http.StatusTooManyRequests, "rate limit exceeded", nil).Write(w)
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.state.Err(); err != nil {
		http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
