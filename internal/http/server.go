package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"kcal/internal/cache"
	"kcal/internal/core"
	applog "kcal/internal/log"
	"kcal/internal/metrics"
	"kcal/internal/middleware/ratelimit"
	"kcal/internal/middleware/security"
	"kcal/internal/middleware/trace"
	"kcal/internal/services"
)

const (
	defaultCalendarCacheTTL = 5 * time.Minute
	calendarCacheSize       = 64
	readyTimeout            = 2 * time.Second
)

// Deps are the collaborators the server is built from.
type Deps struct {
	Journal *services.Journal
	// Ready reports whether the backing store answers. Nil means always ready.
	Ready  func(context.Context) error
	Logger *applog.Logger

	RateLimitRPS     float64
	CalendarCacheTTL time.Duration
	// TrustedProxies are CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
}

// Server is the JSON API in front of one journal.
type Server struct {
	http.Server
	journal  *services.Journal
	months   *cache.MonthViews
	caches   *cache.Manager
	limiter  *ratelimit.Limiter
	detector *security.Detector
	ready    func(context.Context) error
	logger   *applog.Logger
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	ttl := deps.CalendarCacheTTL
	if ttl <= 0 {
		ttl = defaultCalendarCacheTTL
	}

	s := &Server{
		journal:  deps.Journal,
		months:   cache.NewMonthViews(calendarCacheSize, ttl),
		caches:   cache.NewManager(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: deps.RateLimitRPS}),
		detector: security.NewDetector(),
		ready:    deps.Ready,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		started:  time.Now(),
	}

	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", "cidr", cidr, applog.FieldError, err)
		}
	}
	s.detector.OnSuspicious(func(*http.Request) {
		metrics.SuspiciousRequests.Inc()
	})

	s.journal.OnChange(func(key core.DateKey) {
		if n := s.months.Invalidate(key); n > 0 {
			s.logger.Debug("Calendar cache invalidated", applog.FieldDateKey, key, "entries", n)
		}
	})
	s.caches.Register(s.months)
	s.caches.StartCleanup(ttl)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/days/{date}", s.handleGetDay)
	api.HandleFunc("POST /api/days/{date}/entries", s.handleAddManual)
	api.HandleFunc("POST /api/days/{date}/entries/text", s.handleAddText)
	api.HandleFunc("POST /api/days/{date}/entries/label", s.handleAddLabel)
	api.HandleFunc("POST /api/days/{date}/entries/saved", s.handleAddSaved)
	api.HandleFunc("DELETE /api/days/{date}/entries/{id}", s.handleDeleteEntry)
	api.HandleFunc("DELETE /api/days/{date}/categories/{category}/{index}", s.handleDeleteAt)
	api.HandleFunc("GET /api/calendar", s.handleCalendar)
	api.HandleFunc("GET /api/goals", s.handleGetGoals)
	api.HandleFunc("PUT /api/goals", s.handlePutGoals)
	api.HandleFunc("GET /api/products", s.handleListProducts)
	api.HandleFunc("POST /api/products", s.handleAddProduct)
	api.HandleFunc("DELETE /api/products/{id}", s.handleDeleteProduct)
	api.HandleFunc("POST /api/labels/scan", s.handleScanLabel)
	api.HandleFunc("GET /api/foods/search", s.handleSearchFoods)
	api.HandleFunc("GET /api/dialogs/{slot}/preview", s.handleGetPreview)
	api.HandleFunc("DELETE /api/dialogs/{slot}", s.handleDismissDialog)
	api.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).Warn("Rate limit exceeded", applog.FieldClientIP, s.detector.ExtractClientIP(r))
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded").Write(w)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/api/", limited(api))

	var handler http.Handler = mux
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(s.detector.ExtractClientIP).Middleware(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Text estimation may wait on two model calls.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
