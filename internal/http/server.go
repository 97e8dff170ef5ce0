package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financify/internal/cache"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/middleware"
	"financify/internal/middleware/auth"
	"financify/internal/middleware/ratelimit"
	"financify/internal/middleware/security"
	"financify/internal/middleware/trace"
	"financify/internal/services"
)

// Store is what the server needs from the storage backend directly.
type Store interface {
	auth.UserLookup
	Ping(ctx context.Context) error
}

// Deps groups the services behind the routes.
type Deps struct {
	Store      Store
	Statements *services.StatementService
	Expenses   *services.ExpenseService
	Patterns   *services.PatternService
	Users      *services.UserService
	Reports    *services.ReportService
}

// Config tunes the server.
type Config struct {
	Addr          string
	AdminMode     bool
	RateLimitRPM  int
	AuthCacheSize int
	AuthCacheTTL  time.Duration
}

type Server struct {
	*http.Server

	deps      Deps
	adminMode bool
	logger    *log.Logger
	sl        *log.StructuredLogger
	started   time.Time

	auth             *auth.Authenticator
	authCache        *cache.LRUCache[core.User]
	cacheManager     *cache.Manager
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	securityHeaders  *security.HeadersMiddleware
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer builds the JSON API. The rate limiter and the auth cache
// cleanup start immediately; Shutdown stops them.
func NewServer(cfg Config, deps Deps, logger *log.Logger) *Server {
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		deps:             deps,
		adminMode:        cfg.AdminMode,
		logger:           logger,
		sl:               log.NewStructuredLogger(logger),
		started:          time.Now(),
		cacheManager:     cache.NewManager(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitRPM}),
		securityDetector: security.NewDetector(logger),
		securityHeaders:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	ttl := cfg.AuthCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s.authCache = cache.NewLRUCache[core.User](cfg.AuthCacheSize, ttl)
	s.cacheManager.Register(s.authCache)
	s.cacheManager.StartCleanup(ttl)
	s.auth = auth.New(deps.Store, s.authCache, logger)

	s.Server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	get := middleware.Methods(http.MethodGet)
	getPost := middleware.Methods(http.MethodGet, http.MethodPost)
	post := middleware.Methods(http.MethodPost)
	del := middleware.Methods(http.MethodDelete)
	authed := s.auth.Middleware
	admin := auth.AdminOnly(s.adminMode)

	handle := func(pattern string, h http.HandlerFunc, mws ...middleware.Func) {
		mux.Handle(pattern, middleware.Chain(h, mws...))
	}

	handle("/{$}", s.handleIndex, get)
	handle("/healthz", s.handleHealth, get)
	handle("/readyz", s.handleReady, get)
	handle("/metrics", s.handleMetrics, get)

	for _, table := range []string{core.TableAssets, core.TableLiabilities} {
		handle("/"+table, s.handleStatements(table), getPost, authed)
		handle("/"+table+"/{id}", s.handleDeleteStatement(table), del, authed)
	}
	handle("/expenses", s.handleExpenses, getPost, authed)
	handle("/expenses/{id}", s.handleDeleteExpense, del, authed)
	handle("/patterns", s.handlePatterns, getPost, authed)
	handle("/patterns/{ref}", s.handleGetPattern, get, authed)

	handle("/reports", s.handleListReports, get, authed)
	handle("/reports/generate", s.handleGenerateReports, post, authed)
	handle("/reports/{id}", s.handleGetReport, get, authed)

	handle("/users", s.handleUsers, getPost, authed, admin)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})

	return middleware.Chain(mux,
		s.securityHeaders.Middleware,
		s.securityDetector.Middleware,
		s.traceMiddleware.Middleware,
		s.rateLimiter.Middleware(s.rateLimitKey, s.onRateLimited),
	)
}

// rateLimitKey buckets callers by client IP. The limiter runs before
// authentication, so the Authorization header must not pick the bucket.
func (s *Server) rateLimitKey(r *http.Request) string {
	return "ip:" + s.securityDetector.ExtractClientIP(r)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldPath, r.URL.Path,
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
	middleware.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// Shutdown gracefully shuts down the server and its background loops.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		s.cacheManager.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
