package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"financify/internal/log"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"hello": "world"}).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDatabase)
		checks["store"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.deps.Reports != nil && s.deps.Reports.CanEnqueue() {
		checks["queue"] = "configured"
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	hits, misses := s.authCache.Stats()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP auth_cache_hits_total Total auth cache hits\n")
	fmt.Fprintf(w, "# TYPE auth_cache_hits_total counter\n")
	fmt.Fprintf(w, "auth_cache_hits_total %d\n\n", hits)

	fmt.Fprintf(w, "# HELP auth_cache_misses_total Total auth cache misses\n")
	fmt.Fprintf(w, "# TYPE auth_cache_misses_total counter\n")
	fmt.Fprintf(w, "auth_cache_misses_total %d\n\n", misses)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

// writeServiceError maps err to a status and logs server-side failures.
// msg replaces the error text for client errors when non-empty.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op, msg string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.sl.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		InternalServerError().Write(w)
		return
	}
	if msg == "" {
		msg = err.Error()
	}
	ErrorResponse(status, msg).Write(w)
}
