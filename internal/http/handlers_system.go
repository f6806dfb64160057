package http

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady verifies the document store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	status, code := "ready", http.StatusOK

	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			checks["store"] = "failed"
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}
	checks["calendar_cache_entries"] = strconv.Itoa(s.months.Size())
	rl := s.limiter.GetMetrics()
	checks["rate_limited_clients"] = strconv.FormatInt(rl.ClientCount, 10)
	checks["rate_limit_rejected"] = strconv.FormatInt(rl.Rejected, 10)
	checks["suspicious_requests"] = strconv.FormatInt(s.detector.SuspiciousCount(), 10)
	checks["open_dialogs"] = strconv.Itoa(s.journal.OpenDialogs())

	NewJSONResponse().Status(code).Data(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}
