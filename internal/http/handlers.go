package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dosh/internal/actions"
	"dosh/internal/core"
	"dosh/internal/log"
)

// dateRange is one entry of the date filter select on the index page.
type dateRange struct {
	Value string
	Label string
}

var dateRanges = []dateRange{
	{core.AllTransactions, "All transactions"},
	{"-7 days", "Last 7 days"},
	{"-1 month", "Last month"},
	{"start of month", "This month"},
	{"start of month,-1 month:start of month,-1 day", "Previous month"},
	{"-3 months", "Last 3 months"},
	{"start of year", "This year"},
	{"-1 year", "Last 12 months"},
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
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
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.store == nil:
		checks["store"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	default:
		if err := s.store.Ping(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	hits, suspicious := s.metrics.snapshot()
	checks["rate_limiter"] = map[string]any{
		"active_clients":      s.rateLimiter.ActiveClients(),
		"rate_limit_hits":     hits,
		"suspicious_requests": suspicious,
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Not found").Write(w)
		return
	}
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := struct {
		Groups     []string
		Accounts   []string
		Categories []string
		Ranges     []dateRange
	}{
		Groups:     s.stringList(r.Context(), actions.GetGroups),
		Accounts:   s.stringList(r.Context(), actions.GetAccounts),
		Categories: s.stringList(r.Context(), actions.GetCategories),
		Ranges:     dateRanges,
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed",
			log.FieldError, err,
			"template", "index.html",
			log.FieldOperation, log.OpRender)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// stringList runs one of the list actions; failures yield an empty list.
func (s *Server) stringList(ctx context.Context, a actions.Action) []string {
	resp, err := s.dispatcher.Dispatch(ctx, a, nil)
	if err != nil {
		return nil
	}
	list, _ := resp.JSON.([]string)
	return list
}

// handleAPI runs the action named by the path, or by the "action" parameter
// on /api.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	logger := log.FromContext(r.Context())

	params, err := actionParams(r)
	if err != nil {
		logger.WarnContext(r.Context(), "Invalid request body",
			log.FieldError, err,
			log.FieldPath, r.URL.Path,
			"error_type", log.ErrorTypeValidation)
		if errors.Is(err, ErrBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large").Write(w)
			return
		}
		BadRequestError("Invalid request body").Write(w)
		return
	}

	name := r.PathValue("action")
	if name == "" {
		name = params.Get("action")
	}
	params.Del("action")

	action, err := actions.ParseAction(name)
	if err != nil {
		logger.WarnContext(r.Context(), "Unknown action",
			log.FieldAction, name,
			"error_type", log.ErrorTypeNotFound)
		NotFoundError("Unknown action").Write(w)
		return
	}

	if action.Mutating() {
		if resp := RequirePOST(r); resp != nil {
			resp.Write(w)
			return
		}
	}

	result, err := s.dispatcher.Dispatch(r.Context(), action, params)
	if err != nil {
		NotFoundError("Unknown action").Write(w)
		return
	}

	resp := NewResponse().Header("Cache-Control", "no-store")
	switch result.Kind {
	case actions.KindHTML:
		resp.HTML(result.HTML)
	default:
		resp.JSON(result.JSON)
	}
	if err := resp.Err(); err != nil {
		logger.ErrorContext(r.Context(), "Encoding action response failed",
			log.FieldAction, action.String(),
			log.FieldError, err,
			"error_type", log.ErrorTypeInternal)
	}
	resp.Write(w)
}
