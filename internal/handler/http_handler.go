package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/logger"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/service"
)

// UserIDHeader identifies the caller of mutating requests.
const UserIDHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	service *service.ApprovalPolicyService
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(service *service.ApprovalPolicyService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		log:     log.WithComponent("http"),
	}
}

// Routes registers every endpoint on mux.
func (h *HTTPHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/approval-rules", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListRules(w, r)
		case http.MethodPost:
			h.UpsertRule(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/v1/approval-rules/delete", h.DeleteRule)
	mux.HandleFunc("/api/v1/approval-rules/history", h.RuleHistory)
	mux.HandleFunc("/api/v1/approval-policy/report", h.GetReport)
	mux.HandleFunc("/api/v1/approval-policy/resolve", h.Resolve)
	mux.HandleFunc("/api/v1/approval-policy/preview", h.PreviewRule)
	mux.HandleFunc("/api/v1/projects", h.ListProjects)
}

// GetReport handles the approval matrix request
func (h *HTTPHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	report, err := h.service.BuildReport(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Resolve handles single (project, amount) lookups
func (h *HTTPHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		h.writeError(w, r, errors.InvalidInput("project_id", "This field is required"))
		return
	}
	amount, err := service.ParseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.Resolve(r.Context(), projectID, amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PreviewRule handles rule preview requests; nothing is saved
func (h *HTTPHandler) PreviewRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req service.UpsertRuleRequest
	if !h.decode(w, r, &req) {
		return
	}

	report, err := h.service.PreviewRule(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListRules handles rule listing; project_id selects a project's overrides
func (h *HTTPHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context(), r.URL.Query().Get("project_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": nonNil(rules)})
}

// UpsertRule handles create-or-update rule requests
func (h *HTTPHandler) UpsertRule(w http.ResponseWriter, r *http.Request) {
	var req service.UpsertRuleRequest
	if !h.decode(w, r, &req) {
		return
	}

	rule, err := h.service.UpsertRule(r.Context(), &req, r.Header.Get(UserIDHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule handles delete rule requests
func (h *HTTPHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, r, errors.InvalidInput("id", "This field is required"))
		return
	}

	if _, err := h.service.DeleteRule(r.Context(), id, r.Header.Get(UserIDHeader)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RuleHistory handles audit trail requests
func (h *HTTPHandler) RuleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	entries, err := h.service.RuleHistory(r.Context(), r.URL.Query().Get("rule_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": nonNil(entries)})
}

// ListProjects handles project listing
func (h *HTTPHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": nonNil(projects)})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid request body"))
		return false
	}
	return true
}

type errorBody struct {
	Code    errors.ErrorCode    `json:"code"`
	Message string              `json:"message"`
	Details []errors.FieldError `json:"details,omitempty"`
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	body := errorBody{
		Code:    errors.CodeOf(err),
		Message: errors.PublicMessage(err),
		Details: errors.DetailsOf(err),
	}
	writeJSON(w, status, map[string]any{"error": body})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": errorBody{
		Code:    errors.ErrCodeInvalidInput,
		Message: "Method not allowed",
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
