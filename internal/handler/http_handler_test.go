package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/logger"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/repository/memstore"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/service"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	svc, _ := newTestService()
	mux := http.NewServeMux()
	NewHTTPHandler(svc, logger.Nop()).Routes(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(UserIDHeader, "admin")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUpsertAndReport(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/approval-rules", `{"min_amount":"0","max_amount":"999","approver_role":"manager"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rule := decodeBody(t, rec)
	assert.Equal(t, "global", rule["scope"])
	assert.Equal(t, "999", rule["max_amount"])

	rec = do(t, mux, http.MethodPost, "/api/v1/approval-rules", `{"min_amount":1000,"approver_role":"client_owner"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decodeBody(t, rec)["max_amount"])

	rec = do(t, mux, http.MethodGet, "/api/v1/approval-policy/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	report := decodeBody(t, rec)
	assert.Equal(t, []any{"0", "1000"}, report["breakpoints"])
	rows := report["projects"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "Acme", row["client_name"])
	approvals := row["approvals"].([]any)
	require.Len(t, approvals, 2)
	assert.Equal(t, "Alex Kim", approvals[0].(map[string]any)["label"])
	assert.Equal(t, "Sam Lee", approvals[1].(map[string]any)["label"])
}

func TestUpsertRuleRejectsInvalidRole(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/approval-rules", `{"min_amount":"0","approver_role":"Boss"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "INVALID_INPUT", body["code"])
	details := body["details"].([]any)
	require.Len(t, details, 1)
	assert.Equal(t, "approver_role", details[0].(map[string]any)["field"])
}

func TestUpsertRuleRejectsMalformedBody(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/approval-rules", `{"min_amount":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertRuleUnknownProject(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/approval-rules", `{"project_id":"ghost","min_amount":"0","approver_role":"manager"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveEndpoint(t *testing.T) {
	mux := newTestMux(t)
	do(t, mux, http.MethodPost, "/api/v1/approval-rules", `{"project_id":"p1","min_amount":"0","approver_role":"client_owner"}`)

	rec := do(t, mux, http.MethodGet, "/api/v1/approval-policy/resolve?project_id=p1&amount=250.75", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "Website", body["project_name"])
	approval := body["approval"].(map[string]any)
	assert.Equal(t, "resolved", approval["status"])
	assert.Equal(t, true, approval["is_project_specific"])
	assert.Equal(t, "client_owner", approval["approver_role"])

	rec = do(t, mux, http.MethodGet, "/api/v1/approval-policy/resolve?project_id=p1&amount=lots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/approval-policy/resolve?amount=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/approval-policy/resolve?project_id=ghost&amount=1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveNoRule(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/approval-policy/resolve?project_id=p1&amount=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	approval := decodeBody(t, rec)["approval"].(map[string]any)
	assert.Equal(t, "no_rule", approval["status"])
	assert.Equal(t, "No rule defined", approval["label"])
	assert.Nil(t, approval["approver"])
}

func TestPreviewEndpointDoesNotSave(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/approval-policy/preview", `{"min_amount":"0","approver_role":"manager"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"0"}, decodeBody(t, rec)["breakpoints"])

	rec = do(t, mux, http.MethodGet, "/api/v1/approval-rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["rules"])
}

func TestDeleteAndHistory(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/approval-rules", `{"min_amount":"0","approver_role":"manager"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody(t, rec)["id"].(string)

	rec = do(t, mux, http.MethodGet, "/api/v1/approval-rules/delete?id="+id, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, mux, http.MethodDelete, "/api/v1/approval-rules/delete?id="+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, mux, http.MethodDelete, "/api/v1/approval-rules/delete?id="+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/approval-rules/history?rule_id="+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody(t, rec)["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "upserted", entries[0].(map[string]any)["action"])
	assert.Equal(t, "deleted", entries[1].(map[string]any)["action"])
	assert.Equal(t, "admin", entries[1].(map[string]any)["performed_by"])
}

func TestListProjects(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/projects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	projects := decodeBody(t, rec)["projects"].([]any)
	require.Len(t, projects, 1)
	assert.Equal(t, "p1", projects[0].(map[string]any)["id"])
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t)

	for _, target := range []string{
		"/api/v1/approval-policy/report",
		"/api/v1/approval-policy/resolve",
		"/api/v1/projects",
	} {
		rec := do(t, mux, http.MethodPut, target, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
	rec := do(t, mux, http.MethodGet, "/api/v1/approval-policy/preview", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type brokenDirectory struct{}

func (brokenDirectory) LookupPeople(context.Context, []string) (map[string]policy.Person, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestServerErrorsHideCause(t *testing.T) {
	s := memstore.New()
	s.AddClient(policy.Client{ID: "c1", Name: "Acme"})
	s.AddProject(policy.Project{ID: "p1", Name: "Website", ClientID: "c1", ManagerID: "u-mgr"})
	mux := http.NewServeMux()
	NewHTTPHandler(service.NewApprovalPolicyService(s, s, brokenDirectory{}, s, nil, logger.Nop()), logger.Nop()).Routes(mux)

	rec := do(t, mux, http.MethodGet, "/api/v1/approval-policy/report", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	errBody := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "UNAVAILABLE", errBody["code"])
	assert.Equal(t, "approval policy data unavailable", errBody["message"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
