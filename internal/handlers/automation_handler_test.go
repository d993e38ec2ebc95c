package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"rulify/internal/models"
	"rulify/internal/services"
)

func newTestRouter(t *testing.T) (*gin.Engine, *services.AutomationService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:handlers_" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.AutomationRule{}, &models.RuleExecution{}, &models.ThresholdConfig{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	service := services.NewAutomationService(db, logger)

	router := gin.New()
	api := router.Group("/api")
	RegisterAutomationRoutes(api,
		NewRuleHandler(service),
		NewEvaluationHandler(service),
		NewThresholdHandler(service),
		NewReportHandler(service),
	)
	return router, service
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeRule(t *testing.T, w *httptest.ResponseRecorder) models.AutomationRule {
	t.Helper()
	var rule models.AutomationRule
	if err := json.Unmarshal(w.Body.Bytes(), &rule); err != nil {
		t.Fatalf("decode rule: %v (%s)", err, w.Body.String())
	}
	return rule
}

func ruleBody() map[string]interface{} {
	return map[string]interface{}{
		"name":                    "slow deploys",
		"scope_type":              "repository",
		"metric_type":             "pr_cycle_time",
		"operator":                ">=",
		"threshold_value":         15,
		"action_type":             "send_notification",
		"notification_recipients": []string{"lead@example.com"},
	}
}

func TestCreateRuleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/automation/rules", ruleBody(), map[string]string{"X-User-ID": "alice"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	rule := decodeRule(t, w)
	if rule.RuleID == "" || rule.CreatedBy != "alice" || rule.Status != models.StatusDraft {
		t.Fatalf("unexpected rule: %+v", rule)
	}
}

func TestCreateRuleEndpointDefaultsUser(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/automation/rules", ruleBody(), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if rule := decodeRule(t, w); rule.CreatedBy != "system" {
		t.Fatalf("created_by = %q, want system", rule.CreatedBy)
	}
}

func TestCreateRuleEndpointRejectsInvalid(t *testing.T) {
	router, _ := newTestRouter(t)

	body := ruleBody()
	delete(body, "name")
	if w := doJSON(t, router, http.MethodPost, "/api/automation/rules", body, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing name: status = %d", w.Code)
	}

	body = ruleBody()
	body["scope_type"] = "galaxy"
	if w := doJSON(t, router, http.MethodPost, "/api/automation/rules", body, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad scope_type: status = %d", w.Code)
	}
}

func TestRuleLifecycleEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	created := decodeRule(t, doJSON(t, router, http.MethodPost, "/api/automation/rules", ruleBody(), nil))

	w := doJSON(t, router, http.MethodGet, "/api/automation/rules/"+created.RuleID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPut, "/api/automation/rules/"+created.RuleID, map[string]interface{}{"name": "renamed"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", w.Code, w.Body.String())
	}
	if rule := decodeRule(t, w); rule.Name != "renamed" {
		t.Fatalf("name = %q", rule.Name)
	}

	w = doJSON(t, router, http.MethodPost, "/api/automation/rules/"+created.RuleID+"/activate", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activate: status = %d", w.Code)
	}
	if rule := decodeRule(t, w); rule.Status != models.StatusActive {
		t.Fatalf("status = %s", rule.Status)
	}

	w = doJSON(t, router, http.MethodPost, "/api/automation/rules/"+created.RuleID+"/pause", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pause: status = %d", w.Code)
	}
	if rule := decodeRule(t, w); rule.Status != models.StatusPaused {
		t.Fatalf("status = %s", rule.Status)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/automation/rules/"+created.RuleID, nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/automation/rules/"+created.RuleID, nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted: status = %d", w.Code)
	}
}

func TestRuleEndpointsNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	paths := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/automation/rules/missing", nil},
		{http.MethodPut, "/api/automation/rules/missing", map[string]interface{}{"name": "x"}},
		{http.MethodDelete, "/api/automation/rules/missing", nil},
		{http.MethodPost, "/api/automation/rules/missing/activate", nil},
		{http.MethodPost, "/api/automation/rules/missing/pause", nil},
	}
	for _, p := range paths {
		if w := doJSON(t, router, p.method, p.path, p.body, nil); w.Code != http.StatusNotFound {
			t.Fatalf("%s %s: status = %d", p.method, p.path, w.Code)
		}
	}
}

func TestListRulesEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/automation/rules", ruleBody(), nil)
	second := ruleBody()
	second["name"] = "team rule"
	second["scope_type"] = "team"
	doJSON(t, router, http.MethodPost, "/api/automation/rules", second, nil)

	w := doJSON(t, router, http.MethodGet, "/api/automation/rules", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var page PaginatedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("total = %d, want 2", page.Total)
	}

	w = doJSON(t, router, http.MethodGet, "/api/automation/rules?scope_type=team", nil, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("scope filter: total = %d, want 1", page.Total)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/automation/rules?status=bogus", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bogus status: status = %d", w.Code)
	}
}

// Full path: define a repository-wide rule, activate it, then report an
// observation that crosses the threshold.
func TestEvaluateEndpointEndToEnd(t *testing.T) {
	router, _ := newTestRouter(t)

	created := decodeRule(t, doJSON(t, router, http.MethodPost, "/api/automation/rules", ruleBody(), nil))
	if w := doJSON(t, router, http.MethodPost, "/api/automation/rules/"+created.RuleID+"/activate", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("activate: status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost,
		"/api/automation/evaluate?entity_type=repository&entity_id=repo-7&metric_type=pr_cycle_time&current_value=18", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate: status = %d, body = %s", w.Code, w.Body.String())
	}
	var executions []models.RuleExecution
	if err := json.Unmarshal(w.Body.Bytes(), &executions); err != nil {
		t.Fatalf("decode executions: %v", err)
	}
	if len(executions) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(executions))
	}
	e := executions[0]
	if e.RuleID != created.RuleID || !e.ExecutionSuccess || e.ThresholdValue != 15 {
		t.Fatalf("unexpected execution: %+v", e)
	}
	if e.ActionExecuted != "send_notification" {
		t.Fatalf("action = %s", e.ActionExecuted)
	}

	// Below the threshold: empty result set.
	w = doJSON(t, router, http.MethodPost,
		"/api/automation/evaluate?entity_type=repository&entity_id=repo-7&metric_type=pr_cycle_time&current_value=3", nil, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &executions); err != nil {
		t.Fatalf("decode executions: %v", err)
	}
	if len(executions) != 0 {
		t.Fatalf("expected no executions, got %d", len(executions))
	}
}

func TestEvaluateEndpointValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	if w := doJSON(t, router, http.MethodPost, "/api/automation/evaluate?entity_type=team", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing params: status = %d", w.Code)
	}
	w := doJSON(t, router, http.MethodPost,
		"/api/automation/evaluate?entity_type=team&entity_id=T1&metric_type=x&current_value=abc", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric value: status = %d", w.Code)
	}
}

func TestTestRuleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	created := decodeRule(t, doJSON(t, router, http.MethodPost, "/api/automation/rules", ruleBody(), nil))

	w := doJSON(t, router, http.MethodPost, "/api/automation/rules/"+created.RuleID+"/test", map[string]interface{}{
		"entity_type":            "repository",
		"entity_id":              "repo-7",
		"simulated_metric_value": 20,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var preview services.RuleTestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if !preview.WouldTrigger || preview.ThresholdValue != 15 || preview.ActionThatWouldExecute != "send_notification" {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	w = doJSON(t, router, http.MethodPost, "/api/automation/rules/missing/test", map[string]interface{}{
		"entity_type": "team", "entity_id": "T1", "simulated_metric_value": 1,
	}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing rule: status = %d", w.Code)
	}
}

func TestThresholdEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/automation/thresholds", map[string]interface{}{
		"entity_type":      "team",
		"entity_id":        "T1",
		"metric_type":      "incident_frequency",
		"custom_threshold": 5,
		"custom_action":    "trigger_root_cause_analysis",
	}, map[string]string{"X-User-ID": "carol"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var config models.ThresholdConfig
	if err := json.Unmarshal(w.Body.Bytes(), &config); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if config.ConfigID == "" || config.CreatedBy != "carol" {
		t.Fatalf("unexpected config: %+v", config)
	}

	w = doJSON(t, router, http.MethodPost, "/api/automation/thresholds", map[string]interface{}{
		"entity_type":   "team",
		"entity_id":     "T1",
		"metric_type":   "x",
		"custom_action": "nonsense",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid action: status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/automation/thresholds?entity_type=team&entity_id=T1", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d", w.Code)
	}
	var configs []models.ThresholdConfig
	if err := json.Unmarshal(w.Body.Bytes(), &configs); err != nil {
		t.Fatalf("decode configs: %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("expected 1 config, got %d", len(configs))
	}
}

func TestExecutionAndReportEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	created := decodeRule(t, doJSON(t, router, http.MethodPost, "/api/automation/rules", ruleBody(), nil))
	doJSON(t, router, http.MethodPost, "/api/automation/rules/"+created.RuleID+"/activate", nil, nil)
	doJSON(t, router, http.MethodPost,
		"/api/automation/evaluate?entity_type=repository&entity_id=repo-7&metric_type=pr_cycle_time&current_value=18", nil, nil)

	w := doJSON(t, router, http.MethodGet, "/api/automation/executions?rule_id="+created.RuleID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("executions: status = %d", w.Code)
	}
	var page PaginatedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("total = %d, want 1", page.Total)
	}

	reportPath := fmt.Sprintf("/api/automation/report/effectiveness?period_start=%s&period_end=%s",
		"2020-01-01T00:00:00Z", "2030-01-01T00:00:00Z")
	w = doJSON(t, router, http.MethodGet, reportPath, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report: status = %d, body = %s", w.Code, w.Body.String())
	}
	var report services.EffectivenessReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalTriggers != 1 || report.SuccessfulExecutions != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/automation/report/effectiveness", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing period: status = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/automation/report/effectiveness?period_start=yesterday&period_end=2030-01-01T00:00:00Z", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad period: status = %d", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	health := NewHealthHandler()
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Fatalf("health: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("ready: status = %d", w.Code)
	}
}
