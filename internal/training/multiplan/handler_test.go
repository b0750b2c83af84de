package multiplan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lunaugust/plantracker/internal/middleware"
	"github.com/lunaugust/plantracker/internal/telemetry/metrics"
	"github.com/lunaugust/plantracker/internal/training"
	"github.com/lunaugust/plantracker/internal/training/generator"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planGeneratorMock struct {
	plan   training.TrainingPlan
	source string

	lastForm     generator.Form
	lastLanguage string
}

var _ planGenerator = (*planGeneratorMock)(nil)

func (m *planGeneratorMock) Generate(_ context.Context, form generator.Form, language string) (training.TrainingPlan, string) {
	m.lastForm = form
	m.lastLanguage = language
	return m.plan, m.source
}

type languageProviderMock struct {
	language string
}

var _ languageProvider = (*languageProviderMock)(nil)

func (m *languageProviderMock) Language(context.Context, string) string {
	return m.language
}

func newHandlerTestDeps() (*Handler, *planRepoMock, *planGeneratorMock) {
	repo := newPlanRepoMock()
	registry := NewRegistry(repo, metrics.NewTestManager())
	planGen := &planGeneratorMock{
		plan:   testPlanContent(),
		source: generator.SourceRules,
	}
	handler := NewHandler(registry, planGen, &languageProviderMock{language: "es"})
	return handler, repo, planGen
}

func scopedRequest(method, target, body, scope string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.ContextWithScope(req.Context(), scope))
}

func TestHandleState_EmptyGuest(t *testing.T) {
	handler, _, _ := newHandlerTestDeps()

	rec := httptest.NewRecorder()
	handler.HandleState(rec, scopedRequest(http.MethodGet, "/plans", "", "guest"))

	require.Equal(t, http.StatusOK, rec.Code)

	var state State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "guest", state.Scope)
	assert.Empty(t, state.Plans)
	assert.Empty(t, state.ActivePlanID)
	assert.False(t, state.Loading)
}

func TestHandleCreateAndGetActive(t *testing.T) {
	handler, _, _ := newHandlerTestDeps()

	body := `{"name":"Hipertrofia","plan":{"Día 1":{"label":"Pecho","color":"#4f8a8b","exercises":[]}}}`
	rec := httptest.NewRecorder()
	handler.HandleCreate(rec, scopedRequest(http.MethodPost, "/plans", body, "user-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created planIDResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = httptest.NewRecorder()
	handler.HandleGetActive(rec, scopedRequest(http.MethodGet, "/plans/active", "", "user-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var active training.PlanWithMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	assert.Equal(t, created.ID, active.Metadata.ID)
	assert.Equal(t, "Hipertrofia", active.Metadata.Name)
}

func TestHandleCreate_EmptyNameRejected(t *testing.T) {
	handler, _, _ := newHandlerTestDeps()

	rec := httptest.NewRecorder()
	handler.HandleCreate(rec, scopedRequest(http.MethodPost, "/plans", `{"name":""}`, "user-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetActive_NoActivePlan(t *testing.T) {
	handler, _, _ := newHandlerTestDeps()

	rec := httptest.NewRecorder()
	handler.HandleGetActive(rec, scopedRequest(http.MethodGet, "/plans/active", "", "user-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpdateActive_NoActivePlan(t *testing.T) {
	handler, _, _ := newHandlerTestDeps()

	rec := httptest.NewRecorder()
	handler.HandleUpdateActive(rec, scopedRequest(http.MethodPut, "/plans/active", `{}`, "user-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRemove_LastPlan(t *testing.T) {
	handler, repo, _ := newHandlerTestDeps()
	repo.seedPlan("plan_1", "Fuerza", "user-1", 100)
	repo.activeID = "plan_1"

	req := scopedRequest(http.MethodDelete, "/plans/plan_1", "", "user-1")
	req = mux.SetURLVars(req, map[string]string{"id": "plan_1"})
	rec := httptest.NewRecorder()
	handler.HandleRemove(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRename(t *testing.T) {
	handler, repo, _ := newHandlerTestDeps()
	repo.seedPlan("plan_1", "Fuerza", "user-1", 100)
	repo.activeID = "plan_1"

	req := scopedRequest(http.MethodPut, "/plans/plan_1/name", `{"name":"Fuerza 5x5"}`, "user-1")
	req = mux.SetURLVars(req, map[string]string{"id": "plan_1"})
	rec := httptest.NewRecorder()
	handler.HandleRename(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Fuerza 5x5", repo.plans["plan_1"].Metadata.Name)
}

func TestHandleShareActive_GuestForbidden(t *testing.T) {
	handler, _, _ := newHandlerTestDeps()

	rec := httptest.NewRecorder()
	handler.HandleShareActive(rec, scopedRequest(
		http.MethodPost, "/plans/active/share", `{"userIds":["user-2"]}`, "guest"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleShareActive(t *testing.T) {
	handler, repo, _ := newHandlerTestDeps()
	repo.seedPlan("plan_1", "Fuerza", "user-1", 100)
	repo.activeID = "plan_1"

	rec := httptest.NewRecorder()
	handler.HandleShareActive(rec, scopedRequest(
		http.MethodPost, "/plans/active/share", `{"userIds":["user-2"]}`, "user-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, repo.plans["plan_1"].Metadata.IsShared)
	assert.Contains(t, repo.plans["plan_1"].Metadata.SharedWith, "user-2")
}

func TestHandleCopy(t *testing.T) {
	handler, repo, _ := newHandlerTestDeps()
	repo.seedPlan("plan_1", "Fuerza", "user-2", 100)

	req := scopedRequest(http.MethodPost, "/plans/plan_1/copy", "", "user-1")
	req = mux.SetURLVars(req, map[string]string{"id": "plan_1"})
	rec := httptest.NewRecorder()
	handler.HandleCopy(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp planIDResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", repo.plans[resp.ID].Metadata.OwnerID)
}

func TestHandleGenerate(t *testing.T) {
	handler, repo, planGen := newHandlerTestDeps()

	body := `{"experience":"beginner","goal":"hypertrophy","daysPerWeek":3,"minutesPerSession":45}`
	rec := httptest.NewRecorder()
	handler.HandleGenerate(rec, scopedRequest(http.MethodPost, "/plans/generate", body, "user-1"))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp generatePlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, generator.SourceRules, resp.Source)
	require.NotEmpty(t, resp.ID)

	saved := repo.plans[resp.ID]
	assert.Equal(t, training.PlanSourceGenerated, saved.Metadata.Source)
	assert.Equal(t, "Plan generado", saved.Metadata.Name)

	assert.Equal(t, "beginner", planGen.lastForm.Experience)
	assert.Equal(t, 3, planGen.lastForm.DaysPerWeek)
	assert.Equal(t, "es", planGen.lastLanguage)
}
