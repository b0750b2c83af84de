package store

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lunaugust/plantracker/internal/middleware"
	"github.com/lunaugust/plantracker/internal/telemetry/metrics"
	"github.com/lunaugust/plantracker/internal/training"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() (*Handler, *remoteStoreMock, *metrics.Manager) {
	repo, remote, _ := newTestRepository()
	metricsManager := metrics.NewTestManager()
	return NewHandler(repo, metricsManager), remote, metricsManager
}

func requestWithScope(req *http.Request, scope string) *http.Request {
	return req.WithContext(middleware.ContextWithScope(req.Context(), scope))
}

func guestRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	// no scope in context, the handler falls back to guest
	return req
}

func TestHandleGetLogs_EmptyIsOkAndNeverErrors(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := httptest.NewRecorder()
	handler.HandleGetLogs(rec, guestRequest(http.MethodGet, "/logs", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestHandleSaveAndGetLogs(t *testing.T) {
	handler, _, _ := newTestHandler()

	body := `{"ex_1":[{"date":"2025-03-01","weight":"42.5","reps":"10"}]}`
	rec := httptest.NewRecorder()
	handler.HandleSaveLogs(rec, guestRequest(http.MethodPut, "/logs", body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.HandleGetLogs(rec, guestRequest(http.MethodGet, "/logs", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var logs training.LogsByExercise
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs["ex_1"], 1)
	assert.Equal(t, "42.5", logs["ex_1"][0].Weight)
}

func TestHandleAddLogEntry(t *testing.T) {
	handler, _, metricsManager := newTestHandler()

	req := guestRequest(http.MethodPost, "/logs/ex_1", `{"date":"2025-03-01","weight":"40","reps":"10"}`)
	req = mux.SetURLVars(req, map[string]string{"exerciseId": "ex_1"})
	rec := httptest.NewRecorder()
	handler.HandleAddLogEntry(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = guestRequest(http.MethodPost, "/logs/ex_1", `{"date":"2025-03-08","weight":"60","reps":"8"}`)
	req = mux.SetURLVars(req, map[string]string{"exerciseId": "ex_1"})
	rec = httptest.NewRecorder()
	handler.HandleAddLogEntry(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp addEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ex_1", resp.ExerciseID)
	require.Len(t, resp.Entries, 2)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 60.0, resp.Stats.Current)
	assert.Equal(t, 60.0, resp.Stats.Max)
	assert.Equal(t, 40.0, resp.Stats.Min)

	assert.Equal(t, float64(2), testutil.ToFloat64(metricsManager.CounterLogEntries))
}

func TestHandleAddLogEntry_Validation(t *testing.T) {
	handler, _, _ := newTestHandler()

	req := guestRequest(http.MethodPost, "/logs/ex_1", `{"reps":"10"}`)
	req = mux.SetURLVars(req, map[string]string{"exerciseId": "ex_1"})
	rec := httptest.NewRecorder()
	handler.HandleAddLogEntry(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDeleteLogEntry(t *testing.T) {
	handler, _, _ := newTestHandler()

	body := `{"ex_1":[{"date":"2025-03-01","weight":"40","reps":"10"},{"date":"2025-03-08","weight":"60","reps":"8"}]}`
	rec := httptest.NewRecorder()
	handler.HandleSaveLogs(rec, guestRequest(http.MethodPut, "/logs", body))
	require.Equal(t, http.StatusOK, rec.Code)

	req := guestRequest(http.MethodDelete, "/logs/ex_1/0", "")
	req = mux.SetURLVars(req, map[string]string{"exerciseId": "ex_1", "index": "0"})
	rec = httptest.NewRecorder()
	handler.HandleDeleteLogEntry(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp addEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "2025-03-08", resp.Entries[0].Date)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 60.0, resp.Stats.Current)
}

func TestHandleDeleteLogEntry_IndexOutOfRange(t *testing.T) {
	handler, _, _ := newTestHandler()

	req := guestRequest(http.MethodDelete, "/logs/ex_1/5", "")
	req = mux.SetURLVars(req, map[string]string{"exerciseId": "ex_1", "index": "5"})
	rec := httptest.NewRecorder()
	handler.HandleDeleteLogEntry(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = guestRequest(http.MethodDelete, "/logs/ex_1/x", "")
	req = mux.SetURLVars(req, map[string]string{"exerciseId": "ex_1", "index": "x"})
	rec = httptest.NewRecorder()
	handler.HandleDeleteLogEntry(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExerciseStats_NoEntries(t *testing.T) {
	handler, _, _ := newTestHandler()

	req := guestRequest(http.MethodGet, "/logs/ex_404/stats", "")
	req = mux.SetURLVars(req, map[string]string{"exerciseId": "ex_404"})
	rec := httptest.NewRecorder()
	handler.HandleExerciseStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestHandleLegacyPlanRoundTrip(t *testing.T) {
	handler, _, _ := newTestHandler()

	body := `{"Día 1":{"label":"Pecho","color":"#4f8a8b","exercises":[{"id":"ex_1","name":"Press banca","sets":"4","reps":"8-10","rest":"90s"}]}}`
	rec := httptest.NewRecorder()
	handler.HandleSaveLegacyPlan(rec, guestRequest(http.MethodPut, "/plan", body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.HandleGetLegacyPlan(rec, guestRequest(http.MethodGet, "/plan", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var plan training.TrainingPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	require.Contains(t, plan, "Día 1")
	assert.Equal(t, "Pecho", plan["Día 1"].Label)
}

func TestHandleSaveLogs_RemoteFailure(t *testing.T) {
	repo, remote, _ := newTestRepository()
	handler := NewHandler(repo, metrics.NewTestManager())

	remote.failWrites = true

	body := `{"ex_1":[{"date":"2025-03-01","weight":"40","reps":"10"}]}`
	req := httptest.NewRequest(http.MethodPut, "/logs", strings.NewReader(body))
	// remote scope goes through the failing remote store
	rec := httptest.NewRecorder()
	handler.HandleSaveLogs(rec, requestWithScope(req, "user-1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
