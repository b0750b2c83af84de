package store

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lunaugust/plantracker/internal/middleware"
	"github.com/lunaugust/plantracker/internal/telemetry/metrics"
	"github.com/lunaugust/plantracker/internal/telemetry/tracing"
	"github.com/lunaugust/plantracker/internal/training"
	"github.com/lunaugust/plantracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Handler serves the workout log and legacy single-plan endpoints.
type Handler struct {
	repo    *Repository
	metrics *metrics.Manager
}

func NewHandler(repo *Repository, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metricsManager,
	}
}

type addEntryResponse struct {
	ExerciseID string                `json:"exerciseId"`
	Entries    []training.LogEntry   `json:"entries"`
	Stats      *training.WeightStats `json:"stats"`
}

func (handler *Handler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "logsHandler.get")
	defer span.End()

	scope := middleware.ScopeFromContext(ctx)
	span.SetAttributes(attribute.String("scope", scope))

	logs := handler.repo.LoadLogs(ctx, scope)

	logsJson, err := json.Marshal(logs)
	if err != nil {
		log.Errorf("failed to marshal logs [scope %s]: %s", scope, err)
		http.Error(w, "failed to get logs", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, logsJson)
}

func (handler *Handler) HandleSaveLogs(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "logsHandler.save")
	defer span.End()

	var logs training.LogsByExercise
	if err := json.NewDecoder(r.Body).Decode(&logs); err != nil {
		log.Errorf("save logs, unmarshal json params: %s", err)
		http.Error(w, "save logs failed", http.StatusBadRequest)
		return
	}

	scope := middleware.ScopeFromContext(ctx)
	span.SetAttributes(attribute.String("scope", scope))

	if err := handler.repo.PersistLogs(ctx, logs, scope); err != nil {
		log.Errorf("failed to save logs [scope %s]: %s", scope, err)
		http.Error(w, "save logs failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "saved")
}

// HandleAddLogEntry appends one entry to an exercise's history and returns
// the updated history together with its weight stats.
func (handler *Handler) HandleAddLogEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "logsHandler.addEntry")
	defer span.End()

	vars := mux.Vars(r)
	exerciseID := vars["exerciseId"]
	if exerciseID == "" {
		http.Error(w, "error, exercise id empty", http.StatusBadRequest)
		return
	}

	var entry training.LogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		log.Errorf("add log entry, unmarshal json params: %s", err)
		http.Error(w, "add log entry failed", http.StatusBadRequest)
		return
	}
	if entry.Date == "" || entry.Weight == "" {
		http.Error(w, "error, entry date or weight empty", http.StatusBadRequest)
		return
	}

	scope := middleware.ScopeFromContext(ctx)
	span.SetAttributes(attribute.String("scope", scope))
	span.SetAttributes(attribute.String("exercise.id", exerciseID))

	logs := handler.repo.LoadLogs(ctx, scope)
	if logs == nil {
		logs = training.LogsByExercise{}
	}
	logs[exerciseID] = append(logs[exerciseID], entry)

	if err := handler.repo.PersistLogs(ctx, logs, scope); err != nil {
		log.Errorf("failed to persist log entry [scope %s] [%s]: %s", scope, exerciseID, err)
		http.Error(w, "add log entry failed", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterLogEntries.Inc()

	respBytes, err := json.Marshal(addEntryResponse{
		ExerciseID: exerciseID,
		Entries:    logs[exerciseID],
		Stats:      training.ComputeWeightStats(logs[exerciseID]),
	})
	if err != nil {
		log.Errorf("failed to marshal log entry response: %s", err)
		http.Error(w, "add log entry failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respBytes, http.StatusCreated)
}

// HandleDeleteLogEntry removes one entry from an exercise's history by its
// position and returns the updated history together with its weight stats.
func (handler *Handler) HandleDeleteLogEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "logsHandler.deleteEntry")
	defer span.End()

	vars := mux.Vars(r)
	exerciseID := vars["exerciseId"]
	if exerciseID == "" {
		http.Error(w, "error, exercise id empty", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		http.Error(w, "error, invalid entry index", http.StatusBadRequest)
		return
	}

	scope := middleware.ScopeFromContext(ctx)
	span.SetAttributes(attribute.String("scope", scope))
	span.SetAttributes(attribute.String("exercise.id", exerciseID))

	logs := handler.repo.LoadLogs(ctx, scope)
	entries := logs[exerciseID]
	if index < 0 || index >= len(entries) {
		http.Error(w, "error, log entry not found", http.StatusNotFound)
		return
	}
	logs[exerciseID] = append(entries[:index], entries[index+1:]...)

	if err := handler.repo.PersistLogs(ctx, logs, scope); err != nil {
		log.Errorf("failed to persist log entry removal [scope %s] [%s]: %s", scope, exerciseID, err)
		http.Error(w, "delete log entry failed", http.StatusInternalServerError)
		return
	}

	respBytes, err := json.Marshal(addEntryResponse{
		ExerciseID: exerciseID,
		Entries:    logs[exerciseID],
		Stats:      training.ComputeWeightStats(logs[exerciseID]),
	})
	if err != nil {
		log.Errorf("failed to marshal log entry response: %s", err)
		http.Error(w, "delete log entry failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}

func (handler *Handler) HandleExerciseStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "logsHandler.stats")
	defer span.End()

	vars := mux.Vars(r)
	exerciseID := vars["exerciseId"]
	if exerciseID == "" {
		http.Error(w, "error, exercise id empty", http.StatusBadRequest)
		return
	}

	scope := middleware.ScopeFromContext(ctx)
	logs := handler.repo.LoadLogs(ctx, scope)

	statsJson, err := json.Marshal(training.ComputeWeightStats(logs[exerciseID]))
	if err != nil {
		log.Errorf("failed to marshal weight stats: %s", err)
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statsJson)
}

func (handler *Handler) HandleGetLegacyPlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "planHandler.getLegacy")
	defer span.End()

	scope := middleware.ScopeFromContext(ctx)
	plan := handler.repo.LoadTrainingPlan(ctx, scope)

	planJson, err := json.Marshal(plan)
	if err != nil {
		log.Errorf("failed to marshal plan [scope %s]: %s", scope, err)
		http.Error(w, "failed to get plan", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, planJson)
}

func (handler *Handler) HandleSaveLegacyPlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "planHandler.saveLegacy")
	defer span.End()

	var plan training.TrainingPlan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		log.Errorf("save plan, unmarshal json params: %s", err)
		http.Error(w, "save plan failed", http.StatusBadRequest)
		return
	}

	scope := middleware.ScopeFromContext(ctx)
	if err := handler.repo.PersistTrainingPlan(ctx, plan, scope); err != nil {
		log.Errorf("failed to save plan [scope %s]: %s", scope, err)
		http.Error(w, "save plan failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "saved")
}
