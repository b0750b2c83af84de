package multiplan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lunaugust/plantracker/internal/middleware"
	"github.com/lunaugust/plantracker/internal/telemetry/tracing"
	"github.com/lunaugust/plantracker/internal/training"
	"github.com/lunaugust/plantracker/internal/training/generator"
	"github.com/lunaugust/plantracker/internal/training/store"
	"github.com/lunaugust/plantracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var generatedPlanNames = map[string]string{
	"es": "Plan generado",
	"en": "Generated plan",
}

type planGenerator interface {
	Generate(ctx context.Context, form generator.Form, language string) (training.TrainingPlan, string)
}

type languageProvider interface {
	Language(ctx context.Context, scope string) string
}

type Handler struct {
	registry  *Registry
	generator planGenerator
	languages languageProvider
}

func NewHandler(registry *Registry, planGen planGenerator, languages languageProvider) *Handler {
	return &Handler{
		registry:  registry,
		generator: planGen,
		languages: languages,
	}
}

func (handler *Handler) coordinator(ctx context.Context) *Coordinator {
	scope := middleware.ScopeFromContext(ctx)
	c := handler.registry.ForScope(scope)
	c.EnsureBootstrapped(ctx)
	return c
}

func (handler *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.state")
	defer span.End()

	state := handler.coordinator(ctx).Snapshot()
	span.SetAttributes(attribute.String("scope", state.Scope))

	stateJson, err := json.Marshal(state)
	if err != nil {
		log.Errorf("failed to marshal plans state: %s", err)
		http.Error(w, "failed to get plans", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, stateJson)
}

type createPlanRequest struct {
	Name string                `json:"name"`
	Plan training.TrainingPlan `json:"plan"`
}

type planIDResponse struct {
	ID string `json:"id"`
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.create")
	defer span.End()

	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("create plan, unmarshal json params: %s", err)
		http.Error(w, "create plan failed", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "error, plan name empty", http.StatusBadRequest)
		return
	}
	if req.Plan == nil {
		req.Plan = training.TrainingPlan{}
	}

	id, err := handler.coordinator(ctx).CreatePlan(ctx, req.Name, req.Plan, training.PlanSourceManual)
	if err != nil {
		log.Errorf("failed to create plan: %s", err)
		http.Error(w, "create plan failed", http.StatusInternalServerError)
		return
	}

	writePlanID(w, id, http.StatusCreated)
}

func (handler *Handler) HandleGetActive(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.getActive")
	defer span.End()

	state := handler.coordinator(ctx).Snapshot()
	if state.ActivePlan == nil {
		http.Error(w, "no active plan", http.StatusNotFound)
		return
	}

	planJson, err := json.Marshal(state.ActivePlan)
	if err != nil {
		log.Errorf("failed to marshal active plan: %s", err)
		http.Error(w, "failed to get active plan", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, planJson)
}

func (handler *Handler) HandleUpdateActive(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.updateActive")
	defer span.End()

	var content training.TrainingPlan
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		log.Errorf("update plan, unmarshal json params: %s", err)
		http.Error(w, "update plan failed", http.StatusBadRequest)
		return
	}

	if err := handler.coordinator(ctx).UpdateActivePlan(ctx, content); err != nil {
		writePlanError(w, "update plan failed", err)
		return
	}

	pkg.WriteTextResponseOK(w, "updated")
}

func (handler *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.activate")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, plan id empty", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("plan.id", id))

	if err := handler.coordinator(ctx).SwitchActivePlan(ctx, id); err != nil {
		writePlanError(w, "switch plan failed", err)
		return
	}

	pkg.WriteTextResponseOK(w, "activated")
}

type renamePlanRequest struct {
	Name string `json:"name"`
}

func (handler *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.rename")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, plan id empty", http.StatusBadRequest)
		return
	}

	var req renamePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("rename plan, unmarshal json params: %s", err)
		http.Error(w, "rename plan failed", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "error, plan name empty", http.StatusBadRequest)
		return
	}

	if err := handler.coordinator(ctx).RenamePlan(ctx, id, req.Name); err != nil {
		writePlanError(w, "rename plan failed", err)
		return
	}

	pkg.WriteTextResponseOK(w, "renamed")
}

func (handler *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.remove")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, plan id empty", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("plan.id", id))

	if err := handler.coordinator(ctx).RemovePlan(ctx, id); err != nil {
		writePlanError(w, "remove plan failed", err)
		return
	}

	pkg.WriteTextResponseOK(w, "removed")
}

type sharePlanRequest struct {
	UserIDs []string `json:"userIds"`
}

func (handler *Handler) HandleShareActive(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.share")
	defer span.End()

	scope := middleware.ScopeFromContext(ctx)
	if !store.IsRemoteScope(scope) {
		http.Error(w, "sharing requires login", http.StatusForbidden)
		return
	}

	var req sharePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("share plan, unmarshal json params: %s", err)
		http.Error(w, "share plan failed", http.StatusBadRequest)
		return
	}
	if len(req.UserIDs) == 0 {
		http.Error(w, "error, user ids empty", http.StatusBadRequest)
		return
	}

	if err := handler.coordinator(ctx).ShareActivePlan(ctx, req.UserIDs); err != nil {
		writePlanError(w, "share plan failed", err)
		return
	}

	pkg.WriteTextResponseOK(w, "shared")
}

type copyPlanRequest struct {
	Name string `json:"name"`
}

func (handler *Handler) HandleCopy(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.copy")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, plan id empty", http.StatusBadRequest)
		return
	}

	var req copyPlanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Errorf("copy plan, unmarshal json params: %s", err)
			http.Error(w, "copy plan failed", http.StatusBadRequest)
			return
		}
	}

	newID, err := handler.coordinator(ctx).CopySharedPlan(ctx, id, req.Name)
	if err != nil {
		writePlanError(w, "copy plan failed", err)
		return
	}

	writePlanID(w, newID, http.StatusCreated)
}

type generatePlanRequest struct {
	generator.Form
	Name string `json:"name"`
}

type generatePlanResponse struct {
	ID     string                `json:"id"`
	Source string                `json:"source"`
	Plan   training.TrainingPlan `json:"plan"`
}

// HandleGenerate builds a plan from the request form, AI backed with a
// rule-based fallback, saves it for the scope and makes it active.
func (handler *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.generate")
	defer span.End()

	var req generatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("generate plan, unmarshal json params: %s", err)
		http.Error(w, "generate plan failed", http.StatusBadRequest)
		return
	}

	scope := middleware.ScopeFromContext(ctx)
	language := handler.languages.Language(ctx, scope)
	span.SetAttributes(attribute.String("scope", scope))
	span.SetAttributes(attribute.String("language", language))

	plan, source := handler.generator.Generate(ctx, req.Form, language)

	planSource := training.PlanSourceGenerated
	name := req.Name
	if name == "" {
		name = generatedPlanNames[language]
		if name == "" {
			name = generatedPlanNames["es"]
		}
	}

	id, err := handler.coordinator(ctx).CreatePlan(ctx, name, plan, planSource)
	if err != nil {
		log.Errorf("failed to save generated plan: %s", err)
		http.Error(w, "generate plan failed", http.StatusInternalServerError)
		return
	}

	respBytes, err := json.Marshal(generatePlanResponse{
		ID:     id,
		Source: source,
		Plan:   plan,
	})
	if err != nil {
		log.Errorf("failed to marshal generated plan: %s", err)
		http.Error(w, "generate plan failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respBytes, http.StatusCreated)
}

func writePlanID(w http.ResponseWriter, id string, status int) {
	respBytes, err := json.Marshal(planIDResponse{ID: id})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respBytes, status)
}

func writePlanError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ErrNoActivePlan):
		http.Error(w, "no active plan", http.StatusNotFound)
	case errors.Is(err, store.ErrPlanNotFound):
		http.Error(w, "plan not found", http.StatusNotFound)
	case errors.Is(err, ErrNotOwner):
		http.Error(w, "only the owner can do that", http.StatusForbidden)
	case errors.Is(err, ErrLastPlan):
		http.Error(w, "cannot delete the last plan", http.StatusBadRequest)
	default:
		log.Errorf("%s: %s", message, err)
		http.Error(w, message, http.StatusInternalServerError)
	}
}
