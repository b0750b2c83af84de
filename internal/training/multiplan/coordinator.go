package multiplan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lunaugust/plantracker/internal/telemetry/metrics"
	"github.com/lunaugust/plantracker/internal/telemetry/tracing"
	"github.com/lunaugust/plantracker/internal/training"
	"github.com/lunaugust/plantracker/internal/training/store"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const migratedPlanName = "Mi Plan"

var (
	ErrNoActivePlan = errors.New("no active plan")
	ErrNotOwner     = errors.New("only the owner can modify a plan")
	ErrLastPlan     = errors.New("cannot delete the last remaining plan")
)

type planRepo interface {
	LoadTrainingPlan(ctx context.Context, scope string) training.TrainingPlan
	ListPlans(ctx context.Context, scope string) ([]training.PlanMetadata, error)
	LoadPlanByID(ctx context.Context, id, scope string) (*training.PlanWithMetadata, error)
	SavePlan(ctx context.Context, plan *training.PlanWithMetadata, scope string) error
	DeletePlan(ctx context.Context, id, scope string) error
	SharePlan(ctx context.Context, id string, userIDs []string, scope string) error
	CopyPlan(ctx context.Context, sourceID, targetScope, newName string) (string, error)
	GetActivePlanID(ctx context.Context, scope string) (string, error)
	SetActivePlanID(ctx context.Context, scope, id string) error
	ClearActivePlanID(ctx context.Context, scope string) error
}

// State is a point-in-time snapshot of the coordinator, safe to hand out.
type State struct {
	Scope        string                    `json:"scope"`
	Plans        []training.PlanMetadata   `json:"plans"`
	ActivePlanID string                    `json:"activePlanId,omitempty"`
	ActivePlan   *training.PlanWithMetadata `json:"activePlan,omitempty"`
	Loading      bool                      `json:"loading"`
	LastError    string                    `json:"lastError,omitempty"`
	IsOwned      bool                      `json:"isOwned"`
	IsShared     bool                      `json:"isShared"`
	CanEdit      bool                      `json:"canEdit"`
}

// Coordinator owns the in-memory multi-plan state for one scope and mediates
// every plan mutation through the repository, keeping the active-plan
// pointer, the plan list and the persisted store consistent.
type Coordinator struct {
	scope   string
	repo    planRepo
	metrics *metrics.Manager

	mutex        sync.Mutex
	plans        []training.PlanMetadata
	activePlan   *training.PlanWithMetadata
	loading      bool
	lastError    string
	bootstrapped bool
	// generation guard: a teardown or re-bootstrap bumps it, so a stale
	// in-flight bootstrap cannot clobber newer state when it finally lands
	generation int
}

func NewCoordinator(scope string, repo planRepo, metricsManager *metrics.Manager) *Coordinator {
	return &Coordinator{
		scope:   scope,
		repo:    repo,
		metrics: metricsManager,
	}
}

func (c *Coordinator) Scope() string {
	return c.scope
}

// Bootstrap loads the multi-plan state for the scope. When no active-plan
// pointer exists yet it checks the legacy single-plan record and migrates it
// once; an empty legacy record yields the ready-no-plan state. Errors surface
// in the state but never leave it stuck loading.
func (c *Coordinator) Bootstrap(ctx context.Context) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "multiplan.bootstrap")
	defer span.End()
	span.SetAttributes(attribute.String("scope", c.scope))

	c.mutex.Lock()
	c.loading = true
	c.lastError = ""
	c.generation++
	generation := c.generation
	c.mutex.Unlock()

	plans, activePlan, err := c.loadOrMigrate(ctx)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if generation != c.generation {
		// a newer bootstrap (or teardown) superseded this one
		log.Debugf("multiplan [scope %s]: dropping stale bootstrap result", c.scope)
		return
	}

	c.loading = false
	if err != nil {
		log.Errorf("multiplan bootstrap [scope %s]: %s", c.scope, err)
		c.lastError = err.Error()
		return
	}

	c.plans = plans
	c.activePlan = activePlan
	c.bootstrapped = true
}

// EnsureBootstrapped runs the bootstrap once per coordinator lifetime. A
// failed bootstrap leaves the flag unset so the next request retries.
func (c *Coordinator) EnsureBootstrapped(ctx context.Context) {
	c.mutex.Lock()
	done := c.bootstrapped
	c.mutex.Unlock()

	if !done {
		c.Bootstrap(ctx)
	}
}

// Invalidate marks any in-flight bootstrap as stale and clears the in-memory
// state, e.g. on logout or scope teardown.
func (c *Coordinator) Invalidate() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.generation++
	c.plans = nil
	c.activePlan = nil
	c.loading = false
	c.lastError = ""
	c.bootstrapped = false
}

func (c *Coordinator) loadOrMigrate(ctx context.Context) ([]training.PlanMetadata, *training.PlanWithMetadata, error) {
	activeID, err := c.repo.GetActivePlanID(ctx, c.scope)
	if err != nil {
		return nil, nil, fmt.Errorf("get active plan id: %w", err)
	}

	if activeID == "" {
		migratedID, err := c.migrateLegacyPlan(ctx)
		if err != nil {
			return nil, nil, err
		}
		if migratedID == "" {
			// nothing to migrate: ready, no plan
			return []training.PlanMetadata{}, nil, nil
		}
		activeID = migratedID
	}

	plans, err := c.repo.ListPlans(ctx, c.scope)
	if err != nil {
		return nil, nil, fmt.Errorf("list plans: %w", err)
	}

	activePlan, err := c.repo.LoadPlanByID(ctx, activeID, c.scope)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			// stale pointer; keep the list usable instead of failing bootstrap
			log.Errorf("multiplan bootstrap [scope %s]: active plan %s not found", c.scope, activeID)
			return plans, nil, nil
		}
		return nil, nil, fmt.Errorf("load active plan %s: %w", activeID, err)
	}

	return plans, activePlan, nil
}

// migrateLegacyPlan converts a pre-multi-plan single-plan record into a
// PlanWithMetadata, exactly once: the migration is gated on the absence of an
// active-plan pointer and is additive, the legacy record itself is left
// untouched. Returns the new plan id, or "" when there was nothing to migrate.
func (c *Coordinator) migrateLegacyPlan(ctx context.Context) (string, error) {
	legacy := c.repo.LoadTrainingPlan(ctx, c.scope)
	if len(legacy) == 0 {
		return "", nil
	}

	now := training.NowMillis()
	migrated := &training.PlanWithMetadata{
		Metadata: training.PlanMetadata{
			ID:         training.NewMigratedPlanID(),
			Name:       migratedPlanName,
			OwnerID:    c.scope,
			CreatedAt:  now,
			UpdatedAt:  now,
			IsShared:   false,
			SharedWith: []string{},
			Source:     training.PlanSourceManual,
		},
		Plan: legacy,
	}

	if err := c.repo.SavePlan(ctx, migrated, c.scope); err != nil {
		return "", fmt.Errorf("save migrated plan: %w", err)
	}
	if err := c.repo.SetActivePlanID(ctx, c.scope, migrated.Metadata.ID); err != nil {
		return "", fmt.Errorf("set active plan id after migration: %w", err)
	}

	log.Infof("multiplan [scope %s]: migrated legacy plan into %s", c.scope, migrated.Metadata.ID)
	if c.metrics != nil {
		c.metrics.CounterLegacyMigrations.Inc()
	}
	return migrated.Metadata.ID, nil
}

// CreatePlan saves a new plan, switches the active pointer to it, and
// returns its id.
func (c *Coordinator) CreatePlan(ctx context.Context, name string, content training.TrainingPlan, source string) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "multiplan.createplan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", c.scope))

	now := training.NowMillis()
	plan := &training.PlanWithMetadata{
		Metadata: training.PlanMetadata{
			ID:         training.NewPlanID(),
			Name:       name,
			OwnerID:    c.scope,
			CreatedAt:  now,
			UpdatedAt:  now,
			IsShared:   false,
			SharedWith: []string{},
			Source:     source,
		},
		Plan: content,
	}

	if err := c.repo.SavePlan(ctx, plan, c.scope); err != nil {
		c.noteError(err)
		return "", fmt.Errorf("create plan: %w", err)
	}

	if err := c.refreshPlans(ctx); err != nil {
		c.noteError(err)
		return "", err
	}

	if err := c.SwitchActivePlan(ctx, plan.Metadata.ID); err != nil {
		c.noteError(err)
		return "", err
	}

	return plan.Metadata.ID, nil
}

// SwitchActivePlan makes the given plan the active one. An unknown id is a
// deliberate no-op: the usual cause is a stale reference, and clearing a
// working plan over that would be worse than doing nothing.
func (c *Coordinator) SwitchActivePlan(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "multiplan.switchactiveplan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", c.scope))
	span.SetAttributes(attribute.String("plan.id", id))

	plan, err := c.repo.LoadPlanByID(ctx, id, c.scope)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			log.Errorf("switch active plan [scope %s]: plan %s not found, keeping current", c.scope, id)
			return nil
		}
		c.noteError(err)
		return fmt.Errorf("switch active plan: %w", err)
	}

	if err := c.repo.SetActivePlanID(ctx, c.scope, id); err != nil {
		c.noteError(err)
		return fmt.Errorf("switch active plan: %w", err)
	}

	c.mutex.Lock()
	c.activePlan = plan
	c.lastError = ""
	c.mutex.Unlock()
	return nil
}

// UpdateActivePlan replaces the active plan's content. Owner-only.
func (c *Coordinator) UpdateActivePlan(ctx context.Context, newContent training.TrainingPlan) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "multiplan.updateactiveplan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", c.scope))

	c.mutex.Lock()
	if c.activePlan == nil {
		c.mutex.Unlock()
		return ErrNoActivePlan
	}
	if !c.activePlan.CanEdit(c.scope) {
		c.mutex.Unlock()
		return ErrNotOwner
	}
	updated := &training.PlanWithMetadata{
		Metadata: c.activePlan.Metadata,
		Plan:     newContent,
	}
	c.mutex.Unlock()

	updated.Metadata.Touch()

	if err := c.repo.SavePlan(ctx, updated, c.scope); err != nil {
		c.noteError(err)
		return fmt.Errorf("update active plan: %w", err)
	}

	c.mutex.Lock()
	c.activePlan = updated
	c.lastError = ""
	c.mutex.Unlock()

	return c.refreshPlans(ctx)
}

// RenamePlan changes a plan's name, keeping the in-memory active plan in sync
// when it is the one renamed.
func (c *Coordinator) RenamePlan(ctx context.Context, id, newName string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "multiplan.renameplan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", c.scope))
	span.SetAttributes(attribute.String("plan.id", id))

	plan, err := c.repo.LoadPlanByID(ctx, id, c.scope)
	if err != nil {
		c.noteError(err)
		return fmt.Errorf("rename plan: %w", err)
	}

	plan.Metadata.Name = newName
	plan.Metadata.Touch()

	if err := c.repo.SavePlan(ctx, plan, c.scope); err != nil {
		c.noteError(err)
		return fmt.Errorf("rename plan: %w", err)
	}

	c.mutex.Lock()
	if c.activePlan != nil && c.activePlan.Metadata.ID == id {
		c.activePlan = plan
	}
	c.lastError = ""
	c.mutex.Unlock()

	return c.refreshPlans(ctx)
}

// RemovePlan deletes a plan. Deleting the last remaining plan is rejected
// before any persistence call. When the removed plan was active, the most
// recently updated remaining plan becomes active.
func (c *Coordinator) RemovePlan(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "multiplan.removeplan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", c.scope))
	span.SetAttributes(attribute.String("plan.id", id))

	c.mutex.Lock()
	planCount := len(c.plans)
	wasActive := c.activePlan != nil && c.activePlan.Metadata.ID == id
	c.mutex.Unlock()

	if planCount <= 1 {
		return ErrLastPlan
	}

	if err := c.repo.DeletePlan(ctx, id, c.scope); err != nil {
		c.noteError(err)
		return fmt.Errorf("remove plan: %w", err)
	}

	if err := c.refreshPlans(ctx); err != nil {
		return err
	}

	if !wasActive {
		return nil
	}

	c.mutex.Lock()
	remaining := make([]training.PlanMetadata, len(c.plans))
	copy(remaining, c.plans)
	c.activePlan = nil
	c.mutex.Unlock()

	replacement := pickReplacement(remaining, id)
	if replacement == "" {
		if err := c.repo.ClearActivePlanID(ctx, c.scope); err != nil {
			c.noteError(err)
			return fmt.Errorf("remove plan: clear active pointer: %w", err)
		}
		return nil
	}

	return c.SwitchActivePlan(ctx, replacement)
}

// ShareActivePlan shares the active plan with the given users and reloads it
// so the sharing flags are fresh. Owner-only.
func (c *Coordinator) ShareActivePlan(ctx context.Context, userIDs []string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "multiplan.shareactiveplan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", c.scope))
	span.SetAttributes(attribute.Int("users", len(userIDs)))

	c.mutex.Lock()
	if c.activePlan == nil {
		c.mutex.Unlock()
		return ErrNoActivePlan
	}
	if !c.activePlan.CanEdit(c.scope) {
		c.mutex.Unlock()
		return ErrNotOwner
	}
	activeID := c.activePlan.Metadata.ID
	c.mutex.Unlock()

	if err := c.repo.SharePlan(ctx, activeID, userIDs, c.scope); err != nil {
		c.noteError(err)
		return fmt.Errorf("share active plan: %w", err)
	}

	reloaded, err := c.repo.LoadPlanByID(ctx, activeID, c.scope)
	if err != nil {
		c.noteError(err)
		return fmt.Errorf("share active plan: reload: %w", err)
	}

	c.mutex.Lock()
	c.activePlan = reloaded
	c.lastError = ""
	c.mutex.Unlock()

	return c.refreshPlans(ctx)
}

// CopySharedPlan clones a plan that was shared with this scope into an owned
// one and makes it active. Returns the new plan id.
func (c *Coordinator) CopySharedPlan(ctx context.Context, sourceID, newName string) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "multiplan.copysharedplan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", c.scope))
	span.SetAttributes(attribute.String("plan.source-id", sourceID))

	newID, err := c.repo.CopyPlan(ctx, sourceID, c.scope, newName)
	if err != nil {
		c.noteError(err)
		return "", fmt.Errorf("copy shared plan: %w", err)
	}

	if err := c.refreshPlans(ctx); err != nil {
		return "", err
	}

	if err := c.SwitchActivePlan(ctx, newID); err != nil {
		return "", err
	}
	return newID, nil
}

// Snapshot returns a copy of the current state with the derived ownership
// flags recomputed.
func (c *Coordinator) Snapshot() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	state := State{
		Scope:     c.scope,
		Plans:     make([]training.PlanMetadata, len(c.plans)),
		Loading:   c.loading,
		LastError: c.lastError,
	}
	copy(state.Plans, c.plans)

	if c.activePlan != nil {
		planCopy := *c.activePlan
		state.ActivePlan = &planCopy
		state.ActivePlanID = planCopy.Metadata.ID
		state.IsOwned = planCopy.IsOwnedBy(c.scope)
		state.IsShared = planCopy.IsSharedWith(c.scope)
		state.CanEdit = planCopy.CanEdit(c.scope)
	}

	return state
}

func (c *Coordinator) refreshPlans(ctx context.Context) error {
	plans, err := c.repo.ListPlans(ctx, c.scope)
	if err != nil {
		c.noteError(err)
		return fmt.Errorf("refresh plan list: %w", err)
	}

	c.mutex.Lock()
	c.plans = plans
	c.mutex.Unlock()
	return nil
}

func (c *Coordinator) noteError(err error) {
	c.mutex.Lock()
	c.lastError = err.Error()
	c.mutex.Unlock()
}

// pickReplacement chooses the plan that becomes active after the active one
// is deleted: most recently updated, ties broken by id.
func pickReplacement(plans []training.PlanMetadata, deletedID string) string {
	best := ""
	var bestUpdatedAt int64
	for _, p := range plans {
		if p.ID == deletedID {
			continue
		}
		if best == "" ||
			p.UpdatedAt > bestUpdatedAt ||
			(p.UpdatedAt == bestUpdatedAt && p.ID < best) {
			best = p.ID
			bestUpdatedAt = p.UpdatedAt
		}
	}
	return best
}
