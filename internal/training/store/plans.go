package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lunaugust/plantracker/internal/kvcache"
	"github.com/lunaugust/plantracker/internal/training"

	log "github.com/sirupsen/logrus"
)

// guest multi-plan storage: the whole plan map lives under one cache key
type guestPlanMap map[string]training.PlanWithMetadata

// ListPlans returns all plans visible to the scope (owned + shared-with),
// most recently updated first.
func (r *Repository) ListPlans(ctx context.Context, scope string) ([]training.PlanMetadata, error) {
	if IsRemoteScope(scope) {
		return r.remote.ListPlans(ctx, scope)
	}

	plans, err := r.guestPlans(ctx, scope)
	if err != nil {
		return nil, err
	}

	list := make([]training.PlanMetadata, 0, len(plans))
	for _, plan := range plans {
		list = append(list, plan.Metadata)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].UpdatedAt != list[j].UpdatedAt {
			return list[i].UpdatedAt > list[j].UpdatedAt
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r *Repository) LoadPlanByID(ctx context.Context, id, scope string) (*training.PlanWithMetadata, error) {
	if IsRemoteScope(scope) {
		return r.remote.GetPlan(ctx, id)
	}

	plans, err := r.guestPlans(ctx, scope)
	if err != nil {
		return nil, err
	}

	plan, ok := plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return &plan, nil
}

// SavePlan upserts a plan by its metadata id.
func (r *Repository) SavePlan(ctx context.Context, plan *training.PlanWithMetadata, scope string) error {
	if err := r.savePlan(ctx, plan, scope); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.CounterPlansSaved.Inc()
	}
	return nil
}

func (r *Repository) savePlan(ctx context.Context, plan *training.PlanWithMetadata, scope string) error {
	if IsRemoteScope(scope) {
		if err := r.remote.UpsertPlan(ctx, plan); err != nil {
			return fmt.Errorf("save plan %s [scope %s]: %w", plan.Metadata.ID, scope, err)
		}
		return nil
	}

	plans, err := r.guestPlans(ctx, scope)
	if err != nil {
		return err
	}
	plans[plan.Metadata.ID] = *plan

	if err := r.cache.SetJSON(ctx, kvcache.PlansKey(scope), plans); err != nil {
		return fmt.Errorf("save plan %s [scope %s]: %w", plan.Metadata.ID, scope, err)
	}
	return nil
}

func (r *Repository) DeletePlan(ctx context.Context, id, scope string) error {
	if IsRemoteScope(scope) {
		return r.remote.DeletePlan(ctx, id)
	}

	plans, err := r.guestPlans(ctx, scope)
	if err != nil {
		return err
	}
	if _, ok := plans[id]; !ok {
		return ErrPlanNotFound
	}
	delete(plans, id)

	if err := r.cache.SetJSON(ctx, kvcache.PlansKey(scope), plans); err != nil {
		return fmt.Errorf("delete plan %s [scope %s]: %w", id, scope, err)
	}
	return nil
}

// SharePlan marks the plan shared and unions the given user ids into its
// shared-with list.
func (r *Repository) SharePlan(ctx context.Context, id string, userIDs []string, scope string) error {
	plan, err := r.LoadPlanByID(ctx, id, scope)
	if err != nil {
		return fmt.Errorf("share plan %s [scope %s]: %w", id, scope, err)
	}

	plan.Metadata.IsShared = true
	plan.Metadata.SharedWith = unionUserIDs(plan.Metadata.SharedWith, userIDs)
	plan.Metadata.Touch()

	if err := r.SavePlan(ctx, plan, scope); err != nil {
		return err
	}

	if IsRemoteScope(scope) {
		// audit trail only; sharing already took effect above
		if err := r.remote.RecordShareGrants(ctx, id, userIDs); err != nil {
			log.Errorf("share plan %s [scope %s]: record share grants: %s", id, scope, err)
		}
	}
	return nil
}

// CopyPlan deep-clones the source plan's content under fresh metadata owned
// by the target scope, and returns the new plan id.
func (r *Repository) CopyPlan(ctx context.Context, sourceID, targetScope, newName string) (string, error) {
	source, err := r.LoadPlanByID(ctx, sourceID, targetScope)
	if err != nil {
		return "", fmt.Errorf("copy plan %s [scope %s]: %w", sourceID, targetScope, err)
	}

	if newName == "" {
		newName = source.Metadata.Name + " (copia)"
	}

	now := training.NowMillis()
	clone := &training.PlanWithMetadata{
		Metadata: training.PlanMetadata{
			ID:         training.NewPlanID(),
			Name:       newName,
			OwnerID:    targetScope,
			CreatedAt:  now,
			UpdatedAt:  now,
			IsShared:   false,
			SharedWith: []string{},
			Source:     source.Metadata.Source,
		},
		Plan: training.ClonePlan(source.Plan),
	}

	if err := r.SavePlan(ctx, clone, targetScope); err != nil {
		return "", err
	}
	return clone.Metadata.ID, nil
}

// GetActivePlanID returns the active plan pointer for the scope, or the empty
// string when none is set.
func (r *Repository) GetActivePlanID(ctx context.Context, scope string) (string, error) {
	if IsRemoteScope(scope) {
		id, err := r.remote.GetActivePlanID(ctx, scope)
		if err != nil {
			if isNotFound(err) {
				return "", nil
			}
			return "", fmt.Errorf("get active plan id [scope %s]: %w", scope, err)
		}
		return id, nil
	}

	var id string
	if err := r.cache.GetJSON(ctx, kvcache.ActivePlanKey(scope), &id); err != nil {
		if errors.Is(err, kvcache.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get active plan id [scope %s]: %w", scope, err)
	}
	return id, nil
}

func (r *Repository) SetActivePlanID(ctx context.Context, scope, id string) error {
	if IsRemoteScope(scope) {
		if err := r.remote.SetActivePlanID(ctx, scope, id); err != nil {
			return fmt.Errorf("set active plan id [scope %s]: %w", scope, err)
		}
		return nil
	}

	if err := r.cache.SetJSON(ctx, kvcache.ActivePlanKey(scope), id); err != nil {
		return fmt.Errorf("set active plan id [scope %s]: %w", scope, err)
	}
	return nil
}

func (r *Repository) ClearActivePlanID(ctx context.Context, scope string) error {
	if IsRemoteScope(scope) {
		if err := r.remote.ClearActivePlanID(ctx, scope); err != nil {
			return fmt.Errorf("clear active plan id [scope %s]: %w", scope, err)
		}
		return nil
	}

	if err := r.cache.Delete(ctx, kvcache.ActivePlanKey(scope)); err != nil {
		return fmt.Errorf("clear active plan id [scope %s]: %w", scope, err)
	}
	return nil
}

func (r *Repository) guestPlans(ctx context.Context, scope string) (guestPlanMap, error) {
	var plans guestPlanMap
	if err := r.cache.GetJSON(ctx, kvcache.PlansKey(scope), &plans); err != nil {
		if errors.Is(err, kvcache.ErrKeyNotFound) {
			return guestPlanMap{}, nil
		}
		return nil, fmt.Errorf("load plans [scope %s]: %w", scope, err)
	}
	if plans == nil {
		plans = guestPlanMap{}
	}
	return plans, nil
}

func unionUserIDs(current, added []string) []string {
	seen := make(map[string]bool, len(current))
	union := make([]string, 0, len(current)+len(added))
	for _, id := range current {
		if !seen[id] {
			seen[id] = true
			union = append(union, id)
		}
	}
	for _, id := range added {
		if !seen[id] {
			seen[id] = true
			union = append(union, id)
		}
	}
	return union
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) || errors.Is(err, errDocNotFound)
}
