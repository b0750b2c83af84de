package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lunaugust/plantracker/internal/auth"
	"github.com/lunaugust/plantracker/internal/docstore"
	"github.com/lunaugust/plantracker/internal/kvcache"
	"github.com/lunaugust/plantracker/internal/telemetry/metrics"
	"github.com/lunaugust/plantracker/internal/training"

	log "github.com/sirupsen/logrus"
)

var (
	ErrPlanNotFound = docstore.ErrPlanNotFound

	errDocNotFound = docstore.ErrDocumentNotFound
)

type remoteStore interface {
	GetLogsDocument(ctx context.Context, scope string) (training.LogsByExercise, error)
	SetLogsDocument(ctx context.Context, scope string, logs training.LogsByExercise) error
	GetLegacyPlanDocument(ctx context.Context, scope string) (training.TrainingPlan, error)
	SetLegacyPlanDocument(ctx context.Context, scope string, plan training.TrainingPlan) error
	ListPlans(ctx context.Context, scope string) ([]training.PlanMetadata, error)
	GetPlan(ctx context.Context, id string) (*training.PlanWithMetadata, error)
	UpsertPlan(ctx context.Context, plan *training.PlanWithMetadata) error
	DeletePlan(ctx context.Context, id string) error
	RecordShareGrants(ctx context.Context, planID string, userIDs []string) error
	GetActivePlanID(ctx context.Context, scope string) (string, error)
	SetActivePlanID(ctx context.Context, scope, planID string) error
	ClearActivePlanID(ctx context.Context, scope string) error
}

type localCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// Repository provides scope-aware persistence for logs and plans. Guest
// scopes live in the local cache only; authenticated scopes are backed by the
// remote document store with the cache as a best-effort read fallback.
type Repository struct {
	remote  remoteStore
	cache   localCache
	metrics *metrics.Manager
}

func NewRepository(remote remoteStore, cache localCache, metricsManager *metrics.Manager) *Repository {
	return &Repository{
		remote:  remote,
		cache:   cache,
		metrics: metricsManager,
	}
}

// IsRemoteScope reports whether the scope is backed by the remote store.
func IsRemoteScope(scope string) bool {
	return scope != "" && scope != auth.GuestUser
}

// LoadLogs never fails: a remote read error falls through to the local cache,
// and a cache miss or corrupt value degrades to an empty log set.
func (r *Repository) LoadLogs(ctx context.Context, scope string) training.LogsByExercise {
	if IsRemoteScope(scope) {
		logs, err := r.remote.GetLogsDocument(ctx, scope)
		if err == nil {
			r.mirrorToCache(ctx, kvcache.LogsKey(scope), logs, "loadLogs")
			return logs
		}
		if !errors.Is(err, docstore.ErrDocumentNotFound) {
			log.Errorf("load logs [scope %s]: remote read failed, falling back to cache: %s", scope, err)
		}
	}

	var logs training.LogsByExercise
	if err := r.cache.GetJSON(ctx, kvcache.LogsKey(scope), &logs); err != nil {
		if !errors.Is(err, kvcache.ErrKeyNotFound) {
			log.Errorf("load logs [scope %s]: cache read failed: %s", scope, err)
		}
		return training.LogsByExercise{}
	}
	if logs == nil {
		logs = training.LogsByExercise{}
	}
	return logs
}

// PersistLogs writes the full log set. For a remote scope, the remote write
// failure propagates - the caller uses it to tell "saved" from "not saved" -
// while a subsequent cache mirror failure is only logged. For a guest scope
// the cache is the only copy, so its failure propagates too.
func (r *Repository) PersistLogs(ctx context.Context, logs training.LogsByExercise, scope string) error {
	if IsRemoteScope(scope) {
		if err := r.remote.SetLogsDocument(ctx, scope, logs); err != nil {
			return fmt.Errorf("persist logs [scope %s]: %w", scope, err)
		}
		r.mirrorToCache(ctx, kvcache.LogsKey(scope), logs, "persistLogs")
		return nil
	}

	if err := r.cache.SetJSON(ctx, kvcache.LogsKey(scope), logs); err != nil {
		return fmt.Errorf("persist logs [scope %s]: %w", scope, err)
	}
	return nil
}

// LoadTrainingPlan reads the legacy single-plan record. Same degradation
// contract as LoadLogs; used only for legacy detection and migration.
func (r *Repository) LoadTrainingPlan(ctx context.Context, scope string) training.TrainingPlan {
	if IsRemoteScope(scope) {
		plan, err := r.remote.GetLegacyPlanDocument(ctx, scope)
		if err == nil {
			r.mirrorToCache(ctx, kvcache.PlanKey(scope), plan, "loadTrainingPlan")
			return plan
		}
		if !errors.Is(err, docstore.ErrDocumentNotFound) {
			log.Errorf("load training plan [scope %s]: remote read failed, falling back to cache: %s", scope, err)
		}
	}

	var plan training.TrainingPlan
	if err := r.cache.GetJSON(ctx, kvcache.PlanKey(scope), &plan); err != nil {
		if !errors.Is(err, kvcache.ErrKeyNotFound) {
			log.Errorf("load training plan [scope %s]: cache read failed: %s", scope, err)
		}
		return training.TrainingPlan{}
	}
	if plan == nil {
		plan = training.TrainingPlan{}
	}
	return plan
}

// PersistTrainingPlan writes the legacy single-plan record, with the same
// asymmetric failure contract as PersistLogs.
func (r *Repository) PersistTrainingPlan(ctx context.Context, plan training.TrainingPlan, scope string) error {
	if IsRemoteScope(scope) {
		if err := r.remote.SetLegacyPlanDocument(ctx, scope, plan); err != nil {
			return fmt.Errorf("persist training plan [scope %s]: %w", scope, err)
		}
		r.mirrorToCache(ctx, kvcache.PlanKey(scope), plan, "persistTrainingPlan")
		return nil
	}

	if err := r.cache.SetJSON(ctx, kvcache.PlanKey(scope), plan); err != nil {
		return fmt.Errorf("persist training plan [scope %s]: %w", scope, err)
	}
	return nil
}

func (r *Repository) mirrorToCache(ctx context.Context, key string, value interface{}, op string) {
	if err := r.cache.SetJSON(ctx, key, value); err != nil {
		log.Errorf("%s: cache mirror write for %s failed: %s", op, key, err)
		if r.metrics != nil {
			r.metrics.CounterCacheMirrorFailures.Inc()
		}
	}
}
