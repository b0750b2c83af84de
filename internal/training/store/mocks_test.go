package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/lunaugust/plantracker/internal/docstore"
	"github.com/lunaugust/plantracker/internal/kvcache"
	"github.com/lunaugust/plantracker/internal/training"
)

var errInjected = errors.New("injected failure")

type remoteStoreMock struct {
	mutex sync.Mutex

	logs        map[string]training.LogsByExercise
	legacyPlans map[string]training.TrainingPlan
	plans       map[string]training.PlanWithMetadata
	activePlans map[string]string
	shareGrants map[string][]string

	failReads  bool
	failWrites bool
}

var _ remoteStore = (*remoteStoreMock)(nil)

func newRemoteStoreMock() *remoteStoreMock {
	return &remoteStoreMock{
		logs:        make(map[string]training.LogsByExercise),
		legacyPlans: make(map[string]training.TrainingPlan),
		plans:       make(map[string]training.PlanWithMetadata),
		activePlans: make(map[string]string),
		shareGrants: make(map[string][]string),
	}
}

func (m *remoteStoreMock) GetLogsDocument(_ context.Context, scope string) (training.LogsByExercise, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failReads {
		return nil, errInjected
	}
	logs, ok := m.logs[scope]
	if !ok {
		return nil, docstore.ErrDocumentNotFound
	}
	return logs, nil
}

func (m *remoteStoreMock) SetLogsDocument(_ context.Context, scope string, logs training.LogsByExercise) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failWrites {
		return errInjected
	}
	m.logs[scope] = logs
	return nil
}

func (m *remoteStoreMock) GetLegacyPlanDocument(_ context.Context, scope string) (training.TrainingPlan, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failReads {
		return nil, errInjected
	}
	plan, ok := m.legacyPlans[scope]
	if !ok {
		return nil, docstore.ErrDocumentNotFound
	}
	return plan, nil
}

func (m *remoteStoreMock) SetLegacyPlanDocument(_ context.Context, scope string, plan training.TrainingPlan) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failWrites {
		return errInjected
	}
	m.legacyPlans[scope] = plan
	return nil
}

func (m *remoteStoreMock) ListPlans(_ context.Context, scope string) ([]training.PlanMetadata, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failReads {
		return nil, errInjected
	}
	var list []training.PlanMetadata
	for _, plan := range m.plans {
		p := plan
		if p.Metadata.OwnerID == scope || (&p).IsSharedWith(scope) {
			list = append(list, p.Metadata)
		}
	}
	if list == nil {
		list = make([]training.PlanMetadata, 0)
	}
	return list, nil
}

func (m *remoteStoreMock) GetPlan(_ context.Context, id string) (*training.PlanWithMetadata, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failReads {
		return nil, errInjected
	}
	plan, ok := m.plans[id]
	if !ok {
		return nil, docstore.ErrPlanNotFound
	}
	return &plan, nil
}

func (m *remoteStoreMock) UpsertPlan(_ context.Context, plan *training.PlanWithMetadata) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failWrites {
		return errInjected
	}
	m.plans[plan.Metadata.ID] = *plan
	return nil
}

func (m *remoteStoreMock) DeletePlan(_ context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failWrites {
		return errInjected
	}
	if _, ok := m.plans[id]; !ok {
		return docstore.ErrPlanNotFound
	}
	delete(m.plans, id)
	return nil
}

func (m *remoteStoreMock) RecordShareGrants(_ context.Context, planID string, userIDs []string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failWrites {
		return errInjected
	}
	m.shareGrants[planID] = append(m.shareGrants[planID], userIDs...)
	return nil
}

func (m *remoteStoreMock) GetActivePlanID(_ context.Context, scope string) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failReads {
		return "", errInjected
	}
	id, ok := m.activePlans[scope]
	if !ok {
		return "", docstore.ErrDocumentNotFound
	}
	return id, nil
}

func (m *remoteStoreMock) SetActivePlanID(_ context.Context, scope, planID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failWrites {
		return errInjected
	}
	m.activePlans[scope] = planID
	return nil
}

func (m *remoteStoreMock) ClearActivePlanID(_ context.Context, scope string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failWrites {
		return errInjected
	}
	delete(m.activePlans, scope)
	return nil
}

// localCacheMock stores JSON-serialized values to behave like the redis-backed
// store, corrupt values included.
type localCacheMock struct {
	mutex  sync.Mutex
	values map[string]string

	failReads  bool
	failWrites bool
}

var _ localCache = (*localCacheMock)(nil)

func newLocalCacheMock() *localCacheMock {
	return &localCacheMock{
		values: make(map[string]string),
	}
}

func (m *localCacheMock) GetJSON(_ context.Context, key string, dest interface{}) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failReads {
		return errInjected
	}
	raw, ok := m.values[key]
	if !ok {
		return kvcache.ErrKeyNotFound
	}
	return json.Unmarshal([]byte(raw), dest)
}

func (m *localCacheMock) SetJSON(_ context.Context, key string, value interface{}) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failWrites {
		return errInjected
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = string(raw)
	return nil
}

func (m *localCacheMock) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failWrites {
		return errInjected
	}
	delete(m.values, key)
	return nil
}
