package docstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/lunaugust/plantracker/internal/db"
	"github.com/lunaugust/plantracker/internal/training"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// needs a running postgres with the plantracker schema; set POSTGRES_HOST to run
func getTestStore(t *testing.T) (context.Context, *Store) {
	t.Helper()

	pgHost := os.Getenv("POSTGRES_HOST")
	if pgHost == "" {
		t.Skip("POSTGRES_HOST not set, skipping docstore tests")
	}
	pgPort := os.Getenv("POSTGRES_PORT")
	if pgPort == "" {
		pgPort = "5432"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	t.Cleanup(cancel)

	pool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost: pgHost,
		DBPort: pgPort,
		DBName: "plantracker_test",
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return ctx, NewStore(pool)
}

func TestStore_LogsDocument(t *testing.T) {
	ctx, store := getTestStore(t)

	scope := "test-user-" + t.Name()
	logs := training.LogsByExercise{
		"ex_1": {
			{Date: "2026-01-10T10:00:00Z", Weight: "60", Reps: "8"},
			{Date: "2026-01-12T10:00:00Z", Weight: "62.5", Reps: "8"},
		},
	}

	require.NoError(t, store.SetLogsDocument(ctx, scope, logs))

	got, err := store.GetLogsDocument(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, logs, got)

	_, err = store.GetLogsDocument(ctx, "nobody-here")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestStore_PlanCRUD(t *testing.T) {
	ctx, store := getTestStore(t)

	scope := "test-user-" + t.Name()
	plan := &training.PlanWithMetadata{
		Metadata: training.PlanMetadata{
			ID:         training.NewPlanID(),
			Name:       "Mi Plan",
			OwnerID:    scope,
			CreatedAt:  training.NowMillis(),
			UpdatedAt:  training.NowMillis(),
			SharedWith: []string{},
			Source:     training.PlanSourceManual,
		},
		Plan: training.TrainingPlan{
			"Día 1": {
				Label: "Push",
				Color: "#FF6B6B",
				Exercises: []training.Exercise{
					{ID: training.NewExerciseID(), Name: "Press banca", Sets: "4", Reps: "8"},
				},
			},
		},
	}

	require.NoError(t, store.UpsertPlan(ctx, plan))

	got, err := store.GetPlan(ctx, plan.Metadata.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Metadata.Name, got.Metadata.Name)
	assert.Equal(t, plan.Plan, got.Plan)

	listed, err := store.ListPlans(ctx, scope)
	require.NoError(t, err)
	require.NotEmpty(t, listed)

	require.NoError(t, store.DeletePlan(ctx, plan.Metadata.ID))
	assert.ErrorIs(t, store.DeletePlan(ctx, plan.Metadata.ID), ErrPlanNotFound)

	_, err = store.GetPlan(ctx, plan.Metadata.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}
