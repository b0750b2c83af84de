package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lunaugust/plantracker/internal/telemetry/tracing"
	"github.com/lunaugust/plantracker/internal/training"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrPlanNotFound     = errors.New("plan not found")
)

// Store is the remote side of the persistence split: per-scope JSON documents
// for workout logs and the legacy single-plan record, plus the multi-plan
// collection and the active-plan pointer.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db: db,
	}
}

func (s *Store) GetLogsDocument(ctx context.Context, scope string) (_ training.LogsByExercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.logs.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", scope))

	var payload []byte
	if err := s.getDocument(ctx, "gym_logs", scope, &payload); err != nil {
		return nil, err
	}

	var logs training.LogsByExercise
	if err := json.Unmarshal(payload, &logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs document for %s: %w", scope, err)
	}
	return logs, nil
}

func (s *Store) SetLogsDocument(ctx context.Context, scope string, logs training.LogsByExercise) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.logs.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", scope))

	return s.setDocument(ctx, "gym_logs", scope, logs)
}

func (s *Store) GetLegacyPlanDocument(ctx context.Context, scope string) (_ training.TrainingPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.legacyplan.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", scope))

	var payload []byte
	if err := s.getDocument(ctx, "legacy_plan", scope, &payload); err != nil {
		return nil, err
	}

	var plan training.TrainingPlan
	if err := json.Unmarshal(payload, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal legacy plan document for %s: %w", scope, err)
	}
	return plan, nil
}

func (s *Store) SetLegacyPlanDocument(ctx context.Context, scope string, plan training.TrainingPlan) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.legacyplan.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", scope))

	return s.setDocument(ctx, "legacy_plan", scope, plan)
}

func (s *Store) GetActivePlanID(ctx context.Context, scope string) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.activeplan.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", scope))

	rows, err := s.db.Query(
		ctx,
		`SELECT plan_id FROM active_plan WHERE scope = $1;`,
		scope,
	)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return "", err
	}

	if !rows.Next() {
		return "", ErrDocumentNotFound
	}

	var planID string
	if err := rows.Scan(&planID); err != nil {
		return "", fmt.Errorf("rows scan: %w", err)
	}
	return planID, nil
}

func (s *Store) SetActivePlanID(ctx context.Context, scope, planID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.activeplan.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", scope))
	span.SetAttributes(attribute.String("plan.id", planID))

	_, err = s.db.Exec(
		ctx,
		`INSERT INTO active_plan (scope, plan_id) VALUES ($1, $2)
			ON CONFLICT (scope) DO UPDATE SET plan_id = EXCLUDED.plan_id;`,
		scope, planID,
	)
	return err
}

func (s *Store) ClearActivePlanID(ctx context.Context, scope string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.activeplan.clear")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", scope))

	_, err = s.db.Exec(
		ctx,
		`DELETE FROM active_plan WHERE scope = $1;`,
		scope,
	)
	return err
}

func (s *Store) getDocument(ctx context.Context, table, scope string, payload *[]byte) error {
	rows, err := s.db.Query(
		ctx,
		fmt.Sprintf(`SELECT payload FROM %s WHERE scope = $1;`, table),
		scope,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return err
	}

	if !rows.Next() {
		return ErrDocumentNotFound
	}

	if err := rows.Scan(payload); err != nil {
		return fmt.Errorf("rows scan: %w", err)
	}
	return nil
}

func (s *Store) setDocument(ctx context.Context, table, scope string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	_, err = s.db.Exec(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s (scope, payload, updated_at) VALUES ($1, $2, NOW())
				ON CONFLICT (scope) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW();`,
			table,
		),
		scope, payload,
	)
	return err
}
