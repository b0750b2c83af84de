package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lunaugust/plantracker/internal/telemetry/tracing"
	"github.com/lunaugust/plantracker/internal/training"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

// ListPlans returns the metadata of all plans visible to the scope:
// plans it owns plus plans shared with it.
func (s *Store) ListPlans(ctx context.Context, scope string) (_ []training.PlanMetadata, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.plans.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("scope", scope))

	rows, err := s.db.Query(
		ctx,
		`
			SELECT id, owner_id, name, is_shared, shared_with, source, created_at, updated_at
			FROM training_plan
			WHERE owner_id = $1 OR shared_with @> to_jsonb($1::text)
			ORDER BY updated_at DESC;`,
		scope,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return rows2planMetadata(rows)
}

func (s *Store) GetPlan(ctx context.Context, id string) (_ *training.PlanWithMetadata, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.plans.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("plan.id", id))

	rows, err := s.db.Query(
		ctx,
		`
			SELECT id, owner_id, name, is_shared, shared_with, source, created_at, updated_at, content
			FROM training_plan
			WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrPlanNotFound
	}

	var (
		metadata        training.PlanMetadata
		sharedWithBytes []byte
		contentBytes    []byte
	)
	if err := rows.Scan(
		&metadata.ID, &metadata.OwnerID, &metadata.Name, &metadata.IsShared,
		&sharedWithBytes, &metadata.Source, &metadata.CreatedAt, &metadata.UpdatedAt,
		&contentBytes,
	); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	if err := json.Unmarshal(sharedWithBytes, &metadata.SharedWith); err != nil {
		return nil, fmt.Errorf("unmarshal shared_with for plan %s: %w", id, err)
	}

	var content training.TrainingPlan
	if err := json.Unmarshal(contentBytes, &content); err != nil {
		return nil, fmt.Errorf("unmarshal content for plan %s: %w", id, err)
	}

	return &training.PlanWithMetadata{
		Metadata: metadata,
		Plan:     content,
	}, nil
}

// UpsertPlan saves a plan by its metadata id.
func (s *Store) UpsertPlan(ctx context.Context, plan *training.PlanWithMetadata) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.plans.upsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("plan.id", plan.Metadata.ID))

	sharedWith := plan.Metadata.SharedWith
	if sharedWith == nil {
		sharedWith = []string{}
	}
	sharedWithBytes, err := json.Marshal(sharedWith)
	if err != nil {
		return fmt.Errorf("marshal shared_with: %w", err)
	}

	contentBytes, err := json.Marshal(plan.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan content: %w", err)
	}

	_, err = s.db.Exec(
		ctx,
		`
			INSERT INTO training_plan
				(id, owner_id, name, is_shared, shared_with, source, created_at, updated_at, content)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				is_shared = EXCLUDED.is_shared,
				shared_with = EXCLUDED.shared_with,
				source = EXCLUDED.source,
				updated_at = EXCLUDED.updated_at,
				content = EXCLUDED.content;`,
		plan.Metadata.ID, plan.Metadata.OwnerID, plan.Metadata.Name,
		plan.Metadata.IsShared, sharedWithBytes, plan.Metadata.Source,
		plan.Metadata.CreatedAt, plan.Metadata.UpdatedAt, contentBytes,
	)
	return err
}

func (s *Store) DeletePlan(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.plans.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("plan.id", id))

	tag, err := s.db.Exec(
		ctx,
		`DELETE FROM training_plan WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// RecordShareGrants keeps an audit trail of who shared which plan with whom.
func (s *Store) RecordShareGrants(ctx context.Context, planID string, userIDs []string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.plans.sharegrants")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("plan.id", planID))
	span.SetAttributes(attribute.Int("grants", len(userIDs)))

	for _, userID := range userIDs {
		if _, err := s.db.Exec(
			ctx,
			`INSERT INTO plan_share_grant (id, plan_id, user_id, created_at) VALUES ($1, $2, $3, NOW());`,
			uuid.NewString(), planID, userID,
		); err != nil {
			return fmt.Errorf("record share grant for %s: %w", userID, err)
		}
	}
	return nil
}

func rows2planMetadata(rows pgx.Rows) ([]training.PlanMetadata, error) {
	var plans []training.PlanMetadata
	for rows.Next() {
		var metadata training.PlanMetadata
		var sharedWithBytes []byte
		if err := rows.Scan(
			&metadata.ID, &metadata.OwnerID, &metadata.Name, &metadata.IsShared,
			&sharedWithBytes, &metadata.Source, &metadata.CreatedAt, &metadata.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if len(sharedWithBytes) > 0 {
			if err := json.Unmarshal(sharedWithBytes, &metadata.SharedWith); err != nil {
				return nil, fmt.Errorf("unmarshal shared_with for plan %s: %w", metadata.ID, err)
			}
		}
		if metadata.SharedWith == nil {
			metadata.SharedWith = []string{}
		}

		plans = append(plans, metadata)
	}

	if plans == nil {
		plans = make([]training.PlanMetadata, 0)
	}

	return plans, nil
}
