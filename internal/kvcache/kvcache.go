package kvcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lunaugust/plantracker/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
)

// key names mirror the ones the web client used for its browser-local store
const (
	logsKeyBase       = "gymbuddy_logs"
	planKeyBase       = "gymbuddy_plan"
	plansKeyBase      = "gymbuddy_plans"
	activePlanKeyBase = "gymbuddy_active_plan"
	languageKeyBase   = "gymbuddy_language"
)

var ErrKeyNotFound = errors.New("key not found")

// Store keeps JSON blobs by scoped key. It is the local, cache-only side of
// the persistence split: the only storage for guest scopes, and a best-effort
// mirror of the remote document store for authenticated ones.
type Store struct {
	redisClient *redis.Client
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{
		redisClient: redisClient,
	}
}

func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "kvcache.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))

	cmd := s.redisClient.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(cmd.Val()), dest); err != nil {
		return fmt.Errorf("unmarshal cached value for %s: %w", key, err)
	}

	return nil
}

func (s *Store) SetJSON(ctx context.Context, key string, value interface{}) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "kvcache.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))

	valueBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", key, err)
	}

	if err := s.redisClient.Set(ctx, key, string(valueBytes), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// ScopedKey appends the scope to a base key, except for the guest scope which
// keeps the bare key the legacy web client used.
func ScopedKey(base, scope string) string {
	if scope == "" || scope == "guest" {
		return base
	}
	return base + ":" + scope
}

func LogsKey(scope string) string       { return ScopedKey(logsKeyBase, scope) }
func PlanKey(scope string) string       { return ScopedKey(planKeyBase, scope) }
func PlansKey(scope string) string      { return ScopedKey(plansKeyBase, scope) }
func ActivePlanKey(scope string) string { return ScopedKey(activePlanKeyBase, scope) }
func LanguageKey(scope string) string   { return ScopedKey(languageKeyBase, scope) }
