package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lunaugust/plantracker/internal/telemetry/metrics"
	"github.com/lunaugust/plantracker/internal/telemetry/tracing"
	"github.com/lunaugust/plantracker/internal/training"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	SourceAI    = "ai"
	SourceRules = "rules"
)

var ErrAIPlannerUnavailable = errors.New("ai planner unavailable")

type aiPlanner interface {
	GeneratePlan(ctx context.Context, form Form, language string) (training.TrainingPlan, error)
}

// AIClient talks to the external plan-generation backend.
type AIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAIClient(baseURL string, timeout time.Duration) *AIClient {
	return &AIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

type aiPlanRequest struct {
	Form
	Language string `json:"language"`
}

func (c *AIClient) GeneratePlan(ctx context.Context, form Form, language string) (training.TrainingPlan, error) {
	reqBytes, err := json.Marshal(aiPlanRequest{Form: form, Language: language})
	if err != nil {
		return nil, fmt.Errorf("marshal plan request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/generate",
		bytes.NewReader(reqBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("create plan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAIPlannerUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAIPlannerUnavailable, resp.StatusCode)
	}

	var plan training.TrainingPlan
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		return nil, fmt.Errorf("decode plan response: %w", err)
	}
	if len(plan) == 0 {
		return nil, errors.New("ai planner returned an empty plan")
	}

	return plan, nil
}

// Service generates plans, preferring the AI backend and falling back to the
// rule-based templates when it is unavailable or returns garbage. The caller
// always gets a usable plan, the source tells which path produced it.
type Service struct {
	ai      aiPlanner
	metrics *metrics.Manager
}

// NewService builds a generator service. A nil ai client means rule-based
// generation only.
func NewService(ai aiPlanner, metricsManager *metrics.Manager) *Service {
	return &Service{
		ai:      ai,
		metrics: metricsManager,
	}
}

func (s *Service) Generate(ctx context.Context, form Form, language string) (training.TrainingPlan, string) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "generator.generate")
	defer span.End()
	span.SetAttributes(attribute.String("language", language))

	plan, source := s.generate(ctx, form, language)
	span.SetAttributes(attribute.String("source", source))
	if s.metrics != nil {
		s.metrics.CounterPlansGenerated.WithLabelValues(source).Inc()
	}
	return plan, source
}

func (s *Service) generate(ctx context.Context, form Form, language string) (training.TrainingPlan, string) {
	if s.ai == nil {
		return GenerateRuleBasedPlan(form, language), SourceRules
	}

	plan, err := s.ai.GeneratePlan(ctx, form, language)
	if err != nil {
		log.Errorf("ai plan generation failed, falling back to rules: %s", err)
		return GenerateRuleBasedPlan(form, language), SourceRules
	}

	ensureExerciseIDs(plan)
	return plan, SourceAI
}

// ensureExerciseIDs backfills ids the backend did not set, every generated
// exercise ends up individually addressable for logging.
func ensureExerciseIDs(plan training.TrainingPlan) {
	for key, day := range plan {
		for i := range day.Exercises {
			if day.Exercises[i].ID == "" {
				day.Exercises[i].ID = training.NewExerciseID()
			}
		}
		plan[key] = day
	}
}
