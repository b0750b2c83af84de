package training

import (
	"fmt"
	"time"

	"github.com/lunaugust/plantracker/pkg"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	NoteSourceCatalog = "catalog"
	NoteSourceCustom  = "custom"

	PlanSourceManual    = "manual"
	PlanSourceGenerated = "generated"
	PlanSourceImported  = "imported"
)

// LogEntry is a single logged set. Entries are append-only: a correction is a
// new entry, never an in-place edit.
type LogEntry struct {
	Date   string `json:"date"` // ISO-8601 timestamp
	Weight string `json:"weight"`
	Reps   string `json:"reps"`
	Notes  string `json:"notes,omitempty"`
}

// LogsByExercise maps a stable exercise id to its entries, in append order.
// Consumers needing "latest" take the last element.
type LogsByExercise map[string][]LogEntry

type Exercise struct {
	ID            string `json:"id"`
	ExerciseID    string `json:"exerciseId,omitempty"` // optional catalog reference
	Name          string `json:"name"`
	Sets          string `json:"sets"`
	Reps          string `json:"reps"`
	Rest          string `json:"rest"`
	Note          string `json:"note"`
	NoteSource    string `json:"noteSource"`
	NoteCatalogID string `json:"noteCatalogId"`
}

type TrainingDay struct {
	Label     string     `json:"label"`
	Color     string     `json:"color"` // hex
	Exercises []Exercise `json:"exercises"`
}

// TrainingPlan maps a day key (e.g. "Día 1") to its day. Display order of the
// keys is derived per call via SortedDayKeys, never cached.
type TrainingPlan map[string]TrainingDay

type PlanMetadata struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	OwnerID    string   `json:"ownerId"`
	CreatedAt  int64    `json:"createdAt"` // epoch ms
	UpdatedAt  int64    `json:"updatedAt"` // epoch ms
	IsShared   bool     `json:"isShared"`
	SharedWith []string `json:"sharedWith"`
	Source     string   `json:"source"`
}

// PlanWithMetadata is the unit of storage and transfer in multi-plan mode.
type PlanWithMetadata struct {
	Metadata PlanMetadata `json:"metadata"`
	Plan     TrainingPlan `json:"plan"`
}

func (p *PlanWithMetadata) IsOwnedBy(scope string) bool {
	return p.Metadata.OwnerID == scope
}

func (p *PlanWithMetadata) IsSharedWith(scope string) bool {
	for _, userID := range p.Metadata.SharedWith {
		if userID == scope {
			return true
		}
	}
	return false
}

// CanEdit: only owners may mutate a plan.
func (p *PlanWithMetadata) CanEdit(scope string) bool {
	return p.IsOwnedBy(scope)
}

func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Touch bumps UpdatedAt, guaranteeing a strict increase even when two
// mutations land within the same millisecond.
func (m *PlanMetadata) Touch() {
	now := NowMillis()
	if now <= m.UpdatedAt {
		now = m.UpdatedAt + 1
	}
	m.UpdatedAt = now
}

func NewPlanID() string {
	return fmt.Sprintf("plan_%d_%s", time.Now().UnixMilli(), randSuffix())
}

// NewMigratedPlanID marks a plan created by the one-time legacy migration.
func NewMigratedPlanID() string {
	return fmt.Sprintf("plan_%d_migrated", time.Now().UnixMilli())
}

func NewExerciseID() string {
	return fmt.Sprintf("ex_%d_%s", time.Now().UnixMilli(), randSuffix())
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randSuffix() string {
	b, err := pkg.GenerateRandomBytes(7)
	if err != nil {
		// crypto/rand failing is effectively fatal elsewhere; fall back to a
		// time-derived suffix so id generation itself never errors
		return fmt.Sprintf("%07d", time.Now().Nanosecond()%10000000)
	}
	for i := range b {
		b[i] = suffixAlphabet[int(b[i])%len(suffixAlphabet)]
	}
	return string(b)
}

// SortedDayKeys returns the plan's day keys in locale-aware natural order,
// so "Día 10" sorts after "Día 2".
func SortedDayKeys(plan TrainingPlan, lang string) []string {
	keys := make([]string, 0, len(plan))
	for k := range plan {
		keys = append(keys, k)
	}

	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Spanish
	}

	c := collate.New(tag, collate.Numeric)
	c.SortStrings(keys)
	return keys
}

// ClonePlan deep-copies a plan so drafts can be edited without touching the
// committed value.
func ClonePlan(plan TrainingPlan) TrainingPlan {
	clone := make(TrainingPlan, len(plan))
	for dayKey, day := range plan {
		exercises := make([]Exercise, len(day.Exercises))
		copy(exercises, day.Exercises)
		clone[dayKey] = TrainingDay{
			Label:     day.Label,
			Color:     day.Color,
			Exercises: exercises,
		}
	}
	return clone
}
