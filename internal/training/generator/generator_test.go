package generator

import (
	"strconv"
	"strings"
	"testing"

	"github.com/lunaugust/plantracker/internal/training"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intermediateForm(days int) Form {
	return Form{
		Experience:        "intermediate",
		Goal:              "hypertrophy",
		DaysPerWeek:       days,
		MinutesPerSession: 60,
	}
}

func totalExercises(plan training.TrainingPlan) int {
	total := 0
	for _, day := range plan {
		total += len(day.Exercises)
	}
	return total
}

func TestGenerateRuleBasedPlan_FourDaysSpanish(t *testing.T) {
	plan := GenerateRuleBasedPlan(intermediateForm(4), "es")

	require.Len(t, plan, 4)

	seenIDs := map[string]bool{}
	for key, day := range plan {
		assert.True(t, strings.HasPrefix(key, "Día"), "unexpected day key %q", key)
		require.NotEmpty(t, day.Exercises, "day %s has no exercises", key)
		assert.NotEmpty(t, day.Label)
		assert.NotEmpty(t, day.Color)
		for _, ex := range day.Exercises {
			require.NotEmpty(t, ex.ID)
			assert.False(t, seenIDs[ex.ID], "duplicate exercise id %s", ex.ID)
			seenIDs[ex.ID] = true
			sets, err := strconv.Atoi(ex.Sets)
			require.NoError(t, err, "exercise %s has non-numeric sets %q", ex.Name, ex.Sets)
			assert.GreaterOrEqual(t, sets, 1)
			assert.NotEmpty(t, ex.Reps)
		}
	}
}

func TestGenerateRuleBasedPlan_AdvancedAtLeastBeginner(t *testing.T) {
	beginnerForm := intermediateForm(4)
	beginnerForm.Experience = "beginner"
	advancedForm := intermediateForm(4)
	advancedForm.Experience = "advanced"

	beginnerPlan := GenerateRuleBasedPlan(beginnerForm, "es")
	advancedPlan := GenerateRuleBasedPlan(advancedForm, "es")

	assert.GreaterOrEqual(t, totalExercises(advancedPlan), totalExercises(beginnerPlan))
}

func TestGenerateRuleBasedPlan_InvalidDaysFallsBackToThree(t *testing.T) {
	for _, days := range []int{0, 1, 7, -3} {
		plan := GenerateRuleBasedPlan(intermediateForm(days), "es")
		assert.Len(t, plan, 3, "daysPerWeek=%d", days)
		assert.Contains(t, plan, "Día 3")
	}
}

func TestGenerateRuleBasedPlan_UnknownExperienceAndGoalDefaults(t *testing.T) {
	form := Form{
		Experience:        "ninja",
		Goal:              "world-domination",
		DaysPerWeek:       3,
		MinutesPerSession: 60,
	}
	plan := GenerateRuleBasedPlan(form, "es")
	reference := GenerateRuleBasedPlan(Form{
		Experience:        "intermediate",
		Goal:              "strength",
		DaysPerWeek:       3,
		MinutesPerSession: 60,
	}, "es")

	assert.Equal(t, totalExercises(reference), totalExercises(plan))
}

func TestGenerateRuleBasedPlan_SessionLengthTruncates(t *testing.T) {
	form := intermediateForm(4)
	form.MinutesPerSession = 10

	plan := GenerateRuleBasedPlan(form, "es")
	for key, day := range plan {
		assert.LessOrEqual(t, len(day.Exercises), 2, "day %s", key)
		assert.NotEmpty(t, day.Exercises, "day %s", key)
	}
}

func TestGenerateRuleBasedPlan_BeginnerNote(t *testing.T) {
	form := intermediateForm(3)
	form.Experience = "beginner"

	plan := GenerateRuleBasedPlan(form, "es")
	for _, day := range plan {
		for _, ex := range day.Exercises {
			assert.Contains(t, ex.Note, "peso ligero, enfocarse en la técnica")
			assert.Equal(t, training.NoteSourceCatalog, ex.NoteSource)
		}
	}

	englishPlan := GenerateRuleBasedPlan(form, "en")
	for _, day := range englishPlan {
		for _, ex := range day.Exercises {
			assert.Contains(t, ex.Note, "light weight, focus on technique")
		}
	}
}

func TestGenerateRuleBasedPlan_EnglishLabelsAndNames(t *testing.T) {
	plan := GenerateRuleBasedPlan(intermediateForm(4), "en")

	require.Len(t, plan, 4)
	day1, ok := plan["Day 1"]
	require.True(t, ok)
	assert.Equal(t, "Chest and triceps", day1.Label)

	names := make([]string, 0, len(day1.Exercises))
	for _, ex := range day1.Exercises {
		names = append(names, ex.Name)
	}
	assert.Contains(t, names, "Bench press")
}

func TestGenerateRuleBasedPlan_SetScaling(t *testing.T) {
	findByName := func(plan training.TrainingPlan, name string) *training.Exercise {
		for _, day := range plan {
			for _, ex := range day.Exercises {
				if ex.Name == name {
					return &ex
				}
			}
		}
		return nil
	}

	advancedForm := intermediateForm(4)
	advancedForm.Experience = "advanced"
	advanced := findByName(GenerateRuleBasedPlan(advancedForm, "es"), "Press de banca")
	require.NotNil(t, advanced)
	// template has 4 sets, advanced multiplier 1.2
	assert.Equal(t, "5", advanced.Sets)

	beginnerForm := intermediateForm(4)
	beginnerForm.Experience = "beginner"
	beginner := findByName(GenerateRuleBasedPlan(beginnerForm, "es"), "Press de banca")
	require.NotNil(t, beginner)
	assert.Equal(t, "3", beginner.Sets)
}

func TestGenerateRuleBasedPlan_PoolCyclingRepeats(t *testing.T) {
	// five-day split, day four is shoulders only; advanced hypertrophy asks
	// for four picks from a three-exercise pool, so the first repeats
	form := Form{
		Experience:        "advanced",
		Goal:              "hypertrophy",
		DaysPerWeek:       5,
		MinutesPerSession: 60,
	}
	plan := GenerateRuleBasedPlan(form, "es")

	day4, ok := plan["Día 4"]
	require.True(t, ok)
	require.Len(t, day4.Exercises, 4)
	assert.Equal(t, day4.Exercises[0].Name, day4.Exercises[3].Name)
	assert.NotEqual(t, day4.Exercises[0].ID, day4.Exercises[3].ID)
}

func TestGenerateRuleBasedPlan_PaletteCycles(t *testing.T) {
	plan := GenerateRuleBasedPlan(intermediateForm(6), "es")

	require.Len(t, plan, 6)
	assert.Equal(t, palette[0], plan["Día 1"].Color)
	assert.Equal(t, palette[5], plan["Día 6"].Color)

	colors := map[string]bool{}
	for _, day := range plan {
		colors[day.Color] = true
	}
	assert.Len(t, colors, 6)
}
