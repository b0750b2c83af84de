package generator

import (
	"fmt"
	"math"
	"strconv"

	"github.com/lunaugust/plantracker/internal/training"
)

const (
	// one exercise eats roughly five minutes of a session
	minutesPerExercise = 5

	defaultDaysPerWeek       = 3
	defaultMinutesPerSession = 60
	defaultExperience        = "intermediate"
)

// Form carries the plan request as submitted by the client.
type Form struct {
	Experience        string `json:"experience"`
	Goal              string `json:"goal"`
	Limitations       string `json:"limitations"`
	DaysPerWeek       int    `json:"daysPerWeek"`
	MinutesPerSession int    `json:"minutesPerSession"`
}

// GenerateRuleBasedPlan builds a complete training plan from the fixed
// templates. Pure and deterministic for a given form and language. The
// limitations text is intentionally ignored here, only the AI path
// consults it.
func GenerateRuleBasedPlan(form Form, language string) training.TrainingPlan {
	days := form.DaysPerWeek
	split, ok := daySplits[days]
	if !ok {
		days = defaultDaysPerWeek
		split = daySplits[days]
	}

	multipliers, ok := experienceMultipliers[form.Experience]
	if !ok {
		multipliers = experienceMultipliers[defaultExperience]
	}

	perGroup, ok := goalExercisesPerGroup[form.Goal]
	if !ok {
		perGroup = defaultExercisesPerGroup
	}

	minutes := form.MinutesPerSession
	if minutes <= 0 {
		minutes = defaultMinutesPerSession
	}
	maxExercisesPerDay := minutes / minutesPerExercise
	if maxExercisesPerDay < 1 {
		maxExercisesPerDay = 1
	}

	prefix, ok := dayKeyPrefixes[language]
	if !ok {
		prefix = dayKeyPrefixes["es"]
	}
	labels, ok := dayLabels[language]
	if !ok {
		labels = dayLabels["es"]
	}

	countPerGroup := roundMin1(float64(perGroup) * multipliers.Exercises)
	beginner := form.Experience == "beginner"

	plan := make(training.TrainingPlan, len(split))
	for dayIdx, day := range split {
		exercises := make([]training.Exercise, 0, countPerGroup*len(day.Groups))
		for _, group := range day.Groups {
			pool := exercisePools[group]
			if len(pool) == 0 {
				continue
			}
			for pick := 0; pick < countPerGroup; pick++ {
				// modulo cycling: a count above the pool size repeats
				// exercises instead of failing
				template := pool[pick%len(pool)]
				exercises = append(exercises, buildExercise(template, multipliers.Sets, beginner, language))
			}
		}

		if len(exercises) > maxExercisesPerDay {
			exercises = exercises[:maxExercisesPerDay]
		}

		plan[fmt.Sprintf("%s %d", prefix, dayIdx+1)] = training.TrainingDay{
			Label:     labels[days][dayIdx],
			Color:     palette[dayIdx%len(palette)],
			Exercises: exercises,
		}
	}

	return plan
}

func buildExercise(template exerciseTemplate, setMultiplier float64, beginner bool, language string) training.Exercise {
	// fragments are translated one by one, the joined note is not a
	// dictionary key
	note := ""
	if template.Note != "" {
		note = translatePhrase(language, template.Note)
	}
	if beginner {
		if note != "" {
			note += "; "
		}
		note += translatePhrase(language, beginnerNoteFragment)
	}

	return training.Exercise{
		ID:         training.NewExerciseID(),
		Name:       translatePhrase(language, template.Name),
		Sets:       strconv.Itoa(roundMin1(float64(template.Sets) * setMultiplier)),
		Reps:       template.Reps,
		Rest:       template.Rest,
		Note:       note,
		NoteSource: noteSourceFor(note),
	}
}

func noteSourceFor(note string) string {
	if note == "" {
		return ""
	}
	return training.NoteSourceCatalog
}

func roundMin1(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}
