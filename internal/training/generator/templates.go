package generator

// Templates and lookup tables for the rule-based plan generator. Exercise
// names and note fragments are authored in Spanish, the default plan
// language; the phrase dictionary carries the best-effort translations.

type exerciseTemplate struct {
	Name string
	Sets int
	Reps string
	Rest string
	Note string
}

type dayTemplate struct {
	Groups []string
}

// day splits keyed by days per week; the label sets below follow the same
// group structure per language
var daySplits = map[int][]dayTemplate{
	2: {
		{Groups: []string{"chest", "back", "legs"}},
		{Groups: []string{"shoulders", "arms", "core"}},
	},
	3: {
		{Groups: []string{"chest", "shoulders", "arms"}},
		{Groups: []string{"back", "arms", "core"}},
		{Groups: []string{"legs", "core"}},
	},
	4: {
		{Groups: []string{"chest", "arms"}},
		{Groups: []string{"back", "arms"}},
		{Groups: []string{"legs", "core"}},
		{Groups: []string{"shoulders", "core"}},
	},
	5: {
		{Groups: []string{"chest"}},
		{Groups: []string{"back"}},
		{Groups: []string{"legs"}},
		{Groups: []string{"shoulders"}},
		{Groups: []string{"arms", "core"}},
	},
	6: {
		{Groups: []string{"chest", "shoulders"}},
		{Groups: []string{"back", "arms"}},
		{Groups: []string{"legs", "core"}},
		{Groups: []string{"chest", "arms"}},
		{Groups: []string{"back", "shoulders"}},
		{Groups: []string{"legs", "core"}},
	},
}

var dayKeyPrefixes = map[string]string{
	"es": "Día",
	"en": "Day",
}

var dayLabels = map[string]map[int][]string{
	"es": {
		2: {"Cuerpo completo A", "Cuerpo completo B"},
		3: {"Empuje", "Tirón", "Pierna"},
		4: {"Pecho y tríceps", "Espalda y bíceps", "Pierna", "Hombro y core"},
		5: {"Pecho", "Espalda", "Pierna", "Hombro", "Brazos y core"},
		6: {"Empuje A", "Tirón A", "Pierna A", "Empuje B", "Tirón B", "Pierna B"},
	},
	"en": {
		2: {"Full body A", "Full body B"},
		3: {"Push", "Pull", "Legs"},
		4: {"Chest and triceps", "Back and biceps", "Legs", "Shoulders and core"},
		5: {"Chest", "Back", "Legs", "Shoulders", "Arms and core"},
		6: {"Push A", "Pull A", "Legs A", "Push B", "Pull B", "Legs B"},
	},
}

var exercisePools = map[string][]exerciseTemplate{
	"chest": {
		{Name: "Press de banca", Sets: 4, Reps: "8-10", Rest: "90s"},
		{Name: "Press inclinado con mancuernas", Sets: 3, Reps: "10-12", Rest: "90s"},
		{Name: "Aperturas con mancuernas", Sets: 3, Reps: "12-15", Rest: "60s"},
		{Name: "Fondos en paralelas", Sets: 3, Reps: "8-12", Rest: "90s"},
	},
	"back": {
		{Name: "Dominadas", Sets: 4, Reps: "6-10", Rest: "120s", Note: "usar banda si es necesario"},
		{Name: "Remo con barra", Sets: 4, Reps: "8-10", Rest: "90s"},
		{Name: "Jalón al pecho", Sets: 3, Reps: "10-12", Rest: "90s"},
		{Name: "Remo con mancuerna", Sets: 3, Reps: "10-12", Rest: "60s"},
	},
	"legs": {
		{Name: "Sentadilla", Sets: 4, Reps: "6-10", Rest: "120s"},
		{Name: "Peso muerto rumano", Sets: 3, Reps: "8-10", Rest: "120s"},
		{Name: "Prensa de pierna", Sets: 3, Reps: "10-12", Rest: "90s"},
		{Name: "Zancadas", Sets: 3, Reps: "12-15", Rest: "60s"},
		{Name: "Elevación de talones", Sets: 4, Reps: "15-20", Rest: "45s"},
	},
	"shoulders": {
		{Name: "Press militar", Sets: 4, Reps: "8-10", Rest: "90s"},
		{Name: "Elevaciones laterales", Sets: 3, Reps: "12-15", Rest: "60s"},
		{Name: "Pájaros", Sets: 3, Reps: "12-15", Rest: "60s"},
	},
	"arms": {
		{Name: "Curl con barra", Sets: 3, Reps: "10-12", Rest: "60s"},
		{Name: "Extensión de tríceps en polea", Sets: 3, Reps: "10-12", Rest: "60s"},
		{Name: "Curl martillo", Sets: 3, Reps: "12-15", Rest: "60s"},
		{Name: "Press francés", Sets: 3, Reps: "10-12", Rest: "60s"},
	},
	"core": {
		{Name: "Plancha", Sets: 3, Reps: "45s", Rest: "45s"},
		{Name: "Elevación de piernas", Sets: 3, Reps: "12-15", Rest: "45s"},
		{Name: "Rueda abdominal", Sets: 3, Reps: "8-12", Rest: "60s"},
	},
}

type volumeMultipliers struct {
	Exercises float64
	Sets      float64
}

var experienceMultipliers = map[string]volumeMultipliers{
	"beginner":     {Exercises: 0.75, Sets: 0.8},
	"intermediate": {Exercises: 1.0, Sets: 1.0},
	"advanced":     {Exercises: 1.25, Sets: 1.2},
}

var goalExercisesPerGroup = map[string]int{
	"strength":    2,
	"hypertrophy": 3,
	"endurance":   2,
	"weight-loss": 2,
}

const defaultExercisesPerGroup = 2

const beginnerNoteFragment = "peso ligero, enfocarse en la técnica"

var palette = []string{
	"#4f8a8b",
	"#f76b8a",
	"#fbd46d",
	"#b06ab3",
	"#3797a4",
	"#84a9ac",
}

// phrase dictionary per target language; fragments without an entry pass
// through verbatim
var phraseDictionary = map[string]map[string]string{
	"en": {
		"peso ligero, enfocarse en la técnica": "light weight, focus on technique",
		"usar banda si es necesario":           "use a band if needed",
		"Press de banca":                       "Bench press",
		"Press inclinado con mancuernas":       "Incline dumbbell press",
		"Aperturas con mancuernas":             "Dumbbell flyes",
		"Fondos en paralelas":                  "Dips",
		"Dominadas":                            "Pull-ups",
		"Remo con barra":                       "Barbell row",
		"Jalón al pecho":                       "Lat pulldown",
		"Remo con mancuerna":                   "Dumbbell row",
		"Sentadilla":                           "Squat",
		"Peso muerto rumano":                   "Romanian deadlift",
		"Prensa de pierna":                     "Leg press",
		"Zancadas":                             "Lunges",
		"Elevación de talones":                 "Calf raises",
		"Press militar":                        "Overhead press",
		"Elevaciones laterales":                "Lateral raises",
		"Pájaros":                              "Rear delt flyes",
		"Curl con barra":                       "Barbell curl",
		"Extensión de tríceps en polea":        "Triceps pushdown",
		"Curl martillo":                        "Hammer curl",
		"Press francés":                        "Skull crushers",
		"Plancha":                              "Plank",
		"Elevación de piernas":                 "Leg raises",
		"Rueda abdominal":                      "Ab wheel rollout",
	},
}

// translatePhrase swaps a templated fragment into the target language when
// the dictionary knows it. Spanish is the authoring language, so "es" is an
// identity lookup.
func translatePhrase(language, phrase string) string {
	dict, ok := phraseDictionary[language]
	if !ok {
		return phrase
	}
	if translated, ok := dict[phrase]; ok {
		return translated
	}
	return phrase
}
