package models

// Language selects the label table used for enum display values.
type Language string

const (
	LanguagePT Language = "pt-BR"
	LanguageEN Language = "en"
)

// ParseLanguage maps an Accept-Language style value onto a supported language.
// Anything that is not English falls back to Portuguese.
func ParseLanguage(value string) Language {
	if len(value) >= 2 && (value[:2] == "en" || value[:2] == "EN") {
		return LanguageEN
	}
	return LanguagePT
}

type label struct {
	pt string
	en string
}

func (l label) in(lang Language) string {
	if lang == LanguageEN {
		return l.en
	}
	return l.pt
}

// lookup returns the label for id, or the raw id when the table has no entry.
func lookup(table map[string]label, id string, lang Language) string {
	if l, ok := table[id]; ok {
		return l.in(lang)
	}
	return id
}

// Option is one entry of a closed option catalog, as served to clients.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func catalog(order []string, table map[string]label, lang Language) []Option {
	out := make([]Option, 0, len(order))
	for _, id := range order {
		out = append(out, Option{ID: id, Label: table[id].in(lang)})
	}
	return out
}

// Gender of a child profile.
type Gender string

const (
	GenderGirl        Gender = "menina"
	GenderBoy         Gender = "menino"
	GenderUnspecified Gender = "nao_informar"
)

var genderLabels = map[string]label{
	string(GenderGirl):        {"Menina", "Girl"},
	string(GenderBoy):         {"Menino", "Boy"},
	string(GenderUnspecified): {"Prefiro nao informar", "Prefer not to say"},
}

func (g Gender) Label(lang Language) string { return lookup(genderLabels, string(g), lang) }

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	_, ok := genderLabels[string(g)]
	return ok
}

// Condition is a diagnosis tag attached to a child. The set is open: unknown
// tags are kept as entered.
type Condition string

var conditionOrder = []string{"TEA", "T21", "PC", "TDAH", "Epilepsia", "Rett", "West", "Microcefalia", "AGD", "TGD", "Distonia", "Encefalopatia"}

var conditionLabels = map[string]label{
	"TEA":           {"Autismo (TEA)", "Autism (ASD)"},
	"T21":           {"Sindrome de Down (T21)", "Down Syndrome (T21)"},
	"PC":            {"Paralisia Cerebral", "Cerebral Palsy"},
	"TDAH":          {"TDAH", "ADHD"},
	"Epilepsia":     {"Epilepsia", "Epilepsy"},
	"Rett":          {"Sindrome de Rett", "Rett Syndrome"},
	"West":          {"Sindrome de West", "West Syndrome"},
	"Microcefalia":  {"Microcefalia", "Microcephaly"},
	"AGD":           {"Atraso Global do Desenvolvimento", "Global Developmental Delay"},
	"TGD":           {"Transtorno Global do Desenvolvimento", "Pervasive Developmental Disorder"},
	"Distonia":      {"Distonia", "Dystonia"},
	"Encefalopatia": {"Encefalopatia", "Encephalopathy"},
}

func (c Condition) Label(lang Language) string { return lookup(conditionLabels, string(c), lang) }

// MedicationType is the dosage form of a medication.
type MedicationType string

const (
	MedicationSyrup    MedicationType = "xarope"
	MedicationTablet   MedicationType = "comprimido"
	MedicationDrops    MedicationType = "gotas"
	MedicationOintment MedicationType = "pomada"
)

var medicationTypeLabels = map[string]label{
	string(MedicationSyrup):    {"Xarope", "Syrup"},
	string(MedicationTablet):   {"Comprimido", "Tablet"},
	string(MedicationDrops):    {"Gotas", "Drops"},
	string(MedicationOintment): {"Pomada", "Ointment"},
}

func (t MedicationType) Label(lang Language) string {
	return lookup(medicationTypeLabels, string(t), lang)
}

// Valid reports whether t is one of the known dosage forms.
func (t MedicationType) Valid() bool {
	_, ok := medicationTypeLabels[string(t)]
	return ok
}

// Frequency is how often a medication is taken.
type Frequency string

const (
	FrequencyDaily    Frequency = "diario"
	FrequencyEvery6h  Frequency = "6h"
	FrequencyEvery8h  Frequency = "8h"
	FrequencyEvery12h Frequency = "12h"
	FrequencyAsNeeded Frequency = "sob_demanda"
)

var frequencyLabels = map[string]label{
	string(FrequencyDaily):    {"1x ao dia", "Once a day"},
	string(FrequencyEvery6h):  {"A cada 6 horas", "Every 6 hours"},
	string(FrequencyEvery8h):  {"A cada 8 horas", "Every 8 hours"},
	string(FrequencyEvery12h): {"A cada 12 horas", "Every 12 hours"},
	string(FrequencyAsNeeded): {"Sob demanda", "As needed"},
}

func (f Frequency) Label(lang Language) string { return lookup(frequencyLabels, string(f), lang) }

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	_, ok := frequencyLabels[string(f)]
	return ok
}

// EventType classifies appointments.
type EventType string

const (
	EventTherapy EventType = "therapy"
	EventDoctor  EventType = "doctor"
	EventSchool  EventType = "school"
)

var eventTypeLabels = map[string]label{
	string(EventTherapy): {"Terapia", "Therapy"},
	string(EventDoctor):  {"Consulta", "Doctor"},
	string(EventSchool):  {"Escola", "School"},
}

func (t EventType) Label(lang Language) string { return lookup(eventTypeLabels, string(t), lang) }

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	_, ok := eventTypeLabels[string(t)]
	return ok
}

// Mood, Food, Sleep and Crisis are the daily log option ids.
type (
	Mood   string
	Food   string
	Sleep  string
	Crisis string
)

var moodOrder = []string{"irritado", "raiva", "agressivo", "calmo", "vagaroso"}

var moodLabels = map[string]label{
	"irritado":  {"Irritado", "Irritated"},
	"raiva":     {"Com raiva", "Angry"},
	"agressivo": {"Agressivo", "Aggressive"},
	"calmo":     {"Calmo", "Calm"},
	"vagaroso":  {"Vagaroso", "Sluggish"},
}

var foodOrder = []string{"bem", "seletivo", "pouco", "recusou", "enjoo"}

var foodLabels = map[string]label{
	"bem":      {"Comendo bem", "Eating well"},
	"seletivo": {"Seletivo", "Picky"},
	"pouco":    {"Comeu pouco", "Ate little"},
	"recusou":  {"Recusou", "Refused"},
	"enjoo":    {"Enjoado", "Nauseous"},
}

var sleepOrder = []string{"bem", "acordou", "pouco", "cochilo", "insonia"}

var sleepLabels = map[string]label{
	"bem":     {"Dormiu bem", "Slept well"},
	"acordou": {"Acordou varias vezes", "Woke up many times"},
	"pouco":   {"Dormiu pouco", "Slept little"},
	"cochilo": {"Cochilou bem", "Good nap"},
	"insonia": {"Insonia", "Insomnia"},
}

var crisisOrder = []string{"sem", "leve", "moderada", "forte"}

var crisisLabels = map[string]label{
	"sem":      {"Sem crise", "No crisis"},
	"leve":     {"Leve", "Mild"},
	"moderada": {"Moderada", "Moderate"},
	"forte":    {"Forte", "Severe"},
}

func (m Mood) Label(lang Language) string   { return lookup(moodLabels, string(m), lang) }
func (f Food) Label(lang Language) string   { return lookup(foodLabels, string(f), lang) }
func (s Sleep) Label(lang Language) string  { return lookup(sleepLabels, string(s), lang) }
func (c Crisis) Label(lang Language) string { return lookup(crisisLabels, string(c), lang) }

// Negative moods, poor sleep and poor eating drive therapy goal suggestions.
func (m Mood) IsNegative() bool {
	return m == "irritado" || m == "raiva" || m == "agressivo"
}

func (s Sleep) IsChallenge() bool {
	return s == "acordou" || s == "pouco" || s == "insonia"
}

func (f Food) IsChallenge() bool {
	return f == "seletivo" || f == "pouco" || f == "recusou" || f == "enjoo"
}

// GoalSource tells generated goals from the ones the parent typed in.
type GoalSource string

const (
	GoalAuto   GoalSource = "auto"
	GoalCustom GoalSource = "custom"
)

var goalSourceLabels = map[string]label{
	string(GoalAuto):   {"Sugerida", "Suggested"},
	string(GoalCustom): {"Personalizada", "Custom"},
}

func (s GoalSource) Label(lang Language) string { return lookup(goalSourceLabels, string(s), lang) }

// Tier and PlanStatus describe the subscription.
type (
	Tier       string
	PlanStatus string
)

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"

	PlanActive   PlanStatus = "active"
	PlanInactive PlanStatus = "inactive"
)

// Catalog lists every closed option set with labels in lang.
type Catalog struct {
	Conditions      []Option `json:"conditions"`
	Genders         []Option `json:"genders"`
	MedicationTypes []Option `json:"medicationTypes"`
	Frequencies     []Option `json:"frequencies"`
	EventTypes      []Option `json:"eventTypes"`
	Moods           []Option `json:"moods"`
	Foods           []Option `json:"foods"`
	Sleeps          []Option `json:"sleeps"`
	Crises          []Option `json:"crises"`
}

// NewCatalog builds the option catalog for lang.
func NewCatalog(lang Language) Catalog {
	return Catalog{
		Conditions:      catalog(conditionOrder, conditionLabels, lang),
		Genders:         catalog([]string{string(GenderGirl), string(GenderBoy), string(GenderUnspecified)}, genderLabels, lang),
		MedicationTypes: catalog([]string{string(MedicationSyrup), string(MedicationTablet), string(MedicationDrops), string(MedicationOintment)}, medicationTypeLabels, lang),
		Frequencies:     catalog([]string{string(FrequencyDaily), string(FrequencyEvery6h), string(FrequencyEvery8h), string(FrequencyEvery12h), string(FrequencyAsNeeded)}, frequencyLabels, lang),
		EventTypes:      catalog([]string{string(EventTherapy), string(EventDoctor), string(EventSchool)}, eventTypeLabels, lang),
		Moods:           catalog(moodOrder, moodLabels, lang),
		Foods:           catalog(foodOrder, foodLabels, lang),
		Sleeps:          catalog(sleepOrder, sleepLabels, lang),
		Crises:          catalog(crisisOrder, crisisLabels, lang),
	}
}
