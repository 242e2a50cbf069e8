package models

import (
	"github.com/localnerve/stepio/internal/types"
)

// User is the account profile of the signed-in parent.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Child is one child profile.
type Child struct {
	ID         string                    `json:"id,omitempty"`
	Name       string                    `json:"name"`
	BirthDate  string                    `json:"birthDate"`
	Gender     Gender                    `json:"gender,omitempty"`
	Conditions types.FlexList[Condition] `json:"conditions"`
}

// Medication is a recurring medication for a child.
type Medication struct {
	ID        string         `json:"id"`
	ChildID   string         `json:"childId,omitempty"`
	Name      string         `json:"name"`
	Type      MedicationType `json:"type"`
	Frequency Frequency      `json:"frequency"`
	Dosage    string         `json:"dosage,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	StartDate string         `json:"startDate,omitempty"`
}

// Event is an appointment or therapy session.
type Event struct {
	ID           string    `json:"id"`
	ChildID      string    `json:"childId,omitempty"`
	Title        string    `json:"title"`
	Datetime     string    `json:"datetime"`
	Type         EventType `json:"type"`
	Professional string    `json:"professional,omitempty"`
	Location     string    `json:"location,omitempty"`
	Notes        string    `json:"notes,omitempty"`
}

// Milestone is a dated developmental achievement.
type Milestone struct {
	ID          string `json:"id"`
	ChildID     string `json:"childId,omitempty"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

// DailyLog is the per child, per calendar date diary entry.
type DailyLog struct {
	ChildID   string `json:"childId,omitempty"`
	Date      string `json:"date,omitempty"`
	Mood      Mood   `json:"mood,omitempty"`
	Food      Food   `json:"food,omitempty"`
	Sleep     Sleep  `json:"sleep,omitempty"`
	Crisis    Crisis `json:"crisis,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// TherapyGoal is a single goal inside a therapy plan.
type TherapyGoal struct {
	ID     string     `json:"id"`
	Text   string     `json:"text"`
	Done   bool       `json:"done"`
	Source GoalSource `json:"source"`
}

// TherapyPlan holds the goals of one child.
type TherapyPlan struct {
	ChildID     string        `json:"childId"`
	GeneratedAt string        `json:"generatedAt"`
	Goals       []TherapyGoal `json:"goals"`
}

// SubscriptionPlan is the tier/status pair reported by billing.
type SubscriptionPlan struct {
	Tier   Tier       `json:"tier"`
	Status PlanStatus `json:"status"`
}

// IsPro reports whether pro features are unlocked. Both fields must agree.
func (p SubscriptionPlan) IsPro() bool {
	return p.Tier == TierPro && p.Status == PlanActive
}

// NotificationSettings toggles reminders per source.
type NotificationSettings struct {
	NotifyEvents bool `json:"notifyEvents"`
	NotifyMeds   bool `json:"notifyMeds"`
}

// Record is the fully populated per-user document.
type Record struct {
	User          *User                  `json:"user"`
	Child         *Child                 `json:"child"`
	Children      []Child                `json:"children"`
	ActiveChildID string                 `json:"activeChildId"`
	Medications   []Medication           `json:"medications"`
	Events        []Event                `json:"events"`
	Milestones    []Milestone            `json:"milestones"`
	DailyLogs     map[string]DailyLog    `json:"dailyLogs"`
	TherapyPlans  map[string]TherapyPlan `json:"therapyPlans"`
	Plan          SubscriptionPlan       `json:"plan"`
	Settings      NotificationSettings   `json:"settings"`
	IsOnboarded   bool                   `json:"isOnboarded"`
}

// DailyLogKey is the composite key of the daily log mapping.
func DailyLogKey(childID, date string) string {
	return childID + ":" + date
}

// DefaultPlan and DefaultSettings are the values assumed for absent fields.
var (
	DefaultPlan     = SubscriptionPlan{Tier: TierFree, Status: PlanInactive}
	DefaultSettings = NotificationSettings{NotifyEvents: true, NotifyMeds: true}
)

// NewRecord returns the all-defaults record.
func NewRecord() Record {
	return Record{
		Children:     []Child{},
		Medications:  []Medication{},
		Events:       []Event{},
		Milestones:   []Milestone{},
		DailyLogs:    map[string]DailyLog{},
		TherapyPlans: map[string]TherapyPlan{},
		Plan:         DefaultPlan,
		Settings:     DefaultSettings,
	}
}

// ResolveActiveChildID returns the active pointer, else the first child, else
// the legacy child, else "".
func (r Record) ResolveActiveChildID() string {
	if r.ActiveChildID != "" {
		return r.ActiveChildID
	}
	if len(r.Children) > 0 && r.Children[0].ID != "" {
		return r.Children[0].ID
	}
	if r.Child != nil {
		return r.Child.ID
	}
	return ""
}

// FindChild returns the child with id.
func (r Record) FindChild(id string) (Child, bool) {
	for _, c := range r.Children {
		if c.ID == id {
			return c, true
		}
	}
	return Child{}, false
}

// HasChild reports whether a child with id exists.
func (r Record) HasChild(id string) bool {
	_, ok := r.FindChild(id)
	return ok
}

// LogsFor returns the daily logs of one child.
func (r Record) LogsFor(childID string) []DailyLog {
	var out []DailyLog
	for _, l := range r.DailyLogs {
		if l.ChildID == childID {
			out = append(out, l)
		}
	}
	return out
}

// EventsFor returns the events of one child.
func (r Record) EventsFor(childID string) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.ChildID == childID {
			out = append(out, e)
		}
	}
	return out
}

// MilestonesFor returns the milestones of one child.
func (r Record) MilestonesFor(childID string) []Milestone {
	var out []Milestone
	for _, m := range r.Milestones {
		if m.ChildID == childID {
			out = append(out, m)
		}
	}
	return out
}

// Clone returns a deep copy so callers can never alias the store's state.
func (r Record) Clone() Record {
	out := r
	if r.User != nil {
		u := *r.User
		out.User = &u
	}
	if r.Child != nil {
		c := r.Child.clone()
		out.Child = &c
	}
	out.Children = make([]Child, len(r.Children))
	for i, c := range r.Children {
		out.Children[i] = c.clone()
	}
	out.Medications = append([]Medication{}, r.Medications...)
	out.Events = append([]Event{}, r.Events...)
	out.Milestones = append([]Milestone{}, r.Milestones...)
	out.DailyLogs = make(map[string]DailyLog, len(r.DailyLogs))
	for k, v := range r.DailyLogs {
		out.DailyLogs[k] = v
	}
	out.TherapyPlans = make(map[string]TherapyPlan, len(r.TherapyPlans))
	for k, v := range r.TherapyPlans {
		v.Goals = append([]TherapyGoal{}, v.Goals...)
		out.TherapyPlans[k] = v
	}
	return out
}

func (c Child) clone() Child {
	if c.Conditions != nil {
		c.Conditions = append(types.FlexList[Condition]{}, c.Conditions...)
	}
	return c
}
