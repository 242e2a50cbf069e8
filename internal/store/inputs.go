package store

import (
	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/types"
)

// ChildInput is a child profile as submitted. ID is only read by SetChild.
type ChildInput struct {
	ID         string                           `json:"id,omitempty"`
	Name       string                           `json:"name"`
	BirthDate  string                           `json:"birthDate"`
	Gender     models.Gender                    `json:"gender,omitempty"`
	Conditions types.FlexList[models.Condition] `json:"conditions"`
}

func (in ChildInput) child(id string) models.Child {
	return models.Child{
		ID:         id,
		Name:       in.Name,
		BirthDate:  in.BirthDate,
		Gender:     in.Gender,
		Conditions: in.Conditions,
	}
}

// MedicationInput creates a medication for the active child.
type MedicationInput struct {
	Name      string                `json:"name"`
	Type      models.MedicationType `json:"type"`
	Frequency models.Frequency      `json:"frequency"`
	Dosage    string                `json:"dosage,omitempty"`
	Notes     string                `json:"notes,omitempty"`
	StartDate string                `json:"startDate,omitempty"`
}

// MedicationPatch updates the non-nil fields of a medication.
type MedicationPatch struct {
	ChildID   *string                `json:"childId,omitempty"`
	Name      *string                `json:"name,omitempty"`
	Type      *models.MedicationType `json:"type,omitempty"`
	Frequency *models.Frequency      `json:"frequency,omitempty"`
	Dosage    *string                `json:"dosage,omitempty"`
	Notes     *string                `json:"notes,omitempty"`
	StartDate *string                `json:"startDate,omitempty"`
}

func (p MedicationPatch) apply(m models.Medication) models.Medication {
	setIf(&m.ChildID, p.ChildID)
	setIf(&m.Name, p.Name)
	setIf(&m.Type, p.Type)
	setIf(&m.Frequency, p.Frequency)
	setIf(&m.Dosage, p.Dosage)
	setIf(&m.Notes, p.Notes)
	setIf(&m.StartDate, p.StartDate)
	return m
}

// EventInput creates an event for the active child.
type EventInput struct {
	Title        string           `json:"title"`
	Datetime     string           `json:"datetime"`
	Type         models.EventType `json:"type"`
	Professional string           `json:"professional,omitempty"`
	Location     string           `json:"location,omitempty"`
	Notes        string           `json:"notes,omitempty"`
}

// EventPatch updates the non-nil fields of an event.
type EventPatch struct {
	ChildID      *string           `json:"childId,omitempty"`
	Title        *string           `json:"title,omitempty"`
	Datetime     *string           `json:"datetime,omitempty"`
	Type         *models.EventType `json:"type,omitempty"`
	Professional *string           `json:"professional,omitempty"`
	Location     *string           `json:"location,omitempty"`
	Notes        *string           `json:"notes,omitempty"`
}

func (p EventPatch) apply(e models.Event) models.Event {
	setIf(&e.ChildID, p.ChildID)
	setIf(&e.Title, p.Title)
	setIf(&e.Datetime, p.Datetime)
	setIf(&e.Type, p.Type)
	setIf(&e.Professional, p.Professional)
	setIf(&e.Location, p.Location)
	setIf(&e.Notes, p.Notes)
	return e
}

// MilestoneInput creates a milestone for the active child.
type MilestoneInput struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

// MilestonePatch updates the non-nil fields of a milestone.
type MilestonePatch struct {
	ChildID     *string `json:"childId,omitempty"`
	Title       *string `json:"title,omitempty"`
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p MilestonePatch) apply(m models.Milestone) models.Milestone {
	setIf(&m.ChildID, p.ChildID)
	setIf(&m.Title, p.Title)
	setIf(&m.Date, p.Date)
	setIf(&m.Description, p.Description)
	return m
}

// DailyLogInput is merged over the existing log of the day.
type DailyLogInput struct {
	Mood   *models.Mood   `json:"mood,omitempty"`
	Food   *models.Food   `json:"food,omitempty"`
	Sleep  *models.Sleep  `json:"sleep,omitempty"`
	Crisis *models.Crisis `json:"crisis,omitempty"`
	Notes  *string        `json:"notes,omitempty"`
}

func (in DailyLogInput) apply(l models.DailyLog) models.DailyLog {
	setIf(&l.Mood, in.Mood)
	setIf(&l.Food, in.Food)
	setIf(&l.Sleep, in.Sleep)
	setIf(&l.Crisis, in.Crisis)
	setIf(&l.Notes, in.Notes)
	return l
}

// GoalInput is one generated goal.
type GoalInput struct {
	Text string `json:"text"`
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
