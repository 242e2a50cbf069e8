package models

import (
	"encoding/json"
)

// RawPlan is the wire form of SubscriptionPlan; every field is optional.
type RawPlan struct {
	Tier   *Tier       `json:"tier,omitempty"`
	Status *PlanStatus `json:"status,omitempty"`
}

// RawSettings is the wire form of NotificationSettings; every field is optional.
type RawSettings struct {
	NotifyEvents *bool `json:"notifyEvents,omitempty"`
	NotifyMeds   *bool `json:"notifyMeds,omitempty"`
}

// RawRecord is a persisted document as read from storage. Any field may be
// absent; CompleteRecord fills the gaps.
type RawRecord struct {
	User          *User
	Child         *Child
	Children      []Child
	ActiveChildID *string
	Medications   []Medication
	Events        []Event
	Milestones    []Milestone
	DailyLogs     map[string]DailyLog
	TherapyPlans  map[string]TherapyPlan
	Plan          *RawPlan
	Settings      *RawSettings
	IsOnboarded   *bool
}

// ParseRawRecord decodes a stored document field by field. A field (or list
// element, or map entry) that does not decode is treated as absent instead of
// failing the whole document.
func ParseRawRecord(data []byte) RawRecord {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return RawRecord{}
	}

	var raw RawRecord
	decodeField(fields, "user", &raw.User)
	decodeField(fields, "child", &raw.Child)
	decodeField(fields, "activeChildId", &raw.ActiveChildID)
	decodeField(fields, "plan", &raw.Plan)
	decodeField(fields, "settings", &raw.Settings)
	decodeField(fields, "isOnboarded", &raw.IsOnboarded)
	raw.Children = decodeList[Child](fields["children"])
	raw.Medications = decodeList[Medication](fields["medications"])
	raw.Events = decodeList[Event](fields["events"])
	raw.Milestones = decodeList[Milestone](fields["milestones"])
	raw.DailyLogs = decodeMap[DailyLog](fields["dailyLogs"])
	raw.TherapyPlans = decodeMap[TherapyPlan](fields["therapyPlans"])
	return raw
}

func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T) {
	data, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(data, &v); err == nil {
		*dst = v
	}
}

func decodeList[T any](data json.RawMessage) []T {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func decodeMap[T any](data json.RawMessage) map[string]T {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	out := make(map[string]T, len(entries))
	for k, entry := range entries {
		var v T
		if err := json.Unmarshal(entry, &v); err == nil {
			out[k] = v
		}
	}
	return out
}

// CompleteRecord builds a fully populated Record from a partial one, field by
// field. Nested plan and settings objects are completed per field as well.
func CompleteRecord(raw RawRecord) Record {
	rec := NewRecord()

	rec.User = raw.User
	rec.Child = raw.Child
	if raw.ActiveChildID != nil {
		rec.ActiveChildID = *raw.ActiveChildID
	}
	if raw.Children != nil {
		rec.Children = raw.Children
	}
	if raw.Medications != nil {
		rec.Medications = raw.Medications
	}
	if raw.Events != nil {
		rec.Events = raw.Events
	}
	if raw.Milestones != nil {
		rec.Milestones = raw.Milestones
	}
	for k, v := range raw.DailyLogs {
		rec.DailyLogs[k] = v
	}
	for k, v := range raw.TherapyPlans {
		if v.Goals == nil {
			v.Goals = []TherapyGoal{}
		}
		rec.TherapyPlans[k] = v
	}
	if raw.Plan != nil {
		if raw.Plan.Tier != nil {
			rec.Plan.Tier = *raw.Plan.Tier
		}
		if raw.Plan.Status != nil {
			rec.Plan.Status = *raw.Plan.Status
		}
	}
	if raw.Settings != nil {
		if raw.Settings.NotifyEvents != nil {
			rec.Settings.NotifyEvents = *raw.Settings.NotifyEvents
		}
		if raw.Settings.NotifyMeds != nil {
			rec.Settings.NotifyMeds = *raw.Settings.NotifyMeds
		}
	}
	if raw.IsOnboarded != nil {
		rec.IsOnboarded = *raw.IsOnboarded
	}
	return rec
}
