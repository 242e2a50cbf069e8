package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/notifications"
)

// SetUser replaces the account profile.
func (s *Store) SetUser(user models.User) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		rec.User = &user
		return nil, true
	})
}

// SetChild upserts a child. The id comes from the input, else the active
// child, else a new one. The child becomes active.
func (s *Store) SetChild(in ChildInput) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		id := in.ID
		if id == "" {
			id = rec.ResolveActiveChildID()
		}
		if id == "" {
			id = s.newID()
		}
		child := in.child(id)

		replaced := false
		for i := range rec.Children {
			if rec.Children[i].ID == id {
				rec.Children[i] = child
				replaced = true
			}
		}
		if !replaced {
			rec.Children = append(rec.Children, child)
		}
		rec.Child = &child
		rec.ActiveChildID = id
		return nil, true
	})
}

// AddChild appends a new child and makes it active.
func (s *Store) AddChild(in ChildInput) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		child := in.child(s.newID())
		rec.Children = append(rec.Children, child)
		rec.Child = &child
		rec.ActiveChildID = child.ID
		return nil, true
	})
}

// SetActiveChild points the record at another child. Unknown ids are ignored.
func (s *Store) SetActiveChild(childID string) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		child, ok := rec.FindChild(childID)
		if !ok {
			return nil, false
		}
		rec.ActiveChildID = childID
		rec.Child = &child
		return nil, true
	})
}

// CompleteOnboarding marks the first-run wizard done.
func (s *Store) CompleteOnboarding() models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		rec.IsOnboarded = true
		return nil, true
	})
}

// SetNotificationSettings stores the flags and rebuilds every alarm. Turning
// anything on asks the platform for permission first; a denial turns both
// flags back off.
func (s *Store) SetNotificationSettings(settings models.NotificationSettings) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		rec.Settings = settings
		events, meds := rec.Events, rec.Medications

		if !settings.NotifyEvents && !settings.NotifyMeds {
			return []effect{s.rescheduleEffect(events, meds, false, false)}, true
		}
		if !s.alarms.Supported() {
			return []effect{s.rescheduleEffect(events, meds, settings.NotifyEvents, settings.NotifyMeds)}, true
		}
		return []effect{func(ctx context.Context) {
			if !s.alarms.RequestPermission(ctx) {
				s.disableNotifications()
				return
			}
			s.alarms.RescheduleAll(ctx, events, meds, settings.NotifyEvents, settings.NotifyMeds)
		}}, true
	})
}

// RespondToNotificationPrompt handles the answer to the first-run reminder
// prompt. Declining, or accepting while the device denies permission, turns
// both flags off.
func (s *Store) RespondToNotificationPrompt(accepted bool) models.Record {
	s.mu.Lock()
	ready := s.state == StateReady
	s.mu.Unlock()
	if !ready || !s.alarms.Supported() {
		return s.Snapshot()
	}
	if !accepted {
		return s.disableNotifications()
	}

	s.enqueue(func(ctx context.Context) {
		if !s.alarms.RequestPermission(ctx) {
			s.disableNotifications()
			return
		}
		rec := s.Snapshot()
		s.alarms.RescheduleAll(ctx, rec.Events, rec.Medications, rec.Settings.NotifyEvents, rec.Settings.NotifyMeds)
	})
	return s.Snapshot()
}

func (s *Store) disableNotifications() models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		rec.Settings = models.NotificationSettings{}
		return []effect{s.rescheduleEffect(rec.Events, rec.Medications, false, false)}, true
	})
}

func (s *Store) rescheduleEffect(events []models.Event, meds []models.Medication, notifyEvents, notifyMeds bool) effect {
	return func(ctx context.Context) {
		s.alarms.RescheduleAll(ctx, events, meds, notifyEvents, notifyMeds)
	}
}

// AddMedication creates a medication for the active child and schedules its
// reminders. Without an active child nothing happens.
func (s *Store) AddMedication(in MedicationInput) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		childID := rec.ResolveActiveChildID()
		if childID == "" {
			return nil, false
		}
		med := models.Medication{
			ID:        s.newID(),
			ChildID:   childID,
			Name:      in.Name,
			Type:      in.Type,
			Frequency: in.Frequency,
			Dosage:    in.Dosage,
			Notes:     in.Notes,
			StartDate: in.StartDate,
		}
		rec.Medications = append(rec.Medications, med)
		if !rec.Settings.NotifyMeds {
			return nil, true
		}
		return []effect{func(ctx context.Context) {
			s.alarms.ScheduleMedication(ctx, med)
		}}, true
	})
}

// validChildRef reports whether a patch's childId, when given, names a child.
func validChildRef(rec *models.Record, childID *string) bool {
	return childID == nil || rec.HasChild(*childID)
}

// UpdateMedication patches a medication. Its reminders are canceled at the
// old frequency before the new set is scheduled. A childId that names no
// child leaves the record unchanged.
func (s *Store) UpdateMedication(id string, patch MedicationPatch) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		if !validChildRef(rec, patch.ChildID) {
			return nil, false
		}
		for i, existing := range rec.Medications {
			if existing.ID != id {
				continue
			}
			updated := patch.apply(existing)
			updated.ID = id
			rec.Medications[i] = updated
			notify := rec.Settings.NotifyMeds
			return []effect{func(ctx context.Context) {
				s.alarms.CancelMedication(ctx, existing)
				if notify {
					s.alarms.ScheduleMedication(ctx, updated)
				}
			}}, true
		}
		return nil, false
	})
}

// DeleteMedication removes a medication and cancels its reminders.
func (s *Store) DeleteMedication(id string) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		for i, existing := range rec.Medications {
			if existing.ID != id {
				continue
			}
			rec.Medications = append(rec.Medications[:i:i], rec.Medications[i+1:]...)
			return []effect{func(ctx context.Context) {
				s.alarms.CancelMedication(ctx, existing)
			}}, true
		}
		return nil, false
	})
}

// AddEvent creates an event for the active child and schedules its reminders.
func (s *Store) AddEvent(in EventInput) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		childID := rec.ResolveActiveChildID()
		if childID == "" {
			return nil, false
		}
		ev := models.Event{
			ID:           s.newID(),
			ChildID:      childID,
			Title:        in.Title,
			Datetime:     in.Datetime,
			Type:         in.Type,
			Professional: in.Professional,
			Location:     in.Location,
			Notes:        in.Notes,
		}
		rec.Events = append(rec.Events, ev)
		if !rec.Settings.NotifyEvents {
			return nil, true
		}
		return []effect{func(ctx context.Context) {
			s.alarms.ScheduleEvent(ctx, ev)
		}}, true
	})
}

// UpdateEvent patches an event and replaces its reminders.
func (s *Store) UpdateEvent(id string, patch EventPatch) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		if !validChildRef(rec, patch.ChildID) {
			return nil, false
		}
		for i, existing := range rec.Events {
			if existing.ID != id {
				continue
			}
			updated := patch.apply(existing)
			updated.ID = id
			rec.Events[i] = updated
			notify := rec.Settings.NotifyEvents
			return []effect{func(ctx context.Context) {
				s.alarms.CancelEvent(ctx, existing)
				if notify {
					s.alarms.ScheduleEvent(ctx, updated)
				}
			}}, true
		}
		return nil, false
	})
}

// DeleteEvent removes an event and cancels its reminders.
func (s *Store) DeleteEvent(id string) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		for i, existing := range rec.Events {
			if existing.ID != id {
				continue
			}
			rec.Events = append(rec.Events[:i:i], rec.Events[i+1:]...)
			return []effect{func(ctx context.Context) {
				s.alarms.CancelEvent(ctx, existing)
			}}, true
		}
		return nil, false
	})
}

// AddMilestone records a milestone for the active child.
func (s *Store) AddMilestone(in MilestoneInput) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		childID := rec.ResolveActiveChildID()
		if childID == "" {
			return nil, false
		}
		rec.Milestones = append(rec.Milestones, models.Milestone{
			ID:          s.newID(),
			ChildID:     childID,
			Title:       in.Title,
			Date:        in.Date,
			Description: in.Description,
		})
		return nil, true
	})
}

// UpdateMilestone patches a milestone.
func (s *Store) UpdateMilestone(id string, patch MilestonePatch) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		if !validChildRef(rec, patch.ChildID) {
			return nil, false
		}
		for i, existing := range rec.Milestones {
			if existing.ID == id {
				updated := patch.apply(existing)
				updated.ID = id
				rec.Milestones[i] = updated
				return nil, true
			}
		}
		return nil, false
	})
}

// DeleteMilestone removes a milestone.
func (s *Store) DeleteMilestone(id string) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		for i, existing := range rec.Milestones {
			if existing.ID == id {
				rec.Milestones = append(rec.Milestones[:i:i], rec.Milestones[i+1:]...)
				return nil, true
			}
		}
		return nil, false
	})
}

// SetDailyLog merges in over the active child's log for date.
func (s *Store) SetDailyLog(date string, in DailyLogInput) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		childID := rec.ResolveActiveChildID()
		if childID == "" || date == "" {
			return nil, false
		}
		key := models.DailyLogKey(childID, date)
		log := in.apply(rec.DailyLogs[key])
		log.ChildID = childID
		log.Date = date
		now := s.timestamp()
		if log.CreatedAt == "" {
			log.CreatedAt = now
		}
		log.UpdatedAt = now
		rec.DailyLogs[key] = log
		return nil, true
	})
}

// GenerateTherapyPlan replaces the generated goals of a child's plan. Custom
// goals are kept after the new ones.
func (s *Store) GenerateTherapyPlan(childID string, goals []GoalInput) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		if !rec.HasChild(childID) {
			return nil, false
		}
		next := make([]models.TherapyGoal, 0, len(goals))
		for _, g := range goals {
			next = append(next, models.TherapyGoal{
				ID:     s.newID(),
				Text:   g.Text,
				Source: models.GoalAuto,
			})
		}
		for _, g := range rec.TherapyPlans[childID].Goals {
			if g.Source == models.GoalCustom {
				next = append(next, g)
			}
		}
		rec.TherapyPlans[childID] = models.TherapyPlan{
			ChildID:     childID,
			GeneratedAt: s.timestamp(),
			Goals:       next,
		}
		return nil, true
	})
}

// AddTherapyGoal appends a custom goal, creating the plan when needed.
func (s *Store) AddTherapyGoal(childID, text string) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		if !rec.HasChild(childID) || text == "" {
			return nil, false
		}
		plan, ok := rec.TherapyPlans[childID]
		if !ok {
			plan = models.TherapyPlan{ChildID: childID, GeneratedAt: s.timestamp()}
		}
		plan.Goals = append(plan.Goals, models.TherapyGoal{
			ID:     s.newID(),
			Text:   text,
			Source: models.GoalCustom,
		})
		rec.TherapyPlans[childID] = plan
		return nil, true
	})
}

// ToggleTherapyGoal flips a goal's done flag. A child without a plan is
// ignored.
func (s *Store) ToggleTherapyGoal(childID, goalID string) models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		plan, ok := rec.TherapyPlans[childID]
		if !ok {
			return nil, false
		}
		for i := range plan.Goals {
			if plan.Goals[i].ID == goalID {
				plan.Goals[i].Done = !plan.Goals[i].Done
			}
		}
		rec.TherapyPlans[childID] = plan
		return nil, true
	})
}

// RefreshPlan re-reads only the subscription plan from persistence, after
// billing changed it out of band. The rest of the record is untouched.
func (s *Store) RefreshPlan(ctx context.Context) (models.Record, error) {
	s.mu.Lock()
	state, session := s.state, s.session
	s.mu.Unlock()
	if state != StateReady {
		return models.Record{}, ErrNotReady
	}
	if session == nil {
		return s.Snapshot(), ErrNoSession
	}

	// queued writes carry the old plan; let them land first
	s.Flush()

	raw, found, err := s.persistence.Get(ctx, session.UserID)
	if err != nil {
		return s.Snapshot(), err
	}
	if !found {
		return s.Snapshot(), nil
	}
	plan := models.CompleteRecord(models.RawRecord{Plan: raw.Plan}).Plan

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Plan = plan
	s.logger.Debug("plan refreshed", zap.String("user_id", session.UserID), zap.Bool("pro", plan.IsPro()))
	return s.record.Clone(), nil
}

// Reset replaces the record with the defaults, persists it and clears the
// alarms.
func (s *Store) Reset() models.Record {
	return s.mutate(func(rec *models.Record) ([]effect, bool) {
		*rec = models.NewRecord()
		return []effect{s.rescheduleEffect(nil, nil, false, false)}, true
	})
}

// RecordPermission stores the notification permission the device reports,
// for platforms that cannot prompt themselves. The flags are left alone; the
// next prompt or settings change reads the new state.
func (s *Store) RecordPermission(ctx context.Context, granted bool) error {
	if s.State() != StateReady {
		return ErrNotReady
	}
	return s.alarms.RecordPermission(ctx, granted)
}

// PendingAlarms lists the reminders registered on the platform.
func (s *Store) PendingAlarms(ctx context.Context) []notifications.Alarm {
	return s.alarms.Pending(ctx)
}
