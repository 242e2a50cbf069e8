// stepio.go
//
// Stepio record service: the per-family health routine store behind the Stepio apps
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of stepio.
// stepio is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// stepio is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with stepio.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/localnerve/stepio/internal/middleware"
	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/notifications"
	"github.com/localnerve/stepio/internal/services"
	"github.com/localnerve/stepio/internal/store"
	"github.com/localnerve/stepio/internal/types"
	"github.com/localnerve/stepio/internal/utils"
)

// RecordAdmin is the out-of-band access to stored records.
type RecordAdmin interface {
	SetPlan(ctx context.Context, userID string, plan models.SubscriptionPlan) error
	Delete(ctx context.Context, userID string) (int64, error)
}

// Billing is the subscription provider.
type Billing interface {
	OpenManagement(ctx context.Context, userID string) (string, error)
	SyncEntitlements(ctx context.Context, userID string) (models.SubscriptionPlan, error)
}

// StepioHandler serves the record of the signed-in user.
type StepioHandler struct {
	Stores  *store.Manager
	Records RecordAdmin
	Billing Billing
	Logger  *zap.Logger
	Now     func() time.Time
}

// Register mounts every authenticated route on r.
func (h *StepioHandler) Register(r fiber.Router) {
	r.Get("/", h.GetRecord)
	r.Delete("/record", h.DeleteRecord)
	r.Put("/user", h.SetUser)
	r.Put("/child", h.SetChild)
	r.Post("/children", h.AddChild)
	r.Put("/children/active", h.SetActiveChild)
	r.Post("/onboarding", h.CompleteOnboarding)

	r.Put("/settings/notifications", h.SetNotificationSettings)
	r.Post("/notifications/prompt", h.RespondToNotificationPrompt)
	r.Post("/notifications/permission", h.RecordPermission)
	r.Get("/notifications/pending", h.PendingAlarms)

	r.Post("/medications", h.AddMedication)
	r.Patch("/medications/:id", h.UpdateMedication)
	r.Delete("/medications/:id", h.DeleteMedication)
	r.Post("/events", h.AddEvent)
	r.Patch("/events/:id", h.UpdateEvent)
	r.Delete("/events/:id", h.DeleteEvent)
	r.Post("/milestones", h.AddMilestone)
	r.Patch("/milestones/:id", h.UpdateMilestone)
	r.Delete("/milestones/:id", h.DeleteMilestone)

	r.Put("/logs/:date", h.SetDailyLog)

	r.Get("/therapy/:childId/suggestions", h.TherapySuggestions)
	r.Post("/therapy/:childId/generate", h.GenerateTherapyPlan)
	r.Post("/therapy/:childId/goals", h.AddTherapyGoal)
	r.Post("/therapy/:childId/goals/:goalId/toggle", h.ToggleTherapyGoal)
	r.Get("/report", h.MonthlyReport)

	r.Get("/billing/manage", h.OpenBillingManagement)
	r.Post("/billing/sync", h.SyncBilling)

	r.Post("/reset", h.Reset)
}

func (h *StepioHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// store returns the loaded store of the request's user.
func (h *StepioHandler) store(c *fiber.Ctx) (*store.Store, models.Session, error) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		return nil, session, types.NewError(fiber.StatusForbidden, errAuthorization, "Session not found")
	}
	s, err := h.Stores.Get(c.UserContext(), session, middleware.LocationFrom(c))
	if err != nil {
		h.Logger.Error("load record failed", zap.String("user_id", session.UserID), zap.Error(err))
		return nil, session, types.NewError(fiber.StatusServiceUnavailable, errUnavailable, "Record unavailable, retry later")
	}
	return s, session, nil
}

// run loads the user's store, applies op and responds with the record.
func (h *StepioHandler) run(c *fiber.Ctx, op func(s *store.Store) models.Record) error {
	s, _, err := h.store(c)
	if err != nil {
		return err
	}
	return utils.RecordResponse(c, op(s))
}

// GetRecord handles GET /api/stepio
// @Summary Get the record
// @Description Load (reconciling on first access) and return the user's record
// @Tags Record
// @Produce json
// @Param X-Timezone header string false "IANA zone for medication reminders"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio [get]
func (h *StepioHandler) GetRecord(c *fiber.Ctx) error {
	return h.run(c, (*store.Store).Snapshot)
}

// DeleteRecord handles DELETE /api/stepio/record
// @Summary Delete the record
// @Description Remove the stored record and drop the loaded state
// @Tags Record
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/record [delete]
func (h *StepioHandler) DeleteRecord(c *fiber.Ctx) error {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		return types.NewError(fiber.StatusForbidden, errAuthorization, "Session not found")
	}
	// queued writes must land before the row goes
	h.Stores.Evict(session.UserID)
	deleted, err := h.Records.Delete(c.UserContext(), session.UserID)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "deleteRecord")
	}
	h.Logger.Info("record deleted", zap.String("user_id", session.UserID), zap.Int64("rows", deleted))
	return utils.SuccessResponse(c, fiber.Map{"ok": true, "deleted": deleted}, fiber.StatusOK)
}

// SetUser handles PUT /api/stepio/user
// @Summary Set the parent profile
// @Tags Record
// @Accept json
// @Produce json
// @Param user body models.User true "Profile"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/user [put]
func (h *StepioHandler) SetUser(c *fiber.Ctx) error {
	var in models.User
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := required("name", in.Name); err != nil {
		return err
	}
	return h.run(c, func(s *store.Store) models.Record { return s.SetUser(in) })
}

func parseChild(c *fiber.Ctx) (store.ChildInput, error) {
	var in store.ChildInput
	if err := parseBody(c, &in); err != nil {
		return in, err
	}
	if err := required("name", in.Name); err != nil {
		return in, err
	}
	if in.BirthDate != "" {
		if err := validDate("birthDate", in.BirthDate); err != nil {
			return in, err
		}
	}
	if in.Gender != "" {
		if err := oneOf("gender", string(in.Gender), in.Gender.Valid()); err != nil {
			return in, err
		}
	}
	return in, nil
}

// SetChild handles PUT /api/stepio/child
// @Summary Upsert a child
// @Description Update the child with the given id (or the active child), creating it when absent. The child becomes active.
// @Tags Children
// @Accept json
// @Produce json
// @Param child body store.ChildInput true "Child"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/child [put]
func (h *StepioHandler) SetChild(c *fiber.Ctx) error {
	in, err := parseChild(c)
	if err != nil {
		return err
	}
	return h.run(c, func(s *store.Store) models.Record { return s.SetChild(in) })
}

// AddChild handles POST /api/stepio/children
// @Summary Add a child
// @Tags Children
// @Accept json
// @Produce json
// @Param child body store.ChildInput true "Child"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/children [post]
func (h *StepioHandler) AddChild(c *fiber.Ctx) error {
	in, err := parseChild(c)
	if err != nil {
		return err
	}
	return h.run(c, func(s *store.Store) models.Record { return s.AddChild(in) })
}

type activeChildBody struct {
	ChildID string `json:"childId"`
}

// SetActiveChild handles PUT /api/stepio/children/active
// @Summary Select the active child
// @Tags Children
// @Accept json
// @Produce json
// @Param body body activeChildBody true "Child id"
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/children/active [put]
func (h *StepioHandler) SetActiveChild(c *fiber.Ctx) error {
	var in activeChildBody
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := required("childId", in.ChildID); err != nil {
		return err
	}
	return h.run(c, func(s *store.Store) models.Record { return s.SetActiveChild(in.ChildID) })
}

// CompleteOnboarding handles POST /api/stepio/onboarding
// @Summary Mark onboarding complete
// @Tags Record
// @Produce json
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/onboarding [post]
func (h *StepioHandler) CompleteOnboarding(c *fiber.Ctx) error {
	return h.run(c, (*store.Store).CompleteOnboarding)
}

type settingsBody struct {
	NotifyEvents *bool `json:"notifyEvents,omitempty"`
	NotifyMeds   *bool `json:"notifyMeds,omitempty"`
}

// SetNotificationSettings handles PUT /api/stepio/settings/notifications
// @Summary Change reminder settings
// @Description Absent flags keep their value. Turning reminders on asks for permission; a denial turns both off.
// @Tags Notifications
// @Accept json
// @Produce json
// @Param settings body settingsBody true "Flags"
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/settings/notifications [put]
func (h *StepioHandler) SetNotificationSettings(c *fiber.Ctx) error {
	var in settingsBody
	if err := parseBody(c, &in); err != nil {
		return err
	}
	return h.run(c, func(s *store.Store) models.Record {
		settings := s.Snapshot().Settings
		if in.NotifyEvents != nil {
			settings.NotifyEvents = *in.NotifyEvents
		}
		if in.NotifyMeds != nil {
			settings.NotifyMeds = *in.NotifyMeds
		}
		return s.SetNotificationSettings(settings)
	})
}

type promptBody struct {
	Accepted bool `json:"accepted"`
}

// RespondToNotificationPrompt handles POST /api/stepio/notifications/prompt
// @Summary Answer the first-run reminder prompt
// @Tags Notifications
// @Accept json
// @Produce json
// @Param body body promptBody true "Answer"
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/notifications/prompt [post]
func (h *StepioHandler) RespondToNotificationPrompt(c *fiber.Ctx) error {
	var in promptBody
	if err := parseBody(c, &in); err != nil {
		return err
	}
	return h.run(c, func(s *store.Store) models.Record { return s.RespondToNotificationPrompt(in.Accepted) })
}

type permissionBody struct {
	Granted bool `json:"granted"`
}

// RecordPermission handles POST /api/stepio/notifications/permission
// @Summary Report the device notification permission
// @Description Send before answering the prompt so the permission request sees the device state.
// @Tags Notifications
// @Accept json
// @Produce json
// @Param body body permissionBody true "Permission"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 501 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/notifications/permission [post]
func (h *StepioHandler) RecordPermission(c *fiber.Ctx) error {
	var in permissionBody
	if err := parseBody(c, &in); err != nil {
		return err
	}
	s, _, err := h.store(c)
	if err != nil {
		return err
	}
	if err := s.RecordPermission(c.UserContext(), in.Granted); err != nil {
		if errors.Is(err, notifications.ErrUnsupported) {
			return types.NewError(fiber.StatusNotImplemented, errNotifications, "Reminders are not available")
		}
		return types.NewError(fiber.StatusServiceUnavailable, errNotifications, "Could not store permission: %v", err)
	}
	return utils.RecordResponse(c, s.Snapshot())
}

// PendingAlarms handles GET /api/stepio/notifications/pending
// @Summary List scheduled reminders
// @Tags Notifications
// @Produce json
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/notifications/pending [get]
func (h *StepioHandler) PendingAlarms(c *fiber.Ctx) error {
	s, _, err := h.store(c)
	if err != nil {
		return err
	}
	alarms := s.PendingAlarms(c.UserContext())
	if alarms == nil {
		alarms = []notifications.Alarm{}
	}
	return utils.RecordResponse(c, alarms)
}

// AddMedication handles POST /api/stepio/medications
// @Summary Add a medication for the active child
// @Tags Medications
// @Accept json
// @Produce json
// @Param medication body store.MedicationInput true "Medication"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/medications [post]
func (h *StepioHandler) AddMedication(c *fiber.Ctx) error {
	var in store.MedicationInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := required("name", in.Name, "frequency", string(in.Frequency)); err != nil {
		return err
	}
	if err := validMedication(in.Type, &in.Frequency); err != nil {
		return err
	}
	return h.run(c, func(s *store.Store) models.Record { return s.AddMedication(in) })
}

// validMedication checks the dosage form, when given, and the frequency.
func validMedication(kind models.MedicationType, freq *models.Frequency) error {
	if kind != "" {
		if err := oneOf("type", string(kind), kind.Valid()); err != nil {
			return err
		}
	}
	if freq != nil {
		return oneOf("frequency", string(*freq), freq.Valid())
	}
	return nil
}

// UpdateMedication handles PATCH /api/stepio/medications/:id
// @Summary Update a medication
// @Tags Medications
// @Accept json
// @Produce json
// @Param id path string true "Medication ID"
// @Param patch body store.MedicationPatch true "Changed fields"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/medications/{id} [patch]
func (h *StepioHandler) UpdateMedication(c *fiber.Ctx) error {
	var patch store.MedicationPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	if patch.Type != nil {
		if err := oneOf("type", string(*patch.Type), patch.Type.Valid()); err != nil {
			return err
		}
	}
	if err := validMedication("", patch.Frequency); err != nil {
		return err
	}
	id := c.Params("id")
	return h.run(c, func(s *store.Store) models.Record { return s.UpdateMedication(id, patch) })
}

// DeleteMedication handles DELETE /api/stepio/medications/:id
// @Summary Delete a medication
// @Tags Medications
// @Produce json
// @Param id path string true "Medication ID"
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/medications/{id} [delete]
func (h *StepioHandler) DeleteMedication(c *fiber.Ctx) error {
	id := c.Params("id")
	return h.run(c, func(s *store.Store) models.Record { return s.DeleteMedication(id) })
}

// AddEvent handles POST /api/stepio/events
// @Summary Add an event for the active child
// @Tags Events
// @Accept json
// @Produce json
// @Param event body store.EventInput true "Event"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/events [post]
func (h *StepioHandler) AddEvent(c *fiber.Ctx) error {
	var in store.EventInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := required("title", in.Title, "datetime", in.Datetime); err != nil {
		return err
	}
	if err := validInstant(c, "datetime", in.Datetime); err != nil {
		return err
	}
	if in.Type != "" {
		if err := oneOf("type", string(in.Type), in.Type.Valid()); err != nil {
			return err
		}
	}
	return h.run(c, func(s *store.Store) models.Record { return s.AddEvent(in) })
}

// UpdateEvent handles PATCH /api/stepio/events/:id
// @Summary Update an event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param patch body store.EventPatch true "Changed fields"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/events/{id} [patch]
func (h *StepioHandler) UpdateEvent(c *fiber.Ctx) error {
	var patch store.EventPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	if patch.Datetime != nil {
		if err := validInstant(c, "datetime", *patch.Datetime); err != nil {
			return err
		}
	}
	if patch.Type != nil {
		if err := oneOf("type", string(*patch.Type), patch.Type.Valid()); err != nil {
			return err
		}
	}
	id := c.Params("id")
	return h.run(c, func(s *store.Store) models.Record { return s.UpdateEvent(id, patch) })
}

// DeleteEvent handles DELETE /api/stepio/events/:id
// @Summary Delete an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/events/{id} [delete]
func (h *StepioHandler) DeleteEvent(c *fiber.Ctx) error {
	id := c.Params("id")
	return h.run(c, func(s *store.Store) models.Record { return s.DeleteEvent(id) })
}

// AddMilestone handles POST /api/stepio/milestones
// @Summary Add a milestone for the active child
// @Tags Milestones
// @Accept json
// @Produce json
// @Param milestone body store.MilestoneInput true "Milestone"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/milestones [post]
func (h *StepioHandler) AddMilestone(c *fiber.Ctx) error {
	var in store.MilestoneInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := required("title", in.Title); err != nil {
		return err
	}
	if err := validDate("date", in.Date); err != nil {
		return err
	}
	return h.run(c, func(s *store.Store) models.Record { return s.AddMilestone(in) })
}

// UpdateMilestone handles PATCH /api/stepio/milestones/:id
// @Summary Update a milestone
// @Tags Milestones
// @Accept json
// @Produce json
// @Param id path string true "Milestone ID"
// @Param patch body store.MilestonePatch true "Changed fields"
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/milestones/{id} [patch]
func (h *StepioHandler) UpdateMilestone(c *fiber.Ctx) error {
	var patch store.MilestonePatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	if patch.Date != nil {
		if err := validDate("date", *patch.Date); err != nil {
			return err
		}
	}
	id := c.Params("id")
	return h.run(c, func(s *store.Store) models.Record { return s.UpdateMilestone(id, patch) })
}

// DeleteMilestone handles DELETE /api/stepio/milestones/:id
// @Summary Delete a milestone
// @Tags Milestones
// @Produce json
// @Param id path string true "Milestone ID"
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/milestones/{id} [delete]
func (h *StepioHandler) DeleteMilestone(c *fiber.Ctx) error {
	id := c.Params("id")
	return h.run(c, func(s *store.Store) models.Record { return s.DeleteMilestone(id) })
}

// SetDailyLog handles PUT /api/stepio/logs/:date
// @Summary Write the active child's diary for a date
// @Description Given fields are merged over the existing entry of the day.
// @Tags Logs
// @Accept json
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param log body store.DailyLogInput true "Log fields"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/logs/{date} [put]
func (h *StepioHandler) SetDailyLog(c *fiber.Ctx) error {
	date := c.Params("date")
	if err := validDate("date", date); err != nil {
		return err
	}
	var in store.DailyLogInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	return h.run(c, func(s *store.Store) models.Record { return s.SetDailyLog(date, in) })
}

// TherapySuggestions handles GET /api/stepio/therapy/:childId/suggestions
// @Summary Suggested therapy goals
// @Description Goals derived from the coming week's sessions and the past week's diary, plus a 30 day summary. Pro only.
// @Tags Therapy
// @Produce json
// @Param childId path string true "Child ID"
// @Param Accept-Language header string false "en or pt-BR"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 402 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/therapy/{childId}/suggestions [get]
func (h *StepioHandler) TherapySuggestions(c *fiber.Ctx) error {
	s, _, err := h.store(c)
	if err != nil {
		return err
	}
	rec := s.Snapshot()
	if err := requirePro(rec); err != nil {
		return err
	}
	childID := c.Params("childId")
	if !rec.HasChild(childID) {
		return childNotFound(childID)
	}
	suggestions := services.SuggestForChild(rec, childID, h.now(), middleware.LocationFrom(c), middleware.LanguageFrom(c))
	return utils.RecordResponse(c, suggestions)
}

type generateBody struct {
	Goals []store.GoalInput `json:"goals"`
}

// GenerateTherapyPlan handles POST /api/stepio/therapy/:childId/generate
// @Summary Generate a therapy plan
// @Description Replaces the suggested goals, keeping custom ones. Without goals in the body the current suggestions are used. Pro only.
// @Tags Therapy
// @Accept json
// @Produce json
// @Param childId path string true "Child ID"
// @Param body body generateBody false "Goals"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 402 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/therapy/{childId}/generate [post]
func (h *StepioHandler) GenerateTherapyPlan(c *fiber.Ctx) error {
	var in generateBody
	if err := parseBody(c, &in); err != nil {
		return err
	}
	s, _, err := h.store(c)
	if err != nil {
		return err
	}
	rec := s.Snapshot()
	if err := requirePro(rec); err != nil {
		return err
	}
	childID := c.Params("childId")
	if !rec.HasChild(childID) {
		return childNotFound(childID)
	}
	goals := in.Goals
	if len(goals) == 0 {
		texts := services.SuggestGoals(rec.EventsFor(childID), rec.LogsFor(childID), h.now(), middleware.LocationFrom(c), middleware.LanguageFrom(c))
		for _, text := range texts {
			goals = append(goals, store.GoalInput{Text: text})
		}
	}
	return utils.RecordResponse(c, s.GenerateTherapyPlan(childID, goals))
}

type goalBody struct {
	Text string `json:"text"`
}

// AddTherapyGoal handles POST /api/stepio/therapy/:childId/goals
// @Summary Add a custom therapy goal
// @Tags Therapy
// @Accept json
// @Produce json
// @Param childId path string true "Child ID"
// @Param body body goalBody true "Goal"
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/therapy/{childId}/goals [post]
func (h *StepioHandler) AddTherapyGoal(c *fiber.Ctx) error {
	var in goalBody
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := required("text", in.Text); err != nil {
		return err
	}
	childID := c.Params("childId")
	return h.run(c, func(s *store.Store) models.Record { return s.AddTherapyGoal(childID, in.Text) })
}

// ToggleTherapyGoal handles POST /api/stepio/therapy/:childId/goals/:goalId/toggle
// @Summary Toggle a therapy goal
// @Tags Therapy
// @Produce json
// @Param childId path string true "Child ID"
// @Param goalId path string true "Goal ID"
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/therapy/{childId}/goals/{goalId}/toggle [post]
func (h *StepioHandler) ToggleTherapyGoal(c *fiber.Ctx) error {
	childID, goalID := c.Params("childId"), c.Params("goalId")
	return h.run(c, func(s *store.Store) models.Record { return s.ToggleTherapyGoal(childID, goalID) })
}

// MonthlyReport handles GET /api/stepio/report
// @Summary Monthly report
// @Description XLSX workbook of one child's month. Pro only.
// @Tags Therapy
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param month query string true "Month (YYYY-MM)"
// @Param childId query string false "Child ID, defaults to the active child"
// @Success 200 {file} file
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 402 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/report [get]
func (h *StepioHandler) MonthlyReport(c *fiber.Ctx) error {
	loc := middleware.LocationFrom(c)
	month, err := services.ParseMonth(c.Query("month"), loc)
	if err != nil {
		return types.NewError(fiber.StatusBadRequest, errValidation, "%v", err)
	}
	s, _, err := h.store(c)
	if err != nil {
		return err
	}
	rec := s.Snapshot()
	if err := requirePro(rec); err != nil {
		return err
	}
	childID := c.Query("childId", rec.ResolveActiveChildID())
	if !rec.HasChild(childID) {
		return childNotFound(childID)
	}

	data, err := services.MonthlyReport(rec, childID, month, middleware.LanguageFrom(c))
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "monthlyReport")
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="stepio-%s-%s.xlsx"`, childID, month.Format("2006-01")))
	return c.Status(fiber.StatusOK).Send(data)
}

// OpenBillingManagement handles GET /api/stepio/billing/manage
// @Summary Subscription management link
// @Tags Billing
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/billing/manage [get]
func (h *StepioHandler) OpenBillingManagement(c *fiber.Ctx) error {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		return types.NewError(fiber.StatusForbidden, errAuthorization, "Session not found")
	}
	url, err := h.Billing.OpenManagement(c.UserContext(), session.UserID)
	if err != nil {
		return types.NewError(fiber.StatusServiceUnavailable, errBilling, "%v", err)
	}
	return utils.SuccessResponse(c, fiber.Map{"ok": true, "url": url}, fiber.StatusOK)
}

// SyncBilling handles POST /api/stepio/billing/sync
// @Summary Sync the subscription
// @Description Fetches entitlements from billing, stores the plan and re-reads it into the record.
// @Tags Billing
// @Produce json
// @Success 200 {object} utils.RecordResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/billing/sync [post]
func (h *StepioHandler) SyncBilling(c *fiber.Ctx) error {
	s, session, err := h.store(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	plan, err := h.Billing.SyncEntitlements(ctx, session.UserID)
	if err != nil {
		return types.NewError(fiber.StatusServiceUnavailable, errBilling, "%v", err)
	}

	// pending record writes carry the old plan
	s.Flush()
	if err := h.Records.SetPlan(ctx, session.UserID, plan); err != nil {
		h.Logger.Error("store plan failed", zap.String("user_id", session.UserID), zap.Error(err))
		return types.NewError(fiber.StatusServiceUnavailable, errUnavailable, "Could not store plan")
	}
	rec, err := s.RefreshPlan(ctx)
	if err != nil {
		h.Logger.Warn("refresh plan failed", zap.String("user_id", session.UserID), zap.Error(err))
	}
	return utils.RecordResponse(c, rec)
}

// Reset handles POST /api/stepio/reset
// @Summary Reset the record to defaults
// @Tags Record
// @Produce json
// @Success 200 {object} utils.RecordResponseStruct
// @Security CookieAuth
// @Security BearerAuth
// @Router /stepio/reset [post]
func (h *StepioHandler) Reset(c *fiber.Ctx) error {
	return h.run(c, (*store.Store).Reset)
}

// GetCatalog handles GET /api/stepio/catalog
// @Summary Option catalogs
// @Description Closed option sets with labels in the requested language
// @Tags Catalog
// @Produce json
// @Param Accept-Language header string false "en or pt-BR"
// @Success 200 {object} models.Catalog
// @Router /stepio/catalog [get]
func GetCatalog(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, models.NewCatalog(middleware.LanguageFrom(c)), fiber.StatusOK)
}
