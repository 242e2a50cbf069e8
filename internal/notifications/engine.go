package notifications

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/localnerve/stepio/internal/models"
)

// Engine schedules and cancels reminders on a Platform. Platform failures are
// logged and counted, never returned: local data stays authoritative and the
// next reschedule repairs the alarm set.
type Engine struct {
	platform Platform
	logger   *zap.Logger
	now      func() time.Time
	loc      *time.Location
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the time source used to drop past reminders.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation sets the zone medication dose times are read in.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// NewEngine creates an Engine over platform.
func NewEngine(platform Platform, logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		platform: platform,
		logger:   logger,
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supported reports whether the platform can deliver reminders.
func (e *Engine) Supported() bool {
	return e.platform.Supported()
}

// Location returns the zone medication times are computed in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// RequestPermission asks the platform for permission and sets up the
// reminder channel when granted.
func (e *Engine) RequestPermission(ctx context.Context) bool {
	if !e.platform.Supported() {
		return false
	}
	granted, err := e.platform.RequestPermission(ctx)
	if err != nil {
		e.fail("request_permission", err)
		return false
	}
	if !granted {
		return false
	}
	e.ensureChannel(ctx)
	return true
}

// RecordPermission stores the permission state reported by the device.
func (e *Engine) RecordPermission(ctx context.Context, granted bool) error {
	rec, ok := e.platform.(PermissionRecorder)
	if !ok || !e.platform.Supported() {
		return ErrUnsupported
	}
	if err := rec.SetPermission(ctx, granted); err != nil {
		e.fail("record_permission", err)
		return err
	}
	return nil
}

// ready is the gate in front of every schedule call.
func (e *Engine) ready(ctx context.Context) bool {
	if !e.platform.Supported() {
		return false
	}
	granted, err := e.platform.CheckPermission(ctx)
	if err != nil {
		e.fail("check_permission", err)
		return false
	}
	if !granted {
		return false
	}
	e.ensureChannel(ctx)
	return true
}

func (e *Engine) ensureChannel(ctx context.Context) {
	// the channel may already exist
	if err := e.platform.CreateChannel(ctx, ReminderChannel); err != nil {
		e.logger.Debug("create channel", zap.Error(err))
	}
}

// ScheduleEvent registers the reminders of ev that are still ahead.
func (e *Engine) ScheduleEvent(ctx context.Context, ev models.Event) {
	if !e.ready(ctx) {
		return
	}
	alarms, err := EventAlarms(ev, e.now(), e.loc)
	if err != nil {
		e.logger.Warn("event has no usable datetime", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	e.schedule(ctx, KindEvent, ev.ID, alarms)
}

// ScheduleMedication registers the daily reminders of med.
func (e *Engine) ScheduleMedication(ctx context.Context, med models.Medication) {
	if !e.ready(ctx) {
		return
	}
	e.schedule(ctx, KindMedication, med.ID, MedicationAlarms(med, e.now(), e.loc))
}

func (e *Engine) schedule(ctx context.Context, kind Kind, sourceID string, alarms []Alarm) {
	if len(alarms) == 0 {
		return
	}
	if err := e.platform.Schedule(ctx, alarms); err != nil {
		e.fail("schedule", err, zap.String("kind", string(kind)), zap.String("source_id", sourceID))
		return
	}
	alarmsScheduled.WithLabelValues(string(kind)).Add(float64(len(alarms)))
}

// CancelEvent removes every reminder ev could have produced.
func (e *Engine) CancelEvent(ctx context.Context, ev models.Event) {
	e.cancel(ctx, EventAlarmIDs(ev.ID))
}

// CancelMedication removes the reminders of med at its current frequency.
// Callers changing the frequency must cancel with the old value first.
func (e *Engine) CancelMedication(ctx context.Context, med models.Medication) {
	e.cancel(ctx, MedicationAlarmIDs(med))
}

func (e *Engine) cancel(ctx context.Context, ids []int64) {
	if !e.platform.Supported() || len(ids) == 0 {
		return
	}
	if err := e.platform.Cancel(ctx, ids); err != nil {
		e.fail("cancel", err)
		return
	}
	alarmsCanceled.Add(float64(len(ids)))
}

// RescheduleAll clears every pending alarm and schedules again from events
// and medications, filtered by the two flags.
func (e *Engine) RescheduleAll(ctx context.Context, events []models.Event, meds []models.Medication, notifyEvents, notifyMeds bool) {
	if !e.platform.Supported() {
		return
	}
	e.clearAll(ctx)
	if notifyEvents {
		for _, ev := range events {
			e.ScheduleEvent(ctx, ev)
		}
	}
	if notifyMeds {
		for _, med := range meds {
			e.ScheduleMedication(ctx, med)
		}
	}
}

func (e *Engine) clearAll(ctx context.Context) {
	pending, err := e.platform.Pending(ctx)
	if err != nil {
		e.fail("pending", err)
		return
	}
	ids := make([]int64, 0, len(pending))
	for _, a := range pending {
		ids = append(ids, a.ID)
	}
	e.cancel(ctx, ids)
}

// Pending lists the alarms currently registered. Unsupported platforms and
// failures yield an empty list.
func (e *Engine) Pending(ctx context.Context) []Alarm {
	if !e.platform.Supported() {
		return []Alarm{}
	}
	pending, err := e.platform.Pending(ctx)
	if err != nil {
		e.fail("pending", err)
		return []Alarm{}
	}
	return pending
}

func (e *Engine) fail(op string, err error, fields ...zap.Field) {
	alarmFailures.WithLabelValues(op).Inc()
	e.logger.Warn("notification platform "+op+" failed", append(fields, zap.Error(err))...)
}
