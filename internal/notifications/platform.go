package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Channel describes the platform channel reminders are posted to.
type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Importance  int    `json:"importance"`
	Visibility  int    `json:"visibility"`
}

// ReminderChannel is the channel created before the first alarm is scheduled.
var ReminderChannel = Channel{
	ID:          ChannelID,
	Name:        "Stepio reminders",
	Description: "Appointment and medication reminders",
	Importance:  4,
	Visibility:  1,
}

// Platform is the device notification surface for one user.
type Platform interface {
	// Supported reports whether the platform can deliver alarms at all.
	Supported() bool
	CheckPermission(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) (bool, error)
	CreateChannel(ctx context.Context, ch Channel) error
	Schedule(ctx context.Context, alarms []Alarm) error
	Cancel(ctx context.Context, ids []int64) error
	Pending(ctx context.Context) ([]Alarm, error)
}

// PermissionRecorder is implemented by platforms whose permission state is
// reported by the device instead of prompted for.
type PermissionRecorder interface {
	SetPermission(ctx context.Context, granted bool) error
}

// ErrUnsupported is returned by every UnsupportedPlatform operation.
var ErrUnsupported = errors.New("notifications are not supported on this platform")

// UnsupportedPlatform is used when no delivery backend is configured.
type UnsupportedPlatform struct{}

func (UnsupportedPlatform) Supported() bool { return false }

func (UnsupportedPlatform) CheckPermission(context.Context) (bool, error) {
	return false, ErrUnsupported
}

func (UnsupportedPlatform) RequestPermission(context.Context) (bool, error) {
	return false, ErrUnsupported
}

func (UnsupportedPlatform) CreateChannel(context.Context, Channel) error { return ErrUnsupported }
func (UnsupportedPlatform) Schedule(context.Context, []Alarm) error      { return ErrUnsupported }
func (UnsupportedPlatform) Cancel(context.Context, []int64) error        { return ErrUnsupported }

func (UnsupportedPlatform) Pending(context.Context) ([]Alarm, error) {
	return nil, ErrUnsupported
}

// MemoryPlatform keeps alarms in process. It backs single-node deployments
// without redis and the tests.
type MemoryPlatform struct {
	mu       sync.Mutex
	granted  bool
	alarms   map[int64]Alarm
	channels map[string]Channel

	// ScheduleErr, when set, is returned by Schedule without storing anything.
	ScheduleErr error
}

// NewMemoryPlatform creates a MemoryPlatform with the given permission state.
func NewMemoryPlatform(granted bool) *MemoryPlatform {
	return &MemoryPlatform{
		granted:  granted,
		alarms:   make(map[int64]Alarm),
		channels: make(map[string]Channel),
	}
}

func (p *MemoryPlatform) Supported() bool { return true }

// SetPermission records the permission the device reported.
func (p *MemoryPlatform) SetPermission(_ context.Context, granted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = granted
	return nil
}

func (p *MemoryPlatform) CheckPermission(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted, nil
}

func (p *MemoryPlatform) RequestPermission(ctx context.Context) (bool, error) {
	return p.CheckPermission(ctx)
}

func (p *MemoryPlatform) CreateChannel(_ context.Context, ch Channel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[ch.ID] = ch
	return nil
}

// Channels returns the created channels.
func (p *MemoryPlatform) Channels() []Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Channel, 0, len(p.channels))
	for _, ch := range p.channels {
		out = append(out, ch)
	}
	return out
}

func (p *MemoryPlatform) Schedule(_ context.Context, alarms []Alarm) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScheduleErr != nil {
		return p.ScheduleErr
	}
	for _, a := range alarms {
		p.alarms[a.ID] = a
	}
	return nil
}

func (p *MemoryPlatform) Cancel(_ context.Context, ids []int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.alarms, id)
	}
	return nil
}

func (p *MemoryPlatform) Pending(context.Context) ([]Alarm, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Alarm, 0, len(p.alarms))
	for _, a := range p.alarms {
		out = append(out, a)
	}
	sortAlarms(out)
	return out, nil
}

func sortAlarms(alarms []Alarm) {
	sort.Slice(alarms, func(i, j int) bool {
		if !alarms[i].FireAt.Equal(alarms[j].FireAt) {
			return alarms[i].FireAt.Before(alarms[j].FireAt)
		}
		return alarms[i].ID < alarms[j].ID
	})
}
