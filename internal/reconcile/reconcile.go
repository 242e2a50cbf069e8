// Package reconcile repairs persisted records into a consistent, fully keyed
// in-memory model.
package reconcile

import (
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/utils"
)

var reconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stepio_records_reconciled_total",
	Help: "Records passed through reconciliation, by whether they needed repair.",
}, []string{"changed"})

// Reconciler normalizes records. The zero value is not usable; call New.
type Reconciler struct {
	newID func() string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithIDGenerator replaces the generator used for backfilled child ids.
func WithIDGenerator(fn func() string) Option {
	return func(r *Reconciler) {
		r.newID = fn
	}
}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{newID: utils.NewID}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultReconciler = New()

// Reconcile completes and normalizes raw with the default Reconciler.
func Reconcile(raw models.RawRecord) (models.Record, bool) {
	return defaultReconciler.Reconcile(raw)
}

// Reconcile fills every absent field of raw with its default and then
// normalizes the result. changed reports whether a stored copy is stale.
func (r *Reconciler) Reconcile(raw models.RawRecord) (models.Record, bool) {
	return r.Normalize(models.CompleteRecord(raw))
}

// Normalize repairs child identity, the active child pointer, child foreign
// keys and daily log keys. The input is not modified. Normalizing a record
// that came out of Normalize reports no change.
func (r *Reconciler) Normalize(in models.Record) (models.Record, bool) {
	rec := in.Clone()

	changed := r.normalizeChildren(&rec)
	if syncLegacyChild(&rec) {
		changed = true
	}

	if active := rec.ActiveChildID; active != "" {
		if backfillForeignKeys(&rec, active) {
			changed = true
		}
	}
	if rekeyDailyLogs(&rec, rec.ActiveChildID) {
		changed = true
	}

	reconciledTotal.WithLabelValues(strconv.FormatBool(changed)).Inc()
	return rec, changed
}

// normalizeChildren migrates the legacy single child into the list, assigns
// missing ids and points activeChildId at a present child.
func (r *Reconciler) normalizeChildren(rec *models.Record) bool {
	if len(rec.Children) == 0 && rec.Child != nil {
		child := *rec.Child
		if child.ID == "" {
			child.ID = r.newID()
		}
		rec.Children = []models.Child{child}
		rec.ActiveChildID = child.ID
		return true
	}

	changed := false
	for i := range rec.Children {
		if rec.Children[i].ID == "" {
			rec.Children[i].ID = r.newID()
			changed = true
		}
	}

	if rec.ActiveChildID == "" || !rec.HasChild(rec.ActiveChildID) {
		next := ""
		if len(rec.Children) > 0 {
			next = rec.Children[0].ID
		}
		if next != rec.ActiveChildID {
			rec.ActiveChildID = next
			changed = true
		}
	}
	return changed
}

// syncLegacyChild mirrors the active child into the single child field read
// by older clients.
func syncLegacyChild(rec *models.Record) bool {
	active, ok := rec.FindChild(rec.ActiveChildID)
	if !ok {
		if len(rec.Children) == 0 {
			return false
		}
		active = rec.Children[0]
	}
	if rec.Child != nil && sameChild(*rec.Child, active) {
		return false
	}
	rec.Child = &active
	return true
}

func sameChild(a, b models.Child) bool {
	if a.ID != b.ID || a.Name != b.Name || a.BirthDate != b.BirthDate || a.Gender != b.Gender {
		return false
	}
	if len(a.Conditions) != len(b.Conditions) {
		return false
	}
	for i := range a.Conditions {
		if a.Conditions[i] != b.Conditions[i] {
			return false
		}
	}
	return true
}

// ownerOf returns childID when it names a present child, else fallback.
func ownerOf(rec *models.Record, childID, fallback string) string {
	if childID != "" && rec.HasChild(childID) {
		return childID
	}
	return fallback
}

func backfillForeignKeys(rec *models.Record, active string) bool {
	changed := false
	for i, m := range rec.Medications {
		if owner := ownerOf(rec, m.ChildID, active); owner != m.ChildID {
			rec.Medications[i].ChildID = owner
			changed = true
		}
	}
	for i, e := range rec.Events {
		if owner := ownerOf(rec, e.ChildID, active); owner != e.ChildID {
			rec.Events[i].ChildID = owner
			changed = true
		}
	}
	for i, m := range rec.Milestones {
		if owner := ownerOf(rec, m.ChildID, active); owner != m.ChildID {
			rec.Milestones[i].ChildID = owner
			changed = true
		}
	}
	return changed
}

// rekeyDailyLogs stores every log under "<childId>:<date>". Keys are visited
// in sorted order; when two entries land on the same key the one already
// stored there wins, otherwise the first visited.
func rekeyDailyLogs(rec *models.Record, active string) bool {
	keys := make([]string, 0, len(rec.DailyLogs))
	for k := range rec.DailyLogs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changed := false
	out := make(map[string]models.DailyLog, len(rec.DailyLogs))
	canonical := make(map[string]bool, len(rec.DailyLogs))

	for _, key := range keys {
		log := rec.DailyLogs[key]

		childID := log.ChildID
		if active != "" {
			childID = ownerOf(rec, log.ChildID, active)
		}
		if childID == "" {
			out[key] = log
			continue
		}

		date := log.Date
		if date == "" {
			date = dateFromKey(key)
		}

		nextKey := models.DailyLogKey(childID, date)
		if nextKey != key || log.ChildID != childID || log.Date != date {
			changed = true
		}
		log.ChildID = childID
		log.Date = date

		if _, taken := out[nextKey]; taken {
			changed = true
			if canonical[nextKey] || nextKey != key {
				continue
			}
		}
		out[nextKey] = log
		canonical[nextKey] = nextKey == key
	}

	rec.DailyLogs = out
	return changed
}

// dateFromKey reads the date out of a legacy "<childId>:<date>" or bare date key.
func dateFromKey(key string) string {
	if strings.Contains(key, ":") {
		return strings.Split(key, ":")[1]
	}
	return key
}
