package reconcile

import (
	"strings"

	"github.com/localnerve/stepio/internal/models"
)

// AdminOverride grants the pro plan to operator accounts at load time.
type AdminOverride struct {
	Enabled bool
	// Email restricts the override to one account. Empty matches every account.
	Email string
}

// Apply upgrades rec to an active pro plan when the override matches email.
// It reports whether the plan changed.
func (o AdminOverride) Apply(rec models.Record, email string) (models.Record, bool) {
	if !o.Enabled || email == "" {
		return rec, false
	}
	if o.Email != "" && !strings.EqualFold(o.Email, email) {
		return rec, false
	}
	if rec.Plan.IsPro() {
		return rec, false
	}
	rec.Plan = models.SubscriptionPlan{Tier: models.TierPro, Status: models.PlanActive}
	return rec, true
}
