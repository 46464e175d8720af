package entitlement

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/khaja-app/khaja/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	return NewEvaluator(catalog.NewStaticHolder(catalog.Default()), 6)
}

func activeView(planID catalog.PlanID, ageMonths int) LedgerView {
	return LedgerView{
		PlanID:    planID,
		Active:    true,
		AgeMonths: ageMonths,
		Used:      map[catalog.ServiceID]int{},
	}
}

func TestAvailableServicesByPlan(t *testing.T) {
	e := newEvaluator(t)

	tests := []struct {
		planID    catalog.PlanID
		ageMonths int
		want      []catalog.ServiceID
	}{
		{catalog.PlanForfait1, 0, []catalog.ServiceID{
			catalog.ServiceTontePelouse,
			catalog.ServiceNettoyageInterieur,
			catalog.ServicePetitsTravaux,
		}},
		{catalog.PlanForfait2, 0, []catalog.ServiceID{
			catalog.ServiceTontePelouse,
			catalog.ServiceNettoyageInterieur,
			catalog.ServicePetitsTravaux,
		}},
		{catalog.PlanForfait2, 6, []catalog.ServiceID{
			catalog.ServiceTontePelouse,
			catalog.ServiceNettoyageInterieur,
			catalog.ServicePetitsTravaux,
			catalog.ServiceRefectionPeinture,
		}},
		{catalog.PlanForfait3, 6, []catalog.ServiceID{
			catalog.ServiceTontePelouse,
			catalog.ServiceNettoyageInterieur,
			catalog.ServicePetitsTravaux,
			catalog.ServiceRefectionPeinture,
			catalog.ServiceDepannageSerrurier,
		}},
		{catalog.PlanForfait4, 12, []catalog.ServiceID{
			catalog.ServiceTontePelouse,
			catalog.ServiceNettoyageInterieur,
			catalog.ServicePetitsTravaux,
			catalog.ServiceRefectionPeinture,
			catalog.ServiceDepannageSerrurier,
			catalog.ServiceDepannagePlomberie,
		}},
	}

	for _, tt := range tests {
		got := e.AvailableServices(tt.planID, tt.ageMonths)
		ids := make([]catalog.ServiceID, 0, len(got))
		for _, av := range got {
			ids = append(ids, av.Service.ID)
		}
		assert.Equal(t, tt.want, ids, "plan %s at %d months", tt.planID, tt.ageMonths)
	}
}

func TestAvailableServicesUnknownPlan(t *testing.T) {
	e := newEvaluator(t)
	assert.Empty(t, e.AvailableServices("forfait9", 12))
}

// Growing tenure must never shrink the service list.
func TestAvailableServicesMonotonicInAge(t *testing.T) {
	e := newEvaluator(t)

	for _, planID := range []catalog.PlanID{catalog.PlanForfait1, catalog.PlanForfait2, catalog.PlanForfait3, catalog.PlanForfait4} {
		prev := 0
		for age := 0; age <= 24; age++ {
			got := len(e.AvailableServices(planID, age))
			assert.GreaterOrEqual(t, got, prev, "plan %s at %d months", planID, age)
			prev = got
		}
	}
}

func TestCanUseInactiveSubscription(t *testing.T) {
	e := newEvaluator(t)

	view := activeView(catalog.PlanForfait3, 12)
	view.Active = false

	d := e.CanUse(view, catalog.ServiceTontePelouse, 10)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonSubscriptionInactive, d.Reason)
}

func TestCanUseUnknownService(t *testing.T) {
	e := newEvaluator(t)

	d := e.CanUse(activeView(catalog.PlanForfait1, 0), "ramonage", 1)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonServiceNotAvailable, d.Reason)
}

func TestCanUseServiceOutsidePlan(t *testing.T) {
	e := newEvaluator(t)

	// forfait1 has no locksmith call-out at any tenure.
	d := e.CanUse(activeView(catalog.PlanForfait1, 24), catalog.ServiceDepannageSerrurier, 1)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonServiceNotAvailable, d.Reason)
}

func TestCanUseTenureGate(t *testing.T) {
	e := newEvaluator(t)

	d := e.CanUse(activeView(catalog.PlanForfait2, 5), catalog.ServiceRefectionPeinture, 2)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientTenure, d.Reason)

	d = e.CanUse(activeView(catalog.PlanForfait2, 6), catalog.ServiceRefectionPeinture, 2)
	assert.True(t, d.Allowed)
	require.NotNil(t, d.Remaining)
	assert.Equal(t, 3, *d.Remaining)
}

func TestCanUseQuantityBoundary(t *testing.T) {
	e := newEvaluator(t)

	// forfait1 allows exactly 100 m² of mowing per month.
	d := e.CanUse(activeView(catalog.PlanForfait1, 0), catalog.ServiceTontePelouse, 100)
	require.True(t, d.Allowed)
	require.NotNil(t, d.Remaining)
	assert.Equal(t, 0, *d.Remaining)

	d = e.CanUse(activeView(catalog.PlanForfait1, 0), catalog.ServiceTontePelouse, 101)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonServiceLimitExceeded, d.Reason)
	require.NotNil(t, d.Limit)
	require.NotNil(t, d.Used)
	assert.Equal(t, 100, *d.Limit)
	assert.Equal(t, 0, *d.Used)
}

// A limit refusal always carries the limit and the current usage on the
// wire, even when nothing has been consumed yet. An allowed decision at the
// exact boundary keeps its zero remaining.
func TestDecisionPayloadKeepsZeroCounters(t *testing.T) {
	e := newEvaluator(t)

	d := e.CanUse(activeView(catalog.PlanForfait1, 0), catalog.ServiceTontePelouse, 101)
	require.False(t, d.Allowed)
	refused, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(refused), `"limit":100`)
	assert.Contains(t, string(refused), `"used":0`)

	d = e.CanUse(activeView(catalog.PlanForfait1, 0), catalog.ServiceTontePelouse, 100)
	require.True(t, d.Allowed)
	allowed, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(allowed), `"remaining":0`)
	assert.Contains(t, string(allowed), `"used":0`)
}

// An absurdly large quantity must refuse on the per-service limit instead
// of wrapping the arithmetic and slipping through.
func TestCanUseHugeQuantityRefused(t *testing.T) {
	e := newEvaluator(t)

	view := activeView(catalog.PlanForfait1, 0)
	view.Used[catalog.ServiceTontePelouse] = 1

	d := e.CanUse(view, catalog.ServiceTontePelouse, math.MaxInt)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonServiceLimitExceeded, d.Reason)
	require.NotNil(t, d.Used)
	assert.Equal(t, 1, *d.Used)

	d = e.CanUse(activeView(catalog.PlanForfait1, 0), catalog.ServiceTontePelouse, math.MaxInt)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonServiceLimitExceeded, d.Reason)
}

func TestCanUseCumulativeUsage(t *testing.T) {
	e := newEvaluator(t)

	view := activeView(catalog.PlanForfait2, 1)
	view.Used[catalog.ServiceTontePelouse] = 200

	d := e.CanUse(view, catalog.ServiceTontePelouse, 50)
	require.True(t, d.Allowed)
	require.NotNil(t, d.Remaining)
	assert.Equal(t, 0, *d.Remaining)

	view.Used[catalog.ServiceTontePelouse] = 201
	d = e.CanUse(view, catalog.ServiceTontePelouse, 50)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonServiceLimitExceeded, d.Reason)
	require.NotNil(t, d.Used)
	assert.Equal(t, 201, *d.Used)
}

func TestCanUseMonthlyTaskQuota(t *testing.T) {
	e := newEvaluator(t)

	view := activeView(catalog.PlanForfait1, 0)
	view.TasksUsed = 1

	d := e.CanUse(view, catalog.ServiceTontePelouse, 1)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonMonthlyQuotaExceeded, d.Reason)
}

// The task quota gate runs before the per-service gates: once the quota is
// consumed, even an otherwise out-of-plan request reports the quota reason.
func TestGateOrderQuotaBeforeAvailability(t *testing.T) {
	e := newEvaluator(t)

	view := activeView(catalog.PlanForfait1, 0)
	view.TasksUsed = 1

	d := e.CanUse(view, catalog.ServiceDepannageSerrurier, 1)
	assert.Equal(t, ReasonMonthlyQuotaExceeded, d.Reason)
}

func TestCanUseUnlimitedService(t *testing.T) {
	e := newEvaluator(t)

	// forfait4 mowing is unlimited.
	view := activeView(catalog.PlanForfait4, 0)
	view.Used[catalog.ServiceTontePelouse] = 100000

	d := e.CanUse(view, catalog.ServiceTontePelouse, 5000)
	require.True(t, d.Allowed)
	require.NotNil(t, d.Limit)
	require.NotNil(t, d.Remaining)
	assert.Equal(t, catalog.Unlimited, *d.Limit)
	assert.Equal(t, catalog.Unlimited, *d.Remaining)
}

func TestCanUseSingleInterventionLimit(t *testing.T) {
	e := newEvaluator(t)

	// forfait3 allows one locksmith call-out per window.
	view := activeView(catalog.PlanForfait3, 8)
	d := e.CanUse(view, catalog.ServiceDepannageSerrurier, 1)
	require.True(t, d.Allowed)

	view.Used[catalog.ServiceDepannageSerrurier] = 1
	d = e.CanUse(view, catalog.ServiceDepannageSerrurier, 1)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonServiceLimitExceeded, d.Reason)
}

func TestReasonCodesAreStable(t *testing.T) {
	assert.Equal(t, "quota_mensuel_depasse", string(ReasonMonthlyQuotaExceeded))
	assert.Equal(t, "service_non_disponible", string(ReasonServiceNotAvailable))
	assert.Equal(t, "duree_insuffisante", string(ReasonInsufficientTenure))
	assert.Equal(t, "limite_service_depassee", string(ReasonServiceLimitExceeded))
	assert.Equal(t, "subscription_inactive", string(ReasonSubscriptionInactive))
}
