package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()

	assert.Len(t, c.Services(), 6)
	assert.Len(t, c.Plans(), 4)

	limit, ok := c.Limit(PlanForfait1, ServiceTontePelouse)
	require.True(t, ok)
	assert.Equal(t, 100, limit)

	limit, ok = c.Limit(PlanForfait4, ServiceTontePelouse)
	require.True(t, ok)
	assert.Equal(t, Unlimited, limit)

	_, ok = c.Limit(PlanForfait1, ServiceDepannageSerrurier)
	assert.False(t, ok)
}

func TestPlanTiersAreSupersets(t *testing.T) {
	c := Default()
	plans := c.Plans()
	require.Len(t, plans, 4)

	for i := 1; i < len(plans); i++ {
		for serviceID := range plans[i-1].Limits {
			_, ok := plans[i].Limits[serviceID]
			assert.True(t, ok, "plan %s should cover %s from %s", plans[i].ID, serviceID, plans[i-1].ID)
		}
	}
}

func TestNewRejectsUnknownUnit(t *testing.T) {
	_, err := New(
		[]Service{{ID: "x", Name: "X", Unit: "litres", Eligibility: EligibilityImmediate}},
		DefaultPlans(),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit")
}

func TestNewRejectsUnknownEligibility(t *testing.T) {
	_, err := New(
		[]Service{{ID: "x", Name: "X", Unit: UnitCount, Eligibility: "someday"}},
		nil,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown eligibility")
}

func TestNewRejectsLimitForUnknownService(t *testing.T) {
	_, err := New(
		DefaultServices(),
		[]Plan{{ID: "forfait_x", MaxTasks: 1, Limits: map[ServiceID]int{"ramonage": 3}}},
	)
	require.Error(t, err)
}

func TestNewRejectsZeroLimit(t *testing.T) {
	_, err := New(
		DefaultServices(),
		[]Plan{{ID: "forfait_x", MaxTasks: 1, Limits: map[ServiceID]int{ServiceTontePelouse: 0}}},
	)
	require.Error(t, err)
}

func TestNewRejectsNonPositiveMaxTasks(t *testing.T) {
	_, err := New(
		DefaultServices(),
		[]Plan{{ID: "forfait_x", MaxTasks: 0, Limits: map[ServiceID]int{ServiceTontePelouse: 10}}},
	)
	require.Error(t, err)
}

func TestServicesPreserveCatalogOrder(t *testing.T) {
	c := Default()

	var ids []ServiceID
	for _, svc := range c.Services() {
		ids = append(ids, svc.ID)
	}
	assert.Equal(t, []ServiceID{
		ServiceTontePelouse,
		ServiceNettoyageInterieur,
		ServicePetitsTravaux,
		ServiceRefectionPeinture,
		ServiceDepannageSerrurier,
		ServiceDepannagePlomberie,
	}, ids)
}

func TestStaticHolder(t *testing.T) {
	c := Default()
	h := NewStaticHolder(c)
	assert.Same(t, c, h.Get())
}
