package domain

import (
	"testing"
	"time"

	"github.com/khaja-app/khaja/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeMonths(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		now   time.Time
		want  int
	}{
		{"same month", date(2026, time.January, 15), date(2026, time.January, 31), 0},
		{"next month, earlier day", date(2026, time.January, 31), date(2026, time.February, 1), 1},
		{"one year", date(2025, time.March, 10), date(2026, time.March, 9), 12},
		{"across year boundary", date(2025, time.November, 20), date(2026, time.February, 2), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeMonths(tt.start, tt.now))
		})
	}
}

func TestApplyUsageLeavesReceiverUntouched(t *testing.T) {
	now := date(2026, time.April, 10)
	sub := Subscription{
		ID:        1,
		PlanID:    catalog.PlanForfait2,
		Status:    SubscriptionStatusActive,
		TasksUsed: 1,
		Usage: []ServiceUsage{
			{SubscriptionID: 1, ServiceID: catalog.ServiceTontePelouse, Quantity: 80},
		},
	}

	next := sub.ApplyUsage(catalog.ServiceTontePelouse, 20, now)

	assert.Equal(t, 1, sub.TasksUsed)
	assert.Equal(t, 80, sub.Usage[0].Quantity)
	assert.Nil(t, sub.Usage[0].LastUsedAt)

	assert.Equal(t, 2, next.TasksUsed)
	require.Len(t, next.Usage, 1)
	assert.Equal(t, 100, next.Usage[0].Quantity)
	require.NotNil(t, next.Usage[0].LastUsedAt)
	assert.Equal(t, now, *next.Usage[0].LastUsedAt)
}

func TestApplyUsageAppendsNewServiceRow(t *testing.T) {
	now := date(2026, time.April, 10)
	sub := Subscription{ID: 7, PlanID: catalog.PlanForfait3, Status: SubscriptionStatusActive}

	next := sub.ApplyUsage(catalog.ServicePetitsTravaux, 2, now)

	require.Len(t, next.Usage, 1)
	assert.Equal(t, sub.ID, next.Usage[0].SubscriptionID)
	assert.Equal(t, catalog.ServicePetitsTravaux, next.Usage[0].ServiceID)
	assert.Equal(t, 2, next.Usage[0].Quantity)
	assert.Empty(t, sub.Usage)
}

func TestViewProjectsLedgerState(t *testing.T) {
	start := date(2025, time.October, 5)
	sub := Subscription{
		PlanID:    catalog.PlanForfait2,
		Status:    SubscriptionStatusActive,
		StartAt:   start,
		TasksUsed: 1,
		Usage: []ServiceUsage{
			{ServiceID: catalog.ServiceTontePelouse, Quantity: 120},
			{ServiceID: catalog.ServicePetitsTravaux, Quantity: 1},
		},
	}

	view := sub.View(date(2026, time.April, 1))

	assert.True(t, view.Active)
	assert.Equal(t, catalog.PlanForfait2, view.PlanID)
	assert.Equal(t, 6, view.AgeMonths)
	assert.Equal(t, 1, view.TasksUsed)
	assert.Equal(t, 120, view.Used[catalog.ServiceTontePelouse])
	assert.Equal(t, 1, view.Used[catalog.ServicePetitsTravaux])
}

func TestViewInactiveStatuses(t *testing.T) {
	for _, status := range []SubscriptionStatus{
		SubscriptionStatusSuspended,
		SubscriptionStatusCanceled,
		SubscriptionStatusExpired,
	} {
		sub := Subscription{Status: status, StartAt: date(2026, time.January, 1)}
		assert.False(t, sub.View(date(2026, time.February, 1)).Active, "status %s", status)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, SubscriptionStatusActive.IsTerminal())
	assert.False(t, SubscriptionStatusSuspended.IsTerminal())
	assert.True(t, SubscriptionStatusCanceled.IsTerminal())
	assert.True(t, SubscriptionStatusExpired.IsTerminal())
}
