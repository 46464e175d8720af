package domain

import (
	"time"

	"github.com/khaja-app/khaja/internal/catalog"
	"github.com/khaja-app/khaja/internal/entitlement"
)

// View projects the aggregate into the evaluator's ledger view at now.
func (s *Subscription) View(now time.Time) entitlement.LedgerView {
	used := make(map[catalog.ServiceID]int, len(s.Usage))
	for i := range s.Usage {
		used[s.Usage[i].ServiceID] = s.Usage[i].Quantity
	}
	return entitlement.LedgerView{
		PlanID:    s.PlanID,
		Active:    s.Status == SubscriptionStatusActive,
		AgeMonths: s.AgeMonths(now),
		TasksUsed: s.TasksUsed,
		Used:      used,
	}
}

// ApplyUsage returns a copy of the aggregate with one task debited and the
// per-service ledger row upserted. The receiver is left untouched; callers
// persist the copy under a concurrency guard.
func (s *Subscription) ApplyUsage(serviceID catalog.ServiceID, quantity int, now time.Time) Subscription {
	next := *s
	next.TasksUsed++
	next.UpdatedAt = now

	next.Usage = make([]ServiceUsage, len(s.Usage))
	copy(next.Usage, s.Usage)

	lastUsed := now
	for i := range next.Usage {
		if next.Usage[i].ServiceID == serviceID {
			next.Usage[i].Quantity += quantity
			next.Usage[i].LastUsedAt = &lastUsed
			next.Usage[i].UpdatedAt = now
			return next
		}
	}

	next.Usage = append(next.Usage, ServiceUsage{
		SubscriptionID: s.ID,
		ServiceID:      serviceID,
		Quantity:       quantity,
		LastUsedAt:     &lastUsed,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	return next
}
