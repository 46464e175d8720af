// Package entitlement implements the pure evaluation rules deciding which
// services a subscription may consume, in what quantity, and why a request
// is refused. It performs no I/O; callers supply a ledger view and apply
// accepted mutations themselves.
package entitlement

import (
	"fmt"

	"github.com/khaja-app/khaja/internal/catalog"
)

// Reason is the closed enumeration of refusal codes. The string values are
// the wire contract and must not change.
type Reason string

const (
	ReasonMonthlyQuotaExceeded Reason = "quota_mensuel_depasse"
	ReasonServiceNotAvailable  Reason = "service_non_disponible"
	ReasonInsufficientTenure   Reason = "duree_insuffisante"
	ReasonServiceLimitExceeded Reason = "limite_service_depassee"
	ReasonSubscriptionInactive Reason = "subscription_inactive"
)

// Decision is the structured outcome of an entitlement check. Refusals are
// expected results, not errors.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	// Limit and Used accompany limite_service_depassee refusals and allowed
	// decisions, zero values included. Limit -1 means unlimited.
	Limit *int `json:"limit,omitempty"`
	Used  *int `json:"used,omitempty"`
	// Remaining is the headroom left after an allowed decision, -1 when
	// unlimited.
	Remaining *int `json:"remaining,omitempty"`
}

// AvailableService annotates a catalog service with its plan limit.
type AvailableService struct {
	Service catalog.Service `json:"service"`
	// Limit is the per-month quantity limit for the evaluated plan, -1 when
	// unlimited.
	Limit int `json:"limit"`
}

// LedgerView is the slice of subscription state the evaluator needs. The
// usage ledger package builds it from the persisted aggregate.
type LedgerView struct {
	PlanID    catalog.PlanID
	Active    bool
	AgeMonths int
	TasksUsed int
	Used      map[catalog.ServiceID]int
}

// Evaluator applies the plan and service catalog rules. It is safe for
// concurrent use; each evaluation reads one immutable catalog snapshot.
type Evaluator struct {
	catalogs *catalog.Holder
	// delayedAfterMonths is the tenure gate for delayed services.
	delayedAfterMonths int
}

func NewEvaluator(catalogs *catalog.Holder, delayedAfterMonths int) *Evaluator {
	if delayedAfterMonths <= 0 {
		delayedAfterMonths = 6
	}
	return &Evaluator{
		catalogs:           catalogs,
		delayedAfterMonths: delayedAfterMonths,
	}
}

// DelayedAfterMonths returns the tenure gate applied to delayed services.
func (e *Evaluator) DelayedAfterMonths() int {
	return e.delayedAfterMonths
}

// AvailableServices lists the services a subscriber on planID may request
// at the given tenure, in catalog order. Unknown plans yield an empty list.
// The result is monotonically non-decreasing in ageMonths: services only
// ever unlock as tenure grows.
func (e *Evaluator) AvailableServices(planID catalog.PlanID, ageMonths int) []AvailableService {
	snapshot := e.catalogs.Get()
	plan, ok := snapshot.Plan(planID)
	if !ok {
		return nil
	}

	out := make([]AvailableService, 0, len(plan.Limits))
	for _, svc := range snapshot.Services() {
		limit, ok := plan.Limits[svc.ID]
		if !ok {
			continue
		}
		if svc.Eligibility == catalog.EligibilityDelayed && ageMonths < e.delayedAfterMonths {
			continue
		}
		out = append(out, AvailableService{Service: svc, Limit: limit})
	}
	return out
}

// CanUse evaluates a (service, quantity) request against the ledger view.
// Gates run in a fixed order and short-circuit on the first refusal:
// inactive subscription, monthly task quota, service availability, tenure,
// per-service quantity limit.
func (e *Evaluator) CanUse(view LedgerView, serviceID catalog.ServiceID, quantity int) Decision {
	if !view.Active {
		return Decision{
			Allowed: false,
			Reason:  ReasonSubscriptionInactive,
			Message: "subscription is not active",
		}
	}

	snapshot := e.catalogs.Get()
	plan, ok := snapshot.Plan(view.PlanID)
	if !ok {
		return Decision{
			Allowed: false,
			Reason:  ReasonServiceNotAvailable,
			Message: fmt.Sprintf("plan %s has no service catalog", view.PlanID),
		}
	}

	if view.TasksUsed >= plan.MaxTasks {
		return Decision{
			Allowed: false,
			Reason:  ReasonMonthlyQuotaExceeded,
			Message: fmt.Sprintf("monthly task quota of %d reached", plan.MaxTasks),
		}
	}

	limit, inPlan := plan.Limits[serviceID]
	svc, known := snapshot.Service(serviceID)
	if !inPlan || !known {
		return Decision{
			Allowed: false,
			Reason:  ReasonServiceNotAvailable,
			Message: fmt.Sprintf("service %s is not part of plan %s", serviceID, view.PlanID),
		}
	}

	// Tenure is rechecked explicitly even though AvailableServices already
	// filters delayed services: eligibility that depends on age must never
	// ride on list-filtering alone.
	if svc.Eligibility == catalog.EligibilityDelayed && view.AgeMonths < e.delayedAfterMonths {
		return Decision{
			Allowed: false,
			Reason:  ReasonInsufficientTenure,
			Message: fmt.Sprintf("service %s unlocks after %d months, subscription is %d months old", serviceID, e.delayedAfterMonths, view.AgeMonths),
		}
	}

	// The quantity is checked against the remaining headroom rather than
	// summed with used, so oversized requests cannot wrap the comparison.
	used := view.Used[serviceID]
	if limit != catalog.Unlimited && quantity > limit-used {
		return Decision{
			Allowed: false,
			Reason:  ReasonServiceLimitExceeded,
			Message: fmt.Sprintf("requesting %d would exceed the monthly limit of %d (already used %d)", quantity, limit, used),
			Limit:   intRef(limit),
			Used:    intRef(used),
		}
	}

	remaining := catalog.Unlimited
	if limit != catalog.Unlimited {
		remaining = limit - used - quantity
	}
	return Decision{
		Allowed:   true,
		Limit:     intRef(limit),
		Used:      intRef(used),
		Remaining: intRef(remaining),
	}
}

func intRef(v int) *int {
	return &v
}
