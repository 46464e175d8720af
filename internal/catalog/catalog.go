// Package catalog holds the immutable plan and service reference data the
// entitlement evaluator is built on.
package catalog

import (
	"fmt"
)

// ServiceID identifies a service type a client may request.
type ServiceID string

// PlanID identifies a subscription tier.
type PlanID string

const (
	PlanForfait1 PlanID = "forfait1"
	PlanForfait2 PlanID = "forfait2"
	PlanForfait3 PlanID = "forfait3"
	PlanForfait4 PlanID = "forfait4"
)

const (
	ServiceTontePelouse       ServiceID = "tonte_pelouse"
	ServiceNettoyageInterieur ServiceID = "nettoyage_interieur"
	ServicePetitsTravaux      ServiceID = "petits_travaux"
	ServiceRefectionPeinture  ServiceID = "refection_peinture"
	ServiceDepannageSerrurier ServiceID = "depannage_serrurier"
	ServiceDepannagePlomberie ServiceID = "depannage_plomberie"
)

// Unit is the unit of measure a service is requested in.
type Unit string

const (
	UnitSquareMeter  Unit = "m2"
	UnitCount        Unit = "unit"
	UnitIntervention Unit = "intervention"
)

// Eligibility classifies when a service unlocks within a plan.
type Eligibility string

const (
	// EligibilityImmediate services are available from day one.
	EligibilityImmediate Eligibility = "immediate"
	// EligibilityDelayed services unlock after a minimum subscription age.
	EligibilityDelayed Eligibility = "delayed"
)

// Unlimited is the sentinel limit for services without a quantity cap.
const Unlimited = -1

// Service is an immutable service catalog entry.
type Service struct {
	ID          ServiceID   `mapstructure:"id" json:"id"`
	Name        string      `mapstructure:"name" json:"name"`
	Unit        Unit        `mapstructure:"unit" json:"unit"`
	Eligibility Eligibility `mapstructure:"eligibility" json:"eligibility"`
}

// Plan is an immutable subscription tier definition.
type Plan struct {
	ID PlanID `mapstructure:"id" json:"id"`
	// MonthlyPriceCents is informational only. Billing is an external
	// collaborator concern.
	MonthlyPriceCents int64 `mapstructure:"monthly_price_cents" json:"monthly_price_cents"`
	// MaxTasks is the count of service-request events allowed per billing
	// month, shared across every service in the plan.
	MaxTasks int `mapstructure:"max_tasks" json:"max_tasks"`
	// Limits maps service IDs to per-month quantity limits. Unlimited (-1)
	// means no quantity cap.
	Limits map[ServiceID]int `mapstructure:"limits" json:"limits"`
}

// Catalog is the validated, immutable snapshot of plans and services.
// Limit lookups are precomputed at construction.
type Catalog struct {
	services map[ServiceID]Service
	plans    map[PlanID]Plan
	order    []ServiceID
}

// New validates the reference data and builds the lookup tables.
func New(services []Service, plans []Plan) (*Catalog, error) {
	c := &Catalog{
		services: make(map[ServiceID]Service, len(services)),
		plans:    make(map[PlanID]Plan, len(plans)),
		order:    make([]ServiceID, 0, len(services)),
	}

	for _, svc := range services {
		if svc.ID == "" {
			return nil, fmt.Errorf("service with empty id")
		}
		if _, ok := c.services[svc.ID]; ok {
			return nil, fmt.Errorf("duplicate service %q", svc.ID)
		}
		switch svc.Unit {
		case UnitSquareMeter, UnitCount, UnitIntervention:
		default:
			return nil, fmt.Errorf("service %q: unknown unit %q", svc.ID, svc.Unit)
		}
		switch svc.Eligibility {
		case EligibilityImmediate, EligibilityDelayed:
		default:
			return nil, fmt.Errorf("service %q: unknown eligibility %q", svc.ID, svc.Eligibility)
		}
		c.services[svc.ID] = svc
		c.order = append(c.order, svc.ID)
	}

	for _, plan := range plans {
		if plan.ID == "" {
			return nil, fmt.Errorf("plan with empty id")
		}
		if _, ok := c.plans[plan.ID]; ok {
			return nil, fmt.Errorf("duplicate plan %q", plan.ID)
		}
		if plan.MaxTasks <= 0 {
			return nil, fmt.Errorf("plan %q: max_tasks must be positive", plan.ID)
		}
		for serviceID, limit := range plan.Limits {
			if _, ok := c.services[serviceID]; !ok {
				return nil, fmt.Errorf("plan %q: limit references unknown service %q", plan.ID, serviceID)
			}
			if limit < Unlimited || limit == 0 {
				return nil, fmt.Errorf("plan %q: invalid limit %d for service %q", plan.ID, limit, serviceID)
			}
		}
		c.plans[plan.ID] = plan
	}

	return c, nil
}

// Service returns the catalog entry for id.
func (c *Catalog) Service(id ServiceID) (Service, bool) {
	svc, ok := c.services[id]
	return svc, ok
}

// Plan returns the plan definition for id.
func (c *Catalog) Plan(id PlanID) (Plan, bool) {
	plan, ok := c.plans[id]
	return plan, ok
}

// Limit returns the per-month quantity limit for (plan, service). The second
// result is false when the plan does not carry the service at all.
func (c *Catalog) Limit(planID PlanID, serviceID ServiceID) (int, bool) {
	plan, ok := c.plans[planID]
	if !ok {
		return 0, false
	}
	limit, ok := plan.Limits[serviceID]
	return limit, ok
}

// Services returns all services in catalog order.
func (c *Catalog) Services() []Service {
	out := make([]Service, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.services[id])
	}
	return out
}

// Plans returns all plan definitions.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, id := range []PlanID{PlanForfait1, PlanForfait2, PlanForfait3, PlanForfait4} {
		if plan, ok := c.plans[id]; ok {
			out = append(out, plan)
		}
	}
	for id, plan := range c.plans {
		switch id {
		case PlanForfait1, PlanForfait2, PlanForfait3, PlanForfait4:
		default:
			out = append(out, plan)
		}
	}
	return out
}
