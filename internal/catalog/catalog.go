// internal/catalog/catalog.go
package catalog

import (
	"fmt"
	"sort"
)

// PlanID identifies a billable plan component
type PlanID string

// Plan IDs for the retention funnels
const (
	PlanGrowth    PlanID = "growth"
	PlanScaleAds  PlanID = "scaleads"
	PlanDedicated PlanID = "dedicated"
)

// Reimbursement commission rates (percent)
const (
	RateWithPlatform = 9  // a platform plan remains active after the change
	RateStandalone   = 15 // reimbursement is the only remaining service
)

// Plan represents a billable plan component
type Plan struct {
	ID          PlanID  `json:"id" yaml:"id"`
	DisplayName string  `json:"display_name" yaml:"display_name"`
	Monthly     float64 `json:"monthly" yaml:"monthly"`
	AddOn       bool    `json:"add_on" yaml:"add_on"` // not billed standalone
}

// Catalog is the immutable price table. It is built once at startup and
// never mutates afterwards.
type Catalog struct {
	plans map[PlanID]Plan
}

// Custom errors
type UnknownPlanError struct {
	ID PlanID
}

func (e *UnknownPlanError) Error() string {
	return fmt.Sprintf("unknown plan: %s", e.ID)
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := New([]Plan{
		{ID: PlanGrowth, DisplayName: "Growth Plan", Monthly: 49},
		{ID: PlanScaleAds, DisplayName: "ScaleAds Self Service", Monthly: 299},
		{ID: PlanDedicated, DisplayName: "Dedicated Specialist", Monthly: 200, AddOn: true},
	})
	if err != nil {
		// The built-in table is validated by tests; a bad entry here is a bug.
		panic(err)
	}
	return c
}

// New builds a catalog from a plan list. Prices must be non-negative and
// every plan ID must be unique.
func New(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("catalog requires at least one plan")
	}

	m := make(map[PlanID]Plan, len(plans))
	for _, p := range plans {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog plan without id")
		}
		if p.Monthly < 0 {
			return nil, fmt.Errorf("catalog plan %s has negative price %.2f", p.ID, p.Monthly)
		}
		if _, ok := m[p.ID]; ok {
			return nil, fmt.Errorf("catalog plan %s listed twice", p.ID)
		}
		m[p.ID] = p
	}

	return &Catalog{plans: m}, nil
}

// PriceOf returns the monthly price for a plan
func (c *Catalog) PriceOf(id PlanID) (float64, error) {
	p, ok := c.plans[id]
	if !ok {
		return 0, &UnknownPlanError{ID: id}
	}
	return p.Monthly, nil
}

// Get retrieves a plan by ID
func (c *Catalog) Get(id PlanID) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, &UnknownPlanError{ID: id}
	}
	return p, nil
}

// List returns all plans ordered by monthly price
func (c *Catalog) List() []Plan {
	plans := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].Monthly == plans[j].Monthly {
			return plans[i].ID < plans[j].ID
		}
		return plans[i].Monthly < plans[j].Monthly
	})
	return plans
}

// ReimbursementRate returns the commission rate that applies after a change.
// The rate is derived from whether a platform plan remains active, never
// computed independently of that fact.
func ReimbursementRate(platformRemains bool) int {
	if platformRemains {
		return RateWithPlatform
	}
	return RateStandalone
}
