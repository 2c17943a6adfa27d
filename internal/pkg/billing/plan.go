package billing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sivind/sivind-backend/internal/pkg/entitlements"
)

// PlanCatalog maps processor price ids to internal plans. It is immutable once built.
type PlanCatalog struct {
	byPrice map[string]entitlements.Plan
}

// NewPlanCatalog copies prices into a catalog. Empty price ids and unknown plans are rejected.
func NewPlanCatalog(prices map[string]entitlements.Plan) (PlanCatalog, error) {
	byPrice := make(map[string]entitlements.Plan, len(prices))
	for priceID, plan := range prices {
		id := strings.TrimSpace(priceID)
		if id == "" {
			return PlanCatalog{}, fmt.Errorf("plan catalog: empty price id")
		}
		known, ok := entitlements.ParsePlan(string(plan))
		if !ok {
			return PlanCatalog{}, fmt.Errorf("plan catalog: price %q maps to unknown plan %q", id, plan)
		}
		byPrice[id] = known
	}
	return PlanCatalog{byPrice: byPrice}, nil
}

// ParsePlanCatalog reads "price_id=plan" pairs separated by commas or newlines.
func ParsePlanCatalog(raw string) (PlanCatalog, error) {
	prices := make(map[string]entitlements.Plan)
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })
	for _, field := range fields {
		entry := strings.TrimSpace(field)
		if entry == "" {
			continue
		}
		priceID, planName, ok := strings.Cut(entry, "=")
		if !ok {
			return PlanCatalog{}, fmt.Errorf("plan catalog: entry %q is not price_id=plan", entry)
		}
		priceID = strings.TrimSpace(priceID)
		plan, known := entitlements.ParsePlan(planName)
		if !known {
			return PlanCatalog{}, fmt.Errorf("plan catalog: price %q maps to unknown plan %q", priceID, strings.TrimSpace(planName))
		}
		if existing, dup := prices[priceID]; dup && existing != plan {
			return PlanCatalog{}, fmt.Errorf("plan catalog: price %q mapped to both %q and %q", priceID, existing, plan)
		}
		prices[priceID] = plan
	}
	return NewPlanCatalog(prices)
}

// Resolve looks up the plan bought with priceID. There is no fallback plan.
func (c PlanCatalog) Resolve(priceID string) (entitlements.Plan, bool) {
	plan, ok := c.byPrice[strings.TrimSpace(priceID)]
	return plan, ok
}

// Len returns the number of mapped prices.
func (c PlanCatalog) Len() int {
	return len(c.byPrice)
}

// PriceIDs returns the mapped price ids in sorted order.
func (c PlanCatalog) PriceIDs() []string {
	ids := make([]string, 0, len(c.byPrice))
	for id := range c.byPrice {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
