package entitlements

import (
	"strings"

	"github.com/sivind/sivind-backend/app/models"
)

type Plan string

const (
	PlanFree   Plan = "free"
	PlanGrowth Plan = "growth"
	PlanPro    Plan = "pro"
)

// ParsePlan maps a configured plan name onto a known plan. Unknown names are
// reported instead of falling back to free.
func ParsePlan(name string) (Plan, bool) {
	switch Plan(strings.ToLower(strings.TrimSpace(name))) {
	case PlanFree:
		return PlanFree, true
	case PlanGrowth:
		return PlanGrowth, true
	case PlanPro:
		return PlanPro, true
	default:
		return "", false
	}
}

// Features describes what a store gets on a given plan.
type Features struct {
	Plan                 Plan `json:"plan"`
	WidgetEnabled        bool `json:"widget_enabled"`
	MonthlyConversations int  `json:"monthly_conversations"` // 0 = unlimited
	CustomBranding       bool `json:"custom_branding"`
	AIReplies            bool `json:"ai_replies"`
}

// ForPlan returns the feature set for a plan
func ForPlan(plan Plan) Features {
	switch plan {
	case PlanPro:
		return Features{Plan: PlanPro, WidgetEnabled: true, MonthlyConversations: 0, CustomBranding: true, AIReplies: true}
	case PlanGrowth:
		return Features{Plan: PlanGrowth, WidgetEnabled: true, MonthlyConversations: 2000, CustomBranding: false, AIReplies: true}
	default:
		return Features{Plan: PlanFree, WidgetEnabled: true, MonthlyConversations: 100, CustomBranding: false, AIReplies: false}
	}
}

// Effective resolves the features granted by a stored subscription. A missing
// or non-entitling record grants the free plan.
func Effective(sub *models.Subscription) Features {
	if !sub.IsEntitling() {
		return ForPlan(PlanFree)
	}
	plan, ok := ParsePlan(sub.Plan)
	if !ok {
		return ForPlan(PlanFree)
	}
	return ForPlan(plan)
}
