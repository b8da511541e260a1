package billing

import (
	"fmt"
	"strings"

	"github.com/learnfox/LearnFox/app/models"
	"github.com/learnfox/LearnFox/internal/pkg/entitlements"
)

// PlanPrice is one sellable plan: an entitlement tier at a billing cadence,
// priced in minor units and mapped to the gateway's price reference.
type PlanPrice struct {
	Tier            entitlements.Plan
	BillingPeriod   string
	AmountCents     int64
	Currency        string
	GatewayPriceRef string
}

// The plan catalog is code, not data: the set of sellable plans changes with
// releases, and a closed table keeps gateway price refs reviewable.
var planCatalog = []PlanPrice{
	{Tier: entitlements.PlanPro, BillingPeriod: models.BillingPeriodMonthly, AmountCents: 2999, Currency: "usd", GatewayPriceRef: "price_pro_monthly"},
	{Tier: entitlements.PlanPro, BillingPeriod: models.BillingPeriodYearly, AmountCents: 29990, Currency: "usd", GatewayPriceRef: "price_pro_yearly"},
	{Tier: entitlements.PlanPremium, BillingPeriod: models.BillingPeriodMonthly, AmountCents: 4999, Currency: "usd", GatewayPriceRef: "price_premium_monthly"},
	{Tier: entitlements.PlanPremium, BillingPeriod: models.BillingPeriodYearly, AmountCents: 49990, Currency: "usd", GatewayPriceRef: "price_premium_yearly"},
}

// LookupPlan resolves a tier + billing period to its price. Free is not a
// sellable plan and resolves to a validation error.
func LookupPlan(tier entitlements.Plan, billingPeriod string) (PlanPrice, error) {
	period := NormalizeBillingPeriod(billingPeriod)
	if period == "" {
		return PlanPrice{}, fmt.Errorf("%w: unknown billing period %q", ErrValidation, billingPeriod)
	}
	for _, p := range planCatalog {
		if p.Tier == tier && p.BillingPeriod == period {
			return p, nil
		}
	}
	return PlanPrice{}, fmt.Errorf("%w: no plan for tier %q period %q", ErrValidation, tier, period)
}

// PlanForGatewayPrice reverse-maps a gateway price reference to the catalog
// entry, for webhook payloads that only carry the price ref.
func PlanForGatewayPrice(priceRef string) (PlanPrice, bool) {
	ref := strings.TrimSpace(priceRef)
	for _, p := range planCatalog {
		if p.GatewayPriceRef == ref {
			return p, true
		}
	}
	return PlanPrice{}, false
}

// NormalizeBillingPeriod maps inputs to the two supported cadences, empty
// string when unknown.
func NormalizeBillingPeriod(period string) string {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case models.BillingPeriodMonthly, "month":
		return models.BillingPeriodMonthly
	case models.BillingPeriodYearly, "year", "annual":
		return models.BillingPeriodYearly
	default:
		return ""
	}
}
