package billing

import (
	"testing"
	"time"

	"github.com/learnfox/LearnFox/app/models"
	"github.com/learnfox/LearnFox/internal/pkg/entitlements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSubscription(status string) *models.SubscriptionRecord {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return &models.SubscriptionRecord{
		SubscriptionID:        "11111111-1111-1111-1111-111111111111",
		UserID:                1,
		ActiveSlot:            models.OpenSlot,
		GatewaySubscriptionID: "gwsub_1",
		PlanTier:              string(entitlements.PlanPro),
		BillingPeriod:         models.BillingPeriodMonthly,
		AmountCents:           2999,
		Currency:              "usd",
		Status:                status,
		CurrentPeriodStart:    &start,
		CurrentPeriodEnd:      &end,
	}
}

func TestNewSubscriptionFromCheckout(t *testing.T) {
	plan, err := LookupPlan(entitlements.PlanPro, models.BillingPeriodMonthly)
	require.NoError(t, err)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	sub := NewSubscriptionFromCheckout(CheckoutParams{
		UserID:                42,
		Plan:                  plan,
		GatewayCustomerID:     "cus_1",
		GatewaySubscriptionID: "gwsub_1",
		PeriodStart:           start,
		PeriodEnd:             end,
	})

	assert.NotEmpty(t, sub.SubscriptionID)
	assert.Equal(t, models.OpenSlot, sub.ActiveSlot)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "pro", sub.PlanTier)
	assert.Equal(t, int64(2999), sub.AmountCents)
	assert.True(t, sub.IsOpen())

	trial := NewSubscriptionFromCheckout(CheckoutParams{UserID: 42, Plan: plan, PeriodStart: start, PeriodEnd: end, Trialing: true})
	assert.Equal(t, models.SubscriptionStatusTrialing, trial.Status)
}

func TestApplyRenewal(t *testing.T) {
	sub := openSubscription(models.SubscriptionStatusPastDue)
	oldEnd := *sub.CurrentPeriodEnd

	newStart := oldEnd
	newEnd := oldEnd.AddDate(0, 1, 0)
	tr := ApplyRenewal(sub, newStart, newEnd)
	require.Equal(t, OutcomeApplied, tr.Outcome)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.CurrentPeriodEnd.Equal(newEnd))

	// Replaying the same renewal changes nothing.
	tr = ApplyRenewal(sub, newStart, newEnd)
	assert.Equal(t, OutcomeNoOp, tr.Outcome)
	assert.True(t, sub.CurrentPeriodEnd.Equal(newEnd))

	// An out-of-order older renewal must not roll the period back.
	tr = ApplyRenewal(sub, oldEnd.AddDate(0, -1, 0), oldEnd)
	assert.Equal(t, OutcomeNoOp, tr.Outcome)
	assert.True(t, sub.CurrentPeriodEnd.Equal(newEnd))
}

func TestApplyRenewalTerminalIsAbsorbing(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	sub := openSubscription(models.SubscriptionStatusActive)
	require.Equal(t, OutcomeApplied, TerminateFromGateway(sub, now).Outcome)

	tr := ApplyRenewal(sub, now, now.AddDate(0, 1, 0))
	assert.Equal(t, OutcomeNoOp, tr.Outcome)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
}

func TestMarkPastDue(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		outcome Outcome
	}{
		{"active becomes past due", models.SubscriptionStatusActive, OutcomeApplied},
		{"trialing becomes past due", models.SubscriptionStatusTrialing, OutcomeApplied},
		{"already past due", models.SubscriptionStatusPastDue, OutcomeNoOp},
		{"canceled stays canceled", models.SubscriptionStatusCanceled, OutcomeNoOp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := openSubscription(tt.status)
			tr := MarkPastDue(sub)
			assert.Equal(t, tt.outcome, tr.Outcome)
			if tr.Outcome == OutcomeApplied {
				assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)
			}
		})
	}
}

func TestRequestCancelDeferred(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	sub := openSubscription(models.SubscriptionStatusActive)
	end := *sub.CurrentPeriodEnd

	tr := RequestCancel(sub, false, now)
	require.Equal(t, OutcomeApplied, tr.Outcome)
	assert.True(t, sub.CancelAtPeriodEnd)
	// Deferred cancellation keeps access until the paid period runs out.
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.CurrentPeriodEnd.Equal(end))
	assert.True(t, sub.IsOpen())

	tr = RequestCancel(sub, false, now)
	assert.Equal(t, OutcomeNoOp, tr.Outcome)
}

func TestRequestCancelImmediate(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	sub := openSubscription(models.SubscriptionStatusActive)

	tr := RequestCancel(sub, true, now)
	require.Equal(t, OutcomeApplied, tr.Outcome)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
	assert.False(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CanceledAt)
	assert.True(t, sub.CanceledAt.Equal(now))
	// The open slot is vacated so a later checkout can insert a new row.
	assert.Equal(t, sub.SubscriptionID, sub.ActiveSlot)

	tr = RequestCancel(sub, true, now.Add(time.Hour))
	assert.Equal(t, OutcomeNoOp, tr.Outcome)
	assert.True(t, sub.CanceledAt.Equal(now))
}

func TestReactivate(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	sub := openSubscription(models.SubscriptionStatusActive)
	require.Equal(t, OutcomeApplied, RequestCancel(sub, false, now).Outcome)
	end := *sub.CurrentPeriodEnd

	tr := Reactivate(sub)
	require.Equal(t, OutcomeApplied, tr.Outcome)
	assert.False(t, sub.CancelAtPeriodEnd)
	// The billing anchor must survive the cancel/reactivate round trip.
	assert.True(t, sub.CurrentPeriodEnd.Equal(end))

	assert.Equal(t, OutcomeNoOp, Reactivate(sub).Outcome)

	require.Equal(t, OutcomeApplied, RequestCancel(sub, true, now).Outcome)
	assert.Equal(t, OutcomeRejected, Reactivate(sub).Outcome)
}

func TestChangePlan(t *testing.T) {
	premium, err := LookupPlan(entitlements.PlanPremium, models.BillingPeriodMonthly)
	require.NoError(t, err)
	pro, err := LookupPlan(entitlements.PlanPro, models.BillingPeriodMonthly)
	require.NoError(t, err)

	sub := openSubscription(models.SubscriptionStatusActive)
	end := *sub.CurrentPeriodEnd

	tr := ChangePlan(sub, premium)
	require.Equal(t, OutcomeApplied, tr.Outcome)
	assert.Equal(t, "premium", sub.PlanTier)
	assert.Equal(t, int64(4999), sub.AmountCents)
	// Mid-cycle changes never move the period boundary.
	assert.True(t, sub.CurrentPeriodEnd.Equal(end))

	assert.Equal(t, OutcomeNoOp, ChangePlan(sub, premium).Outcome)

	pastDue := openSubscription(models.SubscriptionStatusPastDue)
	assert.Equal(t, OutcomeRejected, ChangePlan(pastDue, pro).Outcome)

	canceled := openSubscription(models.SubscriptionStatusCanceled)
	assert.Equal(t, OutcomeRejected, ChangePlan(canceled, pro).Outcome)
}

func TestEffectiveTier(t *testing.T) {
	assert.Equal(t, entitlements.PlanFree, EffectiveTier(nil))

	sub := openSubscription(models.SubscriptionStatusActive)
	assert.Equal(t, entitlements.PlanPro, EffectiveTier(sub))

	sub.Status = models.SubscriptionStatusPastDue
	assert.Equal(t, entitlements.PlanPro, EffectiveTier(sub))

	sub.Status = models.SubscriptionStatusCanceled
	assert.Equal(t, entitlements.PlanFree, EffectiveTier(sub))
}
