package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/learnfox/LearnFox/app/models"
	"github.com/learnfox/LearnFox/internal/pkg/entitlements"
)

// Outcome classifies the result of a state machine transition. There is no
// error case: every (state, event) pair resolves to one of these, so
// out-of-order or duplicated deliveries can never crash processing.
type Outcome string

const (
	// OutcomeApplied means the record was mutated and must be persisted.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoOp means the record already reflects the event; callers
	// report success without writing.
	OutcomeNoOp Outcome = "no_op"
	// OutcomeRejected means a user-initiated operation cannot apply in the
	// current state and the end state does not match the caller's intent.
	// Webhook-driven transitions never produce it.
	OutcomeRejected Outcome = "rejected"
)

// Transition is the result of applying one event to one subscription record.
type Transition struct {
	Outcome Outcome
	Reason  string
}

func applied() Transition {
	return Transition{Outcome: OutcomeApplied}
}

func noOp(reason string) Transition {
	return Transition{Outcome: OutcomeNoOp, Reason: reason}
}

func rejected(reason string) Transition {
	return Transition{Outcome: OutcomeRejected, Reason: reason}
}

// CheckoutParams carries the gateway confirmation that creates a local
// subscription record.
type CheckoutParams struct {
	UserID                uint
	Plan                  PlanPrice
	GatewayCustomerID     string
	GatewaySubscriptionID string
	PeriodStart           time.Time
	PeriodEnd             time.Time
	Trialing              bool
}

// NewSubscriptionFromCheckout builds the open record for a confirmed
// checkout. Uniqueness per user is enforced by the storage layer's
// (user_id, active_slot) index, not here.
func NewSubscriptionFromCheckout(p CheckoutParams) *models.SubscriptionRecord {
	status := models.SubscriptionStatusActive
	if p.Trialing {
		status = models.SubscriptionStatusTrialing
	}
	start := p.PeriodStart
	end := p.PeriodEnd
	return &models.SubscriptionRecord{
		SubscriptionID:        uuid.NewString(),
		UserID:                p.UserID,
		ActiveSlot:            models.OpenSlot,
		GatewayCustomerID:     p.GatewayCustomerID,
		GatewaySubscriptionID: p.GatewaySubscriptionID,
		PlanTier:              string(p.Plan.Tier),
		BillingPeriod:         p.Plan.BillingPeriod,
		AmountCents:           p.Plan.AmountCents,
		Currency:              p.Plan.Currency,
		Status:                status,
		CurrentPeriodStart:    &start,
		CurrentPeriodEnd:      &end,
	}
}

// ApplyRenewal advances the billing period and restores active status. A
// renewal whose period end does not advance the stored one is stale (an
// out-of-order or duplicated delivery) and leaves the record untouched.
func ApplyRenewal(sub *models.SubscriptionRecord, newStart, newEnd time.Time) Transition {
	if sub.IsTerminal() {
		return noOp("terminal state is absorbing")
	}
	if sub.CurrentPeriodEnd != nil && !newEnd.After(*sub.CurrentPeriodEnd) {
		return noOp("stale renewal: period end does not advance")
	}
	sub.Status = models.SubscriptionStatusActive
	sub.CurrentPeriodStart = &newStart
	sub.CurrentPeriodEnd = &newEnd
	return applied()
}

// MarkPastDue flags a failed renewal payment.
func MarkPastDue(sub *models.SubscriptionRecord) Transition {
	switch sub.Status {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
		sub.Status = models.SubscriptionStatusPastDue
		return applied()
	case models.SubscriptionStatusPastDue:
		return noOp("already past due")
	default:
		return noOp("terminal state is absorbing")
	}
}

// RequestCancel either terminates immediately or schedules cancellation for
// the period end. The deferred flag is orthogonal to status: the record
// stays open until the gateway confirms the deletion.
func RequestCancel(sub *models.SubscriptionRecord, immediate bool, now time.Time) Transition {
	if sub.IsTerminal() {
		return noOp("already canceled")
	}
	if !immediate {
		if sub.CancelAtPeriodEnd {
			return noOp("cancellation already scheduled")
		}
		sub.CancelAtPeriodEnd = true
		return applied()
	}
	terminate(sub, now)
	return applied()
}

// Reactivate clears a scheduled cancellation before it takes effect.
func Reactivate(sub *models.SubscriptionRecord) Transition {
	if sub.IsTerminal() {
		return rejected("subscription already ended")
	}
	if !sub.CancelAtPeriodEnd {
		return noOp("no cancellation scheduled")
	}
	sub.CancelAtPeriodEnd = false
	return applied()
}

// ChangePlan swaps the plan attributes in place. The current period end is
// preserved; only a gateway-confirmed reset (arriving as a renewal event)
// moves it. Proration is the caller's concern.
func ChangePlan(sub *models.SubscriptionRecord, plan PlanPrice) Transition {
	switch sub.Status {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
	case models.SubscriptionStatusPastDue:
		return rejected("cannot change plan while past due")
	default:
		return rejected("subscription already ended")
	}
	if sub.PlanTier == string(plan.Tier) && sub.BillingPeriod == plan.BillingPeriod {
		return noOp("already on requested plan")
	}
	sub.PlanTier = string(plan.Tier)
	sub.BillingPeriod = plan.BillingPeriod
	sub.AmountCents = plan.AmountCents
	sub.Currency = plan.Currency
	return applied()
}

// TerminateFromGateway is the idempotent hard transition triggered by a
// gateway-confirmed deletion. Always legal: the terminal state absorbs
// duplicate deliveries.
func TerminateFromGateway(sub *models.SubscriptionRecord, now time.Time) Transition {
	if sub.IsTerminal() {
		return noOp("already canceled")
	}
	terminate(sub, now)
	return applied()
}

// EffectiveTier is the tier a record contributes to entitlements: its plan
// while open, free once terminal.
func EffectiveTier(sub *models.SubscriptionRecord) entitlements.Plan {
	if sub == nil || !sub.IsOpen() {
		return entitlements.PlanFree
	}
	return entitlements.Normalize(sub.PlanTier)
}

func terminate(sub *models.SubscriptionRecord, now time.Time) {
	sub.Status = models.SubscriptionStatusCanceled
	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = &now
	sub.EndedAt = &now
	// Vacate the user's open slot so a future checkout can create a new row.
	sub.ActiveSlot = sub.SubscriptionID
}
