package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/learnfox/LearnFox/app/models"
	"github.com/learnfox/LearnFox/app/repository"
	"github.com/learnfox/LearnFox/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// Gateway is the outbound surface of the payment gateway the service needs.
// *GatewayClient satisfies it; tests substitute a fake.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	SetCancelAtPeriodEnd(ctx context.Context, gatewaySubscriptionID string, cancel bool) error
	CancelSubscriptionNow(ctx context.Context, gatewaySubscriptionID string) error
	UpdateSubscriptionPlan(ctx context.Context, gatewaySubscriptionID, priceRef string) error
}

// Service orchestrates user-initiated billing actions. Local state is
// committed through the same state machine the webhook processor uses, so
// the optimistic local update and the eventual gateway truth converge on
// identical transitions. No lock or transaction spans an outbound gateway
// call: the local write commits first, the gateway call follows, and the
// webhook feed reconciles whatever the call left unconfirmed.
type Service struct {
	repos   *repository.Repositories
	gateway Gateway
	now     func() time.Time
}

func NewService(repos *repository.Repositories, gateway Gateway) *Service {
	return &Service{repos: repos, gateway: gateway, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway Gateway) *Service {
	return NewService(repository.NewRepositories(db), gateway)
}

// SubscriptionSummary is the caller-facing snapshot of a subscription.
type SubscriptionSummary struct {
	PlanTier          string     `json:"plan_tier"`
	Status            string     `json:"status"`
	BillingPeriod     string     `json:"billing_period,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	DaysRemaining     int        `json:"days_remaining"`
}

// PlanChangeResult pairs the updated summary with the proration preview for
// the change.
type PlanChangeResult struct {
	Summary   SubscriptionSummary `json:"summary"`
	Proration ProrationResult     `json:"proration"`
}

const maxVersionRetries = 3

// InitiateCheckout asks the gateway for a hosted checkout session for a
// recurring plan. No local state is touched: the subscription record is
// created when the gateway confirms via checkout.session.completed.
func (s *Service) InitiateCheckout(ctx context.Context, userID uint, tier entitlements.Plan, billingPeriod, successURL, cancelURL string) (*CheckoutSession, error) {
	if tier == entitlements.PlanFree {
		return nil, fmt.Errorf("%w: free tier has no checkout", ErrValidation)
	}
	plan, err := LookupPlan(tier, billingPeriod)
	if err != nil {
		return nil, err
	}

	user, err := s.repos.User.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Subscription.GetOpenByUserID(userID); err == nil {
		return nil, fmt.Errorf("%w: user already has an open subscription", ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return s.gateway.CreateCheckoutSession(ctx, CheckoutSessionParams{
		CustomerID:        user.GatewayCustomerID,
		CustomerEmail:     user.Email,
		PriceRef:          plan.GatewayPriceRef,
		Mode:              CheckoutModeSubscription,
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		ClientReferenceID: strconv.FormatUint(uint64(userID), 10),
	})
}

// InitiateItemCheckout starts a one-off purchase checkout for a content item.
func (s *Service) InitiateItemCheckout(ctx context.Context, userID, itemID uint, successURL, cancelURL string) (*CheckoutSession, error) {
	user, err := s.repos.User.GetByID(userID)
	if err != nil {
		return nil, err
	}
	item, err := s.repos.Item.GetByID(itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown item %d", ErrValidation, itemID)
		}
		return nil, err
	}
	if _, err := s.repos.Purchase.GetByUserAndItem(userID, itemID); err == nil {
		return nil, fmt.Errorf("%w: item already purchased", ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return s.gateway.CreateCheckoutSession(ctx, CheckoutSessionParams{
		CustomerID:        user.GatewayCustomerID,
		CustomerEmail:     user.Email,
		PriceRef:          item.GatewayPriceRef,
		Mode:              CheckoutModePayment,
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		ClientReferenceID: strconv.FormatUint(uint64(userID), 10),
	})
}

// CreatePortalLink returns the gateway billing portal URL. It requires a
// previously established gateway customer.
func (s *Service) CreatePortalLink(ctx context.Context, userID uint, returnURL string) (string, error) {
	user, err := s.repos.User.GetByID(userID)
	if err != nil {
		return "", err
	}
	if user.GatewayCustomerID == "" {
		return "", fmt.Errorf("%w: user has no linked billing account", ErrValidation)
	}
	return s.gateway.CreatePortalSession(ctx, user.GatewayCustomerID, returnURL)
}

// Cancel cancels the user's subscription, immediately or at period end. The
// local record is committed before the gateway is told; if the gateway call
// fails the summary is returned together with ErrGatewayUnavailable so the
// caller can surface "pending" while the webhook feed converges.
func (s *Service) Cancel(ctx context.Context, userID uint, immediate bool) (*SubscriptionSummary, error) {
	sub, tr, err := s.mutateOpenSubscription(userID, func(rec *models.SubscriptionRecord) Transition {
		return RequestCancel(rec, immediate, s.now())
	})
	if err != nil {
		return nil, err
	}

	if tr.Outcome == OutcomeApplied && sub.IsTerminal() {
		if err := s.repos.User.SetTier(userID, string(entitlements.PlanFree)); err != nil {
			return nil, err
		}
	}

	summary := s.summaryOf(sub)
	if tr.Outcome == OutcomeNoOp {
		// Already in the requested state; nothing to tell the gateway.
		return &summary, nil
	}

	var gatewayErr error
	if immediate {
		gatewayErr = s.gateway.CancelSubscriptionNow(ctx, sub.GatewaySubscriptionID)
	} else {
		gatewayErr = s.gateway.SetCancelAtPeriodEnd(ctx, sub.GatewaySubscriptionID, true)
	}
	if gatewayErr != nil {
		return &summary, fmt.Errorf("%w: cancellation recorded locally, gateway unconfirmed", ErrGatewayUnavailable)
	}
	return &summary, nil
}

// Reactivate clears a scheduled cancellation before the period ends.
func (s *Service) Reactivate(ctx context.Context, userID uint) (*SubscriptionSummary, error) {
	sub, tr, err := s.mutateOpenSubscription(userID, func(rec *models.SubscriptionRecord) Transition {
		return Reactivate(rec)
	})
	if err != nil {
		return nil, err
	}
	if tr.Outcome == OutcomeRejected {
		return nil, fmt.Errorf("%w: %s", ErrConflict, tr.Reason)
	}

	summary := s.summaryOf(sub)
	if tr.Outcome == OutcomeNoOp {
		return &summary, nil
	}
	if err := s.gateway.SetCancelAtPeriodEnd(ctx, sub.GatewaySubscriptionID, false); err != nil {
		return &summary, fmt.Errorf("%w: reactivation recorded locally, gateway unconfirmed", ErrGatewayUnavailable)
	}
	return &summary, nil
}

// ChangePlan switches the subscription to a new tier or cadence mid-cycle.
// Downgrading to Free is cancellation at period end: there is no new
// recurring charge to prorate.
func (s *Service) ChangePlan(ctx context.Context, userID uint, newTier entitlements.Plan, billingPeriod string) (*PlanChangeResult, error) {
	if newTier == entitlements.PlanFree {
		summary, err := s.Cancel(ctx, userID, false)
		if err != nil && !errors.Is(err, ErrGatewayUnavailable) {
			return nil, err
		}
		return &PlanChangeResult{Summary: *summary}, err
	}

	plan, lookupErr := LookupPlan(newTier, billingPeriod)
	if lookupErr != nil {
		return nil, lookupErr
	}

	var proration ProrationResult
	sub, tr, err := s.mutateOpenSubscription(userID, func(rec *models.SubscriptionRecord) Transition {
		if rec.CurrentPeriodStart != nil && rec.CurrentPeriodEnd != nil {
			p, perr := Prorate(rec.AmountCents, plan.AmountCents, *rec.CurrentPeriodStart, *rec.CurrentPeriodEnd, s.now())
			if perr != nil {
				// The change still applies; only the preview is missing.
				log.Printf("[billing] proration preview unavailable for subscription %s: %v", rec.SubscriptionID, perr)
			} else {
				proration = p
			}
		}
		return ChangePlan(rec, plan)
	})
	if err != nil {
		return nil, err
	}
	if tr.Outcome == OutcomeRejected {
		return nil, fmt.Errorf("%w: %s", ErrConflict, tr.Reason)
	}

	result := &PlanChangeResult{Summary: s.summaryOf(sub)}
	if tr.Outcome == OutcomeNoOp {
		return result, nil
	}
	result.Proration = proration

	if err := s.repos.User.SetTier(userID, string(plan.Tier)); err != nil {
		return nil, err
	}
	if err := s.gateway.UpdateSubscriptionPlan(ctx, sub.GatewaySubscriptionID, plan.GatewayPriceRef); err != nil {
		return result, fmt.Errorf("%w: plan change recorded locally, gateway unconfirmed", ErrGatewayUnavailable)
	}
	return result, nil
}

// Summary reports the user's current subscription, or the free baseline when
// no non-terminal record exists.
func (s *Service) Summary(userID uint) (*SubscriptionSummary, error) {
	sub, err := s.repos.Subscription.GetOpenByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &SubscriptionSummary{
				PlanTier: string(entitlements.PlanFree),
				Status:   "none",
			}, nil
		}
		return nil, err
	}
	summary := s.summaryOf(sub)
	return &summary, nil
}

// ResyncUserTier recomputes the fast-path tier column from the subscription
// table, for drift repair after manual intervention.
func (s *Service) ResyncUserTier(userID uint) (entitlements.Plan, error) {
	tier := entitlements.PlanFree
	sub, err := s.repos.Subscription.GetOpenByUserID(userID)
	if err == nil {
		tier = EffectiveTier(sub)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if err := s.repos.User.SetTier(userID, string(tier)); err != nil {
		return "", err
	}
	return tier, nil
}

// ListLedger returns the user's payment history, newest first.
func (s *Service) ListLedger(userID uint, offset, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Ledger.ListByUserID(userID, offset, limit)
}

// mutateOpenSubscription loads the user's open subscription, applies the
// transition and persists it under the optimistic version check, retrying a
// bounded number of times when a concurrent writer wins the race.
func (s *Service) mutateOpenSubscription(userID uint, mutate func(*models.SubscriptionRecord) Transition) (*models.SubscriptionRecord, Transition, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		sub, err := s.repos.Subscription.GetOpenByUserID(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, Transition{}, fmt.Errorf("%w: no open subscription for user", ErrConflict)
			}
			return nil, Transition{}, err
		}

		tr := mutate(sub)
		if tr.Outcome != OutcomeApplied {
			return sub, tr, nil
		}

		err = s.repos.Subscription.UpdateWithVersion(sub)
		if err == nil {
			return sub, tr, nil
		}
		if !errors.Is(err, repository.ErrStaleRecord) {
			return nil, Transition{}, err
		}
		// Lost the race; reload and re-apply.
	}
	return nil, Transition{}, fmt.Errorf("%w: subscription is being modified concurrently", ErrConflict)
}

func (s *Service) summaryOf(sub *models.SubscriptionRecord) SubscriptionSummary {
	return SubscriptionSummary{
		PlanTier:          sub.PlanTier,
		Status:            sub.Status,
		BillingPeriod:     sub.BillingPeriod,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		DaysRemaining:     sub.DaysRemaining(s.now()),
	}
}
