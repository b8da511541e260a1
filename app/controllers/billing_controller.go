package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/learnfox/LearnFox/app/repository"
	"github.com/learnfox/LearnFox/internal/pkg/billing"
	"github.com/learnfox/LearnFox/internal/pkg/entitlements"
	"github.com/learnfox/LearnFox/internal/pkg/usercontext"
)

func billingService() *billing.Service {
	return billing.NewService(repository.GetGlobalRepositories(), billing.NewGatewayClientFromEnv())
}

type checkoutRequest struct {
	PlanTier      string `json:"plan_tier" validate:"required,oneof=pro premium"`
	BillingPeriod string `json:"billing_period" validate:"required,oneof=monthly yearly"`
	SuccessURL    string `json:"success_url" validate:"required,url"`
	CancelURL     string `json:"cancel_url" validate:"required,url"`
}

// HandleCreateCheckout starts a hosted checkout for a recurring plan. The
// subscription record itself is only created once the gateway confirms.
func HandleCreateCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := parseAndValidate(c, &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	session, err := billingService().InitiateCheckout(
		c.Context(),
		usercontext.GetUserID(c),
		entitlements.Normalize(req.PlanTier),
		req.BillingPeriod,
		req.SuccessURL,
		req.CancelURL,
	)
	if err != nil {
		if errors.Is(err, billing.ErrGatewayUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "gateway_unavailable", "message": "Checkout is temporarily unavailable"})
		}
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{
		"session_id":   session.SessionID,
		"checkout_url": session.URL,
	})
}

type portalRequest struct {
	ReturnURL string `json:"return_url" validate:"required,url"`
}

// HandleCreatePortalLink returns the gateway billing portal URL for payment
// method management.
func HandleCreatePortalLink(c *fiber.Ctx) error {
	var req portalRequest
	if err := parseAndValidate(c, &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	url, err := billingService().CreatePortalLink(c.Context(), usercontext.GetUserID(c), req.ReturnURL)
	if err != nil {
		if errors.Is(err, billing.ErrGatewayUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "gateway_unavailable", "message": "Billing portal is temporarily unavailable"})
		}
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"portal_url": url})
}

type cancelRequest struct {
	Immediate bool `json:"immediate"`
}

// HandleCancelSubscription cancels the caller's subscription. The default is
// deferred: access runs to the paid period end. A gateway outage still
// commits the local record and reports 202 so the client shows "pending".
func HandleCancelSubscription(c *fiber.Ctx) error {
	var req cancelRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	summary, err := billingService().Cancel(c.Context(), usercontext.GetUserID(c), req.Immediate)
	if err != nil {
		if errors.Is(err, billing.ErrGatewayUnavailable) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "pending", "subscription": summary})
		}
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": summary})
}

// HandleReactivateSubscription clears a scheduled cancellation before the
// period ends.
func HandleReactivateSubscription(c *fiber.Ctx) error {
	summary, err := billingService().Reactivate(c.Context(), usercontext.GetUserID(c))
	if err != nil {
		if errors.Is(err, billing.ErrGatewayUnavailable) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "pending", "subscription": summary})
		}
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": summary})
}

type changePlanRequest struct {
	PlanTier      string `json:"plan_tier" validate:"required,oneof=free pro premium"`
	BillingPeriod string `json:"billing_period" validate:"omitempty,oneof=monthly yearly"`
}

// HandleChangePlan switches the caller's subscription tier or cadence. The
// response includes the proration preview for the current cycle.
func HandleChangePlan(c *fiber.Ctx) error {
	var req changePlanRequest
	if err := parseAndValidate(c, &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	result, err := billingService().ChangePlan(
		c.Context(),
		usercontext.GetUserID(c),
		entitlements.Normalize(req.PlanTier),
		req.BillingPeriod,
	)
	if err != nil {
		if errors.Is(err, billing.ErrGatewayUnavailable) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "pending", "result": result})
		}
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"result": result})
}

// HandleGetSubscription reports the caller's current subscription, or the
// free baseline when none is open.
func HandleGetSubscription(c *fiber.Ctx) error {
	summary, err := billingService().Summary(usercontext.GetUserID(c))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": summary})
}

// HandleListLedger returns the caller's payment history, newest first.
func HandleListLedger(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)

	entries, err := billingService().ListLedger(usercontext.GetUserID(c), offset, limit)
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
}
