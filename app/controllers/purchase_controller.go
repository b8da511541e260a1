package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/learnfox/LearnFox/app/repository"
	"github.com/learnfox/LearnFox/internal/pkg/billing"
	"github.com/learnfox/LearnFox/internal/pkg/entitlements"
	"github.com/learnfox/LearnFox/internal/pkg/usercontext"
)

func entitlementResolver() *entitlements.Resolver {
	factory := repository.GetGlobalFactory()
	return entitlements.NewResolver(
		factory.GetSubscriptionRepository(),
		factory.GetPurchaseRepository(),
		factory.GetItemRepository(),
	)
}

type itemCheckoutRequest struct {
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// HandleItemCheckout starts a one-off purchase checkout for a content item.
// The purchase itself is granted when the gateway confirms payment.
func HandleItemCheckout(c *fiber.Ctx) error {
	itemID, err := c.ParamsInt("id")
	if err != nil || itemID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid item id"})
	}

	var req itemCheckoutRequest
	if err := parseAndValidate(c, &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	session, err := billingService().InitiateItemCheckout(
		c.Context(),
		usercontext.GetUserID(c),
		uint(itemID),
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

// HandleItemAccess answers whether the caller may open one item. Access is
// recomputed from subscription and purchase state on every call.
func HandleItemAccess(c *fiber.Ctx) error {
	itemID, err := c.ParamsInt("id")
	if err != nil || itemID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid item id"})
	}

	allowed, err := entitlementResolver().HasAccess(usercontext.GetUserID(c), uint(itemID))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"item_id": itemID, "access": allowed})
}

// HandleGetEntitlements returns the caller's full derived entitlement set.
func HandleGetEntitlements(c *fiber.Ctx) error {
	ent, err := entitlementResolver().Resolve(usercontext.GetUserID(c))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(ent)
}
