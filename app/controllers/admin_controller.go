package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/learnfox/LearnFox/app/repository"
	"github.com/learnfox/LearnFox/internal/pkg/revenue"
)

// HandleRevenueSnapshot returns the cached MRR/ARR/churn rollup. Admin only.
func HandleRevenueSnapshot(c *fiber.Ctx) error {
	agg := revenue.NewAggregator(repository.GetGlobalFactory().GetSubscriptionRepository())

	snap, err := agg.CachedSnapshot(time.Now())
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(snap)
}

// HandleResyncUserTier recomputes one user's fast-path tier column from the
// subscription table. Drift repair after manual intervention; admin only.
func HandleResyncUserTier(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid user id"})
	}

	tier, err := billingService().ResyncUserTier(uint(userID))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"user_id": userID, "tier": tier})
}
