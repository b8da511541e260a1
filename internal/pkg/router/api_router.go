package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/learnfox/LearnFox/app/controllers"
	"github.com/learnfox/LearnFox/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(), middleware.UserContextMiddleware)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	billing := v1.Group("/billing", middleware.RequireAuth)
	billing.Post("/checkout", controllers.HandleCreateCheckout)
	billing.Post("/portal", controllers.HandleCreatePortalLink)
	billing.Get("/subscription", controllers.HandleGetSubscription)
	billing.Post("/subscription/cancel", controllers.HandleCancelSubscription)
	billing.Post("/subscription/reactivate", controllers.HandleReactivateSubscription)
	billing.Post("/subscription/plan", controllers.HandleChangePlan)
	billing.Get("/ledger", controllers.HandleListLedger)

	items := v1.Group("/items", middleware.RequireAuth)
	items.Post("/:id/checkout", controllers.HandleItemCheckout)
	items.Get("/:id/access", controllers.HandleItemAccess)

	me := v1.Group("/me", middleware.RequireAuth)
	me.Get("/entitlements", controllers.HandleGetEntitlements)

	admin := v1.Group("/admin", middleware.RequireAdmin)
	admin.Get("/revenue/snapshot", controllers.HandleRevenueSnapshot)
	admin.Post("/users/:id/resync-tier", controllers.HandleResyncUserTier)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
