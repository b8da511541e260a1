package app

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/learnfox/LearnFox/app/repository"
	"github.com/learnfox/LearnFox/internal/pkg/cache"
	"github.com/learnfox/LearnFox/internal/pkg/database"
	"github.com/learnfox/LearnFox/internal/pkg/env"
	"github.com/learnfox/LearnFox/internal/pkg/router"
)

// New boots the shared application: env file, database, cache, the global
// repository factory, and the Fiber app with all routes installed. Both
// entrypoints delegate here.
func New() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		AppName: "LearnFox",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}

// Listen serves the app on APP_HOST:APP_PORT, defaulting to localhost:4000.
func Listen(app *fiber.App) error {
	return app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
}
