package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the API. Static files are mounted last so they never
// shadow an API path.
func RegisterRoutes(app *fiber.App, evaluate *EvaluationHandler, results *ResultHandler, staticDir string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	app.Post(evaluatePath, evaluate.HandleEvaluate)
	app.Get("/evaluations", results.HandleList)
	app.Get("/evaluations/:id", results.HandleGetResult)

	if staticDir != "" {
		app.Static("/", staticDir)
	}
}
