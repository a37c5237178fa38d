package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

const evaluatePath = "/evaluate"

// ErrorHandler is the app-wide fiber error handler. Errors raised before
// HandleEvaluate runs, such as an oversized body rejected by the server,
// still get the plain 500 reply on the evaluate route.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	if c.Path() == evaluatePath && c.Method() == fiber.MethodPost {
		log.Printf("❌ Evaluation failed [request]: %v\n", err)
		return c.Status(fiber.StatusInternalServerError).SendString(EvaluationFailedMessage)
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
