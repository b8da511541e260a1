package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/learnfox/LearnFox/internal/pkg/billing"
	"gorm.io/gorm"
)

var validate = validator.New()

// renderBillingError maps engine error classes to HTTP responses. Gateway
// unavailability is not a failure: local state is committed and the webhook
// feed converges, so the caller sees 202 "pending".
func renderBillingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, billing.ErrSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature", "message": err.Error()})
	case errors.Is(err, billing.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": err.Error()})
	case errors.Is(err, billing.ErrLedgerIntegrity):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "ledger_integrity", "message": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Record not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Unexpected failure"})
	}
}

func parseAndValidate(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return err
	}
	return validate.Struct(out)
}
