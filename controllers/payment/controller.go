package payment

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"paygate/helpers"
	"paygate/providers"
	"paygate/services"
)

type Controller struct {
	orchestrator *services.Orchestrator
	validate     *validator.Validate
}

func NewController(orchestrator *services.Orchestrator) *Controller {
	return &Controller{
		orchestrator: orchestrator,
		validate:     validator.New(),
	}
}

func principal(c *fiber.Ctx) uint {
	id, _ := c.Locals("user_id").(uint)
	return id
}

// fail maps the service error taxonomy onto HTTP statuses: 400 means the
// caller must fix the input, 404 the resource is unknown, 502 the gateway
// rejected or failed the attempt.
func fail(c *fiber.Ctx, err error) error {
	var gerr *providers.GatewayError
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrParentNotCompleted):
		return helpers.JSONError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrPaymentNotFound):
		return helpers.JSONError(c, fiber.StatusNotFound, err.Error())
	case errors.As(err, &gerr):
		return helpers.JSONError(c, fiber.StatusBadGateway, gerr.Error())
	default:
		return helpers.JSONError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR")
	}
}
