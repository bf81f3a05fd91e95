package webhook

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"paygate/helpers"
	"paygate/services"
)

type Controller struct {
	reconciler *services.Reconciler
}

func NewController(reconciler *services.Reconciler) *Controller {
	return &Controller{reconciler: reconciler}
}

// PaymentStatus receives gateway notifications. Signature verification has
// already happened in the webhook middleware; everything past that point is
// acknowledged with 200 so the gateway does not redeliver forever, even
// when the notification could not be applied (unknown payment, unknown
// state, stale duplicate).
func (ct *Controller) PaymentStatus(c *fiber.Ctx) error {
	err := ct.reconciler.Handle(c.Context(), c.Body(), c.Get("Signature"))
	if errors.Is(err, services.ErrValidation) {
		return helpers.JSONError(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return helpers.JSONError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Webhook processed successfully",
	})
}
