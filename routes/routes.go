package routes

import (
	"github.com/gofiber/fiber/v2"

	"paygate/config"
	"paygate/controllers/payment"
	"paygate/controllers/webhook"
	"paygate/middlewares"
)

func Setup(app *fiber.App, cfg config.Config, payments *payment.Controller, webhooks *webhook.Controller) {
	api := app.Group("/api", middlewares.UserAuth(cfg.JWTSecret))
	api.Get("/payments", payments.ListPayments)
	api.Post("/payments", payments.CreatePayment)
	api.Post("/payments/refund", payments.CreateRefund)
	api.Get("/payments/status", payments.CheckStatus)
	api.Post("/payouts", payments.CreatePayout)
	api.Post("/payouts/confirm", payments.ConfirmPayout)

	app.Post("/webhooks/payment_status",
		middlewares.WebhookSignature(cfg.PayAdmitSignKey),
		webhooks.PaymentStatus,
	)
}
