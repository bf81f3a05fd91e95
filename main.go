package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"paygate/cache"
	"paygate/config"
	paymentctl "paygate/controllers/payment"
	webhookctl "paygate/controllers/webhook"
	"paygate/database"
	"paygate/jobs"
	"paygate/kafka"
	"paygate/providers"
	"paygate/routes"
	"paygate/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	cfg := config.Load()
	db := database.Connect(cfg)

	gateway := providers.NewPayAdmitClient(cfg.PayAdmitAPIURL, cfg.PayAdmitAPIKey, cfg.GatewayTimeout)
	events := kafka.NewProducer(cfg.KafkaBrokers)
	dedup := cache.Connect(cfg.RedisAddr, cfg.RedisPassword)

	ledger := services.NewLedger(db)
	orchestrator := services.NewOrchestrator(ledger, gateway, events)
	reconciler := services.NewReconciler(ledger, dedup, events)

	app := fiber.New()
	routes.Setup(app, cfg,
		paymentctl.NewController(orchestrator),
		webhookctl.NewController(reconciler),
	)

	jobs.StartReconcileScheduler(ledger, gateway, events, cfg.ReconcileInterval, cfg.ReconcileStuckAge)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	log.Println("Server running at", addr)

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Panicf("Failed to start server: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Gracefully shutting down...")
	if err := app.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited cleanly")
}
