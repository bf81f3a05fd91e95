package database

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"paygate/config"
	"paygate/models"
)

func Connect(cfg config.Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatal("❌ Failed to connect to database:", err)
	}

	log.Println("✅ Connected to database")

	if cfg.DBAutoMigrate {
		log.Println("🟡 Starting auto-migration...")

		if err := db.AutoMigrate(
			&models.Payment{},
			&models.WebhookEvent{},
		); err != nil {
			log.Fatal("❌ Failed to auto-migrate database:", err)
		}

		log.Println("✅ Auto migration completed")
	}

	return db
}
