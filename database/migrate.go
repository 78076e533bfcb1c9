package database

import (
	"fmt"
	"log"

	"stockwatch_backend/internal/config"
	"stockwatch_backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var gormDB *gorm.DB

// ConnectGorm инициализирует GORM с URL из config.yaml
func ConnectGorm() (*gorm.DB, error) {
	if gormDB != nil {
		return gormDB, nil
	}

	cfg := config.GetConfig()
	dsn := cfg.Database.DSN

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to GORM: %w", err)
	}

	gormDB = db
	return db, nil
}

// AutoMigrate выполняет миграцию всех моделей
func AutoMigrate() error {
	db, err := ConnectGorm()
	if err != nil {
		return err
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.RefreshCredential{},
		&models.OneTimeToken{},
		&models.SubscriptionPlan{},
		&models.TierEvent{},
		&models.WatchlistEntry{},
	)
	if err != nil {
		log.Fatalf("AutoMigrate ошибка: %v", err)
	}

	log.Println("AutoMigrate успешно завершен.")
	return nil
}
