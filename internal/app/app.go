package app

import (
	"context"
	"fmt"

	"stockwatch_backend/internal/config"
	"stockwatch_backend/internal/email"
	"stockwatch_backend/internal/handlers"
	"stockwatch_backend/internal/logger"
	"stockwatch_backend/internal/middleware"
	"stockwatch_backend/internal/models"
	"stockwatch_backend/internal/repositories"
	"stockwatch_backend/internal/routes"
	"stockwatch_backend/internal/services"
	"stockwatch_backend/internal/validator"
	"stockwatch_backend/internal/workers"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	logger.Info("Connecting to database...")
	// TranslateError нужен репозиториям: нарушения уникальных индексов
	// должны приходить как gorm.ErrDuplicatedKey
	gormDB, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		logger.Fatal("Failed to connect to GORM", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if err := seedDefaultPlans(gormDB); err != nil {
		logger.Fatal("Failed to seed subscription plans", "error", err)
	}

	ginRouter := SetupRouter(cfg, gormDB)

	credWorker := workers.NewCredentialWorker(gormDB, repositories.NewCredentialRepository())
	credWorker.Start(context.Background())

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info(fmt.Sprintf("Server starting on %s", address))
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

func SetupRouter(cfg *config.Config, gormDB *gorm.DB) *gin.Engine {
	serviceContainer := InitializeServices(cfg)

	appHandlers := initializeHandlers(serviceContainer)

	ginRouter := initializeGinRouter(gormDB)

	routes.RegisterRoutes(ginRouter, appHandlers)

	return ginRouter
}

// InitializeServices собирает граф сервисов. *gorm.DB сервисам не
// передается: он приходит per-request через DBMiddleware.
func InitializeServices(cfg *config.Config) *services.ServiceContainer {
	var emailProvider email.Provider
	if cfg.Email.SMTPHost != "" {
		p, err := email.NewSMTPProvider(cfg)
		if err != nil {
			logger.Fatal("Failed to initialize SMTP provider", "error", err)
		}
		emailProvider = p
	} else {
		logger.Warn("SMTP is not configured, outgoing email is disabled")
		emailProvider = &NoopEmailProvider{}
	}

	userRepo := repositories.NewUserRepository()
	credRepo := repositories.NewCredentialRepository()
	subscriptionRepo := repositories.NewSubscriptionRepository()
	watchlistRepo := repositories.NewWatchlistRepository()

	tierService := services.NewTierService(userRepo, subscriptionRepo)
	quotaService := services.NewQuotaService(tierService, cfg)
	authService := services.NewAuthService(userRepo, credRepo, tierService, emailProvider, cfg)
	userService := services.NewUserService(userRepo, credRepo)
	billingService := services.NewBillingService(userRepo, tierService, cfg)
	watchlistService := services.NewWatchlistService(watchlistRepo, quotaService)

	return &services.ServiceContainer{
		AuthService:      authService,
		UserService:      userService,
		TierService:      tierService,
		BillingService:   billingService,
		QuotaService:     quotaService,
		WatchlistService: watchlistService,
		EmailProvider:    emailProvider,
	}
}

func initializeHandlers(container *services.ServiceContainer) *handlers.AppHandlers {
	customValidator := validator.New()
	baseHandler := handlers.NewBaseHandler(customValidator)

	return &handlers.AppHandlers{
		AuthHandler:         handlers.NewAuthHandler(baseHandler, container.AuthService),
		UserHandler:         handlers.NewUserHandler(baseHandler, container.UserService),
		SubscriptionHandler: handlers.NewSubscriptionHandler(baseHandler, container.TierService, container.BillingService),
		WatchlistHandler:    handlers.NewWatchlistHandler(baseHandler, container.WatchlistService),
	}
}

func initializeGinRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DBMiddleware(db))
	return router
}

// seedDefaultPlans создает базовый каталог планов, если он пуст
func seedDefaultPlans(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.SubscriptionPlan{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check subscription plans: %w", err)
	}
	if count > 0 {
		return nil
	}

	logger.Info("No subscription plans found, seeding defaults")

	plans := []models.SubscriptionPlan{
		{
			Code:     "paid-monthly",
			Name:     "Pro Monthly",
			Tier:     models.TierPaid,
			Interval: models.PlanIntervalMonthly,
			Price:    9.99,
			Currency: "USD",
			IsActive: true,
		},
		{
			Code:     "paid-annual",
			Name:     "Pro Annual",
			Tier:     models.TierPaid,
			Interval: models.PlanIntervalAnnual,
			Price:    99.00,
			Currency: "USD",
			IsActive: true,
		},
		{
			Code:     "enterprise-annual",
			Name:     "Enterprise",
			Tier:     models.TierEnterprise,
			Interval: models.PlanIntervalAnnual,
			Price:    499.00,
			Currency: "USD",
			IsActive: true,
		},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i := range plans {
			if err := tx.Create(&plans[i]).Error; err != nil {
				return fmt.Errorf("failed to seed plan %s: %w", plans[i].Code, err)
			}
		}
		return nil
	})
}
