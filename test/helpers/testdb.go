package helpers

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"stockwatch_backend/internal/config"
	"stockwatch_backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestDB создает изолированную in-memory БД и прогоняет миграции.
// TranslateError обязателен: репозитории различают нарушения уникальных
// индексов через gorm.ErrDuplicatedKey.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Не удалось открыть тестовую БД: %v", err)
	}

	// У in-memory sqlite одна БД на соединение
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Не удалось получить *sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.RefreshCredential{},
		&models.OneTimeToken{},
		&models.SubscriptionPlan{},
		&models.TierEvent{},
		&models.WatchlistEntry{},
	)
	if err != nil {
		t.Fatalf("AutoMigrate не прошел: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// NewTestConfig возвращает конфиг с тестовыми значениями
func NewTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.JWT.Secret = "test_jwt_secret_key_12345"
	cfg.JWT.TTLMinutes = 15
	cfg.Session.RefreshTTLDays = 30
	cfg.Session.ResetTTLMinutes = 60
	cfg.Billing.WebhookSecret = "test_webhook_secret"
	cfg.Billing.GracePeriodDays = 7
	cfg.Quota.WatchlistFree = 3
	cfg.Quota.WatchlistPaid = -1
	cfg.Quota.WatchlistEnterprise = -1
	return cfg
}

// CreateUser создает пользователя с автоматическим хешированием пароля.
// По умолчанию - активный, верифицированный, free.
func CreateUser(t *testing.T, db *gorm.DB, user *models.User) *models.User {
	t.Helper()

	if user.Email == "" {
		user.Email = fmt.Sprintf("user_%d@test.com", time.Now().UnixNano())
	}
	if user.PasswordHash == "" {
		user.PasswordHash = "password123"
	}
	// Сырой пароль хешируется здесь, чтобы тесты могли логиниться им
	hashed, err := bcrypt.GenerateFromPassword([]byte(user.PasswordHash), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Не удалось хешировать пароль: %v", err)
	}
	user.PasswordHash = string(hashed)

	if user.Tier == "" {
		user.Tier = models.TierFree
	}
	user.IsActive = true
	user.IsVerified = true

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Не удалось создать пользователя %s: %v", user.Email, err)
	}

	return user
}

// CreatePlan создает план подписки
func CreatePlan(t *testing.T, db *gorm.DB, plan *models.SubscriptionPlan) *models.SubscriptionPlan {
	t.Helper()

	if plan.Currency == "" {
		plan.Currency = "USD"
	}
	plan.IsActive = true

	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("Не удалось создать план %s: %v", plan.Code, err)
	}

	return plan
}

// NoopEmailProvider - заглушка провайдера почты, запоминает отправки.
// Отправка идет из горутин сервиса, поэтому доступ под мьютексом.
type NoopEmailProvider struct {
	mu            sync.Mutex
	verifications []string
	resets        []string
}

func (m *NoopEmailProvider) SendVerification(to string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, token)
	return nil
}

func (m *NoopEmailProvider) SendPasswordReset(to string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, token)
	return nil
}

func (m *NoopEmailProvider) SentVerifications() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.verifications...)
}

func (m *NoopEmailProvider) SentResets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resets...)
}
