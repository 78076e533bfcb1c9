package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
		BaseURL      string `yaml:"base_url"` // для ссылок в письмах
	} `yaml:"email"`

	JWT struct {
		Secret     string `yaml:"secret"`
		TTLMinutes int    `yaml:"ttl_minutes"` // срок жизни access assertion
	} `yaml:"jwt"`

	Session struct {
		RefreshTTLDays  int `yaml:"refresh_ttl_days"`  // срок жизни refresh credential
		ResetTTLMinutes int `yaml:"reset_ttl_minutes"` // срок жизни reset/verification токенов
	} `yaml:"session"`

	Billing struct {
		WebhookSecret   string `yaml:"webhook_secret"`    // HMAC секрет провайдера
		GracePeriodDays int    `yaml:"grace_period_days"` // политика payment-failed
	} `yaml:"billing"`

	Quota struct {
		// Лимиты watchlist по тарифам; -1 = без ограничения
		WatchlistFree       int `yaml:"watchlist_free"`
		WatchlistPaid       int `yaml:"watchlist_paid"`
		WatchlistEnterprise int `yaml:"watchlist_enterprise"`
	} `yaml:"quota"`
}

var AppConfig *Config

// defaultConfig - конфигурация до наложения yaml/env. Дефолты
// заполняются ДО декодирования: явный ноль в файле остается нулем
// (watchlist_free: 0 - валидный лимит, не "не задано").
func defaultConfig() *Config {
	var cfg Config
	cfg.JWT.TTLMinutes = 15
	cfg.Session.RefreshTTLDays = 30
	cfg.Session.ResetTTLMinutes = 60
	cfg.Quota.WatchlistFree = 3
	cfg.Quota.WatchlistPaid = -1
	cfg.Quota.WatchlistEnterprise = -1
	cfg.Email.BaseURL = "https://stockwatch.app"
	return &cfg
}

// LoadConfig загружает конфигурацию: из yaml файла, либо (если выставлен
// DATABASE_URL) из переменных окружения - режим тестов/контейнера.
func LoadConfig() {
	cfg := defaultConfig()

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		AppConfig = cfg
		return
	}

	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port = envInt("SERVER_PORT", cfg.Server.Port)

	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	cfg.JWT.TTLMinutes = envInt("JWT_TTL_MINUTES", cfg.JWT.TTLMinutes)

	cfg.Session.RefreshTTLDays = envInt("SESSION_REFRESH_TTL_DAYS", cfg.Session.RefreshTTLDays)
	cfg.Session.ResetTTLMinutes = envInt("SESSION_RESET_TTL_MINUTES", cfg.Session.ResetTTLMinutes)

	cfg.Billing.WebhookSecret = os.Getenv("BILLING_WEBHOOK_SECRET")
	cfg.Billing.GracePeriodDays = envInt("BILLING_GRACE_PERIOD_DAYS", cfg.Billing.GracePeriodDays)

	cfg.Quota.WatchlistFree = envInt("QUOTA_WATCHLIST_FREE", cfg.Quota.WatchlistFree)
	cfg.Quota.WatchlistPaid = envInt("QUOTA_WATCHLIST_PAID", cfg.Quota.WatchlistPaid)
	cfg.Quota.WatchlistEnterprise = envInt("QUOTA_WATCHLIST_ENTERPRISE", cfg.Quota.WatchlistEnterprise)

	cfg.Email.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.Email.SMTPPort = envInt("SMTP_PORT", cfg.Email.SMTPPort)
	cfg.Email.FromEmail = os.Getenv("SMTP_FROM")

	AppConfig = cfg
}

// envInt читает целочисленную переменную окружения; пустая или
// некорректная оставляет текущее значение
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
