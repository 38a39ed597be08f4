package config

import (
	"fmt"
	"os"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/models"
)

// Config holds the environment-driven settings. Gateway credentials are
// not here: they live in the api_keys table and are managed from the
// dashboard.
type Config struct {
	DatabaseDSN string
	JWTSecret   string
	GatewayEnv  string // "sandbox" or "production"
	GatewayURL  string // optional base-URL override, mainly for tests
	ListenAddr  string
	GinMode     string
	AllowOrigin string
}

// Load reads the configuration from the environment. Missing required
// variables are reported together in a single error.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseDSN: os.Getenv("DATABASE_DSN"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		GatewayEnv:  os.Getenv("ASAAS_ENV"),
		GatewayURL:  os.Getenv("ASAAS_BASE_URL"),
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		GinMode:     os.Getenv("GIN_MODE"),
		AllowOrigin: os.Getenv("CORS_ALLOW_ORIGIN"),
	}

	var missing []string
	if cfg.DatabaseDSN == "" {
		missing = append(missing, "DATABASE_DSN")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.GatewayEnv == "" {
		missing = append(missing, "ASAAS_ENV")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if cfg.GatewayEnv != "sandbox" && cfg.GatewayEnv != "production" {
		return nil, fmt.Errorf("ASAAS_ENV must be 'sandbox' or 'production', got %q", cfg.GatewayEnv)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.AllowOrigin == "" {
		cfg.AllowOrigin = "http://localhost:3000"
	}

	return cfg, nil
}

// IsSandbox reports whether the gateway runs against the sandbox host.
func (c *Config) IsSandbox() bool {
	return c.GatewayEnv != "production"
}

// InitDB opens the MySQL connection and migrates the schema.
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates/updates all tables. Shared with the test setup,
// which runs it against sqlite.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Order{},
		&models.ApiKey{},
		&models.AppSetting{},
		&models.PaymentMirror{},
		&models.WebhookLog{},
		&models.CardAttempt{},
		&models.User{},
	)
}
