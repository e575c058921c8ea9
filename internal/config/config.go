package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Booking  BookingConfig
	Gnpl     GnplConfig
	Gateway  GatewayConfig
	CORS     CORSConfig
	Jobs     JobsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// BookingConfig holds booking and receipt validation configuration
type BookingConfig struct {
	Currency             string
	MaxTicketsPerBooking int
	StrictValidation     bool // parsed receipt-link fields must match typed values
	RestoreSeatsOnReject bool // return seats to inventory when a receipt is rejected
	SessionTTL           time.Duration
	AttachmentDir        string
	AttachmentMaxBytes   int64
}

// GnplConfig holds deferred-payment ledger configuration
type GnplConfig struct {
	ApprovalRequired  bool
	TermDays          int
	PenaltyEnabled    bool
	PenaltyPercent    float64 // per period, against outstanding principal
	PenaltyPeriodDays int
	ReminderLeadDays  int
	PenaltyFirst      bool // apply payments to penalty before principal
}

// GatewayConfig holds the hosted-checkout payment gateway configuration
type GatewayConfig struct {
	BaseURL    string
	SecretKey  string
	ReturnURL  string
	WebhookURL string
	Timeout    time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// JobsConfig holds scheduled-job configuration
type JobsConfig struct {
	PenaltyAccrualSpec string // cron spec with seconds
	ReminderSpec       string
	SessionExpirySpec  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Booking: BookingConfig{
			Currency:             getEnv("BOOKING_CURRENCY", "ETB"),
			MaxTicketsPerBooking: getEnvAsInt("BOOKING_MAX_TICKETS", 10),
			StrictValidation:     getEnvAsBool("BOOKING_STRICT_VALIDATION", false),
			RestoreSeatsOnReject: getEnvAsBool("BOOKING_RESTORE_SEATS_ON_REJECT", true),
			SessionTTL:           time.Duration(getEnvAsInt("BOOKING_SESSION_TTL_MINUTES", 60)) * time.Minute,
			AttachmentDir:        getEnv("BOOKING_ATTACHMENT_DIR", "./attachments"),
			AttachmentMaxBytes:   int64(getEnvAsInt("BOOKING_ATTACHMENT_MAX_BYTES", 5*1024*1024)),
		},
		Gnpl: GnplConfig{
			ApprovalRequired:  getEnvAsBool("GNPL_APPROVAL_REQUIRED", true),
			TermDays:          getEnvAsInt("GNPL_TERM_DAYS", 14),
			PenaltyEnabled:    getEnvAsBool("GNPL_PENALTY_ENABLED", true),
			PenaltyPercent:    getEnvAsFloat("GNPL_PENALTY_PERCENT", 5.0),
			PenaltyPeriodDays: getEnvAsInt("GNPL_PENALTY_PERIOD_DAYS", 7),
			ReminderLeadDays:  getEnvAsInt("GNPL_REMINDER_LEAD_DAYS", 2),
			PenaltyFirst:      getEnvAsBool("GNPL_PENALTY_FIRST", true),
		},
		Gateway: GatewayConfig{
			BaseURL:    getEnv("GATEWAY_BASE_URL", "https://api.chapa.co/v1"),
			SecretKey:  getEnv("GATEWAY_SECRET_KEY", ""),
			ReturnURL:  getEnv("GATEWAY_RETURN_URL", ""),
			WebhookURL: getEnv("GATEWAY_WEBHOOK_URL", ""),
			Timeout:    time.Duration(getEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Jobs: JobsConfig{
			PenaltyAccrualSpec: getEnv("JOB_PENALTY_ACCRUAL_SPEC", "0 0 1 * * *"),
			ReminderSpec:       getEnv("JOB_REMINDER_SPEC", "0 0 9 * * *"),
			SessionExpirySpec:  getEnv("JOB_SESSION_EXPIRY_SPEC", "0 */10 * * * *"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Booking.MaxTicketsPerBooking < 1 {
		return fmt.Errorf("BOOKING_MAX_TICKETS must be at least 1")
	}

	if c.Gnpl.TermDays < 1 {
		return fmt.Errorf("GNPL_TERM_DAYS must be at least 1")
	}

	if c.Gnpl.PenaltyEnabled {
		if c.Gnpl.PenaltyPercent <= 0 {
			return fmt.Errorf("GNPL_PENALTY_PERCENT must be positive when penalty is enabled")
		}
		if c.Gnpl.PenaltyPeriodDays < 1 {
			return fmt.Errorf("GNPL_PENALTY_PERIOD_DAYS must be at least 1")
		}
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
