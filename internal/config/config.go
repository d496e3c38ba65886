package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      *AppConfig      `yaml:"app"`
	Database *DatabaseConfig `yaml:"database"`
	Redis    *RedisConfig    `yaml:"redis"`
	Dispatch *DispatchConfig `yaml:"dispatch"`
	Payment  *PaymentConfig  `yaml:"payment"`
	Security *SecurityConfig `yaml:"security"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	Port        int    `yaml:"port"`
	Host        string `yaml:"host"`
	Debug       bool   `yaml:"debug"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

type SecurityConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	JWTAccessTokenTTL  time.Duration `yaml:"jwt_access_token_ttl"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
}

type PaymentConfig struct {
	StripeSecretKey string `yaml:"stripe_secret_key"`
	Enabled         bool   `yaml:"enabled"`
}

func Load() (*Config, error) {
	config := &Config{
		App:      loadAppConfig(),
		Database: loadDatabaseConfig(),
		Redis:    loadRedisConfig(),
		Dispatch: loadDispatchConfig(),
		Payment:  loadPaymentConfig(),
		Security: loadSecurityConfig(),
	}

	return config, nil
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:        getEnv("APP_NAME", "RideDispatch"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnvAsInt("APP_PORT", 8080),
		Host:        getEnv("APP_HOST", "localhost"),
		Debug:       getEnvAsBool("APP_DEBUG", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}
}

func loadSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		JWTSecret:          getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
		JWTAccessTokenTTL:  getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func loadPaymentConfig() *PaymentConfig {
	return &PaymentConfig{
		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		Enabled:         getEnvAsBool("PAYMENT_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func IsProduction() bool {
	return getEnv("APP_ENV", "development") == "production"
}

func IsDevelopment() bool {
	return getEnv("APP_ENV", "development") == "development"
}
