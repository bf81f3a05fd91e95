package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every process-wide setting. It is built once in main and
// passed into constructors; components never read the environment directly.
type Config struct {
	Host string
	Port string

	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBAutoMigrate bool

	PayAdmitAPIURL  string
	PayAdmitAPIKey  string
	PayAdmitSignKey string

	JWTSecret string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string

	GatewayTimeout    time.Duration
	ReconcileInterval time.Duration
	ReconcileStuckAge time.Duration
}

func Load() Config {
	cfg := Config{
		Host: getenv("HOST", "127.0.0.1"),
		Port: getenv("PORT", "3000"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),

		PayAdmitAPIURL:  os.Getenv("PAYADMIT_API_URL"),
		PayAdmitAPIKey:  os.Getenv("PAYADMIT_API_KEY"),
		PayAdmitSignKey: os.Getenv("PAYADMIT_SIGN_KEY"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		GatewayTimeout:    getduration("GATEWAY_TIMEOUT", 5*time.Second),
		ReconcileInterval: getduration("RECONCILE_INTERVAL", 2*time.Minute),
		ReconcileStuckAge: getduration("RECONCILE_STUCK_AGE", 10*time.Minute),
	}

	if v, err := strconv.ParseBool(os.Getenv("DB_AUTO_MIGRATE")); err == nil {
		cfg.DBAutoMigrate = v
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	return cfg
}

// DSN builds the Postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
