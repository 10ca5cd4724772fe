package db

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Config holds PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // disable, require, verify-ca, verify-full
	// If provided, DSN takes precedence over other fields.
	DSN string
	// MaxConns bounds the pool; 0 means 8.
	MaxConns int32
}

// FromEnv loads the run ledger configuration from environment variables.
// DB_DSN overrides individual fields if set.
func FromEnv() Config {
	return Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "replication"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
		DSN:      os.Getenv("DB_DSN"),
		MaxConns: int32(getEnvInt("DB_MAX_CONNS", 0)),
	}
}

// FromDSN is a Config for a single connection string, as used for the
// source and destination catalog services.
func FromDSN(dsn string) Config { return Config{DSN: dsn} }

func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n != 0 {
		return n
	}
	return def
}
