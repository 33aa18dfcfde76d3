package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

const defaultConnectionString = "Host=localhost;Port=5432;Database=bank_system;Username=postgres;Password=postgres;Timeout=30;CommandTimeout=30"

var defaultStartingBalance = decimal.NewFromInt(10000)

type Config struct {
	Store           string
	DatabaseDSN     string
	KafkaBrokers    []string
	StartingBalance decimal.Decimal
	BcryptCost      int
	LogLevel        string
	LogFile         string

	// EnvFileLoaded is false when no .env file was found; the process then
	// relies on the real environment alone.
	EnvFileLoaded bool
}

// Load reads an optional .env file (or the given files) and then the
// environment, falling back to defaults for anything unset.
func Load(envFiles ...string) (Config, error) {
	loaded := godotenv.Load(envFiles...) == nil

	store := strings.ToLower(getEnv("STORE", StorePostgres))
	if store != StorePostgres && store != StoreMemory {
		return Config{}, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, store)
	}

	startingBalance := defaultStartingBalance
	if raw := getEnv("STARTING_BALANCE", ""); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse STARTING_BALANCE: %w", err)
		}
		if v.IsNegative() {
			return Config{}, fmt.Errorf("STARTING_BALANCE must not be negative, got %s", v)
		}
		startingBalance = v
	}

	cost := bcrypt.DefaultCost
	if raw := getEnv("BCRYPT_COST", ""); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse BCRYPT_COST: %w", err)
		}
		if v < bcrypt.MinCost || v > bcrypt.MaxCost {
			return Config{}, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, v)
		}
		cost = v
	}

	return Config{
		Store:           store,
		DatabaseDSN:     normalizeConnectionString(getEnv("DATABASE_DSN", defaultConnectionString)),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		StartingBalance: startingBalance,
		BcryptCost:      cost,
		LogLevel:        getEnv("LOG_LEVEL", "warn"),
		LogFile:         getEnv("LOG_FILE", ""),
		EnvFileLoaded:   loaded,
	}, nil
}

// Helper to get env with a default fallback; blank values count as unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeConnectionString accepts either a libpq string/URL or an
// ADO-style "Host=…;Database=…" string and returns something lib/pq can parse.
func normalizeConnectionString(raw string) string {
	if !strings.Contains(raw, ";") {
		return raw
	}

	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	hasSSLMode := false

	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}

		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])

		switch key {
		case "host", "server":
			out = append(out, "host="+val)
		case "port":
			out = append(out, "port="+val)
		case "database":
			out = append(out, "dbname="+val)
		case "username", "user id":
			out = append(out, "user="+val)
		case "password":
			out = append(out, "password="+val)
		case "timeout", "connect timeout":
			out = append(out, "connect_timeout="+val)
		case "commandtimeout", "command timeout":
			out = append(out, "statement_timeout="+val+"s")
		case "sslmode", "ssl mode":
			hasSSLMode = true
			out = append(out, "sslmode="+val)
		default:
			out = append(out, key+"="+val)
		}
	}

	if len(out) == 0 {
		return raw
	}

	if !hasSSLMode {
		out = append(out, "sslmode=disable")
	}

	return strings.Join(out, " ")
}
