package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	AdminKeySalt string

	// Declaration workflow
	DeclarationSecret string
	Principal1Phone   string
	Principal2Phone   string
	CodeTTL           time.Duration
	ChallengeTTL      time.Duration
	TokenTTL          time.Duration
	MaxCodeAttempts   int
	SweepInterval     time.Duration

	// Reconciliation
	MergeMaxAttempts int

	// Code delivery (empty brokers = log only)
	KafkaBrokers []string
	NotifyTopic  string
}

// ParseFlags validates flags and fills the rest from the environment.
// A .env file in the working directory is loaded first if present.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	fs := flag.NewFlagSet("election-tally", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")
	fs.StringVar(&cfg.DeclarationSecret, "declaration-secret", "", "Shared declaration secret (prefer env)")

	fs.StringVar(&cfg.Principal1Phone, "principal1-phone", "", "Phone of authorized principal 1")
	fs.StringVar(&cfg.Principal2Phone, "principal2-phone", "", "Phone of authorized principal 2")
	fs.DurationVar(&cfg.CodeTTL, "code-ttl", 0, "One-time code lifetime")
	fs.DurationVar(&cfg.ChallengeTTL, "challenge-ttl", 0, "Declaration challenge lifetime")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", 0, "Capability token lifetime")
	fs.IntVar(&cfg.MaxCodeAttempts, "max-code-attempts", 0, "Wrong guesses allowed per code")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", 0, "Expired code cleanup interval")
	fs.IntVar(&cfg.MergeMaxAttempts, "merge-attempts", 0, "Merge commit attempts on contention")

	var brokers string
	fs.StringVar(&brokers, "kafka-brokers", "", "Comma-separated Kafka brokers for code delivery")
	fs.StringVar(&cfg.NotifyTopic, "notify-topic", "", "Kafka topic for code delivery")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	if cfg.DeclarationSecret == "" {
		cfg.DeclarationSecret = os.Getenv("DECLARATION_SECRET")
	}
	if cfg.DeclarationSecret == "" {
		return Config{}, errors.New("DECLARATION_SECRET required")
	}

	if cfg.Principal1Phone == "" {
		cfg.Principal1Phone = os.Getenv("PRINCIPAL1_PHONE")
	}
	if cfg.Principal2Phone == "" {
		cfg.Principal2Phone = os.Getenv("PRINCIPAL2_PHONE")
	}
	if cfg.Principal1Phone == "" || cfg.Principal2Phone == "" {
		return Config{}, errors.New("PRINCIPAL1_PHONE and PRINCIPAL2_PHONE required")
	}
	if cfg.Principal1Phone == cfg.Principal2Phone {
		return Config{}, errors.New("principal phones must differ")
	}

	var err error
	if cfg.CodeTTL, err = durationOr(cfg.CodeTTL, "CODE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ChallengeTTL, err = durationOr(cfg.ChallengeTTL, "CHALLENGE_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationOr(cfg.TokenTTL, "TOKEN_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationOr(cfg.SweepInterval, "SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.MaxCodeAttempts, err = intOr(cfg.MaxCodeAttempts, "MAX_CODE_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.MergeMaxAttempts, err = intOr(cfg.MergeMaxAttempts, "MERGE_MAX_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}

	if brokers == "" {
		brokers = os.Getenv("KAFKA_BROKERS")
	}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}
	if cfg.NotifyTopic == "" {
		cfg.NotifyTopic = os.Getenv("NOTIFY_TOPIC")
		if cfg.NotifyTopic == "" {
			cfg.NotifyTopic = "declaration.otp"
		}
	}

	return cfg, nil
}

func durationOr(v time.Duration, env string, def time.Duration) (time.Duration, error) {
	if v > 0 {
		return v, nil
	}
	s := os.Getenv(env)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s env variable", env)
	}
	return d, nil
}

func intOr(v int, env string, def int) (int, error) {
	if v > 0 {
		return v, nil
	}
	s := os.Getenv(env)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s env variable", env)
	}
	return n, nil
}
