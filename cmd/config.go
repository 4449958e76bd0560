package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"orderflow/internal/adapters/in/consumers"
	"orderflow/internal/pkg/errs"
)

// ServiceOrdering is the REST API together with its database. The other
// services are the consumer services of the consumers package.
const ServiceOrdering = "ordering"

// Event log drivers.
const (
	BusKafka  = "kafka"
	BusRedis  = "redis"
	BusMemory = "memory"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// Services run by this process. Splitting them across processes gives
	// each its own deployment while sharing one binary.
	Services []string `env:"SERVICES" envSeparator:"," envDefault:"ordering,agents,partners,customers"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBSslMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	BusDriver           string        `env:"BUS_DRIVER" envDefault:"kafka"`
	KafkaBrokers        []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaCommitInterval time.Duration `env:"KAFKA_COMMIT_INTERVAL" envDefault:"1s"`
	KafkaWriteTimeout   time.Duration `env:"KAFKA_WRITE_TIMEOUT" envDefault:"10s"`
	RedisAddr           string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisBlock          time.Duration `env:"REDIS_BLOCK" envDefault:"1s"`
	RedisConsumer       string        `env:"REDIS_CONSUMER"`
	RedisShards         int           `env:"REDIS_SHARDS" envDefault:"4"`
	RedisLeaseTTL       time.Duration `env:"REDIS_LEASE_TTL" envDefault:"10s"`

	JWTSecret string `env:"JWT_SECRET"`

	SweepSchedule       string        `env:"SWEEP_SCHEDULE" envDefault:"@every 30s"`
	UnpublishedSchedule string        `env:"UNPUBLISHED_SCHEDULE" envDefault:"@every 1m"`
	UnpublishedGrace    time.Duration `env:"UNPUBLISHED_GRACE" envDefault:"1m"`
}

// LoadConfig reads the optional dotenv files, then the environment.
// Variables already set in the environment win over the files.
func LoadConfig(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.RedisConsumer == "" {
		// must survive restarts, see redisstream.Config
		cfg.RedisConsumer, _ = os.Hostname()
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var problems []error
	for _, s := range c.Services {
		if !slices.Contains(knownServices(), s) {
			problems = append(problems, errs.NewValueIsInvalidErrorWithCause("SERVICES", fmt.Errorf("unknown service %q", s)))
		}
	}
	if len(c.Services) == 0 {
		problems = append(problems, errs.NewValueIsRequiredError("SERVICES"))
	}
	if !slices.Contains([]string{BusKafka, BusRedis, BusMemory}, c.BusDriver) {
		problems = append(problems, errs.NewValueIsInvalidErrorWithCause("BUS_DRIVER", fmt.Errorf("unknown driver %q", c.BusDriver)))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		problems = append(problems, errs.NewValueIsRequiredError("JWT_SECRET"))
	}
	if c.Runs(ServiceOrdering) && c.DBName == "" {
		problems = append(problems, errs.NewValueIsRequiredError("DB_NAME"))
	}
	return errors.Join(problems...)
}

// Runs reports whether service is enabled in this process.
func (c Config) Runs(service string) bool {
	return slices.Contains(c.Services, service)
}

// DSN is the Postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode)
}

// SlogLevel maps LOG_LEVEL to a slog level, info when unrecognised.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func knownServices() []string {
	return []string{ServiceOrdering, consumers.ServiceAgents, consumers.ServicePartners, consumers.ServiceCustomers}
}
