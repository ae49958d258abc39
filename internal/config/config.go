package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Events   EventsConfig
	Floor    FloorConfig
	Workers  WorkersConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Host string `env:"HOST" envDefault:"localhost"`
	Port int    `env:"PORT" envDefault:"8080"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6380"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
	PoolSize int    `env:"POOL_SIZE" envDefault:"10"`
}

type PostgresConfig struct {
	User     string `env:"USER,required,notEmpty"`
	Password string `env:"PASSWORD,required,notEmpty"`
	Name     string `env:"DB,required,notEmpty"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"10"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(p.User),
		url.QueryEscape(p.Password),
		p.Host,
		p.Port,
		p.Name,
		p.SSLMode,
	)
}

// EventsConfig selects where floor events are published.
type EventsConfig struct {
	Backend     string `env:"EVENTS_BACKEND" envDefault:"redis"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type FloorConfig struct {
	TableCapacities  []int         `env:"TABLE_CAPACITIES" envDefault:"2,4,4,6,10" envSeparator:","`
	OpeningHour      int           `env:"OPENING_HOUR" envDefault:"9"`
	ClosingHour      int           `env:"CLOSING_HOUR" envDefault:"22"`
	ReservationHours int           `env:"RESERVATION_HOURS" envDefault:"2"`
	NoShowGrace      time.Duration `env:"NO_SHOW_GRACE" envDefault:"5m"`
	Timezone         string        `env:"TIMEZONE" envDefault:"Local"`

	loc *time.Location
}

// Location is the resolved TIMEZONE. Business days and opening hours are
// evaluated in it.
func (f FloorConfig) Location() *time.Location {
	if f.loc == nil {
		return time.Local
	}
	return f.loc
}

type WorkersConfig struct {
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"1m"`
}

type LimitsConfig struct {
	RateLimit      int           `env:"RATE_LIMIT" envDefault:"10"`
	RateWindow     time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"2h"`
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	loc, err := time.LoadLocation(cfg.Floor.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid TIMEZONE: %w", op, err)
	}
	cfg.Floor.loc = loc

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}

	switch c.Events.Backend {
	case "redis":
	case "rabbitmq":
		if c.Events.RabbitMQURL == "" {
			return fmt.Errorf("missing RABBITMQ_URL for rabbitmq events backend")
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend)
	}

	if len(c.Floor.TableCapacities) == 0 {
		return fmt.Errorf("TABLE_CAPACITIES must list at least one table")
	}
	for _, seats := range c.Floor.TableCapacities {
		if seats <= 0 {
			return fmt.Errorf("invalid table capacity %d", seats)
		}
	}

	if c.Floor.OpeningHour < 0 || c.Floor.ClosingHour > 24 || c.Floor.OpeningHour >= c.Floor.ClosingHour {
		return fmt.Errorf("invalid opening hours %d-%d", c.Floor.OpeningHour, c.Floor.ClosingHour)
	}

	if c.Floor.ReservationHours <= 0 {
		return fmt.Errorf("invalid RESERVATION_HOURS: %d", c.Floor.ReservationHours)
	}

	if c.Workers.SweepInterval <= 0 || c.Workers.SnapshotInterval <= 0 {
		return fmt.Errorf("worker intervals must be positive")
	}

	if c.Limits.RateLimit <= 0 || c.Limits.RateWindow <= 0 {
		return fmt.Errorf("rate limit and window must be positive")
	}

	return nil
}
