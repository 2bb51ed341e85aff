package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPPort string `envconfig:"APP_PORT" default:"8080"`
	DB       DBConfig
	JWT      JWTConfig
	Rates    RatesConfig
	Exposure ExposureConfig
	Kafka    KafkaConfig
}

type DBConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"     required:"true"`
	Port     string `envconfig:"POSTGRES_PORT"     required:"true"`
	User     string `envconfig:"POSTGRES_USER"     required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName   string `envconfig:"POSTGRES_DB"       required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE"  default:"disable"`
}

type JWTConfig struct {
	Secret string `envconfig:"JWT_SECRET" required:"true"`
}

type RatesConfig struct {
	FeedURL            string        `envconfig:"RATE_FEED_URL" default:"http://localhost:8090"`
	FeedTimeout        time.Duration `envconfig:"RATE_FEED_TIMEOUT" default:"5s"`
	RefreshInterval    time.Duration `envconfig:"RATE_REFRESH_INTERVAL" default:"1h"`
	CacheExpiration    time.Duration `envconfig:"RATE_CACHE_EXPIRATION" default:"5m"`
	StalenessThreshold time.Duration `envconfig:"RATE_STALENESS_THRESHOLD" default:"12h"`
}

type ExposureConfig struct {
	// Лимит по умолчанию в USD, действует для групп без
	// индивидуального лимита.
	DefaultLimitUSD string `envconfig:"DEFAULT_EXPOSURE_LIMIT_USD" default:"1000000"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"exposure-breaches"`
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"true"`
}

func NewConfig() (*Config, error) {
	envFile := "config.env"

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("warning: не удалось загрузить файл %s, используются только системные переменные окружения: %v", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	if _, err := decimal.NewFromString(cfg.Exposure.DefaultLimitUSD); err != nil {
		return nil, fmt.Errorf("DEFAULT_EXPOSURE_LIMIT_USD должен быть десятичным числом: %w", err)
	}

	return &cfg, nil
}

func (e *ExposureConfig) DefaultLimit() decimal.Decimal {
	// Валидируется в NewConfig.
	limit, _ := decimal.NewFromString(e.DefaultLimitUSD)
	return limit
}

func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

func (d *DBConfig) MigrationURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}
