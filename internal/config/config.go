package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

const (
	OrderFilterSale      = "sale"
	OrderFilterNotCancel = "not_cancel"

	SequenceBackendDB    = "db"
	SequenceBackendRedis = "redis"
)

type BondsConfig struct {
	OrderFilter       string
	ContractFallback  bool
	VarianceThreshold decimal.Decimal
	ManagerGroup      string
	SequenceCode      string
	SequencePrefix    string
	SequencePadding   int
	SequenceBackend   string
	AutoExpire        bool
	SweepSchedule     string
	TaskDueDays       int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Redis       RedisConfig
	AMQP        AMQPConfig
	Bonds       BondsConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString("AMQP_URL"),
			Exchange: v.GetString("AMQP_EXCHANGE"),
		},
		Bonds: BondsConfig{
			OrderFilter:      strings.ToLower(strings.TrimSpace(v.GetString("BONDS_ORDER_FILTER"))),
			ContractFallback: v.GetBool("BONDS_CONTRACT_FALLBACK"),
			ManagerGroup:     v.GetString("BONDS_MANAGER_GROUP"),
			SequenceCode:     v.GetString("BONDS_SEQUENCE_CODE"),
			SequencePrefix:   v.GetString("BONDS_SEQUENCE_PREFIX"),
			SequencePadding:  v.GetInt("BONDS_SEQUENCE_PADDING"),
			SequenceBackend:  strings.ToLower(strings.TrimSpace(v.GetString("SEQUENCE_BACKEND"))),
			AutoExpire:       v.GetBool("BONDS_AUTO_EXPIRE"),
			SweepSchedule:    v.GetString("SWEEP_SCHEDULE"),
			TaskDueDays:      v.GetInt("BONDS_TASK_DUE_DAYS"),
		},
	}

	threshold := strings.TrimSpace(v.GetString("BONDS_VARIANCE_THRESHOLD"))
	if threshold != "" {
		parsed, err := decimal.NewFromString(threshold)
		if err != nil {
			return nil, fmt.Errorf("BONDS_VARIANCE_THRESHOLD: %w", err)
		}
		cfg.Bonds.VarianceThreshold = parsed
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "bonds.events"
	}
	if cfg.Bonds.OrderFilter == "" {
		cfg.Bonds.OrderFilter = OrderFilterSale
	}
	if cfg.Bonds.VarianceThreshold.IsZero() {
		cfg.Bonds.VarianceThreshold = decimal.NewFromInt(3)
	}
	if cfg.Bonds.ManagerGroup == "" {
		cfg.Bonds.ManagerGroup = "bonds_manager"
	}
	if cfg.Bonds.SequenceCode == "" {
		cfg.Bonds.SequenceCode = "sid_bonds.orders"
	}
	if cfg.Bonds.SequencePrefix == "" {
		cfg.Bonds.SequencePrefix = "AVAL/"
	}
	if cfg.Bonds.SequencePadding == 0 {
		cfg.Bonds.SequencePadding = 5
	}
	if cfg.Bonds.SequenceBackend == "" {
		cfg.Bonds.SequenceBackend = SequenceBackendDB
	}
	if cfg.Bonds.SweepSchedule == "" {
		cfg.Bonds.SweepSchedule = "@daily"
	}
	if cfg.Bonds.TaskDueDays == 0 {
		cfg.Bonds.TaskDueDays = 3
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	switch cfg.Bonds.OrderFilter {
	case OrderFilterSale, OrderFilterNotCancel:
	default:
		return fmt.Errorf("BONDS_ORDER_FILTER must be %q or %q", OrderFilterSale, OrderFilterNotCancel)
	}
	switch cfg.Bonds.SequenceBackend {
	case SequenceBackendDB:
	case SequenceBackendRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for redis sequence backend")
		}
	default:
		return fmt.Errorf("SEQUENCE_BACKEND must be %q or %q", SequenceBackendDB, SequenceBackendRedis)
	}
	if cfg.Bonds.VarianceThreshold.IsNegative() {
		return fmt.Errorf("BONDS_VARIANCE_THRESHOLD must not be negative")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
