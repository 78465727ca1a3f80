package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Booking  BookingConfig  `yaml:"booking"`
	Payment  PaymentConfig  `yaml:"payment"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address     string   `yaml:"address" envconfig:"HTTP_ADDRESS"`
	SwaggerDir  string   `yaml:"swagger_dir" envconfig:"HTTP_SWAGGER_DIR"`
	CORSOrigins []string `yaml:"cors_origins" envconfig:"HTTP_CORS_ORIGINS"`
}

type GRPCConfig struct {
	Address string `yaml:"address" envconfig:"GRPC_ADDRESS"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           int    `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"ssl_mode" envconfig:"DB_SSLMODE"`
	MaxConns       int    `yaml:"max_conns" envconfig:"DB_MAX_CONNS"`
	ConnectRetries int    `yaml:"connect_retries" envconfig:"DB_CONNECT_RETRIES"`
}

func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", d.MaxConns)
	}
	return dsn
}

type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	BookingTopic       string   `yaml:"booking_topic" envconfig:"KAFKA_BOOKING_TOPIC"`
	PaymentTopic       string   `yaml:"payment_topic" envconfig:"KAFKA_PAYMENT_TOPIC"`
	NotificationsTopic string   `yaml:"notifications_topic" envconfig:"KAFKA_NOTIFICATIONS_TOPIC"`
	GroupID            string   `yaml:"group_id" envconfig:"KAFKA_GROUP_ID"`
}

type MongoConfig struct {
	URI             string `yaml:"uri" envconfig:"MONGODB_URI"`
	Database        string `yaml:"database" envconfig:"MONGODB_DATABASE"`
	AuditCollection string `yaml:"audit_collection" envconfig:"MONGODB_AUDIT_COLLECTION"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" envconfig:"LOG_PRETTY"`
}

type TracingConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"TRACING_SERVICE_NAME"`
	JaegerEndpoint string `yaml:"jaeger_endpoint" envconfig:"TRACING_JAEGER_ENDPOINT"`
}

type BookingConfig struct {
	FlightsCacheTTL int `yaml:"flights_cache_ttl_seconds" envconfig:"BOOKING_FLIGHTS_CACHE_TTL"`
}

type PaymentConfig struct {
	GatewayTimeoutSeconds int    `yaml:"gateway_timeout_seconds" envconfig:"PAYMENT_GATEWAY_TIMEOUT"`
	MinAmount             int64  `yaml:"min_amount" envconfig:"PAYMENT_MIN_AMOUNT"`
	MaxAmount             int64  `yaml:"max_amount" envconfig:"PAYMENT_MAX_AMOUNT"`
	ReturnURL             string `yaml:"return_url" envconfig:"PAYMENT_RETURN_URL"`
	IPNBaseURL            string `yaml:"ipn_base_url" envconfig:"PAYMENT_IPN_BASE_URL"`
	// Providers is keyed by payment method (MOMO, ZALOPAY). Secrets come from YAML or
	// <METHOD>_SECRET_KEY / <METHOD>_ACCESS_KEY environment variables.
	Providers map[string]ProviderConfig `yaml:"providers" ignored:"true"`
}

type ProviderConfig struct {
	PartnerCode string `yaml:"partner_code"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Endpoint    string `yaml:"endpoint"`
	RequestType string `yaml:"request_type"`
	OrderPrefix string `yaml:"order_prefix"`
}

type WorkerConfig struct {
	ReconcileSweepMinutes int `yaml:"reconcile_sweep_minutes" envconfig:"WORKER_RECONCILE_SWEEP_MINUTES"`
}

// LoadConfig reads the YAML file at path and overlays environment variables.
// A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	applyProviderSecrets(&cfg)
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyProviderSecrets(cfg *Config) {
	for method, p := range cfg.Payment.Providers {
		key := strings.ToUpper(method)
		if v := os.Getenv(key + "_SECRET_KEY"); v != "" {
			p.SecretKey = v
		}
		if v := os.Getenv(key + "_ACCESS_KEY"); v != "" {
			p.AccessKey = v
		}
		cfg.Payment.Providers[method] = p
	}
}

func (c *Config) setDefaults() {
	if c.Payment.GatewayTimeoutSeconds <= 0 {
		c.Payment.GatewayTimeoutSeconds = 10
	}
	if c.Payment.MinAmount == 0 {
		c.Payment.MinAmount = 1000
	}
	if c.Payment.MaxAmount == 0 {
		c.Payment.MaxAmount = 20_000_000
	}
	if c.Worker.ReconcileSweepMinutes <= 0 {
		c.Worker.ReconcileSweepMinutes = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Mongo.AuditCollection == "" {
		c.Mongo.AuditCollection = "payment_callbacks"
	}
}

func (c *Config) Validate() error {
	if c.Payment.MinAmount > c.Payment.MaxAmount {
		return fmt.Errorf("payment.min_amount %d exceeds payment.max_amount %d", c.Payment.MinAmount, c.Payment.MaxAmount)
	}
	for method, p := range c.Payment.Providers {
		if p.SecretKey == "" {
			return fmt.Errorf("payment provider %s: secret_key is required", method)
		}
		if p.Endpoint == "" {
			return fmt.Errorf("payment provider %s: endpoint is required", method)
		}
	}
	return nil
}
