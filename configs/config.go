package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	TransportWebhook = "webhook"
	TransportAMQP    = "amqp"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Dispatch struct {
	Transport  string
	WebhookURL string
	// Secret is sent as X-Webhook-Secret on outbound webhook calls.
	Secret     string
	Timeout    time.Duration
	AMQPURL    string
	Exchange   string
	RoutingKey string
}

type Sweep struct {
	Interval    time.Duration
	Concurrency int
}

type Config struct {
	Port           string
	AppEnv         string
	DatabaseDriver string
	PostgresURI    string
	SQLitePath     string
	RedisURI       string
	FrontendURL    string
	SecretKey      string
	CronSecret     string
	WebhookSecret  string
	MediaFolder    string

	// RequirePublishing rejects outcome callbacks for posts that are not
	// currently publishing.
	RequirePublishing bool

	Dispatch Dispatch
	Sweep    Sweep
	R2       R2
}

// IsProduction reports whether shared-secret checks on the sweep trigger are enforced.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, EnvProduction)
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("unable to parse config file, using environment only", "error", err)
		}
	}

	return fromViper(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("port", "3000")
	v.SetDefault("app_env", EnvDevelopment)
	v.SetDefault("database_driver", DriverPostgres)
	v.SetDefault("sqlite_path", "./data/scheduler.db")
	v.SetDefault("frontend_url", "http://localhost:5173")
	v.SetDefault("media_folder", "social-scheduler")
	v.SetDefault("callback_require_publishing", true)
	v.SetDefault("dispatch_transport", TransportWebhook)
	v.SetDefault("dispatch_timeout", "30s")
	v.SetDefault("amqp_exchange", "social.publish")
	v.SetDefault("amqp_routing_key", "post.due")
	v.SetDefault("sweep_interval", "1m")
	v.SetDefault("sweep_concurrency", 10)

	return v
}

func fromViper(v *viper.Viper) *Config {
	concurrency := v.GetInt("sweep_concurrency")
	if concurrency <= 0 {
		concurrency = 10
	}

	return &Config{
		Port:              v.GetString("port"),
		AppEnv:            v.GetString("app_env"),
		DatabaseDriver:    strings.ToLower(v.GetString("database_driver")),
		PostgresURI:       v.GetString("postgres_uri"),
		SQLitePath:        v.GetString("sqlite_path"),
		RedisURI:          v.GetString("redis_uri"),
		FrontendURL:       v.GetString("frontend_url"),
		SecretKey:         v.GetString("secret_key"),
		CronSecret:        v.GetString("cron_secret"),
		WebhookSecret:     v.GetString("webhook_secret"),
		MediaFolder:       v.GetString("media_folder"),
		RequirePublishing: v.GetBool("callback_require_publishing"),
		Dispatch: Dispatch{
			Transport:  strings.ToLower(v.GetString("dispatch_transport")),
			WebhookURL: v.GetString("dispatch_webhook_url"),
			Secret:     v.GetString("webhook_secret"),
			Timeout:    v.GetDuration("dispatch_timeout"),
			AMQPURL:    v.GetString("amqp_url"),
			Exchange:   v.GetString("amqp_exchange"),
			RoutingKey: v.GetString("amqp_routing_key"),
		},
		Sweep: Sweep{
			Interval:    sweepInterval(v),
			Concurrency: concurrency,
		},
		R2: R2{
			AccountID:  v.GetString("r2_account_id"),
			AccessKey:  v.GetString("r2_access_key"),
			SecretKey:  v.GetString("r2_secret_key"),
			BucketName: v.GetString("r2_bucket_name"),
			PublicURL:  strings.TrimRight(v.GetString("r2_public_url"), "/"),
		},
	}
}

// sweepInterval treats an explicitly empty SWEEP_INTERVAL as disabled; viper
// skips empty environment values and would fall back to the default.
func sweepInterval(v *viper.Viper) time.Duration {
	if raw, ok := os.LookupEnv("SWEEP_INTERVAL"); ok && strings.TrimSpace(raw) == "" {
		return 0
	}
	return v.GetDuration("sweep_interval")
}

// DatabaseDSN returns the connection string for the configured driver.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseDriver == DriverSQLite {
		return c.SQLitePath
	}
	return c.PostgresURI
}
