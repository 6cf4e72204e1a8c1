package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Environment    string   `mapstructure:"ENVIRONMENT"`
	Version        string   `mapstructure:"VERSION"`
	TrustedOrigins []string `mapstructure:"TRUSTED_ORIGINS"`
	SiteURL        string   `mapstructure:"SITE_URL"`
	TLSCertFile    string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string   `mapstructure:"TLS_KEY_FILE"`

	DBHost         string        `mapstructure:"POSTGRES_HOST"`
	DBPort         string        `mapstructure:"POSTGRES_PORT"`
	DBUser         string        `mapstructure:"POSTGRES_USER"`
	DBPassword     string        `mapstructure:"POSTGRES_PASSWORD"`
	DBName         string        `mapstructure:"POSTGRES_DB"`
	DBMaxOpenConns int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxIdleTime  time.Duration `mapstructure:"DB_MAX_IDLE_TIME"`

	MailHost     string `mapstructure:"MAIL_HOST"`
	MailPort     int    `mapstructure:"MAIL_PORT"`
	MailUser     string `mapstructure:"MAIL_USER"`
	MailPassword string `mapstructure:"MAIL_PASSWORD"`
	MailSender   string `mapstructure:"MAIL_SENDER"`

	MQHost     string `mapstructure:"RABBITMQ_HOST"`
	MQPort     string `mapstructure:"RABBITMQ_PORT"`
	MQUser     string `mapstructure:"RABBITMQ_USER"`
	MQPassword string `mapstructure:"RABBITMQ_PASSWORD"`

	RateLimitRPS     float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int     `mapstructure:"RATE_LIMIT_BURST"`
	RateLimitEnabled bool    `mapstructure:"RATE_LIMIT_ENABLED"`

	AdminEmail      string `mapstructure:"ADMIN_EMAIL"`
	StaffEmail      string `mapstructure:"STAFF_EMAIL"`
	BookingDelivery string `mapstructure:"BOOKING_DELIVERY"`
	GoogleClientID  string `mapstructure:"GOOGLE_CLIENT_ID"`

	BlobBackend    string `mapstructure:"BLOB_BACKEND"`
	UploadDir      string `mapstructure:"UPLOAD_DIR"`
	UploadMaxBytes int64  `mapstructure:"UPLOAD_MAX_BYTES"`
	// UploadTimeout replaces the server read timeout for upload requests.
	UploadTimeout time.Duration `mapstructure:"UPLOAD_TIMEOUT"`
	S3Endpoint    string        `mapstructure:"S3_ENDPOINT"`
	S3Region      string        `mapstructure:"S3_REGION"`
	S3Bucket      string        `mapstructure:"S3_BUCKET"`
	S3AccessKey   string        `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey   string        `mapstructure:"S3_SECRET_KEY"`
	S3PublicURL   string        `mapstructure:"S3_PUBLIC_URL"`

	RedisURL string `mapstructure:"REDIS_URL"`
}

var configDefaults = map[string]any{
	"PORT":               "4000",
	"ENVIRONMENT":        "development",
	"VERSION":            "1.0.0",
	"TRUSTED_ORIGINS":    "",
	"SITE_URL":           "http://localhost:3000",
	"TLS_CERT_FILE":      "",
	"TLS_KEY_FILE":       "",
	"POSTGRES_HOST":      "localhost",
	"POSTGRES_PORT":      "5432",
	"POSTGRES_USER":      "",
	"POSTGRES_PASSWORD":  "",
	"POSTGRES_DB":        "",
	"DB_MAX_OPEN_CONNS":  25,
	"DB_MAX_IDLE_CONNS":  25,
	"DB_MAX_IDLE_TIME":   "15m",
	"MAIL_HOST":          "",
	"MAIL_PORT":          587,
	"MAIL_USER":          "",
	"MAIL_PASSWORD":      "",
	"MAIL_SENDER":        "",
	"RABBITMQ_HOST":      "localhost",
	"RABBITMQ_PORT":      "5672",
	"RABBITMQ_USER":      "guest",
	"RABBITMQ_PASSWORD":  "guest",
	"RATE_LIMIT_RPS":     2,
	"RATE_LIMIT_BURST":   4,
	"RATE_LIMIT_ENABLED": true,
	"ADMIN_EMAIL":        "",
	"STAFF_EMAIL":        "",
	"BOOKING_DELIVERY":   "store",
	"GOOGLE_CLIENT_ID":   "",
	"BLOB_BACKEND":       "local",
	"UPLOAD_DIR":         "./uploads",
	"UPLOAD_MAX_BYTES":   20 << 20,
	"UPLOAD_TIMEOUT":     "5m",
	"S3_ENDPOINT":        "",
	"S3_REGION":          "us-east-1",
	"S3_BUCKET":          "",
	"S3_ACCESS_KEY":      "",
	"S3_SECRET_KEY":      "",
	"S3_PUBLIC_URL":      "",
	"REDIS_URL":          "",
}

// loadConfig reads the env file at path. Environment variables take precedence over the file.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.TrustedOrigins = splitOrigins(config.TrustedOrigins)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// splitOrigins accepts both a comma separated string and a list.
func splitOrigins(in []string) []string {
	out := []string{}
	for _, item := range in {
		for _, origin := range strings.Split(item, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	switch c.BookingDelivery {
	case "store", "email":
	default:
		return fmt.Errorf("BOOKING_DELIVERY must be store or email, got %q", c.BookingDelivery)
	}

	switch c.BlobBackend {
	case "local", "s3":
	default:
		return fmt.Errorf("BLOB_BACKEND must be local or s3, got %q", c.BlobBackend)
	}

	if c.UploadTimeout <= 0 {
		return fmt.Errorf("UPLOAD_TIMEOUT must be positive, got %s", c.UploadTimeout)
	}

	if c.Environment == "production" && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE are required in production")
	}

	return nil
}

func (c *Config) rabbitURI() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.MQUser, c.MQPassword, c.MQHost, c.MQPort)
}
