package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConf struct {
	Env            string `mapstructure:"env"`
	Port           int    `mapstructure:"port"`
	ShutdownSecond int    `mapstructure:"shutdown_seconds"`
	CORSOrigins    string `mapstructure:"cors_origins"`
}

func (a *AppConf) PortString() string { return fmt.Sprintf("%d", a.Port) }

func (a *AppConf) IsDevelopment() bool { return a.Env == "development" }

type MongoConf struct {
	URI                string `mapstructure:"uri"`
	Database           string `mapstructure:"database"`
	MessagesCollection string `mapstructure:"messages_collection"`
	UsersCollection    string `mapstructure:"users_collection"`
	MediaCollection    string `mapstructure:"media_collection"`
}

// RedisConf is optional; an empty Addr disables the presence mirror and
// falls back to the in-memory rate limiter.
type RedisConf struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConf struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JWTConf struct {
	Algorithm     string `mapstructure:"algorithm"`
	HSSecret      string `mapstructure:"secret"`
	PublicKeyPath string `mapstructure:"public_key_path"`
	CookieName    string `mapstructure:"cookie_name"`
}

type TranslateConf struct {
	Provider              string `mapstructure:"provider"`
	URL                   string `mapstructure:"url"`
	APIKey                string `mapstructure:"api_key"`
	DefaultLanguage       string `mapstructure:"default_language"`
	TimeoutMs             int    `mapstructure:"timeout_ms"`
	MaxRetries            int    `mapstructure:"max_retries"`
	BreakerMaxFailures    int    `mapstructure:"breaker_max_failures"`
	BreakerTimeoutSeconds int    `mapstructure:"breaker_timeout_seconds"`
}

type MediaConf struct {
	Region               string `mapstructure:"region"`
	Bucket               string `mapstructure:"bucket"`
	Endpoint             string `mapstructure:"endpoint"`
	PublicBaseURL        string `mapstructure:"public_base_url"`
	MaxBytes             int64  `mapstructure:"max_bytes"`
	UploadTimeoutSeconds int    `mapstructure:"upload_timeout_seconds"`
	Thumbnails           bool   `mapstructure:"thumbnails"`
	MaxThumbnailPixels   int64  `mapstructure:"max_thumbnail_pixels"`
}

type WSConf struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	SendBuffer           int   `mapstructure:"send_buffer"`
}

type MessageConf struct {
	MaxTextLength int `mapstructure:"max_text_length"`
}

type RateLimitConf struct {
	PerMinute int `mapstructure:"per_minute"`
}

type Config struct {
	App       AppConf       `mapstructure:"app"`
	Mongo     MongoConf     `mapstructure:"mongo"`
	Redis     RedisConf     `mapstructure:"redis"`
	Kafka     KafkaConf     `mapstructure:"kafka"`
	JWT       JWTConf       `mapstructure:"jwt"`
	Translate TranslateConf `mapstructure:"translate"`
	Media     MediaConf     `mapstructure:"media"`
	WS        WSConf        `mapstructure:"ws"`
	Message   MessageConf   `mapstructure:"message"`
	RateLimit RateLimitConf `mapstructure:"rate_limit"`
	Log       struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	// derived
	ShutdownTimeout  time.Duration
	TranslateTimeout time.Duration
	BreakerTimeout   time.Duration
	UploadTimeout    time.Duration
	PingInterval     time.Duration
	WriteDeadline    time.Duration
	RateLimitWindow  time.Duration
}

// Load reads the YAML file at path (when present), applies .env and
// environment overrides, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	bindLegacyEnv(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	derive(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.port", 5001)
	v.SetDefault("app.shutdown_seconds", 15)
	v.SetDefault("app.cors_origins", "")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "")
	v.SetDefault("mongo.messages_collection", "messages")
	v.SetDefault("mongo.users_collection", "users")
	v.SetDefault("mongo.media_collection", "media")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "dm")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "message.created")

	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.cookie_name", "jwt")

	v.SetDefault("translate.provider", "none")
	v.SetDefault("translate.url", "")
	v.SetDefault("translate.api_key", "")
	v.SetDefault("translate.default_language", "en")
	v.SetDefault("translate.timeout_ms", 3000)
	v.SetDefault("translate.max_retries", 2)
	v.SetDefault("translate.breaker_max_failures", 5)
	v.SetDefault("translate.breaker_timeout_seconds", 30)

	v.SetDefault("media.region", "us-east-1")
	v.SetDefault("media.bucket", "")
	v.SetDefault("media.endpoint", "")
	v.SetDefault("media.public_base_url", "")
	v.SetDefault("media.max_bytes", 5*1024*1024)
	v.SetDefault("media.upload_timeout_seconds", 15)
	v.SetDefault("media.thumbnails", true)
	v.SetDefault("media.max_thumbnail_pixels", 40_000_000)

	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.max_message_size_bytes", 65536)
	v.SetDefault("ws.send_buffer", 64)

	v.SetDefault("message.max_text_length", 5000)
	v.SetDefault("rate_limit.per_minute", 60)
	v.SetDefault("log.level", "info")
}

// bindLegacyEnv keeps the variable names the other chat services use.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("app.env", "APP_ENV")
	_ = v.BindEnv("app.port", "SERVICE_PORT", "PORT")
	_ = v.BindEnv("app.cors_origins", "CORS_ORIGINS", "CLIENT_URL")
	_ = v.BindEnv("mongo.uri", "MONGO_URI", "MONGODB_URI")
	_ = v.BindEnv("mongo.database", "MONGO_DB", "MONGO_NAME")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS", "KAFKA_BROKER")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.public_key_path", "JWT_PUBLIC_KEY_PATH")
	_ = v.BindEnv("translate.url", "TRANSLATE_URL", "LIBRETRANSLATE_URL")
	_ = v.BindEnv("translate.api_key", "TRANSLATE_API_KEY")
	_ = v.BindEnv("media.bucket", "S3_BUCKET")
	_ = v.BindEnv("media.region", "AWS_REGION")
	_ = v.BindEnv("media.endpoint", "S3_ENDPOINT")
}

func derive(cfg *Config) {
	if cfg.App.ShutdownSecond <= 0 {
		cfg.App.ShutdownSecond = 15
	}
	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSecond) * time.Second

	if cfg.Translate.TimeoutMs <= 0 {
		cfg.Translate.TimeoutMs = 3000
	}
	cfg.TranslateTimeout = time.Duration(cfg.Translate.TimeoutMs) * time.Millisecond
	if cfg.Translate.BreakerTimeoutSeconds <= 0 {
		cfg.Translate.BreakerTimeoutSeconds = 30
	}
	cfg.BreakerTimeout = time.Duration(cfg.Translate.BreakerTimeoutSeconds) * time.Second
	if cfg.Translate.DefaultLanguage == "" {
		cfg.Translate.DefaultLanguage = "en"
	}

	if cfg.Media.UploadTimeoutSeconds <= 0 {
		cfg.Media.UploadTimeoutSeconds = 15
	}
	cfg.UploadTimeout = time.Duration(cfg.Media.UploadTimeoutSeconds) * time.Second

	if cfg.WS.PingIntervalSeconds <= 0 {
		cfg.WS.PingIntervalSeconds = 25
	}
	if cfg.WS.WriteDeadlineSeconds <= 0 {
		cfg.WS.WriteDeadlineSeconds = 10
	}
	if cfg.WS.MaxMessageSizeBytes <= 0 {
		cfg.WS.MaxMessageSizeBytes = 65536
	}
	if cfg.WS.SendBuffer <= 0 {
		cfg.WS.SendBuffer = 64
	}
	cfg.PingInterval = time.Duration(cfg.WS.PingIntervalSeconds) * time.Second
	cfg.WriteDeadline = time.Duration(cfg.WS.WriteDeadlineSeconds) * time.Second

	cfg.RateLimitWindow = time.Minute
}

func validate(cfg *Config) error {
	if cfg.App.Port == 0 {
		return errors.New("app.port missing or invalid")
	}

	if cfg.Mongo.URI == "" {
		return errors.New("mongo.uri missing")
	}
	if cfg.Mongo.Database == "" {
		return errors.New("mongo.database missing")
	}

	switch strings.ToUpper(cfg.JWT.Algorithm) {
	case "RS256":
		if cfg.JWT.PublicKeyPath == "" {
			return errors.New("jwt.public_key_path required for RS256")
		}
	case "HS256":
		if cfg.JWT.HSSecret == "" {
			return errors.New("jwt.secret required for HS256")
		}
	default:
		return errors.New("invalid jwt.algorithm (use RS256 or HS256)")
	}

	switch cfg.Translate.Provider {
	case "libre":
		if cfg.Translate.URL == "" {
			return errors.New("translate.url required for the libre provider")
		}
	case "none":
	default:
		return fmt.Errorf("unknown translate.provider %q", cfg.Translate.Provider)
	}

	if cfg.Message.MaxTextLength <= 0 {
		return errors.New("message.max_text_length must be positive")
	}
	if cfg.Media.MaxBytes <= 0 {
		return errors.New("media.max_bytes must be positive")
	}
	return nil
}
