package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/collections-notifier/internal/model"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

type WhatsAppConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

// NotifyConfig tunes the sweep pipeline: which milestones exist, the civil
// timezone elapsed days are computed in, and delivery throttling.
type NotifyConfig struct {
	Timezone              string  `mapstructure:"timezone" validate:"omitempty,timezone"`
	Milestones            []int   `mapstructure:"milestones" validate:"omitempty,dive,min=1"`
	RatePerSecond         float64 `mapstructure:"rate_per_second"`
	RateBurst             int     `mapstructure:"rate_burst"`
	DeliveryTimeoutSecs   int     `mapstructure:"delivery_timeout_seconds"`
	MaxConcurrent         int     `mapstructure:"max_concurrent"`
	TemplateCacheTTLSecs  int     `mapstructure:"template_cache_ttl_seconds"`
	ReportChannel         string  `mapstructure:"report_channel"`
}

type ScheduleConfig struct {
	AutoStart  bool   `mapstructure:"auto_start"`
	Frequency  string `mapstructure:"frequency"`
	Hour       int    `mapstructure:"hour"`
	Minute     int    `mapstructure:"minute"`
	Weekdays   []int  `mapstructure:"weekdays"`
	DayOfMonth int    `mapstructure:"day_of_month"`
}

// envOverrides lets deployments inject secrets without touching the file.
type envOverrides struct {
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	WhatsAppToken    string `envconfig:"WHATSAPP_TOKEN"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	RedisURL         string `envconfig:"REDIS_URL"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("notifier", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	if env.DatabasePassword != "" {
		config.Database.Password = env.DatabasePassword
	}
	if env.SMTPPassword != "" {
		config.SMTP.Password = env.SMTPPassword
	}
	if env.WhatsAppToken != "" {
		config.WhatsApp.Token = env.WhatsAppToken
	}
	if env.JWTSecret != "" {
		config.Auth.JWTSecret = env.JWTSecret
	}
	if env.RedisURL != "" {
		config.Redis.URL = env.RedisURL
	}

	applyDefaults(&config)

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Notify.Timezone == "" {
		c.Notify.Timezone = "America/Sao_Paulo"
	}
	if len(c.Notify.Milestones) == 0 {
		c.Notify.Milestones = []int{3, 7, 15, 30}
	}
	if c.Notify.RatePerSecond <= 0 {
		c.Notify.RatePerSecond = 5
	}
	if c.Notify.RateBurst <= 0 {
		c.Notify.RateBurst = 10
	}
	if c.Notify.DeliveryTimeoutSecs <= 0 {
		c.Notify.DeliveryTimeoutSecs = 15
	}
	if c.Notify.MaxConcurrent <= 0 {
		c.Notify.MaxConcurrent = 8
	}
	if c.Notify.TemplateCacheTTLSecs <= 0 {
		c.Notify.TemplateCacheTTLSecs = 300
	}
	if c.Notify.ReportChannel == "" {
		c.Notify.ReportChannel = "collections.sweep_reports"
	}
	if c.WhatsApp.TimeoutSeconds <= 0 {
		c.WhatsApp.TimeoutSeconds = 15
	}
}

func (c NotifyConfig) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSecs) * time.Second
}

// ToScheduleConfig converts the file form into the validated model form.
func (c ScheduleConfig) ToScheduleConfig() (model.ScheduleConfig, error) {
	cfg := model.ScheduleConfig{
		Frequency:  model.Frequency(c.Frequency),
		Hour:       c.Hour,
		Minute:     c.Minute,
		DayOfMonth: c.DayOfMonth,
	}
	for _, d := range c.Weekdays {
		cfg.Weekdays = append(cfg.Weekdays, time.Weekday(d))
	}
	if err := cfg.Validate(); err != nil {
		return model.ScheduleConfig{}, fmt.Errorf("invalid schedule config: %w", err)
	}
	return cfg, nil
}
