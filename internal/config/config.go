package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Mail     MailConfig     `mapstructure:"mail"`
	Mailer   MailerConfig   `mapstructure:"mailer"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// MetricsConfig holds prometheus exposition configuration. An empty Listen
// disables the metrics endpoint.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig holds logging configuration. If File is set, logs are
// written to a rotating file instead of stdout.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// MailConfig holds submission defaults and limits.
type MailConfig struct {
	DefaultCharset    string `mapstructure:"default_charset"`
	DefaultReplyTo    string `mapstructure:"default_reply_to"`
	DefaultReturnPath string `mapstructure:"default_return_path"`
	MaxRecipients     int    `mapstructure:"max_recipients"`
	MaxAttachedBytes  int64  `mapstructure:"max_attached_bytes"`
	SequenceScope     string `mapstructure:"sequence_scope"`
	TemplateDelimiter string `mapstructure:"template_delimiter"`
}

// MailerConfig holds SMTP transport configuration.
type MailerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	LocalName      string        `mapstructure:"local_name"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
}

// WorkerConfig holds dispatch worker configuration. Multiprocess enables
// ownership-based claiming; ProcessID is then required.
type WorkerConfig struct {
	Multiprocess bool   `mapstructure:"multiprocess"`
	ProcessID    string `mapstructure:"process_id"`
	PatternID    string `mapstructure:"pattern_id"`
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix MAIL_DISPATCH_ override file values.
// For example, MAIL_DISPATCH_DATABASE_URL overrides database.url.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("MAIL_DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.pool_min", 2)
	v.SetDefault("database.pool_max", 10)
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("mail.default_charset", "UTF-8")
	v.SetDefault("mail.max_recipients", 100)
	v.SetDefault("mail.max_attached_bytes", 2*1024*1024)
	v.SetDefault("mail.sequence_scope", "mail_request")
	v.SetDefault("mail.template_delimiter", "---")
	v.SetDefault("mailer.port", 25)
	v.SetDefault("mailer.connect_timeout", 30*time.Second)
	v.SetDefault("mailer.send_timeout", 60*time.Second)
	// Registered so the MAIL_DISPATCH_METRICS_LISTEN override is picked up
	// even when the config file omits the section.
	v.SetDefault("metrics.listen", "")
}

// Validate checks configuration combinations that cannot work.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Mail.MaxRecipients < 1 {
		return fmt.Errorf("mail.max_recipients must be at least 1, got %d", c.Mail.MaxRecipients)
	}
	if c.Mail.MaxAttachedBytes < 0 {
		return fmt.Errorf("mail.max_attached_bytes must not be negative, got %d", c.Mail.MaxAttachedBytes)
	}
	return nil
}
