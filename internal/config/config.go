// internal/config/config.go
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Port      string `yaml:"port" envconfig:"PORT"`
	LogLevel  string `yaml:"log_level" split_words:"true"`
	BrandName string `yaml:"brand_name" split_words:"true"`

	Storage struct {
		Backend   string `yaml:"backend"`
		QueueSize int    `yaml:"queue_size" split_words:"true"`
	} `yaml:"storage" envconfig:"STORAGE"`

	Leads struct {
		File string `yaml:"file"`
	} `yaml:"leads" envconfig:"LEADS"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database" envconfig:"DATABASE"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis" envconfig:"REDIS"`

	RabbitMQ struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"rabbitmq" envconfig:"RABBITMQ"`

	SMTP struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		User string `yaml:"user"`
		Pass string `yaml:"pass"`
	} `yaml:"smtp" envconfig:"SMTP"`

	// Mail and Checkout accept several env spellings, resolved in applyAliases.
	Mail struct {
		From string `yaml:"from"`
		To   string `yaml:"to"`
	} `yaml:"mail" ignored:"true"`

	Checkout struct {
		PaymentURL string `yaml:"payment_url"`
	} `yaml:"checkout" ignored:"true"`
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() *Config {
	cfg := &Config{
		Port:      "8080",
		LogLevel:  "info",
		BrandName: "A+ Enterprise LLC",
	}
	cfg.Storage.QueueSize = 64
	cfg.Leads.File = "data/leads.json"
	cfg.RabbitMQ.Queue = "leads_captured"
	cfg.SMTP.Port = 587
	return cfg
}

// LoadConfig layers defaults, the YAML file at path (optional), a .env
// file (optional) and the process environment, in that order.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal config")
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrap(err, "failed to read config file")
	}

	_ = godotenv.Load()
	unsetBlank(numericEnv...)

	if err := envconfig.Process("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}
	applyAliases(cfg)

	if err := cfg.resolveBackend(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// numericEnv are the integer settings. envconfig cannot convert "" so a
// blank line like SMTP_PORT= must leave the default in place.
var numericEnv = []string{"SMTP_PORT", "STORAGE_QUEUE_SIZE"}

func unsetBlank(keys ...string) {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) == "" {
			os.Unsetenv(k)
		}
	}
}

func applyAliases(cfg *Config) {
	if v := firstEnv("FROM_EMAIL", "EMAIL_FROM"); v != "" {
		cfg.Mail.From = v
	}
	if v := firstEnv("TO_EMAIL", "EMAIL_TO"); v != "" {
		cfg.Mail.To = v
	}
	if v := firstEnv(
		"NEXT_PUBLIC_STRIPE_PAYMENT_URL",
		"STRIPE_PAYMENT_URL",
		"NEXT_PUBLIC_STRIPE_CHECKOUT_URL",
		"STRIPE_CHECKOUT_URL",
	); v != "" {
		cfg.Checkout.PaymentURL = v
	}
}

func (c *Config) resolveBackend() error {
	backend := strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if backend == "" {
		switch {
		case c.Database.URL != "":
			backend = BackendPostgres
		case c.Redis.Addr != "":
			backend = BackendRedis
		default:
			backend = BackendFile
		}
	}

	switch backend {
	case BackendFile:
	case BackendPostgres:
		if c.Database.URL == "" {
			return errors.New("storage backend postgres requires DATABASE_URL")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("storage backend redis requires REDIS_ADDR")
		}
	default:
		return errors.Errorf("unknown storage backend %q", backend)
	}
	c.Storage.Backend = backend
	return nil
}

// Recipients splits the internal notification address list on commas.
func (c *Config) Recipients() []string {
	var out []string
	for _, addr := range strings.Split(c.Mail.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
