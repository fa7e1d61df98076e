package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	NATS struct {
		URL               string        `mapstructure:"url"`
		OrgSubject        string        `mapstructure:"orgSubject"`        // Subject for organisation upsert events
		MembershipSubject string        `mapstructure:"membershipSubject"` // Subject for membership events
		QueueGroup        string        `mapstructure:"queueGroup"`
		ConnectTimeout    time.Duration `mapstructure:"connectTimeout"`
		MaxReconnects     int           `mapstructure:"maxReconnects"`
		ReconnectWait     time.Duration `mapstructure:"reconnectWait"`
	} `mapstructure:"nats"`
	Quota struct {
		Timezone string `mapstructure:"timezone"` // Civil-day boundary for the capacity window
	} `mapstructure:"quota"`
	Provider struct {
		SMS     string `mapstructure:"sms"`     // "mock" is the only built-in transport
		Storage string `mapstructure:"storage"` // "mock" is the only built-in backend
	} `mapstructure:"provider"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Metrics    struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// DispatcherConfig holds configuration for the deferred-send dispatcher pool
type DispatcherConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PoolSize     int           `mapstructure:"poolSize"`     // Number of workers
	PollInterval time.Duration `mapstructure:"pollInterval"` // How often due schedules are claimed
	ClaimBatch   int           `mapstructure:"claimBatch"`   // Max rows claimed per poll
	MaxBlock     time.Duration `mapstructure:"maxBlock"`     // Max time to block when submitting if pool is full
	ExpiryTime   time.Duration `mapstructure:"expiryTime"`   // Idle worker expiry time
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	// Create new viper instance
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("quota.timezone", "Australia/Adelaide")
	v.SetDefault("provider.sms", "mock")
	v.SetDefault("provider.storage", "mock")

	v.SetDefault("nats.orgSubject", "identity.organisation.upsert")
	v.SetDefault("nats.membershipSubject", "identity.membership.upsert")
	v.SetDefault("nats.queueGroup", "drover-orgsync")
	v.SetDefault("nats.connectTimeout", 5*time.Second)
	v.SetDefault("nats.maxReconnects", -1)
	v.SetDefault("nats.reconnectWait", 2*time.Second)

	// Dispatcher defaults
	v.SetDefault("dispatcher.enabled", true)
	v.SetDefault("dispatcher.poolSize", 8)
	v.SetDefault("dispatcher.pollInterval", 15*time.Second)
	v.SetDefault("dispatcher.claimBatch", 100)
	v.SetDefault("dispatcher.maxBlock", time.Second)
	v.SetDefault("dispatcher.expiryTime", time.Minute)

	// Config file settings
	v.SetConfigName("default") // name of config file (without extension)
	v.SetConfigType("yaml")    // REQUIRED if the config file does not have the extension in the name

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.drover-sms-platform")
	v.AddConfigPath("/etc/drover-sms-platform")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if tz := os.Getenv("QUOTA_TIMEZONE"); tz != "" {
		v.Set("quota.timezone", tz)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		// Get the field tag value (mapstructure)
		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		// Build the env var path
		path := append(parts, tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		// Bind the env var
		_ = v.BindEnv(key)
	}
}
