package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-matcher/internal/notify"
	"github.com/spigell/job-matcher/internal/recommend"
	"github.com/spigell/job-matcher/internal/scheduler"
	"github.com/spigell/job-matcher/internal/store"
)

const (
	app       = "job-matcher"
	envPrefix = "JOB_MATCHER"
)

type Config struct {
	DatabaseURL      string          `mapstructure:"database-url" validate:"omitempty,url"`
	DatabaseMaxConns int32           `mapstructure:"database-max-conns" validate:"min=1"`
	RedisURL         string          `mapstructure:"redis-url" validate:"omitempty,url"`
	Matching         *MatchingConfig `mapstructure:"matching" validate:"required"`
	Gemini           *GeminiConfig   `mapstructure:"gemini" validate:"required"`
	Notify           *NotifyConfig   `mapstructure:"notify" validate:"required"`
	Schedule         *ScheduleConfig `mapstructure:"schedule" validate:"required"`
}

type MatchingConfig struct {
	NotificationThreshold int           `mapstructure:"notification-threshold" validate:"min=1,max=100"`
	PageSize              int           `mapstructure:"page-size" validate:"min=1,max=1000"`
	Concurrency           int           `mapstructure:"concurrency" validate:"min=1,max=64"`
	NotifyCreatedOnly     bool          `mapstructure:"notify-created-only"`
	ResumePolicy          string        `mapstructure:"resume-policy" validate:"oneof=always known-types never"`
	ResumeTimeout         time.Duration `mapstructure:"resume-timeout" validate:"min=0"`
	Ranker                *RankerConfig `mapstructure:"ranker" validate:"required"`
}

type RankerConfig struct {
	DefaultLimit int `mapstructure:"default-limit" validate:"min=1"`
	MaxLimit     int `mapstructure:"max-limit" validate:"gtefield=DefaultLimit"`
}

type GeminiConfig struct {
	APIKey            string        `mapstructure:"api-key"`
	APIKeyFile        string        `mapstructure:"api-key-file"`
	Model             string        `mapstructure:"model"`
	EmbeddingModel    string        `mapstructure:"embedding-model"`
	MaxRetries        int           `mapstructure:"max-retries" validate:"min=0,max=10"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"min=0"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second" validate:"min=0"`
	MaxLogLength      int           `mapstructure:"max-log-length" validate:"min=0"`
	BreakerFailures   uint32        `mapstructure:"breaker-failures"`
	BreakerCooldown   time.Duration `mapstructure:"breaker-cooldown" validate:"min=0"`
}

type NotifyConfig struct {
	Queue      string        `mapstructure:"queue" validate:"required"`
	GatewayURL string        `mapstructure:"gateway-url" validate:"omitempty,url"`
	Token      string        `mapstructure:"token"`
	TokenFile  string        `mapstructure:"token-file"`
	From       string        `mapstructure:"from" validate:"omitempty,email"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=0"`
}

type ScheduleConfig struct {
	Spec string `mapstructure:"spec" validate:"required"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-matcher scores candidates against job postings and sends recommendations",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		log.Fatal(err)
	}
}

// readConfig prepares v with defaults, environment overrides and the config file. Without an
// explicit file a missing job-matcher.yaml is not an error.
func readConfig(v *viper.Viper, file string) error {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(app)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database-url", "")
	v.SetDefault("database-max-conns", 10)
	v.SetDefault("redis-url", "")

	v.SetDefault("matching.notification-threshold", recommend.DefaultNotificationThreshold)
	v.SetDefault("matching.page-size", store.DefaultPageSize)
	v.SetDefault("matching.concurrency", recommend.DefaultConcurrency)
	v.SetDefault("matching.notify-created-only", false)
	v.SetDefault("matching.resume-policy", "always")
	v.SetDefault("matching.resume-timeout", 20*time.Second)
	v.SetDefault("matching.ranker.default-limit", recommend.DefaultRankLimit)
	v.SetDefault("matching.ranker.max-limit", recommend.MaxRankLimit)

	v.SetDefault("gemini.api-key", "")
	v.SetDefault("gemini.api-key-file", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.embedding-model", "text-embedding-004")
	v.SetDefault("gemini.max-retries", 3)
	v.SetDefault("gemini.timeout", 30*time.Second)
	v.SetDefault("gemini.requests-per-second", 0)
	v.SetDefault("gemini.max-log-length", 200)
	v.SetDefault("gemini.breaker-failures", 5)
	v.SetDefault("gemini.breaker-cooldown", 30*time.Second)

	v.SetDefault("notify.queue", notify.DefaultQueue)
	v.SetDefault("notify.gateway-url", "")
	v.SetDefault("notify.token", "")
	v.SetDefault("notify.token-file", "")
	v.SetDefault("notify.from", "")
	v.SetDefault("notify.timeout", 10*time.Second)

	v.SetDefault("schedule.spec", scheduler.DefaultSpec)
}

func getConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

// loadConfig decodes and validates the configuration held by v.
func loadConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}
