package cmd

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "hh-scorer"
)

type Config struct {
	Database  *DatabaseConfig  `mapstructure:"database"`
	Documents *DocumentsConfig `mapstructure:"documents"`
	AI        *AIConfig        `mapstructure:"ai"`
	Scoring   *ScoringConfig   `mapstructure:"scoring"`
	Backfill  *BackfillConfig  `mapstructure:"backfill"`
}

type DatabaseConfig struct {
	Driver  string `mapstructure:"driver"`
	URL     string `mapstructure:"url"`
	URLFile string `mapstructure:"url-file"`
}

type DocumentsConfig struct {
	Root string `mapstructure:"root"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey          string        `mapstructure:"api-key"`
	APIKeyFile      string        `mapstructure:"api-key-file"`
	Model           string        `mapstructure:"model"`
	CallTimeout     time.Duration `mapstructure:"call-timeout"`
	MaxLogLength    int           `mapstructure:"max-log-length"`
	BreakerFailures uint32        `mapstructure:"breaker-failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker-timeout"`
}

type ScoringConfig struct {
	Version         string `mapstructure:"version"`
	MaxAttempts     int    `mapstructure:"max-attempts"`
	MaxContextChars int    `mapstructure:"max-context-chars"`
	Workers         int    `mapstructure:"workers"`
	QueueSize       int    `mapstructure:"queue-size"`
}

type BackfillConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	InitialDelay time.Duration `mapstructure:"initial-delay"`
	Interval     time.Duration `mapstructure:"interval"`
	BatchSize    int           `mapstructure:"batch-size"`
	Pace         time.Duration `mapstructure:"pace"`
}

var (
	// Actual version can be specified in build command.
	version = "unknown"

	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hh-scorer evaluates applicants with an AI model and keeps versioned fit scores",
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%s version: %s (%s)\n", app, version, runtime.Version())
		},
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"scoring.max-attempts":   "SCORER_MAX_ATTEMPTS",
		"database.url-file":      "SCORER_DATABASE_URL_FILE",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	rootCmd.AddCommand(versionCmd)
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hh-scorer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("database.driver", driverSQLite)
	viper.SetDefault("documents.root", ".")

	viper.SetDefault("ai.provider", providerGemini)
	viper.SetDefault("ai.gemini.model", "gemini-2.5-pro")
	viper.SetDefault("ai.gemini.call-timeout", 60*time.Second)
	viper.SetDefault("ai.gemini.max-log-length", 200)
	viper.SetDefault("ai.gemini.breaker-failures", 5)
	viper.SetDefault("ai.gemini.breaker-timeout", 30*time.Second)

	viper.SetDefault("scoring.version", "v2")
	viper.SetDefault("scoring.max-attempts", 3)
	viper.SetDefault("scoring.max-context-chars", 25000)
	viper.SetDefault("scoring.workers", 2)
	viper.SetDefault("scoring.queue-size", 64)

	viper.SetDefault("backfill.enabled", true)
	viper.SetDefault("backfill.initial-delay", 15*time.Second)
	viper.SetDefault("backfill.interval", 5*time.Minute)
	viper.SetDefault("backfill.batch-size", 20)
	viper.SetDefault("backfill.pace", 500*time.Millisecond)
}

func initConfig() {
	// The version command works without any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults and environment are enough when no config file exists, but an
	// explicit or broken file must parse.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
