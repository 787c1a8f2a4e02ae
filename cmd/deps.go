package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-scorer/internal/ai"
	"github.com/spigell/hh-scorer/internal/ai/gemini"
	"github.com/spigell/hh-scorer/internal/extract"
	"github.com/spigell/hh-scorer/internal/logger"
	"github.com/spigell/hh-scorer/internal/scoring"
	"github.com/spigell/hh-scorer/internal/secrets"
	"github.com/spigell/hh-scorer/internal/storage"
	"github.com/spigell/hh-scorer/internal/storage/postgres"
	"github.com/spigell/hh-scorer/internal/storage/sqlite"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	providerGemini = "gemini"

	defaultSQLitePath = app + ".db"
)

// application holds the wired pipeline shared by the commands.
type application struct {
	config  *Config
	logger  *zap.Logger
	store   storage.Store
	scores  *scoring.Store
	service *scoring.Service
}

// newLogger builds the process logger from the global flags.
func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func loadConfig(logger *zap.Logger) *Config {
	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return config
}

// newApplication opens the store and wires the scoring pipeline. A missing
// evaluator is not fatal here: cached reads keep working and generation
// fails with a configuration error.
func newApplication(ctx context.Context, appLogger *zap.Logger) (*application, error) {
	config := loadConfig(appLogger)

	store, err := openStore(ctx, config.Database)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	evaluator := newEvaluator(ctx, config, appLogger)

	scoringCfg := config.Scoring
	if scoringCfg == nil {
		scoringCfg = &ScoringConfig{}
	}

	documentsRoot := "."
	if config.Documents != nil && config.Documents.Root != "" {
		documentsRoot = config.Documents.Root
	}

	scores := scoring.NewStore(store, appLogger)
	builder := scoring.NewBuilder(store, extract.NewFileExtractor(documentsRoot, appLogger.Named("extract")),
		scoringCfg.MaxContextChars, appLogger)
	service := scoring.NewService(scores, builder, evaluator, scoring.ServiceConfig{
		Version:     scoringCfg.Version,
		MaxAttempts: scoringCfg.MaxAttempts,
	}, appLogger)

	appLogger.Info("pipeline ready",
		zap.String("database", databaseDriver(config.Database)),
		zap.String(logger.FieldModel, evaluator.Model()),
		zap.Int("max_attempts", service.MaxAttempts()),
	)

	return &application{
		config:  config,
		logger:  appLogger,
		store:   store,
		scores:  scores,
		service: service,
	}, nil
}

func (a *application) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
}

func databaseDriver(cfg *DatabaseConfig) string {
	if cfg == nil || strings.TrimSpace(cfg.Driver) == "" {
		return driverSQLite
	}
	return strings.ToLower(strings.TrimSpace(cfg.Driver))
}

func openStore(ctx context.Context, cfg *DatabaseConfig) (storage.Store, error) {
	if cfg == nil {
		cfg = &DatabaseConfig{}
	}

	switch driver := databaseDriver(cfg); driver {
	case driverSQLite:
		dsn := defaultSQLitePath
		if strings.TrimSpace(cfg.URL) != "" || strings.TrimSpace(cfg.URLFile) != "" {
			var err error
			if dsn, err = databaseURL(cfg); err != nil {
				return nil, err
			}
		}
		return sqlite.Open(dsn)
	case driverPostgres:
		url, err := databaseURL(cfg)
		if err != nil {
			return nil, err
		}
		return postgres.Connect(ctx, url)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func databaseURL(cfg *DatabaseConfig) (string, error) {
	return secrets.Load(secrets.Source{
		Name:  "database url",
		Value: cfg.URL,
		File:  cfg.URLFile,
		Env:   "SCORER_DATABASE_URL",
	})
}

func newEvaluator(ctx context.Context, config *Config, appLogger *zap.Logger) ai.Evaluator {
	cfg := config.AI
	if cfg == nil {
		cfg = &AIConfig{}
	}

	gcfg := cfg.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = providerGemini
	}

	unavailable := func(err error) ai.Evaluator {
		appLogger.Warn("evaluator is unavailable, only cached scores can be served",
			zap.String(logger.FieldProvider, provider),
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE, GEMINI_API_KEY or ai.gemini.api-key in the configuration file"),
		)
		return &ai.Unavailable{ModelName: gcfg.Model, Err: err}
	}

	if provider != providerGemini {
		return unavailable(fmt.Errorf("unsupported ai provider %q", cfg.Provider))
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gcfg.APIKey,
		File:  gcfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return unavailable(ai.NewError(ai.KindConfiguration, "load gemini api key", err))
	}

	generator, err := gemini.NewGenerator(ctx, gemini.GeneratorConfig{
		APIKey:          apiKey,
		Model:           gcfg.Model,
		CallTimeout:     gcfg.CallTimeout,
		BreakerFailures: gcfg.BreakerFailures,
		BreakerTimeout:  gcfg.BreakerTimeout,
	}, appLogger.Named("gemini"))
	if err != nil {
		return unavailable(err)
	}

	version := ""
	if config.Scoring != nil {
		version = config.Scoring.Version
	}

	return gemini.NewEvaluator(generator, version, gcfg.MaxLogLength, appLogger.Named("evaluator"))
}

// redacted returns a copy of config safe for debug output.
func redacted(config *Config) *Config {
	out := *config
	if config.Database != nil {
		db := *config.Database
		if db.URL != "" {
			db.URL = "***"
		}
		out.Database = &db
	}
	if config.AI != nil && config.AI.Gemini != nil {
		aiCfg := *config.AI
		g := *config.AI.Gemini
		if g.APIKey != "" {
			g.APIKey = "***"
		}
		aiCfg.Gemini = &g
		out.AI = &aiCfg
	}
	return &out
}

func parseApplicantID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("applicant id must be a positive integer")
	}
	return id, nil
}
