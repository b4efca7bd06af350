package cli

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/prahari-health/prahari/internal/cache"
	"github.com/prahari-health/prahari/internal/check"
	"github.com/prahari-health/prahari/internal/disclaim"
	"github.com/prahari-health/prahari/internal/escalate"
	"github.com/prahari-health/prahari/internal/extract"
	"github.com/prahari-health/prahari/internal/knowledge"
	"github.com/prahari-health/prahari/internal/llm"
	"github.com/prahari-health/prahari/internal/messaging"
	"github.com/prahari-health/prahari/internal/model"
	"github.com/prahari-health/prahari/internal/pipeline"
	"github.com/prahari-health/prahari/internal/semantic"
	"github.com/prahari-health/prahari/internal/store"
)

// app bundles the wired validation stack for one command invocation
type app struct {
	cfg      model.Config
	logger   *zap.Logger
	db       *gorm.DB
	cache    cache.Cache
	know     *knowledge.Store
	orch     *pipeline.Orchestrator
	selector *disclaim.Selector
	cases    *escalate.Manager
}

// buildApp wires the stack from configuration. With requireDB false a
// missing database degrades to rules-only validation with built-in
// disclaimers instead of failing the command.
func buildApp(requireDB bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		cache:  cache.New(cfg.Cache),
	}

	db, err := store.Open(cfg.Database)
	switch {
	case err != nil && requireDB:
		return nil, fmt.Errorf("connect database: %w", err)
	case err != nil:
		logger.Warn("database unavailable, continuing without persistence and fact checking",
			zap.Error(err))
	default:
		if err := store.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
		a.db = db
		a.know = knowledge.NewStore(db, a.cache, cfg.Cache.KnowledgeTTL, logger)
	}

	provider, err := llm.NewProvider(llmConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("configure llm: %w", err)
	}

	// The semantic stage needs the knowledge base; without it the rule
	// ladder carries validation alone.
	var stage pipeline.SemanticStage
	if a.know != nil {
		extractor := extract.NewExtractor(provider, a.cache, cfg.Validation, cfg.Keywords.Buckets, logger)
		if cfg.Cache.ExtractionTTL > 0 {
			extractor = extractor.WithCacheTTL(cfg.Cache.ExtractionTTL)
		}
		checker := check.NewChecker(a.know, cfg.Validation.CheckerWorkers, logger)
		stage = semantic.NewValidator(extractor, checker, cfg.Validation.Thresholds, logger)
	}

	var audit pipeline.AuditStore
	var discStore disclaim.DisclaimerStore
	if a.db != nil {
		audit = store.NewValidations(a.db)
		discStore = store.NewDisclaimers(a.db)
		a.cases = escalate.NewManager(
			store.NewCases(a.db),
			store.NewExperts(a.db),
			messaging.NewLogSender(logger),
			logger,
		)
	}

	a.orch = pipeline.New(cfg.Validation, cfg.Keywords, stage, audit, logger)
	a.selector = disclaim.NewSelector(discStore, a.cache, cfg.Cache.DisclaimerTTL, cfg.Disclaimers, logger)

	return a, nil
}

// Close releases the database pool and flushes buffered log entries
func (a *app) Close() {
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.logger.Sync()
}

// llmConfig merges the LLM section with the shared proxy settings
func llmConfig(cfg model.Config) llm.Config {
	lc := llm.ConfigFromModel(cfg.LLM)
	lc.HTTPProxy = cfg.HTTP.HTTPProxy
	lc.HTTPSProxy = cfg.HTTP.HTTPSProxy
	lc.NoProxy = cfg.HTTP.NoProxy
	return lc
}

// newLogger builds the zap logger the whole stack shares. The verbose
// flag forces debug regardless of the configured level.
func newLogger(cfg model.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.JSON {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level := cfg.Level
	if verbose {
		level = "debug"
	}
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	return zcfg.Build()
}
