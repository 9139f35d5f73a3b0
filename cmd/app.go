package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/ai/gemini"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/matching"
	"github.com/spigell/job-matcher/internal/notify"
	"github.com/spigell/job-matcher/internal/recommend"
	"github.com/spigell/job-matcher/internal/secrets"
	"github.com/spigell/job-matcher/internal/store/postgres"
)

// pipeline holds the collaborators shared by the matching commands.
type pipeline struct {
	config  *Config
	logger  *zap.Logger
	store   *postgres.Store
	backend ai.Backend
	cache   *matching.EmbeddingCache
	scorer  *matching.Scorer
	redis   *redis.Client
	outbox  notify.Outbox
}

// setup builds the logger and loads the config the way every command needs it.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	return logger, config
}

// newPipeline opens storage and wires the scoring stack. withOutbox also connects to redis;
// without redis-url notifications are disabled.
func newPipeline(ctx context.Context, config *Config, log *zap.Logger, withOutbox bool) (*pipeline, error) {
	if config.DatabaseURL == "" {
		return nil, errors.New("database-url is required")
	}

	policy, err := matching.ParseResumePolicy(config.Matching.ResumePolicy)
	if err != nil {
		return nil, err
	}

	st, err := postgres.Open(ctx, config.DatabaseURL, config.DatabaseMaxConns)
	if err != nil {
		return nil, err
	}

	p := &pipeline{config: config, logger: log, store: st}

	p.backend, err = newBackend(ctx, config.Gemini, log)
	if err != nil {
		p.Close()
		return nil, err
	}

	p.cache = matching.NewEmbeddingCache(p.backend, st, log)
	p.scorer = matching.NewScorer(
		matching.NewATSScorer(p.backend, matching.NewHTTPResumeFetcher(config.Matching.ResumeTimeout), log, config.Gemini.MaxLogLength),
		matching.NewEmbeddingScorer(p.cache),
		policy,
		log,
	)

	if withOutbox {
		if config.RedisURL == "" {
			log.Warn("redis-url is not set, recommendation notifications are disabled")
		} else {
			p.redis, err = notify.Connect(ctx, config.RedisURL)
			if err != nil {
				p.Close()
				return nil, err
			}
			p.outbox = notify.NewRedisOutbox(p.redis, config.Notify.Queue)
		}
	}

	return p, nil
}

func (p *pipeline) worker() *recommend.Worker {
	return recommend.NewWorker(p.store, p.scorer, p.cache, p.outbox, recommend.WorkerOptions{
		Threshold:         p.config.Matching.NotificationThreshold,
		PageSize:          p.config.Matching.PageSize,
		Concurrency:       p.config.Matching.Concurrency,
		NotifyCreatedOnly: p.config.Matching.NotifyCreatedOnly,
	}, p.logger)
}

func (p *pipeline) ranker() *recommend.Ranker {
	return recommend.NewRanker(p.store, p.scorer, recommend.RankerOptions{
		DefaultLimit: p.config.Matching.Ranker.DefaultLimit,
		MaxLimit:     p.config.Matching.Ranker.MaxLimit,
		Concurrency:  p.config.Matching.Concurrency,
	}, p.logger)
}

func (p *pipeline) Close() {
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			p.logger.Warn("closing redis client", zap.Error(err))
		}
	}
	if p.store != nil {
		p.store.Close()
	}
}

// newBackend creates the Gemini backend. A missing API key is not fatal: scoring then fails
// softly and every candidate is recorded with a zero score.
func newBackend(ctx context.Context, cfg *GeminiConfig, log *zap.Logger) (ai.Backend, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		log.Warn("gemini is not configured, scores will fall back to zero",
			zap.Error(err),
			zap.String("hint", "set gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY"),
		)
		return ai.Unavailable{Reason: err.Error()}, nil
	}

	client, err := gemini.New(ctx, gemini.Options{
		APIKey:            apiKey,
		Model:             cfg.Model,
		EmbeddingModel:    cfg.EmbeddingModel,
		MaxRetries:        cfg.MaxRetries,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxLogLength:      cfg.MaxLogLength,
		BreakerFailures:   cfg.BreakerFailures,
		BreakerCooldown:   cfg.BreakerCooldown,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return client, nil
}

// newSender builds the email gateway sender from the notify section.
func newSender(cfg *NotifyConfig) (notify.Sender, error) {
	if cfg.GatewayURL == "" {
		return nil, errors.New("notify.gateway-url is required")
	}

	token, err := secrets.Load(secrets.Source{
		Name:  "email gateway token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
	})
	if err != nil {
		return nil, err
	}

	return notify.NewEmailGateway(cfg.GatewayURL, token, cfg.From, cfg.Timeout)
}
