// Package bootstrap provides dependency initialization for the generation API.
// Providers are wired only when their credentials are configured, so a
// deployment with one API key still serves that provider's models.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maauso/mediagen-api/internal/catalog"
	"github.com/maauso/mediagen-api/internal/config"
	"github.com/maauso/mediagen-api/internal/provider"
	"github.com/maauso/mediagen-api/internal/provider/fal"
	"github.com/maauso/mediagen-api/internal/provider/kie"
	"github.com/maauso/mediagen-api/internal/provider/openaiimg"
	"github.com/maauso/mediagen-api/internal/provider/replicate"
	"github.com/maauso/mediagen-api/internal/server"
	"github.com/maauso/mediagen-api/internal/stager"
	"github.com/maauso/mediagen-api/internal/task"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Service         *task.Service
	Catalog         *catalog.Catalog
	Handlers        *server.Handlers
	WebhookHandlers *server.WebhookHandlers
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store := initStore(cfg, logger)

	st, err := initStager(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := provider.NewRegistry()
	webhookOpts := []server.WebhookOption{}

	if cfg.ReplicateAPIToken != "" {
		adapter, err := replicate.New(cfg.ReplicateAPIToken)
		if err != nil {
			return nil, fmt.Errorf("create replicate adapter: %w", err)
		}
		registry.Register(adapter)
		if cfg.ReplicateWebhookSecret != "" {
			webhookOpts = append(webhookOpts, server.WithReplicateSecret(cfg.ReplicateWebhookSecret))
		}
	}

	if cfg.FalAPIKey != "" {
		adapter, err := fal.New(cfg.FalAPIKey)
		if err != nil {
			return nil, fmt.Errorf("create fal adapter: %w", err)
		}
		registry.Register(adapter)
		if cfg.FalVerifyWebhooks {
			webhookOpts = append(webhookOpts, server.WithFalVerifier(fal.NewVerifier(fal.NewKeySet())))
		}
	}

	if cfg.KieAPIKey != "" {
		adapter, err := kie.New(cfg.KieAPIKey, st)
		if err != nil {
			return nil, fmt.Errorf("create kie adapter: %w", err)
		}
		registry.Register(adapter)
		webhookOpts = append(webhookOpts, server.WithKieResults(adapter))
		if cfg.KieWebhookSecret != "" {
			webhookOpts = append(webhookOpts, server.WithKieSecret(cfg.KieWebhookSecret))
		}
	}

	if cfg.OpenAIAPIKey != "" {
		adapter, err := openaiimg.New(cfg.OpenAIAPIKey, st)
		if err != nil {
			return nil, fmt.Errorf("create openai adapter: %w", err)
		}
		registry.Register(adapter)
	}

	logger.Info("providers configured",
		slog.Any("providers", registry.Names()),
	)

	cat := catalog.Default()
	svc := task.NewService(store, registry, cat, cfg.WebhookBaseURL, logger)

	return &Dependencies{
		Service:         svc,
		Catalog:         cat,
		Handlers:        server.NewHandlers(svc, cat, logger),
		WebhookHandlers: server.NewWebhookHandlers(store, logger, webhookOpts...),
	}, nil
}

// initStore creates the task store backend based on configuration.
func initStore(cfg *config.Config, logger *slog.Logger) task.Store {
	if cfg.RedisEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
		})
		logger.Info("redis task store configured",
			slog.String("addr", cfg.RedisAddr),
			slog.Duration("ttl", cfg.TaskTTL),
		)
		return task.NewRedisStore(client, cfg.TaskTTL)
	}

	logger.Info("in-memory task store configured",
		slog.Duration("ttl", cfg.TaskTTL),
	)
	return task.NewMemoryStore(cfg.TaskTTL)
}

// initStager creates the staging storage based on configuration.
func initStager(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stager.Stager, error) {
	if !cfg.S3Enabled() {
		logger.Info("staging storage disabled")
		return stager.Disabled{}, nil
	}

	s3Stager, err := stager.NewS3Stager(ctx, stager.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		PublicBaseURL:   cfg.S3PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 stager: %w", err)
	}
	logger.Info("S3 staging storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return s3Stager, nil
}
