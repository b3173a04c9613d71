package task

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/maauso/mediagen-api/internal/catalog"
	"github.com/maauso/mediagen-api/internal/provider"
	"github.com/maauso/mediagen-api/internal/task/id"
)

// Service owns the task lifecycle: it allocates ids, persists records,
// dispatches to provider adapters, and registers the external-id mapping that
// webhook handlers later resolve. Terminal transitions on the success path are
// the webhook's job; the only way dispatch itself finalizes a task is the
// failure path.
type Service struct {
	store       Store
	registry    *provider.Registry
	catalog     *catalog.Catalog
	webhookBase string
	logger      *slog.Logger
}

// NewService creates the generation orchestrator. webhookBase is the
// externally reachable base URL used to construct per-task callback URLs; it
// may be empty, in which case async providers fail at dispatch time with a
// configuration error.
func NewService(store Store, registry *provider.Registry, cat *catalog.Catalog, webhookBase string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		registry:    registry,
		catalog:     cat,
		webhookBase: strings.TrimRight(webhookBase, "/"),
		logger:      logger,
	}
}

// Submit validates the request against the catalog and registry, persists a
// pending record, and starts dispatch in the background. It returns as soon as
// the record is saved; the provider round-trip never blocks the caller.
// Unsupported providers and models fail fast, before any record exists.
func (s *Service) Submit(ctx context.Context, providerName string, req provider.Request) (*Task, error) {
	if _, err := s.catalog.Find(providerName, req.ModelID); err != nil {
		return nil, err
	}
	adapter, err := s.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	t := New(id.New(), providerName, req.ModelID)
	if err := s.store.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}

	s.logger.Info("task created",
		slog.String("task_id", t.TaskID),
		slog.String("provider", providerName),
		slog.String("model_id", req.ModelID),
	)

	// Detached from the request context so dispatch survives the client
	// disconnecting. Outcome is only ever reflected in the store.
	go s.dispatch(context.WithoutCancel(ctx), adapter, t.TaskID, req)

	return t, nil
}

// Status returns the current record for a task.
// Returns ErrTaskNotFound for unknown or expired ids.
func (s *Service) Status(ctx context.Context, taskID string) (*Task, error) {
	return s.store.Get(ctx, taskID)
}

// dispatch moves the task to processing and hands it to the adapter. Any
// error, including missing callback configuration, finalizes the task as
// failed; a synchronous result finalizes it as succeeded; otherwise the
// external id is recorded and the task stays processing until a webhook
// arrives.
func (s *Service) dispatch(ctx context.Context, adapter provider.Adapter, taskID string, req provider.Request) {
	if _, err := s.store.Update(ctx, taskID, Update{Status: StatusProcessing}); err != nil {
		s.logger.Error("failed to mark task processing",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		return
	}

	callbackURL := s.callbackURL(adapter.Name(), taskID)

	sub, err := adapter.Submit(ctx, req, callbackURL)
	if err != nil {
		s.fail(ctx, taskID, err)
		return
	}

	if sub.ResultURL != "" {
		// Synchronous provider: no callback will arrive.
		if _, err := s.store.Update(ctx, taskID, Update{Status: StatusSucceeded, ResultURL: sub.ResultURL, ExternalID: sub.ExternalID}); err != nil {
			s.logger.Error("failed to record synchronous result",
				slog.String("task_id", taskID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if err := s.store.SetExternalID(ctx, sub.ExternalID, taskID); err != nil {
		s.fail(ctx, taskID, fmt.Errorf("register external id: %w", err))
		return
	}
	if _, err := s.store.Update(ctx, taskID, Update{ExternalID: sub.ExternalID}); err != nil {
		s.logger.Error("failed to record external id",
			slog.String("task_id", taskID),
			slog.String("external_id", sub.ExternalID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("task dispatched",
		slog.String("task_id", taskID),
		slog.String("provider", adapter.Name()),
		slog.String("external_id", sub.ExternalID),
	)
}

func (s *Service) fail(ctx context.Context, taskID string, cause error) {
	s.logger.Warn("task dispatch failed",
		slog.String("task_id", taskID),
		slog.String("error", cause.Error()),
	)
	if _, err := s.store.Update(ctx, taskID, Update{Status: StatusFailed, Error: cause.Error()}); err != nil {
		s.logger.Error("failed to mark task failed",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
	}
}

// callbackURL builds the webhook callback for a provider and task. Returns ""
// when no base is configured; async adapters reject an empty callback URL.
// replicate and fal deliver to a task-scoped URL, kie correlates purely via
// its own task id.
func (s *Service) callbackURL(providerName, taskID string) string {
	if s.webhookBase == "" {
		return ""
	}
	switch providerName {
	case "replicate", "fal":
		return fmt.Sprintf("%s/webhooks/%s?taskId=%s", s.webhookBase, providerName, url.QueryEscape(taskID))
	default:
		return fmt.Sprintf("%s/webhooks/%s", s.webhookBase, providerName)
	}
}
