package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/maauso/mediagen-api/internal/provider"
	"github.com/maauso/mediagen-api/internal/provider/fal"
	"github.com/maauso/mediagen-api/internal/provider/kie"
	"github.com/maauso/mediagen-api/internal/provider/replicate"
	"github.com/maauso/mediagen-api/internal/task"
)

// WebhookHandlers receives provider callbacks and reconciles them with task
// records. Deliveries are at-least-once: duplicates and callbacks for tasks
// already terminal are acknowledged without a write so providers stop
// redelivering. Every handler authenticates first, resolves the task second,
// and only then touches state.
type WebhookHandlers struct {
	store task.Store
	// kieResults fetches full outcomes for KIE's terse callbacks. Nil when the
	// kie provider is not configured.
	kieResults provider.ResultFetcher
	// falVerifier checks fal signatures against the published key set. Nil
	// disables verification.
	falVerifier *fal.Verifier
	// replicateSecret and kieSecret enable per-provider HMAC verification when
	// non-empty.
	replicateSecret string
	kieSecret       string
	logger          *slog.Logger
}

// WebhookOption configures WebhookHandlers.
type WebhookOption func(*WebhookHandlers)

// WithReplicateSecret enables replicate signature verification.
func WithReplicateSecret(secret string) WebhookOption {
	return func(wh *WebhookHandlers) {
		wh.replicateSecret = secret
	}
}

// WithFalVerifier enables fal signature verification.
func WithFalVerifier(v *fal.Verifier) WebhookOption {
	return func(wh *WebhookHandlers) {
		wh.falVerifier = v
	}
}

// WithKieSecret enables kie signature verification.
func WithKieSecret(secret string) WebhookOption {
	return func(wh *WebhookHandlers) {
		wh.kieSecret = secret
	}
}

// WithKieResults wires the fetcher used to enrich kie callbacks.
func WithKieResults(f provider.ResultFetcher) WebhookOption {
	return func(wh *WebhookHandlers) {
		wh.kieResults = f
	}
}

// NewWebhookHandlers creates the callback receivers.
func NewWebhookHandlers(store task.Store, logger *slog.Logger, opts ...WebhookOption) *WebhookHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	wh := &WebhookHandlers{
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(wh)
	}
	return wh
}

// HandleReplicate handles POST /webhooks/replicate requests.
func (wh *WebhookHandlers) HandleReplicate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body", "INVALID_BODY")
		return
	}

	if wh.replicateSecret != "" {
		err := replicate.ValidateWebhook(
			r.Header.Get("webhook-id"),
			r.Header.Get("webhook-timestamp"),
			r.Header.Get("webhook-signature"),
			body,
			wh.replicateSecret,
		)
		if err != nil {
			wh.logger.Warn("rejected replicate webhook",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusUnauthorized, "invalid signature", "INVALID_SIGNATURE")
			return
		}
	}

	var pred replicate.Prediction
	if err := json.Unmarshal(body, &pred); err != nil || pred.ID == "" {
		writeError(w, http.StatusBadRequest, "malformed payload", "INVALID_PAYLOAD")
		return
	}

	t, ok := wh.resolve(w, r, pred.ID, true)
	if !ok {
		return
	}
	if t.Status.IsTerminal() {
		wh.ack(w)
		return
	}

	switch pred.Status {
	case "succeeded":
		resultURL := pred.OutputURL()
		if resultURL == "" {
			wh.finalize(w, r, t.TaskID, task.Update{Status: task.StatusFailed, Error: "prediction succeeded without output"})
			return
		}
		wh.finalize(w, r, t.TaskID, task.Update{Status: task.StatusSucceeded, ResultURL: resultURL})
	case "failed", "canceled":
		msg := pred.ErrorMessage()
		if msg == "" {
			msg = "prediction " + pred.Status
		}
		wh.finalize(w, r, t.TaskID, task.Update{Status: task.StatusFailed, Error: msg})
	default:
		// Intermediate status, nothing to record yet.
		wh.ack(w)
	}
}

// HandleFal handles POST /webhooks/fal requests.
func (wh *WebhookHandlers) HandleFal(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body", "INVALID_BODY")
		return
	}

	if wh.falVerifier != nil {
		err := wh.falVerifier.Verify(r.Context(),
			r.Header.Get("x-fal-webhook-request-id"),
			r.Header.Get("x-fal-webhook-user-id"),
			r.Header.Get("x-fal-webhook-timestamp"),
			r.Header.Get("x-fal-webhook-signature"),
			body,
		)
		if err != nil {
			wh.logger.Warn("rejected fal webhook",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusUnauthorized, "invalid signature", "INVALID_SIGNATURE")
			return
		}
	}

	var payload fal.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.RequestID == "" {
		writeError(w, http.StatusBadRequest, "malformed payload", "INVALID_PAYLOAD")
		return
	}

	t, ok := wh.resolve(w, r, payload.RequestID, true)
	if !ok {
		return
	}
	if t.Status.IsTerminal() {
		wh.ack(w)
		return
	}

	if payload.Status == "OK" {
		resultURL := payload.ResultURL()
		if resultURL == "" {
			wh.finalize(w, r, t.TaskID, task.Update{Status: task.StatusFailed, Error: "completed without result URL"})
			return
		}
		wh.finalize(w, r, t.TaskID, task.Update{Status: task.StatusSucceeded, ResultURL: resultURL})
		return
	}

	msg := payload.Error
	if msg == "" {
		msg = "generation failed"
	}
	wh.finalize(w, r, t.TaskID, task.Update{Status: task.StatusFailed, Error: msg})
}

// kieCallback is the notification KIE posts to the callback URL. It carries
// the verdict and KIE's task id but not the artifact location.
type kieCallback struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

// HandleKie handles POST /webhooks/kie requests. Success notifications only
// say "done", so the full outcome is fetched from KIE before finalizing. If
// that fetch fails the task is left processing and the delivery is rejected so
// KIE redelivers.
func (wh *WebhookHandlers) HandleKie(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body", "INVALID_BODY")
		return
	}

	var cb kieCallback
	if err := json.Unmarshal(body, &cb); err != nil || cb.Data.TaskID == "" {
		writeError(w, http.StatusBadRequest, "malformed payload", "INVALID_PAYLOAD")
		return
	}

	if wh.kieSecret != "" {
		err := kie.VerifyCallbackSignature(
			cb.Data.TaskID,
			r.Header.Get("x-webhook-timestamp"),
			r.Header.Get("x-webhook-signature"),
			wh.kieSecret,
		)
		if err != nil {
			wh.logger.Warn("rejected kie webhook",
				slog.String("external_id", cb.Data.TaskID),
			)
			writeError(w, http.StatusUnauthorized, "invalid signature", "INVALID_SIGNATURE")
			return
		}
	}

	t, ok := wh.resolve(w, r, cb.Data.TaskID, false)
	if !ok {
		return
	}
	if t.Status.IsTerminal() {
		wh.ack(w)
		return
	}

	if cb.Code != 200 {
		msg := cb.Msg
		if msg == "" {
			msg = "generation failed"
		}
		wh.finalize(w, r, t.TaskID, task.Update{Status: task.StatusFailed, Error: msg})
		return
	}

	if wh.kieResults == nil {
		writeError(w, http.StatusServiceUnavailable, "provider not configured", "PROVIDER_NOT_CONFIGURED")
		return
	}
	result, err := wh.kieResults.FetchResult(r.Context(), cb.Data.TaskID)
	if err != nil {
		wh.logger.Error("failed to fetch kie result",
			slog.String("task_id", t.TaskID),
			slog.String("external_id", cb.Data.TaskID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch result", "RESULT_FETCH_FAILED")
		return
	}

	switch result.Status {
	case string(task.StatusSucceeded):
		wh.finalize(w, r, t.TaskID, task.Update{Status: task.StatusSucceeded, ResultURL: result.ResultURL})
	case string(task.StatusFailed):
		wh.finalize(w, r, t.TaskID, task.Update{Status: task.StatusFailed, Error: result.Error})
	default:
		// Still generating upstream despite the callback. Ack and wait for
		// the next delivery.
		wh.ack(w)
	}
}

// resolve looks up the task a callback belongs to, primarily through the
// external-id index. Providers that deliver to task-scoped URLs also carry a
// taskId query parameter; with allowQueryFallback that is tried when the index
// entry has expired or was never written.
func (wh *WebhookHandlers) resolve(w http.ResponseWriter, r *http.Request, externalID string, allowQueryFallback bool) (*task.Task, bool) {
	t, err := wh.store.GetByExternalID(r.Context(), externalID)
	if err == nil {
		return t, true
	}
	if !errors.Is(err, task.ErrTaskNotFound) {
		wh.logger.Error("failed to resolve callback",
			slog.String("external_id", externalID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to resolve task", "TASK_FETCH_FAILED")
		return nil, false
	}

	if allowQueryFallback {
		if taskID := r.URL.Query().Get("taskId"); taskID != "" {
			t, err := wh.store.Get(r.Context(), taskID)
			if err == nil {
				return t, true
			}
			if !errors.Is(err, task.ErrTaskNotFound) {
				writeError(w, http.StatusInternalServerError, "failed to resolve task", "TASK_FETCH_FAILED")
				return nil, false
			}
		}
	}

	wh.logger.Warn("callback for unknown task",
		slog.String("external_id", externalID),
	)
	writeError(w, http.StatusNotFound, "unknown task", "TASK_NOT_FOUND")
	return nil, false
}

// finalize applies a terminal update. A transition rejected as invalid means a
// concurrent delivery already finalized the task, which is acknowledged rather
// than surfaced.
func (wh *WebhookHandlers) finalize(w http.ResponseWriter, r *http.Request, taskID string, upd task.Update) {
	if _, err := wh.store.Update(r.Context(), taskID, upd); err != nil {
		if errors.Is(err, task.ErrInvalidTransition) {
			wh.ack(w)
			return
		}
		wh.logger.Error("failed to finalize task",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update task", "TASK_UPDATE_FAILED")
		return
	}

	wh.logger.Info("task finalized",
		slog.String("task_id", taskID),
		slog.String("status", string(upd.Status)),
	)
	wh.ack(w)
}

func (wh *WebhookHandlers) ack(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
