package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// notifyTimeout is spec §4.6's "fire-and-forget with a 10s timeout; their
// failure is never a task failure".
const notifyTimeout = 10 * time.Second

// Notifier delivers a best-effort external notification. A failing
// Notifier must never fail the task it's reporting on.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Event is the payload delivered on dirty/error/upload-success, per
// spec §4.6.
type Event struct {
	TaskID   int    `json:"task_id"`
	Filename string `json:"filename"`
	Kind     string `json:"kind"` // "dirty" | "error" | "uploaded"
	Reason   string `json:"reason,omitempty"`
}

// WebhookNotifier POSTs Event as JSON to a configured URL. The spec names
// no specific provider, only that notify_upload_success/notify_errors gate
// dispatch, so a generic webhook is the minimal carrier.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// NewWebhookNotifier returns a WebhookNotifier bound to url, using a
// client with notifyTimeout applied per-request via context rather than
// the client's own Timeout field, so callers can pass a shorter ctx.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Client: &http.Client{}}
}

// Notify delivers event, fire-and-forget: a nil URL or any transport
// error is swallowed by the caller (Dispatch), never propagated to the
// task's own outcome.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// Dispatch sends event through notifier if non-nil, logging but never
// propagating failure (spec §4.6: "their failure is never a task
// failure").
func (sv *Supervisor) Dispatch(ctx context.Context, event Event) {
	if sv.Notifier == nil {
		return
	}
	if err := sv.Notifier.Notify(ctx, event); err != nil {
		sv.Log.Warn().Int("task_id", event.TaskID).Str("kind", event.Kind).Err(err).Msg("notification delivery failed")
	}
}
