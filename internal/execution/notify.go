package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/cutmarket/backend/internal/events"
)

// DeliverNotificationArgs carries one domain event to the notification service.
type DeliverNotificationArgs struct {
	Event      events.Event `json:"event"`
	Recipients []uuid.UUID  `json:"recipients"`
}

func (DeliverNotificationArgs) Kind() string { return "deliver_notification" }

func (DeliverNotificationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 5}
}

type DeliverNotificationWorker struct {
	river.WorkerDefaults[DeliverNotificationArgs]
	url        string
	httpClient *http.Client
	log        *slog.Logger
}

// NewDeliverNotificationWorker posts to url. An empty url only logs the notification.
func NewDeliverNotificationWorker(url string, log *slog.Logger) *DeliverNotificationWorker {
	if log == nil {
		log = slog.Default()
	}
	return &DeliverNotificationWorker{
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

func (w *DeliverNotificationWorker) Work(ctx context.Context, job *river.Job[DeliverNotificationArgs]) error {
	args := job.Args
	if w.url == "" {
		w.log.Info("notification", "kind", args.Event.Kind, "quotation_id", args.Event.QuotationID, "recipients", len(args.Recipients))
		return nil
	}

	body, err := json.Marshal(args)
	if err != nil {
		return river.JobCancel(fmt.Errorf("marshal notification: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return river.JobCancel(fmt.Errorf("build notification request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling notification service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	default:
		return river.JobCancel(fmt.Errorf("notification service rejected event: status %d", resp.StatusCode))
	}
}

// InsertNotificationFunc enqueues a notification job.
type InsertNotificationFunc func(ctx context.Context, args DeliverNotificationArgs) error

// NotificationSubscriber returns a bus handler that turns events with recipients into jobs.
func NotificationSubscriber(insert InsertNotificationFunc) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		recipients := e.Recipients()
		if len(recipients) == 0 {
			return nil
		}
		if err := insert(ctx, DeliverNotificationArgs{Event: e, Recipients: recipients}); err != nil {
			return fmt.Errorf("enqueue notification: %w", err)
		}
		return nil
	}
}
