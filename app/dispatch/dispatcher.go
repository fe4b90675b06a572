package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/snappedhq/postqueue/app/cfg"
	"github.com/snappedhq/postqueue/app/database"
)

// Dispatcher reads persisted daily queues and pushes them through the
// webhook sender for the matching content kind.
type Dispatcher struct {
	queueRepo database.QueueRepository
	senders   map[database.ContentKind]*Sender
}

func NewDispatcher(queueRepo database.QueueRepository, httpClient *http.Client) *Dispatcher {
	c := cfg.Get()
	postDelay := time.Duration(c.PostDelaySeconds) * time.Second

	senders := make(map[database.ContentKind]*Sender)
	if c.MakeWebhookURL != "" {
		sender := NewSender(c.MakeWebhookURL, c.UserAgent, httpClient, postDelay)
		senders[database.KindStory] = sender
		senders[database.KindSaved] = sender
	}
	if c.SpotlightWebhookURL != "" {
		senders[database.KindSpotlight] = NewSender(c.SpotlightWebhookURL, c.UserAgent, httpClient, postDelay)
	}

	return &Dispatcher{
		queueRepo: queueRepo,
		senders:   senders,
	}
}

// NewWebhookDispatcher wires every kind to a single webhook URL. Used
// for the Zapier fallback target.
func NewWebhookDispatcher(queueRepo database.QueueRepository, httpClient *http.Client, webhookURL string) *Dispatcher {
	c := cfg.Get()
	sender := NewSender(webhookURL, c.UserAgent, httpClient, time.Duration(c.PostDelaySeconds)*time.Second)

	senders := make(map[database.ContentKind]*Sender)
	for _, kind := range database.AllKinds {
		senders[kind] = sender
	}

	return &Dispatcher{queueRepo: queueRepo, senders: senders}
}

// HasSender reports whether a webhook is configured for kind.
func (d *Dispatcher) HasSender(kind database.ContentKind) bool {
	_, ok := d.senders[kind]
	return ok
}

// ProcessQueues dispatches the queue for targetDate (today UTC when
// empty). Clients already marked processed are skipped; a client is
// marked processed only when all of its posts were delivered, so a
// partially failed client stays unprocessed.
func (d *Dispatcher) ProcessQueues(ctx context.Context, targetDate string, kind database.ContentKind) error {
	if targetDate == "" {
		targetDate = time.Now().UTC().Format("2006-01-02")
	}

	sender, ok := d.senders[kind]
	if !ok {
		return fmt.Errorf("no webhook configured for kind %s", kind)
	}

	queue, clients, err := d.queueRepo.GetQueue(targetDate, kind)
	if err != nil {
		return fmt.Errorf("failed to load queue: %w", err)
	}
	if queue == nil {
		slog.Warn("No queue found for date", "queue_date", targetDate, "kind", string(kind))
		return nil
	}

	slog.Info("Processing queue", "queue_date", targetDate, "kind", string(kind), "clients", len(clients))

	for _, client := range clients {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if client.Processed {
			slog.Debug("Client queue already processed, skipping", "client", client.ClientID)
			continue
		}

		ok := sender.SendClientQueue(ctx, client.ClientID, client.Posts)
		if !ok {
			slog.Error("Client queue had delivery failures, leaving unprocessed", "client", client.ClientID)
			continue
		}

		if err := d.queueRepo.MarkClientProcessed(targetDate, kind, client.ClientID); err != nil {
			slog.Error("Failed to mark client processed", "client", client.ClientID, "error", err)
		}
	}

	slog.Info("Queue processing completed", "queue_date", targetDate, "kind", string(kind))
	return nil
}
