// Package dispatch pushes persisted daily queues to the external
// publishing webhooks (Make.com / Zapier), one post at a time, with
// bounded retries and pacing to respect the receiver's rate limits.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/snappedhq/postqueue/app/schedule"
)

const (
	// MaxAttempts bounds webhook delivery attempts per post.
	MaxAttempts = 3
	// DefaultRetryDelay is the pause between attempts for one post.
	DefaultRetryDelay = 5 * time.Second
)

// Sender delivers one client's posts to a single webhook URL.
type Sender struct {
	webhookURL string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[struct{}]
	retryDelay time.Duration
}

// NewSender builds a sender pacing posts at most one per postDelay.
func NewSender(webhookURL, userAgent string, httpClient *http.Client, postDelay time.Duration) *Sender {
	return newSender(webhookURL, userAgent, httpClient, postDelay, DefaultRetryDelay)
}

func newSender(webhookURL, userAgent string, httpClient *http.Client, postDelay, retryDelay time.Duration) *Sender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if postDelay <= 0 {
		postDelay = time.Nanosecond
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "webhook:" + webhookURL,
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Higher than one post's retry budget, so a single bad
			// post cannot open the breaker for its successors
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Webhook circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Sender{
		webhookURL: webhookURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(postDelay), 1),
		breaker:    breaker,
		retryDelay: retryDelay,
	}
}

// SendClientQueue delivers every post for one client. A post that
// exhausts its attempts is abandoned but later posts are still tried.
// Returns true only when every post was delivered.
func (s *Sender) SendClientQueue(ctx context.Context, clientID string, posts []schedule.Post) bool {
	success := true
	total := len(posts)

	slog.Info("Dispatching client queue", "client", clientID, "posts", total)

	for i, post := range posts {
		if err := s.limiter.Wait(ctx); err != nil {
			slog.Error("Dispatch cancelled", "client", clientID, "error", err)
			return false
		}

		if err := s.sendPost(ctx, post); err != nil {
			slog.Error("Failed to deliver post", "client", clientID, "file", post.FileName,
				"post", fmt.Sprintf("%d/%d", i+1, total), "error", err)
			success = false
			continue
		}

		slog.Info("Delivered post", "client", clientID, "file", post.FileName,
			"post", fmt.Sprintf("%d/%d", i+1, total))
	}

	return success
}

// sendPost tries one post up to MaxAttempts times.
func (s *Sender) sendPost(ctx context.Context, post schedule.Post) error {
	payload := Payload{
		Profile:   post.SnapID,
		MediaURLs: []string{post.CDNURL},
		PublishAt: post.ScheduledAt.UTC().Format("2006-01-02T15:04:05Z"),
		Draft:     "false",
		PublishAs: post.PublishAs,
		Caption:   post.Caption,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		_, lastErr = s.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, s.post(ctx, body)
		})
		if lastErr == nil {
			return nil
		}

		slog.Warn("Webhook delivery attempt failed", "file", post.FileName,
			"attempt", fmt.Sprintf("%d/%d", attempt, MaxAttempts), "error", lastErr)

		if attempt < MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", MaxAttempts, lastErr)
}

func (s *Sender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
