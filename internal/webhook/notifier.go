// Package webhook delivers sync lifecycle events to configured HTTP
// endpoints.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sydlexius/milkcrate/internal/event"
)

const (
	maxRetries     = 3
	requestTimeout = 10 * time.Second
)

// Endpoint types.
const (
	TypeGeneric = "generic"
	TypeDiscord = "discord"
	TypeSlack   = "slack"
	TypeGotify  = "gotify"
)

// Endpoint is one configured webhook target. An empty Events list
// subscribes the endpoint to every event.
type Endpoint struct {
	Name   string
	URL    string
	Type   string
	Events []string
}

// Notifier sends events to matching endpoints.
type Notifier struct {
	endpoints  []Endpoint
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNotifier creates a webhook notifier.
func NewNotifier(endpoints []Endpoint, logger *slog.Logger) *Notifier {
	return NewNotifierWithHTTPClient(endpoints, &http.Client{Timeout: requestTimeout}, logger)
}

// NewNotifierWithHTTPClient creates a notifier with a custom HTTP client (for testing).
func NewNotifierWithHTTPClient(endpoints []Endpoint, httpClient *http.Client, logger *slog.Logger) *Notifier {
	return &Notifier{
		endpoints:  endpoints,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "webhook")),
	}
}

// Subscribe registers the notifier for sync lifecycle events.
func (n *Notifier) Subscribe(bus *event.Bus) {
	bus.Subscribe(event.SyncCompleted, n.HandleEvent)
	bus.Subscribe(event.SyncFailed, n.HandleEvent)
}

// HandleEvent is an event.Handler that delivers the event to all
// matching endpoints.
func (n *Notifier) HandleEvent(e event.Event) {
	for i := range n.endpoints {
		ep := n.endpoints[i]
		if !matches(&ep, e.Type) {
			continue
		}
		go n.deliver(ep, e)
	}
}

func matches(ep *Endpoint, t event.Type) bool {
	if len(ep.Events) == 0 {
		return true
	}
	for _, e := range ep.Events {
		if e == string(t) {
			return true
		}
	}
	return false
}

func (n *Notifier) deliver(ep Endpoint, e event.Event) {
	body, contentType := formatPayload(&ep, e)

	var lastErr error
	for attempt := range maxRetries {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			time.Sleep(backoff)
		}

		lastErr = n.send(ep.URL, body, contentType)
		if lastErr == nil {
			n.logger.Debug("webhook delivered",
				"webhook", ep.Name,
				"event", string(e.Type),
				"attempt", attempt+1,
			)
			return
		}

		n.logger.Warn("webhook delivery failed",
			"webhook", ep.Name,
			"event", string(e.Type),
			"attempt", attempt+1,
			"error", lastErr,
		)
	}

	n.logger.Error("webhook delivery exhausted retries",
		"webhook", ep.Name,
		"event", string(e.Type),
		"error", lastErr,
	)
}

func (n *Notifier) send(url string, body []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "Milkcrate-Webhook/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()        //nolint:errcheck
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
