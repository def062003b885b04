// Package webhook implements the EventSink port by posting rendered events
// to a webhook endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ericfisherdev/gitwatch/internal/domain/model"
	"github.com/ericfisherdev/gitwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventSink = (*Sink)(nil)

// Sink posts one JSON payload per update to a webhook URL. Delivery is
// fire-and-forget: the tracking engine never retries on the sink's behalf.
type Sink struct {
	url    string
	client *http.Client
}

// NewSink creates a Sink posting to the given URL.
func NewSink(url string) *Sink {
	return &Sink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewSinkWithHTTPClient creates a Sink with a custom http.Client, intended
// for testing against an httptest server.
func NewSinkWithHTTPClient(url string, client *http.Client) *Sink {
	return &Sink{url: url, client: client}
}

// payload is the wire format delivered to the webhook.
type payload struct {
	TenantID  string `json:"tenant_id"`
	ChannelID string `json:"channel_id"`
	Kind      string `json:"kind"`
	Content   string `json:"content"`
	URL       string `json:"url,omitempty"`
}

// Publish posts each update in order. It stops at the first delivery failure;
// the remaining updates of the batch are dropped, not queued.
func (s *Sink) Publish(ctx context.Context, updates []model.Update) error {
	for _, update := range updates {
		p := render(update)

		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode webhook payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("post webhook: %w", err)
		}
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned %s", resp.Status)
		}
	}

	return nil
}

// render flattens an event into the webhook wire format.
func render(update model.Update) payload {
	p := payload{
		TenantID:  update.TenantID,
		ChannelID: update.ChannelID,
	}

	switch ev := update.Event.(type) {
	case model.CommitPushed:
		p.Kind = "commit_pushed"
		p.Content = fmt.Sprintf("[%s/%s@%s] %s: %s",
			ev.Owner, ev.Repo, ev.Branch, ev.Commit.AuthorName, firstLine(ev.Commit.Message))
		p.URL = ev.Commit.URL
	case model.BugClosed:
		p.Kind = "bug_closed"
		p.Content = fmt.Sprintf("[%s/%s] bug #%d closed: %s",
			ev.Owner, ev.Repo, ev.Issue.Number, ev.Issue.Title)
		p.URL = ev.Issue.URL
	case model.IssueChanged:
		p.Kind = "issue_" + string(ev.Activity)
		p.Content = fmt.Sprintf("[%s/%s] issue #%d %s: %s",
			ev.Owner, ev.Repo, ev.Issue.Number, ev.Activity, ev.Issue.Title)
		p.URL = ev.Issue.URL
	}

	return p
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
