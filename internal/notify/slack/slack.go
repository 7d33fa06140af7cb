// Package slack posts newly seen Critical feed items to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/regwatch/internal/feed"
)

const (
	maxSummaryLen = 500
	maxItems      = 10
	httpTimeout   = 10 * time.Second
)

// Notifier sends Critical items to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
	now        func() time.Time
}

// New creates a new Slack notifier. If webhookURL is empty, NotifyCritical is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
		now:        time.Now,
	}
}

// NotifyCritical posts one message listing items. sources resolves item
// source names. If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) NotifyCritical(ctx context.Context, items []feed.Item, sources []feed.Source) error {
	if n.webhookURL == "" || len(items) == 0 {
		return nil
	}

	msg := buildMessage(items, sources, n.now())

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "critical items posted to slack", "items", len(items))
	return nil
}

func buildMessage(items []feed.Item, sources []feed.Source, at time.Time) map[string]any {
	blocks := []map[string]any{headerBlock(len(items)), {"type": "divider"}}

	shown := items
	if len(shown) > maxItems {
		shown = shown[:maxItems]
	}
	for _, it := range shown {
		blocks = append(blocks, itemBlock(it, feed.SourceName(sources, it.SourceID)))
	}
	if extra := len(items) - len(shown); extra > 0 {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("_…and %d more._", extra),
			},
		})
	}

	blocks = append(blocks, map[string]any{"type": "divider"}, contextBlock(at))
	return map[string]any{"blocks": blocks}
}

func headerBlock(n int) map[string]any {
	noun := "item"
	if n != 1 {
		noun = "items"
	}
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("\U0001f534 %d new critical regulatory %s", n, noun), // red circle
		},
	}
}

func itemBlock(it feed.Item, sourceName string) map[string]any {
	title := escape(it.Title)
	if it.Link != "" {
		title = fmt.Sprintf("<%s|%s>", it.Link, title)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", title)
	fmt.Fprintf(&b, "*Source:* %s", escape(sourceName))
	if len(it.KeywordsFound) > 0 {
		fmt.Fprintf(&b, "  •  *Matched:* %s", escape(strings.Join(it.KeywordsFound, ", ")))
	}
	if !it.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "  •  %s", it.PublishedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	if s := truncate(it.Summary, maxSummaryLen); s != "" {
		fmt.Fprintf(&b, "\n%s", escape(s))
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": b.String(),
		},
	}
}

func contextBlock(at time.Time) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("regwatch • %s", at.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escape neutralises Slack control sequences in feed-provided text.
func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
