// Package discovery simulates locating the syndication feed of a website.
package discovery

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/regwatch/internal/feed"
)

const (
	// DefaultDelay is the simulated crawl latency.
	DefaultDelay = 800 * time.Millisecond

	// FeedPath is appended to the normalized input to form the feed URL.
	FeedPath = "/rss.xml"

	// CustomCategory is the category of user-added sources.
	CustomCategory = "Custom Sources"
)

// ErrNoFeedFound is returned when no feed can be located for the input.
var ErrNoFeedFound = errors.New("no feed found")

// Discoverer resolves a domain or URL to a feed URL.
type Discoverer struct {
	delay time.Duration
}

// New creates a Discoverer. A zero delay selects DefaultDelay, a negative one disables it.
func New(delay time.Duration) *Discoverer {
	if delay == 0 {
		delay = DefaultDelay
	}
	return &Discoverer{delay: delay}
}

// Discover returns the feed URL for a domain or URL. Inputs without a "." are
// rejected with ErrNoFeedFound.
func (d *Discoverer) Discover(ctx context.Context, input string) (string, error) {
	if d.delay > 0 {
		t := time.NewTimer(d.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}

	in := strings.TrimSpace(input)
	if !strings.Contains(in, ".") {
		return "", ErrNoFeedFound
	}
	return strings.TrimSuffix(in, "/") + FeedPath, nil
}

// NewSource builds a user-added source for a discovered feed URL. The name is
// the host without a leading "www.", or the raw URL when it has no host.
func NewSource(feedURL string) feed.Source {
	return feed.Source{
		ID:       "custom-" + strings.ToLower(ulid.Make().String()),
		Name:     hostName(feedURL),
		URL:      feedURL,
		Category: CustomCategory,
	}
}

func hostName(raw string) string {
	withScheme := raw
	if !strings.HasPrefix(raw, "http") {
		withScheme = "https://" + raw
	}
	u, err := url.Parse(withScheme)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
