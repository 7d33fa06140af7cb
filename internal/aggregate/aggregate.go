// Package aggregate runs simulated retrieval passes: it turns canned fixture
// records into classified feed items and synthesizes a placeholder item for
// sources that have no canned content.
package aggregate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/linnemanlabs/regwatch/internal/feed"
	"github.com/linnemanlabs/regwatch/internal/fixture"
)

// DefaultDelay is the simulated retrieval latency.
const DefaultDelay = 600 * time.Millisecond

// ErrRetrievalFailed is returned when a pass cannot retrieve its items.
// No partial results accompany it.
var ErrRetrievalFailed = errors.New("retrieval failed")

// RecordSource supplies canned records per source id.
type RecordSource interface {
	Records(sourceID string) ([]fixture.Record, bool)
}

// Options configures an Aggregator. Zero values select defaults.
type Options struct {
	// Delay is the simulated latency per pass; negative disables it.
	Delay time.Duration

	// FaultRate is the probability in [0,1] that a pass fails.
	FaultRate float64

	// Clock returns the pass timestamp. Defaults to time.Now.
	Clock func() time.Time

	// Fault, when set, replaces FaultRate as the failure injector.
	Fault func() error
}

// Aggregator merges items across sources for one pass.
type Aggregator struct {
	records RecordSource
	delay   time.Duration
	clock   func() time.Time
	fault   func() error
}

// New creates an Aggregator over the given record source.
func New(records RecordSource, opts Options) *Aggregator {
	a := &Aggregator{
		records: records,
		delay:   opts.Delay,
		clock:   opts.Clock,
		fault:   opts.Fault,
	}
	if a.delay == 0 {
		a.delay = DefaultDelay
	}
	if a.clock == nil {
		a.clock = time.Now
	}
	if a.fault == nil && opts.FaultRate > 0 {
		rate := opts.FaultRate
		a.fault = func() error {
			if rand.Float64() < rate { //nolint:gosec // simulation, not security sensitive
				return errors.New("simulated transport fault")
			}
			return nil
		}
	}
	return a
}

// Aggregate retrieves and classifies items for all sources. The order between
// canned and synthesized items is unspecified.
func (a *Aggregator) Aggregate(ctx context.Context, sources []feed.Source) ([]feed.Item, error) {
	if a.delay > 0 {
		t := time.NewTimer(a.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, ctx.Err())
		case <-t.C:
		}
	}

	if a.fault != nil {
		if err := a.fault(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
		}
	}

	now := a.clock()
	var canned, synthesized []feed.Item
	for _, src := range sources {
		records, ok := a.records.Records(src.ID)
		if !ok {
			synthesized = append(synthesized, placeholder(src, now))
			continue
		}
		for _, r := range records {
			canned = append(canned, fromRecord(r, now))
		}
	}

	return append(canned, synthesized...), nil
}

func fromRecord(r fixture.Record, now time.Time) feed.Item {
	tier, terms := feed.Classify(r.Title, r.Summary)
	return feed.Item{
		ID:            itemID(r.SourceID, r.Link, r.Title),
		Title:         r.Title,
		Summary:       r.Summary,
		Link:          r.Link,
		PublishedAt:   now.Add(-r.Age),
		SourceID:      r.SourceID,
		Tier:          tier,
		KeywordsFound: terms,
	}
}

// placeholder stands in for the first entry of a source that has no canned
// records. Its tier is always FYI, independent of the source name.
func placeholder(src feed.Source, now time.Time) feed.Item {
	return feed.Item{
		ID:    fmt.Sprintf("custom-item-%s-%d", src.ID, now.UnixMilli()),
		Title: "Latest Regulatory Update from " + src.Name,
		Summary: fmt.Sprintf("This is a simulated feed item for the newly added source: %s. "+
			"Live retrieval would replace it with entries parsed from the feed.", src.URL),
		Link:          src.URL,
		PublishedAt:   now,
		SourceID:      src.ID,
		Tier:          feed.TierFYI,
		KeywordsFound: []string{},
	}
}

// itemID derives a stable id from source content so canned items keep their
// identity across passes.
func itemID(sourceID, link, title string) string {
	sum := sha256.Sum256([]byte(sourceID + "|" + link + "|" + title))
	return "item-" + hex.EncodeToString(sum[:8])
}
