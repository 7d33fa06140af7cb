package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/regwatch/internal/discovery"
	"github.com/linnemanlabs/regwatch/internal/feed"
)

// DefaultRefreshInterval is the period between timer-driven passes.
const DefaultRefreshInterval = 15 * time.Minute

var (
	// ErrUnknownSource is returned when a selection names a source not in the catalog.
	ErrUnknownSource = errors.New("unknown source")

	// ErrInvalidView is returned for an unrecognised view mode.
	ErrInvalidView = errors.New("invalid view mode")
)

// Aggregator produces one classified batch of items for a set of sources.
type Aggregator interface {
	Aggregate(ctx context.Context, sources []feed.Source) ([]feed.Item, error)
}

// Discoverer resolves user input to a feed URL.
type Discoverer interface {
	Discover(ctx context.Context, input string) (string, error)
}

// Notifier is told about Critical items the first time they are seen.
type Notifier interface {
	NotifyCritical(ctx context.Context, items []feed.Item, sources []feed.Source) error
}

// Options tunes a Service. Zero values pick defaults.
type Options struct {
	RefreshInterval time.Duration
	Now             func() time.Time
	NewSource       func(feedURL string) feed.Source
	Notifier        Notifier
	Metrics         *Metrics
}

// Service is the business boundary for the dashboard. It owns the single
// State and serialises aggregation passes through a one-slot guard.
type Service struct {
	store    SourceStore
	agg      Aggregator
	disc     Discoverer
	logger   log.Logger
	notifier Notifier
	metrics  *Metrics

	interval  time.Duration
	now       func() time.Time
	newSource func(string) feed.Source

	mu    sync.RWMutex
	state State

	inflight atomic.Bool
	wg       sync.WaitGroup

	// guarded by inflight
	notified map[string]bool
	seeded   bool
}

// NewService loads the source catalog from store and returns a Service in
// its initial state. No pass runs until Refresh, TriggerRefresh or Run.
func NewService(ctx context.Context, store SourceStore, agg Aggregator, disc Discoverer, logger log.Logger, opts Options) (*Service, error) {
	if logger == nil {
		logger = log.Nop()
	}
	sources, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	s := &Service{
		store:     store,
		agg:       agg,
		disc:      disc,
		logger:    logger,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		interval:  opts.RefreshInterval,
		now:       opts.Now,
		newSource: opts.NewSource,
		state:     NewState(sources),
		notified:  make(map[string]bool),
	}
	if s.interval <= 0 {
		s.interval = DefaultRefreshInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newSource == nil {
		s.newSource = discovery.NewSource
	}
	if s.metrics != nil {
		s.metrics.Sources.Set(float64(len(sources)))
	}
	return s, nil
}

// Refresh runs one aggregation pass in the caller's goroutine. If a pass is
// already in flight it returns started=false immediately and changes nothing.
func (s *Service) Refresh(ctx context.Context) (bool, error) {
	if !s.acquire() {
		return false, nil
	}
	defer s.inflight.Store(false)
	return true, s.pass(ctx)
}

// TriggerRefresh starts a pass in the background, detached from ctx
// cancellation. It reports whether a pass was started.
func (s *Service) TriggerRefresh(ctx context.Context) bool {
	if !s.acquire() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inflight.Store(false)
		_ = s.pass(context.WithoutCancel(ctx)) //nolint:errcheck // logged in pass
	}()
	return true
}

// Wait blocks until background passes started by TriggerRefresh finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Run performs a pass immediately and then once per refresh interval until
// ctx is done, then waits for background passes.
func (s *Service) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.logger.Info(ctx, "refresh loop started", "interval", s.interval.String())
	_, _ = s.Refresh(ctx) //nolint:errcheck // logged in pass

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info(ctx, "refresh loop stopped")
			return nil
		case <-t.C:
			_, _ = s.Refresh(ctx) //nolint:errcheck // logged in pass
		}
	}
}

func (s *Service) acquire() bool {
	if s.inflight.CompareAndSwap(false, true) {
		return true
	}
	if s.metrics != nil {
		s.metrics.RefreshDropped.Inc()
	}
	return false
}

// pass must only be called while holding the inflight slot.
func (s *Service) pass(ctx context.Context) error {
	s.mu.Lock()
	s.state = s.state.BeginRefresh()
	sources := s.state.Sources
	s.mu.Unlock()

	start := s.now()
	items, err := s.agg.Aggregate(ctx, sources)
	dur := s.now().Sub(start)

	if err != nil {
		s.mu.Lock()
		s.state = s.state.RefreshFailed()
		s.mu.Unlock()

		s.observePass("error", dur)
		s.logger.Error(ctx, err, "aggregation pass failed", "sources", len(sources))
		return err
	}

	s.mu.Lock()
	s.state = s.state.RefreshSucceeded(items, s.now())
	s.mu.Unlock()

	s.observePass("success", dur)
	s.metrics.observeItems(items)
	s.logger.Info(ctx, "aggregation pass complete",
		"sources", len(sources),
		"items", len(items),
		"duration", dur.Seconds(),
	)

	s.notifyNew(ctx, items, sources)
	return nil
}

func (s *Service) observePass(outcome string, dur time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.AggregationsTotal.WithLabelValues(outcome).Inc()
	s.metrics.AggregationDuration.WithLabelValues(outcome).Observe(dur.Seconds())
}

// notifyNew hands Critical items not seen in earlier passes to the notifier.
// The first successful pass only records what is already there.
func (s *Service) notifyNew(ctx context.Context, items []feed.Item, sources []feed.Source) {
	var fresh []feed.Item
	for _, it := range items {
		if it.Tier != feed.TierCritical || s.notified[it.ID] {
			continue
		}
		s.notified[it.ID] = true
		fresh = append(fresh, it)
	}

	first := !s.seeded
	s.seeded = true
	if first || len(fresh) == 0 || s.notifier == nil {
		return
	}

	outcome := "success"
	if err := s.notifier.NotifyCritical(ctx, fresh, sources); err != nil {
		outcome = "error"
		s.logger.Error(ctx, err, "critical notification failed", "items", len(fresh))
	}
	if s.metrics != nil {
		s.metrics.NotificationsTotal.WithLabelValues(outcome).Inc()
	}
}

// Discover resolves input to a feed URL without changing any state.
func (s *Service) Discover(ctx context.Context, input string) (string, error) {
	feedURL, err := s.disc.Discover(ctx, input)
	if s.metrics != nil {
		outcome := "found"
		switch {
		case errors.Is(err, discovery.ErrNoFeedFound):
			outcome = "not_found"
		case err != nil:
			outcome = "error"
		}
		s.metrics.DiscoveriesTotal.WithLabelValues(outcome).Inc()
	}
	return feedURL, err
}

// AddFeed discovers a feed for input, persists a new source for it, selects
// only that source, and starts a refresh. On any failure the state is unchanged.
func (s *Service) AddFeed(ctx context.Context, input string) (feed.Source, error) {
	feedURL, err := s.Discover(ctx, input)
	if err != nil {
		return feed.Source{}, err
	}

	src := s.newSource(feedURL)
	if err := s.store.Add(ctx, src); err != nil {
		return feed.Source{}, fmt.Errorf("store source: %w", err)
	}

	s.mu.Lock()
	s.state = s.state.AddSource(src)
	n := len(s.state.Sources)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Sources.Set(float64(n))
	}
	s.logger.Info(ctx, "source added", "source_id", src.ID, "url", src.URL)

	s.TriggerRefresh(ctx)
	return src, nil
}

// SelectSources narrows the feed to ids; none selects every source.
func (s *Service) SelectSources(ids []string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if !s.state.HasSource(id) {
			return View{}, fmt.Errorf("%w: %s", ErrUnknownSource, id)
		}
	}
	s.state = s.state.SelectSources(ids)
	return s.state.Render(), nil
}

// SetSearch sets the search text.
func (s *Service) SetSearch(q string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.WithSearch(q)
	return s.state.Render()
}

// SetView switches between the feed and research panels.
func (s *Service) SetView(m ViewMode) (View, error) {
	if !m.Valid() {
		return View{}, fmt.Errorf("%w: %q", ErrInvalidView, m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.WithView(m)
	return s.state.Render(), nil
}

// View renders the current state.
func (s *Service) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Render()
}

// State returns a snapshot of the current state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Present ranks the current items for an ad hoc selection without touching
// the stored selection or search. No ids means every source.
func (s *Service) Present(ids []string, search string) []PresentedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(ids) == 0 {
		ids = sourceIDs(s.state.Sources)
	}
	ranked := feed.Present(s.state.Items, feed.SourceSet(ids...), search)
	out := make([]PresentedItem, len(ranked))
	for i, it := range ranked {
		out[i] = PresentedItem{Item: it, SourceName: feed.SourceName(s.state.Sources, it.SourceID)}
	}
	return out
}

// Sources returns the catalog.
func (s *Service) Sources() []feed.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Sources)
}
