package dashboard

import (
	"slices"
	"time"

	"github.com/linnemanlabs/regwatch/internal/feed"
)

// ViewMode selects which dashboard panel is active.
type ViewMode string

const (
	// ViewFeed shows the ranked item feed.
	ViewFeed ViewMode = "feed"

	// ViewResearch shows the research assistant.
	ViewResearch ViewMode = "research"
)

// Valid reports whether m is a known view mode.
func (m ViewMode) Valid() bool {
	return m == ViewFeed || m == ViewResearch
}

// RefreshFailedBanner is shown while the last pass failed and stale items remain.
const RefreshFailedBanner = "Failed to connect to ingestion engine. Retrying..."

// State is the complete dashboard state. Reducers never modify the receiver;
// they return a new State that shares no mutable slices with it.
type State struct {
	Sources     []feed.Source
	Items       []feed.Item
	Selected    []string
	Search      string
	View        ViewMode
	LastUpdated time.Time
	Loading     bool
	Error       string
}

// NewState returns the initial state for a source catalog: every source
// selected, feed view, loading until the first pass lands.
func NewState(sources []feed.Source) State {
	return State{
		Sources:  slices.Clone(sources),
		Selected: sourceIDs(sources),
		View:     ViewFeed,
		Loading:  true,
	}
}

// SelectSource narrows the feed to one source.
func (s State) SelectSource(id string) State {
	s.View = ViewFeed
	s.Selected = []string{id}
	return s
}

// SelectSources narrows the feed to the given sources; none selects all.
func (s State) SelectSources(ids []string) State {
	if len(ids) == 0 {
		return s.SelectAll()
	}
	s.View = ViewFeed
	s.Selected = slices.Clone(ids)
	return s
}

// SelectAll selects every known source.
func (s State) SelectAll() State {
	s.View = ViewFeed
	s.Selected = sourceIDs(s.Sources)
	return s
}

// WithSearch sets the search text.
func (s State) WithSearch(q string) State {
	s.Search = q
	return s
}

// WithView switches panels.
func (s State) WithView(m ViewMode) State {
	s.View = m
	return s
}

// AddSource appends a source, switches to the feed and selects only the new source.
func (s State) AddSource(src feed.Source) State {
	s.Sources = append(slices.Clone(s.Sources), src)
	s.View = ViewFeed
	s.Selected = []string{src.ID}
	return s
}

// BeginRefresh marks a pass in flight and clears the banner.
func (s State) BeginRefresh() State {
	s.Loading = true
	s.Error = ""
	return s
}

// RefreshSucceeded replaces the items with a completed pass.
func (s State) RefreshSucceeded(items []feed.Item, at time.Time) State {
	s.Items = slices.Clone(items)
	s.LastUpdated = at
	s.Loading = false
	s.Error = ""
	return s
}

// RefreshFailed keeps the previous items and raises the banner.
func (s State) RefreshFailed() State {
	s.Loading = false
	s.Error = RefreshFailedBanner
	return s
}

// HasSource reports whether id names a known source.
func (s State) HasSource(id string) bool {
	return slices.ContainsFunc(s.Sources, func(src feed.Source) bool { return src.ID == id })
}

// AllSelected reports whether the feed shows more than a single source.
func (s State) AllSelected() bool {
	return len(s.Selected) == len(s.Sources) || len(s.Selected) > 1
}

// PresentedItem is a ranked item with its resolved source name.
type PresentedItem struct {
	feed.Item
	SourceName string `json:"source_name"`
}

// View is the read model served to the dashboard.
type View struct {
	Title             string          `json:"title"`
	Items             []PresentedItem `json:"items"`
	Stats             feed.Stats      `json:"stats"`
	Sources           []feed.Source   `json:"sources"`
	SelectedSourceIDs []string        `json:"selected_source_ids"`
	AllSelected       bool            `json:"all_selected"`
	CurrentSource     *feed.Source    `json:"current_source,omitempty"`
	Search            string          `json:"search"`
	Mode              ViewMode        `json:"view"`
	LastUpdated       *time.Time      `json:"last_updated,omitempty"`
	Loading           bool            `json:"loading"`
	Error             string          `json:"error,omitempty"`
}

// Render builds the read model: selected and searched items ranked by tier
// and recency, with counts per tier over the ranked items.
func (s State) Render() View {
	ranked := feed.Present(s.Items, feed.SourceSet(s.Selected...), s.Search)

	items := make([]PresentedItem, len(ranked))
	for i, it := range ranked {
		items[i] = PresentedItem{Item: it, SourceName: feed.SourceName(s.Sources, it.SourceID)}
	}

	v := View{
		Title:             "Regulatory Feed",
		Items:             items,
		Stats:             feed.Summarize(ranked),
		Sources:           slices.Clone(s.Sources),
		SelectedSourceIDs: slices.Clone(s.Selected),
		AllSelected:       s.AllSelected(),
		Search:            s.Search,
		Mode:              s.View,
		Loading:           s.Loading,
		Error:             s.Error,
	}
	if !v.AllSelected {
		v.Title = "Feed"
		if len(s.Selected) == 1 {
			if i := slices.IndexFunc(s.Sources, func(src feed.Source) bool { return src.ID == s.Selected[0] }); i >= 0 {
				src := s.Sources[i]
				v.CurrentSource = &src
				v.Title = src.Name
			}
		}
	}
	if !s.LastUpdated.IsZero() {
		t := s.LastUpdated
		v.LastUpdated = &t
	}
	return v
}

func sourceIDs(sources []feed.Source) []string {
	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ID
	}
	return ids
}
