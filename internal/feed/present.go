package feed

import (
	"cmp"
	"slices"
	"strings"
)

// Present filters items to the selected sources and the search text, then
// ranks them by tier (highest first) and publish time (newest first).
// An empty search matches everything. Items with equal tier and publish time
// keep no guaranteed relative order.
func Present(items []Item, selected map[string]bool, search string) []Item {
	q := strings.ToLower(search)

	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !selected[it.SourceID] {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(it.Title), q) &&
			!strings.Contains(strings.ToLower(it.Summary), q) {
			continue
		}
		out = append(out, it)
	}

	slices.SortStableFunc(out, func(a, b Item) int {
		if c := cmp.Compare(b.Tier, a.Tier); c != 0 {
			return c
		}
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return out
}

// Stats counts items per tier.
type Stats struct {
	Critical    int `json:"critical"`
	Opportunity int `json:"opportunity"`
	FYI         int `json:"fyi"`
}

// Summarize returns per-tier counts for items.
func Summarize(items []Item) Stats {
	var s Stats
	for _, it := range items {
		switch it.Tier {
		case TierCritical:
			s.Critical++
		case TierOpportunity:
			s.Opportunity++
		case TierFYI:
			s.FYI++
		}
	}
	return s
}

// SourceSet builds a selection set from source ids.
func SourceSet(ids ...string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// SourceName returns the display name for a source id, or "Unknown Source"
// when the id is not in sources.
func SourceName(sources []Source, id string) string {
	for _, s := range sources {
		if s.ID == id {
			return s.Name
		}
	}
	return UnknownSourceName
}

// UnknownSourceName labels items whose source is no longer known.
const UnknownSourceName = "Unknown Source"
