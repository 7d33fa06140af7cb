package feed

import (
	"fmt"
	"time"
)

// Tier is the severity classification of an item. Higher values rank first.
type Tier int

const (
	// TierFYI is the informational default.
	TierFYI Tier = iota + 1

	// TierOpportunity marks actionable items such as open consultations.
	TierOpportunity

	// TierCritical marks the highest urgency items such as recalls.
	TierCritical
)

// Tiers lists every tier from highest to lowest urgency.
var Tiers = []Tier{TierCritical, TierOpportunity, TierFYI}

func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "Critical"
	case TierOpportunity:
		return "Opportunity"
	case TierFYI:
		return "FYI"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// MarshalText encodes the tier as its name.
func (t Tier) MarshalText() ([]byte, error) {
	switch t {
	case TierCritical, TierOpportunity, TierFYI:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	p, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = p
	return nil
}

// ParseTier returns the tier with the given name.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "Critical":
		return TierCritical, nil
	case "Opportunity":
		return TierOpportunity, nil
	case "FYI":
		return TierFYI, nil
	default:
		return 0, fmt.Errorf("unknown tier %q", s)
	}
}

// Source is a named origin of feed items. Sources are never mutated after creation.
type Source struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// Item is one classified feed entry.
type Item struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	Link          string    `json:"link"`
	PublishedAt   time.Time `json:"published_at"`
	SourceID      string    `json:"source_id"`
	Tier          Tier      `json:"tier"`
	KeywordsFound []string  `json:"keywords_found"`
}
