package feed

import "strings"

// Trigger terms per tier, matched as lower-case substrings. Order is the
// order matched terms are reported in.
var (
	CriticalTerms    = []string{"recall", "warning", "ban", "alert", "emergency", "safety notice"}
	OpportunityTerms = []string{"draft guidance", "comment", "consultation", "proposal", "rfi", "request for information"}
)

// Classify assigns a tier to an item from its title and summary and reports
// which trigger terms matched. Critical terms are checked before opportunity
// terms, so text matching both is Critical. Text matching neither is FYI with
// an empty term list.
func Classify(title, summary string) (Tier, []string) {
	content := strings.ToLower(title + " " + summary)

	if matched := matchTerms(content, CriticalTerms); len(matched) > 0 {
		return TierCritical, matched
	}
	if matched := matchTerms(content, OpportunityTerms); len(matched) > 0 {
		return TierOpportunity, matched
	}
	return TierFYI, []string{}
}

func matchTerms(content string, terms []string) []string {
	var matched []string
	for _, term := range terms {
		if strings.Contains(content, term) {
			matched = append(matched, term)
		}
	}
	return matched
}
