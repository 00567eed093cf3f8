package ingest

import (
	"sort"

	"github.com/unifinance/funding-radar/internal/models"
)

// Filter returns the opportunities matching category. An empty category or
// the literal "all" passes everything through unchanged.
func Filter(opps []models.Opportunity, category string) []models.Opportunity {
	if category == "" || category == "all" {
		return opps
	}

	out := make([]models.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if string(opp.Type) == category {
			out = append(out, opp)
		}
	}
	return out
}

// SortByRelevance orders opportunities by descending relevance score. The
// sort is stable so equally scored records keep their source order.
func SortByRelevance(opps []models.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].RelevanceScore > opps[j].RelevanceScore
	})
}

// SortByDeadline orders opportunities by ascending deadline, also stable.
func SortByDeadline(opps []models.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Deadline.Before(opps[j].Deadline)
	})
}
