package ingest

import (
	"testing"

	"github.com/unifinance/funding-radar/internal/models"
)

func sampleList() []models.Opportunity {
	return []models.Opportunity{
		{Title: "Access Bursary", Type: models.TypeBursary, RelevanceScore: 88},
		{Title: "Excellence Scholarship", Type: models.TypeScholarship, RelevanceScore: 95},
		{Title: "STEM Research Grant", Type: models.TypeGrant, RelevanceScore: 82},
		{Title: "Merit Scholarship", Type: models.TypeScholarship, RelevanceScore: 82},
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		category string
		want     int
	}{
		{"empty category passes through", "", 4},
		{"all passes through", "all", 4},
		{"scholarship only", "scholarship", 2},
		{"grant only", "grant", 1},
		{"unknown category matches nothing", "fellowship", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(sampleList(), tt.category)
			if len(got) != tt.want {
				t.Errorf("Filter(%q) returned %d records, want %d", tt.category, len(got), tt.want)
			}
			for _, opp := range got {
				if tt.category != "" && tt.category != "all" && string(opp.Type) != tt.category {
					t.Errorf("Filter(%q) leaked type %v", tt.category, opp.Type)
				}
			}
		})
	}
}

func TestFilterIdempotent(t *testing.T) {
	once := Filter(sampleList(), "scholarship")
	twice := Filter(once, "scholarship")
	if len(once) != len(twice) {
		t.Errorf("second filter changed length: %d -> %d", len(once), len(twice))
	}
}

func TestFilterEmptyInput(t *testing.T) {
	if got := Filter(nil, "grant"); len(got) != 0 {
		t.Errorf("Filter(nil) = %v, want empty", got)
	}
}

func TestSortByRelevanceDescending(t *testing.T) {
	opps := sampleList()
	SortByRelevance(opps)
	for i := 1; i < len(opps); i++ {
		if opps[i-1].RelevanceScore < opps[i].RelevanceScore {
			t.Fatalf("not descending at %d: %d < %d", i, opps[i-1].RelevanceScore, opps[i].RelevanceScore)
		}
	}
}

func TestSortByRelevanceStable(t *testing.T) {
	opps := sampleList()
	SortByRelevance(opps)
	// Both 82-scored records keep their source order.
	var tied []string
	for _, opp := range opps {
		if opp.RelevanceScore == 82 {
			tied = append(tied, opp.Title)
		}
	}
	if len(tied) != 2 || tied[0] != "STEM Research Grant" || tied[1] != "Merit Scholarship" {
		t.Errorf("tied records reordered: %v", tied)
	}
}
