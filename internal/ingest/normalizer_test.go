package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/unifinance/funding-radar/internal/models"
)

func TestValidTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  bool
	}{
		{"normal title", "Excellence Scholarship", true},
		{"too short", "Fund", false},
		{"exactly min length", "Award", true},
		{"too long", strings.Repeat("a", 101), false},
		{"exactly max length", strings.Repeat("a", 100), true},
		{"open brace", `{"name": "Scholarship"}`, false},
		{"close brace only", "Scholarship}", false},
		{"json-ld artifact", `@type ScholarshipPosting`, false},
		{"embedded http url", "Apply at https://example.com now", false},
		{"embedded www url", "See www.example.com for details", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validTitle(tt.title); got != tt.want {
				t.Errorf("validTitle(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		title    string
		want     models.FundingType
	}{
		{"explicit valid type wins", "loan", "Excellence Scholarship", models.TypeLoan},
		{"explicit type case-insensitive", "Grant", "Some Award", models.TypeGrant},
		{"invalid explicit falls to title", "stipend", "Access Bursary", models.TypeBursary},
		{"bursary keyword", "", "Hardworking Bursaries Scheme", models.TypeBursary},
		{"grant keyword", "", "STEM Research Grant", models.TypeGrant},
		{"prize keyword", "", "Essay Prize 2026", models.TypePrize},
		{"hardship keyword", "", "Hardship Support Fund", models.TypeHardshipFund},
		{"loan keyword", "", "Postgraduate Loan Scheme", models.TypeLoan},
		{"no keyword defaults to scholarship", "", "Women in Engineering Award", models.TypeScholarship},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferType(tt.explicit, tt.title); got != tt.want {
				t.Errorf("inferType(%q, %q) = %v, want %v", tt.explicit, tt.title, got, tt.want)
			}
		})
	}
}

func TestNormalizeRejectsInvalidTitles(t *testing.T) {
	for _, title := range []string{"", "abc", `{"raw": 1}`, "visit www.scam.example today"} {
		if opp := Normalize(RawFragment{Title: title}); opp != nil {
			t.Errorf("Normalize accepted invalid title %q", title)
		}
	}
}

func TestNormalizePopulatesEveryField(t *testing.T) {
	opp := Normalize(RawFragment{Title: "Climate Research Grant", SourceName: "Turn2us Grants Search"})
	if opp == nil {
		t.Fatal("expected an opportunity, got nil")
	}
	if opp.Type != models.TypeGrant {
		t.Errorf("Type = %v, want grant", opp.Type)
	}
	if opp.Amount == "" {
		t.Error("Amount is empty, want synthetic value")
	}
	found := false
	for _, a := range syntheticAmounts[models.TypeGrant] {
		if opp.Amount == a {
			found = true
		}
	}
	if !found {
		t.Errorf("Amount %q not from the grant palette", opp.Amount)
	}
	if opp.Deadline.IsZero() {
		t.Error("Deadline is zero, want synthesized date")
	}
	if opp.Provider != "Turn2us Grants Search" {
		t.Errorf("Provider = %q, want source name placeholder", opp.Provider)
	}
	if opp.Eligibility == "" {
		t.Error("Eligibility is empty, want placeholder")
	}
	if opp.RelevanceScore < 60 || opp.RelevanceScore > 95 {
		t.Errorf("synthetic RelevanceScore = %d, want 60..95", opp.RelevanceScore)
	}
}

func TestNormalizeKeepsSuppliedFields(t *testing.T) {
	isNew := true
	opp := Normalize(RawFragment{
		Title:        "Excellence Scholarship",
		Provider:     "University of Manchester",
		Amount:       "£3,000",
		Type:         "scholarship",
		Deadline:     "2027-06-15",
		Eligibility:  "Undergraduate students with AAA at A-level",
		Relevance:    95,
		HasRelevance: true,
		IsNew:        &isNew,
		SourceURL:    "https://example.ac.uk/scholarship",
	})
	if opp == nil {
		t.Fatal("expected an opportunity, got nil")
	}
	if opp.Amount != "£3,000" {
		t.Errorf("Amount = %q, want £3,000", opp.Amount)
	}
	if want := time.Date(2027, time.June, 15, 0, 0, 0, 0, time.UTC); !opp.Deadline.Equal(want) {
		t.Errorf("Deadline = %v, want %v", opp.Deadline, want)
	}
	if opp.RelevanceScore != 95 {
		t.Errorf("RelevanceScore = %d, want 95", opp.RelevanceScore)
	}
	if !opp.IsNew {
		t.Error("IsNew = false, want true")
	}
	if opp.Eligibility != "Undergraduate students with AAA at A-level" {
		t.Errorf("Eligibility = %q, want supplied text", opp.Eligibility)
	}
}

func TestNormalizeMinesAmountAndDeadlineFromContext(t *testing.T) {
	opp := Normalize(RawFragment{
		Title:   "Heritage Studies Bursary",
		Context: "Applicants can receive £1,500 towards living costs. Apply by 15 March 2027. Eligibility criteria: enrolled on a heritage degree.",
	})
	if opp == nil {
		t.Fatal("expected an opportunity, got nil")
	}
	if opp.Amount != "£1,500" {
		t.Errorf("Amount = %q, want £1,500", opp.Amount)
	}
	if want := time.Date(2027, time.March, 15, 0, 0, 0, 0, time.UTC); !opp.Deadline.Equal(want) {
		t.Errorf("Deadline = %v, want %v", opp.Deadline, want)
	}
	if !strings.Contains(opp.Eligibility, "enrolled on a heritage degree") {
		t.Errorf("Eligibility = %q, want the criteria sentence", opp.Eligibility)
	}
}

func TestNormalizeTruncatesLongEligibility(t *testing.T) {
	long := strings.Repeat("a", 200)
	opp := Normalize(RawFragment{Title: "Verbose Award Scheme", Eligibility: long})
	if opp == nil {
		t.Fatal("expected an opportunity, got nil")
	}
	if len(opp.Eligibility) > eligibilityMaxLen {
		t.Errorf("Eligibility length = %d, want <= %d", len(opp.Eligibility), eligibilityMaxLen)
	}
	if !strings.HasSuffix(opp.Eligibility, "...") {
		t.Errorf("Eligibility %q not marked as truncated", opp.Eligibility)
	}
}

func TestSynthesizeDeadline(t *testing.T) {
	now := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		d := synthesizeDeadline(now)
		if d.Year() != 2027 {
			t.Fatalf("Year = %d, want 2027", d.Year())
		}
		if d.Day() != 15 {
			t.Fatalf("Day = %d, want 15", d.Day())
		}
		switch d.Month() {
		case time.January, time.March, time.June:
		default:
			t.Fatalf("Month = %v, want January, March or June", d.Month())
		}
	}
}

func TestExtractDeadline(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  time.Time
		found bool
	}{
		{"long form", "Deadline: 31 January 2027.", time.Date(2027, time.January, 31, 0, 0, 0, 0, time.UTC), true},
		{"ordinal suffix", "closes on the 3rd March 2027", time.Date(2027, time.March, 3, 0, 0, 0, 0, time.UTC), true},
		{"numeric slash day-first", "Apply by 01/06/2027", time.Date(2027, time.June, 1, 0, 0, 0, 0, time.UTC), true},
		{"numeric dash", "deadline 15-03-2027", time.Date(2027, time.March, 15, 0, 0, 0, 0, time.UTC), true},
		{"no date", "rolling applications welcome", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractDeadline(tt.text)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if found && !got.Equal(tt.want) {
				t.Errorf("deadline = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"worth £2,500 per year", "£2,500"},
		{"up to £9,250.50 available", "£9,250.50"},
		{"$500 stipend", "$500"},
		{"a generous award", ""},
	}

	for _, tt := range tests {
		if got := extractAmount(tt.text); got != tt.want {
			t.Errorf("extractAmount(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
