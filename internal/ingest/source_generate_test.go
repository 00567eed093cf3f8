package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/unifinance/funding-radar/internal/ai"
	"github.com/unifinance/funding-radar/internal/models"
)

// stubGenerator returns a canned generation result.
type stubGenerator struct {
	text     string
	fallback bool
	prompt   string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (*ai.GenerateResult, error) {
	g.prompt = prompt
	return &ai.GenerateResult{Success: !g.fallback, Text: g.text, Fallback: g.fallback}, nil
}

const generatedArray = `Here are some opportunities for you:

` + "```json" + `
[
  {"title": "Quantum Computing Scholarship", "provider": "Institute of Physics", "amount": "£4,000", "type": "scholarship", "deadline": "2027-01-15", "eligibility": "Physics undergraduates in their second year", "relevanceScore": 91, "isNew": true, "sourceUrl": "https://iop.example/quantum"},
  {"title": "First Generation Bursary", "provider": "University of Leeds", "amount": "£1,200", "type": "bursary", "deadline": "2027-03-01", "eligibility": "First in family to attend university", "relevanceScore": 84, "isNew": false, "sourceUrl": ""}
]
` + "```"

func TestGenerationSourceParsesModelOutput(t *testing.T) {
	gen := &stubGenerator{text: generatedArray}
	src := NewGenerationSource(gen, "AI Personalized Search", 15)

	got, err := src.Acquire(context.Background(), &models.UserProfile{
		EducationLevel: "undergraduate",
		FieldOfStudy:   "Physics",
		Institution:    "University of Leeds",
	}, &models.FundingPreferences{
		DesiredTypes: []models.FundingType{models.TypeScholarship, models.TypeBursary},
		MinAmount:    1000,
	})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d opportunities, want 2", len(got))
	}
	if got[0].Title != "Quantum Computing Scholarship" || got[0].Type != models.TypeScholarship {
		t.Errorf("first record = %+v", got[0])
	}
	if got[0].RelevanceScore != 91 {
		t.Errorf("supplied relevance replaced: %d", got[0].RelevanceScore)
	}
	if !got[0].IsNew || got[1].IsNew {
		t.Error("isNew flags not carried through")
	}

	for _, want := range []string{"undergraduate", "Physics", "University of Leeds", "scholarship, bursary", "£1000"} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(gen.prompt, "15 current UK student funding opportunities") {
		t.Errorf("prompt does not request 15 candidates:\n%s", gen.prompt)
	}
}

func TestGenerationSourceRejectsFallbackText(t *testing.T) {
	gen := &stubGenerator{fallback: true, text: "I apologize, but I'm currently experiencing connectivity issues."}
	src := NewGenerationSource(gen, "AI Personalized Search", 15)

	if _, err := src.Acquire(context.Background(), nil, nil); err == nil {
		t.Fatal("fallback prose must not be parsed as opportunities")
	}
}

func TestGenerationSourceInvalidCandidatesDropped(t *testing.T) {
	gen := &stubGenerator{text: `[
		{"title": "ok", "type": "grant"},
		{"title": "A Perfectly Valid Grant Title", "type": "grant"}
	]`}
	src := NewGenerationSource(gen, "AI Personalized Search", 15)

	got, err := src.Acquire(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d opportunities, want 1 (short title rejected)", len(got))
	}
}

func TestExtractFirstJSONArray(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare array", `[1, 2]`, `[1, 2]`, true},
		{"prose around", `sure! [1, 2] hope that helps`, `[1, 2]`, true},
		{"nested arrays", `[[1], [2]]`, `[[1], [2]]`, true},
		{"bracket inside string", `[{"t": "a ] b"}]`, `[{"t": "a ] b"}]`, true},
		{"escaped quote inside string", `[{"t": "a \" ] b"}]`, `[{"t": "a \" ] b"}]`, true},
		{"unbalanced", `[1, 2`, "", false},
		{"no array", `nothing here`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractFirstJSONArray(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
