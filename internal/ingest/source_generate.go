package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/unifinance/funding-radar/internal/ai"
	"github.com/unifinance/funding-radar/internal/models"
)

// TextGenerator is the slice of the AI client the generation source needs.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (*ai.GenerateResult, error)
}

// GenerationSource asks the generative endpoint for a structured list of
// candidate opportunities tailored to the user's profile.
type GenerationSource struct {
	Gen        TextGenerator
	SourceName string
	Count      int
}

func NewGenerationSource(gen TextGenerator, name string, count int) *GenerationSource {
	if count <= 0 {
		count = 15
	}
	return &GenerationSource{Gen: gen, SourceName: name, Count: count}
}

func (s *GenerationSource) Name() string { return s.SourceName }

// generatedOpportunity is the fixed shape requested from the model. Every
// field is still untrusted and goes through the normalizer contracts.
type generatedOpportunity struct {
	Title          string `json:"title"`
	Provider       string `json:"provider"`
	Amount         string `json:"amount"`
	Type           string `json:"type"`
	Deadline       string `json:"deadline"`
	Eligibility    string `json:"eligibility"`
	RelevanceScore *int   `json:"relevanceScore"`
	IsNew          *bool  `json:"isNew"`
	SourceURL      string `json:"sourceUrl"`
}

func (s *GenerationSource) Acquire(ctx context.Context, profile *models.UserProfile, prefs *models.FundingPreferences) ([]models.Opportunity, error) {
	prompt := s.buildPrompt(profile, prefs)

	result, err := s.Gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	if result.Fallback {
		// The canned fallback carries no structured list; contribute
		// nothing and let the orchestrator's curated set cover it.
		return nil, fmt.Errorf("generation endpoint unavailable (fallback response)")
	}

	candidates, err := parseGeneratedList(result.Text)
	if err != nil {
		return nil, fmt.Errorf("parsing generated list: %w", err)
	}

	var opportunities []models.Opportunity
	for _, g := range candidates {
		frag := RawFragment{
			Title:       g.Title,
			Provider:    g.Provider,
			Amount:      g.Amount,
			Type:        g.Type,
			Deadline:    g.Deadline,
			Eligibility: g.Eligibility,
			SourceURL:   g.SourceURL,
			IsNew:       g.IsNew,
			SourceName:  s.SourceName,
		}
		if g.RelevanceScore != nil {
			frag.Relevance = *g.RelevanceScore
			frag.HasRelevance = true
		}
		if opp := Normalize(frag); opp != nil {
			opportunities = append(opportunities, *opp)
		}
	}

	log.Printf("[%s] %d/%d generated candidates survived normalization", s.SourceName, len(opportunities), len(candidates))
	return opportunities, nil
}

func (s *GenerationSource) buildPrompt(profile *models.UserProfile, prefs *models.FundingPreferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "List %d current UK student funding opportunities as a JSON array.\n\n", s.Count)

	b.WriteString("Student profile:\n")
	if profile != nil {
		if profile.EducationLevel != "" {
			fmt.Fprintf(&b, "- Education level: %s\n", profile.EducationLevel)
		}
		if profile.FieldOfStudy != "" {
			fmt.Fprintf(&b, "- Field of study: %s\n", profile.FieldOfStudy)
		}
		if profile.Institution != "" {
			fmt.Fprintf(&b, "- Institution: %s\n", profile.Institution)
		}
	} else {
		b.WriteString("- A UK university student\n")
	}
	if prefs != nil {
		if len(prefs.DesiredTypes) > 0 {
			types := make([]string, len(prefs.DesiredTypes))
			for i, t := range prefs.DesiredTypes {
				types[i] = string(t)
			}
			fmt.Fprintf(&b, "- Desired funding types: %s\n", strings.Join(types, ", "))
		}
		if len(prefs.EligibilityFactors) > 0 {
			fmt.Fprintf(&b, "- Eligibility factors: %s\n", strings.Join(prefs.EligibilityFactors, ", "))
		}
		if prefs.MinAmount > 0 {
			fmt.Fprintf(&b, "- Minimum amount of interest: £%.0f\n", prefs.MinAmount)
		}
	}

	b.WriteString(`
Each element must have exactly these fields:
- "title": the opportunity name (plain text, 5-100 characters, no URLs)
- "provider": the awarding organization
- "amount": a GBP currency string, e.g. "£2,500"
- "type": one of scholarship, bursary, grant, prize, hardship-fund, loan
- "deadline": ISO 8601 date (YYYY-MM-DD)
- "eligibility": one sentence of eligibility criteria
- "relevanceScore": integer 0-100 for fit against the profile
- "isNew": true if announced in the last month
- "sourceUrl": the opportunity's web page, or ""

Return ONLY the JSON array. No markdown blocks, no explanation. Do not invent
provider names; use real UK funders.`)

	return b.String()
}

// parseGeneratedList locates the first well-formed JSON array in the model
// text, tolerating surrounding prose and markdown fences.
func parseGeneratedList(text string) ([]generatedOpportunity, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	arrayStr, ok := extractFirstJSONArray(cleaned)
	if !ok {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var candidates []generatedOpportunity
	if err := json.Unmarshal([]byte(arrayStr), &candidates); err != nil {
		return nil, fmt.Errorf("malformed candidate array: %w", err)
	}
	return candidates, nil
}

// extractFirstJSONArray finds the first outermost balanced [...] in s.
func extractFirstJSONArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if !inString {
			if char == '[' {
				depth++
			} else if char == ']' {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
