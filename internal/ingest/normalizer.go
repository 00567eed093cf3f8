package ingest

import (
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/unifinance/funding-radar/internal/models"
)

const (
	titleMinLen       = 5
	titleMaxLen       = 100
	eligibilityMaxLen = 150
)

var embeddedURLRegex = regexp.MustCompile(`(?i)\bhttps?://|\bwww\.`)

var eligibilityKeywords = []string{"eligib", "criteria", "applicant"}

// typeKeywords maps title keywords to funding types, checked in order.
// "scholarship" is the default when nothing matches.
var typeKeywords = []struct {
	keyword string
	t       models.FundingType
}{
	{"bursar", models.TypeBursary},
	{"grant", models.TypeGrant},
	{"scholarship", models.TypeScholarship},
	{"prize", models.TypePrize},
	{"hardship", models.TypeHardshipFund},
	{"loan", models.TypeLoan},
}

// Normalize converts a raw fragment into a fully populated Opportunity, or
// nil when the candidate is rejected. It never panics and never errors:
// every field that cannot be derived falls back to a documented default.
// The ID is assigned by the orchestrator, not here.
func Normalize(frag RawFragment) *models.Opportunity {
	title := sanitizeText(frag.Title)
	if !validTitle(title) {
		return nil
	}

	fundingType := inferType(frag.Type, title)

	context := frag.Context
	if context == "" {
		context = frag.Eligibility
	}

	amount := sanitizeText(frag.Amount)
	if extracted := extractAmount(amount); extracted != "" {
		amount = extracted
	} else if extracted := extractAmount(context); extracted != "" {
		amount = extracted
	} else {
		amount = syntheticAmount(fundingType)
	}

	deadline, ok := parseDeadlineString(frag.Deadline)
	if !ok {
		deadline, ok = extractDeadline(context)
	}
	if !ok {
		deadline = synthesizeDeadline(time.Now())
	}

	eligibility := TruncateText(sanitizeText(frag.Eligibility), eligibilityMaxLen)
	if eligibility == "" {
		eligibility = extractEligibility(sanitizeText(context))
	}
	if eligibility == "" {
		eligibility = placeholderEligibility(frag.SourceName)
	}

	provider := sanitizeText(frag.Provider)
	if provider == "" {
		provider = placeholderProvider(frag.SourceName)
	}

	score := frag.Relevance
	if !frag.HasRelevance || score < 0 || score > 100 {
		// Placeholder ranking heuristic: a plausible sub-range, not a
		// real signal.
		score = 60 + rand.Intn(36)
	}

	isNew := rand.Intn(100) < 30
	if frag.IsNew != nil {
		isNew = *frag.IsNew
	}

	return &models.Opportunity{
		Title:          title,
		Provider:       provider,
		Amount:         amount,
		Type:           fundingType,
		Deadline:       deadline,
		Eligibility:    eligibility,
		RelevanceScore: score,
		IsNew:          isNew,
		SourceURL:      strings.TrimSpace(frag.SourceURL),
	}
}

// validTitle rejects candidates whose title is out of bounds or still
// carries structured-data artifacts from the page it was mined from.
func validTitle(title string) bool {
	if len(title) < titleMinLen || len(title) > titleMaxLen {
		return false
	}
	if strings.Contains(title, "{") || strings.Contains(title, "}") {
		return false
	}
	if strings.Contains(title, "@type") {
		return false
	}
	if embeddedURLRegex.MatchString(title) {
		return false
	}
	return true
}

// inferType resolves the funding type: an explicitly supplied valid type
// wins, otherwise keywords in the title, defaulting to scholarship.
func inferType(explicit, title string) models.FundingType {
	if t := models.FundingType(strings.ToLower(strings.TrimSpace(explicit))); models.ValidFundingType(t) {
		return t
	}

	lower := strings.ToLower(title)
	for _, tk := range typeKeywords {
		if strings.Contains(lower, tk.keyword) {
			return tk.t
		}
	}
	return models.TypeScholarship
}

// extractEligibility returns the first sentence of text mentioning an
// eligibility keyword, truncated to the display bound.
func extractEligibility(text string) string {
	if text == "" {
		return ""
	}

	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, kw := range eligibilityKeywords {
			if strings.Contains(lower, kw) {
				return TruncateText(sentence, eligibilityMaxLen)
			}
		}
	}
	return ""
}

func splitSentences(text string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '\n' || r == '!' || r == '?'
	}) {
		s := cleanText(part)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func placeholderProvider(sourceName string) string {
	if sourceName == "" {
		return "UK Funding Provider"
	}
	return sourceName
}

func placeholderEligibility(sourceName string) string {
	if sourceName == "" {
		return "See the provider's website for full eligibility criteria."
	}
	return "See " + sourceName + " for full eligibility criteria."
}
