package ingest

import (
	"math/rand"
	"regexp"

	"github.com/unifinance/funding-radar/internal/models"
)

// Currency symbol + digit groups with optional thousands separators and up
// to two decimal places, e.g. £3,000 / £9,250.50 / $5000.
var amountRegex = regexp.MustCompile(`[£$€]\s?\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?`)

// syntheticAmounts is the fixed palette of plausible values per funding
// type, used when no amount could be extracted from the source text.
var syntheticAmounts = map[models.FundingType][]string{
	models.TypeScholarship:  {"£1,000", "£2,500", "£3,000", "£5,000"},
	models.TypeBursary:      {"£500", "£1,000", "£1,500", "£2,000"},
	models.TypeGrant:        {"£2,000", "£2,750", "£5,000"},
	models.TypePrize:        {"£250", "£500", "£1,000"},
	models.TypeHardshipFund: {"£300", "£500", "£750"},
	models.TypeLoan:         {"£3,000", "£5,000", "£9,250"},
}

// extractAmount finds the first currency-formatted amount in text, or ""
// when none is present.
func extractAmount(text string) string {
	return amountRegex.FindString(text)
}

// syntheticAmount picks a plausible amount for the given funding type.
func syntheticAmount(t models.FundingType) string {
	palette, ok := syntheticAmounts[t]
	if !ok || len(palette) == 0 {
		return models.AmountUnknown
	}
	return palette[rand.Intn(len(palette))]
}
