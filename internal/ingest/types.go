package ingest

import (
	"context"
	"io"
	"time"

	"github.com/unifinance/funding-radar/internal/models"
)

// RawFragment is an untrusted candidate opportunity mined from a source:
// either a scraped HTML region or one element of a generated JSON list.
// Every field may be empty or garbage; the normalizer decides what survives.
type RawFragment struct {
	Title       string
	Provider    string
	Amount      string
	Type        string
	Deadline    string
	Eligibility string
	SourceURL   string

	// Context is a window of surrounding text used for amount/deadline/
	// eligibility mining when the direct fields are empty.
	Context string

	// Relevance and IsNew are only meaningful when the source supplied
	// them (generation sources do, scraped pages don't).
	Relevance    int
	HasRelevance bool
	IsNew        *bool

	// SourceName labels the contributing source for placeholder defaults.
	SourceName string
}

// FetchedDocument is the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// SourceOp is one independent acquisition operation. Implementations must
// contain their own failures: an error return is logged and the source
// simply contributes nothing to the cycle.
type SourceOp interface {
	Name() string
	Acquire(ctx context.Context, profile *models.UserProfile, prefs *models.FundingPreferences) ([]models.Opportunity, error)
}
