package ingest

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unifinance/funding-radar/internal/models"
)

const defaultSourceTimeout = 20 * time.Second

// Acquirer runs every configured source concurrently and merges the results
// into one deduplicated list. A cycle never fails outright: failed sources
// contribute nothing, and a cycle where everything fails falls back to the
// curated set, so callers always get something to show.
type Acquirer struct {
	Sources []SourceOp

	// SourceTimeout bounds each individual source operation.
	SourceTimeout time.Duration

	now func() time.Time
}

func NewAcquirer(sources []SourceOp) *Acquirer {
	return &Acquirer{
		Sources:       sources,
		SourceTimeout: defaultSourceTimeout,
		now:           time.Now,
	}
}

// BuildSources turns registry configuration into source operations,
// preserving declaration order.
func BuildSources(reg *Registry, gen TextGenerator) []SourceOp {
	var sources []SourceOp
	for _, cfg := range reg.Sources {
		switch cfg.Kind {
		case "generate":
			if gen == nil {
				log.Printf("[acquire] source %s skipped: no generator configured", cfg.ID)
				continue
			}
			sources = append(sources, NewGenerationSource(gen, cfg.Name, cfg.CandidateCount))
		case "scrape":
			sources = append(sources, NewScrapeSource(cfg))
		default:
			log.Printf("[acquire] source %s skipped: unknown kind %q", cfg.ID, cfg.Kind)
		}
	}
	return sources
}

// Run executes one acquisition cycle.
func (a *Acquirer) Run(ctx context.Context, profile *models.UserProfile, prefs *models.FundingPreferences) []models.Opportunity {
	start := a.clock()()
	results := make([][]models.Opportunity, len(a.Sources))

	var wg sync.WaitGroup
	for i, src := range a.Sources {
		wg.Add(1)
		go func(i int, src SourceOp) {
			defer wg.Done()

			sctx, cancel := context.WithTimeout(ctx, a.timeout())
			defer cancel()

			opps, err := src.Acquire(sctx, profile, prefs)
			if err != nil {
				log.Printf("[acquire] source %s failed: %v", src.Name(), err)
				return
			}
			results[i] = opps
		}(i, src)
	}
	wg.Wait()

	// Merge in declaration order so dedup keeps the earliest source's record.
	var merged []models.Opportunity
	for _, opps := range results {
		merged = append(merged, opps...)
	}
	merged = dedupeByTitle(merged)

	// Records are minted fresh each cycle; IDs are only unique within one.
	for i := range merged {
		if merged[i].ID == uuid.Nil {
			merged[i].ID = uuid.New()
		}
	}

	if len(merged) == 0 {
		log.Printf("[acquire] no sources produced records, using curated fallback")
		merged = CuratedFallback(a.clock()())
	}

	log.Printf("[acquire] cycle complete: %d opportunities from %d sources in %s",
		len(merged), len(a.Sources), time.Since(start).Round(time.Millisecond))
	return merged
}

func (a *Acquirer) timeout() time.Duration {
	if a.SourceTimeout > 0 {
		return a.SourceTimeout
	}
	return defaultSourceTimeout
}

func (a *Acquirer) clock() func() time.Time {
	if a.now != nil {
		return a.now
	}
	return time.Now
}

// dedupeByTitle drops later records whose exact title already appeared.
func dedupeByTitle(opps []models.Opportunity) []models.Opportunity {
	seen := make(map[string]bool, len(opps))
	out := opps[:0]
	for _, opp := range opps {
		if seen[opp.Title] {
			continue
		}
		seen[opp.Title] = true
		out = append(out, opp)
	}
	return out
}
