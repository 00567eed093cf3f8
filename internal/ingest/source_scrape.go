package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/unifinance/funding-radar/internal/models"
)

// ScrapeSource mines opportunity fragments from a provider's listing page,
// optionally following detail pages and linked guidance PDFs for deadlines.
type ScrapeSource struct {
	Config  SourceConfig
	Fetcher Fetcher

	// Crawler is used for detail-link discovery when follow_detail is set.
	Crawler *CollyFetcher
}

// NewScrapeSource builds a scrape source from registry configuration. A
// configured proxy relay wraps the fetcher so browser-style CORS relays
// keep working server-side without code changes.
func NewScrapeSource(cfg SourceConfig) *ScrapeSource {
	timeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	var fetcher Fetcher = NewHTTPFetcher(timeout)
	if cfg.Fetch.ProxyRelay != "" {
		fetcher = NewProxyFetcher(cfg.Fetch.ProxyRelay, fetcher)
	}

	s := &ScrapeSource{Config: cfg, Fetcher: fetcher}
	if cfg.Fetch.FollowDetail {
		s.Crawler = NewCollyFetcher()
	}
	return s
}

func (s *ScrapeSource) Name() string { return s.Config.Name }

func (s *ScrapeSource) Acquire(ctx context.Context, _ *models.UserProfile, _ *models.FundingPreferences) ([]models.Opportunity, error) {
	pages := []string{s.Config.URL}

	if s.Crawler != nil {
		links, err := s.Crawler.CollectDetailLinks(ctx, s.Config.URL, s.Config.Fetch.MaxDetailPages)
		if err != nil {
			log.Printf("[%s] detail link discovery failed: %v", s.Name(), err)
		} else {
			pages = append(pages, links...)
		}
	}

	var opportunities []models.Opportunity
	var firstErr error

	for _, page := range pages {
		opps, err := s.scrapePage(ctx, page)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			log.Printf("[%s] page %s failed: %v", s.Name(), page, err)
			continue
		}
		opportunities = append(opportunities, opps...)
	}

	if len(opportunities) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return opportunities, nil
}

func (s *ScrapeSource) scrapePage(ctx context.Context, pageURL string) ([]models.Opportunity, error) {
	doc, err := s.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer doc.Body.Close()

	body, err := io.ReadAll(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	html := string(body)

	fragments := ExtractCandidates(html, doc.URL, s.Name())

	// A guidance PDF linked off the page often carries the real deadline
	// when the HTML omits it.
	pdfDeadline := s.deadlineFromGuidance(ctx, doc.URL, html)

	var opportunities []models.Opportunity
	for _, frag := range fragments {
		if frag.Provider == "" {
			frag.Provider = s.Config.Provider
		}
		opp := Normalize(frag)
		if opp == nil {
			continue
		}
		if frag.Deadline == "" && !pdfDeadline.IsZero() {
			if _, found := extractDeadline(frag.Context); !found {
				opp.Deadline = pdfDeadline
			}
		}
		opportunities = append(opportunities, *opp)
	}

	log.Printf("[%s] %d/%d fragments survived from %s", s.Name(), len(opportunities), len(fragments), pageURL)
	return opportunities, nil
}

func (s *ScrapeSource) deadlineFromGuidance(ctx context.Context, baseURL, html string) time.Time {
	links := CollectGuidancePDFLinks(baseURL, html)
	for _, link := range links {
		deadline, err := ExtractDeadlineFromPDF(ctx, s.Fetcher, link)
		if err != nil {
			log.Printf("[%s] guidance PDF %s: %v", s.Name(), link, err)
			continue
		}
		return deadline
	}
	return time.Time{}
}
