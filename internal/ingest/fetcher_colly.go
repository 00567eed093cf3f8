package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher fetches pages through a colly collector, giving us polite
// per-domain delays and charset detection for provider sites we crawl
// directly (listing page plus detail pages).
type CollyFetcher struct {
	UserAgent      string
	RequestTimeout time.Duration
	DomainDelay    time.Duration
	MaxBodySize    int
}

func NewCollyFetcher() *CollyFetcher {
	return &CollyFetcher{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		RequestTimeout: 15 * time.Second,
		DomainDelay:    time.Second,
		MaxBodySize:    10 * 1024 * 1024,
	}
}

func (f *CollyFetcher) collector(host string) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowedDomains(host),
		colly.AllowURLRevisit(),
		colly.DetectCharset(),
	)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       f.DomainDelay,
	})
	c.SetRequestTimeout(f.RequestTimeout)
	return c
}

// Fetch implements the Fetcher interface.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*FetchedDocument, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	c := f.collector(parsed.Host)

	var body []byte
	var contentType string
	var statusCode int
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		statusCode = r.StatusCode
		contentType = r.Headers.Get("Content-Type")
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(targetURL); err != nil {
		return nil, fmt.Errorf("visit failed: %w", err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch failed: %w", fetchErr)
	}
	if statusCode != 200 {
		return nil, fmt.Errorf("unexpected status code: %d", statusCode)
	}

	return &FetchedDocument{
		URL:         targetURL,
		StatusCode:  statusCode,
		ContentType: contentType,
		Body:        io.NopCloser(bytes.NewReader(body)),
		FetchedAt:   time.Now(),
	}, nil
}

// CollectDetailLinks visits a listing page and returns absolute links that
// look like opportunity detail pages, capped at max.
func (f *CollyFetcher) CollectDetailLinks(ctx context.Context, listingURL string, max int) ([]string, error) {
	parsed, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if max <= 0 {
		max = 6
	}

	c := f.collector(parsed.Host)

	seen := map[string]bool{}
	var links []string
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(links) >= max {
			return
		}
		href := strings.ToLower(e.Attr("href"))
		text := strings.ToLower(strings.TrimSpace(e.Text))
		likely := strings.Contains(href, "scholarship") || strings.Contains(href, "bursar") ||
			strings.Contains(href, "grant") || strings.Contains(href, "funding") ||
			strings.Contains(text, "scholarship") || strings.Contains(text, "bursary")
		if !likely {
			return
		}
		abs := e.Request.AbsoluteURL(e.Attr("href"))
		if abs == "" || abs == listingURL || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})

	if err := c.Visit(listingURL); err != nil {
		return nil, fmt.Errorf("visit failed: %w", err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Printf("[colly] %d detail links collected from %s", len(links), listingURL)
	return links, nil
}
