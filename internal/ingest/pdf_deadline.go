package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	rpdf "rsc.io/pdf"
)

var guidanceAnchorRegex = regexp.MustCompile(`(?i)(guidance|guidelines|prospectus|application pack|how to apply|deadlines|key dates)`)

// CollectGuidancePDFLinks finds links on a page that look like guidance or
// application-pack PDFs, which often carry the deadline the page omits.
func CollectGuidancePDFLinks(baseURL, htmlBody string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	base, _ := url.Parse(baseURL)
	seen := map[string]bool{}
	var out []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		hrefLower := strings.ToLower(strings.TrimSpace(href))
		anchorText := strings.ToLower(strings.TrimSpace(sel.Text()))
		if !strings.Contains(hrefLower, ".pdf") && !guidanceAnchorRegex.MatchString(anchorText) {
			return
		}

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := href
		if base != nil {
			abs = base.ResolveReference(ref).String()
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	})

	return out
}

// ExtractDeadlineFromPDF fetches a guidance PDF and mines its text for a
// deadline date.
func ExtractDeadlineFromPDF(ctx context.Context, fetcher Fetcher, pdfURL string) (time.Time, error) {
	doc, err := fetcher.Fetch(ctx, pdfURL)
	if err != nil {
		return time.Time{}, err
	}
	defer doc.Body.Close()

	content, err := io.ReadAll(doc.Body)
	if err != nil {
		return time.Time{}, fmt.Errorf("pdf read failed: %w", err)
	}

	text, err := extractPDFText(content)
	if err != nil {
		return time.Time{}, fmt.Errorf("pdf text extraction failed: %w", err)
	}

	if dt, ok := extractDeadline(text); ok {
		return dt, nil
	}
	return time.Time{}, fmt.Errorf("no deadline found in %s", pdfURL)
}

func extractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}

	return builder.String(), nil
}
