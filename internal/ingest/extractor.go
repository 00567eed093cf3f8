package ingest

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxCandidatesPerPage = 20
	contextWindow        = 400
)

var fundingKeywords = []string{"scholarship", "bursar", "grant", "prize", "hardship", "loan", "fund", "award"}

// ExtractCandidates mines an HTML page for raw opportunity fragments. It is
// a best-effort heuristic: headings and links mentioning funding keywords
// become candidate titles, with the enclosing block's text as context for
// amount/deadline/eligibility mining. It never fails; an unparseable page
// simply yields nothing.
func ExtractCandidates(html, baseURL, sourceName string) []RawFragment {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	base, _ := url.Parse(baseURL)
	seen := map[string]bool{}
	var fragments []RawFragment

	doc.Find("h1, h2, h3, h4, a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(fragments) >= maxCandidatesPerPage {
			return false
		}

		title := cleanText(sel.Text())
		if title == "" || !mentionsFunding(title) {
			return true
		}

		key := strings.ToLower(title)
		if seen[key] {
			return true
		}
		seen[key] = true

		fragments = append(fragments, RawFragment{
			Title:      title,
			Context:    contextFor(sel),
			SourceURL:  candidateLink(sel, base),
			SourceName: sourceName,
		})
		return true
	})

	return fragments
}

func mentionsFunding(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range fundingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// contextFor returns a bounded window of text around the candidate: the
// nearest enclosing block that carries more than the title itself.
func contextFor(sel *goquery.Selection) string {
	for parent := sel.Parent(); parent.Length() > 0; parent = parent.Parent() {
		text := cleanText(parent.Text())
		if len(text) > len(cleanText(sel.Text()))+40 {
			return TruncateText(text, contextWindow)
		}
	}
	return ""
}

// candidateLink resolves the candidate's own href, or the first child
// anchor's, against the page URL.
func candidateLink(sel *goquery.Selection, base *url.URL) string {
	href, ok := sel.Attr("href")
	if !ok {
		href, ok = sel.Find("a[href]").First().Attr("href")
	}
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
