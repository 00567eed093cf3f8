package ingest

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"
)

// Long-form date: "15 January 2026" or "15th January 2026".
var longDateRegex = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+(20\d{2})\b`)

// Numeric date: DD/MM/YYYY or DD-MM-YYYY (UK day-first convention).
var numericDateRegex = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](20\d{2})\b`)

// The months UK academic funding deadlines typically cluster around; used
// when no deadline could be extracted from source text.
var synthDeadlineMonths = []time.Month{time.January, time.March, time.June}

// extractDeadline mines text for a deadline date. The bool reports whether
// a parseable date was found.
func extractDeadline(text string) (time.Time, bool) {
	if m := longDateRegex.FindStringSubmatch(text); len(m) == 4 {
		dateStr := fmt.Sprintf("%s %s %s", m[1], m[2], m[3])
		if t, err := time.Parse("2 January 2006", dateStr); err == nil {
			return t, true
		}
	}

	if m := numericDateRegex.FindStringSubmatch(text); len(m) == 4 {
		dateStr := fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])
		if t, err := time.Parse("2/1/2006", dateStr); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// parseDeadlineString parses a deadline supplied as structured data (from a
// generation response), accepting ISO and the common UK textual forms.
func parseDeadlineString(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2 January 2006", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return extractDeadline(s)
}

// synthesizeDeadline picks a plausible deadline in the next academic-year
// cycle: the 15th of January, March or June of next year.
func synthesizeDeadline(now time.Time) time.Time {
	month := synthDeadlineMonths[rand.Intn(len(synthDeadlineMonths))]
	return time.Date(now.Year()+1, month, 15, 0, 0, 0, 0, time.UTC)
}
