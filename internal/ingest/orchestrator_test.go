package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unifinance/funding-radar/internal/models"
)

// stubSource is a canned SourceOp for orchestrator tests.
type stubSource struct {
	name  string
	opps  []models.Opportunity
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Acquire(ctx context.Context, _ *models.UserProfile, _ *models.FundingPreferences) ([]models.Opportunity, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.opps, s.err
}

func opp(title string, score int) models.Opportunity {
	return models.Opportunity{Title: title, Type: models.TypeScholarship, RelevanceScore: score}
}

func TestRunMergesInDeclarationOrder(t *testing.T) {
	acq := NewAcquirer([]SourceOp{
		&stubSource{name: "first", opps: []models.Opportunity{opp("Alpha Award", 90)}, delay: 50 * time.Millisecond},
		&stubSource{name: "second", opps: []models.Opportunity{opp("Beta Bursary", 80)}},
	})

	got := acq.Run(context.Background(), nil, nil)
	if len(got) != 2 {
		t.Fatalf("got %d opportunities, want 2", len(got))
	}
	// The slower first source still comes first in the merged list.
	if got[0].Title != "Alpha Award" || got[1].Title != "Beta Bursary" {
		t.Errorf("merge order wrong: %q then %q", got[0].Title, got[1].Title)
	}
}

func TestRunDedupesByTitleEarliestWins(t *testing.T) {
	acq := NewAcquirer([]SourceOp{
		&stubSource{name: "first", opps: []models.Opportunity{opp("Shared Title Award", 90)}},
		&stubSource{name: "second", opps: []models.Opportunity{opp("Shared Title Award", 40), opp("Unique Bursary", 70)}},
	})

	got := acq.Run(context.Background(), nil, nil)
	if len(got) != 2 {
		t.Fatalf("got %d opportunities, want 2 after dedup", len(got))
	}

	seen := map[string]bool{}
	for _, o := range got {
		if seen[o.Title] {
			t.Fatalf("duplicate title survived: %q", o.Title)
		}
		seen[o.Title] = true
	}
	if got[0].RelevanceScore != 90 {
		t.Errorf("dedup kept the later source's record (score %d), want the first source's 90", got[0].RelevanceScore)
	}
}

func TestRunIsolatesFailingSource(t *testing.T) {
	acq := NewAcquirer([]SourceOp{
		&stubSource{name: "broken", err: errors.New("connection refused")},
		&stubSource{name: "working", opps: []models.Opportunity{opp("Survivor Grant", 75)}},
	})

	got := acq.Run(context.Background(), nil, nil)
	if len(got) != 1 || got[0].Title != "Survivor Grant" {
		t.Fatalf("got %v, want only the working source's record", got)
	}
}

func TestRunTotalFailureFallsBackToCuratedList(t *testing.T) {
	acq := NewAcquirer([]SourceOp{
		&stubSource{name: "broken-a", err: errors.New("timeout")},
		&stubSource{name: "broken-b", err: errors.New("503")},
	})

	got := acq.Run(context.Background(), nil, nil)
	if len(got) == 0 {
		t.Fatal("total source failure must still produce the curated list")
	}
	for _, o := range got {
		if !models.ValidFundingType(o.Type) {
			t.Errorf("curated record %q has invalid type %q", o.Title, o.Type)
		}
		if o.Deadline.Before(time.Now()) {
			t.Errorf("curated record %q has a past deadline %v", o.Title, o.Deadline)
		}
	}
}

func TestRunNoSources(t *testing.T) {
	acq := NewAcquirer(nil)
	if got := acq.Run(context.Background(), nil, nil); len(got) == 0 {
		t.Fatal("empty source set must fall back to the curated list")
	}
}

func TestRunEnforcesSourceTimeout(t *testing.T) {
	acq := NewAcquirer([]SourceOp{
		&stubSource{name: "slow", delay: time.Minute, opps: []models.Opportunity{opp("Never Seen Award", 99)}},
		&stubSource{name: "fast", opps: []models.Opportunity{opp("Quick Grant", 70)}},
	})
	acq.SourceTimeout = 50 * time.Millisecond

	done := make(chan []models.Opportunity, 1)
	go func() { done <- acq.Run(context.Background(), nil, nil) }()

	select {
	case got := <-done:
		for _, o := range got {
			if o.Title == "Never Seen Award" {
				t.Error("timed-out source contributed a record")
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the source timeout")
	}
}

func TestDedupeByTitle(t *testing.T) {
	in := []models.Opportunity{opp("A Award", 1), opp("B Bursary", 2), opp("A Award", 3)}
	out := dedupeByTitle(in)
	if len(out) != 2 {
		t.Fatalf("got %d, want 2", len(out))
	}
	if out[0].RelevanceScore != 1 {
		t.Errorf("earliest record not kept: score %d", out[0].RelevanceScore)
	}
}
