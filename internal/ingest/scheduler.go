package ingest

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unifinance/funding-radar/internal/models"
)

// SnapshotStore persists the last published opportunity list across
// restarts. Implementations may fail freely; snapshot errors never affect
// the in-memory result.
type SnapshotStore interface {
	LoadOpportunities(ctx context.Context) ([]models.Opportunity, time.Time, error)
	SaveOpportunities(ctx context.Context, opps []models.Opportunity, at time.Time) error
}

// RefreshScheduler owns the published opportunity list. It refreshes on a
// fixed schedule and on demand, and resolves overlapping cycles by start
// order: each cycle takes a sequence number when it begins, and only the
// most recently started cycle is allowed to publish, no matter which one
// finishes first.
type RefreshScheduler struct {
	Acquirer *Acquirer
	Snapshot SnapshotStore

	// Schedule is a cron spec, default "@every 30s".
	Schedule string

	// CycleTimeout bounds one whole acquisition cycle.
	CycleTimeout time.Duration

	cron *cron.Cron
	seq  atomic.Uint64

	mu          sync.RWMutex
	current     []models.Opportunity
	lastUpdated time.Time

	// snapMu serializes snapshot writes so a slow older cycle can never
	// land its snapshot after a newer cycle's.
	snapMu sync.Mutex
}

func NewRefreshScheduler(acq *Acquirer, snapshot SnapshotStore) *RefreshScheduler {
	return &RefreshScheduler{
		Acquirer:     acq,
		Snapshot:     snapshot,
		Schedule:     "@every 30s",
		CycleTimeout: 60 * time.Second,
	}
}

// Start preloads the last snapshot and begins the periodic refresh. The
// first cycle runs immediately so a cold start doesn't wait a full period.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	if s.Snapshot != nil {
		opps, at, err := s.Snapshot.LoadOpportunities(ctx)
		if err != nil {
			log.Printf("[refresh] snapshot preload failed: %v", err)
		} else if len(opps) > 0 {
			s.mu.Lock()
			s.current = opps
			s.lastUpdated = at
			s.mu.Unlock()
			log.Printf("[refresh] preloaded %d opportunities from snapshot (as of %s)", len(opps), at.Format(time.RFC3339))
		}
	}

	go s.Refresh(ctx, nil, nil)

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.Schedule, func() {
		s.Refresh(ctx, nil, nil)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[refresh] scheduled %q", s.Schedule)
	return nil
}

// Stop halts the periodic refresh. Cycles already running finish on their
// own and may still publish.
func (s *RefreshScheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Refresh runs one acquisition cycle and publishes the result, unless a
// newer cycle started while this one was running. Returns the list this
// cycle produced regardless of whether it was published.
func (s *RefreshScheduler) Refresh(ctx context.Context, profile *models.UserProfile, prefs *models.FundingPreferences) []models.Opportunity {
	seq := s.seq.Add(1)

	cctx, cancel := context.WithTimeout(ctx, s.CycleTimeout)
	defer cancel()

	opps := s.Acquirer.Run(cctx, profile, prefs)
	now := time.Now()

	// A cancelled or timed-out cycle yields the curated fallback (every
	// source fails under a dead context); publishing that would overwrite
	// a perfectly good list.
	if err := cctx.Err(); err != nil {
		log.Printf("[refresh] cycle %d aborted, result discarded: %v", seq, err)
		return opps
	}

	s.mu.Lock()
	if seq != s.seq.Load() {
		s.mu.Unlock()
		log.Printf("[refresh] cycle %d superseded, result discarded", seq)
		return opps
	}
	s.current = opps
	s.lastUpdated = now
	s.mu.Unlock()

	if s.Snapshot != nil {
		s.saveSnapshot(ctx, seq, opps, now)
	}
	return opps
}

// saveSnapshot re-checks the cycle sequence under the write lock: either a
// newer cycle has already started (skip the write) or it hasn't, in which
// case its own write is queued behind this one and lands last.
func (s *RefreshScheduler) saveSnapshot(ctx context.Context, seq uint64, opps []models.Opportunity, at time.Time) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	if seq != s.seq.Load() {
		log.Printf("[refresh] cycle %d superseded, snapshot write skipped", seq)
		return
	}
	if err := s.Snapshot.SaveOpportunities(ctx, opps, at); err != nil {
		log.Printf("[refresh] snapshot save failed: %v", err)
	}
}

// Current returns the published list and when it was last updated. The
// returned slice must not be mutated by callers.
func (s *RefreshScheduler) Current() ([]models.Opportunity, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.lastUpdated
}
