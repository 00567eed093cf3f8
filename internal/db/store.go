package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/unifinance/funding-radar/internal/models"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SavedOpportunity is an opportunity a user pinned, persisted across
// acquisition cycles (the live list itself is rebuilt every cycle).
type SavedOpportunity struct {
	models.Opportunity
	UserID  string    `json:"user_id"`
	SavedAt time.Time `json:"saved_at"`
}

// SaveOpportunity pins an opportunity for a user. Saving the same title
// twice refreshes the stored record in place. The embedding may be nil
// when the embedding endpoint was unavailable.
func (s *Store) SaveOpportunity(ctx context.Context, userID string, opp models.Opportunity, embedding []float32) error {
	var vec any
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		vec = v
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO saved_opportunities
			(id, user_id, title, provider, amount, funding_type, deadline, eligibility, relevance_score, source_url, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, title) DO UPDATE SET
			provider = EXCLUDED.provider,
			amount = EXCLUDED.amount,
			funding_type = EXCLUDED.funding_type,
			deadline = EXCLUDED.deadline,
			eligibility = EXCLUDED.eligibility,
			relevance_score = EXCLUDED.relevance_score,
			source_url = EXCLUDED.source_url,
			embedding = COALESCE(EXCLUDED.embedding, saved_opportunities.embedding),
			saved_at = NOW()
	`, opp.ID, userID, opp.Title, opp.Provider, opp.Amount, string(opp.Type), opp.Deadline,
		opp.Eligibility, opp.RelevanceScore, opp.SourceURL, vec)
	if err != nil {
		return fmt.Errorf("saving opportunity: %w", err)
	}
	return nil
}

// UnsaveOpportunity removes a pinned opportunity by title.
func (s *Store) UnsaveOpportunity(ctx context.Context, userID, title string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM saved_opportunities WHERE user_id = $1 AND title = $2`, userID, title)
	if err != nil {
		return fmt.Errorf("removing saved opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const savedCols = `id, user_id, title, provider, amount, funding_type, deadline,
	eligibility, relevance_score, source_url, saved_at`

func scanSaved(row pgx.Row) (SavedOpportunity, error) {
	var so SavedOpportunity
	var fundingType string
	err := row.Scan(&so.ID, &so.UserID, &so.Title, &so.Provider, &so.Amount, &fundingType,
		&so.Deadline, &so.Eligibility, &so.RelevanceScore, &so.SourceURL, &so.SavedAt)
	if err != nil {
		return so, err
	}
	so.Type = models.FundingType(fundingType)
	return so, nil
}

// ListSaved returns the user's pinned opportunities, most recent first.
func (s *Store) ListSaved(ctx context.Context, userID string) ([]SavedOpportunity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+savedCols+` FROM saved_opportunities WHERE user_id = $1 ORDER BY saved_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing saved opportunities: %w", err)
	}
	defer rows.Close()

	var saved []SavedOpportunity
	for rows.Next() {
		so, err := scanSaved(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning saved opportunity: %w", err)
		}
		saved = append(saved, so)
	}
	return saved, rows.Err()
}

// SimilarSaved returns the user's saved opportunities most similar to the
// query embedding, by cosine distance.
func (s *Store) SimilarSaved(ctx context.Context, userID string, embedding []float32, limit int) ([]SavedOpportunity, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+savedCols+`
		FROM saved_opportunities
		WHERE user_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`, userID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var saved []SavedOpportunity
	for rows.Next() {
		so, err := scanSaved(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning saved opportunity: %w", err)
		}
		saved = append(saved, so)
	}
	return saved, rows.Err()
}

// CreateApplication records a new application tracker entry.
func (s *Store) CreateApplication(ctx context.Context, app *models.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.Status == "" {
		app.Status = "planned"
	}
	if !models.ValidApplicationStatus(app.Status) {
		return fmt.Errorf("invalid application status %q", app.Status)
	}

	now := time.Now()
	app.CreatedAt = now
	app.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO applications (id, user_id, opportunity_title, provider, status, notes, deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, app.ID, app.UserID, app.OpportunityTitle, app.Provider, app.Status, app.Notes, app.Deadline, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}
	return nil
}

// UpdateApplicationStatus moves an application to a new status and
// optionally replaces its notes.
func (s *Store) UpdateApplicationStatus(ctx context.Context, userID string, id uuid.UUID, status string, notes *string) error {
	if !models.ValidApplicationStatus(status) {
		return fmt.Errorf("invalid application status %q", status)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE applications
		SET status = $1, notes = COALESCE($2, notes), updated_at = NOW()
		WHERE id = $3 AND user_id = $4
	`, status, notes, id, userID)
	if err != nil {
		return fmt.Errorf("updating application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListApplications returns the user's applications, most recent first.
func (s *Store) ListApplications(ctx context.Context, userID string) ([]models.Application, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, opportunity_title, provider, status, notes, deadline, created_at, updated_at
		FROM applications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		var app models.Application
		if err := rows.Scan(&app.ID, &app.UserID, &app.OpportunityTitle, &app.Provider,
			&app.Status, &app.Notes, &app.Deadline, &app.CreatedAt, &app.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}
