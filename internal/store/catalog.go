package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adpulse/adpulse/internal/models"
)

const candidateColumns = `id, segment_id, full_name, email, status, score, created_at, updated_at`

// ListCandidates returns all candidates, newest first.
func (s *Store) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidate ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.SegmentID, &c.FullName, &c.Email,
			&c.Status, &c.Score, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCandidate returns one candidate or ErrNotFound.
func (s *Store) GetCandidate(ctx context.Context, id uuid.UUID) (models.Candidate, error) {
	var c models.Candidate
	err := s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidate WHERE id = $1`, id).
		Scan(&c.ID, &c.SegmentID, &c.FullName, &c.Email,
			&c.Status, &c.Score, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Candidate{}, ErrNotFound
	}
	if err != nil {
		return models.Candidate{}, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

const jobOpeningColumns = `id, title, department, location, status, created_at, updated_at`

// ListJobOpenings returns all job openings, newest first.
func (s *Store) ListJobOpenings(ctx context.Context) ([]models.JobOpening, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobOpeningColumns+` FROM job_opening ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list job openings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.JobOpening
	for rows.Next() {
		var j models.JobOpening
		if err := rows.Scan(&j.ID, &j.Title, &j.Department, &j.Location,
			&j.Status, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job opening: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// GetJobOpening returns one job opening or ErrNotFound.
func (s *Store) GetJobOpening(ctx context.Context, id uuid.UUID) (models.JobOpening, error) {
	var j models.JobOpening
	err := s.db.QueryRowContext(ctx,
		`SELECT `+jobOpeningColumns+` FROM job_opening WHERE id = $1`, id).
		Scan(&j.ID, &j.Title, &j.Department, &j.Location,
			&j.Status, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.JobOpening{}, ErrNotFound
	}
	if err != nil {
		return models.JobOpening{}, fmt.Errorf("get job opening: %w", err)
	}
	return j, nil
}
