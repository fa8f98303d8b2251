package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adpulse/adpulse/internal/models"
)

const segmentColumns = `id, name, description, member_count, created_at, updated_at`

func scanSegment(row interface{ Scan(...any) error }) (models.Segment, error) {
	var s models.Segment
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.MemberCount, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// ListSegments returns all segments alphabetically.
func (s *Store) ListSegments(ctx context.Context) ([]models.Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segment ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// GetSegment returns one segment or ErrNotFound.
func (s *Store) GetSegment(ctx context.Context, id uuid.UUID) (models.Segment, error) {
	seg, err := scanSegment(s.db.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segment WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Segment{}, ErrNotFound
	}
	if err != nil {
		return models.Segment{}, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

// CreateSegment inserts a segment and returns the stored row.
func (s *Store) CreateSegment(ctx context.Context, name string, description *string) (models.Segment, error) {
	seg, err := scanSegment(s.db.QueryRowContext(ctx,
		`INSERT INTO segment (name, description) VALUES ($1, $2)
		 RETURNING `+segmentColumns, name, description))
	if err != nil {
		return models.Segment{}, fmt.Errorf("create segment: %w", err)
	}
	return seg, nil
}

// UpdateSegment updates the writable fields and returns the stored row.
func (s *Store) UpdateSegment(ctx context.Context, id uuid.UUID, name string, description *string) (models.Segment, error) {
	seg, err := scanSegment(s.db.QueryRowContext(ctx,
		`UPDATE segment SET name = $2, description = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+segmentColumns, id, name, description))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Segment{}, ErrNotFound
	}
	if err != nil {
		return models.Segment{}, fmt.Errorf("update segment: %w", err)
	}
	return seg, nil
}

// DeleteSegment removes one segment.
func (s *Store) DeleteSegment(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM segment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
