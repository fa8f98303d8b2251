package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adpulse/adpulse/internal/models"
)

const notificationColumns = `id, kind, title, body, read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.Kind, &n.Title, &n.Body, &n.Read, &n.CreatedAt)
	return n, err
}

// ListNotifications returns up to limit notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notification
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CreateNotification inserts a notification and returns the stored row.
func (s *Store) CreateNotification(ctx context.Context, kind, title, body string) (models.Notification, error) {
	n, err := scanNotification(s.db.QueryRowContext(ctx,
		`INSERT INTO notification (kind, title, body) VALUES ($1, $2, $3)
		 RETURNING `+notificationColumns, kind, title, body))
	if err != nil {
		return models.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// MarkNotificationRead flips one notification to read.
func (s *Store) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notification SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UnreadNotificationCount counts unread notifications.
func (s *Store) UnreadNotificationCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification WHERE read = FALSE`).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("unread notification count: %w", err)
	}
	return count, nil
}
