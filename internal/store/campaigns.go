package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/adpulse/adpulse/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const campaignColumns = `id, name, channel, status, budget_cents, spend_cents,
	impressions, clicks, conversions, starts_at, ends_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Channel, &c.Status, &c.BudgetCents,
		&c.SpendCents, &c.Impressions, &c.Clicks, &c.Conversions,
		&c.StartsAt, &c.EndsAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListCampaigns returns all campaigns, newest first.
func (s *Store) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaign ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCampaign returns one campaign or ErrNotFound.
func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (models.Campaign, error) {
	c, err := scanCampaign(s.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaign WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Campaign{}, ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// CreateCampaign inserts a campaign and returns the stored row.
func (s *Store) CreateCampaign(ctx context.Context, name, channel string, status models.CampaignStatus, budgetCents int64) (models.Campaign, error) {
	if status == "" {
		status = models.CampaignDraft
	}
	c, err := scanCampaign(s.db.QueryRowContext(ctx,
		`INSERT INTO campaign (name, channel, status, budget_cents)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+campaignColumns, name, channel, status, budgetCents))
	if err != nil {
		return models.Campaign{}, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

// UpdateCampaign updates the writable fields and returns the stored row.
func (s *Store) UpdateCampaign(ctx context.Context, id uuid.UUID, name, channel string, status models.CampaignStatus, budgetCents int64) (models.Campaign, error) {
	c, err := scanCampaign(s.db.QueryRowContext(ctx,
		`UPDATE campaign
		 SET name = $2, channel = $3, status = $4, budget_cents = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+campaignColumns, id, name, channel, status, budgetCents))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Campaign{}, ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, fmt.Errorf("update campaign: %w", err)
	}
	return c, nil
}

// DeleteCampaign removes one campaign.
func (s *Store) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM campaign WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordCampaignMetrics folds a metrics delta into the campaign counters and
// returns the updated row.
func (s *Store) RecordCampaignMetrics(ctx context.Context, id uuid.UUID, impressions, clicks, conversions, spendCents int64) (models.Campaign, error) {
	c, err := scanCampaign(s.db.QueryRowContext(ctx,
		`UPDATE campaign
		 SET impressions = impressions + $2,
		     clicks = clicks + $3,
		     conversions = conversions + $4,
		     spend_cents = spend_cents + $5,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+campaignColumns, id, impressions, clicks, conversions, spendCents))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Campaign{}, ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, fmt.Errorf("record campaign metrics: %w", err)
	}
	return c, nil
}
