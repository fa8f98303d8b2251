package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpulse/adpulse/internal/models"
)

func withMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, nil), mock
}

func campaignRows(ids ...uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "name", "channel", "status", "budget_cents", "spend_cents",
		"impressions", "clicks", "conversions", "starts_at", "ends_at",
		"created_at", "updated_at",
	})
	for i, id := range ids {
		rows.AddRow(id, "Campaign", "email", "active", int64(100000), int64(2500),
			int64(1000+i), int64(50), int64(5), nil, nil, now, now)
	}
	return rows
}

func TestListCampaigns(t *testing.T) {
	s, mock := withMockStore(t)

	mock.ExpectQuery("SELECT\\s+id, name, channel").
		WillReturnRows(campaignRows(uuid.New(), uuid.New()))

	campaigns, err := s.ListCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	assert.Equal(t, models.CampaignActive, campaigns[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCampaignNotFound(t *testing.T) {
	s, mock := withMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT\\s+id, name, channel").
		WithArgs(id).
		WillReturnRows(campaignRows())

	_, err := s.GetCampaign(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCampaignDefaultsToDraft(t *testing.T) {
	s, mock := withMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO campaign").
		WithArgs("Spring Launch", "email", models.CampaignDraft, int64(100000)).
		WillReturnRows(campaignRows(id))

	created, err := s.CreateCampaign(context.Background(), "Spring Launch", "email", "", 100000)
	require.NoError(t, err)
	assert.Equal(t, id, created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCampaignNotFound(t *testing.T) {
	s, mock := withMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE campaign").
		WithArgs(id, "Renamed", "email", models.CampaignPaused, int64(5000)).
		WillReturnRows(campaignRows())

	_, err := s.UpdateCampaign(context.Background(), id, "Renamed", "email", models.CampaignPaused, 5000)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCampaign(t *testing.T) {
	s, mock := withMockStore(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM campaign").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.DeleteCampaign(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCampaignNotFound(t *testing.T) {
	s, mock := withMockStore(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM campaign").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteCampaign(context.Background(), id), ErrNotFound)
}

func TestRecordCampaignMetricsAddsDeltas(t *testing.T) {
	s, mock := withMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE campaign").
		WithArgs(id, int64(100), int64(10), int64(1), int64(250)).
		WillReturnRows(campaignRows(id))

	updated, err := s.RecordCampaignMetrics(context.Background(), id, 100, 10, 1, 250)
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSegment(t *testing.T) {
	s, mock := withMockStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO segment").
		WithArgs("VIP", nil).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "member_count", "created_at", "updated_at",
		}).AddRow(id, "VIP", nil, int64(0), now, now))

	seg, err := s.CreateSegment(context.Background(), "VIP", nil)
	require.NoError(t, err)
	assert.Equal(t, "VIP", seg.Name)
	assert.Nil(t, seg.Description)
}

func TestUnreadNotificationCount(t *testing.T) {
	s, mock := withMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM notification").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := s.UnreadNotificationCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	s, mock := withMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE notification SET read").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.MarkNotificationRead(context.Background(), id), ErrNotFound)
}

func TestNotifyPublishesJSONPayload(t *testing.T) {
	s, mock := withMockStore(t)

	mock.ExpectExec("SELECT pg_notify").
		WithArgs("adpulse_events", `{"event":"campaign_updated"}`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Notify(context.Background(), "adpulse_events",
		map[string]string{"event": "campaign_updated"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListNotificationsAppliesDefaultLimit(t *testing.T) {
	s, mock := withMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT\\s+id, kind, title").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "title", "body", "read", "created_at",
		}).AddRow(uuid.New(), "info", "Budget alert", "", false, now))

	notifications, err := s.ListNotifications(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.False(t, notifications[0].Read)
}
