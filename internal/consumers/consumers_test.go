package consumers

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpulse/adpulse/internal/eventhub"
)

func testHub() *eventhub.Hub {
	return eventhub.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNotificationBadgeCountsDeltas(t *testing.T) {
	hub := testHub()
	badge := NewNotificationBadge(hub, nil, nil)
	defer badge.Close()

	hub.Emit(EventNotificationCreated, json.RawMessage(`{"id":"n1"}`))
	hub.Emit(EventNotificationCreated, json.RawMessage(`{"id":"n2"}`))
	assert.Equal(t, 2, badge.Unread())

	hub.Emit(EventNotificationRead, json.RawMessage(`{"id":"n1"}`))
	assert.Equal(t, 1, badge.Unread())
}

func TestNotificationBadgeNeverGoesNegative(t *testing.T) {
	hub := testHub()
	badge := NewNotificationBadge(hub, nil, nil)
	defer badge.Close()

	hub.Emit(EventNotificationRead, json.RawMessage(`{"id":"n1"}`))
	hub.Emit(EventNotificationRead, json.RawMessage(`{"id":"n1"}`))
	assert.Equal(t, 0, badge.Unread())
}

func TestNotificationBadgeSyncOverridesLocalCount(t *testing.T) {
	hub := testHub()
	badge := NewNotificationBadge(hub, nil, nil)
	defer badge.Close()

	hub.Emit(EventNotificationCreated, json.RawMessage(`{"id":"n1"}`))
	hub.Emit(EventNotificationsSync, json.RawMessage(`{"unread_count":7}`))
	assert.Equal(t, 7, badge.Unread())

	hub.Emit(EventNotificationsSync, json.RawMessage(`{"unread_count":-3}`))
	assert.Equal(t, 0, badge.Unread())
}

func TestNotificationBadgeClearZeroes(t *testing.T) {
	hub := testHub()
	badge := NewNotificationBadge(hub, nil, nil)
	defer badge.Close()

	hub.Emit(EventNotificationsSync, json.RawMessage(`{"unread_count":4}`))
	hub.Emit(EventNotificationsClear, nil)
	assert.Equal(t, 0, badge.Unread())
}

func TestNotificationBadgeOnChangeFiresOnRealChangesOnly(t *testing.T) {
	hub := testHub()
	var changes []int
	badge := NewNotificationBadge(hub, nil, func(unread int) {
		changes = append(changes, unread)
	})
	defer badge.Close()

	hub.Emit(EventNotificationCreated, json.RawMessage(`{"id":"n1"}`))
	hub.Emit(EventNotificationsClear, nil)
	hub.Emit(EventNotificationsClear, nil) // already zero, no callback

	assert.Equal(t, []int{1, 0}, changes)
}

func TestNotificationBadgeIgnoresMalformedPayloads(t *testing.T) {
	hub := testHub()
	badge := NewNotificationBadge(hub, nil, nil)
	defer badge.Close()

	hub.Emit(EventNotificationCreated, json.RawMessage(`not json`))
	hub.Emit(EventNotificationsSync, json.RawMessage(`{"id":"no count"}`))
	assert.Equal(t, 0, badge.Unread())
}

func TestNotificationBadgeCloseDetaches(t *testing.T) {
	hub := testHub()
	badge := NewNotificationBadge(hub, nil, nil)

	badge.Close()
	hub.Emit(EventNotificationCreated, json.RawMessage(`{"id":"n1"}`))

	assert.Equal(t, 0, badge.Unread())
	assert.Equal(t, 0, hub.ListenerCount(EventNotificationCreated))
}

func TestDashboardMetricsTracksLatestPerCampaign(t *testing.T) {
	hub := testHub()
	metrics := NewDashboardMetrics(hub, nil)
	defer metrics.Close()

	hub.Emit(EventCampaignUpdated, json.RawMessage(`{"campaign_id":"c1","clicks":10,"roi":1.2}`))
	hub.Emit(EventCampaignUpdated, json.RawMessage(`{"campaign_id":"c1","clicks":25,"roi":1.4}`))

	m, ok := metrics.Campaign("c1")
	require.True(t, ok)
	assert.Equal(t, int64(25), m.Clicks)
	assert.InDelta(t, 1.4, m.ROI, 1e-9)
	assert.False(t, metrics.UpdatedAt().IsZero())
}

func TestDashboardMetricsSnapshotFoldsIn(t *testing.T) {
	hub := testHub()
	metrics := NewDashboardMetrics(hub, nil)
	defer metrics.Close()

	hub.Emit(EventCampaignUpdated, json.RawMessage(`{"campaign_id":"c1","clicks":10}`))
	hub.Emit(EventMetricsSnapshot, json.RawMessage(
		`{"campaigns":[{"campaign_id":"c2","clicks":5},{"campaign_id":"","clicks":9}]}`))

	all := metrics.All()
	assert.Len(t, all, 2)
	assert.Equal(t, int64(10), all["c1"].Clicks)
	assert.Equal(t, int64(5), all["c2"].Clicks)
}

func TestDashboardMetricsIgnoresPayloadWithoutCampaignID(t *testing.T) {
	hub := testHub()
	metrics := NewDashboardMetrics(hub, nil)
	defer metrics.Close()

	hub.Emit(EventCampaignUpdated, json.RawMessage(`{"clicks":10}`))
	assert.Empty(t, metrics.All())
}

func TestDashboardMetricsAllReturnsCopy(t *testing.T) {
	hub := testHub()
	metrics := NewDashboardMetrics(hub, nil)
	defer metrics.Close()

	hub.Emit(EventCampaignUpdated, json.RawMessage(`{"campaign_id":"c1","clicks":10}`))

	all := metrics.All()
	all["c1"] = CampaignMetrics{CampaignID: "c1", Clicks: 999}

	m, _ := metrics.Campaign("c1")
	assert.Equal(t, int64(10), m.Clicks)
}
