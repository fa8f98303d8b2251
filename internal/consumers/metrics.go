package consumers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/adpulse/adpulse/internal/eventhub"
	"github.com/adpulse/adpulse/internal/logging"
)

// Event names the metrics consumer reacts to.
const (
	EventCampaignUpdated = "campaign_updated"
	EventMetricsSnapshot = "dashboard_metrics"
)

// CampaignMetrics is one campaign's live performance snapshot.
type CampaignMetrics struct {
	CampaignID  string  `json:"campaign_id"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	SpendCents  int64   `json:"spend_cents"`
	ROI         float64 `json:"roi"`
}

// metricsSnapshot is the bulk refresh pushed when the dashboard (re)loads.
type metricsSnapshot struct {
	Campaigns []CampaignMetrics `json:"campaigns"`
}

// DashboardMetrics keeps the latest metrics per campaign, folding in both
// single-campaign updates and bulk snapshots. Reads never block event
// delivery for long: state is copied out under a short lock.
type DashboardMetrics struct {
	hub    *eventhub.Hub
	logger *slog.Logger

	mu        sync.Mutex
	byID      map[string]CampaignMetrics
	updatedAt time.Time
	tokens    map[string]int64
}

// NewDashboardMetrics registers the consumer on the hub.
func NewDashboardMetrics(hub *eventhub.Hub, logger *slog.Logger) *DashboardMetrics {
	if logger == nil {
		logger = logging.L()
	}
	d := &DashboardMetrics{
		hub:    hub,
		logger: logger,
		byID:   make(map[string]CampaignMetrics),
		tokens: make(map[string]int64),
	}
	d.tokens[EventCampaignUpdated] = hub.On(EventCampaignUpdated, d.handleUpdate)
	d.tokens[EventMetricsSnapshot] = hub.On(EventMetricsSnapshot, d.handleSnapshot)
	return d
}

// Campaign returns the latest metrics for one campaign.
func (d *DashboardMetrics) Campaign(id string) (CampaignMetrics, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.byID[id]
	return m, ok
}

// All returns a copy of every tracked campaign's metrics.
func (d *DashboardMetrics) All() map[string]CampaignMetrics {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]CampaignMetrics, len(d.byID))
	for id, m := range d.byID {
		out[id] = m
	}
	return out
}

// UpdatedAt returns when the view last changed.
func (d *DashboardMetrics) UpdatedAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updatedAt
}

// Close detaches the consumer from the hub.
func (d *DashboardMetrics) Close() {
	for event, id := range d.tokens {
		d.hub.Off(event, id)
	}
}

func (d *DashboardMetrics) handleUpdate(data any) {
	m, ok := decodeEvent[CampaignMetrics](data)
	if !ok || m.CampaignID == "" {
		d.logger.Warn("campaign_updated payload missing campaign_id")
		return
	}
	d.mu.Lock()
	d.byID[m.CampaignID] = m
	d.updatedAt = time.Now()
	d.mu.Unlock()
}

func (d *DashboardMetrics) handleSnapshot(data any) {
	snap, ok := decodeEvent[metricsSnapshot](data)
	if !ok {
		d.logger.Warn("malformed dashboard_metrics payload")
		return
	}
	d.mu.Lock()
	for _, m := range snap.Campaigns {
		if m.CampaignID == "" {
			continue
		}
		d.byID[m.CampaignID] = m
	}
	d.updatedAt = time.Now()
	d.mu.Unlock()
}
