// Package apiclient wraps the adpulse REST API: CRUD per resource plus the
// credential refresh call. All methods decode the `{status, data}` response
// envelope and surface server-reported failures as errors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/adpulse/adpulse/internal/logging"
	"github.com/adpulse/adpulse/internal/models"
	"github.com/adpulse/adpulse/internal/wire"
)

// Options configures a Client. BaseURL is required.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	// TokenFunc, when set, supplies the bearer token attached to every
	// request. Returning "" sends the request unauthenticated.
	TokenFunc func() string
}

// Client is the REST API client.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	token   func() string
}

// New validates options and builds a client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("apiclient: BaseURL is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = logging.L()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		logger:  opts.Logger,
		token:   opts.TokenFunc,
	}, nil
}

// envelope is the uniform response wrapper. Older endpoints use a boolean
// `success`, newer ones a string `status`.
type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Status  string          `json:"status,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (e envelope) ok() bool {
	if e.Success != nil {
		return *e.Success
	}
	switch e.Status {
	case "", "success", "ok":
		return true
	}
	return false
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 || !env.ok() {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return fmt.Errorf("%s %s: %s (status %d)", method, path, msg, res.StatusCode)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func get[T any](ctx context.Context, c *Client, path string, id uuid.UUID) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s", path, id), nil, &out)
	return out, err
}

func create[T any](ctx context.Context, c *Client, path string, in any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, path, in, &out)
	return out, err
}

func update[T any](ctx context.Context, c *Client, path string, id uuid.UUID, in any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%s", path, id), in, &out)
	return out, err
}

func del(ctx context.Context, c *Client, path string, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%s", path, id), nil, nil)
}

// CampaignInput is the writable subset of a campaign.
type CampaignInput struct {
	Name        string                `json:"name"`
	Channel     string                `json:"channel"`
	Status      models.CampaignStatus `json:"status,omitempty"`
	BudgetCents int64                 `json:"budget_cents"`
}

func (c *Client) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	return list[models.Campaign](ctx, c, "/api/campaigns")
}

func (c *Client) GetCampaign(ctx context.Context, id uuid.UUID) (models.Campaign, error) {
	return get[models.Campaign](ctx, c, "/api/campaigns", id)
}

func (c *Client) CreateCampaign(ctx context.Context, in CampaignInput) (models.Campaign, error) {
	return create[models.Campaign](ctx, c, "/api/campaigns", in)
}

func (c *Client) UpdateCampaign(ctx context.Context, id uuid.UUID, in CampaignInput) (models.Campaign, error) {
	return update[models.Campaign](ctx, c, "/api/campaigns", id, in)
}

func (c *Client) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	return del(ctx, c, "/api/campaigns", id)
}

// SegmentInput is the writable subset of a segment.
type SegmentInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

func (c *Client) ListSegments(ctx context.Context) ([]models.Segment, error) {
	return list[models.Segment](ctx, c, "/api/segments")
}

func (c *Client) GetSegment(ctx context.Context, id uuid.UUID) (models.Segment, error) {
	return get[models.Segment](ctx, c, "/api/segments", id)
}

func (c *Client) CreateSegment(ctx context.Context, in SegmentInput) (models.Segment, error) {
	return create[models.Segment](ctx, c, "/api/segments", in)
}

func (c *Client) UpdateSegment(ctx context.Context, id uuid.UUID, in SegmentInput) (models.Segment, error) {
	return update[models.Segment](ctx, c, "/api/segments", id, in)
}

func (c *Client) DeleteSegment(ctx context.Context, id uuid.UUID) error {
	return del(ctx, c, "/api/segments", id)
}

func (c *Client) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	return list[models.Candidate](ctx, c, "/api/candidates")
}

func (c *Client) GetCandidate(ctx context.Context, id uuid.UUID) (models.Candidate, error) {
	return get[models.Candidate](ctx, c, "/api/candidates", id)
}

func (c *Client) ListJobOpenings(ctx context.Context) ([]models.JobOpening, error) {
	return list[models.JobOpening](ctx, c, "/api/job-openings")
}

func (c *Client) GetJobOpening(ctx context.Context, id uuid.UUID) (models.JobOpening, error) {
	return get[models.JobOpening](ctx, c, "/api/job-openings", id)
}

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	return list[models.Notification](ctx, c, "/api/notifications")
}

// MarkNotificationRead flips one notification to read.
func (c *Client) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/notifications/%s/read", id), nil, nil)
}

// UnreadNotificationCount returns the number of unread notifications.
func (c *Client) UnreadNotificationCount(ctx context.Context) (int64, error) {
	var out struct {
		UnreadCount int64 `json:"unread_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// RefreshToken exchanges the current bearer credential for a fresh one.
func (c *Client) RefreshToken(ctx context.Context) (wire.TokenResponse, error) {
	var out wire.TokenResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/refresh", nil)
	if err != nil {
		return out, err
	}
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	res, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("refresh token: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return out, fmt.Errorf("refresh token: status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("refresh token: decode: %w", err)
	}
	return out, nil
}
