package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpulse/adpulse/internal/config"
	"github.com/adpulse/adpulse/internal/models"
	"github.com/adpulse/adpulse/internal/store"
	"github.com/adpulse/adpulse/internal/wire"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(Options{
		Config: &config.Config{
			Port:        "0",
			TokenSecret: testSecret,
			TokenTTL:    time.Hour,
		},
		Store:   store.New(db, logger),
		Logger:  logger,
		Version: "test",
	})
	return srv, mock
}

func authToken(t *testing.T, permissions []string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, issuedClaims{
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "analyst",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func authedRequest(t *testing.T, method, target string, body string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+authToken(t, nil))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeData(t *testing.T, res *http.Response, out any) {
	t.Helper()
	var env struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	assert.Equal(t, "success", env.Status)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

func campaignRows(ids ...uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "name", "channel", "status", "budget_cents", "spend_cents",
		"impressions", "clicks", "conversions", "starts_at", "ends_at",
		"created_at", "updated_at",
	})
	for _, id := range ids {
		rows.AddRow(id, "Spring Launch", "email", "active", int64(100000), int64(0),
			int64(0), int64(0), int64(0), nil, nil, now, now)
	}
	return rows
}

func TestHealthReportsOK(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectPing()

	res, err := srv.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestAPIRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := srv.App().Test(httptest.NewRequest("GET", "/api/campaigns", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestListCampaigns(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectQuery("SELECT\\s+id, name, channel").
		WillReturnRows(campaignRows(uuid.New()))

	res, err := srv.App().Test(authedRequest(t, "GET", "/api/campaigns", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var campaigns []models.Campaign
	decodeData(t, res, &campaigns)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "Spring Launch", campaigns[0].Name)
}

func TestGetCampaignInvalidID(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := srv.App().Test(authedRequest(t, "GET", "/api/campaigns/not-a-uuid", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestGetCampaignNotFound(t *testing.T) {
	srv, mock := newTestServer(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT\\s+id, name, channel").
		WithArgs(id).
		WillReturnRows(campaignRows())

	res, err := srv.App().Test(authedRequest(t, "GET", "/api/campaigns/"+id.String(), ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCreateCampaignPublishesEvent(t *testing.T) {
	srv, mock := newTestServer(t)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO campaign").
		WithArgs("Spring Launch", "email", models.CampaignDraft, int64(100000)).
		WillReturnRows(campaignRows(id))
	mock.ExpectExec("SELECT pg_notify").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := srv.App().Test(authedRequest(t, "POST", "/api/campaigns",
		`{"name":"Spring Launch","channel":"email","budget_cents":100000}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var campaign models.Campaign
	decodeData(t, res, &campaign)
	assert.Equal(t, id, campaign.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCampaignRequiresName(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := srv.App().Test(authedRequest(t, "POST", "/api/campaigns",
		`{"channel":"email"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDeleteCampaign(t *testing.T) {
	srv, mock := newTestServer(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM campaign").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SELECT pg_notify").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := srv.App().Test(authedRequest(t, "DELETE", "/api/campaigns/"+id.String(), ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestUnreadNotificationCount(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM notification").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	res, err := srv.App().Test(authedRequest(t, "GET", "/api/notifications/unread-count", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var data struct {
		UnreadCount int64 `json:"unread_count"`
	}
	decodeData(t, res, &data)
	assert.Equal(t, int64(3), data.UnreadCount)
}

func TestMarkNotificationReadPublishesEvent(t *testing.T) {
	srv, mock := newTestServer(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE notification SET read").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SELECT pg_notify").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := srv.App().Test(authedRequest(t, "POST", "/api/notifications/"+id.String()+"/read", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRefreshIssuesDefaultCredential(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := srv.App().Test(httptest.NewRequest("POST", "/api/auth/refresh", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body wire.TokenResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "success", body.Status)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, int64(3600), body.ExpiresIn)
	assert.Contains(t, body.Permissions, "campaigns:read")

	// The issued token must pass the API's own auth.
	req := httptest.NewRequest("GET", "/api/campaigns/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	res, err = srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, "authenticated but invalid id")
}

func TestTokenRefreshCarriesPriorPermissions(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+authToken(t, []string{"campaigns:write"}))
	res, err := srv.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body wire.TokenResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, []string{"campaigns:write"}, body.Permissions)
}

func TestVersionEndpointIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := srv.App().Test(httptest.NewRequest("GET", "/api/version", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
