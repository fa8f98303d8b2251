package rtclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/adpulse/adpulse/internal/wire"
)

// Credential is an opaque bearer token with its expiry and granted
// permissions. Credentials are superseded on refresh, never mutated, and
// live only in process memory.
type Credential struct {
	Token       string
	ExpiresAt   time.Time
	Permissions []string
}

type tokenManagerConfig struct {
	refreshURL string
	threshold  time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	// onRefreshed is invoked after a successful refresh so the owner can
	// cycle any open connection onto the new credential.
	onRefreshed func(ctx context.Context)
}

// TokenManager schedules credential refresh ahead of expiry. Its lifecycle
// is independent of any single connection: a reconnect may reuse or wait on
// a refreshed credential.
type TokenManager struct {
	cfg tokenManagerConfig

	mu    sync.Mutex
	cred  *Credential
	timer *time.Timer

	nowFunc func() time.Time
}

func newTokenManager(cfg tokenManagerConfig) *TokenManager {
	return &TokenManager{cfg: cfg, nowFunc: time.Now}
}

// SetAuthToken stores a credential and (re)schedules refresh for
// expiresAt - threshold. A zero expiresIn falls back to the token's own exp
// claim; if the refresh instant is already in the past the refresh fires
// immediately instead of arming a negative-delay timer.
func (m *TokenManager) SetAuthToken(token string, expiresIn time.Duration, permissions []string) {
	now := m.nowFunc()
	expiresAt := now.Add(expiresIn)
	if expiresIn <= 0 {
		if exp, ok := tokenExpiry(token); ok {
			expiresAt = exp
		}
	}

	m.mu.Lock()
	m.cred = &Credential{Token: token, ExpiresAt: expiresAt, Permissions: permissions}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	refreshable := m.cfg.refreshURL != ""
	var delay time.Duration
	if refreshable {
		delay = expiresAt.Add(-m.cfg.threshold).Sub(now)
		if delay > 0 {
			m.timer = time.AfterFunc(delay, func() { m.refreshDue() })
		}
	}
	m.mu.Unlock()

	if refreshable && delay <= 0 {
		go m.refreshDue()
	}
}

// Current returns the held credential, or nil.
func (m *TokenManager) Current() *Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// HasPermission reports whether the current credential carries perm.
func (m *TokenManager) HasPermission(perm string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return false
	}
	for _, p := range m.cred.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

func (m *TokenManager) refreshDue() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = m.RefreshAuthToken(ctx)
}

// RefreshAuthToken exchanges the current credential for a fresh one. Failure
// is logged and reported as false: the old, possibly expiring credential
// stays in use until the next scheduled or manual attempt, and an open
// connection is never torn down over it.
func (m *TokenManager) RefreshAuthToken(ctx context.Context) bool {
	m.mu.Lock()
	cred := m.cred
	url := m.cfg.refreshURL
	m.mu.Unlock()

	if url == "" {
		return false
	}

	resp, err := m.requestToken(ctx, url, cred)
	if err != nil {
		m.cfg.logger.Warn("credential refresh failed", "error", err)
		return false
	}

	m.SetAuthToken(resp.Token, time.Duration(resp.ExpiresIn)*time.Second, resp.Permissions)
	m.cfg.logger.Info("credential refreshed", "expires_in", resp.ExpiresIn)

	if m.cfg.onRefreshed != nil {
		m.cfg.onRefreshed(ctx)
	}
	return true
}

func (m *TokenManager) requestToken(ctx context.Context, url string, cred *Credential) (*wire.TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	if cred != nil {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	res, err := m.cfg.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d", res.StatusCode)
	}

	var body wire.TokenResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if body.Status != "" && body.Status != "success" && body.Status != "ok" {
		return nil, fmt.Errorf("token endpoint status %q", body.Status)
	}
	if body.Token == "" {
		return nil, fmt.Errorf("token endpoint returned empty token")
	}
	return &body, nil
}

// Close stops the refresh timer.
func (m *TokenManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// tokenExpiry extracts the exp claim without verifying the signature; the
// server remains the authority, this only sizes the refresh timer.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Tokens exposes the client's token lifecycle manager.
func (c *Client) Tokens() *TokenManager { return c.tokens }

// SetAuthToken stores the credential used for the next connection and
// schedules its refresh.
func (c *Client) SetAuthToken(token string, expiresIn time.Duration, permissions []string) {
	c.tokens.SetAuthToken(token, expiresIn, permissions)
}
