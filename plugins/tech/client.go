package tech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/joshp123/gohome-tech/internal/rate"
	"github.com/joshp123/gohome-tech/internal/session"
)

// zoneCacheTTL lets the per-zone refreshes of one poll round share a single module fetch.
const zoneCacheTTL = 5 * time.Second

var (
	ErrZoneNotFound       = errors.New("tech zone not found")
	ErrInvalidTemperature = errors.New("tech temperature must be finite")
)

type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("tech api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Client talks to the Tech Controllers eModul REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *session.TokenSource
	now        func() time.Time

	mu      sync.Mutex
	modules map[string]*moduleCache
}

type moduleCache struct {
	mu        sync.Mutex
	fetchedAt time.Time
	zones     map[int]Zone
}

// NewClient builds a client without a session; only Authenticate works until WithSession.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	decl := rate.Provider(provider).MaxRequestsPer(rate.Minute, cfg.MaxRequestsPerMinute)
	return &Client{
		baseURL:    baseURL,
		httpClient: rate.WrapHTTP(decl, &http.Client{Timeout: 15 * time.Second}),
		now:        time.Now,
		modules:    make(map[string]*moduleCache),
	}
}

// WithSession returns a client that authenticates requests with tokens.
// The returned client shares the rate budget of c.
func (c *Client) WithSession(tokens *session.TokenSource) *Client {
	authed := *c.httpClient
	authed.Transport = &oauth2.Transport{Source: tokens, Base: c.httpClient.Transport}
	return &Client{
		baseURL:    c.baseURL,
		httpClient: &authed,
		tokens:     tokens,
		now:        c.now,
		modules:    make(map[string]*moduleCache),
	}
}

// Authenticate exchanges account credentials for a session.
func (c *Client) Authenticate(ctx context.Context, username, password string) (session.State, error) {
	payload := map[string]string{"username": username, "password": password}

	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, "authentication", payload, &resp); err != nil {
		return session.State{}, err
	}
	if !resp.Authenticated || resp.Token == "" {
		return session.State{}, fmt.Errorf("tech authentication rejected")
	}

	return session.State{
		SchemaVersion: session.SchemaVersion,
		UserID:        resp.UserID.String(),
		Token:         resp.Token,
	}, nil
}

// ListModules returns the controllers registered on the account.
func (c *Client) ListModules(ctx context.Context) ([]Module, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}

	var modules []Module
	if err := c.doJSON(ctx, http.MethodGet, "users/"+userID+"/modules", nil, &modules); err != nil {
		return nil, err
	}
	return modules, nil
}

// GetModuleZones fetches the visible zones of a module keyed by zone id.
func (c *Client) GetModuleZones(ctx context.Context, udid string) (map[int]Zone, error) {
	cache := c.cacheFor(udid)
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if err := c.refreshZones(ctx, udid, cache); err != nil {
		return nil, err
	}
	return cloneZones(cache.zones), nil
}

// GetZone returns a single zone, reusing a module fetch younger than zoneCacheTTL.
func (c *Client) GetZone(ctx context.Context, udid string, zoneID int) (Zone, error) {
	cache := c.cacheFor(udid)
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cache.zones == nil || c.now().Sub(cache.fetchedAt) >= zoneCacheTTL {
		if err := c.refreshZones(ctx, udid, cache); err != nil {
			return Zone{}, err
		}
	}

	zone, ok := cache.zones[zoneID]
	if !ok {
		return Zone{}, fmt.Errorf("%w: module %s zone %d", ErrZoneNotFound, udid, zoneID)
	}
	return zone, nil
}

// SetConstTemp switches a zone to constant-temperature mode at celsius.
// The API expects tenths of a degree, matching the read path.
func (c *Client) SetConstTemp(ctx context.Context, udid string, zoneID int, celsius float64) error {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTemperature, celsius)
	}

	zone, err := c.GetZone(ctx, udid, zoneID)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"mode": map[string]any{
			"id":             zone.Mode.ID,
			"parentId":       zoneID,
			"mode":           "constantTemp",
			"constTempTime":  60,
			"setTemperature": int(math.Round(celsius * 10)),
			"scheduleIndex":  0,
		},
	}
	return c.postZones(ctx, udid, payload)
}

// SetZone turns a zone's control loop on or off.
func (c *Client) SetZone(ctx context.Context, udid string, zoneID int, on bool) error {
	state := "zoneOff"
	if on {
		state = "zoneOn"
	}
	payload := map[string]any{
		"zone": map[string]any{
			"id":        zoneID,
			"zoneState": state,
		},
	}
	return c.postZones(ctx, udid, payload)
}

func (c *Client) postZones(ctx context.Context, udid string, payload any) error {
	userID, err := c.userID(ctx)
	if err != nil {
		return err
	}
	if err := c.doJSON(ctx, http.MethodPost, "users/"+userID+"/modules/"+udid+"/zones", payload, nil); err != nil {
		return err
	}

	cache := c.cacheFor(udid)
	cache.mu.Lock()
	cache.fetchedAt = time.Time{}
	cache.mu.Unlock()
	return nil
}

// refreshZones must be called with cache.mu held.
func (c *Client) refreshZones(ctx context.Context, udid string, cache *moduleCache) error {
	userID, err := c.userID(ctx)
	if err != nil {
		return err
	}

	var resp moduleResponse
	if err := c.doJSON(ctx, http.MethodGet, "users/"+userID+"/modules/"+udid, nil, &resp); err != nil {
		return err
	}

	zones := make(map[int]Zone, len(resp.Zones.Elements))
	for _, element := range resp.Zones.Elements {
		if !element.Zone.Visibility {
			continue
		}
		zones[element.Zone.ID] = element
	}
	cache.zones = zones
	cache.fetchedAt = c.now()
	return nil
}

func (c *Client) cacheFor(udid string) *moduleCache {
	c.mu.Lock()
	defer c.mu.Unlock()

	cache, ok := c.modules[udid]
	if !ok {
		cache = &moduleCache{}
		c.modules[udid] = cache
	}
	return cache
}

func (c *Client) userID(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", fmt.Errorf("tech client has no session")
	}
	state, err := c.tokens.Session(ctx)
	if err != nil {
		return "", err
	}
	return state.UserID, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		c.tokens.Invalidate()
		return fmt.Errorf("tech api unauthorized; session invalidated")
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return HTTPStatusError{Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func cloneZones(in map[int]Zone) map[int]Zone {
	out := make(map[int]Zone, len(in))
	for id, zone := range in {
		out[id] = zone
	}
	return out
}
