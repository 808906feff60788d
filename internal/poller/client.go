package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	alerts "playtrack/internal/alerts/domain"
	timers "playtrack/internal/timers/domain"
)

// Client is the HTTP source behind both pollers, talking to the timer and
// alert endpoints of one location.
type Client struct {
	baseURL    string
	token      string
	locationID string
	client     *http.Client
}

// NewClient constructs a client.
func NewClient(baseURL, token, locationID string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("poller client: empty base url")
	}
	if locationID == "" {
		return nil, errors.New("poller client: empty location id")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		locationID: locationID,
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// FetchTimers issues a conditional snapshot request. A non-empty fingerprint
// is sent as If-None-Match; a 304 response reports Unchanged.
func (c *Client) FetchTimers(ctx context.Context, fingerprint string) (TimerSnapshot, error) {
	endpoint := c.baseURL + "/api/v1/timers?location_id=" + url.QueryEscape(c.locationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TimerSnapshot{}, err
	}
	c.authorize(req)
	if fingerprint != "" {
		req.Header.Set("If-None-Match", quoteETag(fingerprint))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return TimerSnapshot{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return TimerSnapshot{Unchanged: true, Fingerprint: fingerprint}, nil
	case http.StatusOK:
		var body struct {
			Timers      []timers.Timer `json:"timers"`
			Fingerprint string         `json:"fingerprint"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return TimerSnapshot{}, fmt.Errorf("poller client: decode timers: %w", err)
		}
		fingerprint := unquoteETag(resp.Header.Get("ETag"))
		if fingerprint == "" {
			fingerprint = body.Fingerprint
		}
		return TimerSnapshot{
			Fingerprint: fingerprint,
			Timers:      body.Timers,
		}, nil
	default:
		return TimerSnapshot{}, fmt.Errorf("poller client: timers fetch status %d", resp.StatusCode)
	}
}

// FetchPending returns the pending alerts of the location.
func (c *Client) FetchPending(ctx context.Context) ([]alerts.Alert, error) {
	endpoint := c.baseURL + "/api/v1/alerts/pending?location_id=" + url.QueryEscape(c.locationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poller client: pending fetch status %d", resp.StatusCode)
	}
	var body struct {
		Alerts []alerts.Alert `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("poller client: decode alerts: %w", err)
	}
	return body.Alerts, nil
}

// Acknowledge marks one alert acknowledged.
func (c *Client) Acknowledge(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("poller client: empty alert id")
	}
	endpoint := c.baseURL + "/api/v1/alerts/" + url.PathEscape(id) + "/acknowledge"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("poller client: acknowledge status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func quoteETag(value string) string {
	return `"` + value + `"`
}

func unquoteETag(value string) string {
	return strings.Trim(value, `"`)
}
