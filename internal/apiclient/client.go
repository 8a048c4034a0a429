// Package apiclient is a small HTTP client for the IntegrityOS API, used by
// the dashboard relay and integrityctl.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithToken returns c after setting the bearer token.
func (c *Client) WithToken(token string) *Client {
	c.SetToken(token)
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Error is a non-2xx response. It unwraps to the matching domain error.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("api: %d %s", e.Status, e.Message) }

func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrInvalidInput
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusServiceUnavailable:
		return domain.ErrCloudDisabled
	}
	return nil
}

type LoginResult struct {
	Token     string      `json:"token"`
	User      domain.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Login opens a session and keeps its token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &out); err != nil {
		return out, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Health reports whether the API and its database are up.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) Pipelines(ctx context.Context) ([]domain.PipelineView, error) {
	var out []domain.PipelineView
	err := c.do(ctx, http.MethodGet, "/api/pipelines", nil, nil, &out)
	return out, err
}

func (c *Client) Pipeline(ctx context.Context, id string) (domain.PipelineDetails, error) {
	var out domain.PipelineDetails
	err := c.do(ctx, http.MethodGet, "/api/pipeline/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) Latest(ctx context.Context, pipelineID string) (domain.SensorReading, error) {
	var out domain.SensorReading
	err := c.do(ctx, http.MethodGet, "/api/sensor/"+url.PathEscape(pipelineID), nil, nil, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, pipelineID string, hours int) (domain.History, error) {
	params := url.Values{}
	params.Set("hours", strconv.Itoa(hours))
	var out domain.History
	err := c.do(ctx, http.MethodGet, "/api/sensor/"+url.PathEscape(pipelineID)+"/history", params, nil, &out)
	return out, err
}

func (c *Client) Predict(ctx context.Context, in integrity.PredictionInput) (integrity.Prediction, error) {
	var out integrity.Prediction
	err := c.do(ctx, http.MethodPost, "/api/predict", nil, in, &out)
	return out, err
}

func (c *Client) Summary(ctx context.Context, pipelines []string) (domain.Summary, error) {
	params := url.Values{}
	if len(pipelines) > 0 {
		params.Set("pipelines", strings.Join(pipelines, ","))
	}
	var out domain.Summary
	err := c.do(ctx, http.MethodGet, "/api/summary", params, nil, &out)
	return out, err
}

// DeviceList mirrors the devices endpoint.
type DeviceList struct {
	Devices []domain.Device    `json:"devices"`
	Stats   domain.DeviceStats `json:"stats"`
}

func (c *Client) Devices(ctx context.Context) (DeviceList, error) {
	var out DeviceList
	err := c.do(ctx, http.MethodGet, "/api/devices", nil, nil, &out)
	return out, err
}

func (c *Client) Alerts(ctx context.Context, severity string) ([]domain.Alert, error) {
	params := url.Values{}
	if severity != "" {
		params.Set("severity", severity)
	}
	var out []domain.Alert
	err := c.do(ctx, http.MethodGet, "/api/alerts", params, nil, &out)
	return out, err
}

func (c *Client) AcknowledgeAlert(ctx context.Context, alertID string) error {
	return c.do(ctx, http.MethodPost, "/api/alerts/"+url.PathEscape(alertID)+"/acknowledge", nil, nil, nil)
}

// Reports lists the storage keys of published reports. An empty
// pipelineID lists every pipeline.
func (c *Client) Reports(ctx context.Context, pipelineID string) ([]string, error) {
	params := url.Values{}
	if pipelineID != "" {
		params.Set("pipeline", pipelineID)
	}
	var out struct {
		Reports []string `json:"reports"`
	}
	err := c.do(ctx, http.MethodGet, "/api/reports", params, nil, &out)
	return out.Reports, err
}

// Report downloads a rendered report. date may be empty for today.
func (c *Client) Report(ctx context.Context, pipelineID, date, format string) (fileName string, body []byte, err error) {
	params := url.Values{}
	params.Set("pipeline", pipelineID)
	if date != "" {
		params.Set("date", date)
	}
	if format != "" {
		params.Set("format", format)
	}
	resp, err := c.send(ctx, http.MethodGet, "/api/report", params, nil)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	if _, p, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		fileName = p["filename"]
	}
	return fileName, body, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	resp, err := c.send(ctx, method, path, params, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// send performs the request and turns error statuses into *Error.
func (c *Client) send(ctx context.Context, method, path string, params url.Values, in any) (*http.Response, error) {
	u := c.baseURL + path
	if q := params.Encode(); q != "" {
		u += "?" + q
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &Error{Status: resp.StatusCode, Message: resp.Status}
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return nil, apiErr
	}
	return resp, nil
}
