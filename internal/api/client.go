// Package api is the REST client for the coordination backend. The
// reconciler drives the status poll; the command and vehicle-link endpoints
// are the control surface the operator UI calls through the reconciler and
// directly.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/groundlink/console/internal/coord"
	"github.com/groundlink/console/internal/telemetry"
)

// Client handles communication with the coordination backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// SurveyStatus is the backend's survey progress report.
type SurveyStatus struct {
	CurrentWaypointIndex int  `json:"current_waypoint_index"`
	TotalWaypoints       int  `json:"total_waypoints"`
	ScanAbandoned        bool `json:"scan_abandoned"`
	MissionComplete      bool `json:"mission_complete"`
}

// statusReply is the common success/error envelope the backend returns.
type statusReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// New creates a new API client.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StartCoordination activates the autonomous coordination service.
func (c *Client) StartCoordination(ctx context.Context) error {
	return c.post(ctx, "/coordination/start")
}

// StopCoordination deactivates the coordination service.
func (c *Client) StopCoordination(ctx context.Context) error {
	return c.post(ctx, "/coordination/stop")
}

// CoordinationStatus fetches the server-side coordination flag tuple.
func (c *Client) CoordinationStatus(ctx context.Context) (coord.State, error) {
	var state coord.State
	if err := c.get(ctx, "/coordination/status", &state); err != nil {
		return coord.State{}, err
	}
	return state, nil
}

// InitiateProximitySurvey asks the backend to begin a proximity survey.
func (c *Client) InitiateProximitySurvey(ctx context.Context) error {
	return c.post(ctx, "/coordination/initiate-proximity-survey")
}

// PauseSurvey pauses an in-progress survey.
func (c *Client) PauseSurvey(ctx context.Context) error {
	return c.post(ctx, "/survey/pause")
}

// ResumeSurvey resumes a paused survey.
func (c *Client) ResumeSurvey(ctx context.Context) error {
	return c.post(ctx, "/survey/resume")
}

// SurveyStatus fetches the backend's survey progress report.
func (c *Client) SurveyStatus(ctx context.Context) (SurveyStatus, error) {
	var status SurveyStatus
	if err := c.get(ctx, "/survey/status", &status); err != nil {
		return SurveyStatus{}, err
	}
	return status, nil
}

// ConnectVehicle asks the backend to open its link to the vehicle.
func (c *Client) ConnectVehicle(ctx context.Context, kind telemetry.Kind) error {
	return c.post(ctx, fmt.Sprintf("/vehicles/%s/connect", kind))
}

// DisconnectVehicle asks the backend to drop its link to the vehicle.
func (c *Client) DisconnectVehicle(ctx context.Context, kind telemetry.Kind) error {
	return c.post(ctx, fmt.Sprintf("/vehicles/%s/disconnect", kind))
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return checkReply(resp, path)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return replyError(resp, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// checkReply inspects the success/error envelope. The backend reports
// failures both via HTTP status and via an "error" status field on 200s.
func checkReply(resp *http.Response, path string) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return replyError(resp, path)
	}

	var reply statusReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		// A 2xx with an unreadable body still counts as success.
		return nil
	}
	if reply.Status == "error" {
		if reply.Message != "" {
			return fmt.Errorf("%s: %s", path, reply.Message)
		}
		return fmt.Errorf("%s: server reported error", path)
	}
	return nil
}

func replyError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var reply statusReply
	if err := json.Unmarshal(body, &reply); err == nil {
		if reply.Detail != "" {
			return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, reply.Detail)
		}
		if reply.Message != "" {
			return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, reply.Message)
		}
	}
	return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
}
