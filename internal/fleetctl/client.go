package fleetctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fleetd/pkg/types"
)

// Client is a thin HTTP client for the daemon API.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string) *Client {
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{base: base, http: &http.Client{Timeout: 5 * time.Minute}}
}

// do issues the request and decodes the JSON body into out when out is
// non-nil. API error payloads become plain errors carrying the daemon's
// message.
func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr types.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Fleet() (types.FleetStatus, error) {
	var out types.FleetStatus
	err := c.do(http.MethodGet, "/fleet", nil, &out)
	return out, err
}

func (c *Client) Slots() ([]types.SlotSnapshot, error) {
	var out types.SlotsResponse
	err := c.do(http.MethodGet, "/slots", nil, &out)
	return out.Slots, err
}

func (c *Client) Scale(target int) (types.ScaleResult, error) {
	var out types.ScaleResult
	err := c.do(http.MethodPost, "/fleet/scale", types.ScaleRequest{Target: target}, &out)
	return out, err
}

func (c *Client) Add() (int, error) {
	var out types.AddServerResponse
	err := c.do(http.MethodPost, "/fleet/servers", nil, &out)
	return out.ID, err
}

func (c *Client) Start(id int) error {
	return c.do(http.MethodPost, fmt.Sprintf("/slots/%d/start", id), nil, nil)
}

func (c *Client) Stop(id int, force bool) error {
	path := fmt.Sprintf("/slots/%d/stop", id)
	if force {
		path += "?graceful=false"
	}
	return c.do(http.MethodPost, path, nil, nil)
}

func (c *Client) Reset(id int) error {
	return c.do(http.MethodPost, fmt.Sprintf("/slots/%d/reset", id), nil, nil)
}

func (c *Client) Remove(id int) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/slots/%d", id), nil, nil)
}

func (c *Client) Assignments() ([]types.AssignmentRecord, error) {
	var out types.AssignmentsResponse
	err := c.do(http.MethodGet, "/affinity/assignments", nil, &out)
	return out.Assignments, err
}

func (c *Client) Recommendation(servers int) (types.RecommendationResponse, error) {
	var out types.RecommendationResponse
	err := c.do(http.MethodGet, fmt.Sprintf("/affinity/recommendation?servers=%d", servers), nil, &out)
	return out, err
}
