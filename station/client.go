package station

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elijahnyp/station_controller/state"
)

const (
	statePath   = "/getstate"
	controlPath = "/control"
)

// StateFetcher reads the current device state.
type StateFetcher interface {
	FetchState(ctx context.Context) (state.DeviceState, error)
}

// Commander sends one control command and returns the state the device
// reports after applying it.
type Commander interface {
	Control(ctx context.Context, cmd state.Command) (state.DeviceState, error)
}

// Device is the remote control service.
type Device interface {
	StateFetcher
	Commander
}

// Client talks to the control service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the service at baseURL. A zero timeout
// leaves requests bounded only by their context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) FetchState(ctx context.Context) (state.DeviceState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statePath, nil)
	if err != nil {
		return state.DeviceState{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	s, err := c.do(req, "getstate")
	if err != nil {
		return state.DeviceState{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return s, nil
}

func (c *Client) Control(ctx context.Context, cmd state.Command) (state.DeviceState, error) {
	form := url.Values{}
	form.Set("cmd", cmd.Name)
	form.Set("val", strconv.Itoa(cmd.Value))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+controlPath, strings.NewReader(form.Encode()))
	if err != nil {
		return state.DeviceState{}, fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	s, err := c.do(req, "control")
	if err != nil {
		return state.DeviceState{}, fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd, err)
	}
	return s, nil
}

func (c *Client) do(req *http.Request, op string) (state.DeviceState, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return state.DeviceState{}, err
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // body fully read or discarded
	}()
	if resp.StatusCode > 299 || resp.StatusCode < 200 {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining for connection reuse
		return state.DeviceState{}, &StatusError{Op: op, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return state.DeviceState{}, fmt.Errorf("read %s response: %w", op, err)
	}
	var s state.DeviceState
	if err := json.Unmarshal(body, &s); err != nil {
		return state.DeviceState{}, fmt.Errorf("decode %s response: %w", op, err)
	}
	return s, nil
}
