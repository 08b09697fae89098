// Package client talks to a running hidey daemon over its control socket.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/h-vien/hidey/internal/control"
	"github.com/h-vien/hidey/internal/engine"
)

const (
	// defaultTimeout is used when the caller does not provide a context deadline.
	defaultTimeout = 3 * time.Second
)

// Client dials the control socket per request.
type Client struct {
	socketPath string
}

// Status mirrors the daemon's engine status payload.
type Status = engine.Status

// New creates a client that connects to the provided socket path. When path
// is empty, the default runtime path is used.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// Status retrieves the daemon's current status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	if err := c.do(ctx, control.Request{Action: control.ActionStatus}, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// Toggle enables or disables redaction globally.
func (c *Client) Toggle(ctx context.Context, enabled bool) (Status, error) {
	req := control.Request{Action: control.ActionToggle, Params: map[string]any{"enabled": enabled}}
	var status Status
	if err := c.do(ctx, req, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// SetDeleteMode turns delete mode on or off.
func (c *Client) SetDeleteMode(ctx context.Context, active bool) error {
	req := control.Request{Action: control.ActionDeleteMode, Params: map[string]any{"active": active}}
	return c.do(ctx, req, nil)
}

// Reconcile asks the daemon to run a full pass now.
func (c *Client) Reconcile(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionReconcile}, nil)
}

// Reload asks the daemon to re-read its rules file.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionReload}, nil)
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket %s: %w", c.socketPath, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var resp control.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != control.StatusOK {
		if resp.Error != "" {
			return errors.New(resp.Error)
		}
		return errors.New("control request failed")
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("re-encode response data: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
