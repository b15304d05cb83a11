package ipc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// DefaultClientTimeout bounds one request/response round trip. It exceeds
// the time a blocking check or an UpdateConfig re-apply normally takes.
const DefaultClientTimeout = 30 * time.Second

// RemoteError is an Error response returned by the daemon.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "daemon: " + e.Message
}

// Client talks to the daemon, opening one connection per call.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: DefaultClientTimeout}
}

// WithTimeout sets the per-call timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// SocketPath returns the daemon socket path.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// Call sends req and waits for the response. Error responses are returned
// as *RemoteError.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDaemonUnavailable, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := WriteMessage(conn, req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Type, err)
	}

	var resp Response
	if err := ReadMessage(conn, &resp); err != nil {
		return nil, fmt.Errorf("receive %s: %w", req.Type, err)
	}
	if resp.Type == ResponseError {
		return nil, &RemoteError{Message: resp.Message}
	}
	return &resp, nil
}

func (c *Client) expect(ctx context.Context, req Request, want ResponseType) (*Response, error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Type != want {
		return nil, fmt.Errorf("%w: expected %s response to %s, got %s",
			domain.ErrMalformedMessage, want, req.Type, resp.Type)
	}
	return resp, nil
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.expect(ctx, Request{Type: RequestPing}, ResponsePong)
	return err
}

// IsDaemonRunning reports whether a daemon answers a Ping.
func (c *Client) IsDaemonRunning(ctx context.Context) bool {
	return c.Ping(ctx) == nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	resp, err := c.expect(ctx, Request{Type: RequestGetStatus}, ResponseStatus)
	if err != nil {
		return nil, err
	}
	if resp.Status == nil {
		return nil, fmt.Errorf("%w: status response without body", domain.ErrMalformedMessage)
	}
	return resp.Status, nil
}

// UpdateConfig changes feature toggles. The daemon re-applies enforcement
// before it answers.
func (c *Client) UpdateConfig(ctx context.Context, u ConfigUpdate) error {
	_, err := c.expect(ctx, NewUpdateConfigRequest(u), ResponseOk)
	return err
}

// RunBlockingCheck terminates blocked processes now and returns them.
func (c *Client) RunBlockingCheck(ctx context.Context) ([]BlockedProcess, error) {
	resp, err := c.expect(ctx, Request{Type: RequestRunBlockingCheck}, ResponseBlockedProcesses)
	if err != nil {
		return nil, err
	}
	return resp.Processes, nil
}

// ApplyBlocking re-applies hosts-file and firewall state.
func (c *Client) ApplyBlocking(ctx context.Context) error {
	_, err := c.expect(ctx, Request{Type: RequestApplyBlocking}, ResponseOk)
	return err
}

// EnableFirewall installs DoH suppression.
func (c *Client) EnableFirewall(ctx context.Context) error {
	_, err := c.expect(ctx, Request{Type: RequestEnableFirewall}, ResponseOk)
	return err
}

// DisableFirewall removes DoH suppression.
func (c *Client) DisableFirewall(ctx context.Context) error {
	_, err := c.expect(ctx, Request{Type: RequestDisableFirewall}, ResponseOk)
	return err
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.expect(ctx, Request{Type: RequestShutdown}, ResponseOk)
	return err
}

// Activity returns up to limit recent enforcement events, newest first.
func (c *Client) Activity(ctx context.Context, limit int) ([]domain.ActivityEvent, error) {
	resp, err := c.expect(ctx, Request{Type: RequestGetActivity, Limit: limit}, ResponseActivity)
	if err != nil {
		return nil, err
	}
	return resp.Events, nil
}
