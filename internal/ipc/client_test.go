package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// shortSocketPath keeps the path under the sun_path limit on macOS.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "psipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "d.sock")
}

// fakeDaemon answers each request with handler's response.
type fakeDaemon struct {
	ln       net.Listener
	mu       sync.Mutex
	requests []Request
	handler  func(Request) Response
}

func startFakeDaemon(t *testing.T, handler func(Request) Response) (*fakeDaemon, string) {
	t.Helper()
	path := shortSocketPath(t)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)

	d := &fakeDaemon{ln: ln, handler: handler}
	go d.serve()
	t.Cleanup(func() { ln.Close() })
	return d, path
}

func (d *fakeDaemon) serve() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			for {
				var req Request
				if err := ReadMessage(c, &req); err != nil {
					return
				}
				d.mu.Lock()
				d.requests = append(d.requests, req)
				d.mu.Unlock()
				if err := WriteMessage(c, d.handler(req)); err != nil {
					return
				}
			}
		}(conn)
	}
}

func (d *fakeDaemon) last() Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests[len(d.requests)-1]
}

func TestClient_RoundTrips(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, path := startFakeDaemon(t, func(req Request) Response {
		switch req.Type {
		case RequestPing:
			return Response{Type: ResponsePong}
		case RequestGetStatus:
			return Response{Type: ResponseStatus, Status: &Status{Running: true, GameBlocking: true, BlockedCount: 2}}
		case RequestRunBlockingCheck:
			return Response{Type: ResponseBlockedProcesses, Processes: []BlockedProcess{{PID: 9, Name: "steam"}}}
		case RequestGetActivity:
			return Response{Type: ResponseActivity, Events: []domain.ActivityEvent{{ID: 1, Kind: domain.ActivityProcessTerminated, Target: "steam", Timestamp: now}}}
		default:
			return OkResponse()
		}
	})
	c := NewClient(path).WithTimeout(2 * time.Second)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	assert.True(t, c.IsDaemonRunning(ctx))

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.True(t, st.GameBlocking)
	assert.Equal(t, uint64(2), st.BlockedCount)

	require.NoError(t, c.UpdateConfig(ctx, ConfigUpdate{AIBlocking: boolPtr(true)}))
	last := d.last()
	assert.Equal(t, RequestUpdateConfig, last.Type)
	require.NotNil(t, last.AIBlocking)
	assert.True(t, *last.AIBlocking)
	assert.Nil(t, last.GameBlocking)

	procs, err := c.RunBlockingCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, []BlockedProcess{{PID: 9, Name: "steam"}}, procs)

	events, err := c.Activity(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "steam", events[0].Target)
	assert.True(t, now.Equal(events[0].Timestamp))
	assert.Equal(t, 5, d.last().Limit)

	require.NoError(t, c.ApplyBlocking(ctx))
	require.NoError(t, c.EnableFirewall(ctx))
	require.NoError(t, c.DisableFirewall(ctx))
	require.NoError(t, c.Shutdown(ctx))
	assert.Equal(t, RequestShutdown, d.last().Type)
}

func TestClient_RemoteError(t *testing.T) {
	_, path := startFakeDaemon(t, func(Request) Response {
		return ErrorResponse(errors.New("config not initialized"))
	})
	c := NewClient(path)

	err := c.ApplyBlocking(context.Background())
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "config not initialized", remote.Message)
}

func TestClient_UnexpectedResponseType(t *testing.T) {
	_, path := startFakeDaemon(t, func(Request) Response { return OkResponse() })
	c := NewClient(path)

	_, err := c.Status(context.Background())
	assert.ErrorIs(t, err, domain.ErrMalformedMessage)
}

func TestClient_DaemonUnavailable(t *testing.T) {
	c := NewClient(shortSocketPath(t)).WithTimeout(time.Second)

	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrDaemonUnavailable)
	assert.False(t, c.IsDaemonRunning(context.Background()))
}

func TestClient_Timeout(t *testing.T) {
	path := shortSocketPath(t)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second)
	}()

	c := NewClient(path).WithTimeout(200 * time.Millisecond)
	start := time.Now()
	err = c.Ping(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}
