// Package ipc defines the local control protocol between the CLI and the
// daemon: message types, framing and a client.
package ipc

import "github.com/ulrichando/ParentShield/internal/domain"

// RequestType identifies a control request.
type RequestType string

const (
	RequestPing             RequestType = "ping"
	RequestGetStatus        RequestType = "get_status"
	RequestUpdateConfig     RequestType = "update_config"
	RequestRunBlockingCheck RequestType = "run_blocking_check"
	RequestApplyBlocking    RequestType = "apply_blocking"
	RequestEnableFirewall   RequestType = "enable_firewall"
	RequestDisableFirewall  RequestType = "disable_firewall"
	RequestShutdown         RequestType = "shutdown"
	RequestGetActivity      RequestType = "get_activity"
)

// ResponseType identifies a control response.
type ResponseType string

const (
	ResponsePong             ResponseType = "pong"
	ResponseStatus           ResponseType = "status"
	ResponseOk               ResponseType = "ok"
	ResponseBlockedProcesses ResponseType = "blocked_processes"
	ResponseActivity         ResponseType = "activity"
	ResponseError            ResponseType = "error"
)

// Request is a tagged union over every request variant. Only the fields of
// the variant named by Type are meaningful.
type Request struct {
	Type RequestType `json:"type"`

	// UpdateConfig: a nil toggle leaves the stored value unchanged.
	GameBlocking    *bool `json:"game_blocking,omitempty"`
	AIBlocking      *bool `json:"ai_blocking,omitempty"`
	DNSBlocking     *bool `json:"dns_blocking,omitempty"`
	BrowserBlocking *bool `json:"browser_blocking,omitempty"`

	// GetActivity
	Limit int `json:"limit,omitempty"`
}

// ConfigUpdate carries the optional toggles of an UpdateConfig request.
type ConfigUpdate struct {
	GameBlocking    *bool
	AIBlocking      *bool
	DNSBlocking     *bool
	BrowserBlocking *bool
}

// Empty reports whether no toggle is set.
func (u ConfigUpdate) Empty() bool {
	return u.GameBlocking == nil && u.AIBlocking == nil && u.DNSBlocking == nil && u.BrowserBlocking == nil
}

// Apply copies the set toggles onto cfg.
func (u ConfigUpdate) Apply(cfg *domain.AppConfig) {
	if u.GameBlocking != nil {
		cfg.GameBlocking = *u.GameBlocking
	}
	if u.AIBlocking != nil {
		cfg.AIBlocking = *u.AIBlocking
	}
	if u.DNSBlocking != nil {
		cfg.DNSBlocking = *u.DNSBlocking
	}
	if u.BrowserBlocking != nil {
		cfg.BrowserBlocking = *u.BrowserBlocking
	}
}

// NewUpdateConfigRequest builds an UpdateConfig request.
func NewUpdateConfigRequest(u ConfigUpdate) Request {
	return Request{
		Type:            RequestUpdateConfig,
		GameBlocking:    u.GameBlocking,
		AIBlocking:      u.AIBlocking,
		DNSBlocking:     u.DNSBlocking,
		BrowserBlocking: u.BrowserBlocking,
	}
}

// Update extracts the toggles of an UpdateConfig request.
func (r Request) Update() ConfigUpdate {
	return ConfigUpdate{
		GameBlocking:    r.GameBlocking,
		AIBlocking:      r.AIBlocking,
		DNSBlocking:     r.DNSBlocking,
		BrowserBlocking: r.BrowserBlocking,
	}
}

// Status is the daemon's self-report.
type Status struct {
	Running         bool   `json:"running"`
	BlockingActive  bool   `json:"blocking_active"`
	GameBlocking    bool   `json:"game_blocking"`
	AIBlocking      bool   `json:"ai_blocking"`
	DNSBlocking     bool   `json:"dns_blocking"`
	BrowserBlocking bool   `json:"browser_blocking"`
	FirewallActive  bool   `json:"firewall_active"`
	BlockedCount    uint64 `json:"blocked_count"`
	UptimeSecs      uint64 `json:"uptime_secs"`
}

// BlockedProcess is one process terminated by a blocking check.
type BlockedProcess struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`
}

// Response is a tagged union over every response variant.
type Response struct {
	Type ResponseType `json:"type"`

	Status    *Status                `json:"status,omitempty"`
	Processes []BlockedProcess       `json:"processes,omitempty"`
	Events    []domain.ActivityEvent `json:"events,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// OkResponse returns an Ok response.
func OkResponse() Response {
	return Response{Type: ResponseOk}
}

// ErrorResponse returns an Error response carrying err's message.
func ErrorResponse(err error) Response {
	return Response{Type: ResponseError, Message: err.Error()}
}

// BlockedProcessesResponse converts terminated processes to a response.
func BlockedProcessesResponse(procs []domain.ProcessInfo) Response {
	out := make([]BlockedProcess, 0, len(procs))
	for _, p := range procs {
		out = append(out, BlockedProcess{PID: p.PID, Name: p.Name})
	}
	return Response{Type: ResponseBlockedProcesses, Processes: out}
}
