package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ulrichando/ParentShield/internal/domain"
	"github.com/ulrichando/ParentShield/internal/infra"
	"github.com/ulrichando/ParentShield/internal/ipc"
)

// ErrActivityDisabled is returned for GetActivity when no history is kept.
var ErrActivityDisabled = errors.New("activity history is disabled")

// Handler turns control requests into responses.
type Handler struct {
	enforcer domain.Enforcer
	store    domain.ConfigStore
	activity domain.ActivityLog
	state    *State
	now      func() time.Time
	logger   *zap.Logger

	// updateMu serializes load-modify-save cycles of UpdateConfig.
	updateMu sync.Mutex
}

// NewHandler creates a request handler. activity may be nil.
func NewHandler(
	enforcer domain.Enforcer,
	store domain.ConfigStore,
	activity domain.ActivityLog,
	state *State,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		enforcer: enforcer,
		store:    store,
		activity: activity,
		state:    state,
		now:      time.Now,
		logger:   logger,
	}
}

// Handle processes one request. Failures become Error responses.
func (h *Handler) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	h.logger.Debug("handling request", zap.String("type", string(req.Type)))

	switch req.Type {
	case ipc.RequestPing:
		return ipc.Response{Type: ipc.ResponsePong}

	case ipc.RequestGetStatus:
		st, err := h.status()
		if err != nil {
			return h.fail(req, err)
		}
		return ipc.Response{Type: ipc.ResponseStatus, Status: st}

	case ipc.RequestUpdateConfig:
		if err := h.updateConfig(ctx, req.Update()); err != nil {
			return h.fail(req, err)
		}
		return ipc.OkResponse()

	case ipc.RequestRunBlockingCheck:
		procs, err := h.enforcer.RunBlockingCheck(ctx)
		if err != nil {
			return h.fail(req, err)
		}
		h.state.AddBlocked(len(procs))
		return ipc.BlockedProcessesResponse(procs)

	case ipc.RequestApplyBlocking:
		if _, err := h.enforcer.ApplyBlocking(ctx); err != nil {
			return h.fail(req, err)
		}
		return ipc.OkResponse()

	case ipc.RequestEnableFirewall, ipc.RequestDisableFirewall:
		if err := h.enforcer.SetFirewall(ctx, req.Type == ipc.RequestEnableFirewall); err != nil {
			return h.fail(req, err)
		}
		return ipc.OkResponse()

	case ipc.RequestShutdown:
		h.logger.Info("shutdown requested")
		h.state.Stop()
		return ipc.OkResponse()

	case ipc.RequestGetActivity:
		if h.activity == nil {
			return h.fail(req, ErrActivityDisabled)
		}
		events, err := h.activity.Recent(infra.ClampActivityLimit(req.Limit))
		if err != nil {
			return h.fail(req, err)
		}
		return ipc.Response{Type: ipc.ResponseActivity, Events: events}
	}

	return h.fail(req, fmt.Errorf("%w: unknown request type %q", domain.ErrMalformedMessage, req.Type))
}

func (h *Handler) status() (*ipc.Status, error) {
	cfg, err := h.store.Load()
	if err != nil {
		return nil, err
	}
	return &ipc.Status{
		Running:         h.state.Running(),
		BlockingActive:  h.enforcer.BlockingActive(cfg),
		GameBlocking:    cfg.GameBlocking,
		AIBlocking:      cfg.AIBlocking,
		DNSBlocking:     cfg.DNSBlocking,
		BrowserBlocking: cfg.BrowserBlocking,
		FirewallActive:  h.enforcer.FirewallActive(),
		BlockedCount:    h.state.BlockedCount(),
		UptimeSecs:      h.state.Uptime(h.now()),
	}, nil
}

// updateConfig writes the toggles through to the store, then re-applies
// blocking so a successful response means enforcement is current.
func (h *Handler) updateConfig(ctx context.Context, u ipc.ConfigUpdate) error {
	h.updateMu.Lock()
	defer h.updateMu.Unlock()

	cfg, err := h.store.Load()
	if err != nil {
		return err
	}
	u.Apply(cfg)
	if err := h.store.Save(cfg); err != nil {
		return err
	}
	h.logger.Info("config updated",
		zap.Bool("game", cfg.GameBlocking),
		zap.Bool("ai", cfg.AIBlocking),
		zap.Bool("dns", cfg.DNSBlocking),
		zap.Bool("browser", cfg.BrowserBlocking))

	if _, err := h.enforcer.ApplyBlocking(ctx); err != nil {
		return fmt.Errorf("config saved but blocking not applied: %w", err)
	}
	return nil
}

func (h *Handler) fail(req ipc.Request, err error) ipc.Response {
	h.logger.Warn("request failed", zap.String("type", string(req.Type)), zap.Error(err))
	return ipc.ErrorResponse(err)
}
