package syncengine

import (
	"context"

	"github.com/couchsync/server/internal/domain"
)

// OnLocalPlay handles the surface's play callback.
func (e *Engine) OnLocalPlay(ctx context.Context) {
	e.sendControl(ctx, domain.Control{Type: domain.ControlPlay})
}

// OnLocalPause handles the surface's pause callback.
func (e *Engine) OnLocalPause(ctx context.Context) {
	e.sendControl(ctx, domain.Control{Type: domain.ControlPause})
}

// OnLocalSeek handles a user-initiated seek on the surface.
func (e *Engine) OnLocalSeek(ctx context.Context, seconds float64) {
	e.sendControl(ctx, domain.Control{Type: domain.ControlSeek, Time: &seconds})
}

// sendControl forwards a locally-originated event if the local surface is
// authoritative. Guests never emit controls, and events fired by the engine
// applying a remote control are suppressed to avoid a feedback loop.
func (e *Engine) sendControl(ctx context.Context, control domain.Control) {
	e.mu.Lock()
	if e.role != RoleHost || e.applying {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if err := e.sender.SendControl(ctx, control); err != nil {
		e.logger.InfoContext(ctx, "failed to send control", "type", control.Type, "error", err)
	}
}

// OnReady handles the surface reporting it can play the current video. A
// guest pulls authoritative state instead of waiting for a push, closing
// the race between video_selected and the host's current position.
func (e *Engine) OnReady(ctx context.Context) {
	e.mu.Lock()
	isGuest := e.role == RoleGuest
	e.mu.Unlock()

	if !isGuest {
		return
	}

	if err := e.sender.RequestResync(ctx); err != nil {
		e.logger.InfoContext(ctx, "failed to request resync", "error", err)
	}
}

// OnError handles a local playback failure. It stays local: other
// participants' sessions are unaffected.
func (e *Engine) OnError(ctx context.Context, err error) {
	e.logger.WarnContext(ctx, "media surface error", "error", err)
}
