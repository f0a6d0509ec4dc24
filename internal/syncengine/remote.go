package syncengine

import (
	"context"
	"time"

	"github.com/couchsync/server/internal/domain"
)

// HandleVideoSelected installs a new video descriptor. A non-transportable
// reference puts the engine in placeholder mode: the surface is left alone
// and a virtual clock tracks time/playing for display only.
func (e *Engine) HandleVideoSelected(ctx context.Context, video domain.VideoDescriptor) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := video
	e.video = &v
	e.placeholder = e.role == RoleGuest && !Transportable(video.VideoRef)
	e.stopSettleTimer()
	e.resetClockLocked(0, false, 0)

	if e.placeholder {
		e.logger.InfoContext(ctx, "video reference is not transportable, tracking controls only",
			"file_name", video.FileName)
	}
}

// HandleControl applies a host-originated control event. The host ignores
// inbound controls; it is the source of them.
func (e *Engine) HandleControl(ctx context.Context, control domain.Control) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.role == RoleHost {
		return
	}

	if e.placeholder {
		e.applyControlToClockLocked(control)
		return
	}

	e.applying = true
	defer func() { e.applying = false }()

	switch control.Type {
	case domain.ControlPlay:
		if control.Time != nil {
			e.surface.SeekTo(*control.Time)
		}
		e.surface.Play()
	case domain.ControlPause:
		e.surface.Pause()
	case domain.ControlSeek:
		if control.Time != nil {
			e.surface.SeekTo(*control.Time)
		}
	}
}

// HandleApplySyncState applies the host's authoritative descriptor in two
// phases: seek first, then re-assert the play/pause state after a settling
// delay, because some surfaces auto-pause internally upon seek.
func (e *Engine) HandleApplySyncState(ctx context.Context, state domain.SyncState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.role == RoleHost {
		return
	}

	if e.placeholder {
		e.resetClockLocked(state.Time, state.Playing, state.Duration)
		return
	}

	e.applying = true
	e.surface.SeekTo(state.Time)
	e.applying = false

	e.stopSettleTimer()
	e.settleTimer = time.AfterFunc(e.settleDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		if e.role == RoleHost {
			return
		}

		e.applying = true
		defer func() { e.applying = false }()

		if state.Playing {
			e.surface.Play()
		} else {
			e.surface.Pause()
		}
	})
}

// HandleProvideSyncState answers a guest's resync request with the host's
// current surface state.
func (e *Engine) HandleProvideSyncState(ctx context.Context, requesterConnectionId string) {
	e.mu.Lock()
	isHost := e.role == RoleHost
	e.mu.Unlock()

	if !isHost {
		return
	}

	state := e.surface.GetState()
	if err := e.sender.SendSyncState(ctx, state, requesterConnectionId); err != nil {
		e.logger.InfoContext(ctx, "failed to send sync state", "error", err)
	}
}

func (e *Engine) stopSettleTimer() {
	if e.settleTimer != nil {
		e.settleTimer.Stop()
		e.settleTimer = nil
	}
}
