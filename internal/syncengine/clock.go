package syncengine

import (
	"time"

	"github.com/couchsync/server/internal/domain"
)

func (e *Engine) resetClockLocked(seconds float64, playing bool, duration float64) {
	e.clockTime = seconds
	e.clockPlaying = playing
	if duration > 0 {
		e.clockDuration = duration
	}
	e.clockUpdatedAt = time.Now()
}

func (e *Engine) applyControlToClockLocked(control domain.Control) {
	elapsed := e.elapsedClockTimeLocked()

	switch control.Type {
	case domain.ControlPlay:
		if control.Time != nil {
			elapsed = *control.Time
		}
		e.clockTime = elapsed
		e.clockPlaying = true
	case domain.ControlPause:
		e.clockTime = elapsed
		e.clockPlaying = false
	case domain.ControlSeek:
		if control.Time != nil {
			e.clockTime = *control.Time
		}
	}
	e.clockUpdatedAt = time.Now()
}

func (e *Engine) elapsedClockTimeLocked() float64 {
	if !e.clockPlaying {
		return e.clockTime
	}

	return e.clockTime + time.Since(e.clockUpdatedAt).Seconds()
}

// State reports the playback descriptor for display. In placeholder mode it
// extrapolates the virtual clock; otherwise it samples the surface.
func (e *Engine) State() domain.SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.placeholder {
		return domain.SyncState{
			Time:     e.elapsedClockTimeLocked(),
			Playing:  e.clockPlaying,
			Duration: e.clockDuration,
		}
	}

	return e.surface.GetState()
}

// Placeholder reports whether the current video cannot be loaded locally
// and the engine is only tracking elapsed time for the UI.
func (e *Engine) Placeholder() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.placeholder
}
