package syncengine

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/couchsync/server/internal/domain"
)

type Role int

const (
	RoleGuest Role = iota
	RoleHost
)

// MediaSurface is the black-box local player the engine drives. Its
// callbacks (play, pause, seek, ready, ...) are wired back into the engine's
// OnLocal* methods by the embedding UI.
//
// Callbacks must not be delivered synchronously from within Play, Pause or
// SeekTo: the engine calls those while holding its own lock, and a
// re-entrant OnLocal* call would deadlock. Real surfaces fire callbacks
// from their own event loop, which satisfies this.
type MediaSurface interface {
	Play()
	Pause()
	SeekTo(seconds float64)
	GetState() domain.SyncState
}

// Sender carries engine-originated protocol messages to the server.
type Sender interface {
	SendControl(ctx context.Context, control domain.Control) error
	RequestResync(ctx context.Context) error
	// SendSyncState with an empty target broadcasts to all non-host members.
	SendSyncState(ctx context.Context, state domain.SyncState, targetConnectionId string) error
}

// Engine reconciles a local media surface with the host/guest role and the
// inbound synchronization messages.
//
// Host: locally-originated play/pause/seek events are forwarded as control
// messages and inbound controls are ignored, the local surface is the
// source of truth. Guest: local interactions are suppressed and the surface
// is a puppet driven by video_controlled and apply_sync_state.
type Engine struct {
	surface     MediaSurface
	sender      Sender
	logger      *slog.Logger
	settleDelay time.Duration

	mu          sync.Mutex
	role        Role
	video       *domain.VideoDescriptor
	placeholder bool
	applying    bool
	settleTimer *time.Timer

	// virtual clock for placeholder mode, display only
	clockTime      float64
	clockPlaying   bool
	clockDuration  float64
	clockUpdatedAt time.Time
}

type Config struct {
	Role Role
	// SettleDelay is the pause between seeking and re-asserting the
	// play/pause state, covering surfaces that auto-pause on seek.
	SettleDelay time.Duration
}

const defaultSettleDelay = 300 * time.Millisecond

func New(surface MediaSurface, sender Sender, cfg *Config, logger *slog.Logger) *Engine {
	settleDelay := cfg.SettleDelay
	if settleDelay <= 0 {
		settleDelay = defaultSettleDelay
	}

	return &Engine{
		surface:     surface,
		sender:      sender,
		logger:      logger,
		settleDelay: settleDelay,
		role:        cfg.Role,
	}
}

func (e *Engine) Role() Role {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.role
}

// PromoteToHost switches the engine's role in place; the surface's current
// state becomes authoritative from here on.
func (e *Engine) PromoteToHost() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.role = RoleHost
	e.stopSettleTimer()
}

// Transportable reports whether a video reference can be resolved on a
// machine other than the one that produced it. Blob handles and the like
// only make sense locally; public URLs travel.
func Transportable(videoRef string) bool {
	u, err := url.Parse(videoRef)
	if err != nil {
		return false
	}

	return u.Scheme == "http" || u.Scheme == "https"
}
