package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchsync/server/internal/domain"
)

type fakeSurface struct {
	mu     sync.Mutex
	plays  int
	pauses int
	seeks  []float64
	state  domain.SyncState
}

func (f *fakeSurface) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
}

func (f *fakeSurface) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeSurface) SeekTo(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
}

func (f *fakeSurface) GetState() domain.SyncState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSurface) snapshot() (plays, pauses int, seeks []float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays, f.pauses, append([]float64(nil), f.seeks...)
}

type sentState struct {
	state  domain.SyncState
	target string
}

type fakeSender struct {
	mu       sync.Mutex
	controls []domain.Control
	resyncs  int
	states   []sentState
}

func (f *fakeSender) SendControl(ctx context.Context, control domain.Control) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, control)
	return nil
}

func (f *fakeSender) RequestResync(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resyncs++
	return nil
}

func (f *fakeSender) SendSyncState(ctx context.Context, state domain.SyncState, targetConnectionId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, sentState{state: state, target: targetConnectionId})
	return nil
}

func newTestEngine(role Role) (*Engine, *fakeSurface, *fakeSender) {
	surface := &fakeSurface{}
	sender := &fakeSender{}
	engine := New(surface, sender, &Config{Role: role, SettleDelay: 10 * time.Millisecond}, slog.Default())

	return engine, surface, sender
}

func TestHostForwardsLocalEvents(t *testing.T) {
	engine, _, sender := newTestEngine(RoleHost)
	ctx := context.Background()

	engine.OnLocalPlay(ctx)
	engine.OnLocalPause(ctx)
	engine.OnLocalSeek(ctx, 120)

	require.Len(t, sender.controls, 3)
	assert.Equal(t, domain.ControlPlay, sender.controls[0].Type)
	assert.Equal(t, domain.ControlPause, sender.controls[1].Type)
	assert.Equal(t, domain.ControlSeek, sender.controls[2].Type)
	require.NotNil(t, sender.controls[2].Time)
	assert.Equal(t, float64(120), *sender.controls[2].Time)
}

func TestGuestSuppressesLocalEvents(t *testing.T) {
	engine, _, sender := newTestEngine(RoleGuest)
	ctx := context.Background()

	engine.OnLocalPlay(ctx)
	engine.OnLocalPause(ctx)
	engine.OnLocalSeek(ctx, 5)

	assert.Empty(t, sender.controls, "guest interactions must never reach the room")
}

func TestGuestAppliesControls(t *testing.T) {
	engine, surface, _ := newTestEngine(RoleGuest)
	ctx := context.Background()

	at := 12.5
	engine.HandleControl(ctx, domain.Control{Type: domain.ControlPlay, Time: &at})
	engine.HandleControl(ctx, domain.Control{Type: domain.ControlPause})
	engine.HandleControl(ctx, domain.Control{Type: domain.ControlSeek, Time: &at})

	plays, pauses, seeks := surface.snapshot()
	assert.Equal(t, 1, plays)
	assert.Equal(t, 1, pauses)
	assert.Equal(t, []float64{12.5, 12.5}, seeks)
}

func TestHostIgnoresInboundControls(t *testing.T) {
	engine, surface, _ := newTestEngine(RoleHost)

	engine.HandleControl(context.Background(), domain.Control{Type: domain.ControlPlay})

	plays, pauses, seeks := surface.snapshot()
	assert.Zero(t, plays)
	assert.Zero(t, pauses)
	assert.Empty(t, seeks)
}

func TestTwoPhaseApply(t *testing.T) {
	engine, surface, _ := newTestEngine(RoleGuest)
	ctx := context.Background()

	engine.HandleApplySyncState(ctx, domain.SyncState{Time: 42.5, Playing: true, Duration: 3600})

	plays, _, seeks := surface.snapshot()
	assert.Equal(t, []float64{42.5}, seeks, "seek must happen first")
	assert.Zero(t, plays, "play must wait for the settle delay")

	assert.Eventually(t, func() bool {
		plays, _, _ := surface.snapshot()
		return plays == 1
	}, time.Second, 5*time.Millisecond, "play must be re-asserted after settling")
}

func TestTwoPhaseApplyPaused(t *testing.T) {
	engine, surface, _ := newTestEngine(RoleGuest)

	engine.HandleApplySyncState(context.Background(), domain.SyncState{Time: 10, Playing: false})

	assert.Eventually(t, func() bool {
		_, pauses, _ := surface.snapshot()
		return pauses == 1
	}, time.Second, 5*time.Millisecond, "pause must be re-asserted after settling")
}

func TestPromotionCancelsSettle(t *testing.T) {
	engine, surface, _ := newTestEngine(RoleGuest)

	engine.HandleApplySyncState(context.Background(), domain.SyncState{Time: 10, Playing: true})
	engine.PromoteToHost()

	time.Sleep(100 * time.Millisecond)

	plays, _, _ := surface.snapshot()
	assert.Zero(t, plays, "a promoted host must not be driven by a stale settle phase")
	assert.Equal(t, RoleHost, engine.Role())
}

func TestOnReadyRequestsResync(t *testing.T) {
	ctx := context.Background()

	guest, _, guestSender := newTestEngine(RoleGuest)
	guest.OnReady(ctx)
	assert.Equal(t, 1, guestSender.resyncs)

	host, _, hostSender := newTestEngine(RoleHost)
	host.OnReady(ctx)
	assert.Zero(t, hostSender.resyncs, "the host has nothing to pull")
}

func TestProvideSyncState(t *testing.T) {
	ctx := context.Background()

	host, surface, sender := newTestEngine(RoleHost)
	surface.state = domain.SyncState{Time: 77, Playing: true, Duration: 3600}

	host.HandleProvideSyncState(ctx, "conn-b")
	require.Len(t, sender.states, 1)
	assert.Equal(t, "conn-b", sender.states[0].target)
	assert.Equal(t, float64(77), sender.states[0].state.Time)

	guest, _, guestSender := newTestEngine(RoleGuest)
	guest.HandleProvideSyncState(ctx, "conn-b")
	assert.Empty(t, guestSender.states, "only the host answers resync requests")
}

func TestPlaceholderMode(t *testing.T) {
	engine, surface, _ := newTestEngine(RoleGuest)
	ctx := context.Background()

	engine.HandleVideoSelected(ctx, domain.VideoDescriptor{
		VideoRef: "blob:http://localhost/3f2a",
		FileName: "clip.mp4",
	})
	require.True(t, engine.Placeholder())

	engine.HandleControl(ctx, domain.Control{Type: domain.ControlPlay})

	plays, pauses, seeks := surface.snapshot()
	assert.Zero(t, plays, "placeholder mode must not drive the surface")
	assert.Zero(t, pauses)
	assert.Empty(t, seeks)

	time.Sleep(30 * time.Millisecond)

	state := engine.State()
	assert.True(t, state.Playing)
	assert.Greater(t, state.Time, float64(0), "virtual clock must advance while playing")

	engine.HandleControl(ctx, domain.Control{Type: domain.ControlPause})
	paused := engine.State()
	assert.False(t, paused.Playing)

	at := 300.0
	engine.HandleControl(ctx, domain.Control{Type: domain.ControlSeek, Time: &at})
	assert.Equal(t, float64(300), engine.State().Time)

	engine.HandleApplySyncState(ctx, domain.SyncState{Time: 50, Playing: false, Duration: 3600})
	synced := engine.State()
	assert.Equal(t, float64(50), synced.Time)
	assert.Equal(t, float64(3600), synced.Duration)
}

func TestTransportableVideoDisablesPlaceholder(t *testing.T) {
	engine, _, _ := newTestEngine(RoleGuest)

	engine.HandleVideoSelected(context.Background(), domain.VideoDescriptor{
		VideoRef: "https://example.com/clip.mp4",
		FileName: "clip.mp4",
	})
	assert.False(t, engine.Placeholder())
}

func TestTransportable(t *testing.T) {
	assert.True(t, Transportable("http://example.com/v.mp4"))
	assert.True(t, Transportable("https://example.com/v.mp4"))
	assert.False(t, Transportable("blob:http://localhost/3f2a"))
	assert.False(t, Transportable("file:///home/user/v.mp4"))
	assert.False(t, Transportable("v.mp4"))
}
