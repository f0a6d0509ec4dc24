package room

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchsync/server/internal/domain"
	"github.com/couchsync/server/internal/registry"
	"github.com/couchsync/server/internal/repository/connection/inmemory"
	roomRedis "github.com/couchsync/server/internal/repository/room/redis"
)

func newTestService(t *testing.T) (*service, *miniredis.Miniredis) {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	store := roomRedis.NewRepo(rc, time.Hour, slog.Default())
	reg := registry.New(store, slog.Default())
	connRepo := inmemory.NewRepo(slog.Default())

	return NewService(reg, connRepo, &Config{MembersLimit: 2}, slog.Default()), s
}

func connect(t *testing.T, s *service, connectionId string) *websocket.Conn {
	t.Helper()

	conn := &websocket.Conn{}
	require.NoError(t, s.ConnectMember(context.Background(), &ConnectMemberParams{
		Conn:         conn,
		ConnectionId: connectionId,
	}))

	return conn
}

func seconds(v float64) *float64 {
	return &v
}

func TestWatchTogetherFlow(t *testing.T) {
	service, mr := newTestService(t)
	ctx := context.Background()

	connA := connect(t, service, "conn-a")
	connB := connect(t, service, "conn-b")

	// A joins a room that does not exist yet and becomes host
	joinAResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "alice",
	})
	require.NoError(t, err)
	assert.True(t, joinAResp.IsHost, "creator must be host")
	assert.Len(t, joinAResp.Users, 1)
	assert.Nil(t, joinAResp.CurrentVideo)
	assert.Empty(t, joinAResp.OtherConns)
	t.Log("room created")

	// B joins with the correct password and becomes guest
	joinBResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "bob",
	})
	require.NoError(t, err)
	assert.False(t, joinBResp.IsHost, "second member must be guest")
	assert.Len(t, joinBResp.Users, 2)
	require.Len(t, joinBResp.OtherConns, 1)
	assert.Same(t, connA, joinBResp.OtherConns[0])
	t.Log("guest joined")

	// host selects a video, everyone is notified
	selectResp, err := service.SelectVideo(ctx, &SelectVideoParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
		VideoRef:     "blob:http://localhost/3f2a",
		FileName:     "clip.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", selectResp.Video.FileName)
	assert.Len(t, selectResp.Conns, 2)
	t.Log("video selected")

	// host control goes to the other member only, never echoed back
	controlResp, err := service.ControlPlayback(ctx, &ControlPlaybackParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
		Type:         domain.ControlPlay,
		Time:         seconds(0),
	})
	require.NoError(t, err)
	require.Len(t, controlResp.Conns, 1)
	assert.Same(t, connB, controlResp.Conns[0])
	t.Log("control relayed")

	// guest pulls authoritative state from the host
	resyncResp, err := service.RequestResync(ctx, &RequestResyncParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
	})
	require.NoError(t, err)
	assert.Same(t, connA, resyncResp.HostConn)
	assert.Equal(t, "conn-b", resyncResp.RequesterConnectionId)

	// host answers the requester only
	target := "conn-b"
	syncResp, err := service.SyncStateUpdate(ctx, &SyncStateUpdateParams{
		ConnectionId:       "conn-a",
		RoomId:             "movie-night",
		State:              domain.SyncState{Time: 42.5, Playing: true, Duration: 3600},
		TargetConnectionId: &target,
	})
	require.NoError(t, err)
	require.Len(t, syncResp.Conns, 1)
	assert.Same(t, connB, syncResp.Conns[0])
	t.Log("resync answered")

	// host leaves, B inherits the room
	disconnectAResp, err := service.DisconnectMember(ctx, &DisconnectMemberParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
	})
	require.NoError(t, err)
	assert.False(t, disconnectAResp.IsRoomDeleted)
	assert.Len(t, disconnectAResp.Users, 1)
	require.NotNil(t, disconnectAResp.NewHost)
	assert.Equal(t, "conn-b", disconnectAResp.NewHost.ConnectionId)
	assert.Equal(t, "bob", disconnectAResp.NewHost.Username)
	t.Log("host reassigned")

	// last member leaves, room is gone from cache and store
	disconnectBResp, err := service.DisconnectMember(ctx, &DisconnectMemberParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
	})
	require.NoError(t, err)
	assert.True(t, disconnectBResp.IsRoomDeleted)
	assert.Empty(t, mr.Keys(), "durable record must be deleted")
	t.Log("room deleted")

	// the same room id can be recreated with a different password
	connect(t, service, "conn-c")
	rejoinResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-c",
		RoomId:       "movie-night",
		Password:     "new-password",
		Username:     "carol",
	})
	require.NoError(t, err)
	assert.True(t, rejoinResp.IsHost, "recreated room must have a fresh host")

	// a join against the recreated room with the old password is rejected
	connect(t, service, "conn-d")
	_, err = service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-d",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "dave",
	})
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestJoinRoomInvalidPassword(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	connect(t, service, "conn-a")
	connect(t, service, "conn-b")

	_, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "alice",
	})
	require.NoError(t, err)

	_, err = service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		Password:     "wrong",
		Username:     "bob",
	})
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestJoinRoomFull(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	for _, m := range []struct{ connectionId, username string }{
		{"conn-a", "alice"},
		{"conn-b", "bob"},
	} {
		connect(t, service, m.connectionId)
		_, err := service.JoinRoom(ctx, &JoinRoomParams{
			ConnectionId: m.connectionId,
			RoomId:       "movie-night",
			Password:     "abcd",
			Username:     m.username,
		})
		require.NoError(t, err)
	}

	connect(t, service, "conn-c")
	_, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-c",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "carol",
	})
	assert.ErrorIs(t, err, ErrRoomFull)

	// the rejected connection was not added
	resp, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "alice",
	})
	require.NoError(t, err)
	assert.Len(t, resp.Users, 2)
}

func TestHostOnlyOperations(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	connect(t, service, "conn-a")
	connect(t, service, "conn-b")

	_, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "alice",
	})
	require.NoError(t, err)
	_, err = service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "bob",
	})
	require.NoError(t, err)

	_, err = service.ControlPlayback(ctx, &ControlPlaybackParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		Type:         domain.ControlPlay,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied, "guest control must be rejected")

	_, err = service.SelectVideo(ctx, &SelectVideoParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		VideoRef:     "blob:http://localhost/ffff",
		FileName:     "other.mp4",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied, "guest select must be rejected")

	_, err = service.SyncStateUpdate(ctx, &SyncStateUpdateParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		State:        domain.SyncState{Time: 1},
	})
	assert.ErrorIs(t, err, ErrPermissionDenied, "guest sync update must be rejected")

	_, err = service.RequestResync(ctx, &RequestResyncParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied, "host resync must be rejected")

	_, err = service.ControlPlayback(ctx, &ControlPlaybackParams{
		ConnectionId: "conn-x",
		RoomId:       "movie-night",
		Type:         domain.ControlPlay,
	})
	assert.ErrorIs(t, err, ErrMemberNotFound, "stranger control must be rejected")
}

func TestUsernameTakeover(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	connA := connect(t, service, "conn-a")
	connect(t, service, "conn-b")

	_, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "alice",
	})
	require.NoError(t, err)
	_, err = service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "bob",
	})
	require.NoError(t, err)

	// a second tab with the same username replaces the host's slot even
	// though the room is full, and inherits host status
	connect(t, service, "conn-a2")
	resp, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-a2",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "alice",
	})
	require.NoError(t, err)
	assert.True(t, resp.IsHost, "takeover must inherit host status")
	assert.Len(t, resp.Users, 2)
	assert.Same(t, connA, resp.EvictedConn)
	assert.Equal(t, "conn-a2", resp.Users[0].ConnectionId, "slot must be replaced in place")

	// the evicted connection's cleanup finds nothing to remove
	_, err = service.DisconnectMember(ctx, &DisconnectMemberParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
	})
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestRoomSurvivesRestart(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	ctx := context.Background()

	store := roomRedis.NewRepo(rc, time.Hour, slog.Default())
	service1 := NewService(registry.New(store, slog.Default()), inmemory.NewRepo(slog.Default()), &Config{MembersLimit: 2}, slog.Default())

	connect(t, service1, "conn-a")
	_, err = service1.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "alice",
	})
	require.NoError(t, err)

	// a fresh process with an empty cache loads the room from the store
	service2 := NewService(registry.New(store, slog.Default()), inmemory.NewRepo(slog.Default()), &Config{MembersLimit: 2}, slog.Default())

	connect(t, service2, "conn-b")
	resp, err := service2.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "bob",
	})
	require.NoError(t, err)
	assert.False(t, resp.IsHost, "restored room must keep its host")
	assert.Len(t, resp.Users, 2)

	_, err = service2.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		Password:     "wrong",
		Username:     "bob",
	})
	assert.ErrorIs(t, err, ErrInvalidPassword, "restored room must keep its password")
}

func TestChatFanout(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	connA := connect(t, service, "conn-a")
	connB := connect(t, service, "conn-b")

	_, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-a",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "alice",
	})
	require.NoError(t, err)
	_, err = service.JoinRoom(ctx, &JoinRoomParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		Password:     "abcd",
		Username:     "bob",
	})
	require.NoError(t, err)

	resp, err := service.SendMessage(ctx, &SendMessageParams{
		ConnectionId: "conn-b",
		RoomId:       "movie-night",
		Type:         MessageTypeText,
		Text:         "hello",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Message.Id)
	assert.Equal(t, "conn-b", resp.Message.SenderId)
	assert.Equal(t, "bob", resp.Message.Username)
	assert.Equal(t, "hello", resp.Message.Text)
	assert.NotZero(t, resp.Message.Timestamp)
	require.Len(t, resp.Conns, 2, "sender must receive its own message")
	assert.Contains(t, resp.Conns, connA)
	assert.Contains(t, resp.Conns, connB)

	_, err = service.SendMessage(ctx, &SendMessageParams{
		ConnectionId: "conn-x",
		RoomId:       "movie-night",
		Type:         MessageTypeText,
		Text:         "hi",
	})
	assert.ErrorIs(t, err, ErrMemberNotFound)
}
