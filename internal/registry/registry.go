package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchsync/server/internal/domain"
	"github.com/couchsync/server/internal/repository/room"
)

var ErrRoomNotFound = errors.New("room not found")

type iRoomStore interface {
	SaveRoom(context.Context, *room.SaveRoomParams) error
	LoadRoom(ctx context.Context, roomId string) (room.RoomState, error)
	DeleteRoom(ctx context.Context, roomId string) error
}

// Registry is the authoritative in-memory map of active rooms, backed by a
// durable per-room store. The in-memory state stays authoritative for the
// life of the process: store failures on save and delete are logged and
// swallowed so a degraded store never rejects an in-flight client operation.
type Registry struct {
	rooms  map[string]*domain.Room
	store  iRoomStore
	logger *slog.Logger
	mu     sync.Mutex
}

func New(store iRoomStore, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*domain.Room),
		store:  store,
		logger: logger,
	}
}

// Load returns the cached room, falling back to the durable store so active
// rooms survive a process restart. ErrRoomNotFound signals the caller that
// the room may be created.
func (r *Registry) Load(ctx context.Context, roomId string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.rooms[roomId]; ok {
		return cached, nil
	}

	state, err := r.store.LoadRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}

		r.logger.WarnContext(ctx, "failed to load room from store", "room_id", roomId, "error", err)
		return nil, ErrRoomNotFound
	}

	users := make([]domain.User, 0, len(state.Members))
	for _, member := range state.Members {
		users = append(users, domain.User{
			ConnectionId: member.ConnectionId,
			Username:     member.Username,
		})
	}

	loaded := &domain.Room{
		Id:               roomId,
		Password:         state.Password,
		Users:            users,
		HostConnectionId: state.HostConnectionId,
	}
	if state.VideoRef != "" || state.VideoFileName != "" {
		loaded.CurrentVideo = &domain.VideoDescriptor{
			VideoRef: state.VideoRef,
			FileName: state.VideoFileName,
		}
	}

	r.rooms[roomId] = loaded

	return loaded, nil
}

// Save caches the room and writes the durable record behind it best-effort.
func (r *Registry) Save(ctx context.Context, rm *domain.Room) {
	r.mu.Lock()
	r.rooms[rm.Id] = rm
	r.mu.Unlock()

	members := make([]room.Member, 0, len(rm.Users))
	for _, user := range rm.Users {
		members = append(members, room.Member{
			ConnectionId: user.ConnectionId,
			Username:     user.Username,
		})
	}

	params := room.SaveRoomParams{
		RoomId:           rm.Id,
		Password:         rm.Password,
		HostConnectionId: rm.HostConnectionId,
		Members:          members,
	}
	if rm.CurrentVideo != nil {
		params.VideoRef = rm.CurrentVideo.VideoRef
		params.VideoFileName = rm.CurrentVideo.FileName
	}

	if err := r.store.SaveRoom(ctx, &params); err != nil {
		r.logger.WarnContext(ctx, "failed to persist room", "room_id", rm.Id, "error", err)
	}
}

// Delete removes the cache entry and the durable record.
func (r *Registry) Delete(ctx context.Context, roomId string) {
	r.mu.Lock()
	delete(r.rooms, roomId)
	r.mu.Unlock()

	if err := r.store.DeleteRoom(ctx, roomId); err != nil && !errors.Is(err, room.ErrRoomNotFound) {
		r.logger.WarnContext(ctx, "failed to delete room record", "room_id", roomId, "error", err)
	}
}
