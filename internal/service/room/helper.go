package room

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/domain"
	"github.com/couchsync/server/internal/registry"
)

func (s *service) loadRoom(ctx context.Context, roomId string) (*domain.Room, error) {
	rm, err := s.registry.Load(ctx, roomId)
	if err != nil {
		if errors.Is(err, registry.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}

		return nil, err
	}

	return rm, nil
}

// getConns resolves live connections for users, skipping excludeConnectionId
// and any member whose socket is already gone.
func (s *service) getConns(ctx context.Context, users []domain.User, excludeConnectionId string) []*websocket.Conn {
	conns := make([]*websocket.Conn, 0, len(users))
	for _, user := range users {
		if user.ConnectionId == excludeConnectionId {
			continue
		}

		conn, err := s.connRepo.GetConn(user.ConnectionId)
		if err != nil {
			s.logger.InfoContext(ctx, "failed to get conn", "connection_id", user.ConnectionId, "error", err)
			continue
		}

		conns = append(conns, conn)
	}

	return conns
}

func (s *service) userList(rm *domain.Room) []domain.User {
	users := make([]domain.User, len(rm.Users))
	copy(users, rm.Users)

	return users
}

func (s *service) checkIsHost(rm *domain.Room, connectionId string) error {
	if !rm.HasUser(connectionId) {
		return ErrMemberNotFound
	}

	if !rm.IsHost(connectionId) {
		return ErrPermissionDenied
	}

	return nil
}
