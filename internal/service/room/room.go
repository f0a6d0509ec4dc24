package room

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/domain"
)

type JoinRoomParams struct {
	ConnectionId string
	RoomId       string
	Password     string
	Username     string
}

type JoinRoomResponse struct {
	IsHost       bool
	JoinedUser   domain.User
	Users        []domain.User
	CurrentVideo *domain.VideoDescriptor
	// OtherConns are the members to notify with user_joined.
	OtherConns []*websocket.Conn
	// EvictedConn is the replaced connection on a same-username takeover.
	EvictedConn *websocket.Conn
}

// JoinRoom admits a connection into a room, creating the room if it does not
// exist yet (the creator becomes host). An existing room requires an exact
// password match and has capacity for membersLimit participants.
//
// A join with a username already present under a different connection id
// takes over that member's slot in place and inherits host status if the
// evicted connection was host. Last writer wins; kept for compatibility with
// the historical client behavior.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, err := s.loadRoom(ctx, params.RoomId)
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			return JoinRoomResponse{}, err
		}

		rm = &domain.Room{
			Id:       params.RoomId,
			Password: params.Password,
			Users: []domain.User{{
				ConnectionId: params.ConnectionId,
				Username:     params.Username,
			}},
			HostConnectionId: params.ConnectionId,
		}
		s.registry.Save(ctx, rm)

		s.logger.InfoContext(ctx, "room created", "room_id", rm.Id, "host_connection_id", params.ConnectionId)

		return JoinRoomResponse{
			IsHost:     true,
			JoinedUser: rm.Users[0],
			Users:      s.userList(rm),
		}, nil
	}

	if subtle.ConstantTimeCompare([]byte(rm.Password), []byte(params.Password)) != 1 {
		return JoinRoomResponse{}, ErrInvalidPassword
	}

	var evictedConn *websocket.Conn

	switch {
	case rm.HasUser(params.ConnectionId):
		// reconnect with the same identity
		rm.Users[rm.UserIndex(params.ConnectionId)].Username = params.Username

	case rm.UserByUsername(params.Username) != nil:
		// same-username takeover: replace the slot in place
		evicted := rm.UserByUsername(params.Username)
		evictedId := evicted.ConnectionId
		evicted.ConnectionId = params.ConnectionId
		if rm.HostConnectionId == evictedId {
			rm.HostConnectionId = params.ConnectionId
		}

		conn, err := s.connRepo.RemoveByConnectionId(evictedId)
		if err == nil {
			evictedConn = conn
		}
		s.logger.InfoContext(ctx, "member slot taken over",
			"room_id", rm.Id,
			"username", params.Username,
			"evicted_connection_id", evictedId,
		)

	case len(rm.Users) >= s.membersLimit:
		return JoinRoomResponse{}, ErrRoomFull

	default:
		rm.AddUser(domain.User{
			ConnectionId: params.ConnectionId,
			Username:     params.Username,
		})
	}

	s.registry.Save(ctx, rm)

	return JoinRoomResponse{
		IsHost:       rm.IsHost(params.ConnectionId),
		JoinedUser:   rm.Users[rm.UserIndex(params.ConnectionId)],
		Users:        s.userList(rm),
		CurrentVideo: rm.CurrentVideo,
		OtherConns:   s.getConns(ctx, rm.Users, params.ConnectionId),
		EvictedConn:  evictedConn,
	}, nil
}

type DisconnectMemberParams struct {
	ConnectionId string
	RoomId       string
}

type DisconnectMemberResponse struct {
	LeftUser      domain.User
	Users         []domain.User
	Conns         []*websocket.Conn
	IsRoomDeleted bool
	NewHost       *domain.User
	NewHostConn   *websocket.Conn
}

// DisconnectMember removes the connection from its room, deletes the room
// when it empties, and otherwise promotes the first remaining member in join
// order if the host left.
func (s *service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.connRepo.RemoveByConnectionId(params.ConnectionId); err != nil {
		s.logger.DebugContext(ctx, "connection already removed", "connection_id", params.ConnectionId)
	}

	rm, err := s.loadRoom(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, err
	}

	i := rm.UserIndex(params.ConnectionId)
	if i < 0 {
		// already evicted by a same-username takeover
		return DisconnectMemberResponse{}, ErrMemberNotFound
	}

	leftUser := rm.Users[i]
	wasHost := rm.IsHost(params.ConnectionId)
	rm.RemoveUser(params.ConnectionId)

	if rm.IsEmpty() {
		s.registry.Delete(ctx, rm.Id)
		s.logger.InfoContext(ctx, "room deleted", "room_id", rm.Id)

		return DisconnectMemberResponse{
			LeftUser:      leftUser,
			IsRoomDeleted: true,
		}, nil
	}

	resp := DisconnectMemberResponse{
		LeftUser: leftUser,
		Users:    s.userList(rm),
	}

	if wasHost {
		rm.HostConnectionId = rm.Users[0].ConnectionId
		resp.NewHost = &rm.Users[0]

		conn, err := s.connRepo.GetConn(rm.HostConnectionId)
		if err != nil {
			s.logger.InfoContext(ctx, "failed to get new host conn", "error", err)
		} else {
			resp.NewHostConn = conn
		}

		s.logger.InfoContext(ctx, "host reassigned",
			"room_id", rm.Id,
			"host_connection_id", rm.HostConnectionId,
		)
	}

	s.registry.Save(ctx, rm)

	resp.Conns = s.getConns(ctx, rm.Users, "")

	return resp, nil
}
