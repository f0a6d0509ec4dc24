package room

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/domain"
)

type RequestResyncParams struct {
	ConnectionId string
	RoomId       string
}

type RequestResyncResponse struct {
	HostConn              *websocket.Conn
	RequesterConnectionId string
}

// RequestResync forwards a guest's pull for authoritative playback state to
// the room's host. Guest only; the host recovers its state locally.
func (s *service) RequestResync(ctx context.Context, params *RequestResyncParams) (RequestResyncResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, err := s.loadRoom(ctx, params.RoomId)
	if err != nil {
		return RequestResyncResponse{}, err
	}

	if !rm.HasUser(params.ConnectionId) {
		return RequestResyncResponse{}, ErrMemberNotFound
	}

	if rm.IsHost(params.ConnectionId) {
		return RequestResyncResponse{}, ErrPermissionDenied
	}

	hostConn, err := s.connRepo.GetConn(rm.HostConnectionId)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get host conn", "error", err)
		return RequestResyncResponse{}, ErrMemberNotFound
	}

	return RequestResyncResponse{
		HostConn:              hostConn,
		RequesterConnectionId: params.ConnectionId,
	}, nil
}

type SyncStateUpdateParams struct {
	ConnectionId       string
	RoomId             string
	State              domain.SyncState
	TargetConnectionId *string
}

type SyncStateUpdateResponse struct {
	State domain.SyncState
	Conns []*websocket.Conn
}

// SyncStateUpdate delivers the host's playback descriptor either to one
// requester (answering a resync) or to every non-host member (after a video
// change). Host only.
func (s *service) SyncStateUpdate(ctx context.Context, params *SyncStateUpdateParams) (SyncStateUpdateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, err := s.loadRoom(ctx, params.RoomId)
	if err != nil {
		return SyncStateUpdateResponse{}, err
	}

	if err := s.checkIsHost(rm, params.ConnectionId); err != nil {
		return SyncStateUpdateResponse{}, err
	}

	if params.TargetConnectionId != nil {
		if !rm.HasUser(*params.TargetConnectionId) {
			return SyncStateUpdateResponse{}, ErrMemberNotFound
		}

		conn, err := s.connRepo.GetConn(*params.TargetConnectionId)
		if err != nil {
			s.logger.InfoContext(ctx, "failed to get target conn", "error", err)
			return SyncStateUpdateResponse{}, ErrMemberNotFound
		}

		return SyncStateUpdateResponse{
			State: params.State,
			Conns: []*websocket.Conn{conn},
		}, nil
	}

	return SyncStateUpdateResponse{
		State: params.State,
		Conns: s.getConns(ctx, rm.Users, rm.HostConnectionId),
	}, nil
}
