package room

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/domain"
)

type SelectVideoParams struct {
	ConnectionId string
	RoomId       string
	VideoRef     string
	FileName     string
}

type SelectVideoResponse struct {
	Video domain.VideoDescriptor
	// Conns includes the host so every client converges on the same
	// descriptor state.
	Conns []*websocket.Conn
}

// SelectVideo updates the room's current video descriptor. Host only. The
// video ref may be machine-local; guests decide client-side whether they can
// load it.
func (s *service) SelectVideo(ctx context.Context, params *SelectVideoParams) (SelectVideoResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, err := s.loadRoom(ctx, params.RoomId)
	if err != nil {
		return SelectVideoResponse{}, err
	}

	if err := s.checkIsHost(rm, params.ConnectionId); err != nil {
		return SelectVideoResponse{}, err
	}

	rm.CurrentVideo = &domain.VideoDescriptor{
		VideoRef: params.VideoRef,
		FileName: params.FileName,
	}
	s.registry.Save(ctx, rm)

	return SelectVideoResponse{
		Video: *rm.CurrentVideo,
		Conns: s.getConns(ctx, rm.Users, ""),
	}, nil
}

type ControlPlaybackParams struct {
	ConnectionId string
	RoomId       string
	Type         string
	Time         *float64
}

type ControlPlaybackResponse struct {
	Control domain.Control
	// Conns excludes the sender: echoing a control back to the host would
	// loop against its own locally-driven state.
	Conns []*websocket.Conn
}

// ControlPlayback relays a play/pause/seek event to the other members.
// Host only, never persisted.
func (s *service) ControlPlayback(ctx context.Context, params *ControlPlaybackParams) (ControlPlaybackResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, err := s.loadRoom(ctx, params.RoomId)
	if err != nil {
		return ControlPlaybackResponse{}, err
	}

	if err := s.checkIsHost(rm, params.ConnectionId); err != nil {
		return ControlPlaybackResponse{}, err
	}

	return ControlPlaybackResponse{
		Control: domain.Control{
			Type: params.Type,
			Time: params.Time,
		},
		Conns: s.getConns(ctx, rm.Users, params.ConnectionId),
	}, nil
}
