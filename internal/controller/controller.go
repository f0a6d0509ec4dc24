package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/service/room"
	"github.com/couchsync/server/pkg/validator"
	"github.com/couchsync/server/pkg/wsrouter"
)

type iRoomService interface {
	ConnectMember(context.Context, *room.ConnectMemberParams) error
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	SelectVideo(context.Context, *room.SelectVideoParams) (room.SelectVideoResponse, error)
	ControlPlayback(context.Context, *room.ControlPlaybackParams) (room.ControlPlaybackResponse, error)
	RequestResync(context.Context, *room.RequestResyncParams) (room.RequestResyncResponse, error)
	SyncStateUpdate(context.Context, *room.SyncStateUpdateParams) (room.SyncStateUpdateResponse, error)
	SendMessage(context.Context, *room.SendMessageParams) (room.SendMessageResponse, error)
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
	wsmux       *wsrouter.WSRouter
	// gorilla allows a single concurrent writer per connection; broadcasts
	// run from every member's read goroutine, so writes are serialized here.
	writeMu sync.Mutex
}

func NewController(roomService iRoomService, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
