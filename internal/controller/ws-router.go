package controller

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.loggerWSMw())

	// session
	mux.Handle("join_room", c.handleJoinRoom)

	// playback
	mux.Handle("video_select", c.handleVideoSelect)
	mux.Handle("video_control", c.handleVideoControl)
	mux.Handle("request_resync", c.handleRequestResync)
	mux.Handle("host_sync_state_update", c.handleHostSyncStateUpdate)

	// chat
	mux.Handle("send_message", c.handleSendMessage)

	mux.HandleUnknown(func(ctx context.Context, conn *websocket.Conn, _ json.RawMessage) error {
		return c.writeToConn(ctx, conn, &Output{
			Type:    "error_event",
			Payload: ErrorPayload{Message: "unknown message type"},
		})
	})

	return mux
}
