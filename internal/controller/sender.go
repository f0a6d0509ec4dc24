package controller

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/service/room"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// closeCodeSessionTakenOver tells an evicted client its slot was claimed by
// another connection with the same username.
const closeCodeSessionTakenOver = 4001

func (c *controller) writeToConn(ctx context.Context, conn *websocket.Conn, out *Output) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return conn.WriteJSON(out)
}

// closeConn sends the close frame under the same writer lock as regular
// messages, so it cannot interleave with an in-flight broadcast.
func (c *controller) closeConn(conn *websocket.Conn, code int, reason string) {
	c.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.writeMu.Unlock()

	conn.Close()
}

// broadcast is best-effort: a dead member connection is logged and skipped,
// its own read loop handles the cleanup.
func (c *controller) broadcast(ctx context.Context, conns []*websocket.Conn, out *Output) {
	for _, conn := range conns {
		if err := c.writeToConn(ctx, conn, out); err != nil {
			c.logger.InfoContext(ctx, "failed to write to conn", "error", err)
		}
	}
}

func isProtocolError(err error) bool {
	return errors.Is(err, room.ErrRoomNotFound) ||
		errors.Is(err, room.ErrInvalidPassword) ||
		errors.Is(err, room.ErrRoomFull) ||
		errors.Is(err, room.ErrPermissionDenied) ||
		errors.Is(err, room.ErrMemberNotFound)
}

// writeError reports a failed operation to the originating connection only.
func (c *controller) writeError(ctx context.Context, conn *websocket.Conn, err error) error {
	message := "internal error"
	if isProtocolError(err) {
		message = err.Error()
	}

	return c.writeToConn(ctx, conn, &Output{
		Type:    "error_event",
		Payload: ErrorPayload{Message: message},
	})
}

func (c *controller) writeJoinError(ctx context.Context, conn *websocket.Conn, message string) error {
	return c.writeToConn(ctx, conn, &Output{
		Type:    "join_error",
		Payload: ErrorPayload{Message: message},
	})
}
