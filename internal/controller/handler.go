package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/couchsync/server/internal/service/room"
	"github.com/couchsync/server/pkg/ctxlogger"
)

func (c *controller) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	sess := &session{connectionId: uuid.NewString()}

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("connection_id", sess.connectionId))
	ctx = context.WithValue(ctx, sessionCtxKey, sess)

	if err := c.roomService.ConnectMember(ctx, &room.ConnectMemberParams{
		Conn:         conn,
		ConnectionId: sess.connectionId,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to connect member", "error", err)
		return
	}

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "connection closed", "error", err)
	}

	c.disconnect(ctx, sess)
}

// disconnect runs the server-side cleanup after the read loop ends: member
// removal, room deletion when it empties, host failover otherwise.
func (c *controller) disconnect(ctx context.Context, sess *session) {
	resp, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		ConnectionId: sess.connectionId,
		RoomId:       sess.roomId,
	})
	if err != nil {
		if !errors.Is(err, room.ErrRoomNotFound) && !errors.Is(err, room.ErrMemberNotFound) {
			c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
		}
		return
	}

	if resp.IsRoomDeleted {
		return
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type: "user_left",
		Payload: map[string]any{
			"user_id":  resp.LeftUser.ConnectionId,
			"username": resp.LeftUser.Username,
			"users":    resp.Users,
		},
	})

	if resp.NewHost == nil {
		return
	}

	if resp.NewHostConn != nil {
		if err := c.writeToConn(ctx, resp.NewHostConn, &Output{
			Type:    "promoted_to_host",
			Payload: map[string]any{},
		}); err != nil {
			c.logger.InfoContext(ctx, "failed to notify new host", "error", err)
		}
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type: "new_host",
		Payload: map[string]any{
			"host_connection_id": resp.NewHost.ConnectionId,
			"host_username":      resp.NewHost.Username,
		},
	})
}
