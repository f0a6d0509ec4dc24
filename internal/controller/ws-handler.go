package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/domain"
	"github.com/couchsync/server/internal/service/room"
)

// unmarshalInput decodes and validates a message payload, reporting the
// failure to the caller via error_event.
func (c *controller) unmarshalInput(ctx context.Context, conn *websocket.Conn, payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		c.writeToConn(ctx, conn, &Output{
			Type:    "error_event",
			Payload: ErrorPayload{Message: "invalid payload"},
		})
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if validationErrors, ok := c.validate.Validate(v); !ok {
		c.writeToConn(ctx, conn, &Output{
			Type:    "error_event",
			Payload: ErrorPayload{Message: validationErrors[0].Message},
		})
		return validationErrors[0]
	}

	return nil
}

type JoinRoomInput struct {
	RoomId   string `json:"room_id" validate:"required,max=128"`
	Password string `json:"password" validate:"max=64"`
	Username string `json:"username" validate:"required,max=32"`
}

func (c *controller) handleJoinRoom(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input JoinRoomInput
	if err := json.Unmarshal(payload, &input); err != nil {
		c.writeJoinError(ctx, conn, "invalid payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if validationErrors, ok := c.validate.Validate(&input); !ok {
		c.writeJoinError(ctx, conn, validationErrors[0].Message)
		return validationErrors[0]
	}

	// room ids arrive url-encoded when taken from a share link
	roomId := input.RoomId
	if decoded, err := url.PathUnescape(input.RoomId); err == nil {
		roomId = decoded
	}

	// joining another room leaves the current one first, so no membership
	// is left behind that disconnect cleanup would never find
	if sess.roomId != "" && sess.roomId != roomId {
		c.disconnect(ctx, sess)
		sess.roomId = ""

		if err := c.roomService.ConnectMember(ctx, &room.ConnectMemberParams{
			Conn:         conn,
			ConnectionId: sess.connectionId,
		}); err != nil {
			c.writeError(ctx, conn, err)
			return fmt.Errorf("failed to re-register connection: %w", err)
		}
	}

	resp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		ConnectionId: sess.connectionId,
		RoomId:       roomId,
		Password:     input.Password,
		Username:     input.Username,
	})
	if err != nil {
		if errors.Is(err, room.ErrInvalidPassword) || errors.Is(err, room.ErrRoomFull) {
			c.writeJoinError(ctx, conn, err.Error())
			return nil
		}

		c.writeError(ctx, conn, err)
		return fmt.Errorf("failed to join room: %w", err)
	}

	sess.roomId = roomId

	var videoRef, videoFileName string
	if resp.CurrentVideo != nil {
		videoRef = resp.CurrentVideo.VideoRef
		videoFileName = resp.CurrentVideo.FileName
	}

	if err := c.writeToConn(ctx, conn, &Output{
		Type: "room_joined",
		Payload: map[string]any{
			"room_id":                 roomId,
			"is_host":                 resp.IsHost,
			"users":                   resp.Users,
			"current_video_ref":       videoRef,
			"current_video_file_name": videoFileName,
		},
	}); err != nil {
		return fmt.Errorf("failed to write room joined: %w", err)
	}

	c.broadcast(ctx, resp.OtherConns, &Output{
		Type: "user_joined",
		Payload: map[string]any{
			"user_id":  resp.JoinedUser.ConnectionId,
			"username": resp.JoinedUser.Username,
			"users":    resp.Users,
		},
	})

	if resp.EvictedConn != nil {
		c.closeConn(resp.EvictedConn, closeCodeSessionTakenOver, "session taken over")
	}

	return nil
}

type MessageDataInput struct {
	Type      string `json:"type" validate:"required,oneof=text audio"`
	Text      string `json:"text" validate:"max=2000"`
	AudioData string `json:"audio_data" validate:"max=1048576"`
}

type SendMessageInput struct {
	RoomId      string           `json:"room_id" validate:"required"`
	MessageData MessageDataInput `json:"message_data"`
}

func (c *controller) handleSendMessage(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input SendMessageInput
	if err := c.unmarshalInput(ctx, conn, payload, &input); err != nil {
		return err
	}

	resp, err := c.roomService.SendMessage(ctx, &room.SendMessageParams{
		ConnectionId: sess.connectionId,
		RoomId:       input.RoomId,
		Type:         input.MessageData.Type,
		Text:         input.MessageData.Text,
		AudioData:    input.MessageData.AudioData,
	})
	if err != nil {
		c.writeError(ctx, conn, err)
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type:    "new_message",
		Payload: resp.Message,
	})

	return nil
}

type VideoSelectInput struct {
	RoomId   string `json:"room_id" validate:"required"`
	VideoRef string `json:"video_ref" validate:"required"`
	FileName string `json:"file_name" validate:"required,max=255"`
}

func (c *controller) handleVideoSelect(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input VideoSelectInput
	if err := c.unmarshalInput(ctx, conn, payload, &input); err != nil {
		return err
	}

	resp, err := c.roomService.SelectVideo(ctx, &room.SelectVideoParams{
		ConnectionId: sess.connectionId,
		RoomId:       input.RoomId,
		VideoRef:     input.VideoRef,
		FileName:     input.FileName,
	})
	if err != nil {
		c.writeError(ctx, conn, err)
		return fmt.Errorf("failed to select video: %w", err)
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type:    "video_selected",
		Payload: resp.Video,
	})

	return nil
}

type ControlInput struct {
	Type string   `json:"type" validate:"required,oneof=play pause seek"`
	Time *float64 `json:"time" validate:"omitempty,gte=0"`
}

type VideoControlInput struct {
	RoomId  string       `json:"room_id" validate:"required"`
	Control ControlInput `json:"control"`
}

func (c *controller) handleVideoControl(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input VideoControlInput
	if err := c.unmarshalInput(ctx, conn, payload, &input); err != nil {
		return err
	}

	resp, err := c.roomService.ControlPlayback(ctx, &room.ControlPlaybackParams{
		ConnectionId: sess.connectionId,
		RoomId:       input.RoomId,
		Type:         input.Control.Type,
		Time:         input.Control.Time,
	})
	if err != nil {
		c.writeError(ctx, conn, err)
		return fmt.Errorf("failed to control playback: %w", err)
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type:    "video_controlled",
		Payload: resp.Control,
	})

	return nil
}

type RequestResyncInput struct {
	RoomId string `json:"room_id" validate:"required"`
}

func (c *controller) handleRequestResync(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input RequestResyncInput
	if err := c.unmarshalInput(ctx, conn, payload, &input); err != nil {
		return err
	}

	resp, err := c.roomService.RequestResync(ctx, &room.RequestResyncParams{
		ConnectionId: sess.connectionId,
		RoomId:       input.RoomId,
	})
	if err != nil {
		c.writeError(ctx, conn, err)
		return fmt.Errorf("failed to request resync: %w", err)
	}

	if err := c.writeToConn(ctx, resp.HostConn, &Output{
		Type: "provide_sync_state",
		Payload: map[string]any{
			"requester_connection_id": resp.RequesterConnectionId,
		},
	}); err != nil {
		return fmt.Errorf("failed to forward resync request: %w", err)
	}

	return nil
}

type SyncStateInput struct {
	Time     float64 `json:"time" validate:"gte=0"`
	Playing  bool    `json:"playing"`
	Duration float64 `json:"duration" validate:"gte=0"`
}

type HostSyncStateUpdateInput struct {
	RoomId             string         `json:"room_id" validate:"required"`
	State              SyncStateInput `json:"state"`
	TargetConnectionId *string        `json:"target_connection_id"`
}

func (c *controller) handleHostSyncStateUpdate(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input HostSyncStateUpdateInput
	if err := c.unmarshalInput(ctx, conn, payload, &input); err != nil {
		return err
	}

	resp, err := c.roomService.SyncStateUpdate(ctx, &room.SyncStateUpdateParams{
		ConnectionId:       sess.connectionId,
		RoomId:             input.RoomId,
		State:              domain.SyncState(input.State),
		TargetConnectionId: input.TargetConnectionId,
	})
	if err != nil {
		c.writeError(ctx, conn, err)
		return fmt.Errorf("failed to update sync state: %w", err)
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type:    "apply_sync_state",
		Payload: resp.State,
	})

	return nil
}
