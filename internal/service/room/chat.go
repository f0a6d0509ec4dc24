package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	MessageTypeText  = "text"
	MessageTypeAudio = "audio"
)

// ChatMessage is the relayed chat envelope. Audio travels inline as base64
// because there is no shared storage tier; one transport frame bounds its
// practical size.
type ChatMessage struct {
	Id        string `json:"id"`
	SenderId  string `json:"sender_id"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	AudioData string `json:"audio_data,omitempty"`
}

type SendMessageParams struct {
	ConnectionId string
	RoomId       string
	Type         string
	Text         string
	AudioData    string
}

type SendMessageResponse struct {
	Message ChatMessage
	// Conns includes the sender so its own message lands in its ordered view.
	Conns []*websocket.Conn
}

// SendMessage fans a chat message out to every member of the sender's room.
// Stateless: nothing is persisted and delivery is best-effort.
func (s *service) SendMessage(ctx context.Context, params *SendMessageParams) (SendMessageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, err := s.loadRoom(ctx, params.RoomId)
	if err != nil {
		return SendMessageResponse{}, err
	}

	i := rm.UserIndex(params.ConnectionId)
	if i < 0 {
		return SendMessageResponse{}, ErrMemberNotFound
	}

	return SendMessageResponse{
		Message: ChatMessage{
			Id:        uuid.NewString(),
			SenderId:  params.ConnectionId,
			Username:  rm.Users[i].Username,
			Timestamp: time.Now().UnixMilli(),
			Type:      params.Type,
			Text:      params.Text,
			AudioData: params.AudioData,
		},
		Conns: s.getConns(ctx, rm.Users, ""),
	}, nil
}
