package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/domain"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrRoomFull         = errors.New("room is full")
	ErrPermissionDenied = errors.New("permission denied")
	ErrMemberNotFound   = errors.New("member not found")
)

type iRegistry interface {
	Load(ctx context.Context, roomId string) (*domain.Room, error)
	Save(ctx context.Context, rm *domain.Room)
	Delete(ctx context.Context, roomId string)
}

type iConnRepo interface {
	Add(conn *websocket.Conn, connectionId string) error
	RemoveByConnectionId(connectionId string) (*websocket.Conn, error)
	GetConn(connectionId string) (*websocket.Conn, error)
}

type Config struct {
	MembersLimit int
}

// service holds the session protocol logic: membership, host authority,
// control relay and chat fan-out. All exported operations run under one
// mutex, which serializes every room mutation the way a single-threaded
// reactor would.
type service struct {
	registry     iRegistry
	connRepo     iConnRepo
	logger       *slog.Logger
	membersLimit int
	mu           sync.Mutex
}

func NewService(registry iRegistry, connRepo iConnRepo, cfg *Config, logger *slog.Logger) *service {
	return &service{
		registry:     registry,
		connRepo:     connRepo,
		logger:       logger,
		membersLimit: cfg.MembersLimit,
	}
}

type ConnectMemberParams struct {
	Conn         *websocket.Conn
	ConnectionId string
}

func (s *service) ConnectMember(ctx context.Context, params *ConnectMemberParams) error {
	if err := s.connRepo.Add(params.Conn, params.ConnectionId); err != nil {
		s.logger.InfoContext(ctx, "failed to connect member", "error", err)
		return err
	}

	return nil
}
