package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/couchsync/server/internal/repository/room"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":memberlist"
}

func (r repo) getMembersKey(roomId string) string {
	return "room:" + roomId + ":members"
}

// SaveRoom overwrites the full durable record for a room. The member list
// zset is scored by join order so LoadRoom reconstructs it deterministically.
func (r repo) SaveRoom(ctx context.Context, params *room.SaveRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	roomKey := r.getRoomKey(params.RoomId)
	memberListKey := r.getMemberListKey(params.RoomId)
	membersKey := r.getMembersKey(params.RoomId)

	pipe.Del(ctx, memberListKey, membersKey)

	record := room.RoomRecord{
		Password:         params.Password,
		HostConnectionId: params.HostConnectionId,
		VideoRef:         params.VideoRef,
		VideoFileName:    params.VideoFileName,
	}
	r.HSetStruct(ctx, pipe, roomKey, record)
	pipe.Expire(ctx, roomKey, r.expireDuration)

	for i, member := range params.Members {
		pipe.ZAdd(ctx, memberListKey, redis.Z{
			Score:  float64(i + 1),
			Member: member.ConnectionId,
		})
		pipe.HSet(ctx, membersKey, member.ConnectionId, member.Username)
	}
	pipe.Expire(ctx, memberListKey, r.expireDuration)
	pipe.Expire(ctx, membersKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to save room: %w", err)
	}

	return nil
}

func (r repo) LoadRoom(ctx context.Context, roomId string) (room.RoomState, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	roomKey := r.getRoomKey(roomId)

	cmd := r.rc.HGetAll(ctx, roomKey)
	if err := cmd.Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.RoomState{}, fmt.Errorf("failed to load room: %w", err)
	}

	if len(cmd.Val()) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.RoomState{}, room.ErrRoomNotFound
	}

	var record room.RoomRecord
	if err := cmd.Scan(&record); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.RoomState{}, fmt.Errorf("failed to scan room record: %w", err)
	}

	connectionIds, err := r.rc.ZRange(ctx, r.getMemberListKey(roomId), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.RoomState{}, fmt.Errorf("failed to load member list: %w", err)
	}

	usernames, err := r.rc.HGetAll(ctx, r.getMembersKey(roomId)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.RoomState{}, fmt.Errorf("failed to load members: %w", err)
	}

	members := make([]room.Member, 0, len(connectionIds))
	for _, connectionId := range connectionIds {
		members = append(members, room.Member{
			ConnectionId: connectionId,
			Username:     usernames[connectionId],
		})
	}

	// refresh all three keys together so the record never half-expires
	pipe := r.rc.TxPipeline()
	pipe.Expire(ctx, roomKey, r.expireDuration)
	pipe.Expire(ctx, r.getMemberListKey(roomId), r.expireDuration)
	pipe.Expire(ctx, r.getMembersKey(roomId), r.expireDuration)
	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "failed to refresh expiration", "error", err)
	}

	return room.RoomState{
		Password:         record.Password,
		HostConnectionId: record.HostConnectionId,
		VideoRef:         record.VideoRef,
		VideoFileName:    record.VideoFileName,
		Members:          members,
	}, nil
}

func (r repo) DeleteRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	res, err := r.rc.Del(ctx,
		r.getRoomKey(roomId),
		r.getMemberListKey(roomId),
		r.getMembersKey(roomId),
	).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to delete room: %w", err)
	}

	if res == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	return nil
}
