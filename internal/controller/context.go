package controller

import "context"

type contextKey int

const (
	sessionCtxKey contextKey = iota
)

// session is the per-connection state: the transport-assigned connection id
// and, once join_room succeeds, the joined room. One read goroutine mutates
// it, so no locking is needed.
type session struct {
	connectionId string
	roomId       string
}

func (c *controller) getSessionFromCtx(ctx context.Context) *session {
	sess, ok := ctx.Value(sessionCtxKey).(*session)
	if !ok {
		return &session{}
	}

	return sess
}
