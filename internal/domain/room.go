package domain

import (
	"golang.org/x/exp/slices"
)

// User is a single room participant, keyed by its transport-assigned
// connection id. The id is stable for the connection's lifetime and
// unstable across reconnects.
type User struct {
	ConnectionId string `json:"connection_id"`
	Username     string `json:"username"`
}

// VideoDescriptor identifies the video the host selected. VideoRef is a
// machine-local handle (for example a transient blob url) and is meaningless
// on other machines unless it is a public URL; only FileName is guaranteed
// to be displayable everywhere.
type VideoDescriptor struct {
	VideoRef string `json:"video_ref"`
	FileName string `json:"file_name"`
}

// Room is the authoritative in-memory state of one session. Users keeps
// join order, which decides host election on disconnect.
type Room struct {
	Id               string
	Password         string
	Users            []User
	HostConnectionId string
	CurrentVideo     *VideoDescriptor
}

func (r *Room) UserIndex(connectionId string) int {
	return slices.IndexFunc(r.Users, func(u User) bool {
		return u.ConnectionId == connectionId
	})
}

func (r *Room) HasUser(connectionId string) bool {
	return r.UserIndex(connectionId) >= 0
}

func (r *Room) UserByUsername(username string) *User {
	i := slices.IndexFunc(r.Users, func(u User) bool {
		return u.Username == username
	})
	if i < 0 {
		return nil
	}

	return &r.Users[i]
}

func (r *Room) AddUser(user User) {
	r.Users = append(r.Users, user)
}

func (r *Room) RemoveUser(connectionId string) bool {
	i := r.UserIndex(connectionId)
	if i < 0 {
		return false
	}

	r.Users = slices.Delete(r.Users, i, i+1)

	return true
}

func (r *Room) IsHost(connectionId string) bool {
	return r.HostConnectionId == connectionId
}

func (r *Room) IsEmpty() bool {
	return len(r.Users) == 0
}
