package room

type SaveRoomParams struct {
	RoomId           string
	Password         string
	HostConnectionId string
	VideoRef         string
	VideoFileName    string
	Members          []Member
}
