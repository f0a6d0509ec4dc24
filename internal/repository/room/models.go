package room

// RoomRecord holds the scalar fields of a durable room record.
type RoomRecord struct {
	Password         string `redis:"password"`
	HostConnectionId string `redis:"host_connection_id"`
	VideoRef         string `redis:"video_ref"`
	VideoFileName    string `redis:"video_file_name"`
}

// Member is one persisted room participant. Order of members in a record
// is the join order.
type Member struct {
	ConnectionId string
	Username     string
}

// RoomState is a full durable record as reconstructed by LoadRoom.
type RoomState struct {
	Password         string
	HostConnectionId string
	VideoRef         string
	VideoFileName    string
	Members          []Member
}
