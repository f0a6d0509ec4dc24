package domain

const (
	ControlPlay  = "play"
	ControlPause = "pause"
	ControlSeek  = "seek"
)

// Control is a single host-originated media control event. Time is only
// meaningful for seek and optionally play.
type Control struct {
	Type string   `json:"type"`
	Time *float64 `json:"time,omitempty"`
}

// SyncState is the host's authoritative playback descriptor, pushed to
// guests in answer to a resync request or after a video change.
type SyncState struct {
	Time     float64 `json:"time"`
	Playing  bool    `json:"playing"`
	Duration float64 `json:"duration"`
}
