package types

// ---- Common bridge state (retained) ----

// Level values used by BridgeState and PortState.
const (
	LevelIdle     = "idle"
	LevelUp       = "up"
	LevelDegraded = "degraded"
	LevelError    = "error"
	LevelStopped  = "stopped"
)

type BridgeState struct {
	Level  string `json:"level"`  // "idle", "up", "degraded", "stopped"
	Status string `json:"status"` // short machine string
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

// Generic replies
type OKReply struct {
	OK bool `json:"ok"`
}
type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
