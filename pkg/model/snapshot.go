package model

import "time"

// SchemaVersion tags every cached blob. Decoding rejects unknown versions
// instead of trusting the shape at runtime.
const SchemaVersion = 1

// StateSnapshot is a checksummed copy of race state retained for recovery.
type StateSnapshot struct {
	SchemaVersion int       `json:"schemaVersion"`
	ID            string    `json:"id"`
	RaceID        string    `json:"raceId"`
	CapturedAt    time.Time `json:"capturedAt"`
	State         RaceState `json:"state"`
	Checksum      string    `json:"checksum"`
}

// CachedRaceState is the envelope for the authoritative cached race state.
type CachedRaceState struct {
	SchemaVersion int       `json:"schemaVersion"`
	State         RaceState `json:"state"`
}
