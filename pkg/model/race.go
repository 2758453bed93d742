package model

import "time"

type RaceStatus string

const (
	RaceWaiting   RaceStatus = "waiting"
	RaceActive    RaceStatus = "active"
	RaceCompleted RaceStatus = "completed"
)

type EventKind string

const (
	EventOvertake    EventKind = "overtake"
	EventPitStop     EventKind = "pit_stop"
	EventIncident    EventKind = "incident"
	EventLapComplete EventKind = "lap_complete"
	EventRaceStart   EventKind = "race_start"
	EventRaceFinish  EventKind = "race_finish"
)

// TrackLocation pinpoints a participant on the track.
type TrackLocation struct {
	Lap         int     `json:"lap"`
	Sector      int     `json:"sector"`
	LapDistance float64 `json:"lapDistance"` // meters within the current lap
}

type TireWear struct {
	Front float64 `json:"front"` // [0,100]
	Rear  float64 `json:"rear"`  // [0,100]
}

// ParticipantState is mutated once per tick by the simulator.
type ParticipantState struct {
	PlayerID     string        `json:"playerId"`
	CarID        string        `json:"carId"`
	Position     int           `json:"position"` // 1-based rank, recomputed every tick
	LapTime      float64       `json:"lapTime"`  // seconds in the current lap
	TotalTime    float64       `json:"totalTime"`
	Fuel         float64       `json:"fuel"` // [0,100]
	TireWear     TireWear      `json:"tireWear"`
	Speed        float64       `json:"speed"` // km/h
	Location     TrackLocation `json:"location"`
	LastCommand  CommandKind   `json:"lastCommand,omitempty"`
	CommandStamp time.Time     `json:"commandStamp,omitempty"`
}

// TotalDistance is the cumulative distance in meters for the given track length.
func (p *ParticipantState) TotalDistance(trackLength float64) float64 {
	return float64(p.Location.Lap)*trackLength + p.Location.LapDistance
}

// RaceEvent entries are append-only; the live list is capped by the simulator.
type RaceEvent struct {
	ID          string         `json:"id"`
	Timestamp   float64        `json:"timestamp"` // race-relative seconds
	Kind        EventKind      `json:"kind"`
	Description string         `json:"description"`
	Involved    []string       `json:"involved,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// RaceState is exclusively owned by one lifecycle manager while the race is
// active. Everything handed to other components is a copy.
type RaceState struct {
	ID              string             `json:"id"`
	TrackID         string             `json:"trackId"`
	Status          RaceStatus         `json:"status"`
	CurrentLap      int                `json:"currentLap"` // informational, leader based
	TotalLaps       int                `json:"totalLaps"`
	RaceTime        float64            `json:"raceTime"` // seconds
	Participants    []ParticipantState `json:"participants"`
	Events          []RaceEvent        `json:"events"`
	Weather         string             `json:"weather"`
	TrackConditions string             `json:"trackConditions"`
}

// Clone returns a deep copy. The simulator and the cache layer never share
// slices with the live state.
func (r *RaceState) Clone() *RaceState {
	ret := *r
	ret.Participants = make([]ParticipantState, len(r.Participants))
	copy(ret.Participants, r.Participants)
	ret.Events = make([]RaceEvent, len(r.Events))
	copy(ret.Events, r.Events)
	return &ret
}

// Participant returns the participant with the given player id.
func (r *RaceState) Participant(playerID string) *ParticipantState {
	for i := range r.Participants {
		if r.Participants[i].PlayerID == playerID {
			return &r.Participants[i]
		}
	}
	return nil
}
