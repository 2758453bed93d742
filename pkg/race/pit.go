package race

import (
	"fmt"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
)

// pit stops are an out-of-band mutation: the service layer intercepts a
// validated pit command and applies the effects here before the next tick

const (
	refuelCostPerPercent = 0.08 // seconds per percent of fuel deficit
	tireChangeCost       = 4.0  // seconds, fixed
	tireChangeThreshold  = 30.0 // percent wear on either axle
)

type PitActionKind string

const (
	PitRefuel     PitActionKind = "refuel"
	PitTireChange PitActionKind = "tire_change"
)

type PitAction struct {
	Kind PitActionKind `json:"kind"`
	Cost float64       `json:"cost"` // seconds
}

// ApplyPitStop refuels and changes tires as needed and charges the time
// cost against the participant. Returns the actions performed.
func (m *Manager) ApplyPitStop(playerID string) ([]PitAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != model.RaceActive {
		return nil, ErrNotActive
	}
	p := m.state.Participant(playerID)
	if p == nil {
		return nil, ErrNotParticipant
	}

	actions := make([]PitAction, 0, 2)
	if p.Fuel < 100 {
		actions = append(actions, PitAction{
			Kind: PitRefuel,
			Cost: (100 - p.Fuel) * refuelCostPerPercent,
		})
		p.Fuel = 100
	}
	if p.TireWear.Front > tireChangeThreshold || p.TireWear.Rear > tireChangeThreshold {
		actions = append(actions, PitAction{Kind: PitTireChange, Cost: tireChangeCost})
		p.TireWear = model.TireWear{}
	}

	var total float64
	for _, a := range actions {
		total += a.Cost
	}
	p.TotalTime += total
	p.LapTime += total
	p.Speed = 0

	m.appendEvent(m.sim.Event(m.state.RaceTime, model.EventPitStop,
		fmt.Sprintf("%s made a pit stop", playerID),
		[]string{playerID},
		map[string]any{"actions": actions, "cost": total}))
	return actions, nil
}
