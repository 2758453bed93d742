// Package basedata provides shared sample data for tests.
package basedata

import (
	"fmt"
	"time"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
)

func TestTime() time.Time {
	t, _ := time.Parse(time.RFC3339, "2026-04-28T11:10:12Z")
	return t
}

func SampleTrack() *model.TrackConfiguration {
	return &model.TrackConfiguration{
		ID:          "track-1",
		Name:        "testtrack",
		Length:      5891,
		SectorCount: 3,
		CornerCount: 12,
		Elevation:   30,
		Surface:     model.SurfaceAsphalt,
		Difficulty:  0.7,
	}
}

func SampleCarSpec() *model.CarSpecification {
	return &model.CarSpecification{
		ID:              "car-1",
		Name:            "testcar",
		Horsepower:      450,
		Mass:            1350,
		DragCoefficient: 0.30,
		FrontalArea:     2.0,
		Drivetrain:      model.DrivetrainRear,
		TireGrip:        1.1,
		GearRatios:      []float64{3.8, 2.4, 1.8, 1.4, 1.1, 0.9},
		Downforce:       150,
		FuelEconomy:     8,
		ZeroToHundred:   4.2,
		TopSpeed:        280,
	}
}

// StaticCatalog resolves every car id to the same sample specification.
type StaticCatalog struct {
	CarSpec *model.CarSpecification
}

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{CarSpec: SampleCarSpec()}
}

func (c *StaticCatalog) Spec(string) (*model.CarSpecification, error) {
	return c.CarSpec, nil
}

// SampleRaceState returns an active two participant race on SampleTrack.
func SampleRaceState() *model.RaceState {
	return &model.RaceState{
		ID:         "race-1",
		TrackID:    "track-1",
		Status:     model.RaceActive,
		CurrentLap: 1,
		TotalLaps:  3,
		RaceTime:   12.5,
		Participants: []model.ParticipantState{
			SampleParticipant("player-1", 1),
			SampleParticipant("player-2", 2),
		},
		Events:          []model.RaceEvent{},
		Weather:         "clear",
		TrackConditions: "dry",
	}
}

func SampleParticipant(playerID string, position int) model.ParticipantState {
	return model.ParticipantState{
		PlayerID: playerID,
		CarID:    "car-1",
		Position: position,
		Speed:    120,
		Fuel:     80,
		TireWear: model.TireWear{Front: 10, Rear: 8},
		Location: model.TrackLocation{
			Lap:         0,
			Sector:      1,
			LapDistance: float64(1000 - position*100),
		},
		TotalTime: 12.5,
	}
}

// RaceStates returns n distinct race states, useful for snapshot tests.
func RaceStates(n int) []*model.RaceState {
	ret := make([]*model.RaceState, n)
	for i := 0; i < n; i++ {
		state := SampleRaceState()
		state.RaceTime += float64(i)
		state.Participants[0].TotalTime += float64(i)
		state.Events = append(state.Events, model.RaceEvent{
			ID:        fmt.Sprintf("evt-%d", i+1),
			Timestamp: state.RaceTime,
			Kind:      model.EventLapComplete,
		})
		ret[i] = state
	}
	return ret
}
