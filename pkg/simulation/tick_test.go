package simulation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/physics"
	"github.com/lucaswhitaker22/specracer-engine-go/testsupport/basedata"
)

func eventsOfKind(events []model.RaceEvent, kind model.EventKind) []model.RaceEvent {
	ret := []model.RaceEvent{}
	for _, e := range events {
		if e.Kind == kind {
			ret = append(ret, e)
		}
	}
	return ret
}

func TestTick_RaceTimeAdvances(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	state := basedata.SampleRaceState()
	next, _ := sim.Tick(state, nil, basedata.SampleTrack(), DefaultTickDuration)
	assert.InDelta(t, state.RaceTime+0.1, next.RaceTime, 1e-9)
	// the input state is untouched
	assert.InDelta(t, 12.5, state.RaceTime, 1e-9)
}

func TestTick_CoastDecelerates(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	state := basedata.SampleRaceState()
	next, _ := sim.Tick(state, nil, basedata.SampleTrack(), DefaultTickDuration)
	p := next.Participant("player-1")
	require.NotNil(t, p)
	assert.Less(t, p.Speed, 120.0)
	assert.Greater(t, p.Location.LapDistance, 900.0)
}

func TestTick_AccelerateIncreasesSpeed(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	state := basedata.SampleRaceState()
	cmds := map[string]model.DrivingCommand{
		"player-1": {Kind: model.CommandAccelerate},
	}
	next, _ := sim.Tick(state, cmds, basedata.SampleTrack(), DefaultTickDuration)
	p := next.Participant("player-1")
	require.NotNil(t, p)
	assert.Greater(t, p.Speed, 120.0)
	assert.Equal(t, model.CommandAccelerate, p.LastCommand)
	// fuel was burned
	assert.Less(t, p.Fuel, 80.0)
}

func TestTick_EmptyTankMeansNoThrottle(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	state := basedata.SampleRaceState()
	state.Participant("player-1").Fuel = 0
	cmds := map[string]model.DrivingCommand{
		"player-1": {Kind: model.CommandAccelerate},
	}
	next, _ := sim.Tick(state, cmds, basedata.SampleTrack(), DefaultTickDuration)
	assert.Less(t, next.Participant("player-1").Speed, 120.0)
}

func TestTick_LapCompletion(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	track := basedata.SampleTrack() // 5891m
	state := basedata.SampleRaceState()
	p := state.Participant("player-1")
	p.Speed = 250
	p.Location.LapDistance = 5885
	p.LapTime = 83.5

	next, events := sim.Tick(state, nil, track, DefaultTickDuration)
	got := next.Participant("player-1")
	assert.Equal(t, 1, got.Location.Lap)
	assert.Less(t, got.Location.LapDistance, 10.0)
	assert.Zero(t, got.LapTime)

	laps := eventsOfKind(events, model.EventLapComplete)
	require.Len(t, laps, 1)
	assert.Contains(t, laps[0].Description, "player-1")
	assert.Equal(t, []string{"player-1"}, laps[0].Involved)

	// the leader finished lap 1, so the race is on lap 2
	assert.Equal(t, 2, next.CurrentLap)
}

func TestTick_OvertakeDetectedOnce(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	state := basedata.SampleRaceState()
	// P1 is slow and barely ahead, P2 is fast
	p1 := state.Participant("player-1")
	p1.Speed = 10
	p1.Location.LapDistance = 1000
	p2 := state.Participant("player-2")
	p2.Speed = 200
	p2.Location.LapDistance = 998

	cmds := map[string]model.DrivingCommand{
		"player-2": {Kind: model.CommandAccelerate},
	}
	next, events := sim.Tick(state, cmds, basedata.SampleTrack(), DefaultTickDuration)
	assert.Equal(t, 1, next.Participant("player-2").Position)
	assert.Equal(t, 2, next.Participant("player-1").Position)

	overtakes := eventsOfKind(events, model.EventOvertake)
	require.Len(t, overtakes, 1)
	assert.Equal(t, []string{"player-2", "player-1"}, overtakes[0].Involved)
}

func TestTick_NoOvertakeWithoutPositionChange(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	state := basedata.SampleRaceState()
	_, events := sim.Tick(state, nil, basedata.SampleTrack(), DefaultTickDuration)
	assert.Empty(t, eventsOfKind(events, model.EventOvertake))
}

func TestTick_LowFuelWarningOnCrossing(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	state := basedata.SampleRaceState()
	state.Participant("player-1").Fuel = 5.0
	cmds := map[string]model.DrivingCommand{
		"player-1": {Kind: model.CommandAccelerate},
	}
	_, events := sim.Tick(state, cmds, basedata.SampleTrack(), DefaultTickDuration)
	incidents := eventsOfKind(events, model.EventIncident)
	require.Len(t, incidents, 1)
	assert.Contains(t, incidents[0].Description, "low on fuel")

	// already below the threshold, no second warning
	state2 := basedata.SampleRaceState()
	state2.Participant("player-1").Fuel = 4.0
	_, events = sim.Tick(state2, cmds, basedata.SampleTrack(), DefaultTickDuration)
	assert.Empty(t, eventsOfKind(events, model.EventIncident))
}

func TestTick_HighTireWearWarningOnCrossing(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	state := basedata.SampleRaceState()
	p := state.Participant("player-1")
	p.TireWear = model.TireWear{Front: 79.999, Rear: 60}
	p.Speed = 250
	cmds := map[string]model.DrivingCommand{
		"player-1": {Kind: model.CommandBrake},
	}
	_, events := sim.Tick(state, cmds, basedata.SampleTrack(), DefaultTickDuration)
	incidents := eventsOfKind(events, model.EventIncident)
	require.Len(t, incidents, 1)
	assert.Contains(t, incidents[0].Description, "tire wear")
}

func TestTick_BrakingWearMatchesModel(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	track := basedata.SampleTrack()
	state := basedata.SampleRaceState()
	spec := basedata.SampleCarSpec()
	cmds := map[string]model.DrivingCommand{
		"player-1": {Kind: model.CommandBrake},
	}
	next, _ := sim.Tick(state, cmds, track, DefaultTickDuration)
	got := next.Participant("player-1")

	// the wear applied under braking follows the performance model with the
	// braking load expressed against physics.Gravity
	newSpeed := got.Speed
	lateralG := physics.LateralG(newSpeed, track)
	brakingG := physics.BrakingDeceleration(spec, newSpeed) / physics.Gravity
	front, rear := physics.TireWearRate(spec, newSpeed, lateralG, brakingG)
	dt := DefaultTickDuration.Seconds()
	before := state.Participant("player-1")
	assert.InDelta(t, before.TireWear.Front+front*dt, got.TireWear.Front, 1e-9)
	assert.InDelta(t, before.TireWear.Rear+rear*dt, got.TireWear.Rear, 1e-9)
}

func TestTick_Deterministic(t *testing.T) {
	track := basedata.SampleTrack()
	cmds := map[string]model.DrivingCommand{
		"player-1": {Kind: model.CommandAccelerate},
		"player-2": {Kind: model.CommandBrake},
	}
	simA := NewSimulator(basedata.NewStaticCatalog())
	simB := NewSimulator(basedata.NewStaticCatalog())
	nextA, eventsA := simA.Tick(basedata.SampleRaceState(), cmds, track, DefaultTickDuration)
	nextB, eventsB := simB.Tick(basedata.SampleRaceState(), cmds, track, DefaultTickDuration)
	if diff := cmp.Diff(nextA, nextB); diff != "" {
		t.Errorf("states differ (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(eventsA, eventsB); diff != "" {
		t.Errorf("events differ (-a +b):\n%s", diff)
	}
}

func TestTick_RankIndependentOfSliceOrder(t *testing.T) {
	track := basedata.SampleTrack()
	state := basedata.SampleRaceState()
	reversed := basedata.SampleRaceState()
	reversed.Participants[0], reversed.Participants[1] =
		reversed.Participants[1], reversed.Participants[0]

	simA := NewSimulator(basedata.NewStaticCatalog())
	simB := NewSimulator(basedata.NewStaticCatalog())
	nextA, _ := simA.Tick(state, nil, track, DefaultTickDuration)
	nextB, _ := simB.Tick(reversed, nil, track, DefaultTickDuration)
	for _, playerID := range []string{"player-1", "player-2"} {
		assert.Equal(t,
			nextA.Participant(playerID).Position,
			nextB.Participant(playerID).Position,
			playerID)
	}
}

func TestTick_EventLogCapped(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog(), WithMaxEventLog(5))
	state := basedata.SampleRaceState()
	for i := 0; i < 5; i++ {
		state.Events = append(state.Events,
			sim.Event(float64(i), model.EventIncident, "filler", nil, nil))
	}
	state.Participant("player-1").Fuel = 5.0
	cmds := map[string]model.DrivingCommand{
		"player-1": {Kind: model.CommandAccelerate},
	}
	next, events := sim.Tick(state, cmds, basedata.SampleTrack(), DefaultTickDuration)
	require.NotEmpty(t, events)
	assert.Len(t, next.Events, 5)
	// the newest events survive the cap
	assert.Equal(t, events[len(events)-1].ID, next.Events[len(next.Events)-1].ID)
}

func TestSeqFromEvents(t *testing.T) {
	events := []model.RaceEvent{
		{ID: "evt-3"}, {ID: "evt-12"}, {ID: "evt-7"}, {ID: "bogus"},
	}
	assert.Equal(t, uint64(12), SeqFromEvents(events))
	assert.Zero(t, SeqFromEvents(nil))
}

func TestTick_PitCommandBrakes(t *testing.T) {
	sim := NewSimulator(basedata.NewStaticCatalog())
	state := basedata.SampleRaceState()
	cmds := map[string]model.DrivingCommand{
		"player-1": {Kind: model.CommandPit, Stamp: time.Now()},
	}
	next, _ := sim.Tick(state, cmds, basedata.SampleTrack(), DefaultTickDuration)
	coasting, _ := sim.Tick(state, nil, basedata.SampleTrack(), DefaultTickDuration)
	assert.Less(t,
		next.Participant("player-1").Speed,
		coasting.Participant("player-1").Speed)
}
