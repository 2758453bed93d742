// Package simulation contains the stateless per-tick transform. Given a
// race state, at most one pending command per participant and the track
// geometry it produces the next state plus the domain events detected in
// between. The transform is deterministic: no clock reads, no randomness,
// event ids come from a monotonic counter.
package simulation

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/physics"
)

const (
	DefaultTickDuration = 100 * time.Millisecond
	DefaultMaxEventLog  = 100

	lowFuelThreshold   = 5.0
	highWearThreshold  = 80.0
	lapCompleteWindow  = 0.1 // fraction of track length after the line
	pitBrakeIntensity  = 0.5
	lapCompleteMinLaps = 1
)

// CarCatalog resolves car specifications by id.
type CarCatalog interface {
	Spec(carID string) (*model.CarSpecification, error)
}

type Simulator struct {
	catalog   CarCatalog
	maxEvents int
	eventSeq  uint64
}

type Option func(s *Simulator)

// WithMaxEventLog caps the live event list of the race state.
func WithMaxEventLog(n int) Option {
	return func(s *Simulator) { s.maxEvents = n }
}

// WithEventSeq sets the start value of the event id counter, used when a
// race is restored from a snapshot.
func WithEventSeq(seq uint64) Option {
	return func(s *Simulator) { s.eventSeq = seq }
}

func NewSimulator(catalog CarCatalog, opts ...Option) *Simulator {
	ret := &Simulator{
		catalog:   catalog,
		maxEvents: DefaultMaxEventLog,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// fallback when a car id cannot be resolved mid-race
var defaultSpec = &model.CarSpecification{
	ID:              "default",
	Horsepower:      300,
	Mass:            1400,
	DragCoefficient: 0.32,
	FrontalArea:     2.1,
	Drivetrain:      model.DrivetrainRear,
	TireGrip:        1.0,
	GearRatios:      []float64{3.6, 2.1, 1.5, 1.1, 0.9, 0.75},
	Downforce:       120,
	FuelEconomy:     9,
	TopSpeed:        250,
}

func (s *Simulator) spec(carID string) *model.CarSpecification {
	if spec, err := s.catalog.Spec(carID); err == nil && spec != nil {
		return spec
	}
	return defaultSpec
}

// Tick advances the race by one tick duration. Participants without a
// pending command coast.
//
//nolint:funlen,gocognit,cyclop // the tick algorithm reads best as one pass
func (s *Simulator) Tick(
	current *model.RaceState,
	commands map[string]model.DrivingCommand,
	track *model.TrackConfiguration,
	tick time.Duration,
) (*model.RaceState, []model.RaceEvent) {
	dt := tick.Seconds()
	next := current.Clone()
	events := make([]model.RaceEvent, 0, 4)

	// position -> player id before this tick
	prevHolder := make(map[int]string, len(current.Participants))
	prevPos := make(map[string]int, len(current.Participants))
	for i := range current.Participants {
		p := &current.Participants[i]
		prevHolder[p.Position] = p.PlayerID
		prevPos[p.PlayerID] = p.Position
	}

	raceTime := current.RaceTime + dt

	for i := range next.Participants {
		p := &next.Participants[i]
		spec := s.spec(p.CarID)

		var cmd *model.DrivingCommand
		if c, ok := commands[p.PlayerID]; ok {
			cmd = &c
			p.LastCommand = c.Kind
			p.CommandStamp = c.Stamp
		}
		throttle, brake := resolveInputs(cmd)
		if p.Fuel <= 0 {
			throttle = 0
		}

		var accel float64
		switch {
		case throttle > 0:
			accel = physics.Acceleration(spec, p.Speed, throttle)
		case brake > 0:
			accel = -physics.BrakingDeceleration(spec, p.Speed) * brake
		default:
			accel = -physics.DragDeceleration(spec, p.Speed)
		}

		oldSpeed := p.Speed
		newSpeed := oldSpeed + accel*dt*3.6
		newSpeed = clamp(newSpeed, 0, physics.TopSpeed(spec))
		p.Speed = newSpeed

		// distance from the average of old and new speed
		distance := (oldSpeed + newSpeed) / 2 / 3.6 * dt
		total := p.TotalDistance(track.Length) + distance
		oldLap := p.Location.Lap
		p.Location.Lap = int(total / track.Length)
		p.Location.LapDistance = math.Mod(total, track.Length)
		p.Location.Sector = sectorOf(p.Location.LapDistance, track)

		p.TotalTime += dt
		p.LapTime += dt
		if p.Location.Lap > oldLap {
			if p.Location.Lap >= lapCompleteMinLaps &&
				p.Location.LapDistance < lapCompleteWindow*track.Length {
				events = append(events, s.Event(raceTime, model.EventLapComplete,
					fmt.Sprintf("%s completed lap %d", p.PlayerID, p.Location.Lap),
					[]string{p.PlayerID},
					map[string]any{"lap": p.Location.Lap, "lapTime": p.LapTime}))
			}
			p.LapTime = 0
		}

		oldFuel := p.Fuel
		fuelRate := physics.FuelConsumptionRate(spec, newSpeed, throttle)
		p.Fuel = clamp(p.Fuel-fuelRate*dt, 0, 100)
		if oldFuel >= lowFuelThreshold && p.Fuel < lowFuelThreshold {
			events = append(events, s.Event(raceTime, model.EventIncident,
				fmt.Sprintf("%s is low on fuel", p.PlayerID),
				[]string{p.PlayerID},
				map[string]any{"fuel": p.Fuel}))
		}

		lateralG := physics.LateralG(newSpeed, track)
		brakingG := 0.0
		if brake > 0 {
			brakingG = physics.BrakingDeceleration(spec, newSpeed) * brake / physics.Gravity
		}
		frontRate, rearRate := physics.TireWearRate(spec, newSpeed, lateralG, brakingG)
		oldFront := p.TireWear.Front
		p.TireWear.Front = clamp(p.TireWear.Front+frontRate*dt, 0, 100)
		p.TireWear.Rear = clamp(p.TireWear.Rear+rearRate*dt, 0, 100)
		if oldFront <= highWearThreshold && p.TireWear.Front > highWearThreshold {
			events = append(events, s.Event(raceTime, model.EventIncident,
				fmt.Sprintf("%s has high front tire wear", p.PlayerID),
				[]string{p.PlayerID},
				map[string]any{"front": p.TireWear.Front, "rear": p.TireWear.Rear}))
		}
	}

	s.rank(next)

	// overtakes: position improved, previous holder of that exact position
	// is the one who got passed
	for i := range next.Participants {
		p := &next.Participants[i]
		before, ok := prevPos[p.PlayerID]
		if !ok || p.Position >= before {
			continue
		}
		passed := prevHolder[p.Position]
		if passed == "" || passed == p.PlayerID {
			continue
		}
		events = append(events, s.Event(raceTime, model.EventOvertake,
			fmt.Sprintf("%s overtook %s for P%d", p.PlayerID, passed, p.Position),
			[]string{p.PlayerID, passed},
			map[string]any{"position": p.Position}))
	}

	next.RaceTime = raceTime
	if leader := holderOf(next, 1); leader != nil {
		next.CurrentLap = leader.Location.Lap + 1
	}
	next.Events = append(next.Events, events...)
	if len(next.Events) > s.maxEvents {
		next.Events = next.Events[len(next.Events)-s.maxEvents:]
	}
	return next, events
}

// rank assigns contiguous positions 1..N: primary key lap descending,
// secondary key within-lap distance descending, previous position as the
// deterministic tie breaker.
func (s *Simulator) rank(state *model.RaceState) {
	order := make([]*model.ParticipantState, len(state.Participants))
	for i := range state.Participants {
		order[i] = &state.Participants[i]
	}
	slices.SortStableFunc(order, func(a, b *model.ParticipantState) int {
		if a.Location.Lap != b.Location.Lap {
			return b.Location.Lap - a.Location.Lap
		}
		if a.Location.LapDistance != b.Location.LapDistance {
			if b.Location.LapDistance > a.Location.LapDistance {
				return 1
			}
			return -1
		}
		return a.Position - b.Position
	})
	for i, p := range order {
		p.Position = i + 1
	}
}

// Event builds a race event with the next id from the monotonic counter.
// Also used by the lifecycle layer for out-of-band events (joins, pit
// stops, finishes) so ids stay unique per race.
func (s *Simulator) Event(
	raceTime float64,
	kind model.EventKind,
	desc string,
	involved []string,
	data map[string]any,
) model.RaceEvent {
	s.eventSeq++
	return model.RaceEvent{
		ID:          fmt.Sprintf("evt-%d", s.eventSeq),
		Timestamp:   raceTime,
		Kind:        kind,
		Description: desc,
		Involved:    involved,
		Data:        data,
	}
}

// SeqFromEvents returns the highest event counter value found in the
// given events, so a restored race continues its id sequence instead of
// reissuing ids.
func SeqFromEvents(events []model.RaceEvent) uint64 {
	var maxSeq uint64
	for i := range events {
		var seq uint64
		if _, err := fmt.Sscanf(events[i].ID, "evt-%d", &seq); err == nil && seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq
}

func resolveInputs(cmd *model.DrivingCommand) (throttle, brake float64) {
	if cmd == nil {
		return 0, 0 // coast
	}
	switch cmd.Kind {
	case model.CommandAccelerate:
		return cmd.IntensityOrDefault(), 0
	case model.CommandBrake:
		return 0, cmd.IntensityOrDefault()
	case model.CommandPit:
		return 0, pitBrakeIntensity
	case model.CommandCoast, model.CommandShift:
		return 0, 0
	default:
		return 0, 0
	}
}

func sectorOf(lapDistance float64, track *model.TrackConfiguration) int {
	if track.SectorCount <= 0 || track.Length <= 0 {
		return 1
	}
	sector := int(lapDistance/track.Length*float64(track.SectorCount)) + 1
	if sector > track.SectorCount {
		sector = track.SectorCount
	}
	return sector
}

func holderOf(state *model.RaceState, position int) *model.ParticipantState {
	for i := range state.Participants {
		if state.Participants[i].Position == position {
			return &state.Participants[i]
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
