// Package race owns the per-race lifecycle: the Waiting -> Active ->
// Completed state machine, the fixed-rate tick loop and the pending
// command map the simulator consumes each tick.
package race

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/lucaswhitaker22/specracer-engine-go/log"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/simulation"
)

var (
	ErrRaceNotFound    = errors.New("race not found")
	ErrNotWaiting      = errors.New("race is not accepting participants")
	ErrNotActive       = errors.New("race is not active")
	ErrAlreadyStarted  = errors.New("race already started")
	ErrDuplicatePlayer = errors.New("player already joined this race")
	ErrRaceFull        = errors.New("race is full")
	ErrNoParticipants  = errors.New("race has no participants")
	ErrNotParticipant  = errors.New("player is not part of this race")
)

const (
	DefaultMaxParticipants = 20

	// safety cutoff: a race never runs longer than this per scheduled lap
	maxSecondsPerLap = 300.0

	updateBuffer = 32
)

// Update is pushed on the race's outbound channel after every tick.
type Update struct {
	State     *model.RaceState
	Events    []model.RaceEvent
	Completed bool
}

// Manager exclusively owns the mutable state of one race. Everything it
// hands out is a copy.
type Manager struct {
	mu              sync.Mutex
	state           *model.RaceState
	track           *model.TrackConfiguration
	sim             *simulation.Simulator
	pending         map[string]model.DrivingCommand
	tick            time.Duration
	maxParticipants int
	updates         chan Update
	closeUpdates    sync.Once
	cancel          context.CancelFunc
	done            chan struct{}
	loopErr         error
	l               *log.Logger
}

type Option func(m *Manager)

func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) { m.tick = d }
}

func WithMaxParticipants(n int) Option {
	return func(m *Manager) { m.maxParticipants = n }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.l = l }
}

func WithConditions(weather, trackConditions string) Option {
	return func(m *Manager) {
		m.state.Weather = weather
		m.state.TrackConditions = trackConditions
	}
}

// WithRestoredState replaces the initial race state, used when a race is
// resumed from a recovered snapshot.
func WithRestoredState(state *model.RaceState) Option {
	return func(m *Manager) { m.state = state.Clone() }
}

//nolint:whitespace // can't make both editor and linter happy
func NewManager(
	raceID string,
	track *model.TrackConfiguration,
	totalLaps int,
	catalog simulation.CarCatalog,
	opts ...Option,
) *Manager {
	ret := &Manager{
		state: &model.RaceState{
			ID:              raceID,
			TrackID:         track.ID,
			Status:          model.RaceWaiting,
			CurrentLap:      1,
			TotalLaps:       totalLaps,
			Participants:    []model.ParticipantState{},
			Events:          []model.RaceEvent{},
			Weather:         "clear",
			TrackConditions: "dry",
		},
		track:           track,
		pending:         make(map[string]model.DrivingCommand),
		tick:            simulation.DefaultTickDuration,
		maxParticipants: DefaultMaxParticipants,
		updates:         make(chan Update, updateBuffer),
		l:               log.Default().Named("race"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	// the simulator is built after the options so a restored state
	// continues its event id sequence
	ret.sim = simulation.NewSimulator(catalog,
		simulation.WithEventSeq(simulation.SeqFromEvents(ret.state.Events)))
	return ret
}

func (m *Manager) RaceID() string { return m.state.ID }

func (m *Manager) Status() model.RaceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Status
}

// State returns a copy of the current race state.
func (m *Manager) State() *model.RaceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Err reports the error that terminated the tick loop, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loopErr
}

// Updates is the outbound channel of this race; closed once the race
// completes.
func (m *Manager) Updates() <-chan Update { return m.updates }

// AddParticipant registers a player while the race is waiting. The initial
// position equals the join order.
func (m *Manager) AddParticipant(playerID, carID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != model.RaceWaiting {
		return ErrNotWaiting
	}
	if m.state.Participant(playerID) != nil {
		return ErrDuplicatePlayer
	}
	if len(m.state.Participants) >= m.maxParticipants {
		return ErrRaceFull
	}
	m.state.Participants = append(m.state.Participants, model.ParticipantState{
		PlayerID: playerID,
		CarID:    carID,
		Position: len(m.state.Participants) + 1,
		Fuel:     100,
		Location: model.TrackLocation{Sector: 1},
	})
	m.appendEvent(m.sim.Event(m.state.RaceTime, model.EventRaceStart,
		fmt.Sprintf("%s joined the race", playerID),
		[]string{playerID},
		map[string]any{"carId": carID}))
	return nil
}

// RemoveParticipant drops a player and re-sequences the remaining
// positions. Allowed in any state.
func (m *Manager) RemoveParticipant(playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Participant(playerID) == nil {
		return ErrNotParticipant
	}
	m.state.Participants = lo.Reject(m.state.Participants,
		func(p model.ParticipantState, _ int) bool {
			return p.PlayerID == playerID
		})
	delete(m.pending, playerID)
	// keep relative order, close the gap
	sort.SliceStable(m.state.Participants, func(i, j int) bool {
		return m.state.Participants[i].Position < m.state.Participants[j].Position
	})
	for i := range m.state.Participants {
		m.state.Participants[i].Position = i + 1
	}
	return nil
}

// Start transitions the race to Active and begins the tick loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state.Status {
	case model.RaceActive, model.RaceCompleted:
		return ErrAlreadyStarted
	case model.RaceWaiting:
	}
	if len(m.state.Participants) == 0 {
		return ErrNoParticipants
	}
	m.state.Status = model.RaceActive
	ids := lo.Map(m.state.Participants,
		func(p model.ParticipantState, _ int) string { return p.PlayerID })
	m.appendEvent(m.sim.Event(m.state.RaceTime, model.EventRaceStart,
		fmt.Sprintf("race started with %d participants", len(ids)),
		ids, nil))

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx)
	return nil
}

// Resume restarts the tick loop of a race restored in the Active state.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != model.RaceActive {
		return ErrNotActive
	}
	if m.cancel != nil {
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx)
	return nil
}

// SubmitCommand stores the pending command for the next tick. A newer
// submission for the same participant within one tick window wins.
func (m *Manager) SubmitCommand(playerID string, cmd model.DrivingCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != model.RaceActive {
		return ErrNotActive
	}
	if m.state.Participant(playerID) == nil {
		return ErrNotParticipant
	}
	m.pending[playerID] = cmd
	return nil
}

// Stop cancels the tick loop and waits for it to finish before the race is
// declared completed. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	m.mu.Lock()
	if m.state.Status != model.RaceCompleted {
		m.state.Status = model.RaceCompleted
		m.appendEvent(m.sim.Event(m.state.RaceTime, model.EventRaceFinish,
			"race stopped", nil, nil))
	}
	m.mu.Unlock()
	m.closeUpdates.Do(func() { close(m.updates) })
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.onTick() {
				m.closeUpdates.Do(func() { close(m.updates) })
				return
			}
		}
	}
}

// onTick applies the simulator, checks for completion and publishes the
// update. Any unexpected error is fatal to this race only.
func (m *Manager) onTick() (completed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			m.l.Error("tick failed, stopping race",
				log.String("raceId", m.state.ID),
				log.Any("panic", r))
			m.loopErr = fmt.Errorf("tick failed: %v", r)
			m.state.Status = model.RaceCompleted
			m.appendEvent(m.sim.Event(m.state.RaceTime, model.EventIncident,
				"race aborted after internal error", nil,
				map[string]any{"error": fmt.Sprintf("%v", r)}))
			completed = true
		}
	}()

	cmds := m.pending
	m.pending = make(map[string]model.DrivingCommand)
	next, events := m.sim.Tick(m.state, cmds, m.track, m.tick)
	m.state = next

	if m.completionReached() {
		m.state.Status = model.RaceCompleted
		finish := m.sim.Event(m.state.RaceTime, model.EventRaceFinish,
			"race finished", m.standings(), nil)
		m.appendEvent(finish)
		events = append(events, finish)
		completed = true
	}
	m.pushUpdate(Update{State: m.state.Clone(), Events: events, Completed: completed})
	return completed
}

func (m *Manager) completionReached() bool {
	for i := range m.state.Participants {
		if m.state.Participants[i].Location.Lap >= m.state.TotalLaps {
			return true
		}
	}
	return m.state.RaceTime > float64(m.state.TotalLaps)*maxSecondsPerLap
}

// standings returns the player ids ordered by final position.
func (m *Manager) standings() []string {
	ordered := make([]model.ParticipantState, len(m.state.Participants))
	copy(ordered, m.state.Participants)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	return lo.Map(ordered,
		func(p model.ParticipantState, _ int) string { return p.PlayerID })
}

func (m *Manager) appendEvent(event model.RaceEvent) {
	m.state.Events = append(m.state.Events, event)
}

// pushUpdate never blocks the tick loop; when the buffer is full the
// update is dropped (consumers recover from the cache).
func (m *Manager) pushUpdate(update Update) {
	select {
	case m.updates <- update:
	default:
		m.l.Debug("dropping update, consumer too slow",
			log.String("raceId", m.state.ID))
	}
}
