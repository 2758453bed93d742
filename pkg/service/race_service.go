// Package service composes the engine: it owns the registry of live race
// managers, routes player commands through the pipeline, mirrors every tick
// into the key-value cache and fans updates out to broadcast listeners and
// the messaging port.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/lucaswhitaker22/specracer-engine-go/log"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/commands"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/messaging"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/race"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/recovery"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/repository"
	racerepos "github.com/lucaswhitaker22/specracer-engine-go/pkg/repository/race"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/simulation"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/store"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/utils/broadcast"
)

const (
	cacheTTL  = time.Hour
	backupTTL = 24 * time.Hour

	updateSourceBuffer = 32
)

// TrackSource resolves track configurations by id.
type TrackSource interface {
	Track(ctx context.Context, trackID string) (*model.TrackConfiguration, error)
}

// RelationalRaceSource adapts the repository rows to the recovery port.
type RelationalRaceSource struct {
	conn repository.Querier
}

var _ recovery.RaceSource = (*RelationalRaceSource)(nil)

func NewRelationalRaceSource(conn repository.Querier) *RelationalRaceSource {
	return &RelationalRaceSource{conn: conn}
}

func (s *RelationalRaceSource) LoadRace(ctx context.Context, raceID string) (recovery.RaceRecord, error) {
	row, err := racerepos.LoadByID(ctx, s.conn, raceID)
	if err != nil {
		return recovery.RaceRecord{}, err
	}
	return recovery.RaceRecord{
		ID:        row.ID,
		TrackID:   row.TrackID,
		TotalLaps: row.TotalLaps,
	}, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *RelationalRaceSource) LoadParticipants(
	ctx context.Context,
	raceID string,
) ([]recovery.ParticipantRecord, error) {
	rows, err := racerepos.LoadParticipants(ctx, s.conn, raceID)
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r racerepos.ParticipantRow, _ int) recovery.ParticipantRecord {
		return recovery.ParticipantRecord{
			PlayerID:  r.PlayerID,
			CarID:     r.CarID,
			JoinOrder: r.JoinOrder,
		}
	}), nil
}

type RaceService struct {
	mu       sync.Mutex
	lookup   *race.Lookup
	pipeline *commands.Pipeline
	kv       store.KeyValueStore
	rec      *recovery.Coordinator
	bcast    messaging.Broadcaster
	catalog  simulation.CarCatalog
	tracks   TrackSource
	raceOpts []race.Option
	runtimes map[string]*raceRuntime
	l        *log.Logger
}

// raceRuntime is the per-race plumbing around the manager: the consumer
// goroutine and the broadcast fan-out of its updates.
type raceRuntime struct {
	manager *race.Manager
	source  chan race.Update
	srv     broadcast.BroadcastServer[race.Update]
	done    chan struct{}
}

type Option func(s *RaceService)

// WithRaceOptions forwards options to every manager the service creates.
func WithRaceOptions(opts ...race.Option) Option {
	return func(s *RaceService) { s.raceOpts = opts }
}

func WithPipeline(p *commands.Pipeline) Option {
	return func(s *RaceService) { s.pipeline = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *RaceService) { s.l = l }
}

//nolint:whitespace // can't make both editor and linter happy
func NewRaceService(
	kv store.KeyValueStore,
	rec *recovery.Coordinator,
	bcast messaging.Broadcaster,
	catalog simulation.CarCatalog,
	tracks TrackSource,
	opts ...Option,
) *RaceService {
	ret := &RaceService{
		lookup:   race.NewLookup(),
		pipeline: commands.NewPipeline(),
		kv:       kv,
		rec:      rec,
		bcast:    bcast,
		catalog:  catalog,
		tracks:   tracks,
		runtimes: make(map[string]*raceRuntime),
		l:        log.Default().Named("service"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (s *RaceService) Lookup() *race.Lookup { return s.lookup }

func (s *RaceService) Pipeline() *commands.Pipeline { return s.pipeline }

// CreateRace registers a new race in the Waiting state. The returned state
// carries the generated race id.
func (s *RaceService) CreateRace(ctx context.Context, trackID string, totalLaps int) (*model.RaceState, error) {
	track, err := s.tracks.Track(ctx, trackID)
	if err != nil {
		return nil, err
	}
	raceID := uuid.NewString()
	m := race.NewManager(raceID, track, totalLaps, s.catalog, s.raceOpts...)
	s.lookup.AddRace(m)
	state := m.State()
	if err := s.persistState(ctx, state); err != nil {
		s.l.Warn("failed to cache new race state",
			log.String("raceId", raceID), log.ErrorField(err))
	}
	s.l.Info("race created",
		log.String("raceId", raceID),
		log.String("trackId", trackID),
		log.Int("totalLaps", totalLaps))
	return state, nil
}

func (s *RaceService) JoinRace(ctx context.Context, raceID, playerID, carID string) error {
	m, err := s.lookup.GetRace(raceID)
	if err != nil {
		return err
	}
	if err := m.AddParticipant(playerID, carID); err != nil {
		return err
	}
	return s.persistState(ctx, m.State())
}

func (s *RaceService) LeaveRace(ctx context.Context, raceID, playerID string) error {
	m, err := s.lookup.GetRace(raceID)
	if err != nil {
		return err
	}
	if err := m.RemoveParticipant(playerID); err != nil {
		return err
	}
	s.pipeline.DropPlayer(playerID)
	return s.persistState(ctx, m.State())
}

// StartRace transitions the race to Active, begins the tick loop, the
// snapshot timer and the update consumer.
func (s *RaceService) StartRace(ctx context.Context, raceID string) error {
	m, err := s.lookup.GetRace(raceID)
	if err != nil {
		return err
	}
	// the tick loop must outlive the caller's request context
	if err := m.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	if err := s.persistState(ctx, m.State()); err != nil {
		s.l.Warn("failed to cache race state at start",
			log.String("raceId", raceID), log.ErrorField(err))
	}
	s.startRuntime(m)
	return nil
}

// ResumeRace rebuilds a race from the recovery chain (newest valid
// snapshot, then the relational fallback) and restarts its tick loop when
// the recovered state is Active.
func (s *RaceService) ResumeRace(ctx context.Context, raceID string) (*model.RaceState, error) {
	if _, err := s.lookup.GetRace(raceID); err == nil {
		return nil, race.ErrAlreadyStarted
	}
	state, err := s.rec.RecoverRaceState(ctx, raceID)
	if err != nil {
		return nil, err
	}
	track, err := s.tracks.Track(ctx, state.TrackID)
	if err != nil {
		return nil, err
	}
	opts := append([]race.Option{}, s.raceOpts...)
	opts = append(opts, race.WithRestoredState(state))
	m := race.NewManager(raceID, track, state.TotalLaps, s.catalog, opts...)
	s.lookup.AddRace(m)
	if state.Status == model.RaceActive {
		if err := m.Resume(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		s.startRuntime(m)
	}
	s.l.Info("race resumed",
		log.String("raceId", raceID),
		log.String("status", string(state.Status)))
	return m.State(), nil
}

// SubmitCommand validates and buffers a raw command text. The command takes
// effect on a subsequent tick, one dequeued per participant per tick.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *RaceService) SubmitCommand(
	_ context.Context,
	raceID, playerID, rawText string,
) (*model.DrivingCommand, error) {
	m, err := s.lookup.GetRace(raceID)
	if err != nil {
		return nil, err
	}
	if m.Status() != model.RaceActive {
		return nil, race.ErrNotActive
	}
	if m.State().Participant(playerID) == nil {
		return nil, race.ErrNotParticipant
	}
	return s.pipeline.ProcessCommand(playerID, rawText, time.Now())
}

// RaceState serves the live manager state when the race is resident and
// falls back to the cached copy otherwise.
func (s *RaceService) RaceState(ctx context.Context, raceID string) (*model.RaceState, error) {
	if m, err := s.lookup.GetRace(raceID); err == nil {
		return m.State(), nil
	}
	data, err := s.kv.Get(ctx, store.RaceStateKey(raceID))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, race.ErrRaceNotFound
		}
		return nil, err
	}
	return store.DecodeRaceState(data)
}

// Subscribe attaches a listener to the race's update fan-out.
func (s *RaceService) Subscribe(raceID string) (<-chan race.Update, error) {
	s.mu.Lock()
	rt, ok := s.runtimes[raceID]
	s.mu.Unlock()
	if !ok {
		return nil, race.ErrRaceNotFound
	}
	return rt.srv.Subscribe(), nil
}

func (s *RaceService) Unsubscribe(raceID string, ch <-chan race.Update) {
	s.mu.Lock()
	rt, ok := s.runtimes[raceID]
	s.mu.Unlock()
	if ok {
		rt.srv.CancelSubscription(ch)
	}
}

// TeardownRace stops the race, removes its snapshots and cache entries and
// drops it from the registry.
func (s *RaceService) TeardownRace(ctx context.Context, raceID string) error {
	m, err := s.lookup.GetRace(raceID)
	if err != nil {
		return err
	}
	state := m.State()
	m.Stop()
	s.waitRuntime(raceID)

	if err := s.rec.CleanupRaceSnapshots(ctx, raceID); err != nil {
		s.l.Warn("snapshot cleanup failed",
			log.String("raceId", raceID), log.ErrorField(err))
	}
	keys := []string{store.RaceStateKey(raceID), store.RaceEventsKey(raceID)}
	for i := range state.Participants {
		p := &state.Participants[i]
		keys = append(keys, store.ParticipantKey(raceID, p.PlayerID))
		s.pipeline.DropPlayer(p.PlayerID)
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		s.l.Warn("cache cleanup failed",
			log.String("raceId", raceID), log.ErrorField(err))
	}
	s.lookup.RemoveRace(raceID)
	s.l.Info("race torn down", log.String("raceId", raceID))
	return nil
}

// Shutdown stops every resident race and waits for their consumers. Cache
// entries and snapshots are left behind so races can be resumed.
func (s *RaceService) Shutdown(_ context.Context) {
	for _, m := range s.lookup.Races() {
		m.Stop()
		s.waitRuntime(m.RaceID())
	}
	s.lookup.Clear()
}

func (s *RaceService) startRuntime(m *race.Manager) {
	raceID := m.RaceID()
	source := make(chan race.Update, updateSourceBuffer)
	rt := &raceRuntime{
		manager: m,
		source:  source,
		srv: broadcast.NewBroadcastServer(raceID, "race", source,
			broadcast.WithTelemetry[race.Update](raceID)),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.runtimes[raceID] = rt
	s.mu.Unlock()
	s.rec.StartSnapshots(raceID)
	go s.consume(rt)
}

func (s *RaceService) waitRuntime(raceID string) {
	s.mu.Lock()
	rt, ok := s.runtimes[raceID]
	if ok {
		delete(s.runtimes, raceID)
	}
	s.mu.Unlock()
	if ok {
		<-rt.done
	}
}

// consume drains the manager's update channel until the race completes:
// mirror to cache, notify the messaging port, feed the broadcast fan-out
// and pump the next round of buffered commands into the manager.
func (s *RaceService) consume(rt *raceRuntime) {
	raceID := rt.manager.RaceID()
	defer func() {
		s.rec.StopSnapshots(raceID)
		rt.srv.Close()
		close(rt.done)
	}()
	for update := range rt.manager.Updates() {
		ctx := context.Background()
		s.persistUpdate(ctx, raceID, update)

		if err := s.bcast.RaceStateUpdated(raceID, update.State); err != nil {
			s.l.Debug("state broadcast failed",
				log.String("raceId", raceID), log.ErrorField(err))
		}
		for i := range update.Events {
			if err := s.bcast.RaceEvent(raceID, &update.Events[i]); err != nil {
				s.l.Debug("event broadcast failed",
					log.String("raceId", raceID), log.ErrorField(err))
			}
		}
		select {
		case rt.source <- update:
		default:
		}

		if update.Completed {
			if err := s.bcast.RaceCompleted(raceID, update.State); err != nil {
				s.l.Debug("completion broadcast failed",
					log.String("raceId", raceID), log.ErrorField(err))
			}
			s.backupFinalState(ctx, raceID, update.State)
			return
		}
		s.pumpCommands(rt.manager, update.State)
	}
}

// pumpCommands feeds at most one buffered command per participant into the
// manager. Pit commands additionally apply their effects immediately, the
// simulator only sees the braking phase.
func (s *RaceService) pumpCommands(m *race.Manager, state *model.RaceState) {
	for i := range state.Participants {
		playerID := state.Participants[i].PlayerID
		cmd, ok := s.pipeline.Dequeue(playerID)
		if !ok {
			continue
		}
		if cmd.Kind == model.CommandPit {
			if _, err := m.ApplyPitStop(playerID); err != nil {
				s.l.Debug("pit stop rejected",
					log.String("raceId", m.RaceID()),
					log.String("playerId", playerID),
					log.ErrorField(err))
				continue
			}
		}
		if err := m.SubmitCommand(playerID, *cmd); err != nil {
			s.l.Debug("command rejected",
				log.String("raceId", m.RaceID()),
				log.String("playerId", playerID),
				log.ErrorField(err))
		}
	}
}

func (s *RaceService) persistUpdate(ctx context.Context, raceID string, update race.Update) {
	if err := s.persistState(ctx, update.State); err != nil {
		s.l.Warn("failed to cache race state",
			log.String("raceId", raceID), log.ErrorField(err))
	}
}

func (s *RaceService) persistState(ctx context.Context, state *model.RaceState) error {
	data, err := store.EncodeRaceState(state)
	if err != nil {
		return err
	}
	if err := s.kv.SetWithExpiry(ctx, store.RaceStateKey(state.ID), data, cacheTTL); err != nil {
		return err
	}
	if events, err := store.EncodeEvents(state.Events); err == nil {
		if err := s.kv.SetWithExpiry(ctx,
			store.RaceEventsKey(state.ID), events, cacheTTL); err != nil {
			return err
		}
	}
	for i := range state.Participants {
		p := &state.Participants[i]
		blob, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if err := s.kv.SetWithExpiry(ctx,
			store.ParticipantKey(state.ID, p.PlayerID), blob, cacheTTL); err != nil {
			return err
		}
	}
	return nil
}

// backupFinalState keeps the final standings around longer than the live
// cache entries.
func (s *RaceService) backupFinalState(ctx context.Context, raceID string, state *model.RaceState) {
	data, err := store.EncodeRaceState(state)
	if err == nil {
		err = s.kv.SetWithExpiry(ctx, store.BackupKey(raceID, model.SchemaVersion), data, backupTTL)
	}
	if err != nil {
		s.l.Warn("failed to back up final state",
			log.String("raceId", raceID), log.ErrorField(err))
	}
}
