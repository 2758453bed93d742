// Package recovery makes race state durable against cache failure. It
// periodically snapshots each race with an integrity checksum, prunes old
// snapshots and restores the newest valid snapshot after corruption,
// falling back to a state synthesized from the relational store when no
// snapshot validates.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/lucaswhitaker22/specracer-engine-go/log"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/store"
)

var (
	ErrRaceStateNotFound = errors.New("race state not found in cache")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrCorruptSnapshot   = errors.New("snapshot failed validation")
)

const (
	DefaultSnapshotInterval = 10 * time.Second
	DefaultSnapshotTTL      = time.Hour
	DefaultMaxSnapshots     = 50

	raceStateTTL = time.Hour
)

// RaceSource is the last-resort source of participant identity, backed by
// the relational store.
type RaceSource interface {
	LoadRace(ctx context.Context, raceID string) (RaceRecord, error)
	LoadParticipants(ctx context.Context, raceID string) ([]ParticipantRecord, error)
}

type RaceRecord struct {
	ID        string
	TrackID   string
	TotalLaps int
}

type ParticipantRecord struct {
	PlayerID  string
	CarID     string
	JoinOrder int
}

type Coordinator struct {
	mu           sync.Mutex
	kv           store.KeyValueStore
	source       RaceSource
	timers       map[string]*snapshotTimer
	interval     time.Duration
	ttl          time.Duration
	maxSnapshots int
	l            *log.Logger
}

type snapshotTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(c *Coordinator)

func WithSnapshotInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.interval = d }
}

func WithSnapshotTTL(d time.Duration) Option {
	return func(c *Coordinator) { c.ttl = d }
}

func WithMaxSnapshots(n int) Option {
	return func(c *Coordinator) { c.maxSnapshots = n }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.l = l }
}

func NewCoordinator(kv store.KeyValueStore, source RaceSource, opts ...Option) *Coordinator {
	ret := &Coordinator{
		kv:           kv,
		source:       source,
		timers:       make(map[string]*snapshotTimer),
		interval:     DefaultSnapshotInterval,
		ttl:          DefaultSnapshotTTL,
		maxSnapshots: DefaultMaxSnapshots,
		l:            log.Default().Named("recovery"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// StartSnapshots begins the periodic snapshot timer for a race. Errors
// during an automatic snapshot are logged and retried on the next
// interval, never fatal to the race.
func (c *Coordinator) StartSnapshots(raceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.timers[raceID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &snapshotTimer{cancel: cancel, done: make(chan struct{})}
	c.timers[raceID] = t
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.CreateSnapshot(ctx, raceID); err != nil {
					c.l.Warn("automatic snapshot failed",
						log.String("raceId", raceID),
						log.ErrorField(err))
				}
			}
		}
	}()
}

// StopSnapshots cancels the timer and waits for it to finish.
func (c *Coordinator) StopSnapshots(raceID string) {
	c.mu.Lock()
	t, ok := c.timers[raceID]
	if ok {
		delete(c.timers, raceID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	t.cancel()
	<-t.done
}

// CreateSnapshot captures the current cached race state, stores it under a
// bounded expiry and prunes the per-race snapshot list to the configured
// maximum, deleting evicted payloads.
func (c *Coordinator) CreateSnapshot(ctx context.Context, raceID string) (*model.StateSnapshot, error) {
	data, err := c.kv.Get(ctx, store.RaceStateKey(raceID))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRaceStateNotFound, raceID)
		}
		return nil, err
	}
	state, err := store.DecodeRaceState(data)
	if err != nil {
		return nil, err
	}

	snapshot := &model.StateSnapshot{
		SchemaVersion: model.SchemaVersion,
		ID:            uuid.NewString(),
		RaceID:        raceID,
		CapturedAt:    time.Now(),
		State:         *state,
		Checksum:      Checksum(state),
	}
	payload, err := store.EncodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	key := store.SnapshotKey(raceID, snapshot.ID)
	if err := c.kv.SetWithExpiry(ctx, key, payload, c.ttl); err != nil {
		return nil, err
	}
	listKey := store.SnapshotListKey(raceID)
	if err := c.kv.ListPush(ctx, listKey, snapshot.ID); err != nil {
		return nil, err
	}
	if err := c.prune(ctx, raceID); err != nil {
		c.l.Warn("snapshot pruning failed",
			log.String("raceId", raceID), log.ErrorField(err))
	}
	c.l.Debug("snapshot created",
		log.String("raceId", raceID),
		log.String("snapshotId", snapshot.ID))
	return snapshot, nil
}

// prune keeps the newest maxSnapshots ids and deletes the payloads of
// everything beyond that.
func (c *Coordinator) prune(ctx context.Context, raceID string) error {
	listKey := store.SnapshotListKey(raceID)
	length, err := c.kv.ListLength(ctx, listKey)
	if err != nil {
		return err
	}
	if length <= int64(c.maxSnapshots) {
		return nil
	}
	evicted, err := c.kv.ListRange(ctx, listKey, int64(c.maxSnapshots), -1)
	if err != nil {
		return err
	}
	if len(evicted) > 0 {
		keys := lo.Map(evicted, func(id string, _ int) string {
			return store.SnapshotKey(raceID, id)
		})
		if err := c.kv.Delete(ctx, keys...); err != nil {
			return err
		}
	}
	return c.kv.ListTrim(ctx, listKey, 0, int64(c.maxSnapshots)-1)
}

// RecoverRaceState scans the snapshot list newest-first and restores the
// first valid snapshot as the authoritative cached state. When no snapshot
// validates the state is synthesized from the relational store.
func (c *Coordinator) RecoverRaceState(ctx context.Context, raceID string) (*model.RaceState, error) {
	ids, err := c.kv.ListRange(ctx, store.SnapshotListKey(raceID), 0, -1)
	if err != nil {
		c.l.Warn("snapshot list unavailable",
			log.String("raceId", raceID), log.ErrorField(err))
		ids = nil
	}
	for _, id := range ids {
		data, err := c.kv.Get(ctx, store.SnapshotKey(raceID, id))
		if err != nil {
			// transient or expired, keep scanning the remaining snapshots
			c.l.Debug("snapshot unavailable",
				log.String("raceId", raceID), log.String("snapshotId", id),
				log.ErrorField(err))
			continue
		}
		snapshot, err := c.validate(data, raceID)
		if err != nil {
			c.l.Warn("snapshot failed validation",
				log.String("raceId", raceID), log.String("snapshotId", id),
				log.ErrorField(err))
			continue
		}
		if err := c.writeState(ctx, raceID, &snapshot.State); err != nil {
			return nil, err
		}
		c.l.Info("race state recovered from snapshot",
			log.String("raceId", raceID), log.String("snapshotId", id))
		return &snapshot.State, nil
	}
	c.l.Warn("no valid snapshot, synthesizing fallback state",
		log.String("raceId", raceID))
	return c.CreateFallbackState(ctx, raceID)
}

// RollbackToSnapshot restores a named snapshot, with the same validation
// as automatic recovery. Operator triggered.
//
//nolint:whitespace // can't make both editor and linter happy
func (c *Coordinator) RollbackToSnapshot(
	ctx context.Context,
	raceID, snapshotID string,
) (*model.RaceState, error) {
	data, err := c.kv.Get(ctx, store.SnapshotKey(raceID, snapshotID))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)
		}
		return nil, err
	}
	snapshot, err := c.validate(data, raceID)
	if err != nil {
		return nil, err
	}
	if err := c.writeState(ctx, raceID, &snapshot.State); err != nil {
		return nil, err
	}
	return &snapshot.State, nil
}

// CreateFallbackState synthesizes a degraded but consistent race state
// from the relational rows. A race unknown to the relational store is the
// one fatal, unrecoverable condition.
func (c *Coordinator) CreateFallbackState(ctx context.Context, raceID string) (*model.RaceState, error) {
	race, err := c.source.LoadRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	rows, err := c.source.LoadParticipants(ctx, raceID)
	if err != nil {
		return nil, err
	}
	state := &model.RaceState{
		ID:              race.ID,
		TrackID:         race.TrackID,
		Status:          model.RaceActive,
		CurrentLap:      1,
		TotalLaps:       race.TotalLaps,
		Participants:    make([]model.ParticipantState, 0, len(rows)),
		Events:          []model.RaceEvent{},
		Weather:         "clear",
		TrackConditions: "dry",
	}
	for i, row := range rows {
		state.Participants = append(state.Participants, model.ParticipantState{
			PlayerID: row.PlayerID,
			CarID:    row.CarID,
			Position: i + 1,
			Fuel:     100,
			Location: model.TrackLocation{Sector: 1},
		})
	}
	if err := c.writeState(ctx, raceID, state); err != nil {
		return nil, err
	}
	c.l.Info("fallback state created",
		log.String("raceId", raceID),
		log.Int("participants", len(state.Participants)))
	return state, nil
}

// CleanupRaceSnapshots stops the timer and deletes all snapshot payloads
// and the id list, called when a race is torn down.
func (c *Coordinator) CleanupRaceSnapshots(ctx context.Context, raceID string) error {
	c.StopSnapshots(raceID)
	listKey := store.SnapshotListKey(raceID)
	ids, err := c.kv.ListRange(ctx, listKey, 0, -1)
	if err != nil {
		return err
	}
	keys := lo.Map(ids, func(id string, _ int) string {
		return store.SnapshotKey(raceID, id)
	})
	keys = append(keys, listKey)
	return c.kv.Delete(ctx, keys...)
}

func (c *Coordinator) validate(data []byte, raceID string) (*model.StateSnapshot, error) {
	snapshot, err := store.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptSnapshot, err.Error())
	}
	if snapshot.RaceID != raceID {
		return nil, fmt.Errorf("%w: snapshot belongs to race %s",
			ErrCorruptSnapshot, snapshot.RaceID)
	}
	if got := Checksum(&snapshot.State); got != snapshot.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}
	for i := range snapshot.State.Participants {
		p := &snapshot.State.Participants[i]
		if p.PlayerID == "" || p.CarID == "" || p.Position < 1 {
			return nil, fmt.Errorf("%w: malformed participant at index %d",
				ErrCorruptSnapshot, i)
		}
	}
	return snapshot, nil
}

func (c *Coordinator) writeState(ctx context.Context, raceID string, state *model.RaceState) error {
	data, err := store.EncodeRaceState(state)
	if err != nil {
		return err
	}
	return c.kv.SetWithExpiry(ctx, store.RaceStateKey(raceID), data, raceStateTTL)
}
