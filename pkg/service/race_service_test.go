package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/messaging"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/race"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/recovery"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/store"
	"github.com/lucaswhitaker22/specracer-engine-go/testsupport/basedata"
)

type staticTracks struct{}

func (staticTracks) Track(context.Context, string) (*model.TrackConfiguration, error) {
	return basedata.SampleTrack(), nil
}

type staticRaces struct{}

func (staticRaces) LoadRace(context.Context, string) (recovery.RaceRecord, error) {
	return recovery.RaceRecord{ID: "race-1", TrackID: "track-1", TotalLaps: 3}, nil
}

func (staticRaces) LoadParticipants(context.Context, string) ([]recovery.ParticipantRecord, error) {
	return []recovery.ParticipantRecord{
		{PlayerID: "player-1", CarID: "car-1", JoinOrder: 1},
	}, nil
}

func newTestService(kv store.KeyValueStore) *RaceService {
	rec := recovery.NewCoordinator(kv, staticRaces{},
		recovery.WithSnapshotInterval(time.Hour))
	return NewRaceService(kv, rec, messaging.Noop{},
		basedata.NewStaticCatalog(), staticTracks{},
		WithRaceOptions(race.WithTickInterval(5*time.Millisecond)))
}

func TestRaceService_CreateAndJoin(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	s := newTestService(kv)

	state, err := s.CreateRace(ctx, "track-1", 3)
	require.NoError(t, err)
	assert.Equal(t, model.RaceWaiting, state.Status)
	assert.NotEmpty(t, state.ID)

	require.NoError(t, s.JoinRace(ctx, state.ID, "player-1", "car-1"))
	assert.ErrorIs(t, s.JoinRace(ctx, state.ID, "player-1", "car-1"),
		race.ErrDuplicatePlayer)
	assert.ErrorIs(t, s.JoinRace(ctx, "missing", "player-1", "car-1"),
		race.ErrRaceNotFound)

	// the waiting race is already mirrored into the cache
	cached, err := s.RaceState(ctx, state.ID)
	require.NoError(t, err)
	assert.Len(t, cached.Participants, 1)
}

func TestRaceService_SubmitCommandValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(store.NewMemoryStore())

	state, err := s.CreateRace(ctx, "track-1", 3)
	require.NoError(t, err)
	require.NoError(t, s.JoinRace(ctx, state.ID, "player-1", "car-1"))

	_, err = s.SubmitCommand(ctx, state.ID, "player-1", "accelerate")
	assert.ErrorIs(t, err, race.ErrNotActive)

	require.NoError(t, s.StartRace(ctx, state.ID))
	defer s.Shutdown(ctx)

	_, err = s.SubmitCommand(ctx, state.ID, "ghost", "accelerate")
	assert.ErrorIs(t, err, race.ErrNotParticipant)

	cmd, err := s.SubmitCommand(ctx, state.ID, "player-1", "accelerate 80%")
	require.NoError(t, err)
	assert.Equal(t, model.CommandAccelerate, cmd.Kind)

	_, err = s.SubmitCommand(ctx, state.ID, "player-1", "warp 9")
	assert.Error(t, err)
}

func TestRaceService_StartRunsAndMirrorsState(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	s := newTestService(kv)

	state, err := s.CreateRace(ctx, "track-1", 100)
	require.NoError(t, err)
	require.NoError(t, s.JoinRace(ctx, state.ID, "player-1", "car-1"))
	require.NoError(t, s.StartRace(ctx, state.ID))
	defer s.Shutdown(ctx)

	_, err = s.SubmitCommand(ctx, state.ID, "player-1", "accelerate")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := s.RaceState(ctx, state.ID)
		return err == nil && got.Status == model.RaceActive && got.RaceTime > 0
	}, 2*time.Second, 10*time.Millisecond)

	// per-participant cache entries follow the race state
	assert.Eventually(t, func() bool {
		_, err := kv.Get(ctx, store.ParticipantKey(state.ID, "player-1"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRaceService_TeardownCleansCache(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	s := newTestService(kv)

	state, err := s.CreateRace(ctx, "track-1", 100)
	require.NoError(t, err)
	require.NoError(t, s.JoinRace(ctx, state.ID, "player-1", "car-1"))
	require.NoError(t, s.StartRace(ctx, state.ID))

	require.NoError(t, s.TeardownRace(ctx, state.ID))
	_, err = s.RaceState(ctx, state.ID)
	assert.ErrorIs(t, err, race.ErrRaceNotFound)
	length, err := kv.ListLength(ctx, store.SnapshotListKey(state.ID))
	require.NoError(t, err)
	assert.Zero(t, length)

	assert.ErrorIs(t, s.TeardownRace(ctx, state.ID), race.ErrRaceNotFound)
}

func TestRaceService_ResumeFromFallback(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	s := newTestService(kv)

	state, err := s.ResumeRace(ctx, "race-1")
	require.NoError(t, err)
	defer s.Shutdown(ctx)

	assert.Equal(t, model.RaceActive, state.Status)
	require.Len(t, state.Participants, 1)
	assert.InDelta(t, 100.0, state.Participants[0].Fuel, 1e-9)

	// resident now, a second resume is rejected
	_, err = s.ResumeRace(ctx, "race-1")
	assert.ErrorIs(t, err, race.ErrAlreadyStarted)
}

func TestRaceService_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := newTestService(store.NewMemoryStore())

	state, err := s.CreateRace(ctx, "track-1", 100)
	require.NoError(t, err)
	require.NoError(t, s.JoinRace(ctx, state.ID, "player-1", "car-1"))

	_, err = s.Subscribe(state.ID)
	assert.ErrorIs(t, err, race.ErrRaceNotFound)

	require.NoError(t, s.StartRace(ctx, state.ID))
	defer s.Shutdown(ctx)

	ch, err := s.Subscribe(state.ID)
	require.NoError(t, err)
	select {
	case update := <-ch:
		assert.Equal(t, state.ID, update.State.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an update on the subscription")
	}
	s.Unsubscribe(state.ID, ch)
}
