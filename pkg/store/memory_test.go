package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucaswhitaker22/specracer-engine-go/testsupport/basedata"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, m.SetWithExpiry(ctx, "k", []byte("v"), 0))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.SetWithExpiry(ctx, "k", []byte("v"), 10*time.Millisecond))

	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_ListPushNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, m.ListPush(ctx, "l", v))
	}
	got, err := m.ListRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, got)

	length, err := m.ListLength(ctx, "l")
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)
}

func TestMemoryStore_ListRange(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.ListPush(ctx, "l", v))
	}
	// list is d,c,b,a
	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{name: "full", start: 0, stop: -1, want: []string{"d", "c", "b", "a"}},
		{name: "head", start: 0, stop: 1, want: []string{"d", "c"}},
		{name: "tail via negative", start: -2, stop: -1, want: []string{"b", "a"}},
		{name: "beyond end clamped", start: 2, stop: 99, want: []string{"b", "a"}},
		{name: "inverted is empty", start: 3, stop: 1, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ListRange(ctx, "l", tt.start, tt.stop)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryStore_ListTrim(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.ListPush(ctx, "l", v))
	}
	require.NoError(t, m.ListTrim(ctx, "l", 0, 1))
	got, err := m.ListRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, got)
}

func TestMemoryStore_Keys(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.SetWithExpiry(ctx, RaceStateKey("r1"), []byte("{}"), 0))
	require.NoError(t, m.SetWithExpiry(ctx, RaceStateKey("r2"), []byte("{}"), 0))
	require.NoError(t, m.SetWithExpiry(ctx, RaceEventsKey("r1"), []byte("[]"), 0))

	got, err := m.Keys(ctx, "race_state:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{RaceStateKey("r1"), RaceStateKey("r2")}, got)
}

func TestCodec_RaceStateRoundTrip(t *testing.T) {
	state := basedata.SampleRaceState()
	data, err := EncodeRaceState(state)
	require.NoError(t, err)
	got, err := DecodeRaceState(data)
	require.NoError(t, err)
	assert.Equal(t, state.ID, got.ID)
	assert.Len(t, got.Participants, len(state.Participants))
}

func TestCodec_RejectsUnknownSchemaVersion(t *testing.T) {
	_, err := DecodeRaceState([]byte(`{"schemaVersion":99,"state":{}}`))
	assert.Error(t, err)

	_, err = DecodeSnapshot([]byte(`{"schemaVersion":99}`))
	assert.Error(t, err)

	_, err = DecodeRaceState([]byte("not json"))
	assert.Error(t, err)
}
