// Package store defines the key-value contract the engine consumes and the
// serialization of cached race data. All race state, event logs and
// recovery snapshots are serialized blobs under namespaced key prefixes;
// reads and writes are atomic per key.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the abstract cache consumed by the engine. List
// semantics follow the usual cache server conventions: Push inserts at the
// head (newest first), Range/Trim accept negative indices counting from the
// end.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	ListPush(ctx context.Context, key, value string) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ListTrim(ctx context.Context, key string, start, stop int64) error
	ListLength(ctx context.Context, key string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}

func RaceStateKey(raceID string) string {
	return fmt.Sprintf("race_state:%s", raceID)
}

func ParticipantKey(raceID, playerID string) string {
	return fmt.Sprintf("participant:%s:%s", raceID, playerID)
}

func RaceEventsKey(raceID string) string {
	return fmt.Sprintf("race_events:%s", raceID)
}

func BackupKey(raceID string, version int) string {
	return fmt.Sprintf("race_backup:%s:%d", raceID, version)
}

func SnapshotKey(raceID, snapshotID string) string {
	return fmt.Sprintf("race_snapshot:%s:%s", raceID, snapshotID)
}

func SnapshotListKey(raceID string) string {
	return fmt.Sprintf("race_snapshots:%s", raceID)
}
