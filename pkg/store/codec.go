package store

import (
	"encoding/json"
	"fmt"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
)

// cached blobs carry a schema version; decoding rejects mismatches instead
// of trusting the shape at runtime

func EncodeRaceState(state *model.RaceState) ([]byte, error) {
	return json.Marshal(&model.CachedRaceState{
		SchemaVersion: model.SchemaVersion,
		State:         *state,
	})
}

func DecodeRaceState(data []byte) (*model.RaceState, error) {
	var envelope model.CachedRaceState
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed race state: %w", err)
	}
	if envelope.SchemaVersion != model.SchemaVersion {
		return nil, fmt.Errorf("unsupported race state schema version %d",
			envelope.SchemaVersion)
	}
	return &envelope.State, nil
}

func EncodeSnapshot(snapshot *model.StateSnapshot) ([]byte, error) {
	return json.Marshal(snapshot)
}

func DecodeSnapshot(data []byte) (*model.StateSnapshot, error) {
	var snapshot model.StateSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("malformed snapshot: %w", err)
	}
	if snapshot.SchemaVersion != model.SchemaVersion {
		return nil, fmt.Errorf("unsupported snapshot schema version %d",
			snapshot.SchemaVersion)
	}
	return &snapshot, nil
}

func EncodeEvents(events []model.RaceEvent) ([]byte, error) {
	return json.Marshal(events)
}
