// Package messaging defines the outbound notification port of the engine.
// Delivery is at-most-once and best-effort: the engine never retries a
// failed push since cached state and snapshots make everything recoverable.
package messaging

import "github.com/lucaswhitaker22/specracer-engine-go/pkg/model"

type Broadcaster interface {
	RaceStateUpdated(raceID string, state *model.RaceState) error
	RaceEvent(raceID string, event *model.RaceEvent) error
	RaceCompleted(raceID string, state *model.RaceState) error
}

// Noop discards all notifications, used in tests and tooling.
type Noop struct{}

var _ Broadcaster = (*Noop)(nil)

func (Noop) RaceStateUpdated(string, *model.RaceState) error { return nil }
func (Noop) RaceEvent(string, *model.RaceEvent) error        { return nil }
func (Noop) RaceCompleted(string, *model.RaceState) error    { return nil }
