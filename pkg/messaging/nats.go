package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/lucaswhitaker22/specracer-engine-go/log"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
)

// NatsBroadcaster pushes race notifications on per-race subjects.
// Subscribed participants listen on racestate.<raceId>, raceevent.<raceId>
// and racecompleted.<raceId>.
type NatsBroadcaster struct {
	conn *nats.Conn
	l    *log.Logger
}

type NatsOption func(*NatsBroadcaster)

func WithLogger(l *log.Logger) NatsOption {
	return func(n *NatsBroadcaster) { n.l = l }
}

var _ Broadcaster = (*NatsBroadcaster)(nil)

func NewNatsBroadcaster(conn *nats.Conn, opts ...NatsOption) *NatsBroadcaster {
	ret := &NatsBroadcaster{
		conn: conn,
		l:    log.Default().Named("nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (n *NatsBroadcaster) RaceStateUpdated(raceID string, state *model.RaceState) error {
	return n.publish(fmt.Sprintf("racestate.%s", raceID), state)
}

func (n *NatsBroadcaster) RaceEvent(raceID string, event *model.RaceEvent) error {
	return n.publish(fmt.Sprintf("raceevent.%s", raceID), event)
}

func (n *NatsBroadcaster) RaceCompleted(raceID string, state *model.RaceState) error {
	return n.publish(fmt.Sprintf("racecompleted.%s", raceID), state)
}

func (n *NatsBroadcaster) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(subject, data); err != nil {
		n.l.Debug("publish failed",
			log.String("subject", subject),
			log.ErrorField(err))
		return err
	}
	return nil
}
