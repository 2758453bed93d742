package commands

import (
	"sync"
	"time"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
)

const (
	DefaultQueueCapacity = 10
	DefaultRatePerSecond = 5

	rateWindow = time.Second
)

// Pipeline parses, validates and buffers driving commands. Queues and rate
// windows are independent per player.
type Pipeline struct {
	mu       sync.Mutex
	queues   map[string]*playerQueue
	capacity int
	rate     int
}

type playerQueue struct {
	entries []model.DrivingCommand
	// timestamps of successful enqueues within the trailing rate window
	admitted []time.Time
}

type PipelineOption func(p *Pipeline)

func WithQueueCapacity(capacity int) PipelineOption {
	return func(p *Pipeline) { p.capacity = capacity }
}

func WithRateLimit(perSecond int) PipelineOption {
	return func(p *Pipeline) { p.rate = perSecond }
}

func NewPipeline(opts ...PipelineOption) *Pipeline {
	ret := &Pipeline{
		queues:   make(map[string]*playerQueue),
		capacity: DefaultQueueCapacity,
		rate:     DefaultRatePerSecond,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// ProcessCommand parses the raw text and enqueues the result. A successful
// parse that fails enqueue is reported with the enqueue failure reason.
//
//nolint:whitespace // can't make both editor and linter happy
func (p *Pipeline) ProcessCommand(
	playerID, rawText string,
	stamp time.Time,
) (*model.DrivingCommand, error) {
	cmd, err := Parse(rawText)
	if err != nil {
		return nil, err
	}
	cmd.Stamp = stamp
	if err := p.Enqueue(playerID, *cmd, stamp); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Enqueue admits a command into the player's queue. When the queue is at
// capacity the oldest entry is evicted to admit the newest.
func (p *Pipeline) Enqueue(playerID string, cmd model.DrivingCommand, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.queues[playerID]
	if !ok {
		q = &playerQueue{}
		p.queues[playerID] = q
	}
	q.pruneWindow(now)
	if len(q.admitted) >= p.rate {
		return validationErrorf("command rate exceeded, max %d per second", p.rate)
	}
	if len(q.entries) >= p.capacity {
		// FIFO drop-oldest
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, cmd)
	q.admitted = append(q.admitted, now)
	return nil
}

// Dequeue removes and returns the oldest pending command for the player.
func (p *Pipeline) Dequeue(playerID string) (*model.DrivingCommand, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.queues[playerID]
	if !ok || len(q.entries) == 0 {
		return nil, false
	}
	cmd := q.entries[0]
	q.entries = q.entries[1:]
	return &cmd, true
}

func (p *Pipeline) QueueLength(playerID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if q, ok := p.queues[playerID]; ok {
		return len(q.entries)
	}
	return 0
}

// DropPlayer discards the queue and rate window of a player, used when a
// player leaves a race.
func (p *Pipeline) DropPlayer(playerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.queues, playerID)
}

func (q *playerQueue) pruneWindow(now time.Time) {
	cutoff := now.Add(-rateWindow)
	idx := 0
	for idx < len(q.admitted) && !q.admitted[idx].After(cutoff) {
		idx++
	}
	q.admitted = q.admitted[idx:]
}
