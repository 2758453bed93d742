package commands

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
)

func TestPipeline_ProcessCommand(t *testing.T) {
	p := NewPipeline()
	now := time.Now()

	cmd, err := p.ProcessCommand("player-1", "accelerate 80%", now)
	require.NoError(t, err)
	assert.Equal(t, model.CommandAccelerate, cmd.Kind)
	assert.Equal(t, now, cmd.Stamp)
	assert.Equal(t, 1, p.QueueLength("player-1"))

	_, err = p.ProcessCommand("player-1", "warp", now)
	require.Error(t, err)
	assert.Equal(t, 1, p.QueueLength("player-1"))
}

func TestPipeline_CapacityDropsOldest(t *testing.T) {
	p := NewPipeline(WithQueueCapacity(3), WithRateLimit(100))
	now := time.Now()
	for i := 0; i < 4; i++ {
		gear := i + 1
		err := p.Enqueue("player-1",
			model.DrivingCommand{Kind: model.CommandShift, Gear: &gear}, now)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, p.QueueLength("player-1"))

	// the oldest entry (gear 1) was evicted
	cmd, ok := p.Dequeue("player-1")
	require.True(t, ok)
	assert.Equal(t, 2, *cmd.Gear)
}

func TestPipeline_RateLimit(t *testing.T) {
	p := NewPipeline(WithRateLimit(5))
	now := time.Now()
	for i := 0; i < 5; i++ {
		err := p.Enqueue("player-1",
			model.DrivingCommand{Kind: model.CommandCoast},
			now.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
	}
	err := p.Enqueue("player-1",
		model.DrivingCommand{Kind: model.CommandCoast},
		now.Add(6*time.Millisecond))
	require.Error(t, err)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	// the window is one second, afterwards commands are admitted again
	err = p.Enqueue("player-1",
		model.DrivingCommand{Kind: model.CommandCoast},
		now.Add(time.Second+time.Millisecond))
	assert.NoError(t, err)
}

func TestPipeline_RateLimitPerPlayer(t *testing.T) {
	p := NewPipeline(WithRateLimit(1))
	now := time.Now()
	require.NoError(t, p.Enqueue("player-1",
		model.DrivingCommand{Kind: model.CommandCoast}, now))
	require.Error(t, p.Enqueue("player-1",
		model.DrivingCommand{Kind: model.CommandCoast}, now))
	// other players keep their own window
	assert.NoError(t, p.Enqueue("player-2",
		model.DrivingCommand{Kind: model.CommandCoast}, now))
}

func TestPipeline_DequeueFIFO(t *testing.T) {
	p := NewPipeline(WithRateLimit(100))
	now := time.Now()
	for i := 0; i < 3; i++ {
		gear := i + 1
		require.NoError(t, p.Enqueue("player-1",
			model.DrivingCommand{Kind: model.CommandShift, Gear: &gear}, now))
	}
	for i := 0; i < 3; i++ {
		cmd, ok := p.Dequeue("player-1")
		require.True(t, ok, fmt.Sprintf("dequeue %d", i))
		assert.Equal(t, i+1, *cmd.Gear)
	}
	_, ok := p.Dequeue("player-1")
	assert.False(t, ok)
}

func TestPipeline_DropPlayer(t *testing.T) {
	p := NewPipeline()
	now := time.Now()
	require.NoError(t, p.Enqueue("player-1",
		model.DrivingCommand{Kind: model.CommandCoast}, now))
	p.DropPlayer("player-1")
	assert.Equal(t, 0, p.QueueLength("player-1"))
	_, ok := p.Dequeue("player-1")
	assert.False(t, ok)
}
