package model

import "time"

type CommandKind string

const (
	CommandAccelerate CommandKind = "accelerate"
	CommandBrake      CommandKind = "brake"
	CommandCoast      CommandKind = "coast"
	CommandShift      CommandKind = "shift"
	CommandPit        CommandKind = "pit"
)

// DrivingCommand is one parsed player input. Intensity and Gear are only
// set for the command kinds that carry them.
type DrivingCommand struct {
	Kind      CommandKind `json:"kind"`
	Intensity *float64    `json:"intensity,omitempty"` // [0,1]
	Gear      *int        `json:"gear,omitempty"`      // [1,8]
	Stamp     time.Time   `json:"stamp"`
}

// IntensityOrDefault returns the command intensity, falling back to full
// input when the player gave none.
func (c *DrivingCommand) IntensityOrDefault() float64 {
	if c.Intensity == nil {
		return 1.0
	}
	return *c.Intensity
}
