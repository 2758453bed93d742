package recovery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
)

// Checksum digests only the fields that determine standings integrity:
// race id, current lap, race time, participant count and each
// participant's id, position and total time. Volatile fields (fuel, tire
// wear, speed) are excluded so transient rounding between capture and
// validation cannot raise false corruption signals.
func Checksum(state *model.RaceState) string {
	hasher := sha256.New()
	fmt.Fprintf(hasher, "%s|%d|%s|%d",
		state.ID,
		state.CurrentLap,
		strconv.FormatFloat(state.RaceTime, 'f', 3, 64),
		len(state.Participants))
	for i := range state.Participants {
		p := &state.Participants[i]
		fmt.Fprintf(hasher, "|%s|%d|%s",
			p.PlayerID,
			p.Position,
			strconv.FormatFloat(p.TotalTime, 'f', 3, 64))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
