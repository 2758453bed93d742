// Package commands turns raw player input into validated driving commands
// and holds the bounded, rate-limited per-player queues.
package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
)

// ValidationError is surfaced to the submitting player only and never
// affects simulation state.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// alias table, applied before validation
var verbs = map[string]model.CommandKind{
	"accelerate": model.CommandAccelerate,
	"gas":        model.CommandAccelerate,
	"brake":      model.CommandBrake,
	"stop":       model.CommandBrake,
	"coast":      model.CommandCoast,
	"shift":      model.CommandShift,
	"gear":       model.CommandShift,
	"pit":        model.CommandPit,
	"p":          model.CommandPit,
}

const (
	MinGear = 1
	MaxGear = 8
)

func validVerbs() []string {
	ret := lo.Uniq(lo.Map(lo.Values(verbs), func(k model.CommandKind, _ int) string {
		return string(k)
	}))
	sort.Strings(ret)
	return ret
}

// Parse converts raw command text into a DrivingCommand. Input is
// case-insensitive and whitespace-trimmed. Grammar: verb [param].
//
//nolint:cyclop // one branch per verb
func Parse(text string) (*model.DrivingCommand, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return nil, validationErrorf("empty command")
	}
	kind, ok := verbs[fields[0]]
	if !ok {
		return nil, validationErrorf("unknown command %q, valid commands: %s",
			fields[0], strings.Join(validVerbs(), ", "))
	}
	if len(fields) > 2 {
		return nil, validationErrorf("too many arguments for %q", kind)
	}

	cmd := &model.DrivingCommand{Kind: kind}
	switch kind {
	case model.CommandAccelerate, model.CommandBrake:
		if len(fields) == 2 {
			intensity, err := parseIntensity(fields[1])
			if err != nil {
				return nil, err
			}
			cmd.Intensity = &intensity
		}
	case model.CommandShift:
		if len(fields) < 2 {
			return nil, validationErrorf("shift requires a gear between %d and %d",
				MinGear, MaxGear)
		}
		gear, err := strconv.Atoi(fields[1])
		if err != nil || gear < MinGear || gear > MaxGear {
			return nil, validationErrorf("invalid gear %q, must be between %d and %d",
				fields[1], MinGear, MaxGear)
		}
		cmd.Gear = &gear
	case model.CommandCoast, model.CommandPit:
		if len(fields) == 2 {
			return nil, validationErrorf("%q takes no argument", kind)
		}
	}
	return cmd, nil
}

// parseIntensity accepts a fraction in [0,1] or a percentage with a
// trailing "%".
func parseIntensity(arg string) (float64, error) {
	raw := arg
	percent := strings.HasSuffix(raw, "%")
	raw = strings.TrimSuffix(raw, "%")
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, validationErrorf("invalid intensity %q", arg)
	}
	if percent {
		val /= 100.0
	}
	if val < 0 || val > 1 {
		return 0, validationErrorf("intensity %q out of range, must be 0..1 or 0%%..100%%",
			arg)
	}
	return val, nil
}
