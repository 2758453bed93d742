// Package physics holds the pure vehicle performance model. All functions
// are side-effect free and work in SI units internally; speeds cross the
// package boundary in km/h to match the race state.
package physics

import (
	"math"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
)

// Gravity is exported so load computations outside this package express
// g-forces against the same constant the model uses.
const Gravity = 9.81 // m/s^2

const (
	airDensity = 1.225 // kg/m^3
	wattsPerHP = 745.7

	// reference speed for the speed-dependent downforce contribution
	downforceRefSpeed = 100.0 / 3.6 // m/s

	rollingResistance = 0.01

	// fuel model: pct/s at economy rating 1, before multipliers
	baseFuelRate     = 2.0
	fuelOptimumSpeed = 80.0 // km/h

	// tire model: pct/s at 100 km/h with neutral loads and 1500 kg
	baseTireWearRate = 0.05
	frontWearFactor  = 1.2
	referenceMass    = 1500.0
)

func drivetrainEfficiency(kind model.DrivetrainKind) float64 {
	switch kind {
	case model.DrivetrainFront:
		return 0.92
	case model.DrivetrainRear:
		return 0.90
	case model.DrivetrainAll:
		return 0.85
	default:
		return 0.90
	}
}

func kmhToMs(v float64) float64 { return v / 3.6 }
func msToKmh(v float64) float64 { return v * 3.6 }

func dragForce(spec *model.CarSpecification, speedMs float64) float64 {
	return 0.5 * airDensity * spec.DragCoefficient * spec.FrontalArea * speedMs * speedMs
}

// effectiveMass adds the speed-dependent downforce (scaling with speed^2
// relative to the 100 km/h reference) to the static mass.
func effectiveMass(spec *model.CarSpecification, speedMs float64) float64 {
	rel := speedMs / downforceRefSpeed
	return spec.Mass + spec.Downforce*rel*rel
}

// Acceleration returns the achievable acceleration in m/s^2 at the given
// speed (km/h) and throttle [0,1]. The result is the lesser of the
// power-limited and traction-limited acceleration, never negative.
func Acceleration(spec *model.CarSpecification, speedKmh, throttle float64) float64 {
	if throttle <= 0 {
		return 0
	}
	v := kmhToMs(speedKmh)
	power := spec.Horsepower * wattsPerHP
	drag := dragForce(spec, v)
	effMass := effectiveMass(spec, v)

	availPower := power - drag*v
	if availPower < 0 {
		availPower = 0
	}
	// avoid the force singularity at standstill
	tractiveForce := availPower / math.Max(v, 1.0)
	tractionLimit := effMass * Gravity * spec.TireGrip
	force := math.Min(tractiveForce, tractionLimit)
	force *= drivetrainEfficiency(spec.Drivetrain)

	accel := force / effMass * throttle
	return math.Max(accel, 0)
}

// BrakingDeceleration returns the peak deceleration in m/s^2 at the given
// speed (km/h). Brake grip benefits from downforce but is capped at 1.5 g.
func BrakingDeceleration(spec *model.CarSpecification, speedKmh float64) float64 {
	v := kmhToMs(speedKmh)
	effMass := effectiveMass(spec, v)
	grip := math.Min(spec.TireGrip*1.2, 1.5)
	brakeForce := effMass * Gravity * grip
	return brakeForce / effMass
}

// DragDeceleration is the natural deceleration (m/s^2) applied when neither
// throttle nor brake is active: aerodynamic drag plus rolling resistance.
func DragDeceleration(spec *model.CarSpecification, speedKmh float64) float64 {
	v := kmhToMs(speedKmh)
	drag := dragForce(spec, v)
	rolling := rollingResistance * spec.Mass * Gravity
	return (drag + rolling) / spec.Mass
}

// TopSpeed returns the power-limited terminal velocity in km/h, capped at
// the rated top speed of the specification.
func TopSpeed(spec *model.CarSpecification) float64 {
	power := spec.Horsepower * wattsPerHP * drivetrainEfficiency(spec.Drivetrain)
	denom := 0.5 * airDensity * spec.DragCoefficient * spec.FrontalArea
	if denom <= 0 {
		return spec.TopSpeed
	}
	// P = F*v = 0.5*rho*cd*A*v^3
	terminal := msToKmh(math.Cbrt(power / denom))
	return math.Min(terminal, spec.TopSpeed)
}

// FuelConsumptionRate returns the fuel burn in percent per second for the
// given speed (km/h) and throttle [0,1].
func FuelConsumptionRate(spec *model.CarSpecification, speedKmh, throttle float64) float64 {
	base := baseFuelRate / math.Max(spec.FuelEconomy, 1.0)
	throttleMult := 0.3 + 0.7*throttle
	speedPenalty := 1.0 + math.Abs(speedKmh-fuelOptimumSpeed)/160.0
	return base * throttleMult * speedPenalty
}

// TireWearRate returns the wear in percent per second for front and rear
// tires. Lateral and braking loads are given in g.
//
//nolint:whitespace // can't make both editor and linter happy
func TireWearRate(
	spec *model.CarSpecification,
	speedKmh, lateralG, brakingG float64,
) (front, rear float64) {
	base := baseTireWearRate *
		(speedKmh / 100.0) *
		(1.0 + lateralG*lateralG) *
		(1.0 + math.Pow(math.Max(brakingG, 0), 1.5)) *
		(spec.Mass / referenceMass) *
		spec.TireGrip
	base = math.Max(base, 0)
	return base * frontWearFactor, base
}

// LateralG estimates the sustained cornering load in g from the average
// corner radius of the track and the centripetal acceleration at speed.
func LateralG(speedKmh float64, track *model.TrackConfiguration) float64 {
	if track.CornerCount <= 0 || track.Length <= 0 {
		return 0
	}
	radius := track.Length / (float64(track.CornerCount) * 2 * math.Pi)
	v := kmhToMs(speedKmh)
	return v * v / radius / Gravity
}
