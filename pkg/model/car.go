package model

// DrivetrainKind selects the efficiency constant in the performance model.
type DrivetrainKind string

const (
	DrivetrainFront DrivetrainKind = "front"
	DrivetrainRear  DrivetrainKind = "rear"
	DrivetrainAll   DrivetrainKind = "all"
)

// CarSpecification is immutable reference data, looked up by car id.
type CarSpecification struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Horsepower      float64        `json:"horsepower"`
	Mass            float64        `json:"mass"` // kg
	DragCoefficient float64        `json:"dragCoefficient"`
	FrontalArea     float64        `json:"frontalArea"` // m^2
	Drivetrain      DrivetrainKind `json:"drivetrain"`
	TireGrip        float64        `json:"tireGrip"`
	GearRatios      []float64      `json:"gearRatios"`
	Downforce       float64        `json:"downforce"`   // kg equivalent at reference speed
	FuelEconomy     float64        `json:"fuelEconomy"` // km/l rating
	ZeroToHundred   float64        `json:"zeroToHundred"`
	TopSpeed        float64        `json:"topSpeed"` // km/h, rated
}
