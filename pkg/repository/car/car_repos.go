package car

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/repository"
)

var ErrCarNotFound = errors.New("car not found")

// little helper
const selector = string(`select id, name, horsepower, mass, drag_coefficient,
 frontal_area, drivetrain, tire_grip, gear_ratios, downforce, fuel_economy,
 zero_to_hundred, top_speed from car_specification`)

//nolint:whitespace // can't make both editor and linter happy
func LoadByID(
	ctx context.Context,
	conn repository.Querier,
	carID string,
) (*model.CarSpecification, error) {
	row := conn.QueryRow(ctx, selector+" where id=$1", carID)
	var item model.CarSpecification
	var drivetrain string
	err := row.Scan(&item.ID, &item.Name, &item.Horsepower, &item.Mass,
		&item.DragCoefficient, &item.FrontalArea, &drivetrain, &item.TireGrip,
		&item.GearRatios, &item.Downforce, &item.FuelEconomy,
		&item.ZeroToHundred, &item.TopSpeed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	item.Drivetrain = model.DrivetrainKind(drivetrain)
	return &item, nil
}
