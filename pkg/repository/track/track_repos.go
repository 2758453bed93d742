package track

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/repository"
)

var ErrTrackNotFound = errors.New("track not found")

const selector = `select id, name, length, sector_count, corner_count,
elevation, surface, difficulty from track`

func LoadByID(ctx context.Context, conn repository.Querier, trackID string) (*model.TrackConfiguration, error) {
	row := conn.QueryRow(ctx, selector+" where id=$1", trackID)
	var item model.TrackConfiguration
	var surface string
	err := row.Scan(&item.ID, &item.Name, &item.Length, &item.SectorCount,
		&item.CornerCount, &item.Elevation, &surface, &item.Difficulty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTrackNotFound
		}
		return nil, err
	}
	item.Surface = model.SurfaceKind(surface)
	return &item, nil
}
