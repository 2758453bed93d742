// Package race provides the relational rows the recovery fallback needs.
// The relational store is the last-resort source of participant identity
// when no snapshot is valid.
package race

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/repository"
)

var ErrRaceNotFound = errors.New("race not found in relational store")

type Row struct {
	ID        string
	TrackID   string
	TotalLaps int
}

type ParticipantRow struct {
	PlayerID  string
	CarID     string
	JoinOrder int
}

func LoadByID(ctx context.Context, conn repository.Querier, raceID string) (*Row, error) {
	row := conn.QueryRow(ctx,
		"select id, track_id, total_laps from race where id=$1", raceID)
	var item Row
	if err := row.Scan(&item.ID, &item.TrackID, &item.TotalLaps); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRaceNotFound
		}
		return nil, err
	}
	return &item, nil
}

//nolint:whitespace // can't make both editor and linter happy
func LoadParticipants(
	ctx context.Context,
	conn repository.Querier,
	raceID string,
) ([]ParticipantRow, error) {
	rows, err := conn.Query(ctx,
		`select player_id, car_id, join_order from race_participant
		 where race_id=$1 order by join_order`, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]ParticipantRow, 0)
	for rows.Next() {
		var item ParticipantRow
		if err := rows.Scan(&item.PlayerID, &item.CarID, &item.JoinOrder); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}
