package game

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ApplyRoundResult credits every current holder of the winning team with the
// round's points. A (team, round) ledger row is claimed inside the same
// transaction, so replaying a result is a state conflict instead of a
// double count.
func (s *Service) ApplyRoundResult(ctx context.Context, teamID int64, round string) (RoundAward, error) {
	var out RoundAward

	run := func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		var name string
		var seed int
		err = tx.QueryRow(ctx, `
			SELECT name, seed FROM pool.teams WHERE id = $1
		`, teamID).Scan(&name, &seed)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: team %d", ErrTeamNotFound, teamID)
		}
		if err != nil {
			return err
		}

		category, err := CategoryForSeed(seed)
		if err != nil {
			// Teams seeded 5-8 are never picked, so nobody can hold them
			// and there is nothing to award.
			return err
		}
		points := AwardPoints(category, seed, round)

		cmd, err := tx.Exec(ctx, `
			INSERT INTO pool.round_results (team_id, round, points, applied_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (team_id, round) DO NOTHING
		`, teamID, normalizeRound(round), points, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("%w: team %d, round %q", ErrResultAlreadyApplied, teamID, round)
		}

		rows, err := tx.Query(ctx, `
			SELECT DISTINCT user_id FROM pool.picks WHERE team_id = $1 ORDER BY user_id
		`, teamID)
		if err != nil {
			return err
		}
		var holders []string
		for rows.Next() {
			var uid string
			if err := rows.Scan(&uid); err != nil {
				rows.Close()
				return err
			}
			holders = append(holders, uid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, uid := range holders {
			if _, err := tx.Exec(ctx, `
				INSERT INTO pool.scores (user_id, total_points)
				VALUES ($1, $2)
				ON CONFLICT (user_id)
				DO UPDATE SET total_points = pool.scores.total_points + EXCLUDED.total_points
			`, uid, points); err != nil {
				return err
			}
		}

		out = RoundAward{
			TeamID:    teamID,
			TeamName:  name,
			Round:     normalizeRound(round),
			Points:    points,
			HolderIDs: holders,
		}
		return tx.Commit(ctx)
	}

	if err := s.withSerializableRetry(ctx, run); err != nil {
		return RoundAward{}, err
	}
	s.log.Info("round result applied", "team", out.TeamID, "round", out.Round,
		"points", out.Points, "holders", len(out.HolderIDs))
	return out, nil
}
