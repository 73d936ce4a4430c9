package game

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateTradeOffer records a pending bilateral swap offer. Ownership of both
// teams is checked now and re-checked at acceptance; only acceptance moves
// anything.
func (s *Service) CreateTradeOffer(ctx context.Context, in TradeOfferInput) (TradeView, error) {
	var out TradeView
	if in.CashCents < 0 {
		return out, ErrInvalidCashAmount
	}
	if in.InitiatorID == in.RecipientID {
		return out, fmt.Errorf("%w: cannot trade with yourself", ErrNotTradeParticipant)
	}
	if in.InitiatorTeamID == in.RecipientTeamID {
		return out, fmt.Errorf("%w: both sides name the same team", ErrNotTeamOwner)
	}

	run := func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if err := claimIdempotency(ctx, tx, in.InitiatorID, in.IdempotencyKey, "create_trade"); err != nil {
			return err
		}
		if err := holdsPick(ctx, tx, in.InitiatorID, in.InitiatorTeamID); err != nil {
			return err
		}
		if err := holdsPick(ctx, tx, in.RecipientID, in.RecipientTeamID); err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO pool.trades
				(initiator_id, recipient_id, initiator_team_id, recipient_team_id, cash_cents, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', $6, $6)
			RETURNING id, created_at, updated_at
		`, in.InitiatorID, in.RecipientID, in.InitiatorTeamID, in.RecipientTeamID,
			in.CashCents, s.clock.Now().UTC()).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	if err := s.withSerializableRetry(ctx, run); err != nil {
		return TradeView{}, err
	}
	out.InitiatorID = in.InitiatorID
	out.RecipientID = in.RecipientID
	out.InitiatorTeamID = in.InitiatorTeamID
	out.RecipientTeamID = in.RecipientTeamID
	out.CashCents = in.CashCents
	out.Status = TradePending
	s.log.Info("trade offered", "trade", out.ID, "initiator", in.InitiatorID, "recipient", in.RecipientID)
	return out, nil
}

// RespondToTradeOffer accepts or rejects a pending offer. Acceptance
// re-validates both sides' ownership under row locks and swaps every pick row
// on both teams in the same transaction; if ownership drifted since the offer,
// the call fails and the trade stays pending for the caller to retry or cancel.
func (s *Service) RespondToTradeOffer(ctx context.Context, tradeID int64, userID string, accept bool) error {
	run := func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		var t TradeView
		err = tx.QueryRow(ctx, `
			SELECT id, initiator_id, recipient_id, initiator_team_id, recipient_team_id, status
			FROM pool.trades
			WHERE id = $1
			FOR UPDATE
		`, tradeID).Scan(&t.ID, &t.InitiatorID, &t.RecipientID, &t.InitiatorTeamID, &t.RecipientTeamID, &t.Status)
		if err == pgx.ErrNoRows {
			return ErrTradeNotFound
		}
		if err != nil {
			return err
		}
		if t.Status != TradePending {
			return ErrTradeNotPending
		}
		if userID != t.RecipientID {
			return ErrNotTradeParticipant
		}

		if !accept {
			if _, err := tx.Exec(ctx, `
				UPDATE pool.trades SET status = 'rejected', updated_at = $2 WHERE id = $1
			`, tradeID, s.clock.Now().UTC()); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}

		// A side may hold several rows on its team (auction resolution
		// reassigns row by row), so the swap moves every matching row,
		// not just one. All rows are locked before any move.
		rows, err := tx.Query(ctx, `
			SELECT id, user_id, team_id FROM pool.picks
			WHERE (user_id = $1 AND team_id = $2) OR (user_id = $3 AND team_id = $4)
			ORDER BY id
			FOR UPDATE
		`, t.InitiatorID, t.InitiatorTeamID, t.RecipientID, t.RecipientTeamID)
		if err != nil {
			return err
		}
		var holders []pickHolder
		for rows.Next() {
			var h pickHolder
			if err := rows.Scan(&h.id, &h.userID, &h.teamID); err != nil {
				rows.Close()
				return err
			}
			holders = append(holders, h)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		assignments, err := reassignForTrade(holders, t)
		if err != nil {
			return err
		}
		for pickID, newOwner := range assignments {
			if _, err := tx.Exec(ctx, `
				UPDATE pool.picks SET user_id = $2 WHERE id = $1
			`, pickID, newOwner); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE pool.trades SET status = 'accepted', updated_at = $2 WHERE id = $1
		`, tradeID, s.clock.Now().UTC()); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	if err := s.withSerializableRetry(ctx, run); err != nil {
		return err
	}
	s.log.Info("trade responded", "trade", tradeID, "user", userID, "accept", accept)
	return nil
}

// CancelTrade lets the initiator withdraw a pending offer.
func (s *Service) CancelTrade(ctx context.Context, tradeID int64, userID string) error {
	run := func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		var initiator string
		var status TradeStatus
		err = tx.QueryRow(ctx, `
			SELECT initiator_id, status FROM pool.trades WHERE id = $1 FOR UPDATE
		`, tradeID).Scan(&initiator, &status)
		if err == pgx.ErrNoRows {
			return ErrTradeNotFound
		}
		if err != nil {
			return err
		}
		if status != TradePending {
			return ErrTradeNotPending
		}
		if userID != initiator {
			return ErrNotTradeParticipant
		}

		if _, err := tx.Exec(ctx, `
			UPDATE pool.trades SET status = 'canceled', updated_at = $2 WHERE id = $1
		`, tradeID, s.clock.Now().UTC()); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	return s.withSerializableRetry(ctx, run)
}

func (s *Service) ListTradesForUser(ctx context.Context, userID string) ([]TradeView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, initiator_id, recipient_id, initiator_team_id, recipient_team_id,
		       cash_cents, status, created_at, updated_at
		FROM pool.trades
		WHERE initiator_id = $1 OR recipient_id = $1
		ORDER BY id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []TradeView
	for rows.Next() {
		var t TradeView
		if err := rows.Scan(&t.ID, &t.InitiatorID, &t.RecipientID, &t.InitiatorTeamID,
			&t.RecipientTeamID, &t.CashCents, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// holdsPick checks that the user holds at least one pick row on the team.
func holdsPick(ctx context.Context, tx pgx.Tx, userID string, teamID int64) error {
	var n int64
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM pool.picks WHERE user_id = $1 AND team_id = $2
	`, userID, teamID).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: user %s, team %d", ErrNotTeamOwner, userID, teamID)
	}
	return nil
}

type pickHolder struct {
	id     int64
	userID string
	teamID int64
}

// reassignForTrade maps every pick row touched by an accepted trade to its
// new holder: all of the initiator's rows on the offered team go to the
// recipient and vice versa. A side with no rows means ownership drifted
// since the offer was made.
func reassignForTrade(holders []pickHolder, t TradeView) (map[int64]string, error) {
	out := make(map[int64]string, len(holders))
	var initiatorRows, recipientRows int
	for _, h := range holders {
		switch {
		case h.userID == t.InitiatorID && h.teamID == t.InitiatorTeamID:
			out[h.id] = t.RecipientID
			initiatorRows++
		case h.userID == t.RecipientID && h.teamID == t.RecipientTeamID:
			out[h.id] = t.InitiatorID
			recipientRows++
		}
	}
	if initiatorRows == 0 || recipientRows == 0 {
		return nil, ErrOwnershipChanged
	}
	return out, nil
}
