package game

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// OpenAuction moves a scheduled auction to open. The transition trigger is an
// operator decision; the engine only checks that it is legal.
func (s *Service) OpenAuction(ctx context.Context, auctionID int64, endsAt *time.Time) error {
	run := func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		var status AuctionStatus
		err = tx.QueryRow(ctx, `
			SELECT status FROM pool.auctions WHERE id = $1 FOR UPDATE
		`, auctionID).Scan(&status)
		if err == pgx.ErrNoRows {
			return ErrAuctionNotFound
		}
		if err != nil {
			return err
		}
		if status != AuctionScheduled {
			if status == AuctionClosed {
				return ErrAuctionClosed
			}
			return ErrAuctionNotScheduled
		}

		if _, err := tx.Exec(ctx, `
			UPDATE pool.auctions
			SET status = 'open', starts_at = $2, ends_at = $3
			WHERE id = $1
		`, auctionID, s.clock.Now().UTC(), endsAt); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	if err := s.withSerializableRetry(ctx, run); err != nil {
		return err
	}
	s.log.Info("auction opened", "auction", auctionID)
	return nil
}

// PlaceBid appends a bid if it strictly exceeds the current leading bid.
// The auction row is locked for the whole check-and-insert so two bids that
// read the same leading amount cannot both land.
func (s *Service) PlaceBid(ctx context.Context, in PlaceBidInput) (BidReceipt, error) {
	var out BidReceipt
	if in.AmountCents <= 0 {
		return out, fmt.Errorf("%w: amount must be positive", ErrBidTooLow)
	}

	run := func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "place_bid"); err != nil {
			return err
		}

		var status AuctionStatus
		var endsAt *time.Time
		err = tx.QueryRow(ctx, `
			SELECT status, ends_at FROM pool.auctions WHERE id = $1 FOR UPDATE
		`, in.AuctionID).Scan(&status, &endsAt)
		if err == pgx.ErrNoRows {
			return ErrAuctionNotFound
		}
		if err != nil {
			return err
		}
		if status == AuctionClosed {
			return ErrAuctionClosed
		}
		if endsAt != nil && s.clock.Now().After(*endsAt) {
			return ErrAuctionEnded
		}

		var leading int64
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(amount_cents), 0) FROM pool.bids WHERE auction_id = $1
		`, in.AuctionID).Scan(&leading); err != nil {
			return err
		}
		if in.AmountCents <= leading {
			return fmt.Errorf("%w: leading bid is %.2f", ErrBidTooLow, CentsToDollars(leading))
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO pool.bids (auction_id, user_id, amount_cents, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, in.AuctionID, in.UserID, in.AmountCents, s.clock.Now().UTC()).Scan(&out.BidID)
		if err != nil {
			return err
		}
		out.AuctionID = in.AuctionID
		out.AmountCents = in.AmountCents
		out.PrevLeading = leading
		return tx.Commit(ctx)
	}

	if err := s.withSerializableRetry(ctx, run); err != nil {
		return BidReceipt{}, err
	}
	s.log.Info("bid accepted", "auction", in.AuctionID, "user", in.UserID, "amount_cents", in.AmountCents)
	return out, nil
}

// CloseAuction resolves a contested team. Highest bid wins; with no bids the
// team stays split among its original pickers, an explicit policy rather than
// an accident. Closing is terminal.
func (s *Service) CloseAuction(ctx context.Context, auctionID int64) (AuctionResult, error) {
	var out AuctionResult

	run := func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		var status AuctionStatus
		err = tx.QueryRow(ctx, `
			SELECT status, team_id FROM pool.auctions WHERE id = $1 FOR UPDATE
		`, auctionID).Scan(&status, &out.TeamID)
		if err == pgx.ErrNoRows {
			return ErrAuctionNotFound
		}
		if err != nil {
			return err
		}
		if status == AuctionClosed {
			return ErrAuctionClosed
		}

		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM pool.bids WHERE auction_id = $1
		`, auctionID).Scan(&out.BidCount); err != nil {
			return err
		}

		if out.BidCount == 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE pool.auctions SET status = 'closed' WHERE id = $1
			`, auctionID); err != nil {
				return err
			}
			out.AuctionID = auctionID
			return tx.Commit(ctx)
		}

		// Amounts are strictly increasing, so the max is unique; the id
		// tiebreak only matters for data predating that rule.
		var winner string
		var amount int64
		if err := tx.QueryRow(ctx, `
			SELECT user_id, amount_cents
			FROM pool.bids
			WHERE auction_id = $1
			ORDER BY amount_cents DESC, id ASC
			LIMIT 1
		`, auctionID).Scan(&winner, &amount); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE pool.auctions
			SET status = 'closed', final_amount_cents = $2, winner_user_id = $3
			WHERE id = $1
		`, auctionID, amount, winner); err != nil {
			return err
		}

		// Ownership resolution: every pick row on the team now belongs to
		// the winner. Rows are reassigned, never deleted mid-tournament.
		if _, err := tx.Exec(ctx, `
			UPDATE pool.picks SET user_id = $2 WHERE team_id = $1
		`, out.TeamID, winner); err != nil {
			return err
		}

		out.AuctionID = auctionID
		out.WinnerUserID = &winner
		out.FinalCents = &amount
		return tx.Commit(ctx)
	}

	if err := s.withSerializableRetry(ctx, run); err != nil {
		return AuctionResult{}, err
	}
	if out.WinnerUserID != nil {
		s.log.Info("auction closed", "auction", auctionID, "winner", *out.WinnerUserID, "final_cents", *out.FinalCents)
	} else {
		s.log.Info("auction closed with no bids", "auction", auctionID)
	}
	return out, nil
}

// CloseExpiredAuctions closes every auction whose end time has passed. Called
// by the sweeper worker; the engine never schedules closes on its own.
func (s *Service) CloseExpiredAuctions(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM pool.auctions
		WHERE status <> 'closed' AND ends_at IS NOT NULL AND ends_at <= $1
		ORDER BY id
	`, s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("list expired auctions: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		if _, err := s.CloseAuction(ctx, id); err != nil {
			// Another closer may have won the race; that is fine.
			if KindOf(err) == KindStateConflict {
				continue
			}
			return closed, fmt.Errorf("close auction %d: %w", id, err)
		}
		closed++
	}
	return closed, nil
}

func (s *Service) ListAuctions(ctx context.Context, includeClosed bool) ([]AuctionView, error) {
	q := `
		SELECT a.id, a.team_id, t.name, a.status, a.starts_at, a.ends_at,
		       a.final_amount_cents, a.winner_user_id,
		       COALESCE((SELECT MAX(b.amount_cents) FROM pool.bids b WHERE b.auction_id = a.id), 0),
		       (SELECT COUNT(*) FROM pool.bids b WHERE b.auction_id = a.id),
		       (SELECT COUNT(DISTINCT p.user_id) FROM pool.picks p WHERE p.team_id = a.team_id)
		FROM pool.auctions a
		JOIN pool.teams t ON t.id = a.team_id
	`
	if !includeClosed {
		q += ` WHERE a.status <> 'closed'`
	}
	q += ` ORDER BY a.id`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var out []AuctionView
	for rows.Next() {
		var a AuctionView
		if err := rows.Scan(&a.ID, &a.TeamID, &a.TeamName, &a.Status, &a.StartsAt, &a.EndsAt,
			&a.FinalCents, &a.WinnerUserID, &a.LeadingCents, &a.BidCount, &a.ContenderCount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Service) GetAuction(ctx context.Context, auctionID int64) (AuctionDetail, error) {
	var d AuctionDetail
	err := s.db.QueryRow(ctx, `
		SELECT a.id, a.team_id, t.name, a.status, a.starts_at, a.ends_at,
		       a.final_amount_cents, a.winner_user_id,
		       COALESCE((SELECT MAX(b.amount_cents) FROM pool.bids b WHERE b.auction_id = a.id), 0),
		       (SELECT COUNT(*) FROM pool.bids b WHERE b.auction_id = a.id),
		       (SELECT COUNT(DISTINCT p.user_id) FROM pool.picks p WHERE p.team_id = a.team_id)
		FROM pool.auctions a
		JOIN pool.teams t ON t.id = a.team_id
		WHERE a.id = $1
	`, auctionID).Scan(&d.ID, &d.TeamID, &d.TeamName, &d.Status, &d.StartsAt, &d.EndsAt,
		&d.FinalCents, &d.WinnerUserID, &d.LeadingCents, &d.BidCount, &d.ContenderCount)
	if err == pgx.ErrNoRows {
		return d, ErrAuctionNotFound
	}
	if err != nil {
		return d, fmt.Errorf("get auction: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, amount_cents, created_at
		FROM pool.bids
		WHERE auction_id = $1
		ORDER BY id
	`, auctionID)
	if err != nil {
		return d, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b BidView
		if err := rows.Scan(&b.ID, &b.UserID, &b.AmountCents, &b.PlacedAt); err != nil {
			return d, err
		}
		d.Bids = append(d.Bids, b)
	}
	return d, rows.Err()
}
