package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

type Service struct {
	db    *pgxpool.Pool
	log   *slog.Logger
	clock clockwork.Clock
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, clock clockwork.Clock) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		db:    db,
		log:   logger,
		clock: clock,
	}
}

// EnsureUser mirrors an identity-provider user into the pool schema so
// standings and trades can show a display name.
func (s *Service) EnsureUser(ctx context.Context, userID, email, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		username = usernameFromEmail(email)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO pool.users (user_id, email, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, email, username)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func usernameFromEmail(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	if email == "" {
		return "player"
	}
	return email
}

// SeedDefaultTeams loads a 16-team bracket field if the catalog is empty.
func (s *Service) SeedDefaultTeams(ctx context.Context) error {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM pool.teams`).Scan(&count); err != nil {
		return fmt.Errorf("count teams: %w", err)
	}
	if count > 0 {
		return nil
	}
	names := []string{
		"Crimson Hawks", "Iron Wolves", "Blue Ridge", "Granite State",
		"River City", "Northgate", "Coastal Tech", "Summit A&M",
		"Prairie View", "Lakeshore", "Old Dominion Mining", "Copper Valley",
		"Cedar Falls", "Bayou State", "Highland Poly", "Fort Mesa",
	}
	for i, name := range names {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO pool.teams (name, seed)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, name, i+1); err != nil {
			return fmt.Errorf("seed team %q: %w", name, err)
		}
	}
	s.log.Info("seeded default team field", "teams", len(names))
	return nil
}

func (s *Service) ListTeams(ctx context.Context) ([]TeamView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, seed
		FROM pool.teams
		ORDER BY seed, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var out []TeamView
	for rows.Next() {
		var t TeamView
		if err := rows.Scan(&t.ID, &t.Name, &t.Seed); err != nil {
			return nil, err
		}
		// Middle seeds carry no category; leave it empty.
		if c, err := CategoryForSeed(t.Seed); err == nil {
			t.Category = c
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Service) MyPicks(ctx context.Context, userID string) ([]PickView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.team_id, t.name, t.seed, p.category, p.created_at
		FROM pool.picks p
		JOIN pool.teams t ON t.id = p.team_id
		WHERE p.user_id = $1
		ORDER BY p.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	defer rows.Close()

	var out []PickView
	for rows.Next() {
		var p PickView
		if err := rows.Scan(&p.ID, &p.TeamID, &p.TeamName, &p.Seed, &p.Category, &p.PickedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SubmitPicks commits a user's one-shot pick set: exactly three upset teams
// and one favorite, all four rows in one transaction. Teams that end up
// claimed by more than one user get a scheduled auction, created with an
// idempotent insert so two racing submissions cannot double-create it.
func (s *Service) SubmitPicks(ctx context.Context, in SubmitPicksInput) error {
	if len(in.TeamIDs) != PickSetSize {
		return fmt.Errorf("%w: got %d team ids", ErrInvalidPickSet, len(in.TeamIDs))
	}
	if err := dedupeTeamIDs(in.TeamIDs); err != nil {
		return err
	}

	run := func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "submit_picks"); err != nil {
			return err
		}

		var existing int64
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM pool.picks WHERE user_id = $1
		`, in.UserID).Scan(&existing); err != nil {
			return err
		}
		if existing > 0 {
			return ErrPicksAlreadyMade
		}

		seeds := make(map[int64]int, PickSetSize)
		rows, err := tx.Query(ctx, `
			SELECT id, seed FROM pool.teams WHERE id = ANY($1)
		`, in.TeamIDs)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id int64
			var seed int
			if err := rows.Scan(&id, &seed); err != nil {
				rows.Close()
				return err
			}
			seeds[id] = seed
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		categories := make([]Category, 0, PickSetSize)
		byTeam := make(map[int64]Category, PickSetSize)
		for _, id := range in.TeamIDs {
			seed, ok := seeds[id]
			if !ok {
				return fmt.Errorf("%w: team %d", ErrUnknownTeam, id)
			}
			c, err := CategoryForSeed(seed)
			if err != nil {
				return err
			}
			categories = append(categories, c)
			byTeam[id] = c
		}
		if err := validatePickSet(categories); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		for _, teamID := range in.TeamIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO pool.picks (user_id, team_id, category, created_at)
				VALUES ($1, $2, $3, $4)
			`, in.UserID, teamID, byTeam[teamID], now); err != nil {
				return err
			}
		}

		for _, teamID := range in.TeamIDs {
			if err := detectContested(ctx, tx, teamID); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	}

	if err := s.withSerializableRetry(ctx, run); err != nil {
		return err
	}
	s.log.Info("pick set committed", "user", in.UserID, "teams", in.TeamIDs)
	return nil
}

// detectContested opens a scheduled auction for a team held by two or more
// users. The unique constraint on auctions(team_id) plus DO NOTHING makes
// concurrent detection collapse to a single row.
func detectContested(ctx context.Context, tx pgx.Tx, teamID int64) error {
	var holders int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(DISTINCT user_id) FROM pool.picks WHERE team_id = $1
	`, teamID).Scan(&holders); err != nil {
		return err
	}
	if holders < 2 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO pool.auctions (team_id, status)
		VALUES ($1, 'scheduled')
		ON CONFLICT (team_id) DO NOTHING
	`, teamID)
	return err
}

func (s *Service) Standings(ctx context.Context) ([]StandingRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.user_id, COALESCE(u.username, s.user_id), s.total_points
		FROM pool.scores s
		LEFT JOIN pool.users u ON u.user_id = s.user_id
		ORDER BY s.total_points DESC, s.user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("standings: %w", err)
	}
	defer rows.Close()

	var out []StandingRow
	rank := int64(0)
	for rows.Next() {
		var r StandingRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.TotalPoints); err != nil {
			return nil, err
		}
		rank++
		r.Rank = rank
		out = append(out, r)
	}
	return out, rows.Err()
}

// withSerializableRetry reruns fn on serialization failures (SQLSTATE 40001)
// with capped backoff, the standard dance for serializable transactions.
func (s *Service) withSerializableRetry(ctx context.Context, fn func() error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, userID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrMissingIdempotency
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO pool.idempotency_keys (user_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, key) DO NOTHING
	`, userID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}
