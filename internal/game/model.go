package game

import (
	"errors"
	"fmt"
	"strings"
)

const (
	MinSeed = 1
	MaxSeed = 16

	// Seed bands for pickable teams. Seeds 5-8 sit between the bands and
	// cannot be picked at all.
	MaxFavoriteSeed = 4
	MinUpsetSeed    = 9

	PickSetSize      = 4
	UpsetPicksPerSet = 3

	FavoriteBasePoints = int64(5)

	CentsPerDollar = int64(100)
)

type Category string

const (
	CategoryFavorite Category = "favorite"
	CategoryUpset    Category = "upset"
)

type AuctionStatus string

const (
	AuctionScheduled AuctionStatus = "scheduled"
	AuctionOpen      AuctionStatus = "open"
	AuctionClosed    AuctionStatus = "closed"
)

type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeAccepted TradeStatus = "accepted"
	TradeRejected TradeStatus = "rejected"
	TradeCanceled TradeStatus = "canceled"
)

var (
	ErrUnknownTeam          = errors.New("pick references an unknown team")
	ErrInvalidPickSet       = errors.New("pick set must be 3 upset teams plus 1 favorite")
	ErrSeedNotPickable      = errors.New("team seed is outside the pickable bands")
	ErrPicksAlreadyMade     = errors.New("pick set already submitted")
	ErrTeamNotFound         = errors.New("team not found")
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionClosed        = errors.New("auction is closed")
	ErrAuctionEnded         = errors.New("auction end time has passed")
	ErrAuctionNotScheduled  = errors.New("auction is not in scheduled status")
	ErrBidTooLow            = errors.New("bid must exceed the current leading bid")
	ErrTradeNotFound        = errors.New("trade not found")
	ErrTradeNotPending      = errors.New("trade is not pending")
	ErrNotTradeParticipant  = errors.New("user is not a participant of this trade")
	ErrNotTeamOwner         = errors.New("user does not hold a pick on that team")
	ErrInvalidCashAmount    = errors.New("cash amount must not be negative")
	ErrOwnershipChanged     = errors.New("team ownership changed since the offer was made")
	ErrResultAlreadyApplied = errors.New("round result already applied for this team")
	ErrMissingIdempotency   = errors.New("idempotency key is required")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrTxConflict           = errors.New("transaction conflict, please retry")
)

// Kind classifies engine errors for callers that render results.
type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindStateConflict Kind = "state_conflict"
	KindNotFound      Kind = "not_found"
	KindConcurrency   Kind = "concurrency_error"
	KindInternal      Kind = "internal_error"
)

func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrUnknownTeam),
		errors.Is(err, ErrInvalidPickSet),
		errors.Is(err, ErrSeedNotPickable),
		errors.Is(err, ErrBidTooLow),
		errors.Is(err, ErrNotTeamOwner),
		errors.Is(err, ErrInvalidCashAmount),
		errors.Is(err, ErrMissingIdempotency),
		errors.Is(err, ErrNotTradeParticipant):
		return KindValidation
	case errors.Is(err, ErrPicksAlreadyMade),
		errors.Is(err, ErrAuctionClosed),
		errors.Is(err, ErrAuctionEnded),
		errors.Is(err, ErrAuctionNotScheduled),
		errors.Is(err, ErrTradeNotPending),
		errors.Is(err, ErrResultAlreadyApplied),
		errors.Is(err, ErrDuplicateIdempotency):
		return KindStateConflict
	case errors.Is(err, ErrTeamNotFound),
		errors.Is(err, ErrAuctionNotFound),
		errors.Is(err, ErrTradeNotFound):
		return KindNotFound
	case errors.Is(err, ErrOwnershipChanged),
		errors.Is(err, ErrTxConflict):
		return KindConcurrency
	default:
		return KindInternal
	}
}

// CategoryForSeed maps a tournament seed to its pick category.
func CategoryForSeed(seed int) (Category, error) {
	switch {
	case seed >= MinSeed && seed <= MaxFavoriteSeed:
		return CategoryFavorite, nil
	case seed >= MinUpsetSeed && seed <= MaxSeed:
		return CategoryUpset, nil
	default:
		return "", fmt.Errorf("%w: seed %d", ErrSeedNotPickable, seed)
	}
}

// validatePickSet checks the 3-upset + 1-favorite distribution.
func validatePickSet(categories []Category) error {
	if len(categories) != PickSetSize {
		return fmt.Errorf("%w: got %d teams", ErrInvalidPickSet, len(categories))
	}
	var favorites, upsets int
	for _, c := range categories {
		switch c {
		case CategoryFavorite:
			favorites++
		case CategoryUpset:
			upsets++
		}
	}
	if favorites != PickSetSize-UpsetPicksPerSet || upsets != UpsetPicksPerSet {
		return fmt.Errorf("%w: got %d upset and %d favorite", ErrInvalidPickSet, upsets, favorites)
	}
	return nil
}

func dedupeTeamIDs(ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: team %d listed twice", ErrInvalidPickSet, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// RoundMultiplier returns the scoring multiplier for a tournament round.
// Unknown round names score at face value.
func RoundMultiplier(round string) int64 {
	switch normalizeRound(round) {
	case "sweet_sixteen":
		return 2
	case "elite_eight":
		return 3
	case "final_four":
		return 4
	case "championship":
		return 5
	default:
		return 1
	}
}

func normalizeRound(round string) string {
	round = strings.ToLower(strings.TrimSpace(round))
	round = strings.ReplaceAll(round, "-", "_")
	return strings.ReplaceAll(round, " ", "_")
}

// AwardPoints computes the points a winning result is worth before it fans
// out to holders. Favorites are flat; upsets pay their seed, so deeper
// long-shots pay more.
func AwardPoints(category Category, seed int, round string) int64 {
	base := FavoriteBasePoints
	if category == CategoryUpset {
		base = int64(seed)
	}
	return base * RoundMultiplier(round)
}

func CentsToDollars(v int64) float64 {
	return float64(v) / float64(CentsPerDollar)
}

func DollarsToCents(v float64) int64 {
	return int64(v*float64(CentsPerDollar) + 0.5)
}
