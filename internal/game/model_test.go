package game

import (
	"errors"
	"fmt"
	"testing"
)

func TestCategoryForSeed(t *testing.T) {
	tests := []struct {
		seed    int
		want    Category
		wantErr bool
	}{
		{seed: 1, want: CategoryFavorite},
		{seed: 4, want: CategoryFavorite},
		{seed: 5, wantErr: true},
		{seed: 8, wantErr: true},
		{seed: 9, want: CategoryUpset},
		{seed: 16, want: CategoryUpset},
		{seed: 0, wantErr: true},
		{seed: 17, wantErr: true},
	}
	for _, tc := range tests {
		got, err := CategoryForSeed(tc.seed)
		if tc.wantErr {
			if !errors.Is(err, ErrSeedNotPickable) {
				t.Fatalf("seed %d: expected ErrSeedNotPickable, got %v", tc.seed, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("seed %d: unexpected error: %v", tc.seed, err)
		}
		if got != tc.want {
			t.Fatalf("seed %d: got %s want %s", tc.seed, got, tc.want)
		}
	}
}

func TestValidatePickSet(t *testing.T) {
	ok := []Category{CategoryUpset, CategoryUpset, CategoryUpset, CategoryFavorite}
	if err := validatePickSet(ok); err != nil {
		t.Fatalf("expected valid pick set: %v", err)
	}

	bad := [][]Category{
		{CategoryUpset, CategoryUpset, CategoryFavorite, CategoryFavorite},
		{CategoryUpset, CategoryUpset, CategoryUpset, CategoryUpset},
		{CategoryFavorite, CategoryFavorite, CategoryFavorite, CategoryFavorite},
		{CategoryUpset, CategoryUpset, CategoryUpset},
		{},
	}
	for i, cs := range bad {
		if err := validatePickSet(cs); !errors.Is(err, ErrInvalidPickSet) {
			t.Fatalf("case %d: expected ErrInvalidPickSet, got %v", i, err)
		}
	}
}

func TestDedupeTeamIDs(t *testing.T) {
	if err := dedupeTeamIDs([]int64{1, 2, 3, 4}); err != nil {
		t.Fatalf("expected distinct ids to pass: %v", err)
	}
	if err := dedupeTeamIDs([]int64{1, 2, 2, 4}); !errors.Is(err, ErrInvalidPickSet) {
		t.Fatalf("expected duplicate id to fail, got %v", err)
	}
}

func TestRoundMultiplier(t *testing.T) {
	tests := []struct {
		round string
		want  int64
	}{
		{round: "round_of_64", want: 1},
		{round: "round_of_32", want: 1},
		{round: "sweet_sixteen", want: 2},
		{round: "Sweet Sixteen", want: 2},
		{round: "elite_eight", want: 3},
		{round: "elite-eight", want: 3},
		{round: "final_four", want: 4},
		{round: "  Final Four  ", want: 4},
		{round: "championship", want: 5},
		{round: "play_in", want: 1},
		{round: "", want: 1},
	}
	for _, tc := range tests {
		if got := RoundMultiplier(tc.round); got != tc.want {
			t.Fatalf("round %q: got %d want %d", tc.round, got, tc.want)
		}
	}
}

func TestAwardPoints(t *testing.T) {
	// Favorite in the final four: flat 5 doubled twice over.
	if got := AwardPoints(CategoryFavorite, 2, "final_four"); got != 20 {
		t.Fatalf("favorite final_four: got %d want 20", got)
	}
	// A 13 seed in the same round pays its seed at the same multiplier.
	if got := AwardPoints(CategoryUpset, 13, "final_four"); got != 52 {
		t.Fatalf("13-seed final_four: got %d want 52", got)
	}
	if got := AwardPoints(CategoryUpset, 16, "championship"); got != 80 {
		t.Fatalf("16-seed championship: got %d want 80", got)
	}
	if got := AwardPoints(CategoryFavorite, 1, "round_of_64"); got != 5 {
		t.Fatalf("favorite early round: got %d want 5", got)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{err: ErrInvalidPickSet, want: KindValidation},
		{err: ErrBidTooLow, want: KindValidation},
		{err: ErrInvalidCashAmount, want: KindValidation},
		{err: ErrMissingIdempotency, want: KindValidation},
		{err: ErrPicksAlreadyMade, want: KindStateConflict},
		{err: ErrAuctionClosed, want: KindStateConflict},
		{err: ErrResultAlreadyApplied, want: KindStateConflict},
		{err: ErrTeamNotFound, want: KindNotFound},
		{err: ErrTradeNotFound, want: KindNotFound},
		{err: ErrOwnershipChanged, want: KindConcurrency},
		{err: ErrTxConflict, want: KindConcurrency},
		{err: errors.New("boom"), want: KindInternal},
	}
	for _, tc := range tests {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("%v: got %s want %s", tc.err, got, tc.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("place bid: %w", ErrBidTooLow)
	if got := KindOf(err); got != KindValidation {
		t.Fatalf("wrapped error lost its kind: got %s", got)
	}
}

func TestCentsConversion(t *testing.T) {
	if got := DollarsToCents(12.34); got != 1234 {
		t.Fatalf("DollarsToCents: got %d want 1234", got)
	}
	if got := CentsToDollars(1234); got != 12.34 {
		t.Fatalf("CentsToDollars: got %f want 12.34", got)
	}
}
