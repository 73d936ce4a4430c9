package game

import (
	"errors"
	"testing"
)

var swapTrade = TradeView{
	InitiatorID:     "alice",
	RecipientID:     "dave",
	InitiatorTeamID: 1,
	RecipientTeamID: 2,
}

func TestReassignForTrade(t *testing.T) {
	holders := []pickHolder{
		{id: 10, userID: "alice", teamID: 1},
		{id: 11, userID: "dave", teamID: 2},
	}
	got, err := reassignForTrade(holders, swapTrade)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[10] != "dave" || got[11] != "alice" {
		t.Fatalf("swap mismatch: %#v", got)
	}
}

func TestReassignForTradeMultipleRows(t *testing.T) {
	// An auction win leaves the winner holding every original pick row on
	// the team; accepting a trade must move all of them, not just one.
	holders := []pickHolder{
		{id: 10, userID: "alice", teamID: 1},
		{id: 12, userID: "alice", teamID: 1},
		{id: 14, userID: "alice", teamID: 1},
		{id: 11, userID: "dave", teamID: 2},
	}
	got, err := reassignForTrade(holders, swapTrade)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 reassignments, got %d: %#v", len(got), got)
	}
	for _, id := range []int64{10, 12, 14} {
		if got[id] != "dave" {
			t.Fatalf("row %d should move to dave: %#v", id, got)
		}
	}
	if got[11] != "alice" {
		t.Fatalf("row 11 should move to alice: %#v", got)
	}
}

func TestReassignForTradeOwnershipDrift(t *testing.T) {
	onlyRecipient := []pickHolder{
		{id: 11, userID: "dave", teamID: 2},
	}
	if _, err := reassignForTrade(onlyRecipient, swapTrade); !errors.Is(err, ErrOwnershipChanged) {
		t.Fatalf("initiator side missing: expected ErrOwnershipChanged, got %v", err)
	}

	onlyInitiator := []pickHolder{
		{id: 10, userID: "alice", teamID: 1},
	}
	if _, err := reassignForTrade(onlyInitiator, swapTrade); !errors.Is(err, ErrOwnershipChanged) {
		t.Fatalf("recipient side missing: expected ErrOwnershipChanged, got %v", err)
	}
}

func TestReassignForTradeLeavesOtherRowsAlone(t *testing.T) {
	holders := []pickHolder{
		{id: 10, userID: "alice", teamID: 1},
		{id: 11, userID: "dave", teamID: 2},
		{id: 20, userID: "carol", teamID: 1},
		{id: 21, userID: "alice", teamID: 3},
	}
	got, err := reassignForTrade(holders, swapTrade)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got[20]; ok {
		t.Fatalf("another holder's row must not move: %#v", got)
	}
	if _, ok := got[21]; ok {
		t.Fatalf("a team outside the trade must not move: %#v", got)
	}
}
