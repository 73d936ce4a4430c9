package syncq

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCommandAsMapOmitsZeroFields(t *testing.T) {
	bid := Command{
		Action:         "place_bid",
		AuctionID:      7,
		AmountCents:    2500,
		IdempotencyKey: "k1",
	}
	got := bid.AsMap()
	want := map[string]any{
		"action":          "place_bid",
		"auction_id":      int64(7),
		"amount_cents":    int64(2500),
		"idempotency_key": "k1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("bid map: got %#v want %#v", got, want)
	}

	picks := Command{
		Action:         "submit_picks",
		TeamIDs:        []int64{1, 2, 3, 4},
		IdempotencyKey: "k2",
	}
	got = picks.AsMap()
	if _, ok := got["auction_id"]; ok {
		t.Fatalf("zero auction_id should be omitted: %#v", got)
	}
	if _, ok := got["amount_cents"]; ok {
		t.Fatalf("zero amount_cents should be omitted: %#v", got)
	}
	if !reflect.DeepEqual(got["team_ids"], []int64{1, 2, 3, 4}) {
		t.Fatalf("team_ids: got %#v", got["team_ids"])
	}
}

func TestCommandJSONRoundTrip(t *testing.T) {
	in := []Command{
		{Action: "submit_picks", TeamIDs: []int64{1, 2, 9, 12}, IdempotencyKey: "a"},
		{Action: "place_bid", AuctionID: 3, AmountCents: 1500, IdempotencyKey: "b"},
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch: got %#v want %#v", out, in)
	}
}
