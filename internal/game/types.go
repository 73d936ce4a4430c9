package game

import "time"

type TeamView struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Seed     int      `json:"seed"`
	Category Category `json:"category"`
}

type PickView struct {
	ID       int64     `json:"id"`
	TeamID   int64     `json:"team_id"`
	TeamName string    `json:"team_name"`
	Seed     int       `json:"seed"`
	Category Category  `json:"category"`
	PickedAt time.Time `json:"picked_at"`
}

type SubmitPicksInput struct {
	UserID         string
	TeamIDs        []int64
	IdempotencyKey string
}

type AuctionView struct {
	ID             int64         `json:"id"`
	TeamID         int64         `json:"team_id"`
	TeamName       string        `json:"team_name"`
	Status         AuctionStatus `json:"status"`
	StartsAt       *time.Time    `json:"starts_at,omitempty"`
	EndsAt         *time.Time    `json:"ends_at,omitempty"`
	LeadingCents   int64         `json:"leading_cents"`
	BidCount       int64         `json:"bid_count"`
	FinalCents     *int64        `json:"final_cents,omitempty"`
	WinnerUserID   *string       `json:"winner_user_id,omitempty"`
	ContenderCount int64         `json:"contender_count"`
}

type BidView struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	PlacedAt    time.Time `json:"placed_at"`
}

type AuctionDetail struct {
	AuctionView
	Bids []BidView `json:"bids"`
}

type PlaceBidInput struct {
	AuctionID      int64
	UserID         string
	AmountCents    int64
	IdempotencyKey string
}

type BidReceipt struct {
	BidID       int64 `json:"bid_id"`
	AuctionID   int64 `json:"auction_id"`
	AmountCents int64 `json:"amount_cents"`
	PrevLeading int64 `json:"prev_leading_cents"`
}

type AuctionResult struct {
	AuctionID    int64   `json:"auction_id"`
	TeamID       int64   `json:"team_id"`
	WinnerUserID *string `json:"winner_user_id,omitempty"`
	FinalCents   *int64  `json:"final_cents,omitempty"`
	BidCount     int64   `json:"bid_count"`
}

type TradeOfferInput struct {
	InitiatorID     string
	RecipientID     string
	InitiatorTeamID int64
	RecipientTeamID int64
	CashCents       int64
	IdempotencyKey  string
}

type TradeView struct {
	ID              int64       `json:"id"`
	InitiatorID     string      `json:"initiator_id"`
	RecipientID     string      `json:"recipient_id"`
	InitiatorTeamID int64       `json:"initiator_team_id"`
	RecipientTeamID int64       `json:"recipient_team_id"`
	CashCents       int64       `json:"cash_cents"`
	Status          TradeStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type RoundAward struct {
	TeamID    int64    `json:"team_id"`
	TeamName  string   `json:"team_name"`
	Round     string   `json:"round"`
	Points    int64    `json:"points"`
	HolderIDs []string `json:"holder_ids"`
}

type StandingRow struct {
	Rank        int64  `json:"rank"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	TotalPoints int64  `json:"total_points"`
}
