package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"upsetpool/internal/auth"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Envelope mirrors the API's result wrapper.
type Envelope struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *EnvelopeError  `json:"error,omitempty"`
}

type EnvelopeError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (c *Client) Signup(ctx context.Context, email, password, username string) (auth.Session, error) {
	return c.sessionRequest(ctx, "/v1/auth/signup", map[string]any{
		"email":    email,
		"password": password,
		"username": username,
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	return c.sessionRequest(ctx, "/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	})
}

func (c *Client) sessionRequest(ctx context.Context, path string, body map[string]any) (auth.Session, error) {
	env, err := c.jsonRequest(ctx, http.MethodPost, path, "", body, "")
	if err != nil {
		return auth.Session{}, err
	}
	var s auth.Session
	if err := json.Unmarshal(env.Data, &s); err != nil {
		return auth.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (c *Client) ListTeams(ctx context.Context, token string) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodGet, "/v1/teams", token, nil, "")
}

func (c *Client) MyPicks(ctx context.Context, token string) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodGet, "/v1/me/picks", token, nil, "")
}

func (c *Client) SubmitPicks(ctx context.Context, token, idem string, teamIDs []int64) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/picks", token, map[string]any{
		"team_ids": teamIDs,
	}, idem)
}

func (c *Client) ListAuctions(ctx context.Context, token string, all bool) (Envelope, error) {
	path := "/v1/auctions"
	if all {
		path = "/v1/auctions?all=1"
	}
	return c.jsonRequest(ctx, http.MethodGet, path, token, nil, "")
}

func (c *Client) AuctionDetail(ctx context.Context, token string, auctionID int64) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/auctions/%d", auctionID), token, nil, "")
}

func (c *Client) PlaceBid(ctx context.Context, token, idem string, auctionID, amountCents int64) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/auctions/%d/bids", auctionID), token, map[string]any{
		"amount_cents": amountCents,
	}, idem)
}

func (c *Client) CreateTrade(ctx context.Context, token, idem, recipientID string, myTeam, theirTeam, cashCents int64) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/trades", token, map[string]any{
		"recipient_id":      recipientID,
		"initiator_team_id": myTeam,
		"recipient_team_id": theirTeam,
		"cash_cents":        cashCents,
	}, idem)
}

func (c *Client) MyTrades(ctx context.Context, token string) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodGet, "/v1/trades", token, nil, "")
}

func (c *Client) RespondTrade(ctx context.Context, token, idem string, tradeID int64, accept bool) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/trades/%d/respond", tradeID), token, map[string]any{
		"accept": accept,
	}, idem)
}

func (c *Client) CancelTrade(ctx context.Context, token, idem string, tradeID int64) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/trades/%d/cancel", tradeID), token, map[string]any{}, idem)
}

func (c *Client) Standings(ctx context.Context, token string) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodGet, "/v1/standings", token, nil, "")
}

func (c *Client) SyncReplay(ctx context.Context, token string, commands []map[string]any) (Envelope, error) {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/sync/replay", token, map[string]any{
		"commands": commands,
	}, "")
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, body map[string]any, idem string) (Envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return Envelope{}, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return Envelope{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Envelope{}, err
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if !env.OK {
		if env.Error != nil {
			return env, fmt.Errorf("%s: %s", env.Error.Kind, env.Error.Message)
		}
		return env, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return env, nil
}
