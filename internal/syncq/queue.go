package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Command is a mutation queued while the CLI is offline, replayed later
// through the sync endpoint. The idempotency key travels with it so a replay
// after a partial sync cannot double-apply.
type Command struct {
	Action         string  `json:"action"`
	TeamIDs        []int64 `json:"team_ids,omitempty"`
	AuctionID      int64   `json:"auction_id,omitempty"`
	AmountCents    int64   `json:"amount_cents,omitempty"`
	IdempotencyKey string  `json:"idempotency_key"`
}

func (c Command) AsMap() map[string]any {
	out := map[string]any{
		"action":          c.Action,
		"idempotency_key": c.IdempotencyKey,
	}
	if len(c.TeamIDs) > 0 {
		out["team_ids"] = c.TeamIDs
	}
	if c.AuctionID != 0 {
		out["auction_id"] = c.AuctionID
	}
	if c.AmountCents != 0 {
		out["amount_cents"] = c.AmountCents
	}
	return out
}

func queuePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".upq")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	commands = append(commands, cmd)
	return Save(commands)
}

func Clear() error {
	return Save([]Command{})
}
