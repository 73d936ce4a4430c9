package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	cl "upsetpool/internal/cli"
	"upsetpool/internal/game"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type teamsPayload struct {
	Teams []game.TeamView `json:"teams"`
}

type picksPayload struct {
	Picks []game.PickView `json:"picks"`
}

type auctionsPayload struct {
	Auctions []game.AuctionView `json:"auctions"`
}

type tradesPayload struct {
	Trades []game.TradeView `json:"trades"`
}

type standingsPayload struct {
	Rows []game.StandingRow `json:"rows"`
}

type syncResultsPayload struct {
	Results []struct {
		Action  string `json:"action"`
		OK      bool   `json:"ok"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"results"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func decodePayload[T any](env cl.Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

func renderTeams(env cl.Envelope) error {
	p, err := decodePayload[teamsPayload](env)
	if err != nil {
		return err
	}
	accent.Println("\n== TOURNAMENT FIELD ==")
	if len(p.Teams) == 0 {
		printInfo("No teams seeded yet.")
		return nil
	}
	fmt.Printf("%-5s %-26s %5s  %s\n", "ID", "TEAM", "SEED", "CATEGORY")
	for _, t := range p.Teams {
		category := string(t.Category)
		if category == "" {
			category = "not pickable"
		}
		fmt.Printf("%-5d %-26s %5d  %s\n", t.ID, truncate(t.Name, 26), t.Seed, category)
	}
	return nil
}

func renderPicks(env cl.Envelope) error {
	p, err := decodePayload[picksPayload](env)
	if err != nil {
		return err
	}
	accent.Println("\n== YOUR PICKS ==")
	if len(p.Picks) == 0 {
		printInfo("No picks committed yet. Run `upq picks submit`.")
		return nil
	}
	fmt.Printf("%-5s %-26s %5s  %s\n", "ID", "TEAM", "SEED", "CATEGORY")
	for _, pk := range p.Picks {
		fmt.Printf("%-5d %-26s %5d  %s\n", pk.TeamID, truncate(pk.TeamName, 26), pk.Seed, pk.Category)
	}
	return nil
}

func renderAuctions(env cl.Envelope) error {
	p, err := decodePayload[auctionsPayload](env)
	if err != nil {
		return err
	}
	accent.Println("\n== CONTESTED-TEAM AUCTIONS ==")
	if len(p.Auctions) == 0 {
		printInfo("No auctions.")
		return nil
	}
	fmt.Printf("%-5s %-24s %-10s %10s %6s %10s  %s\n", "ID", "TEAM", "STATUS", "LEADING", "BIDS", "ENDS", "WINNER")
	for _, a := range p.Auctions {
		ends := "-"
		if a.EndsAt != nil {
			ends = a.EndsAt.Local().Format("Jan 2 15:04")
		}
		winner := "-"
		if a.WinnerUserID != nil {
			winner = shortID(*a.WinnerUserID)
		}
		fmt.Printf("%-5d %-24s %-10s %10s %6d %10s  %s\n",
			a.ID, truncate(a.TeamName, 24), a.Status,
			formatCents(a.LeadingCents), a.BidCount, ends, winner)
	}
	return nil
}

func renderAuctionDetail(env cl.Envelope) error {
	d, err := decodePayload[game.AuctionDetail](env)
	if err != nil {
		return err
	}
	accent.Printf("\n== AUCTION %d: %s ==\n", d.ID, d.TeamName)
	fmt.Printf("Status:     %s\n", d.Status)
	fmt.Printf("Contenders: %d\n", d.ContenderCount)
	if d.EndsAt != nil {
		fmt.Printf("Ends:       %s\n", d.EndsAt.Local().Format("Jan 2 15:04"))
	}
	if d.FinalCents != nil && d.WinnerUserID != nil {
		success.Printf("Winner:     %s at %s\n", shortID(*d.WinnerUserID), formatCents(*d.FinalCents))
	}
	fmt.Println()
	accent.Println("Bid history")
	if len(d.Bids) == 0 {
		printInfo("No bids yet.")
		return nil
	}
	fmt.Printf("%-5s %-12s %12s  %s\n", "#", "BIDDER", "AMOUNT", "PLACED")
	for i, b := range d.Bids {
		fmt.Printf("%-5d %-12s %12s  %s\n", i+1, shortID(b.UserID),
			formatCents(b.AmountCents), b.PlacedAt.Local().Format("Jan 2 15:04:05"))
	}
	return nil
}

func renderTrades(env cl.Envelope, myUserID string) error {
	p, err := decodePayload[tradesPayload](env)
	if err != nil {
		return err
	}
	accent.Println("\n== YOUR TRADES ==")
	if len(p.Trades) == 0 {
		printInfo("No trades yet.")
		return nil
	}
	fmt.Printf("%-5s %-9s %-12s %8s %8s %10s  %s\n", "ID", "ROLE", "WITH", "GIVE", "GET", "CASH", "STATUS")
	for _, t := range p.Trades {
		role := "sent"
		with := t.RecipientID
		give, get := t.InitiatorTeamID, t.RecipientTeamID
		if t.RecipientID == myUserID {
			role = "received"
			with = t.InitiatorID
			give, get = t.RecipientTeamID, t.InitiatorTeamID
		}
		fmt.Printf("%-5d %-9s %-12s %8d %8d %10s  %s\n",
			t.ID, role, shortID(with), give, get, formatCents(t.CashCents), t.Status)
	}
	return nil
}

func renderStandings(env cl.Envelope, myUserID string) error {
	p, err := decodePayload[standingsPayload](env)
	if err != nil {
		return err
	}
	accent.Println("\n== STANDINGS ==")
	if len(p.Rows) == 0 {
		printInfo("No points scored yet.")
		return nil
	}
	fmt.Printf("%-6s %-20s %8s\n", "RANK", "PLAYER", "POINTS")
	for _, r := range p.Rows {
		line := fmt.Sprintf("%-6d %-20s %8d", r.Rank, truncate(r.Username, 20), r.TotalPoints)
		if r.UserID == myUserID {
			accent.Println(line + "  <- you")
		} else {
			fmt.Println(line)
		}
	}
	return nil
}

func renderSyncResults(env cl.Envelope) error {
	p, err := decodePayload[syncResultsPayload](env)
	if err != nil {
		return err
	}
	for _, r := range p.Results {
		if r.OK {
			printSuccess(fmt.Sprintf("%s: ok", r.Action))
		} else {
			danger.Printf("%s: %s (%s)\n", r.Action, r.Message, r.Kind)
		}
	}
	return nil
}

func formatCents(v int64) string {
	return fmt.Sprintf("$%.2f", game.CentsToDollars(v))
}

func shortID(id string) string {
	r := []rune(id)
	if len(r) > 8 {
		return string(r[:8])
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
