package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	cl "upsetpool/internal/cli"
	"upsetpool/internal/config"
	"upsetpool/internal/game"
	"upsetpool/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "upq",
		Short:        "Upset pool CLI game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newTeamsCmd(&apiBase),
		newPicksCmd(&apiBase),
		newAuctionsCmd(&apiBase),
		newBidCmd(&apiBase),
		newTradeCmd(&apiBase),
		newStandingsCmd(&apiBase),
		newSyncCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a pool account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			username, err := promptOptional("Username (optional)")
			if err != nil {
				return err
			}

			ctx, cancel := cmdContext(cmd)
			defer cancel()
			session, err := newClient(apiBase).Signup(ctx, email, password, username)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Account created. You are logged in.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to the pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}

			ctx, cancel := cmdContext(cmd)
			defer cancel()
			session, err := newClient(apiBase).Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Logged in as " + session.User.Email)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printInfo("Session cleared.")
			return nil
		},
	}
}

func newTeamsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List the tournament field",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			env, err := newClient(apiBase).ListTeams(ctx, session.AccessToken)
			if err != nil {
				return err
			}
			return renderTeams(env)
		},
	}
}

func newPicksCmd(apiBase *string) *cobra.Command {
	picks := &cobra.Command{
		Use:   "picks",
		Short: "Show or submit your pick set",
	}

	picks.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show your committed picks",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			env, err := newClient(apiBase).MyPicks(ctx, session.AccessToken)
			if err != nil {
				return err
			}
			return renderPicks(env)
		},
	})

	picks.AddCommand(&cobra.Command{
		Use:   "submit [team-id team-id team-id team-id]",
		Short: "Commit your one-shot pick set: 3 upset teams + 1 favorite",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			teamIDs, err := pickSetFromArgs(args)
			if err != nil {
				return err
			}

			idem := uuid.NewString()
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			env, err := newClient(apiBase).SubmitPicks(ctx, session.AccessToken, idem, teamIDs)
			if err != nil {
				if isNetworkError(err) {
					if qErr := syncq.Push(syncq.Command{
						Action:         "submit_picks",
						TeamIDs:        teamIDs,
						IdempotencyKey: idem,
					}); qErr == nil {
						printWarn("Offline: pick set queued. Run `upq sync` when back online.")
						return nil
					}
				}
				return err
			}
			printSuccess(env.Message)
			return nil
		},
	})

	return picks
}

func pickSetFromArgs(args []string) ([]int64, error) {
	if len(args) == 0 {
		var out []int64
		for i := 1; i <= 4; i++ {
			label := fmt.Sprintf("Team id %d of 4", i)
			v, err := promptInt64(label, 1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	if len(args) != 4 {
		return nil, fmt.Errorf("expected exactly 4 team ids, got %d", len(args))
	}
	out := make([]int64, 0, 4)
	for _, a := range args {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid team id %q", a)
		}
		out = append(out, v)
	}
	return out, nil
}

func newAuctionsCmd(apiBase *string) *cobra.Command {
	var all bool
	var detail int64
	c := &cobra.Command{
		Use:   "auctions",
		Short: "List auctions for contested teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			if detail > 0 {
				env, err := client.AuctionDetail(ctx, session.AccessToken, detail)
				if err != nil {
					return err
				}
				return renderAuctionDetail(env)
			}
			env, err := client.ListAuctions(ctx, session.AccessToken, all)
			if err != nil {
				return err
			}
			return renderAuctions(env)
		},
	}
	c.Flags().BoolVar(&all, "all", false, "include closed auctions")
	c.Flags().Int64Var(&detail, "id", 0, "show one auction with its bid history")
	return c
}

func newBidCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bid <auction-id> <amount>",
		Short: "Place a bid on a contested-team auction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			auctionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || auctionID <= 0 {
				return fmt.Errorf("invalid auction id %q", args[0])
			}
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			amountCents := game.DollarsToCents(amount)

			idem := uuid.NewString()
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			env, err := newClient(apiBase).PlaceBid(ctx, session.AccessToken, idem, auctionID, amountCents)
			if err != nil {
				if isNetworkError(err) {
					if qErr := syncq.Push(syncq.Command{
						Action:         "place_bid",
						AuctionID:      auctionID,
						AmountCents:    amountCents,
						IdempotencyKey: idem,
					}); qErr == nil {
						printWarn("Offline: bid queued. Run `upq sync` when back online.")
						return nil
					}
				}
				return err
			}
			printSuccess(env.Message)
			return nil
		},
	}
}

func newTradeCmd(apiBase *string) *cobra.Command {
	trade := &cobra.Command{
		Use:   "trade",
		Short: "Offer, list, answer, or cancel trades",
	}

	trade.AddCommand(&cobra.Command{
		Use:   "offer",
		Short: "Offer to swap one of your teams for another user's team",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			recipient, err := promptRequired("Recipient user id")
			if err != nil {
				return err
			}
			myTeam, err := promptInt64("Your team id", 1)
			if err != nil {
				return err
			}
			theirTeam, err := promptInt64("Their team id", 1)
			if err != nil {
				return err
			}
			cash, err := promptOptional("Cash sweetener in dollars (blank for none)")
			if err != nil {
				return err
			}
			var cashCents int64
			if cash != "" {
				v, err := strconv.ParseFloat(cash, 64)
				if err != nil || v < 0 {
					return fmt.Errorf("invalid cash amount %q", cash)
				}
				cashCents = game.DollarsToCents(v)
			}

			ctx, cancel := cmdContext(cmd)
			defer cancel()
			env, err := newClient(apiBase).CreateTrade(ctx, session.AccessToken, uuid.NewString(),
				recipient, myTeam, theirTeam, cashCents)
			if err != nil {
				return err
			}
			printSuccess(env.Message)
			return nil
		},
	})

	trade.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List trades you are part of",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			env, err := newClient(apiBase).MyTrades(ctx, session.AccessToken)
			if err != nil {
				return err
			}
			return renderTrades(env, session.UserID)
		},
	})

	var accept bool
	respond := &cobra.Command{
		Use:   "respond <trade-id>",
		Short: "Accept or reject a pending trade offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			tradeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || tradeID <= 0 {
				return fmt.Errorf("invalid trade id %q", args[0])
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			env, err := newClient(apiBase).RespondTrade(ctx, session.AccessToken, uuid.NewString(), tradeID, accept)
			if err != nil {
				return err
			}
			printSuccess(env.Message)
			return nil
		},
	}
	respond.Flags().BoolVar(&accept, "accept", false, "accept instead of reject")
	trade.AddCommand(respond)

	trade.AddCommand(&cobra.Command{
		Use:   "cancel <trade-id>",
		Short: "Cancel a pending offer you made",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			tradeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || tradeID <= 0 {
				return fmt.Errorf("invalid trade id %q", args[0])
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			env, err := newClient(apiBase).CancelTrade(ctx, session.AccessToken, uuid.NewString(), tradeID)
			if err != nil {
				return err
			}
			printSuccess(env.Message)
			return nil
		},
	})

	return trade
}

func newStandingsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "standings",
		Short: "Show the pool standings",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			env, err := newClient(apiBase).Standings(ctx, session.AccessToken)
			if err != nil {
				return err
			}
			return renderStandings(env, session.UserID)
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay commands queued while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := cl.LoadSession()
			if err != nil {
				return err
			}
			queued, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queued) == 0 {
				printInfo("Nothing queued.")
				return nil
			}

			commands := make([]map[string]any, 0, len(queued))
			for _, c := range queued {
				commands = append(commands, c.AsMap())
			}

			ctx, cancel := cmdContext(cmd)
			defer cancel()
			env, err := newClient(apiBase).SyncReplay(ctx, session.AccessToken, commands)
			if err != nil {
				return err
			}
			if err := syncq.Clear(); err != nil {
				return err
			}
			return renderSyncResults(env)
		},
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
