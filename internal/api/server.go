package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"upsetpool/internal/auth"
	"upsetpool/internal/config"
	"upsetpool/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	auth *auth.Client
	game *game.Service
	mux  *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, authClient *auth.Client, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		auth: authClient,
		game: gameSvc,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeResult(w, http.StatusOK, "ok", nil)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/teams", s.handleTeams)
			r.Get("/me/picks", s.handleMyPicks)
			r.Post("/picks", s.handleSubmitPicks)

			r.Get("/auctions", s.handleAuctions)
			r.Get("/auctions/{id}", s.handleAuctionDetail)
			r.Post("/auctions/{id}/bids", s.handlePlaceBid)

			r.Post("/trades", s.handleCreateTrade)
			r.Get("/trades", s.handleMyTrades)
			r.Post("/trades/{id}/respond", s.handleRespondTrade)
			r.Post("/trades/{id}/cancel", s.handleCancelTrade)

			r.Get("/standings", s.handleStandings)

			r.Post("/sync/replay", s.handleSyncReplay)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.operatorMiddleware)

			r.Post("/admin/auctions/{id}/open", s.handleOpenAuction)
			r.Post("/admin/auctions/{id}/close", s.handleCloseAuction)
			r.Post("/admin/results", s.handleApplyResult)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeFailure(w, http.StatusUnauthorized, game.KindValidation, "missing bearer token")
			return
		}
		user, err := s.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, game.KindValidation, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) operatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Operator-Token"))
		if token == "" || token != s.cfg.OperatorToken {
			writeFailure(w, http.StatusForbidden, game.KindValidation, "operator token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	session, err := s.auth.SignUp(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	if session.User.ID != "" {
		if err := s.game.EnsureUser(r.Context(), session.User.ID, session.User.Email, in.Username); err != nil {
			s.internalError(w, r, err)
			return
		}
	}
	writeResult(w, http.StatusCreated, "account created", session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	session, err := s.auth.Login(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, game.KindValidation, err.Error())
		return
	}
	if err := s.game.EnsureUser(r.Context(), session.User.ID, session.User.Email, ""); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "logged in", session)
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.game.ListTeams(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "", map[string]any{"teams": teams})
}

func (s *Server) handleMyPicks(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, game.KindValidation, err.Error())
		return
	}
	picks, err := s.game.MyPicks(r.Context(), user.UserID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "", map[string]any{"picks": picks})
}

func (s *Server) handleSubmitPicks(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, game.KindValidation, err.Error())
		return
	}
	var in struct {
		TeamIDs []int64 `json:"team_ids"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	err = s.game.SubmitPicks(r.Context(), game.SubmitPicksInput{
		UserID:         user.UserID,
		TeamIDs:        in.TeamIDs,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "picks committed", nil)
}

func (s *Server) handleAuctions(w http.ResponseWriter, r *http.Request) {
	includeClosed := r.URL.Query().Get("all") == "1"
	auctions, err := s.game.ListAuctions(r.Context(), includeClosed)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "", map[string]any{"auctions": auctions})
}

func (s *Server) handleAuctionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	detail, err := s.game.GetAuction(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "", detail)
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, game.KindValidation, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	var in struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	receipt, err := s.game.PlaceBid(r.Context(), game.PlaceBidInput{
		AuctionID:      id,
		UserID:         user.UserID,
		AmountCents:    in.AmountCents,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "bid accepted", receipt)
}

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, game.KindValidation, err.Error())
		return
	}
	var in struct {
		RecipientID     string `json:"recipient_id"`
		InitiatorTeamID int64  `json:"initiator_team_id"`
		RecipientTeamID int64  `json:"recipient_team_id"`
		CashCents       int64  `json:"cash_cents"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	trade, err := s.game.CreateTradeOffer(r.Context(), game.TradeOfferInput{
		InitiatorID:     user.UserID,
		RecipientID:     strings.TrimSpace(in.RecipientID),
		InitiatorTeamID: in.InitiatorTeamID,
		RecipientTeamID: in.RecipientTeamID,
		CashCents:       in.CashCents,
		IdempotencyKey:  idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "trade offered", trade)
}

func (s *Server) handleMyTrades(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, game.KindValidation, err.Error())
		return
	}
	trades, err := s.game.ListTradesForUser(r.Context(), user.UserID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "", map[string]any{"trades": trades})
}

func (s *Server) handleRespondTrade(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, game.KindValidation, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	var in struct {
		Accept bool `json:"accept"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	if err := s.game.RespondToTradeOffer(r.Context(), id, user.UserID, in.Accept); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	msg := "trade rejected"
	if in.Accept {
		msg = "trade accepted"
	}
	writeResult(w, http.StatusOK, msg, nil)
}

func (s *Server) handleCancelTrade(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, game.KindValidation, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	if err := s.game.CancelTrade(r.Context(), id, user.UserID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "trade canceled", nil)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	rows, err := s.game.Standings(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "", map[string]any{"rows": rows})
}

func (s *Server) handleOpenAuction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	var in struct {
		EndsAt *time.Time `json:"ends_at"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	if err := s.game.OpenAuction(r.Context(), id, in.EndsAt); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "auction opened", nil)
}

func (s *Server) handleCloseAuction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	result, err := s.game.CloseAuction(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "auction closed", result)
}

func (s *Server) handleApplyResult(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TeamID int64  `json:"team_id"`
		Round  string `json:"round"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}
	award, err := s.game.ApplyRoundResult(r.Context(), in.TeamID, in.Round)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "round result applied", award)
}

// handleSyncReplay runs commands the CLI queued while offline. Each carries
// its own idempotency key, so replaying a half-synced queue is harmless.
func (s *Server) handleSyncReplay(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, game.KindValidation, err.Error())
		return
	}
	var in struct {
		Commands []replayCommand `json:"commands"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeFailure(w, http.StatusBadRequest, game.KindValidation, err.Error())
		return
	}

	results := make([]map[string]any, 0, len(in.Commands))
	for _, cmd := range in.Commands {
		err := s.replayOne(r.Context(), user.UserID, cmd)
		entry := map[string]any{"action": cmd.Action, "ok": err == nil}
		if err != nil {
			entry["kind"] = game.KindOf(err)
			entry["message"] = err.Error()
		}
		results = append(results, entry)
	}
	writeResult(w, http.StatusOK, "", map[string]any{"results": results})
}

type replayCommand struct {
	Action         string  `json:"action"`
	TeamIDs        []int64 `json:"team_ids,omitempty"`
	AuctionID      int64   `json:"auction_id,omitempty"`
	AmountCents    int64   `json:"amount_cents,omitempty"`
	IdempotencyKey string  `json:"idempotency_key"`
}

func (s *Server) replayOne(ctx context.Context, userID string, cmd replayCommand) error {
	switch cmd.Action {
	case "submit_picks":
		return s.game.SubmitPicks(ctx, game.SubmitPicksInput{
			UserID:         userID,
			TeamIDs:        cmd.TeamIDs,
			IdempotencyKey: cmd.IdempotencyKey,
		})
	case "place_bid":
		_, err := s.game.PlaceBid(ctx, game.PlaceBidInput{
			AuctionID:      cmd.AuctionID,
			UserID:         userID,
			AmountCents:    cmd.AmountCents,
			IdempotencyKey: cmd.IdempotencyKey,
		})
		return err
	default:
		return fmt.Errorf("unknown replay action %q", cmd.Action)
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := game.KindOf(err)
	switch kind {
	case game.KindValidation:
		writeFailure(w, http.StatusBadRequest, kind, err.Error())
	case game.KindStateConflict:
		writeFailure(w, http.StatusConflict, kind, err.Error())
	case game.KindNotFound:
		writeFailure(w, http.StatusNotFound, kind, err.Error())
	case game.KindConcurrency:
		writeFailure(w, http.StatusConflict, kind, err.Error())
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed", "path", r.URL.Path, "err", err)
	writeFailure(w, http.StatusInternalServerError, game.KindInternal, "internal error")
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeResult wraps payloads in the success/message/data envelope callers
// render from.
func writeResult(w http.ResponseWriter, status int, message string, data any) {
	body := map[string]any{"ok": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	writeJSON(w, status, body)
}

func writeFailure(w http.ResponseWriter, status int, kind game.Kind, message string) {
	writeJSON(w, status, map[string]any{
		"ok": false,
		"error": map[string]any{
			"kind":    kind,
			"message": strings.TrimSpace(message),
		},
	})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
