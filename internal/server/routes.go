package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
	"valorantsl/internal/domain"
	"valorantsl/internal/service"
	"valorantsl/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Server exposes the thin REST surface: dashboard leaderboard reads,
// registration, and the legacy update triggers that the background workers
// superseded.
type Server struct {
	accounts *service.AccountService
	rankSync *worker.RankSyncWorker
	logger   zerolog.Logger
}

func NewServer(accounts *service.AccountService, rankSync *worker.RankSyncWorker, logger zerolog.Logger) *Server {
	return &Server{accounts: accounts, rankSync: rankSync, logger: logger}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/valorant", func(r chi.Router) {
		r.Post("/account", s.handleRegister)
		r.Get("/account/all/puuids", s.handlePuuids)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/leaderboard/all", s.handleLeaderboardAll)
		r.Get("/history/{puuid}", s.handleHistory)
		r.Put("/update/rank/{puuid}", s.handleUpdateRank)
		r.Put("/update-all", s.handleUpdateAll)
		r.Put("/update/discord/{old}/{newID}/{newUsername}", s.handleUpdateDiscord)
	})
	return r
}

type registerRequest struct {
	Puuid           string `json:"puuid"`
	DiscordID       int64  `json:"discord_id"`
	DiscordUsername string `json:"discord_username"`
}

type accountResponse struct {
	Puuid           string    `json:"puuid"`
	Name            string    `json:"name"`
	Tag             string    `json:"tag"`
	Region          string    `json:"region"`
	DiscordID       int64     `json:"discord_id"`
	DiscordUsername string    `json:"discord_username"`
	TierCode        int       `json:"tier_code"`
	TierLabel       string    `json:"tier_label"`
	ImageSmall      string    `json:"image_small"`
	ImageLarge      string    `json:"image_large"`
	RankInTier      int       `json:"rank_in_tier"`
	LastGameDelta   int       `json:"last_game_delta"`
	Elo             int       `json:"elo"`
	EloLastChanged  time.Time `json:"elo_last_changed_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toAccountResponse(a domain.Account) accountResponse {
	return accountResponse{
		Puuid:           a.Puuid,
		Name:            a.Name,
		Tag:             a.Tag,
		Region:          a.Region,
		DiscordID:       a.DiscordID,
		DiscordUsername: a.DiscordUsername,
		TierCode:        a.Rank.TierCode,
		TierLabel:       a.Rank.TierLabel,
		ImageSmall:      a.Rank.ImageSmall,
		ImageLarge:      a.Rank.ImageLarge,
		RankInTier:      a.Rank.RankInTier,
		LastGameDelta:   a.Rank.LastGameDelta,
		Elo:             a.Rank.Elo,
		EloLastChanged:  a.Rank.EloLastChangedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Puuid == "" || req.DiscordUsername == "" {
		s.respondError(w, http.StatusBadRequest, "puuid and discord_username are required")
		return
	}

	account, err := s.accounts.Register(r.Context(), req.Puuid, req.DiscordID, req.DiscordUsername)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toAccountResponse(*account))
}

func (s *Server) handlePuuids(w http.ResponseWriter, r *http.Request) {
	puuids, err := s.accounts.Puuids(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if puuids == nil {
		puuids = []string{}
	}
	s.respondJSON(w, http.StatusOK, puuids)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	accounts, total, err := s.accounts.Leaderboard(r.Context(), page, limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	entries := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		entries = append(entries, toAccountResponse(a))
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"entries": entries,
	})
}

func (s *Server) handleLeaderboardAll(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.LeaderboardAll(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	entries := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		entries = append(entries, toAccountResponse(a))
	}
	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	puuid := chi.URLParam(r, "puuid")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.accounts.History(r.Context(), puuid, limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.RankHistoryEntry{}
	}
	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleUpdateRank(w http.ResponseWriter, r *http.Request) {
	puuid := chi.URLParam(r, "puuid")
	if err := s.accounts.Refresh(r.Context(), puuid); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleUpdateAll triggers a full sync cycle out-of-band, the legacy
// sibling of the in-process rank sync loop.
func (s *Server) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	go s.rankSync.RunCycle(context.WithoutCancel(r.Context()))
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
}

func (s *Server) handleUpdateDiscord(w http.ResponseWriter, r *http.Request) {
	oldID, err := strconv.ParseInt(chi.URLParam(r, "old"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "old id must be a snowflake")
		return
	}
	newID, err := strconv.ParseInt(chi.URLParam(r, "newID"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "new id must be a snowflake")
		return
	}
	newUsername := chi.URLParam(r, "newUsername")

	if err := s.accounts.CorrectDiscordLink(r.Context(), oldID, newID, newUsername); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	var conflict *domain.ConflictError
	var notFound *domain.NotFoundError
	var upstream *domain.UpstreamError

	switch {
	case errors.As(err, &conflict):
		s.respondError(w, http.StatusConflict, conflict.Error())
	case errors.As(err, &notFound):
		s.respondError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &upstream):
		s.respondError(w, http.StatusBadGateway, upstream.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}
