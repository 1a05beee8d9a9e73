package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
	"valorantsl/internal/constants"
	"valorantsl/internal/domain"

	"github.com/rs/zerolog"
)

// RankAPI is the slice of the HenrikDev client the service needs. The
// client translates errors and auth; the service decides what to persist.
type RankAPI interface {
	Account(ctx context.Context, puuid string) (domain.Identity, error)
	MMR(ctx context.Context, region, puuid string) (domain.RankSnapshot, error)
	MMRHistory(ctx context.Context, region, puuid string) (time.Time, error)
}

type AccountStore interface {
	Upsert(ctx context.Context, account *domain.Account) error
	GetByPuuid(ctx context.Context, puuid string) (*domain.Account, error)
	GetByDiscordID(ctx context.Context, discordID int64) (*domain.Account, error)
	GetByDiscordUsername(ctx context.Context, username string) (*domain.Account, error)
	ListAll(ctx context.Context) ([]domain.Account, error)
	ListPuuids(ctx context.Context) ([]string, error)
	RankedPage(ctx context.Context, filter domain.LeaderboardFilter, offset, limit int) ([]domain.Account, int, error)
	RelinkDiscord(ctx context.Context, puuid string, newID int64, newUsername string) error
	UpdateDiscordLink(ctx context.Context, oldID, newID int64, newUsername string) error
}

type HistoryStore interface {
	Append(ctx context.Context, entry domain.RankHistoryEntry) error
	GetByPuuid(ctx context.Context, puuid string, limit int) ([]domain.RankHistoryEntry, error)
}

type AccountService struct {
	rank    RankAPI
	store   AccountStore
	history HistoryStore
	logger  zerolog.Logger
}

func NewAccountService(rank RankAPI, store AccountStore, history HistoryStore, logger zerolog.Logger) *AccountService {
	return &AccountService{rank: rank, store: store, history: history, logger: logger}
}

// Register creates the link between a Valorant account and a Discord
// identity, populating the first rank snapshot inline.
func (s *AccountService) Register(ctx context.Context, puuid string, discordID int64, discordUsername string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if _, err := s.store.GetByPuuid(ctx, puuid); err == nil {
		return nil, &domain.ConflictError{Field: "puuid", Value: puuid}
	} else {
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	account := &domain.Account{
		Puuid:           puuid,
		DiscordID:       discordID,
		DiscordUsername: discordUsername,
	}
	if err := s.refreshInto(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to fetch rank for new account: %w", err)
	}

	if err := s.store.Upsert(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("puuid", puuid).
		Int64("discord_id", discordID).
		Str("discord_username", discordUsername).
		Int("elo", account.Rank.Elo).
		Msg("account registered")
	return account, nil
}

// Refresh re-fetches identity and rank for one stored account and persists
// the result. An unchanged upstream produces no write at all, so a repeated
// refresh is a true no-op. Any fetch error leaves the stored snapshot
// untouched.
func (s *AccountService) Refresh(ctx context.Context, puuid string) error {
	current, err := s.store.GetByPuuid(ctx, puuid)
	if err != nil {
		return err
	}

	updated := *current
	if err := s.refreshInto(ctx, &updated); err != nil {
		return err
	}

	if accountsEqual(current, &updated) {
		s.logger.Debug().Str("puuid", puuid).Msg("upstream unchanged, skipping write")
		return nil
	}

	if err := s.store.Upsert(ctx, &updated); err != nil {
		return err
	}

	if updated.Rank.Elo != current.Rank.Elo {
		entry := domain.RankHistoryEntry{
			Puuid:      puuid,
			TierCode:   updated.Rank.TierCode,
			TierLabel:  updated.Rank.TierLabel,
			Elo:        updated.Rank.Elo,
			Delta:      updated.Rank.Elo - current.Rank.Elo,
			RecordedAt: updated.Rank.EloLastChangedAt,
		}
		if err := s.history.Append(ctx, entry); err != nil {
			// history is best-effort; the snapshot is already persisted
			s.logger.Warn().Err(err).Str("puuid", puuid).Msg("failed to append rank history")
		}
	}

	s.logger.Info().
		Str("puuid", puuid).
		Int("elo", updated.Rank.Elo).
		Int("previous_elo", current.Rank.Elo).
		Msg("account refreshed")
	return nil
}

// refreshInto fetches identity, rank and rank-change time from upstream and
// writes them into account. Nothing is persisted here.
func (s *AccountService) refreshInto(ctx context.Context, account *domain.Account) error {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	identity, err := s.rank.Account(apiCtx, account.Puuid)
	if err != nil {
		return fmt.Errorf("failed to fetch account identity: %w", err)
	}

	mmrCtx, mmrCancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer mmrCancel()

	snapshot, err := s.rank.MMR(mmrCtx, identity.Region, account.Puuid)
	if err != nil {
		return fmt.Errorf("failed to fetch mmr: %w", err)
	}

	// Rank freshness is best-effort: a failed or empty history lookup
	// degrades to the current wall clock instead of failing the refresh.
	histCtx, histCancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer histCancel()

	changedAt, err := s.rank.MMRHistory(histCtx, identity.Region, account.Puuid)
	if err != nil {
		s.logger.Debug().Err(err).Str("puuid", account.Puuid).Msg("mmr history unavailable, using current time")
		changedAt = time.Now().UTC()
	}

	if snapshot.Elo == account.Rank.Elo && !account.Rank.EloLastChangedAt.IsZero() {
		snapshot.EloLastChangedAt = account.Rank.EloLastChangedAt
	} else {
		snapshot.EloLastChangedAt = changedAt
	}

	account.Name = identity.Name
	account.Tag = identity.Tag
	account.Region = identity.Region
	account.Rank = snapshot
	return nil
}

func accountsEqual(a, b *domain.Account) bool {
	return a.Name == b.Name &&
		a.Tag == b.Tag &&
		a.Region == b.Region &&
		a.DiscordID == b.DiscordID &&
		a.DiscordUsername == b.DiscordUsername &&
		a.Rank == b.Rank
}

// Leaderboard returns one elo-ordered page plus the qualifying total.
func (s *AccountService) Leaderboard(ctx context.Context, page, limit int) ([]domain.Account, int, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if limit <= 0 {
		limit = constants.DefaultPageLimit
	}
	if limit > constants.MaxPageLimit {
		limit = constants.MaxPageLimit
	}
	if page < 1 {
		page = 1
	}
	return s.store.RankedPage(ctx, domain.LeaderboardFilter{}, (page-1)*limit, limit)
}

// LeaderboardAll is the unfiltered elo-sorted dump the role sync consumes
// once per cycle. Unranked accounts are included so every registered member
// still counts as verified.
func (s *AccountService) LeaderboardAll(ctx context.Context) ([]domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	accounts, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Rank.Elo > accounts[j].Rank.Elo
	})
	return accounts, nil
}

func (s *AccountService) Puuids(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.store.ListPuuids(ctx)
}

func (s *AccountService) History(ctx context.Context, puuid string, limit int) ([]domain.RankHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if limit <= 0 {
		limit = constants.DefaultPageLimit
	}
	return s.history.GetByPuuid(ctx, puuid, limit)
}

func (s *AccountService) CorrectDiscordLink(ctx context.Context, oldID, newID int64, newUsername string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.store.UpdateDiscordLink(ctx, oldID, newID, newUsername)
}
