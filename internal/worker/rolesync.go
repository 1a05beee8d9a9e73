package worker

import (
	"context"
	"errors"
	"sort"
	"time"
	"valorantsl/internal/constants"
	"valorantsl/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// GuildClient is the slice of the Discord API the role sync needs. Every
// mutating call can fail with a PermissionError that must be handled
// per-call, never per-batch.
type GuildClient interface {
	GuildReady(ctx context.Context) error
	Roles(ctx context.Context) ([]domain.GuildRole, error)
	Members(ctx context.Context) ([]domain.GuildMember, error)
	AddRole(ctx context.Context, memberID int64, roleID string) error
	RemoveRole(ctx context.Context, memberID int64, roleID string) error
	SetNickname(ctx context.Context, memberID int64, nick string) error
}

// LeaderboardSource provides the one account snapshot a cycle reuses for
// all members.
type LeaderboardSource interface {
	LeaderboardAll(ctx context.Context) ([]domain.Account, error)
}

// LinkCorrector receives drift-correction writes when the reconciler
// relinks an account to a live member.
type LinkCorrector interface {
	RelinkDiscord(ctx context.Context, puuid string, newID int64, newUsername string) error
}

type RoleSyncConfig struct {
	Interval   time.Duration
	Pacing     time.Duration
	ReadyProbe time.Duration
	Tolerance  int64
}

func DefaultRoleSyncConfig() RoleSyncConfig {
	return RoleSyncConfig{
		Interval:   constants.RoleSyncInterval,
		Pacing:     constants.RoleSyncPacing,
		ReadyProbe: constants.GuildReadyInterval,
		Tolerance:  constants.DriftIDTolerance,
	}
}

// RoleSyncWorker is the role-sync loop: it walks the guild member list and
// converges each member's roles and nickname onto what the stored rank
// dictates. It reads the account store and writes only to Discord, except
// for drift-correction relinks.
type RoleSyncWorker struct {
	guild      GuildClient
	source     LeaderboardSource
	store      LinkCorrector
	reconciler DriftReconciler
	cfg        RoleSyncConfig
	limiter    *rate.Limiter
	joins      <-chan domain.GuildMember
	logger     zerolog.Logger
}

func NewRoleSyncWorker(guild GuildClient, source LeaderboardSource, store LinkCorrector, cfg RoleSyncConfig, logger zerolog.Logger) *RoleSyncWorker {
	return &RoleSyncWorker{
		guild:      guild,
		source:     source,
		store:      store,
		reconciler: DriftReconciler{Tolerance: cfg.Tolerance},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(cfg.Pacing), 1),
		logger:     logger.With().Str("worker", "role_sync").Logger(),
	}
}

// WithJoinFeed attaches a membership-change event stream. Joined members go
// through the same per-member path as the periodic sweep.
func (w *RoleSyncWorker) WithJoinFeed(joins <-chan domain.GuildMember) *RoleSyncWorker {
	w.joins = joins
	return w
}

// Run blocks until the guild is reachable, then alternates full sweeps with
// join handling until ctx is cancelled.
func (w *RoleSyncWorker) Run(ctx context.Context) error {
	if err := w.waitReady(ctx); err != nil {
		return err
	}
	for {
		w.RunCycle(ctx)
		w.logger.Info().Dur("interval", w.cfg.Interval).Msg("sleeping until next role sync cycle")

		timer := time.NewTimer(w.cfg.Interval)
	wait:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case member, ok := <-w.joins:
				if !ok {
					w.joins = nil
					continue
				}
				w.handleJoin(ctx, member)
			case <-timer.C:
				break wait
			}
		}
	}
}

func (w *RoleSyncWorker) waitReady(ctx context.Context) error {
	for {
		if err := w.guild.GuildReady(ctx); err == nil {
			w.logger.Info().Msg("guild reachable, starting role sync")
			return nil
		} else {
			w.logger.Warn().Err(err).Msg("guild not reachable yet")
		}
		if err := sleepCtx(ctx, w.cfg.ReadyProbe); err != nil {
			return err
		}
	}
}

// RunCycle fetches one leaderboard snapshot and one member list, then
// processes members in id order so repeated cycles are reproducible. Only
// a failed snapshot or member-list fetch aborts the cycle; per-member
// failures are isolated.
func (w *RoleSyncWorker) RunCycle(ctx context.Context) {
	accounts, err := w.source.LeaderboardAll(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to fetch leaderboard snapshot, skipping cycle")
		return
	}
	roles, err := w.guild.Roles(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to fetch guild roles, skipping cycle")
		return
	}
	members, err := w.guild.Members(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to fetch guild members, skipping cycle")
		return
	}

	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	roleIDs := indexRoles(roles)
	byDiscordID := indexAccounts(accounts)

	w.logger.Info().
		Int("members", len(members)).
		Int("accounts", len(accounts)).
		Msg("starting role sync cycle")
	start := time.Now()

	for _, member := range members {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.syncMember(ctx, member, accounts, byDiscordID, roleIDs)
	}

	w.logger.Info().
		Int("members", len(members)).
		Dur("took", time.Since(start)).
		Msg("role sync cycle complete")
}

// handleJoin runs the per-member path for a single member using a fresh
// snapshot, outside the periodic sweep.
func (w *RoleSyncWorker) handleJoin(ctx context.Context, member domain.GuildMember) {
	w.logger.Info().Int64("member_id", member.ID).Str("username", member.Username).Msg("member joined")

	accounts, err := w.source.LeaderboardAll(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to fetch leaderboard snapshot for join")
		return
	}
	roles, err := w.guild.Roles(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to fetch guild roles for join")
		return
	}
	w.syncMember(ctx, member, accounts, indexAccounts(accounts), indexRoles(roles))
}

func (w *RoleSyncWorker) syncMember(
	ctx context.Context,
	member domain.GuildMember,
	accounts []domain.Account,
	byDiscordID map[int64]*domain.Account,
	roleIDs map[string]string,
) {
	logger := w.logger.With().Int64("member_id", member.ID).Str("username", member.Username).Logger()

	// human override takes precedence over everything
	if manualID, ok := roleIDs[RoleManual]; ok && containsRole(member.RoleIDs, manualID) {
		logger.Debug().Msg("manual role present, skipping member")
		return
	}

	account := byDiscordID[member.ID]
	if account == nil {
		account = w.reconciler.Match(member, accounts)
		if account != nil {
			logger.Info().
				Str("puuid", account.Puuid).
				Int64("stale_discord_id", account.DiscordID).
				Msg("drift reconciled, relinking account")
			if err := w.store.RelinkDiscord(ctx, account.Puuid, member.ID, member.Username); err != nil {
				logger.Error().Err(err).Msg("failed to persist relink")
			}
		}
	} else if account.DiscordUsername != member.Username {
		// stable id, drifted username
		if err := w.store.RelinkDiscord(ctx, account.Puuid, member.ID, member.Username); err != nil {
			logger.Warn().Err(err).Msg("failed to update drifted username")
		}
	}

	matched := account != nil
	tierLabel := ""
	if matched {
		tierLabel = account.Rank.TierLabel
	}

	if matched {
		w.updateNickname(ctx, member, tierLabel, logger)
	}

	target := TargetRoles(tierLabel, matched)
	targetIDs := make([]string, 0, len(target))
	for _, name := range target {
		id, ok := roleIDs[name]
		if !ok {
			logger.Error().Str("role", name).Msg("role not defined in guild")
			continue
		}
		targetIDs = append(targetIDs, id)
	}

	remove, add := DiffRoleIDs(member.RoleIDs, targetIDs, roleIDs[roleEveryone])
	for _, id := range remove {
		w.applyRoleChange(ctx, member.ID, id, w.guild.RemoveRole, "remove", logger)
	}
	for _, id := range add {
		w.applyRoleChange(ctx, member.ID, id, w.guild.AddRole, "add", logger)
	}
}

func (w *RoleSyncWorker) updateNickname(ctx context.Context, member domain.GuildMember, tierLabel string, logger zerolog.Logger) {
	if TierWord(tierLabel) == "" {
		return
	}
	nick := Nickname(member, tierLabel)
	if member.Nickname == nick {
		return
	}
	err := w.guild.SetNickname(ctx, member.ID, nick)
	switch {
	case err == nil:
		logger.Info().Str("nickname", nick).Msg("nickname updated")
	case isPermission(err):
		// a rename the bot cannot perform must not block role mutation
		logger.Warn().Msg("missing permission to update nickname")
	case isNotFound(err):
		logger.Debug().Msg("member vanished before nickname update")
	default:
		logger.Error().Err(err).Msg("failed to update nickname")
	}
}

func (w *RoleSyncWorker) applyRoleChange(
	ctx context.Context,
	memberID int64,
	roleID string,
	apply func(context.Context, int64, string) error,
	action string,
	logger zerolog.Logger,
) {
	err := apply(ctx, memberID, roleID)
	switch {
	case err == nil:
		logger.Info().Str("role_id", roleID).Str("action", action).Msg("role updated")
	case isPermission(err):
		logger.Warn().Str("role_id", roleID).Str("action", action).Msg("missing permission for role change")
	case isNotFound(err):
		logger.Debug().Str("role_id", roleID).Str("action", action).Msg("member or role vanished mid-cycle")
	default:
		logger.Error().Err(err).Str("role_id", roleID).Str("action", action).Msg("role change failed")
	}
}

func indexAccounts(accounts []domain.Account) map[int64]*domain.Account {
	byID := make(map[int64]*domain.Account, len(accounts))
	for i := range accounts {
		if accounts[i].DiscordID != 0 {
			byID[accounts[i].DiscordID] = &accounts[i]
		}
	}
	return byID
}

func indexRoles(roles []domain.GuildRole) map[string]string {
	byName := make(map[string]string, len(roles))
	for _, r := range roles {
		byName[r.Name] = r.ID
	}
	return byName
}

func containsRole(roleIDs []string, id string) bool {
	for _, r := range roleIDs {
		if r == id {
			return true
		}
	}
	return false
}

func isPermission(err error) bool {
	var perm *domain.PermissionError
	return errors.As(err, &perm)
}

func isNotFound(err error) bool {
	var notFound *domain.NotFoundError
	return errors.As(err, &notFound)
}
