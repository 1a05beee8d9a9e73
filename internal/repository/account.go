package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
	"valorantsl/internal/domain"

	"github.com/rs/zerolog"
)

type AccountRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAccountRepository(sqlDB *sql.DB, logger zerolog.Logger) *AccountRepository {
	return &AccountRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const accountColumns = `puuid, name, tag, region, discord_id, discord_username,
	tier_code, tier_label, image_small, image_large, rank_in_tier,
	last_game_delta, elo, elo_last_changed_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.Puuid, &a.Name, &a.Tag, &a.Region, &a.DiscordID, &a.DiscordUsername,
		&a.Rank.TierCode, &a.Rank.TierLabel, &a.Rank.ImageSmall, &a.Rank.ImageLarge,
		&a.Rank.RankInTier, &a.Rank.LastGameDelta, &a.Rank.Elo,
		&a.Rank.EloLastChangedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Upsert inserts or replaces the account keyed by puuid. A non-sentinel
// discord_id or a discord_username held by a different account is a
// ConflictError, never a silent overwrite.
func (r *AccountRepository) Upsert(ctx context.Context, account *domain.Account) error {
	if err := r.checkConflicts(ctx, account); err != nil {
		return err
	}

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(puuid) DO UPDATE SET
			name = excluded.name,
			tag = excluded.tag,
			region = excluded.region,
			discord_id = excluded.discord_id,
			discord_username = excluded.discord_username,
			tier_code = excluded.tier_code,
			tier_label = excluded.tier_label,
			image_small = excluded.image_small,
			image_large = excluded.image_large,
			rank_in_tier = excluded.rank_in_tier,
			last_game_delta = excluded.last_game_delta,
			elo = excluded.elo,
			elo_last_changed_at = excluded.elo_last_changed_at,
			updated_at = excluded.updated_at
	`,
		account.Puuid, account.Name, account.Tag, account.Region,
		account.DiscordID, account.DiscordUsername,
		account.Rank.TierCode, account.Rank.TierLabel,
		account.Rank.ImageSmall, account.Rank.ImageLarge,
		account.Rank.RankInTier, account.Rank.LastGameDelta, account.Rank.Elo,
		account.Rank.EloLastChangedAt, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", account.Puuid, err)
	}
	return nil
}

func (r *AccountRepository) checkConflicts(ctx context.Context, account *domain.Account) error {
	var other string

	err := r.db.QueryRowContext(ctx,
		`SELECT puuid FROM accounts WHERE discord_username = ? AND puuid != ?`,
		account.DiscordUsername, account.Puuid,
	).Scan(&other)
	if err == nil {
		return &domain.ConflictError{Field: "discord_username", Value: account.DiscordUsername}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("conflict check: %w", err)
	}

	if account.DiscordID != 0 {
		err = r.db.QueryRowContext(ctx,
			`SELECT puuid FROM accounts WHERE discord_id = ? AND puuid != ?`,
			account.DiscordID, account.Puuid,
		).Scan(&other)
		if err == nil {
			return &domain.ConflictError{Field: "discord_id", Value: strconv.FormatInt(account.DiscordID, 10)}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("conflict check: %w", err)
		}
	}
	return nil
}

func (r *AccountRepository) GetByPuuid(ctx context.Context, puuid string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE puuid = ?`, puuid)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "account", Key: puuid}
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *AccountRepository) GetByDiscordID(ctx context.Context, discordID int64) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE discord_id = ? AND discord_id != 0`, discordID)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "account", Key: strconv.FormatInt(discordID, 10)}
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *AccountRepository) GetByDiscordUsername(ctx context.Context, username string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE discord_username = ?`, username)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "account", Key: username}
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListAll materializes the whole collection so callers iterate a stable
// snapshot, not a live cursor.
func (r *AccountRepository) ListAll(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY puuid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) ListPuuids(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT puuid FROM accounts ORDER BY puuid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var puuids []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		puuids = append(puuids, p)
	}
	return puuids, rows.Err()
}

// RankedPage returns one page of the leaderboard, elo descending. The puuid
// tiebreak keeps pagination stable across pages fetched moments apart.
func (r *AccountRepository) RankedPage(ctx context.Context, filter domain.LeaderboardFilter, offset, limit int) ([]domain.Account, int, error) {
	where := `elo != 0`
	args := []any{}
	if filter.UpdatedWithin > 0 {
		where += ` AND updated_at >= ?`
		args = append(args, time.Now().UTC().Add(-filter.UpdatedWithin))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where +
		` ORDER BY elo DESC, puuid ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, total, rows.Err()
}

// RelinkDiscord is the drift-correction write: it moves an account to the
// live Discord identity. Keyed by puuid because the stale id may be the 0
// sentinel, which is shared by every not-yet-linked account.
func (r *AccountRepository) RelinkDiscord(ctx context.Context, puuid string, newID int64, newUsername string) error {
	if newID != 0 {
		var other string
		err := r.db.QueryRowContext(ctx,
			`SELECT puuid FROM accounts WHERE discord_id = ? AND puuid != ?`,
			newID, puuid,
		).Scan(&other)
		if err == nil {
			return &domain.ConflictError{Field: "discord_id", Value: strconv.FormatInt(newID, 10)}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("conflict check: %w", err)
		}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET discord_id = ?, discord_username = ?, updated_at = ?
		WHERE puuid = ?
	`, newID, newUsername, time.Now().UTC(), puuid)
	if err != nil {
		return fmt.Errorf("failed to relink account %s: %w", puuid, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &domain.NotFoundError{Kind: "account", Key: puuid}
	}

	r.logger.Info().
		Str("puuid", puuid).
		Int64("new_discord_id", newID).
		Str("discord_username", newUsername).
		Msg("discord link updated")
	return nil
}

// UpdateDiscordLink serves the legacy correction route, which addresses the
// account by its previous (real) discord id.
func (r *AccountRepository) UpdateDiscordLink(ctx context.Context, oldID, newID int64, newUsername string) error {
	account, err := r.GetByDiscordID(ctx, oldID)
	if err != nil {
		return err
	}
	return r.RelinkDiscord(ctx, account.Puuid, newID, newUsername)
}
