package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"valorantsl/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// RankHistoryRepository stores one row per observed elo change, append-only.
type RankHistoryRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRankHistoryRepository(sqlDB *sql.DB, logger zerolog.Logger) *RankHistoryRepository {
	return &RankHistoryRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *RankHistoryRepository) Append(ctx context.Context, entry domain.RankHistoryEntry) error {
	id := entry.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rank_history (id, puuid, tier_code, tier_label, elo, delta, recorded_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, entry.Puuid, entry.TierCode, entry.TierLabel, entry.Elo, entry.Delta, entry.RecordedAt, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append rank history for %s: %w", entry.Puuid, err)
	}
	return nil
}

func (r *RankHistoryRepository) GetByPuuid(ctx context.Context, puuid string, limit int) ([]domain.RankHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, puuid, tier_code, tier_label, elo, delta, recorded_at, created_at
		FROM rank_history
		WHERE puuid = ?
		ORDER BY recorded_at DESC
		LIMIT ?
	`, puuid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RankHistoryEntry
	for rows.Next() {
		var e domain.RankHistoryEntry
		if err := rows.Scan(&e.ID, &e.Puuid, &e.TierCode, &e.TierLabel, &e.Elo, &e.Delta, &e.RecordedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
