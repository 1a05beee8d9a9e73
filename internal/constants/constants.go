package constants

import "time"

const (
	// RankSyncWarmup delays the first cycle so the database and upstream
	// are reachable before the loop starts hammering them.
	RankSyncWarmup    = 20 * time.Second
	RankSyncInterval  = 30 * time.Minute
	RankSyncPacing    = 2 * time.Second
	RankFetchAttempts = 3
	RankFetchBackoff  = 2 * time.Second
)

const (
	RoleSyncInterval   = 15 * time.Minute
	RoleSyncPacing     = 1 * time.Second
	GuildReadyInterval = 5 * time.Second
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// DriftIDTolerance bounds the id-proximity heuristic when relinking a
	// stale discord_id to a live member.
	DriftIDTolerance = 200

	DefaultPageLimit = 25
	MaxPageLimit     = 100
)
