package domain

import (
	"time"
)

// Account links a Valorant identity to a Discord identity plus the rank
// snapshot cached from the most recent successful sync.
type Account struct {
	Puuid           string
	Name            string
	Tag             string
	Region          string
	DiscordID       int64 // 0 until the role sync learns the real id
	DiscordUsername string
	Rank            RankSnapshot
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RankSnapshot is replaced wholesale on each successful sync, never merged
// field by field.
type RankSnapshot struct {
	TierCode         int
	TierLabel        string
	ImageSmall       string
	ImageLarge       string
	RankInTier       int
	LastGameDelta    int
	Elo              int
	EloLastChangedAt time.Time
}

// Identity is the account lookup result from the rank provider.
type Identity struct {
	Name   string
	Tag    string
	Region string
}

type RankHistoryEntry struct {
	ID         string // nanoid
	Puuid      string
	TierCode   int
	TierLabel  string
	Elo        int
	Delta      int
	RecordedAt time.Time
	CreatedAt  time.Time
}

// GuildMember is Discord-owned state. The sync reads it and proposes diffs
// against it; it is never a source of truth for rank.
type GuildMember struct {
	ID         int64
	Username   string
	GlobalName string
	Nickname   string
	RoleIDs    []string
	Bot        bool
}

// GuildRole is a role as the guild defines it. The @everyone role carries
// the guild id as its own id.
type GuildRole struct {
	ID   string
	Name string
}

// LeaderboardFilter narrows RankedPage to accounts with a usable rank.
type LeaderboardFilter struct {
	UpdatedWithin time.Duration // zero = no recency filter
}
