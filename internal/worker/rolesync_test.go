package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
	"valorantsl/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGuild keeps live member role state in memory so diff-and-apply can be
// asserted on the final state, not just the call log.
type fakeGuild struct {
	mu          sync.Mutex
	roles       []domain.GuildRole
	members     []domain.GuildMember
	memberRoles map[int64]map[string]bool
	nicknames   map[int64]string
	nickErr     error
	ops         []string
}

func newFakeGuild(members ...domain.GuildMember) *fakeGuild {
	g := &fakeGuild{
		roles: []domain.GuildRole{
			{ID: "g", Name: "@everyone"},
			{ID: "alpha", Name: RoleAlpha},
			{ID: "omega", Name: RoleOmega},
			{ID: "verified", Name: RoleVerified},
			{ID: "unverified", Name: RoleUnverified},
			{ID: "manual", Name: RoleManual},
			{ID: "iron", Name: "Iron"},
			{ID: "bronze", Name: "Bronze"},
			{ID: "silver", Name: "Silver"},
			{ID: "gold", Name: "Gold"},
			{ID: "platinum", Name: "Platinum"},
			{ID: "diamond", Name: "Diamond"},
			{ID: "ascendant", Name: "Ascendant"},
			{ID: "immortal", Name: "Immortal"},
			{ID: "radiant", Name: "Radiant"},
		},
		memberRoles: map[int64]map[string]bool{},
		nicknames:   map[int64]string{},
	}
	for _, m := range members {
		g.members = append(g.members, m)
		set := map[string]bool{}
		for _, id := range m.RoleIDs {
			set[id] = true
		}
		g.memberRoles[m.ID] = set
		g.nicknames[m.ID] = m.Nickname
	}
	return g
}

func (g *fakeGuild) GuildReady(ctx context.Context) error { return nil }

func (g *fakeGuild) Roles(ctx context.Context) ([]domain.GuildRole, error) { return g.roles, nil }

func (g *fakeGuild) Members(ctx context.Context) ([]domain.GuildMember, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.GuildMember, len(g.members))
	copy(out, g.members)
	return out, nil
}

func (g *fakeGuild) AddRole(ctx context.Context, memberID int64, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.memberRoles[memberID][roleID] = true
	g.ops = append(g.ops, fmt.Sprintf("add:%d:%s", memberID, roleID))
	return nil
}

func (g *fakeGuild) RemoveRole(ctx context.Context, memberID int64, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.memberRoles[memberID], roleID)
	g.ops = append(g.ops, fmt.Sprintf("remove:%d:%s", memberID, roleID))
	return nil
}

func (g *fakeGuild) SetNickname(ctx context.Context, memberID int64, nick string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ops = append(g.ops, fmt.Sprintf("nick:%d:%s", memberID, nick))
	if g.nickErr != nil {
		return g.nickErr
	}
	g.nicknames[memberID] = nick
	return nil
}

func (g *fakeGuild) roleSet(memberID int64) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for id := range g.memberRoles[memberID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type fakeSource struct {
	accounts []domain.Account
	err      error
}

func (f *fakeSource) LeaderboardAll(ctx context.Context) ([]domain.Account, error) {
	return f.accounts, f.err
}

type fakeCorrector struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeCorrector) RelinkDiscord(ctx context.Context, puuid string, newID int64, newUsername string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%d:%s", puuid, newID, newUsername))
	return f.err
}

func testRoleSyncConfig() RoleSyncConfig {
	return RoleSyncConfig{
		Interval:   time.Hour,
		Pacing:     time.Millisecond,
		ReadyProbe: time.Millisecond,
		Tolerance:  200,
	}
}

func TestRoleSyncConvergesArbitraryRoleState(t *testing.T) {
	member := domain.GuildMember{
		ID:         100,
		Username:   "foo",
		GlobalName: "Foo",
		RoleIDs:    []string{"alpha", "diamond", "verified"},
	}
	guild := newFakeGuild(member)
	source := &fakeSource{accounts: []domain.Account{
		{Puuid: "p1", DiscordID: 100, DiscordUsername: "foo", Rank: domain.RankSnapshot{TierLabel: "Gold 2", Elo: 1200}},
	}}
	corrector := &fakeCorrector{}

	w := NewRoleSyncWorker(guild, source, corrector, testRoleSyncConfig(), zerolog.Nop())
	w.RunCycle(context.Background())

	assert.Equal(t, []string{"gold", "omega", "verified"}, guild.roleSet(100))
	assert.Equal(t, "Foo (Gld)", guild.nicknames[100])
}

func TestRoleSyncConvergedMemberIsNoOp(t *testing.T) {
	member := domain.GuildMember{
		ID:         100,
		Username:   "foo",
		GlobalName: "Foo",
		Nickname:   "Foo (Gld)",
		RoleIDs:    []string{"omega", "gold", "verified"},
	}
	guild := newFakeGuild(member)
	source := &fakeSource{accounts: []domain.Account{
		{Puuid: "p1", DiscordID: 100, DiscordUsername: "foo", Rank: domain.RankSnapshot{TierLabel: "Gold 2"}},
	}}

	w := NewRoleSyncWorker(guild, source, &fakeCorrector{}, testRoleSyncConfig(), zerolog.Nop())
	w.RunCycle(context.Background())

	assert.Empty(t, guild.ops)
}

func TestRoleSyncManualOverrideSkipsAllMutation(t *testing.T) {
	member := domain.GuildMember{
		ID:       100,
		Username: "foo",
		RoleIDs:  []string{"manual", "alpha", "diamond"},
	}
	guild := newFakeGuild(member)
	source := &fakeSource{accounts: []domain.Account{
		{Puuid: "p1", DiscordID: 100, DiscordUsername: "foo", Rank: domain.RankSnapshot{TierLabel: "Gold 2"}},
	}}
	corrector := &fakeCorrector{}

	w := NewRoleSyncWorker(guild, source, corrector, testRoleSyncConfig(), zerolog.Nop())
	w.RunCycle(context.Background())

	assert.Empty(t, guild.ops)
	assert.Empty(t, corrector.calls)
	assert.Equal(t, []string{"alpha", "diamond", "manual"}, guild.roleSet(100))
}

func TestRoleSyncUnmatchedMemberGetsUnverified(t *testing.T) {
	member := domain.GuildMember{
		ID:       100,
		Username: "stranger",
		RoleIDs:  []string{"alpha", "gold"},
	}
	guild := newFakeGuild(member)
	source := &fakeSource{}

	w := NewRoleSyncWorker(guild, source, &fakeCorrector{}, testRoleSyncConfig(), zerolog.Nop())
	w.RunCycle(context.Background())

	assert.Equal(t, []string{"unverified"}, guild.roleSet(100))
}

func TestRoleSyncDriftRelinksSentinelAccount(t *testing.T) {
	member := domain.GuildMember{
		ID:         12345,
		Username:   "Foo",
		GlobalName: "Foo",
	}
	guild := newFakeGuild(member)
	source := &fakeSource{accounts: []domain.Account{
		{Puuid: "p1", DiscordID: 0, DiscordUsername: "Foo", Rank: domain.RankSnapshot{TierLabel: "Silver 1"}},
	}}
	corrector := &fakeCorrector{}

	w := NewRoleSyncWorker(guild, source, corrector, testRoleSyncConfig(), zerolog.Nop())
	w.RunCycle(context.Background())

	require.Equal(t, []string{"p1:12345:Foo"}, corrector.calls)
	// relinked member is treated as matched this same cycle
	assert.Equal(t, []string{"omega", "silver", "verified"}, guild.roleSet(12345))
}

func TestRoleSyncUpdatesDriftedUsername(t *testing.T) {
	member := domain.GuildMember{ID: 100, Username: "renamed", GlobalName: "Foo"}
	guild := newFakeGuild(member)
	source := &fakeSource{accounts: []domain.Account{
		{Puuid: "p1", DiscordID: 100, DiscordUsername: "oldname", Rank: domain.RankSnapshot{TierLabel: "Gold 1"}},
	}}
	corrector := &fakeCorrector{}

	w := NewRoleSyncWorker(guild, source, corrector, testRoleSyncConfig(), zerolog.Nop())
	w.RunCycle(context.Background())

	assert.Equal(t, []string{"p1:100:renamed"}, corrector.calls)
}

func TestRoleSyncNicknamePermissionFailureDoesNotBlockRoles(t *testing.T) {
	member := domain.GuildMember{ID: 100, Username: "foo", GlobalName: "Foo"}
	guild := newFakeGuild(member)
	guild.nickErr = &domain.PermissionError{Action: "nick"}
	source := &fakeSource{accounts: []domain.Account{
		{Puuid: "p1", DiscordID: 100, DiscordUsername: "foo", Rank: domain.RankSnapshot{TierLabel: "Immortal 2"}},
	}}

	w := NewRoleSyncWorker(guild, source, &fakeCorrector{}, testRoleSyncConfig(), zerolog.Nop())
	w.RunCycle(context.Background())

	assert.Equal(t, []string{"alpha", "immortal", "verified"}, guild.roleSet(100))
}

func TestRoleSyncSnapshotFailureSkipsCycle(t *testing.T) {
	member := domain.GuildMember{ID: 100, Username: "foo", RoleIDs: []string{"gold"}}
	guild := newFakeGuild(member)
	source := &fakeSource{err: &domain.UpstreamError{Status: 500, URL: "leaderboard"}}

	w := NewRoleSyncWorker(guild, source, &fakeCorrector{}, testRoleSyncConfig(), zerolog.Nop())
	w.RunCycle(context.Background())

	assert.Empty(t, guild.ops)
}

func TestRoleSyncJoinFeedUsesSamePath(t *testing.T) {
	guild := newFakeGuild(domain.GuildMember{ID: 7, Username: "joiner", GlobalName: "Joiner"})
	// the sweep sees nobody, so only the join event can reach member 7
	guild.members = nil
	source := &fakeSource{accounts: []domain.Account{
		{Puuid: "p7", DiscordID: 7, DiscordUsername: "joiner", Rank: domain.RankSnapshot{TierLabel: "Bronze 3"}},
	}}

	joins := make(chan domain.GuildMember, 1)
	w := NewRoleSyncWorker(guild, source, &fakeCorrector{}, testRoleSyncConfig(), zerolog.Nop()).
		WithJoinFeed(joins)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	joins <- domain.GuildMember{ID: 7, Username: "joiner", GlobalName: "Joiner"}

	require.Eventually(t, func() bool {
		roles := guild.roleSet(7)
		return len(roles) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"bronze", "omega", "verified"}, guild.roleSet(7))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
