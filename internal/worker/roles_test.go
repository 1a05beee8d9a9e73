package worker

import (
	"testing"
	"valorantsl/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestTierWord(t *testing.T) {
	assert.Equal(t, "Gold", TierWord("Gold 2"))
	assert.Equal(t, "Radiant", TierWord("Radiant"))
	assert.Equal(t, "Unranked", TierWord("Unranked"))
	assert.Equal(t, "", TierWord(""))
}

func TestTargetRoles(t *testing.T) {
	tests := []struct {
		name      string
		tierLabel string
		matched   bool
		want      []string
	}{
		{"alpha tier", "Diamond 1", true, []string{RoleAlpha, "Diamond", RoleVerified}},
		{"radiant has no division", "Radiant", true, []string{RoleAlpha, "Radiant", RoleVerified}},
		{"omega tier", "Gold 3", true, []string{RoleOmega, "Gold", RoleVerified}},
		{"platinum is omega", "Platinum 2", true, []string{RoleOmega, "Platinum", RoleVerified}},
		{"unranked still verified", "Unranked", true, []string{RoleVerified}},
		{"unknown label still verified", "Mystery 9", true, []string{RoleVerified}},
		{"empty label still verified", "", true, []string{RoleVerified}},
		{"unmatched member", "Gold 1", false, []string{RoleUnverified}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetRoles(tt.tierLabel, tt.matched))
		})
	}
}

func TestNickname(t *testing.T) {
	member := domain.GuildMember{Username: "foo_bar", GlobalName: "Foo"}

	assert.Equal(t, "Foo (Gld)", Nickname(member, "Gold 2"))
	assert.Equal(t, "Foo (Radiant)", Nickname(member, "Radiant"))
	assert.Equal(t, "Foo (Iron)", Nickname(member, "Iron 1"))
	assert.Equal(t, "Foo (Unranked)", Nickname(member, "Unranked"))

	// no global name set
	member.GlobalName = ""
	assert.Equal(t, "foo_bar (Dia)", Nickname(member, "Diamond 3"))
}

func TestDiffRoleIDs(t *testing.T) {
	everyone := "guild"

	t.Run("full replace converges from arbitrary state", func(t *testing.T) {
		remove, add := DiffRoleIDs([]string{"a", "b", "verified"}, []string{"omega", "gold", "verified"}, everyone)
		assert.Equal(t, []string{"a", "b"}, remove)
		assert.Equal(t, []string{"omega", "gold"}, add)
	})

	t.Run("already converged is a no-op", func(t *testing.T) {
		remove, add := DiffRoleIDs([]string{"omega", "gold", "verified"}, []string{"omega", "gold", "verified"}, everyone)
		assert.Empty(t, remove)
		assert.Empty(t, add)
	})

	t.Run("everyone is never removed", func(t *testing.T) {
		remove, _ := DiffRoleIDs([]string{"guild", "a"}, []string{"verified"}, everyone)
		assert.Equal(t, []string{"a"}, remove)
	})

	t.Run("empty current gets full target", func(t *testing.T) {
		remove, add := DiffRoleIDs(nil, []string{"unverified"}, everyone)
		assert.Empty(t, remove)
		assert.Equal(t, []string{"unverified"}, add)
	})
}
