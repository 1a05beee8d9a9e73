package worker

import (
	"fmt"
	"strings"
	"valorantsl/internal/domain"
)

const (
	RoleVerified   = "Verified"
	RoleUnverified = "Unverified"
	RoleManual     = "Manual"
	RoleAlpha      = "Alpha"
	RoleOmega      = "Omega"
	roleEveryone   = "@everyone"
)

// Bracket membership by tier word. Alpha is the upper half of the ladder,
// Omega the lower; unranked and unknown tiers belong to neither.
var (
	alphaTiers = map[string]bool{
		"Diamond":   true,
		"Ascendant": true,
		"Immortal":  true,
		"Radiant":   true,
	}
	omegaTiers = map[string]bool{
		"Iron":     true,
		"Bronze":   true,
		"Silver":   true,
		"Gold":     true,
		"Platinum": true,
	}
)

var shortTierNames = map[string]string{
	"Iron":      "Iron",
	"Bronze":    "Brz",
	"Silver":    "Slv",
	"Gold":      "Gld",
	"Platinum":  "Plt",
	"Ascendant": "Asc",
	"Diamond":   "Dia",
	"Immortal":  "Imm",
	"Radiant":   "Radiant",
}

// TierWord reduces a full tier label like "Gold 2" to its tier word.
func TierWord(label string) string {
	if i := strings.IndexByte(label, ' '); i >= 0 {
		return label[:i]
	}
	return label
}

// TargetRoles derives the complete role set a member should hold from the
// stored tier label. Unmatched members carry only Unverified; matched
// members always carry Verified, plus tier and bracket roles when ranked.
func TargetRoles(tierLabel string, matched bool) []string {
	if !matched {
		return []string{RoleUnverified}
	}
	tier := TierWord(tierLabel)
	switch {
	case alphaTiers[tier]:
		return []string{RoleAlpha, tier, RoleVerified}
	case omegaTiers[tier]:
		return []string{RoleOmega, tier, RoleVerified}
	default:
		return []string{RoleVerified}
	}
}

// Nickname renders the display name with the abbreviated tier suffix, e.g.
// "Foo (Gld)". Members without a global name fall back to their username.
func Nickname(member domain.GuildMember, tierLabel string) string {
	name := member.GlobalName
	if name == "" {
		name = member.Username
	}
	tier := TierWord(tierLabel)
	short, ok := shortTierNames[tier]
	if !ok {
		short = tier
	}
	return fmt.Sprintf("%s (%s)", name, short)
}

// DiffRoleIDs computes the mutations that converge a member's current role
// ids onto the target set, whatever the starting state. The @everyone role
// is guild-implicit and never removed. Already-correct roles are left
// alone so a converged member costs zero API calls.
func DiffRoleIDs(current, target []string, everyoneID string) (remove, add []string) {
	targetSet := make(map[string]bool, len(target))
	for _, id := range target {
		targetSet[id] = true
	}
	currentSet := make(map[string]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}

	for _, id := range current {
		if id == everyoneID || targetSet[id] {
			continue
		}
		remove = append(remove, id)
	}
	for _, id := range target {
		if currentSet[id] {
			continue
		}
		add = append(add, id)
	}
	return remove, add
}
