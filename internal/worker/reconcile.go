package worker

import (
	"valorantsl/internal/domain"
)

// DriftReconciler relinks stored accounts to live Discord identities when
// the exact discord_id lookup fails. Two kinds of drift are recoverable:
// accounts registered before their Discord id was known (sentinel 0), and
// accounts whose stored id went stale after a migration. Username equality
// is required in both cases; id proximity alone is not an identity signal.
type DriftReconciler struct {
	Tolerance int64
}

// Match scans the snapshot for the account belonging to member. Returns nil
// when no account qualifies. Accounts arrive in a deterministic order, so
// repeated cycles resolve the same way.
func (r DriftReconciler) Match(member domain.GuildMember, accounts []domain.Account) *domain.Account {
	for i := range accounts {
		account := &accounts[i]
		if account.DiscordUsername != member.Username {
			continue
		}
		if account.DiscordID == 0 {
			return account
		}
		if absDiff(account.DiscordID, member.ID) <= r.Tolerance {
			return account
		}
	}
	return nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
