package worker

import (
	"context"
	"time"
	"valorantsl/internal/constants"
	"valorantsl/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type AccountLister interface {
	ListAll(ctx context.Context) ([]domain.Account, error)
}

// Refresher re-fetches one account from the rank provider and persists the
// result. Implemented by service.AccountService.
type Refresher interface {
	Refresh(ctx context.Context, puuid string) error
}

type RankSyncConfig struct {
	Warmup   time.Duration
	Interval time.Duration
	Pacing   time.Duration
	Retry    RetryPolicy
}

func DefaultRankSyncConfig() RankSyncConfig {
	return RankSyncConfig{
		Warmup:   constants.RankSyncWarmup,
		Interval: constants.RankSyncInterval,
		Pacing:   constants.RankSyncPacing,
		Retry: RetryPolicy{
			MaxAttempts: constants.RankFetchAttempts,
			Backoff:     constants.RankFetchBackoff,
		},
	}
}

// RankSyncWorker is the data-sync loop: every cycle it walks the stored
// accounts and pulls fresh identity and rank data for each, strictly
// sequentially to stay inside upstream rate limits.
type RankSyncWorker struct {
	store    AccountLister
	accounts Refresher
	cfg      RankSyncConfig
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

func NewRankSyncWorker(store AccountLister, accounts Refresher, cfg RankSyncConfig, logger zerolog.Logger) *RankSyncWorker {
	return &RankSyncWorker{
		store:    store,
		accounts: accounts,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(cfg.Pacing), 1),
		logger:   logger.With().Str("worker", "rank_sync").Logger(),
	}
}

// Run executes sync cycles until ctx is cancelled. The warm-up delay keeps
// the first cycle from racing service startup. There is no other exit: the
// loop is expected to survive indefinite strings of upstream failures.
func (w *RankSyncWorker) Run(ctx context.Context) error {
	if err := sleepCtx(ctx, w.cfg.Warmup); err != nil {
		return err
	}
	for {
		w.RunCycle(ctx)
		w.logger.Info().Dur("interval", w.cfg.Interval).Msg("sleeping until next rank sync cycle")
		if err := sleepCtx(ctx, w.cfg.Interval); err != nil {
			return err
		}
	}
}

// RunCycle walks the account snapshot taken at cycle start once. Accounts
// registered mid-cycle are picked up next cycle. A failing account is
// retried per policy, then skipped; it never aborts the cycle.
func (w *RankSyncWorker) RunCycle(ctx context.Context) {
	accounts, err := w.store.ListAll(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to list accounts, skipping cycle")
		return
	}

	w.logger.Info().Int("accounts", len(accounts)).Msg("starting rank sync cycle")
	start := time.Now()
	updated := 0

	for _, account := range accounts {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		puuid := account.Puuid
		err := w.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			return w.accounts.Refresh(ctx, puuid)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Str("puuid", puuid).Msg("account sync failed after retries, skipping")
			continue
		}
		updated++
	}

	w.logger.Info().
		Int("updated", updated).
		Int("total", len(accounts)).
		Dur("took", time.Since(start)).
		Msg("rank sync cycle complete")
}
