package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"valorantsl/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	accounts []domain.Account
	err      error
}

func (f *fakeLister) ListAll(ctx context.Context) ([]domain.Account, error) {
	return f.accounts, f.err
}

type fakeRefresher struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{calls: map[string]int{}, failures: map[string]error{}}
}

func (f *fakeRefresher) Refresh(ctx context.Context, puuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[puuid]++
	return f.failures[puuid]
}

func testRankSyncConfig() RankSyncConfig {
	return RankSyncConfig{
		Warmup:   time.Millisecond,
		Interval: time.Hour,
		Pacing:   time.Millisecond,
		Retry:    RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	}
}

func TestRankSyncCycleRefreshesEveryAccount(t *testing.T) {
	lister := &fakeLister{accounts: []domain.Account{
		{Puuid: "p1"}, {Puuid: "p2"}, {Puuid: "p3"},
	}}
	refresher := newFakeRefresher()
	w := NewRankSyncWorker(lister, refresher, testRankSyncConfig(), zerolog.Nop())

	w.RunCycle(context.Background())

	assert.Equal(t, map[string]int{"p1": 1, "p2": 1, "p3": 1}, refresher.calls)
}

func TestRankSyncIsolatesFailingAccount(t *testing.T) {
	lister := &fakeLister{accounts: []domain.Account{
		{Puuid: "p1"}, {Puuid: "p2"}, {Puuid: "p3"},
	}}
	refresher := newFakeRefresher()
	refresher.failures["p2"] = &domain.UpstreamError{Status: 500, URL: "mmr"}
	w := NewRankSyncWorker(lister, refresher, testRankSyncConfig(), zerolog.Nop())

	w.RunCycle(context.Background())

	// the bad account is retried to exhaustion, the others sync once
	assert.Equal(t, 3, refresher.calls["p2"])
	assert.Equal(t, 1, refresher.calls["p1"])
	assert.Equal(t, 1, refresher.calls["p3"])
}

func TestRankSyncConflictIsNotRetried(t *testing.T) {
	lister := &fakeLister{accounts: []domain.Account{{Puuid: "p1"}}}
	refresher := newFakeRefresher()
	refresher.failures["p1"] = &domain.ConflictError{Field: "discord_username", Value: "taken"}
	w := NewRankSyncWorker(lister, refresher, testRankSyncConfig(), zerolog.Nop())

	w.RunCycle(context.Background())

	assert.Equal(t, 1, refresher.calls["p1"])
}

func TestRankSyncListFailureSkipsCycle(t *testing.T) {
	lister := &fakeLister{err: errors.New("db down")}
	refresher := newFakeRefresher()
	w := NewRankSyncWorker(lister, refresher, testRankSyncConfig(), zerolog.Nop())

	w.RunCycle(context.Background())

	assert.Empty(t, refresher.calls)
}

func TestRankSyncRunStopsOnCancel(t *testing.T) {
	lister := &fakeLister{}
	refresher := newFakeRefresher()
	w := NewRankSyncWorker(lister, refresher, testRankSyncConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestRetryPolicyAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}

	attempts := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
