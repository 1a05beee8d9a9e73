package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"valorantsl/internal/config"
	"valorantsl/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *HenrikClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewHenrikClient(&config.Config{HenrikAPIToken: "test-token"})
	client.SetBaseURL(srv.URL)
	return client
}

func TestAccountParsesIdentity(t *testing.T) {
	var gotAuth, gotPath string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":200,"data":{"puuid":"p1","region":"eu","account_level":120,"name":"Foo","tag":"EUW"}}`))
	})

	identity, err := client.Account(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "test-token", gotAuth)
	assert.Equal(t, "/valorant/v1/by-puuid/account/p1", gotPath)
	assert.Equal(t, domain.Identity{Name: "Foo", Tag: "EUW", Region: "eu"}, identity)
}

func TestMMRParsesSnapshot(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/valorant/v1/by-puuid/mmr/eu/p1", r.URL.Path)
		w.Write([]byte(`{"status":200,"data":{
			"currenttier":16,
			"currenttierpatched":"Gold 2",
			"images":{"small":"s.png","large":"l.png"},
			"ranking_in_tier":43,
			"mmr_change_to_last_game":-12,
			"elo":1243,
			"name":"Foo","tag":"EUW"}}`))
	})

	snapshot, err := client.MMR(context.Background(), "eu", "p1")
	require.NoError(t, err)
	assert.Equal(t, 16, snapshot.TierCode)
	assert.Equal(t, "Gold 2", snapshot.TierLabel)
	assert.Equal(t, "s.png", snapshot.ImageSmall)
	assert.Equal(t, 43, snapshot.RankInTier)
	assert.Equal(t, -12, snapshot.LastGameDelta)
	assert.Equal(t, 1243, snapshot.Elo)
	assert.True(t, snapshot.EloLastChangedAt.IsZero())
}

func TestMMRHistoryUsesMostRecentEntry(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":200,"data":[
			{"currenttier":16,"elo":1243,"date_raw":1767225600},
			{"currenttier":16,"elo":1231,"date_raw":1767139200}]}`))
	})

	changedAt, err := client.MMRHistory(context.Background(), "eu", "p1")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), changedAt)
}

func TestMMRHistoryEmptyFallsBackToNow(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":200,"data":[]}`))
	})

	before := time.Now()
	changedAt, err := client.MMRHistory(context.Background(), "eu", "p1")
	require.NoError(t, err)
	assert.False(t, changedAt.Before(before))
}

func TestNonOKStatusIsUpstreamError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Account(context.Background(), "p1")
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
}

func TestMalformedBodyIsUpstreamError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := client.MMR(context.Background(), "eu", "p1")
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
}

func TestRateLimitHeadersTracked(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Limit", "90")
		w.Header().Set("X-Ratelimit-Remaining", "42")
		w.Header().Set("X-Ratelimit-Reset", "30")
		w.Write([]byte(`{"status":200,"data":{"puuid":"p1","region":"eu","name":"Foo","tag":"EUW"}}`))
	})

	_, err := client.Account(context.Background(), "p1")
	require.NoError(t, err)

	info := client.GetRateLimitInfo()
	assert.Equal(t, 90, info.Limit)
	assert.Equal(t, 42, info.Remaining)
	assert.Equal(t, 30, info.Reset)
}
