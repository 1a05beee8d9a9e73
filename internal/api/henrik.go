package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
	"valorantsl/internal/config"
	"valorantsl/internal/domain"

	"github.com/valyala/fasthttp"
)

const henrikBaseURL = "https://api.henrikdev.xyz"

// HenrikClient talks to the HenrikDev stats API. It translates errors and
// sets auth; retry policy belongs to the caller.
type HenrikClient struct {
	apiToken     string
	baseOverride string
	client       *fasthttp.Client
	rateLimitMu  sync.RWMutex
	rateLimit    RateLimitInfo
}

type RateLimitInfo struct {
	Bucket    string `json:"bucket"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`

	// seconds until reset
	Reset int `json:"reset"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewHenrikClient(cfg *config.Config) *HenrikClient {
	return &HenrikClient{
		apiToken: cfg.HenrikAPIToken,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		rateLimit: RateLimitInfo{
			Limit:     90,
			Remaining: 90,
			Reset:     60,
			UpdatedAt: time.Now(),
		},
	}
}

func (c *HenrikClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *HenrikClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if bucket := string(resp.Header.Peek("X-Ratelimit-Bucket")); bucket != "" {
		c.rateLimit.Bucket = bucket
	}
	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

// Account resolves a puuid to the player's current name, tag and region.
func (c *HenrikClient) Account(ctx context.Context, puuid string) (domain.Identity, error) {
	url := fmt.Sprintf("%s/valorant/v1/by-puuid/account/%s", baseURL(c), puuid)
	resp, err := doRequest[accountResponse](ctx, c, url)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{
		Name:   resp.Data.Name,
		Tag:    resp.Data.Tag,
		Region: resp.Data.Region,
	}, nil
}

// MMR fetches the current competitive rank. The returned snapshot carries a
// zero EloLastChangedAt; the caller decides freshness from MMRHistory.
func (c *HenrikClient) MMR(ctx context.Context, region, puuid string) (domain.RankSnapshot, error) {
	url := fmt.Sprintf("%s/valorant/v1/by-puuid/mmr/%s/%s", baseURL(c), region, puuid)
	resp, err := doRequest[mmrResponse](ctx, c, url)
	if err != nil {
		return domain.RankSnapshot{}, err
	}
	return domain.RankSnapshot{
		TierCode:      resp.Data.CurrentTier,
		TierLabel:     resp.Data.CurrentTierPatched,
		ImageSmall:    resp.Data.Images.Small,
		ImageLarge:    resp.Data.Images.Large,
		RankInTier:    resp.Data.RankingInTier,
		LastGameDelta: resp.Data.MmrChangeToLastGame,
		Elo:           resp.Data.Elo,
	}, nil
}

// MMRHistory returns the timestamp of the most recent rank change. An empty
// history degrades to time.Now(); transport errors are surfaced so the
// caller can choose the same fallback.
func (c *HenrikClient) MMRHistory(ctx context.Context, region, puuid string) (time.Time, error) {
	url := fmt.Sprintf("%s/valorant/v1/by-puuid/mmr-history/%s/%s", baseURL(c), region, puuid)
	resp, err := doRequest[mmrHistoryResponse](ctx, c, url)
	if err != nil {
		return time.Now(), err
	}
	if len(resp.Data) == 0 {
		return time.Now(), nil
	}
	return time.Unix(resp.Data[0].DateRaw, 0).UTC(), nil
}

func doRequest[T any](ctx context.Context, client *HenrikClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", client.apiToken)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("%w: %v", &domain.UpstreamError{URL: url}, err)
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, fmt.Errorf("%w: %v", &domain.UpstreamError{URL: url}, err)
		}
	}

	client.updateRateLimit(resp)

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &domain.UpstreamError{Status: resp.StatusCode(), URL: url}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		// malformed payload is an upstream problem, same as a bad status
		return nil, fmt.Errorf("%w: decoding body: %v", &domain.UpstreamError{Status: resp.StatusCode(), URL: url}, err)
	}
	return &result, nil
}

type accountResponse struct {
	Status int `json:"status"`
	Data   struct {
		Puuid        string `json:"puuid"`
		Region       string `json:"region"`
		AccountLevel int    `json:"account_level"`
		Name         string `json:"name"`
		Tag          string `json:"tag"`
	} `json:"data"`
}

type mmrResponse struct {
	Status int `json:"status"`
	Data   struct {
		CurrentTier        int    `json:"currenttier"`
		CurrentTierPatched string `json:"currenttierpatched"`
		Images             struct {
			Small        string `json:"small"`
			Large        string `json:"large"`
			TriangleDown string `json:"triangle_down"`
			TriangleUp   string `json:"triangle_up"`
		} `json:"images"`
		RankingInTier       int    `json:"ranking_in_tier"`
		MmrChangeToLastGame int    `json:"mmr_change_to_last_game"`
		Elo                 int    `json:"elo"`
		Name                string `json:"name"`
		Tag                 string `json:"tag"`
	} `json:"data"`
}

type mmrHistoryResponse struct {
	Status int `json:"status"`
	Data   []struct {
		CurrentTier   int    `json:"currenttier"`
		RankingInTier int    `json:"ranking_in_tier"`
		Elo           int    `json:"elo"`
		Date          string `json:"date"`
		DateRaw       int64  `json:"date_raw"`
	} `json:"data"`
}

// SetBaseURL points the client at a different host. Used by tests.
func (c *HenrikClient) SetBaseURL(base string) {
	c.baseOverride = base
}

func baseURL(c *HenrikClient) string {
	if c.baseOverride != "" {
		return c.baseOverride
	}
	return henrikBaseURL
}
