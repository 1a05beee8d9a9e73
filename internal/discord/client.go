package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
	"valorantsl/internal/config"
	"valorantsl/internal/domain"

	"github.com/valyala/fasthttp"
)

const discordBaseURL = "https://discord.com/api/v10"

// Client is a REST-only Discord client covering what the role sync needs:
// member listing, role mutation, nickname edits. No gateway connection.
type Client struct {
	botToken     string
	guildID      int64
	baseOverride string
	client       *fasthttp.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		botToken: cfg.DiscordBotToken,
		guildID:  cfg.DiscordGuildID,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// SetBaseURL points the client at a different host. Used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseOverride = base
}

func (c *Client) base() string {
	if c.baseOverride != "" {
		return c.baseOverride
	}
	return discordBaseURL
}

// GuildReady probes the guild. It reports nil once the bot can see the
// guild, which stands in for the gateway "ready" signal.
func (c *Client) GuildReady(ctx context.Context) error {
	path := fmt.Sprintf("%s/guilds/%d", c.base(), c.guildID)
	_, err := do[guildPayload](ctx, c, fasthttp.MethodGet, path, nil)
	return err
}

// Roles lists the guild's roles, @everyone included.
func (c *Client) Roles(ctx context.Context) ([]domain.GuildRole, error) {
	path := fmt.Sprintf("%s/guilds/%d/roles", c.base(), c.guildID)
	resp, err := do[[]rolePayload](ctx, c, fasthttp.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	roles := make([]domain.GuildRole, 0, len(*resp))
	for _, r := range *resp {
		roles = append(roles, domain.GuildRole{ID: r.ID, Name: r.Name})
	}
	return roles, nil
}

// Members walks the guild member list, following the `after` cursor until
// exhausted. Bot accounts are filtered out.
func (c *Client) Members(ctx context.Context) ([]domain.GuildMember, error) {
	var members []domain.GuildMember
	after := "0"
	for {
		path := fmt.Sprintf("%s/guilds/%d/members?limit=1000&after=%s", c.base(), c.guildID, url.QueryEscape(after))
		resp, err := do[[]memberPayload](ctx, c, fasthttp.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		if len(*resp) == 0 {
			return members, nil
		}
		for _, m := range *resp {
			after = m.User.ID
			if m.User.Bot {
				continue
			}
			id, err := strconv.ParseInt(m.User.ID, 10, 64)
			if err != nil {
				continue
			}
			members = append(members, domain.GuildMember{
				ID:         id,
				Username:   m.User.Username,
				GlobalName: m.User.GlobalName,
				Nickname:   m.Nick,
				RoleIDs:    m.Roles,
			})
		}
	}
}

func (c *Client) AddRole(ctx context.Context, memberID int64, roleID string) error {
	path := fmt.Sprintf("%s/guilds/%d/members/%d/roles/%s", c.base(), c.guildID, memberID, roleID)
	_, err := do[struct{}](ctx, c, fasthttp.MethodPut, path, nil)
	return err
}

func (c *Client) RemoveRole(ctx context.Context, memberID int64, roleID string) error {
	path := fmt.Sprintf("%s/guilds/%d/members/%d/roles/%s", c.base(), c.guildID, memberID, roleID)
	_, err := do[struct{}](ctx, c, fasthttp.MethodDelete, path, nil)
	return err
}

func (c *Client) SetNickname(ctx context.Context, memberID int64, nick string) error {
	path := fmt.Sprintf("%s/guilds/%d/members/%d", c.base(), c.guildID, memberID)
	body, err := json.Marshal(map[string]string{"nick": nick})
	if err != nil {
		return err
	}
	_, err = do[struct{}](ctx, c, fasthttp.MethodPatch, path, body)
	return err
}

func do[T any](ctx context.Context, client *Client, method, path string, body []byte) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(path)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bot "+client.botToken)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("%w: %v", &domain.UpstreamError{URL: path}, err)
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, fmt.Errorf("%w: %v", &domain.UpstreamError{URL: path}, err)
		}
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusForbidden:
		return nil, &domain.PermissionError{Action: method + " " + path}
	case status == fasthttp.StatusNotFound:
		return nil, &domain.NotFoundError{Kind: "discord resource", Key: path}
	case status < 200 || status >= 300:
		return nil, &domain.UpstreamError{Status: status, URL: path}
	}

	var result T
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			return nil, fmt.Errorf("%w: decoding body: %v", &domain.UpstreamError{Status: resp.StatusCode(), URL: path}, err)
		}
	}
	return &result, nil
}

type guildPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type rolePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type memberPayload struct {
	User struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
		Bot        bool   `json:"bot"`
	} `json:"user"`
	Nick  string   `json:"nick"`
	Roles []string `json:"roles"`
}
