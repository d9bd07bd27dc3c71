package riot

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
)

// FetchJSON fetches rawURL and decodes the body into result.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, query url.Values, result interface{}) error {
	body, err := c.Fetch(ctx, rawURL, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

// GetLadder fetches every entry of an apex-tier league for queueType.
func (c *Client) GetLadder(ctx context.Context, tier LadderTier, queueType string) (*LeagueListResponse, error) {
	u := fmt.Sprintf("%s/lol/league/v4/%s/by-queue/%s",
		c.platformURL, tier.leaguePath(), url.PathEscape(queueType))

	var list LeagueListResponse
	if err := c.FetchJSON(ctx, u, nil, &list); err != nil {
		return nil, err
	}
	for i := range list.Entries {
		if list.Entries[i].Tier == "" {
			list.Entries[i].Tier = list.Tier
		}
	}
	return &list, nil
}

// GetMatchIDs fetches up to count recent match IDs for a player, filtered
// server-side to queue.
func (c *Client) GetMatchIDs(ctx context.Context, puuid string, count, queue int) ([]string, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids", c.regionalURL, url.PathEscape(puuid))
	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	if queue > 0 {
		q.Set("queue", strconv.Itoa(queue))
	}

	var ids []string
	err := c.FetchJSON(ctx, u, q, &ids)
	return ids, err
}

// GetMatch fetches raw match details.
func (c *Client) GetMatch(ctx context.Context, matchID string) ([]byte, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionalURL, url.PathEscape(matchID))
	return c.Fetch(ctx, u, nil)
}

// GetTimeline fetches the raw match timeline.
func (c *Client) GetTimeline(ctx context.Context, matchID string) ([]byte, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s/timeline", c.regionalURL, url.PathEscape(matchID))
	return c.Fetch(ctx, u, nil)
}
