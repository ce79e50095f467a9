// Package riot is an HTTP client for the ranked ladder, summoner and match
// endpoints of the Riot Games API, plus retry and rate-limit decorators.
package riot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/rankcrawl/internal/domain/model"
	"github.com/okian/rankcrawl/pkg/logger"
	"github.com/okian/rankcrawl/pkg/metrics"
)

const (
	defaultQueueType = "RANKED_SOLO_5x5"
	defaultQueueID   = 420
	defaultTimeout   = 10 * time.Second
	matchListPage    = 100
	maxBodyBytes     = 4 << 20
)

// API is the remote data service used by the crawler.
type API interface {
	LeagueEntries(ctx context.Context, tier model.Tier, division model.Division, page int) ([]model.LadderEntry, error)
	AccountID(ctx context.Context, playerID string) (string, error)
	MatchList(ctx context.Context, accountID string, since int64) ([]model.MatchRef, error)
	Match(ctx context.Context, matchID int64) (model.MatchDetail, error)
}

// Client talks to one platform host.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	queueType  string
	queueID    int
	log        logger.Logger
}

var _ API = (*Client)(nil)

// New creates a Client. Without WithRegion or WithBaseURL it targets na1.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    "https://na1.api.riotgames.com",
		queueType:  defaultQueueType,
		queueID:    defaultQueueID,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type leagueEntryDTO struct {
	LeagueID   string `json:"leagueId"`
	SummonerID string `json:"summonerId"`
	QueueType  string `json:"queueType"`
	Tier       string `json:"tier"`
	Rank       string `json:"rank"`
}

type summonerDTO struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
}

type matchListDTO struct {
	Matches []struct {
		GameID    int64 `json:"gameId"`
		Timestamp int64 `json:"timestamp"`
		Queue     int   `json:"queue"`
	} `json:"matches"`
}

type matchDTO struct {
	GameID                int64  `json:"gameId"`
	GameCreation          int64  `json:"gameCreation"`
	GameVersion           string `json:"gameVersion"`
	QueueID               int    `json:"queueId"`
	ParticipantIdentities []struct {
		Player struct {
			SummonerID string `json:"summonerId"`
		} `json:"player"`
	} `json:"participantIdentities"`
}

// LeagueEntries returns one page of a ladder bracket. An empty page ends the bracket.
func (c *Client) LeagueEntries(ctx context.Context, tier model.Tier, division model.Division, page int) ([]model.LadderEntry, error) {
	path := fmt.Sprintf("/lol/league-exp/v4/entries/%s/%s/%s", c.queueType, tier, division)
	q := url.Values{"page": {strconv.Itoa(page)}}

	var dtos []leagueEntryDTO
	if err := c.get(ctx, "league_entries", path, q, &dtos); err != nil {
		return nil, err
	}
	out := make([]model.LadderEntry, 0, len(dtos))
	for _, d := range dtos {
		t, err := model.ParseTier(d.Tier)
		if err != nil {
			t = tier
		}
		out = append(out, model.LadderEntry{PlayerID: d.SummonerID, Tier: t, LeagueID: d.LeagueID})
	}
	return out, nil
}

// AccountID resolves a ladder player id to its durable account id.
func (c *Client) AccountID(ctx context.Context, playerID string) (string, error) {
	var dto summonerDTO
	if err := c.get(ctx, "summoner", "/lol/summoner/v4/summoners/"+url.PathEscape(playerID), nil, &dto); err != nil {
		return "", err
	}
	if dto.AccountID == "" {
		return "", fmt.Errorf("%w: summoner %s has no account id", ErrNotFound, playerID)
	}
	return dto.AccountID, nil
}

// MatchList returns the ranked match history of accountID created at or after
// since (epoch millis), following the history pages until a short page.
// An account with no matches yields an empty list.
func (c *Client) MatchList(ctx context.Context, accountID string, since int64) ([]model.MatchRef, error) {
	path := "/lol/match/v4/matchlists/by-account/" + url.PathEscape(accountID)
	var out []model.MatchRef
	for begin := 0; ; begin += matchListPage {
		q := url.Values{
			"beginTime":  {strconv.FormatInt(since, 10)},
			"queue":      {strconv.Itoa(c.queueID)},
			"beginIndex": {strconv.Itoa(begin)},
		}
		var dto matchListDTO
		err := c.get(ctx, "match_list", path, q, &dto)
		if err != nil {
			if isNotFound(err) {
				return out, nil
			}
			return nil, err
		}
		for _, m := range dto.Matches {
			out = append(out, model.MatchRef{ID: m.GameID, TS: m.Timestamp})
		}
		if len(dto.Matches) < matchListPage {
			return out, nil
		}
	}
}

// Match fetches one match. Unknown ids yield ErrNotFound.
func (c *Client) Match(ctx context.Context, matchID int64) (model.MatchDetail, error) {
	var dto matchDTO
	if err := c.get(ctx, "match", "/lol/match/v4/matches/"+strconv.FormatInt(matchID, 10), nil, &dto); err != nil {
		return model.MatchDetail{}, err
	}
	d := model.MatchDetail{
		ID:           dto.GameID,
		TS:           dto.GameCreation,
		Version:      dto.GameVersion,
		Participants: make([]string, 0, len(dto.ParticipantIdentities)),
	}
	for _, p := range dto.ParticipantIdentities {
		if p.Player.SummonerID != "" {
			d.Participants = append(d.Participants, p.Player.SummonerID)
		}
	}
	return d, nil
}

func (c *Client) get(ctx context.Context, call, path string, q url.Values, target any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordRemoteCall(call, time.Since(start), err != nil && !isNotFound(err))
	}()

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Riot-Token", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", call, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", call, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, call, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s retry-after=%s", ErrRateLimited, call, resp.Header.Get("Retry-After"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s %s status=%d", ErrStatus, call, path, resp.StatusCode)
	}

	if err := jsoniter.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, call, err)
	}
	c.log.Debug(ctx, "remote call", logger.String("call", call), logger.Duration("elapsed", time.Since(start)))
	return nil
}
