// Package catalog is the IGDB client. It normalises provider payloads into
// Game records and classifies failures with apperr kinds.
package catalog

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/lysyi3m/gamesite-bff/internal/apperr"
)

const (
	coverURLTemplate = "https://images.igdb.com/igdb/image/upload/t_cover_big/%s.jpg"
	maxResponseBytes = 5 << 20
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	BaseURL  string
	ClientID string
	// AccessToken is sent as a bearer token when set. Leave empty when the
	// HTTP client already authenticates (oauth2 transport).
	AccessToken string
	UserAgent   string
	Timeout     time.Duration
}

type Client struct {
	httpClient  HTTPClient
	baseURL     string
	clientID    string
	accessToken string
	userAgent   string
	timeout     time.Duration
}

func NewClient(httpClient HTTPClient, opts Options) *Client {
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		clientID:    opts.ClientID,
		accessToken: opts.AccessToken,
		userAgent:   opts.UserAgent,
		timeout:     cmp.Or(opts.Timeout, 10*time.Second),
	}
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]Game, error) {
	term := norm.NFC.String(strings.TrimSpace(query))
	if term == "" {
		return nil, apperr.Validation("catalog.search", "query is required")
	}

	limit = ClampLimit(limit)
	games, err := c.queryGames(ctx, "catalog.search", searchQuery(term, limit))
	if err != nil {
		return nil, err
	}
	return capGames(games, limit), nil
}

func (c *Client) GetByID(ctx context.Context, id int64) (Game, error) {
	if id <= 0 {
		return Game{}, apperr.Validation("catalog.get", "game id must be a positive integer")
	}

	games, err := c.queryGames(ctx, "catalog.get", byIDQuery(id))
	if err != nil {
		return Game{}, err
	}
	if len(games) == 0 {
		return Game{}, apperr.NotFound("catalog.get", fmt.Sprintf("game %d not found", id))
	}
	return games[0], nil
}

func (c *Client) Popular(ctx context.Context, limit int) ([]Game, error) {
	limit = ClampLimit(limit)
	games, err := c.queryGames(ctx, "catalog.popular", popularQuery(limit))
	if err != nil {
		return nil, err
	}
	return capGames(games, limit), nil
}

func (c *Client) queryGames(ctx context.Context, op, body string) ([]Game, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, c.baseURL+"/games", strings.NewReader(body))
	if err != nil {
		return nil, apperr.Upstream(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Client-ID", c.clientID)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream(op, fmt.Errorf("http post: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperr.Upstream(op, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("Catalog request rejected", "op", op, "status", resp.StatusCode, "body", snippet(data))
		return nil, apperr.Upstream(op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var raw []rawGame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Upstream(op, fmt.Errorf("decode response: %w", err))
	}

	games := make([]Game, 0, len(raw))
	for _, r := range raw {
		games = append(games, r.normalize())
	}
	return games, nil
}

func capGames(games []Game, limit int) []Game {
	if len(games) > limit {
		return games[:limit]
	}
	return games
}

func snippet(data []byte) string {
	const maxLen = 256
	if len(data) > maxLen {
		return string(data[:maxLen])
	}
	return string(data)
}
