package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/gamesite-bff/internal/apperr"
	"github.com/lysyi3m/gamesite-bff/internal/cache"
	"github.com/lysyi3m/gamesite-bff/internal/catalog"
	"github.com/lysyi3m/gamesite-bff/internal/feed"
)

const defaultListLimit = 100

func NewHandler(opts Options) *Handler {
	return &Handler{
		catalog:  opts.Catalog,
		slugs:    opts.Slugs,
		posts:    opts.Posts,
		channels: opts.Channels,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		ledger:   opts.Ledger,
		sweeper:  opts.Sweeper,
		health:   opts.Health,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		siteURL:  strings.TrimRight(opts.SiteURL, "/"),
		version:  opts.Version,
	}
}

func (h *Handler) SearchGames(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		respondError(c, "search_games", apperr.Validation("api.SearchGames", "query parameter 'q' is required"))
		return
	}

	limit, err := parseLimit(c)
	if err != nil {
		respondError(c, "search_games", err)
		return
	}

	games, err := h.catalog.Search(c.Request.Context(), query, limit)
	if err != nil {
		respondError(c, "search_games", err)
		return
	}

	summaries := catalog.Summaries(games)
	c.JSON(http.StatusOK, gin.H{
		"games": summaries,
		"total": len(summaries),
	})
}

func (h *Handler) PopularGames(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		respondError(c, "popular_games", err)
		return
	}
	limit = catalog.ClampLimit(limit)

	games, err := cachedFetch(c.Request.Context(), h, cache.PopularKey(limit), func(ctx context.Context) ([]catalog.Game, error) {
		return h.catalog.Popular(ctx, limit)
	})
	if err != nil {
		respondError(c, "popular_games", err)
		return
	}

	if games == nil {
		games = []catalog.Game{}
	}
	c.JSON(http.StatusOK, gin.H{
		"games": games,
		"total": len(games),
	})
}

func (h *Handler) GetGame(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, "get_game", apperr.Validation("api.GetGame", "game ID must be a positive integer"))
		return
	}

	game, err := cachedFetch(c.Request.Context(), h, cache.GameKey(id), func(ctx context.Context) (catalog.Game, error) {
		return h.catalog.GetByID(ctx, id)
	})
	if err != nil {
		respondError(c, "get_game", err)
		return
	}

	c.JSON(http.StatusOK, game)
}

// ResolveSlug answers {success, slug} or {success: false, error, details}.
// Failures are 400 for bad input, 502 when the CMS is unreachable or the
// reconciliation lock times out, and 500 for everything else.
func (h *Handler) ResolveSlug(c *gin.Context) {
	var req slugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, slugResponse{
			Error:   "Invalid request body",
			Details: "expected JSON object with numeric igdbId and string name",
		})
		return
	}

	slug, err := h.slugs.ResolveSlug(c.Request.Context(), req.IGDBID, req.Name)
	if err != nil {
		kind := apperr.KindOf(err)
		status := statusFor(kind)
		logError("resolve_slug", kind, status, err)

		message, details := errorBody(err)
		c.JSON(status, slugResponse{Error: message, Details: details})
		return
	}

	c.JSON(http.StatusOK, slugResponse{Success: true, Slug: slug})
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")

	config, ok := h.channels.GetConfig(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	posts, err := h.posts.RecentPosts(c.Request.Context(), config.Category, config.MaxItems)
	if err != nil {
		c.Header("Cache-Control", "no-store")
		respondError(c, "get_feed", err)
		return
	}

	items := feed.ItemsFromPosts(posts, h.siteURL)
	channel := feed.Channel{
		Title:       config.Title,
		Description: config.Description,
		SiteURL:     h.siteURL,
		Generator:   "GameSite-BFF/" + h.version,
		Language:    config.Language,
	}
	if h.baseURL != "" {
		channel.SelfURL = h.baseURL + "/feeds/" + name
	}

	rss, err := feed.Render(channel, items)
	if err != nil {
		slog.Error("RSS generation error", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Cache-Control", fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d",
		config.Cache.MaxAge, config.Cache.StaleWhileRevalidate))
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Name", name)

	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	if h.channels != nil {
		health["loaded_channels"] = h.channels.GetConfigCount()
	}

	for name, checker := range h.health {
		component := checker.Health(ctx)
		if component["status"] != "healthy" {
			status = "degraded"
		}
		health[name] = component
	}

	if h.ledger != nil {
		if count, err := h.ledger.Count(ctx); err == nil {
			health["reconciled_games"] = count
		}
	}
	if h.sweeper != nil {
		health["sweeper"] = h.sweeper.Stats()
	}

	health["status"] = status
	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListReconciliations(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reconciliation ledger not configured"})
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, "list_reconciliations", apperr.Validation("api.APIListReconciliations", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	ctx := c.Request.Context()

	entries, err := h.ledger.List(ctx, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_reconciliations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	duplicates, err := h.ledger.Duplicates(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "list_duplicates", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	total, err := h.ledger.Count(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "count_reconciliations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	body := gin.H{
		"entries":    entries,
		"duplicates": duplicates,
		"total":      total,
	}
	if h.sweeper != nil {
		body["sweeper"] = h.sweeper.Stats()
	}

	c.JSON(http.StatusOK, body)
}

func (h *Handler) APISweep(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Duplicate sweep not configured"})
		return
	}

	enqueued, err := h.sweeper.Sweep()
	if err != nil {
		slog.Error("Failed to start duplicate sweep", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start sweep"})
		return
	}

	slog.Info("Duplicate sweep requested", "enqueued", enqueued)
	c.JSON(http.StatusAccepted, gin.H{"enqueued": enqueued})
}

func (h *Handler) APIGetReconciliation(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reconciliation ledger not configured"})
		return
	}

	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || gameID <= 0 {
		respondError(c, "get_reconciliation", apperr.Validation("api.APIGetReconciliation", "game ID must be a positive integer"))
		return
	}

	entry, err := h.ledger.Get(c.Request.Context(), gameID)
	if err != nil {
		slog.Error("Database error", "operation", "get_reconciliation", "game_id", gameID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if entry == nil {
		respondError(c, "get_reconciliation", apperr.NotFound("api.APIGetReconciliation", "game has not been reconciled"))
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *Handler) APIListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": h.channels.Names()})
}

// APIReloadChannel re-reads one channel definition from disk.
func (h *Handler) APIReloadChannel(c *gin.Context) {
	name := c.Param("name")

	config, err := h.channels.LoadConfig(name)
	if err != nil {
		slog.Warn("Failed to reload channel", "channel", name, "error", err)
		if errors.Is(err, fs.ErrNotExist) {
			respondError(c, "reload_channel", apperr.NotFound("api.APIReloadChannel", "channel not found"))
			return
		}
		respondError(c, "reload_channel", apperr.Validation("api.APIReloadChannel", err.Error()))
		return
	}

	slog.Info("Channel reloaded", "channel", name, "category", config.Category, "max_items", config.MaxItems)
	c.JSON(http.StatusOK, gin.H{
		"name":      config.Name,
		"title":     config.Title,
		"category":  config.Category,
		"max_items": config.MaxItems,
	})
}

// parseLimit reads the optional limit query parameter. Absent means 0, which
// the catalog treats as its default.
func parseLimit(c *gin.Context) (int, error) {
	raw, ok := c.GetQuery("limit")
	if !ok || raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, apperr.Validation("api.parseLimit", "limit is out of range")
		}
		return 0, apperr.Validation("api.parseLimit", "limit must be an integer")
	}
	return limit, nil
}

// cachedFetch serves from the response cache when one is configured. Cache
// failures fall through to fetch.
func cachedFetch[T any](ctx context.Context, h *Handler, key string, fetch func(context.Context) (T, error)) (T, error) {
	if h.cache == nil || h.cacheTTL <= 0 {
		return fetch(ctx)
	}

	var cached T
	hit, err := h.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		slog.Warn("Response cache read failed", "key", key, "error", err)
	} else if hit {
		return cached, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	if err := h.cache.SetJSON(ctx, key, value, h.cacheTTL); err != nil {
		slog.Warn("Response cache write failed", "key", key, "error", err)
	}
	return value, nil
}
