package api

import (
	"context"
	"time"

	"github.com/lysyi3m/gamesite-bff/internal/cache"
	"github.com/lysyi3m/gamesite-bff/internal/catalog"
	"github.com/lysyi3m/gamesite-bff/internal/cms"
	"github.com/lysyi3m/gamesite-bff/internal/database"
	"github.com/lysyi3m/gamesite-bff/internal/feed"
	"github.com/lysyi3m/gamesite-bff/internal/reconcile"
	"github.com/lysyi3m/gamesite-bff/internal/tasks"
)

type Catalog interface {
	Search(ctx context.Context, query string, limit int) ([]catalog.Game, error)
	GetByID(ctx context.Context, id int64) (catalog.Game, error)
	Popular(ctx context.Context, limit int) ([]catalog.Game, error)
}

type SlugResolver interface {
	ResolveSlug(ctx context.Context, gameID int64, name string) (string, error)
}

type PostSource interface {
	RecentPosts(ctx context.Context, category string, first int) ([]cms.Post, error)
}

type ResponseCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

type LedgerReader interface {
	Get(ctx context.Context, gameID int64) (*database.Reconciliation, error)
	List(ctx context.Context, limit int) ([]database.Reconciliation, error)
	Duplicates(ctx context.Context) ([]database.Reconciliation, error)
	Count(ctx context.Context) (int, error)
}

type Sweeper interface {
	Sweep() (int, error)
	Stats() tasks.Stats
}

type HealthChecker interface {
	Health(ctx context.Context) map[string]interface{}
}

var (
	_ Catalog       = (*catalog.Client)(nil)
	_ SlugResolver  = (*reconcile.Reconciler)(nil)
	_ PostSource    = (*cms.Posts)(nil)
	_ ResponseCache = (*cache.Cache)(nil)
	_ LedgerReader  = (*database.Ledger)(nil)
	_ Sweeper       = (*tasks.Scheduler)(nil)
	_ HealthChecker = (*cache.Cache)(nil)
	_ HealthChecker = (*database.DB)(nil)
)

// Options wires the handler. Optional dependencies may be left nil.
type Options struct {
	Catalog  Catalog
	Slugs    SlugResolver
	Posts    PostSource
	Channels *feed.ChannelCache

	Cache    ResponseCache
	CacheTTL time.Duration

	Ledger  LedgerReader
	Sweeper Sweeper
	Health  map[string]HealthChecker

	BaseURL string
	SiteURL string
	Version string
}

type Handler struct {
	catalog  Catalog
	slugs    SlugResolver
	posts    PostSource
	channels *feed.ChannelCache
	cache    ResponseCache
	cacheTTL time.Duration
	ledger   LedgerReader
	sweeper  Sweeper
	health   map[string]HealthChecker
	baseURL  string
	siteURL  string
	version  string
}

type slugRequest struct {
	IGDBID int64  `json:"igdbId"`
	Name   string `json:"name"`
}

type slugResponse struct {
	Success bool   `json:"success"`
	Slug    string `json:"slug,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}
