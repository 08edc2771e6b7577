package cfg

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// HTTP
	Port        string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl     string `long:"base-url" env:"BASE_URL" description:"Public base URL of this service (e.g., https://api.example.com)"`
	SiteUrl     string `long:"site-url" env:"SITE_URL" default:"http://localhost:4321" description:"Public URL of the content site, used for absolute feed links"`
	ChannelsDir string `long:"channels-dir" env:"CHANNELS_DIR" default:"./channels" description:"Directory containing RSS channel definitions"`

	// Catalog (IGDB)
	IGDBBaseUrl      string `long:"igdb-base-url" env:"IGDB_BASE_URL" default:"https://api.igdb.com/v4" description:"IGDB API base URL"`
	IGDBClientID     string `long:"igdb-client-id" env:"IGDB_CLIENT_ID" description:"Twitch application client ID (required)" required:"true"`
	IGDBClientSecret string `long:"igdb-client-secret" env:"IGDB_CLIENT_SECRET" description:"Twitch application client secret"`
	IGDBTokenUrl     string `long:"igdb-token-url" env:"IGDB_TOKEN_URL" default:"https://id.twitch.tv/oauth2/token" description:"OAuth2 token endpoint for IGDB credentials"`
	IGDBAccessToken  string `long:"igdb-access-token" env:"IGDB_ACCESS_TOKEN" description:"Static IGDB access token (skips the client credentials flow)"`

	// CMS (GraphQL)
	CMSGraphQLUrl    string `long:"cms-graphql-url" env:"CMS_GRAPHQL_URL" description:"CMS GraphQL endpoint (required)" required:"true"`
	CMSAuthToken     string `long:"cms-auth-token" env:"CMS_AUTH_TOKEN" description:"Bearer token for CMS mutations"`
	CMSGamesCategory string `long:"cms-games-category" env:"CMS_GAMES_CATEGORY" default:"Games" description:"CMS category assigned to reconciled game posts"`
	UpstreamTimeout  int    `long:"upstream-timeout" env:"UPSTREAM_TIMEOUT" default:"10" description:"Timeout in seconds for catalog and CMS calls"`
	ResponseCacheTTL int    `long:"response-cache-ttl" env:"RESPONSE_CACHE_TTL" default:"300" description:"Seconds to cache catalog responses in Redis (0 disables)"`

	// Redis
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for distributed locks and response cache (optional)"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	LockTTL       int    `long:"lock-ttl" env:"LOCK_TTL" default:"30" description:"Seconds a reconciliation lock is held before it expires (at least twice the upstream timeout plus 5)"`
	LockWait      int    `long:"lock-wait" env:"LOCK_WAIT" default:"10" description:"Seconds to wait for a reconciliation lock"`

	// Reconciliation ledger and sweep
	DatabasePath  string `long:"database-path" env:"DATABASE_PATH" default:"./data/ledger.db" description:"SQLite database for the reconciliation ledger"`
	WorkerCount   int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for duplicate sweeps"`
	SweepInterval int    `long:"sweep-interval" env:"SWEEP_INTERVAL" default:"3600" description:"Duplicate sweep interval in seconds"`
	APIAccessKey  string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"GameSite-BFF/1.0" description:"User agent string for outbound requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level (debug, info, warn, error)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	cfg := &Cfg{
		Port:             raw.Port,
		BaseUrl:          strings.TrimRight(raw.BaseUrl, "/"),
		SiteUrl:          strings.TrimRight(raw.SiteUrl, "/"),
		ChannelsDir:      raw.ChannelsDir,
		IGDBBaseUrl:      strings.TrimRight(raw.IGDBBaseUrl, "/"),
		IGDBClientID:     raw.IGDBClientID,
		IGDBClientSecret: raw.IGDBClientSecret,
		IGDBTokenUrl:     raw.IGDBTokenUrl,
		IGDBAccessToken:  raw.IGDBAccessToken,
		CMSGraphQLUrl:    raw.CMSGraphQLUrl,
		CMSAuthToken:     raw.CMSAuthToken,
		CMSGamesCategory: raw.CMSGamesCategory,
		UpstreamTimeout:  seconds(raw.UpstreamTimeout),
		ResponseCacheTTL: seconds(raw.ResponseCacheTTL),
		RedisAddr:        raw.RedisAddr,
		RedisPassword:    raw.RedisPassword,
		RedisDB:          raw.RedisDB,
		LockTTL:          seconds(raw.LockTTL),
		LockWait:         seconds(raw.LockWait),
		DatabasePath:     raw.DatabasePath,
		WorkerCount:      raw.WorkerCount,
		SweepInterval:    seconds(raw.SweepInterval),
		APIAccessKey:     raw.APIAccessKey,
		UserAgent:        raw.UserAgent,
		Timezone:         raw.Timezone,
		LogLevel:         strings.ToLower(raw.LogLevel),
		Version:          GetVersion(),
	}
	if raw.Debug {
		cfg.LogLevel = "debug"
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func validate(raw *rawCfg) error {
	if raw.IGDBAccessToken == "" && raw.IGDBClientSecret == "" {
		return fmt.Errorf("either --igdb-access-token or --igdb-client-secret is required")
	}

	positive := map[string]int{
		"upstream timeout": raw.UpstreamTimeout,
		"lock ttl":         raw.LockTTL,
		"lock wait":        raw.LockWait,
		"sweep interval":   raw.SweepInterval,
		"worker count":     raw.WorkerCount,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if minTTL := MinLockTTL(seconds(raw.UpstreamTimeout)); seconds(raw.LockTTL) < minTTL {
		return fmt.Errorf("lock ttl must be at least %d seconds to cover a lookup and a create", int(minTTL.Seconds()))
	}

	if raw.ResponseCacheTTL < 0 {
		return fmt.Errorf("response cache ttl must be non-negative")
	}

	return nil
}

// lockTTLMargin covers lock acquisition and the ledger write.
const lockTTLMargin = 5 * time.Second

// MinLockTTL is the shortest lease that outlives a resolution in which both
// the lookup and the create run to the upstream timeout.
func MinLockTTL(upstreamTimeout time.Duration) time.Duration {
	return 2*upstreamTimeout + lockTTLMargin
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
