package cfg

import "time"

type Cfg struct {
	// HTTP
	Port        string
	BaseUrl     string
	SiteUrl     string
	ChannelsDir string

	// Catalog (IGDB)
	IGDBBaseUrl      string
	IGDBClientID     string
	IGDBClientSecret string
	IGDBTokenUrl     string
	IGDBAccessToken  string

	// CMS (GraphQL)
	CMSGraphQLUrl    string
	CMSAuthToken     string
	CMSGamesCategory string
	UpstreamTimeout  time.Duration
	ResponseCacheTTL time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
	LockWait      time.Duration

	// Reconciliation ledger and sweep
	DatabasePath  string
	WorkerCount   int
	SweepInterval time.Duration
	APIAccessKey  string

	// Application metadata
	UserAgent string
	Timezone  string
	LogLevel  string
	Version   string
}
