package feed

import (
	"time"
)

// Rendering types

type Channel struct {
	Title       string
	Description string
	SiteURL     string
	SelfURL     string // atom:self link, omitted when empty
	Generator   string
	Language    string
}

type Item struct {
	Title       string
	URL         string // also the item GUID
	Description string
	PublishedAt time.Time
}

// Configuration types

type ChannelConfig struct {
	Name        string      // Derived from filename (without .yml extension)
	Title       string      `yaml:"title"`
	Description string      `yaml:"description"`
	Category    string      `yaml:"category"` // CMS category name, empty for all posts
	Language    string      `yaml:"language"`
	MaxItems    int         `yaml:"max_items"`
	Cache       CacheConfig `yaml:"cache"`
}

type CacheConfig struct {
	MaxAge               int `yaml:"max_age"`                // seconds, sent as s-maxage
	StaleWhileRevalidate int `yaml:"stale_while_revalidate"` // seconds
}
