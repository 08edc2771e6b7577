package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxItems             = 20
	MaxItems                    = 100
	DefaultMaxAge               = 300
	DefaultStaleWhileRevalidate = 600
)

var channelNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ChannelCache holds the channel definitions found in a directory of YAML files.
type ChannelCache struct {
	channelsDir string
	cache       map[string]*ChannelConfig
	mu          sync.RWMutex
}

func NewChannelCache(channelsDir string) *ChannelCache {
	return &ChannelCache{
		channelsDir: channelsDir,
		cache:       make(map[string]*ChannelConfig),
	}
}

// Run loads every *.yml file. A missing directory leaves the cache empty.
func (cc *ChannelCache) Run() error {
	if _, err := os.Stat(cc.channelsDir); os.IsNotExist(err) {
		slog.Warn("Channels directory not found", "dir", cc.channelsDir)
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.channelsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Channel loaded", "channel", name, "category", config.Category, "max_items", config.MaxItems)
	}

	return nil
}

// LoadConfig (re)reads a single channel file and caches it.
func (cc *ChannelCache) LoadConfig(name string) (*ChannelConfig, error) {
	if !channelNamePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid channel name '%s'", name)
	}

	configFile := filepath.Join(cc.channelsDir, name+".yml")
	config, err := parseChannelConfig(configFile)
	if err != nil {
		return nil, err
	}
	config.Name = name

	if err := validateChannelConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[name] = config

	return config, nil
}

func (cc *ChannelCache) GetConfig(name string) (*ChannelConfig, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[name]
	return config, ok
}

// Names returns the cached channel names in sorted order.
func (cc *ChannelCache) Names() []string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	names := make([]string, 0, len(cc.cache))
	for name := range cc.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cc *ChannelCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func parseChannelConfig(configFile string) (*ChannelConfig, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config ChannelConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.MaxItems == 0 {
		config.MaxItems = DefaultMaxItems
	}
	if config.Cache.MaxAge == 0 {
		config.Cache.MaxAge = DefaultMaxAge
	}
	if config.Cache.StaleWhileRevalidate == 0 {
		config.Cache.StaleWhileRevalidate = DefaultStaleWhileRevalidate
	}

	return &config, nil
}

func validateChannelConfig(config *ChannelConfig) error {
	if config.Title == "" {
		return fmt.Errorf("title is required")
	}

	nonNegativeFields := map[string]int{
		"max items":              config.MaxItems,
		"cache max age":          config.Cache.MaxAge,
		"stale while revalidate": config.Cache.StaleWhileRevalidate,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if config.MaxItems > MaxItems {
		return fmt.Errorf("max items must not exceed %d", MaxItems)
	}

	return nil
}
