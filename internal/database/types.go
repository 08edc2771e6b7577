package database

import (
	"time"
)

// Resolution is one completed slug resolution.
type Resolution struct {
	GameID     int64
	Name       string
	Slug       string
	Created    bool // the resolution created the CMS post
	ResolvedAt time.Time
}

// Reconciliation is the ledger row for one catalog game.
type Reconciliation struct {
	GameID          int64      `json:"gameId"`
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	Created         bool       `json:"created"`
	ResolveCount    int        `json:"resolveCount"`
	FirstResolvedAt time.Time  `json:"firstResolvedAt"`
	LastResolvedAt  time.Time  `json:"lastResolvedAt"`
	CheckedAt       *time.Time `json:"checkedAt,omitempty"`
	DuplicateSlugs  []string   `json:"duplicateSlugs,omitempty"`
}

func (r Reconciliation) HasDuplicates() bool {
	return len(r.DuplicateSlugs) > 0
}
