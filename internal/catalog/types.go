package catalog

import (
	"math"
	"time"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50

	// Lightweight projections keep payloads small for the browser extension.
	SummaryPlatforms = 4
	SummaryGenres    = 3
)

// Game is the canonical catalog record served to detail consumers.
type Game struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Rating      *float64   `json:"rating"`
	ReleaseDate *time.Time `json:"releaseDate"`
	Platforms   []string   `json:"platforms"`
	Genres      []string   `json:"genres"`
	CoverURL    string     `json:"coverUrl,omitempty"`
}

// Summary is the lightweight projection of a Game.
type Summary struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Rating      *int       `json:"rating"`
	ReleaseDate *time.Time `json:"releaseDate"`
	Platforms   []string   `json:"platforms"`
	Genres      []string   `json:"genres"`
	CoverURL    string     `json:"coverUrl,omitempty"`
}

func (g Game) Summary() Summary {
	s := Summary{
		ID:          g.ID,
		Name:        g.Name,
		ReleaseDate: g.ReleaseDate,
		Platforms:   truncate(g.Platforms, SummaryPlatforms),
		Genres:      truncate(g.Genres, SummaryGenres),
		CoverURL:    g.CoverURL,
	}
	if g.Rating != nil {
		rounded := int(math.Round(*g.Rating))
		s.Rating = &rounded
	}
	return s
}

func Summaries(games []Game) []Summary {
	out := make([]Summary, 0, len(games))
	for _, g := range games {
		out = append(out, g.Summary())
	}
	return out
}

// ClampLimit maps a requested limit onto [1, MaxLimit]; non-positive values
// select DefaultLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

func truncate(values []string, n int) []string {
	if len(values) <= n {
		return append([]string{}, values...)
	}
	return append([]string{}, values[:n]...)
}
