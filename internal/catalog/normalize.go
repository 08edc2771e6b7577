package catalog

import (
	"fmt"
	"strings"
	"time"
)

type namedRef struct {
	Name string `json:"name"`
}

type rawGame struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Summary          string     `json:"summary"`
	TotalRating      *float64   `json:"total_rating"`
	Rating           *float64   `json:"rating"`
	FirstReleaseDate *int64     `json:"first_release_date"`
	Platforms        []namedRef `json:"platforms"`
	Genres           []namedRef `json:"genres"`
	Cover            *struct {
		ImageID string `json:"image_id"`
	} `json:"cover"`
}

func (r rawGame) normalize() Game {
	g := Game{
		ID:          r.ID,
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Summary),
		Platforms:   names(r.Platforms),
		Genres:      names(r.Genres),
	}

	rating := r.TotalRating
	if rating == nil {
		rating = r.Rating
	}
	if rating != nil {
		v := min(max(*rating, 0), 100)
		g.Rating = &v
	}

	if r.FirstReleaseDate != nil {
		released := time.Unix(*r.FirstReleaseDate, 0).UTC()
		g.ReleaseDate = &released
	}

	if r.Cover != nil && r.Cover.ImageID != "" {
		g.CoverURL = fmt.Sprintf(coverURLTemplate, r.Cover.ImageID)
	}

	return g
}

func names(refs []namedRef) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if name := strings.TrimSpace(ref.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
