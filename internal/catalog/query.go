package catalog

import (
	"fmt"
	"strings"
)

// IGDB takes Apicalypse queries as plain-text request bodies.
const gameFields = "fields name,summary,total_rating,rating,first_release_date,platforms.name,genres.name,cover.image_id;"

const popularMinRatings = 20

var apicalypseEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func searchQuery(term string, limit int) string {
	return fmt.Sprintf(`search "%s"; %s limit %d;`, apicalypseEscaper.Replace(term), gameFields, limit)
}

func byIDQuery(id int64) string {
	return fmt.Sprintf("%s where id = %d; limit 1;", gameFields, id)
}

func popularQuery(limit int) string {
	return fmt.Sprintf("%s where total_rating != null & total_rating_count > %d; sort total_rating_count desc; limit %d;",
		gameFields, popularMinRatings, limit)
}
