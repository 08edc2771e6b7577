package feed

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/gamesite-bff/internal/cms"
)

// ItemsFromPosts converts CMS posts to feed items, keeping their order.
// Posts without a usable URL are skipped.
func ItemsFromPosts(posts []cms.Post, siteURL string) []Item {
	items := make([]Item, 0, len(posts))
	for _, post := range posts {
		url := postURL(post, siteURL)
		if url == "" {
			slog.Warn("Skipping post without URL", "post_id", post.ID)
			continue
		}

		item := Item{
			Title:       post.Title,
			URL:         url,
			Description: htmlToText(post.Excerpt),
		}
		if published, err := post.PublishedAt(); err == nil {
			item.PublishedAt = published
		} else {
			slog.Debug("Post has no valid date", "post_id", post.ID, "error", err)
		}

		items = append(items, item)
	}
	return items
}

func postURL(post cms.Post, siteURL string) string {
	base := strings.TrimRight(siteURL, "/")
	switch {
	case post.URI != "" && base != "":
		return base + "/" + strings.TrimLeft(post.URI, "/")
	case post.Link != "":
		return post.Link
	case post.Slug != "" && base != "":
		return base + "/" + post.Slug + "/"
	default:
		return ""
	}
}

// htmlToText flattens an HTML fragment to whitespace-collapsed text.
func htmlToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	doc.Find("script, style").Remove()

	return strings.Join(strings.Fields(doc.Text()), " ")
}
