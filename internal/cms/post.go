package cms

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MetaGameID is the post metadata key holding the catalog game ID.
const MetaGameID = "igdb_id"

const StatusPublish = "PUBLISH"

const postFields = `
fragment PostFields on Post {
  id
  slug
  title
  status
  uri
  link
  excerpt
  date
  gameId: metaValue(key: "igdb_id")
}`

const findPostsByMetaQuery = `
query FindPostsByGameID($key: String!, $value: String!, $first: Int!) {
  posts(first: $first, where: {
    metaQuery: { metaArray: [{ key: $key, value: $value, compare: EQUAL_TO }] }
    stati: [PUBLISH, DRAFT, PENDING, FUTURE, PRIVATE]
    orderby: { field: DATE, order: ASC }
  }) {
    nodes { ...PostFields }
  }
}` + postFields

const createPostMutation = `
mutation CreateGamePost($input: CreatePostInput!) {
  createPost(input: $input) {
    post { ...PostFields }
  }
}` + postFields

const recentPostsQuery = `
query RecentPosts($first: Int!, $category: String) {
  posts(first: $first, where: {
    categoryName: $category
    status: PUBLISH
    orderby: { field: DATE, order: DESC }
  }) {
    nodes { ...PostFields }
  }
}` + postFields

// Executor runs a GraphQL document. *Gateway is the production implementation.
type Executor interface {
	Execute(ctx context.Context, document string, variables map[string]any, out any) error
}

var _ Executor = (*Gateway)(nil)

type Post struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	URI     string `json:"uri"`
	Link    string `json:"link"`
	Excerpt string `json:"excerpt"`
	Date    string `json:"date"`
	GameID  string `json:"gameId"`
}

// PublishedAt parses the CMS post date. Dates without a zone are UTC.
func (p Post) PublishedAt() (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, p.Date); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid post date %q", p.Date)
}

type NewGamePost struct {
	Title    string
	Category string
	GameID   int64
}

type postNodes struct {
	Posts struct {
		Nodes []Post `json:"nodes"`
	} `json:"posts"`
}

type createPostData struct {
	CreatePost *struct {
		Post *Post `json:"post"`
	} `json:"createPost"`
}

type Posts struct {
	exec Executor
}

func NewPosts(exec Executor) *Posts {
	return &Posts{exec: exec}
}

// FindPostByGameID returns the earliest post tagged with id, or nil when none exists.
func (p *Posts) FindPostByGameID(ctx context.Context, id int64) (*Post, error) {
	posts, err := p.PostsByGameID(ctx, id, 1)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

func (p *Posts) PostsByGameID(ctx context.Context, id int64, limit int) ([]Post, error) {
	var data postNodes
	err := p.exec.Execute(ctx, findPostsByMetaQuery, map[string]any{
		"key":   MetaGameID,
		"value": strconv.FormatInt(id, 10),
		"first": limit,
	}, &data)
	if err != nil {
		return nil, fmt.Errorf("find posts for game %d: %w", id, err)
	}
	return data.Posts.Nodes, nil
}

// CreateGamePost creates a published post. The returned post is nil when the
// CMS acknowledged the mutation without returning a post.
func (p *Posts) CreateGamePost(ctx context.Context, in NewGamePost) (*Post, error) {
	input := map[string]any{
		"title":  strings.TrimSpace(in.Title),
		"status": StatusPublish,
		"categories": map[string]any{
			"append": true,
			"nodes":  []map[string]string{{"name": in.Category}},
		},
		"metaInput": []map[string]string{
			{"key": MetaGameID, "value": strconv.FormatInt(in.GameID, 10)},
		},
	}

	var data createPostData
	if err := p.exec.Execute(ctx, createPostMutation, map[string]any{"input": input}, &data); err != nil {
		return nil, fmt.Errorf("create post for game %d: %w", in.GameID, err)
	}
	if data.CreatePost == nil {
		return nil, nil
	}
	return data.CreatePost.Post, nil
}

func (p *Posts) RecentPosts(ctx context.Context, category string, first int) ([]Post, error) {
	vars := map[string]any{"first": first}
	if category != "" {
		vars["category"] = category
	}

	var data postNodes
	if err := p.exec.Execute(ctx, recentPostsQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("recent posts: %w", err)
	}
	return data.Posts.Nodes, nil
}
