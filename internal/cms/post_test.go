package cms

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type call struct {
	document  string
	variables map[string]any
}

type fakeExecutor struct {
	calls []call
	reply string
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, document string, variables map[string]any, out any) error {
	f.calls = append(f.calls, call{document: document, variables: variables})
	if f.err != nil {
		return f.err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(f.reply), out)
}

func TestFindPostByGameID(t *testing.T) {
	exec := &fakeExecutor{reply: `{"posts":{"nodes":[{"id":"cG9zdDox","slug":"halo","title":"Halo","gameId":"740"}]}}`}
	posts := NewPosts(exec)

	post, err := posts.FindPostByGameID(context.Background(), 740)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if post == nil || post.Slug != "halo" {
		t.Fatalf("Expected post with slug 'halo', got %+v", post)
	}

	want := map[string]any{"key": "igdb_id", "value": "740", "first": 1}
	if diff := cmp.Diff(want, exec.calls[0].variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(exec.calls[0].document, "mutation") {
		t.Error("Lookup must not issue a mutation")
	}
}

func TestFindPostByGameIDMissing(t *testing.T) {
	posts := NewPosts(&fakeExecutor{reply: `{"posts":{"nodes":[]}}`})

	post, err := posts.FindPostByGameID(context.Background(), 1)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if post != nil {
		t.Errorf("Expected nil post, got %+v", post)
	}
}

func TestCreateGamePost(t *testing.T) {
	exec := &fakeExecutor{reply: `{"createPost":{"post":{"id":"cG9zdDoy","slug":"hollow-knight","title":"Hollow Knight","status":"publish"}}}`}
	posts := NewPosts(exec)

	post, err := posts.CreateGamePost(context.Background(), NewGamePost{Title: " Hollow Knight ", Category: "Games", GameID: 14593})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if post == nil || post.Slug != "hollow-knight" {
		t.Fatalf("Expected slug 'hollow-knight', got %+v", post)
	}

	input := exec.calls[0].variables["input"].(map[string]any)
	if input["title"] != "Hollow Knight" {
		t.Errorf("Expected trimmed title, got %v", input["title"])
	}
	if input["status"] != StatusPublish {
		t.Errorf("Expected status %s, got %v", StatusPublish, input["status"])
	}
	meta := input["metaInput"].([]map[string]string)
	if diff := cmp.Diff([]map[string]string{{"key": "igdb_id", "value": "14593"}}, meta); diff != "" {
		t.Errorf("meta mismatch (-want +got):\n%s", diff)
	}
	categories := input["categories"].(map[string]any)
	if diff := cmp.Diff([]map[string]string{{"name": "Games"}}, categories["nodes"]); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateGamePostWithoutPost(t *testing.T) {
	for _, reply := range []string{`{"createPost":null}`, `{"createPost":{"post":null}}`} {
		posts := NewPosts(&fakeExecutor{reply: reply})

		post, err := posts.CreateGamePost(context.Background(), NewGamePost{Title: "X", Category: "Games", GameID: 1})
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if post != nil {
			t.Errorf("Expected nil post for %s, got %+v", reply, post)
		}
	}
}

func TestRecentPosts(t *testing.T) {
	exec := &fakeExecutor{reply: `{"posts":{"nodes":[{"slug":"a"},{"slug":"b"}]}}`}
	posts := NewPosts(exec)

	got, err := posts.RecentPosts(context.Background(), "reviews", 20)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 2 || got[0].Slug != "a" {
		t.Errorf("Unexpected posts %+v", got)
	}
	if diff := cmp.Diff(map[string]any{"first": 20, "category": "reviews"}, exec.calls[0].variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}

	_, _ = posts.RecentPosts(context.Background(), "", 5)
	if _, ok := exec.calls[1].variables["category"]; ok {
		t.Error("Expected no category variable when category is empty")
	}
}

func TestPostPublishedAt(t *testing.T) {
	tests := []struct {
		date string
		want time.Time
	}{
		{"2024-03-01T10:30:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-03-01T10:30:00Z", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-03-01 10:30:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := Post{Date: tt.date}.PublishedAt()
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.date, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.date, tt.want, got)
		}
	}

	if _, err := (Post{Date: "yesterday"}).PublishedAt(); err == nil {
		t.Error("Expected error for invalid date")
	}
}
