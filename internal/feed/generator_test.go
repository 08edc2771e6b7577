package feed

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mmcdole/gofeed"
)

func testChannel() Channel {
	return Channel{
		Title:       "Game Site: New Games",
		Description: "Recently added games",
		SiteURL:     "https://games.example.com",
		SelfURL:     "https://api.example.com/feeds/games",
		Generator:   "gamesite-bff/test",
	}
}

func TestRenderParsesBack(t *testing.T) {
	older := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	newer := time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC)

	items := []Item{
		{Title: "Tom & Jerry <Remastered>", URL: "https://games.example.com/tom-and-jerry/", Description: "Cat chases mouse & friends", PublishedAt: older},
		{Title: "Hades", URL: "https://games.example.com/hades/", Description: "Roguelike", PublishedAt: newer},
	}

	rss, err := Render(testChannel(), items)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.HasPrefix(rss, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Error("RSS should start with XML declaration")
	}

	parsed, err := gofeed.NewParser().ParseString(rss)
	if err != nil {
		t.Fatalf("rendered RSS does not parse: %v", err)
	}

	if parsed.FeedType != "rss" || parsed.FeedVersion != "2.0" {
		t.Errorf("Expected RSS 2.0, got %s %s", parsed.FeedType, parsed.FeedVersion)
	}
	if parsed.Title != "Game Site: New Games" || parsed.Link != "https://games.example.com" {
		t.Errorf("Unexpected channel metadata: %q %q", parsed.Title, parsed.Link)
	}
	if parsed.UpdatedParsed == nil || !parsed.UpdatedParsed.Equal(newer) {
		t.Errorf("Expected lastBuildDate %v, got %v", newer, parsed.UpdatedParsed)
	}

	type got struct {
		Title, Link, GUID, Description string
		Published                      time.Time
	}
	var gotItems []got
	for _, it := range parsed.Items {
		g := got{Title: it.Title, Link: it.Link, GUID: it.GUID, Description: it.Description}
		if it.PublishedParsed != nil {
			g.Published = it.PublishedParsed.UTC()
		}
		gotItems = append(gotItems, g)
	}

	want := []got{
		{"Tom & Jerry <Remastered>", items[0].URL, items[0].URL, "Cat chases mouse & friends", older},
		{"Hades", items[1].URL, items[1].URL, "Roguelike", newer},
	}
	if diff := cmp.Diff(want, gotItems); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderEscapesCDATATerminator(t *testing.T) {
	items := []Item{{
		Title:       "Break ]]> out",
		URL:         "https://games.example.com/break/",
		Description: "a ]]> b ]]]]> c",
		PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}

	rss, err := Render(testChannel(), items)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var doc struct {
		Channel struct {
			Items []struct {
				Title       string `xml:"title"`
				Description string `xml:"description"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal([]byte(rss), &doc); err != nil {
		t.Fatalf("rendered RSS is not well-formed: %v\n%s", err, rss)
	}

	if len(doc.Channel.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(doc.Channel.Items))
	}
	if got := doc.Channel.Items[0].Title; got != "Break ]]> out" {
		t.Errorf("Expected title to survive, got %q", got)
	}
	if got := doc.Channel.Items[0].Description; got != "a ]]> b ]]]]> c" {
		t.Errorf("Expected description to survive, got %q", got)
	}
}

func TestRenderStripsIllegalXMLChars(t *testing.T) {
	items := []Item{
		{Title: "Tom\x0bJerry", URL: "https://games.example.com/tom-jerry/", Description: "ok"},
		{Title: "Bad\xffUTF8", URL: "https://games.example.com/bad/", Description: "line\x01break\tand tab"},
	}

	rss, err := Render(testChannel(), items)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var doc struct {
		XMLName xml.Name `xml:"rss"`
	}
	if err := xml.Unmarshal([]byte(rss), &doc); err != nil {
		t.Fatalf("encoding/xml rejected output: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(rss)
	if err != nil {
		t.Fatalf("rendered RSS does not parse: %v", err)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(parsed.Items))
	}

	var got []string
	for _, it := range parsed.Items {
		got = append(got, it.Title, it.Description)
	}
	want := []string{"TomJerry", "ok", "BadUTF8", "linebreak\tand tab"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sanitised items mismatch (-want +got):\n%s", diff)
	}
}

func TestXMLSafe(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\x00b", "ab"},
		{"tab\tnl\ncr\r", "tab\tnl\ncr\r"},
		{"\xff\xfe", ""},
		{"caf\u00e9 \U0001F3AE", "caf\u00e9 \U0001F3AE"},
		{"\uFFFE", ""},
	}

	for _, tt := range tests {
		if got := xmlSafe(tt.in); got != tt.want {
			t.Errorf("xmlSafe(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderEmptyChannel(t *testing.T) {
	before := time.Now().Add(-time.Second)

	rss, err := Render(testChannel(), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(rss)
	if err != nil {
		t.Fatalf("rendered RSS does not parse: %v", err)
	}
	if len(parsed.Items) != 0 {
		t.Errorf("Expected no items, got %d", len(parsed.Items))
	}
	if parsed.UpdatedParsed == nil || parsed.UpdatedParsed.Before(before.Truncate(time.Second)) {
		t.Errorf("Expected lastBuildDate near now, got %v", parsed.UpdatedParsed)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	items := []Item{{Title: "Celeste", URL: "https://games.example.com/celeste/", PublishedAt: time.Unix(1_700_000_000, 0)}}

	a, _ := Render(testChannel(), items)
	b, _ := Render(testChannel(), items)
	if a != b {
		t.Error("Expected identical output for identical input")
	}
}

func TestRenderSelfLink(t *testing.T) {
	rss, _ := Render(testChannel(), nil)
	if !strings.Contains(rss, `<atom:link href="https://api.example.com/feeds/games" rel="self" type="application/rss+xml" />`) {
		t.Error("RSS should contain atom self link")
	}

	ch := testChannel()
	ch.SelfURL = ""
	rss, _ = Render(ch, nil)
	if strings.Contains(rss, "atom:link") {
		t.Error("RSS should omit atom self link when not configured")
	}
}

func TestLastBuildDate(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		items []Item
		want  time.Time
	}{
		{"empty", nil, now},
		{"undated items", []Item{{Title: "x"}}, now},
		{"newest wins regardless of order", []Item{{PublishedAt: b}, {PublishedAt: a}}, b},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LastBuildDate(tt.items, now); !got.Equal(tt.want) {
				t.Errorf("LastBuildDate() = %v, want %v", got, tt.want)
			}
		})
	}
}
