// Package feed renders CMS posts as RSS 2.0 channels.
package feed

import (
	"bytes"
	"encoding/xml"
	"html"
	"strings"
	"time"
	"unicode/utf8"
)

// Render builds an RSS 2.0 document with one item per entry of items, in
// order. lastBuildDate is the newest item date, or now for an empty channel.
func Render(channel Channel, items []Item) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	writeElement(&buf, "title", channel.Title, 4)
	writeElement(&buf, "link", channel.SiteURL, 4)
	writeElement(&buf, "description", channel.Description, 4)

	if channel.SelfURL != "" {
		buf.WriteString(`    <atom:link href="`)
		buf.WriteString(html.EscapeString(channel.SelfURL))
		buf.WriteString(`" rel="self" type="application/rss+xml" />`)
		buf.WriteString("\n")
	}

	writeElement(&buf, "lastBuildDate", LastBuildDate(items, time.Now()).Format(time.RFC1123Z), 4)
	writeElement(&buf, "generator", channel.Generator, 4)
	writeElement(&buf, "language", channel.Language, 4)

	for _, item := range items {
		writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>\n")

	return buf.String(), nil
}

// LastBuildDate returns the most recent item timestamp, or now when there is none.
func LastBuildDate(items []Item, now time.Time) time.Time {
	var latest time.Time
	for _, item := range items {
		if item.PublishedAt.After(latest) {
			latest = item.PublishedAt
		}
	}
	if latest.IsZero() {
		return now
	}
	return latest
}

func writeItem(buf *bytes.Buffer, item Item) {
	buf.WriteString("    <item>\n")

	writeCDATA(buf, "title", item.Title, 6)
	writeElement(buf, "link", item.URL, 6)
	writeCDATA(buf, "description", item.Description, 6)

	if item.URL != "" {
		buf.WriteString(`      <guid isPermaLink="true">`)
		_ = xml.EscapeText(buf, []byte(item.URL))
		buf.WriteString("</guid>\n")
	}

	if !item.PublishedAt.IsZero() {
		writeElement(buf, "pubDate", item.PublishedAt.Format(time.RFC1123Z), 6)
	}

	buf.WriteString("    </item>\n")
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<" + tag + ">")
	_ = xml.EscapeText(buf, []byte(content))
	buf.WriteString("</" + tag + ">\n")
}

// writeCDATA wraps content in CDATA. A literal "]]>" is split across two
// sections so it cannot close the first one early.
func writeCDATA(buf *bytes.Buffer, tag, content string, indent int) {
	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<" + tag + "><![CDATA[")
	buf.WriteString(strings.ReplaceAll(xmlSafe(content), "]]>", "]]]]><![CDATA[>"))
	buf.WriteString("]]></" + tag + ">\n")
}

// xmlSafe drops invalid UTF-8 and runes outside the XML 1.0 Char production.
func xmlSafe(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, s)
}

func isXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= utf8.MaxRune:
		return true
	}
	return false
}
