package collector

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const articleHTML = `<html><head><title>x</title></head><body>
<h1 class="page-title">
   Trinity   College Dublin
   opens new campus
</h1>
<p class="lead">A short   lead paragraph.</p>
<div class="content"><p>First.</p>
<p>Second   paragraph.</p></div>
<div class="featured-image"><img src="img/hero.jpg"></div>
<time class="date" datetime="2024-03-05T10:00:00Z">5 March 2024</time>
<span class="bad-date">sometime last spring</span>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestExtractFields(t *testing.T) {
	e := NewExtractor(nil, nil)
	sel := SelectorSet{
		Title:       "h1.page-title, h2.entry-title",
		Description: ".lead",
		Content:     ".content",
		Image:       ".featured-image img",
		PublishedAt: "time",
	}
	f := e.Extract(mustDoc(t, articleHTML), sel, "https://www.tcd.ie/news/2024/campus/")

	if f.Title != "Trinity College Dublin opens new campus" {
		t.Fatalf("Title = %q", f.Title)
	}
	if f.Description != "A short lead paragraph." {
		t.Fatalf("Description = %q", f.Description)
	}
	if f.Content != "First. Second paragraph." {
		t.Fatalf("Content = %q", f.Content)
	}
	if f.Image != "https://www.tcd.ie/news/2024/campus/img/hero.jpg" {
		t.Fatalf("Image = %q", f.Image)
	}
	want := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	if !f.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v, want %v", f.PublishedAt, want)
	}
}

func TestExtractMissingSelectorsYieldEmpty(t *testing.T) {
	stats := &Stats{}
	e := NewExtractor(nil, stats)
	f := e.Extract(mustDoc(t, articleHTML), SelectorSet{Title: ".nope", Content: ""}, "https://example.com/")
	if f.Title != "" || f.Content != "" || f.Image != "" || f.Description != "" {
		t.Fatalf("expected empty fields, got %+v", f)
	}
	if got := stats.Snapshot().SelectorMisses; got != 1 {
		t.Fatalf("SelectorMisses = %d, want 1", got)
	}
}

func TestExtractUnparseableDateFallsBackToNow(t *testing.T) {
	stats := &Stats{}
	e := NewExtractor(nil, stats)
	before := time.Now().UTC()
	f := e.Extract(mustDoc(t, articleHTML), SelectorSet{PublishedAt: ".bad-date"}, "https://example.com/")

	if f.PublishedAt.IsZero() {
		t.Fatalf("PublishedAt should never be zero")
	}
	if d := f.PublishedAt.Sub(before); d < 0 || d > 5*time.Second {
		t.Fatalf("fallback date %v not close to now %v", f.PublishedAt, before)
	}
	if _, err := time.Parse(time.RFC3339, f.PublishedAt.Format(time.RFC3339)); err != nil {
		t.Fatalf("fallback date not ISO formattable: %v", err)
	}
	if got := stats.Snapshot().DateFallbacks; got != 1 {
		t.Fatalf("DateFallbacks = %d, want 1", got)
	}
}

func TestParseDateLayouts(t *testing.T) {
	e := NewExtractor(nil, nil)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05T10:00:00Z", time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)},
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"March 5, 2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := e.ParseDate(c.in); !got.Equal(c.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestResolveURL(t *testing.T) {
	const base = "https://example.com/foo/"
	cases := []struct {
		ref, want string
	}{
		{"https://other.org/a?b=1", "https://other.org/a?b=1"},
		{"http://example.com/x", "http://example.com/x"},
		{"/path", "https://example.com/path"},
		{"path", "https://example.com/foo/path"},
		{"//cdn.example.com/i.png", "https://cdn.example.com/i.png"},
	}
	for _, c := range cases {
		got, ok := ResolveURL(c.ref, base)
		if !ok || got != c.want {
			t.Errorf("ResolveURL(%q) = %q, %v; want %q", c.ref, got, ok, c.want)
		}
		// 对结果再解析一次应保持不变
		again, ok := ResolveURL(got, base)
		if !ok || again != got {
			t.Errorf("ResolveURL not idempotent for %q: %q", got, again)
		}
	}

	if _, ok := ResolveURL("", base); ok {
		t.Errorf("empty ref should not resolve")
	}
	if _, ok := ResolveURL("rel", "not a base"); ok {
		t.Errorf("relative base should not resolve")
	}
}
