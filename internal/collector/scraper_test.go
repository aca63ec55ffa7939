package collector

import (
	"context"
	"strings"
	"testing"
	"time"
)

var testSource = ContentSource{
	Name:     "Test University News",
	BaseURL:  "https://uni.example.ie/news/",
	Category: "universities",
	Selectors: SelectorSet{
		Title:       "h1",
		Description: ".summary",
		Content:     ".body",
		Image:       "img.hero",
		PublishedAt: ".date",
	},
}

func page(title, summary, body string) string {
	return `<html><body><h1>` + title + `</h1><p class="summary">` + summary +
		`</p><div class="body">` + body + `</div><img class="hero" src="/img/a.png"><span class="date">2024-05-01</span></body></html>`
}

func newTestScraper(f Fetcher, workers int, stats *Stats) *Scraper {
	sc := NewScorer([]string{"trinity college", "ireland", "university"}, []string{"Research", "UCD"})
	return NewScraper(f, NewExtractor(nil, stats), sc, workers, nil, stats)
}

func TestScrapeAssemblesAndSkipsInvalid(t *testing.T) {
	stats := &Stats{}
	f := &fakeFetcher{pages: map[string]string{
		"https://uni.example.ie/news/a": page("Trinity College research in Ireland", "UCD summary", "University body text"),
		"https://uni.example.ie/news/b": page("", "no title", "body"),
		"https://uni.example.ie/news/c": page("Title only", "summary", ""),
	}}
	urls := []string{
		"https://uni.example.ie/news/a",
		"https://uni.example.ie/news/b",
		"https://uni.example.ie/news/missing",
		"https://uni.example.ie/news/c",
	}

	items, err := newTestScraper(f, 1, stats).Scrape(context.Background(), testSource, urls)
	if err != nil {
		t.Fatalf("Scrape error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d: %+v", len(items), items)
	}
	it := items[0]
	if it.Source != testSource.Name || it.Category != testSource.Category {
		t.Fatalf("source/category not inherited: %+v", it)
	}
	if it.URL != "https://uni.example.ie/news/a" || it.Image != "https://uni.example.ie/img/a.png" {
		t.Fatalf("url/image wrong: %q %q", it.URL, it.Image)
	}
	// trinity college 2 + ireland 1 + university 1 = 4
	if it.RelevanceScore != 0.4 {
		t.Fatalf("RelevanceScore = %v, want 0.4", it.RelevanceScore)
	}
	if len(it.Tags) != 2 || it.Tags[0] != "Research" || it.Tags[1] != "UCD" {
		t.Fatalf("Tags = %v", it.Tags)
	}
	if !it.PublishedAt.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("PublishedAt = %v", it.PublishedAt)
	}
	if got := stats.Snapshot().DiscardedItems; got != 2 {
		t.Fatalf("DiscardedItems = %d, want 2", got)
	}
}

func TestScrapeTruncatesFields(t *testing.T) {
	long := strings.Repeat("é", 3000)
	f := &fakeFetcher{pages: map[string]string{
		"https://x.example/1": page(long, long, long),
	}}
	items, err := newTestScraper(f, 1, nil).Scrape(context.Background(), testSource, []string{"https://x.example/1"})
	if err != nil || len(items) != 1 {
		t.Fatalf("Scrape = %v, %v", items, err)
	}
	it := items[0]
	if n := len([]rune(it.Title)); n != 200 {
		t.Errorf("title runes = %d, want 200", n)
	}
	if n := len([]rune(it.Description)); n != 500 {
		t.Errorf("description runes = %d, want 500", n)
	}
	if n := len([]rune(it.Content)); n != 2000 {
		t.Errorf("content runes = %d, want 2000", n)
	}
}

func TestScrapeKeepsInputOrderWithWorkers(t *testing.T) {
	pages := map[string]string{}
	var urls []string
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		u := "https://uni.example.ie/news/" + id
		pages[u] = page("Article "+id, "summary", "body "+id)
		urls = append(urls, u)
	}
	f := &fakeFetcher{pages: pages, delay: 5 * time.Millisecond}

	items, err := newTestScraper(f, 3, nil).Scrape(context.Background(), testSource, urls)
	if err != nil {
		t.Fatalf("Scrape error: %v", err)
	}
	if len(items) != len(urls) {
		t.Fatalf("got %d items, want %d", len(items), len(urls))
	}
	for i, it := range items {
		if it.URL != urls[i] {
			t.Fatalf("items[%d].URL = %q, want %q", i, it.URL, urls[i])
		}
	}
}

func TestScrapeCancelledContext(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{"https://x.example/1": page("t", "d", "c")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestScraper(f, 1, nil).Scrape(ctx, testSource, []string{"https://x.example/1"}); err == nil {
		t.Fatalf("expected error for cancelled ctx")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("你好，世界", 2); got != "你好" {
		t.Fatalf("truncateRunes = %q", got)
	}
	if got := truncateRunes("短文本", 10); got != "短文本" {
		t.Fatalf("truncateRunes should keep short input: %q", got)
	}
	if got := truncateRunes("abc", 0); got != "" {
		t.Fatalf("truncateRunes(0) = %q", got)
	}
}
