package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/EdNewsHub/internal/logging"
)

type staticFetcher map[string]string

func (f staticFetcher) Fetch(_ context.Context, url string) ([]byte, bool) {
	body, ok := f[url]
	if !ok {
		return nil, false
	}
	return []byte(body), true
}

func TestRunWritesOnlyJSONToStdout(t *testing.T) {
	today := time.Now().UTC().Format("2006-01-02")
	f := staticFetcher{
		"https://www.ucd.ie/newsandopinion/": `<html><body><a href="/news/belfield-research">Research</a></body></html>`,
		"https://www.ucd.ie/news/belfield-research": `<html><body>
<h1>UCD opens new research centre for students in Dublin</h1>
<p class="news-excerpt">University College Dublin (UCD) said the research centre will serve students across Ireland.</p>
<div class="news-content">The university centre in Dublin will host academic research teams and student projects, ` +
			`supporting higher education in Ireland and Irish research partnerships with UCD.</div>
<span class="news-date">` + today + `</span>
</body></html>`,
	}

	var stdout, logs bytes.Buffer
	opts := options{
		Sources:      []string{"UCD News", "Irish Universities Association"},
		FetchTimeout: time.Second,
		URLWorkers:   1,
		Timeout:      time.Minute,
		LogLevel:     "info",
	}
	if err := run(context.Background(), opts, f, &stdout, newTestLogger(&logs)); err != nil {
		t.Fatalf("run: %v", err)
	}

	var got result
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if len(got.Articles) != 1 || got.Articles[0].Source != "UCD News" {
		t.Fatalf("articles = %+v", got.Articles)
	}
	if got.Fallbacks.SourceFailures != 1 {
		t.Fatalf("SourceFailures = %d, want 1", got.Fallbacks.SourceFailures)
	}
	if !strings.Contains(logs.String(), "content update started") {
		t.Fatalf("log records should go to the logger writer, got %q", logs.String())
	}
}

func TestRunRejectsUnknownSource(t *testing.T) {
	var stdout, logs bytes.Buffer
	err := run(context.Background(), options{Sources: []string{"Nope"}}, staticFetcher{}, &stdout, newTestLogger(&logs))
	if err == nil {
		t.Fatalf("expected error for unknown source")
	}
	if stdout.Len() != 0 {
		t.Fatalf("nothing should be written on error, got %q", stdout.String())
	}
}

func newTestLogger(w *bytes.Buffer) *slog.Logger {
	return logging.NewTo(w, "info")
}
