package collector

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// Scraper 把发现的地址转换成 ScrapedContent
type Scraper struct {
	fetcher   Fetcher
	extractor *Extractor
	scorer    *Scorer
	workers   int
	logger    *slog.Logger
	stats     *Stats
}

func NewScraper(f Fetcher, ex *Extractor, sc *Scorer, workers int, logger *slog.Logger, stats *Stats) *Scraper {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{fetcher: f, extractor: ex, scorer: sc, workers: workers, logger: logger, stats: stats}
}

// Scrape 以最多 workers 个并发抓取所有地址，输出顺序与输入一致；
// 失败或缺少标题/正文的页面直接跳过。返回 error 仅表示 ctx 提前结束。
func (s *Scraper) Scrape(ctx context.Context, src ContentSource, urls []string) ([]ScrapedContent, error) {
	results := make([]*ScrapedContent, len(urls))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, u := range urls {
		if ctx.Err() != nil {
			break
		}
		i, u := i, u
		g.Go(func() error {
			item, err := s.scrapeURL(ctx, src, u)
			if err != nil {
				s.logger.Warn("scrape failed", "source", src.Name, "url", u, "error", err)
				return nil
			}
			results[i] = item
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scrape %s: %w", src.Name, err)
	}

	out := make([]ScrapedContent, 0, len(urls))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// 页面不可用或缺少标题/正文时返回 (nil, nil)
func (s *Scraper) scrapeURL(ctx context.Context, src ContentSource, pageURL string) (item *ScrapedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			item, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	body, ok := s.fetcher.Fetch(ctx, pageURL)
	if !ok {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	f := s.extractor.Extract(doc, src.Selectors, pageURL)
	if f.Title == "" || f.Content == "" {
		s.stats.incDiscardedItems()
		s.logger.Debug("discarded page without title or content", "source", src.Name, "url", pageURL)
		return nil, nil
	}

	score, tags := s.scorer.Score(f.Title + " " + f.Description + " " + f.Content)
	return &ScrapedContent{
		Title:          truncateRunes(f.Title, maxTitleRunes),
		Description:    truncateRunes(f.Description, maxDescriptionRunes),
		Content:        truncateRunes(f.Content, maxContentRunes),
		URL:            pageURL,
		Image:          f.Image,
		PublishedAt:    f.PublishedAt,
		Source:         src.Name,
		Category:       src.Category,
		Tags:           tags,
		RelevanceScore: score,
	}, nil
}
