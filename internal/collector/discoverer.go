package collector

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
)

const maxDiscoveredURLs = 20

// DefaultLinkSelectors 按顺序在列表页上匹配文章链接
var DefaultLinkSelectors = []string{
	`a[href*="/news/"]`,
	`a[href*="/article/"]`,
	`a[href*="/post/"]`,
	".news-item a",
	".article-link",
	".post-title a",
	"h2 a",
	"h3 a",
}

// Discoverer 从数据源列表页中发现候选文章地址
type Discoverer struct {
	fetcher   Fetcher
	selectors []string
	limit     int
	logger    *slog.Logger
}

func NewDiscoverer(f Fetcher, selectors []string, logger *slog.Logger) *Discoverer {
	if len(selectors) == 0 {
		selectors = DefaultLinkSelectors
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{fetcher: f, selectors: selectors, limit: maxDiscoveredURLs, logger: logger}
}

// Discover 返回去重后的绝对地址，保持首次出现的顺序，最多 20 条；
// 任何失败都返回空。
func (d *Discoverer) Discover(ctx context.Context, src ContentSource) []string {
	body, ok := d.fetcher.Fetch(ctx, src.BaseURL)
	if !ok {
		d.logger.Warn("listing page unavailable", "source", src.Name, "url", src.BaseURL)
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		d.logger.Warn("listing page unparseable", "source", src.Name, "error", err)
		return nil
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, sel := range d.selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			abs, ok := ResolveURL(href, src.BaseURL)
			if !ok {
				return
			}
			if _, dup := seen[abs]; dup {
				return
			}
			seen[abs] = struct{}{}
			urls = append(urls, abs)
		})
	}

	if len(urls) > d.limit {
		urls = urls[:d.limit]
	}
	d.logger.Debug("discovered urls", "source", src.Name, "count", len(urls))
	return urls
}
