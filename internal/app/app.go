package app

import (
	"fmt"
	"log/slog"

	"github.com/LJTian/EdNewsHub/internal/aggregator"
	"github.com/LJTian/EdNewsHub/internal/collector"
	"github.com/LJTian/EdNewsHub/internal/config"
	"github.com/LJTian/EdNewsHub/internal/storage"
)

// Pipeline 是按配置组装好的采集链路
type Pipeline struct {
	Aggregator *aggregator.Aggregator
	Stats      *collector.Stats
}

// Deps 中的 Store / Publisher 均可为空
type Deps struct {
	Config    *config.Config
	Content   *config.Content
	Sources   []collector.ContentSource
	Fetcher   collector.Fetcher
	Store     *storage.Store
	Publisher aggregator.Publisher
	Logger    *slog.Logger
}

// Build 按 cmd/api 与 cmd/collect 共用的方式组装 Fetcher → Discoverer/Scraper → Aggregator。
// Sources 为空时使用 Content 中的全部源；Fetcher 为空时按配置创建 PageFetcher。
func Build(d Deps) (*Pipeline, error) {
	if d.Config == nil || d.Content == nil {
		return nil, fmt.Errorf("app: config and content are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := d.Config
	stats := &collector.Stats{}

	fetcher := d.Fetcher
	if fetcher == nil {
		fetcher = collector.NewPageFetcher(collector.FetcherOptions{
			Timeout:     cfg.FetchTimeout,
			Retries:     cfg.FetchRetries,
			Parallelism: max(cfg.SourceWorkers*cfg.URLWorkers, 1),
		}, logger.With("component", "fetcher"), stats)
	}

	sources := d.Sources
	if len(sources) == 0 {
		sources = d.Content.ContentSources()
	}

	collectLog := logger.With("component", "collector")
	disc := collector.NewDiscoverer(fetcher, d.Content.LinkSelectors, collectLog)
	scraper := collector.NewScraper(
		fetcher,
		collector.NewExtractor(collectLog, stats),
		collector.NewScorer(d.Content.RelevanceKeywords, d.Content.TagVocabulary),
		cfg.URLWorkers,
		collectLog,
		stats,
	)

	opts := aggregator.Options{
		Sources:       sources,
		Discoverer:    disc,
		Scraper:       scraper,
		Tables:        d.Content.QueryTables(),
		SourceWorkers: cfg.SourceWorkers,
		CycleTimeout:  cfg.CycleTimeout,
		Publisher:     d.Publisher,
		Stats:         stats,
		Logger:        logger,
	}
	if d.Store != nil {
		if d.Store.DB != nil {
			opts.Snapshots = d.Store
		}
		if seen := d.Store.SeenSet(); seen != nil {
			opts.Seen = seen
		}
	}

	agg, err := aggregator.New(opts)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Aggregator: agg, Stats: stats}, nil
}

// SelectSources 按名称挑选数据源，names 为空时返回全部
func SelectSources(all []collector.ContentSource, names []string) ([]collector.ContentSource, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]collector.ContentSource, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	out := make([]collector.ContentSource, 0, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}
