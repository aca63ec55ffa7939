package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/LJTian/EdNewsHub/internal/aggregator"
	"github.com/LJTian/EdNewsHub/internal/app"
	"github.com/LJTian/EdNewsHub/internal/collector"
	"github.com/LJTian/EdNewsHub/internal/config"
	"github.com/LJTian/EdNewsHub/internal/logging"
	"github.com/LJTian/EdNewsHub/internal/storage"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type options struct {
	SourcesFile  string        `long:"sources-file" env:"SOURCES_FILE" description:"YAML file with sources and keyword tables (default: built-in)"`
	Sources      []string      `short:"s" long:"source" description:"Only collect the named source (repeatable)"`
	FetchTimeout time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"10s" description:"Per-request timeout"`
	Retries      int           `long:"retries" env:"FETCH_RETRIES" default:"0" description:"Extra attempts per page with exponential backoff"`
	URLWorkers   int           `long:"url-workers" env:"URL_WORKERS" default:"1" description:"Concurrent pages per source"`
	Timeout      time.Duration `long:"timeout" env:"CYCLE_TIMEOUT" default:"10m" description:"Overall deadline for the cycle"`
	Persist      bool          `long:"persist" description:"Save per-source snapshots to POSTGRES_DSN"`
	LogLevel     string        `long:"log-level" env:"LOG_LEVEL" default:"info" description:"debug, info, warn or error"`
}

// result 是写到 stdout 的唯一内容，日志一律写 stderr
type result struct {
	Articles  []collector.ScrapedContent `json:"articles"`
	Status    aggregator.Status          `json:"status"`
	Stats     aggregator.ContentStats    `json:"stats"`
	Fallbacks collector.FallbackStats    `json:"fallbacks"`
}

// 一个仅执行一轮采集的命令行入口：适合手动触发或调试选择器，结果以 JSON 输出到 stdout
func main() {
	_ = godotenv.Load()

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	logger := logging.NewTo(os.Stderr, opts.LogLevel)
	if err := run(context.Background(), opts, nil, os.Stdout, logger); err != nil {
		logger.Error("collect failed", "error", err)
		os.Exit(1)
	}
}

// run 执行一轮采集并把结果编码到 out；fetcher 为空时使用真实的 PageFetcher
func run(ctx context.Context, opts options, fetcher collector.Fetcher, out io.Writer, logger *slog.Logger) error {
	content, err := config.LoadContent(opts.SourcesFile)
	if err != nil {
		return fmt.Errorf("load content config: %w", err)
	}
	sources, err := app.SelectSources(content.ContentSources(), opts.Sources)
	if err != nil {
		return err
	}

	cfg := &config.Config{
		FetchTimeout:  opts.FetchTimeout,
		FetchRetries:  opts.Retries,
		SourceWorkers: 2,
		URLWorkers:    opts.URLWorkers,
		CycleTimeout:  opts.Timeout,
	}

	deps := app.Deps{Config: cfg, Content: content, Sources: sources, Fetcher: fetcher, Logger: logger}
	if opts.Persist {
		store, err := storage.NewStore(os.Getenv("POSTGRES_DSN"), "", logger)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		defer store.Close()
		deps.Store = store
	}

	pipeline, err := app.Build(deps)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	// 只执行一轮采集任务后退出
	items, err := pipeline.Aggregator.RunAutomatedUpdate(ctx)
	if err != nil {
		return fmt.Errorf("content update: %w", err)
	}
	if items == nil {
		items = []collector.ScrapedContent{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result{
		Articles:  items,
		Status:    pipeline.Aggregator.Status(),
		Stats:     pipeline.Aggregator.ContentStats(),
		Fallbacks: pipeline.Stats.Snapshot(),
	})
}
