package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LJTian/EdNewsHub/internal/collector"
	"github.com/LJTian/EdNewsHub/internal/processor"
	"golang.org/x/sync/errgroup"
)

// ErrUpdateInProgress 表示已有一轮更新在运行，本次触发被拒绝
var ErrUpdateInProgress = errors.New("aggregator: update already in progress")

const (
	maxCycleResults      = 50
	defaultSourceWorkers = 2

	ResultSuccess        = "success"
	ResultPartialFailure = "partial_failure"
)

// URLDiscoverer 找出某个源待采集的文章地址
type URLDiscoverer interface {
	Discover(ctx context.Context, src collector.ContentSource) []string
}

// ContentScraper 把地址列表采集成内容
type ContentScraper interface {
	Scrape(ctx context.Context, src collector.ContentSource, urls []string) ([]collector.ScrapedContent, error)
}

// SnapshotStore 持久化每个源最近一次成功的结果，用于重启后预热
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, source string, items []collector.ScrapedContent) error
}

type Options struct {
	Sources    []collector.ContentSource
	Discoverer URLDiscoverer
	Scraper    ContentScraper
	Tables     Tables
	// 零值时使用 processor.DefaultThresholds()
	Thresholds processor.QualityThresholds

	SourceWorkers int
	CycleTimeout  time.Duration

	Snapshots  SnapshotStore
	Seen       SeenSet
	Publisher  Publisher
	QueueLimit int

	Stats  *collector.Stats
	Logger *slog.Logger
	Now    func() time.Time
}

// Status 描述更新任务的当前状态
type Status struct {
	Running    bool      `json:"running"`
	LastUpdate time.Time `json:"lastUpdate"`
	LastResult string    `json:"lastResult"`
	Generation uint64    `json:"generation"`
}

// Aggregator 持有内容缓存，负责更新周期与全部只读查询。每个进程构造一次。
type Aggregator struct {
	sources    []collector.ContentSource
	discoverer URLDiscoverer
	scraper    ContentScraper
	tables     Tables
	thresholds processor.QualityThresholds
	workers    int
	timeout    time.Duration

	snapshots SnapshotStore
	seen      SeenSet
	publisher Publisher
	queue     *updateQueue

	stats  *collector.Stats
	logger *slog.Logger
	now    func() time.Time

	cache      *cache
	running    atomic.Bool
	generation atomic.Uint64

	mu         sync.RWMutex
	lastUpdate time.Time
	lastResult string
	prevTags   map[string]int // 最近一次成功更新之前的标签计数
}

func New(opts Options) (*Aggregator, error) {
	if opts.Discoverer == nil || opts.Scraper == nil {
		return nil, fmt.Errorf("aggregator: discoverer and scraper are required")
	}
	if opts.Thresholds == (processor.QualityThresholds{}) {
		opts.Thresholds = processor.DefaultThresholds()
	}
	if opts.SourceWorkers <= 0 {
		opts.SourceWorkers = defaultSourceWorkers
	}
	if opts.QueueLimit <= 0 {
		opts.QueueLimit = defaultQueueLimit
	}
	if opts.Seen == nil {
		opts.Seen = NewMemorySeenSet()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Aggregator{
		sources:    opts.Sources,
		discoverer: opts.Discoverer,
		scraper:    opts.Scraper,
		tables:     opts.Tables,
		thresholds: opts.Thresholds,
		workers:    opts.SourceWorkers,
		timeout:    opts.CycleTimeout,
		snapshots:  opts.Snapshots,
		seen:       opts.Seen,
		publisher:  opts.Publisher,
		queue:      &updateQueue{limit: opts.QueueLimit},
		stats:      opts.Stats,
		logger:     opts.Logger.With("component", "aggregator"),
		now:        opts.Now,
		cache:      newCache(opts.Sources),
	}, nil
}

// RunAutomatedUpdate 跑一轮完整更新：逐源发现、采集、质量过滤并整体替换该源槽位，
// 最后按综合得分返回前 50 条。已有更新在运行时返回 ErrUpdateInProgress。
// 单个源失败只记录日志，不影响其它源，也不会改动该源原有缓存。
func (a *Aggregator) RunAutomatedUpdate(ctx context.Context) ([]collector.ScrapedContent, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrUpdateInProgress
	}
	defer a.running.Store(false)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := a.now()
	baseline := a.tagCounts(a.cache.all())
	a.logger.Info("content update started", "sources", len(a.sources))

	results := make([][]collector.ScrapedContent, len(a.sources))
	var failed atomic.Int32

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, src := range a.sources {
		i, src := i, src
		g.Go(func() error {
			items, err := a.processSource(ctx, src)
			if err != nil {
				failed.Add(1)
				a.stats.IncSourceFailures()
				a.logger.Error("source failed, keeping previous content", "source", src.Name, "error", err)
				return nil
			}
			a.cache.set(src.Name, items)
			results[i] = items
			a.saveSnapshot(ctx, src.Name, items)
			a.logger.Info("source refreshed", "source", src.Name, "items", len(items))
			return nil
		})
	}
	_ = g.Wait()

	var fresh []collector.ScrapedContent
	for _, items := range results {
		fresh = append(fresh, items...)
	}
	ranked := processor.Rank(fresh, a.now())
	if len(ranked) > maxCycleResults {
		ranked = ranked[:maxCycleResults]
	}

	queued := a.enqueue(ctx, fresh)
	a.drain(ctx)

	nFailed := int(failed.Load())
	result := ResultSuccess
	if nFailed > 0 {
		result = ResultPartialFailure
	}
	a.mu.Lock()
	a.lastUpdate = a.now()
	a.lastResult = result
	if nFailed < len(a.sources) {
		a.prevTags = baseline
	}
	a.mu.Unlock()
	a.generation.Add(1)

	a.logger.Info("content update finished",
		"result", result,
		"failedSources", nFailed,
		"articles", len(fresh),
		"queued", queued,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return ranked, nil
}

// processSource 只有在整个源完整跑完时才返回结果；取消、panic、列表页无链接、文章页全部采集失败都视为失败。
// 采到内容但全部未通过质量过滤时正常返回空结果，槽位被清空。
func (a *Aggregator) processSource(ctx context.Context, src collector.ContentSource) (items []collector.ScrapedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	urls := a.discoverer.Discover(ctx, src)
	if len(urls) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}
		return nil, errors.New("discover: no article urls found")
	}

	scraped, err := a.scraper.Scrape(ctx, src, urls)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// 列表页正常但一篇都没采到，多半是文章页整体不可达，与列表页失败同样保留旧内容
	if len(scraped) == 0 {
		return nil, fmt.Errorf("scrape: none of %d discovered urls yielded content", len(urls))
	}

	filtered := processor.FilterQuality(scraped, a.thresholds)
	a.logger.Debug("quality filter", "source", src.Name, "urls", len(urls), "scraped", len(scraped), "kept", len(filtered))
	return filtered, nil
}

func (a *Aggregator) saveSnapshot(ctx context.Context, source string, items []collector.ScrapedContent) {
	if a.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.snapshots.SaveSnapshot(ctx, source, items); err != nil {
		a.logger.Warn("save snapshot failed", "source", source, "error", err)
	}
}

// Restore 用持久化的快照预热缓存，不触发 SnapshotStore 与更新队列
func (a *Aggregator) Restore(slots map[string][]collector.ScrapedContent) int {
	n := a.cache.restore(slots)
	a.generation.Add(1)
	a.logger.Info("cache restored", "sources", len(slots), "articles", n)
	return n
}

func (a *Aggregator) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Status{
		Running:    a.running.Load(),
		LastUpdate: a.lastUpdate,
		LastResult: a.lastResult,
		Generation: a.generation.Load(),
	}
}

// Generation 在每次缓存变化后递增，可用作外部响应缓存的版本号
func (a *Aggregator) Generation() uint64 {
	return a.generation.Load()
}

func (a *Aggregator) Sources() []collector.ContentSource {
	out := make([]collector.ContentSource, len(a.sources))
	copy(out, a.sources)
	return out
}
