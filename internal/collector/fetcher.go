package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gocolly/colly/v2"
)

// Fetcher 抓取单个页面；第二个返回值为 false 表示页面不可用（任何原因），
// 调用方跳过即可，不会有 error 穿过这一层。
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, bool)
}

const (
	browserUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultFetchTimeout = 10 * time.Second
	maxPageBytes        = 2 << 20 // 2MB

	ctxBodyKey   = "body"
	ctxStatusKey = "status"
)

// FetcherOptions 为零值的字段使用默认值
type FetcherOptions struct {
	Timeout time.Duration
	// Retries 为首次请求之外的重试次数，0 表示只请求一次
	Retries     int
	RetryWait   time.Duration
	Parallelism int
	Delay       time.Duration
}

// PageFetcher 基于 colly 的 Fetcher 实现
type PageFetcher struct {
	c         *colly.Collector
	retries   int
	retryWait time.Duration
	logger    *slog.Logger
	stats     *Stats
}

var _ Fetcher = (*PageFetcher)(nil)

func NewPageFetcher(opts FetcherOptions, logger *slog.Logger, stats *Stats) *PageFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 2
	}

	c := colly.NewCollector(
		colly.UserAgent(browserUserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxPageBytes),
	)
	c.SetRequestTimeout(opts.Timeout)
	// colly 默认把 >=203 的状态都当作错误；这里让所有响应进入 OnResponse，由 fetchOnce 按 2xx 判断
	c.ParseHTTPErrorResponse = true
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: opts.Parallelism,
		Delay:       opts.Delay,
	}); err != nil {
		logger.Warn("fetcher: limit rule rejected", "error", err)
	}

	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxBodyKey, r.Body)
		r.Ctx.Put(ctxStatusKey, r.StatusCode)
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(ctxStatusKey, r.StatusCode)
		}
	})

	return &PageFetcher{
		c:         c,
		retries:   opts.Retries,
		retryWait: opts.RetryWait,
		logger:    logger,
		stats:     stats,
	}
}

// Fetch 以浏览器请求头发起 GET；传输错误、非 2xx、超时一律返回 (nil, false)
func (f *PageFetcher) Fetch(ctx context.Context, url string) ([]byte, bool) {
	var body []byte
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		b, status, err := f.fetchOnce(url)
		if err != nil {
			if isPermanentStatus(status) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(f.retries, 0))), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		f.stats.incFetchRetries()
		f.logger.Debug("fetch retry", "url", url, "wait", wait, "error", err)
	})
	if err != nil {
		f.stats.incFetchFailures()
		f.logger.Warn("fetch failed", "url", url, "error", err)
		return nil, false
	}
	return body, true
}

func (f *PageFetcher) fetchOnce(url string) ([]byte, int, error) {
	cctx := colly.NewContext()
	err := f.c.Request(http.MethodGet, url, nil, cctx, browserHeaders())

	status, _ := cctx.GetAny(ctxStatusKey).(int)
	if err != nil {
		return nil, status, fmt.Errorf("get %s: %w", url, err)
	}
	if status < 200 || status > 299 {
		return nil, status, fmt.Errorf("get %s: unexpected status %d", url, status)
	}
	body, _ := cctx.GetAny(ctxBodyKey).([]byte)
	return body, status, nil
}

func browserHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", browserUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	// 只声明 gzip：colly 会自动解压 gzip，不处理 deflate
	h.Set("Accept-Encoding", "gzip")
	h.Set("Connection", "keep-alive")
	h.Set("DNT", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

// 除 408/429 以外的 4xx 重试也不会成功
func isPermanentStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}
