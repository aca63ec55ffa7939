package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/LJTian/EdNewsHub/internal/aggregator"
	"github.com/LJTian/EdNewsHub/internal/collector"
	"github.com/robfig/cron/v3"
)

// Updater 是一轮内容更新的入口，由 aggregator.Aggregator 实现
type Updater interface {
	RunAutomatedUpdate(ctx context.Context) ([]collector.ScrapedContent, error)
}

type Scheduler struct {
	cron         *cron.Cron
	updater      Updater
	logger       *slog.Logger
	startupDelay time.Duration
	// 首轮采集与 cron 任务共用同一个 recover
	startupJob cron.Job

	mu      sync.Mutex
	startup *time.Timer
	stopped bool
	running sync.WaitGroup
}

type Option func(*Scheduler)

// WithStartupDelay 设置首轮采集的延迟，0 表示启动后立即执行
func WithStartupDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.startupDelay = d }
}

func New(spec string, u Updater, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{
		cron:    c,
		updater: u,
		logger:  logger,
		// 延迟执行首轮采集，避免与服务启动时的首批请求争抢资源
		startupDelay: 15 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	s.startupJob = cron.NewChain(cron.Recover(cl)).Then(cron.FuncJob(s.runOnce))
	return s, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.cron.Start()
	s.startup = time.AfterFunc(s.startupDelay, s.runStartup)
}

func (s *Scheduler) runStartup() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	s.startupJob.Run()
}

// Stop 停止调度并取消尚未触发的首轮采集，返回的 ctx 在正在运行的任务（含首轮）结束后关闭
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.stopped = true
	if s.startup != nil {
		s.startup.Stop()
	}
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.running.Wait()
		cancel()
	}()
	return ctx
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集；已有更新在运行时视为跳过
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.logger.Info("start content update job")
	items, err := s.updater.RunAutomatedUpdate(ctx)
	if errors.Is(err, aggregator.ErrUpdateInProgress) {
		s.logger.Info("update already running, skip this tick")
		return nil
	}
	if err != nil {
		s.logger.Error("content update job failed", "error", err)
		return err
	}
	s.logger.Info("content update job done", "top", len(items))
	return nil
}

func (s *Scheduler) runOnce() {
	_ = s.RunOnce(context.Background())
}

// cronLogger 把 cron 的日志接到 slog 上
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
