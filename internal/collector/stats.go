package collector

import "sync/atomic"

// Stats 统计采集过程中发生的各类兜底（抓取失败、日期回退、选择器未命中等），
// 零值即可使用，nil 接收者上的调用是安全的。
type Stats struct {
	fetchFailures  atomic.Int64
	fetchRetries   atomic.Int64
	dateFallbacks  atomic.Int64
	selectorMisses atomic.Int64
	discardedItems atomic.Int64
	sourceFailures atomic.Int64
}

// FallbackStats 是 Stats 某一时刻的快照
type FallbackStats struct {
	FetchFailures  int64 `json:"fetchFailures"`
	FetchRetries   int64 `json:"fetchRetries"`
	DateFallbacks  int64 `json:"dateFallbacks"`
	SelectorMisses int64 `json:"selectorMisses"`
	DiscardedItems int64 `json:"discardedItems"`
	SourceFailures int64 `json:"sourceFailures"`
}

func (s *Stats) Snapshot() FallbackStats {
	if s == nil {
		return FallbackStats{}
	}
	return FallbackStats{
		FetchFailures:  s.fetchFailures.Load(),
		FetchRetries:   s.fetchRetries.Load(),
		DateFallbacks:  s.dateFallbacks.Load(),
		SelectorMisses: s.selectorMisses.Load(),
		DiscardedItems: s.discardedItems.Load(),
		SourceFailures: s.sourceFailures.Load(),
	}
}

// IncSourceFailures 由 aggregator 在整个数据源失败时调用
func (s *Stats) IncSourceFailures() {
	if s != nil {
		s.sourceFailures.Add(1)
	}
}

func (s *Stats) incFetchFailures() {
	if s != nil {
		s.fetchFailures.Add(1)
	}
}

func (s *Stats) incFetchRetries() {
	if s != nil {
		s.fetchRetries.Add(1)
	}
}

func (s *Stats) incDateFallbacks() {
	if s != nil {
		s.dateFallbacks.Add(1)
	}
}

func (s *Stats) incSelectorMisses() {
	if s != nil {
		s.selectorMisses.Add(1)
	}
}

func (s *Stats) incDiscardedItems() {
	if s != nil {
		s.discardedItems.Add(1)
	}
}
