package aggregator

import (
	"sort"
	"strings"
	"time"

	"github.com/LJTian/EdNewsHub/internal/collector"
	"github.com/LJTian/EdNewsHub/internal/processor"
)

const (
	maxTrendingTopics = 10
	maxPremium        = 20
	premiumRelevance  = 0.7
	premiumWindow     = 7 * 24 * time.Hour

	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

type TrendingTopic struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
	Trend string `json:"trend"`
}

type ContentStats struct {
	TotalArticles         int                     `json:"totalArticles"`
	SourceBreakdown       map[string]int          `json:"sourceBreakdown"`
	CategoryBreakdown     map[string]int          `json:"categoryBreakdown"`
	LastUpdate            time.Time               `json:"lastUpdate"`
	AverageRelevanceScore float64                 `json:"averageRelevanceScore"`
	Fallbacks             collector.FallbackStats `json:"fallbacks"`
}

// AllContent 返回缓存中的全部内容，按综合得分排序
func (a *Aggregator) AllContent() []collector.ScrapedContent {
	return processor.Rank(a.cache.all(), a.now())
}

// SourceContent 返回单个源的槽位内容
func (a *Aggregator) SourceContent(source string) []collector.ScrapedContent {
	return a.cache.slot(source)
}

// ContentByCategory 分类完全相等，或任一标签包含该分类（不区分大小写）
func (a *Aggregator) ContentByCategory(category string) []collector.ScrapedContent {
	lower := strings.ToLower(category)
	return filter(a.cache.all(), func(it collector.ScrapedContent) bool {
		if it.Category == category {
			return true
		}
		for _, tag := range it.Tags {
			if strings.Contains(strings.ToLower(tag), lower) {
				return true
			}
		}
		return false
	})
}

// SearchContent 在标题、摘要、标签中做子串匹配，按相关度降序
func (a *Aggregator) SearchContent(query string) []collector.ScrapedContent {
	return a.matchKeywords([]string{query})
}

func (a *Aggregator) UniversityContent(key string) []collector.ScrapedContent {
	kws := a.tables.universityKeywords(key)
	if len(kws) == 0 {
		return []collector.ScrapedContent{}
	}
	return a.matchKeywords(kws)
}

func (a *Aggregator) VisaContent() []collector.ScrapedContent {
	return a.matchKeywords(a.tables.VisaKeywords)
}

func (a *Aggregator) ApplicationGuides() []collector.ScrapedContent {
	return a.matchKeywords(a.tables.GuideKeywords)
}

// PremiumContent 高相关度、7 天内发布、来自官方源，最多 20 条
func (a *Aggregator) PremiumContent() []collector.ScrapedContent {
	now := a.now()
	out := filter(a.cache.all(), func(it collector.ScrapedContent) bool {
		return it.RelevanceScore > premiumRelevance &&
			now.Sub(it.PublishedAt) <= premiumWindow &&
			a.tables.isOfficial(it.Source)
	})
	if len(out) > maxPremium {
		out = out[:maxPremium]
	}
	return out
}

// TrendingTopics 统计标签出现次数取前 10，趋势与上一轮成功更新前的计数比较
func (a *Aggregator) TrendingTopics() []TrendingTopic {
	items := a.cache.all()

	var order []string
	counts := make(map[string]int)
	for _, it := range items {
		for _, tag := range it.Tags {
			if _, ok := counts[tag]; !ok {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}
	// 同频次保持首次出现的顺序
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > maxTrendingTopics {
		order = order[:maxTrendingTopics]
	}

	a.mu.RLock()
	prev := a.prevTags
	a.mu.RUnlock()

	out := make([]TrendingTopic, 0, len(order))
	for _, tag := range order {
		out = append(out, TrendingTopic{Topic: tag, Count: counts[tag], Trend: trend(counts[tag], prev[tag])})
	}
	return out
}

func (a *Aggregator) ContentStats() ContentStats {
	items := a.cache.all()
	st := ContentStats{
		TotalArticles:     len(items),
		SourceBreakdown:   make(map[string]int),
		CategoryBreakdown: make(map[string]int),
		Fallbacks:         a.stats.Snapshot(),
	}
	var total float64
	for _, it := range items {
		st.SourceBreakdown[it.Source]++
		st.CategoryBreakdown[it.Category]++
		total += it.RelevanceScore
	}
	if len(items) > 0 {
		st.AverageRelevanceScore = total / float64(len(items))
	}

	a.mu.RLock()
	st.LastUpdate = a.lastUpdate
	a.mu.RUnlock()
	if st.LastUpdate.IsZero() {
		st.LastUpdate = a.now()
	}
	return st
}

func (a *Aggregator) tagCounts(items []collector.ScrapedContent) map[string]int {
	counts := make(map[string]int)
	for _, it := range items {
		for _, tag := range it.Tags {
			counts[tag]++
		}
	}
	return counts
}

func (a *Aggregator) matchKeywords(keywords []string) []collector.ScrapedContent {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		lowered = append(lowered, strings.ToLower(k))
	}
	if len(lowered) == 0 {
		return []collector.ScrapedContent{}
	}
	out := filter(a.cache.all(), func(it collector.ScrapedContent) bool {
		return matchesAny(it, lowered)
	})
	processor.SortByRelevance(out)
	return out
}

func matchesAny(it collector.ScrapedContent, lowered []string) bool {
	title := strings.ToLower(it.Title)
	desc := strings.ToLower(it.Description)
	for _, k := range lowered {
		if strings.Contains(title, k) || strings.Contains(desc, k) {
			return true
		}
		for _, tag := range it.Tags {
			if strings.Contains(strings.ToLower(tag), k) {
				return true
			}
		}
	}
	return false
}

func filter(items []collector.ScrapedContent, keep func(collector.ScrapedContent) bool) []collector.ScrapedContent {
	out := make([]collector.ScrapedContent, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func trend(cur, prev int) string {
	switch {
	case cur > prev:
		return TrendUp
	case cur < prev:
		return TrendDown
	default:
		return TrendStable
	}
}
