package processor

import (
	"sort"
	"time"

	"github.com/LJTian/EdNewsHub/internal/collector"
	"github.com/google/uuid"
)

// QualityThresholds 是进入缓存的最低门槛，均为严格大于
type QualityThresholds struct {
	MinRelevance         float64
	MinTitleLength       int
	MinDescriptionLength int
	MinContentLength     int
}

func DefaultThresholds() QualityThresholds {
	return QualityThresholds{
		MinRelevance:         0.3,
		MinTitleLength:       20,
		MinDescriptionLength: 50,
		MinContentLength:     100,
	}
}

// Pass 判断单条内容是否满足全部门槛；长度按字符（rune）计
func (q QualityThresholds) Pass(it collector.ScrapedContent) bool {
	return it.RelevanceScore > q.MinRelevance &&
		runeLen(it.Title) > q.MinTitleLength &&
		runeLen(it.Description) > q.MinDescriptionLength &&
		runeLen(it.Content) > q.MinContentLength
}

// FilterQuality 保留满足门槛的内容，顺序不变
func FilterQuality(items []collector.ScrapedContent, q QualityThresholds) []collector.ScrapedContent {
	out := make([]collector.ScrapedContent, 0, len(items))
	for _, it := range items {
		if q.Pass(it) {
			out = append(out, it)
		}
	}
	return out
}

// RecencyScore 按发布时间距 now 的小时数分档
func RecencyScore(publishedAt, now time.Time) float64 {
	hours := now.Sub(publishedAt).Hours()
	switch {
	case hours <= 24:
		return 1.0
	case hours <= 48:
		return 0.8
	case hours <= 72:
		return 0.6
	case hours <= 168:
		return 0.4
	default:
		return 0.2
	}
}

// LengthScore 按正文长度分档
func LengthScore(content string) float64 {
	n := runeLen(content)
	switch {
	case n > 1500:
		return 1.0
	case n > 1000:
		return 0.8
	case n > 500:
		return 0.6
	case n > 200:
		return 0.4
	default:
		return 0.2
	}
}

// CompositeScore = 0.4*相关度 + 0.3*时效 + 0.3*长度
func CompositeScore(it collector.ScrapedContent, now time.Time) float64 {
	return 0.4*it.RelevanceScore + 0.3*RecencyScore(it.PublishedAt, now) + 0.3*LengthScore(it.Content)
}

// Rank 按综合得分降序排序（稳定排序，同分保持原顺序），返回新切片
func Rank(items []collector.ScrapedContent, now time.Time) []collector.ScrapedContent {
	type scored struct {
		item  collector.ScrapedContent
		score float64
	}
	tmp := make([]scored, len(items))
	for i, it := range items {
		tmp[i] = scored{item: it, score: CompositeScore(it, now)}
	}
	sort.SliceStable(tmp, func(i, j int) bool { return tmp[i].score > tmp[j].score })

	out := make([]collector.ScrapedContent, len(tmp))
	for i, s := range tmp {
		out[i] = s.item
	}
	return out
}

// SortByRelevance 按相关度降序（稳定）原地排序
func SortByRelevance(items []collector.ScrapedContent) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].RelevanceScore > items[j].RelevanceScore
	})
}

var contentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ednewshub/content"))

// ContentID 由 URL + 标题 + 发布时间生成稳定 ID，同一内容多次采集得到同一个 ID
func ContentID(it collector.ScrapedContent) string {
	base := it.URL + it.Title + it.PublishedAt.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(contentNamespace, []byte(base)).String()
}

func runeLen(s string) int {
	return len([]rune(s))
}
