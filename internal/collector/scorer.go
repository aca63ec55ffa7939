package collector

import "strings"

const (
	scoreSaturation = 10.0
	maxTags         = 5
)

// Scorer 使用两张互相独立的表：相关度关键词与标签词表
type Scorer struct {
	keywords []string // 已转小写
	tags     []string
}

func NewScorer(keywords, tags []string) *Scorer {
	s := &Scorer{}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			s.keywords = append(s.keywords, k)
		}
	}
	for _, t := range tags {
		if strings.TrimSpace(t) != "" {
			s.tags = append(s.tags, t)
		}
	}
	return s
}

// Score 返回 min(加权命中数/10, 1) 以及按词表顺序最多 5 个标签。
// 含空格的多词关键词权重为 2，单词为 1。
func (s *Scorer) Score(text string) (float64, []string) {
	lower := strings.ToLower(text)

	sum := 0
	for _, k := range s.keywords {
		n := strings.Count(lower, k)
		if n == 0 {
			continue
		}
		w := 1
		if strings.ContainsAny(k, " \t") {
			w = 2
		}
		sum += n * w
	}
	score := min(float64(sum)/scoreSaturation, 1.0)

	tags := make([]string, 0, maxTags)
	for _, t := range s.tags {
		if len(tags) == maxTags {
			break
		}
		if strings.Contains(lower, strings.ToLower(t)) {
			tags = append(tags, t)
		}
	}
	return score, tags
}
