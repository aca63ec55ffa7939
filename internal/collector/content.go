package collector

import "time"

// SelectorSet 为每个可抽取字段指定一个 CSS 选择器
type SelectorSet struct {
	Title       string
	Description string
	Content     string
	Image       string
	PublishedAt string
}

// ContentSource 描述一个外部站点，启动时加载一次，之后不再修改
type ContentSource struct {
	Name      string
	BaseURL   string
	Category  string
	Selectors SelectorSet
}

// ScrapedContent 是采集到的一篇文章
type ScrapedContent struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Content        string    `json:"content"`
	URL            string    `json:"url"`
	Image          string    `json:"image,omitempty"`
	PublishedAt    time.Time `json:"publishedAt"`
	Source         string    `json:"source"`
	Category       string    `json:"category"`
	Tags           []string  `json:"tags"`
	RelevanceScore float64   `json:"relevanceScore"`
}

// Clone 返回不共享切片的副本
func (c ScrapedContent) Clone() ScrapedContent {
	out := c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	return out
}

const (
	maxTitleRunes       = 200
	maxDescriptionRunes = 500
	maxContentRunes     = 2000
)

// truncateRunes 按 rune 截断，避免切坏多字节字符
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
