package collector

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// RawFields 是单个页面抽取出的原始字段，尚未校验
type RawFields struct {
	Title       string
	Description string
	Content     string
	Image       string
	PublishedAt time.Time
}

// Extractor 按 SelectorSet 从文档树中抽取字段
type Extractor struct {
	logger *slog.Logger
	stats  *Stats
	now    func() time.Time
}

func NewExtractor(logger *slog.Logger, stats *Stats) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger, stats: stats, now: time.Now}
}

// Extract 不会失败：选择器为空或未命中时字段为空串。
// pageURL 为实际抓取的页面地址，用于解析相对图片地址。
func (e *Extractor) Extract(doc *goquery.Document, sel SelectorSet, pageURL string) RawFields {
	fields := RawFields{
		Title:       e.text(doc, sel.Title, "title", pageURL),
		Description: e.text(doc, sel.Description, "description", pageURL),
		Content:     e.text(doc, sel.Content, "content", pageURL),
	}

	if img := e.attr(doc, sel.Image, "src"); img != "" {
		if abs, ok := ResolveURL(img, pageURL); ok {
			fields.Image = abs
		}
	}

	fields.PublishedAt = e.ParseDate(e.dateText(doc, sel.PublishedAt))
	return fields
}

// ParseDate 尝试解析任意常见日期格式，失败时回退为当前时间（UTC）
func (e *Extractor) ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			return t.UTC()
		}
	}
	e.stats.incDateFallbacks()
	e.logger.Debug("date fallback to now", "raw", raw)
	return e.now().UTC()
}

func (e *Extractor) text(doc *goquery.Document, selector, field, pageURL string) string {
	if selector == "" {
		return ""
	}
	s := doc.Find(selector).First()
	if s.Length() == 0 {
		e.stats.incSelectorMisses()
		e.logger.Debug("selector miss", "field", field, "selector", selector, "url", pageURL)
		return ""
	}
	return collapseSpace(s.Text())
}

func (e *Extractor) attr(doc *goquery.Document, selector, name string) string {
	if selector == "" {
		return ""
	}
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// 优先使用 <time datetime="..."> 这类机器可读属性
func (e *Extractor) dateText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	s := doc.Find(selector).First()
	if v, ok := s.Attr("datetime"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return collapseSpace(s.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ResolveURL 按 RFC 3986 以 base 为参照把 ref 解析成绝对地址；
// 已经是绝对地址的原样返回。
func ResolveURL(ref, base string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if r.IsAbs() {
		return ref, true
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return "", false
	}
	return b.ResolveReference(r).String(), true
}
