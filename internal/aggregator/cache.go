package aggregator

import (
	"sort"
	"sync"

	"github.com/LJTian/EdNewsHub/internal/collector"
)

// cache 以数据源名称为键保存该源最近一次成功采集的内容。
// 每个槽位整体替换，读者只会看到旧列表或新列表。
type cache struct {
	mu    sync.RWMutex
	order []string
	slots map[string][]collector.ScrapedContent
}

func newCache(sources []collector.ContentSource) *cache {
	c := &cache{slots: make(map[string][]collector.ScrapedContent)}
	for _, s := range sources {
		c.order = append(c.order, s.Name)
	}
	return c
}

func (c *cache) set(source string, items []collector.ScrapedContent) {
	cp := make([]collector.ScrapedContent, len(items))
	for i, it := range items {
		cp[i] = it.Clone()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.known(source) {
		c.order = append(c.order, source)
	}
	c.slots[source] = cp
}

// restore 批量写入快照；未在配置中出现的源按名称排序追加
func (c *cache) restore(slots map[string][]collector.ScrapedContent) int {
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)

	n := 0
	for _, name := range names {
		c.set(name, slots[name])
		n += len(slots[name])
	}
	return n
}

func (c *cache) known(source string) bool {
	for _, s := range c.order {
		if s == source {
			return true
		}
	}
	return false
}

// all 按源顺序展开全部内容，返回副本
func (c *cache) all() []collector.ScrapedContent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []collector.ScrapedContent
	for _, name := range c.order {
		for _, it := range c.slots[name] {
			out = append(out, it.Clone())
		}
	}
	return out
}

func (c *cache) slot(source string) []collector.ScrapedContent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := c.slots[source]
	out := make([]collector.ScrapedContent, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
