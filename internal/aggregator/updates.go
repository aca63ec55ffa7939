package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/LJTian/EdNewsHub/internal/collector"
	"github.com/LJTian/EdNewsHub/internal/processor"
)

const defaultQueueLimit = 1000

// ContentUpdate 是待下游处理的一条新内容
type ContentUpdate struct {
	ID        string                   `json:"id"`
	Content   collector.ScrapedContent `json:"content"`
	Timestamp time.Time                `json:"timestamp"`
	Processed bool                     `json:"processed"`
}

// SeenSet 记录已经入队过的内容 ID。Add 返回 true 表示首次出现。
type SeenSet interface {
	Add(ctx context.Context, id string) (bool, error)
}

// Publisher 把待处理的更新投递到下游
type Publisher interface {
	Publish(ctx context.Context, updates []ContentUpdate) error
}

// MemorySeenSet 是进程内的 SeenSet，重启后清空
type MemorySeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemorySeenSet() *MemorySeenSet {
	return &MemorySeenSet{ids: make(map[string]struct{})}
}

func (m *MemorySeenSet) Add(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[id]; ok {
		return false, nil
	}
	m.ids[id] = struct{}{}
	return true, nil
}

// updateQueue 有界队列，超出上限时丢弃最旧的条目
type updateQueue struct {
	mu    sync.Mutex
	items []ContentUpdate
	limit int
}

func (q *updateQueue) push(u ContentUpdate) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, u)
	if len(q.items) > q.limit {
		q.items = q.items[len(q.items)-q.limit:]
		return true
	}
	return false
}

func (q *updateQueue) pending() []ContentUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []ContentUpdate
	for _, u := range q.items {
		if !u.Processed {
			u.Content = u.Content.Clone()
			out = append(out, u)
		}
	}
	return out
}

func (q *updateQueue) mark(ids []string) int {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for i := range q.items {
		if _, ok := want[q.items[i].ID]; ok && !q.items[i].Processed {
			q.items[i].Processed = true
			n++
		}
	}
	return n
}

// PendingUpdates 返回尚未处理的更新（副本）
func (a *Aggregator) PendingUpdates() []ContentUpdate {
	return a.queue.pending()
}

// MarkProcessed 把给定 ID 标记为已处理，返回实际标记的条数
func (a *Aggregator) MarkProcessed(ids ...string) int {
	return a.queue.mark(ids)
}

// enqueue 为从未见过的内容生成 ContentUpdate；SeenSet 出错时按新内容处理
func (a *Aggregator) enqueue(ctx context.Context, items []collector.ScrapedContent) int {
	now := a.now().UTC()
	added := 0
	for _, it := range items {
		id := processor.ContentID(it)
		isNew, err := a.seen.Add(ctx, id)
		if err != nil {
			a.logger.Warn("seen set unavailable, enqueue anyway", "id", id, "error", err)
			isNew = true
		}
		if !isNew {
			continue
		}
		if a.queue.push(ContentUpdate{ID: id, Content: it.Clone(), Timestamp: now}) {
			a.logger.Debug("update queue full, dropped oldest")
		}
		added++
	}
	return added
}

// drain 把待处理更新交给 Publisher，成功后标记为已处理；失败则保留待下一轮
func (a *Aggregator) drain(ctx context.Context) {
	if a.publisher == nil {
		return
	}
	pending := a.queue.pending()
	if len(pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if err := a.publisher.Publish(ctx, pending); err != nil {
		a.logger.Warn("publish updates failed", "count", len(pending), "error", err)
		return
	}
	ids := make([]string, len(pending))
	for i, u := range pending {
		ids[i] = u.ID
	}
	a.logger.Info("published updates", "count", a.queue.mark(ids))
}
