package aggregator

import (
	"context"
	"errors"
	"testing"

	"github.com/LJTian/EdNewsHub/internal/collector"
	"github.com/LJTian/EdNewsHub/internal/processor"
)

type recordingPublisher struct {
	batches [][]ContentUpdate
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, updates []ContentUpdate) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, updates)
	return nil
}

func TestUpdatesEnqueuedOncePerContentID(t *testing.T) {
	src := collector.ContentSource{Name: "S"}
	items := []collector.ScrapedContent{goodItem("S", "u1"), goodItem("S", "u2")}
	a := newStubAggregator(t, []collector.ContentSource{src},
		stubDiscoverer{urls: map[string][]string{"S": {"u"}}},
		stubScraper{items: map[string][]collector.ScrapedContent{"S": items}})

	for i := 0; i < 2; i++ {
		if _, err := a.RunAutomatedUpdate(context.Background()); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	pending := a.PendingUpdates()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2 (second cycle must not re-enqueue)", len(pending))
	}
	if pending[0].ID != processor.ContentID(items[0]) {
		t.Fatalf("update id = %q, want content id", pending[0].ID)
	}

	if n := a.MarkProcessed(pending[0].ID, "unknown"); n != 1 {
		t.Fatalf("MarkProcessed = %d, want 1", n)
	}
	if left := a.PendingUpdates(); len(left) != 1 || left[0].ID != pending[1].ID {
		t.Fatalf("pending after mark = %+v", left)
	}
}

func TestPublisherDrainsQueue(t *testing.T) {
	src := collector.ContentSource{Name: "S"}
	pub := &recordingPublisher{err: errors.New("broker down")}
	a, err := New(Options{
		Sources:    []collector.ContentSource{src},
		Discoverer: stubDiscoverer{urls: map[string][]string{"S": {"u"}}},
		Scraper:    stubScraper{items: map[string][]collector.ScrapedContent{"S": {goodItem("S", "u1")}}},
		Publisher:  pub,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := a.RunAutomatedUpdate(context.Background()); err != nil {
		t.Fatalf("RunAutomatedUpdate: %v", err)
	}
	if len(a.PendingUpdates()) != 1 {
		t.Fatalf("failed publish should leave update pending")
	}

	pub.err = nil
	if _, err := a.RunAutomatedUpdate(context.Background()); err != nil {
		t.Fatalf("RunAutomatedUpdate: %v", err)
	}
	if len(pub.batches) != 1 || len(pub.batches[0]) != 1 {
		t.Fatalf("published batches = %+v", pub.batches)
	}
	if len(a.PendingUpdates()) != 0 {
		t.Fatalf("published updates should be marked processed")
	}
}

func TestUpdateQueueDropsOldest(t *testing.T) {
	q := &updateQueue{limit: 2}
	q.push(ContentUpdate{ID: "a"})
	q.push(ContentUpdate{ID: "b"})
	if dropped := q.push(ContentUpdate{ID: "c"}); !dropped {
		t.Fatalf("expected drop when over limit")
	}
	p := q.pending()
	if len(p) != 2 || p[0].ID != "b" || p[1].ID != "c" {
		t.Fatalf("pending = %+v", p)
	}
}

func TestMemorySeenSet(t *testing.T) {
	s := NewMemorySeenSet()
	ctx := context.Background()
	if ok, _ := s.Add(ctx, "x"); !ok {
		t.Fatalf("first add should be new")
	}
	if ok, _ := s.Add(ctx, "x"); ok {
		t.Fatalf("second add should not be new")
	}
}
