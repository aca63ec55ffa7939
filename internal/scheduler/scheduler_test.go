package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/EdNewsHub/internal/aggregator"
	"github.com/LJTian/EdNewsHub/internal/collector"
)

type fakeUpdater struct {
	calls atomic.Int32
	err   error
	ran   chan struct{}
}

func (f *fakeUpdater) RunAutomatedUpdate(context.Context) ([]collector.ScrapedContent, error) {
	f.calls.Add(1)
	if f.ran != nil {
		select {
		case f.ran <- struct{}{}:
		default:
		}
	}
	return nil, f.err
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewRejectsInvalidSpec(t *testing.T) {
	if _, err := New("not a cron spec", &fakeUpdater{}, quiet()); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
}

func TestRunOnceTreatsInProgressAsSkip(t *testing.T) {
	u := &fakeUpdater{err: aggregator.ErrUpdateInProgress}
	s, err := New("0 * * * *", u, quiet())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce = %v, want nil for in-progress", err)
	}
	if u.calls.Load() != 1 {
		t.Fatalf("updater calls = %d", u.calls.Load())
	}
}

func TestRunOnceReturnsOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	s, err := New("0 * * * *", &fakeUpdater{err: boom}, quiet())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("RunOnce = %v, want boom", err)
	}
}

func TestStartRunsFirstCycleAfterDelay(t *testing.T) {
	u := &fakeUpdater{ran: make(chan struct{}, 1)}
	s, err := New("0 0 1 1 *", u, quiet(), WithStartupDelay(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	defer s.Stop()

	select {
	case <-u.ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("first cycle did not run after startup delay")
	}
}

func TestStopBeforeStartupDelaySkipsFirstCycle(t *testing.T) {
	u := &fakeUpdater{}
	s, err := New("0 0 1 1 *", u, quiet(), WithStartupDelay(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	<-s.Stop().Done()

	time.Sleep(150 * time.Millisecond)
	if n := u.calls.Load(); n != 0 {
		t.Fatalf("first cycle ran %d times after Stop", n)
	}
}

type panicUpdater struct {
	entered chan struct{}
}

func (p *panicUpdater) RunAutomatedUpdate(context.Context) ([]collector.ScrapedContent, error) {
	close(p.entered)
	panic("selector table corrupted")
}

func TestStartupCycleRecoversPanic(t *testing.T) {
	u := &panicUpdater{entered: make(chan struct{})}
	s, err := New("0 0 1 1 *", u, quiet(), WithStartupDelay(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()

	select {
	case <-u.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first cycle did not run")
	}
	select {
	case <-s.Stop().Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not finish after a panicking first cycle")
	}
}

type blockingUpdater struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingUpdater) RunAutomatedUpdate(context.Context) ([]collector.ScrapedContent, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}

func TestStopWaitsForRunningFirstCycle(t *testing.T) {
	u := &blockingUpdater{entered: make(chan struct{}), release: make(chan struct{})}
	s, err := New("0 0 1 1 *", u, quiet(), WithStartupDelay(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	<-u.entered

	done := s.Stop()
	select {
	case <-done.Done():
		t.Fatalf("Stop returned before the first cycle finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(u.release)
	select {
	case <-done.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not finish after the first cycle returned")
	}
}
