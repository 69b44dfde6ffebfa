package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/climate-zones/internal/climate"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func (f *fakeRunner) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeRunner) RunArchive(context.Context, []climate.Zone, time.Time, time.Time) ([]climate.ZoneSeries, error) {
	f.record("archive")
	return nil, nil
}

func (f *fakeRunner) RunMonthly(context.Context, []climate.Zone, []int) (climate.MonthlyReport, error) {
	f.record("monthly")
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
	return climate.MonthlyReport{Rows: 1}, nil
}

func TestRunOnceOrder(t *testing.T) {
	r := &fakeRunner{}
	s := New(Job{Zones: []climate.Zone{{Label: "a"}}, Years: []int{2020}, Monthly: true}, time.Hour, r, nil)

	s.RunOnce(context.Background())
	if len(r.calls) != 2 || r.calls[0] != "archive" || r.calls[1] != "monthly" {
		t.Fatalf("expected archive then monthly, got %v", r.calls)
	}
}

func TestRunOnceWithoutMonthly(t *testing.T) {
	r := &fakeRunner{}
	s := New(Job{Zones: []climate.Zone{{Label: "a"}}}, time.Hour, r, nil)

	s.RunOnce(context.Background())
	if len(r.calls) != 1 || r.calls[0] != "archive" {
		t.Fatalf("expected archive only, got %v", r.calls)
	}
}

func TestStartRunsImmediately(t *testing.T) {
	done := make(chan struct{})
	r := &fakeRunner{done: done}
	s := New(Job{Zones: []climate.Zone{{Label: "a"}}, Years: []int{2020}, Monthly: true}, time.Hour, r, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run after start")
	}
}
