package coordinator

import (
	"sync"
	"testing"

	"github.com/modi-tools/fw-updater/flash/progress"
)

type fakeTask struct {
	mu   sync.Mutex
	snap progress.Snapshot
	run  func(set func(progress.Snapshot)) progress.Snapshot
}

func (f *fakeTask) Progress() progress.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeTask) Run() progress.Snapshot {
	final := f.run(func(s progress.Snapshot) {
		f.mu.Lock()
		f.snap = s
		f.mu.Unlock()
	})
	f.mu.Lock()
	f.snap = final
	f.mu.Unlock()
	return final
}

func TestNewRejectsTooManyGateways(t *testing.T) {
	tasks := make([]Task, MaxGateways+1)
	for i := range tasks {
		tasks[i] = &fakeTask{run: func(set func(progress.Snapshot)) progress.Snapshot {
			return progress.Snapshot{Phase: progress.Done, TotalUnits: 1, CompletedUnits: 1}
		}}
	}
	if _, err := New(tasks); err == nil {
		t.Fatal("expected an error for more than MaxGateways tasks")
	}
}

func TestRunAggregatesSuccessAndFailure(t *testing.T) {
	ok := &fakeTask{run: func(set func(progress.Snapshot)) progress.Snapshot {
		return progress.Snapshot{Phase: progress.Done, TotalUnits: 1, CompletedUnits: 1}
	}}
	bad := &fakeTask{run: func(set func(progress.Snapshot)) progress.Snapshot {
		return progress.Snapshot{Phase: progress.Failed, ErrorText: "boom"}
	}}
	c, err := New([]Task{ok, bad})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var lastUpdate ProgressUpdate
	runErr := c.Run(func(u ProgressUpdate) { lastUpdate = u })
	if runErr == nil {
		t.Fatal("expected an aggregate error because one task failed")
	}
	if lastUpdate.Overall != 50 {
		t.Errorf("Overall = %v, want 50 (one task at 100%%, one failed at 0%%)", lastUpdate.Overall)
	}
}
