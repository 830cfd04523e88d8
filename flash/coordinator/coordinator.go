// Package coordinator implements the Multi-Gateway Coordinator (C9): it
// starts one Flasher per gateway, polls their progress, and aggregates
// completion into a single pass/fail result (§4.9).
package coordinator

import (
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/modi-tools/fw-updater/flash/progress"
	"github.com/modi-tools/fw-updater/multierror"
)

// MaxGateways is the hard cap on concurrently-driven gateways (§4.9).
const MaxGateways = 10

const pollInterval = 100 * time.Millisecond

// Task is one gateway's update run: Run drives it to completion and
// returns its final snapshot; Progress is safe to call concurrently from
// the Coordinator's poller while Run is in flight (grounded on the
// teacher's migrateProjects/migrateProj worker-per-item pattern in
// mos/update/update.go, generalized from "one project" to "one gateway").
type Task interface {
	Run() progress.Snapshot
	Progress() progress.Snapshot
}

// Coordinator drives a fixed set of gateway Tasks in parallel.
type Coordinator struct {
	tasks []Task
}

// New builds a Coordinator for tasks, one per gateway. It is an error to
// pass more than MaxGateways.
func New(tasks []Task) (*Coordinator, error) {
	if len(tasks) > MaxGateways {
		return nil, errors.Errorf("%d gateways exceeds the %d-gateway cap", len(tasks), MaxGateways)
	}
	return &Coordinator{tasks: tasks}, nil
}

// ProgressUpdate is delivered to the onProgress callback on every poll
// tick: the per-gateway snapshots and the overall mean-percent completion.
type ProgressUpdate struct {
	Snapshots []progress.Snapshot
	Overall   float64
}

// Run starts every Task's Flasher on its own goroutine, polls all of them
// at pollInterval calling onProgress, and blocks until every task reaches
// a terminal phase. It returns a multierror.Error aggregating every failed
// task's error_text, or nil if all tasks succeeded.
func (c *Coordinator) Run(onProgress func(ProgressUpdate)) error {
	n := len(c.tasks)
	finals := make([]progress.Snapshot, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i, task := range c.tasks {
		i, task := i, task
		go func() {
			defer wg.Done()
			finals[i] = task.Run()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			if onProgress != nil {
				onProgress(c.snapshotUpdate(finals))
			}
			return c.aggregate(finals)
		case <-ticker.C:
			if onProgress != nil {
				onProgress(c.pollUpdate())
			}
		}
	}
}

func (c *Coordinator) pollUpdate() ProgressUpdate {
	snaps := make([]progress.Snapshot, len(c.tasks))
	for i, task := range c.tasks {
		snaps[i] = task.Progress()
	}
	return c.snapshotUpdate(snaps)
}

func (c *Coordinator) snapshotUpdate(snaps []progress.Snapshot) ProgressUpdate {
	total := 0.0
	for _, s := range snaps {
		total += s.Percent()
	}
	overall := 0.0
	if len(snaps) > 0 {
		overall = total / float64(len(snaps))
	}
	return ProgressUpdate{Snapshots: append([]progress.Snapshot(nil), snaps...), Overall: overall}
}

func (c *Coordinator) aggregate(finals []progress.Snapshot) error {
	var err error
	for _, s := range finals {
		if s.Phase == progress.Failed {
			err = multierror.Append(err, errors.New(s.ErrorText))
		}
	}
	return err
}
