package worker_test

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dantte-lp/udpswitch/internal/worker"
)

type fakeTask struct {
	index   int
	handle  worker.Handle
	running atomic.Bool
}

func (f *fakeTask) Index() int { return f.index }

func (f *fakeTask) Run() {
	f.running.Store(true)
	f.handle.AckStart()
	for !f.handle.ShouldStop() {
		runtime.Gosched()
	}
	f.running.Store(false)
	f.handle.AckStop()
}

func newCohort(n int) (*worker.Monitor, []*fakeTask) {
	tasks := make([]worker.Task, n)
	fakes := make([]*fakeTask, n)
	for i := 0; i < n; i++ {
		fakes[i] = &fakeTask{index: i}
		tasks[i] = fakes[i]
	}
	mon := worker.NewMonitor(tasks)
	for i, f := range fakes {
		f.handle = worker.NewHandle(mon, i)
	}
	return mon, fakes
}

// TestStartAllAcknowledge covers spec §8 scenario S5: starting a cohort
// blocks until every worker has acknowledged (cleared its own alert).
func TestStartAllAcknowledge(t *testing.T) {
	t.Parallel()

	mon, fakes := newCohort(4)
	mon.Start()

	for _, f := range fakes {
		if !f.running.Load() {
			t.Fatalf("worker %d not running after Start returned", f.index)
		}
	}

	mon.Stop()
}

// TestStopJoinsEveryWorker covers spec §8 invariant 7: shutdown
// termination — after Stop, every worker has cleared its alert and
// exited.
func TestStopJoinsEveryWorker(t *testing.T) {
	t.Parallel()

	mon, fakes := newCohort(8)
	mon.Start()
	mon.Stop()

	for _, f := range fakes {
		if f.running.Load() {
			t.Fatalf("worker %d still running after Stop returned", f.index)
		}
	}
}

// TestStopIsBounded asserts Stop does not hang waiting on a single slow
// worker indefinitely under normal conditions (smoke test, not a strict
// timing guarantee).
func TestStopIsBounded(t *testing.T) {
	t.Parallel()

	mon, _ := newCohort(2)
	mon.Start()

	done := make(chan struct{})
	go func() {
		mon.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return within 5s")
	}
}
