// Package worker implements the per-worker forward loop (C4), the TAP
// bridge (C5), and the process/thread monitor (C8) of spec §4.4, §4.5,
// §4.8: a fixed cohort of goroutines, each pinned to one NIC queue or the
// TAP device, started and stopped synchronously through a shared alert
// protocol.
package worker

import (
	"sync"
)

// Task is anything the monitor can start and stop: a forward worker or the
// TAP bridge worker (spec §4.8's "worker handle").
type Task interface {
	// Index is this task's position in the cohort, used for per-worker
	// counters and log attribution.
	Index() int

	// Run executes the task's loop until it observes its own alert flag
	// set via ShouldStop, then performs its own cleanup and returns.
	Run()
}

// member tracks one cohort task's alert flag, protected by the owning
// Monitor's mutex (spec §4.8: "one mutex M, one condvar C, and for each
// worker a boolean alert").
type member struct {
	task  Task
	alert bool
}

// Monitor is the process/thread monitor of spec §4.8: it drives the
// start/stop handshake for a worker cohort using a single mutex and
// condition variable shared by every member's alert flag.
type Monitor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	members []*member
	wg      sync.WaitGroup
}

// NewMonitor builds a Monitor for the given cohort of tasks.
func NewMonitor(tasks []Task) *Monitor {
	m := &Monitor{
		members: make([]*member, len(tasks)),
	}
	m.cond = sync.NewCond(&m.mu)
	for i, t := range tasks {
		m.members[i] = &member{task: t}
	}
	return m
}

// Start launches every cohort member and blocks until each has
// acknowledged (cleared its own alert) — spec §4.8's start cohort: "set
// every target worker's alert = true, spawn each worker; broadcast C; wait
// while any target worker has alert == true."
func (m *Monitor) Start() {
	m.mu.Lock()
	for _, mem := range m.members {
		mem.alert = true
	}
	for _, mem := range m.members {
		m.wg.Add(1)
		go func(mem *member) {
			defer m.wg.Done()
			mem.task.Run()
		}(mem)
	}
	m.cond.Broadcast()

	for m.anyAlertLocked() {
		m.cond.Wait()
	}
	m.mu.Unlock()
}

// Stop signals every cohort member to exit and blocks until each has
// exited and been joined — spec §4.8's stop cohort.
func (m *Monitor) Stop() {
	m.mu.Lock()
	for _, mem := range m.members {
		mem.alert = true
	}
	m.cond.Broadcast()

	for m.anyAlertLocked() {
		m.cond.Wait()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Monitor) anyAlertLocked() bool {
	for _, mem := range m.members {
		if mem.alert {
			return true
		}
	}
	return false
}

// acknowledge clears a member's own alert flag under the monitor's mutex
// and broadcasts, per spec §4.8's "worker's own entry pattern is clear
// alert under M, broadcast, release" — used for both the start
// acknowledgment and the stop/exit acknowledgment, since alert serves
// double duty (§4.8: "a single transition per phase").
func (m *Monitor) acknowledge(index int) {
	m.mu.Lock()
	m.members[index].alert = false
	m.cond.Broadcast()
	m.mu.Unlock()
}

// shouldStop reports the current value of a member's alert flag. Tasks
// poll this once per loop iteration (spec §4.4 step 1's suspension point;
// spec §5: "workers must observe it within one packet poll cycle").
func (m *Monitor) shouldStop(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[index].alert
}

// Handle is passed to a Task's constructor so it can poll for shutdown and
// acknowledge both lifecycle transitions without reaching into Monitor's
// internals.
type Handle struct {
	monitor *Monitor
	index   int
}

// NewHandle returns the Handle for cohort member index. Call after
// NewMonitor, before Start.
func NewHandle(m *Monitor, index int) Handle {
	return Handle{monitor: m, index: index}
}

// ShouldStop reports whether this worker has been alerted to stop.
func (h Handle) ShouldStop() bool {
	return h.monitor.shouldStop(h.index)
}

// AckStart clears this worker's alert flag to signal it is running (spec
// §4.8's start acknowledgment). Call once, immediately on loop entry.
func (h Handle) AckStart() {
	h.monitor.acknowledge(h.index)
}

// AckStop clears this worker's alert flag to signal it has exited and
// cleaned up (spec §4.8's "worker exit" acknowledgment). Call once,
// immediately before Run returns.
func (h Handle) AckStop() {
	h.monitor.acknowledge(h.index)
}
