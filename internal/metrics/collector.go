// Package metrics adapts the Prometheus client exposed by the switch
// process (SPEC_FULL.md's Metrics section): per-worker,
// per-route recv/send/drop counters, a NIC status-code histogram, and a
// TAP forwarded-frame counter, sourced from internal/worker.Counters at
// scrape time.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dantte-lp/udpswitch/internal/nic"
	"github.com/dantte-lp/udpswitch/internal/worker"
)

const (
	namespace = "udpswitch"
	subsystem = "forward"
)

// Collector implements prometheus.Collector by reading a slice of
// worker.Counters at scrape time, one entry per worker (every
// ForwardWorker plus the TAPBridge, indexed by worker.Task.Index()),
// rather than mirroring them into a separate CounterVec: the underlying
// counters are already monotonic, process-lifetime atomics, so there is
// nothing to accumulate here beyond translating them into
// prometheus.Metric values on demand.
type Collector struct {
	counters []*worker.Counters

	recvDesc   *prometheus.Desc
	sendDesc   *prometheus.Desc
	dropDesc   *prometheus.Desc
	statusDesc *prometheus.Desc
	tapDesc    *prometheus.Desc
}

// NewCollector builds a Collector reading from counters, one entry per
// worker. Call prometheus.Registerer.MustRegister with the result to
// expose it.
func NewCollector(counters []*worker.Counters) *Collector {
	return &Collector{
		counters: counters,
		recvDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "route_recv_total"),
			"Total UDP-for-me frames accepted per worker and route.",
			[]string{"worker", "route"}, nil),
		sendDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "route_send_total"),
			"Total frames successfully transmitted per worker and route.",
			[]string{"worker", "route"}, nil),
		dropDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "route_drop_total"),
			"Total frames dropped per worker and route (closed route or send error).",
			[]string{"worker", "route"}, nil),
		statusDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "nic_status_total"),
			"Total NIC queue poll results by worker and status code.",
			[]string{"worker", "status"}, nil),
		tapDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "tap_forwarded_total"),
			"Total non-UDP-for-me frames spilled to the TAP device, by worker.",
			[]string{"worker"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.recvDesc
	ch <- c.sendDesc
	ch <- c.dropDesc
	ch <- c.statusDesc
	ch <- c.tapDesc
}

// Collect implements prometheus.Collector: it snapshots every worker's
// live counters and emits one metric per nonzero worker/route or
// worker/status pair, keeping cardinality down on a table with
// thousands of slots that are mostly closed.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for i, wc := range c.counters {
		if wc == nil {
			continue
		}
		worker := strconv.Itoa(i)
		snap := wc.Snapshot()

		for r, recv := range snap.Recv {
			send, drop := snap.Send[r], snap.Drop[r]
			if recv == 0 && send == 0 && drop == 0 {
				continue
			}
			route := strconv.Itoa(r)
			ch <- prometheus.MustNewConstMetric(c.recvDesc, prometheus.CounterValue, float64(recv), worker, route)
			ch <- prometheus.MustNewConstMetric(c.sendDesc, prometheus.CounterValue, float64(send), worker, route)
			ch <- prometheus.MustNewConstMetric(c.dropDesc, prometheus.CounterValue, float64(drop), worker, route)
		}

		for code := nic.StatusOK; int(code) < len(snap.Status); code++ {
			if count := snap.Status[code]; count != 0 {
				ch <- prometheus.MustNewConstMetric(c.statusDesc, prometheus.CounterValue, float64(count), worker, code.String())
			}
		}

		if snap.Tap != 0 {
			ch <- prometheus.MustNewConstMetric(c.tapDesc, prometheus.CounterValue, float64(snap.Tap), worker)
		}
	}
}
