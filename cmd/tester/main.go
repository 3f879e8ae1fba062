// udpswitch-tester is the companion traffic generator (C9): it opens a
// set of routes on a running switch over the control channel, primes and
// drives a numbered UDP packet pattern through them, then tears the
// routes back down.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/dantte-lp/udpswitch/internal/control"
	"github.com/dantte-lp/udpswitch/internal/nic"
	"github.com/dantte-lp/udpswitch/internal/route"
	"github.com/dantte-lp/udpswitch/internal/tester"
	"github.com/dantte-lp/udpswitch/internal/worker"
)

const (
	defaultRoutes  = 3840
	defaultPackets = 9999
	defaultSeconds = 99
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	args := flag.Args()
	if len(args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: tester <control-ip> <interface> <forward-ip> <mac> [<routes> [<packets> [<seconds>]]]")
		return 2
	}

	controlIP, ifaceName, forwardIPArg, macArg := args[0], args[1], args[2], args[3]

	numRoutes, err := intArg(args, 4, defaultRoutes)
	if err != nil {
		logger.Error("invalid routes argument", slog.String("error", err.Error()))
		return 2
	}
	packets, err := intArg(args, 5, defaultPackets)
	if err != nil {
		logger.Error("invalid packets argument", slog.String("error", err.Error()))
		return 2
	}
	seconds, err := intArg(args, 6, defaultSeconds)
	if err != nil {
		logger.Error("invalid seconds argument", slog.String("error", err.Error()))
		return 2
	}

	forwardIP, err := parseIPv4(forwardIPArg)
	if err != nil {
		logger.Error("invalid forward-ip", slog.String("error", err.Error()))
		return 1
	}
	forwardMAC, err := net.ParseMAC(macArg)
	if err != nil || len(forwardMAC) != 6 {
		logger.Error("invalid mac", slog.String("mac", macArg))
		return 1
	}
	var switchMAC [6]byte
	copy(switchMAC[:], forwardMAC)

	if err := runTester(logger, controlIP, ifaceName, forwardIP, switchMAC, numRoutes, uint64(packets), seconds); err != nil {
		logger.Error("tester exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("tester stopped")
	return 0
}

func runTester(logger *slog.Logger, controlIP, ifaceName string, forwardIP [4]byte, forwardMAC [6]byte, numRoutes int, packets uint64, seconds int) error {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", controlIP, route.ControlPort))
	if err != nil {
		return fmt.Errorf("dial control channel: %w", err)
	}
	defer conn.Close()

	group, err := nic.NewGroup(nic.GroupConfig{
		Interface:     ifaceName,
		GroupID:       1,
		BucketCount:   512,
		RingFrameSize: 2048,
	})
	if err != nil {
		return fmt.Errorf("configure nic group: %w", err)
	}

	workerCount := runtime.NumCPU() - 2
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > numRoutes {
		workerCount = numRoutes
	}

	stop := make(chan struct{})
	defer close(stop)

	queues := make([]*nic.Queue, workerCount)
	for i := range queues {
		q, err := group.RegisterWithRetry(nic.QueueConfig{QueueID: i}, stop)
		if err != nil {
			return fmt.Errorf("register tester queue %d: %w", i, err)
		}
		queues[i] = q
	}
	selfMAC := queues[0].MAC()
	self := route.Endpoint{IP: forwardIP, MAC: selfMAC}
	switchEP := route.Endpoint{IP: forwardIP, MAC: forwardMAC}

	// Open every route on the switch: each forwards back to this tester's
	// own fast-path identity, so the generator observes its own traffic.
	testerRoutes := make([]tester.Route, numRoutes)
	for i := 0; i < numRoutes; i++ {
		poa := route.PortOffset + i
		dst := route.Endpoint{Port: poa, IP: self.IP, MAC: self.MAC}
		testerRoutes[i] = tester.Route{POA: poa, Dst: dst}

		msg := route.OpenMessage(poa, dst)
		body, err := msg.Encode()
		if err != nil {
			return fmt.Errorf("encode open message for poa %d: %w", poa, err)
		}
		if err := control.WriteFrame(conn, body); err != nil {
			return fmt.Errorf("send open message for poa %d: %w", poa, err)
		}
	}

	partitions := partitionRoutes(testerRoutes, workerCount)

	counters := tester.NewCounters(numRoutes)
	generators := make([]*tester.Generator, workerCount)
	tasks := make([]worker.Task, workerCount)
	for i, q := range queues {
		g := tester.NewGenerator(i, q, self, switchEP, partitions[i], packets, counters, logger)
		generators[i] = g
		tasks[i] = g
	}

	mon := worker.NewMonitor(tasks)
	for i, g := range generators {
		g.BindHandle(worker.NewHandle(mon, i))
	}

	mon.Start()

	for _, g := range generators {
		g.Prime()
	}

	logger.Info("tester running", slog.Int("routes", numRoutes), slog.Uint64("packets", packets), slog.Int("seconds", seconds))
	time.Sleep(time.Duration(seconds) * time.Second)

	mon.Stop()

	if err := tester.Stop(conn, testerRoutes); err != nil {
		return fmt.Errorf("send stop sequence: %w", err)
	}

	snap := counters.Snapshot()
	var totalDrop uint64
	for _, d := range snap.Drop {
		totalDrop += d
	}
	logger.Info("tester summary", slog.Uint64("total_drop", totalDrop))

	return nil
}

// partitionRoutes stripes routes round-robin across workerCount generator
// workers (spec §5: "tester substitutes packet workers for forward
// workers" — the same per-core ownership split, just over route slots
// instead of NIC buckets).
func partitionRoutes(routes []tester.Route, workerCount int) [][]tester.Route {
	parts := make([][]tester.Route, workerCount)
	for i, rt := range routes {
		w := i % workerCount
		parts[w] = append(parts[w], rt)
	}
	return parts
}

func intArg(args []string, idx, def int) (int, error) {
	if idx >= len(args) {
		return def, nil
	}
	return strconv.Atoi(args[idx])
}

func parseIPv4(s string) ([4]byte, error) {
	var out [4]byte
	ip := net.ParseIP(s)
	if ip == nil {
		return out, fmt.Errorf("parse ip %q", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return out, fmt.Errorf("ip %q is not IPv4", s)
	}
	copy(out[:], v4)
	return out, nil
}
