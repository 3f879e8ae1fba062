// udpswitch-switch is the switch daemon (C1-C8): it binds a NIC fanout
// group, starts one forward worker per core plus the TAP bridge, and
// serves the control channel and Prometheus metrics endpoint until
// signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/udpswitch/internal/control"
	"github.com/dantte-lp/udpswitch/internal/metrics"
	"github.com/dantte-lp/udpswitch/internal/nic"
	"github.com/dantte-lp/udpswitch/internal/route"
	"github.com/dantte-lp/udpswitch/internal/swconfig"
	appversion "github.com/dantte-lp/udpswitch/internal/version"
	"github.com/dantte-lp/udpswitch/internal/worker"
)

// shutdownTimeout bounds how long the HTTP servers are given to drain
// on graceful shutdown.
const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: switch <forward-ip> <interface>")
		return 2
	}
	forwardIPArg, ifaceName := flag.Arg(0), flag.Arg(1)

	cfg, err := swconfig.Load(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(swconfig.ParseLogLevel(cfg.Log.Level))
	logger := newLogger(cfg.Log.Format, logLevel)

	logger.Info("udpswitch-switch starting",
		slog.String("version", appversion.Version),
		slog.String("interface", ifaceName),
		slog.String("forward_ip", forwardIPArg))

	forwardIP, err := parseIPv4(forwardIPArg)
	if err != nil {
		logger.Error("invalid forward-ip", slog.String("error", err.Error()))
		return 1
	}

	if err := runSwitch(cfg, forwardIP, ifaceName, logger); err != nil {
		logger.Error("udpswitch-switch exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("udpswitch-switch stopped")
	return 0
}

// runSwitch builds the NIC fanout group, worker cohort, control server and
// metrics endpoint, then blocks until a termination signal arrives,
// draining everything in turn on the way out.
func runSwitch(cfg *swconfig.Config, forwardIP [4]byte, ifaceName string, logger *slog.Logger) error {
	group, err := nic.NewGroup(nic.GroupConfig{
		Interface:     ifaceName,
		GroupID:       cfg.NIC.FanoutGroupID,
		BucketCount:   cfg.NIC.BucketCount,
		RingFrameSize: cfg.NIC.RingFrameSize,
	})
	if err != nil {
		return fmt.Errorf("configure nic group: %w", err)
	}

	workerCount := runtime.NumCPU() - 2
	if workerCount < 1 {
		workerCount = 1
	}

	stop := make(chan struct{})
	defer close(stop)

	forwardQueues := make([]*nic.Queue, workerCount)
	for i := range forwardQueues {
		q, err := group.RegisterWithRetry(nic.QueueConfig{QueueID: i}, stop)
		if err != nil {
			return fmt.Errorf("register forward queue %d: %w", i, err)
		}
		forwardQueues[i] = q
	}
	tapSendQueue, err := group.RegisterWithRetry(nic.QueueConfig{QueueID: workerCount}, stop)
	if err != nil {
		return fmt.Errorf("register tap send queue: %w", err)
	}

	group.ConfigureBuckets(cfg.NIC.BucketCount, 0, workerCount)

	forwardMAC := forwardQueues[0].MAC()

	tapDev, err := nic.OpenTAP(cfg.TAP.Name)
	if err != nil {
		return fmt.Errorf("open tap device %q: %w", cfg.TAP.Name, err)
	}
	defer tapDev.Close()

	table := route.NewTable()

	// Counters are owned by the worker that increments them: each forward
	// worker and the TAP bridge get their own slot, indexed by Task.Index(),
	// so the metrics collector can report per-worker, per-route series
	// instead of collapsing the whole cohort into one shared counter set.
	counters := make([]*worker.Counters, workerCount+1)
	for i := range counters {
		counters[i] = worker.NewCounters()
	}

	forwardWorkers := make([]*worker.ForwardWorker, workerCount)
	for i, q := range forwardQueues {
		forwardWorkers[i] = worker.NewForwardWorker(i, q, tapDev, table, forwardMAC, counters[i], logger)
	}
	tapBridge := worker.NewTAPBridge(workerCount, tapDev, tapSendQueue, counters[workerCount], logger)

	tasks := make([]worker.Task, 0, workerCount+1)
	for _, fw := range forwardWorkers {
		tasks = append(tasks, fw)
	}
	tasks = append(tasks, tapBridge)

	mon := worker.NewMonitor(tasks)
	for i, fw := range forwardWorkers {
		fw.BindHandle(worker.NewHandle(mon, i))
	}
	tapBridge.BindHandle(worker.NewHandle(mon, workerCount))

	mon.Start()
	defer mon.Stop()

	controlIP, err := firstNonLoopbackIPv4()
	if err != nil {
		return fmt.Errorf("resolve control ip: %w", err)
	}

	ctrlSrv := control.NewServer(table, control.CommandLine{
		Interface:  ifaceName,
		ForwardIP:  forwardIP,
		ForwardMAC: forwardMAC,
	}, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(counters))
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	controlAddr := fmt.Sprintf("%s:%d", controlIP, route.ControlPort)
	g.Go(func() error {
		return ctrlSrv.ListenAndServe(gCtx, controlAddr)
	})

	var lc net.ListenConfig
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr), slog.String("path", cfg.Metrics.Path))
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(metricsSrv, logger)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

func gracefulShutdown(metricsSrv *http.Server, logger *slog.Logger) error {
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg swconfig.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newLogger(format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// firstNonLoopbackIPv4 resolves the switch's own control-plane address,
// per spec's "listens ... on the first non-loopback local IPv4".
func firstNonLoopbackIPv4() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("enumerate local addresses: %w", err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("no non-loopback IPv4 address found")
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
