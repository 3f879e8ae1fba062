package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/dantte-lp/udpswitch/internal/route"
)

// CommandLine carries the values showAcceptedConnection needs to print
// ready-to-paste tester/driver invocations on each accepted connection,
// since none of them are recoverable from the TCP connection itself.
type CommandLine struct {
	// Interface is the NIC the switch is bound to.
	Interface string
	// ForwardIP is the switch's own forwarding address, as seen by testers.
	ForwardIP [4]byte
	// ForwardMAC is the negotiated forward MAC (nic.Queue.MAC()).
	ForwardMAC [6]byte
}

// Server is the control channel (C6, spec §4.6): a single-consumer-at-a-time
// TCP listener that decodes framed JSON route commands and applies them to
// a route.Table.
type Server struct {
	table   *route.Table
	cmdLine CommandLine
	logger  *slog.Logger
}

// NewServer constructs a control server bound to table. info is used only
// for the accept-time command-line log line.
func NewServer(table *route.Table, info CommandLine, logger *slog.Logger) *Server {
	return &Server{
		table:   table,
		cmdLine: info,
		logger:  logger.With(slog.String("component", "control")),
	}
}

// ListenAndServe binds addr and runs Serve on it until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("control: listen on %s: %w", addr, err)
	}
	defer ln.Close()

	s.logger.Info("control channel listening", slog.String("addr", ln.Addr().String()))

	return s.Serve(ctx, ln)
}

// Serve processes control connections accepted from ln until ctx is
// canceled or ln.Accept fails. Connections are handled one at a time (spec
// §4.6: "the control channel accepts exactly one connection at a time");
// once a connection's session ends (graceful shutdown frame or
// disconnect), Serve accepts the next one, so a long-running switch
// process can survive across multiple driver invocations.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("control: accept: %w", err)
		}

		s.showAcceptedConnection(conn)

		n, err := s.handleConnection(conn)
		if err != nil && !errors.Is(err, io.EOF) {
			s.logger.Warn("control session ended with error",
				slog.String("remote", conn.RemoteAddr().String()),
				slog.Int("routes_applied", n),
				slog.String("error", err.Error()))
			continue
		}

		s.logger.Info("control session complete",
			slog.String("remote", conn.RemoteAddr().String()),
			slog.Int("routes_applied", n))
	}
}

// handleConnection runs the per-connection frame loop (spec §4.6): each
// frame is a JSON route.Message; a zero-length frame is the
// graceful-shutdown sentinel and ends the session cleanly; a malformed
// body is logged and skipped without dropping the connection; any I/O
// error (including EOF mid-frame) is a hard disconnect. It returns the
// number of route commands applied.
func (s *Server) handleConnection(conn net.Conn) (int, error) {
	defer conn.Close()

	applied := 0
	for {
		body, err := ReadFrame(conn)
		if err != nil {
			return applied, err
		}
		if body == nil {
			return applied, nil
		}

		msg, err := route.DecodeMessage(body)
		if err != nil {
			s.logger.Warn("malformed control message, skipping",
				slog.String("remote", conn.RemoteAddr().String()),
				slog.String("error", err.Error()))
			continue
		}

		if err := msg.Apply(s.table); err != nil {
			s.logger.Warn("control message rejected",
				slog.Int("from", msg.From),
				slog.String("error", err.Error()))
			continue
		}

		applied++
	}
}

// showAcceptedConnection logs ready-to-paste tester and driver command
// lines on each accepted connection.
func (s *Server) showAcceptedConnection(conn net.Conn) {
	host, _, _ := net.SplitHostPort(conn.LocalAddr().String())
	fwd := s.cmdLine.ForwardIP
	mac := net.HardwareAddr(s.cmdLine.ForwardMAC[:])

	s.logger.Info("control connection accepted",
		slog.String("remote", conn.RemoteAddr().String()),
		slog.String("example_tester", fmt.Sprintf(
			"tester %s %s %d.%d.%d.%d %s",
			host, s.cmdLine.Interface, fwd[0], fwd[1], fwd[2], fwd[3], mac)),
		slog.String("example_driver", fmt.Sprintf(
			"driver %s < routes.json", host)))
}
