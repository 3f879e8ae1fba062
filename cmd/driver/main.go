// udpswitch-driver is the control-channel CLI client (C6's other end): it
// reads route JSON records from stdin, one multi-line block at a time,
// and streams each as a framed control message to a running switch.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/udpswitch/internal/control"
	"github.com/dantte-lp/udpswitch/internal/route"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "driver <control-ip> [<port>]",
		Short: "Stream route commands from stdin to a running switch's control channel",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runDriver,

		SilenceUsage:  true,
		SilenceErrors: true,
	}
	return cmd
}

func runDriver(_ *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	controlIP := args[0]
	port := route.ControlPort
	if len(args) == 2 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[1], err)
		}
		port = p
	}

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", controlIP, port))
	if err != nil {
		return fmt.Errorf("dial control channel: %w", err)
	}
	defer conn.Close()

	applied, err := stream(os.Stdin, conn, logger)
	if err != nil {
		return fmt.Errorf("stream route commands: %w", err)
	}

	if err := control.WriteShutdown(conn); err != nil {
		return fmt.Errorf("send shutdown sentinel: %w", err)
	}

	logger.Info("driver finished", slog.Int("routes_sent", applied))
	return nil
}

// stream decodes successive JSON objects from r (spec §6: "one record per
// multi-line block matching the JSON format above") and forwards each as a
// framed control message on conn. It returns the number of records sent.
func stream(r io.Reader, conn net.Conn, logger *slog.Logger) (int, error) {
	dec := json.NewDecoder(bufio.NewReader(r))

	sent := 0
	for {
		var msg route.Message
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return sent, nil
			}
			return sent, fmt.Errorf("decode route record %d: %w", sent+1, err)
		}

		body, err := msg.Encode()
		if err != nil {
			return sent, err
		}
		if err := control.WriteFrame(conn, body); err != nil {
			return sent, err
		}

		logger.Info("sent route command", slog.Int("from", msg.From), slog.Int("port", msg.Port))
		sent++
	}
}
