// Command vehicle-cli is an interactive console for a vehicle session.
// It reads one command per line from stdin and prints the vehicle state
// whenever it changes.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"vehicle-remote/internal/api"
	"vehicle-remote/internal/bridge"
	"vehicle-remote/internal/config"
	"vehicle-remote/internal/core"
	"vehicle-remote/internal/logger"
	"vehicle-remote/internal/messaging"
	"vehicle-remote/internal/types"
)

const help = `commands:
  drive <direction>     forward, backward, left, right, stop, forward-left, ...
  speed <0-100>
  aeb on|off
  park start|cancel
  auth <secret>
  fault reset|estop
  status
  quit`

func main() {
	var configPath, logLevel string
	var sim bool
	flag.StringVar(&configPath, "config", "", "Path to the YAML config file")
	flag.StringVar(&logLevel, "log", "warn", "Log level (none, error, warn, info, debug)")
	flag.BoolVar(&sim, "sim", false, "Use the built-in simulated controller")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	l := logger.NewLogger(log.New(os.Stderr, "", log.Ltime|log.Lmsgprefix), level)

	if sim {
		cfg.Transport.Kind = config.TransportSim
	}
	client := messaging.NewClient(cfg.Transport, l)

	session, err := core.NewSession(core.Options{
		Client:      client,
		Transport:   cfg.Transport.Kind,
		Mode:        bridge.ModePull,
		SendTimeout: cfg.Transport.CommandTimeout,
	}, l)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	if err := session.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start failed: %v\n", err)
		os.Exit(1)
	}
	defer session.Stop()

	go watch(ctx, session.Bridge(), cfg.Bridge.PollInterval, os.Stdout)

	fmt.Println(help)
	run(ctx, session, os.Stdin, os.Stdout)
}

// watch prints the state each time a poll observes a new sequence number.
func watch(ctx context.Context, reader core.StateReader, interval time.Duration, out io.Writer) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, seq := reader.Poll()
			if seq != last {
				last = seq
				fmt.Fprintln(out, formatState(st))
			}
		}
	}
}

func run(ctx context.Context, session *core.Session, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit", "q":
			return
		case "help", "?":
			fmt.Fprintln(out, help)
			continue
		case "status":
			st, _ := session.Bridge().Snapshot()
			fmt.Fprintln(out, formatState(st))
			continue
		}

		intent, err := api.ParseLine(line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := session.Send(ctx, intent); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, "ok")
	}
}

func formatState(st types.VehicleState) string {
	aeb := "off"
	if st.AebEnabled {
		aeb = "on"
	}
	return fmt.Sprintf("[%d] dir=%s speed=%d%% aeb=%s park=%s/%d%% proximity=%dcm",
		st.LastUpdateSeq, st.Direction, st.SpeedPercent, aeb,
		st.AutoPark.Phase, st.AutoPark.Percent, st.ProximityCm)
}
