package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vehicle-remote/internal/api"
	"vehicle-remote/internal/bridge"
	"vehicle-remote/internal/config"
	"vehicle-remote/internal/core"
	"vehicle-remote/internal/hardware"
	"vehicle-remote/internal/logger"
	"vehicle-remote/internal/messaging"
	"vehicle-remote/internal/storage"
)

func main() {
	var configPath, logLevel, transport string
	flag.StringVar(&configPath, "config", "", "Path to the YAML config file")
	flag.StringVar(&logLevel, "log", "", "Log level override (none, error, warn, info, debug)")
	flag.StringVar(&transport, "transport", "", "Transport override (redis, mqtt, serial, sim)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if transport != "" {
		cfg.Transport.Kind = transport
		if err := cfg.Validate(); err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(2)
		}
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	stdLogger, logCloser := logger.NewStdLogger(os.Stdout, logger.FileOptions{
		Filename:   cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer logCloser.Close()

	l := logger.NewLogger(stdLogger, level)
	l.Infof("Starting vehicle remote (transport=%s, mode=%s)...", cfg.Transport.Kind, cfg.Bridge.Mode)

	client := messaging.NewClient(cfg.Transport, l.WithTag("Transport"))

	opts, err := sessionOptions(cfg, client)
	if err != nil {
		l.Fatalf("Invalid configuration: %v", err)
	}

	var journal *storage.Journal
	if cfg.Journal.Path != "" {
		journal, err = storage.Open(cfg.Journal.Path, cfg.Journal.MaxCommands)
		if err != nil {
			l.Fatalf("Failed to open journal: %v", err)
		}
		defer journal.Close()
		opts.Journal = journal
	}

	if cfg.Panel.Enabled {
		opts.Panel = hardware.NewGPIOPanel(hardware.PanelLines{
			Chip:           cfg.Panel.Chip,
			EStop:          cfg.Panel.EStopLine,
			Indicator:      cfg.Panel.IndicatorLine,
			EStopActiveLow: cfg.Panel.EStopActiveLow,
			Debounce:       cfg.Panel.Debounce,
		}, l.WithTag("Panel"))
	}

	session, err := core.NewSession(opts, l)
	if err != nil {
		l.Fatalf("Failed to create session: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Init(ctx); err != nil {
		l.Fatalf("Failed to initialize session: %v", err)
	}
	if err := session.Start(ctx); err != nil {
		l.Fatalf("Failed to start session: %v", err)
	}
	l.Infof("Session %s running", session.ID())

	if opts.Mode == bridge.ModePull {
		go pollLoop(ctx, session.Bridge(), cfg.Bridge.PollInterval)
	}

	var server *api.Server
	if cfg.HTTP.Addr != "" {
		var cmdLog api.CommandLog
		if journal != nil {
			cmdLog = journal
		}
		server = api.NewServer(cfg.HTTP.Addr, session, cmdLog, l.WithTag("API"))
		go func() {
			if err := server.Start(); err != nil {
				l.Errorf("HTTP server failed: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		l.Infof("Received signal %v, shutting down...", sig)
	case <-session.Done():
		l.Warnf("Session ended: %v", session.Err())
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			l.Warnf("HTTP shutdown: %v", err)
		}
		shutdownCancel()
	}
	if err := session.Stop(); err != nil {
		l.Errorf("Stop: %v", err)
	}
	l.Infof("Shutdown complete")
}

// sessionOptions maps the config onto session options. Panel and journal
// are attached by the caller.
func sessionOptions(cfg config.Config, client core.NetworkClient) (core.Options, error) {
	mode, err := bridge.ParseMode(cfg.Bridge.Mode)
	if err != nil {
		return core.Options{}, fmt.Errorf("invalid bridge mode: %w", err)
	}
	return core.Options{
		Client:      client,
		Transport:   cfg.Transport.Kind,
		Mode:        mode,
		SendTimeout: cfg.Transport.CommandTimeout,
	}, nil
}

// pollLoop promotes staged state for subscribers in pull mode.
func pollLoop(ctx context.Context, reader core.StateReader, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reader.Poll()
		}
	}
}
