package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postureguard/internal/api"
	"postureguard/internal/config"
	"postureguard/internal/ingest"
	"postureguard/internal/logging"
	"postureguard/internal/model"
	"postureguard/internal/session"
	"postureguard/internal/snapshot"
	"postureguard/internal/storage"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to config file (json or yaml)")
	logLevel := flag.String("log-level", "", "override log level")
	logFormat := flag.String("log-format", "json", "log format: json or text")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("postureguard", version)
		return
	}

	var cfgManager *config.Manager
	if *configPath != "" {
		m, err := config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintln(os.Stderr, "config error:", err)
			os.Exit(1)
		}
		cfgManager = m
	} else {
		cfgManager = config.NewManagerFromConfig(config.DefaultConfig())
	}
	cfg := cfgManager.Get()

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logger := logging.NewLogger(level, *logFormat)
	logger.Info("starting", "version", version, "config", *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if store != nil {
		initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
		err := store.Init(initCtx)
		initCancel()
		if err != nil {
			logger.Error("storage schema init failed", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("storage enabled", "driver", cfg.Storage.Driver)
	}

	var publisher snapshot.Publisher
	if cfg.Snapshot.Redis.Enabled {
		redisPub := snapshot.NewRedisPublisher(cfg.Snapshot.Redis)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisPub.Ping(pingCtx)
		pingCancel()
		if err != nil {
			logger.Warn("redis unreachable, snapshots stay local", "addr", cfg.Snapshot.Redis.Addr, "err", err)
		} else {
			publisher = redisPub
			defer redisPub.Close()
			logger.Info("redis snapshot publishing enabled", "addr", cfg.Snapshot.Redis.Addr)
		}
	}

	snapshots := snapshot.NewStore(cfg.Snapshot.StoreLimit)
	sessions := session.NewManager(cfgManager, logger, store, snapshots, publisher)

	buffer := cfg.Ingest.ChannelBuffer
	if buffer <= 0 {
		buffer = 1024
	}
	readings := make(chan model.Reading, buffer)

	sessions.Start(ctx, readings)
	ingest.StartREST(ctx, cfgManager, readings, logger)
	ingest.StartTCPStream(ctx, cfgManager, readings, logger)
	ingest.StartKafka(ctx, cfgManager, readings, logger)
	ingest.StartMQTT(ctx, cfgManager, readings, logger)
	ingest.StartReplay(ctx, cfgManager, readings, logger)
	api.Start(ctx, cfgManager, sessions, snapshots, logger, version)

	if *configPath != "" {
		stop := make(chan struct{})
		defer close(stop)
		go cfgManager.Watch(3*time.Second,
			func(next *config.Config) {
				logger.Info("config reloaded", "path", *configPath)
				sessions.UpdateReminderConfig(next.Reminders)
			},
			func(err error) {
				logger.Warn("config reload failed", "err", err)
			},
			stop,
		)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutting down", "signal", sig.String())
	cancel()
	time.Sleep(200 * time.Millisecond)
}
