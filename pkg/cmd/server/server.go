package server

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/lucaswhitaker22/specracer-engine-go/log"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/config"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/db/postgres"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/messaging"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/race"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/recovery"
	carrepos "github.com/lucaswhitaker22/specracer-engine-go/pkg/repository/car"
	trackrepos "github.com/lucaswhitaker22/specracer-engine-go/pkg/repository/track"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/service"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/store"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/utils"
)

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the race engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer()
		},
	}
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogConfig,
		"log-config",
		"",
		"path to a logger config file with filter rules")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().StringVar(&config.TickInterval,
		"tick-interval",
		"100ms",
		"duration of one simulation tick")
	cmd.Flags().StringVar(&config.SnapshotInterval,
		"snapshot-interval",
		"10s",
		"interval between automatic race snapshots")
	cmd.Flags().StringVar(&config.SnapshotTTL,
		"snapshot-ttl",
		"1h",
		"expiry for stored snapshots")
	cmd.Flags().IntVar(&config.SnapshotMaxCount,
		"snapshot-max-count",
		recovery.DefaultMaxSnapshots,
		"max number of snapshots kept per race")
	cmd.Flags().IntVar(&config.MaxParticipants,
		"max-participants",
		race.DefaultMaxParticipants,
		"max number of participants per race")
	return cmd
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

//nolint:funlen,cyclop // by design
func startServer() error {
	if config.LogConfig != "" {
		if cfg, err := log.LoadConfig(config.LogConfig); err == nil {
			if config.LogLevel == "" {
				config.LogLevel = cfg.DefaultLevel
			}
		} else {
			fmt.Fprintf(os.Stderr, "could not load log config %s: %v\n",
				config.LogConfig, err)
		}
	}
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	log.ResetDefault(logger)

	log.Debug("Config:",
		log.String("db", config.DB),
		log.String("natsUrl", config.NatsURL),
		log.String("tickInterval", config.TickInterval),
		log.String("snapshotInterval", config.SnapshotInterval),
	)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	waitForRequiredServices()

	log.Info("Starting server")
	pool, err := postgres.InitWithURL(config.DB, postgres.WithQueryTracer(logger))
	if err != nil {
		log.Error("server could not be started", log.ErrorField(err))
		return err
	}
	defer pool.Close()

	nc, err := nats.Connect(config.NatsURL)
	if err != nil {
		log.Error("could not connect to NATS", log.ErrorField(err))
		return err
	}
	defer nc.Close()

	kv := store.NewMemoryStore()
	coordinator := recovery.NewCoordinator(kv,
		service.NewRelationalRaceSource(pool),
		recovery.WithSnapshotInterval(
			parseDuration(config.SnapshotInterval, recovery.DefaultSnapshotInterval)),
		recovery.WithSnapshotTTL(
			parseDuration(config.SnapshotTTL, recovery.DefaultSnapshotTTL)),
		recovery.WithMaxSnapshots(config.SnapshotMaxCount))

	raceService := service.NewRaceService(
		kv,
		coordinator,
		messaging.NewNatsBroadcaster(nc),
		carrepos.NewCatalog(pool),
		trackrepos.NewCatalog(pool),
		service.WithRaceOptions(
			race.WithTickInterval(parseDuration(config.TickInterval, 100*time.Millisecond)),
			race.WithMaxParticipants(config.MaxParticipants)))

	log.Info("Server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	v := <-sigChan
	log.Debug("Got signal ", log.Any("signal", v))
	raceService.Shutdown(context.Background())
	log.Info("Server terminated")
	return nil
}

// waits until the database and NATS accept tcp connections
func waitForRequiredServices() {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("invalid duration value. using default",
			log.String("value", config.WaitForServices))
		timeout = 15 * time.Second
	}
	wg := sync.WaitGroup{}
	checkTCP := func(addr string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := utils.WaitForTCP(addr, timeout); err != nil {
				log.Error("required service not ready", log.String("addr", addr))
			}
		}()
	}
	if config.DB != "" {
		checkTCP(utils.ExtractFromDBURL(config.DB))
	}
	if config.NatsURL != "" {
		checkTCP(utils.ExtractFromNatsURL(config.NatsURL))
	}
	wg.Wait()
}
