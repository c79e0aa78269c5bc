// The console binary is the operator console core for coordinated
// drone / ground-vehicle survey missions. It mirrors the coordination
// service's state, merges pushed telemetry from both vehicles, derives the
// safety and guidance signals, and journals the session.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/groundlink/console/internal/api"
	"github.com/groundlink/console/internal/config"
	"github.com/groundlink/console/internal/coord"
	"github.com/groundlink/console/internal/dispatcher"
	"github.com/groundlink/console/internal/handlers"
	"github.com/groundlink/console/internal/influx"
	"github.com/groundlink/console/internal/instruction"
	"github.com/groundlink/console/internal/intake"
	"github.com/groundlink/console/internal/journal"
	"github.com/groundlink/console/internal/liveness"
	"github.com/groundlink/console/internal/logging"
	"github.com/groundlink/console/internal/monitor"
	"github.com/groundlink/console/internal/notify"
	intOtel "github.com/groundlink/console/internal/otel"
	"github.com/groundlink/console/internal/safety"
	"github.com/groundlink/console/internal/telemetry"
	"github.com/groundlink/console/internal/waypoint"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   string = "0.1.0"
	BuildDate string = "unknown"

	AppName string = "console"
)

func main() {
	configDir := flag.String("config", ".", "directory containing console.cfg.json")
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	sessionStart := time.Now()

	// Bootstrap logging to stdout until the log file is open.
	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, AppName, sessionStart)
	var logWriter io.Writer
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		logger.Error("Failed to create/open log file, continuing on stdout", "error", err, "path", logPath)
	} else {
		defer logFile.Close()
		logWriter = logFile
	}

	var otelProvider *intOtel.Provider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		otelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logWriter,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialize OTel provider", "error", err)
			otelProvider = nil
		}
	}
	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		otelLogProvider = otelProvider.LoggerProvider()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelProvider.Shutdown(ctx)
		}()
	}

	var extraHandlers []slog.Handler
	if config.GetBool("graylog.enabled") {
		addr := config.GetString("graylog.address")
		gelfWriter, gerr := gelf.NewWriter(addr)
		if gerr != nil {
			logger.Warn("Graylog writer unavailable", "address", addr, "error", gerr)
		} else {
			extraHandlers = append(extraHandlers,
				logging.NewGelfHandler(gelfWriter, slog.LevelInfo, AppName))
		}
	}

	// The reconciler exists later; the provider tolerates the gap.
	var reconciler *coord.Reconciler
	slogManager.Context = func() []slog.Attr {
		if reconciler == nil {
			return nil
		}
		return []slog.Attr{slog.String("phase", reconciler.State().Phase().String())}
	}

	slogManager.Setup(logWriter, config.GetString("logLevel"), otelLogProvider, extraHandlers...)
	logger = slogManager.Logger()
	logger.Info("Console starting", "version", Version, "buildDate", BuildDate, "logPath", logPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub(logger)
	defer hub.Close()

	store := telemetry.NewStore()
	tracker := waypoint.NewTracker(config.GetFloat("mission.arrivalThresholdM"))

	backend, err := journal.NewBackend(config.GetJournalConfig(), logger)
	if err != nil {
		return fmt.Errorf("creating journal backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing journal backend: %w", err)
	}
	defer backend.Close()

	var influxManager *influx.Manager
	if config.GetBool("influx.enabled") {
		zl := zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
		influxManager = influx.NewManager(zl, filepath.Join(logsDir, "influx_backup.log.gzip"))
		if err := influxManager.Connect(); err != nil {
			logger.Warn("InfluxDB unavailable, trend sampling disabled", "error", err)
			influxManager = nil
		} else {
			defer influxManager.Close()
		}
	}

	client := api.New(
		config.GetString("server.baseUrl"),
		config.GetDurationMs("server.requestTimeoutMs"),
	)

	reconciler = coord.New(coord.Config{
		PollInterval:  config.GetDurationMs("poll.intervalMs"),
		ClearDelay:    config.GetDurationMs("mission.surveyClearDelayMs"),
		PendingExpiry: config.GetDurationMs("poll.pendingExpiryMs"),
	}, coord.Dependencies{
		Client:   client,
		Logger:   logger,
		Notifier: hub,
		Recorder: backend,
		OnMissionClear: func() {
			store.Get(telemetry.KindDrone).ClearMission()
			store.Get(telemetry.KindCar).ClearMission()
			tracker.Clear()
			logger.Info("Mission waypoint data cleared after completed survey")
		},
	})
	defer reconciler.Close()

	frameDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	handlers.NewManager(handlers.Dependencies{
		Store:      store,
		Tracker:    tracker,
		Reconciler: reconciler,
		Journal:    backend,
		Influx:     influxManager,
		Logger:     logger,
	}).RegisterHandlers(frameDispatcher)

	live := liveness.NewMonitor(
		store,
		config.GetDurationMs("vehicles.connectionTimeoutMs"),
		config.GetDurationMs("liveness.checkIntervalMs"),
		func(kind telemetry.Kind, connected bool) {
			if jerr := backend.RecordConnectionTransition(string(kind), connected); jerr != nil {
				logger.Warn("failed to journal connectivity transition",
					"vehicle", string(kind), "error", jerr)
			}
		},
		logger,
	)
	go live.Run(ctx)

	wsBase := config.GetString("server.websocketUrl")
	backoffBase := config.GetDurationMs("reconnect.baseDelayMs")
	backoffMax := config.GetDurationMs("reconnect.maxDelayMs")

	var sockets []*intake.Socket
	for _, kind := range []telemetry.Kind{telemetry.KindDrone, telemetry.KindCar} {
		kind := kind
		socket := intake.New(intake.Config{
			URL:         fmt.Sprintf("%s/%s", wsBase, kind),
			Vehicle:     kind,
			BackoffBase: backoffBase,
			BackoffMax:  backoffMax,
			// Session over: back to defaults so the view shows "no data"
			// rather than stale last-known values.
			OnSessionEnd: func() {
				store.Get(kind).Reset()
			},
		}, frameDispatcher, hub, logger)
		socket.Start()
		sockets = append(sockets, socket)
	}
	defer func() {
		for _, socket := range sockets {
			if cerr := socket.Close(); cerr != nil {
				logger.Warn("error closing websocket", "error", cerr)
			}
		}
	}()

	monitorService := monitor.NewService(monitor.Config{
		Interval: config.GetDurationMs("liveness.checkIntervalMs"),
		Thresholds: safety.Thresholds{
			WarningMeters: config.GetFloat("safety.warningThresholdM"),
			DangerMeters:  config.GetFloat("safety.dangerThresholdM"),
		},
		Guidance: instruction.Config{
			StraightToleranceDeg: config.GetFloat("guidance.straightToleranceDeg"),
			StationarySpeed:      config.GetFloat("guidance.stationarySpeed"),
			ComfortMinSpeed:      config.GetFloat("guidance.comfortMinSpeed"),
			ComfortMaxSpeed:      config.GetFloat("guidance.comfortMaxSpeed"),
		},
	}, monitor.Dependencies{
		Store:      store,
		Liveness:   live,
		Reconciler: reconciler,
		Tracker:    tracker,
		Notifier:   hub,
		Influx:     influxManager,
		Logger:     logger,
	})
	go monitorService.Run(ctx)

	logger.Info("Console running", "server", config.GetString("server.baseUrl"))

	<-ctx.Done()
	logger.Info("Shutting down")

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := slogManager.Flush(flushCtx); err != nil {
		logger.Warn("log flush failed", "error", err)
	}
	return nil
}
