// Package main is the CLI entry point for seccamd.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Murasan201/entry-security-cam-pi/internal/api"
	"github.com/Murasan201/entry-security-cam-pi/internal/buffer"
	"github.com/Murasan201/entry-security-cam-pi/internal/config"
	"github.com/Murasan201/entry-security-cam-pi/internal/daemon"
	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
	"github.com/Murasan201/entry-security-cam-pi/internal/infra"
	"github.com/Murasan201/entry-security-cam-pi/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

const (
	sourceV4L2      = "v4l2"
	sourceSynthetic = "synthetic"
)

var (
	configPath string
	envFile    string
	sourceKind string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "seccamd [device-index]",
	Short: "Event-triggered security camera recorder",
	Long: `seccamd continuously buffers camera footage and persists a pre/post-event
window whenever a person is detected. Detection runs at a capped cadence so
slow inference never stalls capture; saves happen off the capture path.

The single optional argument selects the capture device (default 0).`,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("seccamd %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	},
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Print the currently resolved recording destination",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, envFile)
		if err != nil {
			return err
		}
		logger := zap.NewNop()
		resolver := infra.NewRemovableStorageResolver(cfg.StorageRoots, cfg.LocalDir, logger)
		dest, err := resolver.Resolve()
		if err != nil {
			return fmt.Errorf("no writable destination: %w", err)
		}
		fmt.Println(dest)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to dotenv file")
	rootCmd.Flags().StringVar(&sourceKind, "source", sourceV4L2, "Frame source (v4l2 or synthetic)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(storageCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		idx, err := strconv.Atoi(args[0])
		if err != nil || idx < 0 {
			return fmt.Errorf("invalid device index %q", args[0])
		}
		cfg.DeviceIndex = idx
	}

	logger := createLogger(cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	logger.Info("seccamd starting",
		zap.String("version", Version),
		zap.Int("device_index", cfg.DeviceIndex),
		zap.String("source", sourceKind),
		zap.String("detector_mode", cfg.DetectorMode))

	if others, err := infra.FindOtherInstances("seccamd"); err == nil && len(others) > 0 {
		logger.Warn("another seccamd appears to be running",
			zap.Int32s("pids", others))
	}

	// Event sinks: structured log always, MQTT when a broker is set.
	var events domain.EventSink = infra.NewZapEventSink(logger)
	var mqttSink *infra.MQTTEventSink
	if cfg.MQTTBroker != "" {
		mqttSink, err = infra.NewMQTTEventSink(cfg.MQTTBroker, cfg.MQTTTopic, logger)
		if err != nil {
			logger.Warn("mqtt sink unavailable, continuing without it", zap.Error(err))
		} else {
			defer mqttSink.Close()
			events = infra.NewFanOutSink(events, mqttSink)
		}
	}

	// A destination must exist at startup even though it is re-resolved
	// per artifact.
	resolver := infra.NewRemovableStorageResolver(cfg.StorageRoots, cfg.LocalDir, logger)
	dest, err := resolver.Resolve()
	if err != nil {
		return fmt.Errorf("no writable recording destination: %w", err)
	}
	logger.Info("recording destination resolved", zap.String("path", dest))

	var catalog domain.RecordingCatalog
	if cfg.CatalogDir != "" {
		catalogDir := infra.ExpandHome(cfg.CatalogDir)
		key, err := infra.EnsureKey(infra.NewFileKeyProvider(catalogDir))
		if err != nil {
			return fmt.Errorf("failed to prepare catalog key: %w", err)
		}
		c, err := infra.NewSQLCipherCatalog(catalogDir, key)
		if err != nil {
			return fmt.Errorf("failed to open recordings catalog: %w", err)
		}
		defer c.Close()
		catalog = c
	}

	sink, err := infra.NewFFmpegSink(logger)
	if err != nil {
		return err
	}

	var source domain.FrameSource
	switch sourceKind {
	case sourceV4L2:
		source = infra.NewFFmpegSource(cfg.DeviceIndex, cfg.FrameWidth, cfg.FrameHeight, cfg.FPS, logger)
	case sourceSynthetic:
		source = infra.NewSyntheticSource(cfg.FrameWidth, cfg.FrameHeight, cfg.FPS)
	default:
		return fmt.Errorf("unknown source %q", sourceKind)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := source.Open(ctx); err != nil {
		return fmt.Errorf("failed to open frame source: %w", err)
	}

	// The device may negotiate a different format than requested; the
	// buffer capacity follows the actuals.
	ring := buffer.NewRing(cfg.Capacity())
	width, height, fps := source.Negotiated()
	if width != cfg.FrameWidth || height != cfg.FrameHeight || fps != cfg.FPS {
		logger.Info("device negotiated format",
			zap.Int("width", width),
			zap.Int("height", height),
			zap.Float64("fps", fps))
	}
	cfg.FrameWidth, cfg.FrameHeight, cfg.FPS = width, height, fps
	ring.Resize(cfg.Capacity())

	var detector domain.PersonDetector
	if cfg.DetectorMode == config.DetectorHTTP {
		detector = infra.NewHTTPDetector(cfg.DetectorEndpoint, cfg.MinConfidence)
	}

	sampler := usecase.NewDetectionSampler(detector, cfg.DetectionInterval(), events, logger)

	dispatcher := usecase.NewPersistenceDispatcher(sink, resolver, catalog, cfg.PersistWorkers, events, logger)
	dispatcher.Start()

	controller := usecase.NewRecordingController(ring, dispatcher, cfg.FPS, cfg.PostEvent(), events, logger)
	if cfg.DetectorMode == config.DetectorOff {
		switch cfg.DetectorFallback {
		case config.FallbackRecordAll:
			logger.Info("detector off, recording continuously",
				zap.Duration("segment", cfg.BufferWindow()))
			controller.EnableContinuous(cfg.BufferWindow())
		case config.FallbackDisabled:
			logger.Info("detector off, automatic recording disabled")
		}
	}

	capture := daemon.NewCapture(
		daemon.DefaultConfig(),
		cfg.DeviceIndex,
		source,
		ring,
		sampler,
		controller,
		dispatcher,
		events,
		logger,
	)

	if cfg.StatusAddr != "" {
		server := api.NewServer(cfg.StatusAddr, capture.Status, catalog, logger)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	return capture.Run(ctx)
}

func createLogger(logFile string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	if logFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
	}

	logger, err := cfg.Build()
	if err != nil {
		// Fallback to plain production logger if the file can't be opened
		logger, _ = zap.NewProduction()
	}
	return logger
}
