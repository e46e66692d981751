package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kartracer/kartsim/internal/config"
	"github.com/kartracer/kartsim/internal/logging"
	intOtel "github.com/kartracer/kartsim/internal/otel"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildVersion and BuildDate can be set at build time via ldflags
var (
	BuildVersion = "0.0.1"
	BuildDate    = "unknown"
)

var (
	configDir string
	logLevel  string
)

// runtime holds the process-wide logging and telemetry set up for one
// command.
type runtime struct {
	startTime time.Time
	logs      *logging.SlogManager
	logger    *slog.Logger
	logFile   *os.File
	logPath   string
	graylog   io.WriteCloser
	otel      *intOtel.Provider
}

func setupRuntime(prefix string) (*runtime, error) {
	rt := &runtime{startTime: time.Now(), logs: logging.NewSlogManager()}
	rt.logs.Setup(nil, viper.GetString("logLevel"), nil)
	rt.logger = rt.logs.Logger()

	if err := config.Load(configDir); err != nil {
		rt.logger.Warn("Failed to load config, using defaults!", "error", err)
	}
	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	rt.logPath = logging.LogFilePath(logsDir, prefix, rt.startTime)
	if _, err := os.Stat(rt.logPath); err == nil {
		_ = os.Rename(rt.logPath, rt.logPath+".old")
	}
	file, err := os.OpenFile(rt.logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	rt.logFile = file

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		rt.otel, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      file,
			MetricWriter:   file,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			rt.logger.Error("Failed to initialize OTel provider", "error", err)
			rt.otel = nil
		}
	}

	var opts []logging.Option
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			rt.logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			rt.graylog = w
			opts = append(opts, logging.WithWriter(w))
		}
	}
	opts = append(opts, logging.WithContext(logging.SessionContext))

	var otelLogProvider *sdklog.LoggerProvider
	if rt.otel != nil {
		otelLogProvider = rt.otel.LoggerProvider()
	}
	rt.logs.Setup(file, viper.GetString("logLevel"), otelLogProvider, opts...)
	rt.logger = rt.logs.Logger()
	rt.logger.Info("Starting kartsim", "version", BuildVersion, "buildDate", BuildDate, "command", prefix, "log", rt.logPath)
	return rt, nil
}

// zerolog returns an infrastructure logger writing JSON to the log file.
func (rt *runtime) zerolog(component string) zerolog.Logger {
	return logging.NewZerolog(rt.logFile, viper.GetString("logLevel"), component)
}

func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rt.logs.Flush(ctx); err != nil {
		rt.logger.Warn("Failed to flush logs", "error", err)
	}
	if rt.otel != nil {
		if err := rt.otel.Shutdown(ctx); err != nil {
			rt.logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if rt.graylog != nil {
		_ = rt.graylog.Close()
	}
	if rt.logFile != nil {
		_ = rt.logFile.Close()
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kartsim",
		Short:         "Authoritative kart movement simulation",
		Version:       fmt.Sprintf("%s (%s)", BuildVersion, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory containing "+config.FileName)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newSimulateCmd(),
		newObserveCmd(),
		newUploadCmd(),
		newExportCmd(),
		newMigrateCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
