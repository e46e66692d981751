package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/kartracer/kartsim/internal/api"
	"github.com/kartracer/kartsim/internal/cache"
	"github.com/kartracer/kartsim/internal/config"
	"github.com/kartracer/kartsim/internal/dispatcher"
	"github.com/kartracer/kartsim/internal/influx"
	"github.com/kartracer/kartsim/internal/logging"
	"github.com/kartracer/kartsim/internal/model"
	"github.com/kartracer/kartsim/internal/monitor"
	"github.com/kartracer/kartsim/internal/parser"
	"github.com/kartracer/kartsim/internal/session"
	"github.com/kartracer/kartsim/internal/storage"
	"github.com/kartracer/kartsim/internal/transport"
	"github.com/kartracer/kartsim/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type simulateOptions struct {
	name     string
	karts    int
	duration time.Duration
	bots     bool
	upload   bool
	tag      string
}

func newSimulateCmd() *cobra.Command {
	var opts simulateOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a headless session with scripted drivers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "practice", "session name")
	f.IntVar(&opts.karts, "karts", 0, "number of karts (default from config)")
	f.DurationVar(&opts.duration, "duration", 0, "simulated time, 0 runs until interrupted (default from config)")
	f.BoolVar(&opts.bots, "bots", true, "drive every kart with the road-following bot")
	f.BoolVar(&opts.upload, "upload", false, "upload the replay to the results server when the session ends")
	f.StringVar(&opts.tag, "tag", "", "tag sent with the upload")
	return cmd
}

func runSimulate(ctx context.Context, opts simulateOptions) error {
	rt, err := setupRuntime("simulate")
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	simCfg := config.GetSimConfig()
	if opts.karts <= 0 {
		opts.karts = simCfg.Karts
	}
	if opts.duration <= 0 {
		opts.duration = simCfg.Duration
	}
	profile, err := config.GetHandlingProfile()
	if err != nil {
		return err
	}
	physicsCfg, err := config.GetPhysicsConfig()
	if err != nil {
		return err
	}
	tr, err := config.GetTrackConfig().Load()
	if err != nil {
		return fmt.Errorf("failed to load track: %w", err)
	}

	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, rt.logs.Component("storage"))
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage backend", "error", err)
		}
	}()
	logger.Info("Storage backend initialized", "type", storageCfg.Type)

	d, err := dispatcher.New(logging.NewDispatcherLogger(rt.zerolog("dispatcher")))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer d.Close()

	karts := cache.NewKartCache()
	worker.NewManager(worker.Dependencies{
		Karts:  karts,
		Parser: parser.NewParser(rt.logs.Component("parser")),
		Logger: rt.logs.Component("worker"),
	}).RegisterHandlers(d)

	sess := session.New(session.Config{
		Name:            opts.name,
		TickInterval:    simCfg.TickInterval,
		PublishInterval: simCfg.PublishInterval,
		Debounce:        simCfg.Debounce,
		Profile:         profile,
		ProfileName:     "default",
		Physics:         physicsCfg,
	}, tr, karts, backend, rt.logs.Component("session"))

	for i := 1; i <= opts.karts; i++ {
		k, err := sess.AddKart(fmt.Sprintf("kart-%d", i))
		if err != nil {
			return err
		}
		if opts.bots {
			sess.OnTick(session.NewBot(session.DefaultBotConfig(), k, tr, d).OnTick)
		}
		if _, err := d.Dispatch(dispatcher.Event{
			Command:   parser.CmdActivate,
			Args:      []string{strconv.Itoa(int(k.ID()))},
			Source:    dispatcher.SourceLocal,
			Timestamp: time.Now(),
		}); err != nil {
			return err
		}
	}

	var writers []monitor.PerformanceWriter
	if rec, ok := backend.(interface {
		RecordPerformance(model.SessionPerformance) error
	}); ok {
		writers = append(writers, monitor.PerformanceWriterFunc(rec.RecordPerformance))
	}

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		backupPath := filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("influx_backup_%s.lp.gz", rt.startTime.Format("20060102_150405")))
		im := influx.NewManager(influxCfg, rt.zerolog("influx"), backupPath)
		if err := im.Connect(ctx); err != nil {
			logger.Error("Failed to set up InfluxDB", "error", err)
		} else {
			im.SetSession(sess.Info().ID)
			sess.AddSink(im)
			writers = append(writers, im)
			defer func() {
				if err := im.Close(); err != nil {
					logger.Warn("Failed to close InfluxDB manager", "error", err)
				}
			}()
		}
	}

	transportCfg := config.GetTransportConfig()
	if transportCfg.Enabled {
		hub := transport.NewHub(transport.HubConfig{Secret: transportCfg.Secret}, d, rt.logs.Component("transport"))
		sess.AddSink(hub)

		mux := http.NewServeMux()
		mux.Handle(transportCfg.Path, hub)
		srv := &http.Server{Addr: transportCfg.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Observer hub stopped", "error", err)
			}
		}()
		logger.Info("Observer hub listening", "addr", transportCfg.Listen, "path", transportCfg.Path)
		defer func() {
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	mon := monitor.NewService(monitor.Dependencies{
		Session:   sess,
		Writers:   writers,
		Storage:   backend,
		Logger:    rt.logs.Component("monitor"),
		StatusDir: viper.GetString("logsDir"),
	})
	if err := mon.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Running session", "name", opts.name, "karts", opts.karts, "duration", opts.duration, "track", tr.Name)
	runErr := sess.Run(ctx, opts.duration)
	mon.Stop()
	if runErr != nil {
		return runErr
	}

	st := sess.Status()
	fmt.Printf("session %s finished after %d ticks\n", st.SessionID, st.Tick)
	for _, k := range st.Karts {
		fmt.Printf("  kart %d %-8s %-11s speed=%6.2f pos=(%.1f, %.1f, %.1f)\n",
			k.ID, k.Name, k.State, k.Speed, k.Position.X(), k.Position.Y(), k.Position.Z())
	}

	up, ok := backend.(storage.Uploadable)
	if !ok || up.GetExportedFilePath() == "" {
		return nil
	}
	fmt.Printf("replay written to %s\n", up.GetExportedFilePath())
	if !opts.upload {
		return nil
	}
	meta := up.GetExportMetadata()
	meta.Tag = opts.tag
	client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	if err := client.Upload(context.Background(), up.GetExportedFilePath(), meta); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	logger.Info("Replay uploaded", "path", up.GetExportedFilePath())
	return nil
}
