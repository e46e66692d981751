// Package influx writes kart telemetry and session performance to InfluxDB.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/kartracer/kartsim/internal/config"
	"github.com/kartracer/kartsim/internal/model"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/rs/zerolog"
)

// Bucket names.
const (
	BucketTelemetry   = "kart_telemetry"
	BucketPerformance = "sim_performance"
)

// DefaultBucketNames are the buckets created on connect.
var DefaultBucketNames = []string{BucketTelemetry, BucketPerformance}

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	sessionID  string
	backupFile *os.File
	mu         sync.Mutex
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: DefaultBucketNames,
		Logger:      log,
		BackupPath:  backupPath,
		cfg:         cfg,
	}
}

// SetSession tags every following point with the session id.
func (m *Manager) SetSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionID = id
}

// Connect establishes a connection to InfluxDB. An unreachable server is not
// an error: points go to the gzip backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.BackupWriter = gzip.NewWriter(file)
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBuckets(ctx); err != nil {
		return err
	}
	m.createWriters()
	m.Logger.Info().Str("url", m.cfg.URL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBuckets(ctx context.Context) error {
	orgName := m.cfg.Org

	org, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		org, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	for _, bucket := range m.BucketNames {
		if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 30,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (m *Manager) createWriters() {
	for _, bucket := range m.BucketNames {
		w := m.Client.WriteAPI(m.cfg.Org, bucket)
		m.Writers[bucket] = w

		go func(bucket string, errs <-chan error) {
			for err := range errs {
				m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error sending data to InfluxDB")
			}
		}(bucket, w.Errors())
	}
	m.Logger.Debug().Int("buckets", len(m.BucketNames)).Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// PublishSnapshot writes one telemetry point. It lets the manager be added
// as a kart snapshot sink.
func (m *Manager) PublishSnapshot(vs core.VehicleSnapshot) error {
	return m.WritePoint(BucketTelemetry, TelemetryPoint(m.session(), vs))
}

// WritePerformance writes one session performance sample.
func (m *Manager) WritePerformance(p model.SessionPerformance) error {
	return m.WritePoint(BucketPerformance, PerformancePoint(m.session(), p))
}

func (m *Manager) session() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Close flushes pending writes and closes the client and backup file.
func (m *Manager) Close() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// TelemetryPoint builds the kart_telemetry point for a published snapshot.
func TelemetryPoint(sessionID string, vs core.VehicleSnapshot) *influxdb2_write.Point {
	p := vs.Snapshot.Position
	point := influxdb2_write.NewPointWithMeasurement("kart_telemetry").
		AddTag("vehicle", strconv.Itoa(int(vs.VehicleID))).
		AddTag("state", vs.State.String()).
		AddField("tick", int64(vs.Tick)).
		AddField("x", p.X()).
		AddField("y", p.Y()).
		AddField("z", p.Z()).
		AddField("speed", vs.Speed).
		AddField("turn_rate", vs.Snapshot.TurnRate).
		AddField("drift", vs.Snapshot.Drift).
		AddField("on_terrain", vs.OnTerrain).
		AddField("down_force", vs.DownForce).
		SetTime(vs.Time)
	if sessionID != "" {
		point.AddTag("session", sessionID)
	}
	return point
}

// PerformancePoint builds the sim_performance point for a monitor sample.
func PerformancePoint(sessionID string, perf model.SessionPerformance) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement("sim_performance").
		AddField("tick", int64(perf.Tick)).
		AddField("karts", perf.Karts).
		AddField("pending_tasks", perf.PendingTasks).
		AddField("inbox_depth", perf.InboxDepth).
		AddField("inbox_dropped", int64(perf.InboxDropped)).
		AddField("last_tick_ms", perf.LastTickDurationMs).
		AddField("last_write_ms", perf.LastWriteDurationMs).
		SetTime(perf.Time)
	if sessionID != "" {
		point.AddTag("session", sessionID)
	}
	return point
}
