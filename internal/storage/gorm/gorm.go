// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kartracer/kartsim/internal/database"
	"github.com/kartracer/kartsim/internal/model"
	"github.com/kartracer/kartsim/internal/model/convert"
	"github.com/kartracer/kartsim/internal/queue"
	v1 "github.com/kartracer/kartsim/internal/storage/memory/export/v1"
	"github.com/kartracer/kartsim/pkg/core"
	"gorm.io/gorm"
)

// DefaultWriteInterval is how often queued rows are written.
const DefaultWriteInterval = 2 * time.Second

// ErrNoSession is returned when recording without a started session.
var ErrNoSession = errors.New("no session started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	WriteInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Vehicles     *queue.Queue[model.Vehicle]
	Snapshots    *queue.Queue[model.VehicleSnapshot]
	Effects      *queue.Queue[model.EffectEvent]
	StateChanges *queue.Queue[model.StateChange]
}

func newQueues() *queues {
	return &queues{
		Vehicles:     queue.New[model.Vehicle](),
		Snapshots:    queue.New[model.VehicleSnapshot](),
		Effects:      queue.New[model.EffectEvent](),
		StateChanges: queue.New[model.StateChange](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	sessionID atomic.Uint64

	writeMu       sync.Mutex
	lastWriteNano atomic.Int64

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		deps:   deps,
		log:    log,
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("no database connection")
	}
	b.log.Info("Migrating schema")
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer and writes whatever is still queued.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
	})
	return b.Flush()
}

// StartSession inserts the session row synchronously so queued rows can
// reference it.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.SessionToGorm(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}
	b.sessionID.Store(uint64(row.ID))
	b.log.Info("Session started", "session", s.ID, "row", row.ID)
	return nil
}

// SessionRowID returns the database id of the current session, or 0.
func (b *Backend) SessionRowID() uint {
	return uint(b.sessionID.Load())
}

// EndSession writes the queues and stamps the session's end.
func (b *Backend) EndSession(end time.Time, endTick uint64) error {
	id := b.SessionRowID()
	if id == 0 {
		return ErrNoSession
	}
	if err := b.Flush(); err != nil {
		return err
	}
	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).
		Updates(map[string]any{"end_time": end, "end_tick": endTick}).Error
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// AddVehicle converts a core vehicle to GORM and pushes to the write queue.
func (b *Backend) AddVehicle(v *core.Vehicle) error {
	id := b.SessionRowID()
	if id == 0 {
		return ErrNoSession
	}
	b.queues.Vehicles.Push(convert.VehicleToGorm(id, *v))
	return nil
}

// RecordSnapshot converts and queues a snapshot.
func (b *Backend) RecordSnapshot(s *core.VehicleSnapshot) error {
	id := b.SessionRowID()
	if id == 0 {
		return ErrNoSession
	}
	b.queues.Snapshots.Push(convert.SnapshotToGorm(id, *s))
	return nil
}

// RecordEffect converts and queues an effect event.
func (b *Backend) RecordEffect(e *core.EffectEvent) error {
	id := b.SessionRowID()
	if id == 0 {
		return ErrNoSession
	}
	b.queues.Effects.Push(convert.EffectToGorm(id, *e))
	return nil
}

// RecordStateChange converts and queues a state change.
func (b *Backend) RecordStateChange(e *core.StateChangeEvent) error {
	id := b.SessionRowID()
	if id == 0 {
		return ErrNoSession
	}
	b.queues.StateChanges.Push(convert.StateChangeToGorm(id, *e))
	return nil
}

// RecordPerformance inserts a monitor sample for the current session.
func (b *Backend) RecordPerformance(p model.SessionPerformance) error {
	id := b.SessionRowID()
	if id == 0 {
		return ErrNoSession
	}
	p.SessionID = id
	return b.deps.DB.Create(&p).Error
}

// Pending returns the number of queued rows.
func (b *Backend) Pending() int {
	return b.queues.Vehicles.Len() + b.queues.Snapshots.Len() + b.queues.Effects.Len() + b.queues.StateChanges.Len()
}

// GetLastDBWriteDuration returns how long the last write cycle took.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWriteNano.Load())
}

// Flush writes every queue now. Vehicles go first so snapshots never
// precede their vehicle in the database.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	err := errors.Join(
		writeQueue(b.deps.DB, b.queues.Vehicles, "vehicles", b.log),
		writeQueue(b.deps.DB, b.queues.Snapshots, "snapshots", b.log),
		writeQueue(b.deps.DB, b.queues.StateChanges, "state changes", b.log),
		writeQueue(b.deps.DB, b.queues.Effects, "effects", b.log),
	)
	b.lastWriteNano.Store(int64(time.Since(start)))
	return err
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed items are put back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	items := q.Drain()
	if len(items) == 0 {
		return nil
	}

	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Push(items...)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return tx.Commit().Error
}

func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}

// LoadSession reads a recorded session back for export. An empty uuid
// selects the most recent session.
func LoadSession(db *gorm.DB, uuid string) (*v1.SessionData, error) {
	var s model.Session
	q := db.Order("id desc")
	if uuid != "" {
		q = q.Where("uuid = ?", uuid)
	}
	if err := q.First(&s).Error; err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	data := v1.NewSessionData(convert.SessionToCore(s))
	data.EndTick = s.EndTick
	if s.EndTime != nil {
		data.EndTime = *s.EndTime
	}

	var vehicles []model.Vehicle
	if err := db.Where("session_id = ?", s.ID).Order("vehicle_id").Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("failed to load vehicles: %w", err)
	}
	for _, v := range vehicles {
		data.Vehicles[v.VehicleID] = &v1.VehicleRecord{Vehicle: convert.VehicleToCore(v)}
	}

	var snaps []model.VehicleSnapshot
	if err := db.Where("session_id = ?", s.ID).Order("vehicle_id, tick").Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	for _, row := range snaps {
		r, ok := data.Vehicles[row.VehicleID]
		if !ok {
			continue
		}
		r.Snapshots = append(r.Snapshots, convert.SnapshotToCore(row))
	}

	var effects []model.EffectEvent
	if err := db.Where("session_id = ?", s.ID).Order("tick, id").Find(&effects).Error; err != nil {
		return nil, fmt.Errorf("failed to load effects: %w", err)
	}
	for _, e := range effects {
		data.Effects = append(data.Effects, convert.EffectToCore(e))
	}

	var changes []model.StateChange
	if err := db.Where("session_id = ?", s.ID).Order("tick, id").Find(&changes).Error; err != nil {
		return nil, fmt.Errorf("failed to load state changes: %w", err)
	}
	for _, c := range changes {
		data.StateChanges = append(data.StateChanges, convert.StateChangeToCore(c))
	}

	return data, nil
}
