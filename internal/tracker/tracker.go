package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/audit"
	"github.com/nerrad567/gray-logic-occupancy/internal/classify"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

// Publisher sends messages on the bus. Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Subscriber registers bus handlers. Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Recorder writes occupancy history. Satisfied by *influxdb.Client.
type Recorder interface {
	WriteOccupancyTransition(p influxdb.OccupancyPoint)
	WriteSensorSignal(p influxdb.SensorPoint)
}

// Broadcaster fans notifications out to live clients. Satisfied by *api.Hub.
// Broadcast must not block.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Auditor records applied commands. Satisfied by *audit.SQLiteRepository.
type Auditor interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Store persists engine snapshots. Satisfied by *snapshot.Store.
type Store interface {
	Load(ctx context.Context) (occupancy.Snapshot, error)
	Save(ctx context.Context, snap occupancy.Snapshot, savedAt time.Time) error
}

// Logger defines the logging interface used by the Tracker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Timer is a pending wake-up. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. The default is time.AfterFunc.
type Scheduler func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures a Tracker. Only Engine is required.
type Options struct {
	Engine     *occupancy.Engine
	Classifier *classify.Classifier

	Publisher Publisher
	Recorder  Recorder
	Store     Store
	Feed      Broadcaster
	Audit     Auditor
	Logger    Logger

	// QoS is used for every publish.
	QoS byte

	// SnapshotOnChange saves the snapshot after every call that changed
	// state. The snapshot is always saved by Stop.
	SnapshotOnChange bool

	// MinWakeInterval is the shortest delay the wake-up timer is armed for.
	MinWakeInterval time.Duration

	// Clock and Schedule default to time.Now and time.AfterFunc.
	Clock    func() time.Time
	Schedule Scheduler
}

// Tracker owns one engine and drives it from the outside world.
//
// Thread Safety: all methods are safe for concurrent use. Engine calls,
// and the publication of their results, are serialised by one mutex so
// retained state is always published in transition order.
type Tracker struct {
	mu sync.Mutex

	engine     *occupancy.Engine
	classifier *classify.Classifier
	pub        Publisher
	rec        Recorder
	store      Store
	feed       Broadcaster
	auditor    Auditor
	logger     Logger

	qos              byte
	snapshotOnChange bool
	minWake          time.Duration
	now              func() time.Time
	schedule         Scheduler

	timer   Timer
	timerID uint64 // bumped on every arm; identifies the live timer
	wakeAt  time.Time
	started bool
	stopped bool
	baseCtx context.Context
}

// New creates a Tracker. The engine must not be used directly afterwards.
func New(opts Options) (*Tracker, error) {
	if opts.Engine == nil {
		return nil, ErrNoEngine
	}
	t := &Tracker{
		engine:           opts.Engine,
		classifier:       opts.Classifier,
		pub:              opts.Publisher,
		rec:              opts.Recorder,
		store:            opts.Store,
		feed:             opts.Feed,
		auditor:          opts.Audit,
		logger:           opts.Logger,
		qos:              opts.QoS,
		snapshotOnChange: opts.SnapshotOnChange,
		minWake:          opts.MinWakeInterval,
		now:              opts.Clock,
		schedule:         opts.Schedule,
		baseCtx:          context.Background(),
	}
	if t.logger == nil {
		t.logger = noopLogger{}
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.schedule == nil {
		t.schedule = afterFunc
	}
	return t, nil
}

// Start restores the stored snapshot through the engine's staleness
// policy, re-evaluates timeouts, publishes every location's retained
// state and arms the wake-up timer.
//
// A snapshot that cannot be loaded is logged and the tracker starts clean.
// The classifier's last-seen values are cleared, so the first reading of
// each sensor after a restart counts as an edge.
// ctx is also used for work triggered later by the wake-up timer.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true
	t.stopped = false
	t.baseCtx = ctx

	// Readings seen before a restart are not edges for this run.
	bindings := 0
	if t.classifier != nil {
		t.classifier.Reset()
		bindings = len(t.classifier.Bindings())
	}

	now := t.now()
	if t.store != nil {
		snap, err := t.store.Load(ctx)
		switch {
		case err != nil:
			t.logger.Warn("occupancy snapshot not restored, starting clean", "error", err)
		case len(snap) > 0:
			applied := t.engine.Restore(snap, now)
			t.logger.Info("occupancy state restored", "entries", len(snap), "applied", applied)
		}
	}

	r := t.engine.CheckTimeouts(now)
	t.afterChange(ctx, now, r)
	t.publishAll(now)

	t.logger.Info("occupancy tracker started",
		"locations", len(t.engine.Locations()),
		"sensors", bindings,
		"next_wake", t.wakeAt,
	)
	return nil
}

// Stop disarms the wake-up timer and saves a final snapshot.
// Calls made after Stop still reach the engine but never re-arm the timer
// until the tracker is started again.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.started = false
	t.stopped = true
	t.disarm()

	if t.store == nil {
		return nil
	}
	if err := t.store.Save(ctx, t.engine.Export(), t.now()); err != nil {
		t.logger.Error("final occupancy snapshot failed", "error", err)
		return err
	}
	t.logger.Info("occupancy tracker stopped")
	return nil
}

// apply runs fn against the engine under the lock with a single clock
// read, then publishes, records, persists and re-arms.
func (t *Tracker) apply(ctx context.Context, fn func(now time.Time) occupancy.Result) occupancy.Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	r := fn(now)
	t.afterChange(ctx, now, r)
	return r
}

// afterChange must be called with t.mu held.
func (t *Tracker) afterChange(ctx context.Context, now time.Time, r occupancy.Result) {
	for _, tr := range r.Transitions {
		t.publishTransition(tr, now)
		t.recordTransition(tr, now)
	}
	if r.Changed() && t.snapshotOnChange {
		t.persist(ctx, now)
	}
	t.arm(now, r.NextExpiration)
}

// arm schedules the single wake-up at next, replacing any pending one.
// Must be called with t.mu held.
func (t *Tracker) arm(now, next time.Time) {
	if t.stopped {
		return
	}
	if t.timer != nil && next.Equal(t.wakeAt) {
		return
	}
	t.disarm()
	if next.IsZero() {
		return
	}

	delay := next.Sub(now)
	if delay < t.minWake {
		delay = t.minWake
	}
	t.timerID++
	id := t.timerID
	t.wakeAt = next
	t.timer = t.schedule(delay, func() { t.wake(id) })
	t.logger.Debug("wake-up armed", "at", next, "delay", delay)
}

// disarm must be called with t.mu held.
func (t *Tracker) disarm() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.wakeAt = time.Time{}
}

// wake is the timer callback for the timer armed as id. A timer replaced
// while its callback waited for the lock leaves the newer one armed.
func (t *Tracker) wake(id uint64) {
	t.mu.Lock()
	if id == t.timerID {
		t.timer = nil
		t.wakeAt = time.Time{}
	}
	ctx := t.baseCtx
	t.mu.Unlock()

	t.CheckTimeouts(ctx)
}
