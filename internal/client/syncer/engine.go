// Package syncer reconciles the local store with the remote service.
//
// A run has three strictly sequential phases: push pending local records,
// pull records changed on the server since the last successful run, and
// replay the durable retry queue. Only one run is active at a time. The
// checkpoint advances only when all three phases succeed.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/conflict"
	"github.com/dmitrijs2005/offsync/internal/client/events"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/tables"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/timex"
)

var (
	ErrAdminUser      = errors.New("admin_user")
	ErrSyncInProgress = errors.New("sync_in_progress")
	ErrOffline        = errors.New("offline")
)

// Phase is the engine state shown by Status.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseUploading   Phase = "uploading"
	PhaseDownloading Phase = "downloading"
	PhaseDraining    Phase = "draining_retry_queue"
	PhaseFullSync    Phase = "full_sync"
)

const DefaultInterval = 5 * time.Minute

// checkpointOverlap is subtracted from the checkpoint when asking the server
// for changes. The checkpoint is a client clock reading, so skew against the
// server clock and its microsecond timestamps could otherwise hide a change.
// Records seen twice are merged again.
const checkpointOverlap = time.Second

type Options struct {
	// Interval between background runs started by Run.
	Interval time.Duration
	// MaxRetries is the number of failed replays after which a retry entry
	// is evicted.
	MaxRetries int
	// DropRejected stops retrying requests the server refused outright and
	// reports them as events.ItemRejected instead.
	DropRejected bool
}

// Deps are the collaborators of an Engine. Monitor, Bus, Clock, NewTicker
// and Logger are optional.
type Deps struct {
	Store      LocalStore
	Queue      RetryQueue
	Checkpoint Checkpoint
	Remote     client.RemoteAPI
	Tables     *tables.Registry
	Resolvers  *conflict.Registry
	Session    RoleChecker
	Monitor    OnlineChecker
	Bus        *events.Bus
	Clock      timex.Clock
	NewTicker  timex.TickerFactory
	Logger     logging.Logger
}

// Status is a point-in-time view of the engine.
type Status struct {
	Online   bool
	Syncing  bool
	Phase    Phase
	LastSync time.Time
}

type Engine struct {
	store      LocalStore
	queue      RetryQueue
	checkpoint Checkpoint
	remote     client.RemoteAPI
	tables     *tables.Registry
	session    RoleChecker
	monitor    OnlineChecker
	bus        *events.Bus
	clock      timex.Clock
	newTicker  timex.TickerFactory
	logger     logging.Logger
	opts       Options

	uploader   *uploader
	downloader *downloader
	drainer    *drainer

	mu      sync.Mutex
	syncing bool
	phase   Phase
	done    chan struct{}
}

func New(d Deps, opts Options) (*Engine, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("syncer: local store is required")
	case d.Queue == nil:
		return nil, errors.New("syncer: retry queue is required")
	case d.Checkpoint == nil:
		return nil, errors.New("syncer: checkpoint store is required")
	case d.Remote == nil:
		return nil, errors.New("syncer: remote api is required")
	case d.Tables == nil:
		return nil, errors.New("syncer: table registry is required")
	case d.Session == nil:
		return nil, errors.New("syncer: session is required")
	}

	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Resolvers == nil {
		d.Resolvers = conflict.NewRegistry(nil)
	}
	if d.Monitor == nil {
		d.Monitor = alwaysOnline{}
	}
	if d.Bus == nil {
		d.Bus = events.NewBus(d.Logger)
	}
	if d.Clock == nil {
		d.Clock = timex.SystemClock
	}
	if d.NewTicker == nil {
		d.NewTicker = timex.NewTicker
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}

	logger := d.Logger.With("module", "syncer")
	p := pusher{store: d.Store, queue: d.Queue, remote: d.Remote, clock: d.Clock, logger: logger}

	return &Engine{
		store:      d.Store,
		queue:      d.Queue,
		checkpoint: d.Checkpoint,
		remote:     d.Remote,
		tables:     d.Tables,
		session:    d.Session,
		monitor:    d.Monitor,
		bus:        d.Bus,
		clock:      d.Clock,
		newTicker:  d.NewTicker,
		logger:     logger,
		opts:       opts,
		uploader: &uploader{
			pusher:       p,
			tables:       d.Tables,
			bus:          d.Bus,
			dropRejected: opts.DropRejected,
		},
		downloader: &downloader{
			store:     d.Store,
			queue:     d.Queue,
			remote:    d.Remote,
			tables:    d.Tables,
			resolvers: d.Resolvers,
			logger:    logger,
		},
		drainer: &drainer{
			pusher:       p,
			tables:       d.Tables,
			bus:          d.Bus,
			maxRetries:   opts.MaxRetries,
			dropRejected: opts.DropRejected,
		},
		phase: PhaseIdle,
	}, nil
}

// acquire claims the run flag. With wait it blocks until the active run
// finishes instead of failing with ErrSyncInProgress.
func (e *Engine) acquire(ctx context.Context, wait bool) (release func(), err error) {
	for {
		e.mu.Lock()
		if !e.syncing {
			done := make(chan struct{})
			e.syncing = true
			e.done = done
			e.mu.Unlock()

			return func() {
				e.mu.Lock()
				e.syncing = false
				e.phase = PhaseIdle
				e.mu.Unlock()
				close(done)
			}, nil
		}
		done := e.done
		e.mu.Unlock()

		if !wait {
			return nil, ErrSyncInProgress
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

// Syncing reports whether a run is active.
func (e *Engine) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// StartSync runs one incremental sync. Administrators never sync, and
// nothing is attempted while offline. When a run is already active it fails
// with ErrSyncInProgress unless force is set, in which case it waits for
// that run to end and then starts its own.
func (e *Engine) StartSync(ctx context.Context, force bool) (*models.SyncStats, error) {
	if e.session.IsAdmin() {
		e.logger.Info(ctx, "sync skipped for admin user")
		return nil, ErrAdminUser
	}
	if !e.monitor.IsOnline() {
		e.logger.Info(ctx, "sync skipped while offline")
		return nil, ErrOffline
	}

	release, err := e.acquire(ctx, force)
	if err != nil {
		return nil, err
	}
	defer release()

	startedAt := e.clock.Now()
	e.logger.Info(ctx, "sync started", "force", force)
	e.bus.Publish(ctx, events.Event{Type: events.SyncStart, At: startedAt})

	stats, err := e.run(ctx, startedAt)
	if err != nil {
		e.logger.Error(ctx, "sync failed", "error", err)
		e.bus.Publish(ctx, events.Event{Type: events.SyncError, At: e.clock.Now(), Stats: stats, Message: err.Error()})
		return stats, err
	}

	e.logger.Info(ctx, "sync complete",
		"uploaded", stats.Uploaded.Total(),
		"upload_failed", stats.UploadFailed.Total(),
		"downloaded", stats.Downloaded.Total(),
		"conflicts", stats.Conflicts.Total(),
		"retried", stats.Retry.Processed,
		"dropped", stats.Retry.Dropped)
	e.bus.Publish(ctx, events.Event{Type: events.SyncComplete, At: e.clock.Now(), Stats: stats})
	return stats, nil
}

func (e *Engine) run(ctx context.Context, startedAt time.Time) (*models.SyncStats, error) {
	stats := models.NewSyncStats()

	since, err := e.checkpoint.LastSync(ctx)
	if err != nil {
		return stats, fmt.Errorf("read checkpoint: %w", err)
	}

	e.setPhase(PhaseUploading)
	if err := e.uploader.run(ctx, stats); err != nil {
		return stats, fmt.Errorf("upload phase: %w", err)
	}

	e.setPhase(PhaseDownloading)
	if err := e.downloader.run(ctx, changedSince(since), stats); err != nil {
		return stats, fmt.Errorf("download phase: %w", err)
	}

	e.setPhase(PhaseDraining)
	if err := e.drainer.run(ctx, stats); err != nil {
		return stats, fmt.Errorf("retry phase: %w", err)
	}

	if err := e.advance(ctx, since, startedAt); err != nil {
		return stats, err
	}
	return stats, nil
}

func changedSince(checkpoint time.Time) time.Time {
	if checkpoint.IsZero() {
		return checkpoint
	}
	return checkpoint.Add(-checkpointOverlap)
}

// advance stores the run's start time as the new checkpoint, nudged forward
// if the clock has not moved past the previous value.
func (e *Engine) advance(ctx context.Context, prev, next time.Time) error {
	if !next.After(prev) {
		next = prev.Add(time.Nanosecond)
	}
	if err := e.checkpoint.SetLastSync(ctx, next); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// ForceSyncFromServer replaces all local data with the server's copy of
// every registered table and empties the retry queue. Unpushed local changes
// are lost. It waits for an active run to finish first.
func (e *Engine) ForceSyncFromServer(ctx context.Context) error {
	if e.session.IsAdmin() {
		e.logger.Info(ctx, "full sync skipped for admin user")
		return ErrAdminUser
	}

	release, err := e.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer release()

	e.setPhase(PhaseFullSync)
	startedAt := e.clock.Now()
	e.logger.Info(ctx, "full sync started")
	e.bus.Publish(ctx, events.Event{Type: events.FullSyncStart, At: startedAt})

	if err := e.fullSync(ctx, startedAt); err != nil {
		e.logger.Error(ctx, "full sync failed", "error", err)
		e.bus.Publish(ctx, events.Event{Type: events.FullSyncError, At: e.clock.Now(), Message: err.Error()})
		return err
	}

	e.logger.Info(ctx, "full sync complete")
	e.bus.Publish(ctx, events.Event{Type: events.FullSyncComplete, At: e.clock.Now()})
	return nil
}

func (e *Engine) fullSync(ctx context.Context, startedAt time.Time) error {
	data := make(map[string][]*models.Record)
	for _, name := range e.tables.Names() {
		all, err := e.remote.ListAll(ctx, name)
		if err != nil {
			return fmt.Errorf("list all %s: %w", name, err)
		}
		for _, r := range all {
			r.Table = name
			r.SyncStatus = models.StatusSynced
		}
		data[name] = all
	}

	if err := e.store.ReplaceAll(ctx, data); err != nil {
		return fmt.Errorf("replace local data: %w", err)
	}
	if err := e.queue.Clear(ctx); err != nil {
		return fmt.Errorf("clear retry queue: %w", err)
	}

	prev, err := e.checkpoint.LastSync(ctx)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	return e.advance(ctx, prev, startedAt)
}

// Status reports connectivity, the current phase and the checkpoint.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	e.mu.Lock()
	st := Status{Syncing: e.syncing, Phase: e.phase}
	e.mu.Unlock()

	st.Online = e.monitor.IsOnline()

	last, err := e.checkpoint.LastSync(ctx)
	if err != nil {
		return st, err
	}
	st.LastSync = last
	return st, nil
}

// Run starts a sync every Options.Interval and whenever connectivity comes
// back, skipping the attempt when a run is active, the client is offline or
// the user is an administrator. It returns when ctx is done.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	unsubscribe := e.bus.Subscribe(func(ev events.Event) {
		if ev.Type != events.Online || ctx.Err() != nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.trigger(ctx, "online")
		}()
	})
	defer unsubscribe()

	ticker := e.newTicker(e.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			e.trigger(ctx, "interval")
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) trigger(ctx context.Context, reason string) {
	if e.session.IsAdmin() || !e.monitor.IsOnline() || e.Syncing() {
		return
	}
	if _, err := e.StartSync(ctx, false); err != nil && !errors.Is(err, ErrSyncInProgress) {
		e.logger.Warn(ctx, "background sync failed", "reason", reason, "error", err)
	}
}
