package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/text/unicode/norm"

	"digistation/internal/capture"
	"digistation/internal/catalog"
	"digistation/internal/config"
	"digistation/internal/deps"
	"digistation/internal/logging"
	"digistation/internal/metadata"
	"digistation/internal/notifications"
	"digistation/internal/preflight"
	"digistation/internal/station"
	"digistation/internal/watcher"
)

// LockFileName is created in the session directory while a session runs.
const LockFileName = ".digistation.lock"

var (
	// ErrNoSessionPath is fatal at start: there is no directory to monitor.
	ErrNoSessionPath = errors.New("no session directory")
	// ErrSessionLocked reports another process already runs a session in the directory.
	ErrSessionLocked = errors.New("session directory is locked by another process")
	// ErrAlreadyStarted is returned by a second Start on the same Lifecycle.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNotStarted is returned by Run and Stop before Start.
	ErrNotStarted = errors.New("session not started")
)

// Options carry the operator metadata for a new session.
type Options struct {
	Dir            string
	Username       string
	CollectionCode string
	ProjectCode    string
	Notes          string
	Taxa           string
	Observers      []capture.Observer
}

// Option customizes a Lifecycle.
type Option func(*Lifecycle)

// WithAdapters replaces the filesystem metadata adapters.
func WithAdapters(a capture.Adapters) Option {
	return func(l *Lifecycle) { l.adapters = a }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		if now != nil {
			l.now = now
		}
	}
}

// Lifecycle owns a single capture session from Start to Stop.
type Lifecycle struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
	adapters capture.Adapters
	now      func() time.Time

	mu         sync.Mutex
	started    bool
	stopped    bool
	runStarted bool
	session    *capture.Session
	sessionLog *slog.Logger
	logFile    *os.File
	lock       *flock.Flock
	watcher    *watcher.Watcher
	events     <-chan capture.FileEvent
	correlator *capture.Correlator
	committer  *capture.Committer
	stopCh     chan struct{}
	runDone    chan struct{}
	summary    Summary
}

// New builds a Lifecycle. A nil notifier disables notifications.
func New(cfg *config.Config, logger *slog.Logger, notifier notifications.Service, opts ...Option) *Lifecycle {
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	l := &Lifecycle{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "session"),
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start validates the directory, locks it, and begins watching.
func (l *Lifecycle) Start(ctx context.Context, opts Options) (*capture.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return nil, ErrAlreadyStarted
	}

	dir, err := resolveDir(opts.Dir)
	if err != nil {
		return nil, err
	}

	identity, err := station.Load(l.cfg.Station.IdentityPath)
	if err != nil {
		if errors.Is(err, station.ErrNotConfigured) {
			l.logger.Info("station identity not configured; station fields left empty",
				logging.String(logging.FieldPath, l.cfg.Station.IdentityPath),
			)
		} else {
			logging.WarnWithContext(l.logger, "station identity unreadable", "station_identity_invalid",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run digistation station init --force to regenerate it"),
				logging.String(logging.FieldImpact, "events are recorded without station id and uuid"),
			)
		}
		identity = nil
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionLocked, dir)
	}

	cleanup := func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}

	resolver, err := catalog.NewResolver(l.cfg.Capture.CatalogPatterns, l.cfg.Capture.RequiredPrefix)
	if err != nil {
		cleanup()
		return nil, err
	}

	info := capture.SessionInfo{
		Path:           dir,
		Username:       normalizeText(opts.Username),
		CollectionCode: normalizeText(opts.CollectionCode),
		ProjectCode:    normalizeText(opts.ProjectCode),
		Notes:          normalizeText(opts.Notes),
		Taxa:           normalizeText(opts.Taxa),
		StationID:      identity.IDPtr(),
		StationUUID:    identity.UUIDPtr(),
	}
	sess := capture.NewSession(info, l.now())

	logPath := filepath.Join(dir, sess.Info.ID+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open session log: %w", err)
	}
	sessionLogger := logging.NewSessionLogger(l.logger, sess.Info.ID, logFile)

	adapters := l.adapters
	if adapters == nil {
		adapters = metadata.New(l.cfg, sessionLogger)
		for _, missing := range deps.Missing(deps.CheckBinaries(deps.Requirements(l.cfg))) {
			logging.WarnWithContext(sessionLogger, "external program unavailable", "dependency_missing",
				logging.String("dependency", missing.Name),
				logging.String("command", missing.Command),
				logging.String(logging.FieldErrorHint, missing.Detail),
				logging.String(logging.FieldImpact, "barcodes are not read; events keep no catalog number"),
			)
		}
	}
	snapshots := capture.NewSnapshotWriter(sessionLogger)
	committer := capture.NewCommitter(snapshots, sessionLogger)
	correlator := capture.NewCorrelator(l.cfg, adapters, resolver, snapshots, sessionLogger,
		capture.WithCommitter(committer),
		capture.WithClock(l.now),
	)
	for _, o := range opts.Observers {
		sess.AddObserver(o)
	}

	w, err := watcher.New(dir, l.cfg, sessionLogger)
	if err != nil {
		_ = logFile.Close()
		cleanup()
		return nil, err
	}
	events, err := w.Start(ctx)
	if err != nil {
		_ = logFile.Close()
		cleanup()
		return nil, fmt.Errorf("start watcher: %w", err)
	}

	l.started = true
	l.session = sess
	l.sessionLog = sessionLogger
	l.logFile = logFile
	l.lock = lock
	l.watcher = w
	l.events = events
	l.correlator = correlator
	l.committer = committer
	l.stopCh = make(chan struct{})
	l.runDone = make(chan struct{})

	sessionLogger.Info("capture session started",
		logging.String(logging.FieldPath, dir),
		logging.String("username", info.Username),
		logging.String("collection_code", info.CollectionCode),
		logging.String("project_code", info.ProjectCode),
		logging.String("station_id", capture.StringValue(info.StationID)),
		logging.String("session_log", logPath),
		logging.String(logging.FieldEventType, "session_started"),
	)
	if err := l.notifier.NotifySessionStarted(ctx, sess.Info.ID, dir, info.Username); err != nil {
		l.notifyFailed(sessionLogger, "session started", err)
	}
	return sess, nil
}

// Run processes watcher events serially until ctx is cancelled, Stop is
// called, or the watcher closes. Per-event errors are logged, never returned.
func (l *Lifecycle) Run(ctx context.Context) error {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return ErrNotStarted
	}
	if l.stopped || l.runStarted {
		l.mu.Unlock()
		return nil
	}
	l.runStarted = true
	events := l.events
	stopCh := l.stopCh
	runDone := l.runDone
	l.mu.Unlock()

	defer close(runDone)

	if l.cfg.Capture.ScanExisting {
		l.scanExisting(ctx, stopCh)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stopCh:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.handle(ctx, ev)
		}
	}
}

func (l *Lifecycle) handle(ctx context.Context, ev capture.FileEvent) {
	logger := l.sessionLog
	_, err := l.correlator.Handle(ctx, l.session, ev)
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, capture.ErrUnmatchedExtension):
		// Already reported by the correlator.
	case errors.Is(err, capture.ErrRenameCollision):
		for _, ce := range capture.Collisions(err) {
			l.reportCollision(ctx, ce)
		}
	default:
		logging.WarnWithContext(logger, "file event not processed", "event_failed",
			logging.String(logging.FieldPath, ev.Path),
			logging.String("kind", ev.Kind.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file stays in the session; run digistation commit after the session"),
		)
	}
}

func (l *Lifecycle) scanExisting(ctx context.Context, stopCh <-chan struct{}) {
	dir := l.session.Info.Path
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.WarnWithContext(l.sessionLog, "initial scan failed", "scan_failed",
			logging.String(logging.FieldPath, dir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "files present before the session started are not tracked"),
		)
		return
	}

	scanned := 0
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}
		if entry.IsDir() || l.watcher.Ignored(entry.Name()) {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !l.cfg.IsRawExtension(ext) && !l.cfg.IsDerivedExtension(ext) {
			continue
		}
		l.handle(ctx, capture.FileEvent{Kind: capture.FileCreated, Path: filepath.Join(dir, entry.Name())})
		scanned++
	}
	l.sessionLog.Info("initial scan complete",
		logging.Int("files", scanned),
		logging.String(logging.FieldEventType, "scan_complete"),
	)
}

// Stop ends the event loop, flushes every event through the rename protocol,
// and releases the directory. Repeated calls return the first summary.
func (l *Lifecycle) Stop(ctx context.Context) (Summary, error) {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return Summary{}, ErrNotStarted
	}
	if l.stopped {
		summary := l.summary
		l.mu.Unlock()
		return summary, nil
	}
	l.stopped = true
	close(l.stopCh)
	waitRun := l.runStarted
	l.mu.Unlock()

	l.watcher.Stop()
	if waitRun {
		<-l.runDone
	}

	flushCtx := context.WithoutCancel(ctx)
	logger := l.sessionLog
	logger.Info("flushing capture events",
		logging.Int("events", l.session.Len()),
		logging.String(logging.FieldEventType, "flush_started"),
	)
	failed, collisions := l.committer.CommitAll(flushCtx, l.session)
	for _, ce := range collisions {
		l.reportCollision(flushCtx, ce)
	}

	end := l.now()
	summary := buildSummary(l.session, end, failed, len(collisions))
	logger.Info("capture session complete",
		logging.Int("events", summary.Events),
		logging.Int("renamed", summary.Renamed),
		logging.Int("failed", summary.Failed),
		logging.Int("collisions", summary.Collisions),
		logging.Duration("elapsed", summary.Elapsed),
		logging.String(logging.FieldEventType, "session_complete"),
	)
	if err := l.notifier.NotifySessionCompleted(flushCtx, summary.Notification()); err != nil {
		l.notifyFailed(logger, "session completed", err)
	}

	var errs []error
	if err := l.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release session lock: %w", err))
	}
	_ = os.Remove(l.lock.Path())
	if err := l.logFile.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session log: %w", err))
	}

	l.mu.Lock()
	l.summary = summary
	l.mu.Unlock()
	return summary, errors.Join(errs...)
}

// Session returns the active session, or nil before Start.
func (l *Lifecycle) Session() *capture.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// Metrics reports elapsed time and imaging rate at now. Both are nil before
// Start.
func (l *Lifecycle) Metrics(now time.Time) capture.Metrics {
	sess := l.Session()
	if sess == nil {
		return capture.Metrics{}
	}
	return sess.Metrics(now)
}

func (l *Lifecycle) reportCollision(ctx context.Context, ce *capture.CollisionError) {
	catalogNumber := strings.TrimSuffix(filepath.Base(ce.Desired), filepath.Ext(ce.Desired))
	logging.ErrorWithContext(l.sessionLog, "rename collision; file left in place", "rename_collision",
		logging.String(logging.FieldPath, ce.Source),
		logging.String(logging.FieldCatalogNumber, catalogNumber),
		logging.Alert("duplicate_catalog_number"),
		logging.String("desired", ce.Desired),
		logging.String("fallback", ce.Fallback),
		logging.String(logging.FieldErrorHint, "move or rename the conflicting files, then run digistation commit"),
		logging.String(logging.FieldImpact, "capture keeps its original file name"),
	)
	if err := l.notifier.NotifyRenameCollision(ctx, catalogNumber, ce.Source); err != nil {
		l.notifyFailed(l.sessionLog, "rename collision", err)
	}
}

func (l *Lifecycle) notifyFailed(logger *slog.Logger, what string, err error) {
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.String("notification", what),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
	)
}

func resolveDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", ErrNoSessionPath
	}
	expanded, err := config.ExpandPath(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSessionPath, err)
	}
	if res := preflight.CheckDirectoryAccess("session directory", expanded); !res.Passed {
		return "", fmt.Errorf("%w: %s", ErrNoSessionPath, res.Detail)
	}
	return expanded, nil
}

// normalizeText trims operator input and folds it to NFC so names typed on
// different keyboards compare equal in the catalog.
func normalizeText(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}
