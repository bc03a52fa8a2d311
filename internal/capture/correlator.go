package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"digistation/internal/catalog"
	"digistation/internal/config"
	"digistation/internal/logging"
)

// Correlator merges file notifications into session events.
type Correlator struct {
	cfg       *config.Config
	adapters  Adapters
	resolver  *catalog.Resolver
	snapshots *SnapshotWriter
	committer *Committer
	logger    *slog.Logger
	now       func() time.Time
}

// CorrelatorOption customizes a Correlator.
type CorrelatorOption func(*Correlator)

// WithCommitter enables commit-on-update; the committer runs after every
// successful registration when capture.commit_on_update is set.
func WithCommitter(c *Committer) CorrelatorOption {
	return func(cr *Correlator) { cr.committer = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CorrelatorOption {
	return func(cr *Correlator) {
		if now != nil {
			cr.now = now
		}
	}
}

// NewCorrelator wires the correlation engine.
func NewCorrelator(cfg *config.Config, adapters Adapters, resolver *catalog.Resolver, snapshots *SnapshotWriter, logger *slog.Logger, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		cfg:       cfg,
		adapters:  adapters,
		resolver:  resolver,
		snapshots: snapshots,
		logger:    logging.NewComponentLogger(logger, "correlator"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle dispatches a normalized file event. Deletions are logged and ignored.
func (c *Correlator) Handle(ctx context.Context, s *Session, ev FileEvent) (*Event, error) {
	switch ev.Kind {
	case FileCreated, FileModified, FileMovedTo:
		return c.Register(ctx, s, ev.Path)
	case FileDeleted:
		c.logger.Info("file deletion ignored",
			logging.String(logging.FieldPath, ev.Path),
			logging.String(logging.FieldEventType, "file_deleted"),
		)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown file event kind %d for %s", ev.Kind, ev.Path)
	}
}

// Register correlates path into the session. The returned event is the one
// registered under the file's stem, or nil when none exists.
func (c *Correlator) Register(ctx context.Context, s *Session, path string) (*Event, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	logger := c.logger.With(logging.String(logging.FieldStem, stem))

	if owner := s.ownerOfRenamed(path); owner != nil {
		logger.Debug("ignoring notification for committed rename",
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldEventID, owner.ID),
		)
		return owner, nil
	}

	kind, ok := c.kindOf(ext)
	existing := s.lookup(stem)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnmatchedExtension, base)
		logging.WarnWithContext(logger, "file extension is neither raw nor derived; no event updated", "unmatched_extension",
			logging.String(logging.FieldPath, path),
			logging.String("extension", ext),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "add the extension to capture.raw_extensions or capture.derived_extensions"),
			logging.String(logging.FieldImpact, "file is not tracked"),
		)
		return existing, err
	}

	if owner := s.committedFrom(stem, kind, path); owner != nil {
		logger.Debug("ignoring stale notification for committed camera name",
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldEventID, owner.ID),
			logging.String("kind", string(kind)),
		)
		return owner, nil
	}

	apply := c.collect(ctx, logger, kind, path)

	now := c.now()
	var event *Event
	var snapshot Event
	if existing == nil {
		event = s.newEvent(stem, now)
		apply(event)
		event.classify()
		snapshot = event.Clone()
		c.persist(logger, &snapshot)
		s.add(event)
		logger.Info("capture event created",
			logging.Int(logging.FieldSequence, event.Sequence),
			logging.String(logging.FieldEventID, event.ID),
			logging.String("kind", string(kind)),
			logging.String("status", snapshot.Status),
			logging.String(logging.FieldEventType, "event_created"),
		)
	} else {
		event = existing
		snapshot = s.update(event, now, func(e *Event) {
			apply(e)
			e.classify()
		})
		c.persist(logger, &snapshot)
		logger.Info("capture event updated",
			logging.Int(logging.FieldSequence, event.Sequence),
			logging.String(logging.FieldEventID, event.ID),
			logging.String("kind", string(kind)),
			logging.String("status", snapshot.Status),
			logging.String(logging.FieldEventType, "event_updated"),
		)
	}

	if c.committer != nil && c.cfg != nil && c.cfg.Capture.CommitOnUpdate {
		if err := c.committer.Commit(ctx, s, event); err != nil && !errors.Is(err, ErrMissingCatalogNumber) {
			return event, err
		}
	}
	return event, nil
}

func (c *Correlator) kindOf(ext string) (ImageKind, bool) {
	switch {
	case c.cfg.IsRawExtension(ext):
		return KindRaw, true
	case c.cfg.IsDerivedExtension(ext):
		return KindDerived, true
	default:
		return "", false
	}
}

// collect runs the adapters for kind outside the session lock and returns a
// mutation that records their results.
func (c *Correlator) collect(ctx context.Context, logger *slog.Logger, kind ImageKind, path string) func(*Event) {
	if kind == KindRaw {
		hash := c.optional(logger, "hash", path, func() (string, error) { return c.adapters.Hash(path) })
		created := c.optional(logger, "creation_date", path, func() (string, error) { return c.adapters.CreationDate(path) })
		return func(e *Event) {
			if e.OriginalRawImage != nil && *e.OriginalRawImage != path {
				e.NewRawImage = nil
				e.RawRename = RenameState{}
			}
			e.OriginalRawImage = stringPtr(path)
			e.RawImageMD5Hash = hash
			e.RawImageCreationDate = created
		}
	}

	hash := c.optional(logger, "hash", path, func() (string, error) { return c.adapters.Hash(path) })

	var barcodes []Barcode
	var resolution catalog.Resolution
	read, err := c.adapters.ReadBarcodes(ctx, path)
	if err != nil {
		c.adapterFailed(logger, "barcode", path, err)
	} else {
		barcodes = read
		values := make([]string, 0, len(read))
		for _, b := range read {
			values = append(values, b.Value)
		}
		if len(values) > 0 {
			resolution = c.resolver.Resolve(values)
		}
		if resolution.CatalogNumber == nil {
			logging.WarnWithContext(logger, "no catalog number resolved from derived image", "catalog_number_missing",
				logging.String(logging.FieldPath, path),
				logging.Int("barcode_count", len(read)),
				logging.String(logging.FieldErrorHint, "check barcode placement and focus, then recapture"),
				logging.String(logging.FieldImpact, "files will keep their camera names"),
			)
		}
	}

	var blurry *bool
	var blurriness *float64
	isBlurry, score, err := c.adapters.EvaluateBlur(path)
	if err != nil {
		c.adapterFailed(logger, "blur", path, err)
	} else {
		blurry, blurriness = &isBlurry, &score
		if isBlurry {
			logging.WarnWithContext(logger, "derived image looks blurry", "image_blurry",
				logging.String(logging.FieldPath, path),
				logging.Float64("blurriness", score),
				logging.String(logging.FieldErrorHint, "check focus and recapture if the label is unreadable"),
				logging.String(logging.FieldImpact, "event is flagged as blurry"),
			)
		}
	}

	return func(e *Event) {
		if e.OriginalDerivedImage != nil && *e.OriginalDerivedImage != path {
			e.NewDerivedImage = nil
			e.DerivedRename = RenameState{}
		}
		e.OriginalDerivedImage = stringPtr(path)
		e.DerivedImageMD5Hash = hash
		e.Barcodes = barcodes
		e.CatalogNumber = resolution.CatalogNumber
		e.OtherCatalogNumbers = resolution.Others
		e.IsBlurry = blurry
		e.Blurriness = blurriness
	}
}

func (c *Correlator) optional(logger *slog.Logger, adapter, path string, fn func() (string, error)) *string {
	value, err := fn()
	if err != nil {
		c.adapterFailed(logger, adapter, path, err)
		return nil
	}
	return &value
}

func (c *Correlator) adapterFailed(logger *slog.Logger, adapter, path string, err error) {
	if errors.Is(err, ErrAdapterSkipped) {
		logger.Debug("metadata adapter skipped", logging.String("adapter", adapter), logging.String(logging.FieldPath, path))
		return
	}
	wrapped := &AdapterError{Adapter: adapter, Path: path, Err: err}
	logging.WarnWithContext(logger, "metadata adapter failed; field left empty", "adapter_failed",
		logging.String("adapter", adapter),
		logging.String(logging.FieldPath, path),
		logging.Error(wrapped),
		logging.String(logging.FieldErrorHint, "the file may still be written by the camera; a later notification retries"),
		logging.String(logging.FieldImpact, adapter+" value missing from the event record"),
	)
}

func (c *Correlator) persist(logger *slog.Logger, snapshot *Event) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.Write(snapshot); err != nil {
		logging.WarnWithContext(logger, "event snapshot write failed", "snapshot_failed",
			logging.String(logging.FieldEventID, snapshot.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions in the session directory"),
			logging.String(logging.FieldImpact, "bulk loader will miss this event until the next update"),
		)
	}
}
