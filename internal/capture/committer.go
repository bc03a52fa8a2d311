package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"digistation/internal/fileutil"
	"digistation/internal/logging"
	"digistation/internal/textutil"
)

// Committer renames captured files to their catalog number.
type Committer struct {
	snapshots *SnapshotWriter
	logger    *slog.Logger
	now       func() time.Time
}

// NewCommitter constructs a committer. snapshots may be nil to skip persistence.
func NewCommitter(snapshots *SnapshotWriter, logger *slog.Logger) *Committer {
	return &Committer{
		snapshots: snapshots,
		logger:    logging.NewComponentLogger(logger, "committer"),
		now:       time.Now,
	}
}

// Commit applies the rename protocol to the raw and derived files of e.
// Events without a catalog number return ErrMissingCatalogNumber and are left
// alone. Kinds already renamed are skipped; failed kinds are retried. Errors of
// both kinds are joined.
func (c *Committer) Commit(ctx context.Context, s *Session, e *Event) error {
	current := s.snapshot(e)
	logger := c.logger.With(
		logging.String(logging.FieldEventID, current.ID),
		logging.String(logging.FieldStem, current.OriginalFilename),
		logging.Int(logging.FieldSequence, current.Sequence),
	)
	if current.CatalogNumber == nil || *current.CatalogNumber == "" {
		logger.Info("rename skipped; no catalog number",
			logging.String(logging.FieldEventType, "rename_skipped"),
		)
		return ErrMissingCatalogNumber
	}
	catalogNumber := *current.CatalogNumber

	var errs []error
	for _, kind := range []ImageKind{KindRaw, KindDerived} {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.commitKind(s, e, kind, catalogNumber, logger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Committer) commitKind(s *Session, e *Event, kind ImageKind, catalogNumber string, logger *slog.Logger) error {
	current := s.snapshot(e)
	state := current.renameState(kind)
	if state.Done() {
		return nil
	}
	source, ok := current.CurrentPath(kind)
	if !ok {
		return nil
	}

	dir := filepath.Dir(source)
	ext := filepath.Ext(source)
	stem := textutil.SanitizeFileName(catalogNumber)
	desired := filepath.Join(dir, stem+ext)
	if source == desired {
		c.record(s, e, kind, renamedTo(desired))
		return nil
	}

	target, err := c.place(kind, source, desired, filepath.Join(dir, stem+"_"+current.ID+ext))
	var collision *CollisionError
	switch {
	case errors.As(err, &collision):
		c.record(s, e, kind, renameFailed(err.Error()))
		logging.WarnWithContext(logger, "rename skipped; target names taken", "rename_collision",
			logging.String("kind", string(kind)),
			logging.String(logging.FieldPath, source),
			logging.String(logging.FieldCatalogNumber, catalogNumber),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "resolve the duplicate catalog number by hand, then run digistation commit"),
			logging.String(logging.FieldImpact, "file keeps its camera name"),
		)
		return err
	case err != nil:
		c.record(s, e, kind, renameFailed(err.Error()))
		logging.ErrorWithContext(logger, "rename failed", "rename_failed",
			logging.String("kind", string(kind)),
			logging.String(logging.FieldPath, source),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions in the session directory"),
		)
		return err
	}
	if err := fileutil.SyncDir(dir); err != nil {
		logging.WarnWithContext(logger, "directory sync after rename failed", "sync_failed",
			logging.String(logging.FieldPath, dir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "rename may not survive a power loss"),
		)
	}

	snapshot := c.record(s, e, kind, renamedTo(target))
	logger.Info("image renamed",
		logging.String("kind", string(kind)),
		logging.String("from", source),
		logging.String("to", target),
		logging.String(logging.FieldCatalogNumber, catalogNumber),
		logging.String(logging.FieldEventType, "image_renamed"),
	)
	if c.snapshots != nil {
		if err := c.snapshots.Write(&snapshot); err != nil {
			logging.WarnWithContext(logger, "snapshot write after rename failed", "snapshot_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "snapshot still lists the previous file name"),
			)
		}
	}
	return nil
}

// place moves source to desired, or to fallback when desired is taken.
// Existing files are never replaced.
func (c *Committer) place(kind ImageKind, source, desired, fallback string) (string, error) {
	for _, target := range []string{desired, fallback} {
		err := fileutil.RenameNoReplace(source, target)
		if err == nil {
			return target, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("rename %s image %s: %w", kind, source, err)
		}
	}
	return "", &CollisionError{Kind: kind, Source: source, Desired: desired, Fallback: fallback}
}

func (c *Committer) record(s *Session, e *Event, kind ImageKind, state RenameState) Event {
	return s.update(e, c.now(), func(ev *Event) {
		ev.setRenameState(kind, state)
	})
}

// CommitAll runs Commit over every event in sequence order. Failures are
// logged per event and never stop the pass. It returns the number of events
// with at least one failed kind and every collision encountered.
func (c *Committer) CommitAll(ctx context.Context, s *Session) (int, []*CollisionError) {
	failed := 0
	var collisions []*CollisionError
	for _, e := range s.ordered() {
		err := c.Commit(context.WithoutCancel(ctx), s, e)
		if err == nil || errors.Is(err, ErrMissingCatalogNumber) {
			continue
		}
		failed++
		collisions = append(collisions, Collisions(err)...)
	}
	return failed, collisions
}

// Collisions returns every *CollisionError in the tree of err.
func Collisions(err error) []*CollisionError {
	var out []*CollisionError
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if ce, ok := err.(*CollisionError); ok {
			out = append(out, ce)
			return
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
