package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"digistation/internal/fileutil"
	"digistation/internal/logging"
	"digistation/internal/textutil"
)

// SnapshotExt is the case-sensitive extension of persisted event records.
const SnapshotExt = ".JSON"

// SnapshotName returns the file name for an event: the catalog number when
// resolved, otherwise the stem joined with the event id.
func SnapshotName(e *Event) string {
	if e.CatalogNumber != nil && *e.CatalogNumber != "" {
		return textutil.SanitizeFileName(*e.CatalogNumber) + SnapshotExt
	}
	return e.OriginalFilename + "_" + e.ID + SnapshotExt
}

// fallbackSnapshotName is used when another event already owns the catalog
// number's snapshot file.
func fallbackSnapshotName(e *Event) string {
	return textutil.SanitizeFileName(StringValue(e.CatalogNumber)) + "_" + e.ID + SnapshotExt
}

// SnapshotWriter persists events into their session directory and removes the
// previous file when an event's snapshot name changes.
type SnapshotWriter struct {
	logger *slog.Logger

	mu      sync.Mutex
	written map[string]string
}

// NewSnapshotWriter constructs a writer.
func NewSnapshotWriter(logger *slog.Logger) *SnapshotWriter {
	return &SnapshotWriter{
		logger:  logging.NewComponentLogger(logger, "snapshot"),
		written: make(map[string]string),
	}
}

// Track records an existing snapshot file for an event loaded from disk.
func (w *SnapshotWriter) Track(eventID, path string) {
	w.mu.Lock()
	w.written[eventID] = path
	w.mu.Unlock()
}

// Write atomically persists e. Events without a session path are skipped.
func (w *SnapshotWriter) Write(e *Event) error {
	dir := strings.TrimSpace(e.Session.Path)
	if dir == "" {
		w.logger.Debug("snapshot skipped; no session path", logging.String(logging.FieldEventID, e.ID))
		return nil
	}
	data, err := json.MarshalIndent(NewRecord(e), "", "    ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	path := filepath.Join(dir, SnapshotName(e))
	if e.CatalogNumber != nil && w.ownedByOther(path, e.ID) {
		path = filepath.Join(dir, fallbackSnapshotName(e))
	}
	if err := fileutil.AtomicWriteFile(path, append(data, '\n'), 0o644); err != nil {
		return err
	}

	w.mu.Lock()
	previous := w.written[e.ID]
	w.written[e.ID] = path
	w.mu.Unlock()

	if previous != "" && previous != path {
		if err := os.Remove(previous); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(w.logger, "stale snapshot not removed", "snapshot_stale",
				logging.String(logging.FieldPath, previous),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete the stale file before running db load"),
				logging.String(logging.FieldImpact, "bulk loader may ingest an outdated record"),
			)
		}
	}
	w.logger.Debug("snapshot written",
		logging.String(logging.FieldEventID, e.ID),
		logging.String(logging.FieldPath, path),
	)
	return nil
}

func (w *SnapshotWriter) ownedByOther(path, eventID string) bool {
	w.mu.Lock()
	for id, p := range w.written {
		if p == path {
			w.mu.Unlock()
			return id != eventID
		}
	}
	w.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		return false
	}
	return rec.ID != eventID
}

// StoredSnapshot is a record read back from disk.
type StoredSnapshot struct {
	Path   string
	Record Record
}

// ReadSnapshots loads every *.JSON record in dir ordered by sequence. Files
// that fail to decode are returned as errors joined together while the rest
// still load.
func ReadSnapshots(dir string) ([]StoredSnapshot, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+SnapshotExt))
	if err != nil {
		return nil, err
	}
	var out []StoredSnapshot
	var errs []error
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rec, err := DecodeRecord(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			continue
		}
		out = append(out, StoredSnapshot{Path: path, Record: rec})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Record.Sequence != out[j].Record.Sequence {
			return out[i].Record.Sequence < out[j].Record.Sequence
		}
		return out[i].Path < out[j].Path
	})
	return out, errors.Join(errs...)
}
