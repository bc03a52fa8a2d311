package catalogdb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"digistation/internal/capture"
	"digistation/internal/logging"
)

// LoadFailure records a snapshot that could not be loaded.
type LoadFailure struct {
	Path string
	Err  error
}

// LoadResult summarizes one directory load.
type LoadResult struct {
	Scanned  int
	Loaded   int
	Failures []LoadFailure
}

type snapshotFile struct {
	path    string
	modTime time.Time
}

// LoadDir ingests every *.JSON snapshot in dir, oldest first. Individual
// snapshot failures are collected in the result and do not stop the load.
func (s *Store) LoadDir(ctx context.Context, dir string, logger *slog.Logger) (LoadResult, error) {
	logger = logging.NewComponentLogger(logger, "catalogdb")

	info, err := os.Stat(dir)
	if err != nil {
		return LoadResult{}, fmt.Errorf("stat load dir: %w", err)
	}
	if !info.IsDir() {
		return LoadResult{}, fmt.Errorf("load dir %s is not a directory", dir)
	}

	files, err := snapshotsByModTime(dir)
	if err != nil {
		return LoadResult{}, err
	}

	result := LoadResult{Scanned: len(files)}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.loadFile(ctx, file.path); err != nil {
			result.Failures = append(result.Failures, LoadFailure{Path: file.path, Err: err})
			logging.WarnWithContext(logger, "snapshot not loaded", "snapshot_load_failed",
				logging.String(logging.FieldPath, file.path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect or regenerate the snapshot file"),
			)
			continue
		}
		result.Loaded++
		logger.Debug("snapshot loaded", logging.String(logging.FieldPath, file.path))
	}

	logger.Info("catalog load complete",
		logging.String(logging.FieldPath, dir),
		logging.Int("scanned", result.Scanned),
		logging.Int("loaded", result.Loaded),
		logging.Int("failed", len(result.Failures)),
		logging.String(logging.FieldEventType, "catalog_load_complete"),
	)
	return result, nil
}

func (s *Store) loadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rec, err := capture.DecodeRecord(data)
	if err != nil {
		return err
	}
	return s.Upsert(ctx, rec, path)
}

func snapshotsByModTime(dir string) ([]snapshotFile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+capture.SnapshotExt))
	if err != nil {
		return nil, fmt.Errorf("glob snapshots: %w", err)
	}
	files := make([]snapshotFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, snapshotFile{path: path, modTime: info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.Before(files[j].modTime)
		}
		return files[i].path < files[j].path
	})
	return files, nil
}
