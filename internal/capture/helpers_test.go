package capture_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"digistation/internal/capture"
	"digistation/internal/catalog"
	"digistation/internal/config"
	"digistation/internal/logging"
)

type fakeAdapters struct {
	mu       sync.Mutex
	barcodes map[string][]capture.Barcode
	blurry   map[string]bool
	hashErr  error
	blurErr  error
	calls    []string
}

func newFakeAdapters() *fakeAdapters {
	return &fakeAdapters{
		barcodes: map[string][]capture.Barcode{},
		blurry:   map[string]bool{},
	}
}

func (f *fakeAdapters) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAdapters) Hash(path string) (string, error) {
	f.record("hash " + filepath.Base(path))
	if f.hashErr != nil {
		return "", f.hashErr
	}
	return "md5-" + filepath.Base(path), nil
}

func (f *fakeAdapters) CreationDate(path string) (string, error) {
	f.record("date " + filepath.Base(path))
	return "2024-03-01 10:15:00", nil
}

func (f *fakeAdapters) ReadBarcodes(_ context.Context, path string) ([]capture.Barcode, error) {
	f.record("barcodes " + filepath.Base(path))
	return f.barcodes[filepath.Base(path)], nil
}

func (f *fakeAdapters) EvaluateBlur(path string) (bool, float64, error) {
	f.record("blur " + filepath.Base(path))
	if f.blurErr != nil {
		return false, 0, f.blurErr
	}
	return f.blurry[filepath.Base(path)], 250.5, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	created []capture.Event
	updated []capture.Event
}

func (o *recordingObserver) EventCreated(e capture.Event) {
	o.mu.Lock()
	o.created = append(o.created, e)
	o.mu.Unlock()
}

func (o *recordingObserver) EventUpdated(e capture.Event) {
	o.mu.Lock()
	o.updated = append(o.updated, e)
	o.mu.Unlock()
}

type harness struct {
	dir        string
	cfg        *config.Config
	adapters   *fakeAdapters
	session    *capture.Session
	snapshots  *capture.SnapshotWriter
	committer  *capture.Committer
	correlator *capture.Correlator
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	for _, fn := range mutate {
		fn(&cfg)
	}
	dir := t.TempDir()
	logger := logging.NewNop()
	adapters := newFakeAdapters()
	resolver := catalog.MustNewResolver(cfg.Capture.CatalogPatterns, cfg.Capture.RequiredPrefix)
	snapshots := capture.NewSnapshotWriter(logger)
	committer := capture.NewCommitter(snapshots, logger)
	session := capture.NewSession(capture.SessionInfo{
		Path:           dir,
		Username:       "jdoe",
		CollectionCode: "BRIT",
		ProjectCode:    "TORCH",
	}, time.Now())
	return &harness{
		dir:        dir,
		cfg:        &cfg,
		adapters:   adapters,
		session:    session,
		snapshots:  snapshots,
		committer:  committer,
		correlator: capture.NewCorrelator(&cfg, adapters, resolver, snapshots, logger, capture.WithCommitter(committer)),
	}
}

// touch creates a file in the harness directory and returns its absolute path.
func (h *harness) touch(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func (h *harness) register(t *testing.T, name string) *capture.Event {
	t.Helper()
	e, err := h.correlator.Register(context.Background(), h.session, filepath.Join(h.dir, name))
	if err != nil {
		t.Fatalf("Register(%s) returned error: %v", name, err)
	}
	return e
}

func barcode(value string) []capture.Barcode {
	return []capture.Barcode{{Symbology: "CODE39", Value: value}}
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func assertMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent, err=%v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
