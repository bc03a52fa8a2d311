package session_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"digistation/internal/capture"
	"digistation/internal/config"
	"digistation/internal/logging"
	"digistation/internal/notifications"
	"digistation/internal/session"
	"digistation/internal/station"
	"digistation/internal/testsupport"
)

type stubAdapters struct {
	barcodes map[string][]capture.Barcode
}

func (stubAdapters) Hash(path string) (string, error) { return "md5-" + filepath.Base(path), nil }

func (stubAdapters) CreationDate(string) (string, error) { return "2024-03-01 10:15:00", nil }

func (s stubAdapters) ReadBarcodes(_ context.Context, path string) ([]capture.Barcode, error) {
	return s.barcodes[filepath.Base(path)], nil
}

func (stubAdapters) EvaluateBlur(string) (bool, float64, error) { return false, 500, nil }

type countingObserver struct {
	mu      sync.Mutex
	created int
	updated int
}

func (o *countingObserver) EventCreated(capture.Event) {
	o.mu.Lock()
	o.created++
	o.mu.Unlock()
}

func (o *countingObserver) EventUpdated(capture.Event) {
	o.mu.Lock()
	o.updated++
	o.mu.Unlock()
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newLifecycle(cfg *config.Config, notifier notifications.Service) *session.Lifecycle {
	adapters := stubAdapters{barcodes: map[string][]capture.Barcode{
		"IMG_0007.JPG": {{Symbology: "CODE-39", Value: "BRIT123456"}},
	}}
	return session.New(cfg, logging.NewNop(), notifier, session.WithAdapters(adapters))
}

func TestStartRequiresDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	file := filepath.Join(t.TempDir(), "plain.txt")
	touch(t, file)

	for _, dir := range []string{"", "   ", filepath.Join(t.TempDir(), "missing"), file} {
		lc := newLifecycle(cfg, nil)
		if _, err := lc.Start(context.Background(), session.Options{Dir: dir}); !errors.Is(err, session.ErrNoSessionPath) {
			t.Fatalf("dir %q: expected ErrNoSessionPath, got %v", dir, err)
		}
	}
}

func TestRunAndStopBeforeStart(t *testing.T) {
	lc := newLifecycle(testsupport.NewConfig(t), nil)
	if err := lc.Run(context.Background()); !errors.Is(err, session.ErrNotStarted) {
		t.Fatalf("Run: expected ErrNotStarted, got %v", err)
	}
	if _, err := lc.Stop(context.Background()); !errors.Is(err, session.ErrNotStarted) {
		t.Fatalf("Stop: expected ErrNotStarted, got %v", err)
	}
	m := lc.Metrics(time.Now())
	if m.ElapsedTime != nil || m.ImagingRate != nil {
		t.Fatalf("expected empty metrics before start, got %+v", m)
	}
}

func TestSessionCorrelatesAndFlushes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := station.Init(cfg.Station.IdentityPath, "S1", false); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	observer := &countingObserver{}
	lc := newLifecycle(cfg, nil)

	sess, err := lc.Start(context.Background(), session.Options{
		Dir:            dir,
		Username:       " Jose\u0301 ",
		CollectionCode: "BRIT",
		ProjectCode:    "TORCH",
		Observers:      []capture.Observer{observer},
	})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if sess.Info.Username != "Jos\u00e9" {
		t.Fatalf("expected NFC-normalized username, got %q", sess.Info.Username)
	}
	if sess.Info.StationID == nil || *sess.Info.StationID != "S1" {
		t.Fatalf("expected station id from identity file, got %v", sess.Info.StationID)
	}
	if _, err := os.Stat(filepath.Join(dir, session.LockFileName)); err != nil {
		t.Fatalf("expected lock file: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- lc.Run(context.Background()) }()

	touch(t, filepath.Join(dir, "IMG_0007.CR2"))
	touch(t, filepath.Join(dir, "IMG_0007.JPG"))

	eventually(t, "complete capture event", func() bool {
		e, ok := sess.Lookup("IMG_0007")
		return ok && e.HasRaw() && e.HasDerived() && e.CatalogNumber != nil
	})

	summary, err := lc.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := <-runErr; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Events != 1 || summary.Renamed != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Rows) != 1 || summary.Rows[0].CatalogNumber != "BRIT123456" || summary.Rows[0].Level != capture.SeverityOK {
		t.Fatalf("unexpected summary rows %+v", summary.Rows)
	}
	for _, name := range []string{"BRIT123456.CR2", "BRIT123456.JPG", "BRIT123456.JSON", sess.Info.ID + ".log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	for _, name := range []string{"IMG_0007.CR2", "IMG_0007.JPG", session.LockFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be gone, err=%v", name, err)
		}
	}

	observer.mu.Lock()
	created := observer.created
	observer.mu.Unlock()
	if created != 1 {
		t.Fatalf("expected one created notification, got %d", created)
	}

	again, err := lc.Stop(context.Background())
	if err != nil || again.SessionID != summary.SessionID {
		t.Fatalf("second Stop should return the first summary, got %+v, %v", again, err)
	}
}

func TestScanExistingRegistersFilesInNameOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCapture(func(c *config.Capture) {
		c.ScanExisting = true
	}))
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "IMG_0002.CR2"))
	touch(t, filepath.Join(dir, "IMG_0001.CR2"))
	touch(t, filepath.Join(dir, "notes.txt"))

	lc := newLifecycle(cfg, nil)
	sess, err := lc.Start(context.Background(), session.Options{Dir: dir, Username: "jo"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = lc.Run(ctx) }()

	eventually(t, "scanned events", func() bool { return sess.Len() == 2 })
	if _, err := lc.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	events := sess.Events()
	if events[0].OriginalFilename != "IMG_0001" || events[1].OriginalFilename != "IMG_0002" {
		t.Fatalf("expected name order, got %s then %s", events[0].OriginalFilename, events[1].OriginalFilename)
	}
	if events[0].Status != "Raw image recorded." {
		t.Fatalf("unexpected status %q", events[0].Status)
	}
}

func TestSecondSessionInSameDirectoryIsLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()

	first := newLifecycle(cfg, nil)
	if _, err := first.Start(context.Background(), session.Options{Dir: dir}); err != nil {
		t.Fatal(err)
	}
	defer first.Stop(context.Background())

	second := newLifecycle(cfg, nil)
	if _, err := second.Start(context.Background(), session.Options{Dir: dir}); !errors.Is(err, session.ErrSessionLocked) {
		t.Fatalf("expected ErrSessionLocked, got %v", err)
	}
	if _, err := first.Start(context.Background(), session.Options{Dir: dir}); !errors.Is(err, session.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSessionSendsNotifications(t *testing.T) {
	var (
		mu     sync.Mutex
		titles []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = srv.URL
	lc := newLifecycle(cfg, notifications.NewService(cfg))

	if _, err := lc.Start(context.Background(), session.Options{Dir: t.TempDir(), Username: "jo"}); err != nil {
		t.Fatal(err)
	}
	if _, err := lc.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"digistation - Session Started", "digistation - Session Complete"}
	if len(titles) != len(want) {
		t.Fatalf("expected %v, got %v", want, titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("notification %d = %q, want %q", i, titles[i], want[i])
		}
	}
}
