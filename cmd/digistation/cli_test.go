package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"digistation/internal/capture"
	"digistation/internal/config"
	"digistation/internal/logging"
	"digistation/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithBlurDisabled())
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("DIGISTATION_NTFY_TOPIC", "")
	for _, fn := range mutate {
		fn(cfg)
	}

	configPath := filepath.Join(homeDir, ".config", "digistation", "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	full := args
	if env != nil {
		full = append([]string{"--config", env.configPath}, args...)
	}
	cmd.SetArgs(full)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, text, substr string) {
	t.Helper()
	if !strings.Contains(text, substr) {
		t.Fatalf("expected %q to contain %q", text, substr)
	}
}

func writeText(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeCapture fabricates a captured raw/derived pair and its snapshot, as a
// session would have left them.
func writeCapture(t *testing.T, dir, stem, catalogNumber string, sequence int) {
	t.Helper()
	raw := filepath.Join(dir, stem+".CR2")
	derived := filepath.Join(dir, stem+".JPG")
	writeText(t, raw, "raw-"+stem)
	writeText(t, derived, "jpg-"+stem)

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	e := &capture.Event{
		Session: capture.SessionInfo{
			ID:       "11111111-2222-3333-4444-555555555555",
			Path:     dir,
			Username: "tester",
		},
		ID:                   "ev-" + stem,
		OriginalFilename:     stem,
		Sequence:             sequence,
		OriginalRawImage:     &raw,
		OriginalDerivedImage: &derived,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if catalogNumber != "" {
		e.CatalogNumber = &catalogNumber
	}
	e.Status, e.StatusLevel = capture.Classify(e)
	if err := capture.NewSnapshotWriter(logging.NewNop()).Write(e); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
	if _, _, err := runCLI(t, env, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestResolveCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "resolve", "BRIT045", "999", "badcode")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	requireContains(t, out, "Catalog number: 999")

	out, _, err = runCLI(t, env, "resolve", "--json", "nothing-here")
	if err != nil {
		t.Fatalf("resolve --json: %v", err)
	}
	var got resolveOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode resolve output %q: %v", out, err)
	}
	if got.CatalogNumber != nil {
		t.Fatalf("expected no catalog number, got %q", *got.CatalogNumber)
	}
	if got.Others == nil {
		t.Fatal("expected empty others list, got null")
	}
}

func TestStationInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env, "station", "show"); err == nil {
		t.Fatal("expected error before station init")
	}

	out, _, err := runCLI(t, env, "station", "init", "--id", "S1")
	if err != nil {
		t.Fatalf("station init: %v", err)
	}
	requireContains(t, out, "station_id:   S1")

	if _, _, err := runCLI(t, env, "station", "init", "--id", "S2"); err == nil {
		t.Fatal("expected error when identity exists without --force")
	}

	out, _, err = runCLI(t, env, "station", "show", "--json")
	if err != nil {
		t.Fatalf("station show: %v", err)
	}
	var shown map[string]string
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode station output: %v", err)
	}
	if shown["station_id"] != "S1" || shown["station_uuid"] == "" {
		t.Fatalf("unexpected station output: %v", shown)
	}
}

func TestEventsList(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	writeCapture(t, dir, "IMG_0001", "BRIT1", 1)
	writeCapture(t, dir, "IMG_0002", "", 2)

	out, _, err := runCLI(t, env, "events", "list", "--json", dir)
	if err != nil {
		t.Fatalf("events list: %v", err)
	}
	var records []capture.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	out, _, err = runCLI(t, env, "events", "list", dir)
	if err != nil {
		t.Fatalf("events list table: %v", err)
	}
	requireContains(t, out, "IMG_0001")
	requireContains(t, out, "BRIT1")

	out, _, err = runCLI(t, env, "events", "list", t.TempDir())
	if err != nil {
		t.Fatalf("events list empty: %v", err)
	}
	requireContains(t, out, "No capture events found")
}

func TestCommitRenamesFromSnapshots(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	writeCapture(t, dir, "IMG_0001", "BRIT1", 1)
	writeCapture(t, dir, "IMG_0002", "", 2)

	out, _, err := runCLI(t, env, "commit", dir)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	requireContains(t, out, "2 events, 2 files at their catalog name, 0 failed")

	for _, name := range []string{"BRIT1.CR2", "BRIT1.JPG", "IMG_0002.CR2", "IMG_0002.JPG"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "BRIT1.JSON"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	rec, err := capture.DecodeRecord(data)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got := capture.StringValue(rec.NewRawImage); got != filepath.Join(dir, "BRIT1.CR2") {
		t.Fatalf("new_raw_image = %q", got)
	}
}

func TestCommitFollowsMovedSessionDirectory(t *testing.T) {
	env := setupCLITestEnv(t)
	original := filepath.Join(t.TempDir(), "session")
	if err := os.MkdirAll(original, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeCapture(t, original, "IMG_0001", "BRIT1", 1)
	moved := filepath.Join(t.TempDir(), "moved")
	if err := os.Rename(original, moved); err != nil {
		t.Fatalf("move session: %v", err)
	}

	if _, _, err := runCLI(t, env, "commit", moved); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := os.Stat(filepath.Join(moved, "BRIT1.CR2")); err != nil {
		t.Fatalf("expected rename inside moved directory: %v", err)
	}
}

func TestDBLoadAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	writeCapture(t, dir, "IMG_0001", "BRIT1", 1)
	writeCapture(t, dir, "IMG_0002", "BRIT2", 2)

	out, _, err := runCLI(t, env, "db", "load", dir)
	if err != nil {
		t.Fatalf("db load: %v", err)
	}
	requireContains(t, out, "Loaded 2 of 2 snapshots")

	// Loading again updates rows in place.
	if _, _, err := runCLI(t, env, "db", "load", dir); err != nil {
		t.Fatalf("db load again: %v", err)
	}

	out, _, err = runCLI(t, env, "db", "list", "--json")
	if err != nil {
		t.Fatalf("db list: %v", err)
	}
	var records []capture.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode db list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(records))
	}

	out, _, err = runCLI(t, env, "db", "list", "--catalog-number", "BRIT2")
	if err != nil {
		t.Fatalf("db list filtered: %v", err)
	}
	requireContains(t, out, "IMG_0002")
	if strings.Contains(out, "IMG_0001") {
		t.Fatalf("filter leaked other rows: %s", out)
	}

	writeText(t, filepath.Join(dir, "broken.JSON"), "{not json")
	out, _, err = runCLI(t, env, "db", "load", dir)
	if err == nil {
		t.Fatal("expected error when a snapshot fails to load")
	}
	requireContains(t, out, "broken.JSON")
}

func TestTestNotify(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify without topic: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env = setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = srv.URL
	})
	out, _, err = runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
}

func TestCheckReportsPrograms(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "zbarimg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Barcode.Command = stub
	})
	out, _, err := runCLI(t, env, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "Barcode decoder")
	requireContains(t, out, "unset")

	env = setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Barcode.Command = "clearly-not-present-zbarimg"
	})
	out, _, err = runCLI(t, env, "check")
	if err == nil {
		t.Fatal("expected error when the barcode decoder is missing")
	}
	requireContains(t, out, "missing")
}

func TestEventsLogTailsSessionLog(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	writeText(t, filepath.Join(dir, "0b9c7a52-2f44-4c4e-9a55-2c1f1d3b6a10.log"), "one\ntwo\nthree\n")

	out, _, err := runCLI(t, env, "events", "log", "-n", "2", dir)
	if err != nil {
		t.Fatalf("events log: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected output %q", out)
	}

	if _, _, err := runCLI(t, env, "events", "log", t.TempDir()); err == nil {
		t.Fatal("expected error for a directory without a session log")
	}
}
