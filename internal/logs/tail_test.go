package logs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"digistation/internal/logs"
)

const sessionID = "0b9c7a52-2f44-4c4e-9a55-2c1f1d3b6a10"

func TestSessionLogPicksUUIDNamedFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.log", "digistation-20260101T000000.000Z.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if _, err := logs.SessionLog(dir); !errors.Is(err, logs.ErrNoSessionLog) {
		t.Fatalf("expected ErrNoSessionLog, got %v", err)
	}

	want := filepath.Join(dir, sessionID+".log")
	if err := os.WriteFile(want, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write session log: %v", err)
	}
	got, err := logs.SessionLog(dir)
	if err != nil {
		t.Fatalf("SessionLog: %v", err)
	}
	if got != want {
		t.Fatalf("SessionLog = %q, want %q", got, want)
	}
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), sessionID+".log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := logs.Tail(path, 2)
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("offset = %d, want 6", offset)
	}

	lines, _, err = logs.Tail(path, 10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected all 3 lines, got %#v", lines)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), sessionID+".log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.Tail(path, 1)
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	lines := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, func(line string) { lines <- line })
	}()

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case got := <-lines:
		if got != "later" {
			t.Fatalf("unexpected line %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not emit the appended line")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}
}
