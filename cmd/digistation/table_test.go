package main

import (
	"strings"
	"testing"

	"digistation/internal/capture"
)

func TestStatusTableColorsSeverityColumnOnly(t *testing.T) {
	tbl := newStatusTable(true, rightCol("#"), leftCol("Stem"), severityCol("Status"))
	tbl.row(capture.SeverityWarning, "1", "IMG_0001", "No barcode found.")
	tbl.row("", "2", "IMG_0002")

	out := tbl.render()
	if !strings.Contains(out, ansiYellow+"No barcode found."+ansiReset) {
		t.Fatalf("expected coloured status cell, got:\n%s", out)
	}
	if strings.Contains(out, ansiYellow+"IMG_0001") {
		t.Fatalf("stem cell must not be coloured:\n%s", out)
	}
	if strings.Count(out, ansiReset) != 1 {
		t.Fatalf("expected a single coloured cell, got:\n%s", out)
	}
	if tbl.rowCount() != 2 {
		t.Fatalf("rowCount = %d, want 2", tbl.rowCount())
	}
}

func TestStatusTablePlainWhenNotColorized(t *testing.T) {
	tbl := newStatusTable(false, leftCol("Check"), severityCol("State"))
	tbl.row(capture.SeverityOK, "Barcode decoder", "ok")

	out := tbl.render()
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected escape sequences:\n%s", out)
	}
	for _, want := range []string{"Check", "State", "Barcode decoder", "ok"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
