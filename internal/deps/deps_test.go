package deps

import (
	"os"
	"path/filepath"
	"testing"

	"digistation/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("Missing() = %#v", missing)
	}
}

func TestRequirementsFollowBarcodeCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Barcode.Command = "/opt/zbar/bin/zbarimg"

	reqs := Requirements(cfg)
	if len(reqs) != 1 || reqs[0].Command != "/opt/zbar/bin/zbarimg" || reqs[0].Optional {
		t.Fatalf("unexpected requirements: %#v", reqs)
	}
	if Requirements(nil) != nil {
		t.Fatal("expected no requirements without config")
	}
}
