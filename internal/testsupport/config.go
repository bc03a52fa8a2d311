package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"digistation/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Notifications are disabled and the settle delay is zero so watcher events
// arrive without waiting.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Station.IdentityPath = filepath.Join(base, "station.toml")
	cfgVal.Database.Path = filepath.Join(base, "state", "session_images.db")
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Capture.SettleMillis = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCapture mutates the capture section.
func WithCapture(fn func(*config.Capture)) ConfigOption {
	return func(b *configBuilder) {
		fn(&b.cfg.Capture)
	}
}

// WithBlurDisabled turns blur evaluation off.
func WithBlurDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Blur.Enabled = false
	}
}

// WithStubbedBarcodeReader writes a shell script that prints output and exits
// with code, then points the barcode command at it.
func WithStubbedBarcodeReader(output string, code int) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "zbarimg")
		script := fmt.Sprintf("#!/bin/sh\nprintf '%%s' '%s'\nexit %d\n", output, code)
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write stub zbarimg: %v", err)
		}
		b.cfg.Barcode.Command = target
		b.cfg.Barcode.Args = nil
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
