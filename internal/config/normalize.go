package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeBarcode()
	c.normalizeBlur()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Station.IdentityPath) == "" {
		c.Station.IdentityPath = defaultIdentityPath
	}
	if c.Station.IdentityPath, err = expandPath(c.Station.IdentityPath); err != nil {
		return fmt.Errorf("station.identity_path: %w", err)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = defaultDatabasePath
	}
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.RawExtensions = normalizeExtensions(c.Capture.RawExtensions, defaultRawExtensions)
	c.Capture.DerivedExtensions = normalizeExtensions(c.Capture.DerivedExtensions, defaultDerivedExtensions)

	patterns := make([]string, 0, len(c.Capture.CatalogPatterns))
	for _, p := range c.Capture.CatalogPatterns {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	if len(patterns) == 0 {
		patterns = cloneStrings(defaultCatalogPatterns)
	}
	c.Capture.CatalogPatterns = patterns
	c.Capture.RequiredPrefix = strings.TrimSpace(c.Capture.RequiredPrefix)

	if c.Capture.IgnorePatterns == nil {
		c.Capture.IgnorePatterns = cloneStrings(defaultIgnorePatterns)
	}
	if c.Capture.EventBuffer <= 0 {
		c.Capture.EventBuffer = defaultEventBuffer
	}
	if c.Capture.SettleMillis < 0 {
		c.Capture.SettleMillis = 0
	}
}

func normalizeExtensions(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		ext := strings.ToLower(strings.TrimSpace(v))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return cloneStrings(fallback)
	}
	return out
}

func (c *Config) normalizeBarcode() {
	c.Barcode.Command = strings.TrimSpace(c.Barcode.Command)
	if c.Barcode.Command == "" {
		c.Barcode.Command = defaultBarcodeCommand
	}
	if c.Barcode.TimeoutSeconds <= 0 {
		c.Barcode.TimeoutSeconds = defaultBarcodeTimeoutSeconds
	}
}

func (c *Config) normalizeBlur() {
	if c.Blur.Threshold <= 0 {
		c.Blur.Threshold = defaultBlurThreshold
	}
	if c.Blur.MaxDimension < 0 {
		c.Blur.MaxDimension = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("DIGISTATION_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
