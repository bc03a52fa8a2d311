package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateBarcode(); err != nil {
		return err
	}
	if err := c.validateBlur(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	if len(c.Capture.RawExtensions) == 0 {
		return errors.New("capture.raw_extensions must include at least one extension")
	}
	if len(c.Capture.DerivedExtensions) == 0 {
		return errors.New("capture.derived_extensions must include at least one extension")
	}
	for _, ext := range c.Capture.RawExtensions {
		if c.IsDerivedExtension(ext) {
			return fmt.Errorf("capture: extension %q is listed as both raw and derived", ext)
		}
	}
	for _, pattern := range c.Capture.CatalogPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("capture.catalog_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	for _, pattern := range c.Capture.IgnorePatterns {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("capture.ignore_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	if strings.ContainsAny(c.Capture.RequiredPrefix, `/\`) {
		return errors.New("capture.required_prefix must not contain path separators")
	}
	return nil
}

func (c *Config) validateBarcode() error {
	if c.Barcode.TimeoutSeconds <= 0 {
		return errors.New("barcode.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateBlur() error {
	if c.Blur.Enabled && c.Blur.Threshold <= 0 {
		return errors.New("blur.threshold must be positive when blur.enabled is true")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
