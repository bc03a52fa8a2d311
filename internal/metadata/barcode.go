package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"digistation/internal/capture"
	"digistation/internal/logging"
)

// zbarimg exits with this status when the image decoded cleanly but held no symbols.
const zbarNoSymbols = 4

// BarcodeReader runs an external zbarimg-compatible decoder.
type BarcodeReader struct {
	Command string
	Args    []string
	Timeout time.Duration
	logger  *slog.Logger
}

// Read decodes path. No symbols is an empty result, not an error.
func (r BarcodeReader) Read(ctx context.Context, path string) ([]capture.Barcode, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	args := append(append([]string(nil), r.Args...), path)
	cmd := commandContext(ctx, r.Command, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == zbarNoSymbols {
			if r.logger != nil {
				r.logger.Debug("no barcodes found", logging.String(logging.FieldPath, path))
			}
			return []capture.Barcode{}, nil
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", r.Command, path, err, detail)
		}
		return nil, fmt.Errorf("%s %s: %w", r.Command, path, err)
	}
	return ParseZbarOutput(stdout.String()), nil
}

// ParseZbarOutput parses "SYMBOLOGY:data" lines. Lines without a separator are
// skipped; data may itself contain colons.
func ParseZbarOutput(output string) []capture.Barcode {
	barcodes := []capture.Barcode{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		symbology, data, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		barcodes = append(barcodes, capture.Barcode{
			Symbology: strings.TrimSpace(symbology),
			Value:     data,
		})
	}
	return barcodes
}
