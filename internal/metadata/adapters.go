package metadata

import (
	"context"
	"log/slog"
	"os/exec"
	"time"

	"digistation/internal/capture"
	"digistation/internal/config"
	"digistation/internal/fileutil"
	"digistation/internal/logging"
)

// TimestampLayout is the creation date format recorded on events.
const TimestampLayout = "2006-01-02 15:04:05"

var commandContext = exec.CommandContext

// Adapters satisfies capture.Adapters using the local filesystem and tools.
type Adapters struct {
	barcode BarcodeReader
	blur    BlurEvaluator
}

var _ capture.Adapters = (*Adapters)(nil)

// New builds adapters from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Adapters {
	logger = logging.NewComponentLogger(logger, "metadata")
	return &Adapters{
		barcode: BarcodeReader{
			Command: cfg.Barcode.Command,
			Args:    append([]string(nil), cfg.Barcode.Args...),
			Timeout: time.Duration(cfg.Barcode.TimeoutSeconds) * time.Second,
			logger:  logger,
		},
		blur: BlurEvaluator{
			Enabled:      cfg.Blur.Enabled,
			Threshold:    cfg.Blur.Threshold,
			MaxDimension: cfg.Blur.MaxDimension,
		},
	}
}

// Hash returns the MD5 digest of path.
func (a *Adapters) Hash(path string) (string, error) {
	return fileutil.HashFileMD5(path)
}

// CreationDate returns the birth time of path in UTC, falling back to the
// modification time when the filesystem does not record one.
func (a *Adapters) CreationDate(path string) (string, error) {
	ts, err := creationTime(path)
	if err != nil {
		return "", err
	}
	return ts.UTC().Format(TimestampLayout), nil
}

// ReadBarcodes decodes every barcode in the image at path.
func (a *Adapters) ReadBarcodes(ctx context.Context, path string) ([]capture.Barcode, error) {
	return a.barcode.Read(ctx, path)
}

// EvaluateBlur scores the sharpness of the image at path.
func (a *Adapters) EvaluateBlur(path string) (bool, float64, error) {
	return a.blur.Evaluate(path)
}
