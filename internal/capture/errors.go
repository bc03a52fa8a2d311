package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmatchedExtension marks files that are neither raw nor derived images.
	ErrUnmatchedExtension = errors.New("unmatched file extension")
	// ErrAdapterFailure wraps hash, creation date, barcode, or blur failures.
	ErrAdapterFailure = errors.New("metadata adapter failure")
	// ErrAdapterSkipped is returned by adapters that are disabled by configuration.
	ErrAdapterSkipped = errors.New("metadata adapter skipped")
	// ErrRenameCollision matches every *CollisionError.
	ErrRenameCollision = errors.New("rename collision")
	// ErrMissingCatalogNumber reports that an event cannot be renamed yet.
	ErrMissingCatalogNumber = errors.New("missing catalog number")
)

// AdapterError records which adapter failed for which file.
type AdapterError struct {
	Adapter string
	Path    string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter failed for %s: %v", e.Adapter, e.Path, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *AdapterError) Unwrap() []error {
	return []error{ErrAdapterFailure, e.Err}
}

// CollisionError reports that both the desired and the fallback rename
// targets already exist. The source file is left where it was.
type CollisionError struct {
	Kind     ImageKind
	Source   string
	Desired  string
	Fallback string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("rename %s image %s: %s and %s both exist", e.Kind, e.Source, e.Desired, e.Fallback)
}

func (e *CollisionError) Is(target error) bool {
	return target == ErrRenameCollision
}
