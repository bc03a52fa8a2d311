package capture

import "context"

// Adapters are the blocking metadata collaborators invoked during correlation.
// Return ErrAdapterSkipped to leave a field absent without logging a warning.
type Adapters interface {
	Hash(path string) (string, error)
	CreationDate(path string) (string, error)
	ReadBarcodes(ctx context.Context, path string) ([]Barcode, error)
	EvaluateBlur(path string) (bool, float64, error)
}

// FileEventKind tags a normalized filesystem notification.
type FileEventKind int

const (
	FileCreated FileEventKind = iota + 1
	FileModified
	FileMovedTo
	FileDeleted
)

func (k FileEventKind) String() string {
	switch k {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileMovedTo:
		return "moved_to"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileEvent is a normalized notification from the event source. Path is
// absolute; From is set only for FileMovedTo when the source is known.
type FileEvent struct {
	Kind FileEventKind
	Path string
	From string
}
