package capture

import (
	"fmt"
	"time"
)

// Severity ranks how much attention an event needs from the operator.
type Severity string

const (
	SeverityOK      Severity = "OK"
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// ImageKind distinguishes the two files of a capture.
type ImageKind string

const (
	KindRaw     ImageKind = "raw"
	KindDerived ImageKind = "derived"
)

// Barcode is one value decoded from a derived image.
type Barcode struct {
	Symbology string `json:"type"`
	Value     string `json:"data"`
}

// RenameStatus is the state tag of a RenameState.
type RenameStatus int

const (
	NotRenamed RenameStatus = iota
	Renamed
	RenameFailed
)

func (s RenameStatus) String() string {
	switch s {
	case Renamed:
		return "renamed"
	case RenameFailed:
		return "failed"
	default:
		return "not_renamed"
	}
}

// RenameState records the rename outcome for one image kind. Path is set for
// Renamed, Reason for RenameFailed.
type RenameState struct {
	Status RenameStatus
	Path   string
	Reason string
}

func renamedTo(path string) RenameState {
	return RenameState{Status: Renamed, Path: path}
}

func renameFailed(reason string) RenameState {
	return RenameState{Status: RenameFailed, Reason: reason}
}

// Done reports whether the rename completed; done kinds are never retried.
func (r RenameState) Done() bool {
	return r.Status == Renamed
}

func (r RenameState) String() string {
	switch r.Status {
	case Renamed:
		return "renamed(" + r.Path + ")"
	case RenameFailed:
		return "failed(" + r.Reason + ")"
	default:
		return r.Status.String()
	}
}

// SessionInfo carries the operator annotations copied onto every event.
type SessionInfo struct {
	ID             string
	Path           string
	Username       string
	CollectionCode string
	ProjectCode    string
	Notes          string
	Taxa           string
	StationID      *string
	StationUUID    *string
}

// Event is the correlated record for one physical capture. Optional values
// are nil until the corresponding adapter succeeds.
type Event struct {
	Session SessionInfo

	ID               string
	OriginalFilename string
	Sequence         int

	OriginalRawImage     *string
	NewRawImage          *string
	RawImageCreationDate *string
	RawImageMD5Hash      *string

	OriginalDerivedImage *string
	NewDerivedImage      *string
	DerivedImageMD5Hash  *string

	Barcodes            []Barcode
	CatalogNumber       *string
	OtherCatalogNumbers []string

	IsBlurry   *bool
	Blurriness *float64

	Status      string
	StatusLevel Severity

	RawRename     RenameState
	DerivedRename RenameState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy that shares no mutable state with e.
func (e *Event) Clone() Event {
	c := *e
	if e.Barcodes != nil {
		c.Barcodes = append([]Barcode(nil), e.Barcodes...)
	}
	if e.OtherCatalogNumbers != nil {
		c.OtherCatalogNumbers = append([]string(nil), e.OtherCatalogNumbers...)
	}
	return c
}

// HasRaw reports whether a raw image has been recorded.
func (e *Event) HasRaw() bool { return e.OriginalRawImage != nil }

// HasDerived reports whether a derived image has been recorded.
func (e *Event) HasDerived() bool { return e.OriginalDerivedImage != nil }

// CurrentPath returns where the image of kind currently lives on disk.
func (e *Event) CurrentPath(kind ImageKind) (string, bool) {
	var original, renamed *string
	switch kind {
	case KindRaw:
		original, renamed = e.OriginalRawImage, e.NewRawImage
	case KindDerived:
		original, renamed = e.OriginalDerivedImage, e.NewDerivedImage
	}
	if renamed != nil {
		return *renamed, true
	}
	if original != nil {
		return *original, true
	}
	return "", false
}

func (e *Event) renameState(kind ImageKind) RenameState {
	if kind == KindRaw {
		return e.RawRename
	}
	return e.DerivedRename
}

func (e *Event) setRenameState(kind ImageKind, state RenameState) {
	if kind == KindRaw {
		e.RawRename = state
		if state.Status == Renamed {
			e.NewRawImage = stringPtr(state.Path)
		}
		return
	}
	e.DerivedRename = state
	if state.Status == Renamed {
		e.NewDerivedImage = stringPtr(state.Path)
	}
}

// Label returns a short human label such as "#7 IMG_0007".
func (e *Event) Label() string {
	return fmt.Sprintf("#%d %s", e.Sequence, e.OriginalFilename)
}

func stringPtr(v string) *string { return &v }

// StringValue dereferences an optional string, returning "" for nil.
func StringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
