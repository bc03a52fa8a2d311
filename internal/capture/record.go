package capture

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the flat JSON shape of a persisted event. Field names are stable;
// the bulk loader depends on them.
type Record struct {
	SessionUUID    string  `json:"session_uuid"`
	SessionPath    string  `json:"session_path"`
	Creator        string  `json:"creator"`
	CollectionCode string  `json:"collection_code"`
	ProjectCode    string  `json:"project_code"`
	SessionNotes   string  `json:"session_notes"`
	SessionTaxa    string  `json:"session_taxa"`
	StationID      *string `json:"station_id"`
	StationUUID    *string `json:"station_uuid"`

	ID               string `json:"id"`
	Sequence         int    `json:"sequence"`
	Status           string `json:"status"`
	StatusLevel      string `json:"status_level"`
	OriginalFilename string `json:"original_filename"`

	OriginalRawImage     *string `json:"original_raw_image"`
	NewRawImage          *string `json:"new_raw_image"`
	RawImageCreationDate *string `json:"raw_image_creation_date"`
	RawImageMD5Hash      *string `json:"raw_image_md5hash"`

	OriginalDerivedImage *string `json:"original_derived_image"`
	NewDerivedImage      *string `json:"new_derived_image"`
	DerivedImageMD5Hash  *string `json:"derived_image_md5hash"`

	Barcodes            []Barcode `json:"barcodes"`
	CatalogNumber       *string   `json:"catalog_number"`
	OtherCatalogNumbers []string  `json:"other_catalog_numbers"`
	IsBlurry            *bool     `json:"is_blurry"`
	Blurriness          *float64  `json:"blurriness"`

	RawRenameState     string `json:"raw_rename_state"`
	RawRenameError     string `json:"raw_rename_error,omitempty"`
	DerivedRenameState string `json:"derived_rename_state"`
	DerivedRenameError string `json:"derived_rename_error,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

// NewRecord flattens an event.
func NewRecord(e *Event) Record {
	r := Record{
		SessionUUID:    e.Session.ID,
		SessionPath:    e.Session.Path,
		Creator:        e.Session.Username,
		CollectionCode: e.Session.CollectionCode,
		ProjectCode:    e.Session.ProjectCode,
		SessionNotes:   e.Session.Notes,
		SessionTaxa:    e.Session.Taxa,
		StationID:      e.Session.StationID,
		StationUUID:    e.Session.StationUUID,

		ID:               e.ID,
		Sequence:         e.Sequence,
		Status:           e.Status,
		StatusLevel:      string(e.StatusLevel),
		OriginalFilename: e.OriginalFilename,

		OriginalRawImage:     e.OriginalRawImage,
		NewRawImage:          e.NewRawImage,
		RawImageCreationDate: e.RawImageCreationDate,
		RawImageMD5Hash:      e.RawImageMD5Hash,

		OriginalDerivedImage: e.OriginalDerivedImage,
		NewDerivedImage:      e.NewDerivedImage,
		DerivedImageMD5Hash:  e.DerivedImageMD5Hash,

		Barcodes:            e.Barcodes,
		CatalogNumber:       e.CatalogNumber,
		OtherCatalogNumbers: e.OtherCatalogNumbers,
		IsBlurry:            e.IsBlurry,
		Blurriness:          e.Blurriness,

		RawRenameState:     e.RawRename.Status.String(),
		RawRenameError:     e.RawRename.Reason,
		DerivedRenameState: e.DerivedRename.Status.String(),
		DerivedRenameError: e.DerivedRename.Reason,
	}
	if r.Barcodes == nil {
		r.Barcodes = []Barcode{}
	}
	if r.OtherCatalogNumbers == nil {
		r.OtherCatalogNumbers = []string{}
	}
	if !e.CreatedAt.IsZero() {
		r.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !e.UpdatedAt.IsZero() {
		r.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return r
}

// Event rebuilds the in-memory event from a record.
func (r Record) Event() *Event {
	e := &Event{
		Session: SessionInfo{
			ID:             r.SessionUUID,
			Path:           r.SessionPath,
			Username:       r.Creator,
			CollectionCode: r.CollectionCode,
			ProjectCode:    r.ProjectCode,
			Notes:          r.SessionNotes,
			Taxa:           r.SessionTaxa,
			StationID:      r.StationID,
			StationUUID:    r.StationUUID,
		},
		ID:                   r.ID,
		OriginalFilename:     r.OriginalFilename,
		Sequence:             r.Sequence,
		OriginalRawImage:     r.OriginalRawImage,
		NewRawImage:          r.NewRawImage,
		RawImageCreationDate: r.RawImageCreationDate,
		RawImageMD5Hash:      r.RawImageMD5Hash,
		OriginalDerivedImage: r.OriginalDerivedImage,
		NewDerivedImage:      r.NewDerivedImage,
		DerivedImageMD5Hash:  r.DerivedImageMD5Hash,
		Barcodes:             r.Barcodes,
		CatalogNumber:        r.CatalogNumber,
		OtherCatalogNumbers:  r.OtherCatalogNumbers,
		IsBlurry:             r.IsBlurry,
		Blurriness:           r.Blurriness,
		Status:               r.Status,
		StatusLevel:          Severity(r.StatusLevel),
		RawRename:            decodeRenameState(r.RawRenameState, r.NewRawImage, r.RawRenameError),
		DerivedRename:        decodeRenameState(r.DerivedRenameState, r.NewDerivedImage, r.DerivedRenameError),
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		e.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
		e.UpdatedAt = t
	}
	return e
}

func decodeRenameState(status string, path *string, reason string) RenameState {
	switch status {
	case "renamed":
		if path == nil {
			return RenameState{}
		}
		return renamedTo(*path)
	case "failed":
		return renameFailed(reason)
	default:
		return RenameState{}
	}
}

// DecodeRecord parses a snapshot payload.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode event record: %w", err)
	}
	if r.ID == "" {
		return Record{}, fmt.Errorf("decode event record: missing id")
	}
	return r, nil
}
