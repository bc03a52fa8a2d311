package catalogdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"digistation/internal/capture"
	"digistation/internal/config"
)

// Store wraps the catalog SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Image is one loaded capture record.
type Image struct {
	capture.Record
	RowID      int64
	SourceFile string
	LoadedAt   time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open connects to the database configured in cfg, creating it on first use.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Database.Path)
}

// OpenPath connects to the database file at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("catalog database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts rec, or replaces the row already loaded for the same event id.
func (s *Store) Upsert(ctx context.Context, rec capture.Record, sourceFile string) error {
	barcodes, err := json.Marshal(rec.Barcodes)
	if err != nil {
		return fmt.Errorf("marshal barcodes: %w", err)
	}
	others, err := json.Marshal(rec.OtherCatalogNumbers)
	if err != nil {
		return fmt.Errorf("marshal other catalog numbers: %w", err)
	}
	loadedAt := time.Now().UTC().Format(time.RFC3339Nano)

	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO images (`+insertColumns+`)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(uuid) DO UPDATE SET `+upsertAssignments,
			rec.ID,
			nullableString(rec.SessionUUID),
			nullableString(rec.SessionPath),
			nullableString(rec.Creator),
			nullableString(rec.CollectionCode),
			nullableString(rec.ProjectCode),
			nullableString(rec.SessionNotes),
			nullableString(rec.SessionTaxa),
			rec.StationID,
			rec.StationUUID,
			rec.Sequence,
			nullableString(rec.Status),
			nullableString(rec.StatusLevel),
			nullableString(rec.OriginalFilename),
			rec.OriginalRawImage,
			rec.NewRawImage,
			rec.RawImageCreationDate,
			rec.RawImageMD5Hash,
			rec.OriginalDerivedImage,
			rec.NewDerivedImage,
			rec.DerivedImageMD5Hash,
			string(barcodes),
			rec.CatalogNumber,
			string(others),
			nullableBool(rec.IsBlurry),
			rec.Blurriness,
			nullableString(rec.RawRenameState),
			nullableString(rec.DerivedRenameState),
			sourceFile,
			loadedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert image %s: %w", rec.ID, err)
		}
		return nil
	})
}

// ListOptions filters List results.
type ListOptions struct {
	SessionUUID   string
	CatalogNumber string
	Limit         int
}

// List returns loaded images ordered by session then sequence.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Image, error) {
	query := `SELECT ` + selectColumns + ` FROM images`
	var (
		where []string
		args  []any
	)
	if opts.SessionUUID != "" {
		where = append(where, "session_uuid = ?")
		args = append(args, opts.SessionUUID)
	}
	if opts.CatalogNumber != "" {
		where = append(where, "catalog_number = ?")
		args = append(args, opts.CatalogNumber)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY session_uuid, sequence, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// Count returns the number of loaded images.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

const insertColumns = `uuid, session_uuid, session_path, creator, collection_code, project_code,
    session_notes, session_taxa, station_id, station_uuid, sequence, status, status_level,
    original_filename, original_raw_image, new_raw_image, raw_image_creation_date,
    raw_image_md5hash, original_derived_image, new_derived_image, derived_image_md5hash,
    barcodes_json, catalog_number, other_catalog_numbers_json, is_blurry, blurriness,
    raw_rename_state, derived_rename_state, source_file, loaded_at`

const upsertAssignments = `session_uuid = excluded.session_uuid,
    session_path = excluded.session_path,
    creator = excluded.creator,
    collection_code = excluded.collection_code,
    project_code = excluded.project_code,
    session_notes = excluded.session_notes,
    session_taxa = excluded.session_taxa,
    station_id = excluded.station_id,
    station_uuid = excluded.station_uuid,
    sequence = excluded.sequence,
    status = excluded.status,
    status_level = excluded.status_level,
    original_filename = excluded.original_filename,
    original_raw_image = excluded.original_raw_image,
    new_raw_image = excluded.new_raw_image,
    raw_image_creation_date = excluded.raw_image_creation_date,
    raw_image_md5hash = excluded.raw_image_md5hash,
    original_derived_image = excluded.original_derived_image,
    new_derived_image = excluded.new_derived_image,
    derived_image_md5hash = excluded.derived_image_md5hash,
    barcodes_json = excluded.barcodes_json,
    catalog_number = excluded.catalog_number,
    other_catalog_numbers_json = excluded.other_catalog_numbers_json,
    is_blurry = excluded.is_blurry,
    blurriness = excluded.blurriness,
    raw_rename_state = excluded.raw_rename_state,
    derived_rename_state = excluded.derived_rename_state,
    source_file = excluded.source_file,
    loaded_at = excluded.loaded_at`

const selectColumns = `id, ` + insertColumns

func scanImage(scanner interface{ Scan(dest ...any) error }) (Image, error) {
	var (
		img              Image
		sessionUUID      sql.NullString
		sessionPath      sql.NullString
		creator          sql.NullString
		collectionCode   sql.NullString
		projectCode      sql.NullString
		notes            sql.NullString
		taxa             sql.NullString
		stationID        sql.NullString
		stationUUID      sql.NullString
		sequence         sql.NullInt64
		status           sql.NullString
		statusLevel      sql.NullString
		originalFilename sql.NullString
		origRaw          sql.NullString
		newRaw           sql.NullString
		rawDate          sql.NullString
		rawHash          sql.NullString
		origDerived      sql.NullString
		newDerived       sql.NullString
		derivedHash      sql.NullString
		barcodes         sql.NullString
		catalogNumber    sql.NullString
		others           sql.NullString
		isBlurry         sql.NullInt64
		blurriness       sql.NullFloat64
		rawState         sql.NullString
		derivedState     sql.NullString
		loadedRaw        string
	)
	if err := scanner.Scan(
		&img.RowID,
		&img.ID,
		&sessionUUID,
		&sessionPath,
		&creator,
		&collectionCode,
		&projectCode,
		&notes,
		&taxa,
		&stationID,
		&stationUUID,
		&sequence,
		&status,
		&statusLevel,
		&originalFilename,
		&origRaw,
		&newRaw,
		&rawDate,
		&rawHash,
		&origDerived,
		&newDerived,
		&derivedHash,
		&barcodes,
		&catalogNumber,
		&others,
		&isBlurry,
		&blurriness,
		&rawState,
		&derivedState,
		&img.SourceFile,
		&loadedRaw,
	); err != nil {
		return Image{}, fmt.Errorf("scan image: %w", err)
	}

	img.SessionUUID = sessionUUID.String
	img.SessionPath = sessionPath.String
	img.Creator = creator.String
	img.CollectionCode = collectionCode.String
	img.ProjectCode = projectCode.String
	img.SessionNotes = notes.String
	img.SessionTaxa = taxa.String
	img.StationID = stringPtr(stationID)
	img.StationUUID = stringPtr(stationUUID)
	img.Sequence = int(sequence.Int64)
	img.Status = status.String
	img.StatusLevel = statusLevel.String
	img.OriginalFilename = originalFilename.String
	img.OriginalRawImage = stringPtr(origRaw)
	img.NewRawImage = stringPtr(newRaw)
	img.RawImageCreationDate = stringPtr(rawDate)
	img.RawImageMD5Hash = stringPtr(rawHash)
	img.OriginalDerivedImage = stringPtr(origDerived)
	img.NewDerivedImage = stringPtr(newDerived)
	img.DerivedImageMD5Hash = stringPtr(derivedHash)
	img.CatalogNumber = stringPtr(catalogNumber)
	img.RawRenameState = rawState.String
	img.DerivedRenameState = derivedState.String
	if isBlurry.Valid {
		v := isBlurry.Int64 != 0
		img.IsBlurry = &v
	}
	if blurriness.Valid {
		v := blurriness.Float64
		img.Blurriness = &v
	}
	if barcodes.Valid && barcodes.String != "" {
		if err := json.Unmarshal([]byte(barcodes.String), &img.Barcodes); err != nil {
			return Image{}, fmt.Errorf("decode barcodes for %s: %w", img.ID, err)
		}
	}
	if others.Valid && others.String != "" {
		if err := json.Unmarshal([]byte(others.String), &img.OtherCatalogNumbers); err != nil {
			return Image{}, fmt.Errorf("decode other catalog numbers for %s: %w", img.ID, err)
		}
	}
	if loaded, err := time.Parse(time.RFC3339Nano, loadedRaw); err == nil {
		img.LoadedAt = loaded
	}
	return img, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableBool(value *bool) any {
	if value == nil {
		return nil
	}
	if *value {
		return 1
	}
	return 0
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
