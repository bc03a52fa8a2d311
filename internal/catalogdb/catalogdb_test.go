package catalogdb_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"digistation/internal/capture"
	"digistation/internal/catalogdb"
	"digistation/internal/logging"
	"digistation/internal/testsupport"
)

func writeRecord(t *testing.T, dir, name string, rec capture.Record, mtime time.Time) string {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func strPtr(v string) *string { return &v }

func TestLoadDirUpsertsByEventID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)

	blurry := true
	first := capture.Record{
		SessionUUID:         "s1",
		Creator:             "jo",
		ID:                  "e1",
		Sequence:            1,
		Status:              "Images complete.",
		StatusLevel:         "OK",
		OriginalFilename:    "IMG_0001",
		CatalogNumber:       strPtr("BRIT1"),
		OtherCatalogNumbers: []string{"junk"},
		Barcodes:            []capture.Barcode{{Symbology: "CODE-39", Value: "BRIT1"}},
		IsBlurry:            &blurry,
		RawRenameState:      "renamed",
	}
	second := capture.Record{SessionUUID: "s1", ID: "e2", Sequence: 2, OriginalFilename: "IMG_0002"}
	writeRecord(t, dir, "BRIT1.JSON", first, base)
	writeRecord(t, dir, "IMG_0002_e2.JSON", second, base.Add(time.Minute))
	writeRecord(t, dir, "ignored.json", capture.Record{ID: "lower"}, base)

	result, err := store.LoadDir(ctx, dir, logging.NewNop())
	if err != nil {
		t.Fatalf("LoadDir returned error: %v", err)
	}
	if result.Scanned != 2 || result.Loaded != 2 || len(result.Failures) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	images, err := store.List(ctx, catalogdb.ListOptions{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	got := images[0]
	if got.ID != "e1" || got.CatalogNumber == nil || *got.CatalogNumber != "BRIT1" {
		t.Fatalf("unexpected first image %+v", got)
	}
	if len(got.Barcodes) != 1 || got.Barcodes[0].Value != "BRIT1" {
		t.Fatalf("barcodes not round-tripped: %+v", got.Barcodes)
	}
	if got.IsBlurry == nil || !*got.IsBlurry || got.Blurriness != nil {
		t.Fatalf("blur fields not round-tripped: %v %v", got.IsBlurry, got.Blurriness)
	}
	if got.StationID != nil {
		t.Fatalf("expected nil station id, got %q", *got.StationID)
	}

	second.CatalogNumber = strPtr("BRIT2")
	writeRecord(t, dir, "IMG_0002_e2.JSON", second, base.Add(2*time.Minute))
	if _, err := store.LoadDir(ctx, dir, logging.NewNop()); err != nil {
		t.Fatalf("second LoadDir returned error: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("reload should upsert, got %d rows", count)
	}
	filtered, err := store.List(ctx, catalogdb.ListOptions{CatalogNumber: "BRIT2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].ID != "e2" {
		t.Fatalf("expected updated e2 row, got %+v", filtered)
	}
}

func TestLoadDirCollectsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "broken.JSON"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "noid.JSON"), []byte(`{"sequence": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	writeRecord(t, dir, "ok.JSON", capture.Record{ID: "ok"}, time.Now())

	result, err := store.LoadDir(context.Background(), dir, logging.NewNop())
	if err != nil {
		t.Fatalf("LoadDir returned error: %v", err)
	}
	if result.Loaded != 1 || len(result.Failures) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestLoadDirRejectsMissingDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	if _, err := store.LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"), logging.NewNop()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := catalogdb.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(context.Background(), capture.Record{ID: "e1"}, "x.JSON"); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := catalogdb.Open(cfg)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer reopened.Close()
	count, err := reopened.Count(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("count = %d err = %v", count, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := catalogdb.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	raw, err := catalogdb.OpenPath(cfg.Database.Path)
	if err != nil {
		t.Fatal(err)
	}
	if err := raw.SetSchemaVersionForTest(99); err != nil {
		t.Fatal(err)
	}
	_ = raw.Close()

	if _, err := catalogdb.Open(cfg); !errors.Is(err, catalogdb.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
