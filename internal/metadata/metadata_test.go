package metadata

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"digistation/internal/capture"
	"digistation/internal/config"
	"digistation/internal/logging"
	"digistation/internal/testsupport"
)

func TestParseZbarOutput(t *testing.T) {
	out := "CODE-39:BRIT123456\nQR-Code:https://example.org/a:b\r\n\ngarbage\nEAN-13:0012345678905\n"
	got := ParseZbarOutput(out)
	want := []capture.Barcode{
		{Symbology: "CODE-39", Value: "BRIT123456"},
		{Symbology: "QR-Code", Value: "https://example.org/a:b"},
		{Symbology: "EAN-13", Value: "0012345678905"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseZbarOutput = %#v, want %#v", got, want)
	}
	if got := ParseZbarOutput(""); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-zbarimg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBarcodeReaderParsesOutput(t *testing.T) {
	reader := BarcodeReader{
		Command: writeScript(t, `echo "CODE-128:NLU42"`),
		Args:    []string{"--quiet"},
		Timeout: 5 * time.Second,
		logger:  logging.NewNop(),
	}
	got, err := reader.Read(context.Background(), "/tmp/IMG_0001.JPG")
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(got) != 1 || got[0].Value != "NLU42" || got[0].Symbology != "CODE-128" {
		t.Fatalf("unexpected barcodes: %#v", got)
	}
}

func TestBarcodeReaderNoSymbols(t *testing.T) {
	reader := BarcodeReader{Command: writeScript(t, "exit 4"), logger: logging.NewNop()}
	got, err := reader.Read(context.Background(), "/tmp/IMG_0001.JPG")
	if err != nil {
		t.Fatalf("expected no error for exit status 4, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no barcodes, got %#v", got)
	}
}

func TestBarcodeReaderFailure(t *testing.T) {
	reader := BarcodeReader{Command: writeScript(t, "echo 'cannot open' >&2; exit 2"), logger: logging.NewNop()}
	if _, err := reader.Read(context.Background(), "/tmp/IMG_0001.JPG"); err == nil {
		t.Fatal("expected error for exit status 2")
	}
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBlurEvaluator(t *testing.T) {
	sharp := image.NewGray(image.Rect(0, 0, 64, 64))
	flat := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/4+y/4)%2 == 0 {
				sharp.SetGray(x, y, color.Gray{Y: 255})
			}
			flat.SetGray(x, y, color.Gray{Y: 128})
		}
	}

	eval := BlurEvaluator{Enabled: true, Threshold: 100, MaxDimension: 32}

	blurry, score, err := eval.Evaluate(writePNG(t, sharp))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if blurry || score < 100 {
		t.Fatalf("expected sharp image, got blurry=%v score=%v", blurry, score)
	}

	blurry, score, err = eval.Evaluate(writePNG(t, flat))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !blurry || score != 0 {
		t.Fatalf("expected flat image blurry with score 0, got blurry=%v score=%v", blurry, score)
	}
}

func TestBlurEvaluatorDisabled(t *testing.T) {
	_, _, err := BlurEvaluator{}.Evaluate("/does/not/matter.jpg")
	if !errors.Is(err, capture.ErrAdapterSkipped) {
		t.Fatalf("expected ErrAdapterSkipped, got %v", err)
	}
}

func TestAdaptersHashAndCreationDate(t *testing.T) {
	cfg := config.Default()
	a := New(&cfg, logging.NewNop())
	path := filepath.Join(t.TempDir(), "IMG_0001.CR2")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := a.Hash(path)
	if err != nil || hash != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Fatalf("unexpected hash %q err=%v", hash, err)
	}

	date, err := a.CreationDate(path)
	if err != nil {
		t.Fatalf("CreationDate returned error: %v", err)
	}
	parsed, err := time.Parse(TimestampLayout, date)
	if err != nil {
		t.Fatalf("creation date %q not in expected layout: %v", date, err)
	}
	if d := time.Since(parsed); d < -time.Minute || d > time.Hour {
		t.Fatalf("creation date %v not close to now", parsed)
	}

	if _, err := a.CreationDate(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAdaptersFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBarcodeReader("CODE-39:BRIT123456\n", 0))
	a := New(cfg, logging.NewNop())
	dir := testsupport.BaseDir(cfg)

	jpg := filepath.Join(dir, "session", "IMG_0001.JPG")
	testsupport.WriteJPEG(t, jpg, 128)

	barcodes, err := a.ReadBarcodes(context.Background(), jpg)
	if err != nil {
		t.Fatalf("ReadBarcodes returned error: %v", err)
	}
	if len(barcodes) != 1 || barcodes[0].Value != "BRIT123456" {
		t.Fatalf("unexpected barcodes: %#v", barcodes)
	}

	blurry, score, err := a.EvaluateBlur(jpg)
	if err != nil {
		t.Fatalf("EvaluateBlur returned error: %v", err)
	}
	if blurry {
		t.Fatalf("checkerboard scored blurry (%v)", score)
	}

	raw := filepath.Join(dir, "session", "IMG_0001.CR2")
	testsupport.WriteFile(t, raw, 100*1024)
	data, err := os.ReadFile(raw)
	if err != nil {
		t.Fatal(err)
	}
	hash, err := a.Hash(raw)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if want := fmt.Sprintf("%x", md5.Sum(data)); hash != want {
		t.Fatalf("hash %q, want %q", hash, want)
	}
}
