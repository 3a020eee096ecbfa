package canvas

import (
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

var (
	red  = color.RGBA{R: 0xff, A: 0xff}
	blue = color.RGBA{B: 0xff, A: 0xff}
)

func TestPasteMarksPainted(t *testing.T) {
	c, err := New(100, 100)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c.Paste(solid(40, 40, red), image.Pt(30, 30))

	if !c.RegionPainted(image.Rect(30, 30, 70, 70)) {
		t.Error("pasted area not marked painted")
	}
	if c.RegionPainted(image.Rect(0, 0, 10, 10)) {
		t.Error("untouched area reported painted")
	}
}

func TestPasteFlattensTransparentSourcePixels(t *testing.T) {
	c, err := New(64, 64)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// A source with a fully transparent hole: the footprint is still
	// painted, and stays painted after a save/restore round trip.
	src := solid(16, 16, red)
	src.SetRGBA(4, 4, color.RGBA{})
	c.Paste(src, image.Pt(8, 8))

	foot := image.Rect(8, 8, 24, 24)
	if !c.RegionPainted(foot) {
		t.Fatal("paste footprint not fully painted")
	}
	if got := c.Image().RGBAAt(12, 12); got.A != 0xff {
		t.Errorf("flattened pixel alpha = %d, want 0xff", got.A)
	}

	restored := FromImage(c.Image())
	if !restored.RegionPainted(foot) {
		t.Error("restored canvas reopened pasted pixels for generation")
	}
}

func TestCropContextTransparentOutsidePainted(t *testing.T) {
	c, _ := New(100, 100)
	c.Paste(solid(40, 40, red), image.Pt(30, 30))

	crop := c.CropContext(image.Pt(20, 20), 60)

	// Pixel inside the painted source: opaque red.
	if got := crop.RGBAAt(15, 15); got != red {
		t.Errorf("painted pixel = %v, want %v", got, red)
	}
	// Pixel in the unpainted part of the square: fully transparent.
	if got := crop.RGBAAt(0, 0); got.A != 0 {
		t.Errorf("unpainted pixel alpha = %d, want 0", got.A)
	}
}

func TestCropContextPadsPastCanvasEdge(t *testing.T) {
	c, _ := New(50, 50)
	c.Paste(solid(50, 50, red), image.Pt(0, 0))

	// Square hangs off the right and bottom edges.
	crop := c.CropContext(image.Pt(30, 30), 64)

	if got := crop.RGBAAt(0, 0); got != red {
		t.Errorf("on-canvas pixel = %v, want %v", got, red)
	}
	if got := crop.RGBAAt(30, 30); got.A != 0 {
		t.Errorf("off-canvas pixel alpha = %d, want 0", got.A)
	}
}

func TestApplyResultPaintsOnlyUnpainted(t *testing.T) {
	c, _ := New(100, 100)
	c.Paste(solid(40, 40, red), image.Pt(0, 0))

	n := c.ApplyResult(image.Pt(0, 0), 64, solid(64, 64, blue))

	if want := 64*64 - 40*40; n != want {
		t.Errorf("ApplyResult() painted %d pixels, want %d", n, want)
	}
	img := c.Image()
	// Source pixel survives.
	if got := img.RGBAAt(10, 10); got != red {
		t.Errorf("source pixel = %v, want %v", got, red)
	}
	// Newly painted pixel takes the generated color.
	if got := img.RGBAAt(50, 50); got != blue {
		t.Errorf("generated pixel = %v, want %v", got, blue)
	}
}

func TestApplyResultNeverRepaints(t *testing.T) {
	c, _ := New(64, 64)

	first := c.ApplyResult(image.Pt(0, 0), 64, solid(64, 64, red))
	second := c.ApplyResult(image.Pt(0, 0), 64, solid(64, 64, blue))

	if first != 64*64 {
		t.Errorf("first apply painted %d, want %d", first, 64*64)
	}
	if second != 0 {
		t.Errorf("second apply painted %d pixels, want 0", second)
	}
	if got := c.Image().RGBAAt(32, 32); got != red {
		t.Errorf("pixel after repaint attempt = %v, want %v", got, red)
	}
}

func TestApplyResultRescalesMismatchedResult(t *testing.T) {
	c, _ := New(64, 64)

	n := c.ApplyResult(image.Pt(0, 0), 64, solid(128, 128, blue))

	if n != 64*64 {
		t.Errorf("painted %d pixels, want %d", n, 64*64)
	}
	if got := c.Image().RGBAAt(32, 32); got != blue {
		t.Errorf("rescaled pixel = %v, want %v", got, blue)
	}
}

func TestApplyResultConcurrentDisjointRegions(t *testing.T) {
	c, _ := New(128, 64)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.ApplyResult(image.Pt(0, 0), 64, solid(64, 64, red))
	}()
	go func() {
		defer wg.Done()
		c.ApplyResult(image.Pt(64, 0), 64, solid(64, 64, blue))
	}()
	wg.Wait()

	if !c.RegionPainted(c.Bounds()) {
		t.Error("canvas not fully painted after concurrent applies")
	}
	if got := c.Image().RGBAAt(10, 10); got != red {
		t.Errorf("left half = %v, want %v", got, red)
	}
	if got := c.Image().RGBAAt(100, 10); got != blue {
		t.Errorf("right half = %v, want %v", got, blue)
	}
}

func TestFromImageRestoresPaintedMask(t *testing.T) {
	// Simulate a saved partial canvas: left half painted, right half open.
	partial := image.NewRGBA(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			partial.SetRGBA(x, y, red)
		}
	}

	c := FromImage(partial)

	if !c.RegionPainted(image.Rect(0, 0, 50, 50)) {
		t.Error("restored painted area not marked painted")
	}
	if c.RegionPainted(image.Rect(50, 0, 100, 50)) {
		t.Error("transparent area marked painted after restore")
	}

	// The open half can still be generated, the restored half cannot.
	n := c.ApplyResult(image.Pt(0, 0), 100, solid(100, 100, blue))
	if want := 50 * 50; n != want {
		t.Errorf("ApplyResult() after restore painted %d pixels, want %d", n, want)
	}
	if got := c.Image().RGBAAt(10, 10); got != red {
		t.Errorf("restored pixel overwritten: %v", got)
	}
}

func TestPaintedFraction(t *testing.T) {
	c, _ := New(100, 100)
	if got := c.PaintedFraction(); got != 0 {
		t.Errorf("empty canvas fraction = %v, want 0", got)
	}
	c.Paste(solid(50, 100, red), image.Pt(0, 0))
	if got := c.PaintedFraction(); got != 0.5 {
		t.Errorf("half painted fraction = %v, want 0.5", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := solid(8, 8, red)
	data, err := EncodePNG(src)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	got, err := DecodePNG(data)
	if err != nil {
		t.Fatalf("DecodePNG() error = %v", err)
	}
	if got.Bounds() != src.Bounds() {
		t.Errorf("bounds = %v, want %v", got.Bounds(), src.Bounds())
	}
	if got.RGBAAt(4, 4) != red {
		t.Errorf("pixel = %v, want %v", got.RGBAAt(4, 4), red)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.png")

	if err := SaveFile(path, solid(4, 4, blue)); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	img, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if img.RGBAAt(2, 2) != blue {
		t.Errorf("loaded pixel = %v, want %v", img.RGBAAt(2, 2), blue)
	}
}

func TestSnapshotPath(t *testing.T) {
	at := time.Date(2026, 8, 23, 15, 45, 1, 0, time.UTC)

	got := SnapshotPath("/out/render.png", "", at)
	want := filepath.Join("/out", "render-20260823-154501.png")
	if got != want {
		t.Errorf("SnapshotPath() = %q, want %q", got, want)
	}

	got = SnapshotPath("render.png", "/snaps", at)
	want = filepath.Join("/snaps", "render-20260823-154501.png")
	if got != want {
		t.Errorf("SnapshotPath() with dir = %q, want %q", got, want)
	}
}

func TestSnapshotterSave(t *testing.T) {
	dir := t.TempDir()
	c, _ := New(4, 4)
	c.Paste(solid(4, 4, red), image.Pt(0, 0))

	s := &Snapshotter{
		OutputPath: filepath.Join(dir, "out.png"),
		Now:        func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	path, err := s.Save(c)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := LoadFile(path); err != nil {
		t.Errorf("snapshot not readable: %v", err)
	}

	var nilSnap *Snapshotter
	if path, err := nilSnap.Save(c); err != nil || path != "" {
		t.Errorf("nil snapshotter Save() = (%q, %v), want empty no-op", path, err)
	}
}
