package syncer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanImages(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"a.jpeg",
		"b.JPG",
		"c.png",
		"notes.txt",
		"annotations.parquet",
		filepath.Join("drive", "drive_001.camera.jpeg"),
	}
	os.Mkdir(filepath.Join(dir, "drive"), 0755)
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
			t.Fatalf("seed %s: %v", f, err)
		}
	}

	paths, err := scanImages(dir)
	if err != nil {
		t.Fatalf("scanImages failed: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("found %d images, want 4: %v", len(paths), paths)
	}
	for _, p := range paths {
		if filepath.Ext(p) == ".txt" || filepath.Ext(p) == ".parquet" {
			t.Errorf("non-image file picked up: %s", p)
		}
	}
}

func TestAnnotationKey(t *testing.T) {
	if got := annotationKey("drive", nil); got != "drive" {
		t.Errorf("annotationKey without frame = %q", got)
	}
	frame := int64(7)
	if got := annotationKey("drive", &frame); got != "drive#7" {
		t.Errorf("annotationKey with frame = %q", got)
	}
	// Frameless and framed samples of the same name never collide.
	zero := int64(0)
	if annotationKey("drive", nil) == annotationKey("drive", &zero) {
		t.Error("frameless key collides with frame 0")
	}
}
