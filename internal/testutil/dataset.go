package testutil

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/banshee-data/lineage.report/internal/ctc"
)

// WriteMask writes a 16-bit segmentation mask to path. The labels slice
// is row-major with one value per pixel.
func WriteMask(t *testing.T, path string, width, height int, labels []uint16) {
	t.Helper()
	if len(labels) != width*height {
		t.Fatalf("label buffer has %d values, want %d", len(labels), width*height)
	}

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := labels[y*width+x]
			off := img.PixOffset(x, y)
			img.Pix[off] = byte(v >> 8)
			img.Pix[off+1] = byte(v)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create mask %s: %v", path, err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatalf("encode mask %s: %v", path, err)
	}
}

// WriteLineage writes a lineage table to path in the four-column text format.
func WriteLineage(t *testing.T, path string, tracks []ctc.Track) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create lineage %s: %v", path, err)
	}
	defer f.Close()
	if err := ctc.WriteTable(f, tracks); err != nil {
		t.Fatalf("write lineage %s: %v", path, err)
	}
}

// WriteDivisionDataset populates dir with a small tracked sequence: one
// mother cell that divides into two daughters at frame 5. It writes ten
// 4x4 masks plus a res_track.txt and is the standard fixture for
// analysis pipeline tests.
//
// Expected analysis results: 3 tracks of 5 frames each, 15 trajectory
// points, cell counts ranging 1 to 2.
func WriteDivisionDataset(t *testing.T, dir string) {
	t.Helper()

	const width, height, frames = 4, 4, 10
	for i := 0; i < frames; i++ {
		labels := make([]uint16, width*height)
		if i < 5 {
			// Mother occupies a 2x2 block in the top-left corner.
			labels[0], labels[1] = 1, 1
			labels[4], labels[5] = 1, 1
		} else {
			// Daughters sit in opposite corners.
			labels[0] = 2
			labels[15] = 3
		}
		WriteMask(t, filepath.Join(dir, fmt.Sprintf("mask%03d.tif", i)), width, height, labels)
	}

	WriteLineage(t, filepath.Join(dir, ctc.ResultTableName), []ctc.Track{
		{ID: 1, Start: 0, End: 4, Parent: 0},
		{ID: 2, Start: 5, End: 9, Parent: 1},
		{ID: 3, Start: 5, End: 9, Parent: 1},
	})
}
