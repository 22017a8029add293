// Package maskio loads per-frame label masks from disk. Each mask is
// a 2D image whose pixel values are track ids, 0 meaning background.
// Frames are ordered by filename, matching the tracker's numbering.
package maskio

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/image/tiff"

	"github.com/banshee-data/lineage.report/internal/ctc"
)

// DefaultMaskPattern matches the tracker's per-frame mask filenames.
const DefaultMaskPattern = "mask*.tif"

// Frame is one decoded label mask.
type Frame struct {
	Index  int // position in the stack, 0-based
	Path   string
	Width  int
	Height int

	labels []uint16
}

// NewFrame builds an in-memory frame from row-major labels. The
// labels slice is used as-is, not copied.
func NewFrame(index, width, height int, labels []uint16) Frame {
	if len(labels) != width*height {
		panic("maskio: label buffer does not match frame dimensions")
	}
	return Frame{Index: index, Width: width, Height: height, labels: labels}
}

// Label returns the label at pixel (x, y).
func (f *Frame) Label(x, y int) uint16 {
	return f.labels[y*f.Width+x]
}

// Labels returns the frame's label buffer in row-major order. The
// slice is shared with the frame and must not be modified.
func (f *Frame) Labels() []uint16 {
	return f.labels
}

// LoadStack loads every mask matching pattern under dir, ordered by
// filename. An empty pattern falls back to DefaultMaskPattern. If no
// file matches the result is a MissingInputError.
func LoadStack(dir, pattern string) ([]Frame, error) {
	if pattern == "" {
		pattern = DefaultMaskPattern
	}

	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob masks in %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, &ctc.MissingInputError{Dir: dir, Candidates: []string{pattern}}
	}
	sort.Strings(paths)

	frames := make([]Frame, 0, len(paths))
	for i, path := range paths {
		f, err := loadFrame(path)
		if err != nil {
			return nil, err
		}
		f.Index = i
		frames = append(frames, f)
	}
	return frames, nil
}

func loadFrame(path string) (Frame, error) {
	r, err := os.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("open mask %s: %w", path, err)
	}
	defer r.Close()

	img, err := tiff.Decode(r)
	if err != nil {
		return Frame{}, fmt.Errorf("decode mask %s: %w", path, err)
	}

	labels, w, h, err := imageLabels(img)
	if err != nil {
		return Frame{}, fmt.Errorf("mask %s: %w", path, err)
	}
	return Frame{Path: path, Width: w, Height: h, labels: labels}, nil
}

// imageLabels flattens a decoded mask into row-major uint16 labels.
// Gray16 pixels are stored big-endian by the decoder; paletted masks
// use the palette index as the label.
func imageLabels(img image.Image) ([]uint16, int, int, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	labels := make([]uint16, w*h)

	switch m := img.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			row := m.Pix[(y+b.Min.Y-m.Rect.Min.Y)*m.Stride:]
			for x := 0; x < w; x++ {
				off := (x + b.Min.X - m.Rect.Min.X) * 2
				labels[y*w+x] = uint16(row[off])<<8 | uint16(row[off+1])
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := m.Pix[(y+b.Min.Y-m.Rect.Min.Y)*m.Stride:]
			for x := 0; x < w; x++ {
				labels[y*w+x] = uint16(row[x+b.Min.X-m.Rect.Min.X])
			}
		}
	case *image.Paletted:
		for y := 0; y < h; y++ {
			row := m.Pix[(y+b.Min.Y-m.Rect.Min.Y)*m.Stride:]
			for x := 0; x < w; x++ {
				labels[y*w+x] = uint16(row[x+b.Min.X-m.Rect.Min.X])
			}
		}
	default:
		return nil, 0, 0, fmt.Errorf("unsupported mask pixel format %T", img)
	}

	return labels, w, h, nil
}
