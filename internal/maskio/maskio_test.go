package maskio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/banshee-data/lineage.report/internal/ctc"
)

// writeGray16Mask encodes a 16-bit mask with the given labelled pixels.
func writeGray16Mask(t *testing.T, path string, w, h int, px map[[2]int]uint16) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for p, v := range px {
		img.SetGray16(p[0], p[1], color.Gray16{Y: v})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, tiff.Encode(f, img, nil))
}

// TestLoadStack tests mask discovery and decoding.
func TestLoadStack(t *testing.T) {
	t.Parallel()

	t.Run("orders frames by filename", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeGray16Mask(t, filepath.Join(dir, "mask002.tif"), 4, 4, map[[2]int]uint16{{0, 0}: 3})
		writeGray16Mask(t, filepath.Join(dir, "mask000.tif"), 4, 4, map[[2]int]uint16{{0, 0}: 1})
		writeGray16Mask(t, filepath.Join(dir, "mask001.tif"), 4, 4, map[[2]int]uint16{{0, 0}: 2})

		frames, err := LoadStack(dir, "")
		require.NoError(t, err)
		require.Len(t, frames, 3)

		for i, f := range frames {
			assert.Equal(t, i, f.Index)
			assert.Equal(t, uint16(i+1), f.Label(0, 0))
		}
		assert.Equal(t, filepath.Join(dir, "mask000.tif"), frames[0].Path)
	})

	t.Run("decodes 16-bit labels above 255", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeGray16Mask(t, filepath.Join(dir, "mask000.tif"), 8, 6, map[[2]int]uint16{
			{2, 1}: 300,
			{7, 5}: 41235,
		})

		frames, err := LoadStack(dir, "")
		require.NoError(t, err)
		require.Len(t, frames, 1)

		f := frames[0]
		assert.Equal(t, 8, f.Width)
		assert.Equal(t, 6, f.Height)
		assert.Equal(t, uint16(300), f.Label(2, 1))
		assert.Equal(t, uint16(41235), f.Label(7, 5))
		assert.Equal(t, uint16(0), f.Label(0, 0))
		assert.Len(t, f.Labels(), 48)
	})

	t.Run("decodes 8-bit grayscale masks", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		img := image.NewGray(image.Rect(0, 0, 3, 2))
		img.SetGray(1, 0, color.Gray{Y: 7})
		img.SetGray(2, 1, color.Gray{Y: 9})
		f, err := os.Create(filepath.Join(dir, "mask000.tif"))
		require.NoError(t, err)
		require.NoError(t, tiff.Encode(f, img, nil))
		require.NoError(t, f.Close())

		frames, err := LoadStack(dir, "")
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, uint16(7), frames[0].Label(1, 0))
		assert.Equal(t, uint16(9), frames[0].Label(2, 1))
	})

	t.Run("decodes paletted masks by index", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		pal := color.Palette{
			color.Gray{Y: 0},
			color.Gray{Y: 120},
			color.Gray{Y: 240},
		}
		img := image.NewPaletted(image.Rect(0, 0, 2, 2), pal)
		img.SetColorIndex(0, 1, 2)
		f, err := os.Create(filepath.Join(dir, "mask000.tif"))
		require.NoError(t, err)
		require.NoError(t, tiff.Encode(f, img, nil))
		require.NoError(t, f.Close())

		frames, err := LoadStack(dir, "")
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, uint16(2), frames[0].Label(0, 1))
		assert.Equal(t, uint16(0), frames[0].Label(0, 0))
	})

	t.Run("honours custom pattern", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeGray16Mask(t, filepath.Join(dir, "seg000.tif"), 2, 2, map[[2]int]uint16{{0, 0}: 5})
		writeGray16Mask(t, filepath.Join(dir, "mask000.tif"), 2, 2, map[[2]int]uint16{{0, 0}: 1})

		frames, err := LoadStack(dir, "seg*.tif")
		require.NoError(t, err)
		require.Len(t, frames, 1)
		assert.Equal(t, uint16(5), frames[0].Label(0, 0))
	})

	t.Run("empty directory yields missing input", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		_, err := LoadStack(dir, "")
		var merr *ctc.MissingInputError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, dir, merr.Dir)
		assert.Equal(t, []string{DefaultMaskPattern}, merr.Candidates)
	})

	t.Run("nonexistent directory yields missing input", func(t *testing.T) {
		t.Parallel()
		_, err := LoadStack(filepath.Join(t.TempDir(), "absent"), "")
		var merr *ctc.MissingInputError
		assert.ErrorAs(t, err, &merr)
	})

	t.Run("corrupt mask reports its path", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "mask000.tif")
		require.NoError(t, os.WriteFile(path, []byte("not a tiff"), 0644))

		_, err := LoadStack(dir, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})
}
