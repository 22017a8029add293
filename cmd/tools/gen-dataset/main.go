// Command gen-dataset generates a synthetic cell tracking dataset for
// testing and demos: a 16-bit TIFF mask stack plus the matching
// lineage table. Deterministic for a given seed.
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/image/tiff"

	"github.com/banshee-data/lineage.report/internal/ctc"
)

var (
	output = flag.String("o", "dataset", "output directory")
	frames = flag.Int("frames", 40, "number of frames")
	cells  = flag.Int("cells", 6, "initial cell count")
	width  = flag.Int("width", 256, "mask width in pixels")
	height = flag.Int("height", 256, "mask height in pixels")
	seed   = flag.Int64("seed", 1, "random seed")
	divide = flag.Float64("divide", 0.02, "per-cell division probability per frame")
	radius = flag.Float64("radius", 6, "cell radius in pixels")
)

// cell is one live cell: a disk doing a bounded random walk.
type cell struct {
	id     ctc.TrackID
	parent ctc.TrackID
	start  int
	y, x   float64
	vy, vx float64
}

type generator struct {
	rng    *rand.Rand
	nextID ctc.TrackID
	live   []*cell
	done   []ctc.Track
}

func newGenerator(rng *rand.Rand, n int) *generator {
	g := &generator{rng: rng, nextID: 1}
	for i := 0; i < n; i++ {
		g.live = append(g.live, g.spawn(0, 0))
	}
	return g
}

func (g *generator) spawn(start int, parent ctc.TrackID) *cell {
	c := &cell{
		id:     g.nextID,
		parent: parent,
		start:  start,
		y:      g.rng.Float64() * float64(*height),
		x:      g.rng.Float64() * float64(*width),
		vy:     g.rng.Float64()*3 - 1.5,
		vx:     g.rng.Float64()*3 - 1.5,
	}
	g.nextID++
	return c
}

// step advances every live cell by one frame and divides a few.
// Mothers end on the previous frame; daughters first appear on this
// one, matching the lineage table convention.
func (g *generator) step(t int) {
	var next []*cell
	for _, c := range g.live {
		if t-c.start >= 3 && len(g.live) < *cells*8 && g.rng.Float64() < *divide {
			g.done = append(g.done, ctc.Track{ID: c.id, Start: c.start, End: t - 1, Parent: c.parent})
			d1 := g.spawn(t, c.id)
			d2 := g.spawn(t, c.id)
			d1.y, d1.x = clampY(c.y-*radius), clampX(c.x)
			d2.y, d2.x = clampY(c.y+*radius), clampX(c.x)
			next = append(next, d1, d2)
			continue
		}

		c.y += c.vy + (g.rng.Float64()*0.6 - 0.3)
		c.x += c.vx + (g.rng.Float64()*0.6 - 0.3)
		if c.y < 0 || c.y >= float64(*height) {
			c.vy = -c.vy
			c.y = clampY(c.y)
		}
		if c.x < 0 || c.x >= float64(*width) {
			c.vx = -c.vx
			c.x = clampX(c.x)
		}
		next = append(next, c)
	}
	g.live = next
}

func clampY(v float64) float64 { return clamp(v, float64(*height)-1) }
func clampX(v float64) float64 { return clamp(v, float64(*width)-1) }

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// render rasterizes every live cell as a filled disk of its label.
func (g *generator) render() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, *width, *height))
	r := int(*radius)
	for _, c := range g.live {
		cy, cx := int(c.y), int(c.x)
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dy*dy+dx*dx > r*r {
					continue
				}
				y, x := cy+dy, cx+dx
				if y < 0 || y >= *height || x < 0 || x >= *width {
					continue
				}
				off := img.PixOffset(x, y)
				img.Pix[off] = byte(uint16(c.id) >> 8)
				img.Pix[off+1] = byte(uint16(c.id))
			}
		}
	}
	return img
}

// tracks returns the full lineage table, live cells closed out at the
// final frame.
func (g *generator) tracks(lastFrame int) []ctc.Track {
	out := append([]ctc.Track(nil), g.done...)
	for _, c := range g.live {
		out = append(out, ctc.Track{ID: c.id, Start: c.start, End: lastFrame, Parent: c.parent})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func writeMask(path string, img *image.Gray16) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, img, nil); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	flag.Parse()

	if *frames < 1 || *cells < 1 || *width < 8 || *height < 8 {
		log.Fatal("frames and cells must be >= 1, width and height >= 8")
	}
	if err := os.MkdirAll(*output, 0o755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	gen := newGenerator(rng, *cells)

	for i := 0; i < *frames; i++ {
		if i > 0 {
			gen.step(i)
		}
		path := filepath.Join(*output, fmt.Sprintf("mask%03d.tif", i))
		if err := writeMask(path, gen.render()); err != nil {
			log.Fatalf("failed to write %s: %v", path, err)
		}
		if (i+1)%10 == 0 {
			log.Printf("%d/%d frames", i+1, *frames)
		}
	}

	tracks := gen.tracks(*frames - 1)
	tablePath := filepath.Join(*output, ctc.ResultTableName)
	f, err := os.Create(tablePath)
	if err != nil {
		log.Fatalf("failed to create %s: %v", tablePath, err)
	}
	if err := ctc.WriteTable(f, tracks); err != nil {
		f.Close()
		log.Fatalf("failed to write %s: %v", tablePath, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("failed to write %s: %v", tablePath, err)
	}

	divisions := 0
	for _, tr := range tracks {
		if tr.Parent != 0 {
			divisions++
		}
	}
	log.Printf("✓ Created: %s (%d tracks, %d daughter tracks)", *output, len(tracks), divisions)
}
