// Package segment cuts the text of a binary mask into equal-width bands and
// normalizes each band into a 28×28 glyph tile.
package segment

import (
	"math"

	"github.com/Sparsh-ui/captcha-solver/internal/mask"
)

const (
	// TileSize is the side of a normalized glyph tile.
	TileSize = 28
	// GlyphSize is the box a glyph crop is scaled to fit before centring.
	GlyphSize = 22
)

// Box is an inclusive pixel rectangle.
type Box struct {
	Left, Top, Right, Bottom int
}

func (b Box) Width() int  { return b.Right - b.Left + 1 }
func (b Box) Height() int { return b.Bottom - b.Top + 1 }

// BoundingBox returns the tightest box around the foreground pixels of m
// inside the columns [x0, x1) and rows [y0, y1). ok is false when there are
// none.
func BoundingBox(m *mask.Mask, x0, y0, x1, y1 int) (box Box, ok bool) {
	box = Box{Left: x1, Top: y1, Right: x0 - 1, Bottom: y0 - 1}
	for y := y0; y < y1; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x := x0; x < x1; x++ {
			if row[x] != mask.Foreground {
				continue
			}
			ok = true
			if y < box.Top {
				box.Top = y
			}
			if y > box.Bottom {
				box.Bottom = y
			}
			if x < box.Left {
				box.Left = x
			}
			if x > box.Right {
				box.Right = x
			}
		}
	}
	return box, ok
}

// Bands splits box into n bands of equal floating-point width. Boundaries
// are floored independently, so neighbouring bands may differ by a pixel.
// Each band is returned as a half-open column range [start, end).
func Bands(box Box, n int) [][2]int {
	charWidth := float64(box.Width()) / float64(n)
	bands := make([][2]int, n)
	for i := range bands {
		bands[i][0] = int(math.Floor(float64(box.Left) + charWidth*float64(i)))
		bands[i][1] = int(math.Floor(float64(box.Left) + charWidth*float64(i+1)))
	}
	return bands
}

// Segment returns numChars tiles, left to right. It returns nil when the
// mask has no foreground at all. A band without foreground yields an all
// zero tile.
func Segment(m *mask.Mask, numChars int) [][]float32 {
	if numChars <= 0 {
		return nil
	}
	text, ok := BoundingBox(m, 0, 0, m.Width, m.Height)
	if !ok {
		return nil
	}

	tiles := make([][]float32, 0, numChars)
	for _, band := range Bands(text, numChars) {
		glyph, ok := BoundingBox(m, band[0], text.Top, band[1], text.Bottom+1)
		if !ok {
			tiles = append(tiles, make([]float32, TileSize*TileSize))
			continue
		}
		tiles = append(tiles, Normalize(Canvas(m, glyph)))
	}
	return tiles
}

// Canvas crops box out of m, scales it with nearest-neighbour sampling to
// fit GlyphSize×GlyphSize while keeping its aspect ratio, and centres it on
// a background filled TileSize×TileSize canvas.
func Canvas(m *mask.Mask, box Box) []byte {
	cropW, cropH := box.Width(), box.Height()
	scale := math.Min(GlyphSize/float64(cropW), GlyphSize/float64(cropH))
	newW := maxInt(1, int(math.Round(float64(cropW)*scale)))
	newH := maxInt(1, int(math.Round(float64(cropH)*scale)))

	canvas := make([]byte, TileSize*TileSize)
	for i := range canvas {
		canvas[i] = mask.Background
	}
	xOff := (TileSize - newW) / 2
	yOff := (TileSize - newH) / 2
	for y := 0; y < newH; y++ {
		srcY := minInt(int(math.Floor(float64(y)/scale)), cropH-1)
		for x := 0; x < newW; x++ {
			srcX := minInt(int(math.Floor(float64(x)/scale)), cropW-1)
			canvas[(yOff+y)*TileSize+xOff+x] = m.At(box.Left+srcX, box.Top+srcY)
		}
	}
	return canvas
}

// Normalize maps canvas bytes to tile intensities: ink 1.0, background 0.0.
func Normalize(canvas []byte) []float32 {
	tile := make([]float32, len(canvas))
	for i, v := range canvas {
		tile[i] = 1.0 - float32(v)/255.0
	}
	return tile
}

// Denormalize inverts Normalize.
func Denormalize(tile []float32) []byte {
	canvas := make([]byte, len(tile))
	for i, v := range tile {
		canvas[i] = byte(math.Round(float64(255 * (1 - v))))
	}
	return canvas
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
