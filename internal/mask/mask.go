// Package mask turns a CAPTCHA raster into a binary foreground mask,
// picking out red gridlines, strongly coloured noise and dark ink.
package mask

import (
	"image"
	"math"
)

const (
	Foreground byte = 0
	Background byte = 255
)

// Thresholds of the per-pixel test. Hue is on the 0–180 scale, saturation
// and value on 0–255.
const (
	RedHueLow        = 15
	RedHueHigh       = 165
	RedMinSaturation = 40
	RedMinValue      = 40
	MinSaturation    = 50
	MaxGray          = 60
	// MinNeighbors is the foreground 8-neighbour count an interior pixel
	// needs to survive denoising.
	MinNeighbors = 1
)

// Mask is one byte per pixel, row-major.
type Mask struct {
	Pix           []byte
	Width, Height int
}

func New(w, h int) *Mask {
	m := &Mask{Pix: make([]byte, w*h), Width: w, Height: h}
	for i := range m.Pix {
		m.Pix[i] = Background
	}
	return m
}

func (m *Mask) At(x, y int) byte {
	return m.Pix[y*m.Width+x]
}

func (m *Mask) Set(x, y int, v byte) {
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v == Foreground {
			n++
		}
	}
	return n
}

// RGBToHSV converts 8-bit RGB to hue in [0,180) and saturation and value
// in [0,255].
func RGBToHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	d := max - min

	if max != 0 {
		s = d / max
	}
	if d != 0 {
		switch max {
		case rf:
			h = (gf - bf) / d
			if gf < bf {
				h += 6
			}
		case gf:
			h = (bf-rf)/d + 2
		default:
			h = (rf-gf)/d + 4
		}
		h /= 6
	}
	return h * 180, s * 255, max * 255
}

// Gray is the perceptual luminance of an 8-bit RGB pixel.
func Gray(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// IsForeground reports whether a pixel is red grid, saturated noise or
// dark ink.
func IsForeground(r, g, b uint8) bool {
	h, s, v := RGBToHSV(r, g, b)
	return foreground(h, s, v, Gray(r, g, b))
}

// foreground applies the three rules to a pixel already converted to HSV
// and gray. Any one of them is enough.
func foreground(h, s, v, gray float64) bool {
	red := (h <= RedHueLow || h >= RedHueHigh) && s > RedMinSaturation && v > RedMinValue
	saturated := s > MinSaturation
	dark := gray < MaxGray
	return red || saturated || dark
}

// Binarize classifies every pixel of img. Alpha is ignored.
func Binarize(img *image.NRGBA) *Mask {
	b := img.Bounds()
	m := New(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < m.Width; x++ {
			p := row[x*4 : x*4+3]
			if IsForeground(p[0], p[1], p[2]) {
				m.Pix[y*m.Width+x] = Foreground
			}
		}
	}
	return m
}

// Denoise returns a copy of m in which interior foreground pixels with
// fewer than MinNeighbors foreground neighbours are cleared. Neighbours
// are counted on m, not on the copy, and the one pixel border is left
// alone. Clusters of two or more pixels survive.
func (m *Mask) Denoise() *Mask {
	out := &Mask{Pix: append([]byte(nil), m.Pix...), Width: m.Width, Height: m.Height}
	for y := 1; y < m.Height-1; y++ {
		for x := 1; x < m.Width-1; x++ {
			if m.At(x, y) != Foreground {
				continue
			}
			neighbors := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if (dx != 0 || dy != 0) && m.At(x+dx, y+dy) == Foreground {
						neighbors++
					}
				}
			}
			if neighbors < MinNeighbors {
				out.Set(x, y, Background)
			}
		}
	}
	return out
}

// RemoveGrid binarizes img and removes isolated speckle.
func RemoveGrid(img *image.NRGBA) *Mask {
	return Binarize(img).Denoise()
}
