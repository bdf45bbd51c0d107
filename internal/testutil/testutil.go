// Package testutil provides shared test fixtures: a hand-built classifier
// model that recognises block glyphs exactly, images of those glyphs, and
// an in-memory redis connection.
package testutil

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Glyphs are 5×5 block patterns. Every pattern has ink in its first and
// last row and column, so the tight bounding box of a rendered glyph is
// always the full GlyphPixels square.
var Glyphs = map[byte][5]string{
	'A': {
		".###.",
		"#...#",
		"#####",
		"#...#",
		"#...#",
	},
	'H': {
		"#...#",
		"#...#",
		"#####",
		"#...#",
		"#...#",
	},
	'L': {
		"#....",
		"#....",
		"#....",
		"#....",
		"#####",
	},
	'T': {
		"#####",
		"..#..",
		"..#..",
		"..#..",
		"..#..",
	},
	'X': {
		"#...#",
		".#.#.",
		"..#..",
		".#.#.",
		"#...#",
	},
	'Z': {
		"#####",
		"...#.",
		"..#..",
		".#...",
		"#####",
	},
	'7': {
		"#####",
		"....#",
		"...#.",
		"..#..",
		"..#..",
	},
	'4': {
		"#..#.",
		"#..#.",
		"#####",
		"...#.",
		"...##",
	},
}

const (
	// GlyphPixels is the rendered side of a glyph. It equals the segmenter's
	// 22 pixel target so glyphs reach the classifier unscaled.
	GlyphPixels = 22
	// GlyphPitch is the horizontal distance between glyph origins.
	GlyphPitch = 30
	// Margin surrounds the glyph row on every side.
	Margin = 10
)

// blockSpan returns the pixel range covered by block b of a glyph. The last
// block absorbs the remainder so that blocks line up with the 4 pixel cells
// the synthetic model samples.
func blockSpan(b int) (int, int) {
	if b == 4 {
		return 16, GlyphPixels
	}
	return 4 * b, 4*b + 4
}

// GlyphImage renders label as black block glyphs on a white background.
func GlyphImage(t testing.TB, label string) *image.NRGBA {
	t.Helper()
	w := 2*Margin + (len(label)-1)*GlyphPitch + GlyphPixels
	h := 2*Margin + GlyphPixels
	img := imaging.New(w, h, color.White)
	for i := 0; i < len(label); i++ {
		pattern, ok := Glyphs[label[i]]
		if !ok {
			t.Fatalf("no test glyph for %q", label[i])
		}
		x0 := Margin + i*GlyphPitch
		for by, row := range pattern {
			for bx, cell := range row {
				if cell != '#' {
					continue
				}
				y1, y2 := blockSpan(by)
				x1, x2 := blockSpan(bx)
				for y := y1; y < y2; y++ {
					for x := x1; x < x2; x++ {
						img.Set(x0+x, Margin+y, color.Black)
					}
				}
			}
		}
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// GlyphPNG renders label and encodes it as PNG.
func GlyphPNG(t testing.TB, label string) []byte {
	t.Helper()
	return EncodePNG(t, GlyphImage(t, label))
}

// UniformPNG is a solid image with no text.
func UniformPNG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	return EncodePNG(t, imaging.New(w, h, c))
}

type layer struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	KernelShape []int     `json:"kernel_shape"`
	Kernel      []float32 `json:"kernel"`
	Bias        []float32 `json:"bias"`
}

type modelInfo struct {
	Build   int32  `json:"build"`
	Created string `json:"created"`
	BasedOn string `json:"based_on"`
}

type parameterFile struct {
	ModelInfo modelInfo `json:"model_info"`
	Layers    []layer   `json:"layers"`
}

// ModelBuild is the build number stamped into the synthetic model.
const ModelBuild = 7

// ModelJSON builds a parameter file for the fixed architecture whose
// forward pass recognises every glyph in Glyphs.
//
// Both convolutions pass channel 0 through their centre tap only, so after
// the two pools feature (y, x) is the maximum of tile rows 4y+3..4y+6 and
// columns 4x+3..4x+6, which is exactly block (y, x) of a centred glyph.
// dense1 copies those 25 features; the output layer scores each glyph by
// minus its Hamming distance to the features and pins every other class
// far below.
func ModelJSON(t testing.TB) []byte {
	t.Helper()

	conv1 := layer{Name: "conv1", Type: "Conv2D", KernelShape: []int{3, 3, 1, 32},
		Kernel: make([]float32, 3*3*1*32), Bias: make([]float32, 32)}
	conv1.Kernel[((1*3+1)*1+0)*32+0] = 1

	conv2 := layer{Name: "conv2", Type: "Conv2D", KernelShape: []int{3, 3, 32, 64},
		Kernel: make([]float32, 3*3*32*64), Bias: make([]float32, 64)}
	conv2.Kernel[((1*3+1)*32+0)*64+0] = 1

	dense1 := layer{Name: "dense1", Type: "Dense", KernelShape: []int{1600, 128},
		Kernel: make([]float32, 1600*128), Bias: make([]float32, 128)}
	for j := 0; j < 25; j++ {
		dense1.Kernel[(j*64)*128+j] = 1
	}

	output := layer{Name: "output", Type: "Dense", KernelShape: []int{128, 36},
		Kernel: make([]float32, 128*36), Bias: make([]float32, 36)}
	for k := range output.Bias {
		output.Bias[k] = -1000
	}
	for ch, pattern := range Glyphs {
		k := strings.IndexByte(alphabet, ch)
		var on float32
		for y, row := range pattern {
			for x, cell := range row {
				j := y*5 + x
				if cell == '#' {
					output.Kernel[j*36+k] = 1
					on++
				} else {
					output.Kernel[j*36+k] = -1
				}
			}
		}
		output.Bias[k] = -on
	}

	data, err := json.Marshal(parameterFile{
		ModelInfo: modelInfo{Build: ModelBuild, Created: "2026-01-01", BasedOn: "synthetic"},
		Layers:    []layer{conv1, conv2, dense1, output},
	})
	if err != nil {
		t.Fatalf("marshal model: %v", err)
	}
	return data
}
