package classifier

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sparsh-ui/captcha-solver/datastructures"
	"github.com/Sparsh-ui/captcha-solver/internal/model"
	"github.com/Sparsh-ui/captcha-solver/internal/tensor"
	"github.com/Sparsh-ui/captcha-solver/internal/testutil"
)

// blockTile draws a 5×5 block pattern the way the segmenter centres a
// 22×22 glyph: offset 3, 4 pixel blocks, the last block 6 pixels wide.
func blockTile(pattern [5]string) []float32 {
	tile := make([]float32, 28*28)
	span := func(b int) (int, int) {
		if b == 4 {
			return 16, 22
		}
		return 4 * b, 4*b + 4
	}
	for by, row := range pattern {
		for bx, cell := range row {
			if cell != '#' {
				continue
			}
			y1, y2 := span(by)
			x1, x2 := span(bx)
			for y := y1; y < y2; y++ {
				for x := x1; x < x2; x++ {
					tile[(3+y)*28+3+x] = 1
				}
			}
		}
	}
	return tile
}

func syntheticClassifier(t *testing.T) *Classifier {
	m, err := model.Parse(bytes.NewReader(testutil.ModelJSON(t)))
	require.NoError(t, err)
	return New(m)
}

func TestClassifyGlyphs(t *testing.T) {
	c := syntheticClassifier(t)
	for ch, pattern := range testutil.Glyphs {
		p := c.Classify(blockTile(pattern))
		assert.Equal(t, string(ch), string(p.Char))
		assert.Equal(t, ch, Alphabet[p.Index])
		assert.Greater(t, p.Score, float32(1.0/36))
	}
}

func TestLogitsLength(t *testing.T) {
	c := syntheticClassifier(t)
	assert.Len(t, c.Logits(make([]float32, 28*28)), len(Alphabet))
	assert.Panics(t, func() { c.Logits(make([]float32, 27*27)) })
}

func zeroModel(t *testing.T) *model.Model {
	conv := func(in, out int) *tensor.ConvLayer {
		return &tensor.ConvLayer{KH: 3, KW: 3, In: in, Out: out,
			Kernel: make([]float32, 9*in*out), Bias: make([]float32, out)}
	}
	dense := func(in, out int) *tensor.DenseLayer {
		return &tensor.DenseLayer{In: in, Out: out,
			Kernel: make([]float32, in*out), Bias: make([]float32, out)}
	}
	m, err := model.New(conv(1, 32), conv(32, 64), dense(1600, 128), dense(128, 36), datastructures.ModelInfo{})
	require.NoError(t, err)
	return m
}

func TestTiesGoToLowestIndex(t *testing.T) {
	c := New(zeroModel(t))
	p := c.Classify(blockTile(testutil.Glyphs['X']))
	assert.Equal(t, byte('A'), p.Char)
	assert.Equal(t, 0, p.Index)
	assert.InDelta(t, 1.0/36, p.Score, 1e-6)
}

func TestAlphabetOrder(t *testing.T) {
	assert.Len(t, Alphabet, model.Classes)
	assert.Equal(t, byte('Z'), Alphabet[25])
	assert.Equal(t, byte('0'), Alphabet[26])
	assert.Equal(t, byte('9'), Alphabet[35])
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, argmax([]float32{-1, 3, 5, 5, 0}))
	assert.Equal(t, 0, argmax([]float32{-2, -2}))
}
