// Package classifier runs the fixed convolutional forward pass that maps a
// normalized 28×28 glyph tile to one character.
package classifier

import (
	"fmt"
	"math"

	"github.com/Sparsh-ui/captcha-solver/internal/model"
	"github.com/Sparsh-ui/captcha-solver/internal/tensor"
)

// Alphabet maps output indices to characters: letters first, then digits.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Prediction is the classifier's answer for one tile. Score is the softmax
// probability of Char and is informational only.
type Prediction struct {
	Char  byte
	Index int
	Score float32
}

type Classifier struct {
	conv1, conv2  *tensor.ConvLayer
	hidden, final *tensor.DenseLayer
}

func New(m *model.Model) *Classifier {
	return &Classifier{
		conv1:  m.Conv(model.Conv1),
		conv2:  m.Conv(model.Conv2),
		hidden: m.Dense(model.Hidden),
		final:  m.Dense(model.Output),
	}
}

// Logits runs the forward pass:
//
//	conv1 28×28×1 → 26×26×32, pool → 13×13×32
//	conv2 → 11×11×64, pool → 5×5×64, flatten → 1600
//	dense1 → 128 (ReLU), output → 36
func (c *Classifier) Logits(tile []float32) []float32 {
	const size = model.InputSize
	if len(tile) != size*size {
		panic(fmt.Sprintf("classifier: tile has %d values, want %d", len(tile), size*size))
	}

	x, h, w := tensor.Conv2DValid(tile, size, size, 1, c.conv1)
	x, h, w = tensor.MaxPool2x2(x, h, w, c.conv1.Out)
	x, h, w = tensor.Conv2DValid(x, h, w, c.conv1.Out, c.conv2)
	x, _, _ = tensor.MaxPool2x2(x, h, w, c.conv2.Out)

	x = tensor.Dense(x, c.hidden, true)
	return tensor.Dense(x, c.final, false)
}

// Classify always returns a character; ties go to the lowest index.
func (c *Classifier) Classify(tile []float32) Prediction {
	logits := c.Logits(tile)
	best := argmax(logits)
	return Prediction{
		Char:  Alphabet[best],
		Index: best,
		Score: softmaxAt(logits, best),
	}
}

func argmax(v []float32) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func softmaxAt(v []float32, i int) float32 {
	max := float64(v[argmax(v)])
	var sum float64
	for _, x := range v {
		sum += math.Exp(float64(x) - max)
	}
	return float32(math.Exp(float64(v[i])-max) / sum)
}
