package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomConv(r *rand.Rand, kh, kw, in, out int) *ConvLayer {
	l := &ConvLayer{KH: kh, KW: kw, In: in, Out: out,
		Kernel: make([]float32, kh*kw*in*out),
		Bias:   make([]float32, out),
	}
	for i := range l.Kernel {
		l.Kernel[i] = r.Float32()*2 - 1
	}
	for i := range l.Bias {
		l.Bias[i] = r.Float32()*2 - 1
	}
	return l
}

func TestConv2DValidZeroInputIsReLUOfBias(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, tc := range []struct{ h, w, c int }{{28, 28, 1}, {13, 13, 32}, {5, 7, 3}} {
		l := randomConv(r, 3, 3, tc.c, 8)
		out, outH, outW := Conv2DValid(make([]float32, tc.h*tc.w*tc.c), tc.h, tc.w, tc.c, l)

		require.Equal(t, tc.h-2, outH)
		require.Equal(t, tc.w-2, outW)
		require.Len(t, out, outH*outW*8)
		for i, v := range out {
			assert.Equal(t, relu(l.Bias[i%8]), v)
		}
	}
}

func TestConv2DValidMatchesNaive(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	const h, w, c = 6, 5, 2
	l := randomConv(r, 3, 2, c, 3)
	input := make([]float32, h*w*c)
	for i := range input {
		// about a third of the inputs are exact zeros
		if r.Intn(3) > 0 {
			input[i] = r.Float32()
		}
	}

	out, outH, outW := Conv2DValid(input, h, w, c, l)
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			for o := 0; o < l.Out; o++ {
				var sum float32
				for ky := 0; ky < l.KH; ky++ {
					for kx := 0; kx < l.KW; kx++ {
						for ch := 0; ch < c; ch++ {
							sum += input[((y+ky)*w+x+kx)*c+ch] * l.Kernel[((ky*l.KW+kx)*l.In+ch)*l.Out+o]
						}
					}
				}
				assert.InDelta(t, relu(sum+l.Bias[o]), out[(y*outW+x)*l.Out+o], 1e-5)
			}
		}
	}
}

func TestConv2DValidPanicsOnLengthMismatch(t *testing.T) {
	l := &ConvLayer{KH: 3, KW: 3, In: 1, Out: 1, Kernel: make([]float32, 9), Bias: make([]float32, 1)}
	assert.Panics(t, func() { Conv2DValid(make([]float32, 10), 4, 4, 1, l) })
	assert.Panics(t, func() { Conv2DValid(make([]float32, 32), 4, 4, 2, l) })
}

func TestMaxPool2x2(t *testing.T) {
	out, h, w := MaxPool2x2([]float32{0.5, 3, -1, 2}, 2, 2, 1)
	assert.Equal(t, 1, h)
	assert.Equal(t, 1, w)
	assert.Equal(t, []float32{3}, out)
}

func TestMaxPool2x2DropsTrailingRowAndColumn(t *testing.T) {
	// 3×3 single channel; the last row and column hold the largest values
	input := []float32{
		1, 2, 90,
		3, 4, 91,
		92, 93, 94,
	}
	out, h, w := MaxPool2x2(input, 3, 3, 1)
	assert.Equal(t, 1, h)
	assert.Equal(t, 1, w)
	assert.Equal(t, []float32{4}, out)

	_, h, w = MaxPool2x2(make([]float32, 11*11*64), 11, 11, 64)
	assert.Equal(t, 5, h)
	assert.Equal(t, 5, w)
}

func TestMaxPool2x2PerChannel(t *testing.T) {
	// 2×2×2, channel 0 holds 1..4 and channel 1 holds 8..5
	input := []float32{1, 8, 2, 7, 3, 6, 4, 5}
	out, _, _ := MaxPool2x2(input, 2, 2, 2)
	assert.Equal(t, []float32{4, 8}, out)
}

func TestDense(t *testing.T) {
	l := &DenseLayer{In: 2, Out: 3,
		Kernel: []float32{
			1, -1, 0.5,
			2, -2, 0.25,
		},
		Bias: []float32{0.5, 0, -10},
	}

	assert.Equal(t, []float32{3.5, -3, -9.25}, Dense([]float32{1, 1}, l, false))
	assert.Equal(t, []float32{3.5, 0, 0}, Dense([]float32{1, 1}, l, true))
	assert.Equal(t, []float32{0.5, 0, -10}, Dense([]float32{0, 0}, l, false))
	assert.Panics(t, func() { Dense([]float32{1}, l, false) })
}

func TestValidate(t *testing.T) {
	conv := &ConvLayer{KH: 3, KW: 3, In: 1, Out: 2, Kernel: make([]float32, 18), Bias: make([]float32, 2)}
	require.NoError(t, conv.Validate())
	conv.Bias = conv.Bias[:1]
	assert.Error(t, conv.Validate())

	dense := &DenseLayer{In: 4, Out: 2, Kernel: make([]float32, 7), Bias: make([]float32, 2)}
	assert.Error(t, dense.Validate())
	dense.Kernel = make([]float32, 8)
	assert.NoError(t, dense.Validate())
}
