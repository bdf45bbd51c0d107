// Package tensor implements the flat-buffer operations of the glyph
// classifier. Buffers are row-major with channels innermost (HWC).
package tensor

import "fmt"

// ConvLayer is a 2D convolution kernel stored row-major as
// (kernel-row, kernel-col, input-channel, output-channel).
type ConvLayer struct {
	KH, KW  int
	In, Out int
	Kernel  []float32
	Bias    []float32
}

// Validate checks the kernel and bias lengths against the declared shape.
func (l *ConvLayer) Validate() error {
	if l.KH <= 0 || l.KW <= 0 || l.In <= 0 || l.Out <= 0 {
		return fmt.Errorf("conv shape [%d %d %d %d] has non-positive dimension", l.KH, l.KW, l.In, l.Out)
	}
	if want := l.KH * l.KW * l.In * l.Out; len(l.Kernel) != want {
		return fmt.Errorf("conv kernel has %d values, shape wants %d", len(l.Kernel), want)
	}
	if len(l.Bias) != l.Out {
		return fmt.Errorf("conv bias has %d values, shape wants %d", len(l.Bias), l.Out)
	}
	return nil
}

// DenseLayer is a fully-connected kernel stored row-major as (input, output).
type DenseLayer struct {
	In, Out int
	Kernel  []float32
	Bias    []float32
}

func (l *DenseLayer) Validate() error {
	if l.In <= 0 || l.Out <= 0 {
		return fmt.Errorf("dense shape [%d %d] has non-positive dimension", l.In, l.Out)
	}
	if want := l.In * l.Out; len(l.Kernel) != want {
		return fmt.Errorf("dense kernel has %d values, shape wants %d", len(l.Kernel), want)
	}
	if len(l.Bias) != l.Out {
		return fmt.Errorf("dense bias has %d values, shape wants %d", len(l.Bias), l.Out)
	}
	return nil
}

// Conv2DValid convolves an h×w×c input with valid padding and stride 1,
// then adds the bias and applies ReLU.
//
// Exact zero inputs are skipped. Upstream ReLU and the zero background of
// normalized tiles make them common, and a zero contributes nothing.
func Conv2DValid(input []float32, h, w, c int, l *ConvLayer) ([]float32, int, int) {
	if len(input) != h*w*c {
		panic(fmt.Sprintf("tensor: conv input has %d values, want %d×%d×%d", len(input), h, w, c))
	}
	if c != l.In {
		panic(fmt.Sprintf("tensor: conv input has %d channels, kernel wants %d", c, l.In))
	}
	if h < l.KH || w < l.KW {
		panic(fmt.Sprintf("tensor: conv input %d×%d smaller than kernel %d×%d", h, w, l.KH, l.KW))
	}

	outH := h - l.KH + 1
	outW := w - l.KW + 1
	out := make([]float32, outH*outW*l.Out)

	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			outBase := (y*outW + x) * l.Out
			acc := out[outBase : outBase+l.Out]
			for ky := 0; ky < l.KH; ky++ {
				iy := y + ky
				for kx := 0; kx < l.KW; kx++ {
					inBase := (iy*w + x + kx) * c
					kBase := (ky*l.KW + kx) * l.In
					for ch := 0; ch < c; ch++ {
						v := input[inBase+ch]
						if v == 0 {
							continue
						}
						k := l.Kernel[(kBase+ch)*l.Out : (kBase+ch+1)*l.Out]
						for o, kv := range k {
							acc[o] += v * kv
						}
					}
				}
			}
			for o := range acc {
				acc[o] = relu(acc[o] + l.Bias[o])
			}
		}
	}
	return out, outH, outW
}

// MaxPool2x2 takes the maximum of each non-overlapping 2×2 window per
// channel. A trailing odd row or column is dropped.
func MaxPool2x2(input []float32, h, w, c int) ([]float32, int, int) {
	if len(input) != h*w*c {
		panic(fmt.Sprintf("tensor: pool input has %d values, want %d×%d×%d", len(input), h, w, c))
	}

	outH, outW := h/2, w/2
	out := make([]float32, outH*outW*c)

	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			outBase := (y*outW + x) * c
			i00 := ((2*y)*w + 2*x) * c
			i01 := i00 + c
			i10 := i00 + w*c
			i11 := i10 + c
			for ch := 0; ch < c; ch++ {
				out[outBase+ch] = max4(input[i00+ch], input[i01+ch], input[i10+ch], input[i11+ch])
			}
		}
	}
	return out, outH, outW
}

// Dense multiplies input by the layer kernel, adds the bias and optionally
// applies ReLU.
func Dense(input []float32, l *DenseLayer, applyReLU bool) []float32 {
	if len(input) != l.In {
		panic(fmt.Sprintf("tensor: dense input has %d values, kernel wants %d", len(input), l.In))
	}

	out := make([]float32, l.Out)
	for i, v := range input {
		if v == 0 {
			continue
		}
		row := l.Kernel[i*l.Out : (i+1)*l.Out]
		for o, kv := range row {
			out[o] += v * kv
		}
	}
	for o := range out {
		out[o] += l.Bias[o]
		if applyReLU {
			out[o] = relu(out[o])
		}
	}
	return out
}

func relu(v float32) float32 {
	if v < 0 {
		return 0
	}
	return v
}

func max4(a, b, c, d float32) (o float32) {
	o = a
	if b > o {
		o = b
	}
	if c > o {
		o = c
	}
	if d > o {
		o = d
	}
	return o
}
