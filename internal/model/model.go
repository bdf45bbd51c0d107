// Package model holds the four named layers of the glyph classifier and
// loads them from a JSON parameter file.
package model

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/Sparsh-ui/captcha-solver/datastructures"
	"github.com/Sparsh-ui/captcha-solver/internal/tensor"
)

// Layer names of the fixed architecture.
const (
	Conv1  = "conv1"
	Conv2  = "conv2"
	Hidden = "dense1"
	Output = "output"
)

const (
	// InputSize is the side of the square single-channel input tile.
	InputSize = 28
	// Classes is the number of output logits.
	Classes = 36
)

const (
	typeConv2D = "Conv2D"
	typeDense  = "Dense"
)

// Model is read-only once built; its layers are shared by every caller.
type Model struct {
	Info datastructures.ModelInfo

	conv  map[string]*tensor.ConvLayer
	dense map[string]*tensor.DenseLayer
}

// New validates the layers against the fixed architecture and returns a
// Model holding them.
func New(conv1, conv2 *tensor.ConvLayer, hidden, output *tensor.DenseLayer, info datastructures.ModelInfo) (*Model, error) {
	// checked in forward-pass order so the first broken layer is reported
	layers := []struct {
		name     string
		missing  bool
		validate func() error
	}{
		{Conv1, conv1 == nil, conv1.Validate},
		{Conv2, conv2 == nil, conv2.Validate},
		{Hidden, hidden == nil, hidden.Validate},
		{Output, output == nil, output.Validate},
	}
	for _, l := range layers {
		if l.missing {
			return nil, fmt.Errorf("layer %q is missing", l.name)
		}
		if err := l.validate(); err != nil {
			return nil, errors.Wrapf(err, "layer %q", l.name)
		}
	}

	if conv1.In != 1 {
		return nil, fmt.Errorf("layer %q takes %d channels, input tiles have 1", Conv1, conv1.In)
	}
	h, w := InputSize-conv1.KH+1, InputSize-conv1.KW+1
	h, w = h/2, w/2
	if conv2.In != conv1.Out {
		return nil, fmt.Errorf("layer %q takes %d channels, %q produces %d", Conv2, conv2.In, Conv1, conv1.Out)
	}
	if h < conv2.KH || w < conv2.KW {
		return nil, fmt.Errorf("layer %q kernel %d×%d exceeds its %d×%d input", Conv2, conv2.KH, conv2.KW, h, w)
	}
	h, w = (h-conv2.KH+1)/2, (w-conv2.KW+1)/2
	if flat := h * w * conv2.Out; hidden.In != flat {
		return nil, fmt.Errorf("layer %q takes %d inputs, flattened features are %d", Hidden, hidden.In, flat)
	}
	if output.In != hidden.Out {
		return nil, fmt.Errorf("layer %q takes %d inputs, %q produces %d", Output, output.In, Hidden, hidden.Out)
	}
	if output.Out != Classes {
		return nil, fmt.Errorf("layer %q produces %d logits, want %d", Output, output.Out, Classes)
	}

	return &Model{
		Info:  info,
		conv:  map[string]*tensor.ConvLayer{Conv1: conv1, Conv2: conv2},
		dense: map[string]*tensor.DenseLayer{Hidden: hidden, Output: output},
	}, nil
}

// Conv returns the named convolutional layer, or nil.
func (m *Model) Conv(name string) *tensor.ConvLayer {
	return m.conv[name]
}

// Dense returns the named dense layer, or nil.
func (m *Model) Dense(name string) *tensor.DenseLayer {
	return m.dense[name]
}

type layerFile struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	KernelShape []int     `json:"kernel_shape"`
	Kernel      []float32 `json:"kernel"`
	Bias        []float32 `json:"bias"`
}

type parameterFile struct {
	ModelInfo datastructures.ModelInfo `json:"model_info"`
	Layers    []layerFile              `json:"layers"`
}

// Parse reads a parameter file. Either every layer is valid and the
// returned Model is complete, or an error is returned.
func Parse(r io.Reader) (*Model, error) {
	var f parameterFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "malformed parameter file")
	}

	conv := make(map[string]*tensor.ConvLayer)
	dense := make(map[string]*tensor.DenseLayer)
	for _, l := range f.Layers {
		if _, dup := conv[l.Name]; dup {
			return nil, fmt.Errorf("layer %q appears twice", l.Name)
		}
		if _, dup := dense[l.Name]; dup {
			return nil, fmt.Errorf("layer %q appears twice", l.Name)
		}

		switch l.Name {
		case Conv1, Conv2:
			if l.Type != typeConv2D {
				return nil, fmt.Errorf("layer %q has type %q, want %q", l.Name, l.Type, typeConv2D)
			}
			if len(l.KernelShape) != 4 {
				return nil, fmt.Errorf("layer %q has kernel_shape %v, want 4 dimensions", l.Name, l.KernelShape)
			}
			conv[l.Name] = &tensor.ConvLayer{
				KH: l.KernelShape[0], KW: l.KernelShape[1],
				In: l.KernelShape[2], Out: l.KernelShape[3],
				Kernel: l.Kernel, Bias: l.Bias,
			}
		case Hidden, Output:
			if l.Type != typeDense {
				return nil, fmt.Errorf("layer %q has type %q, want %q", l.Name, l.Type, typeDense)
			}
			if len(l.KernelShape) != 2 {
				return nil, fmt.Errorf("layer %q has kernel_shape %v, want 2 dimensions", l.Name, l.KernelShape)
			}
			dense[l.Name] = &tensor.DenseLayer{
				In: l.KernelShape[0], Out: l.KernelShape[1],
				Kernel: l.Kernel, Bias: l.Bias,
			}
		default:
			return nil, fmt.Errorf("unknown layer %q", l.Name)
		}
	}

	return New(conv[Conv1], conv[Conv2], dense[Hidden], dense[Output], f.ModelInfo)
}
