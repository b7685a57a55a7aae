package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ayusman/signcheck/internal/landmark"
)

// Topology selects the network layout a parameter set was trained for.
type Topology string

const (
	// TopologyResidual is the layer-normalized residual MLP.
	TopologyResidual Topology = "residual"
	// TopologyMLP is the plain two-layer perceptron.
	TopologyMLP Topology = "mlp"
)

// Defaults matching the published training configuration.
const (
	DefaultHiddenDim = 256
	DefaultNumBlocks = 2
	DefaultExpansion = 2
	DefaultEpsilon   = 1e-5
)

// ErrInvalidParams is returned when a parameter set does not describe a
// usable network.
var ErrInvalidParams = errors.New("invalid classifier parameters")

// Tensor is a dense row-major array with an explicit shape.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Params is the frozen, versioned parameter set produced by offline training.
// Tensor names follow the training framework's state dict, e.g.
// "blocks.0.fc1.weight".
type Params struct {
	Version   string            `json:"version"`
	Topology  Topology          `json:"topology"`
	InputDim  int               `json:"input_dim"`
	HiddenDim int               `json:"hidden_dim"`
	NumBlocks int               `json:"num_blocks"`
	Expansion int               `json:"expansion"`
	Epsilon   float64           `json:"epsilon"`
	Labels    []string          `json:"labels"`
	Tensors   map[string]Tensor `json:"tensors"`
}

// Load reads a JSON parameter file and builds a Model from it.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parameters: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a JSON parameter document from r and builds a Model from it.
func Decode(r io.Reader) (*Model, error) {
	var p Params
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	return New(&p)
}

// Encode writes p as JSON to w.
func (p *Params) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(p)
}

// Save writes p as JSON to path.
func (p *Params) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parameters file: %w", err)
	}
	if err := p.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode parameters: %w", err)
	}
	return f.Close()
}

// tensorSpec names a tensor and its required shape.
type tensorSpec struct {
	name  string
	shape []int
}

// specs returns every tensor the topology requires, in layer order.
func (p *Params) specs() []tensorSpec {
	in, h, c := p.InputDim, p.HiddenDim, len(p.Labels)

	if p.Topology == TopologyMLP {
		return []tensorSpec{
			{"fc1.weight", []int{h, in}},
			{"fc1.bias", []int{h}},
			{"fc2.weight", []int{c, h}},
			{"fc2.bias", []int{c}},
		}
	}

	specs := []tensorSpec{
		{"input_norm.weight", []int{in}},
		{"input_norm.bias", []int{in}},
		{"input_proj.weight", []int{h, in}},
		{"input_proj.bias", []int{h}},
	}
	e := h * p.Expansion
	for i := 0; i < p.NumBlocks; i++ {
		prefix := fmt.Sprintf("blocks.%d.", i)
		specs = append(specs,
			tensorSpec{prefix + "norm.weight", []int{h}},
			tensorSpec{prefix + "norm.bias", []int{h}},
			tensorSpec{prefix + "fc1.weight", []int{e, h}},
			tensorSpec{prefix + "fc1.bias", []int{e}},
			tensorSpec{prefix + "fc2.weight", []int{h, e}},
			tensorSpec{prefix + "fc2.bias", []int{h}},
		)
	}
	return append(specs,
		tensorSpec{"head_norm.weight", []int{h}},
		tensorSpec{"head_norm.bias", []int{h}},
		tensorSpec{"head.weight", []int{c, h}},
		tensorSpec{"head.bias", []int{c}},
	)
}

// Validate checks the hyperparameters and every tensor shape.
func (p *Params) Validate() error {
	switch p.Topology {
	case TopologyResidual, TopologyMLP:
	default:
		return fmt.Errorf("%w: unknown topology %q", ErrInvalidParams, p.Topology)
	}
	if p.InputDim != landmark.FeatureDim {
		return fmt.Errorf("%w: input_dim must be %d, got %d", ErrInvalidParams, landmark.FeatureDim, p.InputDim)
	}
	if p.HiddenDim <= 0 {
		return fmt.Errorf("%w: hidden_dim must be positive", ErrInvalidParams)
	}
	if p.Topology == TopologyResidual {
		if p.NumBlocks < 0 {
			return fmt.Errorf("%w: num_blocks must not be negative", ErrInvalidParams)
		}
		if p.Expansion < 1 {
			return fmt.Errorf("%w: expansion must be at least 1", ErrInvalidParams)
		}
	}
	if len(p.Labels) == 0 {
		return fmt.Errorf("%w: no labels", ErrInvalidParams)
	}

	for _, spec := range p.specs() {
		t, ok := p.Tensors[spec.name]
		if !ok {
			return fmt.Errorf("%w: missing tensor %s", ErrInvalidParams, spec.name)
		}
		if !sameShape(t.Shape, spec.shape) {
			return fmt.Errorf("%w: tensor %s has shape %v, want %v", ErrInvalidParams, spec.name, t.Shape, spec.shape)
		}
		if len(t.Data) != numel(spec.shape) {
			return fmt.Errorf("%w: tensor %s has %d values, want %d", ErrInvalidParams, spec.name, len(t.Data), numel(spec.shape))
		}
		for _, v := range t.Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: tensor %s contains non-finite values", ErrInvalidParams, spec.name)
			}
		}
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
