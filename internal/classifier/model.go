// Package classifier implements forward inference for the hand-sign letter
// network over normalized landmark feature vectors.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/signcheck/internal/landmark"
)

// ErrNonFinite is returned when the network produces NaN or infinite scores.
var ErrNonFinite = errors.New("classifier produced non-finite output")

// Model is an immutable network built from a validated parameter set.
// It holds no mutable state and is safe for concurrent use.
type Model struct {
	version string
	shape   Config
	labels  []string
	layers  []layer
}

// New validates p and builds the inference graph for its topology.
func New(p *Params) (*Model, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil parameters", ErrInvalidParams)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	eps := p.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	m := &Model{
		version: p.Version,
		shape:   Config{Topology: p.Topology, HiddenDim: p.HiddenDim},
		labels:  append([]string(nil), p.Labels...),
	}

	if p.Topology == TopologyMLP {
		m.layers = []layer{
			p.linear("fc1"),
			geluLayer{},
			p.linear("fc2"),
		}
		return m, nil
	}

	m.shape.NumBlocks = p.NumBlocks
	m.shape.Expansion = p.Expansion
	m.layers = append(m.layers,
		p.layerNorm("input_norm", eps),
		p.linear("input_proj"),
		geluLayer{},
	)
	for i := 0; i < p.NumBlocks; i++ {
		prefix := fmt.Sprintf("blocks.%d.", i)
		m.layers = append(m.layers, &residualBlock{
			norm: p.layerNorm(prefix+"norm", eps),
			fc1:  p.linear(prefix + "fc1"),
			fc2:  p.linear(prefix + "fc2"),
		})
	}
	m.layers = append(m.layers,
		p.layerNorm("head_norm", eps),
		p.linear("head"),
	)
	return m, nil
}

func (p *Params) linear(name string) *linear {
	w := p.Tensors[name+".weight"]
	return &linear{
		out:    w.Shape[0],
		in:     w.Shape[1],
		weight: append([]float64(nil), w.Data...),
		bias:   append([]float64(nil), p.Tensors[name+".bias"].Data...),
	}
}

func (p *Params) layerNorm(name string, eps float64) *layerNorm {
	return &layerNorm{
		gamma: append([]float64(nil), p.Tensors[name+".weight"].Data...),
		beta:  append([]float64(nil), p.Tensors[name+".bias"].Data...),
		eps:   eps,
	}
}

// Classify runs the network in evaluation mode and returns one raw score per
// known label.
func (m *Model) Classify(features landmark.FeatureVector) ([]float64, error) {
	x := features[:]
	for _, l := range m.layers {
		x = l.forward(x)
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrNonFinite
		}
	}
	return x, nil
}

// Labels returns the label for each output index.
func (m *Model) Labels() []string {
	return append([]string(nil), m.labels...)
}

// Label returns the label at index i and whether it exists.
func (m *Model) Label(i int) (string, bool) {
	if i < 0 || i >= len(m.labels) {
		return "", false
	}
	return m.labels[i], true
}

// NumClasses returns the output dimension.
func (m *Model) NumClasses() int {
	return len(m.labels)
}

// Version returns the parameter set version.
func (m *Model) Version() string {
	return m.version
}

// Topology returns the network layout.
func (m *Model) Topology() Topology {
	return m.shape.Topology
}

// Shape returns the hyperparameters the model was built with. NumBlocks and
// Expansion are zero for the mlp topology.
func (m *Model) Shape() Config {
	return m.shape
}

// Softmax converts raw scores into a probability distribution.
func Softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// ArgMax returns the index and value of the largest element. Ties resolve to
// the lowest index. It returns -1 for an empty slice.
func ArgMax(values []float64) (int, float64) {
	if len(values) == 0 {
		return -1, 0
	}
	best := 0
	for i, v := range values[1:] {
		if v > values[best] {
			best = i + 1
		}
	}
	return best, values[best]
}
