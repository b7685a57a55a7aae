package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/ayusman/signcheck/internal/landmark"
)

// Config holds the shape hyperparameters of a network.
type Config struct {
	Topology  Topology
	HiddenDim int
	NumBlocks int
	Expansion int
}

// DefaultConfig returns the residual topology used by the published model.
func DefaultConfig() Config {
	return Config{
		Topology:  TopologyResidual,
		HiddenDim: DefaultHiddenDim,
		NumBlocks: DefaultNumBlocks,
		Expansion: DefaultExpansion,
	}
}

// Letters returns the static ASL alphabet used by the published model.
// J and Z involve motion and are not part of it.
func Letters() []string {
	var out []string
	for c := 'A'; c <= 'Z'; c++ {
		if c == 'J' || c == 'Z' {
			continue
		}
		out = append(out, string(c))
	}
	return out
}

// NewRandom builds a parameter set with uniformly initialized weights from a
// fixed seed. The same inputs always produce the same parameters. It is
// meant for development and tests; real parameters come from training.
func NewRandom(cfg Config, labels []string, seed uint64) *Params {
	if cfg.Topology == "" {
		cfg.Topology = TopologyResidual
	}
	if cfg.HiddenDim <= 0 {
		cfg.HiddenDim = DefaultHiddenDim
	}
	if cfg.Expansion <= 0 {
		cfg.Expansion = DefaultExpansion
	}

	p := &Params{
		Version:   fmt.Sprintf("random-%d", seed),
		Topology:  cfg.Topology,
		InputDim:  landmark.FeatureDim,
		HiddenDim: cfg.HiddenDim,
		NumBlocks: cfg.NumBlocks,
		Expansion: cfg.Expansion,
		Epsilon:   DefaultEpsilon,
		Labels:    append([]string(nil), labels...),
		Tensors:   make(map[string]Tensor),
	}
	if p.Topology == TopologyMLP {
		p.NumBlocks = 0
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for _, spec := range p.specs() {
		data := make([]float64, numel(spec.shape))
		switch {
		case len(spec.shape) == 2:
			// Kaiming-uniform style bound used by linear layers.
			bound := 1 / math.Sqrt(float64(spec.shape[1]))
			for i := range data {
				data[i] = (rng.Float64()*2 - 1) * bound
			}
		case isNormWeight(spec.name):
			for i := range data {
				data[i] = 1
			}
		}
		p.Tensors[spec.name] = Tensor{Shape: append([]int(nil), spec.shape...), Data: data}
	}
	return p
}

func isNormWeight(name string) bool {
	return strings.HasSuffix(name, "norm.weight")
}
