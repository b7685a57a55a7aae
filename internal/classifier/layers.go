package classifier

import "math"

// layer is a single inference-mode transformation of an activation vector.
type layer interface {
	forward(x []float64) []float64
}

// linear computes W·x + b with W stored row-major as out×in.
type linear struct {
	in, out int
	weight  []float64
	bias    []float64
}

func (l *linear) forward(x []float64) []float64 {
	y := make([]float64, l.out)
	for o := 0; o < l.out; o++ {
		row := l.weight[o*l.in : (o+1)*l.in]
		sum := l.bias[o]
		for i, v := range x {
			sum += row[i] * v
		}
		y[o] = sum
	}
	return y
}

// layerNorm normalizes to zero mean and unit variance, then applies an
// elementwise affine transform.
type layerNorm struct {
	gamma []float64
	beta  []float64
	eps   float64
}

func (n *layerNorm) forward(x []float64) []float64 {
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	var variance float64
	for _, v := range x {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(x))

	inv := 1 / math.Sqrt(variance+n.eps)
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = (v-mean)*inv*n.gamma[i] + n.beta[i]
	}
	return y
}

// geluLayer applies the exact (erf based) GELU activation.
type geluLayer struct{}

func (geluLayer) forward(x []float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = gelu(v)
	}
	return y
}

func gelu(x float64) float64 {
	return 0.5 * x * (1 + math.Erf(x/math.Sqrt2))
}

// residualBlock computes x + fc2(gelu(fc1(norm(x)))). Dropout sits between
// the projections during training and is the identity here.
type residualBlock struct {
	norm *layerNorm
	fc1  *linear
	fc2  *linear
}

func (b *residualBlock) forward(x []float64) []float64 {
	h := b.norm.forward(x)
	h = b.fc1.forward(h)
	for i, v := range h {
		h[i] = gelu(v)
	}
	h = b.fc2.forward(h)
	for i := range h {
		h[i] += x[i]
	}
	return h
}
