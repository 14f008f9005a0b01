package classifier

import (
	"context"
	"math"
)

// binary is one label's one-vs-rest classifier. A label that is present in
// every sample or in none collapses to a constant probability.
type binary struct {
	weights   []float64
	intercept float64
	constant  *float64
}

func (b *binary) probability(x sparse) float64 {
	if b.constant != nil {
		return *b.constant
	}
	return sigmoid(x.dot(b.weights) + b.intercept)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

type solverOptions struct {
	c        float64
	maxIter  int
	features int
}

// fitBinary minimises 0.5*||w||^2 + C * sum(logloss) with Nesterov-accelerated
// gradient descent. The intercept is not penalised. Step size is 1/L for the
// Lipschitz bound of l2-normalised rows plus a bias column.
func fitBinary(ctx context.Context, xs []sparse, ys []bool, opts solverOptions) (*binary, error) {
	positives := 0
	for _, y := range ys {
		if y {
			positives++
		}
	}
	if positives == 0 || positives == len(ys) {
		p := 0.0
		if positives > 0 {
			p = 1.0
		}
		return &binary{constant: &p}, nil
	}

	d := opts.features
	n := float64(len(xs))
	step := 1 / (1 + opts.c*n/2)

	w := make([]float64, d)
	var b float64
	prevW := make([]float64, d)
	var prevB float64

	yw := make([]float64, d)
	var yb float64
	grad := make([]float64, d)
	t := 1.0

	for iter := 0; iter < opts.maxIter; iter++ {
		if iter%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		copy(grad, yw)
		var gb float64
		for i, x := range xs {
			target := 0.0
			if ys[i] {
				target = 1
			}
			r := opts.c * (sigmoid(x.dot(yw)+yb) - target)
			for k, j := range x.idx {
				grad[j] += r * x.val[k]
			}
			gb += r
		}

		var gnorm float64
		for _, g := range grad {
			gnorm += g * g
		}
		gnorm += gb * gb
		if gnorm < 1e-12 {
			break
		}

		copy(prevW, w)
		prevB = b
		for j := range w {
			w[j] = yw[j] - step*grad[j]
		}
		b = yb - step*gb

		nextT := (1 + math.Sqrt(1+4*t*t)) / 2
		momentum := (t - 1) / nextT
		for j := range yw {
			yw[j] = w[j] + momentum*(w[j]-prevW[j])
		}
		yb = b + momentum*(b-prevB)
		t = nextT
	}

	return &binary{weights: w, intercept: b}, nil
}
