// Package loss provides the training objectives minimized by gradient
// boosting. Each objective exposes first and second order derivatives
// with respect to the raw ensemble scores, which the tree grower turns
// into per-bin histograms.
package loss

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/amueller/pygbm/core/parallel"
	pygbmErrors "github.com/amueller/pygbm/pkg/errors"
)

// Loss names accepted by New.
const (
	LeastSquaresName       = "least_squares"
	BinaryCrossEntropyName = "binary_crossentropy"
)

// updateParallelThreshold is the sample count above which derivative
// updates run on all cores.
const updateParallelThreshold = 1024

// Loss is a training objective differentiated with respect to the raw
// ensemble scores.
//
// Gradients and hessians are float32, matching the histogram kernels.
// When ConstantHessian reports true the hessians slice passed to
// UpdateGradientsAndHessians has length one and is left untouched.
type Loss interface {
	// InitialPrediction returns the raw baseline score the ensemble
	// starts boosting from.
	InitialPrediction(y []float64) float64

	// Loss returns the mean objective value of rawPredictions against y.
	Loss(y, rawPredictions []float64) float64

	// UpdateGradientsAndHessians refreshes the per-sample first and
	// second derivatives in place.
	UpdateGradientsAndHessians(gradients, hessians []float32, y, rawPredictions []float64)

	// ConstantHessian reports whether every sample shares the same
	// hessian value, enabling the count based fast path of the grower.
	ConstantHessian() bool

	// Name returns the configuration name of the objective.
	Name() string
}

// New returns the loss registered under name.
func New(name string) (Loss, error) {
	switch name {
	case LeastSquaresName:
		return NewLeastSquares(), nil
	case BinaryCrossEntropyName:
		return NewBinaryCrossEntropy(), nil
	default:
		return nil, pygbmErrors.Newf("unknown loss: %s", name)
	}
}

// LeastSquares is the squared error objective 0.5*(score - y)^2. Its
// hessian is identically one, so trees grown under it weight splits by
// sample counts alone.
type LeastSquares struct{}

// NewLeastSquares returns the squared error objective.
func NewLeastSquares() *LeastSquares {
	return &LeastSquares{}
}

// InitialPrediction returns the mean target, the constant model
// minimizing the squared error.
func (l *LeastSquares) InitialPrediction(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	return stat.Mean(y, nil)
}

// Loss returns the mean halved squared error.
func (l *LeastSquares) Loss(y, rawPredictions []float64) float64 {
	total := 0.0
	for i, target := range y {
		diff := rawPredictions[i] - target
		total += 0.5 * diff * diff
	}
	return total / float64(len(y))
}

// UpdateGradientsAndHessians sets gradients to score - y. The hessians
// slice is not touched.
func (l *LeastSquares) UpdateGradientsAndHessians(gradients, _ []float32, y, rawPredictions []float64) {
	parallel.ParallelizeWithThreshold(len(y), updateParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			gradients[i] = float32(rawPredictions[i] - y[i])
		}
	})
}

// ConstantHessian reports true.
func (l *LeastSquares) ConstantHessian() bool { return true }

// Name returns "least_squares".
func (l *LeastSquares) Name() string { return LeastSquaresName }

// BinaryCrossEntropy is the logistic objective for binary targets in
// {0, 1}. Raw scores are log odds and are mapped to probabilities with
// the sigmoid.
type BinaryCrossEntropy struct{}

// NewBinaryCrossEntropy returns the logistic objective.
func NewBinaryCrossEntropy() *BinaryCrossEntropy {
	return &BinaryCrossEntropy{}
}

// probaEps keeps the class prior away from 0 and 1 so the baseline log
// odds stay finite.
const probaEps = 1e-12

// InitialPrediction returns the log odds of the positive class prior.
func (l *BinaryCrossEntropy) InitialPrediction(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	prior := pygbmErrors.ClipValue(stat.Mean(y, nil), probaEps, 1-probaEps)
	return math.Log(prior / (1 - prior))
}

// Loss returns the mean negative log likelihood
// log(1 + exp(score)) - y*score.
func (l *BinaryCrossEntropy) Loss(y, rawPredictions []float64) float64 {
	total := 0.0
	for i, raw := range rawPredictions {
		total += softplus(raw) - y[i]*raw
	}
	return total / float64(len(y))
}

// UpdateGradientsAndHessians sets gradients to sigmoid(score) - y and
// hessians to sigmoid(score)*(1 - sigmoid(score)).
func (l *BinaryCrossEntropy) UpdateGradientsAndHessians(gradients, hessians []float32, y, rawPredictions []float64) {
	parallel.ParallelizeWithThreshold(len(y), updateParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			sig := sigmoid(rawPredictions[i])
			gradients[i] = float32(sig - y[i])
			hessians[i] = float32(sig * (1 - sig))
		}
	})
}

// ConstantHessian reports false.
func (l *BinaryCrossEntropy) ConstantHessian() bool { return false }

// Name returns "binary_crossentropy".
func (l *BinaryCrossEntropy) Name() string { return BinaryCrossEntropyName }

// Probabilities maps raw log odds scores to positive class
// probabilities.
func (l *BinaryCrossEntropy) Probabilities(rawPredictions []float64) []float64 {
	probas := make([]float64, len(rawPredictions))
	for i, raw := range rawPredictions {
		probas[i] = sigmoid(raw)
	}
	return probas
}

// sigmoid degrades gracefully at the float64 limits: for very negative
// x the exp overflows to +Inf and the quotient collapses to 0.
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// softplus computes log(1 + exp(x)) without overflowing for large x.
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
