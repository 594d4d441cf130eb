// Package pygbm implements histogram based gradient boosting machines
// with a scikit-learn-like API.
//
// Features are first discretized into at most 256 integer bins, so the
// tree grower scans compact gradient histograms instead of sorted
// feature values. Trees are grown best-first up to a leaf budget, the
// histogram of one child is derived from its parent and sibling by
// subtraction, and prediction walks flat node arrays that also accept
// raw, unbinned inputs.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/amueller/pygbm"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
//	    y := mat.NewDense(6, 1, []float64{2, 4, 6, 8, 10, 12})
//
//	    model := pygbm.NewGradientBoostingRegressor().
//	        WithMaxIter(10).
//	        WithMinSamplesLeaf(1)
//	    if err := model.Fit(X, y); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    predictions, err := model.Predict(mat.NewDense(2, 1, []float64{2.5, 5.5}))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("Predictions:", predictions)
//	}
//
// # Packages
//
//   - binning: feature discretization into uint8 bins
//   - grower: best-first tree growth over gradient histograms
//   - predictor: flattened trees for binned and raw inference
//   - loss: training objectives and their derivatives
//   - metrics: evaluation metrics (R², MSE, accuracy, AUC, log loss)
//   - plotting: tree graphs and training curve rendering
//   - core/parallel: parallel processing utilities
//   - core/model: fitted-state management and gob persistence
//   - pkg/errors: typed errors, warnings and numerical guards
//   - pkg/log: structured logging for training and inference
//
// Estimators in this package train with early stopping by default;
// set NIterNoChange to 0 to always run MaxIter iterations. Fitted
// models serialize with Save and Load.
package pygbm
