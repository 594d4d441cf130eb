// Package model: composed interfaces describing the estimator surface.
// The gradient boosting estimators assert conformance at their
// definition sites.
package model

import "gonum.org/v1/gonum/mat"

// Scorer computes the default goodness-of-fit score on labeled data,
// R² for regressors and accuracy for classifiers.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor is the full surface of a regression estimator.
type Regressor interface {
	Estimator
	Predictor
	Scorer
}

// Classifier is the full surface of a classification estimator. Beyond
// class predictions it exposes per-class probability estimates, one
// column per class in the order of the fitted class labels.
type Classifier interface {
	Estimator
	Predictor
	Scorer

	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter exposes hyperparameters under their scikit-learn
// snake_case names.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter reconfigures hyperparameters from a GetParams-shaped
// map. Unknown names and mistyped values are ignored.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Persistable saves and restores a fitted model through the gob
// helpers in this package.
type Persistable interface {
	Save(path string) error
	Load(path string) error
}
