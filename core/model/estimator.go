package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データの各行に対する予測値を返す
	Predict(X mat.Matrix) ([]float64, error)
}

// Estimator は学習状態を公開する学習器の基本インターフェース
type Estimator interface {
	Fitter

	// IsFitted はモデルが学習済みかどうかを返す
	IsFitted() bool
}
