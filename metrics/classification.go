package metrics

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/amueller/pygbm/pkg/errors"
)

// AccuracyScore は正解率（Accuracy）を計算する
func AccuracyScore(yTrue, yPred []float64) (float64, error) {
	// 入力検証
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("AccuracyScore", "empty vector")
	}

	if len(yPred) != n {
		return 0, errors.NewDimensionError("AccuracyScore", n, len(yPred), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}

	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - Accuracy）を計算する
func ClassificationError(yTrue, yPred []float64) (float64, error) {
	acc, err := AccuracyScore(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// logLossEps は確率のクリップに使う下限。log(0)を防ぐ
const logLossEps = 1e-15

// LogLoss は二値分類の対数損失（クロスエントロピー）を計算する。
// 確率は [eps, 1-eps] にクリップされる
func LogLoss(yTrue, yProba []float64) (float64, error) {
	// 入力検証
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("LogLoss", "empty vector")
	}

	if len(yProba) != n {
		return 0, errors.NewDimensionError("LogLoss", n, len(yProba), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		if yTrue[i] != 0 && yTrue[i] != 1 {
			return 0, errors.NewValueError("LogLoss", "labels must be 0 or 1")
		}
		p := errors.ClipValue(yProba[i], logLossEps, 1-logLossEps)
		if yTrue[i] == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}

	return sum / float64(n), nil
}

// AUC はROC曲線下面積（Area Under the ROC Curve）を計算する。
// 片方のクラスしか存在しない場合は警告を発行して0.5を返す
func AUC(yTrue, yScore []float64) (float64, error) {
	// 入力検証
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("AUC", "empty vector")
	}

	if len(yScore) != n {
		return 0, errors.NewDimensionError("AUC", n, len(yScore), 0)
	}

	classes := make([]bool, n)
	nPos := 0
	for i := 0; i < n; i++ {
		switch yTrue[i] {
		case 1:
			classes[i] = true
			nPos++
		case 0:
		default:
			return 0, errors.NewValueError("AUC", "labels must be 0 or 1")
		}
	}

	// 片方のクラスしか無いとROC曲線が定義できない
	if nPos == 0 || nPos == n {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in yTrue", 0.5))
		return 0.5, nil
	}

	// stat.ROC はスコアの昇順ソートを前提とする
	scores := make([]float64, n)
	copy(scores, yScore)
	stat.SortWeightedLabeled(scores, classes, nil)

	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}
