package pygbm

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/amueller/pygbm/binning"
	"github.com/amueller/pygbm/grower"
	"github.com/amueller/pygbm/loss"
	pygbmErrors "github.com/amueller/pygbm/pkg/errors"
	"github.com/amueller/pygbm/pkg/log"
	"github.com/amueller/pygbm/predictor"
)

// scoringMonitorSize caps how many training rows are rescored per
// iteration when early stopping is active.
const scoringMonitorSize = 10000

// scoreFunc rates raw ensemble scores against targets. Higher is
// always better, so loss based scores are negated.
type scoreFunc func(yTrue, rawPredictions []float64) float64

// boostingParams carries the hyperparameters shared by the regressor
// and the classifier into the fitting loop.
type boostingParams struct {
	learningRate     float64
	maxIter          int
	maxLeafNodes     int
	maxDepth         int
	minSamplesLeaf   int
	l2Regularization float64
	maxBins          int
	validationSplit  float64
	nIterNoChange    int
	tol              float64
	verbose          bool
	randomState      int64

	// stratify holds the encoded class labels when the validation split
	// must preserve class balance, nil otherwise.
	stratify []float64

	modelName string
}

// boostingResult is the fitted state produced by fitBoosting.
type boostingResult struct {
	mapper           *binning.BinMapper
	baseline         float64
	predictors       []*predictor.TreePredictor
	trainScores      []float64
	validationScores []float64
}

// fitBoosting bins X, then grows one shrunken tree per iteration on the
// gradients and hessians of lossFn, optionally early stopping on a
// held-out validation fraction.
func fitBoosting(X mat.Matrix, y []float64, lossFn loss.Loss, score scoreFunc, p boostingParams) (*boostingResult, error) {
	fitStart := time.Now()
	rows, cols := X.Dims()
	if err := pygbmErrors.CheckMatrix("training data", X, rows, cols, 0); err != nil {
		return nil, err
	}
	if err := pygbmErrors.CheckNumericalStability("training targets", y, 0); err != nil {
		return nil, err
	}
	logger := log.GetLoggerWithName(p.modelName)
	rng := rand.New(rand.NewSource(p.randomState))

	binStart := time.Now()
	mapper := binning.NewBinMapper().WithMaxBins(p.maxBins).WithSeed(p.randomState)
	XBinned, err := mapper.FitTransform(X)
	if err != nil {
		return nil, err
	}
	logger.Debug("Binned training data",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.BinsKey, p.maxBins,
		log.DurationMsKey, millis(time.Since(binStart)))

	doEarlyStopping := p.nIterNoChange > 0

	trainMatrix := XBinned
	trainTargets := y
	var validMatrix *binning.Matrix
	var validTargets []float64
	if doEarlyStopping && p.validationSplit > 0 {
		trainIdx, validIdx, err := splitTrainValidation(rows, p.validationSplit, p.stratify, rng)
		if err != nil {
			return nil, pygbmErrors.NewValueError(p.modelName, err.Error())
		}
		// The grower wants feature-aligned training data, prediction is
		// fastest on row-aligned data.
		trainMatrix = subsetBinned(XBinned, trainIdx, binning.ColumnMajor)
		trainTargets = subsetFloats(y, trainIdx)
		validMatrix = subsetBinned(XBinned, validIdx, binning.RowMajor)
		validTargets = subsetFloats(y, validIdx)
	}
	nTrain := trainMatrix.Rows()

	// Per-iteration train scores are computed on a bounded subsample so
	// monitoring stays cheap on large datasets.
	var monitorMatrix *binning.Matrix
	var monitorTargets []float64
	if doEarlyStopping {
		if nTrain > scoringMonitorSize {
			idx := make([]int, scoringMonitorSize)
			for i := range idx {
				idx[i] = rng.Intn(nTrain)
			}
			monitorMatrix = subsetBinned(trainMatrix, idx, binning.RowMajor)
			monitorTargets = subsetFloats(trainTargets, idx)
		} else {
			monitorMatrix = trainMatrix
			monitorTargets = trainTargets
		}
	}

	baseline := lossFn.InitialPrediction(trainTargets)
	if err := pygbmErrors.CheckScalar("baseline prediction", baseline, 0); err != nil {
		return nil, err
	}
	rawPredictions := make([]float64, nTrain)
	floats.AddConst(baseline, rawPredictions)

	gradients := make([]float32, nTrain)
	hessians := []float32{1}
	if !lossFn.ConstantHessian() {
		hessians = make([]float32, nTrain)
	}

	res := &boostingResult{mapper: mapper, baseline: baseline}
	var monitorRaw, validRaw []float64
	if doEarlyStopping {
		monitorRaw = make([]float64, monitorMatrix.Rows())
		floats.AddConst(baseline, monitorRaw)
		if validMatrix != nil {
			validRaw = make([]float64, validMatrix.Rows())
			floats.AddConst(baseline, validRaw)
		}
	}
	var totalFindSplit, totalApplySplit time.Duration

	for iteration := 0; iteration < p.maxIter; iteration++ {
		iterStart := time.Now()
		lossFn.UpdateGradientsAndHessians(gradients, hessians, trainTargets, rawPredictions)

		opts := []grower.Option{
			grower.WithMaxLeafNodes(p.maxLeafNodes),
			grower.WithMinSamplesLeaf(p.minSamplesLeaf),
			grower.WithMaxBins(p.maxBins),
			grower.WithNBinsPerFeature(mapper.NBinsPerFeature),
			grower.WithL2Regularization(p.l2Regularization),
			grower.WithShrinkage(p.learningRate),
		}
		if p.maxDepth > 0 {
			opts = append(opts, grower.WithMaxDepth(p.maxDepth))
		}
		g, err := grower.NewTreeGrower(trainMatrix, gradients, hessians, opts...)
		if err != nil {
			return nil, err
		}
		if err := g.Grow(); err != nil {
			return nil, err
		}
		totalFindSplit += g.TotalFindSplitTime()
		totalApplySplit += g.TotalApplySplitTime()

		tp, err := g.MakePredictor(mapper.BinThresholds)
		if err != nil {
			return nil, err
		}
		res.predictors = append(res.predictors, tp)

		// Every training row sits in exactly one finalized leaf, so the
		// raw predictions are refreshed leaf by leaf instead of running
		// the predictor over the whole matrix.
		for _, leaf := range g.FinalizedLeaves() {
			for _, idx := range leaf.SampleIndices {
				rawPredictions[idx] += leaf.Value
			}
		}

		if p.verbose {
			logger.Info("Boosting iteration",
				log.IterationKey, iteration+1,
				log.LeavesKey, tp.NLeafNodes(),
				log.TreeDepthKey, tp.MaxDepth(),
				log.DurationMsKey, millis(time.Since(iterStart)))
		}

		if doEarlyStopping {
			floats.Add(monitorRaw, tp.PredictBinned(monitorMatrix))
			res.trainScores = append(res.trainScores, score(monitorTargets, monitorRaw))

			stop := false
			if validMatrix != nil {
				floats.Add(validRaw, tp.PredictBinned(validMatrix))
				res.validationScores = append(res.validationScores, score(validTargets, validRaw))
				stop = shouldStop(res.validationScores, p.nIterNoChange, p.tol)
			} else {
				stop = shouldStop(res.trainScores, p.nIterNoChange, p.tol)
			}
			if stop {
				logger.Debug("Early stopping",
					log.IterationKey, iteration+1,
					log.TreesKey, len(res.predictors))
				break
			}
		}
	}

	logger.Debug("Fitted gradient boosting ensemble",
		log.TreesKey, len(res.predictors),
		log.SamplesKey, nTrain,
		log.FeaturesKey, cols,
		log.LearningRateKey, p.learningRate,
		log.DurationMsKey, millis(time.Since(fitStart)),
		log.FindSplitMsKey, millis(totalFindSplit),
		log.ApplySplitMsKey, millis(totalApplySplit))
	return res, nil
}

// shouldStop reports whether none of the most recent scores improved on
// the score patience+1 iterations ago by more than tol. Scores are
// oriented so that higher is better.
func shouldStop(scores []float64, patience int, tol float64) bool {
	reference := patience + 1
	if len(scores) < reference {
		return false
	}
	referenceScore := scores[len(scores)-reference] + tol
	for _, s := range scores[len(scores)-reference+1:] {
		if s > referenceScore {
			return false
		}
	}
	return true
}

// splitTrainValidation shuffles row indices and carves off a validation
// fraction. When stratify holds class labels both parts keep the class
// proportions of the full data.
func splitTrainValidation(n int, fraction float64, stratify []float64, rng *rand.Rand) (trainIdx, validIdx []int, err error) {
	if stratify == nil {
		perm := rng.Perm(n)
		nValid := int(math.Ceil(fraction * float64(n)))
		if nValid < 1 || n-nValid < 1 {
			return nil, nil, fmt.Errorf(
				"not enough data (n_samples=%d) to perform early stopping with validation_split=%v", n, fraction)
		}
		return perm[nValid:], perm[:nValid], nil
	}

	positive := make([]int, 0, n)
	negative := make([]int, 0, n)
	for i, label := range stratify {
		if label == 1 {
			positive = append(positive, i)
		} else {
			negative = append(negative, i)
		}
	}
	for _, class := range [][]int{negative, positive} {
		class := class
		rng.Shuffle(len(class), func(i, j int) { class[i], class[j] = class[j], class[i] })
		nValid := int(math.Ceil(fraction * float64(len(class))))
		if nValid < 1 || len(class)-nValid < 1 {
			return nil, nil, fmt.Errorf(
				"not enough data (n_samples=%d) to perform a stratified validation_split=%v", n, fraction)
		}
		validIdx = append(validIdx, class[:nValid]...)
		trainIdx = append(trainIdx, class[nValid:]...)
	}
	return trainIdx, validIdx, nil
}

// subsetBinned copies the selected rows of X into a fresh matrix with
// the requested layout.
func subsetBinned(X *binning.Matrix, indices []int, layout binning.Layout) *binning.Matrix {
	cols := X.Cols()
	sub := binning.NewMatrixLayout(len(indices), cols, layout)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			sub.Set(i, j, X.At(idx, j))
		}
	}
	return sub
}

func subsetFloats(values []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = values[idx]
	}
	return out
}

// rawPredict sums the baseline and every tree's real-valued output.
func rawPredict(X mat.Matrix, nFeatures int, baseline float64, predictors []*predictor.TreePredictor, op string) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != nFeatures {
		return nil, pygbmErrors.NewDimensionError(op, nFeatures, cols, 1)
	}
	raw := make([]float64, rows)
	floats.AddConst(baseline, raw)
	for _, tp := range predictors {
		preds, err := tp.Predict(X)
		if err != nil {
			return nil, err
		}
		floats.Add(raw, preds)
	}
	return raw, nil
}

// columnVector checks that y is an n×1 matrix with the expected row
// count and returns its values.
func columnVector(op string, y mat.Matrix, wantRows int) ([]float64, error) {
	rows, cols := y.Dims()
	if rows != wantRows {
		return nil, pygbmErrors.NewDimensionError(op, wantRows, rows, 0)
	}
	if cols != 1 {
		return nil, pygbmErrors.NewDimensionError(op, 1, cols, 1)
	}
	return mat.Col(nil, 0, y), nil
}

// validateBoostingParams rejects hyperparameters the fitting loop
// cannot honor. Tree shape parameters are validated by the grower.
func validateBoostingParams(op string, learningRate float64, maxIter, nIterNoChange int, validationSplit, tol float64) error {
	if learningRate <= 0 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"learning_rate=%v must be strictly positive", learningRate))
	}
	if maxIter < 1 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"max_iter=%d must not be smaller than 1", maxIter))
	}
	if nIterNoChange < 0 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"n_iter_no_change=%d must be positive", nIterNoChange))
	}
	if validationSplit < 0 || validationSplit >= 1 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"validation_split=%v must be in [0, 1), zero disables the split", validationSplit))
	}
	if tol < 0 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"tol=%v must not be smaller than 0", tol))
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
