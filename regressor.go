package pygbm

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/amueller/pygbm/binning"
	"github.com/amueller/pygbm/core/model"
	"github.com/amueller/pygbm/loss"
	"github.com/amueller/pygbm/metrics"
	pygbmErrors "github.com/amueller/pygbm/pkg/errors"
	"github.com/amueller/pygbm/pkg/log"
	"github.com/amueller/pygbm/predictor"
)

// GradientBoostingRegressor is a histogram based gradient boosting
// machine for regression with a scikit-learn style API.
//
// Training bins the features into at most MaxBins integer bins, then
// grows MaxIter regression trees on the gradients of the training
// objective, shrinking each tree's leaves by LearningRate. With
// NIterNoChange > 0 training stops early once the score stops
// improving; ValidationSplit controls whether that score is computed
// on held-out data.
//
// The zero value is not usable, construct with
// NewGradientBoostingRegressor. All fitted state is exported so a
// model survives a gob round trip through Save and Load.
type GradientBoostingRegressor struct {
	*model.StateManager

	// Hyperparameters, mutate before Fit or use the With chainers.
	Loss             string  // Training objective, "least_squares"
	LearningRate     float64 // Shrinkage applied to every leaf value
	MaxIter          int     // Number of boosting iterations
	MaxLeafNodes     int     // Leaf budget per tree
	MaxDepth         int     // Depth limit per tree, 0 means unlimited
	MinSamplesLeaf   int     // Minimum training samples per leaf
	L2Regularization float64 // Added to the hessian sums in the gain
	MaxBins          int     // Bins used to discretize each feature
	Scoring          string  // Early stopping score, "r2" or "loss", "" means "r2"
	ValidationSplit  float64 // Held-out fraction scored for early stopping, 0 scores training data
	NIterNoChange    int     // Early stopping patience, 0 disables early stopping
	Tol              float64 // Minimum score gain counted as an improvement
	Verbose          bool    // Log every iteration at Info level
	RandomState      int64   // Seed for binning subsampling and the validation split

	// Fitted state.
	BinMapper          *binning.BinMapper
	Predictors         []*predictor.TreePredictor
	BaselinePrediction float64
	// TrainScores and ValidationScores hold the per-iteration scores
	// recorded while early stopping was active.
	TrainScores      []float64
	ValidationScores []float64
}

var (
	_ model.Regressor       = (*GradientBoostingRegressor)(nil)
	_ model.ParameterGetter = (*GradientBoostingRegressor)(nil)
	_ model.ParameterSetter = (*GradientBoostingRegressor)(nil)
	_ model.Persistable     = (*GradientBoostingRegressor)(nil)
)

// NewGradientBoostingRegressor creates a regressor with the default
// hyperparameters.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		StateManager:    model.NewStateManager(),
		Loss:            loss.LeastSquaresName,
		LearningRate:    0.1,
		MaxIter:         100,
		MaxLeafNodes:    31,
		MinSamplesLeaf:  20,
		MaxBins:         256,
		ValidationSplit: 0.1,
		NIterNoChange:   5,
		Tol:             1e-7,
		RandomState:     42,
	}
}

// WithLearningRate sets the shrinkage factor.
func (gbr *GradientBoostingRegressor) WithLearningRate(rate float64) *GradientBoostingRegressor {
	gbr.LearningRate = rate
	return gbr
}

// WithMaxIter sets the number of boosting iterations.
func (gbr *GradientBoostingRegressor) WithMaxIter(n int) *GradientBoostingRegressor {
	gbr.MaxIter = n
	return gbr
}

// WithMaxLeafNodes sets the leaf budget per tree.
func (gbr *GradientBoostingRegressor) WithMaxLeafNodes(n int) *GradientBoostingRegressor {
	gbr.MaxLeafNodes = n
	return gbr
}

// WithMaxDepth sets the depth limit per tree. Zero means unlimited.
func (gbr *GradientBoostingRegressor) WithMaxDepth(depth int) *GradientBoostingRegressor {
	gbr.MaxDepth = depth
	return gbr
}

// WithMinSamplesLeaf sets the minimum training samples per leaf.
func (gbr *GradientBoostingRegressor) WithMinSamplesLeaf(n int) *GradientBoostingRegressor {
	gbr.MinSamplesLeaf = n
	return gbr
}

// WithL2Regularization sets the hessian regularizer of the split gain.
func (gbr *GradientBoostingRegressor) WithL2Regularization(l2 float64) *GradientBoostingRegressor {
	gbr.L2Regularization = l2
	return gbr
}

// WithMaxBins sets how many bins each feature is discretized into.
func (gbr *GradientBoostingRegressor) WithMaxBins(n int) *GradientBoostingRegressor {
	gbr.MaxBins = n
	return gbr
}

// WithScoring sets the early stopping score, "r2" or "loss".
func (gbr *GradientBoostingRegressor) WithScoring(scoring string) *GradientBoostingRegressor {
	gbr.Scoring = scoring
	return gbr
}

// WithValidationSplit sets the held-out fraction used for early
// stopping. Zero scores the training data instead.
func (gbr *GradientBoostingRegressor) WithValidationSplit(fraction float64) *GradientBoostingRegressor {
	gbr.ValidationSplit = fraction
	return gbr
}

// WithEarlyStopping sets the patience in iterations. Zero disables
// early stopping.
func (gbr *GradientBoostingRegressor) WithEarlyStopping(nIterNoChange int) *GradientBoostingRegressor {
	gbr.NIterNoChange = nIterNoChange
	return gbr
}

// WithVerbose enables per-iteration progress logging.
func (gbr *GradientBoostingRegressor) WithVerbose(verbose bool) *GradientBoostingRegressor {
	gbr.Verbose = verbose
	return gbr
}

// WithRandomState sets the seed behind binning subsampling and the
// validation split.
func (gbr *GradientBoostingRegressor) WithRandomState(seed int64) *GradientBoostingRegressor {
	gbr.RandomState = seed
	return gbr
}

// Fit trains the ensemble on X (n samples × n features) and the target
// column vector y (n × 1).
func (gbr *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer pygbmErrors.Recover(&err, "GradientBoostingRegressor.Fit")

	rows, cols := X.Dims()
	targets, err := columnVector("Fit", y, rows)
	if err != nil {
		return err
	}
	if err := validateBoostingParams("GradientBoostingRegressor",
		gbr.LearningRate, gbr.MaxIter, gbr.NIterNoChange, gbr.ValidationSplit, gbr.Tol); err != nil {
		return err
	}
	lossFn, err := gbr.lossFunction()
	if err != nil {
		return err
	}
	score, err := gbr.scoreFunction(lossFn)
	if err != nil {
		return err
	}

	res, err := fitBoosting(X, targets, lossFn, score, boostingParams{
		learningRate:     gbr.LearningRate,
		maxIter:          gbr.MaxIter,
		maxLeafNodes:     gbr.MaxLeafNodes,
		maxDepth:         gbr.MaxDepth,
		minSamplesLeaf:   gbr.MinSamplesLeaf,
		l2Regularization: gbr.L2Regularization,
		maxBins:          gbr.MaxBins,
		validationSplit:  gbr.ValidationSplit,
		nIterNoChange:    gbr.NIterNoChange,
		tol:              gbr.Tol,
		verbose:          gbr.Verbose,
		randomState:      gbr.RandomState,
		modelName:        "pygbm.regressor",
	})
	if err != nil {
		return err
	}

	gbr.BinMapper = res.mapper
	gbr.Predictors = res.predictors
	gbr.BaselinePrediction = res.baseline
	gbr.TrainScores = res.trainScores
	gbr.ValidationScores = res.validationScores
	gbr.SetDimensions(cols, rows)
	gbr.SetFitted()
	return nil
}

// Predict returns the predicted value of every row of X.
func (gbr *GradientBoostingRegressor) Predict(X mat.Matrix) ([]float64, error) {
	if !gbr.IsFitted() {
		return nil, pygbmErrors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	start := time.Now()
	nFeatures, _ := gbr.GetDimensions()
	out, err := rawPredict(X, nFeatures, gbr.BaselinePrediction, gbr.Predictors, "Predict")
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("pygbm.regressor").Debug("Predicted",
		log.SamplesKey, len(out),
		log.TreesKey, len(gbr.Predictors),
		log.DurationMsKey, millis(time.Since(start)))
	return out, nil
}

// DecisionFunction returns the raw ensemble score of every row of X.
// For regression this is identical to Predict.
func (gbr *GradientBoostingRegressor) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if !gbr.IsFitted() {
		return nil, pygbmErrors.NewNotFittedError("GradientBoostingRegressor", "DecisionFunction")
	}
	nFeatures, _ := gbr.GetDimensions()
	return rawPredict(X, nFeatures, gbr.BaselinePrediction, gbr.Predictors, "DecisionFunction")
}

// Score returns the coefficient of determination R² of the prediction
// on X against the target column vector y.
func (gbr *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	if !gbr.IsFitted() {
		return 0, pygbmErrors.NewNotFittedError("GradientBoostingRegressor", "Score")
	}
	predictions, err := gbr.Predict(X)
	if err != nil {
		return 0, err
	}
	targets, err := columnVector("Score", y, len(predictions))
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(targets, predictions)
}

// NIters returns how many trees the fitted ensemble holds. With early
// stopping this can be smaller than MaxIter.
func (gbr *GradientBoostingRegressor) NIters() int {
	return len(gbr.Predictors)
}

// Save writes the fitted model to path with gob encoding.
func (gbr *GradientBoostingRegressor) Save(path string) error {
	if !gbr.IsFitted() {
		return pygbmErrors.NewNotFittedError("GradientBoostingRegressor", "Save")
	}
	return model.SaveModel(gbr, path)
}

// Load resets the receiver and restores a model previously written by
// Save. The reset matters because gob omits zero-valued fields, which
// would otherwise keep their previous values.
func (gbr *GradientBoostingRegressor) Load(path string) error {
	*gbr = GradientBoostingRegressor{StateManager: model.NewStateManager()}
	return model.LoadModel(gbr, path)
}

// lossFunction resolves the Loss name. The regressor only supports
// least squares.
func (gbr *GradientBoostingRegressor) lossFunction() (loss.Loss, error) {
	if gbr.Loss != loss.LeastSquaresName {
		return nil, pygbmErrors.NewValueError("GradientBoostingRegressor", fmt.Sprintf(
			"loss=%q is not supported, accepted losses are %q", gbr.Loss, loss.LeastSquaresName))
	}
	return loss.New(gbr.Loss)
}

// scoreFunction resolves the Scoring name into a higher-is-better
// score over raw predictions.
func (gbr *GradientBoostingRegressor) scoreFunction(lossFn loss.Loss) (scoreFunc, error) {
	switch gbr.Scoring {
	case "", "r2":
		return func(yTrue, rawPredictions []float64) float64 {
			score, _ := metrics.R2Score(yTrue, rawPredictions)
			return score
		}, nil
	case "loss":
		return func(yTrue, rawPredictions []float64) float64 {
			return -lossFn.Loss(yTrue, rawPredictions)
		}, nil
	default:
		return nil, pygbmErrors.NewValueError("GradientBoostingRegressor", fmt.Sprintf(
			"scoring=%q is not supported, use \"r2\" or \"loss\"", gbr.Scoring))
	}
}

// GetParams returns the hyperparameters under their scikit-learn
// parameter names.
func (gbr *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"loss":              gbr.Loss,
		"learning_rate":     gbr.LearningRate,
		"max_iter":          gbr.MaxIter,
		"max_leaf_nodes":    gbr.MaxLeafNodes,
		"max_depth":         gbr.MaxDepth,
		"min_samples_leaf":  gbr.MinSamplesLeaf,
		"l2_regularization": gbr.L2Regularization,
		"max_bins":          gbr.MaxBins,
		"scoring":           gbr.Scoring,
		"validation_split":  gbr.ValidationSplit,
		"n_iter_no_change":  gbr.NIterNoChange,
		"tol":               gbr.Tol,
		"verbose":           gbr.Verbose,
		"random_state":      gbr.RandomState,
	}
}

// SetParams updates hyperparameters from their scikit-learn parameter
// names. Unknown names and mistyped values are ignored.
func (gbr *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "loss":
			if v, ok := value.(string); ok {
				gbr.Loss = v
			}
		case "learning_rate":
			if v, ok := value.(float64); ok {
				gbr.LearningRate = v
			}
		case "max_iter":
			if v, ok := value.(int); ok {
				gbr.MaxIter = v
			}
		case "max_leaf_nodes":
			if v, ok := value.(int); ok {
				gbr.MaxLeafNodes = v
			}
		case "max_depth":
			if v, ok := value.(int); ok {
				gbr.MaxDepth = v
			}
		case "min_samples_leaf":
			if v, ok := value.(int); ok {
				gbr.MinSamplesLeaf = v
			}
		case "l2_regularization":
			if v, ok := value.(float64); ok {
				gbr.L2Regularization = v
			}
		case "max_bins":
			if v, ok := value.(int); ok {
				gbr.MaxBins = v
			}
		case "scoring":
			if v, ok := value.(string); ok {
				gbr.Scoring = v
			}
		case "validation_split":
			if v, ok := value.(float64); ok {
				gbr.ValidationSplit = v
			}
		case "n_iter_no_change":
			if v, ok := value.(int); ok {
				gbr.NIterNoChange = v
			}
		case "tol":
			if v, ok := value.(float64); ok {
				gbr.Tol = v
			}
		case "verbose":
			if v, ok := value.(bool); ok {
				gbr.Verbose = v
			}
		case "random_state":
			switch v := value.(type) {
			case int:
				gbr.RandomState = int64(v)
			case int64:
				gbr.RandomState = v
			}
		}
	}
	return nil
}
