package pygbm

import (
	"fmt"
	"sort"
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

// GradientBoostingClassifier is a histogram based gradient boosting
// machine for binary classification with a scikit-learn style API.
//
// The two class labels may be any distinct float64 values; they are
// sorted and the larger one becomes the positive class. Trees are
// grown on the gradients of the binary cross entropy, so the raw
// ensemble score is a log odds and PredictProba passes it through the
// sigmoid.
//
// The zero value is not usable, construct with
// NewGradientBoostingClassifier. All fitted state is exported so a
// model survives a gob round trip through Save and Load.
type GradientBoostingClassifier struct {
	*model.StateManager

	// Hyperparameters, mutate before Fit or use the With chainers.
	Loss             string  // Training objective, "binary_crossentropy"
	LearningRate     float64 // Shrinkage applied to every leaf value
	MaxIter          int     // Number of boosting iterations
	MaxLeafNodes     int     // Leaf budget per tree
	MaxDepth         int     // Depth limit per tree, 0 means unlimited
	MinSamplesLeaf   int     // Minimum training samples per leaf
	L2Regularization float64 // Added to the hessian sums in the gain
	MaxBins          int     // Bins used to discretize each feature
	Scoring          string  // Early stopping score, "accuracy" or "loss", "" means "accuracy"
	ValidationSplit  float64 // Held-out fraction scored for early stopping, 0 scores training data
	NIterNoChange    int     // Early stopping patience, 0 disables early stopping
	Tol              float64 // Minimum score gain counted as an improvement
	Verbose          bool    // Log every iteration at Info level
	RandomState      int64   // Seed for binning subsampling and the validation split

	// Fitted state.
	BinMapper          *binning.BinMapper
	Predictors         []*predictor.TreePredictor
	BaselinePrediction float64
	// Classes holds the two original labels in ascending order;
	// Classes[1] is the positive class.
	Classes []float64
	// TrainScores and ValidationScores hold the per-iteration scores
	// recorded while early stopping was active.
	TrainScores      []float64
	ValidationScores []float64
}

var (
	_ model.Classifier      = (*GradientBoostingClassifier)(nil)
	_ model.ParameterGetter = (*GradientBoostingClassifier)(nil)
	_ model.ParameterSetter = (*GradientBoostingClassifier)(nil)
	_ model.Persistable     = (*GradientBoostingClassifier)(nil)
)

// NewGradientBoostingClassifier creates a classifier with the default
// hyperparameters.
func NewGradientBoostingClassifier() *GradientBoostingClassifier {
	return &GradientBoostingClassifier{
		StateManager:    model.NewStateManager(),
		Loss:            loss.BinaryCrossEntropyName,
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
func (gbc *GradientBoostingClassifier) WithLearningRate(rate float64) *GradientBoostingClassifier {
	gbc.LearningRate = rate
	return gbc
}

// WithMaxIter sets the number of boosting iterations.
func (gbc *GradientBoostingClassifier) WithMaxIter(n int) *GradientBoostingClassifier {
	gbc.MaxIter = n
	return gbc
}

// WithMaxLeafNodes sets the leaf budget per tree.
func (gbc *GradientBoostingClassifier) WithMaxLeafNodes(n int) *GradientBoostingClassifier {
	gbc.MaxLeafNodes = n
	return gbc
}

// WithMaxDepth sets the depth limit per tree. Zero means unlimited.
func (gbc *GradientBoostingClassifier) WithMaxDepth(depth int) *GradientBoostingClassifier {
	gbc.MaxDepth = depth
	return gbc
}

// WithMinSamplesLeaf sets the minimum training samples per leaf.
func (gbc *GradientBoostingClassifier) WithMinSamplesLeaf(n int) *GradientBoostingClassifier {
	gbc.MinSamplesLeaf = n
	return gbc
}

// WithL2Regularization sets the hessian regularizer of the split gain.
func (gbc *GradientBoostingClassifier) WithL2Regularization(l2 float64) *GradientBoostingClassifier {
	gbc.L2Regularization = l2
	return gbc
}

// WithMaxBins sets how many bins each feature is discretized into.
func (gbc *GradientBoostingClassifier) WithMaxBins(n int) *GradientBoostingClassifier {
	gbc.MaxBins = n
	return gbc
}

// WithScoring sets the early stopping score, "accuracy" or "loss".
func (gbc *GradientBoostingClassifier) WithScoring(scoring string) *GradientBoostingClassifier {
	gbc.Scoring = scoring
	return gbc
}

// WithValidationSplit sets the held-out fraction used for early
// stopping. Zero scores the training data instead.
func (gbc *GradientBoostingClassifier) WithValidationSplit(fraction float64) *GradientBoostingClassifier {
	gbc.ValidationSplit = fraction
	return gbc
}

// WithEarlyStopping sets the patience in iterations. Zero disables
// early stopping.
func (gbc *GradientBoostingClassifier) WithEarlyStopping(nIterNoChange int) *GradientBoostingClassifier {
	gbc.NIterNoChange = nIterNoChange
	return gbc
}

// WithVerbose enables per-iteration progress logging.
func (gbc *GradientBoostingClassifier) WithVerbose(verbose bool) *GradientBoostingClassifier {
	gbc.Verbose = verbose
	return gbc
}

// WithRandomState sets the seed behind binning subsampling and the
// validation split.
func (gbc *GradientBoostingClassifier) WithRandomState(seed int64) *GradientBoostingClassifier {
	gbc.RandomState = seed
	return gbc
}

// Fit trains the ensemble on X (n samples × n features) and the label
// column vector y (n × 1), which must contain exactly two distinct
// values.
func (gbc *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer pygbmErrors.Recover(&err, "GradientBoostingClassifier.Fit")

	rows, cols := X.Dims()
	labels, err := columnVector("Fit", y, rows)
	if err != nil {
		return err
	}
	classes, encoded, err := encodeClasses(labels)
	if err != nil {
		return err
	}
	if err := validateBoostingParams("GradientBoostingClassifier",
		gbc.LearningRate, gbc.MaxIter, gbc.NIterNoChange, gbc.ValidationSplit, gbc.Tol); err != nil {
		return err
	}
	lossFn, err := gbc.lossFunction()
	if err != nil {
		return err
	}
	score, err := gbc.scoreFunction(lossFn)
	if err != nil {
		return err
	}

	res, err := fitBoosting(X, encoded, lossFn, score, boostingParams{
		learningRate:     gbc.LearningRate,
		maxIter:          gbc.MaxIter,
		maxLeafNodes:     gbc.MaxLeafNodes,
		maxDepth:         gbc.MaxDepth,
		minSamplesLeaf:   gbc.MinSamplesLeaf,
		l2Regularization: gbc.L2Regularization,
		maxBins:          gbc.MaxBins,
		validationSplit:  gbc.ValidationSplit,
		nIterNoChange:    gbc.NIterNoChange,
		tol:              gbc.Tol,
		verbose:          gbc.Verbose,
		randomState:      gbc.RandomState,
		stratify:         encoded,
		modelName:        "pygbm.classifier",
	})
	if err != nil {
		return err
	}

	gbc.BinMapper = res.mapper
	gbc.Predictors = res.predictors
	gbc.BaselinePrediction = res.baseline
	gbc.Classes = classes
	gbc.TrainScores = res.trainScores
	gbc.ValidationScores = res.validationScores
	gbc.SetDimensions(cols, rows)
	gbc.SetFitted()
	return nil
}

// Predict returns the predicted class label of every row of X.
func (gbc *GradientBoostingClassifier) Predict(X mat.Matrix) ([]float64, error) {
	if !gbc.IsFitted() {
		return nil, pygbmErrors.NewNotFittedError("GradientBoostingClassifier", "Predict")
	}
	start := time.Now()
	nFeatures, _ := gbc.GetDimensions()
	raw, err := rawPredict(X, nFeatures, gbc.BaselinePrediction, gbc.Predictors, "Predict")
	if err != nil {
		return nil, err
	}
	labels := make([]float64, len(raw))
	for i, r := range raw {
		labels[i] = gbc.Classes[0]
		if r > 0 {
			labels[i] = gbc.Classes[1]
		}
	}
	log.GetLoggerWithName("pygbm.classifier").Debug("Predicted",
		log.SamplesKey, len(labels),
		log.TreesKey, len(gbc.Predictors),
		log.DurationMsKey, millis(time.Since(start)))
	return labels, nil
}

// PredictProba returns an n × 2 matrix of class probabilities with
// columns ordered like Classes.
func (gbc *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !gbc.IsFitted() {
		return nil, pygbmErrors.NewNotFittedError("GradientBoostingClassifier", "PredictProba")
	}
	nFeatures, _ := gbc.GetDimensions()
	raw, err := rawPredict(X, nFeatures, gbc.BaselinePrediction, gbc.Predictors, "PredictProba")
	if err != nil {
		return nil, err
	}
	positive := loss.NewBinaryCrossEntropy().Probabilities(raw)
	out := mat.NewDense(len(positive), 2, nil)
	for i, p := range positive {
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// DecisionFunction returns the raw log odds score of every row of X.
// Positive scores favor Classes[1].
func (gbc *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if !gbc.IsFitted() {
		return nil, pygbmErrors.NewNotFittedError("GradientBoostingClassifier", "DecisionFunction")
	}
	nFeatures, _ := gbc.GetDimensions()
	return rawPredict(X, nFeatures, gbc.BaselinePrediction, gbc.Predictors, "DecisionFunction")
}

// Score returns the accuracy of the prediction on X against the label
// column vector y.
func (gbc *GradientBoostingClassifier) Score(X, y mat.Matrix) (float64, error) {
	if !gbc.IsFitted() {
		return 0, pygbmErrors.NewNotFittedError("GradientBoostingClassifier", "Score")
	}
	predictions, err := gbc.Predict(X)
	if err != nil {
		return 0, err
	}
	labels, err := columnVector("Score", y, len(predictions))
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(labels, predictions)
}

// NIters returns how many trees the fitted ensemble holds. With early
// stopping this can be smaller than MaxIter.
func (gbc *GradientBoostingClassifier) NIters() int {
	return len(gbc.Predictors)
}

// Save writes the fitted model to path with gob encoding.
func (gbc *GradientBoostingClassifier) Save(path string) error {
	if !gbc.IsFitted() {
		return pygbmErrors.NewNotFittedError("GradientBoostingClassifier", "Save")
	}
	return model.SaveModel(gbc, path)
}

// Load resets the receiver and restores a model previously written by
// Save. The reset matters because gob omits zero-valued fields, which
// would otherwise keep their previous values.
func (gbc *GradientBoostingClassifier) Load(path string) error {
	*gbc = GradientBoostingClassifier{StateManager: model.NewStateManager()}
	return model.LoadModel(gbc, path)
}

// lossFunction resolves the Loss name. The classifier only supports
// binary cross entropy.
func (gbc *GradientBoostingClassifier) lossFunction() (loss.Loss, error) {
	if gbc.Loss != loss.BinaryCrossEntropyName {
		return nil, pygbmErrors.NewValueError("GradientBoostingClassifier", fmt.Sprintf(
			"loss=%q is not supported, accepted losses are %q", gbc.Loss, loss.BinaryCrossEntropyName))
	}
	return loss.New(gbc.Loss)
}

// scoreFunction resolves the Scoring name into a higher-is-better
// score over raw log odds.
func (gbc *GradientBoostingClassifier) scoreFunction(lossFn loss.Loss) (scoreFunc, error) {
	switch gbc.Scoring {
	case "", "accuracy":
		return func(yTrue, rawPredictions []float64) float64 {
			correct := 0
			for i, r := range rawPredictions {
				label := 0.0
				if r > 0 {
					label = 1
				}
				if label == yTrue[i] {
					correct++
				}
			}
			return float64(correct) / float64(len(yTrue))
		}, nil
	case "loss":
		return func(yTrue, rawPredictions []float64) float64 {
			return -lossFn.Loss(yTrue, rawPredictions)
		}, nil
	default:
		return nil, pygbmErrors.NewValueError("GradientBoostingClassifier", fmt.Sprintf(
			"scoring=%q is not supported, use \"accuracy\" or \"loss\"", gbc.Scoring))
	}
}

// encodeClasses maps the two distinct label values onto {0, 1} and
// returns the sorted labels alongside the encoded targets.
func encodeClasses(labels []float64) (classes []float64, encoded []float64, err error) {
	seen := make(map[float64]struct{}, 2)
	for _, v := range labels {
		seen[v] = struct{}{}
	}
	classes = make([]float64, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Float64s(classes)
	if len(classes) != 2 {
		return nil, nil, pygbmErrors.NewValueError("GradientBoostingClassifier", fmt.Sprintf(
			"expected 2 classes in y, got %d", len(classes)))
	}
	encoded = make([]float64, len(labels))
	for i, v := range labels {
		if v == classes[1] {
			encoded[i] = 1
		}
	}
	return classes, encoded, nil
}

// GetParams returns the hyperparameters under their scikit-learn
// parameter names.
func (gbc *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"loss":              gbc.Loss,
		"learning_rate":     gbc.LearningRate,
		"max_iter":          gbc.MaxIter,
		"max_leaf_nodes":    gbc.MaxLeafNodes,
		"max_depth":         gbc.MaxDepth,
		"min_samples_leaf":  gbc.MinSamplesLeaf,
		"l2_regularization": gbc.L2Regularization,
		"max_bins":          gbc.MaxBins,
		"scoring":           gbc.Scoring,
		"validation_split":  gbc.ValidationSplit,
		"n_iter_no_change":  gbc.NIterNoChange,
		"tol":               gbc.Tol,
		"verbose":           gbc.Verbose,
		"random_state":      gbc.RandomState,
	}
}

// SetParams updates hyperparameters from their scikit-learn parameter
// names. Unknown names and mistyped values are ignored.
func (gbc *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "loss":
			if v, ok := value.(string); ok {
				gbc.Loss = v
			}
		case "learning_rate":
			if v, ok := value.(float64); ok {
				gbc.LearningRate = v
			}
		case "max_iter":
			if v, ok := value.(int); ok {
				gbc.MaxIter = v
			}
		case "max_leaf_nodes":
			if v, ok := value.(int); ok {
				gbc.MaxLeafNodes = v
			}
		case "max_depth":
			if v, ok := value.(int); ok {
				gbc.MaxDepth = v
			}
		case "min_samples_leaf":
			if v, ok := value.(int); ok {
				gbc.MinSamplesLeaf = v
			}
		case "l2_regularization":
			if v, ok := value.(float64); ok {
				gbc.L2Regularization = v
			}
		case "max_bins":
			if v, ok := value.(int); ok {
				gbc.MaxBins = v
			}
		case "scoring":
			if v, ok := value.(string); ok {
				gbc.Scoring = v
			}
		case "validation_split":
			if v, ok := value.(float64); ok {
				gbc.ValidationSplit = v
			}
		case "n_iter_no_change":
			if v, ok := value.(int); ok {
				gbc.NIterNoChange = v
			}
		case "tol":
			if v, ok := value.(float64); ok {
				gbc.Tol = v
			}
		case "verbose":
			if v, ok := value.(bool); ok {
				gbc.Verbose = v
			}
		case "random_state":
			switch v := value.(type) {
			case int:
				gbc.RandomState = int64(v)
			case int64:
				gbc.RandomState = v
			}
		}
	}
	return nil
}
