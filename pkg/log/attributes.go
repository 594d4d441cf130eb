// Package log defines standard attribute keys for gradient boosting operations.
//
// This file contains predefined attribute keys that provide consistency across
// all logging operations in pygbm. Using these standard keys enables better
// log analysis, monitoring, and debugging of training runs.
//
// The attributes are organized into categories:
//   - Model and Operation Context
//   - Data Shape and Characteristics
//   - Tree and Binning Statistics
//   - Performance Metrics
//   - Error Context
//
// The keys follow a hierarchical naming convention (e.g., "model.name",
// "data.samples") to enable structured log analysis and filtering.

package log

// Model and Operation Context
// These attributes identify the model type, instance, and operation being performed.
const (
	// ModelNameKey identifies the type of model.
	// Examples: "GradientBoostingRegressor", "TreeGrower", "BinMapper"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is performing the operation.
	// Examples: "binning", "grower", "predictor"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	// Examples: "training", "validation", "inference"
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
// These attributes describe the structure and properties of data being processed.
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// DataTypeKey specifies the type of data being processed.
	// Examples: "float64", "uint8"
	DataTypeKey = "data.type"
)

// Tree and Binning Statistics
// These attributes capture the shape of grown trees and binned data.
const (
	// BinsKey indicates the maximum number of bins used when discretizing.
	BinsKey = "binning.bins"

	// LeavesKey indicates the number of leaves in a grown tree.
	LeavesKey = "tree.leaves"

	// NodesKey indicates the total number of nodes in a grown tree.
	NodesKey = "tree.nodes"

	// TreeDepthKey indicates the maximum depth reached by a grown tree.
	TreeDepthKey = "tree.depth"

	// TreesKey indicates the number of trees in an ensemble.
	TreesKey = "ensemble.trees"
)

// Performance Metrics
// These attributes capture timing, score, and resource usage information.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// FindSplitMsKey records cumulative time spent searching for splits.
	FindSplitMsKey = "perf.find_split_ms"

	// ApplySplitMsKey records cumulative time spent partitioning samples.
	ApplySplitMsKey = "perf.apply_split_ms"

	// LossKey records loss value during training or evaluation.
	LossKey = "metrics.loss"

	// AccuracyKey records model accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// IterationKey records the current boosting iteration.
	IterationKey = "training.iteration"
)

// Hyperparameters and Configuration
// These attributes capture model configuration for reproducibility.
const (
	// LearningRateKey records the shrinkage applied to each tree.
	LearningRateKey = "hyperparams.learning_rate"

	// RegularizationKey records the L2 regularization strength.
	RegularizationKey = "hyperparams.l2_regularization"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error and Warning Context
// These attributes provide additional context for error and warning messages.
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	// Examples: "DIMENSION_MISMATCH", "NOT_FITTED"
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	// Examples: "ValueError", "DimensionError"
	ErrorTypeKey = "error.type"
)

// Standard attribute value constants for common operations.
// Using these constants ensures consistency across the codebase.
const (
	// Standard operations
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	// Standard phases
	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"

	// Standard error codes
	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
)
