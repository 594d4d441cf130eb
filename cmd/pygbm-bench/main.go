// pygbm-bench trains a gradient boosting model on .npy data and
// reports fit and predict wall times plus the final training score.
//
// Usage:
//
//	pygbm-bench -x train_X.npy -y train_y.npy -problem regression \
//	    -iters 100 -leaves 31 -bins 256 -lr 0.1
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/amueller/pygbm"
	pygbmErrors "github.com/amueller/pygbm/pkg/errors"
	pygbmLog "github.com/amueller/pygbm/pkg/log"
	"github.com/amueller/pygbm/plotting"
	"github.com/amueller/pygbm/predictor"
	"github.com/sbinet/npyio"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pygbm-bench:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		xPath   = flag.String("x", "", "path to the feature matrix (.npy, n×d float)")
		yPath   = flag.String("y", "", "path to the target vector (.npy, n float)")
		problem = flag.String("problem", "regression", "problem kind, regression or classification")
		iters   = flag.Int("iters", 100, "boosting iterations")
		leaves  = flag.Int("leaves", 31, "maximum leaves per tree")
		bins    = flag.Int("bins", 256, "maximum bins per feature")
		lr      = flag.Float64("lr", 0.1, "learning rate")
		seed    = flag.Int64("seed", 42, "random seed")
		curve   = flag.String("curve", "", "optional output path for a training curve plot")
		tree    = flag.String("tree", "", "optional output path for a PNG of the first tree")
		verbose = flag.Bool("v", false, "log per-iteration progress")
	)
	flag.Parse()

	if *xPath == "" || *yPath == "" {
		flag.Usage()
		return fmt.Errorf("both -x and -y are required")
	}
	if *verbose {
		pygbmLog.SetLevel(pygbmLog.LevelDebug)
	} else {
		pygbmLog.SetLevel(pygbmLog.LevelInfo)
	}

	X, err := loadMatrix(*xPath)
	if err != nil {
		return err
	}
	y, err := loadMatrix(*yPath)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	fmt.Printf("loaded %d samples with %d features\n", rows, cols)

	switch *problem {
	case "regression":
		return benchRegression(X, y, *iters, *leaves, *bins, *lr, *seed, *verbose, *curve, *tree)
	case "classification":
		return benchClassification(X, y, *iters, *leaves, *bins, *lr, *seed, *verbose, *curve, *tree)
	default:
		return fmt.Errorf("unknown problem %q, use regression or classification", *problem)
	}
}

func benchRegression(X, y *mat.Dense, iters, leaves, bins int, lr float64, seed int64, verbose bool, curvePath, treePath string) error {
	model := pygbm.NewGradientBoostingRegressor().
		WithMaxIter(iters).
		WithMaxLeafNodes(leaves).
		WithMaxBins(bins).
		WithLearningRate(lr).
		WithRandomState(seed).
		WithVerbose(verbose)

	fitStart := time.Now()
	if err := model.Fit(X, y); err != nil {
		return err
	}
	fmt.Printf("fitted %d trees in %v\n", model.NIters(), time.Since(fitStart))

	predictStart := time.Now()
	if _, err := model.Predict(X); err != nil {
		return err
	}
	rows, _ := X.Dims()
	fmt.Printf("predicted %d rows in %v\n", rows, time.Since(predictStart))

	score, err := model.Score(X, y)
	if err != nil {
		return err
	}
	fmt.Printf("train R²: %.6f\n", score)

	return writePlots(model.TrainScores, model.ValidationScores, firstTree(model.Predictors), curvePath, treePath)
}

func benchClassification(X, y *mat.Dense, iters, leaves, bins int, lr float64, seed int64, verbose bool, curvePath, treePath string) error {
	model := pygbm.NewGradientBoostingClassifier().
		WithMaxIter(iters).
		WithMaxLeafNodes(leaves).
		WithMaxBins(bins).
		WithLearningRate(lr).
		WithRandomState(seed).
		WithVerbose(verbose)

	fitStart := time.Now()
	if err := model.Fit(X, y); err != nil {
		return err
	}
	fmt.Printf("fitted %d trees in %v\n", model.NIters(), time.Since(fitStart))

	predictStart := time.Now()
	if _, err := model.Predict(X); err != nil {
		return err
	}
	rows, _ := X.Dims()
	fmt.Printf("predicted %d rows in %v\n", rows, time.Since(predictStart))

	score, err := model.Score(X, y)
	if err != nil {
		return err
	}
	fmt.Printf("train accuracy: %.6f\n", score)

	return writePlots(model.TrainScores, model.ValidationScores, firstTree(model.Predictors), curvePath, treePath)
}

func writePlots(trainScores, validationScores []float64, tree *predictor.TreePredictor, curvePath, treePath string) error {
	if curvePath != "" {
		if err := plotting.LossCurve(trainScores, validationScores, curvePath); err != nil {
			return err
		}
		fmt.Printf("wrote training curve to %s\n", curvePath)
	}
	if treePath != "" && tree != nil {
		if err := plotting.SaveTreePNG(tree, nil, treePath); err != nil {
			return err
		}
		fmt.Printf("wrote first tree to %s\n", treePath)
	}
	return nil
}

func firstTree(predictors []*predictor.TreePredictor) *predictor.TreePredictor {
	if len(predictors) == 0 {
		return nil
	}
	return predictors[0]
}

// loadMatrix reads a 1-D or 2-D .npy array as a dense matrix. A 1-D
// array of n values becomes an n×1 column. float32 data is converted
// to float64 with a DataConversionWarning.
func loadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	shape := r.Header.Descr.Shape
	rows, cols := 0, 1
	switch len(shape) {
	case 1:
		rows = shape[0]
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("%s: want a 1-D or 2-D array, got shape %v", path, shape)
	}

	var data []float64
	switch dtype := r.Header.Descr.Type; dtype {
	case "<f8", ">f8", "|f8", "f8":
		if err := r.Read(&data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case "<f4", ">f4", "|f4", "f4":
		var single []float32
		if err := r.Read(&single); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		pygbmErrors.Warn(pygbmErrors.NewDataConversionWarning("float32", "float64",
			fmt.Sprintf("%s holds float32 data", path)))
		data = make([]float64, len(single))
		for i, v := range single {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported dtype %q", path, dtype)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%s: shape %v does not match %d values", path, shape, len(data))
	}

	if r.Header.Descr.Fortran && cols > 1 {
		out := mat.NewDense(rows, cols, nil)
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				out.Set(i, j, data[j*rows+i])
			}
		}
		return out, nil
	}
	return mat.NewDense(rows, cols, data), nil
}
