package pygbm

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// stepData builds a one-feature dataset whose target steps from low to
// high at x = 0.5. Feature values repeat so every distinct value gets
// its own bin and no bin straddles the step.
func stepData(n, distinct int, low, high float64) (X, y *mat.Dense) {
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i%distinct) / float64(distinct)
		ys[i] = low
		if xs[i] >= 0.5 {
			ys[i] = high
		}
	}
	return mat.NewDense(n, 1, xs), mat.NewDense(n, 1, ys)
}

func TestGradientBoostingRegressorFit(t *testing.T) {
	// Ten copies per distinct value, so the validation holdout cannot
	// empty the bins next to the step.
	X, y := stepData(500, 50, 1, 3)

	gbr := NewGradientBoostingRegressor()
	if err := gbr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !gbr.IsFitted() {
		t.Fatal("model not marked fitted after Fit")
	}
	nFeatures, nSamples := gbr.GetDimensions()
	if nFeatures != 1 || nSamples != 500 {
		t.Errorf("GetDimensions() = (%d, %d), want (1, 500)", nFeatures, nSamples)
	}
	if gbr.NIters() < 1 || gbr.NIters() > gbr.MaxIter {
		t.Errorf("NIters() = %d, want between 1 and %d", gbr.NIters(), gbr.MaxIter)
	}
	if len(gbr.TrainScores) != gbr.NIters() {
		t.Errorf("len(TrainScores) = %d, want %d", len(gbr.TrainScores), gbr.NIters())
	}
	if len(gbr.ValidationScores) != gbr.NIters() {
		t.Errorf("len(ValidationScores) = %d, want %d", len(gbr.ValidationScores), gbr.NIters())
	}

	score, err := gbr.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score < 0.99 {
		t.Errorf("R² = %f, want at least 0.99", score)
	}

	predictions, err := gbr.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i, pred := range predictions {
		want := y.At(i, 0)
		if math.Abs(pred-want) > 0.05 {
			t.Fatalf("prediction[%d] = %f, want %f within 0.05", i, pred, want)
		}
	}
}

func TestRegressorDecisionFunctionMatchesPredict(t *testing.T) {
	X, y := stepData(200, 100, -2, 2)
	gbr := NewGradientBoostingRegressor().WithMaxIter(20)
	if err := gbr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	predictions, err := gbr.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	raw, err := gbr.DecisionFunction(X)
	if err != nil {
		t.Fatalf("DecisionFunction failed: %v", err)
	}
	for i := range predictions {
		if predictions[i] != raw[i] {
			t.Fatalf("Predict[%d] = %v but DecisionFunction[%d] = %v", i, predictions[i], i, raw[i])
		}
	}
}

func TestRegressorDeterminism(t *testing.T) {
	X, y := stepData(300, 150, 0, 5)

	fit := func() []float64 {
		gbr := NewGradientBoostingRegressor().WithMaxIter(15).WithRandomState(7)
		if err := gbr.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		predictions, err := gbr.Predict(X)
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		return predictions
	}

	first := fit()
	second := fit()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("prediction[%d] differs between identical fits: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestRegressorWithoutEarlyStopping(t *testing.T) {
	X, y := stepData(200, 100, 1, 3)

	gbr := NewGradientBoostingRegressor().WithMaxIter(8).WithEarlyStopping(0)
	if err := gbr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if gbr.NIters() != 8 {
		t.Errorf("NIters() = %d, want all 8 iterations without early stopping", gbr.NIters())
	}
	if len(gbr.TrainScores) != 0 || len(gbr.ValidationScores) != 0 {
		t.Errorf("scores recorded without early stopping: %d train, %d validation",
			len(gbr.TrainScores), len(gbr.ValidationScores))
	}
}

func TestRegressorEarlyStoppingOnTrainingScores(t *testing.T) {
	X, y := stepData(200, 100, 1, 3)

	gbr := NewGradientBoostingRegressor().WithValidationSplit(0)
	if err := gbr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if len(gbr.TrainScores) == 0 {
		t.Error("expected train scores when early stopping runs without a validation split")
	}
	if len(gbr.ValidationScores) != 0 {
		t.Errorf("got %d validation scores without a validation split", len(gbr.ValidationScores))
	}
}

func TestRegressorScoringLoss(t *testing.T) {
	X, y := stepData(200, 100, 1, 3)

	gbr := NewGradientBoostingRegressor().WithScoring("loss")
	if err := gbr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	for i, s := range gbr.TrainScores {
		if s > 1e-12 {
			t.Fatalf("TrainScores[%d] = %v, negated loss must not be positive", i, s)
		}
	}
	if last, first := gbr.TrainScores[len(gbr.TrainScores)-1], gbr.TrainScores[0]; last < first {
		t.Errorf("training score got worse: first %v, last %v", first, last)
	}
}

func TestRegressorParameterValidation(t *testing.T) {
	X, y := stepData(100, 50, 1, 3)

	tests := []struct {
		name     string
		mutate   func(*GradientBoostingRegressor)
		fragment string
	}{
		{
			"zero learning rate",
			func(g *GradientBoostingRegressor) { g.LearningRate = 0 },
			"learning_rate=0 must be strictly positive",
		},
		{
			"negative learning rate",
			func(g *GradientBoostingRegressor) { g.LearningRate = -1 },
			"must be strictly positive",
		},
		{
			"zero max iter",
			func(g *GradientBoostingRegressor) { g.MaxIter = 0 },
			"max_iter=0 must not be smaller than 1",
		},
		{
			"negative patience",
			func(g *GradientBoostingRegressor) { g.NIterNoChange = -1 },
			"n_iter_no_change=-1 must be positive",
		},
		{
			"validation split of one",
			func(g *GradientBoostingRegressor) { g.ValidationSplit = 1 },
			"validation_split=1 must be in [0, 1)",
		},
		{
			"negative validation split",
			func(g *GradientBoostingRegressor) { g.ValidationSplit = -0.1 },
			"validation_split=-0.1 must be in [0, 1)",
		},
		{
			"negative tol",
			func(g *GradientBoostingRegressor) { g.Tol = -1 },
			"tol=-1 must not be smaller than 0",
		},
		{
			"unknown loss",
			func(g *GradientBoostingRegressor) { g.Loss = "poisson" },
			`loss="poisson" is not supported`,
		},
		{
			"unknown scoring",
			func(g *GradientBoostingRegressor) { g.Scoring = "mse" },
			`scoring="mse" is not supported`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gbr := NewGradientBoostingRegressor()
			tt.mutate(gbr)
			err := gbr.Fit(X, y)
			if err == nil {
				t.Fatal("expected Fit to fail")
			}
			if !strings.Contains(err.Error(), tt.fragment) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.fragment)
			}
			if gbr.IsFitted() {
				t.Error("model marked fitted after failed Fit")
			}
		})
	}
}

func TestRegressorRejectsNonFiniteTargets(t *testing.T) {
	X, y := stepData(100, 50, 1, 3)
	y.Set(17, 0, math.NaN())

	gbr := NewGradientBoostingRegressor()
	err := gbr.Fit(X, y)
	if err == nil {
		t.Fatal("expected Fit to fail on a NaN target")
	}
	if !strings.Contains(err.Error(), "numerical instability") {
		t.Errorf("error %q does not mention numerical instability", err.Error())
	}
	if gbr.IsFitted() {
		t.Error("model marked fitted after failed Fit")
	}
}

func TestRegressorDimensionErrors(t *testing.T) {
	X, y := stepData(100, 50, 1, 3)

	t.Run("row count mismatch", func(t *testing.T) {
		gbr := NewGradientBoostingRegressor()
		short := mat.NewDense(50, 1, nil)
		err := gbr.Fit(X, short)
		if err == nil || !strings.Contains(err.Error(), "dimension mismatch") {
			t.Errorf("expected a dimension mismatch error, got %v", err)
		}
	})

	t.Run("y not a column vector", func(t *testing.T) {
		gbr := NewGradientBoostingRegressor()
		wide := mat.NewDense(100, 2, nil)
		err := gbr.Fit(X, wide)
		if err == nil || !strings.Contains(err.Error(), "dimension mismatch") {
			t.Errorf("expected a dimension mismatch error, got %v", err)
		}
	})

	t.Run("predict with wrong feature count", func(t *testing.T) {
		gbr := NewGradientBoostingRegressor().WithMaxIter(3)
		if err := gbr.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		_, err := gbr.Predict(mat.NewDense(4, 3, nil))
		if err == nil || !strings.Contains(err.Error(), "dimension mismatch") {
			t.Errorf("expected a dimension mismatch error, got %v", err)
		}
	})
}

func TestRegressorNotFitted(t *testing.T) {
	X, y := stepData(10, 10, 1, 3)

	tests := []struct {
		name string
		call func(*GradientBoostingRegressor) error
	}{
		{"Predict", func(g *GradientBoostingRegressor) error {
			_, err := g.Predict(X)
			return err
		}},
		{"DecisionFunction", func(g *GradientBoostingRegressor) error {
			_, err := g.DecisionFunction(X)
			return err
		}},
		{"Score", func(g *GradientBoostingRegressor) error {
			_, err := g.Score(X, y)
			return err
		}},
		{"Save", func(g *GradientBoostingRegressor) error {
			return g.Save(filepath.Join(t.TempDir(), "model.gob"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(NewGradientBoostingRegressor())
			if err == nil || !strings.Contains(err.Error(), "is not fitted yet") {
				t.Errorf("expected a not-fitted error, got %v", err)
			}
		})
	}
}

func TestRegressorSaveLoad(t *testing.T) {
	X, y := stepData(100, 50, 1, 3)

	gbr := NewGradientBoostingRegressor().WithMaxIter(5).WithEarlyStopping(0)
	if err := gbr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	want, err := gbr.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "regressor.gob")
	if err := gbr.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := NewGradientBoostingRegressor()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.IsFitted() {
		t.Fatal("loaded model not marked fitted")
	}
	if loaded.MaxIter != 5 || loaded.NIterNoChange != 0 {
		t.Errorf("hyperparameters not restored: MaxIter=%d NIterNoChange=%d", loaded.MaxIter, loaded.NIterNoChange)
	}
	if loaded.NIters() != gbr.NIters() {
		t.Fatalf("loaded %d trees, want %d", loaded.NIters(), gbr.NIters())
	}

	got, err := loaded.Predict(X)
	if err != nil {
		t.Fatalf("Predict on loaded model failed: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prediction[%d] changed across save/load: %v vs %v", i, want[i], got[i])
		}
	}
}

func TestRegressorGetSetParams(t *testing.T) {
	gbr := NewGradientBoostingRegressor()
	params := gbr.GetParams()
	if params["learning_rate"] != 0.1 {
		t.Errorf("learning_rate = %v, want 0.1", params["learning_rate"])
	}
	if params["max_iter"] != 100 {
		t.Errorf("max_iter = %v, want 100", params["max_iter"])
	}
	if params["loss"] != "least_squares" {
		t.Errorf("loss = %v, want least_squares", params["loss"])
	}

	err := gbr.SetParams(map[string]interface{}{
		"learning_rate":    0.05,
		"max_iter":         42,
		"max_leaf_nodes":   15,
		"validation_split": 0.2,
		"random_state":     7,
		"unknown_param":    "ignored",
	})
	if err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if gbr.LearningRate != 0.05 || gbr.MaxIter != 42 || gbr.MaxLeafNodes != 15 {
		t.Errorf("SetParams did not apply: %+v", gbr.GetParams())
	}
	if gbr.ValidationSplit != 0.2 {
		t.Errorf("ValidationSplit = %v, want 0.2", gbr.ValidationSplit)
	}
	if gbr.RandomState != 7 {
		t.Errorf("RandomState = %v, want 7", gbr.RandomState)
	}
}
