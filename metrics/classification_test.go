package metrics

import (
	"math"
	"testing"

	"github.com/amueller/pygbm/pkg/errors"
)

func TestAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yScore  []float64
		want    float64
		wantErr bool
	}{
		{
			name:   "Perfect classifier",
			yTrue:  []float64{0, 0, 0, 1, 1, 1},
			yScore: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9},
			want:   1.0,
		},
		{
			name:   "Worst classifier",
			yTrue:  []float64{0, 0, 0, 1, 1, 1},
			yScore: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1},
			want:   0.0,
		},
		{
			name:   "Random classifier",
			yTrue:  []float64{0, 1, 0, 1},
			yScore: []float64{0.5, 0.5, 0.5, 0.5},
			want:   0.5,
		},
		{
			name:   "Typical case",
			yTrue:  []float64{0, 0, 1, 1},
			yScore: []float64{0.1, 0.4, 0.35, 0.8},
			want:   0.75,
		},
		{
			name:   "All positive labels",
			yTrue:  []float64{1, 1, 1, 1},
			yScore: []float64{0.1, 0.4, 0.35, 0.8},
			want:   0.5, // Undefined case, returns 0.5 with a warning
		},
		{
			name:   "All negative labels",
			yTrue:  []float64{0, 0, 0, 0},
			yScore: []float64{0.1, 0.4, 0.35, 0.8},
			want:   0.5, // Undefined case, returns 0.5 with a warning
		},
		{
			name:    "Non-binary labels",
			yTrue:   []float64{0, 0.5, 1},
			yScore:  []float64{0.1, 0.5, 0.9},
			wantErr: true,
		},
		{
			name:    "Dimension mismatch",
			yTrue:   []float64{0, 1},
			yScore:  []float64{0.5},
			wantErr: true,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yScore:  []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(tt.yTrue, tt.yScore)
			if (err != nil) != tt.wantErr {
				t.Errorf("AUC() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("AUC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAUCScoresAreNotModified(t *testing.T) {
	yTrue := []float64{0, 1, 0, 1}
	yScore := []float64{0.8, 0.1, 0.4, 0.6}
	original := []float64{0.8, 0.1, 0.4, 0.6}

	if _, err := AUC(yTrue, yScore); err != nil {
		t.Fatalf("AUC() returned error: %v", err)
	}
	for i := range yScore {
		if yScore[i] != original[i] {
			t.Fatalf("yScore was reordered: %v", yScore)
		}
	}
}

func TestAUCWarnsOnSingleClass(t *testing.T) {
	var captured error
	errors.SetWarningHandler(func(w error) { captured = w })
	defer errors.SetWarningHandler(func(w error) {})

	got, err := AUC([]float64{1, 1, 1}, []float64{0.2, 0.5, 0.9})
	if err != nil {
		t.Fatalf("AUC() returned error: %v", err)
	}
	if got != 0.5 {
		t.Errorf("AUC() = %v, want 0.5", got)
	}

	var warning *errors.UndefinedMetricWarning
	if captured == nil || !errors.As(captured, &warning) {
		t.Fatalf("expected an UndefinedMetricWarning, got %v", captured)
	}
	if warning.Metric != "AUC" || warning.Result != 0.5 {
		t.Errorf("warning = %+v, want metric AUC with result 0.5", warning)
	}
}

func TestLogLoss(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yProba  []float64
		want    float64
		wantErr bool
	}{
		{
			name:   "Perfect predictions",
			yTrue:  []float64{0, 0, 1, 1},
			yProba: []float64{0, 0, 1, 1},
			want:   0.0, // Will be a small epsilon value due to clipping
		},
		{
			name:   "Typical case",
			yTrue:  []float64{0, 0, 1, 1},
			yProba: []float64{0.1, 0.2, 0.8, 0.9},
			want:   0.164252, // -(ln(0.9)+ln(0.8)+ln(0.8)+ln(0.9))/4
		},
		{
			name:   "Worst predictions",
			yTrue:  []float64{0, 0, 1, 1},
			yProba: []float64{0.9, 0.9, 0.1, 0.1},
			want:   2.3025851, // ln(10)
		},
		{
			name:   "Clipping edge case",
			yTrue:  []float64{0, 1},
			yProba: []float64{0, 1}, // Will be clipped to avoid log(0)
			want:   0.0,
		},
		{
			name:    "Non-binary labels",
			yTrue:   []float64{0, 0.5, 1},
			yProba:  []float64{0.1, 0.5, 0.9},
			wantErr: true,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yProba:  []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LogLoss(tt.yTrue, tt.yProba)
			if (err != nil) != tt.wantErr {
				t.Errorf("LogLoss() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 0.01 {
				t.Errorf("LogLoss() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassificationError(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect classification",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 2, 1, 0},
			want:  0.0,
		},
		{
			name:  "One error",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 1, 1, 0},
			want:  0.2,
		},
		{
			name:  "All wrong",
			yTrue: []float64{0, 0, 0},
			yPred: []float64{1, 1, 1},
			want:  1.0,
		},
		{
			name:  "Binary classification",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0, 1, 1, 0},
			want:  0.5,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
		{
			name:    "Dimension mismatch",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassificationError(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("ClassificationError() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("ClassificationError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccuracyScore(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 2, 1, 0},
			want:  1.0,
		},
		{
			name:  "80% accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 1, 1, 0},
			want:  0.8,
		},
		{
			name:  "Zero accuracy",
			yTrue: []float64{0, 0, 0},
			yPred: []float64{1, 1, 1},
			want:  0.0,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AccuracyScore(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("AccuracyScore() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("AccuracyScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Benchmark tests
func BenchmarkAUC(b *testing.B) {
	// Create test data
	n := 1000
	yTrue := make([]float64, n)
	yScore := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < n/2 {
			yTrue[i] = 0
		} else {
			yTrue[i] = 1
		}
		yScore[i] = float64(i) / float64(n)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yTrue, yScore)
	}
}

func BenchmarkLogLoss(b *testing.B) {
	// Create test data
	n := 1000
	yTrue := make([]float64, n)
	yProba := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < n/2 {
			yTrue[i] = 0
			yProba[i] = 0.1 + 0.3*float64(i)/float64(n)
		} else {
			yTrue[i] = 1
			yProba[i] = 0.6 + 0.3*float64(i-n/2)/float64(n/2)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = LogLoss(yTrue, yProba)
	}
}
