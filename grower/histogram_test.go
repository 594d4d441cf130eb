package grower

import (
	"math"
	"math/rand"
	"testing"
)

// naiveHistogram is the reference accumulation the unrolled kernels must
// reproduce.
func naiveHistogram(binnedCol []uint8, indices []uint32, gradients, hessians []float32) Histogram {
	var hist Histogram
	for i, idx := range indices {
		bin := binnedCol[idx]
		hist[bin].SumGradients += float64(gradients[i])
		if hessians != nil {
			hist[bin].SumHessians += float64(hessians[i])
		}
		hist[bin].Count++
	}
	return hist
}

// randomNode draws a binned column plus a node covering an odd number of
// samples so the unrolled kernels exercise their remainder loops.
func randomNode(nSamples, nBins int, seed int64) (binnedCol []uint8, indices []uint32, gradients, hessians []float32) {
	rng := rand.New(rand.NewSource(seed))
	binnedCol = make([]uint8, nSamples)
	for i := range binnedCol {
		binnedCol[i] = uint8(rng.Intn(nBins))
	}
	nodeSize := nSamples/2 + 1
	indices = make([]uint32, 0, nodeSize)
	for _, idx := range rng.Perm(nSamples)[:nodeSize] {
		indices = append(indices, uint32(idx))
	}
	gradients = make([]float32, nodeSize)
	hessians = make([]float32, nodeSize)
	for i := range gradients {
		gradients[i] = float32(rng.NormFloat64())
		hessians[i] = float32(rng.Float64())
	}
	return binnedCol, indices, gradients, hessians
}

func assertHistogramsEqual(t *testing.T, got, want *Histogram, tolerance float64) {
	t.Helper()
	for bin := 0; bin < MaxBins; bin++ {
		if got[bin].Count != want[bin].Count {
			t.Errorf("bin %d: Count = %d, want %d", bin, got[bin].Count, want[bin].Count)
		}
		if math.Abs(got[bin].SumGradients-want[bin].SumGradients) > tolerance {
			t.Errorf("bin %d: SumGradients = %v, want %v", bin, got[bin].SumGradients, want[bin].SumGradients)
		}
		if math.Abs(got[bin].SumHessians-want[bin].SumHessians) > tolerance {
			t.Errorf("bin %d: SumHessians = %v, want %v", bin, got[bin].SumHessians, want[bin].SumHessians)
		}
	}
}

func TestBuildHistogram(t *testing.T) {
	binnedCol, indices, gradients, hessians := randomNode(1001, 32, 42)

	var hist Histogram
	buildHistogram(&hist, binnedCol, indices, gradients, hessians)
	want := naiveHistogram(binnedCol, indices, gradients, hessians)

	assertHistogramsEqual(t, &hist, &want, 0)
}

func TestBuildHistogramNoHessian(t *testing.T) {
	binnedCol, indices, gradients, _ := randomNode(1001, 32, 43)

	var hist Histogram
	buildHistogramNoHessian(&hist, binnedCol, indices, gradients)
	want := naiveHistogram(binnedCol, indices, gradients, nil)

	assertHistogramsEqual(t, &hist, &want, 0)
}

func TestBuildHistogramRoot(t *testing.T) {
	rng := rand.New(rand.NewSource(44))
	nSamples := 999
	binnedCol := make([]uint8, nSamples)
	gradients := make([]float32, nSamples)
	hessians := make([]float32, nSamples)
	indices := make([]uint32, nSamples)
	for i := range binnedCol {
		binnedCol[i] = uint8(rng.Intn(64))
		gradients[i] = float32(rng.NormFloat64())
		hessians[i] = float32(rng.Float64())
		indices[i] = uint32(i)
	}

	var hist, histNoHessian Histogram
	buildHistogramRoot(&hist, binnedCol, gradients, hessians)
	buildHistogramRootNoHessian(&histNoHessian, binnedCol, gradients)

	want := naiveHistogram(binnedCol, indices, gradients, hessians)
	assertHistogramsEqual(t, &hist, &want, 0)

	wantNoHessian := naiveHistogram(binnedCol, indices, gradients, nil)
	assertHistogramsEqual(t, &histNoHessian, &wantNoHessian, 0)
}

// TestSubtractHistograms checks the sibling trick: the histogram derived
// as parent minus left sibling must match the right sibling's histogram
// built directly from its samples.
func TestSubtractHistograms(t *testing.T) {
	binnedCol, indices, gradients, hessians := randomNode(2000, 16, 45)

	split := len(indices) / 3
	leftIndices, rightIndices := indices[:split], indices[split:]

	parent := naiveHistogram(binnedCol, indices, gradients, hessians)
	left := naiveHistogram(binnedCol, leftIndices, gradients[:split], hessians[:split])
	wantRight := naiveHistogram(binnedCol, rightIndices, gradients[split:], hessians[split:])

	var right Histogram
	subtractHistograms(&right, &parent, &left)

	assertHistogramsEqual(t, &right, &wantRight, 1e-9)
}
