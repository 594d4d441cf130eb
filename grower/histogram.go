// Package grower builds single decision trees over pre-binned features
// for gradient boosting.
//
// A tree is grown best-first: the node whose best split has the highest
// gain is expanded next. Split search works on per-bin histograms of
// gradient and hessian sums instead of sorted raw values, which makes
// the cost of one node proportional to samples + bins rather than
// samples * log(samples). The grown tree is compiled into a flat
// predictor for inference.
package grower

// MaxBins is the histogram capacity. Bin indices are uint8, so no
// feature can have more bins than this.
const MaxBins = 256

// Bin accumulates the gradient statistics of one histogram bin.
//
// Sums are kept in float64 even though per-sample gradients are float32,
// so that accumulation error stays bounded on large nodes and sibling
// subtraction stays consistent with the parent sums.
type Bin struct {
	SumGradients float64
	SumHessians  float64
	Count        uint32
}

// Histogram holds the per-bin statistics of one feature at one node.
// Entries past a feature's effective bin count stay zero.
type Histogram [MaxBins]Bin

// buildHistogram accumulates the histogram of one feature over the
// samples listed in indices. orderedGradients and orderedHessians must
// already be gathered in the same order as indices.
func buildHistogram(hist *Histogram, binnedCol []uint8, indices []uint32, orderedGradients, orderedHessians []float32) {
	n := len(indices)
	unrolled := (n / 4) * 4
	for i := 0; i < unrolled; i += 4 {
		bin0 := binnedCol[indices[i]]
		bin1 := binnedCol[indices[i+1]]
		bin2 := binnedCol[indices[i+2]]
		bin3 := binnedCol[indices[i+3]]

		hist[bin0].SumGradients += float64(orderedGradients[i])
		hist[bin1].SumGradients += float64(orderedGradients[i+1])
		hist[bin2].SumGradients += float64(orderedGradients[i+2])
		hist[bin3].SumGradients += float64(orderedGradients[i+3])

		hist[bin0].SumHessians += float64(orderedHessians[i])
		hist[bin1].SumHessians += float64(orderedHessians[i+1])
		hist[bin2].SumHessians += float64(orderedHessians[i+2])
		hist[bin3].SumHessians += float64(orderedHessians[i+3])

		hist[bin0].Count++
		hist[bin1].Count++
		hist[bin2].Count++
		hist[bin3].Count++
	}
	for i := unrolled; i < n; i++ {
		bin := binnedCol[indices[i]]
		hist[bin].SumGradients += float64(orderedGradients[i])
		hist[bin].SumHessians += float64(orderedHessians[i])
		hist[bin].Count++
	}
}

// buildHistogramNoHessian is the constant-hessian variant: hessian sums
// are left at zero and derived from counts during the split scan.
func buildHistogramNoHessian(hist *Histogram, binnedCol []uint8, indices []uint32, orderedGradients []float32) {
	n := len(indices)
	unrolled := (n / 4) * 4
	for i := 0; i < unrolled; i += 4 {
		bin0 := binnedCol[indices[i]]
		bin1 := binnedCol[indices[i+1]]
		bin2 := binnedCol[indices[i+2]]
		bin3 := binnedCol[indices[i+3]]

		hist[bin0].SumGradients += float64(orderedGradients[i])
		hist[bin1].SumGradients += float64(orderedGradients[i+1])
		hist[bin2].SumGradients += float64(orderedGradients[i+2])
		hist[bin3].SumGradients += float64(orderedGradients[i+3])

		hist[bin0].Count++
		hist[bin1].Count++
		hist[bin2].Count++
		hist[bin3].Count++
	}
	for i := unrolled; i < n; i++ {
		bin := binnedCol[indices[i]]
		hist[bin].SumGradients += float64(orderedGradients[i])
		hist[bin].Count++
	}
}

// buildHistogramRoot accumulates the histogram of one feature over all
// samples, skipping the index indirection entirely.
func buildHistogramRoot(hist *Histogram, binnedCol []uint8, gradients, hessians []float32) {
	n := len(binnedCol)
	unrolled := (n / 4) * 4
	for i := 0; i < unrolled; i += 4 {
		bin0 := binnedCol[i]
		bin1 := binnedCol[i+1]
		bin2 := binnedCol[i+2]
		bin3 := binnedCol[i+3]

		hist[bin0].SumGradients += float64(gradients[i])
		hist[bin1].SumGradients += float64(gradients[i+1])
		hist[bin2].SumGradients += float64(gradients[i+2])
		hist[bin3].SumGradients += float64(gradients[i+3])

		hist[bin0].SumHessians += float64(hessians[i])
		hist[bin1].SumHessians += float64(hessians[i+1])
		hist[bin2].SumHessians += float64(hessians[i+2])
		hist[bin3].SumHessians += float64(hessians[i+3])

		hist[bin0].Count++
		hist[bin1].Count++
		hist[bin2].Count++
		hist[bin3].Count++
	}
	for i := unrolled; i < n; i++ {
		bin := binnedCol[i]
		hist[bin].SumGradients += float64(gradients[i])
		hist[bin].SumHessians += float64(hessians[i])
		hist[bin].Count++
	}
}

// buildHistogramRootNoHessian is the constant-hessian root variant.
func buildHistogramRootNoHessian(hist *Histogram, binnedCol []uint8, gradients []float32) {
	n := len(binnedCol)
	unrolled := (n / 4) * 4
	for i := 0; i < unrolled; i += 4 {
		bin0 := binnedCol[i]
		bin1 := binnedCol[i+1]
		bin2 := binnedCol[i+2]
		bin3 := binnedCol[i+3]

		hist[bin0].SumGradients += float64(gradients[i])
		hist[bin1].SumGradients += float64(gradients[i+1])
		hist[bin2].SumGradients += float64(gradients[i+2])
		hist[bin3].SumGradients += float64(gradients[i+3])

		hist[bin0].Count++
		hist[bin1].Count++
		hist[bin2].Count++
		hist[bin3].Count++
	}
	for i := unrolled; i < n; i++ {
		bin := binnedCol[i]
		hist[bin].SumGradients += float64(gradients[i])
		hist[bin].Count++
	}
}

// subtractHistograms fills hist with parent - sibling. A node's
// histogram equals its parent's minus its sibling's, so the larger
// child of a split can be derived from the smaller one without touching
// the samples again.
func subtractHistograms(hist, parent, sibling *Histogram) {
	for bin := range hist {
		hist[bin].SumGradients = parent[bin].SumGradients - sibling[bin].SumGradients
		hist[bin].SumHessians = parent[bin].SumHessians - sibling[bin].SumHessians
		hist[bin].Count = parent[bin].Count - sibling[bin].Count
	}
}
