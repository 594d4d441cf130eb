package grower

import (
	"math"

	"github.com/amueller/pygbm/binning"
	"github.com/amueller/pygbm/core/parallel"
)

// SplitInfo describes the best split found for one node.
type SplitInfo struct {
	// Gain is the reduction in loss from applying the split. math.Inf(-1)
	// marks "no valid split".
	Gain       float64
	FeatureIdx int
	// BinIdx is the split threshold: samples with bin <= BinIdx go left.
	BinIdx        uint8
	GradientLeft  float64
	GradientRight float64
	HessianLeft   float64
	HessianRight  float64
	NSamplesLeft  uint32
	NSamplesRight uint32
}

// noSplit returns the sentinel SplitInfo of a feature with no acceptable
// threshold.
func noSplit(featureIdx int) SplitInfo {
	return SplitInfo{Gain: math.Inf(-1), FeatureIdx: featureIdx}
}

// SplittingContext carries the immutable configuration and the scratch
// buffers shared by all split searches of one tree.
//
// The context owns the sample index partition: node sample sets are
// sub-slices of ctx.partition, and applySplit reorders a node's segment
// in place so the two child segments stay contiguous.
type SplittingContext struct {
	X               *binning.Matrix
	nFeatures       int
	maxBins         int
	nBinsPerFeature []int32

	gradients            []float32
	hessians             []float32
	constantHessian      bool
	constantHessianValue float32

	l2Regularization  float64
	minHessianToSplit float64
	minSamplesLeaf    uint32
	minGainToSplit    float64

	// Gather buffers: gradients and hessians of the current node in
	// sample-index order, so histogram kernels stream them sequentially.
	orderedGradients []float32
	orderedHessians  []float32

	partition          []uint32
	leftIndicesBuffer  []uint32
	rightIndicesBuffer []uint32
}

func newSplittingContext(X *binning.Matrix, maxBins int, nBinsPerFeature []int32,
	gradients, hessians []float32, l2Regularization, minHessianToSplit float64,
	minSamplesLeaf int, minGainToSplit float64) *SplittingContext {

	n := X.Rows()
	ctx := &SplittingContext{
		X:                 X,
		nFeatures:         X.Cols(),
		maxBins:           maxBins,
		nBinsPerFeature:   nBinsPerFeature,
		gradients:         gradients,
		hessians:          hessians,
		constantHessian:   len(hessians) == 1,
		l2Regularization:  l2Regularization,
		minHessianToSplit: minHessianToSplit,
		minSamplesLeaf:    uint32(minSamplesLeaf),
		minGainToSplit:    minGainToSplit,
		orderedGradients:  make([]float32, n),
		partition:         make([]uint32, n),
	}
	if ctx.constantHessian {
		ctx.constantHessianValue = hessians[0]
	} else {
		ctx.orderedHessians = make([]float32, n)
	}
	for i := range ctx.partition {
		ctx.partition[i] = uint32(i)
	}
	ctx.leftIndicesBuffer = make([]uint32, n)
	ctx.rightIndicesBuffer = make([]uint32, n)
	return ctx
}

// sumGradientsAndHessians reduces the gradient and hessian totals of the
// whole training set, used to seed the root node.
func (ctx *SplittingContext) sumGradientsAndHessians() (sumG, sumH float64) {
	for _, g := range ctx.gradients {
		sumG += float64(g)
	}
	if ctx.constantHessian {
		sumH = float64(ctx.constantHessianValue) * float64(len(ctx.gradients))
	} else {
		for _, h := range ctx.hessians {
			sumH += float64(h)
		}
	}
	return sumG, sumH
}

// findNodeSplit builds the histograms of every feature for the node
// holding sampleIndices and returns them along with the best split
// found. Features are processed in parallel; ties on gain resolve to the
// lowest feature index.
func (ctx *SplittingContext) findNodeSplit(sampleIndices []uint32, sumGradients, sumHessians float64) ([]Histogram, SplitInfo) {
	n := len(sampleIndices)

	// Gather the node's gradients once so every feature's histogram
	// build reads them sequentially.
	root := n == ctx.X.Rows()
	if !root {
		orderedG := ctx.orderedGradients[:n]
		for i, idx := range sampleIndices {
			orderedG[i] = ctx.gradients[idx]
		}
		if !ctx.constantHessian {
			orderedH := ctx.orderedHessians[:n]
			for i, idx := range sampleIndices {
				orderedH[i] = ctx.hessians[idx]
			}
		}
	}

	histograms := make([]Histogram, ctx.nFeatures)
	splitInfos := make([]SplitInfo, ctx.nFeatures)
	parallel.Parallelize(ctx.nFeatures, func(start, end int) {
		for f := start; f < end; f++ {
			binnedCol := ctx.X.Col(f)
			hist := &histograms[f]
			switch {
			case root && ctx.constantHessian:
				buildHistogramRootNoHessian(hist, binnedCol, ctx.gradients)
			case root:
				buildHistogramRoot(hist, binnedCol, ctx.gradients, ctx.hessians)
			case ctx.constantHessian:
				buildHistogramNoHessian(hist, binnedCol, sampleIndices, ctx.orderedGradients[:n])
			default:
				buildHistogram(hist, binnedCol, sampleIndices, ctx.orderedGradients[:n], ctx.orderedHessians[:n])
			}
			splitInfos[f] = ctx.findBestBin(f, hist, sumGradients, sumHessians, uint32(n))
		}
	})

	return histograms, bestOfFeatures(splitInfos)
}

// findNodeSplitSubtraction derives the node's histograms from its parent
// and sibling instead of scanning the samples, then runs the same best
// bin search.
func (ctx *SplittingContext) findNodeSplitSubtraction(sampleIndices []uint32, sumGradients, sumHessians float64,
	parentHistograms, siblingHistograms []Histogram) ([]Histogram, SplitInfo) {

	n := uint32(len(sampleIndices))
	histograms := make([]Histogram, ctx.nFeatures)
	splitInfos := make([]SplitInfo, ctx.nFeatures)
	parallel.Parallelize(ctx.nFeatures, func(start, end int) {
		for f := start; f < end; f++ {
			subtractHistograms(&histograms[f], &parentHistograms[f], &siblingHistograms[f])
			splitInfos[f] = ctx.findBestBin(f, &histograms[f], sumGradients, sumHessians, n)
		}
	})
	return histograms, bestOfFeatures(splitInfos)
}

// bestOfFeatures picks the highest-gain SplitInfo; the first feature
// wins ties so results stay deterministic.
func bestOfFeatures(splitInfos []SplitInfo) SplitInfo {
	best := splitInfos[0]
	for _, si := range splitInfos[1:] {
		if si.Gain > best.Gain {
			best = si
		}
	}
	return best
}

// findBestBin scans the bins of one feature in increasing order and
// returns the best acceptable split. Running left-side sums are
// maintained across the scan, so accumulation happens before any
// constraint check.
func (ctx *SplittingContext) findBestBin(featureIdx int, hist *Histogram, sumGradients, sumHessians float64, nSamples uint32) SplitInfo {
	best := noSplit(featureIdx)

	var gradientLeft, hessianLeft float64
	var nSamplesLeft uint32
	nBins := int(ctx.nBinsPerFeature[featureIdx])

	for binIdx := 0; binIdx < nBins; binIdx++ {
		b := &hist[binIdx]
		nSamplesLeft += b.Count
		nSamplesRight := nSamples - nSamplesLeft
		gradientLeft += b.SumGradients
		if ctx.constantHessian {
			hessianLeft += float64(b.Count) * float64(ctx.constantHessianValue)
		} else {
			hessianLeft += b.SumHessians
		}
		hessianRight := sumHessians - hessianLeft
		gradientRight := sumGradients - gradientLeft

		if nSamplesLeft < ctx.minSamplesLeaf {
			continue
		}
		if nSamplesRight < ctx.minSamplesLeaf {
			break
		}
		if hessianLeft < ctx.minHessianToSplit {
			continue
		}
		if hessianRight < ctx.minHessianToSplit {
			break
		}

		gain := splitGain(gradientLeft, hessianLeft, gradientRight, hessianRight,
			sumGradients, sumHessians, ctx.l2Regularization)
		if gain > best.Gain && gain > ctx.minGainToSplit {
			best = SplitInfo{
				Gain:          gain,
				FeatureIdx:    featureIdx,
				BinIdx:        uint8(binIdx),
				GradientLeft:  gradientLeft,
				GradientRight: gradientRight,
				HessianLeft:   hessianLeft,
				HessianRight:  hessianRight,
				NSamplesLeft:  nSamplesLeft,
				NSamplesRight: nSamplesRight,
			}
		}
	}
	return best
}

// splitGain computes the regularized reduction in loss obtained by
// splitting, following the classic XGBoost formulation. Zero
// denominators report no valid split instead of dividing by zero.
func splitGain(gradientLeft, hessianLeft, gradientRight, hessianRight, sumGradients, sumHessians, l2Regularization float64) float64 {
	if hessianLeft+l2Regularization == 0 || hessianRight+l2Regularization == 0 || sumHessians+l2Regularization == 0 {
		return math.Inf(-1)
	}
	negativeLoss := func(gradient, hessian float64) float64 {
		return gradient * gradient / (hessian + l2Regularization)
	}
	return 0.5 * (negativeLoss(gradientLeft, hessianLeft) +
		negativeLoss(gradientRight, hessianRight) -
		negativeLoss(sumGradients, sumHessians))
}

// applySplit stably partitions a node's segment of the sample index
// partition according to splitInfo, returning the left and right
// sub-slices. Relative sample order is preserved on both sides.
func (ctx *SplittingContext) applySplit(sampleIndices []uint32, splitInfo SplitInfo) (left, right []uint32) {
	binnedCol := ctx.X.Col(splitInfo.FeatureIdx)
	binIdx := splitInfo.BinIdx

	nLeft, nRight := 0, 0
	for _, idx := range sampleIndices {
		if binnedCol[idx] <= binIdx {
			ctx.leftIndicesBuffer[nLeft] = idx
			nLeft++
		} else {
			ctx.rightIndicesBuffer[nRight] = idx
			nRight++
		}
	}
	copy(sampleIndices[:nLeft], ctx.leftIndicesBuffer[:nLeft])
	copy(sampleIndices[nLeft:], ctx.rightIndicesBuffer[:nRight])
	return sampleIndices[:nLeft], sampleIndices[nLeft:]
}
