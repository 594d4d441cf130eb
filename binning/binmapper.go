package binning

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/amueller/pygbm/core/model"
	"github.com/amueller/pygbm/core/parallel"
	pygbmErrors "github.com/amueller/pygbm/pkg/errors"
	"github.com/amueller/pygbm/pkg/log"
)

// DefaultMaxBins is the largest bin count representable by uint8 indices.
const DefaultMaxBins = 256

// DefaultSubsampleSize caps how many rows are used to estimate thresholds.
const DefaultSubsampleSize = 200000

// BinMapper quantizes continuous feature columns into uint8 bin indices.
//
// Fit learns per-feature thresholds from (a subsample of) the data:
// when a feature has at most MaxBins distinct values the thresholds are
// the midpoints between consecutive distinct values, otherwise they are
// midpoint-interpolated percentiles. Transform maps each value to the
// index of the first threshold that is not exceeded, so bin indices are
// monotone in the raw values.
type BinMapper struct {
	*model.StateManager

	// MaxBins is the maximum number of bins per feature, in [2, 256].
	MaxBins int
	// SubsampleSize is the number of rows sampled for threshold
	// estimation when the input is larger. Zero or negative disables
	// subsampling.
	SubsampleSize int
	// Seed drives the subsampling randomness. Fits with the same seed
	// and data produce identical thresholds.
	Seed int64

	// BinThresholds holds, per feature, the ordered bin boundaries
	// learned by Fit. A value v falls in the first bin i with
	// v <= BinThresholds[feature][i], or in the last bin if v exceeds
	// every boundary.
	BinThresholds [][]float64
	// NBinsPerFeature is the effective bin count per feature, which is
	// len(BinThresholds[feature]) + 1 and may be smaller than MaxBins
	// for features with few distinct values.
	NBinsPerFeature []int32
}

// NewBinMapper creates a BinMapper with default parameters.
func NewBinMapper() *BinMapper {
	return &BinMapper{
		StateManager:  model.NewStateManager(),
		MaxBins:       DefaultMaxBins,
		SubsampleSize: DefaultSubsampleSize,
		Seed:          42,
	}
}

// WithMaxBins sets the maximum number of bins per feature.
func (bm *BinMapper) WithMaxBins(n int) *BinMapper {
	bm.MaxBins = n
	return bm
}

// WithSubsampleSize sets the number of rows used for threshold estimation.
func (bm *BinMapper) WithSubsampleSize(n int) *BinMapper {
	bm.SubsampleSize = n
	return bm
}

// WithSeed sets the subsampling seed.
func (bm *BinMapper) WithSeed(seed int64) *BinMapper {
	bm.Seed = seed
	return bm
}

// Fit learns the binning thresholds of every feature column of X.
func (bm *BinMapper) Fit(X mat.Matrix) (err error) {
	defer pygbmErrors.Recover(&err, "BinMapper.Fit")

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return pygbmErrors.Wrap(pygbmErrors.ErrEmptyData, "BinMapper.Fit")
	}
	if bm.MaxBins < 2 || bm.MaxBins > 256 {
		return pygbmErrors.NewValueError("BinMapper.Fit", fmt.Sprintf(
			"max_bins=%d should be no smaller than 2 and no larger than 256", bm.MaxBins))
	}

	// Threshold estimation only needs a representative sample of rows.
	sampleRows := rows
	var sampleIdx []int
	if bm.SubsampleSize > 0 && rows > bm.SubsampleSize {
		rng := rand.New(rand.NewSource(bm.Seed))
		sampleRows = bm.SubsampleSize
		sampleIdx = make([]int, sampleRows)
		for i := range sampleIdx {
			sampleIdx[i] = rng.Intn(rows)
		}
	}

	thresholds := make([][]float64, cols)
	parallel.Parallelize(cols, func(start, end int) {
		colBuf := make([]float64, sampleRows)
		for j := start; j < end; j++ {
			if sampleIdx == nil {
				for i := 0; i < rows; i++ {
					colBuf[i] = X.At(i, j)
				}
			} else {
				for i, idx := range sampleIdx {
					colBuf[i] = X.At(idx, j)
				}
			}
			thresholds[j] = findBinningThresholds(colBuf, bm.MaxBins)
		}
	})

	bm.BinThresholds = thresholds
	bm.NBinsPerFeature = make([]int32, cols)
	for j, t := range thresholds {
		bm.NBinsPerFeature[j] = int32(len(t) + 1)
	}

	bm.SetDimensions(cols, rows)
	bm.SetFitted()

	log.GetLoggerWithName("binning").Debug("Fitted bin thresholds",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.BinsKey, bm.MaxBins)
	return nil
}

// Transform maps every value of X to its bin index using the fitted
// thresholds. The result is column-major.
func (bm *BinMapper) Transform(X mat.Matrix) (*Matrix, error) {
	if !bm.IsFitted() {
		return nil, pygbmErrors.NewNotFittedError("BinMapper", "Transform")
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, pygbmErrors.Wrap(pygbmErrors.ErrEmptyData, "BinMapper.Transform")
	}
	nFeatures, _ := bm.GetDimensions()
	if cols != nFeatures {
		return nil, pygbmErrors.NewDimensionError("BinMapper.Transform", nFeatures, cols, 1)
	}

	binned := NewMatrix(rows, cols)
	parallel.Parallelize(cols, func(start, end int) {
		for j := start; j < end; j++ {
			t := bm.BinThresholds[j]
			col := binned.Col(j)
			for i := 0; i < rows; i++ {
				col[i] = uint8(sort.SearchFloat64s(t, X.At(i, j)))
			}
		}
	})
	return binned, nil
}

// FitTransform fits the thresholds and returns the binned matrix in one
// call.
func (bm *BinMapper) FitTransform(X mat.Matrix) (*Matrix, error) {
	if err := bm.Fit(X); err != nil {
		return nil, err
	}
	return bm.Transform(X)
}

// BinValue maps a single raw value of one feature to its bin index.
func (bm *BinMapper) BinValue(featureIdx int, v float64) (uint8, error) {
	if !bm.IsFitted() {
		return 0, pygbmErrors.NewNotFittedError("BinMapper", "BinValue")
	}
	if featureIdx < 0 || featureIdx >= len(bm.BinThresholds) {
		return 0, pygbmErrors.NewValueError("BinMapper.BinValue", fmt.Sprintf(
			"feature index %d out of range [0, %d)", featureIdx, len(bm.BinThresholds)))
	}
	return uint8(sort.SearchFloat64s(bm.BinThresholds[featureIdx], v)), nil
}

// findBinningThresholds computes the bin boundaries of one feature from
// its observed values. values is used as scratch space and reordered.
func findBinningThresholds(values []float64, maxBins int) []float64 {
	sort.Float64s(values)

	distinct := distinctSorted(values)
	if len(distinct) <= maxBins {
		midpoints := make([]float64, 0, len(distinct))
		for i := 0; i+1 < len(distinct); i++ {
			midpoints = append(midpoints, (distinct[i]+distinct[i+1])*0.5)
		}
		return midpoints
	}

	// More distinct values than bins: cut at evenly spaced percentiles.
	// Repeated percentiles collapse into a single boundary, so heavily
	// skewed features can end up with fewer than maxBins bins.
	midpoints := make([]float64, 0, maxBins-1)
	for k := 1; k < maxBins; k++ {
		rank := float64(k) * float64(len(values)-1) / float64(maxBins)
		p := midpointAtRank(values, rank)
		if len(midpoints) == 0 || p != midpoints[len(midpoints)-1] {
			midpoints = append(midpoints, p)
		}
	}
	return midpoints
}

// distinctSorted compacts a sorted slice into its distinct values.
// The result aliases the input.
func distinctSorted(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// midpointAtRank computes a percentile of sorted values with midpoint
// interpolation: the average of the two order statistics bracketing the
// fractional rank.
func midpointAtRank(sorted []float64, rank float64) float64 {
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return (sorted[lo] + sorted[hi]) * 0.5
}
