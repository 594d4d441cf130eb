// Package predictor provides the flattened, immutable tree
// representation used for inference.
//
// A grown tree is compiled into a flat array of plain node records laid
// out in pre-order: the root is index 0 and children always sit at
// larger indices than their parent. Traversal only chases indices, so a
// predictor is cheap to store, cheap to walk and safe for concurrent
// use.
package predictor

import (
	"gonum.org/v1/gonum/mat"

	"github.com/amueller/pygbm/binning"
	"github.com/amueller/pygbm/core/parallel"
	pygbmErrors "github.com/amueller/pygbm/pkg/errors"
)

// predictParallelThreshold is the row count below which prediction runs
// on the calling goroutine only.
const predictParallelThreshold = 1024

// Node is one record of the flattened tree.
//
// Internal nodes carry the split (FeatureIdx, BinThreshold and, when the
// tree was compiled with bin thresholds, the real-valued Threshold) plus
// the indices of both children. Leaves carry the prediction Value. Every
// node records the sample Count and Depth it had during growth.
type Node struct {
	Value        float64
	Count        uint32
	FeatureIdx   uint32
	Threshold    float64
	BinThreshold uint8
	IsLeaf       bool
	Left         uint32
	Right        uint32
	// Gain is the gain of the node's split, -1 when no split was ever
	// evaluated for it.
	Gain  float64
	Depth uint32
}

// TreePredictor evaluates a grown tree over binned or raw inputs.
type TreePredictor struct {
	// Nodes is the pre-order flattened tree; Nodes[0] is the root.
	Nodes []Node
	// HasThresholds reports whether real-valued thresholds were filled
	// in at compile time, enabling prediction on raw, unbinned inputs.
	HasThresholds bool
}

// NewTreePredictor wraps a compiled node array. It is normally called by
// TreeGrower.MakePredictor rather than directly.
func NewTreePredictor(nodes []Node, hasThresholds bool) *TreePredictor {
	return &TreePredictor{Nodes: nodes, HasThresholds: hasThresholds}
}

// NNodes returns the total number of nodes.
func (tp *TreePredictor) NNodes() int { return len(tp.Nodes) }

// NLeafNodes returns the number of leaves.
func (tp *TreePredictor) NLeafNodes() int {
	n := 0
	for i := range tp.Nodes {
		if tp.Nodes[i].IsLeaf {
			n++
		}
	}
	return n
}

// MaxDepth returns the depth of the deepest node.
func (tp *TreePredictor) MaxDepth() int {
	var maxDepth uint32
	for i := range tp.Nodes {
		if tp.Nodes[i].Depth > maxDepth {
			maxDepth = tp.Nodes[i].Depth
		}
	}
	return int(maxDepth)
}

// PredictBinned returns the raw predicted value of every row of a binned
// matrix.
func (tp *TreePredictor) PredictBinned(X *binning.Matrix) []float64 {
	out := make([]float64, X.Rows())
	parallel.ParallelizeWithThreshold(X.Rows(), predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			node := &tp.Nodes[0]
			for !node.IsLeaf {
				if X.At(i, int(node.FeatureIdx)) <= node.BinThreshold {
					node = &tp.Nodes[node.Left]
				} else {
					node = &tp.Nodes[node.Right]
				}
			}
			out[i] = node.Value
		}
	})
	return out
}

// PredictBinnedRow returns the raw predicted value of one binned row.
func (tp *TreePredictor) PredictBinnedRow(row []uint8) float64 {
	node := &tp.Nodes[0]
	for !node.IsLeaf {
		if row[node.FeatureIdx] <= node.BinThreshold {
			node = &tp.Nodes[node.Left]
		} else {
			node = &tp.Nodes[node.Right]
		}
	}
	return node.Value
}

// Predict returns the raw predicted value of every row of an unbinned
// matrix, comparing feature values against the real-valued thresholds
// recorded at compile time. A value greater than every threshold of its
// feature descends right all the way, landing in the last bin's region.
func (tp *TreePredictor) Predict(X mat.Matrix) ([]float64, error) {
	if !tp.HasThresholds {
		return nil, pygbmErrors.NewValueError("TreePredictor.Predict",
			"this predictor was built without bin thresholds and can only predict binned data")
	}
	rows, _ := X.Dims()
	out := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			node := &tp.Nodes[0]
			for !node.IsLeaf {
				if X.At(i, int(node.FeatureIdx)) <= node.Threshold {
					node = &tp.Nodes[node.Left]
				} else {
					node = &tp.Nodes[node.Right]
				}
			}
			out[i] = node.Value
		}
	})
	return out, nil
}

// PredictRow returns the raw predicted value of one unbinned row.
func (tp *TreePredictor) PredictRow(row []float64) (float64, error) {
	if !tp.HasThresholds {
		return 0, pygbmErrors.NewValueError("TreePredictor.PredictRow",
			"this predictor was built without bin thresholds and can only predict binned data")
	}
	node := &tp.Nodes[0]
	for !node.IsLeaf {
		if row[node.FeatureIdx] <= node.Threshold {
			node = &tp.Nodes[node.Left]
		} else {
			node = &tp.Nodes[node.Right]
		}
	}
	return node.Value, nil
}
