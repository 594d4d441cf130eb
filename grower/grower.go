package grower

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/amueller/pygbm/binning"
	pygbmErrors "github.com/amueller/pygbm/pkg/errors"
	"github.com/amueller/pygbm/pkg/log"
	"github.com/amueller/pygbm/predictor"
)

// ErrNoSplittableNode is returned by SplitNext when every node has been
// finalized. Callers driving growth manually should check
// CanSplitFurther instead of relying on this error.
var ErrNoSplittableNode = pygbmErrors.New("no splittable node left")

// TreeNode is one node of the tree under construction.
type TreeNode struct {
	Depth int
	// SampleIndices is the node's view into the shared sample
	// partition. It is only valid during growth; sibling splits reorder
	// the underlying array.
	SampleIndices []uint32
	SumGradients  float64
	SumHessians   float64

	Parent  *TreeNode
	Sibling *TreeNode
	Left    *TreeNode
	Right   *TreeNode

	// SplitInfo is the node's best known split, set once the node has
	// been evaluated. It stays set on finalized leaves for diagnostics.
	SplitInfo *SplitInfo
	// Value is the prediction of the node once finalized as a leaf.
	Value  float64
	IsLeaf bool

	histograms      []Histogram
	histSubtraction bool

	findSplitTime  time.Duration
	applySplitTime time.Duration

	// seq orders equal-gain nodes first-in first-out in the heap.
	seq int
}

// NSamples returns the number of training samples in the node.
func (n *TreeNode) NSamples() int { return len(n.SampleIndices) }

// nodeHeap is a max-heap over split gain; insertion order breaks ties.
type nodeHeap []*TreeNode

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].SplitInfo.Gain == h[j].SplitInfo.Gain {
		return h[i].seq < h[j].seq
	}
	return h[i].SplitInfo.Gain > h[j].SplitInfo.Gain
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(*TreeNode)) }

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return node
}

type growerConfig struct {
	maxLeafNodes      int
	maxDepth          int
	maxDepthSet       bool
	minSamplesLeaf    int
	minGainToSplit    float64
	maxBins           int
	nBinsPerFeature   []int32
	l2Regularization  float64
	minHessianToSplit float64
	shrinkage         float64
}

// Option configures a TreeGrower.
type Option func(*growerConfig)

// WithMaxLeafNodes bounds the number of leaves in the grown tree.
func WithMaxLeafNodes(n int) Option {
	return func(cfg *growerConfig) { cfg.maxLeafNodes = n }
}

// WithMaxDepth bounds the depth of the grown tree. Unset means
// unlimited.
func WithMaxDepth(d int) Option {
	return func(cfg *growerConfig) {
		cfg.maxDepth = d
		cfg.maxDepthSet = true
	}
}

// WithMinSamplesLeaf sets the minimum sample count of each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(cfg *growerConfig) { cfg.minSamplesLeaf = n }
}

// WithMinGainToSplit sets the gain below which a node is finalized
// instead of split.
func WithMinGainToSplit(gain float64) Option {
	return func(cfg *growerConfig) { cfg.minGainToSplit = gain }
}

// WithMaxBins declares how many bins the binned matrix may use per
// feature.
func WithMaxBins(n int) Option {
	return func(cfg *growerConfig) { cfg.maxBins = n }
}

// WithNBinsPerFeature declares the effective bin count of each feature,
// as produced by the bin mapper. Features default to WithMaxBins bins.
func WithNBinsPerFeature(nBins []int32) Option {
	return func(cfg *growerConfig) { cfg.nBinsPerFeature = nBins }
}

// WithL2Regularization sets the L2 regularization added to hessian sums
// in gains and leaf values.
func WithL2Regularization(l2 float64) Option {
	return func(cfg *growerConfig) { cfg.l2Regularization = l2 }
}

// WithMinHessianToSplit sets the minimum hessian sum required on each
// side of a split.
func WithMinHessianToSplit(h float64) Option {
	return func(cfg *growerConfig) { cfg.minHessianToSplit = h }
}

// WithShrinkage scales every leaf value, folding the boosting learning
// rate into the tree.
func WithShrinkage(shrinkage float64) Option {
	return func(cfg *growerConfig) { cfg.shrinkage = shrinkage }
}

// TreeGrower grows one regression tree over a binned matrix, expanding
// the highest-gain node first.
//
// Construction evaluates the root split; Grow (or repeated SplitNext
// calls) expands nodes until a stopping rule fires: no splittable node
// remains, MaxLeafNodes is reached, or every pending node fails the
// acceptance gates.
type TreeGrower struct {
	X   *binning.Matrix
	ctx *SplittingContext

	maxLeafNodes   int
	maxDepth       int
	depthLimited   bool
	minGainToSplit float64
	shrinkage      float64

	root            *TreeNode
	splittableNodes nodeHeap
	finalizedLeaves []*TreeNode
	nNodes          int
	seq             int

	totalFindSplitTime  time.Duration
	totalApplySplitTime time.Duration

	logger log.Logger
}

// NewTreeGrower validates the configuration, computes the root's best
// split and returns a grower ready to expand.
//
// gradients must have one entry per row of X. hessians may either match
// gradients in length or hold a single value treated as constant across
// samples.
func NewTreeGrower(X *binning.Matrix, gradients, hessians []float32, opts ...Option) (*TreeGrower, error) {
	cfg := growerConfig{
		maxLeafNodes:      31,
		minSamplesLeaf:    20,
		maxBins:           MaxBins,
		minHessianToSplit: 1e-3,
		shrinkage:         1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validateGrowerConfig(X, gradients, hessians, &cfg); err != nil {
		return nil, err
	}

	nBinsPerFeature := cfg.nBinsPerFeature
	if nBinsPerFeature == nil {
		nBinsPerFeature = make([]int32, X.Cols())
		for i := range nBinsPerFeature {
			nBinsPerFeature[i] = int32(cfg.maxBins)
		}
	}

	g := &TreeGrower{
		X: X,
		ctx: newSplittingContext(X, cfg.maxBins, nBinsPerFeature, gradients, hessians,
			cfg.l2Regularization, cfg.minHessianToSplit, cfg.minSamplesLeaf, cfg.minGainToSplit),
		maxLeafNodes:   cfg.maxLeafNodes,
		maxDepth:       cfg.maxDepth,
		depthLimited:   cfg.maxDepthSet,
		minGainToSplit: cfg.minGainToSplit,
		shrinkage:      cfg.shrinkage,
		nNodes:         1,
		logger:         log.GetLoggerWithName("grower"),
	}
	g.initializeRoot()
	return g, nil
}

func validateGrowerConfig(X *binning.Matrix, gradients, hessians []float32, cfg *growerConfig) error {
	const op = "TreeGrower"

	if X.Layout() != binning.ColumnMajor {
		return pygbmErrors.NewValueError(op, "X_binned should be passed as Fortran contiguous array")
	}
	if X.Rows() == 0 || X.Cols() == 0 {
		return pygbmErrors.Wrap(pygbmErrors.ErrEmptyData, op)
	}
	if len(gradients) != X.Rows() {
		return pygbmErrors.NewDimensionError(op, X.Rows(), len(gradients), 0)
	}
	if len(hessians) != 1 && len(hessians) != X.Rows() {
		return pygbmErrors.NewDimensionError(op, X.Rows(), len(hessians), 0)
	}
	if cfg.maxLeafNodes < 1 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"max_leaf_nodes=%d should not be smaller than 1", cfg.maxLeafNodes))
	}
	if cfg.maxDepthSet && cfg.maxDepth < 1 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"max_depth=%d should not be smaller than 1", cfg.maxDepth))
	}
	if cfg.minSamplesLeaf < 1 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"min_samples_leaf=%d should not be smaller than 1", cfg.minSamplesLeaf))
	}
	if cfg.minGainToSplit < 0 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"min_gain_to_split=%v must be positive", cfg.minGainToSplit))
	}
	if cfg.l2Regularization < 0 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"l2_regularization=%v must be positive", cfg.l2Regularization))
	}
	if cfg.minHessianToSplit < 0 {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"min_hessian_to_split=%v must be positive", cfg.minHessianToSplit))
	}
	if cfg.maxBins < 2 || cfg.maxBins > MaxBins {
		return pygbmErrors.NewValueError(op, fmt.Sprintf(
			"max_bins=%d should be no smaller than 2 and no larger than 256", cfg.maxBins))
	}
	if cfg.nBinsPerFeature != nil && len(cfg.nBinsPerFeature) != X.Cols() {
		return pygbmErrors.NewDimensionError(op, X.Cols(), len(cfg.nBinsPerFeature), 1)
	}
	return nil
}

// initializeRoot creates the root over the whole sample set and
// evaluates its split, unless a stopping rule already applies.
func (g *TreeGrower) initializeRoot() {
	sumGradients, sumHessians := g.ctx.sumGradientsAndHessians()
	g.root = &TreeNode{
		Depth:         0,
		SampleIndices: g.ctx.partition,
		SumGradients:  sumGradients,
		SumHessians:   sumHessians,
	}
	if g.maxLeafNodes == 1 {
		g.finalizeLeaf(g.root)
		return
	}
	if uint32(g.root.NSamples()) < 2*g.ctx.minSamplesLeaf {
		// Neither child could satisfy min_samples_leaf, so the split
		// search is pointless.
		g.finalizeLeaf(g.root)
		return
	}
	g.computeSplittability(g.root, false)
}

// computeSplittability evaluates a node's best split and either queues
// the node for expansion or finalizes it as a leaf. With onlyHist set
// the node's histograms are computed but the node is not classified;
// this is used for finalized children whose sibling still needs the
// histograms for subtraction.
func (g *TreeGrower) computeSplittability(node *TreeNode, onlyHist bool) {
	if node.histograms == nil {
		start := time.Now()
		var splitInfo SplitInfo
		if node.histSubtraction {
			node.histograms, splitInfo = g.ctx.findNodeSplitSubtraction(
				node.SampleIndices, node.SumGradients, node.SumHessians,
				node.Parent.histograms, node.Sibling.histograms)
		} else {
			node.histograms, splitInfo = g.ctx.findNodeSplit(
				node.SampleIndices, node.SumGradients, node.SumHessians)
		}
		node.SplitInfo = &splitInfo
		node.findSplitTime = time.Since(start)
		g.totalFindSplitTime += node.findSplitTime
	}
	if onlyHist {
		return
	}
	if node.SplitInfo.Gain <= 0 || node.SplitInfo.Gain < g.minGainToSplit {
		g.finalizeLeaf(node)
		return
	}
	node.seq = g.seq
	g.seq++
	heap.Push(&g.splittableNodes, node)
}

// Root returns the root node of the tree under construction.
func (g *TreeGrower) Root() *TreeNode { return g.root }

// SplittableNodes returns the nodes still pending expansion, in heap
// order.
func (g *TreeGrower) SplittableNodes() []*TreeNode { return g.splittableNodes }

// FinalizedLeaves returns the leaves finalized so far, in finalization
// order.
func (g *TreeGrower) FinalizedLeaves() []*TreeNode { return g.finalizedLeaves }

// NNodes returns the number of nodes created so far.
func (g *TreeGrower) NNodes() int { return g.nNodes }

// TotalFindSplitTime returns the cumulated time spent searching splits.
func (g *TreeGrower) TotalFindSplitTime() time.Duration { return g.totalFindSplitTime }

// TotalApplySplitTime returns the cumulated time spent partitioning
// samples.
func (g *TreeGrower) TotalApplySplitTime() time.Duration { return g.totalApplySplitTime }

// CanSplitFurther reports whether any node is still pending expansion.
func (g *TreeGrower) CanSplitFurther() bool { return len(g.splittableNodes) > 0 }

// Grow expands nodes best-first until no splittable node remains.
func (g *TreeGrower) Grow() error {
	start := time.Now()
	for g.CanSplitFurther() {
		if _, _, err := g.SplitNext(); err != nil {
			return err
		}
	}
	g.logger.Debug("Grew tree",
		log.LeavesKey, len(g.finalizedLeaves),
		log.NodesKey, g.nNodes,
		log.DurationMsKey, float64(time.Since(start).Microseconds())/1000.0,
		log.FindSplitMsKey, float64(g.totalFindSplitTime.Microseconds())/1000.0,
		log.ApplySplitMsKey, float64(g.totalApplySplitTime.Microseconds())/1000.0)
	return nil
}

// SplitNext expands the splittable node with the highest gain and
// returns its two children. It fails with ErrNoSplittableNode when
// called on a fully grown tree.
func (g *TreeGrower) SplitNext() (*TreeNode, *TreeNode, error) {
	if len(g.splittableNodes) == 0 {
		return nil, nil, pygbmErrors.Wrap(ErrNoSplittableNode, "TreeGrower.SplitNext")
	}
	node := heap.Pop(&g.splittableNodes).(*TreeNode)

	start := time.Now()
	leftIndices, rightIndices := g.ctx.applySplit(node.SampleIndices, *node.SplitInfo)
	node.applySplitTime = time.Since(start)
	g.totalApplySplitTime += node.applySplitTime

	depth := node.Depth + 1
	nLeafNodes := len(g.finalizedLeaves) + len(g.splittableNodes) + 2

	left := &TreeNode{
		Depth:         depth,
		SampleIndices: leftIndices,
		SumGradients:  node.SplitInfo.GradientLeft,
		SumHessians:   node.SplitInfo.HessianLeft,
		Parent:        node,
	}
	right := &TreeNode{
		Depth:         depth,
		SampleIndices: rightIndices,
		SumGradients:  node.SplitInfo.GradientRight,
		SumHessians:   node.SplitInfo.HessianRight,
		Parent:        node,
	}
	left.Sibling, right.Sibling = right, left
	node.Left, node.Right = left, right
	g.nNodes += 2

	if g.depthLimited && depth == g.maxDepth {
		g.finalizeLeaf(left)
		g.finalizeLeaf(right)
		return left, right, nil
	}
	if nLeafNodes == g.maxLeafNodes {
		g.finalizeLeaf(left)
		g.finalizeLeaf(right)
		g.finalizeSplittableNodes()
		return left, right, nil
	}

	if uint32(left.NSamples()) < 2*g.ctx.minSamplesLeaf {
		g.finalizeLeaf(left)
	}
	if uint32(right.NSamples()) < 2*g.ctx.minSamplesLeaf {
		g.finalizeLeaf(right)
	}

	shouldSplitLeft := !left.IsLeaf
	shouldSplitRight := !right.IsLeaf
	if shouldSplitLeft || shouldSplitRight {
		// Compute both children's histograms even when one of them is
		// already a leaf: the smaller child is scanned directly and the
		// larger one is derived by subtraction, which is nearly free.
		smallest, largest := right, left
		if left.NSamples() < right.NSamples() {
			smallest, largest = left, right
		}
		largest.histSubtraction = true
		g.computeSplittability(smallest, smallest.IsLeaf)
		g.computeSplittability(largest, largest.IsLeaf)
	}
	return left, right, nil
}

// finalizeLeaf turns a node into a leaf carrying its prediction value.
func (g *TreeGrower) finalizeLeaf(node *TreeNode) {
	node.Value = -g.shrinkage * node.SumGradients / (node.SumHessians + g.ctx.l2Regularization)
	node.IsLeaf = true
	g.finalizedLeaves = append(g.finalizedLeaves, node)
}

// finalizeSplittableNodes drains the pending queue once the leaf budget
// is exhausted.
func (g *TreeGrower) finalizeSplittableNodes() {
	for len(g.splittableNodes) > 0 {
		node := heap.Pop(&g.splittableNodes).(*TreeNode)
		g.finalizeLeaf(node)
	}
}

// MakePredictor compiles the grown tree into a flat, immutable
// predictor. When binThresholds (as fitted by a BinMapper) is supplied,
// the predictor can also evaluate raw, unbinned inputs.
func (g *TreeGrower) MakePredictor(binThresholds [][]float64) (*predictor.TreePredictor, error) {
	if binThresholds != nil && len(binThresholds) != g.X.Cols() {
		return nil, pygbmErrors.NewDimensionError("TreeGrower.MakePredictor", g.X.Cols(), len(binThresholds), 1)
	}
	nodes := make([]predictor.Node, g.nNodes)
	fillPredictorNodes(nodes, g.root, binThresholds, 0)
	return predictor.NewTreePredictor(nodes, binThresholds != nil), nil
}

// fillPredictorNodes flattens the node graph in pre-order: a parent
// always precedes its children and the left subtree precedes the right.
func fillPredictorNodes(nodes []predictor.Node, node *TreeNode, binThresholds [][]float64, nextFreeIdx uint32) uint32 {
	out := &nodes[nextFreeIdx]
	out.Count = uint32(node.NSamples())
	out.Depth = uint32(node.Depth)
	if node.SplitInfo != nil {
		out.Gain = node.SplitInfo.Gain
	} else {
		out.Gain = -1
	}

	if node.IsLeaf {
		out.IsLeaf = true
		out.Value = node.Value
		return nextFreeIdx + 1
	}

	featureIdx := node.SplitInfo.FeatureIdx
	out.FeatureIdx = uint32(featureIdx)
	out.BinThreshold = node.SplitInfo.BinIdx
	if binThresholds != nil {
		out.Threshold = binThresholds[featureIdx][node.SplitInfo.BinIdx]
	}

	nextFreeIdx++
	out.Left = nextFreeIdx
	nextFreeIdx = fillPredictorNodes(nodes, node.Left, binThresholds, nextFreeIdx)
	out.Right = nextFreeIdx
	return fillPredictorNodes(nodes, node.Right, binThresholds, nextFreeIdx)
}
