// Package plotting renders fitted trees as graphviz graphs and
// training score histories as line charts.
package plotting

import (
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	pygbmErrors "github.com/amueller/pygbm/pkg/errors"
	"github.com/amueller/pygbm/predictor"
)

// TreeGraph builds a graphviz graph of a fitted tree: one box per
// node, internal nodes labeled with their split and gain, leaves with
// their value and sample count, edges labeled <= and >. featureNames
// may be nil, features are then named f0, f1, ...
//
// The caller owns both returned handles and must Close them.
func TreeGraph(tp *predictor.TreePredictor, featureNames []string) (*graphviz.Graphviz, *cgraph.Graph, error) {
	if tp == nil || len(tp.Nodes) == 0 {
		return nil, nil, pygbmErrors.NewValueError("plotting.TreeGraph", "predictor has no nodes")
	}

	gv := graphviz.New()
	graph, err := gv.Graph()
	if err != nil {
		return nil, nil, err
	}

	fail := func(err error) (*graphviz.Graphviz, *cgraph.Graph, error) {
		graph.Close()
		gv.Close()
		return nil, nil, err
	}

	nodes := make([]*cgraph.Node, len(tp.Nodes))
	for i := range tp.Nodes {
		node, err := graph.CreateNode(fmt.Sprintf("%d", i))
		if err != nil {
			return fail(err)
		}
		node.Set("shape", "box")
		node.Set("label", nodeLabel(&tp.Nodes[i], tp.HasThresholds, featureNames))
		nodes[i] = node
	}

	for i := range tp.Nodes {
		n := &tp.Nodes[i]
		if n.IsLeaf {
			continue
		}
		left, err := graph.CreateEdge("", nodes[i], nodes[n.Left])
		if err != nil {
			return fail(err)
		}
		left.SetLabel("<=")
		right, err := graph.CreateEdge("", nodes[i], nodes[n.Right])
		if err != nil {
			return fail(err)
		}
		right.SetLabel(">")
	}
	return gv, graph, nil
}

// SaveTreePNG renders the tree to a PNG file.
func SaveTreePNG(tp *predictor.TreePredictor, featureNames []string, path string) error {
	return pygbmErrors.SafeExecute("tree rendering", func() (err error) {
		gv, graph, err := TreeGraph(tp, featureNames)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := graph.Close(); cerr != nil && err == nil {
				err = cerr
			}
			gv.Close()
		}()
		return gv.RenderFilename(graph, graphviz.PNG, path)
	})
}

// nodeLabel formats the multi-line box label of one node. Predictors
// compiled without bin thresholds show the bin index instead of the
// real-valued threshold.
func nodeLabel(n *predictor.Node, hasThresholds bool, featureNames []string) string {
	if n.IsLeaf {
		return fmt.Sprintf("value: %.5g\nsamples: %d", n.Value, n.Count)
	}
	name := fmt.Sprintf("f%d", n.FeatureIdx)
	if int(n.FeatureIdx) < len(featureNames) {
		name = featureNames[n.FeatureIdx]
	}
	split := fmt.Sprintf("%s <= bin %d", name, n.BinThreshold)
	if hasThresholds {
		split = fmt.Sprintf("%s <= %.5g", name, n.Threshold)
	}
	return fmt.Sprintf("%s\ngain: %.4g\nsamples: %d", split, n.Gain, n.Count)
}
