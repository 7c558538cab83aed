package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"listingprice/pipeline"
)

// TreeEnsemble is a gradient boosted regression tree model. The prediction is
// the base score plus the leaf value reached in every tree.
type TreeEnsemble struct {
	name      string
	transform Transform
	baseScore float64
	features  pipeline.Schema
	trees     []Tree
}

// Tree is a flattened regression tree. Node 0 is the root and children always
// come after their parent.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode is either a split or a leaf. Numeric splits send values
// <= Threshold left; categorical splits send the listed codes left. Missing
// values follow DefaultLeft.
type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold,omitempty"`
	Categories  []int   `json:"categories,omitempty"`
	DefaultLeft bool    `json:"default_left,omitempty"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	Value       float64 `json:"value"`
	IsLeaf      bool    `json:"is_leaf"`
}

type artifact struct {
	Name            string          `json:"name"`
	TargetTransform Transform       `json:"target_transform"`
	BaseScore       float64         `json:"base_score"`
	Features        pipeline.Schema `json:"features"`
	Trees           []Tree          `json:"trees"`
}

// NewTreeEnsemble validates and builds an ensemble. An empty transform means
// the target was log transformed.
func NewTreeEnsemble(name string, transform Transform, baseScore float64, features pipeline.Schema, trees []Tree) (*TreeEnsemble, error) {
	if transform == "" {
		transform = TransformLog
	}
	if !transform.Valid() {
		return nil, fmt.Errorf("unknown target transform %q", transform)
	}
	if len(features) == 0 {
		return nil, errors.New("model declares no features")
	}
	if len(trees) == 0 {
		return nil, errors.New("model has no trees")
	}
	for _, f := range features {
		if f.Kind == pipeline.KindText {
			return nil, fmt.Errorf("feature %q: text features are not supported", f.Name)
		}
	}
	for i, tree := range trees {
		if err := tree.validate(features); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &TreeEnsemble{
		name:      name,
		transform: transform,
		baseScore: baseScore,
		features:  features,
		trees:     trees,
	}, nil
}

func (m *TreeEnsemble) Name() string {
	return m.name
}

func (m *TreeEnsemble) Features() pipeline.Schema {
	out := make(pipeline.Schema, len(m.features))
	copy(out, m.features)
	return out
}

func (m *TreeEnsemble) TargetTransform() Transform {
	return m.transform
}

// Predict returns the raw (untransformed) model output for one row.
func (m *TreeEnsemble) Predict(features []float64) (float64, error) {
	if len(features) != len(m.features) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.features), len(features))
	}
	sum := m.baseScore
	for _, tree := range m.trees {
		sum += tree.predict(features)
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, errors.New("model produced a non-finite value")
	}
	return sum, nil
}

// Save writes the ensemble as a JSON artifact.
func (m *TreeEnsemble) Save(path string) error {
	payload, err := json.MarshalIndent(artifact{
		Name:            m.name,
		TargetTransform: m.transform,
		BaseScore:       m.baseScore,
		Features:        m.features,
		Trees:           m.trees,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (t Tree) predict(features []float64) float64 {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.Value
		}
		if node.goesLeft(features[node.FeatureIdx]) {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

func (n TreeNode) goesLeft(v float64) bool {
	if math.IsNaN(v) {
		return n.DefaultLeft
	}
	if n.Categories != nil {
		code := int(v)
		for _, c := range n.Categories {
			if c == code {
				return true
			}
		}
		return false
	}
	return v <= n.Threshold
}

func (t Tree) validate(features pipeline.Schema) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, node := range t.Nodes {
		if node.IsLeaf {
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		feature := features[node.FeatureIdx]
		if node.Categories != nil {
			if feature.Kind != pipeline.KindCategorical {
				return fmt.Errorf("node %d: categorical split on %s feature %q", i, feature.Kind, feature.Name)
			}
			for _, c := range node.Categories {
				if c < 0 || c >= len(feature.Categories) {
					return fmt.Errorf("node %d: category code %d out of range for %q", i, c, feature.Name)
				}
			}
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d: invalid child %d", i, child)
			}
		}
	}
	return nil
}
