package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadModel reads a model artifact from path. Every failure is returned as a
// *ModelLoadError.
func LoadModel(modelType, path string) (Regressor, error) {
	switch modelType {
	case "", "tree_ensemble", "gbdt", "lgbm":
		model, err := loadTreeEnsemble(path)
		if err != nil {
			return nil, &ModelLoadError{Path: path, Err: err}
		}
		return model, nil
	default:
		return nil, &ModelLoadError{Path: path, Err: fmt.Errorf("unsupported model type %q", modelType)}
	}
}

func loadTreeEnsemble(path string) (*TreeEnsemble, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return NewTreeEnsemble(a.Name, a.TargetTransform, a.BaseScore, a.Features, a.Trees)
}
