package optimize

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fxlab/internal/strategy"
)

// BestParams is the persisted outcome of a search run: the winning
// parameter set plus enough context to apply it later.
type BestParams struct {
	StrategyID string          `json:"strategy_id"`
	Instrument string          `json:"instrument"`
	Period     string          `json:"period"`
	Metric     string          `json:"metric"`
	Score      float64         `json:"score"`
	Params     strategy.Params `json:"params"`
	SavedAt    string          `json:"saved_at"`
}

// SaveBest writes the winning parameters to
// <dir>/<strategy>_<instrument>_<period>.json and returns the path.
func SaveBest(dir string, bp BestParams) (string, error) {
	if bp.SavedAt == "" {
		bp.SavedAt = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.json", bp.StrategyID, bp.Instrument, bp.Period))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadBest reads a best-parameters file written by SaveBest.
func LoadBest(path string) (*BestParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	bp := &BestParams{}
	if err := json.Unmarshal(data, bp); err != nil {
		return nil, fmt.Errorf("parsing best params %s: %w", path, err)
	}
	return bp, nil
}
