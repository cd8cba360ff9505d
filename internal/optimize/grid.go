package optimize

import (
	"context"
	"sort"
)

// Grid exhaustively evaluates the Cartesian product of the space's discrete
// values and returns every evaluated point, best score first. Every
// dimension must carry a Values list.
func (o *Optimizer) Grid(ctx context.Context, space Space) ([]Result, error) {
	combos, err := space.enumerate()
	if err != nil {
		return nil, err
	}
	o.log.Info("grid search starting", "metric", o.metric, "combinations", len(combos))

	scores, err := o.evalBatch(ctx, combos)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(combos))
	for i := range combos {
		results[i] = Result{Params: combos[i], Score: scores[i]}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	o.log.Info("grid search complete",
		"evaluations", len(results), "best_score", results[0].Score, "best_params", results[0].Params)
	return results, nil
}
