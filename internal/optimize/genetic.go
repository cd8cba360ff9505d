package optimize

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"fxlab/internal/strategy"
)

// GeneticConfig holds the parameters of a genetic search run. Zero values
// are replaced by defaults.
type GeneticConfig struct {
	PopulationSize int     // default 50
	Generations    int     // default 30
	CrossoverRate  float64 // default 0.7
	MutationRate   float64 // default 0.2
	EliteCount     int     // default 5
	TournamentSize int     // default 3
	Seed           int64   // 0 means seed from the clock
}

func (c *GeneticConfig) setDefaults() {
	if c.PopulationSize == 0 {
		c.PopulationSize = 50
	}
	if c.Generations == 0 {
		c.Generations = 30
	}
	if c.CrossoverRate == 0 {
		c.CrossoverRate = 0.7
	}
	if c.MutationRate == 0 {
		c.MutationRate = 0.2
	}
	if c.EliteCount == 0 {
		c.EliteCount = 5
	}
	if c.TournamentSize == 0 {
		c.TournamentSize = 3
	}
}

// Genetic runs a generational genetic search over the space: tournament
// selection, single-point crossover, per-gene mutation, and elitism. It
// returns every evaluated point across all generations, best first. A fixed
// Seed makes the run reproducible; evaluation still fans out to the worker
// pool.
func (o *Optimizer) Genetic(ctx context.Context, space Space, cfg GeneticConfig) ([]Result, error) {
	cfg.setDefaults()
	if len(space) == 0 {
		return nil, errors.New("empty search space")
	}
	if cfg.EliteCount > cfg.PopulationSize {
		cfg.EliteCount = cfg.PopulationSize
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	o.log.Info("genetic search starting",
		"metric", o.metric, "population", cfg.PopulationSize, "generations", cfg.Generations, "seed", seed)

	pop := make([][]float64, cfg.PopulationSize)
	for i := range pop {
		pop[i] = space.randomGenome(rng)
	}

	var all []Result
	for gen := 0; gen < cfg.Generations; gen++ {
		batch := make([]strategy.Params, len(pop))
		for i, g := range pop {
			batch[i] = space.decode(g)
		}
		scores, err := o.evalBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i := range batch {
			all = append(all, Result{Params: batch[i], Score: scores[i]})
		}

		order := rankDesc(scores)
		o.log.Info("generation complete",
			"generation", gen, "best_score", scores[order[0]], "best_params", batch[order[0]])

		if gen == cfg.Generations-1 {
			break
		}

		next := make([][]float64, 0, cfg.PopulationSize)
		for i := 0; i < cfg.EliteCount; i++ {
			next = append(next, cloneGenome(pop[order[i]]))
		}
		for len(next) < cfg.PopulationSize {
			p1 := o.tournament(rng, pop, scores, cfg.TournamentSize)
			p2 := o.tournament(rng, pop, scores, cfg.TournamentSize)
			c1, c2 := crossover(rng, p1, p2, cfg.CrossoverRate)
			space.mutate(rng, c1, cfg.MutationRate)
			next = append(next, c1)
			if len(next) < cfg.PopulationSize {
				space.mutate(rng, c2, cfg.MutationRate)
				next = append(next, c2)
			}
		}
		pop = next
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	o.log.Info("genetic search complete",
		"evaluations", len(all), "best_score", all[0].Score, "best_params", all[0].Params)
	return all, nil
}

// tournament draws k random individuals and returns a copy of the fittest.
func (o *Optimizer) tournament(rng *rand.Rand, pop [][]float64, scores []float64, k int) []float64 {
	best := rng.Intn(len(pop))
	for i := 1; i < k; i++ {
		c := rng.Intn(len(pop))
		if scores[c] > scores[best] {
			best = c
		}
	}
	return cloneGenome(pop[best])
}

// crossover mixes two parent genomes at a single random cut point with
// probability rate, otherwise returns plain copies.
func crossover(rng *rand.Rand, p1, p2 []float64, rate float64) ([]float64, []float64) {
	c1 := cloneGenome(p1)
	c2 := cloneGenome(p2)
	if len(p1) < 2 || rng.Float64() >= rate {
		return c1, c2
	}
	cut := 1 + rng.Intn(len(p1)-1)
	for i := cut; i < len(p1); i++ {
		c1[i], c2[i] = c2[i], c1[i]
	}
	return c1, c2
}

// randomGenome samples one genome uniformly from the space.
func (s Space) randomGenome(rng *rand.Rand) []float64 {
	g := make([]float64, len(s))
	for i, d := range s {
		if len(d.Values) > 0 {
			g[i] = d.Values[rng.Intn(len(d.Values))]
			continue
		}
		v := d.Min + rng.Float64()*(d.Max-d.Min)
		if d.Integer {
			v = math.Round(v)
		}
		g[i] = v
	}
	return g
}

// mutate perturbs each gene independently with probability rate: a fresh
// choice for discrete dimensions, a clamped gaussian step for continuous
// ones.
func (s Space) mutate(rng *rand.Rand, g []float64, rate float64) {
	for i, d := range s {
		if rng.Float64() >= rate {
			continue
		}
		if len(d.Values) > 0 {
			g[i] = d.Values[rng.Intn(len(d.Values))]
			continue
		}
		sigma := d.Sigma
		if sigma == 0 {
			sigma = 0.1 * (d.Max - d.Min)
		}
		v := g[i] + rng.NormFloat64()*sigma
		if v < d.Min {
			v = d.Min
		}
		if v > d.Max {
			v = d.Max
		}
		if d.Integer {
			v = math.Round(v)
		}
		g[i] = v
	}
}

// decode turns a genome into a named parameter set.
func (s Space) decode(g []float64) strategy.Params {
	p := make(strategy.Params, len(s))
	for i, d := range s {
		p[d.Name] = g[i]
	}
	return p
}

func cloneGenome(g []float64) []float64 {
	c := make([]float64, len(g))
	copy(c, g)
	return c
}

// rankDesc returns the indices of scores sorted from best to worst.
func rankDesc(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })
	return order
}
