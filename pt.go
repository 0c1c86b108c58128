package procmod

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"golang.org/x/exp/rand"

	"github.com/sjbertolani/procmod/trace"
)

// PTOptions controls a parallel-tempered Metropolis-Hastings run.
type PTOptions struct {
	// NSamples and Lag behave as in MHOptions, applied per chain.
	// TimeBudget caps the wall-clock time of the whole run.
	NSamples   int
	Lag        int
	TimeBudget time.Duration
	// Verbose prints aggregate statistics on completion; Output defaults
	// to os.Stderr.
	Verbose bool
	Output  io.Writer
	// OnSample is called at every chain's lag boundary with a read-only
	// view of that chain's trace and its current temperature. Callers
	// interested only in the posterior filter on temp == 1.
	OnSample func(v trace.View, temp float64)
	// Temps is the temperature ladder, ordered by the caller; only
	// adjacent positions ever swap. Must have at least two entries.
	Temps []float64
	// TempSwapInterval is the number of steps each chain advances between
	// swap proposals. Defaults to 10.
	TempSwapInterval int
	// DepthBiasedVarSelect weights proposal-site selection by exp(-depth).
	DepthBiasedVarSelect bool
	// Seed seeds the sampler's RNG. Zero draws a seed from the clock.
	Seed uint64
}

func (o *PTOptions) setDefaults() error {
	if o.NSamples == 0 {
		o.NSamples = 1000
	}
	if o.NSamples < 0 {
		return fmt.Errorf("procmod: NSamples %d negative", o.NSamples)
	}
	if o.Lag == 0 {
		o.Lag = 1
	}
	if o.Lag < 0 {
		return fmt.Errorf("procmod: Lag %d negative", o.Lag)
	}
	if o.TimeBudget < 0 {
		return fmt.Errorf("procmod: TimeBudget %v negative", o.TimeBudget)
	}
	if len(o.Temps) < 2 {
		return fmt.Errorf("procmod: parallel tempering needs at least 2 temperatures, got %d", len(o.Temps))
	}
	for _, T := range o.Temps {
		if T <= 0 || math.IsNaN(T) {
			return fmt.Errorf("procmod: temperature %v must be positive", T)
		}
	}
	if o.TempSwapInterval == 0 {
		o.TempSwapInterval = 10
	}
	if o.TempSwapInterval < 0 {
		return fmt.Errorf("procmod: TempSwapInterval %d negative", o.TempSwapInterval)
	}
	if o.Output == nil {
		o.Output = os.Stderr
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	return nil
}

// MHPT runs parallel tempering: a ladder of chains advanced round-robin on a
// single thread, with temperature swaps proposed between adjacent positions
// every TempSwapInterval steps. Chains start from one shared
// rejection-sampled trace, duplicated across the ladder.
func MHPT(program Program, args any, opts *PTOptions) (Stats, error) {
	if opts == nil {
		opts = &PTOptions{}
	}
	if err := opts.setDefaults(); err != nil {
		return Stats{}, err
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(opts.Seed))

	first := newChain(program, args, opts.Temps[0], rng)
	chains := make([]*chain, 0, len(opts.Temps))
	chains = append(chains, first)
	for _, T := range opts.Temps[1:] {
		chains = append(chains, &chain{trace: first.trace.Copy(), temperature: T, rng: rng})
	}

	var stats Stats
	iters := opts.Lag * opts.NSamples
	done := 0
	for done < iters {
		n := opts.TempSwapInterval
		if rem := iters - done; rem < n {
			n = rem
		}
		budgetHit := false
		for _, c := range chains {
			for s := 1; s <= n; s++ {
				c.step(opts.DepthBiasedVarSelect)
				if (done+s)%opts.Lag == 0 && opts.OnSample != nil {
					opts.OnSample(c.trace.View(), c.temperature)
				}
				if opts.TimeBudget > 0 && time.Since(start) > opts.TimeBudget {
					budgetHit = true
					break
				}
			}
			if budgetHit {
				break
			}
		}
		if budgetHit {
			break
		}
		done += n

		// Propose exchanging temperatures between a uniformly chosen
		// adjacent pair. Traces stay put; only the temperatures move.
		j := rng.Intn(len(chains) - 1)
		a, b := chains[j], chains[j+1]
		lpa, lpb := a.trace.LogPosterior(), b.trace.LogPosterior()
		delta := (lpa/b.temperature + lpb/a.temperature) -
			(lpa/a.temperature + lpb/b.temperature)
		stats.Swaps++
		if math.Log(rng.Float64()) < delta {
			a.temperature, b.temperature = b.temperature, a.temperature
			stats.SwapAccepts++
		}
	}

	for _, c := range chains {
		stats.Proposals += c.proposals
		stats.Accepts += c.accepts
		stats.Replay += c.replay
	}
	stats.Elapsed = time.Since(start)
	if opts.Verbose {
		stats.report(opts.Output)
	}
	return stats, nil
}
