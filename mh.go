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

// MHOptions controls a single-chain Metropolis-Hastings run. The zero value
// selects the defaults noted on each field.
type MHOptions struct {
	// NSamples is the total number of samples to emit. Defaults to 1000.
	NSamples int
	// Lag is the number of iterations per emitted sample, so the total
	// iteration count is Lag*NSamples. Defaults to 1.
	Lag int
	// TimeBudget caps the wall-clock time of the run, superseding
	// NSamples. Zero means no cap. Checked at the end of each step.
	TimeBudget time.Duration
	// Verbose prints progress and the acceptance ratio on completion.
	Verbose bool
	// Output receives verbose reporting. Defaults to os.Stderr.
	Output io.Writer
	// OnSample is called with a read-only view of the current trace every
	// Lag iterations.
	OnSample func(trace.View)
	// Temp is the likelihood temperature. Defaults to 1.
	Temp float64
	// DepthBiasedVarSelect weights proposal-site selection by exp(-depth)
	// instead of uniformly.
	DepthBiasedVarSelect bool
	// Seed seeds the sampler's RNG. Zero draws a seed from the clock.
	Seed uint64
}

func (o *MHOptions) setDefaults() error {
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
	if o.Temp == 0 {
		o.Temp = 1
	}
	if o.Temp < 0 || math.IsNaN(o.Temp) {
		return fmt.Errorf("procmod: temperature %v must be positive", o.Temp)
	}
	if o.Output == nil {
		o.Output = os.Stderr
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	return nil
}

// Stats summarizes a sampling run.
type Stats struct {
	// Proposals and Accepts count MH transitions across all chains.
	Proposals int
	Accepts   int
	// Swaps and SwapAccepts count temperature-swap proposals. Zero for
	// single-chain runs.
	Swaps       int
	SwapAccepts int
	// Elapsed is the wall time of the whole run; Replay is the portion
	// spent re-executing the generative procedure.
	Elapsed time.Duration
	Replay  time.Duration
}

// AcceptanceRate returns the fraction of accepted MH proposals.
func (s Stats) AcceptanceRate() float64 {
	if s.Proposals == 0 {
		return 0
	}
	return float64(s.Accepts) / float64(s.Proposals)
}

// ReplayShare returns the fraction of Elapsed spent replaying traces.
func (s Stats) ReplayShare() float64 {
	if s.Elapsed == 0 {
		return 0
	}
	return float64(s.Replay) / float64(s.Elapsed)
}

func (s Stats) report(w io.Writer) {
	fmt.Fprintf(w, "procmod: %d proposals, acceptance ratio %.4f", s.Proposals, s.AcceptanceRate())
	if s.Swaps > 0 {
		fmt.Fprintf(w, ", %d/%d swaps accepted", s.SwapAccepts, s.Swaps)
	}
	fmt.Fprintf(w, ", %v elapsed (%.1f%% replay)\n", s.Elapsed, 100*s.ReplayShare())
}

// MH runs single-chain Metropolis-Hastings over the given procedure,
// invoking opts.OnSample with the current trace at every lag boundary. A nil
// opts runs with all defaults.
func MH(program Program, args any, opts *MHOptions) (Stats, error) {
	if opts == nil {
		opts = &MHOptions{}
	}
	if err := opts.setDefaults(); err != nil {
		return Stats{}, err
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(opts.Seed))
	c := newChain(program, args, opts.Temp, rng)

	iters := opts.Lag * opts.NSamples
	for i := 1; i <= iters; i++ {
		c.step(opts.DepthBiasedVarSelect)
		if i%opts.Lag == 0 && opts.OnSample != nil {
			opts.OnSample(c.trace.View())
		}
		if opts.TimeBudget > 0 && time.Since(start) > opts.TimeBudget {
			break
		}
	}

	stats := Stats{
		Proposals: c.proposals,
		Accepts:   c.accepts,
		Elapsed:   time.Since(start),
		Replay:    c.replay,
	}
	if opts.Verbose {
		stats.report(opts.Output)
	}
	return stats, nil
}
