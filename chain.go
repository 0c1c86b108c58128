package procmod

import (
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sjbertolani/procmod/trace"
)

// chain is one Markov chain: a trace plus a likelihood temperature. The
// temperature scales the likelihood only; the prior is unscaled.
type chain struct {
	trace       *trace.Trace
	temperature float64
	rng         *rand.Rand

	proposals int
	accepts   int
	replay    time.Duration
}

// newChain builds the initial state by rejection sampling.
func newChain(program Program, args any, temp float64, rng *rand.Rand) *chain {
	t := trace.New(program, args, rng)
	t.Init()
	return &chain{trace: t, temperature: temp, rng: rng, replay: t.RunTime()}
}

// score is the temperature-scaled log-posterior of a trace.
func (c *chain) score(t *trace.Trace) float64 {
	return t.LogPrior() + t.LogLikelihood()/c.temperature
}

// step performs one Metropolis-Hastings transition: copy the trace, perturb
// a single record, replay, and accept or reject on the structural-diff
// corrected ratio. Reports whether the proposal was accepted.
func (c *chain) step(depthBiased bool) bool {
	c.proposals++

	nu := c.trace.Copy()
	recs := nu.Records()
	k, fwdChoiceLP := selectVariable(recs, depthBiased, c.rng)

	rec := recs[k]
	newVal, fwdlp, rvslp := rec.Kind().Propose(rec.Value(), c.rng)
	rec.SetValue(newVal)

	nu.SetProposal(rec.Index())
	err := nu.Run()
	nu.ClearProposal()
	c.replay += nu.RunTime()
	if err != nil {
		// Zero-probability proposal: reject outright.
		nu.FreeMemory()
		return false
	}

	fwdlp += fwdChoiceLP + nu.NewLogProb()
	rvslp += choiceLogProb(nu.Records(), rec.Index(), depthBiased) + nu.OldLogProb()

	delta := c.score(nu) - c.score(c.trace) + rvslp - fwdlp
	if math.Log(c.rng.Float64()) < delta {
		c.trace.FreeMemory()
		c.trace = nu
		c.accepts++
		return true
	}
	nu.FreeMemory()
	return false
}

// selectVariable picks the record to perturb and returns its index together
// with the log-probability of that choice. Depth-biased selection weights
// record i by exp(-depth_i), favoring choices near the top of the structure.
func selectVariable(recs []*trace.Record, depthBiased bool, rng *rand.Rand) (int, float64) {
	n := len(recs)
	if !depthBiased {
		return rng.Intn(n), -math.Log(float64(n))
	}
	cat := distuv.NewCategorical(depthWeights(recs), rng)
	k := int(cat.Rand())
	return k, cat.LogProb(float64(k))
}

// choiceLogProb scores the selection of index k under the given record set,
// used for the reverse variable-choice term.
func choiceLogProb(recs []*trace.Record, k int, depthBiased bool) float64 {
	if !depthBiased {
		return -math.Log(float64(len(recs)))
	}
	w := depthWeights(recs)
	return math.Log(w[k]) - math.Log(floats.Sum(w))
}

func depthWeights(recs []*trace.Record) []float64 {
	w := make([]float64, len(recs))
	for i, r := range recs {
		w[i] = math.Exp(-float64(r.Depth()))
	}
	return w
}
