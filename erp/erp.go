// Package erp implements the elementary random procedures of the inference
// core: the primitive distributions a generative procedure may draw from.
//
// Each kind knows how to sample a value, score a value under its parameters,
// and propose a single-site change together with the forward and reverse
// transition log-probabilities the Metropolis-Hastings ratio needs. Sampling
// and the flip, uniform and gaussian densities are backed by gonum's distuv
// distributions; the multinomial log-probability is computed directly from
// the weights.
package erp

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Kind is one elementary random procedure: a distribution family together
// with a concrete set of parameters.
type Kind interface {
	// Name identifies the family. Two records match for reuse iff their
	// kinds have equal names, regardless of parameters.
	Name() string

	// Validate reports a configuration error for parameters outside the
	// family's domain (negative weights, zero stddev, bias outside [0,1]).
	Validate() error

	// Sample draws a value from the distribution.
	Sample(src rand.Source) any

	// LogProb scores a value under the current parameters. Returns -Inf
	// for values outside the support.
	LogProb(v any) float64

	// Propose perturbs an existing value, returning the new value and the
	// forward and reverse transition log-probabilities.
	Propose(old any, src rand.Source) (nu any, fwd, rvs float64)

	// Clone returns a kind whose parameters do not alias the receiver's.
	Clone() Kind
}

// Flip is a Bernoulli draw with bias P, returning a bool.
type Flip struct {
	P float64
}

func (f Flip) Name() string { return "flip" }

func (f Flip) Validate() error {
	if math.IsNaN(f.P) || f.P < 0 || f.P > 1 {
		return fmt.Errorf("erp: flip bias %v outside [0,1]", f.P)
	}
	return nil
}

func (f Flip) Sample(src rand.Source) any {
	return distuv.Bernoulli{P: f.P, Src: src}.Rand() == 1
}

func (f Flip) LogProb(v any) float64 {
	b := distuv.Bernoulli{P: f.P}
	if v.(bool) {
		return b.LogProb(1)
	}
	return b.LogProb(0)
}

// Propose deterministically flips the bit. The move is its own inverse, so
// both transition log-probabilities are zero.
func (f Flip) Propose(old any, src rand.Source) (any, float64, float64) {
	return !old.(bool), 0, 0
}

func (f Flip) Clone() Kind { return f }

// Uniform is a continuous uniform draw on [Lo, Hi].
type Uniform struct {
	Lo, Hi float64
}

func (u Uniform) Name() string { return "uniform" }

func (u Uniform) Validate() error {
	if math.IsNaN(u.Lo) || math.IsNaN(u.Hi) || u.Lo > u.Hi {
		return fmt.Errorf("erp: uniform bounds [%v, %v] invalid", u.Lo, u.Hi)
	}
	return nil
}

func (u Uniform) dist(src rand.Source) distuv.Uniform {
	return distuv.Uniform{Min: u.Lo, Max: u.Hi, Src: src}
}

func (u Uniform) Sample(src rand.Source) any {
	return u.dist(src).Rand()
}

func (u Uniform) LogProb(v any) float64 {
	return u.dist(nil).LogProb(v.(float64))
}

// Propose resamples from the prior.
func (u Uniform) Propose(old any, src rand.Source) (any, float64, float64) {
	nu := u.dist(src).Rand()
	return nu, u.LogProb(nu), u.LogProb(old)
}

func (u Uniform) Clone() Kind { return u }

// Gaussian is a normal draw with mean Mu and stddev Sigma.
type Gaussian struct {
	Mu, Sigma float64
}

func (g Gaussian) Name() string { return "gaussian" }

func (g Gaussian) Validate() error {
	if math.IsNaN(g.Mu) || math.IsNaN(g.Sigma) || g.Sigma <= 0 {
		return fmt.Errorf("erp: gaussian stddev %v must be positive", g.Sigma)
	}
	return nil
}

func (g Gaussian) dist(src rand.Source) distuv.Normal {
	return distuv.Normal{Mu: g.Mu, Sigma: g.Sigma, Src: src}
}

func (g Gaussian) Sample(src rand.Source) any {
	return g.dist(src).Rand()
}

func (g Gaussian) LogProb(v any) float64 {
	return g.dist(nil).LogProb(v.(float64))
}

// Propose resamples from the prior.
func (g Gaussian) Propose(old any, src rand.Source) (any, float64, float64) {
	nu := g.dist(src).Rand()
	return nu, g.LogProb(nu), g.LogProb(old)
}

func (g Gaussian) Clone() Kind { return g }

// Multinomial is a categorical draw over indices 0..len(Weights)-1 with
// probability proportional to Weights. Weights need not be normalized.
type Multinomial struct {
	Weights []float64
}

func (m Multinomial) Name() string { return "multinomial" }

func (m Multinomial) Validate() error {
	if len(m.Weights) == 0 {
		return fmt.Errorf("erp: multinomial with no weights")
	}
	for _, w := range m.Weights {
		if math.IsNaN(w) || w < 0 {
			return fmt.Errorf("erp: multinomial weight %v negative", w)
		}
	}
	if floats.Sum(m.Weights) == 0 {
		return fmt.Errorf("erp: multinomial weights sum to zero")
	}
	return nil
}

func (m Multinomial) Sample(src rand.Source) any {
	cat := distuv.NewCategorical(m.Weights, src)
	return int(cat.Rand())
}

func (m Multinomial) LogProb(v any) float64 {
	i := v.(int)
	if i < 0 || i >= len(m.Weights) || m.Weights[i] == 0 {
		return math.Inf(-1)
	}
	return math.Log(m.Weights[i]) - math.Log(floats.Sum(m.Weights))
}

// Propose resamples from the prior conditioned on the value changing: the
// current index is excluded and the remaining weights renormalized. When no
// other index carries mass the value is kept and the move is a no-op.
func (m Multinomial) Propose(old any, src rand.Source) (any, float64, float64) {
	i := old.(int)
	rest := make([]float64, len(m.Weights))
	copy(rest, m.Weights)
	if i >= 0 && i < len(rest) {
		rest[i] = 0
	}
	total := floats.Sum(rest)
	if total == 0 {
		return old, 0, 0
	}
	cat := distuv.NewCategorical(rest, src)
	j := int(cat.Rand())
	fwd := math.Log(m.Weights[j]) - math.Log(total)
	rvs := math.Inf(-1)
	if i >= 0 && i < len(m.Weights) {
		rvs = math.Log(m.Weights[i]) - math.Log(floats.Sum(m.Weights)-m.Weights[j])
	}
	return j, fwd, rvs
}

func (m Multinomial) Clone() Kind {
	w := make([]float64, len(m.Weights))
	copy(w, m.Weights)
	return Multinomial{Weights: w}
}
