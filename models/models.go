// Package models collects small generative procedures used by the tests and
// the command-line driver: a biased coin, a conjugate Gaussian-mean
// posterior, a bimodal mixture, a truncated uniform, and a recursive
// branching tree in the procedural-modeling style.
package models

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sjbertolani/procmod"
)

// Coin returns a procedure that flips a coin with the given bias and returns
// the outcome. The posterior equals the prior.
func Coin(bias float64) procmod.Program {
	return func(any) any {
		return procmod.Flip(bias)
	}
}

// GaussianMean returns a procedure with a standard normal prior on x and a
// Gaussian observation of x at obs with stddev obsSigma. The posterior over
// x is conjugate; GaussianMeanPosterior gives its moments.
func GaussianMean(obs, obsSigma float64) procmod.Program {
	lik := distuv.Normal{Mu: 0, Sigma: obsSigma}
	return func(any) any {
		x := procmod.Gaussian(0, 1)
		lik.Mu = x
		procmod.Factor(lik.LogProb(obs))
		return x
	}
}

// GaussianMeanPosterior returns the analytic posterior mean and stddev for
// GaussianMean with a N(0,1) prior.
func GaussianMeanPosterior(obs, obsSigma float64) (mean, sigma float64) {
	prec := 1 + 1/(obsSigma*obsSigma)
	return obs / (obsSigma * obsSigma) / prec, math.Sqrt(1 / prec)
}

// Bimodal returns a procedure whose return value switches between two
// well-separated Gaussian modes on a fair coin. The branch choice changes
// the control flow, so the two branches hold choices at distinct addresses.
func Bimodal(sep float64) procmod.Program {
	return func(any) any {
		b := procmod.Flip(0.5)
		if b {
			var v float64
			procmod.WithAddress(1, func() {
				v = procmod.Gaussian(sep, 1)
			})
			return v
		}
		var v float64
		procmod.WithAddress(2, func() {
			v = procmod.Gaussian(-sep, 1)
		})
		return v
	}
}

// BimodalValley returns a two-mode mixture target with a deep valley between
// the modes, expressed as a uniform prior reweighted by the mixture density.
// A single cold chain mixes poorly across the valley; a tempered ladder
// crosses it.
func BimodalValley(sep float64) procmod.Program {
	lo, hi := -sep-6, sep+6
	m1 := distuv.Normal{Mu: -sep, Sigma: 0.5}
	m2 := distuv.Normal{Mu: sep, Sigma: 0.5}
	return func(any) any {
		x := procmod.Uniform(lo, hi)
		// log(0.5 N(x; -sep, 0.5) + 0.5 N(x; sep, 0.5)).
		procmod.Factor(floats.LogSumExp([]float64{
			math.Log(0.5) + m1.LogProb(x),
			math.Log(0.5) + m2.LogProb(x),
		}))
		return x
	}
}

// TruncatedUniform returns a procedure drawing uniformly on [lo, hi] and
// rejecting everything at or below cut. Exercises rejection initialization.
func TruncatedUniform(lo, hi, cut float64) procmod.Program {
	return func(any) any {
		x := procmod.Uniform(lo, hi)
		if x <= cut {
			procmod.Factor(math.Inf(-1))
		}
		return x
	}
}

// DeepShallow returns a procedure with one choice at the top level and
// several under a deep recursion, for exercising depth-biased selection.
func DeepShallow(deep int) procmod.Program {
	var descend func(level int) float64
	descend = func(level int) float64 {
		if level == 0 {
			return procmod.Gaussian(0, 1)
		}
		var v float64
		procmod.WithAddress(1, func() {
			v = descend(level - 1)
		})
		return v
	}
	return func(any) any {
		total := procmod.Gaussian(0, 1)
		for i := 0; i < deep; i++ {
			procmod.PushAddress(2)
			procmod.SetAddressLoopIndex(i)
			total += descend(3)
			procmod.PopAddress()
		}
		return total
	}
}
