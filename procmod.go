// Package procmod implements a lightweight, trace-based probabilistic
// programming inference core. The approach follows
//
//	David Wingate, Andreas Stuhlmueller, and Noah D. Goodman. "Lightweight
//	Implementations of Probabilistic Programming Languages Via
//	Transformational Compilation", AISTATS 2011.
//
// A user-supplied generative procedure draws random choices through the ERP
// entry points below and may declare likelihood adjustments with Factor. The
// package produces posterior samples of the procedure's return value under
// Metropolis-Hastings, including a parallel-tempered variant, with rejection
// and forward sampling as building blocks.
//
// Every random choice is named by a structural address built from the
// address helpers: PushAddress on entry to a lexical site, PopAddress on
// exit, and SetAddressLoopIndex before each iteration of a repetition that
// draws choices. The address, not the execution order, is what preserves the
// identity of a choice across re-executions whose control flow differs.
package procmod

import (
	"github.com/sjbertolani/procmod/erp"
	"github.com/sjbertolani/procmod/trace"
)

// Program is a user-supplied generative procedure.
type Program = trace.Program

// Flip draws a Bernoulli choice with bias p.
func Flip(p float64) bool {
	return trace.LookupOrSample(erp.Flip{P: p}).(bool)
}

// Uniform draws a continuous uniform choice on [lo, hi].
func Uniform(lo, hi float64) float64 {
	return trace.LookupOrSample(erp.Uniform{Lo: lo, Hi: hi}).(float64)
}

// Multinomial draws an index in 0..len(weights)-1 with probability
// proportional to weights. Weights need not be normalized.
func Multinomial(weights []float64) int {
	return trace.LookupOrSample(erp.Multinomial{Weights: weights}).(int)
}

// Gaussian draws a normal choice with mean mu and stddev sigma.
func Gaussian(mu, sigma float64) float64 {
	return trace.LookupOrSample(erp.Gaussian{Mu: mu, Sigma: sigma}).(float64)
}

// Factor adds x to the log-likelihood of the current execution.
func Factor(x float64) { trace.AddFactor(x) }

// Likelihood is a synonym for Factor.
func Likelihood(lp float64) { trace.AddFactor(lp) }

// ThrowZeroProbabilityError aborts the current execution as impossible. The
// enclosing sampler discards the trace: rejection sampling retries, an MH
// step rejects the proposal.
func ThrowZeroProbabilityError() { trace.Abort() }

// PushAddress enters a lexical site with the given id, extending the current
// structural address. Site ids need only be unique among siblings under the
// same parent frame.
func PushAddress(site int) { trace.PushSite(site) }

// PopAddress leaves the innermost lexical site.
func PopAddress() { trace.PopSite() }

// SetAddressLoopIndex updates the loop index of the innermost address frame,
// distinguishing iterations of an enclosing repetition. Procedures that draw
// choices inside a loop must call this before each iteration; the core does
// not detect loop boundaries on its own.
func SetAddressLoopIndex(i int) { trace.SetLoopIndex(i) }

// WithAddress runs body inside a pushed address frame, popping it on all
// exits. The raw Push/Pop operations remain available for generated code.
func WithAddress(site int, body func()) {
	PushAddress(site)
	defer PopAddress()
	body()
}
