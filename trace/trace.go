// Package trace implements the structured ERP trace: a hierarchical record of
// the random choices made by one execution of a generative procedure,
// addressed by structural path. The trace drives re-execution of the
// procedure, reusing prior choices whose addresses are revisited and
// accounting for choices created or destroyed by control-flow changes.
package trace

import (
	"errors"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"github.com/sjbertolani/procmod/erp"
)

// Program is a user-supplied generative procedure. Inside the call it may
// draw random choices through the ERP entry points and declare likelihood
// adjustments; its return value is what samplers emit.
type Program func(args any) any

// ErrImpossibleTrace reports an execution whose joint probability is zero:
// either the procedure called Abort, or an ERP scored a value at -Inf
// mid-run. Rejection sampling retries on it; an MH step treats the proposal
// as rejected.
var ErrImpossibleTrace = errors.New("trace: impossible trace")

// impossible is the panic payload used to unwind the user procedure when a
// run becomes impossible. Recovered at the Run boundary.
type impossible struct{}

// active is the trace currently executing a run. The ERP entry points
// resolve against it. The core is single-threaded; a run must complete
// before another trace can be switched in.
var active *Trace

// Trace is a structured record of the random choices of one execution,
// together with the accumulated log-probabilities of the latest run. Records
// are owned exclusively by their trace; Copy clones them.
type Trace struct {
	program Program
	args    any
	rng     *rand.Rand

	records   map[string]*Record
	execOrder []*Record

	logPrior   float64
	logLik     float64
	newLogProb float64
	oldLogProb float64

	returnValue any

	// propVarIndex is the execution-order index of the record under
	// proposal during a replay, or -1. Records at or before it must replay
	// with unchanged values.
	propVarIndex int

	stack   addressStack
	runTime time.Duration
}

// New returns an empty trace for the given procedure. No run is performed;
// call Init (or Run directly) to populate it.
func New(program Program, args any, rng *rand.Rand) *Trace {
	return &Trace{
		program:      program,
		args:         args,
		rng:          rng,
		records:      make(map[string]*Record),
		propVarIndex: -1,
	}
}

// Init populates the trace by rejection sampling: independent executions are
// drawn until one with nonzero joint probability is found. Choices are not
// reused between attempts; each attempt resamples from scratch.
func (t *Trace) Init() {
	for {
		t.records = make(map[string]*Record)
		err := t.Run()
		if err != nil {
			continue
		}
		if !math.IsInf(t.LogPosterior(), -1) {
			return
		}
	}
}

// Run executes the stored procedure once, reusing prior choices whose
// addresses are revisited. On return all summary log-probabilities, the
// execution order, and the return value reflect the new run. Returns
// ErrImpossibleTrace when the execution has zero probability; invariant
// violations panic.
func (t *Trace) Run() error {
	start := time.Now()
	defer func() { t.runTime += time.Since(start) }()

	for _, r := range t.records {
		r.reachable = false
	}
	t.logPrior = 0
	t.logLik = 0
	t.newLogProb = 0
	t.oldLogProb = 0
	t.execOrder = t.execOrder[:0]
	t.stack.reset()

	if err := t.invoke(); err != nil {
		return err
	}

	if !t.stack.empty() {
		panic("trace: address stack not empty at run end")
	}
	for addr, r := range t.records {
		if !r.reachable {
			t.oldLogProb += r.logp
			delete(t.records, addr)
		}
	}
	if math.IsNaN(t.logPrior) || math.IsNaN(t.logLik) {
		panic("trace: NaN in log-probability accumulation")
	}
	return nil
}

// invoke runs the user procedure with this trace installed as the active
// one, converting an impossible-trace unwind into an error.
func (t *Trace) invoke() (err error) {
	if active != nil {
		panic("trace: run started while another run is in progress")
	}
	active = t
	defer func() {
		active = nil
		if r := recover(); r != nil {
			if _, ok := r.(impossible); ok {
				err = ErrImpossibleTrace
				return
			}
			panic(r)
		}
	}()
	t.returnValue = t.program(t.args)
	return nil
}

// lookupOrSample resolves one ERP call at the current address: either the
// existing record's value is reused (rescored under the new parameters) or a
// fresh value is sampled.
func (t *Trace) lookupOrSample(k erp.Kind) any {
	if err := k.Validate(); err != nil {
		panic(err)
	}
	key := t.stack.key()
	idx := len(t.execOrder)

	if rec, ok := t.records[key]; ok {
		if rec.reachable {
			panic("trace: duplicate address " + key)
		}
		if rec.kind.Name() == k.Name() {
			rec.kind = k.Clone()
			rec.logp = rec.kind.LogProb(rec.value)
			rec.index = idx
			rec.reachable = true
			t.execOrder = append(t.execOrder, rec)
			t.logPrior += rec.logp
			if math.IsInf(rec.logp, -1) {
				panic(impossible{})
			}
			return rec.value
		}
		if t.propVarIndex >= 0 && idx <= t.propVarIndex {
			panic("trace: kind changed at address " + key + " inside the replay prefix")
		}
		// Kind changed: the old record is dead, the call is fresh.
		t.oldLogProb += rec.logp
		delete(t.records, key)
	}

	v := k.Sample(t.rng)
	lp := k.LogProb(v)
	rec := &Record{
		addr:      key,
		kind:      k.Clone(),
		value:     v,
		depth:     t.stack.depth(),
		logp:      lp,
		index:     idx,
		reachable: true,
	}
	t.records[key] = rec
	t.execOrder = append(t.execOrder, rec)
	t.logPrior += lp
	t.newLogProb += lp
	if math.IsInf(lp, -1) {
		panic(impossible{})
	}
	return v
}

// Records returns the records of the last completed run in execution order.
// Callers must not mutate record values outside a proposal.
func (t *Trace) Records() []*Record { return t.execOrder }

// Copy returns a deep duplicate: records are cloned so that mutations to
// either trace never alias the other. The program, arguments, and RNG stream
// are shared.
func (t *Trace) Copy() *Trace {
	c := &Trace{
		program:      t.program,
		args:         t.args,
		rng:          t.rng,
		records:      make(map[string]*Record, len(t.records)),
		execOrder:    make([]*Record, 0, len(t.execOrder)),
		logPrior:     t.logPrior,
		logLik:       t.logLik,
		newLogProb:   t.newLogProb,
		oldLogProb:   t.oldLogProb,
		returnValue:  t.returnValue,
		propVarIndex: -1,
	}
	for _, r := range t.execOrder {
		cr := r.clone()
		c.records[cr.addr] = cr
		c.execOrder = append(c.execOrder, cr)
	}
	return c
}

// FreeMemory releases the record storage of a trace that lost a proposal.
func (t *Trace) FreeMemory() {
	t.records = nil
	t.execOrder = nil
}

// SetProposal marks the record at execution-order index i as the variable
// under proposal for the next Run.
func (t *Trace) SetProposal(i int) { t.propVarIndex = i }

// ClearProposal resets the proposal gate after a replay.
func (t *Trace) ClearProposal() { t.propVarIndex = -1 }

// LogPrior returns the summed log-density of all records visited by the
// latest run.
func (t *Trace) LogPrior() float64 { return t.logPrior }

// LogLikelihood returns the summed explicit likelihood contributions of the
// latest run.
func (t *Trace) LogLikelihood() float64 { return t.logLik }

// LogPosterior returns LogPrior() + LogLikelihood().
func (t *Trace) LogPosterior() float64 { return t.logPrior + t.logLik }

// NewLogProb returns the summed log-density of records freshly sampled on
// the latest run.
func (t *Trace) NewLogProb() float64 { return t.newLogProb }

// OldLogProb returns the summed log-density of records that the latest run
// left unreachable and reaped.
func (t *Trace) OldLogProb() float64 { return t.oldLogProb }

// ReturnValue returns the value the procedure returned on the latest run.
func (t *Trace) ReturnValue() any { return t.returnValue }

// RunTime returns the accumulated wall time this trace has spent inside Run.
func (t *Trace) RunTime() time.Duration { return t.runTime }

// View is a read-only window onto a trace, handed to sample callbacks. It
// exposes the completed run's return value, score, and records while keeping
// the trace's mutating surface (proposals, Run, FreeMemory) out of reach.
type View struct {
	t *Trace
}

// View returns a read-only view of the trace's latest completed run.
func (t *Trace) View() View { return View{t: t} }

// ReturnValue returns the value the procedure returned on the latest run.
func (v View) ReturnValue() any { return v.t.returnValue }

// LogPosterior returns the trace's log-prior plus log-likelihood.
func (v View) LogPosterior() float64 { return v.t.LogPosterior() }

// Records returns the records of the latest run in execution order. Callers
// must not mutate record values.
func (v View) Records() []*Record { return v.t.execOrder }

// The functions below are the dispatch surface the ERP entry points resolve
// through. They act on the trace whose Run is in progress.

func mustActive() *Trace {
	if active == nil {
		panic("trace: ERP call outside a run")
	}
	return active
}

// LookupOrSample resolves an ERP call against the active trace.
func LookupOrSample(k erp.Kind) any { return mustActive().lookupOrSample(k) }

// AddFactor adds x to the active trace's log-likelihood.
func AddFactor(x float64) { mustActive().logLik += x }

// Abort unwinds the current run as an impossible trace.
func Abort() { panic(impossible{}) }

// PushSite enters a lexical site, extending the current address.
func PushSite(site int) { mustActive().stack.push(site) }

// PopSite leaves the innermost lexical site.
func PopSite() { mustActive().stack.pop() }

// SetLoopIndex updates the loop index of the innermost address frame. A
// procedure that draws choices inside a repetition must call this before
// each iteration; the core cannot detect loop boundaries on its own.
func SetLoopIndex(i int) { mustActive().stack.setLoopIndex(i) }
