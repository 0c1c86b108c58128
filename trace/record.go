package trace

import "github.com/sjbertolani/procmod/erp"

// Record is one random choice made during an execution: the structural
// address that names it, the distribution it was drawn from, and its current
// value. Records are owned exclusively by the trace that created them.
type Record struct {
	addr      string
	kind      erp.Kind
	value     any
	depth     int
	logp      float64
	index     int
	reachable bool
}

// Address returns the structural address naming the choice. Immutable for
// the record's lifetime.
func (r *Record) Address() string { return r.addr }

// Kind returns the distribution the choice was drawn from, under the
// parameters seen on the most recent visit.
func (r *Record) Kind() erp.Kind { return r.kind }

// Value returns the current sampled value.
func (r *Record) Value() any { return r.value }

// Depth returns the address-stack depth at which the record was created.
func (r *Record) Depth() int { return r.depth }

// LogProb returns log P(value | params) under the latest parameters.
func (r *Record) LogProb() float64 { return r.logp }

// Index returns the record's position in execution order of the most recent
// run.
func (r *Record) Index() int { return r.index }

// SetValue installs a proposed value and rescores the record under its
// current parameters.
func (r *Record) SetValue(v any) {
	r.value = v
	r.logp = r.kind.LogProb(v)
}

func (r *Record) clone() *Record {
	c := *r
	c.kind = r.kind.Clone()
	return &c
}
