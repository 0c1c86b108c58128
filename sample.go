package procmod

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"github.com/sjbertolani/procmod/trace"
)

// RejectionSample draws n independent samples of the procedure's return
// value, rerunning from scratch until each execution has nonzero joint
// probability.
func RejectionSample(program Program, args any, n int) ([]any, error) {
	if n <= 0 {
		return nil, fmt.Errorf("procmod: rejection sample count %d must be positive", n)
	}
	rng := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		t := trace.New(program, args, rng)
		t.Init()
		out = append(out, t.ReturnValue())
		t.FreeMemory()
	}
	return out, nil
}

// ForwardSample runs the procedure once from the prior, without rejecting on
// the likelihood. Returns ErrImpossibleTrace if the single execution aborts.
func ForwardSample(program Program, args any) (any, error) {
	rng := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	t := trace.New(program, args, rng)
	if err := t.Run(); err != nil {
		return nil, err
	}
	return t.ReturnValue(), nil
}
