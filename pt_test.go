package procmod

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sjbertolani/procmod/trace"
)

// valley is a two-mode mixture with a deep valley between the modes,
// expressed as a uniform prior reweighted by the mixture density.
func valley(sep float64) Program {
	m1 := distuv.Normal{Mu: -sep, Sigma: 0.5}
	m2 := distuv.Normal{Mu: sep, Sigma: 0.5}
	return func(any) any {
		x := Uniform(-sep-6, sep+6)
		Factor(floats.LogSumExp([]float64{
			math.Log(0.5) + m1.LogProb(x),
			math.Log(0.5) + m2.LogProb(x),
		}))
		return x
	}
}

// With every temperature equal to 1 the ladder is a set of independent
// chains and every swap proposal is accepted.
func TestMHPTEqualTemperatures(t *testing.T) {
	stats, err := MHPT(coin(0.5), nil, &PTOptions{
		NSamples:         200,
		Temps:            []float64{1, 1, 1},
		TempSwapInterval: 10,
		Seed:             1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Swaps == 0 {
		t.Fatal("no swaps proposed")
	}
	if stats.SwapAccepts != stats.Swaps {
		t.Errorf("accepted %d of %d swaps, want all", stats.SwapAccepts, stats.Swaps)
	}
	if got, want := stats.Proposals, 3*200; got != want {
		t.Errorf("proposals %d, want %d across the ladder", got, want)
	}
}

func TestMHPTCrossesValley(t *testing.T) {
	var values []float64
	_, err := MHPT(valley(4), nil, &PTOptions{
		NSamples:         15000,
		Temps:            []float64{1, 2, 4, 8},
		TempSwapInterval: 10,
		Seed:             2,
		OnSample: func(tr trace.View, temp float64) {
			if temp == 1 {
				values = append(values, tr.ReturnValue().(float64))
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(values) == 0 {
		t.Fatal("cold chain emitted no samples")
	}
	var high int
	for _, v := range values {
		if v > 0 {
			high++
		}
	}
	frac := float64(high) / float64(len(values))
	if frac < 0.25 || frac > 0.75 {
		t.Errorf("cold-chain mode occupancy %v, want balanced in [0.25, 0.75]", frac)
	}
}

// The control case for the tempered run above: a single cold chain cannot
// cross the valley and stays in whichever mode it initialized into.
func TestSingleChainStuckInOneMode(t *testing.T) {
	var values []float64
	_, err := MH(valley(4), nil, &MHOptions{
		NSamples: 15000,
		Seed:     2,
		OnSample: collectFloats(&values),
	})
	if err != nil {
		t.Fatal(err)
	}
	var high int
	for _, v := range values {
		if v > 0 {
			high++
		}
	}
	frac := float64(high) / float64(len(values))
	if minority := math.Min(frac, 1-frac); minority >= 0.1 {
		t.Errorf("single-chain minority-mode occupancy %v, want < 0.1", minority)
	}
}

// Samples are emitted for every chain at its own lag boundary, tagged with
// the chain's current temperature.
func TestMHPTOnSampleAllChains(t *testing.T) {
	temps := map[float64]int{}
	calls := 0
	_, err := MHPT(coin(0.5), nil, &PTOptions{
		NSamples:         100,
		Temps:            []float64{1, 2, 4},
		TempSwapInterval: 10,
		Seed:             3,
		OnSample: func(tr trace.View, temp float64) {
			temps[temp]++
			calls++
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := calls, 3*100; got != want {
		t.Errorf("onSample called %d times, want %d", got, want)
	}
	for _, T := range []float64{1, 2, 4} {
		if temps[T] == 0 {
			t.Errorf("no samples observed at temperature %v", T)
		}
	}
}

func TestMHPTConfigErrors(t *testing.T) {
	for _, test := range []struct {
		Name string
		Opts PTOptions
	}{
		{Name: "NoTemps", Opts: PTOptions{}},
		{Name: "SingleTemp", Opts: PTOptions{Temps: []float64{1}}},
		{Name: "ZeroTemp", Opts: PTOptions{Temps: []float64{1, 0}}},
		{Name: "NegativeTemp", Opts: PTOptions{Temps: []float64{1, -2}}},
		{Name: "NaNTemp", Opts: PTOptions{Temps: []float64{1, math.NaN()}}},
		{Name: "NegativeNSamples", Opts: PTOptions{Temps: []float64{1, 2}, NSamples: -1}},
		{Name: "NegativeSwapInterval", Opts: PTOptions{Temps: []float64{1, 2}, TempSwapInterval: -1}},
	} {
		opts := test.Opts
		if _, err := MHPT(coin(0.5), nil, &opts); err == nil {
			t.Errorf("Case %s: no configuration error", test.Name)
		}
	}
}

func TestMHPTDeterminism(t *testing.T) {
	run := func() []float64 {
		var values []float64
		_, err := MHPT(gaussMean(1.2, 0.5), nil, &PTOptions{
			NSamples:         100,
			Temps:            []float64{1, 4},
			TempSwapInterval: 5,
			Seed:             4,
			OnSample: func(tr trace.View, temp float64) {
				if v, ok := tr.ReturnValue().(float64); ok {
					values = append(values, v)
				}
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		return values
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("sample counts diverged: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d diverged: %v vs %v", i, a[i], b[i])
		}
	}
}
