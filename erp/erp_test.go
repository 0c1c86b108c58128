package erp

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
)

func TestValidate(t *testing.T) {
	for _, test := range []struct {
		Name string
		Kind Kind
		OK   bool
	}{
		{Name: "FlipHalf", Kind: Flip{P: 0.5}, OK: true},
		{Name: "FlipZero", Kind: Flip{P: 0}, OK: true},
		{Name: "FlipOne", Kind: Flip{P: 1}, OK: true},
		{Name: "FlipNegative", Kind: Flip{P: -0.1}, OK: false},
		{Name: "FlipAboveOne", Kind: Flip{P: 1.1}, OK: false},
		{Name: "FlipNaN", Kind: Flip{P: math.NaN()}, OK: false},
		{Name: "Uniform", Kind: Uniform{Lo: 0, Hi: 1}, OK: true},
		{Name: "UniformPoint", Kind: Uniform{Lo: 2, Hi: 2}, OK: true},
		{Name: "UniformInverted", Kind: Uniform{Lo: 1, Hi: 0}, OK: false},
		{Name: "Gaussian", Kind: Gaussian{Mu: 0, Sigma: 1}, OK: true},
		{Name: "GaussianZeroSigma", Kind: Gaussian{Mu: 0, Sigma: 0}, OK: false},
		{Name: "GaussianNegSigma", Kind: Gaussian{Mu: 0, Sigma: -1}, OK: false},
		{Name: "Multinomial", Kind: Multinomial{Weights: []float64{1, 2, 3}}, OK: true},
		{Name: "MultinomialUnnormalized", Kind: Multinomial{Weights: []float64{10, 30}}, OK: true},
		{Name: "MultinomialEmpty", Kind: Multinomial{}, OK: false},
		{Name: "MultinomialNegative", Kind: Multinomial{Weights: []float64{1, -1}}, OK: false},
		{Name: "MultinomialAllZero", Kind: Multinomial{Weights: []float64{0, 0, 0}}, OK: false},
	} {
		err := test.Kind.Validate()
		if test.OK && err != nil {
			t.Errorf("Case %s: unexpected error %v", test.Name, err)
		}
		if !test.OK && err == nil {
			t.Errorf("Case %s: validation passed, want error", test.Name)
		}
	}
}

func TestFlipLogProb(t *testing.T) {
	f := Flip{P: 0.3}
	if got, want := f.LogProb(true), math.Log(0.3); math.Abs(got-want) > 1e-12 {
		t.Errorf("logprob(true) = %v, want %v", got, want)
	}
	if got, want := f.LogProb(false), math.Log(0.7); math.Abs(got-want) > 1e-12 {
		t.Errorf("logprob(false) = %v, want %v", got, want)
	}
}

// A flip with bias 0 can never come up true, and with bias 1 never false.
func TestFlipBoundaries(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		if (Flip{P: 0}).Sample(rng).(bool) {
			t.Fatal("flip(0) sampled true")
		}
		if !(Flip{P: 1}).Sample(rng).(bool) {
			t.Fatal("flip(1) sampled false")
		}
	}
	if !math.IsInf((Flip{P: 0}).LogProb(true), -1) {
		t.Error("flip(0) logprob(true) is not -Inf")
	}
	if !math.IsInf((Flip{P: 1}).LogProb(false), -1) {
		t.Error("flip(1) logprob(false) is not -Inf")
	}
}

func TestFlipProposeInvolution(t *testing.T) {
	f := Flip{P: 0.3}
	rng := rand.New(rand.NewSource(1))
	nu, fwd, rvs := f.Propose(true, rng)
	if nu.(bool) != false || fwd != 0 || rvs != 0 {
		t.Errorf("propose(true) = (%v, %v, %v), want (false, 0, 0)", nu, fwd, rvs)
	}
	nu, _, _ = f.Propose(nu, rng)
	if nu.(bool) != true {
		t.Error("double flip did not restore the value")
	}
}

func TestUniformLogProb(t *testing.T) {
	u := Uniform{Lo: 2, Hi: 6}
	if got, want := u.LogProb(3.0), -math.Log(4); math.Abs(got-want) > 1e-12 {
		t.Errorf("logprob in range = %v, want %v", got, want)
	}
	if !math.IsInf(u.LogProb(7.0), -1) {
		t.Error("logprob above range is not -Inf")
	}
	if !math.IsInf(u.LogProb(1.0), -1) {
		t.Error("logprob below range is not -Inf")
	}
}

// A degenerate interval concentrates all mass at the single point.
func TestUniformPointInterval(t *testing.T) {
	u := Uniform{Lo: 2, Hi: 2}
	if !math.IsInf(u.LogProb(2.0), 1) {
		t.Error("logprob at the point is not +Inf")
	}
	if !math.IsInf(u.LogProb(3.0), -1) {
		t.Error("logprob off the point is not -Inf")
	}
}

func TestUniformSampleInRange(t *testing.T) {
	u := Uniform{Lo: -1, Hi: 2}
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		v := u.Sample(rng).(float64)
		if v < -1 || v > 2 {
			t.Fatalf("sample %v outside [-1, 2]", v)
		}
	}
}

func TestGaussianLogProb(t *testing.T) {
	g := Gaussian{Mu: 1, Sigma: 2}
	// Closed form at the mean: -log(sigma*sqrt(2 pi)).
	want := -math.Log(2 * math.Sqrt(2*math.Pi))
	if got := g.LogProb(1.0); math.Abs(got-want) > 1e-12 {
		t.Errorf("logprob at mean = %v, want %v", got, want)
	}
}

func TestPriorResampleKernels(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, test := range []struct {
		Name string
		Kind Kind
		Old  any
	}{
		{Name: "Uniform", Kind: Uniform{Lo: 0, Hi: 10}, Old: 4.0},
		{Name: "Gaussian", Kind: Gaussian{Mu: 0, Sigma: 1}, Old: 0.5},
	} {
		nu, fwd, rvs := test.Kind.Propose(test.Old, rng)
		if got := test.Kind.LogProb(nu); got != fwd {
			t.Errorf("Case %s: fwd = %v, want logprob(new) = %v", test.Name, fwd, got)
		}
		if got := test.Kind.LogProb(test.Old); got != rvs {
			t.Errorf("Case %s: rvs = %v, want logprob(old) = %v", test.Name, rvs, got)
		}
	}
}

func TestMultinomialLogProb(t *testing.T) {
	m := Multinomial{Weights: []float64{1, 3}}
	if got, want := m.LogProb(1), math.Log(0.75); math.Abs(got-want) > 1e-12 {
		t.Errorf("logprob(1) = %v, want %v", got, want)
	}
	if !math.IsInf(m.LogProb(5), -1) {
		t.Error("logprob out of range is not -Inf")
	}
	if !math.IsInf((Multinomial{Weights: []float64{1, 0}}).LogProb(1), -1) {
		t.Error("logprob of a zero-weight index is not -Inf")
	}
}

// The multinomial kernel resamples conditioned on the value changing, so the
// proposed index always differs from the current one and the transition
// log-probabilities renormalize over the reduced weight mass.
func TestMultinomialProposeChangesValue(t *testing.T) {
	m := Multinomial{Weights: []float64{2, 3, 5}}
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 300; i++ {
		old := i % 3
		nu, fwd, rvs := m.Propose(old, rng)
		j := nu.(int)
		if j == old {
			t.Fatalf("proposal kept index %d", old)
		}
		wantFwd := math.Log(m.Weights[j]) - math.Log(10-m.Weights[old])
		if math.Abs(fwd-wantFwd) > 1e-12 {
			t.Fatalf("fwd = %v, want %v", fwd, wantFwd)
		}
		wantRvs := math.Log(m.Weights[old]) - math.Log(10-m.Weights[j])
		if math.Abs(rvs-wantRvs) > 1e-12 {
			t.Fatalf("rvs = %v, want %v", rvs, wantRvs)
		}
	}
}

// With mass on a single index there is nowhere to move; the kernel keeps the
// value as a no-op.
func TestMultinomialProposeSingleMass(t *testing.T) {
	m := Multinomial{Weights: []float64{0, 1}}
	rng := rand.New(rand.NewSource(5))
	nu, fwd, rvs := m.Propose(1, rng)
	if nu.(int) != 1 || fwd != 0 || rvs != 0 {
		t.Errorf("propose = (%v, %v, %v), want (1, 0, 0)", nu, fwd, rvs)
	}
}

func TestMultinomialCloneIndependence(t *testing.T) {
	m := Multinomial{Weights: []float64{1, 2}}
	c := m.Clone().(Multinomial)
	c.Weights[0] = 100
	if m.Weights[0] != 1 {
		t.Error("clone aliases the original weights")
	}
}

func TestSampleDeterminism(t *testing.T) {
	for _, k := range []Kind{
		Flip{P: 0.5},
		Uniform{Lo: 0, Hi: 1},
		Gaussian{Mu: 0, Sigma: 1},
		Multinomial{Weights: []float64{1, 2, 3}},
	} {
		a := k.Sample(rand.New(rand.NewSource(42)))
		b := k.Sample(rand.New(rand.NewSource(42)))
		if a != b {
			t.Errorf("%s: same seed gave %v and %v", k.Name(), a, b)
		}
	}
}
