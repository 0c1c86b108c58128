package models

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sjbertolani/procmod"
)

// TreeParams configures the recursive branching-tree procedure.
type TreeParams struct {
	// ContinueProb is the chance each segment of a limb extends into
	// another one; BranchProb is the chance a limb splits in two.
	ContinueProb float64
	BranchProb   float64
	// MaxSegments bounds the segment chain of one limb; MaxDepth bounds
	// the recursion.
	MaxSegments int
	MaxDepth    int
	// TargetSize, when positive, scores the generated tree with a
	// Gaussian penalty (stddev SizeTol) on its total segment count,
	// giving the posterior a shape preference.
	TargetSize float64
	SizeTol    float64
}

// Branch is one limb of a generated tree.
type Branch struct {
	Length   float64
	Angle    float64
	Segments int
	Children []*Branch
}

// Size returns the total segment count of the subtree.
func (b *Branch) Size() int {
	n := b.Segments
	for _, c := range b.Children {
		n += c.Size()
	}
	return n
}

// Tree returns a recursive branching-tree procedure. Every limb draws an
// angle, grows a chain of segments governed by continue flips, and may split
// into two children governed by a branch flip.
//
// The segment loop draws choices under an incrementing counter, so it calls
// SetAddressLoopIndex before each iteration. Without that call the flips of
// different iterations would collide at one address; the core cannot detect
// loop boundaries on its own.
func Tree(p TreeParams) procmod.Program {
	var grow func(depth int) *Branch
	grow = func(depth int) *Branch {
		b := &Branch{}
		procmod.WithAddress(1, func() {
			b.Angle = procmod.Gaussian(0, 0.3)
		})
		for i := 0; i < p.MaxSegments; i++ {
			procmod.PushAddress(2)
			procmod.SetAddressLoopIndex(i)
			cont := procmod.Flip(p.ContinueProb)
			var seg float64
			if cont {
				procmod.WithAddress(1, func() {
					seg = procmod.Uniform(0.5, 2.0)
				})
			}
			procmod.PopAddress()
			if !cont {
				break
			}
			b.Length += seg
			b.Segments++
		}
		if depth < p.MaxDepth {
			split := false
			procmod.WithAddress(3, func() {
				split = procmod.Flip(p.BranchProb)
			})
			if split {
				for c := 0; c < 2; c++ {
					procmod.PushAddress(4)
					procmod.SetAddressLoopIndex(c)
					b.Children = append(b.Children, grow(depth+1))
					procmod.PopAddress()
				}
			}
		}
		return b
	}

	return func(any) any {
		root := grow(0)
		if p.TargetSize > 0 {
			tol := p.SizeTol
			if tol == 0 {
				tol = 1
			}
			pen := distuv.Normal{Mu: p.TargetSize, Sigma: tol}
			procmod.Factor(pen.LogProb(float64(root.Size())))
		}
		return root
	}
}
