// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates first derivatives by finite differences.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
package numdiff

import (
	"errors"
	"fmt"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

// Method selects the difference scheme.
type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use central difference in interior points and the second order accuracy
	// forward or backward difference near the boundary.
	Central
)

func (m Method) String() string {
	switch m {
	case Forward:
		return "forward"
	case Central:
		return "central"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ErrOutOfBounds reports a point outside the bounds of the independent variables.
var ErrOutOfBounds = errors.New("numdiff: point violates bounds")

// Approx estimates the M×N Jacobian of a vector function 𝒇 : ℝᴺ → ℝᴹ.
// The workspace is kept between calls so an Approx is not safe for concurrent use.
type Approx struct {
	N, M int
	// Func evaluates 𝒇(𝐱) into y (M). It must not retain x.
	Func func(x, y []float64)
	// Method is the difference scheme.
	Method Method
	// Lower and Upper optionally bound the independent variables (±∞ or NaN for none).
	// Steps are adjusted so that 𝒇 is never evaluated outside the bounds.
	Lower, Upper []float64
	// RelStep gives the absolute step h = RelStep × sign(x) × |x|.
	// When zero, h = ε × sign(x) × max(1, |x|) with ε chosen by Method.
	RelStep float64
	// AbsStep is the absolute step, possibly adjusted to fit into the bounds.
	// It takes precedence over RelStep. Central ignores its sign.
	AbsStep float64
	// SkipBoundCheck accepts a point x0 outside the bounds.
	SkipBoundCheck bool

	lb, ub  []float64
	h       []float64
	oneSide []bool
	f0      []float64
	f1, f2  []float64
}

func (a *Approx) prepare(x0, jac []float64) error {
	switch {
	case a.N <= 0 || a.M <= 0:
		return errors.New("numdiff: dimensions must be positive")
	case a.Method != Forward && a.Method != Central:
		return errors.New("numdiff: unknown method")
	case a.Func == nil:
		return errors.New("numdiff: function is required")
	case len(x0) != a.N:
		return fmt.Errorf("numdiff: len(x0)=%d, want %d", len(x0), a.N)
	case len(jac) != a.N*a.M:
		return fmt.Errorf("numdiff: len(jac)=%d, want %d", len(jac), a.N*a.M)
	case a.Lower != nil && len(a.Lower) != a.N:
		return fmt.Errorf("numdiff: len(lower)=%d, want %d", len(a.Lower), a.N)
	case a.Upper != nil && len(a.Upper) != a.N:
		return fmt.Errorf("numdiff: len(upper)=%d, want %d", len(a.Upper), a.N)
	}

	if len(a.h) != a.N {
		a.h = make([]float64, a.N)
		a.lb = make([]float64, a.N)
		a.ub = make([]float64, a.N)
		a.oneSide = make([]bool, a.N)
	}
	if len(a.f0) != a.M {
		a.f0 = make([]float64, a.M)
		a.f1 = make([]float64, a.M)
		a.f2 = make([]float64, a.M)
	}

	for i := range a.lb {
		l, u := math.Inf(-1), math.Inf(1)
		if a.Lower != nil && !math.IsNaN(a.Lower[i]) {
			l = a.Lower[i]
		}
		if a.Upper != nil && !math.IsNaN(a.Upper[i]) {
			u = a.Upper[i]
		}
		if l > u {
			return fmt.Errorf("numdiff: bound at %d is [%g, %g]", i, l, u)
		}
		if !a.SkipBoundCheck && (x0[i] < l || x0[i] > u) {
			return fmt.Errorf("numdiff: x0[%d]=%g outside [%g, %g]: %w", i, x0[i], l, u, ErrOutOfBounds)
		}
		a.lb[i], a.ub[i] = l, u
	}
	return nil
}

// Jacobian stores into jac the row-major M×N estimate of 𝒇′(x0).
// x0 is used as scratch and restored before returning.
func (a *Approx) Jacobian(x0, jac []float64) error {
	if err := a.prepare(x0, jac); err != nil {
		return err
	}

	a.initialStep(x0)
	a.fitBounds(x0)

	if a.Method == Central {
		a.central(x0, jac)
	} else {
		a.forward(x0, jac)
	}
	return nil
}

// Gradient estimates ∇𝒇(x0) of a scalar function into g.
func Gradient(f func(x []float64) float64, method Method, lower, upper, x0, g []float64) error {
	a := Approx{
		N: len(x0), M: 1,
		Func:   func(x, y []float64) { y[0] = f(x) },
		Method: method,
		Lower:  lower, Upper: upper,
	}
	return a.Jacobian(x0, g)
}

func (a *Approx) initialStep(x0 []float64) {
	eps := sqrtEps
	if a.Method == Central {
		eps = cubeEps
	}

	for i, v := range x0 {
		s := a.AbsStep
		if s == 0 && a.RelStep != 0 {
			s = math.Copysign(a.RelStep, v) * math.Abs(v)
		}
		// fall back to the automatic step when the given one vanishes at x0
		if s == 0 || (v+s)-v == 0 {
			s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
		a.h[i] = s
	}
}

func (a *Approx) fitBounds(x0 []float64) {
	h, side := a.h, a.oneSide
	if a.Method == Central {
		for i := range h {
			h[i] = math.Abs(h[i])
			side[i] = false
		}
	}

	for i, x := range x0 {
		lb, ub := a.lb[i], a.ub[i]
		if math.IsInf(lb, -1) && math.IsInf(ub, 1) {
			continue
		}
		below, above := x-lb, ub-x

		if a.Method == Forward {
			step := h[i]
			outside := x+step < lb || x+step > ub
			fits := math.Abs(step) < math.Max(below, above)
			switch {
			case outside && fits:
				h[i] = -step
			case !fits && above >= below:
				h[i] = above
			case !fits:
				h[i] = -below
			}
			continue
		}

		inside := below >= h[i] && above >= h[i]
		if !inside {
			side[i] = true
			if above >= below {
				h[i] = math.Min(h[i], 0.5*above)
			} else {
				h[i] = -math.Min(h[i], 0.5*below)
			}
			if nearest := math.Min(above, below); math.Abs(h[i]) <= nearest {
				h[i] = nearest
				side[i] = false
			}
		}
	}
}

func (a *Approx) forward(x0, jac []float64) {
	f0, f1, n := a.f0, a.f1, a.N

	a.Func(x0, f0)
	for i, s := range a.h {
		xi := x0[i]
		x0[i] = xi + s
		a.Func(x0, f1)
		x0[i] = xi
		inv := 1.0 / s
		for j := range f0 {
			jac[j*n+i] = (f1[j] - f0[j]) * inv
		}
	}
}

func (a *Approx) central(x0, jac []float64) {
	f0, f1, f2, n := a.f0, a.f1, a.f2, a.N

	a.Func(x0, f0)
	for i, s := range a.h {
		xi := x0[i]
		inv := 1.0 / (2 * s)
		if a.oneSide[i] {
			x0[i] = xi + s
			a.Func(x0, f1)
			x0[i] = xi + 2*s
			a.Func(x0, f2)
			x0[i] = xi
			for j := range f0 {
				jac[j*n+i] = (4*f1[j] - 3*f0[j] - f2[j]) * inv
			}
		} else {
			x0[i] = xi - s
			a.Func(x0, f1)
			x0[i] = xi + s
			a.Func(x0, f2)
			x0[i] = xi
			for j := range f0 {
				jac[j*n+i] = (f2[j] - f1[j]) * inv
			}
		}
	}
}
