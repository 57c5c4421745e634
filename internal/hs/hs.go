// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hs provides small constrained problems in the spirit of the
// Hock–Schittkowski collection, bound through the backend adapter with
// analytic derivatives.
package hs

import (
	"math"

	"github.com/curioloop/nlpmodels/backend"
	"github.com/curioloop/nlpmodels/nlp"
)

var inf = math.Inf(1)

// HS6 is Hock–Schittkowski problem 6:
//
//	minimize (1 - x₀)²  subject to  10(x₁ - x₀²) = 0
//
// It has a single equality so its slack reformulation is the identity.
func HS6(opts ...backend.Option) (*backend.Model, error) {
	spec := nlp.MetaSpec{
		Name: "HS6",
		NVar: 2, NCon: 1,
		X0:   []float64{-1.2, 1},
		LCon: []float64{0}, UCon: []float64{0},
		Nln:  []int{0},
		NNZJ: 2, NNZH: 1,
	}
	meta, err := spec.New()
	if err != nil {
		return nil, err
	}
	return backend.New(meta, backend.Callbacks{
		Obj: func(x []float64) float64 { return (1 - x[0]) * (1 - x[0]) },
		Grad: func(x, g []float64) {
			g[0] = -2 * (1 - x[0])
			g[1] = 0
		},
		Cons: func(x, c []float64) { c[0] = 10 * (x[1] - x[0]*x[0]) },
		JacStruct: func(rows, cols []int) {
			copy(rows, []int{0, 0})
			copy(cols, []int{0, 1})
		},
		JacVals: func(x, vals []float64) {
			vals[0] = -20 * x[0]
			vals[1] = 10
		},
		HessStruct: func(rows, cols []int) {
			rows[0], cols[0] = 0, 0
		},
		HessVals: func(x []float64, w float64, y, vals []float64) {
			vals[0] = 2*w - 20*y[0]
		},
	}, opts...)
}

// HS21 is Hock–Schittkowski problem 21, a bounded quadratic with one linear inequality:
//
//	minimize 0.01x₀² + x₁² - 100  subject to  10x₀ - x₁ ≥ 10,  2 ≤ x₀ ≤ 50,  -50 ≤ x₁ ≤ 50
func HS21(opts ...backend.Option) (*backend.Model, error) {
	spec := nlp.MetaSpec{
		Name: "HS21",
		NVar: 2, NCon: 1,
		X0:   []float64{-1, -1},
		LVar: []float64{2, -50}, UVar: []float64{50, 50},
		LCon: []float64{10}, UCon: []float64{inf},
		NNZJ: 2, NNZH: 2,
	}
	meta, err := spec.New()
	if err != nil {
		return nil, err
	}
	return backend.New(meta, backend.Callbacks{
		Obj: func(x []float64) float64 { return 0.01*x[0]*x[0] + x[1]*x[1] - 100 },
		Grad: func(x, g []float64) {
			g[0] = 0.02 * x[0]
			g[1] = 2 * x[1]
		},
		Cons: func(x, c []float64) { c[0] = 10*x[0] - x[1] },
		JacStruct: func(rows, cols []int) {
			copy(rows, []int{0, 0})
			copy(cols, []int{0, 1})
		},
		JacVals: func(x, vals []float64) {
			vals[0], vals[1] = 10, -1
		},
		HessStruct: func(rows, cols []int) {
			copy(rows, []int{0, 1})
			copy(cols, []int{0, 1})
		},
		HessVals: func(x []float64, w float64, y, vals []float64) {
			vals[0], vals[1] = 0.02*w, 2*w
		},
	}, opts...)
}

// Ranged is the two-variable problem with one constraint of each kind except lower-only:
//
//	minimize (x₀ - 1)² + (x₁ - 2)²
//	subject to  x₀ - x₁ = 0,  x₀² + x₁ ≤ 5,  1 ≤ x₀x₁ ≤ 3
//
// so jfix = {0}, jupp = {1} and jrng = {2}. Every product has its own callback.
func Ranged(opts ...backend.Option) (*backend.Model, error) {
	spec := nlp.MetaSpec{
		Name: "Ranged",
		NVar: 2, NCon: 3,
		X0:   []float64{1, 1},
		LCon: []float64{0, -inf, 1}, UCon: []float64{0, 5, 3},
		Lin: []int{0}, Nln: []int{1, 2},
		NNZJ: 6, NNZH: 3,
	}
	meta, err := spec.New()
	if err != nil {
		return nil, err
	}
	return backend.New(meta, backend.Callbacks{
		Obj: func(x []float64) float64 {
			return (x[0]-1)*(x[0]-1) + (x[1]-2)*(x[1]-2)
		},
		Grad: func(x, g []float64) {
			g[0] = 2 * (x[0] - 1)
			g[1] = 2 * (x[1] - 2)
		},
		Cons: func(x, c []float64) {
			c[0] = x[0] - x[1]
			c[1] = x[0]*x[0] + x[1]
			c[2] = x[0] * x[1]
		},
		JacStruct: func(rows, cols []int) {
			copy(rows, []int{0, 0, 1, 1, 2, 2})
			copy(cols, []int{0, 1, 0, 1, 0, 1})
		},
		JacVals: func(x, vals []float64) {
			copy(vals, []float64{1, -1, 2 * x[0], 1, x[1], x[0]})
		},
		JProd: func(x, v, jv []float64) {
			jv[0] = v[0] - v[1]
			jv[1] = 2*x[0]*v[0] + v[1]
			jv[2] = x[1]*v[0] + x[0]*v[1]
		},
		JTProd: func(x, v, jtv []float64) {
			jtv[0] = v[0] + 2*x[0]*v[1] + x[1]*v[2]
			jtv[1] = -v[0] + v[1] + x[0]*v[2]
		},
		HessStruct: func(rows, cols []int) {
			copy(rows, []int{0, 1, 1})
			copy(cols, []int{0, 0, 1})
		},
		HessVals: func(x []float64, w float64, y, vals []float64) {
			vals[0] = 2*w + 2*y[1]
			vals[1] = y[2]
			vals[2] = 2 * w
		},
		HProd: func(x []float64, w float64, y, v, hv []float64) {
			hv[0] = (2*w+2*y[1])*v[0] + y[2]*v[1]
			hv[1] = y[2]*v[0] + 2*w*v[1]
		},
	}, opts...)
}

// Mixed is a three-variable problem with one constraint in every partition:
//
//	minimize x₀² + x₀x₁ + sin(x₂) + x₁²x₂
//	subject to  x₀ + x₁ + x₂ = 1        (fix)
//	            x₀² + x₁² ≥ 1           (low)
//	            x₀x₂ ≤ 2                (upp)
//	            -1 ≤ exp(x₁) - x₂ ≤ 4   (rng)
//	            x₁x₂ free               (free)
//	            -2 ≤ x₀ ≤ 2, x₁ ≥ 0
//
// Only coordinate callbacks are given: every product is formed by the adapter.
func Mixed(opts ...backend.Option) (*backend.Model, error) {
	spec := nlp.MetaSpec{
		Name: "Mixed",
		NVar: 3, NCon: 5,
		X0:   []float64{0.5, 1, 0.5},
		LVar: []float64{-2, 0, -inf}, UVar: []float64{2, inf, inf},
		LCon: []float64{1, 1, -inf, -1, -inf},
		UCon: []float64{1, inf, 2, 4, inf},
		Lin:  []int{0}, Nln: []int{1, 2, 3, 4},
		NNZJ: 11, NNZH: 6,
	}
	meta, err := spec.New()
	if err != nil {
		return nil, err
	}
	return backend.New(meta, backend.Callbacks{
		Obj: func(x []float64) float64 {
			return x[0]*x[0] + x[0]*x[1] + math.Sin(x[2]) + x[1]*x[1]*x[2]
		},
		Grad: func(x, g []float64) {
			g[0] = 2*x[0] + x[1]
			g[1] = x[0] + 2*x[1]*x[2]
			g[2] = math.Cos(x[2]) + x[1]*x[1]
		},
		Cons: func(x, c []float64) {
			c[0] = x[0] + x[1] + x[2]
			c[1] = x[0]*x[0] + x[1]*x[1]
			c[2] = x[0] * x[2]
			c[3] = math.Exp(x[1]) - x[2]
			c[4] = x[1] * x[2]
		},
		JacStruct: func(rows, cols []int) {
			copy(rows, []int{0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4})
			copy(cols, []int{0, 1, 2, 0, 1, 0, 2, 1, 2, 1, 2})
		},
		JacVals: func(x, vals []float64) {
			copy(vals, []float64{
				1, 1, 1,
				2 * x[0], 2 * x[1],
				x[2], x[0],
				math.Exp(x[1]), -1,
				x[2], x[1],
			})
		},
		HessStruct: func(rows, cols []int) {
			copy(rows, []int{0, 1, 1, 2, 2, 2})
			copy(cols, []int{0, 0, 1, 0, 1, 2})
		},
		HessVals: func(x []float64, w float64, y, vals []float64) {
			vals[0] = 2*w + 2*y[1]
			vals[1] = w
			vals[2] = 2*x[2]*w + 2*y[1] + y[3]*math.Exp(x[1])
			vals[3] = y[2]
			vals[4] = 2*x[1]*w + y[4]
			vals[5] = -math.Sin(x[2]) * w
		},
	}, opts...)
}
