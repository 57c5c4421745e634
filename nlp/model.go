// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nlp defines the evaluation contract of a nonlinear program
//
//	minimize 𝒇(𝐱)  subject to  𝒍ᶜ ≤ 𝒄(𝐱) ≤ 𝒖ᶜ,  𝒍ˣ ≤ 𝐱 ≤ 𝒖ˣ
//
// together with its immutable metadata and evaluation counters.
//
// Indices are 0-based. Sparse matrices are given in coordinate format as
// parallel row, column and value slices; the Hessian of the Lagrangian
// stores its lower triangle only.
package nlp

// Model is the capability contract every concrete problem satisfies.
//
// Methods write into caller-owned output buffers, which are never read and
// must not alias an input. On error nothing has been written to the outputs.
// A Model is not safe for concurrent use.
type Model interface {
	// Meta returns the problem metadata.
	Meta() *Meta
	// Counters returns the evaluation tallies of the innermost concrete model.
	Counters() *Counters

	// Obj evaluates 𝒇(𝐱).
	Obj(x []float64) (float64, error)
	// Grad evaluates ∇𝒇(𝐱) into g (nvar).
	Grad(x, g []float64) error
	// Cons evaluates 𝒄(𝐱) into c (ncon).
	Cons(x, c []float64) error
	// JacCoord evaluates the Jacobian 𝐉(𝐱) into rows, cols, vals (nnzj).
	// The (rows, cols) pattern is identical across calls on the same model.
	JacCoord(x []float64, rows, cols []int, vals []float64) error
	// JProd evaluates 𝐉(𝐱)𝐯 into jv (ncon) for v (nvar).
	JProd(x, v, jv []float64) error
	// JTProd evaluates 𝐉(𝐱)ᵀ𝐯 into jtv (nvar) for v (ncon).
	JTProd(x, v, jtv []float64) error
	// HessCoord evaluates the lower triangle of σ∇²𝒇(𝐱) + ∑ yⱼ∇²𝒄ⱼ(𝐱)
	// into rows, cols, vals (nnzh), where σ is objWeight.
	HessCoord(x []float64, objWeight float64, y []float64, rows, cols []int, vals []float64) error
	// HProd evaluates (σ∇²𝒇(𝐱) + ∑ yⱼ∇²𝒄ⱼ(𝐱))𝐯 into hv (nvar).
	HProd(x []float64, objWeight float64, y, v, hv []float64) error
}

// Gradient allocates and returns ∇𝒇(𝐱).
func Gradient(m Model, x []float64) ([]float64, error) {
	g := make([]float64, m.Meta().NVar())
	if err := m.Grad(x, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Constraints allocates and returns 𝒄(𝐱).
func Constraints(m Model, x []float64) ([]float64, error) {
	c := make([]float64, m.Meta().NCon())
	if err := m.Cons(x, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Jacobian allocates and returns the coordinate triple of 𝐉(𝐱).
func Jacobian(m Model, x []float64) (rows, cols []int, vals []float64, err error) {
	nnz := m.Meta().NNZJ()
	rows, cols, vals = make([]int, nnz), make([]int, nnz), make([]float64, nnz)
	if err = m.JacCoord(x, rows, cols, vals); err != nil {
		return nil, nil, nil, err
	}
	return
}

// JacVec allocates and returns 𝐉(𝐱)𝐯.
func JacVec(m Model, x, v []float64) ([]float64, error) {
	jv := make([]float64, m.Meta().NCon())
	if err := m.JProd(x, v, jv); err != nil {
		return nil, err
	}
	return jv, nil
}

// JacTVec allocates and returns 𝐉(𝐱)ᵀ𝐯.
func JacTVec(m Model, x, v []float64) ([]float64, error) {
	jtv := make([]float64, m.Meta().NVar())
	if err := m.JTProd(x, v, jtv); err != nil {
		return nil, err
	}
	return jtv, nil
}

// Hessian allocates and returns the lower triangle coordinate triple of the Lagrangian Hessian.
func Hessian(m Model, x []float64, objWeight float64, y []float64) (rows, cols []int, vals []float64, err error) {
	nnz := m.Meta().NNZH()
	rows, cols, vals = make([]int, nnz), make([]int, nnz), make([]float64, nnz)
	if err = m.HessCoord(x, objWeight, y, rows, cols, vals); err != nil {
		return nil, nil, nil, err
	}
	return
}

// HessVec allocates and returns the Lagrangian Hessian times v.
func HessVec(m Model, x []float64, objWeight float64, y, v []float64) ([]float64, error) {
	hv := make([]float64, m.Meta().NVar())
	if err := m.HProd(x, objWeight, y, v, hv); err != nil {
		return nil, err
	}
	return hv, nil
}
