// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slack rewrites a general nonlinear program into one with only
// equality constraints and bounds by introducing slack variables.
//
// Every constraint with a finite bound that is not an equality
//
//	𝒍ⱼ ≤ 𝒄ⱼ(𝐱) ≤ 𝒖ⱼ
//
// becomes 𝒄ⱼ(𝐱) - 𝒔ₖ = 0 with the bound 𝒍ⱼ ≤ 𝒔ₖ ≤ 𝒖ⱼ moved to the slack 𝒔ₖ.
// The variable vector of the reformulated problem is 𝐗 = [𝐱; 𝒔] where the
// slacks are ordered [𝒔ₗ; 𝒔ᵤ; 𝒔ᵣ] following jlow, jupp and jrng of the base.
//
// Constraints free on both sides get no slack and stay free.
package slack

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/nlpmodels/nlp"
)

// Model is the slack reformulation of a base model. It evaluates nothing by
// itself: every operation delegates to the base on the leading n coordinates
// and adds the constant contribution of the slack block.
type Model struct {
	base nlp.Model
	meta *nlp.Meta
	n    int
	// rows maps slack k to its constraint row in [jlow; jupp; jrng] order.
	rows []int
}

// New returns the slack reformulation of base. When base has no inequality
// constraint there is nothing to reformulate and base itself is returned,
// so the result is not always a *Model.
//
// New panics with an error wrapping nlp.ErrPartitionInvariant when the base
// metadata partitions are inconsistent.
func New(base nlp.Model) nlp.Model {
	sm, ok := newModel(base)
	if !ok {
		return base
	}
	return sm
}

func newModel(base nlp.Model) (*Model, bool) {
	bm := base.Meta()
	if err := bm.Validate(); err != nil {
		panic(err)
	}

	jlow, jupp, jrng := bm.JLow(), bm.JUpp(), bm.JRng()
	ns := len(jlow) + len(jupp) + len(jrng)
	if ns == 0 {
		return nil, false
	}

	n, m := bm.NVar(), bm.NCon()
	rows := slices.Concat(jlow, jupp, jrng)

	lcon, ucon := bm.LCon(), bm.UCon()
	lvar := slices.Concat(bm.LVar(), make([]float64, ns))
	uvar := slices.Concat(bm.UVar(), make([]float64, ns))
	for k, j := range rows {
		lvar[n+k], uvar[n+k] = lcon[j], ucon[j]
	}

	lc, uc := make([]float64, m), make([]float64, m)
	for _, j := range bm.JFix() {
		lc[j], uc[j] = lcon[j], ucon[j]
	}
	for _, j := range bm.JFree() {
		lc[j], uc[j] = math.Inf(-1), math.Inf(1)
	}

	name := bm.Name()
	if name == "" {
		name = "Generic"
	}

	spec := nlp.MetaSpec{
		Name:            name + "-slack",
		NVar:            n + ns,
		NCon:            m,
		X0:              slices.Concat(bm.X0(), make([]float64, ns)),
		Y0:              bm.Y0(),
		LVar:            lvar,
		UVar:            uvar,
		LCon:            lc,
		UCon:            uc,
		Lin:             bm.Lin(),
		Nln:             bm.Nln(),
		NNZJ:            bm.NNZJ() + ns,
		NNZH:            bm.NNZH(),
		Sparse:          true,
		LinearObjective: bm.LinearObjective(),
		Maximize:        !bm.Minimize(),
	}
	meta, err := spec.New()
	if err != nil {
		// the base metadata already satisfied every check
		panic(fmt.Errorf("slack: derive metadata: %v: %w", err, nlp.ErrPartitionInvariant))
	}

	return &Model{base: base, meta: meta, n: n, rows: rows}, true
}

// Base returns the wrapped model.
func (sm *Model) Base() nlp.Model { return sm.base }

// NSlack returns the number of slack variables.
func (sm *Model) NSlack() int { return len(sm.rows) }

// SlackRows returns the constraint row of every slack in [jlow; jupp; jrng] order.
func (sm *Model) SlackRows() []int { return slices.Clone(sm.rows) }

// Split returns views of the original variables and of the slacks of X.
func (sm *Model) Split(X []float64) (x, s []float64) {
	if len(X) != sm.meta.NVar() {
		panic("slack: split dimension not match")
	}
	return X[:sm.n:sm.n], X[sm.n:]
}

// Slacks evaluates the base constraints at x and stores into s the values
// that make every reformulated equality hold: 𝒔ₖ = 𝒄ⱼ(𝐱).
// It costs one constraint evaluation of the base.
func (sm *Model) Slacks(x, s []float64) error {
	if err := nlp.CheckLen("slacks", "s", len(s), len(sm.rows)); err != nil {
		return err
	}
	c, err := nlp.Constraints(sm.base, x)
	if err != nil {
		return err
	}
	for k, j := range sm.rows {
		s[k] = c[j]
	}
	return nil
}

func (sm *Model) Meta() *nlp.Meta { return sm.meta }

// Counters returns the tallies of the base model. The reformulation keeps none.
func (sm *Model) Counters() *nlp.Counters { return sm.base.Counters() }

// row returns the constraint row of slack k and panics on an inconsistent index.
func (sm *Model) row(k, ncon int) int {
	j := sm.rows[k]
	if j < 0 || j >= ncon {
		panic(fmt.Errorf("slack: slack %d maps to row %d outside [0, %d): %w", k, j, ncon, nlp.ErrPartitionInvariant))
	}
	return j
}

func (sm *Model) checkX(op string, X []float64) error {
	return nlp.CheckLen(op, "x", len(X), sm.meta.NVar())
}

func (sm *Model) Obj(X []float64) (float64, error) {
	if err := sm.checkX("obj", X); err != nil {
		return 0, err
	}
	return sm.base.Obj(X[:sm.n])
}

func (sm *Model) Grad(X, g []float64) error {
	if err := sm.checkX("grad", X); err != nil {
		return err
	}
	if err := nlp.CheckLen("grad", "g", len(g), sm.meta.NVar()); err != nil {
		return err
	}
	if err := sm.base.Grad(X[:sm.n], g[:sm.n]); err != nil {
		return err
	}
	clear(g[sm.n:])
	return nil
}

func (sm *Model) Cons(X, c []float64) error {
	if err := sm.checkX("cons", X); err != nil {
		return err
	}
	if err := sm.base.Cons(X[:sm.n], c); err != nil {
		return err
	}
	s := X[sm.n:]
	for k := range sm.rows {
		c[sm.row(k, len(c))] -= s[k]
	}
	return nil
}

func (sm *Model) JacCoord(X []float64, rows, cols []int, vals []float64) error {
	if err := sm.checkX("jac", X); err != nil {
		return err
	}
	nnz := sm.meta.NNZJ()
	for _, v := range []struct {
		name string
		size int
	}{{"rows", len(rows)}, {"cols", len(cols)}, {"vals", len(vals)}} {
		if err := nlp.CheckLen("jac", v.name, v.size, nnz); err != nil {
			return err
		}
	}
	nb := nnz - len(sm.rows)
	if err := sm.base.JacCoord(X[:sm.n], rows[:nb], cols[:nb], vals[:nb]); err != nil {
		return err
	}
	ncon := sm.meta.NCon()
	for k := range sm.rows {
		rows[nb+k] = sm.row(k, ncon)
		cols[nb+k] = sm.n + k
		vals[nb+k] = -1
	}
	return nil
}

func (sm *Model) JProd(X, v, jv []float64) error {
	if err := sm.checkX("jprod", X); err != nil {
		return err
	}
	if err := nlp.CheckLen("jprod", "v", len(v), sm.meta.NVar()); err != nil {
		return err
	}
	if err := sm.base.JProd(X[:sm.n], v[:sm.n], jv); err != nil {
		return err
	}
	vs := v[sm.n:]
	for k := range sm.rows {
		jv[sm.row(k, len(jv))] -= vs[k]
	}
	return nil
}

func (sm *Model) JTProd(X, v, jtv []float64) error {
	if err := sm.checkX("jtprod", X); err != nil {
		return err
	}
	if err := nlp.CheckLen("jtprod", "jtv", len(jtv), sm.meta.NVar()); err != nil {
		return err
	}
	if err := sm.base.JTProd(X[:sm.n], v, jtv[:sm.n]); err != nil {
		return err
	}
	ts := jtv[sm.n:]
	for k := range sm.rows {
		ts[k] = v[sm.row(k, len(v))]
	}
	floats.Scale(-1, ts)
	return nil
}

// HessCoord returns the base Hessian unchanged: the constraints are linear in
// the slacks so the slack block of the Hessian is identically zero.
func (sm *Model) HessCoord(X []float64, objWeight float64, y []float64, rows, cols []int, vals []float64) error {
	if err := sm.checkX("hess", X); err != nil {
		return err
	}
	return sm.base.HessCoord(X[:sm.n], objWeight, y, rows, cols, vals)
}

// HProd delegates on the leading n coordinates of v, then zeroes the slack
// block of hv. hv is written exclusively by this call and must not alias v.
func (sm *Model) HProd(X []float64, objWeight float64, y, v, hv []float64) error {
	if err := sm.checkX("hprod", X); err != nil {
		return err
	}
	nv := sm.meta.NVar()
	if err := nlp.CheckLen("hprod", "v", len(v), nv); err != nil {
		return err
	}
	if err := nlp.CheckLen("hprod", "hv", len(hv), nv); err != nil {
		return err
	}
	if err := sm.base.HProd(X[:sm.n], objWeight, y, v[:sm.n], hv[:sm.n]); err != nil {
		return err
	}
	clear(hv[sm.n:])
	return nil
}
