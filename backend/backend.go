// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backend binds the evaluation callbacks of a modeling frontend into
// a concrete nlp.Model.
//
// The binding is explicit: a Model is built once from its metadata and a
// Callbacks record, there is no process-wide registry. The Model owns the
// evaluation counters and the scratch buffers reused across calls.
package backend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/curioloop/nlpmodels/nlp"
	"github.com/curioloop/nlpmodels/numdiff"
)

// ErrCallback reports a frontend callback that panicked during an evaluation.
var ErrCallback = errors.New("backend: callback failed")

// Callbacks is the derivative-evaluation set exposed by a frontend.
// Outputs passed to a callback are scratch owned by the Model; a callback
// must fill them entirely and must not retain any argument.
// Any field may be nil, in which case the matching operation reports nlp.ErrUnsupported
// unless it can be computed from the other callbacks.
type Callbacks struct {
	// Obj evaluates 𝒇(𝐱).
	Obj func(x []float64) float64
	// Grad evaluates ∇𝒇(𝐱) into g.
	Grad func(x, g []float64)
	// Cons evaluates 𝒄(𝐱) into c.
	Cons func(x, c []float64)
	// JacStruct fills the nnzj coordinates of the Jacobian. It is called once.
	JacStruct func(rows, cols []int)
	// JacVals evaluates the Jacobian values matching JacStruct.
	JacVals func(x, vals []float64)
	// JProd evaluates 𝐉(𝐱)𝐯. Without it the product is formed from JacVals.
	JProd func(x, v, jv []float64)
	// JTProd evaluates 𝐉(𝐱)ᵀ𝐯. Without it the product is formed from JacVals.
	JTProd func(x, v, jtv []float64)
	// HessStruct fills the nnzh lower triangle coordinates of the Hessian. It is called once.
	HessStruct func(rows, cols []int)
	// HessVals evaluates the Lagrangian Hessian values matching HessStruct.
	HessVals func(x []float64, objWeight float64, y, vals []float64)
	// HProd evaluates the Lagrangian Hessian times 𝐯. Without it the product is formed from HessVals.
	HProd func(x []float64, objWeight float64, y, v, hv []float64)
}

// Option configures a Model.
type Option func(*Model) error

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) error {
		if logger == nil {
			return errors.New("backend: nil logger")
		}
		m.logger = logger
		return nil
	}
}

// WithFiniteDiff estimates the gradient from Obj and the Jacobian from Cons
// by finite differences when Grad or JacVals are missing.
// The estimated Jacobian is dense and row-major, so nnzj must equal nvar×ncon
// and JacStruct, when given, is ignored.
// Steps stay within the variable bounds except along fixed variables.
func WithFiniteDiff(method numdiff.Method) Option {
	return func(m *Model) error {
		if method != numdiff.Forward && method != numdiff.Central {
			return fmt.Errorf("backend: unknown finite difference method %d", method)
		}
		m.fd, m.fdMethod = true, method
		return nil
	}
}

// Model is a concrete nlp.Model evaluated by frontend callbacks.
// It is not safe for concurrent use: the counters and scratch buffers are
// overwritten by every call.
type Model struct {
	meta     *nlp.Meta
	cb       Callbacks
	counters nlp.Counters
	logger   *slog.Logger

	fd       bool
	fdMethod numdiff.Method
	fdGrad   *numdiff.Approx
	fdJac    *numdiff.Approx

	// cached sparsity patterns
	jrows, jcols []int
	hrows, hcols []int

	// scratch
	xs    []float64 // nvar
	gs    []float64 // nvar
	cs    []float64 // ncon
	ps    []float64 // max(nvar, ncon)
	jvals []float64 // nnzj
	hvals []float64 // nnzh
}

// New binds the callbacks to the metadata.
func New(meta *nlp.Meta, cb Callbacks, opts ...Option) (*Model, error) {
	if meta == nil {
		return nil, errors.New("backend: metadata is required")
	}

	n, m := meta.NVar(), meta.NCon()
	bm := &Model{
		meta:   meta,
		cb:     cb,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		xs:     make([]float64, n),
		gs:     make([]float64, n),
		cs:     make([]float64, m),
		ps:     make([]float64, max(n, m)),
		jvals:  make([]float64, meta.NNZJ()),
		hvals:  make([]float64, meta.NNZH()),
	}

	for _, opt := range opts {
		if err := opt(bm); err != nil {
			return nil, fmt.Errorf("applying backend option: %w", err)
		}
	}

	if err := bm.bindJacobian(); err != nil {
		return nil, err
	}
	if err := bm.bindHessian(); err != nil {
		return nil, err
	}

	bm.logger.Debug("backend model bound",
		slog.String("name", meta.Name()),
		slog.Int("nvar", n),
		slog.Int("ncon", m),
		slog.Int("nnzj", meta.NNZJ()),
		slog.Int("nnzh", meta.NNZH()),
		slog.Bool("finite_diff", bm.fd),
		slog.Any("unsupported", bm.unsupported()))
	return bm, nil
}

func (bm *Model) bindJacobian() error {
	n, m, nnz := bm.meta.NVar(), bm.meta.NCon(), bm.meta.NNZJ()

	if bm.fd && bm.cb.JacVals == nil && bm.cb.Cons != nil && m > 0 {
		if nnz != n*m {
			return fmt.Errorf("backend: finite difference Jacobian needs nnzj=%d, got %d: %w", n*m, nnz, nlp.ErrDimension)
		}
		bm.jrows, bm.jcols = make([]int, nnz), make([]int, nnz)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				bm.jrows[i*n+j], bm.jcols[i*n+j] = i, j
			}
		}
		lower, upper := bm.fdBounds()
		bm.fdJac = &numdiff.Approx{
			N: n, M: m,
			Method: bm.fdMethod,
			Func:   bm.cb.Cons,
			Lower:  lower, Upper: upper,
			SkipBoundCheck: true,
		}
		return nil
	}

	rows, cols := make([]int, nnz), make([]int, nnz)
	if nnz == 0 {
		bm.jrows, bm.jcols = rows, cols
		return nil
	}
	if bm.cb.JacStruct == nil {
		return nil
	}
	if err := bm.call("jac structure", func() { bm.cb.JacStruct(rows, cols) }); err != nil {
		return err
	}
	for k := range rows {
		if rows[k] < 0 || rows[k] >= m || cols[k] < 0 || cols[k] >= n {
			return fmt.Errorf("backend: jacobian coordinate %d is (%d, %d) outside %d×%d: %w", k, rows[k], cols[k], m, n, nlp.ErrDimension)
		}
	}
	bm.jrows, bm.jcols = rows, cols
	return nil
}

func (bm *Model) bindHessian() error {
	n, nnz := bm.meta.NVar(), bm.meta.NNZH()
	rows, cols := make([]int, nnz), make([]int, nnz)
	if nnz == 0 {
		bm.hrows, bm.hcols = rows, cols
		return nil
	}
	if bm.cb.HessStruct == nil {
		return nil
	}
	if err := bm.call("hess structure", func() { bm.cb.HessStruct(rows, cols) }); err != nil {
		return err
	}
	for k := range rows {
		if cols[k] < 0 || rows[k] < cols[k] || rows[k] >= n {
			return fmt.Errorf("backend: hessian coordinate %d is (%d, %d) outside the lower triangle of %d×%d: %w", k, rows[k], cols[k], n, n, nlp.ErrDimension)
		}
	}
	bm.hrows, bm.hcols = rows, cols
	return nil
}

// fdBounds returns the variable bounds the difference steps must respect.
// A fixed variable leaves no room for a step and is left unbounded.
// Points outside the bounds are still accepted: steps then move inward.
func (bm *Model) fdBounds() (lower, upper []float64) {
	lower, upper = bm.meta.LVar(), bm.meta.UVar()
	for _, i := range bm.meta.IFix() {
		lower[i], upper[i] = math.Inf(-1), math.Inf(1)
	}
	return
}

func (bm *Model) unsupported() []string {
	var ops []string
	if bm.cb.Obj == nil {
		ops = append(ops, "obj")
	}
	if !bm.hasGrad() {
		ops = append(ops, "grad")
	}
	if bm.cb.Cons == nil && bm.meta.NCon() > 0 {
		ops = append(ops, "cons")
	}
	if !bm.hasJac() {
		ops = append(ops, "jac")
		if bm.cb.JProd == nil {
			ops = append(ops, "jprod")
		}
		if bm.cb.JTProd == nil {
			ops = append(ops, "jtprod")
		}
	}
	if !bm.hasHess() {
		ops = append(ops, "hess")
		if bm.cb.HProd == nil {
			ops = append(ops, "hprod")
		}
	}
	return ops
}

func (bm *Model) hasGrad() bool {
	return bm.cb.Grad != nil || (bm.fd && bm.cb.Obj != nil)
}

// An empty pattern needs no callback.
func (bm *Model) hasJac() bool {
	return bm.fdJac != nil || (bm.jrows != nil && (bm.cb.JacVals != nil || len(bm.jrows) == 0))
}

func (bm *Model) hasHess() bool {
	return bm.hrows != nil && (bm.cb.HessVals != nil || len(bm.hrows) == 0)
}

func (bm *Model) hessValues(op string, x []float64, objWeight float64, y []float64) error {
	if len(bm.hvals) == 0 {
		return nil
	}
	return bm.call(op, func() { bm.cb.HessVals(x, objWeight, y, bm.hvals) })
}

// call runs a frontend callback and turns a panic into ErrCallback.
func (bm *Model) call(op string, f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v: %w", op, r, ErrCallback)
			bm.logger.Warn("frontend callback failed", slog.String("op", op), slog.Any("panic", r))
		}
	}()
	f()
	return nil
}

func (bm *Model) unsupportedOp(op string) error {
	bm.logger.Debug("unsupported operation", slog.String("op", op))
	return nlp.Unsupported(op)
}

func (bm *Model) Meta() *nlp.Meta { return bm.meta }

func (bm *Model) Counters() *nlp.Counters { return &bm.counters }

func (bm *Model) checkX(op string, x []float64) error {
	return nlp.CheckLen(op, "x", len(x), bm.meta.NVar())
}

func (bm *Model) checkY(op string, y []float64) error {
	return nlp.CheckLen(op, "y", len(y), bm.meta.NCon())
}

func (bm *Model) Obj(x []float64) (f float64, err error) {
	if err = bm.checkX("obj", x); err != nil {
		return
	}
	if bm.cb.Obj == nil {
		return 0, bm.unsupportedOp("obj")
	}
	bm.counters.Incr(nlp.KindObj)
	err = bm.call("obj", func() { f = bm.cb.Obj(x) })
	return
}

func (bm *Model) Grad(x, g []float64) error {
	n := bm.meta.NVar()
	if err := bm.checkX("grad", x); err != nil {
		return err
	}
	if err := nlp.CheckLen("grad", "g", len(g), n); err != nil {
		return err
	}
	if !bm.hasGrad() {
		return bm.unsupportedOp("grad")
	}
	bm.counters.Incr(nlp.KindGrad)

	var err error
	if bm.cb.Grad != nil {
		err = bm.call("grad", func() { bm.cb.Grad(x, bm.gs) })
	} else {
		err = bm.approxGrad(x)
	}
	if err != nil {
		return err
	}
	copy(g, bm.gs)
	return nil
}

func (bm *Model) approxGrad(x []float64) error {
	if bm.fdGrad == nil {
		obj := bm.cb.Obj
		lower, upper := bm.fdBounds()
		bm.fdGrad = &numdiff.Approx{
			N: bm.meta.NVar(), M: 1,
			Method: bm.fdMethod,
			Func:   func(x, y []float64) { y[0] = obj(x) },
			Lower:  lower, Upper: upper,
			SkipBoundCheck: true,
		}
	}
	copy(bm.xs, x)
	var err error
	if cbErr := bm.call("grad", func() { err = bm.fdGrad.Jacobian(bm.xs, bm.gs) }); cbErr != nil {
		return cbErr
	}
	return err
}

func (bm *Model) Cons(x, c []float64) error {
	if err := bm.checkX("cons", x); err != nil {
		return err
	}
	if err := nlp.CheckLen("cons", "c", len(c), bm.meta.NCon()); err != nil {
		return err
	}
	if bm.meta.NCon() > 0 && bm.cb.Cons == nil {
		return bm.unsupportedOp("cons")
	}
	bm.counters.Incr(nlp.KindCons)
	if bm.meta.NCon() == 0 {
		return nil
	}
	if err := bm.call("cons", func() { bm.cb.Cons(x, bm.cs) }); err != nil {
		return err
	}
	copy(c, bm.cs)
	return nil
}

// jacValues evaluates the Jacobian values into the jvals scratch.
func (bm *Model) jacValues(op string, x []float64) error {
	if bm.fdJac != nil {
		copy(bm.xs, x)
		var err error
		if cbErr := bm.call(op, func() { err = bm.fdJac.Jacobian(bm.xs, bm.jvals) }); cbErr != nil {
			return cbErr
		}
		return err
	}
	if len(bm.jvals) == 0 {
		return nil
	}
	return bm.call(op, func() { bm.cb.JacVals(x, bm.jvals) })
}

func (bm *Model) JacCoord(x []float64, rows, cols []int, vals []float64) error {
	if err := bm.checkX("jac", x); err != nil {
		return err
	}
	nnz := bm.meta.NNZJ()
	if err := checkTriple("jac", rows, cols, vals, nnz); err != nil {
		return err
	}
	if !bm.hasJac() {
		return bm.unsupportedOp("jac")
	}
	bm.counters.Incr(nlp.KindJac)
	if err := bm.jacValues("jac", x); err != nil {
		return err
	}
	copy(rows, bm.jrows)
	copy(cols, bm.jcols)
	copy(vals, bm.jvals)
	return nil
}

func (bm *Model) JProd(x, v, jv []float64) error {
	if err := bm.checkX("jprod", x); err != nil {
		return err
	}
	if err := nlp.CheckLen("jprod", "v", len(v), bm.meta.NVar()); err != nil {
		return err
	}
	if err := nlp.CheckLen("jprod", "jv", len(jv), bm.meta.NCon()); err != nil {
		return err
	}
	if bm.cb.JProd == nil && !bm.hasJac() {
		return bm.unsupportedOp("jprod")
	}
	bm.counters.Incr(nlp.KindJProd)

	out := bm.ps[:len(jv)]
	if bm.cb.JProd != nil {
		if err := bm.call("jprod", func() { bm.cb.JProd(x, v, out) }); err != nil {
			return err
		}
	} else {
		if err := bm.jacValues("jprod", x); err != nil {
			return err
		}
		clear(out)
		for k, a := range bm.jvals {
			out[bm.jrows[k]] += a * v[bm.jcols[k]]
		}
	}
	copy(jv, out)
	return nil
}

func (bm *Model) JTProd(x, v, jtv []float64) error {
	if err := bm.checkX("jtprod", x); err != nil {
		return err
	}
	if err := nlp.CheckLen("jtprod", "v", len(v), bm.meta.NCon()); err != nil {
		return err
	}
	if err := nlp.CheckLen("jtprod", "jtv", len(jtv), bm.meta.NVar()); err != nil {
		return err
	}
	if bm.cb.JTProd == nil && !bm.hasJac() {
		return bm.unsupportedOp("jtprod")
	}
	bm.counters.Incr(nlp.KindJTProd)

	out := bm.ps[:len(jtv)]
	if bm.cb.JTProd != nil {
		if err := bm.call("jtprod", func() { bm.cb.JTProd(x, v, out) }); err != nil {
			return err
		}
	} else {
		if err := bm.jacValues("jtprod", x); err != nil {
			return err
		}
		clear(out)
		for k, a := range bm.jvals {
			out[bm.jcols[k]] += a * v[bm.jrows[k]]
		}
	}
	copy(jtv, out)
	return nil
}

func (bm *Model) HessCoord(x []float64, objWeight float64, y []float64, rows, cols []int, vals []float64) error {
	if err := bm.checkX("hess", x); err != nil {
		return err
	}
	if err := bm.checkY("hess", y); err != nil {
		return err
	}
	if err := checkTriple("hess", rows, cols, vals, bm.meta.NNZH()); err != nil {
		return err
	}
	if !bm.hasHess() {
		return bm.unsupportedOp("hess")
	}
	bm.counters.Incr(nlp.KindHess)
	if err := bm.hessValues("hess", x, objWeight, y); err != nil {
		return err
	}
	copy(rows, bm.hrows)
	copy(cols, bm.hcols)
	copy(vals, bm.hvals)
	return nil
}

func (bm *Model) HProd(x []float64, objWeight float64, y, v, hv []float64) error {
	n := bm.meta.NVar()
	if err := bm.checkX("hprod", x); err != nil {
		return err
	}
	if err := bm.checkY("hprod", y); err != nil {
		return err
	}
	if err := nlp.CheckLen("hprod", "v", len(v), n); err != nil {
		return err
	}
	if err := nlp.CheckLen("hprod", "hv", len(hv), n); err != nil {
		return err
	}
	if bm.cb.HProd == nil && !bm.hasHess() {
		return bm.unsupportedOp("hprod")
	}
	bm.counters.Incr(nlp.KindHProd)

	out := bm.ps[:n]
	if bm.cb.HProd != nil {
		if err := bm.call("hprod", func() { bm.cb.HProd(x, objWeight, y, v, out) }); err != nil {
			return err
		}
	} else {
		if err := bm.hessValues("hprod", x, objWeight, y); err != nil {
			return err
		}
		clear(out)
		for k, a := range bm.hvals {
			i, j := bm.hrows[k], bm.hcols[k]
			out[i] += a * v[j]
			if i != j {
				out[j] += a * v[i]
			}
		}
	}
	copy(hv, out)
	return nil
}

func checkTriple(op string, rows, cols []int, vals []float64, nnz int) error {
	for _, c := range []struct {
		name string
		size int
	}{{"rows", len(rows)}, {"cols", len(cols)}, {"vals", len(vals)}} {
		if err := nlp.CheckLen(op, c.name, c.size, nnz); err != nil {
			return err
		}
	}
	return nil
}

// JacPattern returns a copy of the cached Jacobian coordinates, or nil when
// the Jacobian is not available.
func (bm *Model) JacPattern() (rows, cols []int) {
	if !bm.hasJac() {
		return nil, nil
	}
	return slices.Clone(bm.jrows), slices.Clone(bm.jcols)
}

// HessPattern returns a copy of the cached Hessian coordinates, or nil when
// the Hessian is not available.
func (bm *Model) HessPattern() (rows, cols []int) {
	if !bm.hasHess() {
		return nil, nil
	}
	return slices.Clone(bm.hrows), slices.Clone(bm.hcols)
}
