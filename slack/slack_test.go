// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slack_test

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/nlpmodels/backend"
	"github.com/curioloop/nlpmodels/internal/hs"
	"github.com/curioloop/nlpmodels/nlp"
	"github.com/curioloop/nlpmodels/slack"
)

var inf = math.Inf(1)

func wrap(t *testing.T, base nlp.Model) *slack.Model {
	t.Helper()
	sm, ok := slack.New(base).(*slack.Model)
	require.True(t, ok, "expected a slack model")
	return sm
}

func randVec(rng *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return v
}

func TestScenarioMetadata(t *testing.T) {
	base, err := hs.Ranged()
	require.NoError(t, err)
	sm := wrap(t, base)
	meta := sm.Meta()

	assert.Equal(t, 4, meta.NVar())
	assert.Equal(t, 3, meta.NCon())
	assert.Equal(t, []float64{0, 0, 0}, meta.LCon())
	assert.Equal(t, []float64{0, 0, 0}, meta.UCon())
	assert.Equal(t, []float64{-inf, 1}, meta.LVar()[2:])
	assert.Equal(t, []float64{5, 3}, meta.UVar()[2:])
	assert.Equal(t, base.Meta().LVar(), meta.LVar()[:2])
	assert.Equal(t, []float64{1, 1, 0, 0}, meta.X0())
	assert.Equal(t, 8, meta.NNZJ())
	assert.Equal(t, 3, meta.NNZH())
	assert.Equal(t, []int{0, 1, 2}, meta.JFix())
	assert.Equal(t, "Ranged-slack", meta.Name())
	assert.Equal(t, base.Meta().Nln(), meta.Nln())
	assert.Equal(t, 2, sm.NSlack())
	assert.Equal(t, []int{1, 2}, sm.SlackRows())
	assert.Same(t, base, sm.Base())
}

func TestMixedMetadata(t *testing.T) {
	base, err := hs.Mixed()
	require.NoError(t, err)
	sm := wrap(t, base)
	meta := sm.Meta()

	// slacks follow [jlow; jupp; jrng]; the free row gets none and stays free
	assert.Equal(t, []int{1, 2, 3}, sm.SlackRows())
	assert.Equal(t, []float64{-2, 0, -inf, 1, -inf, -1}, meta.LVar())
	assert.Equal(t, []float64{2, inf, inf, inf, 2, 4}, meta.UVar())
	assert.Equal(t, []float64{1, 0, 0, 0, -inf}, meta.LCon())
	assert.Equal(t, []float64{1, 0, 0, 0, inf}, meta.UCon())
	assert.Equal(t, []int{0, 1, 2, 3}, meta.JFix())
	assert.Equal(t, []int{4}, meta.JFree())
	assert.Equal(t, 14, meta.NNZJ())
	assert.False(t, meta.HasInequalities())
}

func TestIdentityCollapse(t *testing.T) {
	base, err := hs.HS6()
	require.NoError(t, err)

	m := slack.New(base)
	require.Same(t, base, m.(*backend.Model))

	x := []float64{0.3, -0.4}
	fb, err := base.Obj(x)
	require.NoError(t, err)
	fm, err := m.Obj(x)
	require.NoError(t, err)
	assert.Equal(t, fb, fm)

	unconstrained, err := (&nlp.MetaSpec{NVar: 2}).New()
	require.NoError(t, err)
	free, err := backend.New(unconstrained, backend.Callbacks{})
	require.NoError(t, err)
	assert.Same(t, free, slack.New(free).(*backend.Model))
}

func TestObjectiveInvariance(t *testing.T) {
	base, err := hs.Mixed()
	require.NoError(t, err)
	sm := wrap(t, base)
	rng := rand.New(rand.NewSource(1))

	for range 20 {
		x := randVec(rng, 3)
		want, err := base.Obj(x)
		require.NoError(t, err)

		X := slices.Concat(x, randVec(rng, sm.NSlack()))
		got, err := sm.Obj(X)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		g, err := nlp.Gradient(sm, X)
		require.NoError(t, err)
		gb, err := nlp.Gradient(base, x)
		require.NoError(t, err)
		assert.Equal(t, slices.Concat(gb, make([]float64, sm.NSlack())), g)
	}
}

func TestConstraintRoundTrip(t *testing.T) {
	for _, build := range []func(...backend.Option) (*backend.Model, error){hs.Ranged, hs.Mixed} {
		base, err := build()
		require.NoError(t, err)
		sm := wrap(t, base)
		rng := rand.New(rand.NewSource(2))

		n := base.Meta().NVar()
		x := randVec(rng, n)
		cb, err := nlp.Constraints(base, x)
		require.NoError(t, err)

		X := make([]float64, sm.Meta().NVar())
		xs, s := sm.Split(X)
		copy(xs, x)
		require.NoError(t, sm.Slacks(x, s))

		c, err := nlp.Constraints(sm, X)
		require.NoError(t, err)
		for _, j := range sm.SlackRows() {
			assert.Equal(t, 0.0, c[j], "row %d", j)
		}
		for _, j := range slices.Concat(base.Meta().JFix(), base.Meta().JFree()) {
			assert.Equal(t, cb[j], c[j], "row %d", j)
		}

		// shifting a slack moves only its own row
		X[n] += 0.5
		c, err = nlp.Constraints(sm, X)
		require.NoError(t, err)
		assert.InDelta(t, -0.5, c[sm.SlackRows()[0]], 1e-12)
	}
}

func TestJacobianCoordinates(t *testing.T) {
	base, err := hs.Mixed()
	require.NoError(t, err)
	sm := wrap(t, base)

	x := []float64{0.2, 0.4, 0.6}
	X := slices.Concat(x, []float64{9, 9, 9})

	rb, cb, vb, err := nlp.Jacobian(base, x)
	require.NoError(t, err)
	rows, cols, vals, err := nlp.Jacobian(sm, X)
	require.NoError(t, err)

	nb := len(rb)
	assert.Equal(t, rb, rows[:nb])
	assert.Equal(t, cb, cols[:nb])
	assert.Equal(t, vb, vals[:nb])
	assert.Equal(t, []int{1, 2, 3}, rows[nb:])
	assert.Equal(t, []int{3, 4, 5}, cols[nb:])
	assert.Equal(t, []float64{-1, -1, -1}, vals[nb:])

	// the pattern is stable across calls
	rows2, cols2, _, err := nlp.Jacobian(sm, slices.Concat([]float64{-1, 2, 0}, X[3:]))
	require.NoError(t, err)
	assert.Equal(t, rows, rows2)
	assert.Equal(t, cols, cols2)
}

func TestJacobianProducts(t *testing.T) {
	for _, build := range []func(...backend.Option) (*backend.Model, error){hs.Ranged, hs.Mixed} {
		base, err := build()
		require.NoError(t, err)
		sm := wrap(t, base)
		meta := sm.Meta()
		nv, nc := meta.NVar(), meta.NCon()
		rng := rand.New(rand.NewSource(3))

		for range 10 {
			X := randVec(rng, nv)
			jac, err := nlp.JacDense(sm, X)
			require.NoError(t, err)

			u := randVec(rng, nc)
			jtv, err := nlp.JacTVec(sm, X, u)
			require.NoError(t, err)
			want := mulVec(jac.T(), u)
			require.True(t, floats.EqualApprox(want, jtv, 1e-10), "jtprod %v != %v", jtv, want)

			v := randVec(rng, nv)
			jv, err := nlp.JacVec(sm, X, v)
			require.NoError(t, err)
			want = mulVec(jac, v)
			require.True(t, floats.EqualApprox(want, jv, 1e-10), "jprod %v != %v", jv, want)
		}
	}
}

func TestTransposeSlackBlock(t *testing.T) {
	base, err := hs.Mixed()
	require.NoError(t, err)
	sm := wrap(t, base)

	X := []float64{0.1, 0.2, 0.3, 0, 0, 0}
	u := []float64{10, 11, 12, 13, 14}
	jtv, err := nlp.JacTVec(sm, X, u)
	require.NoError(t, err)
	assert.Equal(t, []float64{-11, -12, -13}, jtv[3:])
}

func TestHessian(t *testing.T) {
	for _, build := range []func(...backend.Option) (*backend.Model, error){hs.Ranged, hs.Mixed} {
		base, err := build()
		require.NoError(t, err)
		sm := wrap(t, base)
		rng := rand.New(rand.NewSource(4))
		n, ns, nc := base.Meta().NVar(), sm.NSlack(), base.Meta().NCon()

		x, y := randVec(rng, n), randVec(rng, nc)
		X := slices.Concat(x, randVec(rng, ns))

		rb, cb, vb, err := nlp.Hessian(base, x, 0.5, y)
		require.NoError(t, err)
		rows, cols, vals, err := nlp.Hessian(sm, X, 0.5, y)
		require.NoError(t, err)
		assert.Equal(t, rb, rows)
		assert.Equal(t, cb, cols)
		assert.Equal(t, vb, vals)

		// slack directions are in the null space of the Hessian
		v := slices.Concat(make([]float64, n), randVec(rng, ns))
		hv, err := nlp.HessVec(sm, X, 0.5, y, v)
		require.NoError(t, err)
		assert.Equal(t, make([]float64, n+ns), hv)

		v = randVec(rng, n+ns)
		hb, err := nlp.HessVec(base, x, 0.5, y, v[:n])
		require.NoError(t, err)
		hv = slices.Repeat([]float64{math.NaN()}, n+ns)
		require.NoError(t, sm.HProd(X, 0.5, y, v, hv))
		assert.Equal(t, slices.Concat(hb, make([]float64, ns)), hv)
	}
}

func TestCountersForwarded(t *testing.T) {
	base, err := hs.Mixed()
	require.NoError(t, err)
	sm := wrap(t, base)
	require.Same(t, base.Counters(), sm.Counters())

	X := slices.Concat(base.Meta().X0(), []float64{1, 2, 3})
	y := make([]float64, 5)

	nlp.ResetCounters(sm)
	_, err = sm.Obj(X)
	require.NoError(t, err)
	_, _, _, err = nlp.Jacobian(sm, X)
	require.NoError(t, err)
	_, err = nlp.JacVec(sm, X, X)
	require.NoError(t, err)
	_, err = nlp.HessVec(sm, X, 1, y, X)
	require.NoError(t, err)

	assert.Equal(t, nlp.Snapshot{Obj: 1, Jac: 1, JProd: 1, HProd: 1}, nlp.GetCounters(base))
	assert.Equal(t, nlp.GetCounters(base), nlp.GetCounters(sm))
}

func TestDimensionErrors(t *testing.T) {
	base, err := hs.Ranged()
	require.NoError(t, err)
	sm := wrap(t, base)

	nlp.ResetCounters(sm)
	_, err = sm.Obj([]float64{1, 2})
	require.ErrorIs(t, err, nlp.ErrDimension)

	g := []float64{7, 7, 7}
	require.ErrorIs(t, sm.Grad([]float64{1, 2, 3, 4}, g), nlp.ErrDimension)
	assert.Equal(t, []float64{7, 7, 7}, g, "no partial write")

	jv := []float64{7, 7, 7}
	require.ErrorIs(t, sm.JProd([]float64{1, 2, 3, 4}, []float64{1, 2}, jv), nlp.ErrDimension)
	assert.Equal(t, []float64{7, 7, 7}, jv)

	rows, cols, vals := make([]int, 7), make([]int, 8), make([]float64, 8)
	require.ErrorIs(t, sm.JacCoord([]float64{1, 2, 3, 4}, rows, cols, vals), nlp.ErrDimension)

	hv := []float64{7, 7, 7, 7}
	require.ErrorIs(t, sm.HProd([]float64{1, 2, 3, 4}, 1, []float64{1, 2}, make([]float64, 4), hv), nlp.ErrDimension)
	assert.Equal(t, []float64{7, 7, 7, 7}, hv)

	assert.Equal(t, nlp.Snapshot{}, nlp.GetCounters(base))
}

func TestBaseErrorsPropagate(t *testing.T) {
	meta, err := (&nlp.MetaSpec{NVar: 1, NCon: 1, LCon: []float64{0}, NNZJ: 1, NNZH: 1}).New()
	require.NoError(t, err)
	base, err := backend.New(meta, backend.Callbacks{
		Obj:  func(x []float64) float64 { return x[0] },
		Cons: func(x, c []float64) { c[0] = x[0] },
	})
	require.NoError(t, err)
	sm := wrap(t, base)

	X := []float64{1, 1}
	_, _, _, err = nlp.Hessian(sm, X, 1, []float64{0})
	require.ErrorIs(t, err, nlp.ErrUnsupported)
	_, err = nlp.JacTVec(sm, X, []float64{1})
	require.ErrorIs(t, err, nlp.ErrUnsupported)
	_, err = nlp.Gradient(sm, X)
	require.ErrorIs(t, err, nlp.ErrUnsupported)

	c, err := nlp.Constraints(sm, X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, c)
}

func mulVec(a mat.Matrix, v []float64) []float64 {
	var av mat.VecDense
	av.MulVec(a, mat.NewVecDense(len(v), v))
	return av.RawVector().Data
}
