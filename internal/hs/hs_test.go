// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/nlpmodels/backend"
	"github.com/curioloop/nlpmodels/nlp"
	"github.com/curioloop/nlpmodels/numdiff"
)

// TestDerivatives checks the analytic derivatives of every problem against
// central differences at the starting point.
func TestDerivatives(t *testing.T) {
	for name, build := range map[string]func(...backend.Option) (*backend.Model, error){
		"HS6": HS6, "HS21": HS21, "Ranged": Ranged, "Mixed": Mixed,
	} {
		t.Run(name, func(t *testing.T) {
			m, err := build()
			require.NoError(t, err)
			meta := m.Meta()
			require.Equal(t, name, meta.Name())
			require.NoError(t, meta.Validate())

			n, c := meta.NVar(), meta.NCon()
			x := meta.X0()

			g, err := nlp.Gradient(m, x)
			require.NoError(t, err)
			fd := make([]float64, n)
			require.NoError(t, numdiff.Gradient(func(x []float64) float64 {
				f, _ := m.Obj(x)
				return f
			}, numdiff.Central, nil, nil, x, fd))
			require.True(t, floats.EqualApprox(g, fd, 1e-6), "grad %v != %v", g, fd)

			jac, err := nlp.JacDense(m, x)
			require.NoError(t, err)
			est := make([]float64, c*n)
			approx := numdiff.Approx{N: n, M: c, Method: numdiff.Central, Func: func(x, y []float64) {
				require.NoError(t, m.Cons(x, y))
			}}
			require.NoError(t, approx.Jacobian(x, est))
			require.True(t, mat.EqualApprox(jac, mat.NewDense(c, n, est), 1e-6))

			// Hessian of the Lagrangian with y = 1 against differences of its gradient
			y := make([]float64, c)
			for j := range y {
				y[j] = 1
			}
			hess, err := nlp.HessDense(m, x, 1, y)
			require.NoError(t, err)
			lagGrad := numdiff.Approx{N: n, M: n, Method: numdiff.Central, Func: func(x, gl []float64) {
				require.NoError(t, m.Grad(x, gl))
				jtv, err := nlp.JacTVec(m, x, y)
				require.NoError(t, err)
				floats.Add(gl, jtv)
			}}
			est = make([]float64, n*n)
			require.NoError(t, lagGrad.Jacobian(x, est))
			require.True(t, mat.EqualApprox(hess, mat.NewDense(n, n, est), 1e-5))
		})
	}
}
