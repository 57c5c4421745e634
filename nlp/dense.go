// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// JacDense evaluates the Jacobian and densifies it into an ncon×nvar matrix.
// Duplicate coordinates are summed.
func JacDense(m Model, x []float64) (*mat.Dense, error) {
	meta := m.Meta()
	rows, cols, vals, err := Jacobian(m, x)
	if err != nil {
		return nil, err
	}
	nr, nc := meta.NCon(), meta.NVar()
	if nr == 0 || nc == 0 {
		return &mat.Dense{}, nil
	}
	jac := mat.NewDense(nr, nc, nil)
	for k, v := range vals {
		i, j := rows[k], cols[k]
		if i < 0 || i >= nr || j < 0 || j >= nc {
			return nil, fmt.Errorf("jac: coordinate (%d, %d) outside %d×%d: %w", i, j, nr, nc, ErrDimension)
		}
		jac.Set(i, j, jac.At(i, j)+v)
	}
	return jac, nil
}

// HessDense evaluates the lower triangle of the Lagrangian Hessian and
// expands it into a symmetric nvar×nvar matrix. Duplicate coordinates are summed.
func HessDense(m Model, x []float64, objWeight float64, y []float64) (*mat.SymDense, error) {
	rows, cols, vals, err := Hessian(m, x, objWeight, y)
	if err != nil {
		return nil, err
	}
	n := m.Meta().NVar()
	if n == 0 {
		return &mat.SymDense{}, nil
	}
	hess := mat.NewSymDense(n, nil)
	for k, v := range vals {
		i, j := rows[k], cols[k]
		if i < j || j < 0 || i >= n {
			return nil, fmt.Errorf("hess: coordinate (%d, %d) not in the lower triangle of %d×%d: %w", i, j, n, n, ErrDimension)
		}
		hess.SetSym(i, j, hess.At(i, j)+v)
	}
	return hess, nil
}
