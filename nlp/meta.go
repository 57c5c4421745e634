// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// MetaSpec is the configuration record of problem metadata.
// Zero values select the documented defaults:
//   - LVar, UVar : -∞ and +∞ for every variable
//   - LCon, UCon : -∞ and +∞ for every constraint
//   - X0, Y0     : zero vectors of length NVar and NCon
//   - Lin        : every constraint not listed in Nln
//   - NNZJ       : NVar × NCon (dense Jacobian)
//   - NNZH       : ½NVar × (NVar+1) (dense lower triangle)
//
// Negative NNZJ or NNZH are rejected; use 0 for an empty pattern with Sparse set.
type MetaSpec struct {
	Name       string
	NVar, NCon int
	X0, Y0     []float64
	LVar, UVar []float64
	LCon, UCon []float64
	Lin, Nln   []int
	NNZJ, NNZH int
	// Sparse disables the dense defaults of NNZJ and NNZH so that a zero count is taken literally.
	Sparse bool
	// LinearObjective declares the objective affine in x.
	LinearObjective bool
	// Maximize flips the optimization sense. The zero value minimizes.
	Maximize bool
}

// Meta is the immutable description of a problem: dimensions, bounds,
// linearity and index partitions of variables and constraints.
// Every slice returned by an accessor is a copy owned by the caller.
type Meta struct {
	name       string
	nvar, ncon int
	x0, y0     []float64
	lvar, uvar []float64
	lcon, ucon []float64

	ifix, ilow, iupp, irng, ifree []int
	jfix, jlow, jupp, jrng, jfree []int

	lin, nln   []int
	nnzj, nnzh int
	linObj     bool
	minimize   bool
}

// New validates s and computes the metadata with its index partitions.
func (s *MetaSpec) New() (meta *Meta, err error) {
	n, m := s.NVar, s.NCon
	switch {
	case n < 0:
		return nil, fmt.Errorf("meta: nvar=%d: %w", n, ErrDimension)
	case m < 0:
		return nil, fmt.Errorf("meta: ncon=%d: %w", m, ErrDimension)
	case s.NNZJ < 0:
		return nil, fmt.Errorf("meta: nnzj=%d: %w", s.NNZJ, ErrDimension)
	case s.NNZH < 0:
		return nil, fmt.Errorf("meta: nnzh=%d: %w", s.NNZH, ErrDimension)
	}

	meta = &Meta{
		name:     s.Name,
		nvar:     n,
		ncon:     m,
		nnzj:     s.NNZJ,
		nnzh:     s.NNZH,
		linObj:   s.LinearObjective,
		minimize: !s.Maximize,
	}
	if !s.Sparse {
		if meta.nnzj == 0 {
			meta.nnzj = n * m
		}
		if meta.nnzh == 0 {
			meta.nnzh = n * (n + 1) / 2
		}
	}

	vectors := []struct {
		name string
		src  []float64
		dst  *[]float64
		size int
		fill float64
	}{
		{"x0", s.X0, &meta.x0, n, 0},
		{"lvar", s.LVar, &meta.lvar, n, math.Inf(-1)},
		{"uvar", s.UVar, &meta.uvar, n, math.Inf(1)},
		{"y0", s.Y0, &meta.y0, m, 0},
		{"lcon", s.LCon, &meta.lcon, m, math.Inf(-1)},
		{"ucon", s.UCon, &meta.ucon, m, math.Inf(1)},
	}
	for _, v := range vectors {
		if v.src == nil {
			*v.dst = filled(v.size, v.fill)
			continue
		}
		if err = CheckLen("meta", v.name, len(v.src), v.size); err != nil {
			return nil, err
		}
		*v.dst = slices.Clone(v.src)
	}

	if err = checkBounds("variable", meta.lvar, meta.uvar); err != nil {
		return nil, err
	}
	if err = checkBounds("constraint", meta.lcon, meta.ucon); err != nil {
		return nil, err
	}

	if meta.lin, meta.nln, err = classifyLinearity(m, s.Lin, s.Nln); err != nil {
		return nil, err
	}

	meta.ifix, meta.ilow, meta.iupp, meta.irng, meta.ifree = partition(meta.lvar, meta.uvar)
	meta.jfix, meta.jlow, meta.jupp, meta.jrng, meta.jfree = partition(meta.lcon, meta.ucon)
	return meta, nil
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	if v != 0 {
		for i := range s {
			s[i] = v
		}
	}
	return s
}

func checkBounds(kind string, l, u []float64) error {
	for i := range l {
		if math.IsNaN(l[i]) || math.IsNaN(u[i]) || l[i] > u[i] || math.IsInf(l[i], 1) || math.IsInf(u[i], -1) {
			return fmt.Errorf("meta: %s bound at %d is [%g, %g]: %w", kind, i, l[i], u[i], ErrInfeasibleBounds)
		}
	}
	return nil
}

func classifyLinearity(m int, lin, nln []int) ([]int, []int, error) {
	mark := make([]int8, m)
	for name, set := range map[string][]int{"lin": lin, "nln": nln} {
		for _, j := range set {
			if j < 0 || j >= m {
				return nil, nil, fmt.Errorf("meta: %s index %d outside [0, %d): %w", name, j, m, ErrDimension)
			}
			if mark[j] != 0 {
				return nil, nil, fmt.Errorf("meta: constraint %d listed twice in lin/nln: %w", j, ErrDimension)
			}
			mark[j] = 1
			if name == "nln" {
				mark[j] = 2
			}
		}
	}
	if lin != nil && len(lin)+len(nln) != m {
		return nil, nil, fmt.Errorf("meta: lin and nln cover %d of %d constraints: %w", len(lin)+len(nln), m, ErrDimension)
	}
	l, nl := make([]int, 0, m), make([]int, 0, len(nln))
	for j, k := range mark {
		if k == 2 {
			nl = append(nl, j)
		} else {
			l = append(l, j)
		}
	}
	return l, nl, nil
}

// partition classifies every index by which of its bounds are finite.
// A finite tie is always fixed, never a range.
func partition(l, u []float64) (fix, low, upp, rng, free []int) {
	fix, low, upp, rng, free = []int{}, []int{}, []int{}, []int{}, []int{}
	for i := range l {
		lf, uf := !math.IsInf(l[i], 0), !math.IsInf(u[i], 0)
		switch {
		case lf && uf && l[i] == u[i]:
			fix = append(fix, i)
		case lf && !uf:
			low = append(low, i)
		case !lf && uf:
			upp = append(upp, i)
		case lf && uf:
			rng = append(rng, i)
		default:
			free = append(free, i)
		}
	}
	return
}

// Validate checks that the constraint partitions cover every constraint exactly
// once and that the variable partitions cover every variable exactly once.
func (m *Meta) Validate() error {
	if err := coverOnce("constraint", m.ncon, m.jfix, m.jlow, m.jupp, m.jrng, m.jfree); err != nil {
		return err
	}
	if err := coverOnce("variable", m.nvar, m.ifix, m.ilow, m.iupp, m.irng, m.ifree); err != nil {
		return err
	}
	if len(m.lcon) != m.ncon || len(m.ucon) != m.ncon || len(m.lvar) != m.nvar || len(m.uvar) != m.nvar {
		return fmt.Errorf("meta: bound vectors disagree with nvar=%d ncon=%d: %w", m.nvar, m.ncon, ErrPartitionInvariant)
	}
	return nil
}

func coverOnce(kind string, n int, parts ...[]int) error {
	seen := make([]bool, n)
	count := 0
	for _, p := range parts {
		for _, i := range p {
			if i < 0 || i >= n || seen[i] {
				return fmt.Errorf("meta: %s index %d: %w", kind, i, ErrPartitionInvariant)
			}
			seen[i] = true
			count++
		}
	}
	if count != n {
		return fmt.Errorf("meta: %s partitions cover %d of %d: %w", kind, count, n, ErrPartitionInvariant)
	}
	return nil
}

func (m *Meta) Name() string { return m.name }
func (m *Meta) NVar() int    { return m.nvar }
func (m *Meta) NCon() int    { return m.ncon }
func (m *Meta) NNZJ() int    { return m.nnzj }
func (m *Meta) NNZH() int    { return m.nnzh }

func (m *Meta) X0() []float64   { return slices.Clone(m.x0) }
func (m *Meta) Y0() []float64   { return slices.Clone(m.y0) }
func (m *Meta) LVar() []float64 { return slices.Clone(m.lvar) }
func (m *Meta) UVar() []float64 { return slices.Clone(m.uvar) }
func (m *Meta) LCon() []float64 { return slices.Clone(m.lcon) }
func (m *Meta) UCon() []float64 { return slices.Clone(m.ucon) }

// Variable partitions.
func (m *Meta) IFix() []int  { return slices.Clone(m.ifix) }
func (m *Meta) ILow() []int  { return slices.Clone(m.ilow) }
func (m *Meta) IUpp() []int  { return slices.Clone(m.iupp) }
func (m *Meta) IRng() []int  { return slices.Clone(m.irng) }
func (m *Meta) IFree() []int { return slices.Clone(m.ifree) }

// Constraint partitions.
func (m *Meta) JFix() []int  { return slices.Clone(m.jfix) }
func (m *Meta) JLow() []int  { return slices.Clone(m.jlow) }
func (m *Meta) JUpp() []int  { return slices.Clone(m.jupp) }
func (m *Meta) JRng() []int  { return slices.Clone(m.jrng) }
func (m *Meta) JFree() []int { return slices.Clone(m.jfree) }

func (m *Meta) Lin() []int { return slices.Clone(m.lin) }
func (m *Meta) Nln() []int { return slices.Clone(m.nln) }
func (m *Meta) NLin() int  { return len(m.lin) }
func (m *Meta) NNln() int  { return len(m.nln) }

// LinearObjective reports whether the objective was declared affine.
func (m *Meta) LinearObjective() bool { return m.linObj }

// IsLP reports whether the objective and every constraint are linear.
func (m *Meta) IsLP() bool { return m.linObj && len(m.nln) == 0 }

func (m *Meta) Minimize() bool { return m.minimize }

// HasBounds reports whether any variable has a finite bound.
func (m *Meta) HasBounds() bool { return len(m.ifree) < m.nvar }

func (m *Meta) Unconstrained() bool       { return m.ncon == 0 && !m.HasBounds() }
func (m *Meta) BoundConstrained() bool    { return m.ncon == 0 && m.HasBounds() }
func (m *Meta) LinearlyConstrained() bool { return m.ncon > 0 && len(m.nln) == 0 }
func (m *Meta) HasEqualities() bool       { return len(m.jfix) > 0 }
func (m *Meta) HasInequalities() bool     { return len(m.jlow)+len(m.jupp)+len(m.jrng) > 0 }

// EqualityConstrained reports whether every constraint is an equality.
func (m *Meta) EqualityConstrained() bool { return m.ncon > 0 && len(m.jfix) == m.ncon }

// InequalityConstrained reports whether there are constraints and none is an equality.
func (m *Meta) InequalityConstrained() bool { return m.ncon > 0 && len(m.jfix) == 0 }

func (m *Meta) String() string {
	var b strings.Builder
	sense := "minimize"
	if !m.minimize {
		sense = "maximize"
	}
	name := m.name
	if name == "" {
		name = "Generic"
	}
	fmt.Fprintf(&b, "Problem name: %s (%s)\n", name, sense)
	fmt.Fprintf(&b, "  variables  : %d (fixed %d, low %d, upp %d, rng %d, free %d)\n",
		m.nvar, len(m.ifix), len(m.ilow), len(m.iupp), len(m.irng), len(m.ifree))
	fmt.Fprintf(&b, "  constraints: %d (fixed %d, low %d, upp %d, rng %d, free %d)\n",
		m.ncon, len(m.jfix), len(m.jlow), len(m.jupp), len(m.jrng), len(m.jfree))
	fmt.Fprintf(&b, "  linear %d, nonlinear %d, nnzj %d, nnzh %d", len(m.lin), len(m.nln), m.nnzj, m.nnzh)
	return b.String()
}
