// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"fmt"
	"strings"
)

// Kind identifies one evaluation operation of the model contract.
type Kind int

const (
	KindObj Kind = iota
	KindGrad
	KindCons
	KindJac
	KindJProd
	KindJTProd
	KindHess
	KindHProd
	numKinds
)

// Kinds lists every counted operation in declaration order.
var Kinds = [numKinds]Kind{KindObj, KindGrad, KindCons, KindJac, KindJProd, KindJTProd, KindHess, KindHProd}

var kindNames = [numKinds]string{
	KindObj:    "obj",
	KindGrad:   "grad",
	KindCons:   "cons",
	KindJac:    "jac",
	KindJProd:  "jprod",
	KindJTProd: "jtprod",
	KindHess:   "hess",
	KindHProd:  "hprod",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Counters tallies how many times each operation has been evaluated.
// They belong to the innermost concrete model and are not safe for concurrent use.
type Counters struct {
	n [numKinds]int
}

// Incr increments the tally of k and returns the new value.
func (c *Counters) Incr(k Kind) int {
	c.n[k]++
	return c.n[k]
}

func (c *Counters) Get(k Kind) int { return c.n[k] }

// Reset zeroes every tally.
func (c *Counters) Reset() { c.n = [numKinds]int{} }

// Sum returns the total number of evaluations of every kind.
func (c *Counters) Sum() (s int) {
	for _, v := range c.n {
		s += v
	}
	return
}

// Snapshot is a read-only copy of the counters.
type Snapshot struct {
	Obj, Grad, Cons    int
	Jac, JProd, JTProd int
	Hess, HProd        int
}

// Snapshot copies the current tallies.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Obj: c.n[KindObj], Grad: c.n[KindGrad], Cons: c.n[KindCons],
		Jac: c.n[KindJac], JProd: c.n[KindJProd], JTProd: c.n[KindJTProd],
		Hess: c.n[KindHess], HProd: c.n[KindHProd],
	}
}

// Get returns the tally of k recorded in the snapshot.
func (s Snapshot) Get(k Kind) int {
	switch k {
	case KindObj:
		return s.Obj
	case KindGrad:
		return s.Grad
	case KindCons:
		return s.Cons
	case KindJac:
		return s.Jac
	case KindJProd:
		return s.JProd
	case KindJTProd:
		return s.JTProd
	case KindHess:
		return s.Hess
	case KindHProd:
		return s.HProd
	}
	panic("unknown counter kind")
}

func (s Snapshot) String() string {
	var b strings.Builder
	b.WriteString("Counters:")
	for _, k := range Kinds {
		fmt.Fprintf(&b, " %s=%d", k, s.Get(k))
	}
	return b.String()
}

// ResetCounters zeroes every tally of the model.
func ResetCounters(m Model) { m.Counters().Reset() }

// GetCounters returns a snapshot of the model tallies.
func GetCounters(m Model) Snapshot { return m.Counters().Snapshot() }

// NEval returns the number of evaluations of kind k performed by the model.
func NEval(m Model, k Kind) int { return m.Counters().Get(k) }
