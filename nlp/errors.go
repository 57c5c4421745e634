// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nlp

import (
	"errors"
	"fmt"
)

var (
	// ErrDimension reports a vector or configuration length that disagrees
	// with the declared nvar, ncon, nnzj or nnzh.
	ErrDimension = errors.New("nlp: dimension mismatch")

	// ErrUnsupported reports a contract operation the concrete model does not implement.
	ErrUnsupported = errors.New("nlp: unsupported operation")

	// ErrPartitionInvariant reports index partitions that do not cover the
	// constraints exactly once. It is a programming error and is raised by panic.
	ErrPartitionInvariant = errors.New("nlp: index partition invariant violated")

	// ErrInfeasibleBounds reports a lower bound above its upper bound, or a NaN bound.
	ErrInfeasibleBounds = errors.New("nlp: infeasible bounds")
)

// CheckLen returns ErrDimension wrapped with op and name when got != want.
func CheckLen(op, name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%s: len(%s)=%d, want %d: %w", op, name, got, want, ErrDimension)
	}
	return nil
}

// Unsupported returns ErrUnsupported wrapped with the operation name.
func Unsupported(op string) error {
	return fmt.Errorf("%s: %w", op, ErrUnsupported)
}
