// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exports the evaluation counters of NLP models as
// Prometheus counters.
//
// A model is not safe for concurrent use, so the counters are never read
// during a scrape. Instead the goroutine driving a model calls Observe at a
// convenient point (after each iteration of a solver, say) and the increase
// since the previous observation is added to the exported series.
package metrics

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curioloop/nlpmodels/nlp"
)

// Recorder accumulates model evaluations into the counter vector
// <namespace>_evaluations_total{model, kind}. It is safe for concurrent use.
type Recorder struct {
	evals *prometheus.CounterVec

	mu   sync.Mutex
	seen map[*nlp.Counters]*observed
}

type observed struct {
	name string
	last nlp.Snapshot
}

// NewRecorder registers the evaluation counter vector with reg, or with the
// default registerer when reg is nil. A vector already registered under the
// same name is reused.
func NewRecorder(reg prometheus.Registerer, namespace string) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	evals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_total",
		Help:      "Model evaluations by operation kind.",
	}, []string{"model", "kind"})

	if err := reg.Register(evals); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("metrics: register evaluations: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("metrics: evaluations registered as %T", are.ExistingCollector)
		}
		evals = existing
	}
	return &Recorder{evals: evals, seen: make(map[*nlp.Counters]*observed)}, nil
}

// Observe adds the evaluations of m since its previous observation.
// Models sharing counters, such as a slack reformulation and its base, are
// tracked once under the name of the first one observed. A reset of the
// model counters restarts the delta from zero.
func (r *Recorder) Observe(m nlp.Model) {
	c := m.Counters()
	snap := c.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.seen[c]
	if !ok {
		o = &observed{name: m.Meta().Name()}
		r.seen[c] = o
	}
	for _, k := range nlp.Kinds {
		cur, prev := snap.Get(k), o.last.Get(k)
		if cur < prev {
			prev = 0
		}
		if d := cur - prev; d > 0 {
			r.evals.WithLabelValues(o.name, k.String()).Add(float64(d))
		}
	}
	o.last = snap
}

// Forget drops the bookkeeping of m. Exported series are left untouched.
func (r *Recorder) Forget(m nlp.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, m.Counters())
}
