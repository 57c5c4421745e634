// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/nlpmodels/internal/hs"
	"github.com/curioloop/nlpmodels/metrics"
	"github.com/curioloop/nlpmodels/nlp"
	"github.com/curioloop/nlpmodels/slack"
)

func evaluations(t *testing.T, reg *prometheus.Registry, model, kind string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "nlp_evaluations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["model"] == model && labels["kind"] == kind {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg, "nlp")
	require.NoError(t, err)

	m, err := hs.Ranged()
	require.NoError(t, err)
	x := m.Meta().X0()

	for range 3 {
		_, err = m.Obj(x)
		require.NoError(t, err)
	}
	_, err = nlp.Gradient(m, x)
	require.NoError(t, err)
	rec.Observe(m)

	assert.Equal(t, 3.0, evaluations(t, reg, "Ranged", "obj"))
	assert.Equal(t, 1.0, evaluations(t, reg, "Ranged", "grad"))
	n, err := testutil.GatherAndCount(reg, "nlp_evaluations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// only the increase is added
	_, err = m.Obj(x)
	require.NoError(t, err)
	rec.Observe(m)
	rec.Observe(m)
	assert.Equal(t, 4.0, evaluations(t, reg, "Ranged", "obj"))

	// a reset restarts from zero
	nlp.ResetCounters(m)
	_, err = m.Obj(x)
	require.NoError(t, err)
	rec.Observe(m)
	assert.Equal(t, 5.0, evaluations(t, reg, "Ranged", "obj"))
}

func TestSharedCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg, "nlp")
	require.NoError(t, err)

	base, err := hs.Mixed()
	require.NoError(t, err)
	sm := slack.New(base)

	X := make([]float64, sm.Meta().NVar())
	_, err = sm.Obj(X)
	require.NoError(t, err)

	rec.Observe(sm)
	rec.Observe(base)
	assert.Equal(t, 1.0, evaluations(t, reg, "Mixed-slack", "obj"))
	assert.Equal(t, 0.0, evaluations(t, reg, "Mixed", "obj"))

	rec.Forget(sm)
	_, err = base.Obj(X[:3])
	require.NoError(t, err)
	rec.Observe(base)
	assert.Equal(t, 2.0, evaluations(t, reg, "Mixed", "obj"))
}

func TestAlreadyRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := metrics.NewRecorder(reg, "nlp")
	require.NoError(t, err)
	second, err := metrics.NewRecorder(reg, "nlp")
	require.NoError(t, err)

	m, err := hs.HS21()
	require.NoError(t, err)
	_, err = m.Obj(m.Meta().X0())
	require.NoError(t, err)

	first.Observe(m)
	second.Observe(m)
	assert.Equal(t, 2.0, evaluations(t, reg, "HS21", "obj"))
}
