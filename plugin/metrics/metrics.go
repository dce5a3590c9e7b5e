// Package metrics is a plugin that exports decision metrics to Prometheus.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/plugin"
)

var (
	_ plugin.AfterAuthorize    = (*Plugin)(nil)
	_ plugin.DanglingReference = (*Plugin)(nil)
)

// Plugin counts decisions by reason and outcome, observes evaluation time
// and counts dangling references.
type Plugin struct {
	decisions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	dangling  *prometheus.CounterVec
}

// New registers the collectors against registerer. When registerer is nil
// the default Prometheus registerer is used.
func New(registerer prometheus.Registerer) (*Plugin, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	p := &Plugin{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portcullis_decisions_total",
			Help: "Number of authorization decisions by reason and outcome.",
		}, []string{"reason", "granted"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portcullis_decision_seconds",
			Help:    "Time spent evaluating authorization decisions.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"reason"}),
		dangling: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portcullis_dangling_references_total",
			Help: "Number of role or permission ids found that no longer resolve.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{p.decisions, p.duration, p.dangling} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "metrics" }

// OnAfterAuthorize implements plugin.AfterAuthorize.
func (p *Plugin) OnAfterAuthorize(_ context.Context, _ string, _, result any) error {
	res, ok := result.(*portcullis.Result)
	if !ok {
		return nil
	}
	reason := string(res.Reason)
	p.decisions.WithLabelValues(reason, strconv.FormatBool(res.Granted)).Inc()
	p.duration.WithLabelValues(reason).Observe(time.Duration(res.EvalTimeNs).Seconds())
	return nil
}

// OnDanglingReference implements plugin.DanglingReference.
func (p *Plugin) OnDanglingReference(_ context.Context, _, kind, _ string) error {
	p.dangling.WithLabelValues(kind).Inc()
	return nil
}
