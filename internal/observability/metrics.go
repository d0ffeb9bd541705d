package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineCollector bundles Prometheus metrics for the sonification
// pipeline and implements the engine's MetricsRecorder.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	EventsAdmitted *prometheus.CounterVec
	EventsRejected *prometheus.CounterVec
	TickDuration   prometheus.Histogram

	Entities     prometheus.Gauge
	ActiveVoices prometheus.Gauge
	Dissonance   prometheus.Gauge
	MoodState    *prometheus.GaugeVec
}

// knownMoods keeps the mood gauge's label space fixed so dashboards
// see explicit zeroes rather than missing series.
var knownMoods = []string{"peaceful", "building", "climax", "calm"}

// NewPipelineCollector registers pipeline metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	admitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sonifier_events_admitted_total",
		Help: "Total admitted sound events, labeled by trigger rule.",
	}, []string{"rule"})
	admitted, err := registerCounterVec(reg, admitted, "sonifier_events_admitted_total")
	if err != nil {
		return nil, err
	}

	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sonifier_events_rejected_total",
		Help: "Total rejected admission candidates, labeled by rule and rejection reason.",
	}, []string{"rule", "reason"})
	rejected, err = registerCounterVec(reg, rejected, "sonifier_events_rejected_total")
	if err != nil {
		return nil, err
	}

	tick := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sonifier_tick_duration_seconds",
		Help:    "Wall-clock duration of one simulation tick pass.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	tick, err = registerHistogram(reg, tick, "sonifier_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	entities, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sonifier_entities",
		Help: "Current number of loaded entities.",
	}), "sonifier_entities")
	if err != nil {
		return nil, err
	}
	voices, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sonifier_active_voices",
		Help: "Approximate number of currently audible voices.",
	}), "sonifier_active_voices")
	if err != nil {
		return nil, err
	}
	dissonance, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sonifier_dissonance",
		Help: "Dissonance of the currently sounding pitch set, 0..1.",
	}), "sonifier_dissonance")
	if err != nil {
		return nil, err
	}

	mood := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sonifier_mood",
		Help: "Current mood, one-hot over the mood label.",
	}, []string{"mood"})
	mood, err = registerGaugeVec(reg, mood, "sonifier_mood")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:       gatherer,
		EventsAdmitted: admitted,
		EventsRejected: rejected,
		TickDuration:   tick,
		Entities:       entities,
		ActiveVoices:   voices,
		Dissonance:     dissonance,
		MoodState:      mood,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records one tick pass duration.
func (c *PipelineCollector) ObserveTick(d time.Duration) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

// EventAdmitted counts one admitted event.
func (c *PipelineCollector) EventAdmitted(rule string) {
	if c == nil || c.EventsAdmitted == nil {
		return
	}
	c.EventsAdmitted.WithLabelValues(rule).Inc()
}

// EventRejected counts one dropped candidate.
func (c *PipelineCollector) EventRejected(rule, reason string) {
	if c == nil || c.EventsRejected == nil {
		return
	}
	c.EventsRejected.WithLabelValues(rule, reason).Inc()
}

// SetEntities updates the loaded-entity gauge.
func (c *PipelineCollector) SetEntities(n int) {
	if c == nil || c.Entities == nil {
		return
	}
	c.Entities.Set(float64(n))
}

// SetVoices updates the active-voice gauge.
func (c *PipelineCollector) SetVoices(n int) {
	if c == nil || c.ActiveVoices == nil {
		return
	}
	c.ActiveVoices.Set(float64(n))
}

// SetDissonance updates the dissonance gauge.
func (c *PipelineCollector) SetDissonance(v float64) {
	if c == nil || c.Dissonance == nil {
		return
	}
	c.Dissonance.Set(v)
}

// SetMood one-hots the mood gauge across the known label space.
func (c *PipelineCollector) SetMood(mood string) {
	if c == nil || c.MoodState == nil {
		return
	}
	for _, m := range knownMoods {
		v := 0.0
		if m == mood {
			v = 1
		}
		c.MoodState.WithLabelValues(m).Set(v)
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
