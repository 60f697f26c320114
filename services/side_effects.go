package services

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var sideEffectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "homeswift",
	Name:      "side_effects_total",
	Help:      "Best-effort side effects run after a committed write, by name and outcome.",
}, []string{"name", "outcome"})

// SideEffect is the outcome of one best-effort follow-up of a committed write
type SideEffect struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SideEffects collects outcomes. A failure is logged and counted but never returned.
type SideEffects []SideEffect

// Run executes fn and records its outcome under name. Panics are recovered as failures.
func (s *SideEffects) Run(name string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()

	if err != nil {
		log.Warn().Err(err).Str("side_effect", name).Msg("side effect failed")
		sideEffectsTotal.WithLabelValues(metricName(name), "failure").Inc()
		*s = append(*s, SideEffect{Name: name, Error: err.Error()})
		return
	}

	sideEffectsTotal.WithLabelValues(metricName(name), "success").Inc()
	*s = append(*s, SideEffect{Name: name, OK: true})
}

// Failed reports whether any recorded side effect failed
func (s SideEffects) Failed() bool {
	for _, e := range s {
		if !e.OK {
			return true
		}
	}
	return false
}

// metricName strips per-recipient suffixes so label cardinality stays bounded
func metricName(name string) string {
	base, _, _ := strings.Cut(name, ":")
	return base
}
