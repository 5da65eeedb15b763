package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the pipeline counters.
type Metrics struct {
	runs         *prometheus.CounterVec
	filesRelayed prometheus.Counter
	sweepDirs    *prometheus.CounterVec
}

// NewMetrics registers the pipeline counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_runs_total",
				Help: "Total number of mirror runs by outcome.",
			},
			[]string{"outcome"},
		),
		filesRelayed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_files_total",
				Help: "Total number of files delivered to the remote store.",
			},
		),
		sweepDirs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_sweep_directories_total",
				Help: "Staging directories seen by recovery sweeps, by status.",
			},
			[]string{"status"},
		),
	}

	for _, c := range []prometheus.Collector{m.runs, m.filesRelayed, m.sweepDirs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
