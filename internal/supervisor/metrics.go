package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// workerLaunches counts child processes started per worker
	workerLaunches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horn_worker_launches_total",
			Help: "Total worker processes launched by worker name",
		},
		[]string{"worker"},
	)

	// workerReaps counts collected child exits by outcome
	workerReaps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horn_worker_reaps_total",
			Help: "Total worker processes reaped by worker name and result",
		},
		[]string{"worker", "result"},
	)

	// workerIdleKills counts workers killed for a stale heartbeat
	workerIdleKills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horn_worker_idle_kills_total",
			Help: "Total workers killed after exceeding their idle timeout",
		},
		[]string{"worker"},
	)

	// signalsHandled counts signals dequeued by the loop
	signalsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horn_signals_total",
			Help: "Total signals handled by the master by signal name",
		},
		[]string{"signal"},
	)

	// loopErrors counts iterations that ended in an error or panic
	loopErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horn_loop_errors_total",
			Help: "Total supervisor loop iterations that failed",
		},
	)

	// workersRunning is the number of workers with a live child
	workersRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "horn_workers_running",
			Help: "Number of workers with a running child process",
		},
	)
)

func recordReap(worker string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	workerReaps.WithLabelValues(worker, result).Inc()
}
