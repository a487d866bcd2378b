// Package metrics exposes Retz's Status reporter fields (spec §4.E) as
// Prometheus metrics: queue depth, running count, resource usage, and
// offer-cycle throughput.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric Retz exports. Build one with NewCollector
// and feed it from the Status reporter and Dispatcher on a tick.
type Collector struct {
	jobsLaunched prometheus.Counter
	jobsFinished prometheus.Counter
	jobsKilled   prometheus.Counter
	jobsRetried  prometheus.Counter

	offersServed prometheus.Counter

	queueLength   prometheus.Gauge
	runningLength prometheus.Gauge
	numSlaves     prometheus.Gauge
	totalOffered  *prometheus.GaugeVec
	totalUsed     *prometheus.GaugeVec

	jobTurnaround prometheus.Histogram
}

// NewCollector builds and registers every Retz metric against the default
// Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		jobsLaunched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retz_jobs_launched_total",
			Help: "Total number of jobs launched against a broker offer.",
		}),
		jobsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retz_jobs_finished_total",
			Help: "Total number of jobs that reached FINISHED.",
		}),
		jobsKilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retz_jobs_killed_total",
			Help: "Total number of jobs that reached KILLED.",
		}),
		jobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retz_jobs_retried_total",
			Help: "Total number of jobs requeued via retry().",
		}),
		offersServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retz_offers_served_total",
			Help: "Total number of offer cycles handled by the dispatcher.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "retz_queue_length",
			Help: "Current number of QUEUED jobs.",
		}),
		runningLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "retz_running_length",
			Help: "Current number of STARTING+STARTED jobs.",
		}),
		numSlaves: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "retz_num_slaves",
			Help: "Current number of distinct slaves seen in the last offer cycle.",
		}),
		totalOffered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "retz_total_offered",
			Help: "Total resources offered in the last offer cycle, by dimension.",
		}, []string{"dimension"}),
		totalUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "retz_total_used",
			Help: "Total resources currently held by running jobs, by dimension.",
		}, []string{"dimension"}),
		jobTurnaround: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retz_job_turnaround_seconds",
			Help:    "Wall-clock time from a job being launched to reaching a terminal state.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		c.jobsLaunched, c.jobsFinished, c.jobsKilled, c.jobsRetried,
		c.offersServed, c.queueLength, c.runningLength, c.numSlaves,
		c.totalOffered, c.totalUsed, c.jobTurnaround,
	)

	return c
}

func (c *Collector) RecordLaunched()   { c.jobsLaunched.Inc() }
func (c *Collector) RecordFinished()   { c.jobsFinished.Inc() }
func (c *Collector) RecordKilled()     { c.jobsKilled.Inc() }
func (c *Collector) RecordRetried()    { c.jobsRetried.Inc() }
func (c *Collector) RecordOfferCycle() { c.offersServed.Inc() }

// ObserveTurnaround records the seconds between launch and terminal state
// for one job.
func (c *Collector) ObserveTurnaround(seconds float64) {
	c.jobTurnaround.Observe(seconds)
}

// SetQueueLength sets the current QUEUED count.
func (c *Collector) SetQueueLength(n int) { c.queueLength.Set(float64(n)) }

// SetRunningLength sets the current STARTING+STARTED count.
func (c *Collector) SetRunningLength(n int) { c.runningLength.Set(float64(n)) }

// SetNumSlaves sets the distinct-slave count observed in the last cycle.
func (c *Collector) SetNumSlaves(n int) { c.numSlaves.Set(float64(n)) }

// SetTotalOffered sets the last offer cycle's aggregate resources.
func (c *Collector) SetTotalOffered(cpu, memMB, gpu, disk float64) {
	c.totalOffered.WithLabelValues("cpu").Set(cpu)
	c.totalOffered.WithLabelValues("mem_mb").Set(memMB)
	c.totalOffered.WithLabelValues("gpu").Set(gpu)
	c.totalOffered.WithLabelValues("disk").Set(disk)
}

// SetTotalUsed sets the resources currently held by running jobs.
func (c *Collector) SetTotalUsed(cpu, memMB, gpu, disk float64) {
	c.totalUsed.WithLabelValues("cpu").Set(cpu)
	c.totalUsed.WithLabelValues("mem_mb").Set(memMB)
	c.totalUsed.WithLabelValues("gpu").Set(gpu)
	c.totalUsed.WithLabelValues("disk").Set(disk)
}

// Serve starts the Prometheus HTTP handler on addr (e.g. ":9092"),
// blocking until the listener fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		return fmt.Errorf("metrics: serve %s: %w", addr, err)
	}
	return nil
}
