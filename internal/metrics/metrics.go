// Package metrics records operational metrics of pipeline runs behind a
// small, backend-agnostic interface.
//
// A process-wide backend defaults to a no-op implementation, so recording is
// always safe even when no metrics system is configured. Concrete systems
// live in subpackages (prompush, datadog) and are installed with SetBackend.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Metric names.
const (
	StepTotal    = "salesetl_step_total"
	StepDuration = "salesetl_step_duration_seconds"
	FilesTotal   = "salesetl_files_total"
	RowsTotal    = "salesetl_rows_total"
	BatchesTotal = "salesetl_batches_total"
)

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a pipeline step (validate, curate,
// load) and its duration, labelled by outcome.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordFile counts one gate decision. Outcome is "accepted", "rejected" or
// "failed".
func RecordFile(job, kind, outcome string) {
	backend.IncCounter(FilesTotal, 1, Labels{
		"job":     job,
		"kind":    kind,
		"outcome": outcome,
	})
}

// RecordRows adds delta rows for a table at a stage, e.g. ("sales_enriched",
// "curated") or ("fct_sales_enriched", "loaded").
func RecordRows(job, table, stage string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":   job,
		"table": table,
		"stage": stage,
	})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}
