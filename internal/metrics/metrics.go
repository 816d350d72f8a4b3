// Package metrics registers the Prometheus collectors shared by the
// server and client sides of a transfer run.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "filer_download_requests_total", Help: "Range requests by result"},
		[]string{"result"},
	)
	BytesTransferred = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "filer_bytes_transferred_total", Help: "Total bytes transferred over the network"},
	)
	BytesReusedLocally = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "filer_bytes_reused_total", Help: "Total bytes served from a local digest-group copy instead of the network"},
	)
	FilesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "filer_files_in_flight", Help: "Files currently being transferred"},
	)
	IntegrityFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "filer_integrity_failures_total", Help: "Files rejected for size or digest mismatch"},
	)
	LocalReuseTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "filer_local_reuse_total", Help: "Files copied from an already-fetched digest-group member"},
	)
)

// Register adds all collectors to the default Prometheus registry. Safe
// to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			BytesTransferred,
			BytesReusedLocally,
			FilesInFlight,
			IntegrityFailures,
			LocalReuseTotal,
		)
	})
}
