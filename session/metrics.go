package session

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains atomic counters of a session.
// Collectors exposes them as Prometheus CounterFuncs.
type Metrics struct {
	// WriteCount is the number of write primitives, queries included.
	WriteCount atomic.Uint64
	// ReadCount is the number of read primitives, queries included.
	ReadCount atomic.Uint64
	// BytesWritten is the number of bytes accepted by the transport.
	BytesWritten atomic.Uint64
	// BytesRead is the number of bytes returned by the transport.
	BytesRead atomic.Uint64
	// PollCount is the number of status bytes read by the automatic poll.
	PollCount atomic.Uint64
	// RetryCount is the number of Retry verdicts.
	RetryCount atomic.Uint64
	// FatalCount is the number of Fatal verdicts.
	FatalCount atomic.Uint64
	// TimeoutCount is the number of primitives that ended in an I/O timeout.
	TimeoutCount atomic.Uint64
	// ErrorCount is the number of primitives that failed for any reason.
	ErrorCount atomic.Uint64
}

// Collectors returns CounterFuncs reading the counters, named
// "instr_session_*_total" and carrying labels, typically the instrument name.
func (m *Metrics) Collectors(labels prometheus.Labels) []prometheus.Collector {
	counter := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "instr",
			Subsystem:   "session",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(v.Load()) })
	}

	return []prometheus.Collector{
		counter("writes_total", "Write primitives issued.", &m.WriteCount),
		counter("reads_total", "Read primitives issued.", &m.ReadCount),
		counter("written_bytes_total", "Bytes written to the instrument.", &m.BytesWritten),
		counter("read_bytes_total", "Bytes read from the instrument.", &m.BytesRead),
		counter("polls_total", "Status bytes read by the automatic poll.", &m.PollCount),
		counter("retries_total", "Retry verdicts of the status interpreter.", &m.RetryCount),
		counter("fatals_total", "Fatal verdicts of the status interpreter.", &m.FatalCount),
		counter("timeouts_total", "Primitives ended by an I/O timeout.", &m.TimeoutCount),
		counter("errors_total", "Primitives that returned an error.", &m.ErrorCount),
	}
}
