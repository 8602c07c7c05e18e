package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Metrics holds request counters and maintenance totals.
// Thread-safe via atomics and mutex.
type Metrics struct {
	totalRequests  int64
	activeRequests int64
	totalErrors    int64
	totalLatencyMs int64
	maxLatencyMs   int64

	purgedEntries  int64
	freedBytes     int64
	sweptCodes     int64
	deletedObjects int64
	failedObjects  int64

	startTime         time.Time
	mu                sync.Mutex
	endpointCounts    map[string]int64
	endpointLatencies map[string]int64 // total ms per endpoint
	statusCodes       map[int]int64
}

func New() *Metrics {
	return &Metrics{
		startTime:         time.Now(),
		endpointCounts:    make(map[string]int64),
		endpointLatencies: make(map[string]int64),
		statusCodes:       make(map[int]int64),
	}
}

// Middleware tracks request count, latency, active connections, and error rates
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.activeRequests, 1)
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let the error handler write the status before it is counted.
				c.Error(err)
			}

			latencyMs := time.Since(start).Milliseconds()
			atomic.AddInt64(&m.activeRequests, -1)
			atomic.AddInt64(&m.totalRequests, 1)
			atomic.AddInt64(&m.totalLatencyMs, latencyMs)

			// Update max latency (lock-free CAS loop)
			for {
				current := atomic.LoadInt64(&m.maxLatencyMs)
				if latencyMs <= current {
					break
				}
				if atomic.CompareAndSwapInt64(&m.maxLatencyMs, current, latencyMs) {
					break
				}
			}

			statusCode := c.Response().Status
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			endpoint := c.Request().Method + " " + path

			m.mu.Lock()
			m.endpointCounts[endpoint]++
			m.endpointLatencies[endpoint] += latencyMs
			m.statusCodes[statusCode]++
			m.mu.Unlock()
			if statusCode >= http.StatusBadRequest {
				atomic.AddInt64(&m.totalErrors, 1)
			}

			return nil
		}
	}
}

// RecordMaintenance adds the outcome of one maintenance pass.
func (m *Metrics) RecordMaintenance(purgedEntries int, freedBytes, sweptCodes int64, deletedObjects, failedObjects int) {
	atomic.AddInt64(&m.purgedEntries, int64(purgedEntries))
	atomic.AddInt64(&m.freedBytes, freedBytes)
	atomic.AddInt64(&m.sweptCodes, sweptCodes)
	atomic.AddInt64(&m.deletedObjects, int64(deletedObjects))
	atomic.AddInt64(&m.failedObjects, int64(failedObjects))
}

// Snapshot is a point-in-time view of the counters
type Snapshot struct {
	TotalRequests  int64             `json:"total_requests"`
	ActiveRequests int64             `json:"active_requests"`
	TotalErrors    int64             `json:"total_errors"`
	ErrorRate      float64           `json:"error_rate_pct"`
	AvgLatencyMs   float64           `json:"avg_latency_ms"`
	MaxLatencyMs   int64             `json:"max_latency_ms"`
	UptimeSeconds  float64           `json:"uptime_seconds"`
	EndpointCounts map[string]int64  `json:"endpoint_counts"`
	EndpointAvgMs  map[string]int64  `json:"endpoint_avg_latency_ms"`
	StatusCodes    map[int]int64     `json:"status_codes"`
	Maintenance    MaintenanceTotals `json:"maintenance"`
}

type MaintenanceTotals struct {
	PurgedEntries  int64 `json:"purged_entries"`
	FreedBytes     int64 `json:"freed_bytes"`
	SweptCodes     int64 `json:"swept_share_codes"`
	DeletedObjects int64 `json:"deleted_objects"`
	FailedObjects  int64 `json:"failed_object_deletes"`
}

func (m *Metrics) Snapshot() Snapshot {
	total := atomic.LoadInt64(&m.totalRequests)
	errs := atomic.LoadInt64(&m.totalErrors)

	s := Snapshot{
		TotalRequests:  total,
		ActiveRequests: atomic.LoadInt64(&m.activeRequests),
		TotalErrors:    errs,
		MaxLatencyMs:   atomic.LoadInt64(&m.maxLatencyMs),
		UptimeSeconds:  time.Since(m.startTime).Seconds(),
		Maintenance: MaintenanceTotals{
			PurgedEntries:  atomic.LoadInt64(&m.purgedEntries),
			FreedBytes:     atomic.LoadInt64(&m.freedBytes),
			SweptCodes:     atomic.LoadInt64(&m.sweptCodes),
			DeletedObjects: atomic.LoadInt64(&m.deletedObjects),
			FailedObjects:  atomic.LoadInt64(&m.failedObjects),
		},
	}
	if total > 0 {
		s.AvgLatencyMs = float64(atomic.LoadInt64(&m.totalLatencyMs)) / float64(total)
		s.ErrorRate = float64(errs) / float64(total) * 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s.EndpointCounts = make(map[string]int64, len(m.endpointCounts))
	s.EndpointAvgMs = make(map[string]int64, len(m.endpointCounts))
	for k, v := range m.endpointCounts {
		s.EndpointCounts[k] = v
		if v > 0 {
			s.EndpointAvgMs[k] = m.endpointLatencies[k] / v
		}
	}
	s.StatusCodes = make(map[int]int64, len(m.statusCodes))
	for k, v := range m.statusCodes {
		s.StatusCodes[k] = v
	}
	return s
}

// Handler serves the current snapshot as JSON.
func (m *Metrics) Handler(c echo.Context) error {
	return c.JSON(http.StatusOK, m.Snapshot())
}
