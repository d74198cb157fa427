// Package profiler counts codec work and periodically logs throughput and memory
// statistics. Counters are exported through a prometheus registry.
package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Profiler tracks exports, imports and cache behavior.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu sync.Mutex

	log            logrus.FieldLogger
	registry       *prometheus.Registry
	opCount        int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	exports       *prometheus.CounterVec
	imports       *prometheus.CounterVec
	triangles     prometheus.Counter
	vertices      prometheus.Counter
	bytesWritten  prometheus.Counter
	cacheRequests *prometheus.CounterVec
	defects       *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// ProfilerOption is a functional option for configuring a Profiler via NewProfiler.
type ProfilerOption func(*Profiler)

// WithLogger sets the logger stats are written to.
//
// Parameters:
//   - log: the logger
//
// Returns:
//   - ProfilerOption: a function that applies the logger option to a profiler
func WithLogger(log logrus.FieldLogger) ProfilerOption {
	return func(p *Profiler) {
		p.log = log
	}
}

// WithInterval sets how often Tick logs.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithRegistry registers the counters with reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) ProfilerOption {
	return func(p *Profiler) {
		p.registry = reg
	}
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options for the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		log:            logrus.StandardLogger(),
		lastTime:       time.Now(),
		updateInterval: time.Second,
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gltf_exports_total",
			Help: "Completed exports by container format and outcome.",
		}, []string{"format", "outcome"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gltf_imports_total",
			Help: "Completed imports by container format and outcome.",
		}, []string{"format", "outcome"}),
		triangles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gltf_exported_triangles_total",
			Help: "Triangles written by exports.",
		}),
		vertices: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gltf_imported_vertices_total",
			Help: "Vertices produced by imports.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gltf_exported_bytes_total",
			Help: "Bytes of JSON and binary written by exports.",
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gltf_import_cache_requests_total",
			Help: "Import cache lookups by result.",
		}, []string{"result"}),
		defects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gltf_codec_defects_total",
			Help: "Invariant violations and repaired input defects by component and severity.",
		}, []string{"component", "severity"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gltf_operation_seconds",
			Help:    "Time spent per export or import.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.registry == nil {
		p.registry = prometheus.NewRegistry()
	}
	p.registry.MustRegister(p.exports, p.imports, p.triangles, p.vertices, p.bytesWritten, p.cacheRequests, p.defects, p.duration)
	return p
}

// Registry returns the registry holding the profiler's counters.
func (p *Profiler) Registry() *prometheus.Registry {
	return p.registry
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveExport records one finished export.
//
// Parameters:
//   - format: the container written ("gltf", "glb", "b3dm")
//   - tris: the number of triangles exported
//   - bytes: the number of bytes written
//   - elapsed: how long the export took
//   - err: the export result
func (p *Profiler) ObserveExport(format string, tris int, bytes int64, elapsed time.Duration, err error) {
	if p == nil {
		return
	}
	p.exports.WithLabelValues(format, outcome(err)).Inc()
	p.triangles.Add(float64(tris))
	p.bytesWritten.Add(float64(bytes))
	p.duration.WithLabelValues("export").Observe(elapsed.Seconds())
	p.log.WithFields(logrus.Fields{
		"format":    format,
		"triangles": humanize.Comma(int64(tris)),
		"size":      humanize.Bytes(uint64(max(bytes, 0))),
		"elapsed":   elapsed,
	}).Debug("export finished")
	p.Tick()
}

// ObserveImport records one finished import.
//
// Parameters:
//   - format: the container read ("gltf", "glb", "b3dm")
//   - verts: the number of vertices produced
//   - elapsed: how long the import took
//   - err: the import result
func (p *Profiler) ObserveImport(format string, verts int, elapsed time.Duration, err error) {
	if p == nil {
		return
	}
	p.imports.WithLabelValues(format, outcome(err)).Inc()
	p.vertices.Add(float64(verts))
	p.duration.WithLabelValues("import").Observe(elapsed.Seconds())
	p.Tick()
}

// CacheLookup records an import cache hit or miss.
func (p *Profiler) CacheLookup(hit bool) {
	if p == nil {
		return
	}
	if hit {
		p.cacheRequests.WithLabelValues("hit").Inc()
	} else {
		p.cacheRequests.WithLabelValues("miss").Inc()
	}
}

// Defect counts an invariant violation ("error") or a repaired input defect ("warning").
//
// Parameters:
//   - component: the package or stage that hit the defect
//   - severity: "error" or "warning"
func (p *Profiler) Defect(component, severity string) {
	if p == nil {
		return
	}
	p.defects.WithLabelValues(component, severity).Inc()
}

// Tick counts one operation and logs statistics once the update interval has elapsed.
// Statistics include: operations per second, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.opCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	opsPerSec := float64(p.opCount) / elapsed.Seconds()
	runtime.ReadMemStats(&p.memStats)

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRate := uint64(float64(allocDelta) / elapsed.Seconds())

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPause, maxPause time.Duration
	if gcCount > 0 {
		lastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPause = max(maxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	p.log.WithFields(logrus.Fields{
		"ops_per_sec": humanize.FtoaWithDigits(opsPerSec, 2),
		"heap":        humanize.Bytes(p.memStats.Alloc),
		"alloc_rate":  humanize.Bytes(allocRate) + "/s",
		"gc":          gcCount,
		"gc_last":     lastPause,
		"gc_max":      maxPause,
		"sys":         humanize.Bytes(p.memStats.Sys),
	}).Info("profiler")

	p.opCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
