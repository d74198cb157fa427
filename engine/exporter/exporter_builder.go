package exporter

import (
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/config"
	"github.com/googlevr/tilt-brush-sub010/engine/profiler"
	"github.com/sirupsen/logrus"
)

// ExporterBuilderOption is a functional option for configuring an Exporter via NewExporter.
type ExporterBuilderOption func(*exporter)

func defaultExportOptions() config.ExportOptions {
	return config.DefaultOptions().Export
}

// WithOptions is an option builder that applies a whole export configuration section.
//
// Parameters:
//   - opts: the export options
//
// Returns:
//   - ExporterBuilderOption: a function that applies the options to an exporter
func WithOptions(opts config.ExportOptions) ExporterBuilderOption {
	return func(e *exporter) {
		e.version = opts.SchemaVersion()
		e.binary = opts.Binary
		e.b3dm = opts.B3dm
		e.generator = opts.Generator
		e.copyright = opts.Copyright
		e.spool = opts.Spool
		e.tempDir = opts.TempDir
		e.rtcCenter = opts.RTCCenter
		e.axes = opts.AxisConvention()
		e.copyTextures = opts.CopyTextures
	}
}

// WithVersion is an option builder that sets the schema version. The axis
// convention follows the version unless WithAxes is applied afterwards.
//
// Parameters:
//   - v: the schema version
//
// Returns:
//   - ExporterBuilderOption: a function that applies the version option to an exporter
func WithVersion(v common.SchemaVersion) ExporterBuilderOption {
	return func(e *exporter) {
		e.version = v
		e.axes = common.DefaultAxisConvention(v)
	}
}

// WithBinary is an option builder that selects the GLB container.
func WithBinary(binary bool) ExporterBuilderOption {
	return func(e *exporter) {
		e.binary = binary
	}
}

// WithB3dm is an option builder that wraps the GLB container in a b3dm tile header.
func WithB3dm(b3dm bool) ExporterBuilderOption {
	return func(e *exporter) {
		e.b3dm = b3dm
	}
}

// WithAxes is an option builder that sets the axis convention written to the file.
//
// Parameters:
//   - axes: the convention
//
// Returns:
//   - ExporterBuilderOption: a function that applies the axes option to an exporter
func WithAxes(axes common.AxisConvention) ExporterBuilderOption {
	return func(e *exporter) {
		e.axes = axes
	}
}

// WithSpool is an option builder that stages buffer views in files under dir.
// An empty dir uses the system temp directory.
//
// Parameters:
//   - dir: the parent directory of the spool directory
//
// Returns:
//   - ExporterBuilderOption: a function that applies the spool option to an exporter
func WithSpool(dir string) ExporterBuilderOption {
	return func(e *exporter) {
		e.spool = true
		e.tempDir = dir
	}
}

// WithRTCCenter is an option builder that emits the CESIUM_RTC extension.
func WithRTCCenter(center [3]float32) ExporterBuilderOption {
	return func(e *exporter) {
		e.rtcCenter = &center
	}
}

// WithCopyTextures is an option builder that controls copying local textures next to the output.
func WithCopyTextures(copyTextures bool) ExporterBuilderOption {
	return func(e *exporter) {
		e.copyTextures = copyTextures
	}
}

// WithLogger is an option builder that sets the logger.
func WithLogger(log logrus.FieldLogger) ExporterBuilderOption {
	return func(e *exporter) {
		e.log = log
	}
}

// WithProfiler is an option builder that records export metrics.
func WithProfiler(p *profiler.Profiler) ExporterBuilderOption {
	return func(e *exporter) {
		e.profiler = p
	}
}
