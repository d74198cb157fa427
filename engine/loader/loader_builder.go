package loader

import (
	"github.com/googlevr/tilt-brush-sub010/engine/config"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
	"github.com/googlevr/tilt-brush-sub010/engine/model"
	"github.com/googlevr/tilt-brush-sub010/engine/profiler"
	"github.com/sirupsen/logrus"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithLogger is an option builder that sets the logger import warnings go to.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger *logrus.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithOptions is an option builder that replaces the import options.
// Options applied after it, such as WithCacheSize, override its values.
//
// Parameters:
//   - opts: the import options
//
// Returns:
//   - LoaderBuilderOption: a function that applies the options to a loader
func WithOptions(opts config.ImportOptions) LoaderBuilderOption {
	return func(l *loader) {
		l.options = opts
	}
}

// WithProfiler records imports, cache lookups and defects.
func WithProfiler(p *profiler.Profiler) LoaderBuilderOption {
	return func(l *loader) {
		l.profiler = p
	}
}

// WithCatalog is an option builder that sets the brushes imported materials
// are matched against.
//
// Parameters:
//   - c: the brush catalog
//
// Returns:
//   - LoaderBuilderOption: a function that applies the catalog option to a loader
func WithCatalog(c *material.Catalog) LoaderBuilderOption {
	return func(l *loader) {
		l.catalog = c
	}
}

// WithCacheSize bounds the number of cached models.
func WithCacheSize(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.options.CacheSize = n
	}
}

// WithWorkers bounds the number of concurrent imports in LoadAll.
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.options.Workers = n
	}
}

// WithBackend is an option builder that selects the file format backend.
//
// Parameters:
//   - t: the backend type
//
// Returns:
//   - LoaderBuilderOption: a function that applies the backend option to a loader
func WithBackend(t LoaderBackendType) LoaderBuilderOption {
	return func(l *loader) {
		l.backendType = t
	}
}

// WithModel is an option builder that pre-populates the model cache with a model.
//
// Parameters:
//   - key: the cache key for the model
//   - model: the model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the model option to a loader
func WithModel(key string, model model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.preloaded[key] = model
	}
}
