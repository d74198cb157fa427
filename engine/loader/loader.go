package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/googlevr/tilt-brush-sub010/engine/config"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
	"github.com/googlevr/tilt-brush-sub010/engine/model"
	"github.com/googlevr/tilt-brush-sub010/engine/profiler"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB/b3dm loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// workerIdleTimeout is how long a LoadAll worker waits for work before exiting.
const workerIdleTimeout = time.Second

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	logger   *logrus.Logger
	profiler *profiler.Profiler
	catalog  *material.Catalog
	options  config.ImportOptions

	backendType LoaderBackendType
	backend     loaderBackend

	modelCache *lru.Cache[string, model.Model]
	preloaded  map[string]model.Model

	pool worker.DynamicWorkerPool
}

// Loader imports glTF v1, glTF v2, GLB and b3dm files into host-space models
// and keeps the most recently used ones in a bounded cache.
type Loader interface {
	// Load imports a model file and caches the result. If the model is
	// already cached (by file path), the cached version is returned.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - model.Model: the loaded and cached model
	//   - error: ErrUnsupportedFormat for unknown extensions, else any import error
	Load(path string) (model.Model, error)

	// LoadReader imports a model from a reader stream and caches it by the
	// given name. Relative buffer and image uris cannot be resolved.
	//
	// Parameters:
	//   - name: the cache key and model name
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB or b3dm binary data
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) (model.Model, error)

	// LoadAll imports several files concurrently. Results are in the order of
	// paths; a failed path leaves a nil model and contributes to the joined
	// error. Paths not yet started when ctx is done fail with ctx.Err().
	//
	// Parameters:
	//   - ctx: cancels imports that have not started
	//   - paths: the files to import
	//
	// Returns:
	//   - []model.Model: one entry per path
	//   - error: every failure joined, or nil
	LoadAll(ctx context.Context, paths []string) ([]model.Model, error)

	// Get retrieves a cached model by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Models returns a snapshot of the cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by name
	Models() map[string]model.Model

	// Close stops the LoadAll workers. LoadAll must not be called afterwards.
	Close()
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the given options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:          sync.RWMutex{},
		logger:      logrus.StandardLogger(),
		options:     config.DefaultOptions().Import,
		backendType: BackendTypeGLTF,
		preloaded:   make(map[string]model.Model),
	}
	for _, option := range options {
		option(l)
	}

	switch l.backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend(newGLTFImporter(l.logger, l.profiler, l.catalog, l.options))
	}

	size := l.options.CacheSize
	if size <= 0 {
		size = config.DefaultOptions().Import.CacheSize
	}
	// New only fails for a non-positive size.
	cache, _ := lru.New[string, model.Model](max(size, len(l.preloaded)))
	for key, m := range l.preloaded {
		cache.Add(key, m)
	}
	l.modelCache = cache
	l.preloaded = nil

	workers := l.options.Workers
	if workers <= 0 {
		workers = 1
	}
	l.pool = worker.NewDynamicWorkerPool(workers, workers*4, workerIdleTimeout)
	return l
}

func (l *loader) Load(path string) (model.Model, error) {
	if cached, ok := l.lookup(path); ok {
		return cached, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}

	imported, err := backend.Load(path)
	if err != nil {
		l.logger.WithError(err).WithField("path", path).Error("failed to load model")
		return nil, err
	}
	return l.store(path, imported), nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (model.Model, error) {
	if cached, ok := l.lookup(name); ok {
		return cached, nil
	}

	imported, err := l.backend.LoadReader(name, r, isGLB)
	if err != nil {
		l.logger.WithError(err).WithField("name", name).Error("failed to load model from reader")
		return nil, err
	}
	return l.store(name, imported), nil
}

func (l *loader) LoadAll(ctx context.Context, paths []string) ([]model.Model, error) {
	models := make([]model.Model, len(paths))
	errs := make([]error, len(paths))

	// pool.Wait blocks until workers idle out, so a WaitGroup is the barrier.
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		idx, p := i, path
		l.pool.SubmitTask(worker.Task{
			ID:      idx,
			Payload: p,
			Do: func() (any, error) {
				defer wg.Done()
				if err := ctx.Err(); err != nil {
					errs[idx] = fmt.Errorf("failed to load %s: %w", p, err)
					return nil, err
				}
				m, err := l.Load(p)
				if err != nil {
					errs[idx] = fmt.Errorf("failed to load %s: %w", p, err)
					return nil, err
				}
				models[idx] = m
				return m, nil
			},
		})
	}
	wg.Wait()
	return models, errors.Join(errs...)
}

func (l *loader) Get(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, _ := l.modelCache.Peek(name)
	return m
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]model.Model, l.modelCache.Len())
	for _, k := range l.modelCache.Keys() {
		if v, ok := l.modelCache.Peek(k); ok {
			result[k] = v
		}
	}
	return result
}

func (l *loader) Close() {
	l.pool.Stop()
}

// lookup returns a cached model and records the hit or miss.
func (l *loader) lookup(key string) (model.Model, bool) {
	l.mu.RLock()
	cached, ok := l.modelCache.Get(key)
	l.mu.RUnlock()
	l.profiler.CacheLookup(ok)
	return cached, ok
}

// store converts an imported model and caches it under key.
func (l *loader) store(key string, imported *model.ImportedModel) model.Model {
	m := model.NewModel(model.WithImported(imported))
	l.mu.Lock()
	if evicted := l.modelCache.Add(key, m); evicted {
		l.logger.WithField("key", key).Debug("model cache full, evicted least recently used model")
	}
	l.mu.Unlock()
	return m
}

// resolveBackend selects an appropriate loader backend based on the file extension.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb", ".b3dm":
		return l.backend, nil
	default:
		return nil, ErrUnsupportedFormat.New(ext)
	}
}
