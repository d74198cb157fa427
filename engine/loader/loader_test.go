package loader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/exporter"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
	"github.com/googlevr/tilt-brush-sub010/engine/model"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportPool() *geometry.Pool {
	layout := geometry.VertexLayout{}
	layout.Texcoords[0] = geometry.TexcoordInfo{Size: 2, Semantic: geometry.SemanticXyIsUv}
	p := geometry.NewPool(layout)
	p.Vertices = [][3]float32{{0, 0, 0}, {2, 0, 0}, {0, 3, 0}}
	p.Texcoords[0].V2 = [][2]float32{{0.3, 0.8}, {1, 1}, {0, 0}}
	p.Tris = []uint32{0, 1, 2}
	return p
}

// exportTriangle writes a one-triangle scene to path.
func exportTriangle(t *testing.T, path string, generator string, mat material.Material, opts ...exporter.ExporterBuilderOption) {
	t.Helper()
	log, _ := test.NewNullLogger()
	all := append(opts, exporter.WithLogger(log), exporter.WithCopyTextures(false), exporter.WithAxes(common.AxisNative))
	e, err := exporter.NewExporter(all...)
	require.NoError(t, err)
	if generator != "" {
		e.SetMetadata(generator, "")
	}
	if mat == nil {
		mat = material.NewMaterial(material.WithDurableName("Flat"), material.WithUniqueName("flat"))
	}
	_, err = e.ExportMesh(exporter.MeshPayload{
		UniqueName:   "tri",
		NodeName:     "Triangle",
		GeometryName: "TriangleGeometry",
		Namespace:    "ns",
		Pool:         exportPool(),
		Material:     mat,
		Xform:        common.TranslationMat4([3]float32{1, 2, 3}),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, e.Write(path))
}

func newTestLoader(t *testing.T, opts ...LoaderBuilderOption) Loader {
	t.Helper()
	log, _ := test.NewNullLogger()
	all := append([]LoaderBuilderOption{WithLogger(log), WithOptions(nativeOptions())}, opts...)
	l := NewLoader(all...)
	t.Cleanup(l.Close)
	return l
}

func assertTriangle(t *testing.T, m model.Model) {
	t.Helper()
	node := m.FindNode("Triangle")
	require.NotNil(t, node)
	assert.True(t, node.Matrix.Equal(common.TranslationMat4([3]float32{1, 2, 3}), 1e-6), "%v", node.Matrix)
	require.Len(t, node.Meshes, 1)

	mesh := m.Meshes()[node.Meshes[0]]
	pool := mesh.Pool
	assert.Equal(t, [][3]float32{{0, 0, 0}, {2, 0, 0}, {0, 3, 0}}, pool.Vertices)
	assert.Equal(t, []uint32{0, 1, 2}, pool.Tris)
	require.Len(t, pool.Texcoords[0].V2, 3)
	for i, want := range [][2]float32{{0.3, 0.8}, {1, 1}, {0, 0}} {
		assert.InDelta(t, want[0], pool.Texcoords[0].V2[i][0], 1e-6)
		assert.InDelta(t, want[1], pool.Texcoords[0].V2[i][1], 1e-6)
	}
	assert.Equal(t, 1, m.TriangleCount())
	lo, hi, ok := m.Bounds()
	require.True(t, ok)
	assert.Equal(t, [3]float32{0, 0, 0}, lo)
	assert.Equal(t, [3]float32{2, 3, 0}, hi)
}

func TestLoaderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		file string
		opts []exporter.ExporterBuilderOption
	}{
		{"gltf2", "scene.gltf", nil},
		{"glb", "scene.glb", []exporter.ExporterBuilderOption{exporter.WithBinary(true)}},
		{"b3dm", "scene.b3dm", []exporter.ExporterBuilderOption{exporter.WithB3dm(true)}},
		{"gltf1", "scene.gltf", []exporter.ExporterBuilderOption{exporter.WithVersion(common.SchemaV1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			exportTriangle(t, path, "", nil, tt.opts...)

			m, err := newTestLoader(t).Load(path)
			require.NoError(t, err)
			assert.Equal(t, "scene", m.Name())
			assert.Equal(t, "tilt-brush-sub010", m.Generator())
			assertTriangle(t, m)
		})
	}
}

func TestLoaderBrushRoundTrip(t *testing.T) {
	catalog := testCatalog(t)
	brush, ok := catalog.Lookup(lightGUID)
	require.True(t, ok)

	path := filepath.Join(t.TempDir(), "strokes.glb")
	exportTriangle(t, path, "Tilt Brush 23.0", brush, exporter.WithBinary(true))

	m, err := newTestLoader(t, WithCatalog(catalog)).Load(path)
	require.NoError(t, err)
	assert.Equal(t, common.SchemaV2, m.Version())

	mats := m.ImportedMaterials()
	require.Len(t, mats, 1)
	assert.Equal(t, lightGUID.String(), mats[0].BrushGUID)
	assert.Equal(t, common.AlphaModeBlend, mats[0].AlphaMode)
	assert.Equal(t, 0, m.Meshes()[0].MaterialIndex)
}

func TestLoaderCachesByPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cached.glb")
	exportTriangle(t, path, "", nil, exporter.WithBinary(true))
	l := newTestLoader(t)

	first, err := l.Load(path)
	require.NoError(t, err)
	second, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, l.Get(path))
	assert.Contains(t, l.Models(), path)
	assert.Nil(t, l.Get("elsewhere.glb"))
}

func TestLoaderCacheEvicts(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.glb"), filepath.Join(dir, "b.glb")
	exportTriangle(t, a, "", nil, exporter.WithBinary(true))
	exportTriangle(t, b, "", nil, exporter.WithBinary(true))
	l := newTestLoader(t, WithCacheSize(1))

	_, err := l.Load(a)
	require.NoError(t, err)
	_, err = l.Load(b)
	require.NoError(t, err)
	assert.Nil(t, l.Get(a))
	assert.NotNil(t, l.Get(b))
	assert.Len(t, l.Models(), 1)
}

func TestLoaderPreloadedModel(t *testing.T) {
	pre := model.NewModel(model.WithName("prebuilt"))
	l := newTestLoader(t, WithModel("prebuilt.glb", pre), WithCacheSize(1))

	assert.Same(t, pre, l.Get("prebuilt.glb"))
	got, err := l.Load("prebuilt.glb")
	require.NoError(t, err)
	assert.Same(t, pre, got)
}

func TestLoaderUnsupportedFormat(t *testing.T) {
	_, err := newTestLoader(t).Load("mesh.obj")
	require.Error(t, err)
	assert.True(t, ErrUnsupportedFormat.Is(err))
}

func TestLoaderLoadReader(t *testing.T) {
	l := newTestLoader(t)
	m, err := l.LoadReader("inline", bytes.NewReader(triangleDoc(t, nil)), false)
	require.NoError(t, err)
	assert.Equal(t, "inline", m.Name())
	assert.Same(t, m, l.Get("inline"))

	_, err = l.LoadReader("broken", bytes.NewReader([]byte("nope")), false)
	assert.True(t, ErrBadContainer.Is(err))
	assert.Nil(t, l.Get("broken"))
}

func TestLoaderLoadAll(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.gltf"), filepath.Join(dir, "b.glb")
	missing := filepath.Join(dir, "missing.glb")
	exportTriangle(t, a, "", nil)
	exportTriangle(t, b, "", nil, exporter.WithBinary(true))
	l := newTestLoader(t, WithWorkers(2))

	models, err := l.LoadAll(context.Background(), []string{a, missing, b})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), missing)
	require.Len(t, models, 3)
	require.NotNil(t, models[0])
	assert.Nil(t, models[1])
	require.NotNil(t, models[2])
	assert.Equal(t, "a", models[0].Name())
	assert.Equal(t, "b", models[2].Name())

	models, err = l.LoadAll(context.Background(), []string{b, a})
	require.NoError(t, err)
	assert.Equal(t, "b", models[0].Name())
}

func TestLoaderLoadAllCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.glb")
	exportTriangle(t, path, "", nil, exporter.WithBinary(true))
	l := newTestLoader(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	models, err := l.LoadAll(ctx, []string{path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, models[0])
	assert.Nil(t, l.Get(path))
}

func TestLoaderLoadAllMalformedFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.glb")
	exportTriangle(t, good, "", nil, exporter.WithBinary(true))

	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	d.accessors[pos]["count"] = -3
	bad := filepath.Join(dir, "bad.gltf")
	require.NoError(t, os.WriteFile(bad, d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": pos}}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	}), 0o644))
	cycle := filepath.Join(dir, "cycle.gltf")
	require.NoError(t, os.WriteFile(cycle, []byte(`{"asset":{"version":"2.0"},"nodes":[{"children":[1]},{"children":[0]}],"scenes":[{"nodes":[0]}],"scene":0}`), 0o644))

	l := newTestLoader(t, WithWorkers(2))
	models, err := l.LoadAll(context.Background(), []string{bad, good, cycle})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count -3 is out of range")
	assert.Contains(t, err.Error(), "is its own ancestor")
	require.Len(t, models, 3)
	assert.Nil(t, models[0])
	assert.NotNil(t, models[1])
	assert.Nil(t, models[2])

	_, err = l.Load(bad)
	assert.True(t, ErrBadObject.Is(err))
}
