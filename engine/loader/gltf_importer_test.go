package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/config"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
	"github.com/googlevr/tilt-brush-sub010/engine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportTriangleFlipsV(t *testing.T) {
	m, _, err := importBytes(t, triangleDoc(t, nil), nativeOptions())
	require.NoError(t, err)

	assert.Equal(t, "test", m.Name)
	assert.Equal(t, common.SchemaV2, m.Version)
	require.Len(t, m.Roots, 1)
	assert.Equal(t, "Triangle", m.Roots[0].Name)
	assert.True(t, m.Roots[0].Matrix.IsIdentity(1e-6))
	require.Equal(t, []int{0}, m.Roots[0].Meshes)

	require.Len(t, m.Meshes, 1)
	mesh := m.Meshes[0]
	assert.Equal(t, "tri", mesh.Name)
	assert.Equal(t, -1, mesh.MaterialIndex)
	pool := mesh.Pool
	assert.Equal(t, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, pool.Vertices)
	assert.Equal(t, []uint32{0, 1, 2}, pool.Tris)
	assert.Equal(t, geometry.TexcoordInfo{Size: 2, Semantic: geometry.SemanticXyIsUv}, pool.Layout.Texcoords[0])
	require.Len(t, pool.Texcoords[0].V2, 3)
	assert.InDelta(t, 0.3, pool.Texcoords[0].V2[0][0], 1e-6)
	assert.InDelta(t, 0.8, pool.Texcoords[0].V2[0][1], 1e-6)
	assert.InDelta(t, 1.0, pool.Texcoords[0].V2[1][1], 1e-6)
	assert.InDelta(t, 0.0, pool.Texcoords[0].V2[2][1], 1e-6)
	assert.Equal(t, [3]float32{0, 0, 0}, mesh.BoundingMin)
	assert.Equal(t, [3]float32{1, 1, 0}, mesh.BoundingMax)
}

func TestImportGeneratesMissingNormals(t *testing.T) {
	m, _, err := importBytes(t, triangleDoc(t, nil), nativeOptions())
	require.NoError(t, err)

	pool := m.Meshes[0].Pool
	require.True(t, pool.Layout.UseNormals)
	assert.Equal(t, geometry.SemanticUnitlessVector, pool.Layout.NormalSemantic)
	require.Len(t, pool.Normals, 3)
	for _, n := range pool.Normals {
		assert.InDelta(t, 0, n[0], 1e-6)
		assert.InDelta(t, 0, n[1], 1e-6)
		assert.InDelta(t, 1, n[2], 1e-6)
	}
}

func TestImportGLTF2AxesReverseWinding(t *testing.T) {
	opts := nativeOptions()
	opts.Axes = "gltf2"
	m, _, err := importBytes(t, triangleDoc(t, nil), opts)
	require.NoError(t, err)

	pool := m.Meshes[0].Pool
	// glTF 2 calls -x right, so x is mirrored and the winding reversed.
	assert.InDelta(t, -1, pool.Vertices[1][0], 1e-6)
	assert.Equal(t, []uint32{0, 2, 1}, pool.Tris)
}

func TestImportZeroPadsShortAccessor(t *testing.T) {
	var d testDoc
	vals := make([]float32, 80*3)
	for i := range 80 {
		vals[3*i] = float32(i)
	}
	pos := d.floats("VEC3", 100, vals...)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": pos}}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	m, hook, err := importBytes(t, doc, nativeOptions())
	require.NoError(t, err)
	require.Len(t, m.Meshes, 1)
	pool := m.Meshes[0].Pool
	require.Len(t, pool.Vertices, 100)
	assert.Equal(t, float32(79), pool.Vertices[79][0])
	for i := 80; i < 100; i++ {
		assert.Equal(t, [3]float32{}, pool.Vertices[i])
	}
	// No indices: vertices are drawn in order, incomplete triangle dropped.
	assert.Equal(t, 33, pool.NumTris())
	assert.Contains(t, warnings(hook), "Accessor data is short; padding with zeros")
	assert.Equal(t, "mesh0", m.Meshes[0].Name)
	assert.Equal(t, "node0", m.Roots[0].Name)
}

func TestImportStrictRejectsShortAccessor(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 100, make([]float32, 80*3)...)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": pos}}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	opts := nativeOptions()
	opts.StrictAccessors = true
	m, _, err := importBytes(t, doc, opts)
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, ErrShortAccessor.Is(err))
}

func TestImportDropsOutOfRangeTriangles(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	idx := d.indices(0, 1, 2, 0, 1, 7, 2)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{
			"attributes": map[string]any{"POSITION": pos},
			"indices":    idx,
		}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	m, hook, err := importBytes(t, doc, nativeOptions())
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, m.Meshes[0].Pool.Tris)
	assert.Contains(t, warnings(hook), "Index count is not a multiple of 3; truncating")
	assert.Contains(t, warnings(hook), "Dropping triangles with out-of-range indices")
}

func TestImportIgnoresNonTrianglePrimitives(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 2, 0, 0, 0, 1, 0, 0)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{
			"attributes": map[string]any{"POSITION": pos},
			"mode":       1,
		}}}},
		"nodes":  []any{map[string]any{"name": "lines", "mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	m, hook, err := importBytes(t, doc, nativeOptions())
	require.NoError(t, err)
	assert.Empty(t, m.Meshes)
	require.Len(t, m.Roots, 1)
	assert.Empty(t, m.Roots[0].Meshes)
	assert.Contains(t, warnings(hook), "Ignoring primitive: only TRIANGLES are supported")
}

// colorDoc is one triangle with half-intensity ubyte vertex colors.
func colorDoc(t *testing.T, generator string) []byte {
	t.Helper()
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	col := d.ubytes("VEC4", 3,
		255, 128, 0, 128,
		255, 128, 0, 128,
		255, 128, 0, 128)
	return d.gltf2(t, map[string]any{
		"asset": map[string]any{"version": "2.0", "generator": generator},
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{
			"attributes": map[string]any{"POSITION": pos, "COLOR_0": col},
		}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})
}

func TestImportVertexColors(t *testing.T) {
	stored := common.Color32{255, 128, 0, 128}
	linear := common.Color32{255, 55, 0, 128}

	t.Run("unknown producer", func(t *testing.T) {
		for _, space := range []string{"srgb", "linear"} {
			opts := nativeOptions()
			opts.ColorSpace = space
			m, hook, err := importBytes(t, colorDoc(t, ""), opts)
			require.NoError(t, err)
			pool := m.Meshes[0].Pool
			require.True(t, pool.Layout.UseColors)
			assert.Equal(t, stored, pool.Colors[0], space)
			assert.Contains(t, warnings(hook), "Unknown producer; keeping vertex colors as stored")
		}
	})

	t.Run("tilt brush to srgb host", func(t *testing.T) {
		m, _, err := importBytes(t, colorDoc(t, "Tilt Brush 23.0"), nativeOptions())
		require.NoError(t, err)
		assert.Equal(t, stored, m.Meshes[0].Pool.Colors[0])
	})

	t.Run("tilt brush to linear host", func(t *testing.T) {
		opts := nativeOptions()
		opts.ColorSpace = "linear"
		m, hook, err := importBytes(t, colorDoc(t, "Tilt Brush 23.0"), opts)
		require.NoError(t, err)
		assert.Equal(t, linear, m.Meshes[0].Pool.Colors[0])
		assert.NotContains(t, warnings(hook), "Unknown producer; keeping vertex colors as stored")
	})

	t.Run("blocks to linear host", func(t *testing.T) {
		opts := nativeOptions()
		opts.ColorSpace = "linear"
		m, _, err := importBytes(t, colorDoc(t, "Blocks 1.4"), opts)
		require.NoError(t, err)
		assert.Equal(t, linear, m.Meshes[0].Pool.Colors[0])
	})
}

func TestImportUnknownVersion(t *testing.T) {
	doc := triangleDoc(t, map[string]any{"version": "3.0"})
	_, _, err := importBytes(t, doc, nativeOptions())
	require.Error(t, err)
	assert.True(t, ErrUnknownVersion.Is(err))
}

func TestImportBrokenReference(t *testing.T) {
	var d testDoc
	doc := d.gltf2(t, map[string]any{
		"nodes":  []any{map[string]any{"name": "dangling", "mesh": 4}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})
	m, _, err := importBytes(t, doc, nativeOptions())
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, ErrBrokenReference.Is(err))
	assert.Contains(t, err.Error(), "node 0 refers to missing mesh 4")
}

func TestImportKeepsEmptyPlaceholderNodes(t *testing.T) {
	var d testDoc
	doc := d.gltf2(t, map[string]any{
		"nodes": []any{
			map[string]any{"name": "empty_marker", "translation": []any{1, 2, 3}},
			map[string]any{"name": "nothing"},
		},
		"scenes": []any{map[string]any{"nodes": []any{0, 1}, "extras": map[string]any{"author": "someone", "strokes": 3}}},
	})
	m, _, err := importBytes(t, doc, nativeOptions())
	require.NoError(t, err)
	require.Len(t, m.Roots, 1)
	assert.Equal(t, "empty_marker", m.Roots[0].Name)
	assert.Equal(t, float32(2), m.Roots[0].Matrix[13])
	assert.Equal(t, map[string]string{"author": "someone", "strokes": "3"}, m.Extras)
}

func TestImportRenamesCompatibilityAttributes(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	uv2 := d.floats("VEC2", 3, 0, 0, 0, 0, 0, 0)
	uv3 := d.floats("VEC3", 3, 0.5, 0.25, 7, 0.5, 0.25, 7, 0.5, 0.25, 7)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{
			"attributes": map[string]any{"POSITION": pos, "TEXCOORD_0": uv2, "_TB_UNITY_TEXCOORD_0": uv3},
		}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	m, _, err := importBytes(t, doc, nativeOptions())
	require.NoError(t, err)
	pool := m.Meshes[0].Pool
	assert.Equal(t, 3, pool.Layout.Texcoords[0].Size)
	require.Len(t, pool.Texcoords[0].V3, 3)
	assert.InDelta(t, 0.75, pool.Texcoords[0].V3[0][1], 1e-6)
	assert.InDelta(t, 7, pool.Texcoords[0].V3[0][2], 1e-6)
}

func TestImportTimestampAttribute(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	ts := d.floats("VEC3", 3, 10, 20, 30, 10, 20, 30, 10, 20, 30)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{
			"attributes": map[string]any{"POSITION": pos, "_TB_TIMESTAMP": ts},
		}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	m, _, err := importBytes(t, doc, nativeOptions())
	require.NoError(t, err)
	pool := m.Meshes[0].Pool
	assert.Equal(t, geometry.TexcoordInfo{Size: 3, Semantic: geometry.SemanticTimestamp}, pool.Layout.Texcoords[timestampChannel])
	assert.Equal(t, [3]float32{10, 20, 30}, pool.Texcoords[timestampChannel].V3[2])
}

func TestImportGLTF1SplitsMultiMeshNodes(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	idx := d.indices(0, 1, 2)
	prim := map[string]any{
		"attributes": map[string]any{"POSITION": accessor1(pos)},
		"indices":    accessor1(idx),
		"mode":       4,
	}
	doc := d.gltf1(t, map[string]any{
		"meshes": map[string]any{
			"first":  map[string]any{"primitives": []any{prim}},
			"second": map[string]any{"primitives": []any{prim}},
		},
		"nodes": map[string]any{
			"holder": map[string]any{"meshes": []any{"first", "second"}},
		},
		"scenes": map[string]any{"main": map[string]any{"nodes": []any{"holder"}}},
		"scene":  "main",
	})

	m, _, err := importBytes(t, doc, nativeOptions())
	require.NoError(t, err)
	assert.Equal(t, common.SchemaV1, m.Version)
	require.Len(t, m.Roots, 1)
	root := m.Roots[0]
	assert.Equal(t, "holder", root.Name)
	require.Len(t, root.Meshes, 1)
	assert.Equal(t, "first", m.Meshes[root.Meshes[0]].Name)
	require.Len(t, root.Children, 1)
	child := root.Children[0]
	assert.Equal(t, "second_0", child.Name)
	require.Len(t, child.Meshes, 1)
	assert.Equal(t, "second", m.Meshes[child.Meshes[0]].Name)
}

func TestImportConvertScale(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": pos}}}}},
		"nodes":  []any{map[string]any{"mesh": 0, "translation": []any{1, 2, 3}}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	opts := nativeOptions()
	opts.ScaleFactor = 2
	m, _, err := importBytes(t, doc, opts)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{2, 0, 0}, m.Meshes[0].Pool.Vertices[1])
	mat := m.Roots[0].Matrix
	assert.Equal(t, [3]float32{2, 4, 6}, [3]float32{mat[12], mat[13], mat[14]})
	assert.Equal(t, float32(1), mat[0])

	opts.ScaleFactor = 0
	_, _, err = importBytes(t, doc, opts)
	require.Error(t, err)
	assert.True(t, ErrInvalidScale.Is(err))
}

func TestImportExtremeSizeMovesScaleToNodes(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 1000, 0, 0, 0, 1, 0)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": pos}}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	m, _, err := importBytes(t, doc, nativeOptions())
	require.NoError(t, err)
	assert.InDelta(t, 371, m.Meshes[0].Pool.Vertices[1][0], 1e-3)
	mat := m.Roots[0].Matrix
	assert.InDelta(t, 1000.0/371.0, mat[0], 1e-4)
	assert.InDelta(t, 1000.0/371.0, mat[5], 1e-4)
	assert.InDelta(t, 1000.0/371.0, mat[10], 1e-4)
	assert.Equal(t, float32(1), mat[15])
}

func TestImportFitAndRecenter(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 2, 0, 0, 0, 1, 0)
	d.accessors[pos]["min"] = []float32{0, 0, 0}
	d.accessors[pos]["max"] = []float32{2, 1, 0}
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": pos}}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	opts := nativeOptions()
	opts.Rescale = config.RescaleFit
	opts.DesiredSize = 10
	opts.Recenter = true
	m, _, err := importBytes(t, doc, opts)
	require.NoError(t, err)
	assert.InDelta(t, 10, m.Meshes[0].Pool.Vertices[1][0], 1e-5)
	mat := m.Roots[0].Matrix
	assert.InDelta(t, -5, mat[12], 1e-5)
	assert.InDelta(t, -2.5, mat[13], 1e-5)
	assert.InDelta(t, 0, mat[14], 1e-5)

	opts.DesiredSize = 0
	_, _, err = importBytes(t, doc, opts)
	assert.True(t, ErrInvalidScale.Is(err))
}

func TestImportFitTooSmallWarns(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 0.0001, 0, 0, 0, 0.0001, 0)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": pos}}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	opts := nativeOptions()
	opts.Rescale = config.RescaleFit
	opts.DesiredSize = 10
	m, hook, err := importBytes(t, doc, opts)
	require.NoError(t, err)
	assert.InDelta(t, 0.0001, m.Meshes[0].Pool.Vertices[1][0], 1e-9)
	assert.Contains(t, warnings(hook), "Could not automatically resize object; object is too small or empty")
}

func TestImportSplitsLargePrimitives(t *testing.T) {
	const quads = 6
	var d testDoc
	var vals []float32
	var idx []uint16
	for q := range quads {
		x := float32(q)
		vals = append(vals, x, 0, 0, x+1, 0, 0, x, 1, 0, x+1, 1, 0)
		b := uint16(4 * q)
		idx = append(idx, b, b+1, b+2, b+2, b+1, b+3)
	}
	pos := d.floats("VEC3", 4*quads, vals...)
	ind := d.indices(idx...)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"name": "strip", "primitives": []any{map[string]any{
			"attributes": map[string]any{"POSITION": pos},
			"indices":    ind,
		}}}},
		"nodes":  []any{map[string]any{"mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
	})

	opts := nativeOptions()
	opts.MaxVertsPerMesh = 12
	m, _, err := importBytes(t, doc, opts)
	require.NoError(t, err)
	require.Len(t, m.Meshes, 3)
	total := 0
	for i, mesh := range m.Meshes {
		assert.Equal(t, "strip_m"+string(rune('0'+i)), mesh.Name)
		assert.LessOrEqual(t, mesh.Pool.NumVerts(), 8)
		require.NoError(t, mesh.Pool.Validate())
		total += mesh.Pool.NumTris()
	}
	assert.Equal(t, 2*quads, total)
	assert.Equal(t, []int{0, 1, 2}, m.Roots[0].Meshes)
	// The second piece starts on a quad boundary.
	assert.Equal(t, [3]float32{2, 0, 0}, m.Meshes[1].Pool.Vertices[0])
}

func TestImportSharedMeshDecodedOnce(t *testing.T) {
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	doc := d.gltf2(t, map[string]any{
		"meshes": []any{map[string]any{"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": pos}}}}},
		"nodes": []any{
			map[string]any{"name": "a", "mesh": 0},
			map[string]any{"name": "b", "mesh": 0},
		},
		"scenes": []any{map[string]any{"nodes": []any{0, 1}}},
	})
	m, _, err := importBytes(t, doc, nativeOptions())
	require.NoError(t, err)
	require.Len(t, m.Meshes, 1)
	assert.Equal(t, m.Roots[0].Meshes, m.Roots[1].Meshes)
}

func TestImportStepsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.gltf")
	require.NoError(t, os.WriteFile(path, triangleDoc(t, nil), 0o644))

	imp, _ := newTestImporter(nativeOptions(), nil)
	var out model.ImportedModel
	steps := 0
	for err := range imp.ImportSteps(path, &out) {
		require.NoError(t, err)
		steps++
	}
	assert.Equal(t, 4, steps)
	assert.Equal(t, "steps", out.Name)
	assert.Len(t, out.Meshes, 1)

	var partial model.ImportedModel
	for err := range imp.ImportSteps(path, &partial) {
		require.NoError(t, err)
		break
	}
	assert.Empty(t, partial.Meshes)
	assert.Empty(t, partial.Name)
}

func TestImportMissingFile(t *testing.T) {
	imp, _ := newTestImporter(nativeOptions(), nil)
	_, err := imp.Import(filepath.Join(t.TempDir(), "absent.gltf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
