package model

import (
	"testing"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadPool(offset float32) *geometry.Pool {
	p := geometry.NewPool(geometry.VertexLayout{})
	p.Vertices = [][3]float32{{offset, 0, 0}, {offset + 1, 0, 0}, {offset + 1, 1, 0}, {offset, 1, 0}}
	p.Tris = []uint32{0, 1, 2, 0, 2, 3}
	return p
}

func TestModelQueries(t *testing.T) {
	a, b := quadPool(0), quadPool(5)
	aMin, aMax := a.Bounds()
	bMin, bMax := b.Bounds()
	leaf := &ImportedNode{Name: "leaf", Matrix: common.IdentityMat4(), Meshes: []int{1}}
	root := &ImportedNode{Name: "root", Matrix: common.IdentityMat4(), Meshes: []int{0}, Children: []*ImportedNode{leaf}}
	other := &ImportedNode{Name: "empty_marker", Matrix: common.IdentityMat4()}

	m := NewModel(WithImported(&ImportedModel{
		Name:      "scene",
		Version:   common.SchemaV2,
		Generator: "Tilt Brush 23.1",
		Roots:     []*ImportedNode{root, other},
		Meshes: []ImportedMesh{
			{Name: "a", Pool: a, MaterialIndex: -1, BoundingMin: aMin, BoundingMax: aMax},
			{Name: "b", Pool: b, MaterialIndex: -1, BoundingMin: bMin, BoundingMax: bMax},
		},
	}))

	assert.Equal(t, "scene", m.Name())
	assert.Equal(t, common.SchemaV2, m.Version())
	assert.Equal(t, "Tilt Brush 23.1", m.Generator())
	assert.NotNil(t, m.Extras())
	assert.Equal(t, 3, m.NodeCount())
	assert.Equal(t, 8, m.VertexCount())
	assert.Equal(t, 4, m.TriangleCount())
	assert.Same(t, leaf, m.FindNode("leaf"))
	assert.Nil(t, m.FindNode("missing"))

	min, max, ok := m.Bounds()
	require.True(t, ok)
	assert.Equal(t, [3]float32{0, 0, 0}, min)
	assert.Equal(t, [3]float32{6, 1, 0}, max)
}

func TestWalkSkipsChildren(t *testing.T) {
	grandchild := &ImportedNode{Name: "gc"}
	child := &ImportedNode{Name: "c", Children: []*ImportedNode{grandchild}}
	root := &ImportedNode{Name: "r", Children: []*ImportedNode{child}}

	var seen []string
	root.Walk(func(n *ImportedNode, depth int) bool {
		seen = append(seen, n.Name)
		return n.Name != "c"
	})
	assert.Equal(t, []string{"r", "c"}, seen)
}

func TestEmptyModelHasNoBounds(t *testing.T) {
	m := NewModel(WithName("nothing"))
	_, _, ok := m.Bounds()
	assert.False(t, ok)
	assert.Zero(t, m.VertexCount())
}
