package model

import (
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
)

// --- Import Types ---

// ImportedModel represents a scene loaded from a glTF file.
// This is the universal format the importer produces and hosts consume.
type ImportedModel struct {
	// Name is the model identifier.
	Name string

	// Version is the schema revision the file was written in.
	Version common.SchemaVersion

	// Generator is the file's asset.generator, or empty.
	Generator string

	// Extras holds the scene's string extras.
	Extras map[string]string

	// Roots are the top-level nodes of the scene.
	Roots []*ImportedNode

	// Meshes contains all decoded meshes. Nodes refer to them by index.
	Meshes []ImportedMesh

	// Materials are the converted materials. Meshes refer to them by index.
	Materials []common.ImportedMaterial
}

// ImportedNode is one node of the imported hierarchy.
type ImportedNode struct {
	// Name is the node name from the file, or a generated one.
	Name string

	// Matrix is the local transform in the host's axes and units.
	Matrix common.Mat4

	// Meshes are indices into ImportedModel.Meshes. A glTF primitive that
	// exceeded the vertex limit contributes several entries.
	Meshes []int

	// Children are the node's children in file order.
	Children []*ImportedNode
}

// ImportedMesh is one decoded triangle list.
type ImportedMesh struct {
	// Name is "{mesh}", with "_p{i}" for multi-primitive meshes and "_m{i}"
	// when a primitive was split.
	Name string

	// Pool holds the vertex data in the host's axes and units.
	Pool *geometry.Pool

	// MaterialIndex references ImportedModel.Materials, or is -1.
	MaterialIndex int

	// BoundingMin is the minimum corner of the axis-aligned bounding box.
	BoundingMin [3]float32

	// BoundingMax is the maximum corner of the axis-aligned bounding box.
	BoundingMax [3]float32
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn skips the node's children.
//
// Parameters:
//   - fn: called with each node and its depth (0 for n)
func (n *ImportedNode) Walk(fn func(node *ImportedNode, depth int) bool) {
	n.walk(fn, 0)
}

func (n *ImportedNode) walk(fn func(*ImportedNode, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}
