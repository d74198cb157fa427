package model

import (
	"github.com/googlevr/tilt-brush-sub010/common"
)

// model is the implementation of the Model interface.
type model struct {
	name       string
	version    common.SchemaVersion
	generator  string
	extras     map[string]string
	roots      []*ImportedNode
	meshes     []ImportedMesh
	materials  []common.ImportedMaterial
	boundsMin  [3]float32
	boundsMax  [3]float32
	haveBounds bool
}

// Model defines the interface for a loaded glTF scene.
// A Model is a read-only view over the node hierarchy, meshes and materials
// produced by the Loader after importing a file.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Version retrieves the schema revision of the source file.
	//
	// Returns:
	//   - common.SchemaVersion: the revision
	Version() common.SchemaVersion

	// Generator retrieves the source file's asset.generator.
	//
	// Returns:
	//   - string: the generator, or empty
	Generator() string

	// Extras retrieves the scene extras of the source file.
	//
	// Returns:
	//   - map[string]string: the extras, never nil
	Extras() map[string]string

	// Roots retrieves the top-level nodes.
	//
	// Returns:
	//   - []*ImportedNode: the root nodes in file order
	Roots() []*ImportedNode

	// Meshes retrieves every decoded mesh.
	//
	// Returns:
	//   - []ImportedMesh: the meshes, indexed by ImportedNode.Meshes
	Meshes() []ImportedMesh

	// ImportedMaterials retrieves the converted materials.
	//
	// Returns:
	//   - []common.ImportedMaterial: the materials, indexed by ImportedMesh.MaterialIndex
	ImportedMaterials() []common.ImportedMaterial

	// FindNode returns the first node with the given name in depth-first order.
	//
	// Parameters:
	//   - name: the node name
	//
	// Returns:
	//   - *ImportedNode: the node, or nil if absent
	FindNode(name string) *ImportedNode

	// NodeCount returns the number of nodes in the hierarchy.
	NodeCount() int

	// VertexCount returns the total vertex count over all meshes.
	VertexCount() int

	// TriangleCount returns the total triangle count over all meshes.
	TriangleCount() int

	// Bounds returns the union of the mesh bounds in mesh-local space.
	// ok is false for a model without geometry.
	Bounds() (min, max [3]float32, ok bool)
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{extras: map[string]string{}}
	for _, opt := range options {
		opt(m)
	}
	m.computeBounds()
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Version() common.SchemaVersion {
	return m.version
}

func (m *model) Generator() string {
	return m.generator
}

func (m *model) Extras() map[string]string {
	return m.extras
}

func (m *model) Roots() []*ImportedNode {
	return m.roots
}

func (m *model) Meshes() []ImportedMesh {
	return m.meshes
}

func (m *model) ImportedMaterials() []common.ImportedMaterial {
	return m.materials
}

func (m *model) FindNode(name string) *ImportedNode {
	var found *ImportedNode
	for _, r := range m.roots {
		r.Walk(func(n *ImportedNode, _ int) bool {
			if found == nil && n.Name == name {
				found = n
			}
			return found == nil
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func (m *model) NodeCount() int {
	count := 0
	for _, r := range m.roots {
		r.Walk(func(*ImportedNode, int) bool {
			count++
			return true
		})
	}
	return count
}

func (m *model) VertexCount() int {
	n := 0
	for _, mesh := range m.meshes {
		if mesh.Pool != nil {
			n += mesh.Pool.NumVerts()
		}
	}
	return n
}

func (m *model) TriangleCount() int {
	n := 0
	for _, mesh := range m.meshes {
		if mesh.Pool != nil {
			n += mesh.Pool.NumTris()
		}
	}
	return n
}

func (m *model) Bounds() ([3]float32, [3]float32, bool) {
	return m.boundsMin, m.boundsMax, m.haveBounds
}

func (m *model) computeBounds() {
	for _, mesh := range m.meshes {
		if mesh.Pool == nil || mesh.Pool.NumVerts() == 0 {
			continue
		}
		if !m.haveBounds {
			m.boundsMin, m.boundsMax, m.haveBounds = mesh.BoundingMin, mesh.BoundingMax, true
			continue
		}
		for k := 0; k < 3; k++ {
			m.boundsMin[k] = min(m.boundsMin[k], mesh.BoundingMin[k])
			m.boundsMax[k] = max(m.boundsMax[k], mesh.BoundingMax[k])
		}
	}
}
