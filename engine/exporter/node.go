package exporter

import (
	"github.com/googlevr/tilt-brush-sub010/common"
)

// Node is a transform in the exported node hierarchy.
type Node interface {
	// Name returns the unique registry name of the node.
	Name() string

	// PresentationName returns the name written to the file.
	PresentationName() string

	// SetPresentationName overrides the name written to the file.
	//
	// Parameters:
	//   - name: the human-facing name
	SetPresentationName(name string)

	// Matrix returns the node's local transform in the exported axis convention.
	Matrix() common.Mat4

	// Parent returns the parent node, or nil for a root.
	Parent() Node

	// Children returns the node's children in creation order.
	Children() []Node

	// HasMesh reports whether a mesh is attached.
	HasMesh() bool
}

// node is the implementation of the Node interface.
type node struct {
	named
	matrix   common.Mat4
	mesh     *mesh
	camera   *camera
	parent   *node
	children []*node
}

var _ Node = &node{}
var _ referencedObject = &node{}

func nodeName(uniqueName string) string {
	return "node_" + uniqueName
}

func (n *node) kind() objectKind    { return kindNode }
func (n *node) Matrix() common.Mat4 { return n.matrix }
func (n *node) HasMesh() bool       { return n.mesh != nil }

func (n *node) Parent() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *node) Children() []Node {
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *node) iterReferences(ctx *writeContext) []referencedObject {
	out := []referencedObject{ctx.ref(n.mesh)}
	if n.camera != nil {
		out = append(out, ctx.ref(n.camera))
	}
	for _, c := range n.children {
		out = append(out, ctx.ref(c))
	}
	return refs(out...)
}

func (n *node) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	w.KeyString("name", n.PresentationName())
	if n.mesh != nil {
		if ctx.v1() {
			w.Key("meshes")
			w.BeginArray()
			ctx.writeRef(n.mesh)
			w.EndArray()
		} else {
			ctx.keyRef("mesh", n.mesh)
		}
	}
	if n.camera != nil {
		ctx.keyRef("camera", n.camera)
	}
	if len(n.children) > 0 {
		w.Key("children")
		w.BeginArray()
		for _, c := range n.children {
			ctx.writeRef(c)
		}
		w.EndArray()
	}
	if ctx.v1() || !n.matrix.IsIdentity(0) {
		w.Key("matrix")
		w.Floats(n.matrix[:])
	}
	w.EndObject()
}

// asNode unwraps a caller-supplied parent.
func asNode(n Node) *node {
	if n == nil {
		return nil
	}
	impl, _ := n.(*node)
	return impl
}
