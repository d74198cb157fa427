package loader

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/googlevr/tilt-brush-sub010/common"
)

// unityAttributePrefix marks attributes whose layout does not conform to the
// glTF semantic of the same name, e.g. a 3- or 4-component texcoord.
const unityAttributePrefix = "_TB_UNITY_"

// replaceAttribute moves the entry for original to replacement in both the
// schema references and the resolved pointers, overwriting any existing
// replacement entry.
func replaceAttribute[R any](refs map[string]R, ptrs map[string]*gltfAccessor, original, replacement string) {
	if ref, ok := refs[original]; ok {
		refs[replacement] = ref
		delete(refs, original)
	}
	if ptr, ok := ptrs[original]; ok {
		ptrs[replacement] = ptr
		delete(ptrs, original)
	}
}

// renameCompatibilityAttributes replaces each standard attribute with its
// prefixed twin, e.g. TEXCOORD_0 with _TB_UNITY_TEXCOORD_0, which carries the
// full-width data.
//
// Parameters:
//   - root: a dereferenced document
//
// Returns:
//   - int: the number of attributes renamed
func renameCompatibilityAttributes(root gltfRoot) int {
	renamed := 0
	visitPrimitives(root, func(_ gltfMesh, prim gltfPrimitive) {
		for _, name := range prim.attributeNames() {
			if standard, ok := strings.CutPrefix(name, unityAttributePrefix); ok && standard != "" {
				prim.replaceAttribute(name, standard)
				renamed++
			}
		}
	})
	return renamed
}

// visitPrimitives calls fn once per primitive of every mesh reachable from
// the default scene. A mesh shared by several nodes is visited once.
func visitPrimitives(root gltfRoot, fn func(gltfMesh, gltfPrimitive)) {
	scene := root.defaultScene()
	if scene == nil {
		return
	}
	seen := map[gltfMesh]bool{}
	visited := map[gltfNode]bool{}
	var walk func(nodes []gltfNode)
	walk = func(nodes []gltfNode) {
		for _, n := range nodes {
			if visited[n] {
				continue
			}
			visited[n] = true
			if mesh := n.nodeMesh(); mesh != nil && !seen[mesh] {
				seen[mesh] = true
				for _, prim := range mesh.primitiveList() {
					fn(mesh, prim)
				}
			}
			walk(n.childNodes())
		}
	}
	walk(scene.rootNodes())
}

// maxByteRange bounds every offset, length, stride and byte count read from a
// document. Sums of a few such values cannot overflow an int.
const maxByteRange = math.MaxUint32

// checkEntries rejects collection entries that decoded from a JSON null.
func checkEntries[T any](kind string, objects []*T) error {
	for i, obj := range objects {
		if obj == nil {
			return ErrBadObject.New(kind, strconv.Itoa(i), "entry is null")
		}
	}
	return nil
}

// checkEntryMap is checkEntries for glTF 1 collections keyed by id.
func checkEntryMap[T any](kind string, objects map[string]*T) error {
	for _, id := range common.SortedKeys(objects) {
		if objects[id] == nil {
			return ErrBadObject.New(kind, id, "entry is null")
		}
	}
	return nil
}

// checkByteRange rejects a negative or oversized numeric field.
func checkByteRange(kind, id, field string, v int) error {
	if v < 0 || v > maxByteRange {
		return ErrBadObject.New(kind, id, fmt.Sprintf("%s %d is out of range", field, v))
	}
	return nil
}

// validate checks the view's offsets and sizes before any slicing uses them.
func (v *gltfBufferView) validate() error {
	for _, f := range []struct {
		name string
		val  int
	}{{"byteOffset", v.ByteOffset}, {"byteLength", v.ByteLength}, {"byteStride", v.ByteStride}} {
		if err := checkByteRange("bufferView", v.id, f.name, f.val); err != nil {
			return err
		}
	}
	return nil
}

// validate checks the accessor's offset, stride and count. The count is
// bounded by the bytes it would cover so zero-padding cannot allocate
// without limit.
func (a *gltfAccessor) validate() error {
	if err := checkByteRange("accessor", a.id, "byteOffset", a.ByteOffset); err != nil {
		return err
	}
	if err := checkByteRange("accessor", a.id, "byteStride", a.ByteStride); err != nil {
		return err
	}
	if err := checkByteRange("accessor", a.id, "count", a.Count); err != nil {
		return err
	}
	if size := a.elementSize(); size > 0 && a.Count > maxByteRange/size {
		return ErrBadObject.New("accessor", a.id, fmt.Sprintf("count %d is out of range", a.Count))
	}
	return nil
}

// checkNodeTree verifies that child links form a forest: no node is the
// child of two parents and no node is its own ancestor.
//
// Parameters:
//   - nodes: every node of the document, in a stable order
//   - children: returns the resolved children of a node
//   - id: returns the id used in errors
//
// Returns:
//   - error: ErrBadHierarchy for the first offending node
func checkNodeTree[N comparable](nodes []N, children func(N) []N, id func(N) string) error {
	parent := make(map[N]N, len(nodes))
	for _, n := range nodes {
		for _, c := range children(n) {
			if _, ok := parent[c]; ok {
				return ErrBadHierarchy.New(id(c), "has more than one parent")
			}
			parent[c] = n
		}
	}
	// 0 is unvisited, -1 is known to reach a root, i+1 is on the chain above nodes[i].
	state := make(map[N]int, len(nodes))
	for i, n := range nodes {
		stamp := i + 1
		for cur := n; ; {
			switch state[cur] {
			case -1:
			case stamp:
				return ErrBadHierarchy.New(id(cur), "is its own ancestor")
			default:
				state[cur] = stamp
				if p, ok := parent[cur]; ok {
					cur = p
					continue
				}
			}
			break
		}
		for cur := n; state[cur] == stamp; {
			state[cur] = -1
			p, ok := parent[cur]
			if !ok {
				break
			}
			cur = p
		}
	}
	return nil
}
