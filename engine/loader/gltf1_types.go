package loader

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
)

// gltf1Root is a glTF 1.0 document. Every top-level collection is an object
// keyed by id and references between objects are those ids.
type gltf1Root struct {
	Asset       gltfAsset                   `json:"asset"`
	Buffers     map[string]*gltf1Buffer     `json:"buffers"`
	BufferViews map[string]*gltf1BufferView `json:"bufferViews"`
	Accessors   map[string]*gltf1Accessor   `json:"accessors"`
	Meshes      map[string]*gltf1Mesh       `json:"meshes"`
	Shaders     map[string]*gltf1Shader     `json:"shaders"`
	Programs    map[string]*gltf1Program    `json:"programs"`
	Techniques  map[string]*gltf1Technique  `json:"techniques"`
	Images      map[string]*gltf1Image      `json:"images"`
	Samplers    map[string]*gltfSampler     `json:"samplers"`
	Textures    map[string]*gltf1Texture    `json:"textures"`
	Materials   map[string]*gltf1Material   `json:"materials"`
	Nodes       map[string]*gltf1Node       `json:"nodes"`
	Scenes      map[string]*gltf1Scene      `json:"scenes"`
	Scene       string                      `json:"scene,omitempty"`

	scenePtr *gltf1Scene
}

type gltf1Buffer struct {
	gltfBuffer
}

type gltf1BufferView struct {
	gltfBufferView
	Buffer string `json:"buffer"`
}

type gltf1Accessor struct {
	gltfAccessor
	BufferView string `json:"bufferView"`
}

type gltf1Primitive struct {
	Attributes map[string]string `json:"attributes"`
	Indices    string            `json:"indices,omitempty"`
	Material   string            `json:"material,omitempty"`
	Mode       *int              `json:"mode,omitempty"`

	attributePtrs map[string]*gltfAccessor
	indicesPtr    *gltfAccessor
	materialPtr   *gltf1Material
}

type gltf1Mesh struct {
	Name       string            `json:"name,omitempty"`
	Primitives []*gltf1Primitive `json:"primitives"`

	id string
}

// gltf1Shader is a GLSL source reference. Brush shaders embed the brush GUID
// in their uri.
type gltf1Shader struct {
	URI  string `json:"uri"`
	Type int    `json:"type"`

	id string
}

type gltf1Program struct {
	VertexShader   string `json:"vertexShader,omitempty"`
	FragmentShader string `json:"fragmentShader,omitempty"`

	id                string
	vertexShaderPtr   *gltf1Shader
	fragmentShaderPtr *gltf1Shader
}

type gltf1Technique struct {
	Program string            `json:"program,omitempty"`
	Extras  map[string]string `json:"extras,omitempty"`

	id         string
	programPtr *gltf1Program
}

type gltf1Image struct {
	gltfImage
}

type gltf1Texture struct {
	Source  string `json:"source,omitempty"`
	Sampler string `json:"sampler,omitempty"`

	resolved gltfTexture
}

// gltf1Material keeps its values raw. Only the parameters a brush or PBR
// material writes are interpreted, and texture parameters hold texture ids.
type gltf1Material struct {
	Name      string                     `json:"name,omitempty"`
	Technique string                     `json:"technique,omitempty"`
	Values    map[string]json.RawMessage `json:"values,omitempty"`

	id           string
	techniquePtr *gltf1Technique
	texturePtrs  map[string]*gltfTexture
}

type gltf1Node struct {
	gltfTransform
	Name     string   `json:"name,omitempty"`
	Children []string `json:"children,omitempty"`
	Meshes   []string `json:"meshes,omitempty"`

	id       string
	meshPtr  *gltf1Mesh
	childPtr []*gltf1Node
}

type gltf1Scene struct {
	Nodes  []string        `json:"nodes,omitempty"`
	Extras json.RawMessage `json:"extras,omitempty"`

	id      string
	nodePtr []*gltf1Node
}

// gltf1TextureParams lists the material values that name a texture.
var gltf1TextureParams = []string{material.ParamBaseColorTex, material.ParamMainTex, material.ParamBumpMap}

var _ gltfRoot = &gltf1Root{}

func (r *gltf1Root) schemaVersion() common.SchemaVersion { return common.SchemaV1 }
func (r *gltf1Root) assetInfo() *gltfAsset               { return &r.Asset }

func (r *gltf1Root) defaultScene() gltfScene {
	if r.scenePtr == nil {
		return nil
	}
	return r.scenePtr
}

func (r *gltf1Root) allMaterials() []gltfMaterial {
	out := make([]gltfMaterial, 0, len(r.Materials))
	for _, id := range common.SortedKeys(r.Materials) {
		out = append(out, r.Materials[id])
	}
	return out
}

// lookup resolves id in objects, or reports which reference is broken.
func lookup[T any](objects map[string]*T, id, fromKind, fromID, toKind string) (*T, error) {
	if obj, ok := objects[id]; ok && obj != nil {
		return obj, nil
	}
	return nil, ErrBrokenReference.New(fromKind, fromID, toKind, id)
}

// dereference resolves every string id to a pointer and loads buffer data.
//
// Parameters:
//   - uris: fetches buffer and image data
//
// Returns:
//   - error: ErrBadObject for a null entry or impossible size, ErrBrokenReference
//     for the first missing id, ErrBadHierarchy if nodes do not form a tree, or
//     a load failure
func (r *gltf1Root) dereference(uris uriLoader) error {
	if err := r.checkEntries(); err != nil {
		return err
	}
	r.splitMultipleMeshes()

	for _, id := range common.SortedKeys(r.Buffers) {
		buf := r.Buffers[id]
		buf.id = id
		if buf.URI == "" && id != gltf1BinaryBufferID {
			return ErrBadBuffer.New(id, "no uri")
		}
		uri := buf.URI
		if id == gltf1BinaryBufferID {
			uri = ""
		}
		data, err := uris.loadURI(uri)
		if err != nil {
			return ErrBadBuffer.Wrap(err, id, "load failed")
		}
		buf.data = data
	}
	for id, view := range r.BufferViews {
		view.id = id
		if err := view.validate(); err != nil {
			return err
		}
		buf, err := lookup(r.Buffers, view.Buffer, "bufferView", id, "buffer")
		if err != nil {
			return err
		}
		view.buffer = &buf.gltfBuffer
	}
	for id, acc := range r.Accessors {
		acc.id = id
		if err := acc.validate(); err != nil {
			return err
		}
		view, err := lookup(r.BufferViews, acc.BufferView, "accessor", id, "bufferView")
		if err != nil {
			return err
		}
		acc.view = &view.gltfBufferView
	}
	for id, shader := range r.Shaders {
		shader.id = id
	}
	for id, program := range r.Programs {
		program.id = id
		var err error
		if program.VertexShader != "" {
			if program.vertexShaderPtr, err = lookup(r.Shaders, program.VertexShader, "program", id, "shader"); err != nil {
				return err
			}
		}
		if program.FragmentShader != "" {
			if program.fragmentShaderPtr, err = lookup(r.Shaders, program.FragmentShader, "program", id, "shader"); err != nil {
				return err
			}
		}
	}
	for id, technique := range r.Techniques {
		technique.id = id
		if technique.Program == "" {
			continue
		}
		program, err := lookup(r.Programs, technique.Program, "technique", id, "program")
		if err != nil {
			return err
		}
		technique.programPtr = program
	}
	for _, id := range common.SortedKeys(r.Images) {
		img := r.Images[id]
		img.id = id
		if err := loadImage(&img.gltfImage, uris); err != nil {
			return err
		}
	}
	for id, tex := range r.Textures {
		tex.resolved.id = id
		if tex.Source != "" {
			img, err := lookup(r.Images, tex.Source, "texture", id, "image")
			if err != nil {
				return err
			}
			tex.resolved.image = &img.gltfImage
		}
		if tex.Sampler != "" {
			sampler, err := lookup(r.Samplers, tex.Sampler, "texture", id, "sampler")
			if err != nil {
				return err
			}
			tex.resolved.sampler = sampler
		}
	}
	for id, mat := range r.Materials {
		mat.id = id
		if mat.Technique != "" {
			technique, err := lookup(r.Techniques, mat.Technique, "material", id, "technique")
			if err != nil {
				return err
			}
			mat.techniquePtr = technique
		}
		mat.texturePtrs = map[string]*gltfTexture{}
		for _, param := range gltf1TextureParams {
			ref, ok := mat.stringValue(param)
			if !ok {
				continue
			}
			tex, err := lookup(r.Textures, ref, "material", id, "texture")
			if err != nil {
				return err
			}
			mat.texturePtrs[param] = &tex.resolved
		}
	}
	for id, mesh := range r.Meshes {
		mesh.id = id
		for i, prim := range mesh.Primitives {
			from := fmt.Sprintf("%s.primitives[%d]", id, i)
			prim.attributePtrs = make(map[string]*gltfAccessor, len(prim.Attributes))
			for name, ref := range prim.Attributes {
				acc, err := lookup(r.Accessors, ref, "mesh", from, "accessor")
				if err != nil {
					return err
				}
				prim.attributePtrs[name] = &acc.gltfAccessor
			}
			if prim.Indices != "" {
				acc, err := lookup(r.Accessors, prim.Indices, "mesh", from, "accessor")
				if err != nil {
					return err
				}
				prim.indicesPtr = &acc.gltfAccessor
			}
			if prim.Material != "" {
				mat, err := lookup(r.Materials, prim.Material, "mesh", from, "material")
				if err != nil {
					return err
				}
				prim.materialPtr = mat
			}
		}
	}
	for id, node := range r.Nodes {
		node.id = id
		if len(node.Meshes) == 1 {
			mesh, err := lookup(r.Meshes, node.Meshes[0], "node", id, "mesh")
			if err != nil {
				return err
			}
			node.meshPtr = mesh
		}
		node.childPtr = make([]*gltf1Node, 0, len(node.Children))
		for _, ref := range node.Children {
			child, err := lookup(r.Nodes, ref, "node", id, "node")
			if err != nil {
				return err
			}
			node.childPtr = append(node.childPtr, child)
		}
	}
	nodes := make([]*gltf1Node, 0, len(r.Nodes))
	for _, id := range common.SortedKeys(r.Nodes) {
		nodes = append(nodes, r.Nodes[id])
	}
	err := checkNodeTree(nodes,
		func(n *gltf1Node) []*gltf1Node { return n.childPtr },
		func(n *gltf1Node) string { return n.id })
	if err != nil {
		return err
	}
	for id, scene := range r.Scenes {
		scene.id = id
		scene.nodePtr = make([]*gltf1Node, 0, len(scene.Nodes))
		for _, ref := range scene.Nodes {
			node, err := lookup(r.Nodes, ref, "scene", id, "node")
			if err != nil {
				return err
			}
			scene.nodePtr = append(scene.nodePtr, node)
		}
	}

	switch {
	case r.Scene != "":
		scene, err := lookup(r.Scenes, r.Scene, "document", "scene", "scene")
		if err != nil {
			return err
		}
		r.scenePtr = scene
	case len(r.Scenes) > 0:
		r.scenePtr = r.Scenes[common.SortedKeys(r.Scenes)[0]]
	}
	return nil
}

// checkEntries rejects null entries in every collection and mesh.
func (r *gltf1Root) checkEntries() error {
	for _, err := range []error{
		checkEntryMap("buffer", r.Buffers),
		checkEntryMap("bufferView", r.BufferViews),
		checkEntryMap("accessor", r.Accessors),
		checkEntryMap("mesh", r.Meshes),
		checkEntryMap("shader", r.Shaders),
		checkEntryMap("program", r.Programs),
		checkEntryMap("technique", r.Techniques),
		checkEntryMap("image", r.Images),
		checkEntryMap("sampler", r.Samplers),
		checkEntryMap("texture", r.Textures),
		checkEntryMap("material", r.Materials),
		checkEntryMap("node", r.Nodes),
		checkEntryMap("scene", r.Scenes),
	} {
		if err != nil {
			return err
		}
	}
	for _, id := range common.SortedKeys(r.Meshes) {
		if err := checkEntries("mesh "+id+" primitive", r.Meshes[id].Primitives); err != nil {
			return err
		}
	}
	return nil
}

// splitMultipleMeshes moves all but the first mesh of each node into new
// child nodes named {mesh}_{i}, so every node has at most one mesh.
func (r *gltf1Root) splitMultipleMeshes() {
	if r.Nodes == nil {
		r.Nodes = map[string]*gltf1Node{}
	}
	for _, id := range common.SortedKeys(r.Nodes) {
		node := r.Nodes[id]
		for len(node.Meshes) > 1 {
			last := len(node.Meshes) - 1
			meshID := node.Meshes[last]
			node.Meshes = node.Meshes[:last]

			var childID string
			for i := 0; ; i++ {
				childID = fmt.Sprintf("%s_%d", meshID, i)
				if _, taken := r.Nodes[childID]; !taken {
					break
				}
			}
			r.Nodes[childID] = &gltf1Node{Name: childID, Meshes: []string{meshID}}
			node.Children = append(node.Children, childID)
		}
	}
}

func (s *gltf1Scene) rootNodes() []gltfNode {
	out := make([]gltfNode, len(s.nodePtr))
	for i, n := range s.nodePtr {
		out[i] = n
	}
	return out
}

func (s *gltf1Scene) extras() map[string]string { return stringExtras(s.Extras) }

func (n *gltf1Node) nodeName() string { return common.Coalesce(n.Name, n.id) }

func (n *gltf1Node) nodeMesh() gltfMesh {
	if n.meshPtr == nil {
		return nil
	}
	return n.meshPtr
}

func (n *gltf1Node) childNodes() []gltfNode {
	out := make([]gltfNode, len(n.childPtr))
	for i, c := range n.childPtr {
		out[i] = c
	}
	return out
}

func (m *gltf1Mesh) meshName() string { return common.Coalesce(m.Name, m.id) }

func (m *gltf1Mesh) primitiveList() []gltfPrimitive {
	out := make([]gltfPrimitive, len(m.Primitives))
	for i, p := range m.Primitives {
		out[i] = p
	}
	return out
}

func (p *gltf1Primitive) primitiveMode() int {
	return common.ValueOr(p.Mode, gltfPrimitiveModeTriangles)
}

func (p *gltf1Primitive) attributeNames() []string {
	return common.SortedKeys(p.attributePtrs)
}

func (p *gltf1Primitive) attribute(name string) *gltfAccessor { return p.attributePtrs[name] }
func (p *gltf1Primitive) indexAccessor() *gltfAccessor        { return p.indicesPtr }

func (p *gltf1Primitive) primitiveMaterial() gltfMaterial {
	if p.materialPtr == nil {
		return nil
	}
	return p.materialPtr
}

func (p *gltf1Primitive) replaceAttribute(original, replacement string) {
	replaceAttribute(p.Attributes, p.attributePtrs, original, replacement)
}

func (m *gltf1Material) materialID() string   { return m.id }
func (m *gltf1Material) materialName() string { return m.Name }

// techniqueExtras returns the extras of the material's technique, if any.
func (m *gltf1Material) techniqueExtras() map[string]string {
	if m.techniquePtr == nil {
		return nil
	}
	return m.techniquePtr.Extras
}

// shaderURIs returns the vertex and fragment shader uris of the material's program.
func (m *gltf1Material) shaderURIs() (vertex, fragment string) {
	if m.techniquePtr == nil || m.techniquePtr.programPtr == nil {
		return "", ""
	}
	p := m.techniquePtr.programPtr
	if p.vertexShaderPtr != nil {
		vertex = p.vertexShaderPtr.URI
	}
	if p.fragmentShaderPtr != nil {
		fragment = p.fragmentShaderPtr.URI
	}
	return vertex, fragment
}

// stringValue returns values[name] when it is a JSON string.
func (m *gltf1Material) stringValue(name string) (string, bool) {
	raw, ok := m.Values[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

// floatValues returns values[name] as numbers; a scalar yields one element.
func (m *gltf1Material) floatValues(name string) ([]float32, bool) {
	raw, ok := m.Values[name]
	if !ok {
		return nil, false
	}
	var f float32
	if err := json.Unmarshal(raw, &f); err == nil {
		return []float32{f}, true
	}
	var fs []float32
	if err := json.Unmarshal(raw, &fs); err == nil && len(fs) > 0 {
		return fs, true
	}
	return nil, false
}
