package loader

import (
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/googlevr/tilt-brush-sub010/common"
)

// gltf2Root is a glTF 2.0 document. Collections are arrays and references
// are indices into them.
type gltf2Root struct {
	Asset          gltfAsset          `json:"asset"`
	ExtensionsUsed []string           `json:"extensionsUsed,omitempty"`
	Buffers        []*gltf2Buffer     `json:"buffers,omitempty"`
	BufferViews    []*gltf2BufferView `json:"bufferViews,omitempty"`
	Accessors      []*gltf2Accessor   `json:"accessors,omitempty"`
	Meshes         []*gltf2Mesh       `json:"meshes,omitempty"`
	Images         []*gltf2Image      `json:"images,omitempty"`
	Samplers       []*gltfSampler     `json:"samplers,omitempty"`
	Textures       []*gltf2Texture    `json:"textures,omitempty"`
	Materials      []*gltf2Material   `json:"materials,omitempty"`
	Nodes          []*gltf2Node       `json:"nodes,omitempty"`
	Scenes         []*gltf2Scene      `json:"scenes,omitempty"`
	Scene          *int               `json:"scene,omitempty"`

	scenePtr *gltf2Scene
}

type gltf2Buffer struct {
	gltfBuffer
}

type gltf2BufferView struct {
	gltfBufferView
	Buffer int `json:"buffer"`
}

type gltf2Accessor struct {
	gltfAccessor
	BufferView *int `json:"bufferView,omitempty"`
}

type gltf2Primitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices,omitempty"`
	Material   *int           `json:"material,omitempty"`
	Mode       *int           `json:"mode,omitempty"`

	attributePtrs map[string]*gltfAccessor
	indicesPtr    *gltfAccessor
	materialPtr   *gltf2Material
}

type gltf2Mesh struct {
	Name       string            `json:"name,omitempty"`
	Primitives []*gltf2Primitive `json:"primitives"`

	index int
}

type gltf2Image struct {
	gltfImage
	BufferView *int `json:"bufferView,omitempty"`
}

type gltf2Texture struct {
	Source  *int `json:"source,omitempty"`
	Sampler *int `json:"sampler,omitempty"`

	resolved gltfTexture
}

// gltf2TextureInfo is a reference from a material to a texture.
type gltf2TextureInfo struct {
	Index    int      `json:"index"`
	TexCoord int      `json:"texCoord,omitempty"`
	Scale    *float32 `json:"scale,omitempty"`

	texture *gltfTexture
}

// gltf2PBR is the metallic-roughness block. Absent factors take the glTF defaults.
type gltf2PBR struct {
	BaseColorFactor          *[4]float32       `json:"baseColorFactor,omitempty"`
	MetallicFactor           *float32          `json:"metallicFactor,omitempty"`
	RoughnessFactor          *float32          `json:"roughnessFactor,omitempty"`
	BaseColorTexture         *gltf2TextureInfo `json:"baseColorTexture,omitempty"`
	MetallicRoughnessTexture *gltf2TextureInfo `json:"metallicRoughnessTexture,omitempty"`
}

// gltf2SpecGloss is the KHR_materials_pbrSpecularGlossiness block. Only the
// diffuse and glossiness terms are read.
type gltf2SpecGloss struct {
	DiffuseFactor    *[4]float32       `json:"diffuseFactor,omitempty"`
	DiffuseTexture   *gltf2TextureInfo `json:"diffuseTexture,omitempty"`
	GlossinessFactor *float32          `json:"glossinessFactor,omitempty"`
}

type gltf2BrushExtension struct {
	GUID string `json:"guid"`
}

type gltf2MaterialExtensions struct {
	TiltBrushMaterial *gltf2BrushExtension `json:"GOOGLE_tilt_brush_material,omitempty"`
	SpecGloss         *gltf2SpecGloss      `json:"KHR_materials_pbrSpecularGlossiness,omitempty"`
}

type gltf2Material struct {
	Name                 string                   `json:"name,omitempty"`
	PbrMetallicRoughness *gltf2PBR                `json:"pbrMetallicRoughness,omitempty"`
	NormalTexture        *gltf2TextureInfo        `json:"normalTexture,omitempty"`
	EmissiveTexture      *gltf2TextureInfo        `json:"emissiveTexture,omitempty"`
	EmissiveFactor       *[3]float32              `json:"emissiveFactor,omitempty"`
	AlphaMode            string                   `json:"alphaMode,omitempty"`
	AlphaCutoff          *float32                 `json:"alphaCutoff,omitempty"`
	DoubleSided          bool                     `json:"doubleSided,omitempty"`
	Extensions           *gltf2MaterialExtensions `json:"extensions,omitempty"`
	Extras               json.RawMessage          `json:"extras,omitempty"`

	index int
}

type gltf2Node struct {
	gltfTransform
	Name     string `json:"name,omitempty"`
	Mesh     *int   `json:"mesh,omitempty"`
	Children []int  `json:"children,omitempty"`

	index    int
	meshPtr  *gltf2Mesh
	childPtr []*gltf2Node
}

type gltf2Scene struct {
	Name   string          `json:"name,omitempty"`
	Nodes  []int           `json:"nodes,omitempty"`
	Extras json.RawMessage `json:"extras,omitempty"`

	nodePtr []*gltf2Node
}

var _ gltfRoot = &gltf2Root{}

func (r *gltf2Root) schemaVersion() common.SchemaVersion { return common.SchemaV2 }
func (r *gltf2Root) assetInfo() *gltfAsset               { return &r.Asset }

func (r *gltf2Root) defaultScene() gltfScene {
	if r.scenePtr == nil {
		return nil
	}
	return r.scenePtr
}

func (r *gltf2Root) allMaterials() []gltfMaterial {
	out := make([]gltfMaterial, len(r.Materials))
	for i, m := range r.Materials {
		out[i] = m
	}
	return out
}

// index resolves i in objects, or reports which reference is broken.
func index[T any](objects []*T, i int, fromKind, fromID, toKind string) (*T, error) {
	if i >= 0 && i < len(objects) && objects[i] != nil {
		return objects[i], nil
	}
	return nil, ErrBrokenReference.New(fromKind, fromID, toKind, fmt.Sprint(i))
}

// dereference resolves every index to a pointer and loads buffer and image data.
//
// Parameters:
//   - uris: fetches buffer and image data; buffer 0 without a uri is the GLB body
//
// Returns:
//   - error: ErrBadObject for a null entry or impossible size, ErrBrokenReference
//     for the first missing index, ErrBadHierarchy if nodes do not form a tree,
//     or a load failure
func (r *gltf2Root) dereference(uris uriLoader) error {
	if err := r.checkEntries(); err != nil {
		return err
	}
	for i, buf := range r.Buffers {
		buf.id = fmt.Sprint(i)
		if buf.URI == "" && i != 0 {
			return ErrBadBuffer.New(buf.id, "no uri")
		}
		data, err := uris.loadURI(buf.URI)
		if err != nil {
			return ErrBadBuffer.Wrap(err, buf.id, "load failed")
		}
		buf.data = data
	}
	for i, view := range r.BufferViews {
		view.id = fmt.Sprint(i)
		if err := view.validate(); err != nil {
			return err
		}
		buf, err := index(r.Buffers, view.Buffer, "bufferView", view.id, "buffer")
		if err != nil {
			return err
		}
		view.buffer = &buf.gltfBuffer
	}
	for i, acc := range r.Accessors {
		acc.id = fmt.Sprint(i)
		if err := acc.validate(); err != nil {
			return err
		}
		if acc.BufferView == nil {
			continue
		}
		view, err := index(r.BufferViews, *acc.BufferView, "accessor", acc.id, "bufferView")
		if err != nil {
			return err
		}
		acc.view = &view.gltfBufferView
	}
	for i, img := range r.Images {
		img.id = fmt.Sprint(i)
		if img.BufferView == nil {
			if err := loadImage(&img.gltfImage, uris); err != nil {
				return err
			}
			continue
		}
		view, err := index(r.BufferViews, *img.BufferView, "image", img.id, "bufferView")
		if err != nil {
			return err
		}
		img.data = viewBytes(&view.gltfBufferView)
	}
	for i, tex := range r.Textures {
		tex.resolved.id = fmt.Sprint(i)
		if tex.Source != nil {
			img, err := index(r.Images, *tex.Source, "texture", tex.resolved.id, "image")
			if err != nil {
				return err
			}
			tex.resolved.image = &img.gltfImage
		}
		if tex.Sampler != nil {
			sampler, err := index(r.Samplers, *tex.Sampler, "texture", tex.resolved.id, "sampler")
			if err != nil {
				return err
			}
			tex.resolved.sampler = sampler
		}
	}
	for i, mat := range r.Materials {
		mat.index = i
		for _, info := range mat.textureInfos() {
			tex, err := index(r.Textures, info.Index, "material", fmt.Sprint(i), "texture")
			if err != nil {
				return err
			}
			info.texture = &tex.resolved
		}
	}
	for i, mesh := range r.Meshes {
		mesh.index = i
		for j, prim := range mesh.Primitives {
			from := fmt.Sprintf("%d.primitives[%d]", i, j)
			prim.attributePtrs = make(map[string]*gltfAccessor, len(prim.Attributes))
			for name, ref := range prim.Attributes {
				acc, err := index(r.Accessors, ref, "mesh", from, "accessor")
				if err != nil {
					return err
				}
				prim.attributePtrs[name] = &acc.gltfAccessor
			}
			if prim.Indices != nil {
				acc, err := index(r.Accessors, *prim.Indices, "mesh", from, "accessor")
				if err != nil {
					return err
				}
				prim.indicesPtr = &acc.gltfAccessor
			}
			if prim.Material != nil {
				mat, err := index(r.Materials, *prim.Material, "mesh", from, "material")
				if err != nil {
					return err
				}
				prim.materialPtr = mat
			}
		}
	}
	for i, node := range r.Nodes {
		node.index = i
		id := fmt.Sprint(i)
		if node.Mesh != nil {
			mesh, err := index(r.Meshes, *node.Mesh, "node", id, "mesh")
			if err != nil {
				return err
			}
			node.meshPtr = mesh
		}
		node.childPtr = make([]*gltf2Node, 0, len(node.Children))
		for _, ref := range node.Children {
			child, err := index(r.Nodes, ref, "node", id, "node")
			if err != nil {
				return err
			}
			node.childPtr = append(node.childPtr, child)
		}
	}
	err := checkNodeTree(r.Nodes,
		func(n *gltf2Node) []*gltf2Node { return n.childPtr },
		func(n *gltf2Node) string { return strconv.Itoa(n.index) })
	if err != nil {
		return err
	}
	for i, scene := range r.Scenes {
		scene.nodePtr = make([]*gltf2Node, 0, len(scene.Nodes))
		for _, ref := range scene.Nodes {
			node, err := index(r.Nodes, ref, "scene", fmt.Sprint(i), "node")
			if err != nil {
				return err
			}
			scene.nodePtr = append(scene.nodePtr, node)
		}
	}

	switch {
	case r.Scene != nil:
		scene, err := index(r.Scenes, *r.Scene, "document", "scene", "scene")
		if err != nil {
			return err
		}
		r.scenePtr = scene
	case len(r.Scenes) > 0:
		r.scenePtr = r.Scenes[0]
	}
	return nil
}

// checkEntries rejects null entries in every collection and mesh.
func (r *gltf2Root) checkEntries() error {
	for _, err := range []error{
		checkEntries("buffer", r.Buffers),
		checkEntries("bufferView", r.BufferViews),
		checkEntries("accessor", r.Accessors),
		checkEntries("mesh", r.Meshes),
		checkEntries("image", r.Images),
		checkEntries("sampler", r.Samplers),
		checkEntries("texture", r.Textures),
		checkEntries("material", r.Materials),
		checkEntries("node", r.Nodes),
		checkEntries("scene", r.Scenes),
	} {
		if err != nil {
			return err
		}
	}
	for i, mesh := range r.Meshes {
		if err := checkEntries(fmt.Sprintf("mesh %d primitive", i), mesh.Primitives); err != nil {
			return err
		}
	}
	return nil
}

// viewBytes returns the bytes a buffer view covers, clamped to the loaded data.
func viewBytes(view *gltfBufferView) []byte {
	if view.buffer == nil {
		return nil
	}
	data := view.buffer.data
	start := min(view.ByteOffset, len(data))
	end := min(view.ByteOffset+view.ByteLength, len(data))
	return data[start:end]
}

func (s *gltf2Scene) rootNodes() []gltfNode {
	out := make([]gltfNode, len(s.nodePtr))
	for i, n := range s.nodePtr {
		out[i] = n
	}
	return out
}

func (s *gltf2Scene) extras() map[string]string { return stringExtras(s.Extras) }

func (n *gltf2Node) nodeName() string {
	return common.Coalesce(n.Name, fmt.Sprintf("node%d", n.index))
}

func (n *gltf2Node) nodeMesh() gltfMesh {
	if n.meshPtr == nil {
		return nil
	}
	return n.meshPtr
}

func (n *gltf2Node) childNodes() []gltfNode {
	out := make([]gltfNode, len(n.childPtr))
	for i, c := range n.childPtr {
		out[i] = c
	}
	return out
}

func (m *gltf2Mesh) meshName() string {
	return common.Coalesce(m.Name, fmt.Sprintf("mesh%d", m.index))
}

func (m *gltf2Mesh) primitiveList() []gltfPrimitive {
	out := make([]gltfPrimitive, len(m.Primitives))
	for i, p := range m.Primitives {
		out[i] = p
	}
	return out
}

func (p *gltf2Primitive) primitiveMode() int {
	return common.ValueOr(p.Mode, gltfPrimitiveModeTriangles)
}

func (p *gltf2Primitive) attributeNames() []string { return common.SortedKeys(p.attributePtrs) }

func (p *gltf2Primitive) attribute(name string) *gltfAccessor { return p.attributePtrs[name] }
func (p *gltf2Primitive) indexAccessor() *gltfAccessor        { return p.indicesPtr }

func (p *gltf2Primitive) primitiveMaterial() gltfMaterial {
	if p.materialPtr == nil {
		return nil
	}
	return p.materialPtr
}

func (p *gltf2Primitive) replaceAttribute(original, replacement string) {
	replaceAttribute(p.Attributes, p.attributePtrs, original, replacement)
}

func (m *gltf2Material) materialID() string   { return fmt.Sprint(m.index) }
func (m *gltf2Material) materialName() string { return m.Name }

// brushGUID returns the GUID from the brush material extension, or "".
func (m *gltf2Material) brushGUID() string {
	if m.Extensions == nil || m.Extensions.TiltBrushMaterial == nil {
		return ""
	}
	return m.Extensions.TiltBrushMaterial.GUID
}

// specGloss returns the specular-glossiness extension, or nil.
func (m *gltf2Material) specGloss() *gltf2SpecGloss {
	if m.Extensions == nil {
		return nil
	}
	return m.Extensions.SpecGloss
}

// textureInfos returns every texture reference the material makes.
func (m *gltf2Material) textureInfos() []*gltf2TextureInfo {
	var out []*gltf2TextureInfo
	add := func(info *gltf2TextureInfo) {
		if info != nil {
			out = append(out, info)
		}
	}
	add(m.NormalTexture)
	add(m.EmissiveTexture)
	if pbr := m.PbrMetallicRoughness; pbr != nil {
		add(pbr.BaseColorTexture)
		add(pbr.MetallicRoughnessTexture)
	}
	if sg := m.specGloss(); sg != nil {
		add(sg.DiffuseTexture)
	}
	return out
}

// resolvedTexture returns the texture info refers to; nil info yields nil.
func (info *gltf2TextureInfo) resolvedTexture() *gltfTexture {
	if info == nil {
		return nil
	}
	return info.texture
}
