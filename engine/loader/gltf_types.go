package loader

import (
	"github.com/chewxy/math32"
	json "github.com/goccy/go-json"
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/tidwall/gjson"
)

// --- Schema-independent objects ---
//
// glTF 1 refers to objects by string id and glTF 2 by array index, but once
// references are resolved both schemas describe the same objects. The types in
// this file hold the fields the two share; gltf1_types.go and gltf2_types.go
// embed them and add the reference fields of their schema.

// gltfRoot is a decoded document of either schema.
type gltfRoot interface {
	// schemaVersion returns the revision the document was decoded as.
	schemaVersion() common.SchemaVersion

	// assetInfo returns the document's asset object.
	assetInfo() *gltfAsset

	// dereference resolves every id or index to a pointer and loads buffer data.
	// It fails on the first reference that names a missing object.
	dereference(uris uriLoader) error

	// defaultScene returns the scene to import, or nil if the document has none.
	defaultScene() gltfScene

	// allMaterials returns the document's materials in a stable order.
	allMaterials() []gltfMaterial
}

// gltfScene is a list of root nodes.
type gltfScene interface {
	rootNodes() []gltfNode
	extras() map[string]string
}

// gltfNode is a transform with at most one mesh and any number of children.
type gltfNode interface {
	nodeName() string
	localMatrix() common.Mat4
	nodeMesh() gltfMesh
	childNodes() []gltfNode
}

// gltfMesh is a named list of primitives.
type gltfMesh interface {
	meshName() string
	primitiveList() []gltfPrimitive
}

// gltfPrimitive is one draw call: attribute accessors, indices and a material.
type gltfPrimitive interface {
	primitiveMode() int
	attributeNames() []string
	attribute(name string) *gltfAccessor
	indexAccessor() *gltfAccessor
	primitiveMaterial() gltfMaterial
	replaceAttribute(original, replacement string)
}

// gltfMaterial is a material of either schema. The converter switches on the
// concrete type to interpret it.
type gltfMaterial interface {
	materialID() string
	materialName() string
}

// uriLoader fetches the bytes behind a buffer or image uri.
type uriLoader interface {
	// loadURI returns the data for uri. An empty uri names the binary chunk of
	// a GLB container.
	loadURI(uri string) ([]byte, error)

	// resolvePath returns the local file a relative uri refers to, or "" for
	// data uris and remote uris.
	resolvePath(uri string) string
}

// gltfAsset holds metadata about the glTF asset.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-asset
type gltfAsset struct {
	// Version is the glTF version this asset targets.
	Version string `json:"version"`

	// Generator is the tool that generated this asset.
	Generator string `json:"generator,omitempty"`

	// Copyright is the copyright message.
	Copyright string `json:"copyright,omitempty"`

	// Extras is kept raw; values may be of any JSON type.
	Extras json.RawMessage `json:"extras,omitempty"`
}

// stringExtras flattens a JSON object into strings. Non-string values keep
// their JSON text. Anything other than an object yields an empty map.
func stringExtras(raw json.RawMessage) map[string]string {
	out := map[string]string{}
	if len(raw) == 0 {
		return out
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return out
	}
	res.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			out[key.String()] = value.String()
		} else {
			out[key.String()] = value.Raw
		}
		return true
	})
	return out
}

// gltfBuffer is a block of binary data.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-buffer
type gltfBuffer struct {
	// URI is the location of the data; absent for a GLB binary chunk.
	URI string `json:"uri,omitempty"`

	// ByteLength is the declared length of the buffer.
	ByteLength int `json:"byteLength"`

	// Type is "arraybuffer" in glTF 1.
	Type string `json:"type,omitempty"`

	id   string
	data []byte
}

// gltfBufferView is a slice of a buffer.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-bufferview
type gltfBufferView struct {
	// ByteOffset is the offset into the buffer.
	ByteOffset int `json:"byteOffset,omitempty"`

	// ByteLength is the length of the view.
	ByteLength int `json:"byteLength"`

	// ByteStride is the element stride for vertex data (glTF 2 only).
	ByteStride int `json:"byteStride,omitempty"`

	// Target is 34962 (ARRAY_BUFFER) or 34963 (ELEMENT_ARRAY_BUFFER).
	Target int `json:"target,omitempty"`

	id     string
	buffer *gltfBuffer
}

// gltfAccessor describes how to interpret a buffer view.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-accessor
type gltfAccessor struct {
	// Name is an optional name.
	Name string `json:"name,omitempty"`

	// ByteOffset is the offset within the bufferView.
	ByteOffset int `json:"byteOffset,omitempty"`

	// ByteStride is the element stride (glTF 1 only; glTF 2 keeps it on the view).
	ByteStride int `json:"byteStride,omitempty"`

	// ComponentType is the data type of components.
	// 5120=BYTE, 5121=UNSIGNED_BYTE, 5122=SHORT, 5123=UNSIGNED_SHORT, 5125=UNSIGNED_INT, 5126=FLOAT
	ComponentType int `json:"componentType"`

	// Normalized indicates if integer data should be normalized.
	Normalized bool `json:"normalized,omitempty"`

	// Count is the number of elements.
	Count int `json:"count"`

	// Type is the element type (SCALAR, VEC2, VEC3, VEC4, MAT2, MAT3, MAT4).
	Type string `json:"type"`

	// Max is the maximum value of each component.
	Max []float32 `json:"max,omitempty"`

	// Min is the minimum value of each component.
	Min []float32 `json:"min,omitempty"`

	id   string
	view *gltfBufferView
}

// gltfImage is a texture image source.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-image
type gltfImage struct {
	// Name is an optional name.
	Name string `json:"name,omitempty"`

	// URI is the image URI (can be data: URI or external file).
	URI string `json:"uri,omitempty"`

	// MimeType is the MIME type when embedded in a bufferView.
	MimeType string `json:"mimeType,omitempty"`

	id   string
	data []byte
	path string
}

// gltfSampler defines texture sampling parameters.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-sampler
type gltfSampler struct {
	MagFilter *int `json:"magFilter,omitempty"`
	MinFilter *int `json:"minFilter,omitempty"`
	WrapS     *int `json:"wrapS,omitempty"`
	WrapT     *int `json:"wrapT,omitempty"`
}

// samplerData fills unset fields with the glTF defaults.
func (s *gltfSampler) samplerData() *common.SamplerData {
	if s == nil {
		return nil
	}
	d := common.DefaultSamplerData()
	d.MagFilter = common.ValueOr(s.MagFilter, d.MagFilter)
	d.MinFilter = common.ValueOr(s.MinFilter, d.MinFilter)
	d.WrapS = common.ValueOr(s.WrapS, d.WrapS)
	d.WrapT = common.ValueOr(s.WrapT, d.WrapT)
	return &d
}

// gltfTexture combines an image and a sampler.
type gltfTexture struct {
	id      string
	image   *gltfImage
	sampler *gltfSampler
}

// gltfTransform holds the fields both schemas use for a node's local transform.
type gltfTransform struct {
	// Matrix is a column-major 4x4 transform. Mutually exclusive with TRS.
	Matrix *[16]float32 `json:"matrix,omitempty"`

	// Translation is the translation (x, y, z).
	Translation *[3]float32 `json:"translation,omitempty"`

	// Rotation is a unit quaternion (x, y, z, w).
	Rotation *[4]float32 `json:"rotation,omitempty"`

	// Scale is the scale (x, y, z).
	Scale *[3]float32 `json:"scale,omitempty"`
}

// localMatrix returns Matrix if present, else T * R * S.
func (t *gltfTransform) localMatrix() common.Mat4 {
	if t.Matrix != nil {
		return common.Mat4(*t.Matrix)
	}
	tr := common.ValueOr(t.Translation, [3]float32{})
	q := common.ValueOr(t.Rotation, [4]float32{0, 0, 0, 1})
	s := common.ValueOr(t.Scale, [3]float32{1, 1, 1})
	return trsMatrix(tr, q, s)
}

// trsMatrix composes translation, rotation and scale into a column-major matrix.
func trsMatrix(t [3]float32, q [4]float32, s [3]float32) common.Mat4 {
	if n := math32.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]); n > 0 {
		q = [4]float32{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
	}
	x, y, z, w := q[0], q[1], q[2], q[3]
	return common.Mat4{
		(1 - 2*(y*y+z*z)) * s[0], 2 * (x*y + z*w) * s[0], 2 * (x*z - y*w) * s[0], 0,
		2 * (x*y - z*w) * s[1], (1 - 2*(x*x+z*z)) * s[1], 2 * (y*z + x*w) * s[1], 0,
		2 * (x*z + y*w) * s[2], 2 * (y*z - x*w) * s[2], (1 - 2*(x*x+y*y)) * s[2], 0,
		t[0], t[1], t[2], 1,
	}
}

// ComponentType constants
const (
	gltfComponentTypeByte          = 5120
	gltfComponentTypeUnsignedByte  = 5121
	gltfComponentTypeShort         = 5122
	gltfComponentTypeUnsignedShort = 5123
	gltfComponentTypeUnsignedInt   = 5125
	gltfComponentTypeFloat         = 5126
)

// AccessorType constants
const (
	gltfAccessorTypeScalar = "SCALAR"
	gltfAccessorTypeVec2   = "VEC2"
	gltfAccessorTypeVec3   = "VEC3"
	gltfAccessorTypeVec4   = "VEC4"
	gltfAccessorTypeMat2   = "MAT2"
	gltfAccessorTypeMat3   = "MAT3"
	gltfAccessorTypeMat4   = "MAT4"
)

// gltfPrimitiveModeTriangles is the only primitive mode imported.
const gltfPrimitiveModeTriangles = 4

// --- Binary containers ---

// GLB magic number and chunk type constants
const (
	gltfGLBMagic      = 0x46546C67 // "glTF" in little-endian ASCII
	gltfGLBChunkJSON  = 0x4E4F534A // "JSON" in little-endian ASCII
	gltfGLBChunkBIN   = 0x004E4942 // "BIN\0" in little-endian ASCII
	gltfGLBChunkSize  = 8
	gltf1GLBHeaderLen = 20
	b3dmMagic         = 0x6D643362 // "b3dm" in little-endian ASCII
)

// gltf1BinaryBufferID is the buffer id that names the binary body of a glTF 1 GLB.
const gltf1BinaryBufferID = "binary_glTF"
