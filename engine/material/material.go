// Package material describes the surface a mesh is exported with: either a brush
// descriptor (fixed shaders, conventionally named texture slots, a stable GUID) or a
// plain PBR-style material.
package material

import (
	"github.com/google/uuid"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
)

// BlendMode is how a material combines with what is behind it.
type BlendMode int

const (
	BlendModeNone BlendMode = iota
	BlendModeAdditiveBlend
	BlendModeAlphaBlend
	BlendModeAlphaMask
)

func (b BlendMode) String() string {
	switch b {
	case BlendModeAdditiveBlend:
		return "additive"
	case BlendModeAlphaBlend:
		return "alpha-blend"
	case BlendModeAlphaMask:
		return "alpha-mask"
	default:
		return "none"
	}
}

// Conventional parameter names. Materials authored with BaseColorFactor are bridged
// to PBR directly; brush materials are bridged through MainTex and BumpMap.
const (
	ParamBaseColorFactor = "BaseColorFactor"
	ParamBaseColorTex    = "BaseColorTex"
	ParamMetallicFactor  = "MetallicFactor"
	ParamRoughnessFactor = "RoughnessFactor"
	ParamMainTex         = "MainTex"
	ParamBumpMap         = "BumpMap"
	ParamShininess       = "Shininess"
	ParamCutoff          = "Cutoff"
)

// material is the implementation of the Material interface.
type material struct {
	guid           uuid.UUID
	durableName    string
	uniqueName     string
	blendMode      BlendMode
	enableCull     bool
	isBrush        bool
	vertexLayout   geometry.VertexLayout
	floatParams    map[string]float32
	colorParams    map[string][4]float32
	vectorParams   map[string][4]float32
	textureURIs    map[string]string
	textureSizes   map[string][2]int
	uriBase        string
	vertShaderURI  string
	fragShaderURI  string
	emissiveFactor float32
}

// Material is the read-only descriptor the exporter needs for one mesh.
//
// Texture and parameter maps are keyed by the shader-facing parameter name (without
// any "u_" prefix). Returned maps must not be modified.
type Material interface {
	// GUID retrieves the stable identity of the material. Brush materials share a GUID
	// across documents; one-off materials get a random one.
	//
	// Returns:
	//   - uuid.UUID: the material identity
	GUID() uuid.UUID

	// DurableName retrieves the human-readable name, stable across sessions.
	//
	// Returns:
	//   - string: the durable name
	DurableName() string

	// UniqueName retrieves the name used to key per-material objects such as textures.
	// Defaults to the GUID string.
	//
	// Returns:
	//   - string: the unique name
	UniqueName() string

	// BlendMode retrieves how the material is composited.
	//
	// Returns:
	//   - BlendMode: the blend mode
	BlendMode() BlendMode

	// EnableCull reports whether back faces are culled.
	//
	// Returns:
	//   - bool: true when culling is on
	EnableCull() bool

	// IsBrush reports whether the material is a brush descriptor.
	//
	// Returns:
	//   - bool: true for brush materials
	IsBrush() bool

	// VertexLayout retrieves the vertex layout meshes using this material carry.
	//
	// Returns:
	//   - geometry.VertexLayout: the layout
	VertexLayout() geometry.VertexLayout

	// FloatParams retrieves scalar shader parameters.
	//
	// Returns:
	//   - map[string]float32: parameters keyed by name
	FloatParams() map[string]float32

	// ColorParams retrieves color shader parameters (RGBA).
	//
	// Returns:
	//   - map[string][4]float32: parameters keyed by name
	ColorParams() map[string][4]float32

	// VectorParams retrieves vector shader parameters.
	//
	// Returns:
	//   - map[string][4]float32: parameters keyed by name
	VectorParams() map[string][4]float32

	// TextureURIs retrieves texture locations keyed by parameter name. Relative URIs
	// are resolved against URIBase.
	//
	// Returns:
	//   - map[string]string: texture URIs keyed by name
	TextureURIs() map[string]string

	// TextureSize retrieves the pixel size of a texture, if known.
	//
	// Parameters:
	//   - name: the texture parameter name
	//
	// Returns:
	//   - [2]int: width and height
	//   - bool: false when the size is unknown
	TextureSize(name string) ([2]int, bool)

	// URIBase retrieves the directory or URL prefix shader and texture URIs are relative to.
	//
	// Returns:
	//   - string: the base
	URIBase() string

	// VertShaderURI retrieves the vertex shader location.
	//
	// Returns:
	//   - string: the URI, or empty
	VertShaderURI() string

	// FragShaderURI retrieves the fragment shader location.
	//
	// Returns:
	//   - string: the URI, or empty
	FragShaderURI() string

	// EmissiveFactor retrieves the emission strength used by some brushes.
	//
	// Returns:
	//   - float32: the emissive factor
	EmissiveFactor() float32
}

var _ Material = &material{}

// NewMaterial creates a new Material with the specified options applied.
// Without WithGUID a random GUID is assigned.
//
// Parameters:
//   - options: a variadic list of MaterialBuilderOption functions to configure the Material
//
// Returns:
//   - Material: a new instance of Material configured with the provided options
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		enableCull:   true,
		floatParams:  make(map[string]float32),
		colorParams:  make(map[string][4]float32),
		vectorParams: make(map[string][4]float32),
		textureURIs:  make(map[string]string),
		textureSizes: make(map[string][2]int),
	}
	for _, option := range options {
		option(m)
	}
	if m.guid == uuid.Nil {
		m.guid = uuid.New()
	}
	if m.uniqueName == "" {
		m.uniqueName = m.guid.String()
	}
	if m.durableName == "" {
		m.durableName = m.uniqueName
	}
	return m
}

func (m *material) GUID() uuid.UUID                     { return m.guid }
func (m *material) DurableName() string                 { return m.durableName }
func (m *material) UniqueName() string                  { return m.uniqueName }
func (m *material) BlendMode() BlendMode                { return m.blendMode }
func (m *material) EnableCull() bool                    { return m.enableCull }
func (m *material) IsBrush() bool                       { return m.isBrush }
func (m *material) VertexLayout() geometry.VertexLayout { return m.vertexLayout }
func (m *material) FloatParams() map[string]float32     { return m.floatParams }
func (m *material) ColorParams() map[string][4]float32  { return m.colorParams }
func (m *material) VectorParams() map[string][4]float32 { return m.vectorParams }
func (m *material) TextureURIs() map[string]string      { return m.textureURIs }
func (m *material) URIBase() string                     { return m.uriBase }
func (m *material) VertShaderURI() string               { return m.vertShaderURI }
func (m *material) FragShaderURI() string               { return m.fragShaderURI }
func (m *material) EmissiveFactor() float32             { return m.emissiveFactor }

func (m *material) TextureSize(name string) ([2]int, bool) {
	sz, ok := m.textureSizes[name]
	return sz, ok
}
