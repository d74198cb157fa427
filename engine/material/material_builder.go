package material

import (
	"github.com/google/uuid"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithGUID is an option builder that sets the stable identity of the material.
//
// Parameters:
//   - id: the material GUID
//
// Returns:
//   - MaterialBuilderOption: a function that applies the GUID option to a material
func WithGUID(id uuid.UUID) MaterialBuilderOption {
	return func(m *material) {
		m.guid = id
	}
}

// WithDurableName is an option builder that sets the human-readable material name.
//
// Parameters:
//   - name: the durable name
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithDurableName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.durableName = name
	}
}

// WithUniqueName is an option builder that overrides the unique name (default: the GUID).
//
// Parameters:
//   - name: the unique name
//
// Returns:
//   - MaterialBuilderOption: a function that applies the unique name option to a material
func WithUniqueName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.uniqueName = name
	}
}

// WithBlendMode is an option builder that sets the blend mode.
//
// Parameters:
//   - mode: the blend mode
//
// Returns:
//   - MaterialBuilderOption: a function that applies the blend mode option to a material
func WithBlendMode(mode BlendMode) MaterialBuilderOption {
	return func(m *material) {
		m.blendMode = mode
	}
}

// WithCull is an option builder that turns backface culling on or off. Culling is on by default.
//
// Parameters:
//   - enable: true to cull back faces
//
// Returns:
//   - MaterialBuilderOption: a function that applies the cull option to a material
func WithCull(enable bool) MaterialBuilderOption {
	return func(m *material) {
		m.enableCull = enable
	}
}

// WithBrush is an option builder that marks the material as a brush descriptor with
// the given shaders. Shader URIs are relative to uriBase.
//
// Parameters:
//   - uriBase: the base for shader and texture URIs
//   - vert: the vertex shader URI
//   - frag: the fragment shader URI
//
// Returns:
//   - MaterialBuilderOption: a function that applies the brush option to a material
func WithBrush(uriBase, vert, frag string) MaterialBuilderOption {
	return func(m *material) {
		m.isBrush = true
		m.uriBase = uriBase
		m.vertShaderURI = vert
		m.fragShaderURI = frag
	}
}

// WithURIBase is an option builder that sets the base for relative URIs.
//
// Parameters:
//   - base: the directory or URL prefix
//
// Returns:
//   - MaterialBuilderOption: a function that applies the URI base option to a material
func WithURIBase(base string) MaterialBuilderOption {
	return func(m *material) {
		m.uriBase = base
	}
}

// WithVertexLayout is an option builder that sets the vertex layout of meshes using the material.
//
// Parameters:
//   - layout: the vertex layout
//
// Returns:
//   - MaterialBuilderOption: a function that applies the layout option to a material
func WithVertexLayout(layout geometry.VertexLayout) MaterialBuilderOption {
	return func(m *material) {
		m.vertexLayout = layout
	}
}

// WithFloat is an option builder that sets one scalar parameter.
//
// Parameters:
//   - name: the parameter name
//   - v: the value
//
// Returns:
//   - MaterialBuilderOption: a function that applies the parameter to a material
func WithFloat(name string, v float32) MaterialBuilderOption {
	return func(m *material) {
		m.floatParams[name] = v
	}
}

// WithColor is an option builder that sets one RGBA color parameter.
//
// Parameters:
//   - name: the parameter name
//   - c: the color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the parameter to a material
func WithColor(name string, c [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.colorParams[name] = c
	}
}

// WithVector is an option builder that sets one vector parameter.
//
// Parameters:
//   - name: the parameter name
//   - v: the vector
//
// Returns:
//   - MaterialBuilderOption: a function that applies the parameter to a material
func WithVector(name string, v [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.vectorParams[name] = v
	}
}

// WithTexture is an option builder that sets one texture slot.
// A zero width or height leaves the size unknown.
//
// Parameters:
//   - name: the parameter name
//   - uri: the texture location
//   - width: the pixel width
//   - height: the pixel height
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture to a material
func WithTexture(name, uri string, width, height int) MaterialBuilderOption {
	return func(m *material) {
		m.textureURIs[name] = uri
		if width > 0 && height > 0 {
			m.textureSizes[name] = [2]int{width, height}
		}
	}
}

// WithEmissiveFactor is an option builder that sets the emission strength.
//
// Parameters:
//   - f: the emissive factor
//
// Returns:
//   - MaterialBuilderOption: a function that applies the emissive factor to a material
func WithEmissiveFactor(f float32) MaterialBuilderOption {
	return func(m *material) {
		m.emissiveFactor = f
	}
}
