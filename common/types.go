// package common contains common types that are used throughout the codec. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// GL sampler enums as they appear on the wire.
const (
	FilterNearest              = 9728
	FilterLinear               = 9729
	FilterNearestMipmapNearest = 9984
	FilterLinearMipmapNearest  = 9985
	FilterNearestMipmapLinear  = 9986
	FilterLinearMipmapLinear   = 9987

	WrapClampToEdge    = 33071
	WrapMirroredRepeat = 33648
	WrapRepeat         = 10497
)

// SamplerData holds the filtering and addressing modes of a texture sampler.
type SamplerData struct {
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter int
	// WrapS and WrapT specify the addressing mode for texture coordinates outside the [0, 1] range.
	WrapS, WrapT int
}

// DefaultSamplerData returns the sampler written when a material does not specify one.
//
// Returns:
//   - SamplerData: linear magnification, trilinear minification, repeat wrapping
func DefaultSamplerData() SamplerData {
	return SamplerData{
		MagFilter: FilterLinear,
		MinFilter: FilterLinearMipmapLinear,
		WrapS:     WrapRepeat,
		WrapT:     WrapRepeat,
	}
}

// AlphaMode mirrors the glTF 2.0 material alphaMode values.
type AlphaMode string

const (
	AlphaModeOpaque AlphaMode = "OPAQUE"
	AlphaModeBlend  AlphaMode = "BLEND"
	AlphaModeMask   AlphaMode = "MASK"
)

// ImportedMaterial represents material properties from an imported model file.
type ImportedMaterial struct {
	// Name is the material identifier.
	Name string

	// BaseColor is the albedo/diffuse color (RGBA).
	BaseColor [4]float32

	// Metallic factor (0.0 = dielectric, 1.0 = metal).
	Metallic float32

	// Roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness float32

	// AlphaMode is OPAQUE, BLEND or MASK.
	AlphaMode AlphaMode

	// AlphaCutoff applies when AlphaMode is MASK.
	AlphaCutoff float32

	// DoubleSided disables backface culling.
	DoubleSided bool

	// BrushGUID is set when the material was recognized as a brush material.
	BrushGUID string

	// SurfaceShader is the Blocks surface shader uri, e.g.
	// https://vr.google.com/shaders/w/gvrss/paper.json.
	SurfaceShader string

	// DiffuseTexture holds the base color texture (if present).
	DiffuseTexture *ImportedTexture

	// NormalTexture holds the normal map (if present).
	NormalTexture *ImportedTexture

	// MetallicRoughnessTexture holds metallic/roughness data (if present).
	MetallicRoughnessTexture *ImportedTexture
}

// ImportedTexture represents texture data extracted from a model file.
// For embedded textures (GLB), the Data field contains raw image bytes.
// For external textures, the Path field contains the file path.
type ImportedTexture struct {
	// Name is an identifier for this texture (e.g., "diffuse", "normal").
	Name string

	// Path is the file path for external textures (empty for embedded).
	Path string

	// Data contains raw image bytes for embedded textures (PNG/JPEG).
	Data []byte

	// MimeType indicates the image format (e.g., "image/png", "image/jpeg").
	MimeType string

	// Width is the texture width in pixels (populated after DecodeSize).
	Width int

	// Height is the texture height in pixels (populated after DecodeSize).
	Height int

	// SamplerData holds sampler parameters extracted from the model file, or nil for defaults.
	SamplerData *SamplerData
}

// DecodeSize reads just the image header to learn the texture dimensions.
// Uses either embedded Data bytes or the file at Path.
// Supports PNG and JPEG formats.
//
// Returns:
//   - int: texture width in pixels
//   - int: texture height in pixels
//   - error: error if the header cannot be decoded
func (t *ImportedTexture) DecodeSize() (int, int, error) {
	if t == nil {
		return 0, 0, fmt.Errorf("texture is nil")
	}

	var cfg image.Config
	var err error

	switch {
	case len(t.Data) > 0:
		cfg, _, err = image.DecodeConfig(bytes.NewReader(t.Data))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to decode embedded image: %w", err)
		}
	case t.Path != "":
		file, fileErr := os.Open(t.Path)
		if fileErr != nil {
			return 0, 0, fmt.Errorf("failed to open texture file %s: %w", t.Path, fileErr)
		}
		defer file.Close()

		cfg, _, err = image.DecodeConfig(file)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to decode texture file %s: %w", t.Path, err)
		}
	default:
		return 0, 0, fmt.Errorf("texture has neither data nor path")
	}

	t.Width = cfg.Width
	t.Height = cfg.Height
	return cfg.Width, cfg.Height, nil
}
