package exporter

import (
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
)

// Name of the extension carrying a brush material's GUID.
const tiltBrushMaterialExtension = "GOOGLE_tilt_brush_material"

// materialValue is one entry of a glTF 1 material's "values" object.
type materialValue struct {
	key     string
	floats  []float32
	texture *texture
}

func (v materialValue) write(ctx *writeContext, key string) {
	if v.texture != nil {
		ctx.keyRef(key, v.texture)
		return
	}
	ctx.w.Key(key)
	if len(v.floats) == 1 {
		ctx.w.Float(v.floats[0])
		return
	}
	ctx.w.Floats(v.floats)
}

// gltfMaterial is the exported form of a material.Material.
type gltfMaterial struct {
	named
	src       material.Material
	technique *technique
	values    []materialValue
}

var _ referencedObject = &gltfMaterial{}

func materialName(m material.Material) string {
	return "material_" + m.UniqueName()
}

func (m *gltfMaterial) kind() objectKind { return kindMaterial }

func (m *gltfMaterial) value(key string) (materialValue, bool) {
	for _, v := range m.values {
		if v.key == key {
			return v, true
		}
	}
	return materialValue{}, false
}

func (m *gltfMaterial) textureValue(key string) *texture {
	v, ok := m.value(key)
	if !ok {
		return nil
	}
	return v.texture
}

// hasFactorPbr is true for materials authored directly in metallic-roughness terms.
func (m *gltfMaterial) hasFactorPbr() bool {
	_, ok := m.value(material.ParamBaseColorFactor)
	return ok
}

// hasBrushPbr is true for brush-style materials whose textures can be bridged to PBR.
func (m *gltfMaterial) hasBrushPbr() bool {
	_, main := m.value(material.ParamMainTex)
	_, bump := m.value(material.ParamBumpMap)
	return main || bump
}

// pbrTextures returns the textures the glTF 2 writer serializes. Reference
// collection and writing both go through here so they cannot disagree.
func (m *gltfMaterial) pbrTextures() []*texture {
	switch {
	case m.hasFactorPbr():
		return []*texture{m.textureValue(material.ParamBaseColorTex)}
	case m.hasBrushPbr():
		return []*texture{m.textureValue(material.ParamMainTex), m.textureValue(material.ParamBumpMap)}
	}
	return nil
}

func (m *gltfMaterial) iterReferences(ctx *writeContext) []referencedObject {
	var out []referencedObject
	if ctx.v1() {
		out = append(out, ctx.ref(m.technique))
		for _, v := range m.values {
			if v.texture != nil {
				out = append(out, ctx.ref(v.texture))
			}
		}
		return refs(out...)
	}
	for _, t := range m.pbrTextures() {
		if t != nil {
			out = append(out, ctx.ref(t))
		}
	}
	return refs(out...)
}

func (m *gltfMaterial) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	if ctx.v1() {
		ctx.keyRef("technique", m.technique)
		w.Key("values")
		w.BeginObject()
		for _, v := range m.values {
			v.write(ctx, v.key)
		}
		w.EndObject()
	} else {
		w.KeyString("alphaMode", string(alphaMode(m.src.BlendMode())))
		if cutoff, ok := m.src.FloatParams()[material.ParamCutoff]; ok {
			w.KeyFloat("alphaCutoff", cutoff)
		}
		if !m.src.EnableCull() {
			w.KeyBool("doubleSided", true)
		}
		switch {
		case m.hasFactorPbr():
			m.writeFactorPbr(ctx)
		case m.hasBrushPbr():
			m.writeBrushPbr(ctx)
		}
	}
	w.KeyString("name", m.PresentationName())
	if !ctx.v1() && m.src.IsBrush() {
		w.Key("extensions")
		w.BeginObject()
		w.Key(tiltBrushMaterialExtension)
		w.BeginObject()
		w.KeyString("guid", m.src.GUID().String())
		w.EndObject()
		w.EndObject()
	}
	w.EndObject()
}

func (m *gltfMaterial) maybeWrite(ctx *writeContext, key, writtenKey string) {
	if v, ok := m.value(key); ok {
		v.write(ctx, writtenKey)
	}
}

func writeTextureInfo(ctx *writeContext, key string, t *texture) {
	ctx.w.Key(key)
	ctx.w.BeginObject()
	ctx.keyRef("index", t)
	ctx.w.KeyInt("texCoord", 0)
	ctx.w.EndObject()
}

func (m *gltfMaterial) writeFactorPbr(ctx *writeContext) {
	w := ctx.w
	w.Key("pbrMetallicRoughness")
	w.BeginObject()
	m.maybeWrite(ctx, material.ParamBaseColorFactor, "baseColorFactor")
	if t := m.textureValue(material.ParamBaseColorTex); t != nil {
		writeTextureInfo(ctx, "baseColorTexture", t)
	}
	m.maybeWrite(ctx, material.ParamMetallicFactor, "metallicFactor")
	m.maybeWrite(ctx, material.ParamRoughnessFactor, "roughnessFactor")
	w.EndObject()
}

func (m *gltfMaterial) writeBrushPbr(ctx *writeContext) {
	w := ctx.w
	w.Key("pbrMetallicRoughness")
	w.BeginObject()
	m.maybeWrite(ctx, material.ParamBaseColorFactor, "baseColorFactor")
	if t := m.textureValue(material.ParamMainTex); t != nil {
		writeTextureInfo(ctx, "baseColorTexture", t)
	}
	w.KeyFloat("metallicFactor", 0)
	if v, ok := m.value(material.ParamShininess); ok && len(v.floats) == 1 {
		w.KeyFloat("roughnessFactor", 1-v.floats[0])
	}
	w.EndObject()
	if t := m.textureValue(material.ParamBumpMap); t != nil {
		writeTextureInfo(ctx, "normalTexture", t)
	}
}

// alphaMode maps a blend mode to glTF 2. Additive blending has no glTF
// equivalent and is written as BLEND.
func alphaMode(b material.BlendMode) common.AlphaMode {
	switch b {
	case material.BlendModeAdditiveBlend, material.BlendModeAlphaBlend:
		return common.AlphaModeBlend
	case material.BlendModeAlphaMask:
		return common.AlphaModeMask
	default:
		return common.AlphaModeOpaque
	}
}

// sampler is a texture filtering description, shared by every texture using it.
type sampler struct {
	named
	data common.SamplerData
}

var _ referencedObject = &sampler{}

func (s *sampler) kind() objectKind                                    { return kindSampler }
func (s *sampler) iterReferences(ctx *writeContext) []referencedObject { return nil }

func (s *sampler) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	w.KeyInt("magFilter", int64(s.data.MagFilter))
	w.KeyInt("minFilter", int64(s.data.MinFilter))
	w.KeyInt("wrapS", int64(s.data.WrapS))
	w.KeyInt("wrapT", int64(s.data.WrapT))
	w.EndObject()
}

// image is a reference to an image file.
type image struct {
	named
	uri string
}

var _ referencedObject = &image{}

func (i *image) kind() objectKind                                    { return kindImage }
func (i *image) iterReferences(ctx *writeContext) []referencedObject { return nil }

func (i *image) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	w.KeyString("name", i.PresentationName())
	w.KeyString("uri", i.uri)
	w.EndObject()
}

// GL texture enums written by glTF 1.
const (
	glRGBA         = 6408
	glTexture2D    = 3553
	glUnsignedByte = 5121
)

// texture pairs an image with a sampler.
type texture struct {
	named
	source  *image
	sampler *sampler
}

var _ referencedObject = &texture{}

func (t *texture) kind() objectKind { return kindTexture }

func (t *texture) iterReferences(ctx *writeContext) []referencedObject {
	return refs(ctx.ref(t.sampler), ctx.ref(t.source))
}

func (t *texture) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	if ctx.v1() {
		w.KeyInt("format", glRGBA)
		w.KeyInt("internalFormat", glRGBA)
	}
	ctx.keyRef("sampler", t.sampler)
	ctx.keyRef("source", t.source)
	if ctx.v1() {
		w.KeyInt("target", glTexture2D)
		w.KeyInt("type", glUnsignedByte)
	}
	w.EndObject()
}
