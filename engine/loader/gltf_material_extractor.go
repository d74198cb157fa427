package loader

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
	"github.com/sirupsen/logrus"
)

var (
	// Brush materials are named like material_Light-2241cd32-8ba2-48a5-9ee7-2caef7e9ed62.
	materialGUIDRe = regexp.MustCompile(`.*([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)

	// Matches http://.../<guid>/shader.glsl and .../<guid>-<version>.glsl.
	shaderGUIDRe = regexp.MustCompile(`.*([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})[/-]`)

	textureNameRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
)

// blocksSurfaceShaderBase prefixes the surface shader uris of glTF 2 Blocks materials.
const blocksSurfaceShaderBase = "https://vr.google.com/shaders/w/gvrss/"

// blocksMaterialShaders maps glTF 2 Blocks material names to their surface shaders.
var blocksMaterialShaders = map[string]string{
	"BlocksGem":   blocksSurfaceShaderBase + "gem.json",
	"BlocksGlass": blocksSurfaceShaderBase + "glass.json",
	"BlocksPaper": blocksSurfaceShaderBase + "paper.json",
}

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	logger  *logrus.Logger
	catalog *material.Catalog
	root    gltfRoot

	indices  map[gltfMaterial]int
	textures map[*gltfTexture]*common.ImportedTexture
}

// gltfMaterialExtractor converts the materials of a dereferenced document into
// ImportedMaterials and recognizes brush materials.
type gltfMaterialExtractor interface {
	// ExtractAllMaterials converts every material in the document. A material
	// that cannot be converted is logged and left out.
	//
	// Returns:
	//   - []common.ImportedMaterial: the converted materials
	ExtractAllMaterials() []common.ImportedMaterial

	// MaterialIndex returns the position of mat in the ExtractAllMaterials
	// result, or -1 if it was not converted.
	MaterialIndex(mat gltfMaterial) int

	// LookupBrush returns the catalog brush mat was written with. A material
	// instantiated from a template returns the template.
	//
	// Returns:
	//   - material.Material: the brush
	//   - bool: false if mat is not a known brush
	LookupBrush(mat gltfMaterial) (material.Material, bool)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a material extractor for a dereferenced document.
//
// Parameters:
//   - logger: receives conversion warnings
//   - catalog: the known brushes; may be nil
//   - root: the dereferenced document
//
// Returns:
//   - gltfMaterialExtractor: the material extractor
func newGLTFMaterialExtractor(logger *logrus.Logger, catalog *material.Catalog, root gltfRoot) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{
		logger:   logger,
		catalog:  catalog,
		root:     root,
		indices:  map[gltfMaterial]int{},
		textures: map[*gltfTexture]*common.ImportedTexture{},
	}
}

func (e *gltfMaterialExtractorImpl) ExtractAllMaterials() []common.ImportedMaterial {
	var out []common.ImportedMaterial
	for _, mat := range e.root.allMaterials() {
		converted, ok := e.convert(mat)
		if !ok {
			e.logger.WithField("material", common.Coalesce(mat.materialName(), mat.materialID())).Error("Failed to convert material")
			continue
		}
		e.indices[mat] = len(out)
		out = append(out, converted)
	}
	return out
}

func (e *gltfMaterialExtractorImpl) MaterialIndex(mat gltfMaterial) int {
	if mat == nil {
		return -1
	}
	if i, ok := e.indices[mat]; ok {
		return i
	}
	return -1
}

func (e *gltfMaterialExtractorImpl) LookupBrush(mat gltfMaterial) (material.Material, bool) {
	if mat == nil {
		return nil, false
	}
	id, ok := guidFromMaterial(mat)
	if !ok {
		return nil, false
	}
	if brush, ok := e.catalog.Lookup(id); ok {
		return brush, true
	}
	// Instances of a PBR template carry the template GUID on their shader.
	if m1, ok := mat.(*gltf1Material); ok {
		if template, ok := guidFromShader(m1); ok {
			return e.catalog.Lookup(template)
		}
	}
	return nil, false
}

// convert dispatches on what the material turns out to be: a Blocks surface
// shader, a catalog brush, or a PBR material of either schema.
func (e *gltfMaterialExtractorImpl) convert(mat gltfMaterial) (common.ImportedMaterial, bool) {
	if shader := e.surfaceShader(mat); shader != "" {
		return e.convertBlocks(mat, shader), true
	}
	if id, ok := guidFromMaterial(mat); ok {
		if brush, ok := e.catalog.Lookup(id); ok {
			return e.convertBrush(mat, brush), true
		}
	}
	switch m := mat.(type) {
	case *gltf1Material:
		return e.convertGLTF1(m)
	case *gltf2Material:
		return e.convertGLTF2(m)
	}
	return common.ImportedMaterial{}, false
}

// surfaceShader returns the Blocks surface shader uri of mat, or "".
func (e *gltfMaterialExtractorImpl) surfaceShader(mat gltfMaterial) string {
	switch m := mat.(type) {
	case *gltf1Material:
		return m.techniqueExtras()["gvrss"]
	case *gltf2Material:
		return blocksMaterialShaders[m.Name]
	}
	return ""
}

func (e *gltfMaterialExtractorImpl) convertBlocks(mat gltfMaterial, shader string) common.ImportedMaterial {
	out := defaultMaterial(common.Coalesce(mat.materialName(), path.Base(strings.TrimSuffix(shader, ".json"))))
	out.SurfaceShader = shader
	switch m := mat.(type) {
	case *gltf1Material:
		if c, ok := m.floatValues("color"); ok && len(c) >= 3 {
			copy(out.BaseColor[:], c)
		}
	case *gltf2Material:
		e.applyPBR(&out, m.PbrMetallicRoughness)
		out.DoubleSided = m.DoubleSided
		out.AlphaMode = e.alphaMode(m)
	}
	if shader == blocksMaterialShaders["BlocksGlass"] {
		out.AlphaMode = common.AlphaModeBlend
	}
	return out
}

func (e *gltfMaterialExtractorImpl) convertBrush(mat gltfMaterial, brush material.Material) common.ImportedMaterial {
	out := defaultMaterial(common.Coalesce(mat.materialName(), brush.DurableName()))
	out.BrushGUID = brush.GUID().String()
	out.DoubleSided = !brush.EnableCull()
	switch brush.BlendMode() {
	case material.BlendModeAdditiveBlend, material.BlendModeAlphaBlend:
		out.AlphaMode = common.AlphaModeBlend
	case material.BlendModeAlphaMask:
		out.AlphaMode = common.AlphaModeMask
		out.AlphaCutoff = brush.FloatParams()[material.ParamCutoff]
	}
	if c, ok := brush.ColorParams()[material.ParamBaseColorFactor]; ok {
		out.BaseColor = c
	}
	out.Metallic = 0
	if s, ok := brush.FloatParams()[material.ParamShininess]; ok {
		out.Roughness = 1 - s
	}

	switch m := mat.(type) {
	case *gltf1Material:
		out.DiffuseTexture = e.texture(common.Coalesce(m.texturePtrs[material.ParamMainTex], m.texturePtrs[material.ParamBaseColorTex]))
		out.NormalTexture = e.texture(m.texturePtrs[material.ParamBumpMap])
	case *gltf2Material:
		if m.PbrMetallicRoughness != nil {
			out.DiffuseTexture = e.texture(m.PbrMetallicRoughness.BaseColorTexture.resolvedTexture())
		}
		out.NormalTexture = e.texture(m.NormalTexture.resolvedTexture())
	}
	return out
}

// convertGLTF1 handles glTF 1 materials that are not brushes. Only PBR
// materials squeezed into glTF 1 by Tilt Brush carry enough to convert; their
// template GUID is on the shader.
func (e *gltfMaterialExtractorImpl) convertGLTF1(m *gltf1Material) (common.ImportedMaterial, bool) {
	instance, _ := guidFromMaterial(m)
	template, hasTemplate := guidFromShader(m)
	brush, ok := e.catalog.Lookup(template)
	if !hasTemplate || !ok {
		if hasTemplate && instance != template {
			e.logger.WithFields(logrus.Fields{
				"template": template,
				"instance": instance,
			}).Error("Cannot find template material")
			return common.ImportedMaterial{}, false
		}
		return e.convertGeneric(m), true
	}

	out := defaultMaterial(common.Coalesce(m.Name, brush.DurableName()))
	out.BrushGUID = brush.GUID().String()
	out.DoubleSided = !brush.EnableCull()
	if brush.BlendMode() != material.BlendModeNone {
		out.AlphaMode = common.AlphaModeBlend
	}
	if c, ok := m.floatValues(material.ParamBaseColorFactor); ok && len(c) == 4 {
		copy(out.BaseColor[:], c)
	}
	if f, ok := m.floatValues(material.ParamMetallicFactor); ok {
		out.Metallic = f[0]
	}
	if f, ok := m.floatValues(material.ParamRoughnessFactor); ok {
		out.Roughness = f[0]
	}
	out.DiffuseTexture = e.texture(m.texturePtrs[material.ParamBaseColorTex])
	return out, true
}

// convertGeneric keeps what a glTF 1 material from an unknown producer
// exposes in the common technique parameters.
func (e *gltfMaterialExtractorImpl) convertGeneric(m *gltf1Material) common.ImportedMaterial {
	out := defaultMaterial(common.Coalesce(m.Name, m.id))
	if c, ok := m.floatValues("diffuse"); ok && len(c) >= 3 {
		copy(out.BaseColor[:], c)
	}
	if s, ok := m.floatValues("shininess"); ok {
		out.Roughness = 1 - min(s[0]/128, 1)
	}
	out.DiffuseTexture = e.texture(common.Coalesce(m.texturePtrs[material.ParamMainTex], m.texturePtrs[material.ParamBaseColorTex]))
	out.NormalTexture = e.texture(m.texturePtrs[material.ParamBumpMap])
	return out
}

// convertGLTF2 interprets some, not all, glTF 2 material parameters. Without
// metallic-roughness data the specular-glossiness extension is used as a
// stand-in.
func (e *gltfMaterialExtractorImpl) convertGLTF2(m *gltf2Material) (common.ImportedMaterial, bool) {
	pbr := m.PbrMetallicRoughness
	if pbr == nil {
		sg := m.specGloss()
		if sg == nil {
			e.logger.WithField("material", m.index).Warn("Material has no PBR info")
			return common.ImportedMaterial{}, false
		}
		roughness := 1 - common.ValueOr(sg.GlossinessFactor, 1)
		pbr = &gltf2PBR{
			BaseColorFactor:  sg.DiffuseFactor,
			BaseColorTexture: sg.DiffuseTexture,
			RoughnessFactor:  &roughness,
		}
	}

	out := defaultMaterial(m.Name)
	e.applyPBR(&out, pbr)
	out.AlphaMode = e.alphaMode(m)
	if out.AlphaMode == common.AlphaModeMask {
		out.AlphaCutoff = common.ValueOr(m.AlphaCutoff, 0.5)
	}
	out.DoubleSided = m.DoubleSided
	out.NormalTexture = e.texture(m.NormalTexture.resolvedTexture())
	if out.Name == "" {
		out.Name = "PbrMaterial"
		if out.DiffuseTexture != nil {
			out.Name += "_" + out.DiffuseTexture.Name
		}
	}
	return out, true
}

func (e *gltfMaterialExtractorImpl) applyPBR(out *common.ImportedMaterial, pbr *gltf2PBR) {
	if pbr == nil {
		return
	}
	out.BaseColor = common.ValueOr(pbr.BaseColorFactor, out.BaseColor)
	out.Metallic = common.ValueOr(pbr.MetallicFactor, out.Metallic)
	out.Roughness = common.ValueOr(pbr.RoughnessFactor, out.Roughness)
	out.DiffuseTexture = e.texture(pbr.BaseColorTexture.resolvedTexture())
	out.MetallicRoughnessTexture = e.texture(pbr.MetallicRoughnessTexture.resolvedTexture())
}

func (e *gltfMaterialExtractorImpl) alphaMode(m *gltf2Material) common.AlphaMode {
	switch mode := common.AlphaMode(strings.ToUpper(m.AlphaMode)); mode {
	case "", common.AlphaModeOpaque:
		return common.AlphaModeOpaque
	case common.AlphaModeBlend, common.AlphaModeMask:
		return mode
	default:
		e.logger.WithField("alphaMode", m.AlphaMode).Warn("Not yet supported: alphaMode")
		return common.AlphaModeOpaque
	}
}

// texture converts tex once and shares the result between materials. Image
// bytes are copied because the parser's mapped files are released after import.
func (e *gltfMaterialExtractorImpl) texture(tex *gltfTexture) *common.ImportedTexture {
	if tex == nil {
		return nil
	}
	if done, ok := e.textures[tex]; ok {
		return done
	}
	if tex.image == nil {
		e.logger.WithField("texture", tex.id).Error("No image for texture")
		return nil
	}
	img := tex.image
	if len(img.data) == 0 && img.path == "" {
		e.logger.WithFields(logrus.Fields{"texture": tex.id, "uri": img.URI}).Warn("Cannot read texture image")
	}
	out := &common.ImportedTexture{
		Name:        sanitizeTextureName(common.Coalesce(img.URI, img.Name, tex.id)),
		Path:        img.path,
		Data:        cloneBytes(img.data),
		MimeType:    img.MimeType,
		SamplerData: tex.sampler.samplerData(),
	}
	if strings.HasPrefix(img.URI, "data:") {
		out.Name = sanitizeTextureName(common.Coalesce(img.Name, tex.id))
	}
	e.textures[tex] = out
	return out
}

// sanitizeTextureName drops the extension and anything that is not a
// letter, digit, underscore or dash.
func sanitizeTextureName(uri string) string {
	uri = strings.TrimSuffix(uri, path.Ext(uri))
	return textureNameRe.ReplaceAllString(uri, "")
}

// defaultMaterial is the glTF 2 default material: opaque white, fully rough
// and fully metallic.
func defaultMaterial(name string) common.ImportedMaterial {
	return common.ImportedMaterial{
		Name:      name,
		BaseColor: [4]float32{1, 1, 1, 1},
		Metallic:  1,
		Roughness: 1,
		AlphaMode: common.AlphaModeOpaque,
	}
}

// guidFromMaterial recovers the GUID a material represents: the brush
// extension first, then a GUID at the end of the material name (or, in glTF 1,
// its id).
func guidFromMaterial(mat gltfMaterial) (uuid.UUID, bool) {
	if m2, ok := mat.(*gltf2Material); ok {
		if id, err := uuid.Parse(m2.brushGUID()); err == nil {
			return id, true
		}
	}
	for _, name := range []string{mat.materialName(), mat.materialID()} {
		if m := materialGUIDRe.FindStringSubmatch(name); m != nil {
			if id, err := uuid.Parse(m[1]); err == nil {
				return id, true
			}
		}
	}
	return uuid.Nil, false
}

// guidFromShader returns the GUID of the template a glTF 1 PBR material was
// created from, found on its vertex shader uri, else its fragment shader uri.
func guidFromShader(m *gltf1Material) (uuid.UUID, bool) {
	vert, frag := m.shaderURIs()
	uri := common.Coalesce(vert, frag)
	match := shaderGUIDRe.FindStringSubmatch(uri)
	if match == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(match[1])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
