package loader

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lightGUID = uuid.MustParse("2241cd32-8ba2-48a5-9ee7-2caef7e9ed62")

func testCatalog(t *testing.T) *material.Catalog {
	t.Helper()
	light := material.NewMaterial(
		material.WithGUID(lightGUID),
		material.WithDurableName("Light"),
		material.WithBlendMode(material.BlendModeAdditiveBlend),
		material.WithCull(false),
		material.WithFloat(material.ParamShininess, 0.75),
		material.WithBrush("https://www.tiltbrush.com/shaders/brushes/", "Light-v10.0-vertex.glsl", "Light-v10.0-fragment.glsl"),
	)
	catalog, err := material.NewCatalog(light)
	require.NoError(t, err)
	return catalog
}

// importMaterials imports a glTF 2 document holding only materials and the
// textures they use.
func importMaterials(t *testing.T, doc map[string]any, catalog *material.Catalog) ([]common.ImportedMaterial, []string) {
	t.Helper()
	var d testDoc
	imp, hook := newTestImporter(nativeOptions(), catalog)
	m, err := imp.ImportReader("materials", bytes.NewReader(d.gltf2(t, doc)), false, "")
	require.NoError(t, err)
	return m.Materials, warnings(hook)
}

func TestMaterialGUIDFromName(t *testing.T) {
	m := &gltf2Material{Name: "material_Light-2241cd32-8ba2-48a5-9ee7-2caef7e9ed62"}
	id, ok := guidFromMaterial(m)
	require.True(t, ok)
	assert.Equal(t, lightGUID, id)

	_, ok = guidFromMaterial(&gltf2Material{Name: "Light-2241cd32-8ba2-48a5-9ee7-2caef7e9ed62-extra"})
	assert.False(t, ok)

	ext := &gltf2Material{Extensions: &gltf2MaterialExtensions{
		TiltBrushMaterial: &gltf2BrushExtension{GUID: lightGUID.String()},
	}}
	id, ok = guidFromMaterial(ext)
	require.True(t, ok)
	assert.Equal(t, lightGUID, id)
}

func TestShaderGUIDRegexp(t *testing.T) {
	for _, uri := range []string{
		"https://www.tiltbrush.com/shaders/pbr/2241cd32-8ba2-48a5-9ee7-2caef7e9ed62/shader.glsl",
		"https://www.tiltbrush.com/shaders/brushes/2241cd32-8ba2-48a5-9ee7-2caef7e9ed62-v10.0-vertex.glsl",
	} {
		m := shaderGUIDRe.FindStringSubmatch(uri)
		require.NotNil(t, m, uri)
		assert.Equal(t, lightGUID.String(), m[1])
	}
	assert.Nil(t, shaderGUIDRe.FindStringSubmatch("https://example.com/shader.glsl"))
}

func TestSanitizeTextureName(t *testing.T) {
	assert.Equal(t, "texturesMyBrush", sanitizeTextureName("textures/My Brush!.png"))
	assert.Equal(t, "grain_01-a", sanitizeTextureName("grain_01-a.jpg"))
	assert.Equal(t, "", sanitizeTextureName(""))
}

func TestMaterialPBR(t *testing.T) {
	mats, _ := importMaterials(t, map[string]any{
		"materials": []any{map[string]any{
			"name": "painted",
			"pbrMetallicRoughness": map[string]any{
				"baseColorFactor":  []any{0.5, 0.25, 1, 1},
				"metallicFactor":   0.2,
				"roughnessFactor":  0.4,
				"baseColorTexture": map[string]any{"index": 0},
			},
			"doubleSided": true,
		}},
		"textures": []any{map[string]any{"source": 0, "sampler": 0}},
		"samplers": []any{map[string]any{"magFilter": 9728}},
		"images":   []any{map[string]any{"uri": "data:image/png;base64,AQID", "name": "grain.png"}},
	}, nil)

	require.Len(t, mats, 1)
	m := mats[0]
	assert.Equal(t, "painted", m.Name)
	assert.Equal(t, [4]float32{0.5, 0.25, 1, 1}, m.BaseColor)
	assert.InDelta(t, 0.2, m.Metallic, 1e-6)
	assert.InDelta(t, 0.4, m.Roughness, 1e-6)
	assert.True(t, m.DoubleSided)
	assert.Equal(t, common.AlphaModeOpaque, m.AlphaMode)
	assert.Empty(t, m.BrushGUID)

	require.NotNil(t, m.DiffuseTexture)
	assert.Equal(t, "grain", m.DiffuseTexture.Name)
	assert.Equal(t, []byte{1, 2, 3}, m.DiffuseTexture.Data)
	assert.Equal(t, "image/png", m.DiffuseTexture.MimeType)
	require.NotNil(t, m.DiffuseTexture.SamplerData)
	assert.Equal(t, 9728, m.DiffuseTexture.SamplerData.MagFilter)
}

func TestMaterialAlphaModes(t *testing.T) {
	mats, warns := importMaterials(t, map[string]any{
		"materials": []any{
			map[string]any{"name": "mask", "pbrMetallicRoughness": map[string]any{}, "alphaMode": "MASK"},
			map[string]any{"name": "cut", "pbrMetallicRoughness": map[string]any{}, "alphaMode": "MASK", "alphaCutoff": 0.25},
			map[string]any{"name": "blend", "pbrMetallicRoughness": map[string]any{}, "alphaMode": "BLEND"},
			map[string]any{"name": "odd", "pbrMetallicRoughness": map[string]any{}, "alphaMode": "DITHER"},
		},
	}, nil)

	require.Len(t, mats, 4)
	assert.Equal(t, common.AlphaModeMask, mats[0].AlphaMode)
	assert.InDelta(t, 0.5, mats[0].AlphaCutoff, 1e-6)
	assert.InDelta(t, 0.25, mats[1].AlphaCutoff, 1e-6)
	assert.Equal(t, common.AlphaModeBlend, mats[2].AlphaMode)
	assert.Equal(t, common.AlphaModeOpaque, mats[3].AlphaMode)
	assert.Contains(t, warns, "Not yet supported: alphaMode")
}

func TestMaterialSpecularGlossiness(t *testing.T) {
	mats, _ := importMaterials(t, map[string]any{
		"materials": []any{map[string]any{
			"extensions": map[string]any{"KHR_materials_pbrSpecularGlossiness": map[string]any{
				"diffuseFactor":    []any{1, 0, 0, 1},
				"glossinessFactor": 0.75,
			}},
		}},
	}, nil)

	require.Len(t, mats, 1)
	assert.Equal(t, "PbrMaterial", mats[0].Name)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, mats[0].BaseColor)
	assert.InDelta(t, 0.25, mats[0].Roughness, 1e-6)
}

func TestMaterialWithoutPBRIsSkipped(t *testing.T) {
	mats, warns := importMaterials(t, map[string]any{
		"materials": []any{
			map[string]any{"name": "bare"},
			map[string]any{"name": "ok", "pbrMetallicRoughness": map[string]any{}},
		},
	}, nil)

	require.Len(t, mats, 1)
	assert.Equal(t, "ok", mats[0].Name)
	assert.Contains(t, warns, "Material has no PBR info")
}

func TestMaterialBlocks(t *testing.T) {
	mats, _ := importMaterials(t, map[string]any{
		"materials": []any{map[string]any{"name": "BlocksGlass", "pbrMetallicRoughness": map[string]any{}}},
	}, nil)

	require.Len(t, mats, 1)
	assert.Equal(t, blocksSurfaceShaderBase+"glass.json", mats[0].SurfaceShader)
	assert.Equal(t, common.AlphaModeBlend, mats[0].AlphaMode)
}

func TestMaterialBrush(t *testing.T) {
	catalog := testCatalog(t)
	mats, _ := importMaterials(t, map[string]any{
		"materials": []any{
			map[string]any{
				"name":       "stroke",
				"extensions": map[string]any{"GOOGLE_tilt_brush_material": map[string]any{"guid": lightGUID.String()}},
			},
			map[string]any{"name": "material_Light-" + lightGUID.String()},
			map[string]any{"name": "material_Unknown-" + uuid.NewString(), "pbrMetallicRoughness": map[string]any{}},
		},
	}, catalog)

	require.Len(t, mats, 3)
	for _, m := range mats[:2] {
		assert.Equal(t, lightGUID.String(), m.BrushGUID)
		assert.Equal(t, common.AlphaModeBlend, m.AlphaMode)
		assert.True(t, m.DoubleSided)
		assert.InDelta(t, 0.25, m.Roughness, 1e-6)
		assert.Zero(t, m.Metallic)
	}
	assert.Equal(t, "stroke", mats[0].Name)
	assert.Empty(t, mats[2].BrushGUID)
}

func TestMaterialIndexAndLookupBrush(t *testing.T) {
	catalog := testCatalog(t)
	root := &gltf2Root{Materials: []*gltf2Material{
		{Name: "bare", index: 0},
		{Name: "material_Light-" + lightGUID.String(), index: 1},
	}}
	imp, _ := newTestImporter(nativeOptions(), catalog)
	e := newGLTFMaterialExtractor(imp.(*gltfImporterImpl).logger, catalog, root)
	mats := e.ExtractAllMaterials()

	require.Len(t, mats, 1)
	assert.Equal(t, -1, e.MaterialIndex(root.Materials[0]))
	assert.Equal(t, 0, e.MaterialIndex(root.Materials[1]))
	assert.Equal(t, -1, e.MaterialIndex(nil))

	brush, ok := e.LookupBrush(root.Materials[1])
	require.True(t, ok)
	assert.Equal(t, "Light", brush.DurableName())
	_, ok = e.LookupBrush(root.Materials[0])
	assert.False(t, ok)
}
