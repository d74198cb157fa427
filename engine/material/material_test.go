package material

import (
	"testing"

	"github.com/google/uuid"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMaterialDefaults(t *testing.T) {
	m := NewMaterial()
	assert.NotEqual(t, uuid.Nil, m.GUID())
	assert.Equal(t, m.GUID().String(), m.UniqueName())
	assert.Equal(t, m.UniqueName(), m.DurableName())
	assert.True(t, m.EnableCull())
	assert.False(t, m.IsBrush())
	assert.Equal(t, BlendModeNone, m.BlendMode())
}

func TestNewMaterialOptions(t *testing.T) {
	id := uuid.MustParse("cb92b597-94ca-4255-b017-0e3f42f12f9e")
	layout := geometry.VertexLayout{UseColors: true}
	m := NewMaterial(
		WithGUID(id),
		WithDurableName("Fire"),
		WithBlendMode(BlendModeAdditiveBlend),
		WithCull(false),
		WithBrush("https://example.com/brushes/", "Fire-v10.0-vertex.glsl", "Fire-v10.0-fragment.glsl"),
		WithVertexLayout(layout),
		WithFloat(ParamShininess, 0.5),
		WithColor("TintColor", [4]float32{1, 0, 0, 1}),
		WithVector("Scroll", [4]float32{1, 2, 3, 4}),
		WithTexture(ParamMainTex, "Fire-v10.0-MainTex.png", 128, 64),
		WithTexture(ParamBumpMap, "bump.png", 0, 0),
		WithEmissiveFactor(2),
	)

	assert.Equal(t, id, m.GUID())
	assert.Equal(t, id.String(), m.UniqueName())
	assert.Equal(t, "Fire", m.DurableName())
	assert.Equal(t, BlendModeAdditiveBlend, m.BlendMode())
	assert.False(t, m.EnableCull())
	assert.True(t, m.IsBrush())
	assert.Equal(t, "https://example.com/brushes/", m.URIBase())
	assert.Equal(t, "Fire-v10.0-vertex.glsl", m.VertShaderURI())
	assert.Equal(t, layout, m.VertexLayout())
	assert.Equal(t, float32(0.5), m.FloatParams()[ParamShininess])
	assert.Equal(t, [4]float32{1, 0, 0, 1}, m.ColorParams()["TintColor"])
	assert.Equal(t, [4]float32{1, 2, 3, 4}, m.VectorParams()["Scroll"])
	assert.Equal(t, float32(2), m.EmissiveFactor())

	sz, ok := m.TextureSize(ParamMainTex)
	require.True(t, ok)
	assert.Equal(t, [2]int{128, 64}, sz)
	_, ok = m.TextureSize(ParamBumpMap)
	assert.False(t, ok)
}

func TestCatalog(t *testing.T) {
	a := NewMaterial(WithDurableName("Ink"))
	b := NewMaterial(WithDurableName("Light"))
	c, err := NewCatalog(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	got, ok := c.Lookup(b.GUID())
	require.True(t, ok)
	assert.Equal(t, b, got)

	got, ok = c.LookupName("ink")
	require.True(t, ok)
	assert.Equal(t, a, got)

	// Re-registering the same material is fine; a different one with the same GUID is not.
	require.NoError(t, c.Register(a))
	assert.Error(t, c.Register(NewMaterial(WithGUID(a.GUID()))))

	var nilCatalog *Catalog
	_, ok = nilCatalog.Lookup(a.GUID())
	assert.False(t, ok)
}

func TestBlendModeString(t *testing.T) {
	assert.Equal(t, "additive", BlendModeAdditiveBlend.String())
	assert.Equal(t, "none", BlendModeNone.String())
}
