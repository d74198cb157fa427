package geometry

import (
	"testing"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triPool() *Pool {
	p := NewPool(VertexLayout{
		UseNormals:     true,
		NormalSemantic: SemanticUnitlessVector,
		Texcoords: [MaxTexcoords]TexcoordInfo{
			{Size: 2, Semantic: SemanticXyIsUv},
			{Size: 3, Semantic: SemanticPosition},
		},
	})
	p.Vertices = [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	p.Normals = [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	p.Texcoords[0].V2 = [][2]float32{{0, 0}, {1, 0}, {0, 1}}
	p.Texcoords[1].V3 = [][3]float32{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	p.Tris = []uint32{0, 1, 2}
	return p
}

func TestPoolValidate(t *testing.T) {
	p := triPool()
	require.NoError(t, p.Validate())

	p.Normals = p.Normals[:2]
	assert.Error(t, p.Validate())

	p = triPool()
	p.Tris = []uint32{0, 1, 3}
	assert.Error(t, p.Validate())

	p = triPool()
	p.Tris = []uint32{0, 1}
	assert.Error(t, p.Validate())

	p = triPool()
	p.Layout.Texcoords[2].Size = 5
	assert.Error(t, p.Validate())
}

func TestApplyTransformMirrorReversesWinding(t *testing.T) {
	p := triPool()
	mirror := common.IdentityMat4()
	mirror[0] = -1
	p.ApplyTransform(mirror)

	assert.Equal(t, []uint32{0, 2, 1}, p.Tris)
	assert.Equal(t, [3]float32{-1, 0, 0}, p.Vertices[1])
	// Normals are unitless vectors and only change basis.
	assert.Equal(t, [3]float32{0, 0, 1}, p.Normals[0])
	// Position-semantic texcoords are transformed as points.
	assert.Equal(t, [3]float32{-1, 1, 1}, p.Texcoords[1].V3[0])
	// Plain uvs are untouched.
	assert.Equal(t, [2]float32{1, 0}, p.Texcoords[0].V2[1])
}

func TestApplyTransformScaleKeepsNormalsUnit(t *testing.T) {
	p := triPool()
	p.ApplyTransform(common.ScaleMat4(10))
	assert.Equal(t, [3]float32{10, 0, 0}, p.Vertices[1])
	assert.InDelta(t, 1, p.Normals[0][2], 1e-6)
	assert.Equal(t, []uint32{0, 1, 2}, p.Tris)
}

func TestXyIsUvZIsDistanceScalesOnlyZ(t *testing.T) {
	p := triPool()
	p.Layout.Texcoords[1].Semantic = SemanticXyIsUvZIsDistance
	p.ApplyTransform(common.TranslationMat4([3]float32{5, 5, 5}).Mul(common.ScaleMat4(2)))
	assert.Equal(t, [3]float32{1, 1, 2}, p.Texcoords[1].V3[0])
}

func TestCloneIsDeep(t *testing.T) {
	p := triPool()
	c := p.Clone()
	c.Vertices[0][0] = 42
	c.Texcoords[0].V2[0][0] = 42
	assert.Equal(t, float32(0), p.Vertices[0][0])
	assert.Equal(t, float32(0), p.Texcoords[0].V2[0][0])
}

func TestBounds(t *testing.T) {
	min, max := triPool().Bounds()
	assert.Equal(t, [3]float32{0, 0, 0}, min)
	assert.Equal(t, [3]float32{1, 1, 0}, max)

	min, max = NewPool(VertexLayout{}).Bounds()
	assert.Equal(t, [3]float32{}, min)
	assert.Equal(t, [3]float32{}, max)
}

func TestSemanticString(t *testing.T) {
	assert.Equal(t, "XyIsUv", SemanticXyIsUv.String())
	assert.Equal(t, "Semantic(99)", Semantic(99).String())
	assert.True(t, SemanticXyIsUvZIsDistance.IsUV())
	assert.False(t, SemanticTimestamp.IsUV())
}
