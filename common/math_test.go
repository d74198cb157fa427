package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMat4InverseRoundTrip(t *testing.T) {
	m := TranslationMat4([3]float32{1, 2, 3}).Mul(ScaleMat4(2))
	inv, ok := m.Inverse()
	require.True(t, ok)
	assert.True(t, m.Mul(inv).IsIdentity(1e-5))
}

func TestMat4SingularInverse(t *testing.T) {
	_, ok := Mat4{}.Inverse()
	assert.False(t, ok)
}

func TestMat4MulPointAndVector(t *testing.T) {
	m := TranslationMat4([3]float32{1, 0, 0}).Mul(ScaleMat4(3))
	assert.Equal(t, [3]float32{4, 3, 3}, m.MulPoint([3]float32{1, 1, 1}))
	assert.Equal(t, [3]float32{3, 3, 3}, m.MulVector([3]float32{1, 1, 1}))
}

func TestDeterminant3Sign(t *testing.T) {
	assert.InDelta(t, 8, ScaleMat4(2).Determinant3(), 1e-6)

	mirror := IdentityMat4()
	mirror[0] = -1
	assert.Less(t, mirror.Determinant3(), float32(0))
}

func TestTransposeTwiceIsIdentity(t *testing.T) {
	m := Mat4{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	assert.Equal(t, m, m.Transpose().Transpose())
	assert.Equal(t, float32(5), m.Transpose()[1])
}

func TestPerpendicular3(t *testing.T) {
	inputs := [][3]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{1, 1, 1},
		{-3, 0.5, 2},
	}
	for _, v := range inputs {
		p := Perpendicular3(v)
		assert.InDelta(t, 0, Dot3(p, v), 1e-5, "not perpendicular to %v", v)
		assert.InDelta(t, 1, math32.Sqrt(Dot3(p, p)), 1e-5)
	}
	assert.Equal(t, [3]float32{0, 1, 0}, Perpendicular3([3]float32{}))
}

func TestNormalize3ZeroVector(t *testing.T) {
	assert.Equal(t, [3]float32{}, Normalize3([3]float32{}))
	assert.Equal(t, [3]float32{0, 0, 1}, Normalize3([3]float32{0, 0, 5}))
}

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]uint16{}))
	assert.Equal(t, []byte{1, 0, 2, 0}, SliceToBytes([]uint16{1, 2}))
}
