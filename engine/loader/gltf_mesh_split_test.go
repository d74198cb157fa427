package loader

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stripTris is a triangle strip over n quads laid out left to right.
func stripTris(quads int) []uint32 {
	var tris []uint32
	for q := range quads {
		b := uint32(2 * q)
		tris = append(tris, b, b+1, b+2, b+1, b+3, b+2)
	}
	return tris
}

func TestGenerateMeshSubsetsSmallMesh(t *testing.T) {
	log, _ := test.NewNullLogger()
	tris := stripTris(3)
	got := generateMeshSubsets(log, tris, 8, 16)
	require.Len(t, got, 1)
	assert.Equal(t, intRange{0, 8}, got[0].vertices)
	assert.Equal(t, intRange{0, len(tris)}, got[0].triangles)
}

func TestGenerateMeshSubsetsCoversEveryTriangle(t *testing.T) {
	log, hook := test.NewNullLogger()
	const quads = 20
	tris := stripTris(quads)
	numVerts := 2*quads + 2
	got := generateMeshSubsets(log, tris, numVerts, 8)

	require.Greater(t, len(got), 1)
	assert.Empty(t, hook.AllEntries())

	next := 0
	for _, s := range got {
		assert.Equal(t, next, s.triangles.min, "subsets are contiguous")
		assert.LessOrEqual(t, s.vertices.size(), 8)
		for i := s.triangles.min; i < s.triangles.max; i++ {
			v := int(tris[i])
			assert.GreaterOrEqual(t, v, s.vertices.min)
			assert.Less(t, v, s.vertices.max)
		}
		next = s.triangles.max
	}
	assert.Equal(t, len(tris), next)
}

func TestGenerateMeshSubsetsNoProgress(t *testing.T) {
	log, hook := test.NewNullLogger()
	tris := []uint32{0, 1, 2, 0, 1, 20}
	got := generateMeshSubsets(log, tris, 21, 8)

	require.Len(t, got, 1)
	assert.Equal(t, intRange{0, 3}, got[0].triangles)
	if assert.NotNil(t, hook.LastEntry()) {
		assert.Equal(t, "No forward progress splitting mesh; dropping remaining triangles", hook.LastEntry().Message)
	}
}
