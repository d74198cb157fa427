package loader

import (
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
)

// triangleNormal returns the unit face normal of a triangle, or an arbitrary
// unit vector when the triangle is degenerate.
func triangleNormal(a, b, c [3]float32) [3]float32 {
	n := common.Cross3(common.Sub3(b, a), common.Sub3(c, a))
	if common.Dot3(n, n) == 0 {
		return common.Perpendicular3(common.Sub3(b, a))
	}
	return common.Normalize3(n)
}

// fixInvalidNormals replaces zero-length normals with the normal of one
// triangle that uses the vertex. Vertices no triangle uses do not render and
// are left alone.
//
// Returns:
//   - int: the number of normals replaced
func fixInvalidNormals(pool *geometry.Pool) int {
	if len(pool.Normals) != len(pool.Vertices) {
		return 0
	}
	var invalid []int
	for i, n := range pool.Normals {
		if common.Dot3(n, n) == 0 {
			invalid = append(invalid, i)
		}
	}
	if len(invalid) == 0 {
		return 0
	}

	vertexToTriangle := make(map[uint32]int, len(invalid))
	for i, v := range pool.Tris {
		vertexToTriangle[v] = i - i%3
	}
	fixed := 0
	for _, i := range invalid {
		start, ok := vertexToTriangle[uint32(i)]
		if !ok {
			continue
		}
		t := pool.Tris[start : start+3]
		pool.Normals[i] = triangleNormal(pool.Vertices[t[0]], pool.Vertices[t[1]], pool.Vertices[t[2]])
		fixed++
	}
	return fixed
}

// generateNormals fills pool.Normals with area-weighted vertex normals. A
// vertex no triangle uses, or whose faces cancel out, gets an arbitrary unit
// normal so no normal is ever zero-length.
func generateNormals(pool *geometry.Pool) {
	normals := make([][3]float32, len(pool.Vertices))
	for i := 0; i+2 < len(pool.Tris); i += 3 {
		a, b, c := pool.Tris[i], pool.Tris[i+1], pool.Tris[i+2]
		// The unnormalized cross product is weighted by twice the face area.
		n := common.Cross3(common.Sub3(pool.Vertices[b], pool.Vertices[a]), common.Sub3(pool.Vertices[c], pool.Vertices[a]))
		for _, v := range [3]uint32{a, b, c} {
			normals[v] = [3]float32{normals[v][0] + n[0], normals[v][1] + n[1], normals[v][2] + n[2]}
		}
	}
	for i, n := range normals {
		if common.Dot3(n, n) == 0 {
			normals[i] = common.Perpendicular3(n)
			continue
		}
		normals[i] = common.Normalize3(n)
	}
	pool.Normals = normals
	pool.Layout.UseNormals = true
	pool.Layout.NormalSemantic = geometry.SemanticUnitlessVector
}
