package loader

import "github.com/sirupsen/logrus"

// intRange is a half-open range [min, max).
type intRange struct {
	min, max int
}

func (r intRange) size() int { return r.max - r.min }

// union returns the smallest range covering r and o. A nil r yields o.
func union(r *intRange, o intRange) intRange {
	if r == nil {
		return o
	}
	return intRange{min: min(r.min, o.min), max: max(r.max, o.max)}
}

// meshSubset is a run of triangles and the span of vertices they use.
type meshSubset struct {
	vertices  intRange
	triangles intRange
}

// generateMeshSubsets breaks a triangle list into contiguous runs such that
// no run addresses more than maxSubsetVerts vertices, runs are disjoint and
// together they cover every triangle.
//
// This only works when each triangle's vertices are close together and
// indices mostly increase, which holds for stroke geometry but not for
// arbitrary meshes. If a single triangle spans more than maxSubsetVerts, the
// remaining triangles are dropped with a warning.
//
// Parameters:
//   - logger: receives the no-progress warning
//   - tris: three vertex indices per triangle
//   - numVerts: the vertex count of the primitive
//   - maxSubsetVerts: the largest vertex span one subset may have
//
// Returns:
//   - []meshSubset: the runs, in triangle order
func generateMeshSubsets(logger *logrus.Logger, tris []uint32, numVerts, maxSubsetVerts int) []meshSubset {
	if numVerts <= maxSubsetVerts {
		return []meshSubset{{
			vertices:  intRange{0, numVerts},
			triangles: intRange{0, len(tris)},
		}}
	}

	var (
		out       []meshSubset
		vertsUsed *intRange
		trisUsed  *intRange
	)
	for i := 0; i+2 < len(tris); {
		t0, t1, t2 := int(tris[i]), int(tris[i+1]), int(tris[i+2])
		triVerts := intRange{min: min(t0, t1, t2), max: max(t0, t1, t2) + 1}

		newVerts := union(vertsUsed, triVerts)
		newTris := union(trisUsed, intRange{i, i + 3})
		if newVerts.size() > maxSubsetVerts {
			if vertsUsed == nil {
				logger.WithFields(logrus.Fields{
					"triangle": i / 3,
					"span":     triVerts.size(),
				}).Warn("No forward progress splitting mesh; dropping remaining triangles")
				return out
			}
			out = append(out, meshSubset{vertices: *vertsUsed, triangles: *trisUsed})
			vertsUsed, trisUsed = nil, nil
			continue
		}
		vertsUsed, trisUsed = &newVerts, &newTris
		i += 3
	}
	if vertsUsed != nil {
		out = append(out, meshSubset{vertices: *vertsUsed, triangles: *trisUsed})
	}
	return out
}
