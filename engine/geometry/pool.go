package geometry

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/googlevr/tilt-brush-sub010/common"
)

// TexcoordData holds one texcoord channel. Exactly the slice matching the
// channel's TexcoordInfo.Size is used.
type TexcoordData struct {
	V2 [][2]float32
	V3 [][3]float32
	V4 [][4]float32
}

// Len returns the element count of whichever slice is populated for size.
func (t TexcoordData) Len(size int) int {
	switch size {
	case 2:
		return len(t.V2)
	case 3:
		return len(t.V3)
	case 4:
		return len(t.V4)
	}
	return 0
}

// Pool is a triangle list with parallel per-vertex arrays.
type Pool struct {
	Layout    VertexLayout
	Vertices  [][3]float32
	Normals   [][3]float32
	Colors    []common.Color32
	Tangents  [][4]float32
	Texcoords [MaxTexcoords]TexcoordData
	// Tris holds three vertex indices per triangle.
	Tris []uint32
}

// NewPool returns an empty pool with the given layout.
func NewPool(layout VertexLayout) *Pool {
	return &Pool{Layout: layout}
}

// NumVerts returns the vertex count.
func (p *Pool) NumVerts() int {
	return len(p.Vertices)
}

// NumTris returns the triangle count.
func (p *Pool) NumTris() int {
	return len(p.Tris) / 3
}

// Validate checks that every array the layout enables matches the vertex count
// and that every index is in range.
//
// Returns:
//   - error: error describing the first inconsistency
func (p *Pool) Validate() error {
	if err := p.Layout.Validate(); err != nil {
		return err
	}
	n := len(p.Vertices)
	check := func(name string, use bool, got int) error {
		if use && got != n {
			return fmt.Errorf("%s: have %d elements, want %d", name, got, n)
		}
		return nil
	}
	if err := check("normals", p.Layout.UseNormals, len(p.Normals)); err != nil {
		return err
	}
	if err := check("colors", p.Layout.UseColors, len(p.Colors)); err != nil {
		return err
	}
	if err := check("tangents", p.Layout.UseTangents, len(p.Tangents)); err != nil {
		return err
	}
	for i, tc := range p.Layout.Texcoords {
		if err := check(fmt.Sprintf("texcoord%d", i), tc.Size > 0, p.Texcoords[i].Len(tc.Size)); err != nil {
			return err
		}
	}
	if len(p.Tris)%3 != 0 {
		return fmt.Errorf("triangle index count %d is not a multiple of 3", len(p.Tris))
	}
	for i, idx := range p.Tris {
		if int(idx) >= n {
			return fmt.Errorf("triangle index %d at %d out of range (%d vertices)", idx, i, n)
		}
	}
	return nil
}

// ReverseWinding swaps the second and third index of every triangle.
func (p *Pool) ReverseWinding() {
	for i := 0; i+2 < len(p.Tris); i += 3 {
		p.Tris[i+1], p.Tris[i+2] = p.Tris[i+2], p.Tris[i+1]
	}
}

// ApplyTransform transforms every channel according to its semantic. Positions
// take the full transform, normals and tangents take the linear part and are
// renormalized, distance channels take the uniform scale. A mirroring transform
// also reverses the triangle winding so faces keep pointing outward.
//
// Parameters:
//   - m: the transform to apply
func (p *Pool) ApplyTransform(m common.Mat4) {
	scale := uniformScale(m)
	for i := range p.Vertices {
		p.Vertices[i] = m.MulPoint(p.Vertices[i])
	}
	if p.Layout.UseNormals {
		for i := range p.Normals {
			p.Normals[i] = transformBySemantic(m, scale, p.Layout.NormalSemantic, p.Normals[i], true)
		}
	}
	if p.Layout.UseTangents {
		for i := range p.Tangents {
			t := p.Tangents[i]
			v := common.Normalize3(m.MulVector([3]float32{t[0], t[1], t[2]}))
			p.Tangents[i] = [4]float32{v[0], v[1], v[2], t[3]}
		}
	}
	for ch, tc := range p.Layout.Texcoords {
		data := &p.Texcoords[ch]
		switch tc.Size {
		case 3:
			for i := range data.V3 {
				data.V3[i] = transformBySemantic(m, scale, tc.Semantic, data.V3[i], false)
			}
		case 4:
			for i := range data.V4 {
				v := data.V4[i]
				xyz := transformBySemantic(m, scale, tc.Semantic, [3]float32{v[0], v[1], v[2]}, false)
				data.V4[i] = [4]float32{xyz[0], xyz[1], xyz[2], v[3]}
			}
		}
	}
	if m.Determinant3() < 0 {
		p.ReverseWinding()
	}
}

func transformBySemantic(m common.Mat4, scale float32, sem Semantic, v [3]float32, isNormal bool) [3]float32 {
	switch sem {
	case SemanticPosition:
		return m.MulPoint(v)
	case SemanticVector:
		return m.MulVector(v)
	case SemanticXyIsUvZIsDistance:
		return [3]float32{v[0], v[1], v[2] * scale}
	case SemanticUnitlessVector:
		return common.Normalize3(m.MulVector(v))
	case SemanticUnspecified:
		if isNormal {
			return common.Normalize3(m.MulVector(v))
		}
	}
	return v
}

// uniformScale returns the length of the transform's first basis column.
func uniformScale(m common.Mat4) float32 {
	x := [3]float32{m[0], m[1], m[2]}
	return math32.Sqrt(common.Dot3(x, x))
}

// Clone returns a deep copy of p.
func (p *Pool) Clone() *Pool {
	out := &Pool{
		Layout:   p.Layout,
		Vertices: append([][3]float32(nil), p.Vertices...),
		Normals:  append([][3]float32(nil), p.Normals...),
		Colors:   append([]common.Color32(nil), p.Colors...),
		Tangents: append([][4]float32(nil), p.Tangents...),
		Tris:     append([]uint32(nil), p.Tris...),
	}
	for i := range p.Texcoords {
		out.Texcoords[i] = TexcoordData{
			V2: append([][2]float32(nil), p.Texcoords[i].V2...),
			V3: append([][3]float32(nil), p.Texcoords[i].V3...),
			V4: append([][4]float32(nil), p.Texcoords[i].V4...),
		}
	}
	return out
}

// Bounds returns the axis-aligned min and max of the vertex positions.
// An empty pool returns zero vectors.
func (p *Pool) Bounds() (min, max [3]float32) {
	if len(p.Vertices) == 0 {
		return
	}
	min, max = p.Vertices[0], p.Vertices[0]
	for _, v := range p.Vertices[1:] {
		for k := 0; k < 3; k++ {
			if v[k] < min[k] {
				min[k] = v[k]
			}
			if v[k] > max[k] {
				max[k] = v[k]
			}
		}
	}
	return
}
