package common

import "fmt"

// AxisConvention describes which native directions a producer or consumer calls
// right, up and forward. In native space right = +x, up = +y and forward = +z.
type AxisConvention struct {
	Name    string
	Right   [3]float32
	Up      [3]float32
	Forward [3]float32
}

// Well-known axis conventions.
var (
	// AxisNative is the host engine's own convention.
	AxisNative = AxisConvention{Name: "native", Right: [3]float32{1, 0, 0}, Up: [3]float32{0, 1, 0}, Forward: [3]float32{0, 0, 1}}

	// AxisGltf2 follows the glTF 2.0 specification: +y up, +z forward, -x right.
	AxisGltf2 = AxisConvention{Name: "gltf2", Right: [3]float32{-1, 0, 0}, Up: [3]float32{0, 1, 0}, Forward: [3]float32{0, 0, 1}}

	// AxisGltfAccordingToPoly is the convention older glTF 1 producers used.
	AxisGltfAccordingToPoly = AxisConvention{Name: "gltf-poly", Right: [3]float32{1, 0, 0}, Up: [3]float32{0, 1, 0}, Forward: [3]float32{0, 0, -1}}

	AxisFbx  = AxisConvention{Name: "fbx", Right: [3]float32{-1, 0, 0}, Up: [3]float32{0, 1, 0}, Forward: [3]float32{0, 0, 1}}
	AxisUsd  = AxisConvention{Name: "usd", Right: [3]float32{1, 0, 0}, Up: [3]float32{0, 1, 0}, Forward: [3]float32{0, 0, -1}}
	AxisStl  = AxisConvention{Name: "stl", Right: [3]float32{1, 0, 0}, Up: [3]float32{0, 0, 1}, Forward: [3]float32{0, -1, 0}}
	AxisVrml = AxisConvention{Name: "vrml", Right: [3]float32{1, 0, 0}, Up: [3]float32{0, 0, 1}, Forward: [3]float32{0, -1, 0}}

	// AxisUnreal is z-up with forward along +x.
	AxisUnreal = AxisConvention{Name: "unreal", Right: [3]float32{0, 1, 0}, Up: [3]float32{0, 0, 1}, Forward: [3]float32{1, 0, 0}}
)

var axisConventionsByName = map[string]AxisConvention{
	AxisNative.Name:              AxisNative,
	AxisGltf2.Name:               AxisGltf2,
	AxisGltfAccordingToPoly.Name: AxisGltfAccordingToPoly,
	AxisFbx.Name:                 AxisFbx,
	AxisUsd.Name:                 AxisUsd,
	AxisStl.Name:                 AxisStl,
	AxisVrml.Name:                AxisVrml,
	AxisUnreal.Name:              AxisUnreal,
}

// AxisConventionByName resolves a convention from its configuration name.
//
// Parameters:
//   - name: the convention name (e.g. "gltf2", "native")
//
// Returns:
//   - AxisConvention: the matching convention
//   - error: error if the name is unknown
func AxisConventionByName(name string) (AxisConvention, error) {
	if ac, ok := axisConventionsByName[name]; ok {
		return ac, nil
	}
	return AxisConvention{}, fmt.Errorf("unknown axis convention %q", name)
}

// FromNative returns the matrix taking native coordinates into this convention.
// Its columns are the convention's right, up and forward vectors.
func (a AxisConvention) FromNative() Mat4 {
	m := IdentityMat4()
	m[0], m[1], m[2] = a.Right[0], a.Right[1], a.Right[2]
	m[4], m[5], m[6] = a.Up[0], a.Up[1], a.Up[2]
	m[8], m[9], m[10] = a.Forward[0], a.Forward[1], a.Forward[2]
	return m
}

// ToNative returns the matrix taking this convention's coordinates into native space.
// The basis is orthonormal, so the inverse is the transpose.
func (a AxisConvention) ToNative() Mat4 {
	return a.FromNative().Transpose()
}

// ChangeOfBasis returns the matrix converting coordinates expressed in src into dst.
// ChangeOfBasis(c, c) is the identity for every convention c.
//
// Parameters:
//   - dst: the destination convention
//   - src: the source convention
//
// Returns:
//   - Mat4: dst.FromNative() * src.ToNative()
func ChangeOfBasis(dst, src AxisConvention) Mat4 {
	return dst.FromNative().Mul(src.ToNative())
}
