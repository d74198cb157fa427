package loader

import (
	"encoding/binary"
	"fmt"
	"math"
)

// gltfComponentTypeSize returns the byte size of a component type.
func gltfComponentTypeSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

// gltfAccessorTypeComponentCount returns the number of components for an accessor type.
func gltfAccessorTypeComponentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	case gltfAccessorTypeMat2:
		return 4
	case gltfAccessorTypeMat3:
		return 9
	case gltfAccessorTypeMat4:
		return 16
	default:
		return 0
	}
}

func (a *gltfAccessor) String() string {
	if a.Name != "" {
		return fmt.Sprintf("%s (%s)", a.id, a.Name)
	}
	return a.id
}

// components returns the number of components per element.
func (a *gltfAccessor) components() int {
	return gltfAccessorTypeComponentCount(a.Type)
}

// elementSize returns the packed byte size of one element.
func (a *gltfAccessor) elementSize() int {
	return gltfComponentTypeSize(a.ComponentType) * a.components()
}

// stride returns the distance between elements. glTF 1 keeps it on the
// accessor, glTF 2 on the view; zero means tightly packed.
func (a *gltfAccessor) stride() int {
	if a.ByteStride > 0 {
		return a.ByteStride
	}
	if a.view != nil && a.view.ByteStride > 0 {
		return a.view.ByteStride
	}
	return a.elementSize()
}

// available returns how many leading elements are backed by data: the
// element must lie inside both the view and the loaded buffer.
func (a *gltfAccessor) available() int {
	size := a.elementSize()
	if a.view == nil || a.view.buffer == nil || size == 0 {
		return 0
	}
	end := a.view.ByteOffset + a.view.ByteLength
	end = min(end, len(a.view.buffer.data))
	start := a.view.ByteOffset + a.ByteOffset
	if start+size > end {
		return 0
	}
	return min(a.Count, (end-start-size)/a.stride()+1)
}

// element returns the bytes of element i, or nil if it is not backed by data.
func (a *gltfAccessor) element(i, avail int) []byte {
	if i >= avail {
		return nil
	}
	off := a.view.ByteOffset + a.ByteOffset + i*a.stride()
	return a.view.buffer.data[off : off+a.elementSize()]
}

// readFloats decodes elements [lo, hi) as float32 components. Integer
// components are normalized when the accessor says so or normalize is set.
// Elements without backing data read as zero; missing reports how many. An
// accessor without a buffer view is all zeros by definition and reports none.
//
// Parameters:
//   - lo, hi: the half-open element range
//   - normalize: force normalization of integer components
//
// Returns:
//   - []float32: (hi-lo) * components values
//   - int: the number of elements that were zero-filled
func (a *gltfAccessor) readFloats(lo, hi int, normalize bool) ([]float32, int) {
	n := a.components()
	csize := gltfComponentTypeSize(a.ComponentType)
	out := make([]float32, (hi-lo)*n)
	if a.view == nil {
		return out, 0
	}
	avail := a.available()
	missing := 0
	norm := normalize || a.Normalized
	for i := lo; i < hi; i++ {
		elt := a.element(i, avail)
		if elt == nil {
			missing++
			continue
		}
		dst := out[(i-lo)*n : (i-lo+1)*n]
		for c := range dst {
			dst[c] = decodeComponent(elt[c*csize:], a.ComponentType, norm)
		}
	}
	return out, missing
}

// readUints decodes elements [lo, hi) of an integer SCALAR accessor.
//
// Returns:
//   - []uint32: the values
//   - int: the number of elements that were zero-filled
func (a *gltfAccessor) readUints(lo, hi int) ([]uint32, int) {
	out := make([]uint32, hi-lo)
	if a.view == nil {
		return out, 0
	}
	avail := a.available()
	missing := 0
	for i := lo; i < hi; i++ {
		elt := a.element(i, avail)
		if elt == nil {
			missing++
			continue
		}
		switch a.ComponentType {
		case gltfComponentTypeUnsignedByte:
			out[i-lo] = uint32(elt[0])
		case gltfComponentTypeUnsignedShort:
			out[i-lo] = uint32(binary.LittleEndian.Uint16(elt))
		case gltfComponentTypeUnsignedInt:
			out[i-lo] = binary.LittleEndian.Uint32(elt)
		}
	}
	return out, missing
}

func decodeComponent(b []byte, componentType int, normalize bool) float32 {
	switch componentType {
	case gltfComponentTypeFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case gltfComponentTypeUnsignedByte:
		if normalize {
			return float32(b[0]) / 255
		}
		return float32(b[0])
	case gltfComponentTypeByte:
		if normalize {
			return max(float32(int8(b[0]))/127, -1)
		}
		return float32(int8(b[0]))
	case gltfComponentTypeUnsignedShort:
		v := binary.LittleEndian.Uint16(b)
		if normalize {
			return float32(v) / 65535
		}
		return float32(v)
	case gltfComponentTypeShort:
		v := int16(binary.LittleEndian.Uint16(b))
		if normalize {
			return max(float32(v)/32767, -1)
		}
		return float32(v)
	case gltfComponentTypeUnsignedInt:
		return float32(binary.LittleEndian.Uint32(b))
	}
	return 0
}
