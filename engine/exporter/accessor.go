package exporter

import (
	"github.com/chewxy/math32"
	"github.com/googlevr/tilt-brush-sub010/common"
)

// accessorType is the element shape of an accessor. Larger values hold more components.
type accessorType int

const (
	typeScalar accessorType = iota
	typeVec2
	typeVec3
	typeVec4
)

func (t accessorType) String() string {
	switch t {
	case typeVec2:
		return "VEC2"
	case typeVec3:
		return "VEC3"
	case typeVec4:
		return "VEC4"
	default:
		return "SCALAR"
	}
}

// components returns the number of components per element.
func (t accessorType) components() int {
	return int(t) + 1
}

// componentType is the GL enum of an accessor's scalar component.
type componentType int

const (
	componentByte          componentType = 5120
	componentUnsignedByte  componentType = 5121
	componentShort         componentType = 5122
	componentUnsignedShort componentType = 5123
	componentUnsignedInt   componentType = 5125
	componentFloat         componentType = 5126
)

func (c componentType) String() string {
	switch c {
	case componentByte:
		return "BYTE"
	case componentUnsignedByte:
		return "UNSIGNED_BYTE"
	case componentShort:
		return "SHORT"
	case componentUnsignedShort:
		return "UNSIGNED_SHORT"
	case componentUnsignedInt:
		return "UNSIGNED_INT"
	case componentFloat:
		return "FLOAT"
	}
	return "UNKNOWN"
}

// size returns the byte size of one component.
func (c componentType) size() int {
	switch c {
	case componentByte, componentUnsignedByte:
		return 1
	case componentShort, componentUnsignedShort:
		return 2
	default:
		return 4
	}
}

// accessor is a typed window onto a buffer view.
//
// Only the most ancestral accessor of a clone chain is populated. Clones share
// its view, count and offset but never carry min/max.
type accessor struct {
	named

	view         *bufferView
	typ          accessorType
	ctype        componentType
	normalized   bool
	isVertexAttr bool
	byteStride   int

	count      int
	byteOffset int64

	haveMinMax bool
	minFloat   [4]float32
	maxFloat   [4]float32
	minInt     int64
	maxInt     int64

	clonedFrom *accessor
}

var _ referencedObject = &accessor{}

// accessorName returns the registry name of the accessor suffix of mesh.
func accessorName(mesh, suffix string) string {
	return "accessor_" + mesh + "_" + suffix
}

func (a *accessor) kind() objectKind { return kindAccessor }

// packedSize is the byte size of one element with no padding.
func (a *accessor) packedSize() int {
	return a.typ.components() * a.ctype.size()
}

// ancestor returns the accessor that owns the data.
func (a *accessor) ancestor() *accessor {
	for a.clonedFrom != nil {
		a = a.clonedFrom
	}
	return a
}

// strideFor computes the stride an accessor of this shape needs in the given
// schema version. Index data and glTF 1 scalars are tightly packed.
func strideFor(version common.SchemaVersion, typ accessorType, ctype componentType, isVertexAttr bool) int {
	if !isVertexAttr {
		return 0
	}
	if version == common.SchemaV1 && typ == typeScalar {
		return 0
	}
	return typ.components() * ctype.size()
}

// sanityCheckViewStride fixes the view's stride on first use and rejects
// accessors that disagree with it afterwards.
//
// Returns:
//   - error: ErrStrideMismatch if the accessor cannot share the view
func (a *accessor) sanityCheckViewStride() error {
	packed := a.packedSize()
	if a.view.byteStride == nil {
		stride := a.byteStride
		a.view.byteStride = &stride
		a.view.packedSize = &packed
		return nil
	}
	vs, vp := *a.view.byteStride, *a.view.packedSize
	if vs != a.byteStride || (vs == 0 && vp != packed) {
		return ErrStrideMismatch.New(a.view.name, a.name, a.byteStride, packed, vs, vp)
	}
	return nil
}

// cloneWithType returns a view of a with a smaller element type. The same type
// returns a itself.
//
// Returns:
//   - *accessor: the clone, or a
//   - bool: true if a new accessor was created and needs registering
//   - error: ErrTypeMismatch if newType is larger than a's type
func (a *accessor) cloneWithType(newType accessorType) (*accessor, bool, error) {
	if newType == a.typ {
		return a, false, nil
	}
	if newType > a.typ {
		return nil, false, ErrTypeMismatch.New(a.name, a.ctype, a.typ, a.ctype, newType)
	}
	return &accessor{
		named:        named{name: a.name + "_" + newType.String()},
		view:         a.view,
		typ:          newType,
		ctype:        a.ctype,
		normalized:   a.normalized,
		isVertexAttr: a.isVertexAttr,
		byteStride:   a.byteStride,
		clonedFrom:   a,
	}, true, nil
}

func (a *accessor) requireType(typ accessorType, ctype componentType) error {
	if a.typ != typ || a.ctype != ctype {
		return ErrTypeMismatch.New(a.name, a.ctype, a.typ, ctype, typ)
	}
	return nil
}

// begin records where in the view this accessor's data starts.
func (a *accessor) begin(count int) {
	a.byteOffset = a.view.byteLength
	a.count = count
}

// populateFloat appends count elements of flat float data. When flipY is set
// the second component c becomes 1-c.
//
// Parameters:
//   - flat: the components, element after element
//   - flipY: whether to flip the second component
//   - calcMinMax: whether to record per-component bounds
//
// Returns:
//   - error: ErrTypeMismatch if the accessor is not a float accessor of the right width
func (a *accessor) populateFloat(flat []float32, typ accessorType, flipY, calcMinMax bool) error {
	if err := a.requireType(typ, componentFloat); err != nil {
		return err
	}
	n := typ.components()
	if flipY && n > 1 {
		for i := 1; i < len(flat); i += n {
			flat[i] = 1 - flat[i]
		}
	}
	a.begin(len(flat) / n)
	if calcMinMax && a.count > 0 {
		a.haveMinMax = true
		for c := 0; c < n; c++ {
			a.minFloat[c], a.maxFloat[c] = math32.Inf(1), math32.Inf(-1)
		}
		for i, v := range flat {
			c := i % n
			a.minFloat[c] = math32.Min(a.minFloat[c], v)
			a.maxFloat[c] = math32.Max(a.maxFloat[c], v)
		}
	}
	appendSlice(a.view, flat)
	return nil
}

// populateColors appends vertex colors as normalized bytes (glTF 2) or floats (glTF 1).
func (a *accessor) populateColors(colors []common.Color32) error {
	if a.ctype == componentUnsignedByte {
		if err := a.requireType(typeVec4, componentUnsignedByte); err != nil {
			return err
		}
		a.begin(len(colors))
		appendSlice(a.view, colors)
		return nil
	}
	flat := make([]float32, 0, 4*len(colors))
	for _, c := range colors {
		f := c.ToFloat()
		flat = append(flat, f[:]...)
	}
	return a.populateFloat(flat, typeVec4, false, false)
}

// populateUshort appends index data and records integer bounds.
func (a *accessor) populateUshort(data []uint16) error {
	if err := a.requireType(typeScalar, componentUnsignedShort); err != nil {
		return err
	}
	a.begin(len(data))
	if len(data) > 0 {
		a.haveMinMax = true
		a.minInt, a.maxInt = int64(data[0]), int64(data[0])
		for _, v := range data {
			a.minInt = min(a.minInt, int64(v))
			a.maxInt = max(a.maxInt, int64(v))
		}
	}
	appendSlice(a.view, data)
	return nil
}

func (a *accessor) iterReferences(ctx *writeContext) []referencedObject {
	return refs(ctx.ref(a.view))
}

func (a *accessor) writeObject(ctx *writeContext) {
	w := ctx.w
	src := a.ancestor()
	w.BeginObject()
	ctx.keyRef("bufferView", a.view)
	w.KeyInt("byteOffset", src.byteOffset)
	if ctx.v1() {
		w.KeyInt("byteStride", int64(a.byteStride))
	}
	w.KeyInt("componentType", int64(a.ctype))
	if !ctx.v1() && a.normalized && a.ctype != componentFloat {
		w.KeyBool("normalized", true)
	}
	w.KeyInt("count", int64(src.count))
	if a.haveMinMax && a.count > 0 {
		n := a.typ.components()
		switch {
		case a.ctype == componentFloat:
			w.Key("max")
			w.Floats(a.maxFloat[:n])
			w.Key("min")
			w.Floats(a.minFloat[:n])
		case a.ctype == componentUnsignedShort && a.typ == typeScalar:
			w.Key("max")
			w.Ints([]int64{a.maxInt})
			w.Key("min")
			w.Ints([]int64{a.minInt})
		}
	}
	w.KeyString("type", a.typ.String())
	w.EndObject()
}
