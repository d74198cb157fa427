package exporter

import (
	"fmt"
	"sort"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
)

// Technique parameter types.
const (
	techniqueFloat     = 5126
	techniqueVec2      = 35664
	techniqueVec3      = 35665
	techniqueVec4      = 35666
	techniqueMat3      = 35675
	techniqueMat4      = 35676
	techniqueSampler2D = 35678
)

// Prefix for attributes whose data does not conform to the glTF 2 definition
// of the attribute name.
const nonconformingPrefix = "_TB_UNITY_"

// attributeInfo is how one vertex channel is stored.
type attributeInfo struct {
	typ   accessorType
	ctype componentType
}

// techniqueType returns the glTF 1 technique parameter type for the channel.
func (i attributeInfo) techniqueType() int {
	switch i.typ {
	case typeVec2:
		return techniqueVec2
	case typeVec3:
		return techniqueVec3
	case typeVec4:
		return techniqueVec4
	default:
		return techniqueFloat
	}
}

// gltfLayout maps a geometry.VertexLayout onto accessor shapes for one schema version.
type gltfLayout struct {
	src       geometry.VertexLayout
	position  attributeInfo
	normal    *attributeInfo
	color     *attributeInfo
	tangent   *attributeInfo
	texcoords [geometry.MaxTexcoords]*attributeInfo

	// packVertexID widens texcoord 1 from VEC3 to VEC4 and stores the vertex index in w.
	packVertexID bool
}

func floatInfo(size int) *attributeInfo {
	return &attributeInfo{typ: accessorType(size - 1), ctype: componentFloat}
}

// newGltfLayout validates l and computes accessor shapes.
//
// Parameters:
//   - l: the source layout
//   - version: the schema being written
//
// Returns:
//   - gltfLayout: the accessor shapes
//   - error: ErrInvalidLayout if the layout cannot be written
func newGltfLayout(l geometry.VertexLayout, version common.SchemaVersion) (gltfLayout, error) {
	if err := l.Validate(); err != nil {
		return gltfLayout{}, ErrInvalidLayout.New(err.Error())
	}
	g := gltfLayout{
		src:      l,
		position: attributeInfo{typ: typeVec3, ctype: componentFloat},
	}
	if l.UseNormals {
		g.normal = floatInfo(3)
	}
	if l.UseColors {
		if version == common.SchemaV1 {
			g.color = &attributeInfo{typ: typeVec4, ctype: componentFloat}
		} else {
			g.color = &attributeInfo{typ: typeVec4, ctype: componentUnsignedByte}
		}
	}
	if l.UseTangents {
		g.tangent = floatInfo(4)
	}
	for i, tc := range l.Texcoords {
		if tc.Size > 0 {
			g.texcoords[i] = floatInfo(tc.Size)
		}
	}
	if l.UseVertexIDs {
		switch {
		case version == common.SchemaV1 && l.Texcoords[1].Size == 3:
			g.packVertexID = true
			g.texcoords[1] = floatInfo(4)
		case version == common.SchemaV1:
			return gltfLayout{}, ErrInvalidLayout.New(
				fmt.Sprintf("vertex ids need a 3-component texcoord 1, have %d", l.Texcoords[1].Size))
		}
	}
	return g, nil
}

// equal reports whether two layouts produce the same accessors.
func (g gltfLayout) equal(o gltfLayout) bool {
	return g.src == o.src && g.packVertexID == o.packVertexID
}

// attributes is the set of per-vertex accessors of a primitive, keyed by attribute name.
type attributes struct {
	layout    gltfLayout
	position  *accessor
	normal    *accessor
	color     *accessor
	tangent   *accessor
	texcoords [geometry.MaxTexcoords]*accessor
	byName    map[string]*accessor
}

// newAttributes creates and registers the accessors for one mesh.
//
// Parameters:
//   - meshName: the unique mesh name the accessors are named after
//   - layout: the accessor shapes
//
// Returns:
//   - *attributes: the unpopulated attributes
//   - error: error if an accessor cannot be created
func (e *exporter) newAttributes(meshName string, layout gltfLayout) (*attributes, error) {
	a := &attributes{layout: layout, byName: make(map[string]*accessor)}
	prefix := ""
	if e.version == common.SchemaV2 {
		prefix = nonconformingPrefix
	}

	var err error
	if a.position, err = e.createAccessor(accessorName(meshName, "position"), layout.position, true, false); err != nil {
		return nil, err
	}
	a.byName["POSITION"] = a.position

	if layout.normal != nil {
		if a.normal, err = e.createAccessor(accessorName(meshName, "normal"), *layout.normal, true, false); err != nil {
			return nil, err
		}
		name := "NORMAL"
		if layout.src.NormalSemantic == geometry.SemanticPosition {
			name = prefix + name
		}
		a.byName[name] = a.normal
	}

	if layout.color != nil {
		if a.color, err = e.createAccessor(accessorName(meshName, "color"), *layout.color, true, true); err != nil {
			return nil, err
		}
		if e.version == common.SchemaV2 {
			a.byName["COLOR_0"] = a.color
		} else {
			a.byName["COLOR"] = a.color
		}
	}

	if layout.tangent != nil {
		if a.tangent, err = e.createAccessor(accessorName(meshName, "tangent"), *layout.tangent, true, false); err != nil {
			return nil, err
		}
		a.byName["TANGENT"] = a.tangent
	}

	for i, info := range layout.texcoords {
		if info == nil {
			continue
		}
		attr := fmt.Sprintf("%sTEXCOORD_%d", prefix, i)
		if layout.src.Texcoords[i].Semantic == geometry.SemanticTimestamp {
			if e.version == common.SchemaV1 {
				continue
			}
			attr = "_TB_TIMESTAMP"
		}
		acc, err := e.createAccessor(accessorName(meshName, fmt.Sprintf("uv%d", i)), *info, true, false)
		if err != nil {
			return nil, err
		}
		a.texcoords[i] = acc
		a.byName[attr] = acc
	}

	if e.version == common.SchemaV2 && a.texcoords[0] != nil {
		tc0 := layout.src.Texcoords[0]
		if (tc0.Semantic == geometry.SemanticUnspecified && tc0.Size == 2) || tc0.Semantic.IsUV() {
			clone, created, err := a.texcoords[0].cloneWithType(typeVec2)
			if err != nil {
				return nil, err
			}
			if created {
				if err := e.reg.register(clone); err != nil {
					return nil, err
				}
			}
			a.byName["TEXCOORD_0"] = clone
		}
	}
	return a, nil
}

// populate copies pool data into the accessors.
//
// Returns:
//   - error: error if a channel has an unsupported semantic or shape
func (a *attributes) populate(pool *geometry.Pool) error {
	if err := a.position.populateFloat(flatten3(pool.Vertices), typeVec3, false, true); err != nil {
		return err
	}
	if a.normal != nil {
		if err := a.normal.populateFloat(flatten3(pool.Normals), typeVec3, false, false); err != nil {
			return err
		}
	}
	if a.color != nil {
		if err := a.color.populateColors(pool.Colors); err != nil {
			return err
		}
	}
	if a.tangent != nil {
		if err := a.tangent.populateFloat(flatten4(pool.Tangents), typeVec4, false, false); err != nil {
			return err
		}
	}
	for i, acc := range a.texcoords {
		if err := a.populateUV(i, pool, acc, pool.Layout.Texcoords[i].Semantic); err != nil {
			return err
		}
	}
	return nil
}

// populateUV writes one texcoord channel. Texture coordinates are flipped
// vertically; positions, vectors and timestamps are written as-is.
func (a *attributes) populateUV(channel int, pool *geometry.Pool, acc *accessor, semantic geometry.Semantic) error {
	if acc == nil {
		return nil
	}
	data := pool.Texcoords[channel]
	if semantic == geometry.SemanticXyIsUvZIsDistance && acc.typ != typeVec3 {
		return ErrInvalidLayout.New(fmt.Sprintf("texcoord %d: XyIsUvZIsDistance needs VEC3, have %s", channel, acc.typ))
	}
	if semantic == geometry.SemanticUnspecified && channel == 0 && acc.typ == typeVec2 {
		semantic = geometry.SemanticXyIsUv
	}

	var flipY bool
	switch semantic {
	case geometry.SemanticPosition, geometry.SemanticVector, geometry.SemanticTimestamp:
		flipY = false
	case geometry.SemanticXyIsUv, geometry.SemanticXyIsUvZIsDistance:
		flipY = true
	default:
		return ErrInvalidLayout.New(fmt.Sprintf("texcoord %d: unsupported semantic %s", channel, semantic))
	}

	switch acc.typ {
	case typeVec2:
		return acc.populateFloat(flatten2(data.V2), typeVec2, flipY, false)
	case typeVec3:
		return acc.populateFloat(flatten3(data.V3), typeVec3, flipY, false)
	case typeVec4:
		if a.layout.packVertexID && channel == 1 {
			v4 := make([][4]float32, len(data.V3))
			for i, v := range data.V3 {
				v4[i] = [4]float32{v[0], v[1], v[2], float32(i)}
			}
			return acc.populateFloat(flatten4(v4), typeVec4, flipY, false)
		}
		return acc.populateFloat(flatten4(data.V4), typeVec4, flipY, false)
	}
	return ErrInvalidLayout.New(fmt.Sprintf("texcoord %d: unexpected accessor type %s", channel, acc.typ))
}

// attributeOrder keeps the conventional attributes first; the rest sort by name.
func attributeOrder(name string) int {
	switch name {
	case "POSITION":
		return 0
	case "NORMAL":
		return 1
	case "COLOR_0", "COLOR":
		return 2
	case "TANGENT":
		return 3
	case "VERTEXID":
		return 4
	default:
		return 5
	}
}

// sortedNames returns the attribute names in write order.
func (a *attributes) sortedNames() []string {
	names := common.SortedKeys(a.byName)
	sort.SliceStable(names, func(i, j int) bool {
		return attributeOrder(names[i]) < attributeOrder(names[j])
	})
	return names
}

func (a *attributes) iterReferences(ctx *writeContext) []referencedObject {
	out := make([]referencedObject, 0, len(a.byName))
	for _, name := range a.sortedNames() {
		out = append(out, ctx.ref(a.byName[name]))
	}
	return refs(out...)
}

func (a *attributes) write(ctx *writeContext) {
	ctx.w.BeginObject()
	for _, name := range a.sortedNames() {
		ctx.keyRef(name, a.byName[name])
	}
	ctx.w.EndObject()
}

func flatten2(d [][2]float32) []float32 {
	out := make([]float32, 0, 2*len(d))
	for _, v := range d {
		out = append(out, v[:]...)
	}
	return out
}

func flatten3(d [][3]float32) []float32 {
	out := make([]float32, 0, 3*len(d))
	for _, v := range d {
		out = append(out, v[:]...)
	}
	return out
}

func flatten4(d [][4]float32) []float32 {
	out := make([]float32, 0, 4*len(d))
	for _, v := range d {
		out = append(out, v[:]...)
	}
	return out
}
