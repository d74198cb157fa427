package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/config"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
	"github.com/googlevr/tilt-brush-sub010/engine/model"
	"github.com/googlevr/tilt-brush-sub010/engine/profiler"
	"github.com/sirupsen/logrus"
)

// timestampChannel is the texcoord channel _TB_TIMESTAMP is decoded into.
const timestampChannel = 2

// meshDecodeContext is what the geometry decoder needs to know about the
// document and the host.
type meshDecodeContext struct {
	producer Producer
	version  common.SchemaVersion
	// basis converts file axes to native axes.
	basis common.Mat4
	// scale converts file units to host units.
	scale float32
	// colorSpace is the space the host wants vertex colors in.
	colorSpace common.ColorSpace
	strict     bool
	maxVerts   int
}

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	logger    *logrus.Logger
	profiler  *profiler.Profiler
	materials gltfMaterialExtractor
	ctx       meshDecodeContext

	extracted    map[gltfMesh][]int
	meshes       []model.ImportedMesh
	warnedColors bool
}

// gltfMeshExtractor decodes glTF meshes into host-space geometry pools.
type gltfMeshExtractor interface {
	// ExtractMesh decodes every primitive of mesh. A mesh is decoded once no
	// matter how many nodes use it.
	//
	// Parameters:
	//   - mesh: a mesh of the dereferenced document
	//
	// Returns:
	//   - []int: indices into Meshes() of the decoded pieces
	//   - error: ErrShortAccessor in strict mode
	ExtractMesh(mesh gltfMesh) ([]int, error)

	// Meshes returns every mesh decoded so far.
	Meshes() []model.ImportedMesh
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a geometry decoder.
//
// Parameters:
//   - logger: receives decode warnings
//   - prof: counts defects; may be nil
//   - materials: resolves primitive materials and brushes
//   - ctx: the document and host settings
//
// Returns:
//   - gltfMeshExtractor: the mesh extractor
func newGLTFMeshExtractor(logger *logrus.Logger, prof *profiler.Profiler, materials gltfMaterialExtractor, ctx meshDecodeContext) gltfMeshExtractor {
	if ctx.maxVerts < 8 {
		ctx.maxVerts = config.DefaultOptions().Import.MaxVertsPerMesh
	}
	return &gltfMeshExtractorImpl{
		logger:    logger,
		profiler:  prof,
		materials: materials,
		ctx:       ctx,
		extracted: map[gltfMesh][]int{},
	}
}

func (x *gltfMeshExtractorImpl) Meshes() []model.ImportedMesh {
	return x.meshes
}

func (x *gltfMeshExtractorImpl) ExtractMesh(mesh gltfMesh) ([]int, error) {
	if done, ok := x.extracted[mesh]; ok {
		return done, nil
	}
	prims := mesh.primitiveList()
	var out []int
	for i, prim := range prims {
		name := mesh.meshName()
		if len(prims) > 1 {
			name += "_p" + strconv.Itoa(i)
		}
		pieces, err := x.extractPrimitive(name, prim)
		if err != nil {
			return nil, err
		}
		for _, p := range pieces {
			out = append(out, len(x.meshes))
			x.meshes = append(x.meshes, p)
		}
	}
	x.extracted[mesh] = out
	return out, nil
}

// warn logs a recoverable input defect and counts it.
func (x *gltfMeshExtractorImpl) warn(fields logrus.Fields, msg string) {
	x.logger.WithFields(fields).Warn(msg)
	x.profiler.Defect("loader", "warning")
}

// extractPrimitive decodes one primitive into one or more meshes, splitting it
// when it addresses more vertices than one mesh may hold.
func (x *gltfMeshExtractorImpl) extractPrimitive(name string, prim gltfPrimitive) ([]model.ImportedMesh, error) {
	fields := logrus.Fields{"mesh": name}
	if mode := prim.primitiveMode(); mode != gltfPrimitiveModeTriangles {
		fields["mode"] = mode
		x.warn(fields, "Ignoring primitive: only TRIANGLES are supported")
		return nil, nil
	}
	pos := prim.attribute("POSITION")
	if pos == nil {
		x.warn(fields, "Ignoring primitive without POSITION")
		return nil, nil
	}
	numVerts := pos.Count

	tris, ok, err := x.readIndices(fields, prim.indexAccessor(), numVerts)
	if err != nil || !ok {
		return nil, err
	}

	mat := prim.primitiveMaterial()
	var brush material.Material
	if x.ctx.producer == ProducerTiltBrush {
		brush, _ = x.materials.LookupBrush(mat)
	}
	materialIndex := x.materials.MaterialIndex(mat)

	subsets := generateMeshSubsets(x.logger, tris, numVerts, x.ctx.maxVerts-4)
	var out []model.ImportedMesh
	for j, sub := range subsets {
		// Stroke geometry is built from quads; subsets start on a quad boundary.
		verts := intRange{min: sub.vertices.min &^ 3, max: sub.vertices.max}
		pool, err := x.decodeSubset(fields, prim, brush, verts)
		if err != nil {
			return nil, err
		}
		if pool == nil {
			continue
		}
		for _, t := range tris[sub.triangles.min:sub.triangles.max] {
			pool.Tris = append(pool.Tris, t-uint32(verts.min))
		}
		x.finishPool(fields, pool, brush)
		if err := pool.Validate(); err != nil {
			x.logger.WithFields(fields).WithError(err).Error("Decoded mesh is inconsistent; skipping")
			x.profiler.Defect("loader", "error")
			continue
		}

		meshName := name
		if len(subsets) > 1 {
			meshName += "_m" + strconv.Itoa(j)
		}
		lo, hi := pool.Bounds()
		out = append(out, model.ImportedMesh{
			Name:          meshName,
			Pool:          pool,
			MaterialIndex: materialIndex,
			BoundingMin:   lo,
			BoundingMax:   hi,
		})
	}
	return out, nil
}

// readIndices returns the triangle list of a primitive. A primitive without
// indices draws its vertices in order. Incomplete trailing triangles and
// triangles that reference missing vertices are dropped.
//
// Returns:
//   - []uint32: three indices per triangle
//   - bool: false if the primitive should be ignored
//   - error: ErrShortAccessor in strict mode
func (x *gltfMeshExtractorImpl) readIndices(fields logrus.Fields, acc *gltfAccessor, numVerts int) ([]uint32, bool, error) {
	if acc == nil {
		tris := make([]uint32, numVerts-numVerts%3)
		for i := range tris {
			tris[i] = uint32(i)
		}
		return tris, true, nil
	}
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte, gltfComponentTypeUnsignedShort, gltfComponentTypeUnsignedInt:
	default:
		x.warn(logrus.Fields{"mesh": fields["mesh"], "accessor": acc.String()}, "Ignoring primitive with non-integer indices")
		return nil, false, nil
	}
	tris, missing := acc.readUints(0, acc.Count)
	if err := x.checkShort(fields, acc, acc.Count, missing); err != nil {
		return nil, false, err
	}
	if extra := len(tris) % 3; extra != 0 {
		x.warn(logrus.Fields{"mesh": fields["mesh"], "indices": len(tris)}, "Index count is not a multiple of 3; truncating")
		tris = tris[:len(tris)-extra]
	}
	kept := tris[:0]
	dropped := 0
	for i := 0; i < len(tris); i += 3 {
		a, b, c := tris[i], tris[i+1], tris[i+2]
		if int(max(a, b, c)) >= numVerts {
			dropped++
			continue
		}
		kept = append(kept, a, b, c)
	}
	if dropped > 0 {
		x.warn(logrus.Fields{"mesh": fields["mesh"], "triangles": dropped}, "Dropping triangles with out-of-range indices")
	}
	return kept, true, nil
}

// checkShort handles an accessor whose data ended before the elements read.
func (x *gltfMeshExtractorImpl) checkShort(fields logrus.Fields, acc *gltfAccessor, read, missing int) error {
	if missing == 0 {
		return nil
	}
	if x.ctx.strict {
		return ErrShortAccessor.New(acc.String(), read-missing, read)
	}
	x.warn(logrus.Fields{
		"mesh":     fields["mesh"],
		"accessor": acc.String(),
		"missing":  missing,
	}, "Accessor data is short; padding with zeros")
	return nil
}

// readAttribute reads the vertices r of an attribute as floats, zero-padding
// past the end of the accessor.
//
// Returns:
//   - []float32: r.size() * components values, or nil if the accessor holds
//     none of the range
//   - error: ErrShortAccessor in strict mode
func (x *gltfMeshExtractorImpl) readAttribute(fields logrus.Fields, attr string, acc *gltfAccessor, r intRange, normalize bool) ([]float32, error) {
	if r.min >= acc.Count {
		x.warn(logrus.Fields{"mesh": fields["mesh"], "attribute": attr, "range": fmt.Sprintf("[%d, %d)", r.min, r.max), "count": acc.Count}, "Attribute has no data")
		return nil, nil
	}
	hi := r.max
	if hi > acc.Count {
		x.warn(logrus.Fields{"mesh": fields["mesh"], "attribute": attr, "range": fmt.Sprintf("[%d, %d)", r.min, r.max), "count": acc.Count}, "Attribute has fewer elements than POSITION; padding")
		hi = acc.Count
	}
	data, missing := acc.readFloats(r.min, hi, normalize)
	if err := x.checkShort(fields, acc, hi-r.min, missing); err != nil {
		return nil, err
	}
	if want := r.size() * acc.components(); len(data) < want {
		data = append(data, make([]float32, want-len(data))...)
	}
	return data, nil
}

// isFloatVec reports whether acc is a float vector of one of the given widths.
func isFloatVec(acc *gltfAccessor, widths ...int) bool {
	if acc.ComponentType != gltfComponentTypeFloat {
		return false
	}
	for _, w := range widths {
		if acc.components() == w && acc.Type != gltfAccessorTypeScalar && !strings.HasPrefix(acc.Type, "MAT") {
			return true
		}
	}
	return false
}

// decodeSubset reads every attribute of prim over the vertex range r into a
// pool in file space.
//
// Returns:
//   - *geometry.Pool: the pool, or nil if POSITION has no data in r
//   - error: ErrShortAccessor in strict mode
func (x *gltfMeshExtractorImpl) decodeSubset(fields logrus.Fields, prim gltfPrimitive, brush material.Material, r intRange) (*geometry.Pool, error) {
	pool := geometry.NewPool(geometry.VertexLayout{})
	pos := prim.attribute("POSITION")
	if !isFloatVec(pos, 3) {
		x.warn(logrus.Fields{"mesh": fields["mesh"], "accessor": pos.String()}, "Ignoring primitive: POSITION is not VEC3 FLOAT")
		return nil, nil
	}
	data, err := x.readAttribute(fields, "POSITION", pos, r, false)
	if err != nil || data == nil {
		return nil, err
	}
	pool.Vertices = unflatten3(data)

	for _, attr := range prim.attributeNames() {
		acc := prim.attribute(attr)
		if acc == nil || attr == "POSITION" {
			continue
		}
		if err := x.decodeAttribute(fields, pool, brush, attr, acc, r); err != nil {
			return nil, err
		}
	}
	return pool, nil
}

func (x *gltfMeshExtractorImpl) decodeAttribute(fields logrus.Fields, pool *geometry.Pool, brush material.Material, attr string, acc *gltfAccessor, r intRange) error {
	unsupported := func() {
		x.warn(logrus.Fields{"mesh": fields["mesh"], "attribute": attr, "type": acc.Type, "componentType": acc.ComponentType}, "Unsupported attribute layout")
	}
	switch {
	case attr == "NORMAL":
		if !isFloatVec(acc, 3) {
			unsupported()
			return nil
		}
		data, err := x.readAttribute(fields, attr, acc, r, false)
		if err != nil || data == nil {
			return err
		}
		pool.Normals = unflatten3(data)
		pool.Layout.UseNormals = true
		pool.Layout.NormalSemantic = x.normalSemantic(brush)

	case attr == "COLOR" || attr == "COLOR_0":
		ubyte := acc.ComponentType == gltfComponentTypeUnsignedByte
		if acc.Type != gltfAccessorTypeVec4 || !(ubyte || acc.ComponentType == gltfComponentTypeFloat) {
			x.warn(logrus.Fields{"mesh": fields["mesh"], "type": acc.Type, "componentType": acc.ComponentType}, "Unsupported color buffer")
			return nil
		}
		data, err := x.readAttribute(fields, attr, acc, r, ubyte)
		if err != nil || data == nil {
			return err
		}
		actual, desired := x.colorSpaces()
		pool.Colors = make([]common.Color32, len(data)/4)
		for i := range pool.Colors {
			c := [4]float32{data[4*i], data[4*i+1], data[4*i+2], data[4*i+3]}
			pool.Colors[i] = common.Color32FromFloat(common.ConvertColor(c, actual, desired))
		}
		pool.Layout.UseColors = true

	case attr == "TANGENT":
		if !isFloatVec(acc, 4) {
			unsupported()
			return nil
		}
		data, err := x.readAttribute(fields, attr, acc, r, false)
		if err != nil || data == nil {
			return err
		}
		pool.Tangents = unflatten4(data)
		pool.Layout.UseTangents = true

	case strings.HasPrefix(attr, "TEXCOORD_"):
		ch, err := strconv.Atoi(strings.TrimPrefix(attr, "TEXCOORD_"))
		if err != nil || ch < 0 || ch >= geometry.MaxTexcoords {
			x.warn(logrus.Fields{"mesh": fields["mesh"], "attribute": attr}, "Unhandled attribute")
			return nil
		}
		return x.decodeTexcoord(fields, pool, attr, acc, r, ch, x.texcoordSemantic(fields, brush, ch, acc.components()))

	case attr == "_TB_TIMESTAMP":
		return x.decodeTexcoord(fields, pool, attr, acc, r, timestampChannel, geometry.SemanticTimestamp)

	case attr == "VERTEXID":
		// Regenerated by the exporter when a layout asks for it.

	default:
		x.warn(logrus.Fields{"mesh": fields["mesh"], "attribute": attr}, "Unhandled attribute")
	}
	return nil
}

func (x *gltfMeshExtractorImpl) decodeTexcoord(fields logrus.Fields, pool *geometry.Pool, attr string, acc *gltfAccessor, r intRange, ch int, sem geometry.Semantic) error {
	if !isFloatVec(acc, 2, 3, 4) {
		x.warn(logrus.Fields{"mesh": fields["mesh"], "attribute": attr, "type": acc.Type, "componentType": acc.ComponentType}, "Unsupported attribute layout")
		return nil
	}
	data, err := x.readAttribute(fields, attr, acc, r, false)
	if err != nil || data == nil {
		return err
	}
	size := acc.components()
	tc := geometry.TexcoordData{}
	switch size {
	case 2:
		tc.V2 = unflatten2(data)
	case 3:
		tc.V3 = unflatten3(data)
	case 4:
		tc.V4 = unflatten4(data)
	}
	pool.Texcoords[ch] = tc
	pool.Layout.Texcoords[ch] = geometry.TexcoordInfo{Size: size, Semantic: sem}
	return nil
}

// finishPool moves a decoded pool from file space into host space and repairs
// its normals. Missing normals are generated unless the brush does without them.
func (x *gltfMeshExtractorImpl) finishPool(fields logrus.Fields, pool *geometry.Pool, brush material.Material) {
	pool.ApplyTransform(common.ScaleMat4(x.ctx.scale).Mul(x.ctx.basis))
	for ch, info := range pool.Layout.Texcoords {
		if info.Semantic.IsUV() {
			flipV(&pool.Texcoords[ch], info.Size)
		}
	}

	wantsNormals := brush == nil || brush.VertexLayout().UseNormals
	unitless := func(s geometry.Semantic) bool {
		return s == geometry.SemanticUnitlessVector || s == geometry.SemanticUnspecified
	}
	switch {
	case !pool.Layout.UseNormals && wantsNormals && unitless(x.normalSemantic(brush)) && pool.NumTris() > 0:
		generateNormals(pool)
	case pool.Layout.UseNormals && unitless(pool.Layout.NormalSemantic):
		if n := fixInvalidNormals(pool); n > 0 {
			x.warn(logrus.Fields{"mesh": fields["mesh"], "normals": n}, "Replaced zero-length normals")
		}
	}
}

// flipV converts between glTF and host texture conventions: v' = 1 - v.
func flipV(tc *geometry.TexcoordData, size int) {
	switch size {
	case 2:
		for i := range tc.V2 {
			tc.V2[i][1] = 1 - tc.V2[i][1]
		}
	case 3:
		for i := range tc.V3 {
			tc.V3[i][1] = 1 - tc.V3[i][1]
		}
	case 4:
		for i := range tc.V4 {
			tc.V4[i][1] = 1 - tc.V4[i][1]
		}
	}
}

// colorSpaces returns the space the file's vertex colors are stored in and
// the space to decode them into. Tilt Brush and Blocks write sRGB colors and
// those are recoded for the host; colors from any other producer are kept as
// stored.
func (x *gltfMeshExtractorImpl) colorSpaces() (actual, desired common.ColorSpace) {
	if x.ctx.producer == ProducerUnknown {
		if !x.warnedColors {
			x.warnedColors = true
			x.warn(logrus.Fields{"producer": x.ctx.producer}, "Unknown producer; keeping vertex colors as stored")
		}
		return common.ColorSpaceSRGB, common.ColorSpaceSRGB
	}
	return common.ColorSpaceSRGB, x.ctx.colorSpace
}

// texcoordSemantic decides how texcoord channel ch behaves. Files from
// unknown producers hold plain uvs; Tilt Brush files hold whatever the brush
// put there.
func (x *gltfMeshExtractorImpl) texcoordSemantic(fields logrus.Fields, brush material.Material, ch, size int) geometry.Semantic {
	if x.ctx.producer != ProducerTiltBrush {
		return geometry.SemanticXyIsUv
	}
	if brush == nil {
		if x.ctx.version == common.SchemaV1 {
			x.warn(logrus.Fields{"mesh": fields["mesh"], "channel": ch}, "Tilt Brush material is not a known brush; texcoord semantic unknown")
			return geometry.SemanticUnspecified
		}
		return geometry.SemanticXyIsUv
	}
	if ch >= 2 {
		x.warn(logrus.Fields{"mesh": fields["mesh"], "channel": ch, "brush": brush.DurableName()}, "Brush does not describe this texcoord channel")
		return geometry.SemanticUnspecified
	}
	sem := brush.VertexLayout().Texcoords[ch].Semantic
	if sem == geometry.SemanticUnspecified && ch == 0 && size == 2 {
		sem = geometry.SemanticXyIsUv
	}
	return sem
}

// normalSemantic returns how normals behave: as the brush says, else unitless.
func (x *gltfMeshExtractorImpl) normalSemantic(brush material.Material) geometry.Semantic {
	if x.ctx.producer == ProducerTiltBrush && brush != nil {
		return brush.VertexLayout().NormalSemantic
	}
	return geometry.SemanticUnitlessVector
}

func unflatten2(data []float32) [][2]float32 {
	out := make([][2]float32, len(data)/2)
	for i := range out {
		out[i] = [2]float32{data[2*i], data[2*i+1]}
	}
	return out
}

func unflatten3(data []float32) [][3]float32 {
	out := make([][3]float32, len(data)/3)
	for i := range out {
		out[i] = [3]float32{data[3*i], data[3*i+1], data[3*i+2]}
	}
	return out
}

func unflatten4(data []float32) [][4]float32 {
	out := make([][4]float32, len(data)/4)
	for i := range out {
		out[i] = [4]float32{data[4*i], data[4*i+1], data[4*i+2], data[4*i+3]}
	}
	return out
}
