// Package exporter writes glTF 1 and glTF 2 documents, optionally packed into a
// binary GLB container or a b3dm tile.
//
// Objects are created through the Exporter while meshes are added. Nothing is
// serialized until Write: at that point every object's declared references are
// collected into a graph, the transitive closure of the scene is computed and
// only reachable objects are written, each at the index the closure assigned it.
package exporter

import (
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/geometry"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
	"github.com/googlevr/tilt-brush-sub010/engine/profiler"
	"github.com/sirupsen/logrus"
)

// MeshPayload is one mesh to export together with its naming.
type MeshPayload struct {
	// UniqueName names the node, mesh and accessors. It must be unique per pool.
	UniqueName string

	// NodeName and GeometryName are the names written for the node and the mesh.
	NodeName     string
	GeometryName string

	// Namespace prefixes the material's presentation name and local texture file names.
	Namespace string

	// Pool holds the geometry in native axes. Payloads sharing a Pool share the mesh.
	Pool *geometry.Pool

	// Material is exported the first time a mesh uses it.
	Material material.Material

	// Xform is the node's local transform in native axes.
	Xform common.Mat4
}

// Exporter collects a scene and writes it as glTF.
type Exporter interface {
	// Version returns the schema version being written.
	Version() common.SchemaVersion

	// SetMetadata sets asset.generator and asset.copyright.
	//
	// Parameters:
	//   - generator: the generator string
	//   - copyright: the copyright string, or empty to omit it
	SetMetadata(generator, copyright string)

	// SetSceneExtra sets a string in the scene's extras object.
	//
	// Parameters:
	//   - key: the extras key
	//   - value: the value
	SetSceneExtra(key, value string)

	// CreateNode creates a node named desiredName, or "desiredName i" for the
	// first free i if the name is taken.
	//
	// Parameters:
	//   - desiredName: the preferred node name
	//   - xform: the local transform in native axes
	//   - parent: the parent node, or nil for a root
	//
	// Returns:
	//   - Node: the new node
	//   - error: error if the parent does not belong to this exporter
	CreateNode(desiredName string, xform common.Mat4, parent Node) (Node, error)

	// GetOrCreateNode returns the node with this exact name, creating it if needed.
	// An existing node keeps its transform and parent; a different transform is logged.
	//
	// Parameters:
	//   - name: the node name
	//   - xform: the local transform in native axes
	//   - parent: the parent node, or nil for a root
	//
	// Returns:
	//   - Node: the node
	//   - bool: true if the node was created
	//   - error: error if the name belongs to a non-node object
	GetOrCreateNode(name string, xform common.Mat4, parent Node) (Node, bool, error)

	// GroupNode returns the root node that collects the meshes of one group.
	GroupNode(group int) (Node, error)

	// AddEmptyNode adds a root node with no mesh, such as an attachment point.
	//
	// Parameters:
	//   - name: the name of the empty
	//   - xform: the transform in native axes
	//
	// Returns:
	//   - Node: the new node
	//   - error: error if the node cannot be registered
	AddEmptyNode(name string, xform common.Mat4) (Node, error)

	// AddCamera adds a node holding a perspective camera.
	//
	// Parameters:
	//   - name: the camera name
	//   - yfov: vertical field of view in radians
	//   - aspect: width over height
	//   - znear, zfar: clip distances
	//   - xform: the camera transform in native axes
	//   - parent: the parent node, or nil for a root
	//
	// Returns:
	//   - Node: the camera's node
	//   - error: error if the objects cannot be registered
	AddCamera(name string, yfov, aspect, znear, zfar float32, xform common.Mat4, parent Node) (Node, error)

	// ExportMesh adds the payload's geometry as a mesh on a node and exports its
	// material if this is the material's first use. Payloads with no triangles
	// are skipped and return a nil Node.
	//
	// Parameters:
	//   - payload: the mesh to export
	//   - parent: the parent node, or nil for a root
	//
	// Returns:
	//   - Node: the node holding the mesh, or nil if skipped
	//   - error: error if the geometry cannot be written
	ExportMesh(payload MeshPayload, parent Node) (Node, error)

	// NumTris returns the number of triangles exported so far.
	NumTris() int

	// Write writes the document to path and releases temporary storage.
	// Binary output is a single file. Otherwise the buffer goes to a .bin file
	// beside the .gltf and local textures are copied next to it.
	//
	// Parameters:
	//   - path: the output file
	//
	// Returns:
	//   - error: the first error hit
	Write(path string) error

	// WriteSteps is Write split into steps. Each step yields nil on success; the
	// sequence stops after the first error. Temporary storage is released when
	// the sequence ends, however it ends.
	WriteSteps(path string) iter.Seq[error]

	// WriteTo writes the document to w. Binary output is the container itself;
	// JSON output embeds the buffer as a base64 data URI.
	//
	// Parameters:
	//   - w: the destination
	//
	// Returns:
	//   - error: the first error hit
	WriteTo(w io.Writer) error

	// Dispose releases temporary storage without writing. Safe to call more than once.
	Dispose()

	// ExportedFiles lists the files Write created: the document, its .bin and
	// any copied textures.
	ExportedFiles() []string
}

// Canonical buffer views, one per element shape.
const (
	viewUshort = iota
	viewFloat
	viewVec2
	viewVec3
	viewVec4
	numViews
)

// exporter is the implementation of the Exporter interface.
type exporter struct {
	log      logrus.FieldLogger
	profiler *profiler.Profiler

	version      common.SchemaVersion
	binary       bool
	b3dm         bool
	generator    string
	copyright    string
	rtcCenter    *[3]float32
	axes         common.AxisConvention
	basis        common.Mat4
	basisInverse common.Mat4
	spool        bool
	tempDir      string
	spoolDir     string
	copyTextures bool

	reg       *registry
	views     [numViews]*bufferView
	meshes    map[*geometry.Pool]*mesh
	materials map[material.Material]*gltfMaterial
	samplers  map[common.SamplerData]*sampler
	images    map[string]*image
	textures  map[[2]referencedObject]*texture

	fileRefs          []fileReference
	fileDestinations  map[string]string
	presentationNames map[string]struct{}
	sceneExtras       map[string]string

	exportedFiles []string

	numTris  int
	written  bool
	disposed bool
}

var _ Exporter = &exporter{}

// NewExporter creates a new Exporter. Defaults come from config.DefaultOptions.
//
// Parameters:
//   - options: functional options for the exporter
//
// Returns:
//   - Exporter: the exporter
//   - error: error if the options are invalid
func NewExporter(options ...ExporterBuilderOption) (Exporter, error) {
	e := &exporter{
		log:               logrus.StandardLogger(),
		reg:               newRegistry(),
		meshes:            make(map[*geometry.Pool]*mesh),
		materials:         make(map[material.Material]*gltfMaterial),
		samplers:          make(map[common.SamplerData]*sampler),
		images:            make(map[string]*image),
		textures:          make(map[[2]referencedObject]*texture),
		fileDestinations:  make(map[string]string),
		presentationNames: make(map[string]struct{}),
		sceneExtras:       make(map[string]string),
	}
	WithOptions(defaultExportOptions())(e)
	for _, opt := range options {
		opt(e)
	}

	if !e.version.Valid() {
		return nil, fmt.Errorf("unsupported glTF version %d", e.version)
	}
	if e.b3dm {
		e.binary = true
	}
	e.basis = common.ChangeOfBasis(e.axes, common.AxisNative)
	e.basisInverse = common.ChangeOfBasis(common.AxisNative, e.axes)

	if e.spool {
		dir := e.tempDir
		if dir == "" {
			dir = os.TempDir()
		}
		e.spoolDir = filepath.Join(dir, "gltf-export-"+uuid.NewString())
		if err := os.MkdirAll(e.spoolDir, 0o755); err != nil {
			e.log.WithError(err).Warn("cannot create spool directory, staging buffers in memory")
			e.spoolDir = ""
		}
	}

	e.views[viewUshort] = newBufferView("ushortBufferView", targetElementArrayBuffer, e.log)
	e.views[viewFloat] = newBufferView("floatBufferView", targetArrayBuffer, e.log)
	e.views[viewVec2] = newBufferView("vec2BufferView", targetArrayBuffer, e.log)
	e.views[viewVec3] = newBufferView("vec3BufferView", targetArrayBuffer, e.log)
	e.views[viewVec4] = newBufferView("vec4BufferView", targetArrayBuffer, e.log)
	for _, v := range e.views {
		if e.spoolDir != "" {
			if err := v.enableFileStream(e.spoolDir); err != nil {
				e.log.WithError(err).Warn("spooling disabled for buffer view")
			}
		}
		if err := e.reg.register(v); err != nil {
			return nil, err
		}
	}

	e.log.WithFields(logrus.Fields{
		"version": e.version.String(),
		"binary":  e.binary,
		"b3dm":    e.b3dm,
		"axes":    e.axes.Name,
	}).Debug("exporter created")
	return e, nil
}

func (e *exporter) Version() common.SchemaVersion { return e.version }
func (e *exporter) NumTris() int                  { return e.numTris }
func (e *exporter) ExportedFiles() []string       { return append([]string(nil), e.exportedFiles...) }

func (e *exporter) SetMetadata(generator, copyright string) {
	e.generator = generator
	e.copyright = copyright
}

func (e *exporter) SetSceneExtra(key, value string) {
	e.sceneExtras[key] = value
}

// viewFor routes an element shape to its canonical buffer view.
//
// Returns:
//   - *bufferView: the view
//   - error: ErrUnsupportedAccessor if no view holds the shape
func (e *exporter) viewFor(typ accessorType, ctype componentType) (*bufferView, error) {
	switch {
	case ctype == componentFloat && typ == typeScalar:
		return e.views[viewFloat], nil
	case ctype == componentFloat && typ == typeVec2:
		return e.views[viewVec2], nil
	case ctype == componentFloat && typ == typeVec3:
		return e.views[viewVec3], nil
	case ctype == componentFloat && typ == typeVec4:
		return e.views[viewVec4], nil
	case ctype == componentUnsignedShort && typ == typeScalar:
		return e.views[viewUshort], nil
	case ctype == componentUnsignedByte && typ == typeVec4:
		return e.views[viewFloat], nil
	}
	return nil, ErrUnsupportedAccessor.New(ctype, typ)
}

// createAccessor creates, stride-checks and registers an accessor.
//
// Parameters:
//   - name: the registry name
//   - info: the element shape
//   - isVertexAttr: false for index data
//   - normalized: whether integer data is normalized
//
// Returns:
//   - *accessor: the new accessor
//   - error: error if no view fits or the stride conflicts
func (e *exporter) createAccessor(name string, info attributeInfo, isVertexAttr, normalized bool) (*accessor, error) {
	view, err := e.viewFor(info.typ, info.ctype)
	if err != nil {
		return nil, err
	}
	a := &accessor{
		named:        named{name: name},
		view:         view,
		typ:          info.typ,
		ctype:        info.ctype,
		normalized:   normalized,
		isVertexAttr: isVertexAttr,
		byteStride:   strideFor(e.version, info.typ, info.ctype, isVertexAttr),
	}
	if err := a.sanityCheckViewStride(); err != nil {
		return nil, err
	}
	if err := e.reg.register(a); err != nil {
		return nil, err
	}
	return a, nil
}

// toExportAxes converts a native local transform into the exported convention.
func (e *exporter) toExportAxes(m common.Mat4) common.Mat4 {
	return e.basis.Mul(m).Mul(e.basisInverse)
}

// uniquePresentationName returns desired, or "desired i" if it was handed out before.
func (e *exporter) uniquePresentationName(desired string) string {
	name := desired
	for i := 0; ; i++ {
		if _, ok := e.presentationNames[name]; !ok {
			break
		}
		name = fmt.Sprintf("%s %d", desired, i)
	}
	e.presentationNames[name] = struct{}{}
	return name
}

func (e *exporter) newNode(name string, xform common.Mat4, parent *node) (*node, error) {
	n := &node{named: named{name: name}, matrix: e.toExportAxes(xform), parent: parent}
	if err := e.reg.register(n); err != nil {
		return nil, err
	}
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	return n, nil
}

func (e *exporter) checkParent(parent Node) (*node, error) {
	p := asNode(parent)
	if parent != nil && p == nil {
		return nil, fmt.Errorf("parent node %q was not created by this exporter", parent.Name())
	}
	if p != nil {
		if err := e.reg.lookupExact(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (e *exporter) CreateNode(desiredName string, xform common.Mat4, parent Node) (Node, error) {
	p, err := e.checkParent(parent)
	if err != nil {
		return nil, err
	}
	return e.newNode(e.reg.uniqueName(desiredName), xform, p)
}

func (e *exporter) GetOrCreateNode(name string, xform common.Mat4, parent Node) (Node, bool, error) {
	p, err := e.checkParent(parent)
	if err != nil {
		return nil, false, err
	}
	if obj, ok := e.reg.byName[name]; ok {
		existing, isNode := obj.(*node)
		if !isNode {
			return nil, false, ErrNameConflict.New(name)
		}
		if !existing.matrix.Equal(e.toExportAxes(xform), 1e-5) {
			e.log.WithField("node", name).Error("node reused with a different transform; keeping the first")
			e.profiler.Defect("exporter", "error")
		}
		return existing, false, nil
	}
	n, err := e.newNode(name, xform, p)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (e *exporter) GroupNode(group int) (Node, error) {
	n, _, err := e.GetOrCreateNode(fmt.Sprintf("group_%d", group), common.IdentityMat4(), nil)
	return n, err
}

func (e *exporter) AddEmptyNode(name string, xform common.Mat4) (Node, error) {
	unique := ""
	for i := 0; ; i++ {
		unique = fmt.Sprintf("empty_%s_%d", name, i)
		if _, taken := e.reg.byName[unique]; !taken {
			break
		}
	}
	n, err := e.newNode(unique, xform, nil)
	if err != nil {
		return nil, err
	}
	n.SetPresentationName("empty_" + name)
	return n, nil
}

func (e *exporter) AddCamera(name string, yfov, aspect, znear, zfar float32, xform common.Mat4, parent Node) (Node, error) {
	p, err := e.checkParent(parent)
	if err != nil {
		return nil, err
	}
	cam := &camera{
		named:       named{name: e.reg.uniqueName("camera_" + name), presentationName: name},
		yfov:        yfov,
		aspectRatio: aspect,
		znear:       znear,
		zfar:        zfar,
	}
	if err := e.reg.register(cam); err != nil {
		return nil, err
	}
	n, err := e.newNode(e.reg.uniqueName(nodeName(cam.name)), xform, p)
	if err != nil {
		return nil, err
	}
	n.SetPresentationName(name)
	n.camera = cam
	return n, nil
}

func (e *exporter) ExportMesh(payload MeshPayload, parent Node) (Node, error) {
	pool := payload.Pool
	if pool == nil || pool.NumTris() < 1 {
		e.log.WithField("mesh", payload.UniqueName).Debug("skipping mesh with no triangles")
		return nil, nil
	}
	if payload.Material == nil {
		return nil, fmt.Errorf("mesh %s has no material", payload.UniqueName)
	}
	p, err := e.checkParent(parent)
	if err != nil {
		return nil, err
	}
	if err := pool.Validate(); err != nil {
		return nil, fmt.Errorf("mesh %s: %w", payload.UniqueName, err)
	}

	m, ok := e.meshes[pool]
	if !ok {
		m, err = e.createMesh(payload)
		if err != nil {
			return nil, err
		}
		e.meshes[pool] = m
	}
	e.numTris += pool.NumTris()

	n, _, err := e.GetOrCreateNode(nodeName(payload.UniqueName), payload.Xform, p)
	if err != nil {
		return nil, err
	}
	impl := n.(*node)
	impl.mesh = m
	if payload.NodeName != "" {
		impl.SetPresentationName(payload.NodeName)
	}

	if _, done := e.materials[payload.Material]; !done {
		if err := e.exportMaterial(payload.Namespace, payload.Material, m.primitives[0].attributes); err != nil {
			return nil, err
		}
	}
	return impl, nil
}

// createMesh converts the pool to export axes, registers the mesh with one
// primitive and fills its accessors. On failure nothing it registered or
// appended is kept.
func (e *exporter) createMesh(payload MeshPayload) (_ *mesh, err error) {
	layout, err := newGltfLayout(payload.Pool.Layout, e.version)
	if err != nil {
		return nil, err
	}
	pool := payload.Pool
	if !e.basis.IsIdentity(0) {
		pool = pool.Clone()
		pool.ApplyTransform(e.basis)
	}

	indices := make([]uint16, len(pool.Tris))
	for i, t := range pool.Tris {
		if t > 0xffff {
			return nil, ErrIndexOutOfRange.New(payload.UniqueName, t)
		}
		indices[i] = uint16(t)
	}

	regMark := e.reg.mark()
	var viewMarks [numViews]viewMark
	for i, v := range e.views {
		viewMarks[i] = v.mark()
	}
	defer func() {
		if err == nil {
			return
		}
		e.reg.rollback(regMark)
		for i, v := range e.views {
			v.rollback(viewMarks[i])
		}
	}()

	m := &mesh{named: named{name: meshName(payload.UniqueName), presentationName: payload.GeometryName}}
	if err := e.reg.register(m); err != nil {
		return nil, err
	}
	attrs, err := e.newAttributes(payload.UniqueName, layout)
	if err != nil {
		return nil, err
	}
	idx, err := e.createAccessor(accessorName(payload.UniqueName, "indices_0"),
		attributeInfo{typ: typeScalar, ctype: componentUnsignedShort}, false, false)
	if err != nil {
		return nil, err
	}
	m.primitives = append(m.primitives, &primitive{
		attributes:   attrs,
		indices:      idx,
		materialName: materialName(payload.Material),
		mode:         modeTriangles,
	})

	if err := attrs.populate(pool); err != nil {
		return nil, fmt.Errorf("mesh %s: %w", payload.UniqueName, err)
	}
	if err := idx.populateUshort(indices); err != nil {
		return nil, err
	}
	return m, nil
}

// Dispose releases spool files. Safe to call more than once.
func (e *exporter) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	for _, v := range e.views {
		v.dispose()
	}
	if e.spoolDir != "" {
		if err := os.Remove(e.spoolDir); err != nil && !os.IsNotExist(err) {
			e.log.WithError(err).WithField("dir", e.spoolDir).Warn("failed to remove spool directory")
		}
	}
}

// format names the container for logs and metrics.
func (e *exporter) format() string {
	switch {
	case e.b3dm:
		return "b3dm"
	case e.binary:
		return "glb"
	}
	return "gltf"
}

func isHTTP(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
