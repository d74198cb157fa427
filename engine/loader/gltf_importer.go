package loader

import (
	"io"
	"iter"
	"path/filepath"
	"strings"
	"time"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/config"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
	"github.com/googlevr/tilt-brush-sub010/engine/model"
	"github.com/googlevr/tilt-brush-sub010/engine/profiler"
	"github.com/sirupsen/logrus"
)

// emptyNodePrefix marks nodes that are kept even though they hold nothing.
const emptyNodePrefix = "empty_"

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct {
	logger   *logrus.Logger
	profiler *profiler.Profiler
	catalog  *material.Catalog
	options  config.ImportOptions
}

// gltfImporter orchestrates a full import: parse and dereference the document,
// convert its materials, decode its geometry and rebuild its node hierarchy in
// host axes and units.
type gltfImporter interface {
	// Import reads a .gltf, .glb or .b3dm file.
	//
	// Parameters:
	//   - path: the file path
	//
	// Returns:
	//   - *model.ImportedModel: the imported model
	//   - error: a typed container, version, reference or accessor error
	Import(path string) (*model.ImportedModel, error)

	// ImportReader reads a document from a reader. Relative uris resolve
	// against baseDir.
	//
	// Parameters:
	//   - name: the name given to the model
	//   - r: reader providing glTF JSON, GLB or b3dm data
	//   - isGLB: true if the data is known to be binary
	//   - baseDir: directory for relative uris; may be empty
	//
	// Returns:
	//   - *model.ImportedModel: the imported model
	//   - error: error if the import fails
	ImportReader(name string, r io.Reader, isGLB bool, baseDir string) (*model.ImportedModel, error)

	// ImportSteps imports path one stage at a time. Each stage yields nil on
	// success; the first failure is yielded and ends the sequence. Stopping
	// the iteration early abandons the import and releases the file. dst is
	// filled in after the last stage.
	//
	// Parameters:
	//   - path: the file path
	//   - dst: receives the model
	//
	// Returns:
	//   - iter.Seq[error]: the stages
	ImportSteps(path string, dst *model.ImportedModel) iter.Seq[error]
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter creates a glTF importer.
//
// Parameters:
//   - logger: receives import warnings
//   - prof: records import metrics; may be nil
//   - catalog: the known brushes; may be nil
//   - options: the import options
//
// Returns:
//   - gltfImporter: the importer
func newGLTFImporter(logger *logrus.Logger, prof *profiler.Profiler, catalog *material.Catalog, options config.ImportOptions) gltfImporter {
	return &gltfImporterImpl{logger: logger, profiler: prof, catalog: catalog, options: options}
}

// importState is the working set of one import.
type importState struct {
	imp    *gltfImporterImpl
	parser gltfParser
	name   string
	format string
	start  time.Time

	root      gltfRoot
	producer  Producer
	basis     common.Mat4
	inverse   common.Mat4
	scale     sceneScale
	materials gltfMaterialExtractor
	meshes    gltfMeshExtractor
	built     map[gltfNode]bool
	out       model.ImportedModel
	finished  bool
}

func (imp *gltfImporterImpl) newState(name, format string) *importState {
	return &importState{
		imp:    imp,
		parser: newGLTFParser(imp.logger),
		name:   name,
		format: format,
		start:  time.Now(),
	}
}

func (imp *gltfImporterImpl) Import(path string) (*model.ImportedModel, error) {
	var out model.ImportedModel
	for err := range imp.ImportSteps(path, &out) {
		if err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func (imp *gltfImporterImpl) ImportReader(name string, r io.Reader, isGLB bool, baseDir string) (*model.ImportedModel, error) {
	format := "gltf"
	if isGLB {
		format = "glb"
	}
	s := imp.newState(common.Coalesce(name, "unnamed_model"), format)
	parse := func() (err error) {
		s.root, err = s.parser.ParseReader(r, isGLB, baseDir)
		return err
	}
	for err := range s.run(parse) {
		if err != nil {
			return nil, err
		}
	}
	out := s.out
	return &out, nil
}

func (imp *gltfImporterImpl) ImportSteps(path string, dst *model.ImportedModel) iter.Seq[error] {
	s := imp.newState(modelName(path), formatOf(path))
	parse := func() (err error) {
		s.root, err = s.parser.Parse(path)
		return err
	}
	return func(yield func(error) bool) {
		for err := range s.run(parse) {
			if err == nil && s.done() {
				*dst = s.out
			}
			if !yield(err) || err != nil {
				return
			}
		}
	}
}

// run yields once per stage. The parser is closed when the sequence ends,
// however it ends.
func (s *importState) run(parse func() error) iter.Seq[error] {
	return func(yield func(error) bool) {
		var err error
		defer func() {
			if cerr := s.parser.Close(); cerr != nil {
				s.imp.logger.WithError(cerr).Warn("failed to release mapped file")
			}
			s.imp.profiler.ObserveImport(s.format, s.vertexCount(), time.Since(s.start), err)
		}()
		steps := []func() error{parse, s.prepare, s.convertMaterials, s.buildScene}
		for _, step := range steps {
			if err = step(); err != nil {
				s.out = model.ImportedModel{}
				yield(err)
				return
			}
			if !yield(nil) {
				return
			}
		}
	}
}

// done reports whether the last stage has completed.
func (s *importState) done() bool {
	return s.finished
}

// prepare interprets the document: attribute names, producer, axes and scale.
func (s *importState) prepare() error {
	log := s.imp.logger
	if n := renameCompatibilityAttributes(s.root); n > 0 {
		log.WithField("attributes", n).Debug("renamed compatibility attributes")
	}
	asset := s.root.assetInfo()
	var version Version
	s.producer, version = inferProducer(asset.Generator)
	checkCompatibility(log, stringExtras(asset.Extras))
	log.WithFields(logrus.Fields{
		"schema":   s.root.schemaVersion(),
		"producer": s.producer,
		"version":  version,
	}).Debug("inferred producer")

	axes := s.imp.options.AxisConvention(s.root.schemaVersion())
	s.basis = common.ChangeOfBasis(common.AxisNative, axes)
	s.inverse = common.ChangeOfBasis(axes, common.AxisNative)

	var err error
	s.scale, err = computeSceneScale(log, s.imp.options, s.root.defaultScene(), s.basis)
	return err
}

func (s *importState) convertMaterials() error {
	s.materials = newGLTFMaterialExtractor(s.imp.logger, s.imp.catalog, s.root)
	s.out.Materials = s.materials.ExtractAllMaterials()
	return nil
}

// buildScene decodes the meshes the default scene uses and rebuilds its node
// hierarchy.
func (s *importState) buildScene() error {
	colorSpace, err := s.imp.options.HostColorSpace()
	if err != nil {
		return err
	}
	s.meshes = newGLTFMeshExtractor(s.imp.logger, s.imp.profiler, s.materials, meshDecodeContext{
		producer:   s.producer,
		version:    s.root.schemaVersion(),
		basis:      s.basis,
		scale:      s.scale.direct,
		colorSpace: colorSpace,
		strict:     s.imp.options.StrictAccessors,
		maxVerts:   s.imp.options.MaxVertsPerMesh,
	})

	s.built = map[gltfNode]bool{}
	var roots []*model.ImportedNode
	var extras map[string]string
	if scene := s.root.defaultScene(); scene != nil {
		extras = scene.extras()
		for _, n := range scene.rootNodes() {
			node, err := s.buildNode(n)
			if err != nil {
				return err
			}
			if node != nil {
				node.Matrix = s.scale.topLevelMatrix(node.Matrix)
				roots = append(roots, node)
			}
		}
	} else {
		s.imp.logger.Warn("document has no scene")
	}

	asset := s.root.assetInfo()
	s.out = model.ImportedModel{
		Name:      s.name,
		Version:   s.root.schemaVersion(),
		Generator: asset.Generator,
		Extras:    extras,
		Roots:     roots,
		Meshes:    s.meshes.Meshes(),
		Materials: s.out.Materials,
	}
	s.imp.logger.WithFields(logrus.Fields{
		"model":     s.name,
		"nodes":     countNodes(roots),
		"meshes":    len(s.out.Meshes),
		"materials": len(s.out.Materials),
	}).Info("imported model")
	s.finished = true
	return nil
}

// buildNode converts n and its descendants. Nodes with neither a mesh nor
// children are dropped unless their name marks them as intentionally empty.
// A node is converted at most once.
func (s *importState) buildNode(n gltfNode) (*model.ImportedNode, error) {
	if s.built[n] {
		return nil, nil
	}
	s.built[n] = true
	mesh := n.nodeMesh()
	children := n.childNodes()
	if mesh == nil && len(children) == 0 && !strings.HasPrefix(n.nodeName(), emptyNodePrefix) {
		return nil, nil
	}
	out := &model.ImportedNode{
		Name:   n.nodeName(),
		Matrix: hostMatrix(n.localMatrix(), s.basis, s.inverse, s.scale.direct),
	}
	if mesh != nil {
		indices, err := s.meshes.ExtractMesh(mesh)
		if err != nil {
			return nil, err
		}
		out.Meshes = indices
	}
	for _, c := range children {
		child, err := s.buildNode(c)
		if err != nil {
			return nil, err
		}
		if child != nil {
			out.Children = append(out.Children, child)
		}
	}
	return out, nil
}

func (s *importState) vertexCount() int {
	n := 0
	for _, m := range s.out.Meshes {
		n += m.Pool.NumVerts()
	}
	return n
}

func countNodes(roots []*model.ImportedNode) int {
	n := 0
	for _, r := range roots {
		r.Walk(func(*model.ImportedNode, int) bool {
			n++
			return true
		})
	}
	return n
}

// modelName derives a model name from a file path.
func modelName(path string) string {
	base := filepath.Base(path)
	return common.Coalesce(strings.TrimSuffix(base, filepath.Ext(base)), "unnamed_model")
}

// formatOf names the container a path holds, for metrics.
func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".glb":
		return "glb"
	case ".b3dm":
		return "b3dm"
	default:
		return "gltf"
	}
}
