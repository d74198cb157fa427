package exporter

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
	"github.com/sirupsen/logrus"
)

// fileReference is a texture as referenced from the document.
type fileReference struct {
	// uri is written to the image.
	uri string
	// source is the local file copied to uri, empty for remote references.
	source string
}

func (f fileReference) local() bool {
	return f.source != ""
}

// exportMaterial registers mat and everything it depends on.
//
// Parameters:
//   - namespace: prefix for the presentation name and local texture file names
//   - mat: the material
//   - attrs: the attributes of the first mesh using mat
//
// Returns:
//   - error: error if an object cannot be registered
func (e *exporter) exportMaterial(namespace string, mat material.Material, attrs *attributes) error {
	gm := &gltfMaterial{named: named{name: materialName(mat)}, src: mat}
	display := mat.DurableName()
	if namespace != "" {
		display = namespace + "_" + display
	}
	gm.SetPresentationName(e.uniquePresentationName(display))
	if err := e.reg.register(gm); err != nil {
		return err
	}
	e.materials[mat] = gm

	var tech *technique
	if e.version == common.SchemaV1 {
		var err error
		if tech, err = e.createTechnique(mat, attrs); err != nil {
			return err
		}
		gm.technique = tech
	}

	addValue := func(key string, typ int, floats ...float32) {
		gm.values = append(gm.values, materialValue{key: key, floats: floats})
		if tech != nil {
			tech.addUniform(key, typ, "")
		}
	}
	for _, k := range common.SortedKeys(mat.FloatParams()) {
		addValue(k, techniqueFloat, mat.FloatParams()[k])
	}
	for _, k := range common.SortedKeys(mat.ColorParams()) {
		c := mat.ColorParams()[k]
		addValue(k, techniqueVec4, c[:]...)
	}
	for _, k := range common.SortedKeys(mat.VectorParams()) {
		v := mat.VectorParams()[k]
		addValue(k, techniqueVec4, v[:]...)
	}
	uris := mat.TextureURIs()
	for _, k := range common.SortedKeys(uris) {
		if size, ok := mat.TextureSize(k); ok && size[0] > 0 && size[1] > 0 {
			w, h := float32(size[0]), float32(size[1])
			addValue(k+"_TexelSize", techniqueVec4, 1/w, 1/h, w, h)
		}
	}

	for _, k := range common.SortedKeys(uris) {
		ref := e.fileReference(namespace, mat.URIBase(), uris[k])
		tex, err := e.lookupOrCreateTexture(ref, mat.UniqueName()+"_"+k)
		if err != nil {
			return err
		}
		gm.values = append(gm.values, materialValue{key: k, texture: tex})
		if tech != nil {
			tech.addUniform(k, techniqueSampler2D, "")
		}
	}
	return nil
}

// createTechnique builds the glTF 1 technique, program and shaders of mat.
func (e *exporter) createTechnique(mat material.Material, attrs *attributes) (*technique, error) {
	unique := mat.UniqueName()
	tech := &technique{named: named{name: "technique_" + unique}}

	depthMask := true
	tech.states.enable = []int{glDepthTest}
	if mat.EnableCull() {
		tech.states.enable = append(tech.states.enable, glCullFace)
	}
	switch mat.BlendMode() {
	case material.BlendModeAdditiveBlend:
		tech.states.enable = append(tech.states.enable, glBlend)
		tech.states.blendFuncSeparate = []int{1, 1, 1, 1}
		depthMask = false
	case material.BlendModeAlphaBlend:
		tech.states.enable = append(tech.states.enable, glBlend)
		tech.states.blendFuncSeparate = []int{1, 771, 1, 771}
	}
	tech.states.depthMask = &depthMask

	layout, err := newGltfLayout(mat.VertexLayout(), e.version)
	if err != nil {
		e.log.WithError(err).WithField("material", mat.DurableName()).Warn("material layout unusable, using the mesh layout")
		layout = attrs.layout
	}
	if !layout.equal(attrs.layout) && attrs.layout.src.Texcoords[2].Size == 0 {
		e.log.WithField("material", mat.DurableName()).Warn("material layout does not match the mesh layout")
	}

	tech.addAttribute("position", layout.position.techniqueType(), "POSITION")
	if layout.normal != nil {
		tech.addAttribute("normal", layout.normal.techniqueType(), "NORMAL")
	}
	if layout.color != nil {
		tech.addAttribute("color", layout.color.techniqueType(), "COLOR")
	}
	if layout.tangent != nil {
		tech.addAttribute("tangent", layout.tangent.techniqueType(), "TANGENT")
	}
	if layout.packVertexID {
		tech.addAttribute("vertexId", techniqueFloat, "")
	}
	for i, info := range layout.texcoords {
		if info != nil {
			tech.addAttribute(fmt.Sprintf("texcoord%d", i), info.techniqueType(), fmt.Sprintf("TEXCOORD_%d", i))
		}
	}
	tech.addDefaultUniforms(e.rtcCenter != nil)

	vert := &shader{named: named{name: "vertex_" + unique}, stage: shaderVertex, uri: shaderURI(mat.URIBase(), mat.VertShaderURI())}
	frag := &shader{named: named{name: "fragment_" + unique}, stage: shaderFragment, uri: shaderURI(mat.URIBase(), mat.FragShaderURI())}
	prog := &program{named: named{name: "program_" + unique}, vertex: vert, fragment: frag}
	for _, a := range tech.attributes {
		prog.attributes = append(prog.attributes, a.name)
	}
	tech.program = prog

	for _, obj := range []referencedObject{vert, frag, prog, tech} {
		if err := e.reg.register(obj); err != nil {
			return nil, err
		}
	}
	return tech, nil
}

// shaderURI resolves a shader reference against the material's base.
func shaderURI(base, uri string) string {
	if uri == "" || base == "" || isHTTP(uri) || filepath.IsAbs(uri) {
		return uri
	}
	if isHTTP(base) {
		return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(uri, "/")
	}
	return filepath.ToSlash(filepath.Join(base, uri))
}

// fileReference decides how a texture is referenced. Remote URIs are kept;
// local files are renamed into the namespace and copied next to the output.
func (e *exporter) fileReference(namespace, base, uri string) fileReference {
	if isHTTP(uri) || strings.HasPrefix(uri, "data:") {
		return fileReference{uri: uri}
	}
	src := uri
	if !filepath.IsAbs(src) && base != "" && !isHTTP(base) {
		src = filepath.Join(base, src)
	}
	dest := filepath.Base(uri)
	if namespace != "" {
		dest = namespace + "_" + dest
	}
	ext := path.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for i := 1; ; i++ {
		prev, taken := e.fileDestinations[dest]
		if !taken || prev == src {
			break
		}
		dest = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	if _, seen := e.fileDestinations[dest]; !seen {
		e.fileDestinations[dest] = src
		e.fileRefs = append(e.fileRefs, fileReference{uri: dest, source: src})
	}
	return fileReference{uri: dest, source: src}
}

// lookupOrCreateTexture shares images by uri and textures by image and sampler.
func (e *exporter) lookupOrCreateTexture(ref fileReference, proposedName string) (*texture, error) {
	data := common.DefaultSamplerData()
	smp, ok := e.samplers[data]
	if !ok {
		smp = &sampler{named: named{name: fmt.Sprintf("sampler_%d_%d", data.MagFilter, data.MinFilter)}, data: data}
		if err := e.reg.register(smp); err != nil {
			return nil, err
		}
		e.samplers[data] = smp
	}

	img, ok := e.images[ref.uri]
	if !ok {
		img = &image{named: named{name: e.reg.uniqueName("image_" + proposedName), presentationName: proposedName}, uri: ref.uri}
		if err := e.reg.register(img); err != nil {
			return nil, err
		}
		e.images[ref.uri] = img
	}

	key := [2]referencedObject{img, smp}
	tex, ok := e.textures[key]
	if !ok {
		tex = &texture{named: named{name: e.reg.uniqueName("texture_" + proposedName)}, source: img, sampler: smp}
		if err := e.reg.register(tex); err != nil {
			return nil, err
		}
		e.textures[key] = tex
	}
	return tex, nil
}

// copyLocalFiles copies referenced local textures into dir. Existing files are
// never overwritten. Failures are logged; a missing texture does not fail the export.
func (e *exporter) copyLocalFiles(dir string) {
	for _, ref := range e.fileRefs {
		if !ref.local() {
			continue
		}
		log := e.log.WithFields(logrus.Fields{"source": ref.source, "uri": ref.uri})
		dest := filepath.Join(dir, ref.uri)
		if _, err := os.Stat(dest); err == nil {
			log.Error("not overwriting existing file")
			continue
		}
		if err := copyFile(ref.source, dest); err != nil {
			log.WithError(err).Error("failed to copy texture")
			continue
		}
		e.exportedFiles = append(e.exportedFiles, dest)
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
