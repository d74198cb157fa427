package exporter

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/googlevr/tilt-brush-sub010/common"
)

// Container constants.
const (
	glbMagic      = 0x46546C67 // "glTF"
	b3dmMagic     = 0x6D643362 // "b3dm"
	chunkJSON     = 0x4E4F534A // "JSON"
	chunkBIN      = 0x004E4942 // "BIN\0"
	glbHeaderSize = 20
	// b3dm tiles carry a 24-byte header with empty batch tables in front of the GLB.
	b3dmHeaderSize = 24
)

// Extension names.
const (
	extBinaryGltf = "KHR_binary_glTF"
	extCesiumRTC  = "CESIUM_RTC"
)

// writePass holds the state of one Write.
type writePass struct {
	e       *exporter
	ctx     *writeContext
	graph   refGraph
	scene   *scene
	buffer  *buffer
	views   []*bufferView
	total   int64
	json    bytes.Buffer
	written int64
	start   time.Time
}

// bufferURI picks the uri written for the buffer.
type bufferURI func(p *writePass) (string, error)

// fileBufferURI references the .bin written beside a .gltf, or nothing inside a container.
func fileBufferURI(path string) bufferURI {
	return func(p *writePass) (string, error) {
		if p.e.binary {
			return p.containerBufferURI(), nil
		}
		return filepath.Base(binPath(path)), nil
	}
}

// embeddedBufferURI inlines the buffer as base64 when no container holds it.
func embeddedBufferURI(p *writePass) (string, error) {
	if p.e.binary {
		return p.containerBufferURI(), nil
	}
	var sb strings.Builder
	sb.WriteString("data:application/octet-stream;base64,")
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	for _, v := range p.views {
		if err := v.copyTo(enc); err != nil {
			return "", err
		}
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// containerBufferURI is empty in GLB 2; KHR_binary_glTF wants a placeholder data uri.
func (p *writePass) containerBufferURI() string {
	if p.ctx.v1() {
		return "data:,"
	}
	return ""
}

func binPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".bin"
}

func (e *exporter) newWritePass() (*writePass, error) {
	if e.disposed {
		return nil, fmt.Errorf("exporter has been disposed")
	}
	if e.written {
		return nil, ErrAlreadyWritten.New()
	}
	e.written = true
	return &writePass{
		e:     e,
		ctx:   newWriteContext(e.version, e.reg, e.log),
		start: time.Now(),
	}, nil
}

// prepare lays out the buffer, creates the scene and assigns indices to
// everything reachable from it.
func (p *writePass) prepare(uri bufferURI) error {
	e := p.e

	var offset int64
	for _, v := range e.views {
		if v.byteLength == 0 {
			e.reg.unregister(v)
			continue
		}
		v.byteOffset = offset
		offset += v.paddedLength()
		p.views = append(p.views, v)
	}
	p.total = offset

	name := "buffer"
	if e.binary && e.version == common.SchemaV1 {
		name = "binary_glTF"
	}
	p.buffer = &buffer{named: named{name: name}, byteLength: p.total}
	for _, v := range p.views {
		v.buffer = p.buffer
	}
	u, err := uri(p)
	if err != nil {
		return err
	}
	p.buffer.uri = u
	if err := e.reg.register(p.buffer); err != nil {
		return err
	}

	p.scene = &scene{named: named{name: "defaultScene"}, extras: maps.Clone(e.sceneExtras)}
	for _, obj := range e.reg.collections[kindNode] {
		if n := obj.(*node); n.parent == nil {
			p.scene.nodes = append(p.scene.nodes, n)
		}
	}
	if err := e.reg.register(p.scene); err != nil {
		return err
	}

	graph, err := collectReferences(p.ctx)
	if err != nil {
		return err
	}
	p.graph = graph
	p.ctx.index = assignIndices(e.reg, transitiveClosure(graph, []referencedObject{p.scene}))

	e.log.WithField("objects", len(p.ctx.index)).Debug("reachable objects indexed")
	return nil
}

// reachable returns the indexed objects of collection k in write order.
func (p *writePass) reachable(k objectKind) []referencedObject {
	var out []referencedObject
	for _, obj := range p.e.reg.collections[k] {
		if _, ok := p.ctx.index[obj]; ok {
			out = append(out, obj)
		}
	}
	return out
}

func (p *writePass) bufferWritten() bool {
	_, ok := p.ctx.index[p.buffer]
	return ok && p.total > 0
}

// writeDocument serializes the JSON document.
func (p *writePass) writeDocument() error {
	e := p.e
	ctx := p.ctx
	ctx.w = newJSONWriter(&p.json)
	w := ctx.w

	w.BeginObject()
	w.Key("asset")
	w.BeginObject()
	if e.generator != "" {
		w.KeyString("generator", e.generator)
	}
	w.KeyString("version", e.version.String())
	if e.copyright != "" {
		w.KeyString("copyright", e.copyright)
	}
	w.EndObject()

	for k := objectKind(0); k < numKinds; k++ {
		if k == kindScene {
			w.Key("scene")
			clear(ctx.emitted)
			ctx.writeRef(p.scene)
		}
		if err := p.writeCollection(k); err != nil {
			return err
		}
	}

	var used []string
	if ctx.v1() && e.binary {
		used = append(used, extBinaryGltf)
	}
	if e.rtcCenter != nil {
		used = append(used, extCesiumRTC)
	}
	if !ctx.v1() {
		for _, obj := range p.reachable(kindMaterial) {
			if obj.(*gltfMaterial).src.IsBrush() {
				used = append(used, tiltBrushMaterialExtension)
				break
			}
		}
	}
	if len(used) > 0 {
		w.Key("extensionsUsed")
		w.BeginArray()
		for _, ext := range used {
			w.String(ext)
		}
		w.EndArray()
	}
	if e.rtcCenter != nil {
		w.Key("extensions")
		w.BeginObject()
		w.Key(extCesiumRTC)
		w.BeginObject()
		w.Key("center")
		w.Floats(e.rtcCenter[:])
		w.EndObject()
		w.EndObject()
	}
	w.EndObject()

	if err := w.Err(); err != nil {
		return err
	}
	return ctx.err
}

// writeCollection writes one top-level collection: an array in glTF 2, an
// object keyed by name in glTF 1. Empty collections are omitted.
func (p *writePass) writeCollection(k objectKind) error {
	ctx := p.ctx
	if !k.writtenIn(ctx.version) {
		return nil
	}
	objs := p.reachable(k)
	if len(objs) == 0 {
		return nil
	}
	w := ctx.w
	w.Key(k.String())
	if ctx.v1() {
		w.BeginObject()
	} else {
		w.BeginArray()
	}
	for i, obj := range objs {
		if idx := ctx.index[obj]; idx != i {
			return fmt.Errorf("%s %q: assigned index %d but written at %d", k, obj.Name(), idx, i)
		}
		clear(ctx.emitted)
		if ctx.v1() {
			w.Key(obj.Name())
		}
		obj.writeObject(ctx)
		if err := checkEmitted(obj, p.graph[obj], ctx.emitted); err != nil {
			p.e.log.WithError(err).Error("object references are inconsistent")
			p.e.profiler.Defect("exporter", "error")
			return err
		}
		if ctx.err != nil {
			return ctx.err
		}
	}
	if ctx.v1() {
		w.EndObject()
	} else {
		w.EndArray()
	}
	return w.Err()
}

// jsonChunk returns the document, space-padded to 4 bytes in containers.
func (p *writePass) jsonChunk() []byte {
	data := p.json.Bytes()
	if !p.e.binary {
		return data
	}
	if pad := align(int64(len(data)), 4) - int64(len(data)); pad > 0 {
		data = append(data, bytes.Repeat([]byte(" "), int(pad))...)
	}
	return data
}

// writeContainer writes the GLB (and b3dm) container: headers, JSON and binary.
func (p *writePass) writeContainer(w io.Writer) error {
	jsonData := p.jsonChunk()
	var binLen int64
	if p.bufferWritten() {
		binLen = p.total
	}

	glbLen := int64(glbHeaderSize) + int64(len(jsonData)) + binLen
	if !p.ctx.v1() && binLen > 0 {
		glbLen += 8
	}

	var header []byte
	if p.e.b3dm {
		header = binary.LittleEndian.AppendUint32(header, b3dmMagic)
		header = binary.LittleEndian.AppendUint32(header, 1)
		header = binary.LittleEndian.AppendUint32(header, uint32(glbLen+b3dmHeaderSize))
		header = binary.LittleEndian.AppendUint32(header, 0) // batch table JSON length
		header = binary.LittleEndian.AppendUint32(header, 0) // batch table binary length
		header = binary.LittleEndian.AppendUint32(header, 0) // batch length
	}
	header = binary.LittleEndian.AppendUint32(header, glbMagic)
	header = binary.LittleEndian.AppendUint32(header, uint32(p.e.version))
	header = binary.LittleEndian.AppendUint32(header, uint32(glbLen))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(jsonData)))
	if p.ctx.v1() {
		header = binary.LittleEndian.AppendUint32(header, 0) // content format: JSON
	} else {
		header = binary.LittleEndian.AppendUint32(header, chunkJSON)
	}

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(jsonData); err != nil {
		return err
	}
	if binLen == 0 {
		return nil
	}
	if !p.ctx.v1() {
		var chunk []byte
		chunk = binary.LittleEndian.AppendUint32(chunk, uint32(binLen))
		chunk = binary.LittleEndian.AppendUint32(chunk, chunkBIN)
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return p.writeBinary(w)
}

func (p *writePass) writeBinary(w io.Writer) error {
	for _, v := range p.views {
		if err := v.copyTo(w); err != nil {
			return err
		}
	}
	return nil
}

// countingWriter counts bytes for metrics.
type countingWriter struct {
	w io.Writer
	n *int64
}

func (c countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	*c.n += int64(n)
	return n, err
}

// writeFiles creates the output file, plus the .bin for JSON output.
func (p *writePass) writeFiles(path string) error {
	if p.e.binary {
		if err := writeFile(path, func(w io.Writer) error {
			return p.writeContainer(countingWriter{w, &p.written})
		}); err != nil {
			return err
		}
		p.e.exportedFiles = append(p.e.exportedFiles, path)
		return nil
	}
	if err := writeFile(path, func(w io.Writer) error {
		_, err := countingWriter{w, &p.written}.Write(p.jsonChunk())
		return err
	}); err != nil {
		return err
	}
	p.e.exportedFiles = append(p.e.exportedFiles, path)
	// An empty scene still gets its .bin, zero bytes long. The document has no
	// buffer entry for it since a buffer needs a positive byteLength.
	if err := writeFile(binPath(path), func(w io.Writer) error {
		if !p.bufferWritten() {
			return nil
		}
		return p.writeBinary(countingWriter{w, &p.written})
	}); err != nil {
		return err
	}
	p.e.exportedFiles = append(p.e.exportedFiles, binPath(path))
	return nil
}

func writeFile(path string, fill func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := fill(bw); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// finish records metrics for the pass.
func (p *writePass) finish(err error) {
	elapsed := time.Since(p.start)
	log := p.e.log.WithField("format", p.e.format())
	if err != nil {
		log.WithError(err).Error("export failed")
	} else {
		log.WithField("bytes", p.written).WithField("triangles", p.e.numTris).Info("export written")
	}
	p.e.profiler.ObserveExport(p.e.format(), p.e.numTris, p.written, elapsed, err)
}

func (e *exporter) WriteSteps(path string) iter.Seq[error] {
	return func(yield func(error) bool) {
		defer e.Dispose()
		p, err := e.newWritePass()
		if err != nil {
			yield(err)
			return
		}
		steps := []func() error{
			func() error { return p.prepare(fileBufferURI(path)) },
			p.writeDocument,
			func() error { return p.writeFiles(path) },
			func() error {
				if e.copyTextures {
					e.copyLocalFiles(filepath.Dir(path))
				}
				return nil
			},
		}
		for _, step := range steps {
			err = step()
			if err != nil {
				p.finish(err)
				yield(err)
				return
			}
			if !yield(nil) {
				return
			}
		}
		p.finish(nil)
	}
}

func (e *exporter) Write(path string) error {
	for err := range e.WriteSteps(path) {
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *exporter) WriteTo(w io.Writer) (err error) {
	defer e.Dispose()
	p, err := e.newWritePass()
	if err != nil {
		return err
	}
	defer func() { p.finish(err) }()

	if err = p.prepare(embeddedBufferURI); err != nil {
		return err
	}
	if err = p.writeDocument(); err != nil {
		return err
	}
	cw := countingWriter{w, &p.written}
	if e.binary {
		return p.writeContainer(cw)
	}
	_, err = cw.Write(p.jsonChunk())
	return err
}
