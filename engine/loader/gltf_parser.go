package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	json "github.com/goccy/go-json"
	"github.com/googlevr/tilt-brush-sub010/common"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// gltfParserImpl is the implementation of the gltfParser interface.
type gltfParserImpl struct {
	logger  *logrus.Logger
	baseDir string
	binary  []byte
	hasBin  bool
	mapped  []mmap.MMap
}

// gltfParser loads a .gltf, .glb or .b3dm file, decodes it with the schema its
// version calls for and resolves every reference. Buffer data may point into
// memory-mapped files, so the parser must stay open until the decoded data has
// been copied out.
// This is internal to the loader package.
type gltfParser interface {
	// Parse loads and dereferences the file at path.
	// The container is detected from its leading bytes, not its extension.
	//
	// Parameters:
	//   - path: path to the glTF, GLB or b3dm file
	//
	// Returns:
	//   - gltfRoot: the dereferenced document
	//   - error: a typed container, version or reference error, or an I/O failure
	Parse(path string) (gltfRoot, error)

	// ParseReader parses a document from a reader.
	// Relative uris resolve against baseDir; an empty baseDir rejects them.
	//
	// Parameters:
	//   - r: reader containing glTF JSON, GLB or b3dm data
	//   - isGLB: true if the data is known to be binary
	//   - baseDir: directory for relative uris
	//
	// Returns:
	//   - gltfRoot: the dereferenced document
	//   - error: error if parsing fails
	ParseReader(r io.Reader, isGLB bool, baseDir string) (gltfRoot, error)

	// Close releases memory-mapped files. Data from the document is invalid afterwards.
	Close() error
}

var _ gltfParser = &gltfParserImpl{}
var _ uriLoader = &gltfParserImpl{}

// newGLTFParser creates a new glTF parser instance.
//
// Parameters:
//   - logger: receives warnings about the container
//
// Returns:
//   - gltfParser: a new parser instance
func newGLTFParser(logger *logrus.Logger) gltfParser {
	return &gltfParserImpl{logger: logger}
}

func (p *gltfParserImpl) Parse(path string) (gltfRoot, error) {
	p.baseDir = filepath.Dir(path)
	data, err := p.mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.parse(data, false)
}

func (p *gltfParserImpl) ParseReader(r io.Reader, isGLB bool, baseDir string) (gltfRoot, error) {
	p.baseDir = baseDir
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return p.parse(data, isGLB)
}

func (p *gltfParserImpl) Close() error {
	var first error
	for _, m := range p.mapped {
		if err := m.Unmap(); err != nil && first == nil {
			first = err
		}
	}
	p.mapped = nil
	p.binary = nil
	return first
}

// mapFile memory-maps a file read-only. Empty files are read normally
// because they cannot be mapped.
func (p *gltfParserImpl) mapFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return []byte{}, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %s: %w", path, err)
	}
	p.mapped = append(p.mapped, m)
	return m, nil
}

// parse unwraps the container, decodes the JSON with the right schema and
// dereferences it.
func (p *gltfParserImpl) parse(data []byte, isGLB bool) (gltfRoot, error) {
	magic := leUint32(data, 0)
	if magic == b3dmMagic {
		glb, err := unwrapB3DM(data)
		if err != nil {
			return nil, err
		}
		data, magic = glb, gltfGLBMagic
	}

	var (
		jsonData []byte
		version  common.SchemaVersion
	)
	if isGLB || magic == gltfGLBMagic {
		glb, err := parseGLB(data)
		if err != nil {
			return nil, err
		}
		jsonData, version = glb.json, glb.version
		p.binary, p.hasBin = glb.bin, glb.hasBin
	} else {
		jsonData = data
		v, err := sniffVersion(data)
		if err != nil {
			return nil, err
		}
		version = v
	}

	root, err := decodeRoot(jsonData, version)
	if err != nil {
		return nil, err
	}
	if err := root.dereference(p); err != nil {
		return nil, err
	}
	return root, nil
}

// sniffVersion reads asset.version without decoding the document: a "1"
// prefix selects glTF 1, an absent version glTF 2.
func sniffVersion(data []byte) (common.SchemaVersion, error) {
	if !gjson.ValidBytes(data) {
		return 0, ErrBadContainer.New("not a JSON document")
	}
	v := gjson.GetBytes(data, "asset.version")
	if !v.Exists() {
		return common.SchemaV2, nil
	}
	s := strings.TrimSpace(v.String())
	if s != "" && !strings.HasPrefix(s, "1") && !strings.HasPrefix(s, "2") {
		return 0, ErrUnknownVersion.New(s)
	}
	return common.ParseSchemaVersion(s), nil
}

// decodeRoot unmarshals the JSON chunk into the schema for version.
func decodeRoot(data []byte, version common.SchemaVersion) (gltfRoot, error) {
	var root gltfRoot
	switch version {
	case common.SchemaV1:
		root = &gltf1Root{}
	case common.SchemaV2:
		root = &gltf2Root{}
	default:
		return nil, ErrUnknownVersion.New(version.String())
	}
	if err := json.Unmarshal(data, root); err != nil {
		return nil, fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	return root, nil
}

// glbContents is the split of a GLB file into its parts.
type glbContents struct {
	version common.SchemaVersion
	json    []byte
	bin     []byte
	hasBin  bool
}

// parseGLB splits a binary glTF container.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
//
// Version 1 is a 20-byte header (magic, version, length, content length,
// content format 0) followed by the JSON and then the binary body up to the
// declared length. Version 2 is a 12-byte header followed by a JSON chunk and
// an optional BIN chunk, each with an 8-byte length/type header.
//
// Parameters:
//   - data: the whole container
//
// Returns:
//   - glbContents: the JSON and binary parts
//   - error: ErrBadContainer or ErrUnknownVersion
func parseGLB(data []byte) (glbContents, error) {
	if len(data) < gltf1GLBHeaderLen {
		return glbContents{}, ErrBadContainer.New("truncated header")
	}
	if leUint32(data, 0) != gltfGLBMagic {
		return glbContents{}, ErrBadContainer.New("bad magic")
	}
	headerVersion := leUint32(data, 4)
	if headerVersion != 1 && headerVersion != 2 {
		return glbContents{}, ErrUnknownVersion.New(fmt.Sprint(headerVersion))
	}
	glbLength := int(leUint32(data, 8))
	if glbLength > len(data) {
		return glbContents{}, ErrBadContainer.New("glb length exceeds file size")
	}
	jsonLength := int(leUint32(data, 12))
	jsonFormat := leUint32(data, 16)
	jsonStart := gltf1GLBHeaderLen
	if jsonStart+jsonLength > glbLength {
		return glbContents{}, ErrBadContainer.New("json length")
	}

	out := glbContents{json: data[jsonStart : jsonStart+jsonLength]}
	binStart := jsonStart + jsonLength
	if headerVersion == 1 {
		if jsonFormat != 0 {
			return glbContents{}, ErrBadContainer.New("content format is not JSON")
		}
		out.version = common.SchemaV1
		out.bin = data[binStart:glbLength]
		out.hasBin = true
		return out, nil
	}

	if jsonFormat != gltfGLBChunkJSON {
		return glbContents{}, ErrBadContainer.New("no 'JSON' chunk")
	}
	if jsonLength%4 != 0 {
		return glbContents{}, ErrBadContainer.New("json length not a multiple of 4")
	}
	out.version = common.SchemaV2
	if binStart == glbLength {
		return out, nil
	}
	if binStart+gltfGLBChunkSize > glbLength {
		return glbContents{}, ErrBadContainer.New("truncated BIN chunk header")
	}
	binLength := int(leUint32(data, binStart))
	if leUint32(data, binStart+4) != gltfGLBChunkBIN {
		return glbContents{}, ErrBadContainer.New("no 'BIN' chunk")
	}
	binStart += gltfGLBChunkSize
	if binStart+binLength > glbLength {
		return glbContents{}, ErrBadContainer.New("bin length overflow")
	}
	out.bin = data[binStart : binStart+binLength]
	out.hasBin = true
	return out, nil
}

// unwrapB3DM returns the GLB embedded in a batched 3D model tile. Both the
// current 28-byte header (feature and batch tables) and the legacy 24-byte
// header (batch table and batch length) are accepted; the first layout whose
// body starts with the GLB magic wins.
func unwrapB3DM(data []byte) ([]byte, error) {
	if len(data) < 24 {
		return nil, ErrBadContainer.New("truncated b3dm header")
	}
	if v := leUint32(data, 4); v != 1 {
		return nil, ErrUnknownVersion.New(fmt.Sprintf("b3dm %d", v))
	}
	end := min(int(leUint32(data, 8)), len(data))
	candidates := []uint64{
		28 + uint64(leUint32(data, 12)) + uint64(leUint32(data, 16)) + uint64(leUint32(data, 20)) + uint64(leUint32(data, 24)),
		24 + uint64(leUint32(data, 12)) + uint64(leUint32(data, 16)),
	}
	for _, off := range candidates {
		if off+4 <= uint64(end) && leUint32(data, int(off)) == gltfGLBMagic {
			return data[off:end], nil
		}
	}
	return nil, ErrBadContainer.New("b3dm body is not a GLB")
}

// leUint32 reads a little-endian uint32 at off, or 0 past the end of data.
func leUint32(data []byte, off int) uint32 {
	if off < 0 || off+4 > len(data) {
		return 0
	}
	return binary.LittleEndian.Uint32(data[off:])
}

// --- uriLoader ---

func (p *gltfParserImpl) loadURI(uri string) ([]byte, error) {
	switch {
	case uri == "":
		if !p.hasBin {
			return nil, fmt.Errorf("no GLB binary chunk")
		}
		return p.binary, nil
	case strings.HasPrefix(uri, "data:"):
		data, _, err := decodeDataURI(uri)
		return data, err
	}
	path := p.resolvePath(uri)
	if path == "" {
		return nil, fmt.Errorf("cannot resolve uri %q", uri)
	}
	return p.mapFile(path)
}

func (p *gltfParserImpl) resolvePath(uri string) string {
	if uri == "" || strings.HasPrefix(uri, "data:") || strings.Contains(uri, "://") || p.baseDir == "" {
		return ""
	}
	if unescaped, err := url.PathUnescape(uri); err == nil {
		uri = unescaped
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(uri))
}

// decodeDataURI decodes a base64 data URI.
// Format: data:[<mediatype>][;base64],<data>
//
// Returns:
//   - []byte: the payload
//   - string: the media type, possibly empty
//   - error: error if the uri is malformed or not base64
func decodeDataURI(uri string) ([]byte, string, error) {
	commaIdx := strings.Index(uri, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("invalid data uri")
	}
	header := uri[len("data:"):commaIdx]
	if !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("unsupported data uri encoding: %s", header)
	}
	data, err := base64.StdEncoding.DecodeString(uri[commaIdx+1:])
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, strings.TrimSuffix(header, ";base64"), nil
}

// loadImage fills in an image's data (data uris) or local path (relative
// uris). Local files are not read here; a missing texture file is a warning
// at conversion time, not a parse failure.
func loadImage(img *gltfImage, uris uriLoader) error {
	if img.URI == "" {
		return nil
	}
	if strings.HasPrefix(img.URI, "data:") {
		data, mimeType, err := decodeDataURI(img.URI)
		if err != nil {
			return ErrBadBuffer.Wrap(err, "image "+img.id, "bad data uri")
		}
		img.data = data
		img.MimeType = common.Coalesce(img.MimeType, mimeType)
		return nil
	}
	img.path = uris.resolvePath(img.URI)
	return nil
}

// cloneBytes copies data out of a mapping that is about to be released.
func cloneBytes(data []byte) []byte {
	if data == nil {
		return nil
	}
	return bytes.Clone(data)
}
