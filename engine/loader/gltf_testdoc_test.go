package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/googlevr/tilt-brush-sub010/engine/config"
	"github.com/googlevr/tilt-brush-sub010/engine/material"
	"github.com/googlevr/tilt-brush-sub010/engine/model"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// testDoc assembles small glTF documents whose single buffer is embedded as
// a data uri.
type testDoc struct {
	bin       []byte
	views     []map[string]any
	accessors []map[string]any
}

func (d *testDoc) view(data []byte, target int) int {
	for len(d.bin)%4 != 0 {
		d.bin = append(d.bin, 0)
	}
	d.views = append(d.views, map[string]any{
		"buffer":     0,
		"byteOffset": len(d.bin),
		"byteLength": len(data),
		"target":     target,
	})
	d.bin = append(d.bin, data...)
	return len(d.views) - 1
}

func (d *testDoc) accessor(view, componentType, count int, typ string) int {
	d.accessors = append(d.accessors, map[string]any{
		"bufferView":    view,
		"componentType": componentType,
		"count":         count,
		"type":          typ,
	})
	return len(d.accessors) - 1
}

// floats adds a float accessor declaring count elements, whatever len(vals) is.
func (d *testDoc) floats(typ string, count int, vals ...float32) int {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return d.accessor(d.view(buf, 34962), gltfComponentTypeFloat, count, typ)
}

func (d *testDoc) ubytes(typ string, count int, vals ...byte) int {
	return d.accessor(d.view(vals, 34962), gltfComponentTypeUnsignedByte, count, typ)
}

func (d *testDoc) indices(idx ...uint16) int {
	buf := make([]byte, 2*len(idx))
	for i, v := range idx {
		binary.LittleEndian.PutUint16(buf[2*i:], v)
	}
	return d.accessor(d.view(buf, 34963), gltfComponentTypeUnsignedShort, len(idx), gltfAccessorTypeScalar)
}

func (d *testDoc) bufferURI() string {
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(d.bin)
}

// gltf2 returns doc as glTF 2 JSON with the buffer, views and accessors filled in.
func (d *testDoc) gltf2(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	if _, ok := doc["asset"]; !ok {
		doc["asset"] = map[string]any{"version": "2.0"}
	}
	doc["buffers"] = []any{map[string]any{"uri": d.bufferURI(), "byteLength": len(d.bin)}}
	doc["bufferViews"] = d.views
	doc["accessors"] = d.accessors
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}

func view1(i int) string     { return fmt.Sprintf("bufferView_%d", i) }
func accessor1(i int) string { return fmt.Sprintf("accessor_%d", i) }

// gltf1 returns doc as glTF 1 JSON. Views and accessors are keyed by view1
// and accessor1 of their index.
func (d *testDoc) gltf1(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	if _, ok := doc["asset"]; !ok {
		doc["asset"] = map[string]any{"version": "1.0"}
	}
	doc["buffers"] = map[string]any{"buf": map[string]any{"uri": d.bufferURI(), "byteLength": len(d.bin), "type": "arraybuffer"}}
	views := map[string]any{}
	for i, v := range d.views {
		c := map[string]any{}
		for k, val := range v {
			c[k] = val
		}
		c["buffer"] = "buf"
		views[view1(i)] = c
	}
	accessors := map[string]any{}
	for i, a := range d.accessors {
		c := map[string]any{}
		for k, val := range a {
			c[k] = val
		}
		c["bufferView"] = view1(a["bufferView"].(int))
		accessors[accessor1(i)] = c
	}
	doc["bufferViews"] = views
	doc["accessors"] = accessors
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}

// triangleDoc is one node holding one triangle with a texcoord channel.
func triangleDoc(t *testing.T, asset map[string]any) []byte {
	t.Helper()
	var d testDoc
	pos := d.floats("VEC3", 3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	uv := d.floats("VEC2", 3, 0.3, 0.2, 1, 0, 0, 1)
	idx := d.indices(0, 1, 2)
	doc := map[string]any{
		"meshes": []any{map[string]any{
			"name": "tri",
			"primitives": []any{map[string]any{
				"attributes": map[string]any{"POSITION": pos, "TEXCOORD_0": uv},
				"indices":    idx,
			}},
		}},
		"nodes":  []any{map[string]any{"name": "Triangle", "mesh": 0}},
		"scenes": []any{map[string]any{"nodes": []any{0}}},
		"scene":  0,
	}
	if asset != nil {
		doc["asset"] = asset
	}
	return d.gltf2(t, doc)
}

// nativeOptions imports without any change of axes or units.
func nativeOptions() config.ImportOptions {
	o := config.DefaultOptions().Import
	o.Axes = "native"
	o.ColorSpace = "srgb"
	return o
}

func newTestImporter(opts config.ImportOptions, catalog *material.Catalog) (gltfImporter, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return newGLTFImporter(log, nil, catalog, opts), hook
}

func importBytes(t *testing.T, data []byte, opts config.ImportOptions) (*model.ImportedModel, *test.Hook, error) {
	t.Helper()
	imp, hook := newTestImporter(opts, nil)
	m, err := imp.ImportReader("test", bytes.NewReader(data), false, "")
	return m, hook, err
}

// warnings returns the messages logged at Warn level.
func warnings(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			out = append(out, e.Message)
		}
	}
	return out
}
