package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckNodeTree(t *testing.T) {
	tests := []struct {
		name     string
		children map[int][]int
		want     string
	}{
		{"forest", map[int][]int{0: {1, 2}, 2: {3}, 4: {5}}, ""},
		{"chain", map[int][]int{3: {2}, 2: {1}, 1: {0}}, ""},
		{"self", map[int][]int{1: {1}}, "node 1 is its own ancestor"},
		{"cycle", map[int][]int{0: {1}, 1: {2}, 2: {0}}, "node 0 is its own ancestor"},
		{"cycle below a root", map[int][]int{5: {1}, 1: {2}, 2: {1}}, "has more than one parent"},
		{"shared child", map[int][]int{0: {2}, 1: {2}}, "node 2 has more than one parent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := []int{0, 1, 2, 3, 4, 5}
			err := checkNodeTree(nodes,
				func(n int) []int { return tt.children[n] },
				func(n int) string { return string(rune('0' + n)) })
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, ErrBadHierarchy.Is(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestImportRejectsBadHierarchy(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"gltf2 cycle",
			`{"asset":{"version":"2.0"},"nodes":[{"children":[1]},{"children":[0]}],"scenes":[{"nodes":[0]}],"scene":0}`,
			"node 0 is its own ancestor",
		},
		{
			"gltf2 own child",
			`{"asset":{"version":"2.0"},"nodes":[{"children":[0]}],"scenes":[{"nodes":[0]}]}`,
			"node 0 is its own ancestor",
		},
		{
			"gltf2 shared child",
			`{"asset":{"version":"2.0"},"nodes":[{"children":[2]},{"children":[2]},{}],"scenes":[{"nodes":[0,1]}]}`,
			"node 2 has more than one parent",
		},
		{
			"gltf1 cycle",
			`{"asset":{"version":"1.0"},"nodes":{"a":{"children":["b"]},"b":{"children":["a"]}},"scenes":{"s":{"nodes":["a"]}},"scene":"s"}`,
			"node a is its own ancestor",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, err := importBytes(t, []byte(tt.doc), nativeOptions())
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, ErrBadHierarchy.Is(err), "%v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestImportRejectsNullEntries(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"gltf2 node", `{"asset":{"version":"2.0"},"nodes":[null],"scenes":[{"nodes":[]}]}`, "node 0: entry is null"},
		{"gltf2 scene", `{"asset":{"version":"2.0"},"scenes":[{"nodes":[]},null]}`, "scene 1: entry is null"},
		{"gltf2 primitive", `{"asset":{"version":"2.0"},"meshes":[{"primitives":[null]}]}`, "mesh 0 primitive 0: entry is null"},
		{"gltf1 node", `{"asset":{"version":"1.0"},"nodes":{"a":null}}`, "node a: entry is null"},
		{"gltf1 accessor", `{"asset":{"version":"1.0"},"accessors":{"acc":null}}`, "accessor acc: entry is null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, err := importBytes(t, []byte(tt.doc), nativeOptions())
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, ErrBadObject.Is(err), "%v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestImportRejectsImpossibleSizes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *testDoc, pos int)
		want   string
	}{
		{"negative count", func(d *testDoc, pos int) { d.accessors[pos]["count"] = -3 }, "accessor 0: count -3 is out of range"},
		{"negative accessor offset", func(d *testDoc, pos int) { d.accessors[pos]["byteOffset"] = -8 }, "accessor 0: byteOffset -8 is out of range"},
		{"negative accessor stride", func(d *testDoc, pos int) { d.accessors[pos]["byteStride"] = -12 }, "accessor 0: byteStride -12 is out of range"},
		{"count past any buffer", func(d *testDoc, pos int) { d.accessors[pos]["count"] = 400000000 }, "accessor 0: count 400000000 is out of range"},
		{"negative view length", func(d *testDoc, _ int) { d.views[0]["byteLength"] = -1 }, "bufferView 0: byteLength -1 is out of range"},
		{"negative view offset", func(d *testDoc, _ int) { d.views[0]["byteOffset"] = -4 }, "bufferView 0: byteOffset -4 is out of range"},
		{"negative view stride", func(d *testDoc, _ int) { d.views[0]["byteStride"] = -4 }, "bufferView 0: byteStride -4 is out of range"},
	}
	for _, version := range []string{"gltf2", "gltf1"} {
		for _, tt := range tests {
			t.Run(version+" "+tt.name, func(t *testing.T) {
				var d testDoc
				pos := d.floats("VEC3", 3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
				tt.mutate(&d, pos)
				var doc []byte
				want := tt.want
				if version == "gltf2" {
					doc = d.gltf2(t, map[string]any{
						"meshes": []any{map[string]any{"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": pos}}}}},
						"nodes":  []any{map[string]any{"mesh": 0}},
						"scenes": []any{map[string]any{"nodes": []any{0}}},
					})
				} else {
					doc = d.gltf1(t, map[string]any{
						"meshes": map[string]any{"m": map[string]any{"primitives": []any{map[string]any{"attributes": map[string]any{"POSITION": accessor1(pos)}}}}},
						"nodes":  map[string]any{"n": map[string]any{"meshes": []any{"m"}}},
						"scenes": map[string]any{"s": map[string]any{"nodes": []any{"n"}}},
						"scene":  "s",
					})
					want = gltf1Ids(want)
				}
				m, _, err := importBytes(t, doc, nativeOptions())
				require.Error(t, err)
				assert.Nil(t, m)
				assert.True(t, ErrBadObject.Is(err), "%v", err)
				assert.Contains(t, err.Error(), want)
			})
		}
	}
}

// gltf1Ids rewrites the glTF 2 ids in an error message to the ids gltf1 assigns.
func gltf1Ids(msg string) string {
	for _, r := range []struct{ from, to string }{
		{"accessor 0:", "accessor " + accessor1(0) + ":"},
		{"bufferView 0:", "bufferView " + view1(0) + ":"},
	} {
		if len(msg) >= len(r.from) && msg[:len(r.from)] == r.from {
			return r.to + msg[len(r.from):]
		}
	}
	return msg
}
