package exporter

import (
	"github.com/googlevr/tilt-brush-sub010/common"
)

// buffer is the single binary blob every view lives in.
type buffer struct {
	named
	uri        string
	byteLength int64
}

var _ referencedObject = &buffer{}

func (b *buffer) kind() objectKind { return kindBuffer }

func (b *buffer) iterReferences(ctx *writeContext) []referencedObject { return nil }

func (b *buffer) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	w.KeyInt("byteLength", b.byteLength)
	if ctx.v1() {
		w.KeyString("type", "arraybuffer")
	}
	if b.uri != "" {
		w.KeyString("uri", b.uri)
	}
	w.EndObject()
}

// scene lists the root nodes. Its closure decides what gets written.
type scene struct {
	named
	nodes  []*node
	extras map[string]string
}

var _ referencedObject = &scene{}

func (s *scene) kind() objectKind { return kindScene }

func (s *scene) iterReferences(ctx *writeContext) []referencedObject {
	out := make([]referencedObject, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, ctx.ref(n))
	}
	return refs(out...)
}

func (s *scene) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	w.Key("nodes")
	w.BeginArray()
	for _, n := range s.nodes {
		ctx.writeRef(n)
	}
	w.EndArray()
	if len(s.extras) > 0 {
		w.Key("extras")
		w.BeginObject()
		for _, k := range common.SortedKeys(s.extras) {
			w.KeyString(k, s.extras[k])
		}
		w.EndObject()
	}
	w.EndObject()
}

// camera is a perspective camera attached to a node.
type camera struct {
	named
	yfov, aspectRatio float32
	znear, zfar       float32
}

var _ referencedObject = &camera{}

func (c *camera) kind() objectKind { return kindCamera }

func (c *camera) iterReferences(ctx *writeContext) []referencedObject { return nil }

func (c *camera) writeObject(ctx *writeContext) {
	w := ctx.w
	w.BeginObject()
	w.KeyString("name", c.PresentationName())
	w.KeyString("type", "perspective")
	w.Key("perspective")
	w.BeginObject()
	w.KeyFloat("aspectRatio", c.aspectRatio)
	w.KeyFloat("yfov", c.yfov)
	w.KeyFloat("zfar", c.zfar)
	w.KeyFloat("znear", c.znear)
	w.EndObject()
	w.EndObject()
}
